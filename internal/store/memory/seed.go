package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"storefront/internal/domain"
)

type seedProduct struct {
	ID       string `mapstructure:"id"`
	SellerID string `mapstructure:"sellerId"`
	Name     string `mapstructure:"name"`
	Price    string `mapstructure:"price"`
	Stock    int    `mapstructure:"stock"`
}

// LoadSeedFile reads the catalog under the "products" key of a YAML, JSON or
// TOML file.
func LoadSeedFile(path string) ([]domain.Product, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}

	var raw []seedProduct
	if err := v.UnmarshalKey("products", &raw); err != nil {
		return nil, fmt.Errorf("decoding seed products: %w", err)
	}

	now := time.Now().UTC()
	seen := make(map[string]struct{}, len(raw))
	products := make([]domain.Product, 0, len(raw))
	for i, r := range raw {
		if strings.TrimSpace(r.ID) == "" {
			return nil, fmt.Errorf("seed product %d: id is required", i)
		}
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("seed product %s: duplicate id", r.ID)
		}
		seen[r.ID] = struct{}{}

		price, err := decimal.NewFromString(r.Price)
		if err != nil {
			return nil, fmt.Errorf("seed product %s price: %w", r.ID, err)
		}
		if price.IsNegative() {
			return nil, fmt.Errorf("seed product %s: price must not be negative", r.ID)
		}
		if r.Stock < 0 {
			return nil, fmt.Errorf("seed product %s: stock must not be negative", r.ID)
		}
		products = append(products, domain.Product{
			ID:        r.ID,
			SellerID:  r.SellerID,
			Name:      r.Name,
			Price:     price,
			Stock:     r.Stock,
			UpdatedAt: now,
		})
	}
	return products, nil
}

// Seed upserts every product and returns how many were loaded.
func (s *Store) Seed(products []domain.Product) int {
	for _, p := range products {
		s.UpsertProduct(p)
	}
	return len(products)
}
