// Package mysql runs order transactions on MySQL with row locks. Every read in
// a transaction is SELECT ... FOR UPDATE, so competing writers queue on the
// product rows instead of committing over each other. Deadlocks and lock
// timeouts come back as apperrors.ErrTxConflict for the caller to retry.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	driver "github.com/go-sql-driver/mysql"

	"storefront/internal/domain"
	apperrors "storefront/internal/errors"
	"storefront/internal/store"
)

const (
	errDeadlock         = 1213
	errLockWaitTimeout  = 1205
	errDuplicateEntry   = 1062
	orderNumberKeyIndex = "uq_orders_number"
)

var orderColumns = []string{
	"id", "orderNumber", "sellerId",
	"customerName", "customerEmail", "customerPhone",
	"street", "city", "postalCode", "country",
	"subtotal", "shipping", "tax", "total",
	"status", "paymentStatus", "paymentMethod", "customerNotes",
	"trackingCarrier", "trackingNumber", "trackingUrl",
	"createdAt", "updatedAt", "shippedAt", "deliveredAt",
}

var itemColumns = []string{"orderId", "productId", "productName", "unitPrice", "quantity", "lineTotal"}

var productColumns = []string{"id", "sellerId", "name", "price", "stock", "updatedAt"}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) RunInTx(ctx context.Context, fn store.TxFunc) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return classify(fmt.Errorf("beginning transaction: %w", err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(ctx, &mysqlTx{tx: tx}); err != nil {
		return classify(err)
	}
	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("committing transaction: %w", err))
	}
	return nil
}

// classify maps driver errors onto the retryable sentinels and leaves
// everything else untouched.
func classify(err error) error {
	var mysqlErr *driver.MySQLError
	if !errors.As(err, &mysqlErr) {
		return err
	}
	switch mysqlErr.Number {
	case errDeadlock, errLockWaitTimeout:
		return fmt.Errorf("%w: %v", apperrors.ErrTxConflict, err)
	case errDuplicateEntry:
		if strings.Contains(mysqlErr.Message, orderNumberKeyIndex) {
			return fmt.Errorf("%w: %v", apperrors.ErrDuplicateOrderNumber, err)
		}
		return fmt.Errorf("%w: %v", apperrors.ErrTxConflict, err)
	}
	return err
}

type mysqlTx struct {
	tx *sql.Tx
}

func (t *mysqlTx) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	query, args, err := sq.Select(productColumns...).
		From("Products").
		Where(sq.Eq{"id": id}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building product query: %w", err)
	}

	p, err := scanProduct(t.tx.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("product %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying product %s: %w", id, err)
	}
	return p, nil
}

func (t *mysqlTx) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	query, args, err := sq.Select(orderColumns...).
		From("Orders").
		Where(sq.Eq{"id": id}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building order query: %w", err)
	}

	order, err := scanOrder(t.tx.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("order %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying order %s: %w", id, err)
	}

	items, err := loadItems(ctx, t.tx, []string{id})
	if err != nil {
		return nil, err
	}
	order.Items = items[id]
	return order, nil
}

func (t *mysqlTx) CreateOrder(ctx context.Context, o *domain.Order) error {
	var carrier, number, url sql.NullString
	if o.Tracking != nil {
		carrier = sql.NullString{String: o.Tracking.Carrier, Valid: true}
		number = sql.NullString{String: o.Tracking.TrackingNumber, Valid: true}
		url = sql.NullString{String: o.Tracking.URL, Valid: o.Tracking.URL != ""}
	}

	query, args, err := sq.Insert("Orders").
		Columns(orderColumns...).
		Values(
			o.ID, o.OrderNumber, o.SellerID,
			o.Customer.Name, o.Customer.Email, o.Customer.Phone,
			o.Customer.Address.Street, o.Customer.Address.City, o.Customer.Address.PostalCode, o.Customer.Address.Country,
			o.Subtotal, o.Shipping, o.Tax, o.Total,
			string(o.Status), string(o.PaymentStatus), string(o.PaymentMethod), o.CustomerNotes,
			carrier, number, url,
			o.CreatedAt, o.UpdatedAt, nullTime(o.ShippedAt), nullTime(o.DeliveredAt),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("building order insert: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}

	if len(o.Items) == 0 {
		return nil
	}
	insert := sq.Insert("OrderItems").Columns(append([]string{"position"}, itemColumns...)...)
	for i, item := range o.Items {
		insert = insert.Values(i, o.ID, item.ProductID, item.ProductName, item.UnitPrice, item.Quantity, item.LineTotal)
	}
	query, args, err = insert.ToSql()
	if err != nil {
		return fmt.Errorf("building order items insert: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting order items: %w", err)
	}
	return nil
}

func (t *mysqlTx) SetProductStock(ctx context.Context, productID string, stock int, updatedAt time.Time) error {
	query, args, err := sq.Update("Products").
		Set("stock", stock).
		Set("updatedAt", updatedAt).
		Where(sq.Eq{"id": productID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building stock update: %w", err)
	}

	result, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating stock: %w", err)
	}
	return requireRow(result, fmt.Sprintf("product %s not found", productID))
}

func (t *mysqlTx) UpdateOrder(ctx context.Context, o *domain.Order) error {
	update := sq.Update("Orders").
		Set("status", string(o.Status)).
		Set("paymentStatus", string(o.PaymentStatus)).
		Set("updatedAt", o.UpdatedAt).
		Set("shippedAt", nullTime(o.ShippedAt)).
		Set("deliveredAt", nullTime(o.DeliveredAt))
	if o.Tracking != nil {
		update = update.
			Set("trackingCarrier", o.Tracking.Carrier).
			Set("trackingNumber", o.Tracking.TrackingNumber).
			Set("trackingUrl", sql.NullString{String: o.Tracking.URL, Valid: o.Tracking.URL != ""})
	}

	query, args, err := update.Where(sq.Eq{"id": o.ID}).ToSql()
	if err != nil {
		return fmt.Errorf("building order update: %w", err)
	}

	result, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating order: %w", err)
	}
	return requireRow(result, fmt.Sprintf("order %s not found", o.ID))
}

// requireRow treats zero matched rows as a missing record. The connection
// must use clientFoundRows so unchanged rows still count as matched.
func requireRow(result sql.Result, missing string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.NewNotFoundError(missing)
	}
	return nil
}

func (s *Store) FindOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	query, args, err := sq.Select(orderColumns...).From("Orders").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building order query: %w", err)
	}

	order, err := scanOrder(s.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("order %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying order %s: %w", id, err)
	}

	items, err := loadItems(ctx, s.db, []string{id})
	if err != nil {
		return nil, err
	}
	order.Items = items[id]
	return order, nil
}

func (s *Store) ListOrdersBySeller(ctx context.Context, sellerID string, page store.Page) ([]domain.Order, error) {
	return s.listOrders(ctx, sq.Eq{"sellerId": sellerID}, page)
}

func (s *Store) ListOrdersByCustomerEmail(ctx context.Context, email string, page store.Page) ([]domain.Order, error) {
	return s.listOrders(ctx, sq.Eq{"customerEmail": email}, page)
}

func (s *Store) listOrders(ctx context.Context, where sq.Eq, page store.Page) ([]domain.Order, error) {
	page = page.Normalize()
	query, args, err := sq.Select(orderColumns...).
		From("Orders").
		Where(where).
		OrderBy("createdAt DESC", "orderNumber DESC").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building order list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	var ids []string
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		orders = append(orders, *o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating orders: %w", err)
	}

	if len(ids) == 0 {
		return orders, nil
	}
	items, err := loadItems(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func (s *Store) FindProductsByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}

	query, args, err := sq.Select(productColumns...).
		From("Products").
		Where(sq.Eq{"id": ids}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building product query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying products: %w", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating products: %w", err)
	}
	return products, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type scanner interface {
	Scan(dest ...any) error
}

func loadItems(ctx context.Context, q queryer, orderIDs []string) (map[string][]domain.LineItem, error) {
	query, args, err := sq.Select(itemColumns...).
		From("OrderItems").
		Where(sq.Eq{"orderId": orderIDs}).
		OrderBy("orderId", "position").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building order items query: %w", err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying order items: %w", err)
	}
	defer rows.Close()

	items := make(map[string][]domain.LineItem, len(orderIDs))
	for rows.Next() {
		var orderID string
		var item domain.LineItem
		if err := rows.Scan(&orderID, &item.ProductID, &item.ProductName, &item.UnitPrice, &item.Quantity, &item.LineTotal); err != nil {
			return nil, fmt.Errorf("scanning order item: %w", err)
		}
		items[orderID] = append(items[orderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating order items: %w", err)
	}
	return items, nil
}

func scanProduct(row scanner) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(&p.ID, &p.SellerID, &p.Name, &p.Price, &p.Stock, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanOrder(row scanner) (*domain.Order, error) {
	var (
		o                     domain.Order
		status, payment, meth string
		notes                 sql.NullString
		carrier, number, url  sql.NullString
		shippedAt, delivered  sql.NullTime
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.SellerID,
		&o.Customer.Name, &o.Customer.Email, &o.Customer.Phone,
		&o.Customer.Address.Street, &o.Customer.Address.City, &o.Customer.Address.PostalCode, &o.Customer.Address.Country,
		&o.Subtotal, &o.Shipping, &o.Tax, &o.Total,
		&status, &payment, &meth, &notes,
		&carrier, &number, &url,
		&o.CreatedAt, &o.UpdatedAt, &shippedAt, &delivered,
	)
	if err != nil {
		return nil, err
	}

	o.Status = domain.OrderStatus(status)
	o.PaymentStatus = domain.PaymentStatus(payment)
	o.PaymentMethod = domain.PaymentMethod(meth)
	o.CustomerNotes = notes.String
	if carrier.Valid || number.Valid {
		o.Tracking = &domain.Tracking{Carrier: carrier.String, TrackingNumber: number.String, URL: url.String}
	}
	if shippedAt.Valid {
		at := shippedAt.Time
		o.ShippedAt = &at
	}
	if delivered.Valid {
		at := delivered.Time
		o.DeliveredAt = &at
	}
	return &o, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
