package mysql

import (
	"testing"
	"time"

	driver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host:     "db.internal",
		Port:     3307,
		User:     "shop",
		Password: "p@ss",
		Name:     "storefront",
	})

	parsed, err := driver.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "db.internal:3307", parsed.Addr)
	assert.Equal(t, "shop", parsed.User)
	assert.Equal(t, "p@ss", parsed.Passwd)
	assert.Equal(t, "storefront", parsed.DBName)
	assert.True(t, parsed.ParseTime)
	assert.Equal(t, time.UTC, parsed.Loc)
	assert.True(t, parsed.ClientFoundRows)
}

func TestMigrationsAreEmbedded(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}
