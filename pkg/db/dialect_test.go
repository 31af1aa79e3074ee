package db

import (
	"testing"

	"github.com/smallbiznis/lexcredit/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialect(t *testing.T) {
	pg, err := Dialect(config.Config{DBType: "postgres", DBHost: "localhost", DBName: "lexcredit"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", pg.Name())

	lite, err := Dialect(config.Config{DBType: "sqlite"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", lite.Name())
}

func TestDialectRejectsStoresWithoutUpsertSupport(t *testing.T) {
	for _, dbType := range []string{"mysql", "sqlserver", ""} {
		_, err := Dialect(config.Config{DBType: dbType})
		assert.ErrorIs(t, err, ErrUnsupportedDialect, dbType)
	}
}
