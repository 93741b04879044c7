package store

import (
	"path/filepath"
	"testing"

	"github.com/GiorgiUbiria/investment_wallet/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDB(t *testing.T) {
	t.Run("UnsupportedDriver", func(t *testing.T) {
		_, err := NewDB("oracle", "x", false)
		assert.ErrorContains(t, err, "unsupported db driver")
	})

	t.Run("SqliteMigrates", func(t *testing.T) {
		db, err := NewDB("sqlite", filepath.Join(t.TempDir(), "test.db"), false)
		require.NoError(t, err)
		defer Close(db)

		require.NoError(t, DBMigrate(db))
		for _, m := range models.All() {
			assert.True(t, db.Migrator().HasTable(m))
		}
	})
}
