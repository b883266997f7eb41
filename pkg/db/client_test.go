package db

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/iliria/erp-backend/pkg/config"
)

type counter struct {
	ID    int
	Label string
}

func openClient(t *testing.T) *Client {
	t.Helper()
	c, err := New(context.Background(), config.DBConfig{Driver: "sqlite", DSN: "file::memory:", MaxOpenConns: 1}, nil)
	require.NoError(t, err)
	require.NoError(t, c.DB().AutoMigrate(&counter{}))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func rows(t *testing.T, c *Client) int64 {
	t.Helper()
	var n int64
	require.NoError(t, c.DB().Model(&counter{}).Count(&n).Error)
	return n
}

func TestWithTxCommitsOnSuccess(t *testing.T) {
	c := openClient(t)
	err := c.WithTx(context.Background(), func(tx *gorm.DB) error {
		return tx.Create(&counter{Label: "kept"}).Error
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows(t, c))
}

func TestWithTxRollsBackOnErrorAndPanic(t *testing.T) {
	c := openClient(t)
	boom := errors.New("boom")

	err := c.WithTx(context.Background(), func(tx *gorm.DB) error {
		require.NoError(t, tx.Create(&counter{Label: "dropped"}).Error)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	assert.Panics(t, func() {
		_ = c.WithTx(context.Background(), func(tx *gorm.DB) error {
			require.NoError(t, tx.Create(&counter{Label: "dropped"}).Error)
			panic("mid-transaction")
		})
	})
	assert.Zero(t, rows(t, c))
}

func TestNewRequiresDSN(t *testing.T) {
	_, err := New(context.Background(), config.DBConfig{}, nil)
	assert.Error(t, err)
}

func TestDialectAndForUpdate(t *testing.T) {
	c := openClient(t)
	assert.NoError(t, c.Ping(context.Background()))
	assert.Equal(t, DialectSQLite, Dialect(c.DB()))
	assert.Empty(t, Dialect(nil))
	assert.Same(t, c.DB(), ForUpdate(c.DB()))

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	assert.Equal(t, DialectSQLite, Dialect(Wrap(conn).DB()))
}
