package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureCartUpserts(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCartRepository(db)

	now := time.Now()
	mock.ExpectQuery(`(?s)INSERT INTO carts .*ON CONFLICT \(user_id\)`).
		WithArgs(sqlmock.AnyArg(), "u1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "created_at"}).AddRow("c1", "u1", now))

	cart, err := repo.Ensure(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "c1", cart.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddItemAccumulatesQuantity(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCartRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity")).
		WithArgs("c1", "v1", 2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.AddItem(context.Background(), "c1", "v1", 2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetQuantityAndRemoveReportMissingLines(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCartRepository(db)

	mock.ExpectExec("UPDATE cart_items SET quantity").WithArgs("c1", "v9", 3).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM cart_items WHERE cart_id = \\$1 AND variant_id").WithArgs("c1", "v1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT variant_id, quantity, added_at FROM cart_items").WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"variant_id", "quantity", "added_at"}))

	ok, err := repo.SetQuantity(context.Background(), "c1", "v9", 3)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.RemoveItem(context.Background(), "c1", "v1")
	require.NoError(t, err)
	assert.True(t, ok)

	items, err := repo.Items(context.Background(), "c1")
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}
