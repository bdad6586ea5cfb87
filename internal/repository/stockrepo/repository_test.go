package stockrepo_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"milsupply/internal/domain"
	apperror "milsupply/internal/errors"
	"milsupply/internal/pkg/logger"
	"milsupply/internal/repository/stockrepo"
)

func newRepo(t *testing.T) (*stockrepo.StockRepository, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db := sqlx.NewDb(mockDB, "postgres")
	return stockrepo.NewStockRepository(db, 5*time.Second, logger.NewLogger("error")), mock
}

var resourceCols = []string{
	"id", "name", "category_id", "quantity", "unit_of_measure", "low_stock_threshold",
	"expiration_date", "cost", "supplier", "supplier_phone", "description", "created_at", "updated_at",
}

func TestLockResource_UsesForUpdate(t *testing.T) {
	repo, mock := newRepo(t)
	now := time.Now()

	mock.ExpectQuery(`FROM resources\s+WHERE id = \$1 FOR UPDATE`).
		WithArgs("res-1").
		WillReturnRows(sqlmock.NewRows(resourceCols).
			AddRow("res-1", "Бинт", "cat-1", 40, "шт", 10, nil, "12.50", "", "", "", now, now))

	res, err := repo.LockResource(context.Background(), "res-1")

	require.NoError(t, err)
	assert.Equal(t, 40, res.Quantity)
	assert.Equal(t, "12.5", res.Cost.Decimal.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetResource_NotFound(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery(`FROM resources`).WithArgs("missing").WillReturnRows(sqlmock.NewRows(resourceCols))

	_, err := repo.GetResource(context.Background(), "missing")

	var notFound *apperror.NotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestUpdateQuantity_NoRowsIsNotFound(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE resources")).
		WithArgs(5, sqlmock.AnyArg(), "res-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateQuantity(context.Background(), "res-1", 5)

	var notFound *apperror.NotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestInsertTransaction_DriverFailureIsStorageError(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO resource_transactions")).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.InsertTransaction(context.Background(), domain.StockTransaction{
		ID: "tx-1", ResourceID: "res-1", Type: domain.TransactionIssue, Quantity: 3, Date: time.Now(),
	})

	var storage *apperror.StorageError
	require.True(t, errors.As(err, &storage))
	assert.Equal(t, "STORAGE_ERROR", storage.Category())
}

func TestListTransactions_BuildsFiltersAndLimit(t *testing.T) {
	repo, mock := newRepo(t)
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`WHERE t\.resource_id = \$1 AND t\.transaction_date >= \$2 AND LOWER\(t\.recipient_department\) = LOWER\(\$3\)\s+ORDER BY t\.transaction_date DESC, t\.id DESC\s+LIMIT \$4`).
		WithArgs("res-1", from, "1-й батальйон", 50).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "resource_id", "resource_name", "transaction_type", "quantity_changed", "transaction_date",
			"recipient_department", "issued_by_user_id", "requisition_item_id", "notes",
		}).AddRow("tx-2", "res-1", "Бинт", "issue", 4, from.Add(time.Hour), "1-й батальйон", "", "item-1", ""))

	history, err := repo.ListTransactions(context.Background(), domain.HistoryFilter{
		ResourceID: "res-1",
		Department: "1-й батальйон",
		From:       from,
		Limit:      50,
	})

	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, -4, history[0].SignedQuantity())
	require.NotNil(t, history[0].LinkedItemID)
	assert.Equal(t, "item-1", *history[0].LinkedItemID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListTransactions_WithoutFiltersReturnsRecent(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery(`JOIN resources r ON r\.id = t\.resource_id\s+ORDER BY`).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	history, err := repo.ListTransactions(context.Background(), domain.HistoryFilter{Limit: 10})

	require.NoError(t, err)
	assert.Empty(t, history)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplayQuantity_SumsSignedHistory(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("CASE WHEN t.transaction_type IN ('receipt', 'return')")).
		WithArgs("res-1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(17))

	replayed, err := repo.ReplayQuantity(context.Background(), "res-1")

	require.NoError(t, err)
	assert.Equal(t, 17, replayed)
}
