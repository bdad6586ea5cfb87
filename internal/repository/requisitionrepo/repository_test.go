package requisitionrepo_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"milsupply/internal/domain"
	apperror "milsupply/internal/errors"
	"milsupply/internal/pkg/logger"
	"milsupply/internal/repository/requisitionrepo"
	"milsupply/internal/service/rollup"
)

func newRepo(t *testing.T) (*requisitionrepo.RequisitionRepository, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	return requisitionrepo.NewRequisitionRepository(sqlx.NewDb(mockDB, "postgres"), 5*time.Second, logger.NewLogger("error")), mock
}

func TestNextSequence_UpsertsPeriod(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (period) DO UPDATE SET last_value = requisition_sequences.last_value + 1")).
		WithArgs("202403").
		WillReturnRows(sqlmock.NewRows([]string{"last_value"}).AddRow(12))

	seq, err := repo.NextSequence(context.Background(), "202403")

	require.NoError(t, err)
	assert.Equal(t, 12, seq)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRequisition_DuplicateNumberIsConflict(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO requisitions")).WillReturnError(&pq.Error{Code: "23505"})

	err := repo.InsertRequisition(context.Background(), domain.Requisition{ID: "r-1", Number: "REQ-202403-0001"})

	var conflict *apperror.ConflictError
	assert.True(t, errors.As(err, &conflict))
}

func TestLockItem_ScansNullableResource(t *testing.T) {
	repo, mock := newRepo(t)
	cols := []string{"id", "requisition_id", "resource_id", "requested_resource_name", "quantity_requested",
		"quantity_issued", "unit_of_measure", "justification", "item_status"}

	mock.ExpectQuery(`FROM requisition_items WHERE id = \$1 FOR UPDATE`).
		WithArgs("item-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("item-1", "r-1", nil, "Тепловізор", 2, 0, "", "", "pending"))

	item, err := repo.LockItem(context.Background(), "item-1")

	require.NoError(t, err)
	assert.False(t, item.IsLinked())
	assert.Equal(t, domain.ItemPending, item.Status)
}

func TestUpdateItemProgress_MissingItemIsNotFound(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE requisition_items SET quantity_issued = $1, item_status = $2 WHERE id = $3")).
		WithArgs(10, "fulfilled", "item-x").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateItemProgress(context.Background(), "item-x", 10, domain.ItemFulfilled)

	var notFound *apperror.NotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestQueryRequisitions_SearchCoversItemNames(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery(`(?s)WHERE q\.status = \$1 AND \(q\.requisition_number ILIKE \$2 .*requested_resource_name ILIKE \$5\)\)\s+GROUP BY q\.id\s+ORDER BY q\.creation_date DESC, q\.requisition_number DESC\s+LIMIT \$6 OFFSET \$7`).
		WithArgs("new", `%50\%%`, `%50\%%`, `%50\%%`, `%50\%%`, 20, 40).
		WillReturnRows(sqlmock.NewRows([]string{"id", "requisition_number", "item_count", "fulfilled_count"}).
			AddRow("r-1", "REQ-202403-0001", 3, 1))

	rows, err := repo.QueryRequisitions(context.Background(), domain.RequisitionFilter{
		Status: domain.RequisitionNew,
		Search: "50%",
		Limit:  20,
		Offset: 40,
	})

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 3, rows[0].ItemCount)
	assert.Equal(t, 1, rows[0].FulfilledCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecompute_LocksRequisitionBeforeReadingItems(t *testing.T) {
	repo, mock := newRepo(t)
	now := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	cols := []string{"id", "requisition_number", "created_by_user_id", "department_requesting", "creation_date",
		"status", "urgency", "purpose_description", "notes", "updated_at", "updated_by_user_id"}

	// Expectativas do sqlmock são ordenadas: o bloqueio da requisição precisa vir antes da leitura dos itens.
	mock.ExpectQuery(`FROM requisitions q WHERE q\.id = \$1 FOR UPDATE`).
		WithArgs("r-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("r-1", "REQ-202403-0001", "u-1", "2-й батальйон", now, "partially_fulfilled", "routine", "", "", now, nil))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT item_status FROM requisition_items WHERE requisition_id = $1")).
		WithArgs("r-1").
		WillReturnRows(sqlmock.NewRows([]string{"item_status"}).AddRow("fulfilled").AddRow("fulfilled"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE requisitions")).
		WithArgs("fulfilled", sqlmock.AnyArg(), "admin-1", "r-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	status, err := rollup.Recompute(context.Background(), repo, logger.NewLogger("error"), "r-1", "admin-1")

	require.NoError(t, err)
	assert.Equal(t, domain.RequisitionFulfilled, status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
