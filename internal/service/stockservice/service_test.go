package stockservice_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"milsupply/internal/domain"
	apperror "milsupply/internal/errors"
	"milsupply/internal/pkg/logger"
	"milsupply/internal/service/stockservice"
)

// MockStockRepository é uma implementação mock da interface StockRepository
type MockStockRepository struct {
	mock.Mock
}

func (m *MockStockRepository) GetResource(ctx context.Context, id string) (domain.Resource, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Resource), args.Error(1)
}

func (m *MockStockRepository) LockResource(ctx context.Context, id string) (domain.Resource, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Resource), args.Error(1)
}

func (m *MockStockRepository) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	args := m.Called(ctx, id, quantity)
	return args.Error(0)
}

func (m *MockStockRepository) InsertTransaction(ctx context.Context, t domain.StockTransaction) (domain.StockTransaction, error) {
	args := m.Called(ctx, t)
	return args.Get(0).(domain.StockTransaction), args.Error(1)
}

func (m *MockStockRepository) ListTransactions(ctx context.Context, filter domain.HistoryFilter) ([]domain.StockTransaction, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.StockTransaction), args.Error(1)
}

func (m *MockStockRepository) SummarizeTransactions(ctx context.Context, filter domain.SummaryFilter) ([]domain.TransactionSummary, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.TransactionSummary), args.Error(1)
}

func (m *MockStockRepository) ReplayQuantity(ctx context.Context, resourceID string) (int, error) {
	args := m.Called(ctx, resourceID)
	return args.Int(0), args.Error(1)
}

// passthroughTx executa a unidade sem banco; serve para os testes com mock.
type passthroughTx struct{}

func (passthroughTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newMockService() (*stockservice.Service, *MockStockRepository) {
	repo := new(MockStockRepository)
	return stockservice.NewService(repo, passthroughTx{}, logger.NewLogger("error")), repo
}

func TestApplyTransaction_Success_Receipt(t *testing.T) {
	svc, repo := newMockService()
	ctx := context.Background()
	resourceID := uuid.NewString()

	repo.On("LockResource", ctx, resourceID).Return(domain.Resource{ID: resourceID, Name: "Набої 5.45", Quantity: 100}, nil)
	repo.On("UpdateQuantity", ctx, resourceID, 150).Return(nil)
	repo.On("InsertTransaction", ctx, mock.MatchedBy(func(tx domain.StockTransaction) bool {
		return tx.ResourceID == resourceID && tx.Type == domain.TransactionReceipt && tx.Quantity == 50 && tx.LinkedItemID == nil
	})).Return(domain.StockTransaction{ID: "tx-1", ResourceID: resourceID, Type: domain.TransactionReceipt, Quantity: 50}, nil)

	record, err := svc.ApplyTransaction(ctx, domain.TransactionRequest{
		ResourceID: resourceID,
		Type:       domain.TransactionReceipt,
		Quantity:   50,
		ActorID:    "admin-1",
	})

	assert.NoError(t, err)
	assert.Equal(t, "tx-1", record.ID)
	repo.AssertExpectations(t)
}

func TestApplyTransaction_InsufficientStock_WritesNothing(t *testing.T) {
	svc, repo := newMockService()
	ctx := context.Background()
	resourceID := uuid.NewString()

	repo.On("LockResource", ctx, resourceID).Return(domain.Resource{ID: resourceID, Quantity: 150}, nil)

	_, err := svc.ApplyTransaction(ctx, domain.TransactionRequest{
		ResourceID: resourceID,
		Type:       domain.TransactionIssue,
		Quantity:   200,
	})

	var insufficient *apperror.InsufficientStockError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 150, insufficient.Available)
	assert.Equal(t, 200, insufficient.Requested)
	repo.AssertNotCalled(t, "UpdateQuantity", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "InsertTransaction", mock.Anything, mock.Anything)
}

func TestApplyTransaction_ValidationFailsBeforeStorage(t *testing.T) {
	resourceID := uuid.NewString()
	cases := []struct {
		name     string
		req      domain.TransactionRequest
		category string
	}{
		{"tipo desconhecido", domain.TransactionRequest{ResourceID: resourceID, Type: "transfer", Quantity: 1}, "INVALID_TRANSACTION_TYPE"},
		{"quantidade zero", domain.TransactionRequest{ResourceID: resourceID, Type: domain.TransactionIssue, Quantity: 0}, "VALIDATION_ERROR"},
		{"quantidade negativa", domain.TransactionRequest{ResourceID: resourceID, Type: domain.TransactionReceipt, Quantity: -5}, "VALIDATION_ERROR"},
		{"recurso com ID malformado", domain.TransactionRequest{ResourceID: "abc", Type: domain.TransactionReceipt, Quantity: 5}, "NOT_FOUND"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, repo := newMockService()

			_, err := svc.ApplyTransaction(context.Background(), tc.req)

			appErr, ok := apperror.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, tc.category, appErr.Category())
			repo.AssertNotCalled(t, "LockResource", mock.Anything, mock.Anything)
		})
	}
}

func TestApplyTransaction_UnknownResource(t *testing.T) {
	svc, repo := newMockService()
	ctx := context.Background()
	resourceID := uuid.NewString()

	repo.On("LockResource", ctx, resourceID).Return(domain.Resource{}, apperror.NewNotFoundError("Recurso com ID "+resourceID+" não existe."))

	_, err := svc.ApplyTransaction(ctx, domain.TransactionRequest{ResourceID: resourceID, Type: domain.TransactionWriteOff, Quantity: 1})

	var notFound *apperror.NotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestApplyTransaction_StorageErrorPropagates(t *testing.T) {
	svc, repo := newMockService()
	ctx := context.Background()
	resourceID := uuid.NewString()

	repo.On("LockResource", ctx, resourceID).Return(domain.Resource{ID: resourceID, Quantity: 10}, nil)
	repo.On("UpdateQuantity", ctx, resourceID, 15).Return(nil)
	repo.On("InsertTransaction", ctx, mock.Anything).Return(domain.StockTransaction{}, apperror.NewDBError("Falha ao inserir movimentação", errors.New("disk full")))

	_, err := svc.ApplyTransaction(ctx, domain.TransactionRequest{ResourceID: resourceID, Type: domain.TransactionReturn, Quantity: 5})

	var storage *apperror.StorageError
	assert.True(t, errors.As(err, &storage))
}

func TestApplyTransaction_RecordsLinkedItemAndClock(t *testing.T) {
	svc, repo := newMockService()
	fixed := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return fixed })
	ctx := context.Background()
	resourceID := uuid.NewString()

	repo.On("LockResource", ctx, resourceID).Return(domain.Resource{ID: resourceID, Quantity: 10}, nil)
	repo.On("UpdateQuantity", ctx, resourceID, 6).Return(nil)
	repo.On("InsertTransaction", ctx, mock.MatchedBy(func(tx domain.StockTransaction) bool {
		return tx.LinkedItemID != nil && *tx.LinkedItemID == "item-9" && tx.Date.Equal(fixed) && tx.RecipientDepartment == "2-га рота"
	})).Return(domain.StockTransaction{ID: "tx-2"}, nil)

	_, err := svc.ApplyTransaction(ctx, domain.TransactionRequest{
		ResourceID:          resourceID,
		Type:                domain.TransactionIssue,
		Quantity:            4,
		RecipientDepartment: "2-га рота",
		LinkedItemID:        "item-9",
	})

	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestGetQuantity_Success(t *testing.T) {
	svc, repo := newMockService()
	ctx := context.Background()
	resourceID := uuid.NewString()

	repo.On("GetResource", ctx, resourceID).Return(domain.Resource{ID: resourceID, Quantity: 42}, nil)

	qty, err := svc.GetQuantity(ctx, resourceID)

	assert.NoError(t, err)
	assert.Equal(t, 42, qty)
}

func TestHistory_DefaultsLimitAndWholeDays(t *testing.T) {
	svc, repo := newMockService()
	svc.WithHistoryLimit(25)
	ctx := context.Background()
	from := time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC)
	to := time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC)

	repo.On("ListTransactions", ctx, mock.MatchedBy(func(f domain.HistoryFilter) bool {
		return f.Limit == 25 &&
			f.From.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) &&
			f.To.Equal(time.Date(2024, 3, 2, 23, 59, 59, 999999999, time.UTC))
	})).Return([]domain.StockTransaction{}, nil)

	history, err := svc.History(ctx, domain.HistoryFilter{Department: "1-й батальйон", From: from, To: to})

	assert.NoError(t, err)
	assert.Empty(t, history)
	repo.AssertExpectations(t)
}

func TestHistory_RejectsInvertedRange(t *testing.T) {
	svc, repo := newMockService()

	_, err := svc.History(context.Background(), domain.HistoryFilter{
		From: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	})

	var validation *apperror.ValidationError
	assert.True(t, errors.As(err, &validation))
	repo.AssertNotCalled(t, "ListTransactions", mock.Anything, mock.Anything)
}

func TestSummary_IndexesByType(t *testing.T) {
	svc, repo := newMockService()
	ctx := context.Background()

	repo.On("SummarizeTransactions", ctx, domain.SummaryFilter{}).Return([]domain.TransactionSummary{
		{Type: domain.TransactionReceipt, Count: 2, TotalQuantity: 150},
		{Type: domain.TransactionIssue, Count: 1, TotalQuantity: 30},
	}, nil)

	summary, err := svc.Summary(ctx, domain.SummaryFilter{})

	require.NoError(t, err)
	assert.Equal(t, 150, summary[domain.TransactionReceipt].TotalQuantity)
	assert.Equal(t, 1, summary[domain.TransactionIssue].Count)
	_, hasWriteOff := summary[domain.TransactionWriteOff]
	assert.False(t, hasWriteOff)
}

func TestVerifyConsistency_ReportsDivergence(t *testing.T) {
	svc, repo := newMockService()
	ctx := context.Background()
	resourceID := uuid.NewString()

	repo.On("LockResource", ctx, resourceID).Return(domain.Resource{ID: resourceID, Quantity: 90}, nil)
	repo.On("ReplayQuantity", ctx, resourceID).Return(100, nil)

	check, err := svc.VerifyConsistency(ctx, resourceID)

	require.NoError(t, err)
	assert.False(t, check.Consistent)
	assert.Equal(t, 90, check.StoredQuantity)
	assert.Equal(t, 100, check.ReplayedQuantity)
}
