package errors_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	apperror "milsupply/internal/errors"
)

func TestDescribe_Categories(t *testing.T) {
	cases := []struct {
		err      error
		category string
	}{
		{apperror.NewValidationError("x"), "VALIDATION_ERROR"},
		{apperror.NewInvalidQuantityError(0), "VALIDATION_ERROR"},
		{apperror.NewNotFoundError("x"), "NOT_FOUND"},
		{apperror.NewInsufficientStockError("r-1", 40, 60), "INSUFFICIENT_STOCK"},
		{apperror.NewAlreadyFinalizedError("x"), "ALREADY_FINALIZED"},
		{apperror.NewUnlinkedResourceError("i-1"), "UNLINKED_RESOURCE"},
		{apperror.NewInvalidTransactionTypeError("gift"), "INVALID_TRANSACTION_TYPE"},
		{apperror.NewConflictError("x"), "CONFLICT"},
		{apperror.NewForbiddenError("x"), "FORBIDDEN"},
		{apperror.NewUnauthorizedError("x"), "UNAUTHORIZED"},
		{apperror.NewDBError("x", sql.ErrConnDone), "STORAGE_ERROR"},
		{apperror.NewInternalError("x", nil), "INTERNAL_ERROR"},
		{errors.New("boom"), "UNKNOWN_ERROR"},
	}

	for _, tc := range cases {
		t.Run(tc.category, func(t *testing.T) {
			assert.Equal(t, tc.category, apperror.Describe(tc.err).Category)
		})
	}
}

func TestDescribe_InsufficientStockMessage(t *testing.T) {
	resp := apperror.Describe(fmt.Errorf("atendimento: %w", apperror.NewInsufficientStockError("r-1", 40, 60)))

	assert.Equal(t, "INSUFFICIENT_STOCK", resp.Category)
	assert.Contains(t, resp.Message, "disponível 40, solicitado 60")
}

func TestStorageError_UnwrapsDriverError(t *testing.T) {
	err := apperror.NewDBError("Falha ao atualizar saldo", sql.ErrTxDone)

	assert.True(t, errors.Is(err, sql.ErrTxDone))
}

func TestNormalize(t *testing.T) {
	typed := apperror.NewConflictError("x")
	assert.Same(t, typed, apperror.Normalize("falha", fmt.Errorf("wrap: %w", typed)))

	raw := errors.New("boom")
	normalized := apperror.Normalize("falha", raw)
	var internal *apperror.InternalError
	assert.True(t, errors.As(normalized, &internal))
	assert.True(t, errors.Is(normalized, raw))

	assert.Nil(t, apperror.Normalize("falha", nil))
}
