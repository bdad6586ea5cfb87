package errors

import (
	stderrors "errors"
	"fmt"

	"milsupply/internal/domain"
)

// AppError é a interface central para todos os erros customizados do sistema.
// Ela permite que a camada de apresentação acesse a Categoria e a Mensagem do erro.
type AppError interface {
	Error() string    // Implementa a interface error padrão do Go
	Category() string // Categoria do erro (e.g., "VALIDATION_ERROR", "NOT_FOUND", "INSUFFICIENT_STOCK")
	Unwrap() error    // Permite encapsular erros subjacentes (original error)
}

// --- Tipos de Erro Específicos (Erros de Domínio) ---

// ValidationError representa falhas de validação de dados de entrada.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string    { return fmt.Sprintf("Erro de Validação: %s", e.Msg) }
func (e *ValidationError) Category() string { return "VALIDATION_ERROR" }
func (e *ValidationError) Unwrap() error    { return nil } // Não encapsula erro subjacente

// NewValidationError cria um novo erro de validação.
func NewValidationError(msg string) AppError {
	return &ValidationError{Msg: msg}
}

// NewInvalidQuantityError é o erro de validação para quantidades não positivas.
func NewInvalidQuantityError(quantity int) AppError {
	return &ValidationError{Msg: fmt.Sprintf("A quantidade deve ser maior que zero (recebido %d).", quantity)}
}

// NotFoundError representa a ausência de um registro solicitado.
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string    { return fmt.Sprintf("Registro não encontrado: %s", e.Msg) }
func (e *NotFoundError) Category() string { return "NOT_FOUND" }
func (e *NotFoundError) Unwrap() error    { return nil }

// NewNotFoundError cria um novo erro de registro não encontrado.
func NewNotFoundError(msg string) AppError {
	return &NotFoundError{Msg: msg}
}

// InsufficientStockError: a operação deixaria o saldo do recurso negativo.
type InsufficientStockError struct {
	ResourceID string
	Available  int
	Requested  int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Estoque insuficiente para o recurso %s: disponível %d, solicitado %d.", e.ResourceID, e.Available, e.Requested)
}
func (e *InsufficientStockError) Category() string { return "INSUFFICIENT_STOCK" }
func (e *InsufficientStockError) Unwrap() error    { return nil }

// NewInsufficientStockError cria o erro com o saldo disponível e a quantidade pedida.
func NewInsufficientStockError(resourceID string, available, requested int) AppError {
	return &InsufficientStockError{ResourceID: resourceID, Available: available, Requested: requested}
}

// AlreadyFinalizedError: o item (ou a requisição) já está em estado terminal.
type AlreadyFinalizedError struct {
	Msg string
}

func (e *AlreadyFinalizedError) Error() string    { return fmt.Sprintf("Registro já finalizado: %s", e.Msg) }
func (e *AlreadyFinalizedError) Category() string { return "ALREADY_FINALIZED" }
func (e *AlreadyFinalizedError) Unwrap() error    { return nil }

func NewAlreadyFinalizedError(msg string) AppError {
	return &AlreadyFinalizedError{Msg: msg}
}

// UnlinkedResourceError: item em texto livre, sem vínculo com o catálogo, não pode ser baixado automaticamente.
type UnlinkedResourceError struct {
	ItemID string
}

func (e *UnlinkedResourceError) Error() string {
	return fmt.Sprintf("O item %s não está vinculado a um recurso do catálogo. Cadastre o recurso antes de atender.", e.ItemID)
}
func (e *UnlinkedResourceError) Category() string { return "UNLINKED_RESOURCE" }
func (e *UnlinkedResourceError) Unwrap() error    { return nil }

func NewUnlinkedResourceError(itemID string) AppError {
	return &UnlinkedResourceError{ItemID: itemID}
}

// InvalidTransactionTypeError: tipo de movimentação fora dos quatro reconhecidos.
type InvalidTransactionTypeError struct {
	Type string
}

func (e *InvalidTransactionTypeError) Error() string {
	return fmt.Sprintf("Tipo de movimentação inválido: %q. Tipos aceitos: receipt, issue, writeoff, return.", e.Type)
}
func (e *InvalidTransactionTypeError) Category() string { return "INVALID_TRANSACTION_TYPE" }
func (e *InvalidTransactionTypeError) Unwrap() error    { return nil }

func NewInvalidTransactionTypeError(t string) AppError {
	return &InvalidTransactionTypeError{Type: t}
}

// ConflictError representa um conflito na regra de negócio (e.g., transição de estado inválida, registro duplicado).
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string    { return fmt.Sprintf("Conflito de estado: %s", e.Msg) }
func (e *ConflictError) Category() string { return "CONFLICT" }
func (e *ConflictError) Unwrap() error    { return nil }

// NewConflictError cria um novo erro de conflito.
func NewConflictError(msg string) AppError {
	return &ConflictError{Msg: msg}
}

// ForbiddenError: o ator não tem o papel exigido pela operação.
type ForbiddenError struct {
	Msg string
}

func (e *ForbiddenError) Error() string    { return fmt.Sprintf("Acesso negado: %s", e.Msg) }
func (e *ForbiddenError) Category() string { return "FORBIDDEN" }
func (e *ForbiddenError) Unwrap() error    { return nil }

func NewForbiddenError(msg string) AppError {
	return &ForbiddenError{Msg: msg}
}

// UnauthorizedError: credenciais ausentes ou inválidas.
type UnauthorizedError struct {
	Msg string
}

func (e *UnauthorizedError) Error() string    { return fmt.Sprintf("Não autorizado: %s", e.Msg) }
func (e *UnauthorizedError) Category() string { return "UNAUTHORIZED" }
func (e *UnauthorizedError) Unwrap() error    { return nil }

func NewUnauthorizedError(msg string) AppError {
	return &UnauthorizedError{Msg: msg}
}

// --- Tipos de Erro de Infraestrutura (Encapsulamento) ---

// StorageError representa falhas da camada de persistência (driver SQL, commit, timeout).
// A unidade atômica que o produziu já foi desfeita (rollback); nunca é repetida automaticamente.
type StorageError struct {
	Msg string
	Err error // Erro original subjacente (e.g., erro do driver SQL)
}

func (e *StorageError) Error() string    { return fmt.Sprintf("Erro de Armazenamento: %s", e.Msg) }
func (e *StorageError) Category() string { return "STORAGE_ERROR" }
func (e *StorageError) Unwrap() error    { return e.Err }

// NewDBError é um atalho para criar um StorageError a partir de uma falha no DB.
func NewDBError(msg string, err error) AppError {
	return &StorageError{Msg: fmt.Sprintf("%s (DB): %s", msg, err.Error()), Err: err}
}

// InternalError representa falhas inesperadas no serviço.
type InternalError struct {
	Msg string
	Err error
}

func (e *InternalError) Error() string    { return fmt.Sprintf("Erro Interno: %s", e.Msg) }
func (e *InternalError) Category() string { return "INTERNAL_ERROR" }
func (e *InternalError) Unwrap() error    { return e.Err }

// NewInternalError cria um erro interno (para falhas de lógica ou código não esperado).
func NewInternalError(msg string, err error) AppError {
	return &InternalError{Msg: msg, Err: err}
}

// --- Helpers ---

// AsAppError extrai o AppError da cadeia de erros, se houver.
func AsAppError(err error) (AppError, bool) {
	var appErr AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Normalize devolve erros tipados sem alteração e encapsula o resto em InternalError.
func Normalize(msg string, err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	return NewInternalError(msg, err)
}

// Describe traduz um erro na resposta exibida ao operador.
func Describe(err error) domain.ErrorResponse {
	if appErr, ok := AsAppError(err); ok {
		// O erro é tipado (ValidationError, InsufficientStockError, etc.)
		return domain.ErrorResponse{Category: appErr.Category(), Message: appErr.Error()}
	}

	// Erro não tipado: tratar como erro interno genérico.
	return domain.ErrorResponse{Category: "UNKNOWN_ERROR", Message: "Ocorreu um erro inesperado."}
}
