package stockservice

import (
	"context"
	"time"

	"github.com/google/uuid"

	"milsupply/internal/domain"
	apperror "milsupply/internal/errors"
	"milsupply/internal/pkg/logger"
)

// StockRepository define o contrato que o Stock Ledger espera da camada de Persistência.
type StockRepository interface {
	GetResource(ctx context.Context, id string) (domain.Resource, error)
	// LockResource lê o recurso bloqueando a linha até o fim da transação corrente.
	LockResource(ctx context.Context, id string) (domain.Resource, error)
	UpdateQuantity(ctx context.Context, id string, quantity int) error
	InsertTransaction(ctx context.Context, t domain.StockTransaction) (domain.StockTransaction, error)
	ListTransactions(ctx context.Context, filter domain.HistoryFilter) ([]domain.StockTransaction, error)
	SummarizeTransactions(ctx context.Context, filter domain.SummaryFilter) ([]domain.TransactionSummary, error)
	// ReplayQuantity soma as variações com sinal de todo o histórico do recurso.
	ReplayQuantity(ctx context.Context, resourceID string) (int, error)
}

// Transactor abre (ou participa de) uma unidade atômica.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// DefaultHistoryLimit é o tamanho padrão da página de histórico.
const DefaultHistoryLimit = 50

// Service é o Stock Ledger: única fonte de verdade do saldo dos recursos e do seu histórico.
type Service struct {
	repo         StockRepository
	tx           Transactor
	logger       logger.Logger
	historyLimit int
	now          func() time.Time
}

var _ domain.StockLedger = (*Service)(nil)

// NewService cria e retorna uma nova instância do Stock Ledger.
func NewService(repo StockRepository, tx Transactor, logger logger.Logger) *Service {
	return &Service{
		repo:         repo,
		tx:           tx,
		logger:       logger,
		historyLimit: DefaultHistoryLimit,
		now:          time.Now,
	}
}

// WithHistoryLimit altera o limite padrão de History.
func (s *Service) WithHistoryLimit(limit int) *Service {
	if limit > 0 {
		s.historyLimit = limit
	}
	return s
}

// WithClock substitui o relógio usado na data das movimentações.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ApplyTransaction registra uma movimentação e ajusta o saldo do recurso na mesma unidade atômica.
// Se o saldo ficaria negativo, nada é gravado (nem saldo, nem histórico).
func (s *Service) ApplyTransaction(ctx context.Context, req domain.TransactionRequest) (domain.StockTransaction, error) {
	s.logger.Debug("Iniciando movimentação de estoque no serviço.", map[string]interface{}{
		"resource_id":      req.ResourceID,
		"transaction_type": req.Type,
		"quantity":         req.Quantity,
	})

	// 1. Validações de entrada (antes de qualquer escrita)
	if !req.Type.Valid() {
		return domain.StockTransaction{}, apperror.NewInvalidTransactionTypeError(string(req.Type))
	}
	if req.Quantity <= 0 {
		return domain.StockTransaction{}, apperror.NewInvalidQuantityError(req.Quantity)
	}
	if _, err := uuid.Parse(req.ResourceID); err != nil {
		return domain.StockTransaction{}, resourceNotFound(req.ResourceID)
	}

	// 2. Leitura bloqueante, cálculo e gravação de saldo + histórico
	var record domain.StockTransaction
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		resource, err := s.repo.LockResource(ctx, req.ResourceID)
		if err != nil {
			return err
		}

		newQuantity := resource.Quantity + req.Type.Delta(req.Quantity)
		if newQuantity < 0 {
			s.logger.Warn("Movimentação deixaria o saldo negativo.", map[string]interface{}{
				"resource_id":      resource.ID,
				"current_quantity": resource.Quantity,
				"requested":        req.Quantity,
				"transaction_type": req.Type,
			})
			return apperror.NewInsufficientStockError(resource.ID, resource.Quantity, req.Quantity)
		}

		if err := s.repo.UpdateQuantity(ctx, resource.ID, newQuantity); err != nil {
			return err
		}

		entry := domain.StockTransaction{
			ID:                  uuid.NewString(),
			ResourceID:          resource.ID,
			ResourceName:        resource.Name,
			Type:                req.Type,
			Quantity:            req.Quantity,
			Date:                s.now().UTC(),
			RecipientDepartment: req.RecipientDepartment,
			ActorID:             req.ActorID,
			Notes:               req.Notes,
		}
		if req.LinkedItemID != "" {
			linked := req.LinkedItemID
			entry.LinkedItemID = &linked
		}

		record, err = s.repo.InsertTransaction(ctx, entry)
		return err
	})
	if err != nil {
		s.logFailure("Falha ao registrar movimentação de estoque.", err)
		return domain.StockTransaction{}, apperror.Normalize("Falha interna ao registrar movimentação de estoque.", err)
	}

	s.logger.Info("Movimentação de estoque registrada com sucesso.", map[string]interface{}{
		"transaction_id":   record.ID,
		"resource_id":      record.ResourceID,
		"transaction_type": record.Type,
		"quantity":         record.Quantity,
	})
	return record, nil
}

// GetQuantity retorna o saldo disponível do recurso.
func (s *Service) GetQuantity(ctx context.Context, resourceID string) (int, error) {
	if _, err := uuid.Parse(resourceID); err != nil {
		return 0, resourceNotFound(resourceID)
	}

	resource, err := s.repo.GetResource(ctx, resourceID)
	if err != nil {
		return 0, apperror.Normalize("Falha interna ao consultar saldo.", err)
	}
	return resource.Quantity, nil
}

// History lista as movimentações em ordem decrescente de data.
// Sem recurso e sem departamento, devolve as mais recentes de todo o armazém.
func (s *Service) History(ctx context.Context, filter domain.HistoryFilter) ([]domain.StockTransaction, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, apperror.NewInvalidTransactionTypeError(string(filter.Type))
	}
	if err := validateRange(filter.From, filter.To); err != nil {
		return nil, err
	}
	if !filter.From.IsZero() {
		filter.From = domain.DayStart(filter.From)
	}
	if !filter.To.IsZero() {
		filter.To = domain.DayEnd(filter.To)
	}
	if filter.Limit <= 0 {
		filter.Limit = s.historyLimit
	}

	s.logger.Debug("Buscando histórico de movimentações.", map[string]interface{}{
		"resource_id": filter.ResourceID,
		"department":  filter.Department,
		"limit":       filter.Limit,
	})

	history, err := s.repo.ListTransactions(ctx, filter)
	if err != nil {
		s.logFailure("Falha ao buscar histórico de movimentações.", err)
		return nil, apperror.Normalize("Falha interna ao buscar histórico.", err)
	}
	return history, nil
}

// Summary agrega quantidade de movimentações e volume total por tipo.
func (s *Service) Summary(ctx context.Context, filter domain.SummaryFilter) (map[domain.TransactionType]domain.TransactionSummary, error) {
	if err := validateRange(filter.From, filter.To); err != nil {
		return nil, err
	}
	if !filter.From.IsZero() {
		filter.From = domain.DayStart(filter.From)
	}
	if !filter.To.IsZero() {
		filter.To = domain.DayEnd(filter.To)
	}

	rows, err := s.repo.SummarizeTransactions(ctx, filter)
	if err != nil {
		s.logFailure("Falha ao resumir movimentações.", err)
		return nil, apperror.Normalize("Falha interna ao resumir movimentações.", err)
	}

	summary := make(map[domain.TransactionType]domain.TransactionSummary, len(rows))
	for _, row := range rows {
		summary[row.Type] = row
	}
	return summary, nil
}

// VerifyConsistency reconstrói o saldo a partir do histórico e compara com o saldo gravado.
func (s *Service) VerifyConsistency(ctx context.Context, resourceID string) (domain.LedgerCheck, error) {
	if _, err := uuid.Parse(resourceID); err != nil {
		return domain.LedgerCheck{}, resourceNotFound(resourceID)
	}

	var check domain.LedgerCheck
	// Leitura do saldo e do histórico no mesmo instantâneo
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		resource, err := s.repo.LockResource(ctx, resourceID)
		if err != nil {
			return err
		}
		replayed, err := s.repo.ReplayQuantity(ctx, resourceID)
		if err != nil {
			return err
		}
		check = domain.LedgerCheck{
			ResourceID:       resourceID,
			StoredQuantity:   resource.Quantity,
			ReplayedQuantity: replayed,
			Consistent:       resource.Quantity == replayed,
		}
		return nil
	})
	if err != nil {
		return domain.LedgerCheck{}, apperror.Normalize("Falha interna ao verificar o histórico.", err)
	}

	if !check.Consistent {
		s.logger.Warn("Saldo divergente do histórico de movimentações.", map[string]interface{}{
			"resource_id": resourceID,
			"stored":      check.StoredQuantity,
			"replayed":    check.ReplayedQuantity,
		})
	}
	return check, nil
}

func (s *Service) logFailure(msg string, err error) {
	if appErr, ok := apperror.AsAppError(err); ok {
		switch appErr.(type) {
		case *apperror.StorageError, *apperror.InternalError:
		default:
			// Rejeição de regra de negócio: não é falha do sistema
			s.logger.Debug(msg, map[string]interface{}{"category": appErr.Category(), "reason": appErr.Error()})
			return
		}
	}
	s.logger.Error(msg, err)
}

func resourceNotFound(id string) error {
	return apperror.NewNotFoundError("Recurso com ID " + id + " não existe.")
}

func validateRange(from, to time.Time) error {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return apperror.NewValidationError("A data final não pode ser anterior à data inicial.")
	}
	return nil
}
