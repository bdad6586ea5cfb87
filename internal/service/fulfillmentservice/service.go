package fulfillmentservice

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"milsupply/internal/domain"
	apperror "milsupply/internal/errors"
	"milsupply/internal/pkg/logger"
	"milsupply/internal/service/rollup"
)

// FulfillmentRepository define o que o atendimento precisa dos itens e requisições.
type FulfillmentRepository interface {
	rollup.Repository

	// LockItem lê o item bloqueando a linha até o fim da unidade.
	LockItem(ctx context.Context, id string) (domain.RequisitionItem, error)
	// UpdateItemProgress grava o total já entregue e o novo estado do item.
	UpdateItemProgress(ctx context.Context, id string, issued int, status domain.ItemStatus) error
}

// Ledger é o subconjunto do Stock Ledger usado aqui. Toda baixa passa por ele.
type Ledger interface {
	GetQuantity(ctx context.Context, resourceID string) (int, error)
	ApplyTransaction(ctx context.Context, req domain.TransactionRequest) (domain.StockTransaction, error)
}

// Transactor abre (ou participa de) uma unidade atômica.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service é o Fulfillment Engine.
type Service struct {
	repo   FulfillmentRepository
	ledger Ledger
	tx     Transactor
	logger logger.Logger
}

var _ domain.FulfillmentEngine = (*Service)(nil)

// NewService cria e retorna uma nova instância do Fulfillment Engine.
func NewService(repo FulfillmentRepository, ledger Ledger, tx Transactor, logger logger.Logger) *Service {
	return &Service{repo: repo, ledger: ledger, tx: tx, logger: logger}
}

// FulfillItem libera estoque contra um item de requisição.
// Pré-condições, baixa no ledger, estado do item e consolidação da requisição formam
// uma única unidade: ou tudo é gravado, ou nada.
func (s *Service) FulfillItem(ctx context.Context, actor domain.Actor, req domain.FulfillmentRequest) (domain.FulfillmentResult, error) {
	s.logger.Debug("Iniciando atendimento de item.", map[string]interface{}{
		"item_id":  req.ItemID,
		"quantity": req.Quantity,
		"user_id":  actor.UserID,
	})

	if !actor.IsAdmin() {
		s.logger.Warn("Tentativa de atendimento sem papel de administrador.", map[string]interface{}{"user_id": actor.UserID, "item_id": req.ItemID})
		return domain.FulfillmentResult{}, apperror.NewForbiddenError("Apenas administradores podem atender requisições.")
	}
	if _, err := uuid.Parse(req.ItemID); err != nil {
		return domain.FulfillmentResult{}, apperror.NewNotFoundError(fmt.Sprintf("Item de requisição com ID %s não existe.", req.ItemID))
	}

	var result domain.FulfillmentResult
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		// 1. Item existe
		item, err := s.repo.LockItem(ctx, req.ItemID)
		if err != nil {
			return err
		}

		// 2. Item não está finalizado
		if item.Status.IsTerminal() {
			return apperror.NewAlreadyFinalizedError(fmt.Sprintf("O item %s já está %s.", item.ID, item.Status))
		}

		// 3. Item vinculado ao catálogo
		if !item.IsLinked() {
			return apperror.NewUnlinkedResourceError(item.ID)
		}

		// 4. Quantidade positiva e dentro do saldo pendente do item
		if req.Quantity <= 0 {
			return apperror.NewInvalidQuantityError(req.Quantity)
		}
		if outstanding := item.Outstanding(); req.Quantity > outstanding {
			return apperror.NewValidationError(fmt.Sprintf("A quantidade %d excede o pendente do item (%d).", req.Quantity, outstanding))
		}

		// 5. Saldo suficiente
		resourceID := *item.ResourceID
		available, err := s.ledger.GetQuantity(ctx, resourceID)
		if err != nil {
			return err
		}
		if available < req.Quantity {
			return apperror.NewInsufficientStockError(resourceID, available, req.Quantity)
		}

		requisition, err := s.repo.LockRequisition(ctx, item.RequisitionID)
		if err != nil {
			return err
		}

		// Baixa no ledger, na mesma unidade. O ledger revalida o saldo com a linha bloqueada.
		record, err := s.ledger.ApplyTransaction(ctx, domain.TransactionRequest{
			ResourceID:          resourceID,
			Type:                domain.TransactionIssue,
			Quantity:            req.Quantity,
			ActorID:             actor.UserID,
			RecipientDepartment: req.RecipientDepartment,
			Notes:               provenance(requisition.Number, item.ID),
			LinkedItemID:        item.ID,
		})
		if err != nil {
			return err
		}

		issued := item.QuantityIssued + req.Quantity
		status := domain.ItemPartiallyFulfilled
		if issued >= item.QuantityRequested {
			status = domain.ItemFulfilled
		}
		if err := s.repo.UpdateItemProgress(ctx, item.ID, issued, status); err != nil {
			return err
		}

		overall, err := rollup.Recompute(ctx, s.repo, s.logger, item.RequisitionID, actor.UserID)
		if err != nil {
			return err
		}

		result = domain.FulfillmentResult{
			Transaction:       record,
			ItemStatus:        status,
			QuantityIssued:    issued,
			RequisitionStatus: overall,
			Message: fmt.Sprintf("Entregues %d de %d (%s) pela requisição %s.",
				issued, item.QuantityRequested, item.Name, requisition.Number),
		}
		return nil
	})
	if err != nil {
		if _, ok := apperror.AsAppError(err); ok {
			s.logger.Info("Atendimento recusado.", map[string]interface{}{"item_id": req.ItemID, "reason": err.Error()})
		} else {
			s.logger.Error("Falha ao atender item.", err)
		}
		return domain.FulfillmentResult{}, apperror.Normalize("Falha interna ao atender item.", err)
	}

	s.logger.Info("Item atendido com sucesso.", map[string]interface{}{
		"item_id":            req.ItemID,
		"transaction_id":     result.Transaction.ID,
		"item_status":        result.ItemStatus,
		"requisition_status": result.RequisitionStatus,
	})
	return result, nil
}

func provenance(number, itemID string) string {
	return fmt.Sprintf("Atendimento da requisição %s (item %s)", number, itemID)
}
