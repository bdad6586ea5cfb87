package requisitionservice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"milsupply/internal/domain"
	apperror "milsupply/internal/errors"
	"milsupply/internal/pkg/logger"
	"milsupply/internal/service/rollup"
)

// RequisitionRepository define o contrato que este Serviço espera da camada de Persistência.
type RequisitionRepository interface {
	rollup.Repository

	// NextSequence incrementa e devolve o contador do período (AAAAMM).
	NextSequence(ctx context.Context, period string) (int, error)
	InsertRequisition(ctx context.Context, req domain.Requisition) error
	GetRequisition(ctx context.Context, id string) (domain.Requisition, error)
	InsertItem(ctx context.Context, item domain.RequisitionItem) error
	LockItem(ctx context.Context, id string) (domain.RequisitionItem, error)
	UpdateItemStatus(ctx context.Context, id string, status domain.ItemStatus) error
	ListItems(ctx context.Context, requisitionID string) ([]domain.RequisitionItem, error)
	QueryRequisitions(ctx context.Context, filter domain.RequisitionFilter) ([]domain.RequisitionSummary, error)
}

// ResourceFinder resolve o vínculo opcional de um item com o catálogo.
type ResourceFinder interface {
	GetResource(ctx context.Context, id string) (domain.Resource, error)
}

// Transactor abre (ou participa de) uma unidade atômica.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// DefaultQueryLimit é o tamanho padrão da página da listagem.
const DefaultQueryLimit = 100

// Service é o Requisition Store.
type Service struct {
	repo       RequisitionRepository
	resources  ResourceFinder
	tx         Transactor
	logger     logger.Logger
	prefix     string
	queryLimit int
	now        func() time.Time
}

var _ domain.RequisitionStore = (*Service)(nil)

// NewService cria e retorna uma nova instância do Requisition Store.
func NewService(repo RequisitionRepository, resources ResourceFinder, tx Transactor, logger logger.Logger) *Service {
	return &Service{
		repo:       repo,
		resources:  resources,
		tx:         tx,
		logger:     logger,
		prefix:     domain.DefaultRequisitionPrefix,
		queryLimit: DefaultQueryLimit,
		now:        time.Now,
	}
}

// WithPrefix altera o prefixo do número da requisição.
func (s *Service) WithPrefix(prefix string) *Service {
	if prefix = strings.TrimSpace(prefix); prefix != "" {
		s.prefix = prefix
	}
	return s
}

func (s *Service) WithQueryLimit(limit int) *Service {
	if limit > 0 {
		s.queryLimit = limit
	}
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create abre uma nova requisição com estado new e número PREFIXO-AAAAMM-NNNN.
func (s *Service) Create(ctx context.Context, in domain.NewRequisition) (domain.Requisition, error) {
	s.logger.Debug("Iniciando criação de requisição no serviço.", map[string]interface{}{
		"department": in.Department,
		"urgency":    in.Urgency,
	})

	// 1. Validação de Regras de Negócio
	department := strings.TrimSpace(in.Department)
	if department == "" {
		return domain.Requisition{}, apperror.NewValidationError("O departamento solicitante é obrigatório.")
	}
	if strings.TrimSpace(in.CreatedBy) == "" {
		return domain.Requisition{}, apperror.NewValidationError("O criador da requisição é obrigatório.")
	}
	urgency := in.Urgency
	if urgency == "" {
		urgency = domain.UrgencyRoutine
	}
	if !urgency.Valid() {
		return domain.Requisition{}, apperror.NewValidationError(fmt.Sprintf("Urgência inválida: %q.", in.Urgency))
	}

	now := s.now().UTC()
	req := domain.Requisition{
		ID:         uuid.NewString(),
		CreatedBy:  in.CreatedBy,
		Department: department,
		CreatedAt:  now,
		Status:     domain.RequisitionNew,
		Urgency:    urgency,
		Purpose:    strings.TrimSpace(in.Purpose),
		Notes:      strings.TrimSpace(in.Notes),
		UpdatedAt:  now,
	}

	// 2. Sequência do mês e inserção na mesma unidade
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		seq, err := s.repo.NextSequence(ctx, domain.SequencePeriod(now))
		if err != nil {
			return err
		}
		req.Number = domain.RequisitionNumber(s.prefix, now, seq)
		return s.repo.InsertRequisition(ctx, req)
	})
	if err != nil {
		s.logger.Error("Falha ao criar requisição.", err)
		return domain.Requisition{}, apperror.Normalize("Falha interna ao criar requisição.", err)
	}

	s.logger.Info("Requisição criada com sucesso.", map[string]interface{}{
		"requisition_id":     req.ID,
		"requisition_number": req.Number,
	})
	return req, nil
}

// AddItem inclui um item pending. Um resource_id desconhecido não é erro: o item fica
// em texto livre, sem vínculo com o catálogo.
func (s *Service) AddItem(ctx context.Context, in domain.NewRequisitionItem) (domain.RequisitionItem, error) {
	if in.Quantity <= 0 {
		return domain.RequisitionItem{}, apperror.NewInvalidQuantityError(in.Quantity)
	}
	if _, err := uuid.Parse(in.RequisitionID); err != nil {
		return domain.RequisitionItem{}, requisitionNotFound(in.RequisitionID)
	}

	item := domain.RequisitionItem{
		ID:                uuid.NewString(),
		RequisitionID:     in.RequisitionID,
		Name:              strings.TrimSpace(in.Name),
		QuantityRequested: in.Quantity,
		UnitOfMeasure:     strings.TrimSpace(in.UnitOfMeasure),
		Justification:     strings.TrimSpace(in.Justification),
		Status:            domain.ItemPending,
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		req, err := s.repo.LockRequisition(ctx, in.RequisitionID)
		if err != nil {
			return err
		}
		if req.Status.IsClosed() {
			return apperror.NewAlreadyFinalizedError(fmt.Sprintf("A requisição %s está %s e não aceita novos itens.", req.Number, req.Status))
		}

		if err := s.link(ctx, &item, in.ResourceID); err != nil {
			return err
		}
		if item.Name == "" {
			return apperror.NewValidationError("O nome do recurso solicitado é obrigatório.")
		}
		return s.repo.InsertItem(ctx, item)
	})
	if err != nil {
		if _, ok := apperror.AsAppError(err); !ok {
			s.logger.Error("Falha ao incluir item na requisição.", err)
		}
		return domain.RequisitionItem{}, apperror.Normalize("Falha interna ao incluir item.", err)
	}

	s.logger.Info("Item incluído na requisição.", map[string]interface{}{
		"requisition_id": item.RequisitionID,
		"item_id":        item.ID,
		"linked":         item.IsLinked(),
	})
	return item, nil
}

// link vincula o item ao recurso do catálogo, se ele existir, completando nome e unidade.
func (s *Service) link(ctx context.Context, item *domain.RequisitionItem, resourceID string) error {
	resourceID = strings.TrimSpace(resourceID)
	if resourceID == "" {
		return nil
	}
	if _, err := uuid.Parse(resourceID); err != nil {
		s.logger.Info("ID de recurso inválido; item registrado sem vínculo.", map[string]interface{}{"resource_id": resourceID})
		return nil
	}

	res, err := s.resources.GetResource(ctx, resourceID)
	if err != nil {
		var notFound *apperror.NotFoundError
		if errors.As(err, &notFound) {
			s.logger.Info("Recurso fora do catálogo; item registrado sem vínculo.", map[string]interface{}{"resource_id": resourceID})
			return nil
		}
		return err
	}

	item.ResourceID = &res.ID
	if item.Name == "" {
		item.Name = res.Name
	}
	if item.UnitOfMeasure == "" {
		item.UnitOfMeasure = res.UnitOfMeasure
	}
	return nil
}

// Query lista as requisições, mais recentes primeiro.
func (s *Service) Query(ctx context.Context, filter domain.RequisitionFilter) ([]domain.RequisitionSummary, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperror.NewValidationError(fmt.Sprintf("Estado de requisição inválido: %q.", filter.Status))
	}
	if filter.Urgency != "" && !filter.Urgency.Valid() {
		return nil, apperror.NewValidationError(fmt.Sprintf("Urgência inválida: %q.", filter.Urgency))
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, apperror.NewValidationError("A data final não pode ser anterior à data inicial.")
	}
	if !filter.From.IsZero() {
		filter.From = domain.DayStart(filter.From)
	}
	if !filter.To.IsZero() {
		filter.To = domain.DayEnd(filter.To)
	}
	if filter.Limit <= 0 {
		filter.Limit = s.queryLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	filter.Search = strings.TrimSpace(filter.Search)

	rows, err := s.repo.QueryRequisitions(ctx, filter)
	if err != nil {
		s.logger.Error("Falha ao listar requisições.", err)
		return nil, apperror.Normalize("Falha interna ao listar requisições.", err)
	}
	return rows, nil
}

// GetDetails devolve a requisição com seus itens na ordem de inclusão.
func (s *Service) GetDetails(ctx context.Context, requisitionID string) (domain.RequisitionDetails, error) {
	if _, err := uuid.Parse(requisitionID); err != nil {
		return domain.RequisitionDetails{}, requisitionNotFound(requisitionID)
	}

	req, err := s.repo.GetRequisition(ctx, requisitionID)
	if err != nil {
		return domain.RequisitionDetails{}, apperror.Normalize("Falha interna ao buscar requisição.", err)
	}
	items, err := s.repo.ListItems(ctx, requisitionID)
	if err != nil {
		return domain.RequisitionDetails{}, apperror.Normalize("Falha interna ao buscar itens da requisição.", err)
	}
	return domain.RequisitionDetails{Requisition: req, Items: items}, nil
}

// SetItemStatus aplica uma transição manual (aprovação, pedido de compra, rejeição)
// e consolida o estado geral na mesma unidade.
func (s *Service) SetItemStatus(ctx context.Context, actor domain.Actor, itemID string, status domain.ItemStatus) (domain.RequisitionItem, error) {
	if !actor.IsAdmin() {
		s.logger.Warn("Tentativa de alterar item sem papel de administrador.", map[string]interface{}{"user_id": actor.UserID, "item_id": itemID})
		return domain.RequisitionItem{}, apperror.NewForbiddenError("Apenas administradores podem alterar o estado de itens.")
	}
	if !status.Valid() {
		return domain.RequisitionItem{}, apperror.NewValidationError(fmt.Sprintf("Estado de item inválido: %q.", status))
	}
	if _, err := uuid.Parse(itemID); err != nil {
		return domain.RequisitionItem{}, itemNotFound(itemID)
	}

	var item domain.RequisitionItem
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		item, err = s.repo.LockItem(ctx, itemID)
		if err != nil {
			return err
		}
		if item.Status.IsTerminal() {
			return apperror.NewAlreadyFinalizedError(fmt.Sprintf("O item %s já está %s.", item.ID, item.Status))
		}
		if !item.Status.CanSetManually(status) {
			return apperror.NewConflictError(fmt.Sprintf("Transição de %s para %s não é permitida.", item.Status, status))
		}

		if err := s.repo.UpdateItemStatus(ctx, item.ID, status); err != nil {
			return err
		}
		item.Status = status

		_, err = rollup.Recompute(ctx, s.repo, s.logger, item.RequisitionID, actor.UserID)
		return err
	})
	if err != nil {
		return domain.RequisitionItem{}, apperror.Normalize("Falha interna ao alterar item.", err)
	}

	s.logger.Info("Estado do item alterado.", map[string]interface{}{"item_id": item.ID, "status": item.Status, "user_id": actor.UserID})
	return item, nil
}

// OverrideStatus é a alteração explícita e autorizada do estado geral, fora da consolidação.
func (s *Service) OverrideStatus(ctx context.Context, actor domain.Actor, requisitionID string, status domain.RequisitionStatus) (domain.Requisition, error) {
	if !actor.IsAdmin() {
		s.logger.Warn("Tentativa de alterar requisição sem papel de administrador.", map[string]interface{}{"user_id": actor.UserID, "requisition_id": requisitionID})
		return domain.Requisition{}, apperror.NewForbiddenError("Apenas administradores podem alterar o estado de requisições.")
	}
	if !status.Valid() {
		return domain.Requisition{}, apperror.NewValidationError(fmt.Sprintf("Estado de requisição inválido: %q.", status))
	}
	if _, err := uuid.Parse(requisitionID); err != nil {
		return domain.Requisition{}, requisitionNotFound(requisitionID)
	}

	var req domain.Requisition
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if _, err = s.repo.LockRequisition(ctx, requisitionID); err != nil {
			return err
		}
		if err = s.repo.UpdateRequisitionStatus(ctx, requisitionID, status, actor.UserID); err != nil {
			return err
		}
		req, err = s.repo.GetRequisition(ctx, requisitionID)
		return err
	})
	if err != nil {
		return domain.Requisition{}, apperror.Normalize("Falha interna ao alterar requisição.", err)
	}

	s.logger.Info("Estado da requisição alterado manualmente.", map[string]interface{}{
		"requisition_id": requisitionID,
		"status":         status,
		"user_id":        actor.UserID,
	})
	return req, nil
}

func requisitionNotFound(id string) error {
	return apperror.NewNotFoundError(fmt.Sprintf("Requisição com ID %s não existe.", id))
}

func itemNotFound(id string) error {
	return apperror.NewNotFoundError(fmt.Sprintf("Item de requisição com ID %s não existe.", id))
}
