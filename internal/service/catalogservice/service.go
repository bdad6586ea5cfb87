package catalogservice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"milsupply/internal/domain"
	apperror "milsupply/internal/errors"
	"milsupply/internal/pkg/logger"
)

// CatalogRepository define o contrato (interface) que este Serviço espera
// da camada de Persistência (DB, Cache).
type CatalogRepository interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	GetCategory(ctx context.Context, id string) (domain.Category, error)
	InsertCategory(ctx context.Context, category domain.Category) error
	InsertResource(ctx context.Context, res domain.Resource) error
	GetResource(ctx context.Context, id string) (domain.Resource, error)
	ListResources(ctx context.Context, categoryID string) ([]domain.Resource, error)
	ListLowStock(ctx context.Context) ([]domain.Resource, error)
	// ListStockReport devolve os recursos com o nome da categoria; status e valor ficam com o serviço.
	ListStockReport(ctx context.Context, categoryID string) ([]domain.StockReportLine, error)
}

// Ledger registra a entrada inicial do recurso recém-cadastrado.
type Ledger interface {
	ApplyTransaction(ctx context.Context, req domain.TransactionRequest) (domain.StockTransaction, error)
}

type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service mantém categorias e recursos e monta o relatório de saldos.
type Service struct {
	repo   CatalogRepository
	ledger Ledger
	tx     Transactor
	logger logger.Logger
}

var _ domain.Catalog = (*Service)(nil)

// NewService cria e retorna uma nova instância do Serviço de Catálogo.
func NewService(repo CatalogRepository, ledger Ledger, tx Transactor, logger logger.Logger) *Service {
	return &Service{repo: repo, ledger: ledger, tx: tx, logger: logger}
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, apperror.Normalize("Falha interna ao listar categorias.", err)
	}
	return categories, nil
}

// CreateCategory inclui uma categoria, opcionalmente filha de outra.
func (s *Service) CreateCategory(ctx context.Context, actor domain.Actor, name string, parentID string) (domain.Category, error) {
	if !actor.IsAdmin() {
		return domain.Category{}, apperror.NewForbiddenError("Apenas administradores podem alterar o catálogo.")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Category{}, apperror.NewValidationError("O nome da categoria é obrigatório.")
	}

	category := domain.Category{ID: uuid.NewString(), Name: name}
	if parentID = strings.TrimSpace(parentID); parentID != "" {
		if _, err := s.getCategory(ctx, parentID); err != nil {
			return domain.Category{}, err
		}
		category.ParentID = &parentID
	}

	if err := s.repo.InsertCategory(ctx, category); err != nil {
		return domain.Category{}, apperror.Normalize("Falha interna ao criar categoria.", err)
	}

	s.logger.Info("Categoria criada com sucesso.", map[string]interface{}{"category_id": category.ID, "name": category.Name})
	return category, nil
}

// RegisterResource cadastra o recurso com saldo zero e, se houver saldo inicial,
// registra uma entrada no ledger na mesma unidade. O histórico continua reproduzindo o saldo.
func (s *Service) RegisterResource(ctx context.Context, actor domain.Actor, in domain.NewResource) (domain.Resource, error) {
	s.logger.Debug("Iniciando cadastro de recurso no serviço.", map[string]interface{}{"name": in.Name, "category_id": in.CategoryID})

	if !actor.IsAdmin() {
		return domain.Resource{}, apperror.NewForbiddenError("Apenas administradores podem alterar o catálogo.")
	}

	// 1. Validação de Regras de Negócio
	if err := validateNewResource(in); err != nil {
		return domain.Resource{}, err
	}
	if _, err := s.getCategory(ctx, in.CategoryID); err != nil {
		return domain.Resource{}, err
	}

	threshold := in.LowStockThreshold
	if threshold == 0 {
		threshold = domain.DefaultLowStockThreshold
	}
	now := time.Now().UTC()
	res := domain.Resource{
		ID:                uuid.NewString(),
		Name:              strings.TrimSpace(in.Name),
		CategoryID:        in.CategoryID,
		UnitOfMeasure:     strings.TrimSpace(in.UnitOfMeasure),
		LowStockThreshold: threshold,
		ExpirationDate:    in.ExpirationDate,
		Cost:              in.Cost,
		Supplier:          strings.TrimSpace(in.Supplier),
		SupplierPhone:     strings.TrimSpace(in.SupplierPhone),
		Description:       strings.TrimSpace(in.Description),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	// 2. Inserção + entrada inicial
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.InsertResource(ctx, res); err != nil {
			return err
		}
		if in.InitialQuantity == 0 {
			return nil
		}
		_, err := s.ledger.ApplyTransaction(ctx, domain.TransactionRequest{
			ResourceID: res.ID,
			Type:       domain.TransactionReceipt,
			Quantity:   in.InitialQuantity,
			ActorID:    actor.UserID,
			Notes:      "Saldo inicial no cadastro do recurso",
		})
		res.Quantity = in.InitialQuantity
		return err
	})
	if err != nil {
		if _, ok := apperror.AsAppError(err); !ok {
			s.logger.Error("Falha ao cadastrar recurso.", err)
		}
		return domain.Resource{}, apperror.Normalize("Falha interna ao cadastrar recurso.", err)
	}

	s.logger.Info("Recurso cadastrado com sucesso.", map[string]interface{}{"resource_id": res.ID, "quantity": res.Quantity})
	return res, nil
}

func validateNewResource(in domain.NewResource) error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return apperror.NewValidationError("O nome do recurso é obrigatório.")
	case strings.TrimSpace(in.UnitOfMeasure) == "":
		return apperror.NewValidationError("A unidade de medida é obrigatória.")
	case in.LowStockThreshold < 0:
		return apperror.NewValidationError("O limite de estoque baixo não pode ser negativo.")
	case in.InitialQuantity < 0:
		return apperror.NewValidationError("O saldo inicial não pode ser negativo.")
	case in.Cost.Valid && in.Cost.Decimal.IsNegative():
		return apperror.NewValidationError("O custo não pode ser negativo.")
	}
	return nil
}

func (s *Service) GetResource(ctx context.Context, id string) (domain.Resource, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Resource{}, apperror.NewNotFoundError(fmt.Sprintf("Recurso com ID %s não existe.", id))
	}
	res, err := s.repo.GetResource(ctx, id)
	if err != nil {
		return domain.Resource{}, apperror.Normalize("Falha interna ao buscar recurso.", err)
	}
	return res, nil
}

// ListResources lista os recursos por nome; categoryID vazio lista todos.
func (s *Service) ListResources(ctx context.Context, categoryID string) ([]domain.Resource, error) {
	resources, err := s.repo.ListResources(ctx, strings.TrimSpace(categoryID))
	if err != nil {
		return nil, apperror.Normalize("Falha interna ao listar recursos.", err)
	}
	return resources, nil
}

// LowStock lista os recursos com saldo no limite mínimo ou abaixo dele.
func (s *Service) LowStock(ctx context.Context) ([]domain.Resource, error) {
	resources, err := s.repo.ListLowStock(ctx)
	if err != nil {
		return nil, apperror.Normalize("Falha interna ao listar estoque baixo.", err)
	}
	return resources, nil
}

// StockReport classifica cada recurso pelo saldo e calcula o valor em estoque (saldo x custo).
func (s *Service) StockReport(ctx context.Context, categoryID string) ([]domain.StockReportLine, error) {
	lines, err := s.repo.ListStockReport(ctx, strings.TrimSpace(categoryID))
	if err != nil {
		return nil, apperror.Normalize("Falha interna ao montar relatório de saldos.", err)
	}

	for i := range lines {
		res := lines[i].Resource
		lines[i].Status = domain.ClassifyStock(res.Quantity, res.LowStockThreshold)
		lines[i].TotalValue = decimal.Zero
		if res.Cost.Valid {
			lines[i].TotalValue = res.Cost.Decimal.Mul(decimal.NewFromInt(int64(res.Quantity)))
		}
	}
	return lines, nil
}

func (s *Service) getCategory(ctx context.Context, id string) (domain.Category, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Category{}, apperror.NewNotFoundError(fmt.Sprintf("Categoria com ID %s não existe.", id))
	}
	category, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return domain.Category{}, apperror.Normalize("Falha interna ao buscar categoria.", err)
	}
	return category, nil
}
