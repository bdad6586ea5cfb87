package catalogrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"milsupply/internal/domain"
	"milsupply/internal/errors"
	"milsupply/internal/pkg/cache"
	"milsupply/internal/pkg/database"
	"milsupply/internal/pkg/logger"
)

// Define a chave de cache para a árvore de categorias (dados de referência).
const categoriesCacheKey = "catalog:categories"

const uniqueViolation = "23505"

const resourceColumns = `
        r.id, r.name, r.category_id, r.quantity, r.unit_of_measure, r.low_stock_threshold,
        r.expiration_date, r.cost,
        COALESCE(r.supplier, '') AS supplier,
        COALESCE(r.supplier_phone, '') AS supplier_phone,
        COALESCE(r.description, '') AS description,
        r.created_at, r.updated_at`

// CatalogRepository persiste categorias e recursos. Categorias são lidas com Cache-Aside.
type CatalogRepository struct {
	DB        *sqlx.DB     // Conexão principal com o banco de dados (PostgreSQL)
	Cache     cache.Client // Cliente para operações de cache (Redis)
	DBTimeout time.Duration
	CacheTTL  time.Duration
	logger    logger.Logger
}

// NewCatalogRepository cria e retorna uma nova instância do Repositório.
// Aqui injetamos as dependências de Infraestrutura (DB e Cache).
func NewCatalogRepository(db *sqlx.DB, cacheClient cache.Client, dbTimeout, cacheTTL time.Duration, logger logger.Logger) *CatalogRepository {
	return &CatalogRepository{
		DB:        db,
		Cache:     cacheClient,
		DBTimeout: dbTimeout,
		CacheTTL:  cacheTTL,
		logger:    logger,
	}
}

// ListCategories lista as categorias por nome, utilizando a estratégia Cache-Aside.
func (r *CatalogRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	// --- 1. Tentar obter do Cache (Redis) ---
	var categories []domain.Category
	cached, err := r.Cache.Get(ctxTimeout, categoriesCacheKey)
	if err == nil {
		if json.Unmarshal([]byte(cached), &categories) == nil {
			return categories, nil
		}
		r.logger.Warn("Conteúdo inválido no cache de categorias; lendo do banco.", nil)
	} else if err != cache.ErrCacheMiss {
		// Falha real de cache (ex: conexão perdida): seguimos para o banco.
		r.logger.Warn("Falha ao ler categorias do cache.", map[string]interface{}{"error": err.Error()})
	}

	// --- 2. Busca no Banco de Dados (PostgreSQL) ---
	categories = []domain.Category{}
	query := `SELECT id, name, parent_id FROM categories ORDER BY name`
	if err := database.Conn(ctx, r.DB).SelectContext(ctxTimeout, &categories, query); err != nil {
		r.logger.Error("Falha ao listar categorias no DB.", err)
		return nil, errors.NewDBError("Falha ao listar categorias", err)
	}

	// --- 3. Popular o Cache ---
	if data, err := json.Marshal(categories); err == nil {
		if err := r.Cache.Set(ctxTimeout, categoriesCacheKey, data, r.CacheTTL); err != nil {
			r.logger.Warn("Falha ao gravar categorias no cache.", map[string]interface{}{"error": err.Error()})
		}
	}
	return categories, nil
}

func (r *CatalogRepository) GetCategory(ctx context.Context, id string) (domain.Category, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	var category domain.Category
	err := database.Conn(ctx, r.DB).GetContext(ctxTimeout, &category, `SELECT id, name, parent_id FROM categories WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return domain.Category{}, errors.NewNotFoundError(fmt.Sprintf("Categoria com ID %s não existe.", id))
	}
	if err != nil {
		r.logger.Error("Falha ao buscar categoria no DB.", err)
		return domain.Category{}, errors.NewDBError("Falha ao buscar categoria", err)
	}
	return category, nil
}

// InsertCategory grava a categoria e invalida o cache da lista.
func (r *CatalogRepository) InsertCategory(ctx context.Context, category domain.Category) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	_, err := database.Conn(ctx, r.DB).ExecContext(ctxTimeout,
		`INSERT INTO categories (id, name, parent_id) VALUES ($1, $2, $3)`,
		category.ID, category.Name, category.ParentID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.NewConflictError(fmt.Sprintf("A categoria '%s' já existe.", category.Name))
		}
		r.logger.Error("Falha ao inserir categoria.", err)
		return errors.NewDBError("Falha ao inserir categoria", err)
	}

	if err := r.Cache.Delete(ctxTimeout, categoriesCacheKey); err != nil {
		r.logger.Warn("Falha ao invalidar cache de categorias.", map[string]interface{}{"error": err.Error()})
	}
	return nil
}

// InsertResource grava o recurso. O saldo entra sempre zerado; entradas passam pelo ledger.
func (r *CatalogRepository) InsertResource(ctx context.Context, res domain.Resource) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `
        INSERT INTO resources
            (id, name, category_id, quantity, unit_of_measure, low_stock_threshold, expiration_date,
             cost, supplier, supplier_phone, description, created_at, updated_at)
        VALUES ($1, $2, $3, 0, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), $11, $12)`

	_, err := database.Conn(ctx, r.DB).ExecContext(ctxTimeout, query,
		res.ID, res.Name, res.CategoryID, res.UnitOfMeasure, res.LowStockThreshold, res.ExpirationDate,
		res.Cost, res.Supplier, res.SupplierPhone, res.Description, res.CreatedAt, res.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Falha ao inserir recurso.", err)
		return errors.NewDBError("Falha ao inserir recurso", err)
	}
	return nil
}

func (r *CatalogRepository) GetResource(ctx context.Context, id string) (domain.Resource, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	var res domain.Resource
	err := database.Conn(ctx, r.DB).GetContext(ctxTimeout, &res, `SELECT`+resourceColumns+` FROM resources r WHERE r.id = $1`, id)
	if err == sql.ErrNoRows {
		return domain.Resource{}, errors.NewNotFoundError(fmt.Sprintf("Recurso com ID %s não existe.", id))
	}
	if err != nil {
		r.logger.Error("Falha ao buscar recurso no DB.", err)
		return domain.Resource{}, errors.NewDBError("Falha ao buscar recurso", err)
	}
	return res, nil
}

// ListResources lista por nome; categoryID vazio não filtra.
func (r *CatalogRepository) ListResources(ctx context.Context, categoryID string) ([]domain.Resource, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `SELECT` + resourceColumns + `
        FROM resources r
        WHERE ($1 = '' OR r.category_id::text = $1)
        ORDER BY r.name`

	resources := []domain.Resource{}
	if err := database.Conn(ctx, r.DB).SelectContext(ctxTimeout, &resources, query, categoryID); err != nil {
		r.logger.Error("Falha ao listar recursos.", err)
		return nil, errors.NewDBError("Falha ao listar recursos", err)
	}
	return resources, nil
}

func (r *CatalogRepository) ListLowStock(ctx context.Context) ([]domain.Resource, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `SELECT` + resourceColumns + `
        FROM resources r
        WHERE r.quantity <= r.low_stock_threshold
        ORDER BY r.name`

	resources := []domain.Resource{}
	if err := database.Conn(ctx, r.DB).SelectContext(ctxTimeout, &resources, query); err != nil {
		r.logger.Error("Falha ao listar recursos com estoque baixo.", err)
		return nil, errors.NewDBError("Falha ao listar estoque baixo", err)
	}
	return resources, nil
}

// reportRow achata recurso + categoria para o scan do sqlx.
type reportRow struct {
	domain.Resource
	CategoryName string `db:"category_name"`
}

func (r *CatalogRepository) ListStockReport(ctx context.Context, categoryID string) ([]domain.StockReportLine, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `SELECT` + resourceColumns + `, c.name AS category_name
        FROM resources r
        JOIN categories c ON c.id = r.category_id
        WHERE ($1 = '' OR r.category_id::text = $1)
        ORDER BY c.name, r.name`

	var rows []reportRow
	if err := database.Conn(ctx, r.DB).SelectContext(ctxTimeout, &rows, query, categoryID); err != nil {
		r.logger.Error("Falha ao montar relatório de saldos.", err)
		return nil, errors.NewDBError("Falha ao montar relatório de saldos", err)
	}

	lines := make([]domain.StockReportLine, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, domain.StockReportLine{Resource: row.Resource, CategoryName: row.CategoryName})
	}
	return lines, nil
}

func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == uniqueViolation
}
