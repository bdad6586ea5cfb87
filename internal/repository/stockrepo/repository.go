package stockrepo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"milsupply/internal/domain"
	"milsupply/internal/errors"
	"milsupply/internal/pkg/database"
	"milsupply/internal/pkg/logger"
)

const resourceColumns = `
        id, name, category_id, quantity, unit_of_measure, low_stock_threshold,
        expiration_date, cost,
        COALESCE(supplier, '') AS supplier,
        COALESCE(supplier_phone, '') AS supplier_phone,
        COALESCE(description, '') AS description,
        created_at, updated_at`

// signedQuantity é a variação com sinal de uma linha do histórico, derivada só do tipo.
const signedQuantity = `CASE WHEN t.transaction_type IN ('receipt', 'return') THEN t.quantity_changed ELSE -t.quantity_changed END`

// StockRepository persiste saldos e histórico de movimentações no PostgreSQL.
type StockRepository struct {
	DB        *sqlx.DB
	DBTimeout time.Duration
	logger    logger.Logger
}

// NewStockRepository cria e retorna uma nova instância do Repositório de Estoque.
func NewStockRepository(db *sqlx.DB, dbTimeout time.Duration, logger logger.Logger) *StockRepository {
	return &StockRepository{
		DB:        db,
		DBTimeout: dbTimeout,
		logger:    logger,
	}
}

// GetResource busca o recurso sem bloqueio.
func (r *StockRepository) GetResource(ctx context.Context, id string) (domain.Resource, error) {
	return r.getResource(ctx, id, "")
}

// LockResource busca o recurso com FOR UPDATE: leituras concorrentes do mesmo recurso
// esperam o fim da transação corrente.
func (r *StockRepository) LockResource(ctx context.Context, id string) (domain.Resource, error) {
	return r.getResource(ctx, id, " FOR UPDATE")
}

func (r *StockRepository) getResource(ctx context.Context, id, suffix string) (domain.Resource, error) {
	r.logger.Debug("Buscando recurso no repositório.", map[string]interface{}{"resource_id": id, "lock": suffix != ""})

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `SELECT` + resourceColumns + `
        FROM resources
        WHERE id = $1` + suffix

	var res domain.Resource
	err := database.Conn(ctx, r.DB).GetContext(ctxTimeout, &res, query, id)
	if err == sql.ErrNoRows {
		r.logger.Info("Recurso não encontrado.", map[string]interface{}{"resource_id": id})
		return domain.Resource{}, errors.NewNotFoundError(fmt.Sprintf("Recurso com ID %s não existe.", id))
	}
	if err != nil {
		r.logger.Error("Falha ao buscar recurso no DB.", err)
		return domain.Resource{}, errors.NewDBError("Falha ao buscar recurso", err)
	}
	return res, nil
}

// UpdateQuantity grava o novo saldo. A CHECK (quantity >= 0) da tabela é a última barreira.
func (r *StockRepository) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `
        UPDATE resources
        SET quantity = $1, updated_at = $2
        WHERE id = $3`

	result, err := database.Conn(ctx, r.DB).ExecContext(ctxTimeout, query, quantity, time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Falha ao atualizar saldo do recurso.", err)
		return errors.NewDBError("Falha ao atualizar saldo", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.logger.Error("Falha ao verificar linhas afetadas após atualização de saldo.", err)
		return errors.NewDBError("Falha ao verificar linhas afetadas", err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFoundError(fmt.Sprintf("Recurso com ID %s não existe.", id))
	}
	return nil
}

// InsertTransaction grava uma entrada imutável do histórico.
func (r *StockRepository) InsertTransaction(ctx context.Context, t domain.StockTransaction) (domain.StockTransaction, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `
        INSERT INTO resource_transactions
            (id, resource_id, transaction_type, quantity_changed, transaction_date,
             recipient_department, issued_by_user_id, requisition_item_id, notes)
        VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, '')::uuid, $8, NULLIF($9, ''))`

	_, err := database.Conn(ctx, r.DB).ExecContext(ctxTimeout, query,
		t.ID, t.ResourceID, string(t.Type), t.Quantity, t.Date,
		t.RecipientDepartment, t.ActorID, t.LinkedItemID, t.Notes,
	)
	if err != nil {
		r.logger.Error("Falha ao inserir movimentação de estoque.", err)
		return domain.StockTransaction{}, errors.NewDBError("Falha ao inserir movimentação", err)
	}
	return t, nil
}

// ListTransactions aplica os filtros informados e ordena do mais recente para o mais antigo.
func (r *StockRepository) ListTransactions(ctx context.Context, filter domain.HistoryFilter) ([]domain.StockTransaction, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	conds, args := historyConditions(filter.ResourceID, filter.From, filter.To)
	if filter.Department != "" {
		conds = append(conds, "LOWER(t.recipient_department) = LOWER(?)")
		args = append(args, filter.Department)
	}
	if filter.Type != "" {
		conds = append(conds, "t.transaction_type = ?")
		args = append(args, string(filter.Type))
	}
	args = append(args, filter.Limit)

	conn := database.Conn(ctx, r.DB)
	query := conn.Rebind(`
        SELECT t.id, t.resource_id, r.name AS resource_name, t.transaction_type, t.quantity_changed,
               t.transaction_date,
               COALESCE(t.recipient_department, '') AS recipient_department,
               COALESCE(t.issued_by_user_id::text, '') AS issued_by_user_id,
               t.requisition_item_id,
               COALESCE(t.notes, '') AS notes
        FROM resource_transactions t
        JOIN resources r ON r.id = t.resource_id` + where(conds) + `
        ORDER BY t.transaction_date DESC, t.id DESC
        LIMIT ?`)

	history := []domain.StockTransaction{}
	if err := conn.SelectContext(ctxTimeout, &history, query, args...); err != nil {
		r.logger.Error("Falha ao listar movimentações.", err)
		return nil, errors.NewDBError("Falha ao listar movimentações", err)
	}
	return history, nil
}

// SummarizeTransactions conta e soma as movimentações por tipo.
func (r *StockRepository) SummarizeTransactions(ctx context.Context, filter domain.SummaryFilter) ([]domain.TransactionSummary, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	conds, args := historyConditions(filter.ResourceID, filter.From, filter.To)

	conn := database.Conn(ctx, r.DB)
	query := conn.Rebind(`
        SELECT t.transaction_type, COUNT(*) AS count, COALESCE(SUM(t.quantity_changed), 0) AS total_quantity
        FROM resource_transactions t` + where(conds) + `
        GROUP BY t.transaction_type`)

	rows := []domain.TransactionSummary{}
	if err := conn.SelectContext(ctxTimeout, &rows, query, args...); err != nil {
		r.logger.Error("Falha ao resumir movimentações.", err)
		return nil, errors.NewDBError("Falha ao resumir movimentações", err)
	}
	return rows, nil
}

// ReplayQuantity reconstrói o saldo somando todo o histórico do recurso a partir de zero.
func (r *StockRepository) ReplayQuantity(ctx context.Context, resourceID string) (int, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `
        SELECT COALESCE(SUM(` + signedQuantity + `), 0)
        FROM resource_transactions t
        WHERE t.resource_id = $1`

	var replayed int
	if err := database.Conn(ctx, r.DB).GetContext(ctxTimeout, &replayed, query, resourceID); err != nil {
		r.logger.Error("Falha ao reconstruir saldo pelo histórico.", err)
		return 0, errors.NewDBError("Falha ao reconstruir saldo", err)
	}
	return replayed, nil
}

func historyConditions(resourceID string, from, to time.Time) ([]string, []interface{}) {
	var conds []string
	var args []interface{}
	if resourceID != "" {
		conds = append(conds, "t.resource_id = ?")
		args = append(args, resourceID)
	}
	if !from.IsZero() {
		conds = append(conds, "t.transaction_date >= ?")
		args = append(args, from)
	}
	if !to.IsZero() {
		conds = append(conds, "t.transaction_date <= ?")
		args = append(args, to)
	}
	return conds, args
}

func where(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return "\n        WHERE " + strings.Join(conds, " AND ")
}
