package requisitionrepo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"milsupply/internal/domain"
	"milsupply/internal/errors"
	"milsupply/internal/pkg/database"
	"milsupply/internal/pkg/logger"
)

const requisitionColumns = `
        q.id, q.requisition_number, q.created_by_user_id, q.department_requesting, q.creation_date,
        q.status, q.urgency,
        COALESCE(q.purpose_description, '') AS purpose_description,
        COALESCE(q.notes, '') AS notes,
        q.updated_at, q.updated_by_user_id`

const itemColumns = `
        id, requisition_id, resource_id, requested_resource_name, quantity_requested, quantity_issued,
        COALESCE(unit_of_measure, '') AS unit_of_measure,
        COALESCE(justification, '') AS justification,
        item_status`

// RequisitionRepository persiste requisições, itens e a sequência mensal de numeração.
type RequisitionRepository struct {
	DB        *sqlx.DB
	DBTimeout time.Duration
	logger    logger.Logger
}

// NewRequisitionRepository cria e retorna uma nova instância do Repositório de Requisições.
func NewRequisitionRepository(db *sqlx.DB, dbTimeout time.Duration, logger logger.Logger) *RequisitionRepository {
	return &RequisitionRepository{
		DB:        db,
		DBTimeout: dbTimeout,
		logger:    logger,
	}
}

// NextSequence incrementa o contador do período com upsert. Roda na unidade da inserção,
// então a linha do período fica bloqueada até o commit e o número nunca se repete.
func (r *RequisitionRepository) NextSequence(ctx context.Context, period string) (int, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `
        INSERT INTO requisition_sequences (period, last_value) VALUES ($1, 1)
        ON CONFLICT (period) DO UPDATE SET last_value = requisition_sequences.last_value + 1
        RETURNING last_value`

	var seq int
	if err := database.Conn(ctx, r.DB).GetContext(ctxTimeout, &seq, query, period); err != nil {
		r.logger.Error("Falha ao gerar sequência da requisição.", err)
		return 0, errors.NewDBError("Falha ao gerar sequência", err)
	}
	return seq, nil
}

func (r *RequisitionRepository) InsertRequisition(ctx context.Context, req domain.Requisition) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `
        INSERT INTO requisitions
            (id, requisition_number, created_by_user_id, department_requesting, creation_date,
             status, urgency, purpose_description, notes, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10)`

	_, err := database.Conn(ctx, r.DB).ExecContext(ctxTimeout, query,
		req.ID, req.Number, req.CreatedBy, req.Department, req.CreatedAt,
		string(req.Status), string(req.Urgency), req.Purpose, req.Notes, req.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return errors.NewConflictError(fmt.Sprintf("O número de requisição '%s' já existe.", req.Number))
		}
		r.logger.Error("Falha ao inserir requisição.", err)
		return errors.NewDBError("Falha ao inserir requisição", err)
	}

	r.logger.Debug("Requisição inserida no repositório.", map[string]interface{}{"requisition_id": req.ID, "number": req.Number})
	return nil
}

func (r *RequisitionRepository) GetRequisition(ctx context.Context, id string) (domain.Requisition, error) {
	return r.getRequisition(ctx, id, "")
}

// LockRequisition bloqueia a linha da requisição até o fim da unidade.
func (r *RequisitionRepository) LockRequisition(ctx context.Context, id string) (domain.Requisition, error) {
	return r.getRequisition(ctx, id, " FOR UPDATE")
}

func (r *RequisitionRepository) getRequisition(ctx context.Context, id, suffix string) (domain.Requisition, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `SELECT` + requisitionColumns + ` FROM requisitions q WHERE q.id = $1` + suffix

	var req domain.Requisition
	err := database.Conn(ctx, r.DB).GetContext(ctxTimeout, &req, query, id)
	if err == sql.ErrNoRows {
		r.logger.Info("Requisição não encontrada.", map[string]interface{}{"requisition_id": id})
		return domain.Requisition{}, errors.NewNotFoundError(fmt.Sprintf("Requisição com ID %s não existe.", id))
	}
	if err != nil {
		r.logger.Error("Falha ao buscar requisição no DB.", err)
		return domain.Requisition{}, errors.NewDBError("Falha ao buscar requisição", err)
	}
	return req, nil
}

func (r *RequisitionRepository) UpdateRequisitionStatus(ctx context.Context, id string, status domain.RequisitionStatus, updatedBy string) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `
        UPDATE requisitions
        SET status = $1, updated_at = $2, updated_by_user_id = COALESCE(NULLIF($3, '')::uuid, updated_by_user_id)
        WHERE id = $4`

	result, err := database.Conn(ctx, r.DB).ExecContext(ctxTimeout, query, string(status), time.Now().UTC(), updatedBy, id)
	if err != nil {
		r.logger.Error("Falha ao atualizar estado da requisição.", err)
		return errors.NewDBError("Falha ao atualizar requisição", err)
	}
	return requireRow(result, fmt.Sprintf("Requisição com ID %s não existe.", id))
}

func (r *RequisitionRepository) InsertItem(ctx context.Context, item domain.RequisitionItem) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `
        INSERT INTO requisition_items
            (id, requisition_id, resource_id, requested_resource_name, quantity_requested, quantity_issued,
             unit_of_measure, justification, item_status)
        VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9)`

	_, err := database.Conn(ctx, r.DB).ExecContext(ctxTimeout, query,
		item.ID, item.RequisitionID, item.ResourceID, item.Name, item.QuantityRequested, item.QuantityIssued,
		item.UnitOfMeasure, item.Justification, string(item.Status),
	)
	if err != nil {
		r.logger.Error("Falha ao inserir item de requisição.", err)
		return errors.NewDBError("Falha ao inserir item", err)
	}
	return nil
}

// LockItem lê o item com FOR UPDATE: dois atendimentos do mesmo item não se intercalam.
func (r *RequisitionRepository) LockItem(ctx context.Context, id string) (domain.RequisitionItem, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `SELECT` + itemColumns + ` FROM requisition_items WHERE id = $1 FOR UPDATE`

	var item domain.RequisitionItem
	err := database.Conn(ctx, r.DB).GetContext(ctxTimeout, &item, query, id)
	if err == sql.ErrNoRows {
		return domain.RequisitionItem{}, errors.NewNotFoundError(fmt.Sprintf("Item de requisição com ID %s não existe.", id))
	}
	if err != nil {
		r.logger.Error("Falha ao buscar item de requisição.", err)
		return domain.RequisitionItem{}, errors.NewDBError("Falha ao buscar item", err)
	}
	return item, nil
}

func (r *RequisitionRepository) UpdateItemStatus(ctx context.Context, id string, status domain.ItemStatus) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	result, err := database.Conn(ctx, r.DB).ExecContext(ctxTimeout,
		`UPDATE requisition_items SET item_status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		r.logger.Error("Falha ao atualizar estado do item.", err)
		return errors.NewDBError("Falha ao atualizar item", err)
	}
	return requireRow(result, fmt.Sprintf("Item de requisição com ID %s não existe.", id))
}

// UpdateItemProgress grava a quantidade acumulada entregue e o estado resultante.
func (r *RequisitionRepository) UpdateItemProgress(ctx context.Context, id string, issued int, status domain.ItemStatus) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	result, err := database.Conn(ctx, r.DB).ExecContext(ctxTimeout,
		`UPDATE requisition_items SET quantity_issued = $1, item_status = $2 WHERE id = $3`, issued, string(status), id)
	if err != nil {
		r.logger.Error("Falha ao registrar entrega do item.", err)
		return errors.NewDBError("Falha ao atualizar item", err)
	}
	return requireRow(result, fmt.Sprintf("Item de requisição com ID %s não existe.", id))
}

func (r *RequisitionRepository) ListItems(ctx context.Context, requisitionID string) ([]domain.RequisitionItem, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `SELECT` + itemColumns + `
        FROM requisition_items
        WHERE requisition_id = $1
        ORDER BY created_at, id`

	items := []domain.RequisitionItem{}
	if err := database.Conn(ctx, r.DB).SelectContext(ctxTimeout, &items, query, requisitionID); err != nil {
		r.logger.Error("Falha ao listar itens da requisição.", err)
		return nil, errors.NewDBError("Falha ao listar itens", err)
	}
	return items, nil
}

func (r *RequisitionRepository) ListItemStatuses(ctx context.Context, requisitionID string) ([]domain.ItemStatus, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	var statuses []domain.ItemStatus
	err := database.Conn(ctx, r.DB).SelectContext(ctxTimeout, &statuses,
		`SELECT item_status FROM requisition_items WHERE requisition_id = $1`, requisitionID)
	if err != nil {
		r.logger.Error("Falha ao listar estados dos itens.", err)
		return nil, errors.NewDBError("Falha ao listar estados dos itens", err)
	}
	return statuses, nil
}

// QueryRequisitions filtra, busca (inclusive pelo nome dos itens) e pagina, mais recentes primeiro.
func (r *RequisitionRepository) QueryRequisitions(ctx context.Context, filter domain.RequisitionFilter) ([]domain.RequisitionSummary, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	var conds []string
	var args []interface{}
	if !filter.From.IsZero() {
		conds = append(conds, "q.creation_date >= ?")
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		conds = append(conds, "q.creation_date <= ?")
		args = append(args, filter.To)
	}
	if filter.Status != "" {
		conds = append(conds, "q.status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Urgency != "" {
		conds = append(conds, "q.urgency = ?")
		args = append(args, string(filter.Urgency))
	}
	if filter.CreatedBy != "" {
		conds = append(conds, "q.created_by_user_id::text = ?")
		args = append(args, filter.CreatedBy)
	}
	if filter.Search != "" {
		pattern := "%" + escapeLike(filter.Search) + "%"
		conds = append(conds, `(q.requisition_number ILIKE ? OR q.department_requesting ILIKE ? OR q.purpose_description ILIKE ?
            OR EXISTS (SELECT 1 FROM requisition_items s WHERE s.requisition_id = q.id AND s.requested_resource_name ILIKE ?))`)
		args = append(args, pattern, pattern, pattern, pattern)
	}
	args = append(args, filter.Limit, filter.Offset)

	where := ""
	if len(conds) > 0 {
		where = "\n        WHERE " + strings.Join(conds, " AND ")
	}

	conn := database.Conn(ctx, r.DB)
	query := conn.Rebind(`
        SELECT` + requisitionColumns + `,
               COUNT(i.id) AS item_count,
               COUNT(i.id) FILTER (WHERE i.item_status = 'fulfilled') AS fulfilled_count
        FROM requisitions q
        LEFT JOIN requisition_items i ON i.requisition_id = q.id` + where + `
        GROUP BY q.id
        ORDER BY q.creation_date DESC, q.requisition_number DESC
        LIMIT ? OFFSET ?`)

	rows := []domain.RequisitionSummary{}
	if err := conn.SelectContext(ctxTimeout, &rows, query, args...); err != nil {
		r.logger.Error("Falha ao listar requisições.", err)
		return nil, errors.NewDBError("Falha ao listar requisições", err)
	}
	return rows, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func requireRow(result sql.Result, notFound string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewDBError("Falha ao verificar linhas afetadas", err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFoundError(notFound)
	}
	return nil
}
