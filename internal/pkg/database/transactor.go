package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	apperror "milsupply/internal/errors"
	"milsupply/internal/pkg/logger"
)

// Executor é o subconjunto comum de *sqlx.DB e *sqlx.Tx usado pelos repositórios.
// Assim o mesmo método de repositório roda dentro ou fora de uma transação.
type Executor interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
	Rebind(query string) string
}

type txKey struct{}

// Transactor é a sessão de armazenamento injetada nos serviços.
// Cada WithinTx é uma unidade atômica: commit se fn retornar nil, rollback em qualquer
// outro caminho (erro ou panic).
type Transactor struct {
	db      *sqlx.DB
	timeout time.Duration
	logger  logger.Logger
}

// NewTransactor cria a sessão sobre o pool; timeout limita a duração de cada unidade.
func NewTransactor(db *sqlx.DB, timeout time.Duration, logger logger.Logger) *Transactor {
	return &Transactor{db: db, timeout: timeout, logger: logger}
}

// WithinTx executa fn em uma transação. Se ctx já carrega uma transação, fn participa dela
// (a unidade do ledger se aninha na unidade do atendimento).
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTx(ctx) {
		return fn(ctx)
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	tx, err := t.db.BeginTxx(ctxTimeout, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		t.logger.Error("Falha ao iniciar transação.", err)
		return apperror.NewDBError("Falha ao iniciar transação", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctxTimeout, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			t.logger.Error("Falha ao desfazer transação.", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		t.logger.Error("Falha ao commitar transação.", err)
		return apperror.NewDBError("Falha ao commitar transação", err)
	}
	return nil
}

// InTx informa se o contexto carrega uma transação aberta.
func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*sqlx.Tx)
	return ok
}

// Conn retorna a transação do contexto ou, fora de uma unidade, o próprio pool.
func Conn(ctx context.Context, db *sqlx.DB) Executor {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return db
}
