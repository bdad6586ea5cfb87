package domain

import "time"

// TransactionType é o tipo de movimentação de estoque. O sinal aplicado à
// quantidade do recurso depende somente do tipo.
type TransactionType string

const (
	TransactionReceipt  TransactionType = "receipt"
	TransactionIssue    TransactionType = "issue"
	TransactionWriteOff TransactionType = "writeoff"
	TransactionReturn   TransactionType = "return"
)

// TransactionTypes lista os tipos aceitos, na ordem exibida ao operador.
var TransactionTypes = []TransactionType{
	TransactionReceipt,
	TransactionIssue,
	TransactionWriteOff,
	TransactionReturn,
}

// Valid informa se o tipo é um dos quatro reconhecidos.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionReceipt, TransactionIssue, TransactionWriteOff, TransactionReturn:
		return true
	}
	return false
}

// Sign retorna +1 para entradas (receipt/return) e -1 para saídas (issue/writeoff).
// Tipos inválidos retornam 0.
func (t TransactionType) Sign() int {
	switch t {
	case TransactionReceipt, TransactionReturn:
		return 1
	case TransactionIssue, TransactionWriteOff:
		return -1
	}
	return 0
}

// Delta converte a magnitude armazenada na variação com sinal.
func (t TransactionType) Delta(quantity int) int {
	return quantity * t.Sign()
}

// StockTransaction é uma entrada imutável do histórico de movimentações.
// Quantity guarda sempre a magnitude (positiva) da variação.
type StockTransaction struct {
	ID                  string          `json:"id" db:"id"`
	ResourceID          string          `json:"resource_id" db:"resource_id"`
	ResourceName        string          `json:"resource_name,omitempty" db:"resource_name"`
	Type                TransactionType `json:"transaction_type" db:"transaction_type"`
	Quantity            int             `json:"quantity_changed" db:"quantity_changed"`
	Date                time.Time       `json:"transaction_date" db:"transaction_date"`
	RecipientDepartment string          `json:"recipient_department,omitempty" db:"recipient_department"`
	ActorID             string          `json:"issued_by_user_id,omitempty" db:"issued_by_user_id"`
	LinkedItemID        *string         `json:"requisition_item_id,omitempty" db:"requisition_item_id"`
	Notes               string          `json:"notes,omitempty" db:"notes"`
}

// SignedQuantity é a variação aplicada ao saldo do recurso por esta entrada.
func (t StockTransaction) SignedQuantity() int {
	return t.Type.Delta(t.Quantity)
}

// TransactionRequest é o pedido de movimentação recebido pelo Stock Ledger.
type TransactionRequest struct {
	ResourceID          string
	Type                TransactionType
	Quantity            int
	ActorID             string
	RecipientDepartment string
	Notes               string
	LinkedItemID        string
}

// HistoryFilter seleciona o histórico por recurso ou por departamento destinatário.
// Sem recurso e sem departamento, retorna as movimentações mais recentes.
type HistoryFilter struct {
	ResourceID string
	Department string
	Type       TransactionType
	From       time.Time
	To         time.Time
	Limit      int
}

// SummaryFilter restringe o resumo por tipo a um recurso e/ou período.
type SummaryFilter struct {
	ResourceID string
	From       time.Time
	To         time.Time
}

// TransactionSummary agrega as movimentações de um tipo.
type TransactionSummary struct {
	Type          TransactionType `json:"transaction_type" db:"transaction_type"`
	Count         int             `json:"count" db:"count"`
	TotalQuantity int             `json:"total_quantity" db:"total_quantity"`
}

// LedgerCheck compara o saldo gravado com o saldo reconstruído a partir do histórico.
type LedgerCheck struct {
	ResourceID       string `json:"resource_id"`
	StoredQuantity   int    `json:"stored_quantity"`
	ReplayedQuantity int    `json:"replayed_quantity"`
	Consistent       bool   `json:"consistent"`
}

// DayStart e DayEnd tornam os limites de data inclusivos em dias inteiros.
func DayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func DayEnd(t time.Time) time.Time {
	return DayStart(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}
