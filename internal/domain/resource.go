package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category agrupa recursos do catálogo (e.g., "Боєприпаси", "Медикаменти").
// Dados de referência semeados na migração inicial; ParentID permite hierarquia.
type Category struct {
	ID       string  `json:"id" db:"id"`
	Name     string  `json:"name" db:"name"`
	ParentID *string `json:"parent_id,omitempty" db:"parent_id"`
}

// Resource representa um tipo de suprimento estocado e sua quantidade disponível.
// A quantidade só é alterada pelo Stock Ledger e nunca fica negativa.
type Resource struct {
	ID                string              `json:"id" db:"id"`
	Name              string              `json:"name" db:"name"`
	CategoryID        string              `json:"category_id" db:"category_id"`
	Quantity          int                 `json:"quantity" db:"quantity"`
	UnitOfMeasure     string              `json:"unit_of_measure" db:"unit_of_measure"`
	LowStockThreshold int                 `json:"low_stock_threshold" db:"low_stock_threshold"`
	ExpirationDate    *time.Time          `json:"expiration_date,omitempty" db:"expiration_date"`
	Cost              decimal.NullDecimal `json:"cost" db:"cost"`
	Supplier          string              `json:"supplier,omitempty" db:"supplier"`
	SupplierPhone     string              `json:"supplier_phone,omitempty" db:"supplier_phone"`
	Description       string              `json:"description,omitempty" db:"description"`
	CreatedAt         time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at" db:"updated_at"`
}

// IsLowStock indica se o recurso atingiu o limite mínimo configurado.
func (r Resource) IsLowStock() bool {
	return r.Quantity <= r.LowStockThreshold
}

// NewResource é o payload de cadastro de um recurso no catálogo.
// InitialQuantity é registrada como uma entrada (receipt) no ledger, nunca gravada direto.
type NewResource struct {
	Name              string
	CategoryID        string
	UnitOfMeasure     string
	LowStockThreshold int
	ExpirationDate    *time.Time
	Cost              decimal.NullDecimal
	Supplier          string
	SupplierPhone     string
	Description       string
	InitialQuantity   int
}

// DefaultLowStockThreshold é o limite usado quando o cadastro não informa nenhum.
const DefaultLowStockThreshold = 10

// StockStatus classifica o nível de estoque para o relatório de saldos.
type StockStatus string

const (
	StockAbsent     StockStatus = "absent"
	StockCritical   StockStatus = "critical"
	StockLow        StockStatus = "low"
	StockSufficient StockStatus = "sufficient"
)

// ClassifyStock aplica as faixas do relatório: zerado, até o limite, até o dobro do limite, acima.
func ClassifyStock(quantity, threshold int) StockStatus {
	switch {
	case quantity <= 0:
		return StockAbsent
	case quantity <= threshold:
		return StockCritical
	case quantity <= threshold*2:
		return StockLow
	default:
		return StockSufficient
	}
}

// StockReportLine é uma linha do relatório de saldos por recurso.
type StockReportLine struct {
	Resource     Resource        `json:"resource"`
	CategoryName string          `json:"category_name"`
	Status       StockStatus     `json:"status"`
	TotalValue   decimal.Decimal `json:"total_value"`
}
