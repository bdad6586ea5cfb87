package domain

import "context"

// --- Contratos consumidos pela camada de apresentação ---
// A apresentação nunca grava resources.quantity nem resource_transactions diretamente:
// toda alteração de saldo passa pelo StockLedger.

// StockLedger é a única fonte de verdade do saldo e do histórico de movimentações.
type StockLedger interface {
	ApplyTransaction(ctx context.Context, req TransactionRequest) (StockTransaction, error)
	GetQuantity(ctx context.Context, resourceID string) (int, error)
	History(ctx context.Context, filter HistoryFilter) ([]StockTransaction, error)
	Summary(ctx context.Context, filter SummaryFilter) (map[TransactionType]TransactionSummary, error)
	VerifyConsistency(ctx context.Context, resourceID string) (LedgerCheck, error)
}

// RequisitionStore mantém requisições e seus itens, independente do atendimento.
type RequisitionStore interface {
	Create(ctx context.Context, req NewRequisition) (Requisition, error)
	AddItem(ctx context.Context, item NewRequisitionItem) (RequisitionItem, error)
	Query(ctx context.Context, filter RequisitionFilter) ([]RequisitionSummary, error)
	GetDetails(ctx context.Context, requisitionID string) (RequisitionDetails, error)
	SetItemStatus(ctx context.Context, actor Actor, itemID string, status ItemStatus) (RequisitionItem, error)
	OverrideStatus(ctx context.Context, actor Actor, requisitionID string, status RequisitionStatus) (Requisition, error)
}

// FulfillmentEngine libera estoque contra um item de requisição.
type FulfillmentEngine interface {
	FulfillItem(ctx context.Context, actor Actor, req FulfillmentRequest) (FulfillmentResult, error)
}

// Catalog mantém categorias e recursos e produz o relatório de saldos.
type Catalog interface {
	ListCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, actor Actor, name string, parentID string) (Category, error)
	RegisterResource(ctx context.Context, actor Actor, res NewResource) (Resource, error)
	GetResource(ctx context.Context, id string) (Resource, error)
	ListResources(ctx context.Context, categoryID string) ([]Resource, error)
	LowStock(ctx context.Context) ([]Resource, error)
	StockReport(ctx context.Context, categoryID string) ([]StockReportLine, error)
}
