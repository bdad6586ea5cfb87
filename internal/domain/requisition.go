package domain

import (
	"fmt"
	"time"
)

// Urgency classifica a prioridade da requisição.
type Urgency string

const (
	UrgencyRoutine  Urgency = "routine"
	UrgencyUrgent   Urgency = "urgent"
	UrgencyCritical Urgency = "critical"
)

func (u Urgency) Valid() bool {
	switch u {
	case UrgencyRoutine, UrgencyUrgent, UrgencyCritical:
		return true
	}
	return false
}

// RequisitionStatus é o estado geral da requisição.
type RequisitionStatus string

const (
	RequisitionNew                RequisitionStatus = "new"
	RequisitionInReview           RequisitionStatus = "in_review"
	RequisitionApproved           RequisitionStatus = "approved"
	RequisitionRejected           RequisitionStatus = "rejected"
	RequisitionPartiallyFulfilled RequisitionStatus = "partially_fulfilled"
	RequisitionFulfilled          RequisitionStatus = "fulfilled"
)

func (s RequisitionStatus) Valid() bool {
	switch s {
	case RequisitionNew, RequisitionInReview, RequisitionApproved,
		RequisitionRejected, RequisitionPartiallyFulfilled, RequisitionFulfilled:
		return true
	}
	return false
}

// IsClosed indica que a requisição não aceita novos itens.
func (s RequisitionStatus) IsClosed() bool {
	return s == RequisitionFulfilled || s == RequisitionRejected
}

// ItemStatus é o estado de um item da requisição.
type ItemStatus string

const (
	ItemPending            ItemStatus = "pending"
	ItemApproved           ItemStatus = "approved"
	ItemOrdered            ItemStatus = "ordered"
	ItemPartiallyFulfilled ItemStatus = "partially_fulfilled"
	ItemFulfilled          ItemStatus = "fulfilled"
	ItemRejected           ItemStatus = "rejected"
)

func (s ItemStatus) Valid() bool {
	switch s {
	case ItemPending, ItemApproved, ItemOrdered, ItemPartiallyFulfilled, ItemFulfilled, ItemRejected:
		return true
	}
	return false
}

// IsTerminal: fulfilled e rejected não mudam mais.
func (s ItemStatus) IsTerminal() bool {
	return s == ItemFulfilled || s == ItemRejected
}

// manualTransitions são as mudanças de estado que um operador pode fazer à mão.
// partially_fulfilled e fulfilled só são alcançados pelo atendimento (baixa de estoque).
var manualTransitions = map[ItemStatus][]ItemStatus{
	ItemPending:  {ItemApproved, ItemRejected},
	ItemApproved: {ItemOrdered, ItemRejected},
	ItemOrdered:  {ItemRejected},
}

// CanSetManually informa se o operador pode mover o item de s para next.
func (s ItemStatus) CanSetManually(next ItemStatus) bool {
	for _, allowed := range manualTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Requisition é o envelope de um pedido de recursos feito por um departamento.
type Requisition struct {
	ID         string            `json:"id" db:"id"`
	Number     string            `json:"requisition_number" db:"requisition_number"`
	CreatedBy  string            `json:"created_by_user_id" db:"created_by_user_id"`
	Department string            `json:"department_requesting" db:"department_requesting"`
	CreatedAt  time.Time         `json:"creation_date" db:"creation_date"`
	Status     RequisitionStatus `json:"status" db:"status"`
	Urgency    Urgency           `json:"urgency" db:"urgency"`
	Purpose    string            `json:"purpose_description,omitempty" db:"purpose_description"`
	Notes      string            `json:"notes,omitempty" db:"notes"`
	UpdatedAt  time.Time         `json:"updated_at" db:"updated_at"`
	UpdatedBy  *string           `json:"updated_by_user_id,omitempty" db:"updated_by_user_id"`
}

// RequisitionItem é uma linha da requisição. ResourceID nulo indica pedido em texto livre
// (recurso ainda fora do catálogo).
type RequisitionItem struct {
	ID                string     `json:"id" db:"id"`
	RequisitionID     string     `json:"requisition_id" db:"requisition_id"`
	ResourceID        *string    `json:"resource_id,omitempty" db:"resource_id"`
	Name              string     `json:"requested_resource_name" db:"requested_resource_name"`
	QuantityRequested int        `json:"quantity_requested" db:"quantity_requested"`
	QuantityIssued    int        `json:"quantity_issued" db:"quantity_issued"`
	UnitOfMeasure     string     `json:"unit_of_measure,omitempty" db:"unit_of_measure"`
	Justification     string     `json:"justification,omitempty" db:"justification"`
	Status            ItemStatus `json:"item_status" db:"item_status"`
}

// Outstanding é a quantidade ainda não entregue.
func (i RequisitionItem) Outstanding() int {
	if rest := i.QuantityRequested - i.QuantityIssued; rest > 0 {
		return rest
	}
	return 0
}

// IsLinked informa se o item aponta para um recurso do catálogo.
func (i RequisitionItem) IsLinked() bool {
	return i.ResourceID != nil && *i.ResourceID != ""
}

// NewRequisition é o payload de criação de requisição.
type NewRequisition struct {
	CreatedBy  string
	Department string
	Urgency    Urgency
	Purpose    string
	Notes      string
}

// NewRequisitionItem é o payload de inclusão de item.
type NewRequisitionItem struct {
	RequisitionID string
	Name          string
	Quantity      int
	UnitOfMeasure string
	ResourceID    string
	Justification string
}

// RequisitionFilter define busca e paginação da listagem de requisições.
type RequisitionFilter struct {
	From      time.Time
	To        time.Time
	Status    RequisitionStatus
	Urgency   Urgency
	Search    string
	CreatedBy string
	Limit     int
	Offset    int
}

// RequisitionSummary é a linha da listagem (mais recentes primeiro).
type RequisitionSummary struct {
	Requisition
	ItemCount      int `json:"item_count" db:"item_count"`
	FulfilledCount int `json:"fulfilled_count" db:"fulfilled_count"`
}

// RequisitionDetails é a requisição com seus itens.
type RequisitionDetails struct {
	Requisition Requisition       `json:"requisition"`
	Items       []RequisitionItem `json:"items"`
}

// FulfillmentRequest é o pedido de atendimento de um item.
type FulfillmentRequest struct {
	ItemID              string
	Quantity            int
	RecipientDepartment string
}

// FulfillmentResult descreve o resultado de um atendimento bem-sucedido.
type FulfillmentResult struct {
	Transaction       StockTransaction  `json:"transaction"`
	ItemStatus        ItemStatus        `json:"item_status"`
	QuantityIssued    int               `json:"quantity_issued"`
	RequisitionStatus RequisitionStatus `json:"requisition_status"`
	Message           string            `json:"message"`
}

// DefaultRequisitionPrefix é o prefixo padrão do número da requisição.
const DefaultRequisitionPrefix = "REQ"

// SequencePeriod é o período (ano+mês) dentro do qual a sequência é única.
func SequencePeriod(now time.Time) string {
	return now.Format("200601")
}

// RequisitionNumber gera o número legível: PREFIXO-AAAAMM-NNNN.
// Função pura de (momento, sequência); a sequência vem do repositório.
func RequisitionNumber(prefix string, now time.Time, seq int) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, SequencePeriod(now), seq)
}
