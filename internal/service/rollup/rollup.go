// Package rollup deriva o estado geral de uma requisição a partir dos estados dos seus itens.
package rollup

import (
	"context"

	"milsupply/internal/domain"
	"milsupply/internal/pkg/logger"
)

// Compute é a regra pura de consolidação. Retorna o novo estado e se ele difere de current.
//
//   - todos fulfilled: fulfilled
//   - todos em {fulfilled, rejected} com ao menos um fulfilled: partially_fulfilled
//   - todos rejected: rejected
//   - algum fulfilled/partially_fulfilled junto de itens abertos: partially_fulfilled
//   - caso contrário (ainda há trabalho aberto): mantém current
//
// Sem itens, o estado não muda. Aplicar duas vezes dá o mesmo resultado.
func Compute(current domain.RequisitionStatus, items []domain.ItemStatus) (domain.RequisitionStatus, bool) {
	if len(items) == 0 {
		return current, false
	}

	var fulfilled, partial, rejected int
	for _, s := range items {
		switch s {
		case domain.ItemFulfilled:
			fulfilled++
		case domain.ItemPartiallyFulfilled:
			partial++
		case domain.ItemRejected:
			rejected++
		}
	}

	next := current
	switch total := len(items); {
	case fulfilled == total:
		next = domain.RequisitionFulfilled
	case fulfilled+rejected == total && fulfilled > 0:
		next = domain.RequisitionPartiallyFulfilled
	case rejected == total:
		next = domain.RequisitionRejected
	case fulfilled > 0 || partial > 0:
		next = domain.RequisitionPartiallyFulfilled
	}
	return next, next != current
}

// Repository é o que a consolidação precisa da persistência.
type Repository interface {
	// LockRequisition bloqueia a requisição: consolidações concorrentes da mesma
	// requisição se enfileiram e cada uma enxerga os itens já confirmados pela anterior.
	LockRequisition(ctx context.Context, id string) (domain.Requisition, error)
	ListItemStatuses(ctx context.Context, requisitionID string) ([]domain.ItemStatus, error)
	UpdateRequisitionStatus(ctx context.Context, id string, status domain.RequisitionStatus, updatedBy string) error
}

// Recompute carrega os estados dos itens, aplica Compute e grava o novo estado se mudou.
// Deve rodar na mesma unidade atômica da alteração de item que o disparou.
// A requisição é bloqueada antes da leitura dos estados dos itens.
func Recompute(ctx context.Context, repo Repository, log logger.Logger, requisitionID, actorID string) (domain.RequisitionStatus, error) {
	req, err := repo.LockRequisition(ctx, requisitionID)
	if err != nil {
		return "", err
	}

	statuses, err := repo.ListItemStatuses(ctx, requisitionID)
	if err != nil {
		return "", err
	}

	next, changed := Compute(req.Status, statuses)
	if !changed {
		log.Debug("Estado geral da requisição mantido.", map[string]interface{}{"requisition_id": requisitionID, "status": req.Status})
		return req.Status, nil
	}

	if err := repo.UpdateRequisitionStatus(ctx, requisitionID, next, actorID); err != nil {
		return "", err
	}

	log.Info("Estado geral da requisição consolidado.", map[string]interface{}{
		"requisition_id": requisitionID,
		"from":           req.Status,
		"to":             next,
	})
	return next, nil
}
