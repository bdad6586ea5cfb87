package memrepo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"milsupply/internal/domain"
	apperror "milsupply/internal/errors"
)

func (s *Store) GetResource(ctx context.Context, id string) (domain.Resource, error) {
	defer s.lock(ctx)()
	return s.resource(id)
}

// LockResource equivale a GetResource: dentro da unidade o Store inteiro já está bloqueado.
func (s *Store) LockResource(ctx context.Context, id string) (domain.Resource, error) {
	return s.GetResource(ctx, id)
}

func (s *Store) resource(id string) (domain.Resource, error) {
	res, ok := s.state.resources[id]
	if !ok {
		return domain.Resource{}, apperror.NewNotFoundError(fmt.Sprintf("Recurso com ID %s não existe.", id))
	}
	return res, nil
}

func (s *Store) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	defer s.lock(ctx)()

	res, err := s.resource(id)
	if err != nil {
		return err
	}
	if quantity < 0 {
		// Mesma barreira da CHECK (quantity >= 0) do banco
		return apperror.NewDBError("Falha ao atualizar saldo", fmt.Errorf("quantity %d violates check constraint", quantity))
	}
	res.Quantity = quantity
	res.UpdatedAt = time.Now().UTC()
	s.state.resources[id] = res
	return nil
}

func (s *Store) InsertTransaction(ctx context.Context, t domain.StockTransaction) (domain.StockTransaction, error) {
	defer s.lock(ctx)()

	if _, err := s.resource(t.ResourceID); err != nil {
		return domain.StockTransaction{}, err
	}
	s.state.transactions = append(s.state.transactions, t)
	return t, nil
}

func (s *Store) ListTransactions(ctx context.Context, filter domain.HistoryFilter) ([]domain.StockTransaction, error) {
	defer s.lock(ctx)()

	history := []domain.StockTransaction{}
	for _, t := range s.state.transactions {
		if !matchesHistory(t, filter.ResourceID, filter.From, filter.To) {
			continue
		}
		if filter.Department != "" && !strings.EqualFold(t.RecipientDepartment, filter.Department) {
			continue
		}
		if filter.Type != "" && t.Type != filter.Type {
			continue
		}
		t.ResourceName = s.state.resources[t.ResourceID].Name
		history = append(history, t)
	}

	sort.SliceStable(history, func(i, j int) bool {
		if !history[i].Date.Equal(history[j].Date) {
			return history[i].Date.After(history[j].Date)
		}
		return history[i].ID > history[j].ID
	})
	if filter.Limit > 0 && len(history) > filter.Limit {
		history = history[:filter.Limit]
	}
	return history, nil
}

func (s *Store) SummarizeTransactions(ctx context.Context, filter domain.SummaryFilter) ([]domain.TransactionSummary, error) {
	defer s.lock(ctx)()

	byType := map[domain.TransactionType]domain.TransactionSummary{}
	for _, t := range s.state.transactions {
		if !matchesHistory(t, filter.ResourceID, filter.From, filter.To) {
			continue
		}
		row := byType[t.Type]
		row.Type = t.Type
		row.Count++
		row.TotalQuantity += t.Quantity
		byType[t.Type] = row
	}

	rows := []domain.TransactionSummary{}
	for _, tt := range domain.TransactionTypes {
		if row, ok := byType[tt]; ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (s *Store) ReplayQuantity(ctx context.Context, resourceID string) (int, error) {
	defer s.lock(ctx)()

	replayed := 0
	for _, t := range s.state.transactions {
		if t.ResourceID == resourceID {
			replayed += t.SignedQuantity()
		}
	}
	return replayed, nil
}

func matchesHistory(t domain.StockTransaction, resourceID string, from, to time.Time) bool {
	if resourceID != "" && t.ResourceID != resourceID {
		return false
	}
	if !from.IsZero() && t.Date.Before(from) {
		return false
	}
	if !to.IsZero() && t.Date.After(to) {
		return false
	}
	return true
}
