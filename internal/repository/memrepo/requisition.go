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

func (s *Store) NextSequence(ctx context.Context, period string) (int, error) {
	defer s.lock(ctx)()

	s.state.sequences[period]++
	return s.state.sequences[period], nil
}

func (s *Store) InsertRequisition(ctx context.Context, req domain.Requisition) error {
	defer s.lock(ctx)()

	for _, existing := range s.state.requisitions {
		if existing.Number == req.Number {
			return apperror.NewConflictError(fmt.Sprintf("O número de requisição '%s' já existe.", req.Number))
		}
	}
	s.state.requisitions[req.ID] = req
	return nil
}

func (s *Store) GetRequisition(ctx context.Context, id string) (domain.Requisition, error) {
	defer s.lock(ctx)()
	return s.requisition(id)
}

func (s *Store) LockRequisition(ctx context.Context, id string) (domain.Requisition, error) {
	return s.GetRequisition(ctx, id)
}

func (s *Store) requisition(id string) (domain.Requisition, error) {
	req, ok := s.state.requisitions[id]
	if !ok {
		return domain.Requisition{}, apperror.NewNotFoundError(fmt.Sprintf("Requisição com ID %s não existe.", id))
	}
	return req, nil
}

func (s *Store) UpdateRequisitionStatus(ctx context.Context, id string, status domain.RequisitionStatus, updatedBy string) error {
	defer s.lock(ctx)()

	req, err := s.requisition(id)
	if err != nil {
		return err
	}
	req.Status = status
	req.UpdatedAt = time.Now().UTC()
	if updatedBy != "" {
		req.UpdatedBy = &updatedBy
	}
	s.state.requisitions[id] = req
	return nil
}

func (s *Store) InsertItem(ctx context.Context, item domain.RequisitionItem) error {
	defer s.lock(ctx)()

	if _, err := s.requisition(item.RequisitionID); err != nil {
		return err
	}
	s.state.items[item.ID] = item
	s.state.itemOrder = append(s.state.itemOrder, item.ID)
	return nil
}

func (s *Store) LockItem(ctx context.Context, id string) (domain.RequisitionItem, error) {
	defer s.lock(ctx)()

	item, ok := s.state.items[id]
	if !ok {
		return domain.RequisitionItem{}, apperror.NewNotFoundError(fmt.Sprintf("Item de requisição com ID %s não existe.", id))
	}
	return item, nil
}

func (s *Store) UpdateItemStatus(ctx context.Context, id string, status domain.ItemStatus) error {
	defer s.lock(ctx)()

	item, ok := s.state.items[id]
	if !ok {
		return apperror.NewNotFoundError(fmt.Sprintf("Item de requisição com ID %s não existe.", id))
	}
	item.Status = status
	s.state.items[id] = item
	return nil
}

func (s *Store) UpdateItemProgress(ctx context.Context, id string, issued int, status domain.ItemStatus) error {
	defer s.lock(ctx)()

	item, ok := s.state.items[id]
	if !ok {
		return apperror.NewNotFoundError(fmt.Sprintf("Item de requisição com ID %s não existe.", id))
	}
	item.QuantityIssued = issued
	item.Status = status
	s.state.items[id] = item
	return nil
}

func (s *Store) ListItems(ctx context.Context, requisitionID string) ([]domain.RequisitionItem, error) {
	defer s.lock(ctx)()
	return s.itemsOf(requisitionID), nil
}

func (s *Store) ListItemStatuses(ctx context.Context, requisitionID string) ([]domain.ItemStatus, error) {
	defer s.lock(ctx)()

	var statuses []domain.ItemStatus
	for _, item := range s.itemsOf(requisitionID) {
		statuses = append(statuses, item.Status)
	}
	return statuses, nil
}

func (s *Store) itemsOf(requisitionID string) []domain.RequisitionItem {
	items := []domain.RequisitionItem{}
	for _, id := range s.state.itemOrder {
		if item := s.state.items[id]; item.RequisitionID == requisitionID {
			items = append(items, item)
		}
	}
	return items
}

func (s *Store) QueryRequisitions(ctx context.Context, filter domain.RequisitionFilter) ([]domain.RequisitionSummary, error) {
	defer s.lock(ctx)()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var rows []domain.RequisitionSummary
	for _, req := range s.state.requisitions {
		if !filter.From.IsZero() && req.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && req.CreatedAt.After(filter.To) {
			continue
		}
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		if filter.Urgency != "" && req.Urgency != filter.Urgency {
			continue
		}
		if filter.CreatedBy != "" && req.CreatedBy != filter.CreatedBy {
			continue
		}

		items := s.itemsOf(req.ID)
		if search != "" && !matchesSearch(req, items, search) {
			continue
		}

		row := domain.RequisitionSummary{Requisition: req, ItemCount: len(items)}
		for _, item := range items {
			if item.Status == domain.ItemFulfilled {
				row.FulfilledCount++
			}
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].Number > rows[j].Number
	})

	if filter.Offset >= len(rows) {
		return []domain.RequisitionSummary{}, nil
	}
	rows = rows[filter.Offset:]
	if filter.Limit > 0 && len(rows) > filter.Limit {
		rows = rows[:filter.Limit]
	}
	return rows, nil
}

func matchesSearch(req domain.Requisition, items []domain.RequisitionItem, search string) bool {
	for _, field := range []string{req.Number, req.Department, req.Purpose} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	for _, item := range items {
		if strings.Contains(strings.ToLower(item.Name), search) {
			return true
		}
	}
	return false
}
