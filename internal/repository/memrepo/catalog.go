package memrepo

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"milsupply/internal/domain"
	apperror "milsupply/internal/errors"
)

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	defer s.lock(ctx)()

	categories := make([]domain.Category, 0, len(s.state.categories))
	for _, c := range s.state.categories {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	return categories, nil
}

func (s *Store) GetCategory(ctx context.Context, id string) (domain.Category, error) {
	defer s.lock(ctx)()

	c, ok := s.state.categories[id]
	if !ok {
		return domain.Category{}, apperror.NewNotFoundError(fmt.Sprintf("Categoria com ID %s não existe.", id))
	}
	return c, nil
}

func (s *Store) InsertCategory(ctx context.Context, category domain.Category) error {
	defer s.lock(ctx)()

	for _, existing := range s.state.categories {
		if strings.EqualFold(existing.Name, category.Name) {
			return apperror.NewConflictError(fmt.Sprintf("A categoria '%s' já existe.", category.Name))
		}
	}
	s.state.categories[category.ID] = category
	return nil
}

func (s *Store) InsertResource(ctx context.Context, res domain.Resource) error {
	defer s.lock(ctx)()

	if _, ok := s.state.categories[res.CategoryID]; !ok {
		return apperror.NewNotFoundError(fmt.Sprintf("Categoria com ID %s não existe.", res.CategoryID))
	}
	s.state.resources[res.ID] = res
	return nil
}

func (s *Store) ListResources(ctx context.Context, categoryID string) ([]domain.Resource, error) {
	defer s.lock(ctx)()
	return s.resourcesIn(categoryID, false), nil
}

func (s *Store) ListLowStock(ctx context.Context) ([]domain.Resource, error) {
	defer s.lock(ctx)()
	return s.resourcesIn("", true), nil
}

func (s *Store) ListStockReport(ctx context.Context, categoryID string) ([]domain.StockReportLine, error) {
	defer s.lock(ctx)()

	var lines []domain.StockReportLine
	for _, res := range s.resourcesIn(categoryID, false) {
		lines = append(lines, domain.StockReportLine{
			Resource:     res,
			CategoryName: s.state.categories[res.CategoryID].Name,
		})
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].CategoryName < lines[j].CategoryName })
	return lines, nil
}

// resourcesIn lista os recursos ordenados por nome; categoryID vazio não filtra.
func (s *Store) resourcesIn(categoryID string, lowOnly bool) []domain.Resource {
	resources := []domain.Resource{}
	for _, res := range s.state.resources {
		if categoryID != "" && res.CategoryID != categoryID {
			continue
		}
		if lowOnly && !res.IsLowStock() {
			continue
		}
		resources = append(resources, res)
	}
	sort.Slice(resources, func(i, j int) bool { return resources[i].Name < resources[j].Name })
	return resources
}
