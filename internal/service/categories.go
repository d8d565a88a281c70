package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"retailpos/backend/internal/apperr"
	"retailpos/backend/internal/domain"
	"retailpos/backend/internal/events"
	"retailpos/backend/internal/store"
)

// categorySequence names the counter that numbers category ids.
const categorySequence = "categoryId"

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, apperr.Internal(err, "getting categories")
	}
	if len(categories) == 0 {
		return nil, apperr.NotFound("Categories not found")
	}
	return categories, nil
}

func (s *Service) CreateCategory(ctx context.Context, req domain.CategoryCreateRequest) (domain.Category, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.Category{}, err
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if err := s.validateStruct(req); err != nil {
		return domain.Category{}, err
	}

	seq, err := s.repo.NextSequence(ctx, categorySequence)
	if err != nil {
		return domain.Category{}, apperr.Internal(err, "creating category")
	}
	slug := strings.ToLower(strings.Join(strings.Fields(req.Name), ""))
	created, err := s.repo.CreateCategory(ctx, domain.Category{
		ID:          fmt.Sprintf("%s-%d", slug, seq),
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.Category{}, apperr.Validation("Category already exists")
		}
		return domain.Category{}, apperr.Internal(err, "creating category")
	}
	s.publish(ctx, events.Change{Kind: events.KindCategory, ID: created.ID})
	return *created, nil
}
