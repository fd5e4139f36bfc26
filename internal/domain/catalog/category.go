package catalog

import (
	"context"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/chezflora/internal/domain/apperr"
	"github.com/xenking/chezflora/pkg/paging"
)

// ListCategories returns a page of categories.
func (s *Service) ListCategories(ctx context.Context, page paging.Page) ([]Category, paging.Meta, error) {
	list, total, err := s.categories.List(ctx, page)
	if err != nil {
		return nil, paging.Meta{}, errors.Wrap(err, "list categories")
	}
	return list, paging.NewMeta(page, total), nil
}

// Tree returns active categories nested under their parents.
func (s *Service) Tree(ctx context.Context) ([]Category, error) {
	all, err := s.categories.ListActive(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list active categories")
	}
	return BuildTree(all), nil
}

// BuildTree nests flat categories. Categories whose parent is absent from the
// input become roots. Input order is preserved among siblings.
func BuildTree(flat []Category) []Category {
	present := make(map[string]bool, len(flat))
	for _, c := range flat {
		present[c.ID] = true
	}
	children := make(map[string][]Category)
	var roots []Category
	for _, c := range flat {
		if c.ParentID != nil && present[*c.ParentID] && *c.ParentID != c.ID {
			children[*c.ParentID] = append(children[*c.ParentID], c)
			continue
		}
		roots = append(roots, c)
	}

	var attach func(nodes []Category, depth int) []Category
	attach = func(nodes []Category, depth int) []Category {
		if depth > len(flat) {
			return nodes
		}
		for i := range nodes {
			nodes[i].Children = attach(children[nodes[i].ID], depth+1)
		}
		return nodes
	}
	return attach(roots, 0)
}

// GetCategory returns a category.
func (s *Service) GetCategory(ctx context.Context, id string) (*Category, error) {
	c, err := s.categories.Get(ctx, id)
	if err != nil {
		return nil, mapCategoryErr(err)
	}
	return c, nil
}

// CategoryProducts lists active products of a category.
func (s *Service) CategoryProducts(ctx context.Context, id string, page paging.Page) ([]Product, paging.Meta, error) {
	if _, err := s.GetCategory(ctx, id); err != nil {
		return nil, paging.Meta{}, err
	}
	return s.ListProducts(ctx, ProductFilter{CategoryID: id, Sort: SortNewest}, page)
}

// CreateCategory adds a category.
func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (*Category, error) {
	c := &Category{IsActive: true}
	if err := s.applyCategory(ctx, c, in); err != nil {
		return nil, err
	}
	if c.Name == "" {
		return nil, apperr.Invalid("Category name is required")
	}
	if err := s.categories.Create(ctx, c); err != nil {
		return nil, errors.Wrap(err, "create category")
	}
	return c, nil
}

// UpdateCategory edits a category.
func (s *Service) UpdateCategory(ctx context.Context, id string, in CategoryInput) (*Category, error) {
	c, err := s.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.applyCategory(ctx, c, in); err != nil {
		return nil, err
	}
	if err := s.categories.Update(ctx, c); err != nil {
		return nil, errors.Wrap(err, "update category")
	}
	return c, nil
}

// DeleteCategory removes a category without children or products.
func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	if _, err := s.GetCategory(ctx, id); err != nil {
		return err
	}
	n, err := s.categories.CountChildren(ctx, id)
	if err != nil {
		return errors.Wrap(err, "count subcategories")
	}
	if n > 0 {
		return apperr.Invalid("Cannot delete category with subcategories")
	}
	n, err = s.categories.CountProducts(ctx, id)
	if err != nil {
		return errors.Wrap(err, "count category products")
	}
	if n > 0 {
		return apperr.Invalid("Cannot delete category with products")
	}
	if err := s.categories.Delete(ctx, id); err != nil {
		return mapCategoryErr(err)
	}
	return nil
}

func (s *Service) applyCategory(ctx context.Context, c *Category, in CategoryInput) error {
	if in.Name != nil {
		c.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.ImageURL != nil {
		c.ImageURL = *in.ImageURL
	}
	if in.IsActive != nil {
		c.IsActive = *in.IsActive
	}
	if in.SortOrder != nil {
		c.SortOrder = *in.SortOrder
	}
	if in.ParentID != nil {
		if *in.ParentID == "" {
			c.ParentID = nil
			return nil
		}
		if c.ID != "" && *in.ParentID == c.ID {
			return apperr.Invalid("A category cannot be its own parent")
		}
		if _, err := s.categories.Get(ctx, *in.ParentID); err != nil {
			if errors.Is(err, ErrCategoryNotFound) {
				return apperr.NotFound("Parent category not found")
			}
			return errors.Wrap(err, "get parent category")
		}
		parent := *in.ParentID
		c.ParentID = &parent
	}
	return nil
}
