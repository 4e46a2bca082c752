package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spec-kit/feedback-service/internal/domain"
	"github.com/spec-kit/feedback-service/internal/repository"
	apperrors "github.com/spec-kit/feedback-service/pkg/util/errorutil"
)

// CategoryService owns the department/category taxonomy and validates
// ticket classifications against it.
type CategoryService struct {
	categories repository.CategoryRepository
	logger     *zap.Logger
}

// NewCategoryService constructs the service.
func NewCategoryService(categories repository.CategoryRepository, logger *zap.Logger) *CategoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CategoryService{categories: categories, logger: logger}
}

// Validate checks a "Main - Sub" category against the department's taxonomy.
// Validation is skipped unless both department and category are given.
func (s *CategoryService) Validate(ctx context.Context, department, category *string) error {
	if department == nil || category == nil {
		return nil
	}
	dept := strings.TrimSpace(*department)
	composite := strings.TrimSpace(*category)
	if dept == "" || composite == "" {
		return nil
	}

	details := map[string]any{"department": dept, "category": composite}
	mainCat, sub, ok := domain.SplitCategory(composite)
	if !ok {
		return apperrors.NewValidationError(
			fmt.Sprintf("category must have the form %q", "Main"+domain.CategorySeparator+"Sub"), details)
	}

	entry, err := s.categories.Get(ctx, dept, mainCat)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewValidationError(
				fmt.Sprintf("category %q does not exist in department %q", mainCat, dept), details)
		}
		return apperrors.NewStorageError(err)
	}
	if !entry.HasSubCategory(sub) {
		return apperrors.NewValidationError(
			fmt.Sprintf("subcategory %q does not exist under %q", sub, mainCat), details)
	}
	return nil
}

// Taxonomy returns department -> main category -> subcategories.
func (s *CategoryService) Taxonomy(ctx context.Context) (domain.Taxonomy, error) {
	all, err := s.categories.List(ctx)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	taxonomy := domain.Taxonomy{}
	for _, c := range all {
		taxonomy.Add(c)
	}
	return taxonomy, nil
}

// Departments lists every department that has at least one category.
func (s *CategoryService) Departments(ctx context.Context) ([]string, error) {
	taxonomy, err := s.Taxonomy(ctx)
	if err != nil {
		return nil, err
	}
	departments := make([]string, 0, len(taxonomy))
	for dept := range taxonomy {
		departments = append(departments, dept)
	}
	sort.Strings(departments)
	return departments, nil
}

// Department returns main category -> subcategories for one department.
func (s *CategoryService) Department(ctx context.Context, department string) (map[string][]string, error) {
	list, err := s.categories.ListByDepartment(ctx, department)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	if len(list) == 0 {
		return nil, apperrors.NewNotFound("department", map[string]any{"department": department})
	}
	result := make(map[string][]string, len(list))
	for _, c := range list {
		result[c.MainCategory] = c.SubCategories
	}
	return result, nil
}

// CreateCategory adds a main category with optional subcategories.
func (s *CategoryService) CreateCategory(ctx context.Context, department, mainCategory string, subCategories []string) (*domain.Category, error) {
	department = strings.TrimSpace(department)
	mainCategory = strings.TrimSpace(mainCategory)
	if department == "" || mainCategory == "" {
		return nil, apperrors.NewValidationError("department and name are required", nil)
	}
	if strings.Contains(mainCategory, domain.CategorySeparator) {
		return nil, apperrors.NewValidationError(fmt.Sprintf("category name must not contain %q", domain.CategorySeparator), nil)
	}
	subs, err := normalizeSubCategories(subCategories)
	if err != nil {
		return nil, err
	}

	category := &domain.Category{Department: department, MainCategory: mainCategory, SubCategories: subs}
	details := map[string]any{"department": department, "mainCategory": mainCategory}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, storeError(err, "category", details)
	}
	s.logger.Info("category created", zap.String("department", department), zap.String("main_category", mainCategory))
	return category, nil
}

// AddSubCategory appends sub to an existing main category.
func (s *CategoryService) AddSubCategory(ctx context.Context, department, mainCategory, sub string) (*domain.Category, error) {
	sub = strings.TrimSpace(sub)
	if sub == "" {
		return nil, apperrors.NewValidationError("subcategory name is required", nil)
	}
	category, err := s.get(ctx, department, mainCategory)
	if err != nil {
		return nil, err
	}
	if category.HasSubCategory(sub) {
		return nil, apperrors.NewConflict("subcategory already exists", map[string]any{"subCategory": sub})
	}
	category.SubCategories = append(category.SubCategories, sub)
	if err := s.categories.UpdateSubCategories(ctx, category); err != nil {
		return nil, storeError(err, "category", nil)
	}
	return category, nil
}

// RenameSubCategory replaces oldSub with newSub, keeping its position.
func (s *CategoryService) RenameSubCategory(ctx context.Context, department, mainCategory, oldSub, newSub string) (*domain.Category, error) {
	newSub = strings.TrimSpace(newSub)
	if newSub == "" {
		return nil, apperrors.NewValidationError("subcategory name is required", nil)
	}
	category, err := s.get(ctx, department, mainCategory)
	if err != nil {
		return nil, err
	}
	if !category.HasSubCategory(oldSub) {
		return nil, apperrors.NewNotFound("subcategory", map[string]any{"subCategory": oldSub})
	}
	if newSub != oldSub && category.HasSubCategory(newSub) {
		return nil, apperrors.NewConflict("subcategory already exists", map[string]any{"subCategory": newSub})
	}
	for i, existing := range category.SubCategories {
		if existing == oldSub {
			category.SubCategories[i] = newSub
		}
	}
	if err := s.categories.UpdateSubCategories(ctx, category); err != nil {
		return nil, storeError(err, "category", nil)
	}
	return category, nil
}

// RemoveSubCategory deletes sub from a main category.
func (s *CategoryService) RemoveSubCategory(ctx context.Context, department, mainCategory, sub string) (*domain.Category, error) {
	category, err := s.get(ctx, department, mainCategory)
	if err != nil {
		return nil, err
	}
	if !category.HasSubCategory(sub) {
		return nil, apperrors.NewNotFound("subcategory", map[string]any{"subCategory": sub})
	}
	kept := make([]string, 0, len(category.SubCategories)-1)
	for _, existing := range category.SubCategories {
		if existing != sub {
			kept = append(kept, existing)
		}
	}
	category.SubCategories = kept
	if err := s.categories.UpdateSubCategories(ctx, category); err != nil {
		return nil, storeError(err, "category", nil)
	}
	return category, nil
}

// DeleteCategory removes a main category and its subcategories.
func (s *CategoryService) DeleteCategory(ctx context.Context, department, mainCategory string) error {
	details := map[string]any{"department": department, "mainCategory": mainCategory}
	if err := s.categories.Delete(ctx, department, mainCategory); err != nil {
		return storeError(err, "category", details)
	}
	s.logger.Info("category deleted", zap.String("department", department), zap.String("main_category", mainCategory))
	return nil
}

// Seed upserts every entry of taxonomy and returns how many were written.
func (s *CategoryService) Seed(ctx context.Context, taxonomy domain.Taxonomy) (int, error) {
	departments := make([]string, 0, len(taxonomy))
	for dept := range taxonomy {
		departments = append(departments, dept)
	}
	sort.Strings(departments)

	written := 0
	for _, dept := range departments {
		mains := make([]string, 0, len(taxonomy[dept]))
		for main := range taxonomy[dept] {
			mains = append(mains, main)
		}
		sort.Strings(mains)
		for _, main := range mains {
			subs, err := normalizeSubCategories(taxonomy[dept][main])
			if err != nil {
				return written, fmt.Errorf("%s/%s: %w", dept, main, err)
			}
			category := &domain.Category{Department: dept, MainCategory: main, SubCategories: subs}
			if err := s.categories.Upsert(ctx, category); err != nil {
				return written, storeError(err, "category", nil)
			}
			written++
		}
	}
	s.logger.Info("taxonomy seeded", zap.Int("categories", written))
	return written, nil
}

func (s *CategoryService) get(ctx context.Context, department, mainCategory string) (*domain.Category, error) {
	category, err := s.categories.Get(ctx, department, mainCategory)
	if err != nil {
		return nil, storeError(err, "category", map[string]any{"department": department, "mainCategory": mainCategory})
	}
	return category, nil
}

// LoadTaxonomyFile reads a YAML document of the form
//
//	Department:
//	  Main category:
//	    - Sub category
func LoadTaxonomyFile(path string) (domain.Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy file: %w", err)
	}
	var taxonomy domain.Taxonomy
	if err := yaml.Unmarshal(data, &taxonomy); err != nil {
		return nil, fmt.Errorf("parse taxonomy file: %w", err)
	}
	if len(taxonomy) == 0 {
		return nil, errors.New("taxonomy file is empty")
	}
	return taxonomy, nil
}

func normalizeSubCategories(subs []string) ([]string, error) {
	seen := make(map[string]struct{}, len(subs))
	out := make([]string, 0, len(subs))
	for _, sub := range subs {
		sub = strings.TrimSpace(sub)
		if sub == "" {
			continue
		}
		if _, dup := seen[sub]; dup {
			return nil, apperrors.NewValidationError("duplicate subcategory", map[string]any{"subCategory": sub})
		}
		seen[sub] = struct{}{}
		out = append(out, sub)
	}
	return out, nil
}
