package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/feedback-service/internal/api/dto"
	"github.com/spec-kit/feedback-service/internal/service"
	apperrors "github.com/spec-kit/feedback-service/pkg/util/errorutil"
)

// CategoriesHandler serves the department/category taxonomy.
type CategoriesHandler struct {
	service *service.CategoryService
}

// NewCategoriesHandler constructs handler.
func NewCategoriesHandler(categoryService *service.CategoryService) *CategoriesHandler {
	return &CategoriesHandler{service: categoryService}
}

// Taxonomy GET /categories.
func (h *CategoriesHandler) Taxonomy(c *fiber.Ctx) error {
	taxonomy, err := h.service.Taxonomy(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": taxonomy})
}

// Departments GET /categories/departments.
func (h *CategoriesHandler) Departments(c *fiber.Ctx) error {
	departments, err := h.service.Departments(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": departments})
}

// Department GET /categories/:department.
func (h *CategoriesHandler) Department(c *fiber.Ctx) error {
	categories, err := h.service.Department(c.UserContext(), c.Params("department"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": categories})
}

// Create POST /categories.
func (h *CategoriesHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateCategoryRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	category, err := h.service.CreateCategory(c.UserContext(), req.Department, req.Name, req.SubCategories)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": categoryResponse(category)})
}

// AddSubCategory POST /categories/:department/:main/subcategories.
func (h *CategoriesHandler) AddSubCategory(c *fiber.Ctx) error {
	var req dto.SubCategoryRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	category, err := h.service.AddSubCategory(c.UserContext(), c.Params("department"), c.Params("main"), req.Name)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": categoryResponse(category)})
}

// RenameSubCategory PUT /categories/:department/:main/subcategories/:sub.
func (h *CategoriesHandler) RenameSubCategory(c *fiber.Ctx) error {
	var req dto.SubCategoryRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	category, err := h.service.RenameSubCategory(c.UserContext(), c.Params("department"), c.Params("main"), c.Params("sub"), req.Name)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": categoryResponse(category)})
}

// RemoveSubCategory DELETE /categories/:department/:main/subcategories/:sub.
func (h *CategoriesHandler) RemoveSubCategory(c *fiber.Ctx) error {
	category, err := h.service.RemoveSubCategory(c.UserContext(), c.Params("department"), c.Params("main"), c.Params("sub"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": categoryResponse(category)})
}

// Delete DELETE /categories/:department/:main.
func (h *CategoriesHandler) Delete(c *fiber.Ctx) error {
	if err := h.service.DeleteCategory(c.UserContext(), c.Params("department"), c.Params("main")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
