package dto

// CreateCategoryRequest payload.
type CreateCategoryRequest struct {
	Department    string   `json:"department"`
	Name          string   `json:"name"`
	SubCategories []string `json:"subCategories"`
}

// SubCategoryRequest payload for adding or renaming a subcategory.
type SubCategoryRequest struct {
	Name string `json:"name"`
}

// CategoryResponse is one main category with its subcategories.
type CategoryResponse struct {
	Department    string   `json:"department"`
	Name          string   `json:"name"`
	SubCategories []string `json:"subCategories"`
}
