package categories

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliria/erp-backend/pkg/db/models"
)

type CategoryDTO struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Notes     *string   `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateInput creates a category. A blank code is generated.
type CreateInput struct {
	Code  string  `json:"code" validate:"omitempty,max=32"`
	Name  string  `json:"name" validate:"required,max=120"`
	Notes *string `json:"notes" validate:"omitempty,max=1000"`
}

type UpdateInput struct {
	Code  *string `json:"code" validate:"omitempty,min=1,max=32"`
	Name  *string `json:"name" validate:"omitempty,min=1,max=120"`
	Notes *string `json:"notes" validate:"omitempty,max=1000"`
}

type NextCodeDTO struct {
	Code string `json:"code"`
}

func toDTO(m *models.Category) CategoryDTO {
	return CategoryDTO{
		ID:        m.ID,
		Code:      m.Code,
		Name:      m.Name,
		Notes:     m.Notes,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
