package application

import (
	"time"

	"service-template/example/domain"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
)

type CreateExampleDTO struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UpdateExampleDTO: campos nil não são alterados.
type UpdateExampleDTO struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

type ExampleDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func FromEntity(e *domain.Example) (ExampleDTO, error) {
	var dto ExampleDTO
	if err := copier.Copy(&dto, e); err != nil {
		return ExampleDTO{}, err
	}
	return dto, nil
}
