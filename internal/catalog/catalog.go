package catalog

import (
	"time"

	catalogDatamodel "github.com/rizalfahlevi/booking-management/internal/core/datamodel/catalog"
)

type Service struct {
	ID          int64     `json:"id"`
	ProviderID  int64     `json:"provider_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (s *Service) IsBookable() bool {
	return s.IsActive
}

func (s *Service) ToResponse() ServiceResponse {
	return ServiceResponse{
		ID:          s.ID,
		ProviderID:  s.ProviderID,
		Name:        s.Name,
		Description: s.Description,
		Price:       s.Price,
	}
}

func FromDataModel(s *catalogDatamodel.Service) *Service {
	return &Service{
		ID:          s.ID,
		ProviderID:  s.ProviderID,
		Name:        s.Name,
		Description: s.Description,
		Price:       s.Price,
		IsActive:    s.IsActive,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}
