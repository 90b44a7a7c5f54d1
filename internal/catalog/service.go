package catalog

import (
	"log/slog"

	"gorm.io/gorm"
)

type RepositoryAPI interface {
	GetAll() ([]*Service, error)
	GetByID(tx *gorm.DB, id int64) (*Service, error)
}

type CatalogService struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		repo:   repo,
		logger: logger,
	}
}

func (s *CatalogService) GetBookableServices() ([]ServiceResponse, error) {
	services, err := s.repo.GetAll()
	if err != nil {
		s.logger.Error("failed to get services from repository", "error", err)
		return nil, err
	}

	var responses []ServiceResponse
	for _, svc := range services {
		if svc.IsBookable() {
			responses = append(responses, svc.ToResponse())
		}
	}

	s.logger.Info("retrieved bookable services", "count", len(responses))
	return responses, nil
}
