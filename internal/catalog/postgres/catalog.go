package postgres

import (
	errors "github.com/rizalfahlevi/booking-management/internal"
	"github.com/rizalfahlevi/booking-management/internal/catalog"
	catalogDatamodel "github.com/rizalfahlevi/booking-management/internal/core/datamodel/catalog"
	"gorm.io/gorm"
)

type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) catalog.RepositoryAPI {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *CatalogRepository) GetAll() ([]*catalog.Service, error) {
	var rows []*catalogDatamodel.Service
	err := r.db.Order("name ASC").Find(&rows).Error
	if err != nil {
		return nil, err
	}

	services := make([]*catalog.Service, len(rows))
	for i, row := range rows {
		services[i] = catalog.FromDataModel(row)
	}
	return services, nil
}

func (r *CatalogRepository) GetByID(tx *gorm.DB, id int64) (*catalog.Service, error) {
	var row catalogDatamodel.Service
	err := r.conn(tx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrServiceNotFound
		}
		return nil, err
	}
	return catalog.FromDataModel(&row), nil
}
