package postgres

import (
	errors "github.com/rizalfahlevi/booking-management/internal"
	userDatamodel "github.com/rizalfahlevi/booking-management/internal/core/datamodel/user"
	"github.com/rizalfahlevi/booking-management/internal/user"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) user.RepositoryAPI {
	return &UserRepository{db: db}
}

func (r *UserRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *UserRepository) GetByID(tx *gorm.DB, id int64) (*user.User, error) {
	var u userDatamodel.User
	err := r.conn(tx).Where("id = ?", id).First(&u).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrUserNotFound
		}
		return nil, err
	}
	return user.FromDataModel(&u), nil
}

func (r *UserRepository) GetByIDs(tx *gorm.DB, ids []int64) (map[int64]*user.User, error) {
	var rows []*userDatamodel.User
	if err := r.conn(tx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}

	result := make(map[int64]*user.User, len(rows))
	for _, row := range rows {
		result[row.ID] = user.FromDataModel(row)
	}
	return result, nil
}
