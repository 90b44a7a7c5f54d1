package user

import (
	"time"

	userDatamodel "github.com/rizalfahlevi/booking-management/internal/core/datamodel/user"
	"gorm.io/gorm"
)

type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// RepositoryAPI is consumed by the notification dispatcher and the expiry
// sweep; both only need recipient lookups. Transactional callers pass their
// tx handle, others pass nil.
type RepositoryAPI interface {
	GetByID(tx *gorm.DB, id int64) (*User, error)
	GetByIDs(tx *gorm.DB, ids []int64) (map[int64]*User, error)
}

func FromDataModel(u *userDatamodel.User) *User {
	return &User{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}
