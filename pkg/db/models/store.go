package models

import (
	"time"

	"github.com/google/uuid"
)

// Store is the tenant boundary every order, variant, and loyalty account is
// scoped to. Store lifecycle is owned by an external management surface;
// this service only reads the row.
type Store struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Phone     *string   `gorm:"column:phone"`
	Active    bool      `gorm:"column:active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
