package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base is the base model for rows that are not addressed by a site-local number.
// ID is a UUID string.
type Base struct {
	ID        string         `json:"id"       gorm:"type:char(36);primaryKey"`
	CreatedAt time.Time      `json:"created"`
	UpdatedAt time.Time      `json:"modified"`
	DeletedAt gorm.DeletedAt `json:"-"        gorm:"index"`
}

func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return nil
}

// Built-in member ids. Real members start at FirstRealMemberID.
const (
	UnknownUserID     int64 = -3
	SystemUserID      int64 = 1
	SysbotUserID      int64 = 2
	FirstRealMemberID int64 = 100
)
