package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gomartvn/gomart-backend/pkg/enums"
)

// Setting is one runtime-overridable configuration value stored as text and
// parsed according to its ValueType discriminant.
type Setting struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	Key       string                 `gorm:"column:key;uniqueIndex;not null"`
	Value     string                 `gorm:"column:value;not null"`
	ValueType enums.SettingValueType `gorm:"column:value_type;type:text;not null;default:'string'"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Setting) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
