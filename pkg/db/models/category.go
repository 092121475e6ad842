package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Category is a node in the acyclic catalog tree. Only the parent edge is
// stored; children are derived by indexed query on parent_id.
type Category struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ParentID    *uuid.UUID `gorm:"column:parent_id;type:uuid;index"`
	Name        string     `gorm:"column:name;not null"`
	Slug        string     `gorm:"column:slug;uniqueIndex;not null"`
	Description *string    `gorm:"column:description"`
	Position    int        `gorm:"column:position;not null;default:0"`
	IsActive    bool       `gorm:"column:is_active;not null;default:true"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Category) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
