package models

import (
	"time"

	"github.com/Syntia28/nikos/pkg/types"
)

// DocumentRecord is one row of the documents table backing the SQL document store.
type DocumentRecord struct {
	Collection string         `gorm:"column:collection;primaryKey;size:64"`
	ID         string         `gorm:"column:id;primaryKey;size:64"`
	Body       types.JSONBody `gorm:"column:body;type:text;not null"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (DocumentRecord) TableName() string { return "documents" }
