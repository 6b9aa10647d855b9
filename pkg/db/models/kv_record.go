package models

import "time"

// KVRecord is one persisted storefront document, such as the saved cart or the order log.
type KVRecord struct {
	Key       string    `gorm:"column:record_key;primaryKey"`
	Value     string    `gorm:"column:value;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (KVRecord) TableName() string { return "kv_records" }
