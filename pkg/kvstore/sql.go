package kvstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shopfront/storefront/pkg/db/models"
	pkgerrors "github.com/shopfront/storefront/pkg/errors"
)

// SQL stores records in the kv_records table.
type SQL struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSQL binds the store to an open gorm connection.
func NewSQL(db *gorm.DB) *SQL {
	return &SQL{db: db, now: time.Now}
}

func (s *SQL) Get(ctx context.Context, key string) ([]byte, error) {
	var record models.KVRecord
	err := s.db.WithContext(ctx).Where("record_key = ?", key).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "read kv record")
	}
	return []byte(record.Value), nil
}

func (s *SQL) Set(ctx context.Context, key string, value []byte) error {
	record := models.KVRecord{
		Key:       key,
		Value:     string(value),
		UpdatedAt: s.now().UTC(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "record_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "write kv record")
	}
	return nil
}

func (s *SQL) Delete(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).Where("record_key = ?", key).Delete(&models.KVRecord{}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "delete kv record")
	}
	return nil
}
