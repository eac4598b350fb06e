package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Record is the row layout of the postgres engine: the serialized post
// keyed by its id, nothing else.
type Record struct {
	ID        string    `gorm:"primaryKey;type:text"`
	Data      []byte    `gorm:"type:bytea;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Record) TableName() string {
	return "post_records"
}

type Postgres struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Put(ctx context.Context, id string, value []byte) error {
	rec := Record{ID: id, Data: value, UpdatedAt: time.Now()}
	return p.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
		}).
		Create(&rec).Error
}

func (p *Postgres) Get(ctx context.Context, id string) ([]byte, error) {
	var rec Record
	err := p.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.Data, nil
}

func (p *Postgres) Update(ctx context.Context, id string, fn UpdateFunc) error {
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec Record
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		next, err := fn(rec.Data)
		if err != nil {
			return err
		}

		return tx.Model(&Record{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"data":       next,
				"updated_at": time.Now(),
			}).Error
	})
	if errors.Is(err, ErrSkipUpdate) {
		return nil
	}
	return err
}

func (p *Postgres) Scan(ctx context.Context, fn ScanFunc) error {
	var batch []Record
	result := p.db.WithContext(ctx).FindInBatches(&batch, 500, func(tx *gorm.DB, _ int) error {
		for _, rec := range batch {
			if err := fn(rec.ID, rec.Data); err != nil {
				return err
			}
		}
		return nil
	})
	return result.Error
}

// Flush is a no-op: every write above commits before returning.
func (p *Postgres) Flush(context.Context) error { return nil }

func (p *Postgres) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close leaves the pool open; it belongs to the db package.
func (p *Postgres) Close() error { return nil }
