package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
)

// GormRecord is the row layout used by gorm backed collections.
type GormRecord struct {
	Collection string  `gorm:"primaryKey;size:64;uniqueIndex:idx_document_records_key,priority:1"`
	ID         string  `gorm:"primaryKey;size:64"`
	NaturalKey *string `gorm:"size:64;uniqueIndex:idx_document_records_key,priority:2"`
	Body       string  `gorm:"type:text;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName keeps gorm rows apart from the JSONB records table.
func (GormRecord) TableName() string { return "document_records" }

// OpenSQLite opens a local database file and migrates the record table.
func OpenSQLite(path string) (*gorm.DB, error) {
	return openGorm(sqlite.Open(path))
}

// OpenGormPostgres opens a postgres database through gorm and migrates the record table.
func OpenGormPostgres(dsn string) (*gorm.DB, error) {
	return openGorm(postgres.Open(dsn))
}

func openGorm(dialector gorm.Dialector) (*gorm.DB, error) {
	gdb, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dialector.Name(), err)
	}
	if err := gdb.AutoMigrate(&GormRecord{}); err != nil {
		return nil, fmt.Errorf("store: migrate %s: %w", dialector.Name(), err)
	}
	return gdb, nil
}

// GormCollection stores records as JSON text rows through gorm.
type GormCollection[T Entity] struct {
	db   *gorm.DB
	name string
}

// NewGorm constructs a gorm backed collection.
func NewGorm[T Entity](db *gorm.DB, name string) *GormCollection[T] {
	return &GormCollection[T]{db: db, name: name}
}

// Name returns the collection name.
func (c *GormCollection[T]) Name() string { return c.name }

// GetAll loads every record of the collection in insertion order.
func (c *GormCollection[T]) GetAll(ctx context.Context) ([]T, error) {
	var rows []GormRecord
	err := c.db.WithContext(ctx).Where("collection = ?", c.name).Order("created_at, id").Find(&rows).Error
	if err != nil {
		return nil, shared.Persistence("list", c.name, err)
	}
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		var item T
		if err := json.Unmarshal([]byte(row.Body), &item); err != nil {
			return nil, shared.Persistence("list", c.name, err)
		}
		out = append(out, item)
	}
	return out, nil
}

// Add inserts the record.
func (c *GormCollection[T]) Add(ctx context.Context, item T) (T, error) {
	row, err := c.row(item)
	if err != nil {
		return item, shared.Persistence("add", c.name, err)
	}
	if err := c.db.WithContext(ctx).Create(&row).Error; err != nil {
		return item, shared.Persistence("add", c.name, translateGormError(err))
	}
	return item, nil
}

// Update replaces the record body.
func (c *GormCollection[T]) Update(ctx context.Context, item T) (T, error) {
	row, err := c.row(item)
	if err != nil {
		return item, shared.Persistence("update", c.name, err)
	}
	res := c.db.WithContext(ctx).Model(&GormRecord{}).
		Where("collection = ? AND id = ?", c.name, row.ID).
		Updates(map[string]any{"body": row.Body, "natural_key": row.NaturalKey, "updated_at": time.Now()})
	if res.Error != nil {
		return item, shared.Persistence("update", c.name, translateGormError(res.Error))
	}
	if res.RowsAffected == 0 {
		return item, &shared.NotFoundError{Collection: c.name, ID: row.ID}
	}
	return item, nil
}

// Delete removes the record.
func (c *GormCollection[T]) Delete(ctx context.Context, id string) error {
	res := c.db.WithContext(ctx).Where("collection = ? AND id = ?", c.name, id).Delete(&GormRecord{})
	if res.Error != nil {
		return shared.Persistence("delete", c.name, res.Error)
	}
	if res.RowsAffected == 0 {
		return &shared.NotFoundError{Collection: c.name, ID: id}
	}
	return nil
}

// IncrementNumber adds delta to field with a single UPDATE expression, then
// reads the row back.
func (c *GormCollection[T]) IncrementNumber(ctx context.Context, id, field string, delta float64) (T, error) {
	var updated T
	expr := gorm.Expr(`json_set(body, '$.' || ?, COALESCE(json_extract(body, '$.' || ?), 0) + ?)`, field, field, delta)
	if c.db.Dialector.Name() == "postgres" {
		expr = gorm.Expr(`jsonb_set(body::jsonb, ARRAY[?::text], to_jsonb(COALESCE((body::jsonb->>?::text)::float8, 0) + ?::float8))::text`, field, field, delta)
	}
	if err := c.exec(ctx, id, expr); err != nil {
		return updated, shared.Persistence("increment", c.name, err)
	}
	return c.load(ctx, id, "increment")
}

// UpdateKeeping replaces the record body but keeps the stored value of field.
func (c *GormCollection[T]) UpdateKeeping(ctx context.Context, item T, field string) (T, error) {
	var updated T
	row, err := c.row(item)
	if err != nil {
		return updated, shared.Persistence("update", c.name, err)
	}
	expr := gorm.Expr(`json_set(?, '$.' || ?, COALESCE(json_extract(body, '$.' || ?), json_extract(?, '$.' || ?)))`,
		row.Body, field, field, row.Body, field)
	if c.db.Dialector.Name() == "postgres" {
		expr = gorm.Expr(`jsonb_set(?::jsonb, ARRAY[?::text], COALESCE(body::jsonb->?::text, ?::jsonb->?::text, 'null'::jsonb))::text`,
			row.Body, field, field, row.Body, field)
	}
	res := c.db.WithContext(ctx).Model(&GormRecord{}).
		Where("collection = ? AND id = ?", c.name, row.ID).
		Updates(map[string]any{"body": expr, "natural_key": row.NaturalKey, "updated_at": time.Now()})
	if res.Error != nil {
		return updated, shared.Persistence("update", c.name, translateGormError(res.Error))
	}
	if res.RowsAffected == 0 {
		return updated, &shared.NotFoundError{Collection: c.name, ID: row.ID}
	}
	return c.load(ctx, row.ID, "update")
}

func (c *GormCollection[T]) exec(ctx context.Context, id string, body clause.Expr) error {
	res := c.db.WithContext(ctx).Model(&GormRecord{}).
		Where("collection = ? AND id = ?", c.name, id).
		Updates(map[string]any{"body": body, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &shared.NotFoundError{Collection: c.name, ID: id}
	}
	return nil
}

func (c *GormCollection[T]) load(ctx context.Context, id, op string) (T, error) {
	var item T
	var row GormRecord
	err := c.db.WithContext(ctx).Where("collection = ? AND id = ?", c.name, id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return item, &shared.NotFoundError{Collection: c.name, ID: id}
	}
	if err != nil {
		return item, shared.Persistence(op, c.name, err)
	}
	if err := json.Unmarshal([]byte(row.Body), &item); err != nil {
		return item, shared.Persistence(op, c.name, err)
	}
	return item, nil
}

func (c *GormCollection[T]) row(item T) (GormRecord, error) {
	body, err := json.Marshal(item)
	if err != nil {
		return GormRecord{}, err
	}
	return GormRecord{
		Collection: c.name,
		ID:         item.GetID(),
		NaturalKey: nullableKey(naturalKey(item)),
		Body:       string(body),
	}, nil
}

func translateGormError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", shared.ErrConflict, err)
	}
	return err
}
