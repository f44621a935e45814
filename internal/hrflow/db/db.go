// Package db stores generated document and pack history through GORM.
package db

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	records "github.com/gartstein/hrflow/internal/hrflow/db/models"
	e "github.com/gartstein/hrflow/internal/hrflow/errors"
	"github.com/gartstein/hrflow/internal/hrflow/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Repository struct {
	db *gorm.DB
}

type Config struct {
	// Driver is "sqlite" or "postgres".
	Driver string
	DSN    string
}

func NewRepository(cfg *Config) (*Repository, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite", "":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("%w: unsupported store driver %q", e.ErrConfiguration, cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&records.DocumentRecord{}, &records.PackRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Repository{db: db}, nil
}

// SaveDocument inserts or replaces a document row.
func (r *Repository) SaveDocument(ctx context.Context, doc *models.GeneratedDocument) error {
	return r.upsert(ctx, toDocumentRecord(doc))
}

// upsert rewrites every column of an existing row except its creation
// time, and inserts the row when it does not exist yet.
func (r *Repository) upsert(ctx context.Context, rec any) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(rec).Select("*").Omit("id", "created_at").Updates(rec)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return tx.Create(rec).Error
		}
		return nil
	})
}

func (r *Repository) GetDocument(ctx context.Context, id string) (*models.GeneratedDocument, error) {
	var rec records.DocumentRecord
	result := r.db.WithContext(ctx).First(&rec, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	return fromDocumentRecord(&rec)
}

// ListDocuments returns the newest documents first. An empty employeeID
// lists every employee.
func (r *Repository) ListDocuments(ctx context.Context, employeeID string) ([]*models.GeneratedDocument, error) {
	var recs []records.DocumentRecord
	q := r.db.WithContext(ctx).Omit("payload").Order("created_at desc")
	if employeeID != "" {
		q = q.Where("employee_id = ?", employeeID)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]*models.GeneratedDocument, 0, len(recs))
	for i := range recs {
		doc, err := fromDocumentRecord(&recs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func (r *Repository) SavePack(ctx context.Context, pack *models.Pack) error {
	rec, err := toPackRecord(pack)
	if err != nil {
		return err
	}
	return r.upsert(ctx, rec)
}

func (r *Repository) ListPacks(ctx context.Context, employeeID string) ([]*models.Pack, error) {
	var recs []records.PackRecord
	q := r.db.WithContext(ctx).Order("created_at desc")
	if employeeID != "" {
		q = q.Where("employee_id = ?", employeeID)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]*models.Pack, 0, len(recs))
	for i := range recs {
		pack, err := fromPackRecord(&recs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, pack)
	}
	return out, nil
}

func (r *Repository) Close() error {
	db, err := r.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

func toDocumentRecord(doc *models.GeneratedDocument) *records.DocumentRecord {
	return &records.DocumentRecord{
		ID:                doc.ID,
		EmployeeID:        doc.EmployeeID,
		EmployeeName:      doc.EmployeeName,
		DocumentType:      string(doc.Category),
		Status:            string(doc.Status),
		Payload:           base64.StdEncoding.EncodeToString(doc.Payload),
		Size:              doc.Size,
		GeneratedAt:       doc.GeneratedAt,
		ErrorMessage:      doc.ErrorMessage,
		OperationsApplied: strings.Join(doc.OperationsApplied, ","),
	}
}

func fromDocumentRecord(rec *records.DocumentRecord) (*models.GeneratedDocument, error) {
	payload, err := base64.StdEncoding.DecodeString(rec.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload of document %s: %w", rec.ID, err)
	}
	doc := &models.GeneratedDocument{
		ID:           rec.ID,
		EmployeeID:   rec.EmployeeID,
		EmployeeName: rec.EmployeeName,
		Category:     models.Category(rec.DocumentType),
		Status:       models.DocumentStatus(rec.Status),
		Size:         rec.Size,
		GeneratedAt:  rec.GeneratedAt,
		ErrorMessage: rec.ErrorMessage,
	}
	if len(payload) > 0 {
		doc.Payload = payload
	}
	if rec.OperationsApplied != "" {
		doc.OperationsApplied = strings.Split(rec.OperationsApplied, ",")
	}
	return doc, nil
}

func toPackRecord(pack *models.Pack) (*records.PackRecord, error) {
	opts, err := json.Marshal(pack.Options)
	if err != nil {
		return nil, fmt.Errorf("encode pack options: %w", err)
	}
	types := make([]string, len(pack.Categories))
	for i, c := range pack.Categories {
		types[i] = string(c)
	}
	return &records.PackRecord{
		ID:            pack.ID,
		EmployeeID:    pack.EmployeeID,
		EmployeeName:  pack.EmployeeName,
		DocumentTypes: strings.Join(types, ","),
		Options:       string(opts),
		Status:        string(pack.Status),
		Size:          pack.Size,
		PageCount:     pack.PageCount,
		ErrorMessage:  pack.ErrorMessage,
		CreatedAt:     pack.CreatedAt,
	}, nil
}

func fromPackRecord(rec *records.PackRecord) (*models.Pack, error) {
	pack := &models.Pack{
		ID:           rec.ID,
		EmployeeID:   rec.EmployeeID,
		EmployeeName: rec.EmployeeName,
		Status:       models.PackStatus(rec.Status),
		Size:         rec.Size,
		PageCount:    rec.PageCount,
		ErrorMessage: rec.ErrorMessage,
		CreatedAt:    rec.CreatedAt,
	}
	if rec.Options != "" {
		if err := json.Unmarshal([]byte(rec.Options), &pack.Options); err != nil {
			return nil, fmt.Errorf("decode options of pack %s: %w", rec.ID, err)
		}
	}
	if rec.DocumentTypes != "" {
		for _, t := range strings.Split(rec.DocumentTypes, ",") {
			pack.Categories = append(pack.Categories, models.Category(t))
		}
	}
	return pack, nil
}
