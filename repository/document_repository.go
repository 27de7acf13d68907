package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"vasilala/gateway"
	"vasilala/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocumentRow is the physical row backing one document. Documents are
// stored as a JSON payload keyed by (collection, id); CreatedAt mirrors
// the document's createdAt for index-friendly default ordering.
type DocumentRow struct {
	Collection string    `gorm:"primaryKey;size:64"`
	ID         string    `gorm:"primaryKey;size:64"`
	Data       string    `gorm:"type:json"`
	CreatedAt  time.Time `gorm:"index"`
	UpdatedAt  time.Time
}

// TableName overrides the default pluralization.
func (DocumentRow) TableName() string {
	return "documents"
}

// fieldNamePattern restricts JSON field names usable in filters and
// ordering; anything else would end up inside a JSON path expression.
var fieldNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// GormDocumentStore implements gateway.DocumentStore over a MySQL
// documents table.
type GormDocumentStore struct {
	db *gorm.DB
}

// NewGormDocumentStore creates a document store over the given handle.
func NewGormDocumentStore(db *gorm.DB) *GormDocumentStore {
	return &GormDocumentStore{db: db}
}

var _ gateway.DocumentStore = (*GormDocumentStore)(nil)

// Create inserts a new document. The document's id is taken from the
// "id" field if present, otherwise generated.
func (s *GormDocumentStore) Create(ctx context.Context, collection string, doc gateway.Document) (string, error) {
	id, _ := doc["id"].(string)
	if id == "" {
		id = uuid.New().String()
	}

	now := time.Now().UTC().Truncate(time.Second)
	copied := make(gateway.Document, len(doc)+3)
	for k, v := range doc {
		copied[k] = v
	}
	copied["id"] = id
	if _, ok := copied["createdAt"]; !ok {
		copied["createdAt"] = now.Format(time.RFC3339)
	}
	copied["updatedAt"] = now.Format(time.RFC3339)

	createdAt, err := docCreatedAt(copied, now)
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(copied)
	if err != nil {
		return "", fmt.Errorf("failed to marshal document: %w", err)
	}

	row := DocumentRow{
		Collection: collection,
		ID:         id,
		Data:       string(data),
		CreatedAt:  createdAt,
		UpdatedAt:  now,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", fmt.Errorf("failed to create document in %s: %w", collection, err)
	}
	return id, nil
}

// Get retrieves a document by id.
func (s *GormDocumentStore) Get(ctx context.Context, collection, id string) (gateway.Document, error) {
	var row DocumentRow
	err := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gateway.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document %s/%s: %w", collection, id, err)
	}
	return unmarshalDocument(row)
}

// Update applies a shallow patch to a document inside a transaction.
func (s *GormDocumentStore) Update(ctx context.Context, collection, id string, patch gateway.Document) error {
	return s.modify(ctx, collection, id, func(doc gateway.Document) error {
		for k, v := range patch {
			doc[k] = v
		}
		return nil
	})
}

// Delete removes a document by id.
func (s *GormDocumentStore) Delete(ctx context.Context, collection, id string) error {
	res := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Delete(&DocumentRow{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete document %s/%s: %w", collection, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return gateway.ErrNotFound
	}
	return nil
}

// Query runs a filtered, ordered, cursor-paginated read. Ordering is by
// the createdAt column unless another field is named; the cursor is the
// id of the last document of the previous page.
func (s *GormDocumentStore) Query(ctx context.Context, q gateway.Query) ([]gateway.Document, error) {
	tx := s.db.WithContext(ctx).Model(&DocumentRow{}).Where("collection = ?", q.Collection)

	for _, f := range q.Filters {
		var err error
		tx, err = applyFilter(tx, f)
		if err != nil {
			return nil, err
		}
	}

	orderExpr, usesColumn, err := orderExpression(q.OrderBy)
	if err != nil {
		return nil, err
	}
	dir := "ASC"
	if q.Descending {
		dir = "DESC"
	}

	if q.StartAfter != "" {
		cursorVal, err := s.cursorValue(ctx, q, usesColumn)
		if err != nil {
			return nil, err
		}
		if q.Descending {
			tx = tx.Where(fmt.Sprintf("(%s < ? OR (%s = ? AND id < ?))", orderExpr, orderExpr), cursorVal, cursorVal, q.StartAfter)
		} else {
			tx = tx.Where(fmt.Sprintf("(%s > ? OR (%s = ? AND id > ?))", orderExpr, orderExpr), cursorVal, cursorVal, q.StartAfter)
		}
	}

	tx = tx.Order(fmt.Sprintf("%s %s, id %s", orderExpr, dir, dir))
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var rows []DocumentRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.Collection, err)
	}

	docs := make([]gateway.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := unmarshalDocument(row)
		if err != nil {
			// A corrupt row is skipped, not fatal to the page.
			logger.Warn("skipping corrupt document",
				logger.String("collection", row.Collection),
				logger.String("id", row.ID),
				logger.ErrorField(err))
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Increment atomically adds delta to a numeric field.
func (s *GormDocumentStore) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	if !fieldNamePattern.MatchString(field) {
		return fmt.Errorf("invalid field name %q", field)
	}
	return s.modify(ctx, collection, id, func(doc gateway.Document) error {
		var current int64
		switch v := doc[field].(type) {
		case float64:
			current = int64(v)
		case int64:
			current = v
		case nil:
			current = 0
		default:
			return fmt.Errorf("field %q of %s/%s is not numeric", field, collection, id)
		}
		doc[field] = current + delta
		return nil
	})
}

// ArrayUnion adds values to a set-like string array field, skipping
// values already present.
func (s *GormDocumentStore) ArrayUnion(ctx context.Context, collection, id, field string, values ...string) error {
	return s.modify(ctx, collection, id, func(doc gateway.Document) error {
		existing, err := stringSliceField(doc, field)
		if err != nil {
			return fmt.Errorf("%s/%s: %w", collection, id, err)
		}
		seen := make(map[string]bool, len(existing))
		for _, v := range existing {
			seen[v] = true
		}
		for _, v := range values {
			if !seen[v] {
				existing = append(existing, v)
				seen[v] = true
			}
		}
		doc[field] = existing
		return nil
	})
}

// ArrayRemove removes values from a set-like string array field.
func (s *GormDocumentStore) ArrayRemove(ctx context.Context, collection, id, field string, values ...string) error {
	return s.modify(ctx, collection, id, func(doc gateway.Document) error {
		existing, err := stringSliceField(doc, field)
		if err != nil {
			return fmt.Errorf("%s/%s: %w", collection, id, err)
		}
		drop := make(map[string]bool, len(values))
		for _, v := range values {
			drop[v] = true
		}
		kept := existing[:0]
		for _, v := range existing {
			if !drop[v] {
				kept = append(kept, v)
			}
		}
		doc[field] = kept
		return nil
	})
}

// modify runs a read-modify-write on one document under a row lock.
func (s *GormDocumentStore) modify(ctx context.Context, collection, id string, fn func(gateway.Document) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row DocumentRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("collection = ? AND id = ?", collection, id).
			First(&row).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return gateway.ErrNotFound
			}
			return fmt.Errorf("failed to lock document %s/%s: %w", collection, id, err)
		}

		doc, err := unmarshalDocument(row)
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}

		now := time.Now().UTC()
		doc["updatedAt"] = now.Format(time.RFC3339)
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to marshal document %s/%s: %w", collection, id, err)
		}

		return tx.Model(&DocumentRow{}).
			Where("collection = ? AND id = ?", collection, id).
			Updates(map[string]any{"data": string(data), "updated_at": now}).Error
	})
}

// cursorValue resolves the cursor document's order-field value so the
// page after it can be selected with a (value, id) comparison.
func (s *GormDocumentStore) cursorValue(ctx context.Context, q gateway.Query, usesColumn bool) (any, error) {
	var row DocumentRow
	err := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", q.Collection, q.StartAfter).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("cursor document %s/%s not found", q.Collection, q.StartAfter)
		}
		return nil, fmt.Errorf("failed to resolve cursor: %w", err)
	}
	if usesColumn {
		return row.CreatedAt, nil
	}
	doc, err := unmarshalDocument(row)
	if err != nil {
		return nil, err
	}
	return fmt.Sprint(doc[q.OrderBy]), nil
}

func applyFilter(tx *gorm.DB, f gateway.Filter) (*gorm.DB, error) {
	if !fieldNamePattern.MatchString(f.Field) {
		return nil, fmt.Errorf("invalid filter field %q", f.Field)
	}
	path := "$." + f.Field
	switch f.Op {
	case gateway.OpEqual:
		return tx.Where("JSON_UNQUOTE(JSON_EXTRACT(data, ?)) = ?", path, fmt.Sprint(f.Value)), nil
	case gateway.OpNotEqual:
		return tx.Where("JSON_UNQUOTE(JSON_EXTRACT(data, ?)) <> ?", path, fmt.Sprint(f.Value)), nil
	case gateway.OpLess:
		return tx.Where("JSON_EXTRACT(data, ?) < ?", path, f.Value), nil
	case gateway.OpLessEqual:
		return tx.Where("JSON_EXTRACT(data, ?) <= ?", path, f.Value), nil
	case gateway.OpGreater:
		return tx.Where("JSON_EXTRACT(data, ?) > ?", path, f.Value), nil
	case gateway.OpGreaterEqual:
		return tx.Where("JSON_EXTRACT(data, ?) >= ?", path, f.Value), nil
	case gateway.OpArrayContains:
		return tx.Where("JSON_CONTAINS(JSON_EXTRACT(data, ?), JSON_QUOTE(?))", path, fmt.Sprint(f.Value)), nil
	default:
		return nil, fmt.Errorf("unsupported filter op %q", f.Op)
	}
}

func orderExpression(orderBy string) (expr string, usesColumn bool, err error) {
	if orderBy == "" || orderBy == "createdAt" {
		return "created_at", true, nil
	}
	if !fieldNamePattern.MatchString(orderBy) {
		return "", false, fmt.Errorf("invalid order field %q", orderBy)
	}
	return fmt.Sprintf("JSON_UNQUOTE(JSON_EXTRACT(data, '$.%s'))", orderBy), false, nil
}

func unmarshalDocument(row DocumentRow) (gateway.Document, error) {
	var doc gateway.Document
	if err := json.Unmarshal([]byte(row.Data), &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document %s/%s: %w", row.Collection, row.ID, err)
	}
	return doc, nil
}

func stringSliceField(doc gateway.Document, field string) ([]string, error) {
	v, ok := doc[field]
	if !ok || v == nil {
		return nil, nil
	}
	switch s := v.(type) {
	case []string:
		return s, nil
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("field %q is not a string array", field)
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("field %q is not an array", field)
	}
}

func docCreatedAt(doc gateway.Document, fallback time.Time) (time.Time, error) {
	v, ok := doc["createdAt"]
	if !ok {
		return fallback, nil
	}
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid createdAt: %w", err)
		}
		return parsed, nil
	default:
		return fallback, nil
	}
}
