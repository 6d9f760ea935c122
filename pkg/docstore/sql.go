package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Syntia28/nikos/pkg/config"
	"github.com/Syntia28/nikos/pkg/db"
	"github.com/Syntia28/nikos/pkg/db/models"
	"github.com/Syntia28/nikos/pkg/types"
)

// SQLStore keeps every collection in the documents table with a JSON body.
type SQLStore struct {
	client *db.Client
	conn   *gorm.DB
	driver string
	feed   ChangeFeed
}

// NewSQLStore wraps a postgres or sqlite client; a nil feed falls back to a LocalFeed.
func NewSQLStore(client *db.Client, feed ChangeFeed) (*SQLStore, error) {
	if client == nil {
		return nil, fmt.Errorf("db client is required")
	}
	if feed == nil {
		feed = NewLocalFeed()
	}
	return &SQLStore{
		client: client,
		conn:   client.DB(),
		driver: client.Driver(),
		feed:   feed,
	}, nil
}

func (s *SQLStore) Create(ctx context.Context, collection string, doc Document) (Document, error) {
	body, err := normalize(stripID(doc))
	if err != nil {
		return nil, err
	}
	rec := models.DocumentRecord{
		Collection: collection,
		ID:         uuid.NewString(),
		Body:       types.JSONBody(body),
	}
	if err := s.conn.WithContext(ctx).Create(&rec).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, fmt.Errorf("document %s/%s already exists: %w", collection, rec.ID, err)
		}
		return nil, fmt.Errorf("create %s document: %w", collection, err)
	}
	s.feed.Publish(ctx, collection)
	return withID(body, rec.ID), nil
}

func (s *SQLStore) GetAll(ctx context.Context, collection string) ([]Document, error) {
	var recs []models.DocumentRecord
	err := s.conn.WithContext(ctx).
		Where("collection = ?", collection).
		Order("created_at ASC, id ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list %s documents: %w", collection, err)
	}
	return recordsToDocuments(recs), nil
}

func (s *SQLStore) GetByID(ctx context.Context, collection, id string) (Document, error) {
	rec, err := s.load(s.conn.WithContext(ctx), collection, id)
	if err != nil {
		return nil, err
	}
	return recordToDocument(rec), nil
}

func (s *SQLStore) Update(ctx context.Context, collection, id string, fields Document) error {
	patch, err := normalize(stripID(fields))
	if err != nil {
		return err
	}

	err = s.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if s.driver == config.DocStorePostgres {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		rec, err := s.load(q, collection, id)
		if err != nil {
			return err
		}
		merged := Document(rec.Body)
		if merged == nil {
			merged = Document{}
		}
		for k, v := range patch {
			merged[k] = v
		}
		return tx.Model(&models.DocumentRecord{}).
			Where("collection = ? AND id = ?", collection, id).
			Updates(map[string]any{
				"body":       types.JSONBody(merged),
				"updated_at": time.Now().UTC(),
			}).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	s.feed.Publish(ctx, collection)
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, collection, id string) error {
	res := s.conn.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Delete(&models.DocumentRecord{})
	if res.Error != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, res.Error)
	}
	if res.RowsAffected > 0 {
		s.feed.Publish(ctx, collection)
	}
	return nil
}

// QueryByField narrows string equality in SQL and confirms every candidate in Go,
// so numeric and structured values compare the same way on every driver.
func (s *SQLStore) QueryByField(ctx context.Context, collection, field string, value any) ([]Document, error) {
	q := s.conn.WithContext(ctx).Where("collection = ?", collection)
	if str, ok := value.(string); ok {
		switch s.driver {
		case config.DocStorePostgres:
			q = q.Where("body::jsonb ->> ? = ?", field, str)
		case config.DocStoreSQLite:
			q = q.Where("json_extract(body, ?) = ?", sqliteJSONPath(field), str)
		}
	}

	var recs []models.DocumentRecord
	if err := q.Order("created_at ASC, id ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("query %s by %s: %w", collection, field, err)
	}

	out := make([]Document, 0, len(recs))
	for _, doc := range recordsToDocuments(recs) {
		if matchesField(doc, field, value) {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (s *SQLStore) Watch(ctx context.Context, collection, field string, value any, fn WatchFunc) (func(), error) {
	return watchViaFeed(ctx, s.feed, s, collection, field, value, fn)
}

// RunInTx runs fn inside one database transaction; watchers hear about the writes after commit.
func (s *SQLStore) RunInTx(ctx context.Context, fn func(tx Store) error) error {
	rec := &recordingFeed{}
	run := func(tx *gorm.DB) error {
		return fn(&SQLStore{conn: tx, driver: s.driver, feed: rec})
	}

	var err error
	if s.client != nil {
		err = s.client.WithTx(ctx, run)
	} else {
		err = s.conn.WithContext(ctx).Transaction(run)
	}
	if err != nil {
		return err
	}
	rec.flush(ctx, s.feed)
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Ping(ctx)
}

func (s *SQLStore) Close() error {
	feedErr := s.feed.Close()
	if s.client == nil {
		return feedErr
	}
	if err := s.client.Close(); err != nil {
		return err
	}
	return feedErr
}

func (s *SQLStore) load(q *gorm.DB, collection, id string) (models.DocumentRecord, error) {
	var rec models.DocumentRecord
	err := q.Where("collection = ? AND id = ?", collection, id).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rec, ErrNotFound
	}
	if err != nil {
		return rec, fmt.Errorf("load %s/%s: %w", collection, id, err)
	}
	return rec, nil
}

func sqliteJSONPath(field string) string {
	return `$."` + strings.ReplaceAll(field, `"`, `\"`) + `"`
}

func recordToDocument(rec models.DocumentRecord) Document {
	body := Document(rec.Body)
	if body == nil {
		body = Document{}
	}
	return withID(body, rec.ID)
}

func recordsToDocuments(recs []models.DocumentRecord) []Document {
	out := make([]Document, 0, len(recs))
	for _, rec := range recs {
		out = append(out, recordToDocument(rec))
	}
	return out
}
