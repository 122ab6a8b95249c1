// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
//
// Every document is one row; its fields are stored as a protobuf-encoded
// structpb.Struct. Filters are evaluated in Go after loading a collection,
// which is fine at the sizes a single team produces.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/workaholic/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	hub *storage.Hub

	mu          sync.Mutex
	lastCreated int64
	now         func() time.Time
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := db.QueryRow("SELECT COALESCE(MAX(created_at), 0) FROM documents").Scan(&s.lastCreated); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read last creation time: %w", err)
	}
	s.hub = storage.NewHub(s.Query)
	return s, nil
}

// Close ends every subscription and closes the database connection.
func (s *SQLiteStore) Close() error {
	s.hub.Close()
	return s.db.Close()
}

// Create persists a new document.
func (s *SQLiteStore) Create(ctx context.Context, collection string, doc *storage.Document) error {
	if err := storage.ValidateCollection(collection); err != nil {
		return err
	}
	fields, err := storage.NormalizeFields(doc.Fields)
	if err != nil {
		return err
	}
	blob, err := encodeFields(fields)
	if err != nil {
		return err
	}

	// Generate ID if not set
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	createdAt := s.nextCreatedAt()

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO documents (collection, id, fields, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		collection, doc.ID, blob, createdAt, createdAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s/%s", storage.ErrAlreadyExists, collection, doc.ID)
		}
		return fmt.Errorf("failed to insert document: %w", err)
	}
	doc.Fields = fields
	doc.CreatedAt = createdAt

	s.hub.Notify(ctx, collection)
	return nil
}

// Get retrieves a document by ID.
func (s *SQLiteStore) Get(ctx context.Context, collection, id string) (*storage.Document, error) {
	doc := &storage.Document{ID: id}
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT fields, created_at FROM documents WHERE collection = ? AND id = ?",
		collection, id,
	).Scan(&blob, &doc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", storage.ErrNotFound, collection, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}

	doc.Fields, err = decodeFields(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to decode document %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

// Update merges fields into an existing document.
func (s *SQLiteStore) Update(ctx context.Context, collection, id string, fields storage.Fields) error {
	update, err := storage.NormalizeFields(fields)
	if err != nil {
		return err
	}
	return s.modify(ctx, collection, id, func(current storage.Fields) {
		for k, v := range update {
			current[k] = v
		}
	})
}

// ArrayUnion adds values to the array in field within one transaction.
func (s *SQLiteStore) ArrayUnion(ctx context.Context, collection, id, field string, values ...any) error {
	values, err := storage.NormalizeUnion(collection, field, values)
	if err != nil {
		return err
	}
	return s.modify(ctx, collection, id, func(current storage.Fields) {
		current[field] = storage.UnionValues(current[field], values)
	})
}

// modify reads a document, applies change to its fields and writes it back
// in one transaction.
func (s *SQLiteStore) modify(ctx context.Context, collection, id string, change func(storage.Fields)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var blob []byte
	err = tx.QueryRowContext(ctx,
		"SELECT fields FROM documents WHERE collection = ? AND id = ?",
		collection, id,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s/%s", storage.ErrNotFound, collection, id)
	}
	if err != nil {
		return fmt.Errorf("failed to query document: %w", err)
	}

	current, err := decodeFields(blob)
	if err != nil {
		return fmt.Errorf("failed to decode document %s/%s: %w", collection, id, err)
	}
	change(current)
	blob, err = encodeFields(current)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE documents SET fields = ?, updated_at = ? WHERE collection = ? AND id = ?",
		blob, s.now().UnixMilli(), collection, id,
	); err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.hub.Notify(ctx, collection)
	return nil
}

// Delete removes a document.
func (s *SQLiteStore) Delete(ctx context.Context, collection, id string) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE collection = ? AND id = ?",
		collection, id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s/%s", storage.ErrNotFound, collection, id)
	}

	s.hub.Notify(ctx, collection)
	return nil
}

// Query returns the matching documents ordered by creation.
func (s *SQLiteStore) Query(ctx context.Context, q storage.Query) ([]storage.Document, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, fields, created_at FROM documents WHERE collection = ? ORDER BY created_at, id",
		q.Collection,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	docs := []storage.Document{}
	for rows.Next() {
		var doc storage.Document
		var blob []byte
		if err := rows.Scan(&doc.ID, &blob, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc.Fields, err = decodeFields(blob)
		if err != nil {
			return nil, fmt.Errorf("failed to decode document %s/%s: %w", q.Collection, doc.ID, err)
		}
		if q.Matches(&doc) {
			docs = append(docs, doc)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return docs, nil
}

// Watch subscribes to q.
func (s *SQLiteStore) Watch(ctx context.Context, q storage.Query) (*storage.Subscription, error) {
	return s.hub.Watch(ctx, q)
}

// nextCreatedAt returns a strictly increasing millisecond timestamp.
func (s *SQLiteStore) nextCreatedAt() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.now().UnixMilli()
	if ts <= s.lastCreated {
		ts = s.lastCreated + 1
	}
	s.lastCreated = ts
	return ts
}

func encodeFields(fields storage.Fields) ([]byte, error) {
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrInvalidArgument, err)
	}
	blob, err := proto.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fields: %w", err)
	}
	return blob, nil
}

func decodeFields(blob []byte) (storage.Fields, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(blob, &st); err != nil {
		return nil, err
	}
	return st.AsMap(), nil
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY")
}
