// Package store keeps conversion records so clients can look a conversion up
// after the upload request that ran it has returned.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/soundprediction/go-tabgraph"
	"github.com/soundprediction/go-tabgraph/pkg/types"
)

var (
	// ErrNotFound is returned when a record is unknown or has expired
	ErrNotFound = errors.New("conversion record not found")
)

const keyPrefix = "conversion:"

// Record describes one finished conversion.
type Record struct {
	ID          string             `json:"id"`
	CreatedAt   time.Time          `json:"created_at"`
	Inputs      []string           `json:"inputs"`
	Format      types.Format       `json:"format"`
	Message     string             `json:"message"`
	NodesFile   string             `json:"nodes_file"`
	EdgesFile   string             `json:"edges_file"`
	NodeCount   int                `json:"node_count"`
	EdgeCount   int                `json:"edge_count"`
	Diagnostics []types.Diagnostic `json:"diagnostics,omitempty"`
}

// NewRecord builds a record with a fresh ID for result.
func NewRecord(result *tabgraph.Result, inputs []string) *Record {
	return &Record{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		Inputs:      inputs,
		Format:      result.Format,
		Message:     result.Summary(),
		NodesFile:   result.NodesFile,
		EdgesFile:   result.EdgesFile,
		NodeCount:   result.NodeCount,
		EdgeCount:   result.EdgeCount,
		Diagnostics: result.Diagnostics,
	}
}

// Store persists conversion records.
type Store interface {
	// Put stores a record, assigning an ID when it has none
	Put(ctx context.Context, rec *Record) error
	// Get retrieves a record by ID
	Get(ctx context.Context, id string) (*Record, error)
	// Delete removes a record
	Delete(ctx context.Context, id string) error
	// Close closes the store
	Close() error
}

// BadgerStore implements Store using BadgerDB. Records expire after the
// configured TTL; a zero TTL keeps them forever.
type BadgerStore struct {
	db  *badger.DB
	ttl time.Duration
}

// Open opens a BadgerDB-backed store at path. An empty path keeps records in
// memory for the life of the process.
func Open(path string, ttl time.Duration) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	return &BadgerStore{db: db, ttl: ttl}, nil
}

// Put stores rec under its ID.
func (s *BadgerStore) Put(ctx context.Context, rec *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(keyPrefix+rec.ID), value)
		if s.ttl > 0 {
			e = e.WithTTL(s.ttl)
		}
		return txn.SetEntry(e)
	})
}

// Get retrieves the record stored under id.
func (s *BadgerStore) Get(ctx context.Context, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + id))
		if err != nil {
			return err
		}

		val, err = item.ValueCopy(nil)
		return err
	})

	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rec := &Record{}
	if err := json.Unmarshal(val, rec); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", id, err)
	}
	return rec, nil
}

// Delete removes the record stored under id.
func (s *BadgerStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + id))
	})
}

// Close closes the store
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
