// Package storage caches labeled catalog observations in BoltDB so that
// training runs can be replayed offline without re-fetching the catalog.
package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"neo-guard/internal/neo"
)

const observationsBucket = "observations"

// Store provides persistent observation storage backed by BoltDB.
type Store struct {
	db *bbolt.DB
}

// New opens (or creates) the observation database under dataPath.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "neo-guard.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(observationsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create observations bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// PutObservations upserts a batch of observations keyed by catalog id, so
// repeated fetches refresh rather than duplicate.
func (s *Store) PutObservations(obs []neo.Observation) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(observationsBucket))
		for _, o := range obs {
			data, err := json.Marshal(o)
			if err != nil {
				return fmt.Errorf("marshal observation %s: %w", o.NeoID, err)
			}
			if err := b.Put([]byte(o.NeoID), data); err != nil {
				return fmt.Errorf("store observation %s: %w", o.NeoID, err)
			}
		}
		return nil
	})
}

// Observations returns every cached observation.
func (s *Store) Observations() ([]neo.Observation, error) {
	var out []neo.Observation
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(observationsBucket))
		return b.ForEach(func(k, v []byte) error {
			var o neo.Observation
			if err := json.Unmarshal(v, &o); err != nil {
				return fmt.Errorf("unmarshal observation %s: %w", k, err)
			}
			out = append(out, o)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of cached observations.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(observationsBucket)).Stats().KeyN
		return nil
	})
	return n, err
}
