package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"image-crawler/pkg/log"
	"image-crawler/pkg/models"
	"image-crawler/pkg/parse"
	"image-crawler/pkg/utils"
)

const sizeKeyPrefix = "size:"

// BadgerStore implements SizeStore on an in-memory BadgerDB.
// Nothing touches disk; entries expire after the configured TTL.
type BadgerStore struct {
	db  *badger.DB
	ttl time.Duration
	log *logrus.Entry
}

// NewBadgerStore opens an in-memory store. ttl <= 0 keeps entries for the process lifetime.
func NewBadgerStore(ttl time.Duration, logger *logrus.Entry) (*BadgerStore, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(log.NewBadgerAdapter(logger)).
		WithNumVersionsToKeep(1).
		WithMemTableSize(8 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open in-memory probe cache: %w", utils.ErrDatabase, err)
	}
	logger.WithField("ttl", ttl).Debug("Probe size cache initialized")
	return &BadgerStore{db: db, ttl: ttl, log: logger}, nil
}

func sizeKey(resourceURL string) []byte {
	return []byte(sizeKeyPrefix + parse.CacheKey(resourceURL))
}

// GetSize implements SizeStore
func (s *BadgerStore) GetSize(resourceURL string) (int64, bool, error) {
	key := sizeKey(resourceURL)
	var entry models.SizeCacheEntry
	found := false

	err := s.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return errGet
		}
		return item.Value(func(val []byte) error {
			if errJSON := json.Unmarshal(val, &entry); errJSON != nil {
				s.log.Warnf("Discarding undecodable cache entry for '%s': %v", string(key), errJSON)
				return nil
			}
			found = entry.SizeBytes >= 0
			return nil
		})
	})
	if err != nil {
		return models.SizeUnknown, false, fmt.Errorf("%w: reading key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	if !found {
		return models.SizeUnknown, false, nil
	}
	return entry.SizeBytes, true, nil
}

// PutSize implements SizeStore
func (s *BadgerStore) PutSize(resourceURL string, size int64) error {
	if size < 0 {
		return nil
	}
	key := sizeKey(resourceURL)
	val, err := json.Marshal(models.SizeCacheEntry{SizeBytes: size, ProbedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("%w: failed to marshal cache entry for key '%s': %w", utils.ErrParsing, string(key), err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(key, val)
		if s.ttl > 0 {
			e = e.WithTTL(s.ttl)
		}
		return txn.SetEntry(e)
	})
	if errors.Is(err, badger.ErrConflict) {
		// Two probes of the same URL raced; either value is correct
		s.log.Debugf("Cache write conflict on '%s' ignored", string(key))
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: writing key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	return nil
}

// Len implements SizeStore. Expired entries are not counted.
func (s *BadgerStore) Len() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(sizeKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: counting keys: %w", utils.ErrDatabase, err)
	}
	return count, nil
}

// Close implements SizeStore
func (s *BadgerStore) Close() error {
	if s.db == nil || s.db.IsClosed() {
		return nil
	}
	if err := s.db.Close(); err != nil {
		s.log.Errorf("Error closing probe cache: %v", err)
		return fmt.Errorf("%w: close: %w", utils.ErrDatabase, err)
	}
	s.log.Debug("Probe cache closed")
	return nil
}
