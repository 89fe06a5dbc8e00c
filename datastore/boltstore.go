package datastore

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"
)

// BoltStoreOptions configure the file-backed store.
type BoltStoreOptions struct {
	// Path is the database file. Parent directories are created as needed.
	Path string `validate:"required"`

	// Timeout bounds the wait for the file lock. Zero waits indefinitely.
	Timeout time.Duration

	// NoSync sets the initial value of DB.NoSync.
	NoSync bool
}

// BoltStore persists entities in a bbolt file, one bucket per kind, values
// msgpack-encoded.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if necessary) the database file.
func NewBoltStore(options *BoltStoreOptions) (*BoltStore, error) {
	if err := validator.New().Struct(options); err != nil {
		return nil, errors.Wrap(err, "invalid bolt store options")
	}
	directory := filepath.Dir(options.Path)
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, errors.Wrapf(err, "os.MkdirAll failed. directory: %s", directory)
	}
	db, err := bolt.Open(options.Path, 0o600, &bolt.Options{
		Timeout: options.Timeout,
		NoSync:  options.NoSync,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "bolt.Open failed. path: %s", options.Path)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(ctx context.Context, kind, key string) (Entity, error) {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(kind))
		if bucket == nil {
			return ErrNoSuchEntity
		}
		data := bucket.Get([]byte(key))
		if data == nil {
			return ErrNoSuchEntity
		}
		// bbolt reuses the page memory once the transaction ends.
		raw = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return Entity{}, err
	}
	return decodeEntity(kind, key, raw)
}

func (s *BoltStore) Put(ctx context.Context, entity Entity) (Entity, error) {
	if entity.Key == "" {
		entity.Key = uuid.NewString()
	}
	raw, err := msgpack.Marshal(entity.Props)
	if err != nil {
		return Entity{}, errors.Wrap(err, "marshal entity failed")
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(entity.Kind))
		if err != nil {
			return errors.Wrap(err, "create bucket failed")
		}
		return bucket.Put([]byte(entity.Key), raw)
	})
	if err != nil {
		return Entity{}, err
	}
	return entity, nil
}

func (s *BoltStore) Delete(ctx context.Context, kind, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(kind))
		if bucket == nil {
			return ErrNoSuchEntity
		}
		if bucket.Get([]byte(key)) == nil {
			return ErrNoSuchEntity
		}
		return bucket.Delete([]byte(key))
	})
}

func (s *BoltStore) Count(ctx context.Context, q Query) (int, error) {
	entities, err := s.scan(q.Kind)
	if err != nil {
		return 0, err
	}
	return countMatches(entities, q.Filters), nil
}

func (s *BoltStore) Run(ctx context.Context, q Query) ([]Entity, error) {
	entities, err := s.scan(q.Kind)
	if err != nil {
		return nil, err
	}
	return applyQuery(entities, q), nil
}

func (s *BoltStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return errors.Wrap(err, "close database failed")
}

func (s *BoltStore) scan(kind string) ([]Entity, error) {
	var entities []Entity
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(kind))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			entity, err := decodeEntity(kind, string(k), v)
			if err != nil {
				return err
			}
			entities = append(entities, entity)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entities, nil
}

func decodeEntity(kind, key string, raw []byte) (Entity, error) {
	var props map[string]any
	if err := msgpack.Unmarshal(raw, &props); err != nil {
		return Entity{}, errors.Wrapf(err, "unmarshal entity failed. kind: %s, key: %s", kind, key)
	}
	for name, value := range props {
		props[name] = normalizeValue(value)
	}
	return Entity{Kind: kind, Key: key, Props: props}, nil
}

// normalizeValue folds the concrete types msgpack produces back into the
// property types the rest of the system works with: int64 for whole numbers,
// float64 for reals, []string for string lists.
func normalizeValue(value any) any {
	switch v := value.(type) {
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return int64(v)
	case float32:
		return float64(v)
	case []any:
		strs := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return v
			}
			strs = append(strs, s)
		}
		return strs
	default:
		return value
	}
}

var _ Store = (*BoltStore)(nil)
