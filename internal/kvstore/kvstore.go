// Package kvstore implements the persistent key-value store backing the
// application. Values are JSON blobs addressed by (namespace, key), with an
// optional per-namespace TTL. Entries survive process restarts; expired
// entries are treated as absent and purged opportunistically on read.
package kvstore

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"plantframe/internal/errors"
	"plantframe/internal/logging"
	"plantframe/internal/observability/metrics"
)

// Package-level logger specific to the store service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "kvstore.log")
	serviceLevelVar.Set(slog.LevelInfo)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "kvstore", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize kvstore file logger at %s: %v. Service logging disabled.", logFilePath, err)
		logger = logging.Discard("kvstore")
		closeLogger = func() error { return nil }
	}
}

// KV is the contract consumed by components that persist state. Implemented
// by *Bucket.
type KV interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string, fn func(key string, raw []byte) error) error
}

// Entry is one stored record. The TTL of the owning bucket is stamped into
// ExpiresAt at write time; a nil ExpiresAt means the entry is durable.
type Entry struct {
	Namespace string     `gorm:"primaryKey;size:64"`
	Key       string     `gorm:"primaryKey;size:512"`
	Value     []byte     `gorm:"type:blob"`
	ExpiresAt *time.Time `gorm:"index"`
	UpdatedAt time.Time
}

// Store owns the sqlite database shared by all buckets.
type Store struct {
	db      *gorm.DB
	metrics *metrics.StoreMetrics
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithMetrics attaches store metrics. Without it metric updates are skipped.
func WithMetrics(m *metrics.StoreMetrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// withClock overrides the time source, used by expiry tests.
func withClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open opens or creates the store database at path and runs migration.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Newf("failed to open store database: %w", err).
			Category(errors.CategoryStore).
			Context("path", path).
			Component("kvstore").
			Build()
	}

	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, errors.Newf("failed to migrate store schema: %w", err).
			Category(errors.CategoryStore).
			Context("path", path).
			Component("kvstore").
			Build()
	}

	store := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(store)
	}

	logger.Info("key-value store opened", "path", path)
	return store, nil
}

// Close closes the underlying database connection and the service log file.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.Close()
	}
	if closeLogger != nil {
		if cerr := closeLogger(); cerr != nil {
			log.Printf("Error closing kvstore logger: %v", cerr)
		}
	}
	if err != nil {
		return errors.Newf("failed to close store database: %w", err).
			Category(errors.CategoryStore).
			Component("kvstore").
			Build()
	}
	return nil
}

// Namespace returns a bucket handle for the given namespace. Entries written
// through the bucket expire after ttl; ttl of zero disables expiry.
func (s *Store) Namespace(name string, ttl time.Duration) *Bucket {
	return &Bucket{store: s, name: name, ttl: ttl}
}

// Bucket is a namespaced view of the store. Safe for concurrent use.
type Bucket struct {
	store *Store
	name  string
	ttl   time.Duration
}

// Get reads the value for key into dest. It returns false with a nil error
// when the key is absent or expired.
func (b *Bucket) Get(ctx context.Context, key string, dest any) (bool, error) {
	s := b.store
	if s.metrics != nil {
		s.metrics.Reads.Inc()
	}

	var entry Entry
	err := s.db.WithContext(ctx).
		Where("namespace = ? AND key = ?", b.name, key).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, b.fail("read", key, err)
	}

	if entry.ExpiresAt != nil && !entry.ExpiresAt.After(s.now()) {
		if s.metrics != nil {
			s.metrics.ExpiredPurge.Inc()
		}
		// Lazy purge, last-writer-wins semantics make a racing Set harmless.
		// The key still reads as absent when the purge fails; the row gets
		// another chance on the next read.
		if derr := s.db.WithContext(ctx).
			Where("namespace = ? AND key = ?", b.name, key).
			Delete(&Entry{}).Error; derr != nil {
			if s.metrics != nil {
				s.metrics.Errors.Inc()
			}
			logger.Error("failed to purge expired entry",
				"namespace", b.name,
				"key", key,
				"error", derr)
		}
		return false, nil
	}

	if err := json.Unmarshal(entry.Value, dest); err != nil {
		return false, b.fail("decode", key, err)
	}
	return true, nil
}

// Set writes value under key, replacing any previous entry.
func (b *Bucket) Set(ctx context.Context, key string, value any) error {
	s := b.store
	if s.metrics != nil {
		s.metrics.Writes.Inc()
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return b.fail("encode", key, err)
	}

	entry := Entry{
		Namespace: b.name,
		Key:       key,
		Value:     raw,
		UpdatedAt: s.now(),
	}
	if b.ttl > 0 {
		expires := s.now().Add(b.ttl)
		entry.ExpiresAt = &expires
	}

	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "namespace"}, {Name: "key"}},
			UpdateAll: true,
		}).
		Create(&entry).Error
	if err != nil {
		return b.fail("write", key, err)
	}
	return nil
}

// Delete removes key from the bucket. Deleting an absent key is not an error.
func (b *Bucket) Delete(ctx context.Context, key string) error {
	s := b.store
	if s.metrics != nil {
		s.metrics.Deletes.Inc()
	}

	err := s.db.WithContext(ctx).
		Where("namespace = ? AND key = ?", b.name, key).
		Delete(&Entry{}).Error
	if err != nil {
		return b.fail("delete", key, err)
	}
	return nil
}

// List calls fn for every live entry whose key starts with prefix, in key
// order. Returning an error from fn stops the scan.
func (b *Bucket) List(ctx context.Context, prefix string, fn func(key string, raw []byte) error) error {
	s := b.store

	var entries []Entry
	q := s.db.WithContext(ctx).
		Where("namespace = ?", b.name).
		Where("expires_at IS NULL OR expires_at > ?", s.now()).
		Order("key")
	if prefix != "" {
		q = q.Where("key LIKE ?", prefix+"%")
	}
	if err := q.Find(&entries).Error; err != nil {
		return b.fail("list", prefix, err)
	}

	for i := range entries {
		if err := fn(entries[i].Key, entries[i].Value); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bucket) fail(op, key string, err error) error {
	if b.store.metrics != nil {
		b.store.metrics.Errors.Inc()
	}
	logger.Error("store operation failed",
		"operation", op,
		"namespace", b.name,
		"key", key,
		"error", err)
	return errors.Newf("store %s failed for %s/%s: %w", op, b.name, key, err).
		Category(errors.CategoryStore).
		Context("operation", op).
		Context("namespace", b.name).
		Context("key", key).
		Component("kvstore").
		Build()
}
