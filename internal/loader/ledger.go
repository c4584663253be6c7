package loader

import (
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/KatanaGraph/katana-sub004/pkg/perrors"
)

// readGroupRecord is one row of the read-group ledger: a record of a slice
// fetch issued against a backend, kept so repeated LoadPropertySlice calls
// against the same (uri, property, offset, length) can be observed and
// coalesced rather than re-fetched independently.
type readGroupRecord struct {
	ID           uint `gorm:"primarykey"`
	URI          string
	PropertyName string
	Offset       int64
	Length       int64
	BytesRead    int64
	IssuedAt     time.Time
}

// Ledger records read groups issued against backends and deduplicates
// concurrent requests for the same slice via a singleflight group, mirroring
// the kind of read-group batching a sharded property store needs to avoid
// stampeding a single hot column under concurrent worker access.
type Ledger struct {
	db    *gorm.DB
	group singleflight.Group
}

// OpenLedger opens (creating if necessary) a sqlite-backed ledger at path.
// An empty path opens an in-memory ledger, suitable for a process that never
// needs its read-group history to survive a restart.
func OpenLedger(path string) (*Ledger, error) {
	dsn := path
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, perrors.Wrap(perrors.CodeConfigError, "open read-group ledger", err)
	}
	if err := db.AutoMigrate(&readGroupRecord{}); err != nil {
		return nil, perrors.Wrap(perrors.CodeConfigError, "migrate read-group ledger", err)
	}
	return &Ledger{db: db}, nil
}

func coalesceKey(uri, propertyName string, offset, length int64) string {
	return fmt.Sprintf("%s|%s|%d|%d", uri, propertyName, offset, length)
}

// Coalesce runs fetch at most once for concurrent callers sharing the same
// (uri, propertyName, offset, length) key, recording the winning call's
// byte count in the ledger once it completes.
func (l *Ledger) Coalesce(uri, propertyName string, offset, length int64, fetch func() ([]byte, error)) ([]byte, error) {
	key := coalesceKey(uri, propertyName, offset, length)
	v, err, _ := l.group.Do(key, func() (any, error) {
		data, ferr := fetch()
		if ferr != nil {
			return nil, ferr
		}
		l.record(uri, propertyName, offset, length, int64(len(data)))
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (l *Ledger) record(uri, propertyName string, offset, length, bytesRead int64) {
	l.db.Create(&readGroupRecord{
		URI:          uri,
		PropertyName: propertyName,
		Offset:       offset,
		Length:       length,
		BytesRead:    bytesRead,
		IssuedAt:     time.Now(),
	})
}

// ReadGroupCount returns how many read groups have been recorded for uri,
// for tests and operational introspection.
func (l *Ledger) ReadGroupCount(uri string) (int64, error) {
	var count int64
	err := l.db.Model(&readGroupRecord{}).Where("uri = ?", uri).Count(&count).Error
	return count, err
}

// Close releases the underlying database connection.
func (l *Ledger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
