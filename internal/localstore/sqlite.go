package localstore

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenSQLite opens (or creates) the sqlite file at path and returns a KV on
// top of it.
func OpenSQLite(path string) (*SQLKV, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open local store %s: %w", path, err)
	}
	kv, err := NewSQLKV(db)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate local store: %w", err)
	}
	return kv, nil
}

// Close releases the underlying connection.
func (s *SQLKV) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
