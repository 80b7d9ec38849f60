package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// kvRecord is the single table backing SQLDB.
type kvRecord struct {
	Key   []byte `gorm:"primaryKey;column:k"`
	Value []byte `gorm:"column:v;not null"`
}

func (kvRecord) TableName() string { return "ledger_kv" }

// SQLDB adapts a relational database (sqlite or postgres) to the Database
// interface through gorm.
type SQLDB struct {
	db *gorm.DB
}

// NewSQLDB opens the database for the given driver ("sqlite" or "postgres")
// and migrates the key-value table.
func NewSQLDB(driver, dsn string) (*SQLDB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	case "postgres", "postgresql":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("storage: unsupported sql driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open sql: %w", err)
	}
	if err := db.AutoMigrate(&kvRecord{}); err != nil {
		return nil, fmt.Errorf("migrate sql: %w", err)
	}
	return &SQLDB{db: db}, nil
}

func (s *SQLDB) Put(key []byte, value []byte) error {
	return upsert(s.db, key, value)
}

func (s *SQLDB) Get(key []byte) ([]byte, error) {
	var rec kvRecord
	err := s.db.Where("k = ?", key).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.Value, nil
}

func (s *SQLDB) Delete(key []byte) error {
	return s.db.Where("k = ?", key).Delete(&kvRecord{}).Error
}

func (s *SQLDB) Write(batch *Batch) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, op := range batch.Ops() {
			if op.Delete() {
				if err := tx.Where("k = ?", op.Key).Delete(&kvRecord{}).Error; err != nil {
					return err
				}
				continue
			}
			if err := upsert(tx, op.Key, op.Value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLDB) Close() {
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func upsert(db *gorm.DB, key, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "k"}},
		DoUpdates: clause.AssignmentColumns([]string{"v"}),
	}).Create(&kvRecord{Key: key, Value: value}).Error
}
