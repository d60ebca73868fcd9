package inbox

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/supportdesk/ticketsync/internal/domain"
)

type notificationRecord struct {
	ID        string `gorm:"primaryKey;size:64"`
	Position  int    `gorm:"index;not null"`
	Message   string `gorm:"size:1024"`
	Link      string `gorm:"size:512"`
	Timestamp time.Time
	IsRead    bool
}

func (notificationRecord) TableName() string { return "notifications" }

// GormStore persists the inbox to a local SQLite file, one row per entry,
// ordered by position (0 = newest). Each save rewrites the table inside a
// transaction; the inbox cap keeps that cheap.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&notificationRecord{}); err != nil {
		return nil, fmt.Errorf("migrate notifications table: %w", err)
	}
	return &GormStore{db: db}, nil
}

// OpenSQLite opens the local inbox database at path.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %q: %w", path, err)
	}
	return db, nil
}

func (s *GormStore) Load(ctx context.Context) ([]domain.Notification, error) {
	var records []notificationRecord
	err := s.db.WithContext(ctx).Order("position ASC").Find(&records).Error
	if err != nil {
		return nil, err
	}
	entries := make([]domain.Notification, 0, len(records))
	for _, rec := range records {
		entries = append(entries, domain.Notification{
			ID:        rec.ID,
			Message:   rec.Message,
			Link:      rec.Link,
			Timestamp: rec.Timestamp,
			IsRead:    rec.IsRead,
		})
	}
	return entries, nil
}

func (s *GormStore) Save(ctx context.Context, entries []domain.Notification) error {
	records := make([]notificationRecord, 0, len(entries))
	for i, n := range entries {
		records = append(records, notificationRecord{
			ID:        n.ID,
			Position:  i,
			Message:   n.Message,
			Link:      n.Link,
			Timestamp: n.Timestamp,
			IsRead:    n.IsRead,
		})
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&notificationRecord{}).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return tx.Create(&records).Error
	})
}
