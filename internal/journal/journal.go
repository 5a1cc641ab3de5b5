// Package journal records the outcome of every handled update in SQLite
// so operators can audit what the bot did and why.
package journal

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Entry is one handler outcome for one update. Updates no handler
// matched are not recorded.
type Entry struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	UpdateID  int64  `gorm:"index"`
	Handler   string `gorm:"size:64;index"`
	ChatID    int64  `gorm:"index"`
	Status    string `gorm:"size:16"`
	Error     string `gorm:"type:text"`
	CreatedAt time.Time
}

// HandlerStats aggregates outcomes per handler over a window.
type HandlerStats struct {
	Handler string
	Handled int64
	Failed  int64
}

// Journal persists and queries handler outcome entries.
type Journal struct {
	db *gorm.DB
}

// Open opens (or creates) the journal database at path and migrates the
// schema.
func Open(path string) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("journal: path is required")
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	return New(db)
}

// New wraps an existing connection, migrating the schema. Used directly
// by tests with an in-memory database.
func New(db *gorm.DB) (*Journal, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("journal: auto-migrate: %w", err)
	}
	return &Journal{db: db}, nil
}

// Record stores one handler outcome.
func (j *Journal) Record(updateID int64, handler string, chatID int64, status, errText string) error {
	entry := Entry{
		UpdateID: updateID,
		Handler:  handler,
		ChatID:   chatID,
		Status:   status,
		Error:    errText,
	}
	if err := j.db.Create(&entry).Error; err != nil {
		return fmt.Errorf("journal: record update %d: %w", updateID, err)
	}
	return nil
}

// Recent returns the newest entries, most recent first.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	var entries []Entry
	err := j.db.Order("id DESC").Limit(limit).Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("journal: recent entries: %w", err)
	}
	return entries, nil
}

// Stats aggregates per-handler outcome counts for entries created at or
// after since.
func (j *Journal) Stats(since time.Time) ([]HandlerStats, error) {
	var rows []struct {
		Handler string
		Status  string
		Count   int64
	}
	err := j.db.Model(&Entry{}).
		Select("handler, status, count(*) as count").
		Where("created_at >= ?", since).
		Group("handler").Group("status").
		Order("handler").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("journal: stats: %w", err)
	}

	byHandler := make(map[string]*HandlerStats)
	var order []string
	for _, row := range rows {
		hs, ok := byHandler[row.Handler]
		if !ok {
			hs = &HandlerStats{Handler: row.Handler}
			byHandler[row.Handler] = hs
			order = append(order, row.Handler)
		}
		switch row.Status {
		case "handled":
			hs.Handled = row.Count
		case "failed":
			hs.Failed = row.Count
		}
	}

	stats := make([]HandlerStats, 0, len(order))
	for _, name := range order {
		stats = append(stats, *byHandler[name])
	}
	return stats, nil
}
