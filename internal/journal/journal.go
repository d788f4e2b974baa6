// Package journal keeps a SQLite record of every frame the display reported.
package journal

import (
	"context"
	"database/sql"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"github.com/speters/genielink/genie"
)

// Record is a single reported frame
type Record struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	Link       string    `gorm:"index;size:64" json:"link"`
	Command    string    `gorm:"size:16" json:"command"`
	Object     string    `gorm:"size:32" json:"object"`
	Index      uint8     `json:"index"`
	Value      uint16    `json:"value"`
	Raw        string    `gorm:"size:12" json:"raw"`
	ReceivedAt time.Time `gorm:"index" json:"received_at"`
}

func (Record) TableName() string {
	return "frames"
}

// Journal wraps the database
type Journal struct {
	db *gorm.DB
}

// Open opens or creates the journal database at path
func Open(path string) (*Journal, error) {
	gormLog := logger.New(
		log.StandardLogger(),
		logger.Config{
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: path}, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := configureSQLite(sqlDB); err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, err
	}

	log.Infof("Journal opened: %s", path)
	return &Journal{db: db}, nil
}

func configureSQLite(sqlDB *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func commandName(cmd byte) string {
	switch cmd {
	case genie.ReportEvent:
		return "event"
	case genie.ReportObj:
		return "report"
	default:
		return "unknown"
	}
}

// HandleFrame stores f. It satisfies link.Subscriber.
func (j *Journal) HandleFrame(ctx context.Context, link string, f genie.Frame) error {
	rec := Record{
		ID:         uuid.NewString(),
		Link:       link,
		Command:    commandName(f.Command()),
		Object:     f.Object().String(),
		Index:      f.Index(),
		Value:      f.Data(),
		Raw:        hex.EncodeToString(f[:]),
		ReceivedAt: time.Now().UTC(),
	}
	return j.db.WithContext(ctx).Create(&rec).Error
}

// Recent returns up to limit records, newest first
func (j *Journal) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	var recs []Record
	err := j.db.WithContext(ctx).Order("received_at desc").Limit(limit).Find(&recs).Error
	return recs, err
}

func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
