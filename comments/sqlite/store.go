// Package sqlite stores comments in a local SQLite file, for single node
// deployments that don't run postgres.
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ellemouton/lndboard/comments"
)

type model struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	Text      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (model) TableName() string {
	return "comments"
}

type store struct {
	db *gorm.DB
}

// Open opens or creates the database at path and migrates the comment
// table. The returned *sql.DB is owned by the caller, who closes it on
// shutdown.
func Open(path string) (comments.Store, *sql.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to open sqlite database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}

	// SQLite serializes writers anyway, one connection avoids
	// "database is locked" errors under concurrent appends.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&model{}); err != nil {
		sqlDB.Close()
		return nil, nil, errors.Wrap(err, "failed to migrate comment table")
	}

	return &store{db: db}, sqlDB, nil
}

// Append implements comments.Store.Append
func (s *store) Append(ctx context.Context, record *comments.Comment) error {
	if err := record.Validate(); err != nil {
		return err
	}

	m := &model{
		Text:      record.Text,
		CreatedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}

	fromModel(m).CopyTo(record)
	return nil
}

// GetRecent implements comments.Store.GetRecent
func (s *store) GetRecent(ctx context.Context, limit uint64) ([]*comments.Comment, error) {
	var models []*model
	err := s.db.WithContext(ctx).
		Order("id desc").
		Limit(int(limit)).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	res := make([]*comments.Comment, len(models))
	for i, m := range models {
		res[len(models)-1-i] = fromModel(m)
	}
	return res, nil
}

func (s *store) reset() error {
	return s.db.Exec("DELETE FROM comments").Error
}

func fromModel(m *model) *comments.Comment {
	return &comments.Comment{
		Id:        m.ID,
		Text:      m.Text,
		CreatedAt: m.CreatedAt,
	}
}
