package db

import (
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bahattinkoc/ipaverse/internal/model"
)

// Sqlite is a database that stores data in a sqlite database.
type Sqlite struct {
	URL string

	db *gorm.DB
}

// NewSqlite creates a new Sqlite database.
func NewSqlite(path string) (Database, error) {
	if path == "" {
		return nil, fmt.Errorf("'path' is required")
	}
	return &Sqlite{
		URL: path,
	}, nil
}

// Connect connects to the database.
func (s *Sqlite) Connect() (err error) {
	s.db, err = gorm.Open(sqlite.Open(s.URL), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect sqlite database: %w", err)
	}
	return s.db.AutoMigrate(
		&model.DownloadedApp{},
	)
}

// InsertOrUpdate records a download, replacing any previous record for the
// same app id.
func (s *Sqlite) InsertOrUpdate(app *model.DownloadedApp) error {
	var existing model.DownloadedApp
	if err := s.db.Where("app_id = ?", app.AppID).First(&existing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.db.Create(app).Error
		}
		return err
	}
	app.ID = existing.ID
	app.CreatedAt = existing.CreatedAt
	return s.db.Save(app).Error
}

// GetByAppID returns the record for the given app id.
// It returns model.ErrNotFound if no record exists.
func (s *Sqlite) GetByAppID(appID int64) (*model.DownloadedApp, error) {
	var app model.DownloadedApp
	if err := s.db.Where("app_id = ?", appID).First(&app).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &app, nil
}

// List returns all recorded downloads, most recent first.
func (s *Sqlite) List() ([]*model.DownloadedApp, error) {
	var apps []*model.DownloadedApp
	if err := s.db.Order("download_date DESC").Find(&apps).Error; err != nil {
		return nil, err
	}
	return apps, nil
}

// Delete removes the record for the given app id.
func (s *Sqlite) Delete(appID int64) error {
	return s.db.Where("app_id = ?", appID).Delete(&model.DownloadedApp{}).Error
}

// Close closes the database.
func (s *Sqlite) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
