// Package db provides a database interface and implementations.
package db

import "github.com/bahattinkoc/ipaverse/internal/model"

// Database is the interface that wraps the downloaded-app record operations.
type Database interface {
	// Connect connects to the database.
	Connect() error

	// InsertOrUpdate records a download, replacing any previous record for
	// the same app id.
	InsertOrUpdate(app *model.DownloadedApp) error

	// GetByAppID returns the record for the given app id.
	// It returns model.ErrNotFound if no record exists.
	GetByAppID(appID int64) (*model.DownloadedApp, error)

	// List returns all recorded downloads, most recent first.
	List() ([]*model.DownloadedApp, error)

	// Delete removes the record for the given app id.
	Delete(appID int64) error

	// Close closes the database.
	Close() error
}
