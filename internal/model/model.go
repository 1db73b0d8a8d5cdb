// Package model contains the downloaded-app record for the database.
package model

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrNotFound is returned when no record matches a query.
var ErrNotFound = errors.New("no app found")

// DownloadedApp records a completed package download.
type DownloadedApp struct {
	gorm.Model             // adds ID, created_at etc.
	AppID        int64     `gorm:"uniqueIndex" json:"app_id"`
	BundleID     string    `json:"bundle_id,omitempty"`
	Name         string    `json:"name,omitempty"`
	Version      string    `json:"version,omitempty"`
	Platform     string    `json:"platform,omitempty"`
	FilePath     string    `json:"file_path,omitempty"`
	DownloadDate time.Time `json:"download_date,omitempty"`
}
