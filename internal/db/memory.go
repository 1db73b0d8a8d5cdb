package db

import (
	"encoding/gob"
	"os"
	"sort"

	"github.com/bahattinkoc/ipaverse/internal/model"

	"gorm.io/gorm"
)

// Memory is a database that stores data in memory, optionally gob-persisted
// to a file on Close. An empty path keeps it ephemeral (tests).
type Memory struct {
	Apps map[int64]*model.DownloadedApp
	Path string

	nextID uint
}

// NewInMemory creates a new in-memory database.
func NewInMemory(path string) (Database, error) {
	return &Memory{
		Apps: make(map[int64]*model.DownloadedApp),
		Path: path,
	}, nil
}

// Connect connects to the database.
func (m *Memory) Connect() error {
	if m.Path == "" {
		return nil
	}
	f, err := os.Open(m.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	return gob.NewDecoder(f).Decode(&m.Apps)
}

// InsertOrUpdate records a download, replacing any previous record for the
// same app id.
func (m *Memory) InsertOrUpdate(app *model.DownloadedApp) error {
	if existing, ok := m.Apps[app.AppID]; ok {
		app.Model = gorm.Model{ID: existing.ID, CreatedAt: existing.CreatedAt}
	} else {
		m.nextID++
		app.Model = gorm.Model{ID: m.nextID}
	}
	m.Apps[app.AppID] = app
	return nil
}

// GetByAppID returns the record for the given app id.
// It returns model.ErrNotFound if no record exists.
func (m *Memory) GetByAppID(appID int64) (*model.DownloadedApp, error) {
	app, exists := m.Apps[appID]
	if !exists {
		return nil, model.ErrNotFound
	}
	return app, nil
}

// List returns all recorded downloads, most recent first.
func (m *Memory) List() ([]*model.DownloadedApp, error) {
	apps := make([]*model.DownloadedApp, 0, len(m.Apps))
	for _, a := range m.Apps {
		apps = append(apps, a)
	}
	sort.Slice(apps, func(i, j int) bool {
		return apps[i].DownloadDate.After(apps[j].DownloadDate)
	})
	return apps, nil
}

// Delete removes the record for the given app id.
func (m *Memory) Delete(appID int64) error {
	if _, exists := m.Apps[appID]; !exists {
		return model.ErrNotFound
	}
	delete(m.Apps, appID)
	return nil
}

// Close persists the database to disk when a path was given.
func (m *Memory) Close() error {
	if m.Path == "" {
		return nil
	}
	f, err := os.Create(m.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(m.Apps)
}
