package models

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"gorm.io/gorm"
)

// Setting represents a system setting row
type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"column:setting_key;size:255;not null;uniqueIndex" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	Type      string    `gorm:"size:50;not null" json:"type"` // string, boolean, integer
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AppSettings is the in-memory view of runtime-tunable settings.
type AppSettings struct {
	SiteTitle                  string `json:"site_title"`
	RefreshWorkerIntervalMin   int    `json:"refresh_worker_interval_minutes"`
	RefreshBatchSize           int    `json:"refresh_batch_size"`
	RefreshFetchTimeoutSeconds int    `json:"refresh_fetch_timeout_seconds"`
	ScheduledRefreshEnabled    bool   `json:"scheduled_refresh_enabled"`
	mu                         sync.RWMutex
}

var (
	appSettings *AppSettings
	settingsMu  sync.RWMutex
)

// GetAppSettings returns the current application settings
func GetAppSettings() *AppSettings {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return appSettings
}

// LoadSettings loads settings from database into memory
func LoadSettings(db *gorm.DB) error {
	settingsMu.Lock()
	defer settingsMu.Unlock()

	// Initialize with defaults
	appSettings = &AppSettings{
		SiteTitle:                  "ClipFox",
		RefreshWorkerIntervalMin:   5,
		RefreshBatchSize:           100,
		RefreshFetchTimeoutSeconds: 15,
		ScheduledRefreshEnabled:    true,
	}

	var settings []Setting
	if err := db.Find(&settings).Error; err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	for _, setting := range settings {
		switch setting.Key {
		case "site_title":
			appSettings.SiteTitle = setting.Value
		case "refresh_worker_interval_minutes":
			if v, err := strconv.Atoi(setting.Value); err == nil && v > 0 {
				appSettings.RefreshWorkerIntervalMin = v
			}
		case "refresh_batch_size":
			if v, err := strconv.Atoi(setting.Value); err == nil && v > 0 {
				appSettings.RefreshBatchSize = v
			}
		case "refresh_fetch_timeout_seconds":
			if v, err := strconv.Atoi(setting.Value); err == nil && v > 0 {
				appSettings.RefreshFetchTimeoutSeconds = v
			}
		case "scheduled_refresh_enabled":
			appSettings.ScheduledRefreshEnabled = setting.Value == "true"
		}
	}

	return nil
}

// GetRefreshWorkerInterval returns the scheduler cycle interval in minutes.
func (s *AppSettings) GetRefreshWorkerInterval() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.RefreshWorkerIntervalMin <= 0 {
		return 5
	}
	return s.RefreshWorkerIntervalMin
}

// GetRefreshBatchSize returns the maximum number of due accounts per cycle.
func (s *AppSettings) GetRefreshBatchSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.RefreshBatchSize <= 0 {
		return 100
	}
	return s.RefreshBatchSize
}

// GetRefreshFetchTimeout returns the per-entity outward call timeout in seconds.
func (s *AppSettings) GetRefreshFetchTimeout() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.RefreshFetchTimeoutSeconds <= 0 {
		return 15
	}
	return s.RefreshFetchTimeoutSeconds
}

// IsScheduledRefreshEnabled reports whether the background scheduler may run.
func (s *AppSettings) IsScheduledRefreshEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ScheduledRefreshEnabled
}
