package services

import (
	"fmt"
	"sync"

	"cyberearn-backend/internal/models"
)

// SettingsService serves the process-wide configuration singleton
// from an in-memory copy. The copy is replaced only through Save or
// Invalidate, triggered by admin mutations; there is no time-based
// cache window.
type SettingsService struct {
	store   *RedisService
	adminID string

	mu     sync.RWMutex
	cached *models.Settings
}

// NewSettingsService loads the settings document, seeding defaults on
// first run. adminID is the hardcoded super-admin.
func NewSettingsService(store *RedisService, adminID string) (*SettingsService, error) {
	svc := &SettingsService{store: store, adminID: adminID}

	settings, err := store.LoadSettings()
	if err != nil {
		return nil, err
	}
	if settings == nil {
		settings = models.DefaultSettings()
		if err := store.SaveSettings(settings); err != nil {
			return nil, fmt.Errorf("failed to seed default settings: %v", err)
		}
	}

	svc.cached = settings
	return svc, nil
}

// Get returns a copy; callers can read fields freely but mutations go
// through Update.
func (s *SettingsService) Get() *models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := *s.cached
	copied.Channels = append([]models.Channel(nil), s.cached.Channels...)
	copied.Admins = append([]string(nil), s.cached.Admins...)
	return &copied
}

// Update applies fn to the current settings and persists the result.
// The cached copy is swapped under the same lock so readers never see
// a half-applied mutation.
func (s *SettingsService) Update(fn func(*models.Settings)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := *s.cached
	updated.Channels = append([]models.Channel(nil), s.cached.Channels...)
	updated.Admins = append([]string(nil), s.cached.Admins...)

	fn(&updated)

	if err := s.store.SaveSettings(&updated); err != nil {
		return err
	}
	s.cached = &updated
	return nil
}

// Invalidate re-reads the document, for the case where another
// process wrote it.
func (s *SettingsService) Invalidate() error {
	settings, err := s.store.LoadSettings()
	if err != nil {
		return err
	}
	if settings == nil {
		settings = models.DefaultSettings()
	}

	s.mu.Lock()
	s.cached = settings
	s.mu.Unlock()
	return nil
}

// SuperAdminID returns the hardcoded admin user id.
func (s *SettingsService) SuperAdminID() string {
	return s.adminID
}

// IsAdmin reports whether userID is the super-admin or listed in the
// settings admins set.
func (s *SettingsService) IsAdmin(userID string) bool {
	if userID == s.adminID {
		return true
	}
	return s.Get().HasAdmin(userID)
}

// AdminRecipients lists everyone who should receive admin
// notifications.
func (s *SettingsService) AdminRecipients() []string {
	recipients := []string{s.adminID}
	for _, id := range s.Get().Admins {
		if id != s.adminID {
			recipients = append(recipients, id)
		}
	}
	return recipients
}
