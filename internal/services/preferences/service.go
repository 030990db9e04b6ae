// Package preferences stores local settings that outlive a project: the
// last opened project path and the recently opened project list.
package preferences

import (
	"context"
	"fmt"
	"time"

	"github.com/bbernstein/lacyplayer-go/internal/database/models"
	"github.com/bbernstein/lacyplayer-go/internal/database/repositories"
)

// Setting keys.
const (
	KeyLastProjectPath = "last_project_path"
)

// MaxRecentProjects bounds the recent project list.
const MaxRecentProjects = 10

// Service reads and writes player preferences.
type Service struct {
	settings *repositories.SettingRepository
	recent   *repositories.RecentProjectRepository
	now      func() time.Time
}

// NewService creates a new preferences service.
func NewService(settings *repositories.SettingRepository, recent *repositories.RecentProjectRepository) *Service {
	return &Service{
		settings: settings,
		recent:   recent,
		now:      time.Now,
	}
}

// LastProjectPath returns the path of the most recently loaded or saved
// project, or "" if none was ever recorded.
func (s *Service) LastProjectPath(ctx context.Context) (string, error) {
	setting, err := s.settings.FindByKey(ctx, KeyLastProjectPath)
	if err != nil {
		return "", fmt.Errorf("failed to read last project path: %w", err)
	}
	if setting == nil {
		return "", nil
	}
	return setting.Value, nil
}

// RememberProject records path as the last project and moves it to the
// front of the recent list.
func (s *Service) RememberProject(ctx context.Context, path, name, projectID string) error {
	if path == "" {
		return nil
	}
	if _, err := s.settings.Upsert(ctx, KeyLastProjectPath, path); err != nil {
		return fmt.Errorf("failed to store last project path: %w", err)
	}
	if _, err := s.recent.Touch(ctx, path, name, projectID, s.now()); err != nil {
		return fmt.Errorf("failed to update recent projects: %w", err)
	}
	return s.recent.Prune(ctx, MaxRecentProjects)
}

// ForgetLastProject clears the last project path and drops it from the
// recent list, e.g. after it failed to reopen.
func (s *Service) ForgetLastProject(ctx context.Context) error {
	path, err := s.LastProjectPath(ctx)
	if err != nil {
		return err
	}
	if path != "" {
		if err := s.recent.Delete(ctx, path); err != nil {
			return fmt.Errorf("failed to update recent projects: %w", err)
		}
	}
	return s.settings.Delete(ctx, KeyLastProjectPath)
}

// RecentProjects returns the recent list, newest first.
func (s *Service) RecentProjects(ctx context.Context) ([]models.RecentProject, error) {
	return s.recent.FindRecent(ctx, MaxRecentProjects)
}
