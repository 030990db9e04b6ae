package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/lucsky/cuid"
	"gorm.io/gorm"

	"github.com/bbernstein/lacyplayer-go/internal/database/models"
)

// RecentProjectRepository handles the recently opened project list.
type RecentProjectRepository struct {
	db *gorm.DB
}

// NewRecentProjectRepository creates a new RecentProjectRepository.
func NewRecentProjectRepository(db *gorm.DB) *RecentProjectRepository {
	return &RecentProjectRepository{db: db}
}

// FindRecent returns up to limit entries, most recently opened first.
func (r *RecentProjectRepository) FindRecent(ctx context.Context, limit int) ([]models.RecentProject, error) {
	var recent []models.RecentProject
	q := r.db.WithContext(ctx).Order("opened_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	result := q.Find(&recent)
	return recent, result.Error
}

// FindByPath returns the entry for path, or nil.
func (r *RecentProjectRepository) FindByPath(ctx context.Context, path string) (*models.RecentProject, error) {
	var recent models.RecentProject
	result := r.db.WithContext(ctx).First(&recent, "path = ?", path)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &recent, nil
}

// Touch records that the project at path was opened or saved at openedAt.
func (r *RecentProjectRepository) Touch(ctx context.Context, path, name, projectID string, openedAt time.Time) (*models.RecentProject, error) {
	existing, err := r.FindByPath(ctx, path)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		recent := &models.RecentProject{
			ID:        cuid.New(),
			Path:      path,
			Name:      name,
			ProjectID: projectID,
			OpenedAt:  openedAt,
		}
		if err := r.db.WithContext(ctx).Create(recent).Error; err != nil {
			return nil, err
		}
		return recent, nil
	}

	existing.Name = name
	existing.ProjectID = projectID
	existing.OpenedAt = openedAt
	if err := r.db.WithContext(ctx).Save(existing).Error; err != nil {
		return nil, err
	}
	return existing, nil
}

// Prune deletes all but the keep most recent entries.
func (r *RecentProjectRepository) Prune(ctx context.Context, keep int) error {
	if keep < 0 {
		keep = 0
	}
	all, err := r.FindRecent(ctx, 0)
	if err != nil {
		return err
	}
	if len(all) <= keep {
		return nil
	}
	stale := all[keep:]
	ids := make([]string, len(stale))
	for i, s := range stale {
		ids[i] = s.ID
	}
	return r.db.WithContext(ctx).Delete(&models.RecentProject{}, "id IN ?", ids).Error
}

// Delete removes the entry for path.
func (r *RecentProjectRepository) Delete(ctx context.Context, path string) error {
	return r.db.WithContext(ctx).Delete(&models.RecentProject{}, "path = ?", path).Error
}
