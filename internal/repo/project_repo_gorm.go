package repo

import (
	"context"
	"time"

	"swipe-engine/internal/domain"
)

func (s *Store) FindProject(ctx context.Context, id string) (*domain.Project, error) {
	var p domain.Project
	err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateProject(ctx context.Context, p *domain.Project) error {
	return s.db.WithContext(ctx).Create(p).Error
}

// ProjectCursor is the sort key of the last project a caller has seen.
type ProjectCursor struct {
	CreatedAt time.Time
	ID        string
}

func ProjectCursorOf(p *domain.Project) *ProjectCursor {
	return &ProjectCursor{CreatedAt: p.CreatedAt, ID: p.ID}
}

// ProjectQuery selects a page of the provider feed. After, when set,
// switches from offset to keyset paging.
type ProjectQuery struct {
	ViewerID string
	After    *ProjectCursor
	Offset   int
	Limit    int
}

// OpenProjects is the provider feed: open projects of other, active users
// the viewer has not swiped yet, newest first.
func (s *Store) OpenProjects(ctx context.Context, q ProjectQuery) ([]domain.Project, error) {
	db := s.db.WithContext(ctx).
		Where("projects.status = ? AND projects.owner_id <> ?", domain.ProjectOpen, q.ViewerID).
		Where("EXISTS (SELECT 1 FROM users o WHERE o.id = projects.owner_id AND o.status = ?)", domain.StatusActive).
		Where("NOT EXISTS (SELECT 1 FROM swipes s WHERE s.actor_id = ? AND s.target_id = projects.id)", q.ViewerID)
	if c := q.After; c != nil {
		db = db.Where("(projects.created_at < ? OR (projects.created_at = ? AND projects.id > ?))", c.CreatedAt, c.CreatedAt, c.ID)
	}
	var ps []domain.Project
	err := db.Order("projects.created_at DESC").Order("projects.id ASC").
		Offset(q.Offset).Limit(q.Limit).
		Find(&ps).Error
	return ps, err
}
