package domain

import "time"

type ProjectStatus string

const (
	ProjectOpen   ProjectStatus = "open"
	ProjectClosed ProjectStatus = "closed"
)

// Project is a job posted by a requester; providers swipe on open projects.
type Project struct {
	ID          string        `gorm:"primaryKey;size:36" json:"id"`
	OwnerID     string        `gorm:"size:36;not null;index" json:"ownerId"`
	Title       string        `gorm:"size:128;not null" json:"title"`
	Description string        `gorm:"size:4000" json:"description"`
	Category    string        `gorm:"size:64;index" json:"category"`
	BudgetRange string        `gorm:"size:64" json:"budgetRange"`
	Deadline    string        `gorm:"size:64" json:"deadline"`
	Location    string        `gorm:"size:128" json:"location"`
	Status      ProjectStatus `gorm:"size:16;not null;default:open;index" json:"status"`
	ClosedAt    *time.Time    `json:"closedAt,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

func (Project) TableName() string { return "projects" }

func (p *Project) IsOpen() bool { return p.Status == ProjectOpen }
