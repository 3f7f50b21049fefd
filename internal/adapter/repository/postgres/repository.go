package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/sichatlabs/sichat-deploy/internal/usecase/deployment"
)

// AttemptModel is the database DTO with Gorm tags.
type AttemptModel struct {
	ID                 string `gorm:"primaryKey;type:varchar(64)"`
	ServiceName        string `gorm:"type:varchar(255);index"`
	ImageRef           string `gorm:"type:text"`
	PreviousInstanceID string `gorm:"type:varchar(255)"`
	NewInstanceID      string `gorm:"type:varchar(255)"`
	StartedAt          time.Time
	FinishedAt         time.Time
	DowntimeMS         int64  `gorm:"column:downtime_ms"`
	Outcome            string `gorm:"type:varchar(20)"`
	FailedPhase        string `gorm:"type:varchar(20)"`
	Error              string `gorm:"type:text"`
	CreatedAt          time.Time
}

func (AttemptModel) TableName() string {
	return "deployment_attempts"
}

// Repository persists deployment attempt summaries.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Save(ctx context.Context, attempt *deployment.DeploymentAttempt) error {
	model := toModel(attempt)
	return r.db.WithContext(ctx).Save(&model).Error
}

func (r *Repository) ListRecent(ctx context.Context, serviceName string, limit int) ([]*deployment.DeploymentAttempt, error) {
	if limit <= 0 {
		limit = 20
	}

	query := r.db.WithContext(ctx).Model(&AttemptModel{}).Order("started_at DESC").Limit(limit)
	if serviceName != "" {
		query = query.Where("service_name = ?", serviceName)
	}

	var models []AttemptModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	attempts := make([]*deployment.DeploymentAttempt, 0, len(models))
	for i := range models {
		attempts = append(attempts, toDomain(models[i]))
	}
	return attempts, nil
}

func toModel(a *deployment.DeploymentAttempt) AttemptModel {
	return AttemptModel{
		ID:                 a.ID,
		ServiceName:        a.ServiceName,
		ImageRef:           a.ImageRef,
		PreviousInstanceID: a.PreviousInstanceID,
		NewInstanceID:      a.NewInstanceID,
		StartedAt:          a.StartedAt,
		FinishedAt:         a.FinishedAt,
		DowntimeMS:         a.Downtime.Milliseconds(),
		Outcome:            string(a.Outcome),
		FailedPhase:        string(a.FailedPhase),
		Error:              a.Error,
	}
}

func toDomain(m AttemptModel) *deployment.DeploymentAttempt {
	return &deployment.DeploymentAttempt{
		ID:                 m.ID,
		ServiceName:        m.ServiceName,
		ImageRef:           m.ImageRef,
		PreviousInstanceID: m.PreviousInstanceID,
		NewInstanceID:      m.NewInstanceID,
		StartedAt:          m.StartedAt,
		FinishedAt:         m.FinishedAt,
		Downtime:           time.Duration(m.DowntimeMS) * time.Millisecond,
		Outcome:            deployment.Outcome(m.Outcome),
		FailedPhase:        deployment.Phase(m.FailedPhase),
		Error:              m.Error,
	}
}
