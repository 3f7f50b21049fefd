package version

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// AppConduit is the application name of the homeserver tracked by default.
const AppConduit = "conduit"

// HomeserverVersion represents a deployable homeserver release.
type HomeserverVersion struct {
	ApplicationName string    `gorm:"primaryKey;type:varchar(100)"`
	Version         string    `gorm:"primaryKey;type:varchar(50)"`
	Status          string    `gorm:"type:varchar(20);not null"`
	ReleaseDate     time.Time `gorm:"not null"`
	IsDefault       bool      `gorm:"default:false"`
	DockerImage     string    `gorm:"type:text;not null"`
	ReleaseNotes    *string   `gorm:"type:text"`
	BreakingChanges bool      `gorm:"default:false"`
	CreatedAt       time.Time `gorm:"default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time `gorm:"default:CURRENT_TIMESTAMP"`
}

// TableName sets the table name for GORM.
func (HomeserverVersion) TableName() string {
	return "homeserver_versions"
}

// Version status constants
const (
	StatusStable     = "stable"
	StatusBeta       = "beta"
	StatusRC         = "rc"
	StatusDeprecated = "deprecated"
	StatusEOL        = "eol"
)

// Registry manages deployable homeserver versions.
type Registry struct {
	db *gorm.DB
}

// NewRegistry creates a new version registry.
func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{db: db}
}

// GetDefaultVersion returns the default version for an application.
func (r *Registry) GetDefaultVersion(ctx context.Context, appName string) (*HomeserverVersion, error) {
	var version HomeserverVersion
	err := r.db.WithContext(ctx).
		Where("application_name = ? AND is_default = ?", appName, true).
		First(&version).Error

	if err != nil {
		return nil, fmt.Errorf("failed to get default version for %s: %w", appName, err)
	}

	return &version, nil
}

// GetVersion returns a specific version.
func (r *Registry) GetVersion(ctx context.Context, appName, version string) (*HomeserverVersion, error) {
	var v HomeserverVersion
	err := r.db.WithContext(ctx).
		Where("application_name = ? AND version = ?", appName, version).
		First(&v).Error

	if err != nil {
		return nil, fmt.Errorf("version not found: %w", err)
	}

	return &v, nil
}

// ListAvailable returns all non-EOL versions for an app, newest first.
func (r *Registry) ListAvailable(ctx context.Context, appName string) ([]HomeserverVersion, error) {
	var versions []HomeserverVersion

	err := r.db.WithContext(ctx).
		Where("application_name = ?", appName).
		Where("status != ?", StatusEOL).
		Order("release_date DESC").
		Find(&versions).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list available versions: %w", err)
	}

	return versions, nil
}

// ValidateVersion checks if a version exists and is not EOL.
func (r *Registry) ValidateVersion(ctx context.Context, appName, version string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&HomeserverVersion{}).
		Where("application_name = ? AND version = ? AND status != ?", appName, version, StatusEOL).
		Count(&count).Error

	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// SetDefaultVersion sets a version as the default for an application.
func (r *Registry) SetDefaultVersion(ctx context.Context, appName, version string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&HomeserverVersion{}).
			Where("application_name = ? AND is_default = ?", appName, true).
			Update("is_default", false).Error; err != nil {
			return fmt.Errorf("failed to unset current default: %w", err)
		}

		if err := tx.Model(&HomeserverVersion{}).
			Where("application_name = ? AND version = ?", appName, version).
			Update("is_default", true).Error; err != nil {
			return fmt.Errorf("failed to set new default: %w", err)
		}

		return nil
	})
}

// CreateVersion adds a new version to the registry.
func (r *Registry) CreateVersion(ctx context.Context, version *HomeserverVersion) error {
	err := r.db.WithContext(ctx).Create(version).Error
	if err != nil {
		return fmt.Errorf("failed to create version: %w", err)
	}
	return nil
}

// UpdateVersionStatus updates the status of a version.
func (r *Registry) UpdateVersionStatus(ctx context.Context, appName, version, status string) error {
	err := r.db.WithContext(ctx).
		Model(&HomeserverVersion{}).
		Where("application_name = ? AND version = ?", appName, version).
		Update("status", status).Error

	if err != nil {
		return fmt.Errorf("failed to update version status: %w", err)
	}

	return nil
}
