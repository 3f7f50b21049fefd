package deploylock

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/sichatlabs/sichat-deploy/pkg/telemetry/correlation"
)

// LockRecord is one leased lock row. The service name is the key; the
// holder ID proves ownership on release; the expiry bounds how long a
// crashed holder can orphan the lock.
type LockRecord struct {
	ServiceName string    `gorm:"primaryKey;type:varchar(255)"`
	HolderID    string    `gorm:"type:varchar(64);not null"`
	ExpiresAt   time.Time `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (LockRecord) TableName() string {
	return "deploy_locks"
}

// LeaseLock is a Postgres-backed lease keyed by service name. Acquisition
// claims the row inside a transaction, so two controller processes racing
// on the same service see exactly one winner.
type LeaseLock struct {
	db  *gorm.DB
	ttl time.Duration
}

func NewLeaseLock(db *gorm.DB, ttl time.Duration) *LeaseLock {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &LeaseLock{db: db, ttl: ttl}
}

func (l *LeaseLock) Acquire(ctx context.Context, serviceName string) (Release, error) {
	holderID := correlation.NewID()
	now := time.Now().UTC()

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing LockRecord
		err := tx.Raw(
			`SELECT * FROM deploy_locks WHERE service_name = ? FOR UPDATE`,
			serviceName,
		).Scan(&existing).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if existing.ServiceName != "" && existing.ExpiresAt.After(now) {
			return ErrLockHeld
		}

		record := LockRecord{
			ServiceName: serviceName,
			HolderID:    holderID,
			ExpiresAt:   now.Add(l.ttl),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if existing.ServiceName != "" {
			// Expired lease left by a crashed holder; take it over.
			return tx.Model(&LockRecord{}).
				Where("service_name = ?", serviceName).
				Updates(map[string]any{
					"holder_id":  holderID,
					"expires_at": record.ExpiresAt,
					"updated_at": now,
				}).Error
		}
		if err := tx.Create(&record).Error; err != nil {
			// Two first-time acquirers can race past the row lock (there
			// is no row yet); the loser hits the primary key instead.
			if isDuplicateKey(err) {
				return ErrLockHeld
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var once sync.Once
	release := func(ctx context.Context) error {
		var releaseErr error
		once.Do(func() {
			releaseErr = l.db.WithContext(ctx).
				Where("service_name = ? AND holder_id = ?", serviceName, holderID).
				Delete(&LockRecord{}).Error
		})
		return releaseErr
	}
	return release, nil
}

// isDuplicateKey matches a unique violation on insert. gorm only translates
// these to ErrDuplicatedKey when the dialector has TranslateError enabled,
// so the Postgres SQLSTATE is matched as well.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 23505") || strings.Contains(msg, "duplicate key")
}
