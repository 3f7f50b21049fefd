package prober

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sichatlabs/sichat-deploy/pkg/matrixclient"
)

// Report is the outcome of one probe run.
type Report struct {
	Healthy  bool
	Attempts int
	Elapsed  time.Duration
	// Versions lists the spec versions announced by the homeserver when
	// the probe succeeded.
	Versions []string
}

// Config bounds the retry budget.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultConfig covers a homeserver that needs a few seconds to open its
// database after the allocation reports running.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 6,
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// Prober verifies a newly started instance serves the expected readiness
// document before a deployment is declared successful. It is advisory: a
// failed probe marks the attempt failed but triggers no remediation.
type Prober struct {
	client *matrixclient.Client
	cfg    Config
	logger *zap.Logger
}

func New(client *matrixclient.Client, cfg Config, logger *zap.Logger) *Prober {
	if cfg.MaxAttempts <= 0 {
		cfg = DefaultConfig()
	}
	return &Prober{
		client: client,
		cfg:    cfg,
		logger: logger.Named("prober"),
	}
}

// Probe polls the readiness endpoint with exponential backoff until the
// versions document parses, or the attempt budget is spent.
func (p *Prober) Probe(ctx context.Context, endpoint string) (Report, error) {
	client := p.client.ForEndpoint(endpoint)
	start := time.Now()
	report := Report{}

	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		report.Attempts = attempt

		versions, err := client.Versions(ctx)
		if err == nil && versions.Ready() {
			report.Healthy = true
			report.Versions = versions.Versions
			report.Elapsed = time.Since(start)
			p.logger.Info("probe_succeeded",
				zap.String("endpoint", endpoint),
				zap.Int("attempts", attempt),
				zap.Duration("elapsed", report.Elapsed),
			)
			return report, nil
		}

		if err == nil {
			err = fmt.Errorf("readiness document lists no versions")
		}
		lastErr = err
		p.logger.Warn("probe_attempt_failed",
			zap.Error(err),
			zap.String("endpoint", endpoint),
			zap.Int("attempt", attempt),
		)

		if attempt == p.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			report.Elapsed = time.Since(start)
			return report, ctx.Err()
		case <-time.After(p.backoff(attempt)):
		}
	}

	report.Elapsed = time.Since(start)
	return report, fmt.Errorf("probe exhausted %d attempts: %w", p.cfg.MaxAttempts, lastErr)
}

func (p *Prober) backoff(attempt int) time.Duration {
	delay := p.cfg.BaseDelay << (attempt - 1)
	if p.cfg.MaxDelay > 0 && delay > p.cfg.MaxDelay {
		return p.cfg.MaxDelay
	}
	return delay
}
