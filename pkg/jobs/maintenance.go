package jobs

import (
	"context"

	"github.com/platinummonkey/buildpro/pkg/observability"
)

const (
	RevokedTokenPurgeJob = "revoked_token_purge"
	RateLimitSweepJob    = "rate_limit_sweep"
)

// TokenPurger deletes revocation records whose tokens have expired
type TokenPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Sweeper drops idle rate limiter buckets
type Sweeper interface {
	Sweep() int
}

// RevokedTokenPurge removes expired rows from revoked_tokens
func RevokedTokenPurge(purger TokenPurger, schedule string) Job {
	return Job{
		Name:     RevokedTokenPurgeJob,
		Schedule: schedule,
		Run: func(ctx context.Context) error {
			n, err := purger.PurgeExpired(ctx)
			if err != nil {
				return err
			}
			if n > 0 {
				observability.FromContext(ctx).WithField("purged", n).Info("purged expired token revocations")
			}
			return nil
		},
	}
}

// RateLimitSweep drops idle buckets from every in-memory limiter
func RateLimitSweep(schedule string, sweepers ...Sweeper) Job {
	return Job{
		Name:     RateLimitSweepJob,
		Schedule: schedule,
		Run: func(ctx context.Context) error {
			removed := 0
			for _, s := range sweepers {
				removed += s.Sweep()
			}
			observability.FromContext(ctx).WithField("removed", removed).Debug("swept rate limiter buckets")
			return nil
		},
	}
}
