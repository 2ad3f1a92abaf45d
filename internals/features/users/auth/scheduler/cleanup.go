package scheduler

import (
	"context"
	"log"
	"time"

	"drivingschool_backend/internals/features/users/auth/store"

	"github.com/robfig/cron/v3"
)

const DefaultCleanupSpec = "@daily"

// StartBlacklistCleanupScheduler purges expired revoked tokens on the given cron spec.
// The caller owns the returned cron and must Stop it on shutdown.
func StartBlacklistCleanupScheduler(s store.RevokedTokenStore, spec string) (*cron.Cron, error) {
	if spec == "" {
		spec = DefaultCleanupSpec
	}
	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	if _, err := c.AddFunc(spec, func() { RunBlacklistCleanup(s, time.Now()) }); err != nil {
		return nil, err
	}
	c.Start()
	log.Printf("[CLEANUP] token_blacklist cleanup scheduled (%s)", spec)
	return c, nil
}

func RunBlacklistCleanup(s store.RevokedTokenStore, now time.Time) int64 {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.Purge(ctx, now)
	if err != nil {
		log.Printf("[CLEANUP ERROR] token_blacklist purge failed: %v", err)
		return 0
	}
	if n > 0 {
		log.Printf("[CLEANUP] %d expired tokens removed", n)
	}
	return n
}
