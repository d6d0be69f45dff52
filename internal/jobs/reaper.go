package jobs

import (
	"context"
	"log"
	"time"

	"live-quiz-service/internal/app"

	"github.com/robfig/cron/v3"
)

// SessionReaper is the part of the session service the reaper drives.
type SessionReaper interface {
	Reap(ctx context.Context, idleTimeout, retention time.Duration) (app.ReapResult, error)
}

// Reaper periodically ends idle sessions and drops expired completed ones.
type Reaper struct {
	target    SessionReaper
	idle      time.Duration
	retention time.Duration
	cron      *cron.Cron
}

// NewReaper schedules Reap on a cron spec such as "@every 1m" or "*/5 * * * *".
func NewReaper(target SessionReaper, schedule string, idle, retention time.Duration) (*Reaper, error) {
	r := &Reaper{
		target:    target,
		idle:      idle,
		retention: retention,
		cron:      cron.New(),
	}
	if _, err := r.cron.AddFunc(schedule, func() { r.RunOnce(context.Background()) }); err != nil {
		return nil, err
	}
	return r, nil
}

// RunOnce performs a single reap pass.
func (r *Reaper) RunOnce(ctx context.Context) app.ReapResult {
	res, err := r.target.Reap(ctx, r.idle, r.retention)
	if err != nil {
		log.Printf("reap sessions: %v", err)
		return res
	}
	if res.Ended > 0 || res.Removed > 0 {
		log.Printf("reaper ended %d idle sessions, removed %d expired", res.Ended, res.Removed)
	}
	return res
}

func (r *Reaper) Start() {
	r.cron.Start()
	log.Printf("session reaper scheduled (idle=%s retention=%s)", r.idle, r.retention)
}

// Stop halts scheduling and waits for a running pass to finish.
func (r *Reaper) Stop() {
	<-r.cron.Stop().Done()
}
