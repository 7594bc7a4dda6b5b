package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"patina/internal/domain"

	"github.com/robfig/cron/v3"
)

const (
	Timezone              = "UTC"
	TimezoneOffsetSeconds = 0
)

type Refresher interface {
	RefreshAllFeeds(ctx context.Context) ([]domain.Feed, error)
}

// Scheduler runs refresh-all on a cron spec. Runs never overlap: a run that
// is still going when the next one is due makes that one skip.
type Scheduler struct {
	ctx       context.Context
	cron      *cron.Cron
	refresher Refresher
	spec      string
	timeout   time.Duration
	log       *slog.Logger
}

func New(
	ctx context.Context,
	refresher Refresher,
	spec string,
	timeout time.Duration,
	log *slog.Logger,
) *Scheduler {
	c := cron.New(
		cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds)),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	return &Scheduler{
		ctx:       ctx,
		cron:      c,
		refresher: refresher,
		spec:      spec,
		timeout:   timeout,
		log:       log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.refreshAll); err != nil {
		return fmt.Errorf("add cron func (spec = %s): %w", s.spec, err)
	}

	s.cron.Start()

	return nil
}

// Stop stops scheduling and waits for a running refresh to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) refreshAll() {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	start := time.Now()

	feeds, err := s.refresher.RefreshAllFeeds(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to refresh feeds",
			"error", err,
			"feedCount", len(feeds),
			"elapsed", time.Since(start))

		return
	}

	unread := 0
	for _, f := range feeds {
		unread += f.UnreadCount
	}

	s.log.InfoContext(ctx, "Feeds are refreshed",
		"feedCount", len(feeds),
		"unreadCount", unread,
		"elapsed", time.Since(start))
}
