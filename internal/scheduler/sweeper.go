package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/BatmanBruc/any2any-bot/types"
)

type IdleSource interface {
	IdleSince(cutoff time.Time) []types.Identity
}

type Submitter interface {
	Submit(ev types.Event) error
}

// Sweeper finds sessions idle for longer than the timeout and queues an
// expire event for each owner, so expiry is ordered with the owner's own
// events.
type Sweeper struct {
	sessions IdleSource
	sched    Submitter
	idle     time.Duration
	interval time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

func NewSweeper(sessions IdleSource, sched Submitter, idle time.Duration, log zerolog.Logger) *Sweeper {
	interval := idle / 4
	if interval < time.Second {
		interval = time.Second
	}
	if interval > time.Minute {
		interval = time.Minute
	}
	return &Sweeper{
		sessions: sessions,
		sched:    sched,
		idle:     idle,
		interval: interval,
		log:      log.With().Str("component", "sweeper").Logger(),
		now:      time.Now,
	}
}

// Run scans for idle sessions until ctx is done.
func (sw *Sweeper) Run(ctx context.Context) error {
	if sw.idle <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := sw.Sweep(); n > 0 {
				sw.log.Debug().Int("sessions", n).Msg("expiry queued")
			}
		}
	}
}

// Sweep queues one expire event per idle session and returns how many were queued.
func (sw *Sweeper) Sweep() int {
	now := sw.now()
	queued := 0
	for _, who := range sw.sessions.IdleSince(now.Add(-sw.idle)) {
		err := sw.sched.Submit(types.Event{From: who, Kind: types.EventExpire, ReceivedAt: now})
		if err != nil {
			sw.log.Warn().Int64("user_id", who.UserID).Err(err).Msg("queue expiry")
			continue
		}
		queued++
	}
	return queued
}
