package scheduler

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog"

	"github.com/BatmanBruc/any2any-bot/types"
)

var (
	ErrStopped = errors.New("scheduler is not running")
	ErrBusy    = errors.New("too many pending events for this user")
)

type Handler func(ctx context.Context, ev types.Event)

type Config struct {
	// MaxPending caps the queued events of a single user.
	MaxPending int
}

// Scheduler runs events of different users concurrently and events of the
// same user one after another in arrival order. Each user with pending work
// gets a goroutine that exits once the user's queue is empty.
type Scheduler struct {
	handle     Handler
	log        zerolog.Logger
	maxPending int
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
	mailboxes  map[int64]*mailbox
}

type mailbox struct {
	queue []types.Event
}

func NewScheduler(handle Handler, log zerolog.Logger, config Config) *Scheduler {
	if config.MaxPending <= 0 {
		config.MaxPending = 32
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		handle:     handle,
		log:        log.With().Str("component", "scheduler").Logger(),
		maxPending: config.MaxPending,
		ctx:        ctx,
		cancel:     cancel,
		mailboxes:  make(map[int64]*mailbox),
	}
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	s.log.Info().Int("max_pending", s.maxPending).Msg("scheduler started")
}

// Stop refuses new events and waits for queued ones. If ctx ends first the
// handlers' context is cancelled and Stop returns ctx.Err().
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.log.Info().Msg("stopping scheduler")

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
		s.cancel()
		<-done
	}
	s.cancel()
	s.log.Info().Msg("scheduler stopped")
	return err
}

// Submit queues ev behind the sender's earlier events. It fails with ErrBusy
// when the sender already has MaxPending events queued.
func (s *Scheduler) Submit(ev types.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrStopped
	}

	key := ev.From.Key()
	mb, busy := s.mailboxes[key]
	if !busy {
		mb = &mailbox{}
		s.mailboxes[key] = mb
	}
	if len(mb.queue) >= s.maxPending {
		return ErrBusy
	}
	mb.queue = append(mb.queue, ev)

	if !busy {
		s.wg.Add(1)
		go s.drain(key, mb)
	}
	return nil
}

// Pending counts queued events, including the ones being handled.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, mb := range s.mailboxes {
		n += len(mb.queue)
	}
	return n
}

func (s *Scheduler) drain(key int64, mb *mailbox) {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		if len(mb.queue) == 0 {
			delete(s.mailboxes, key)
			s.mu.Unlock()
			return
		}
		ev := mb.queue[0]
		s.mu.Unlock()

		s.process(ev)

		s.mu.Lock()
		mb.queue[0] = types.Event{}
		mb.queue = mb.queue[1:]
		s.mu.Unlock()
	}
}

func (s *Scheduler) process(ev types.Event) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().
				Int64("user_id", ev.From.UserID).
				Int64("update_id", ev.UpdateID).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("event handler panicked")
		}
	}()
	s.handle(s.ctx, ev)
}
