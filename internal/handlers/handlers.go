package handlers

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"github.com/BatmanBruc/any2any-bot/internal/conversation"
	"github.com/BatmanBruc/any2any-bot/internal/messages"
	"github.com/BatmanBruc/any2any-bot/internal/router"
	"github.com/BatmanBruc/any2any-bot/internal/session"
	"github.com/BatmanBruc/any2any-bot/types"
)

// Config tunes the single-shot handlers.
type Config struct {
	// PreviewPages caps the photos sent by /pdf2img.
	PreviewPages int
}

type Handlers struct {
	router    *router.Router
	engine    *conversation.Engine
	messenger types.Messenger
	gateway   types.Gateway
	journal   types.Journal
	log       zerolog.Logger
	preview   int
	now       func() time.Time
}

// NewHandlers wires the router, the conversation engine and the adapters
// into one event handler.
func NewHandlers(r *router.Router, engine *conversation.Engine, messenger types.Messenger, gateway types.Gateway, journal types.Journal, log zerolog.Logger, cfg Config) *Handlers {
	if cfg.PreviewPages <= 0 {
		cfg.PreviewPages = 10
	}
	return &Handlers{
		router:    r,
		engine:    engine,
		messenger: messenger,
		gateway:   gateway,
		journal:   journal,
		log:       log.With().Str("component", "handlers").Logger(),
		preview:   cfg.PreviewPages,
		now:       time.Now,
	}
}

// MainHandler handles one inbound event. It is the scheduler's handler, so
// events of one user never reach it concurrently.
func (bh *Handlers) MainHandler(ctx context.Context, ev types.Event) {
	start := bh.now()
	defer bh.recoverPanic(ctx, ev)

	if ev.Kind == types.EventCallback && ev.CallbackID != "" {
		if err := bh.messenger.Acknowledge(ctx, ev.CallbackID); err != nil {
			bh.log.Warn().Int64("user_id", ev.From.UserID).Err(err).Msg("acknowledge callback")
		}
	}

	act := bh.router.Route(ev)

	var err error
	switch act.Kind {
	case router.KindConversation:
		if act.Entry != session.FlowNone {
			err = bh.engine.Start(ctx, ev.From, act.Entry)
		} else {
			err = bh.engine.Handle(ctx, ev)
		}
	case router.KindSingleShot:
		err = bh.singleShot(ctx, act)
	default:
		bh.ignore(ctx, act)
	}

	bh.log.Debug().
		Int64("user_id", ev.From.UserID).
		Int64("update_id", ev.UpdateID).
		Str("event", ev.Kind.String()).
		Str("action", act.Kind.String()).
		Str("op", act.Op.String()).
		Dur("took", bh.now().Sub(start)).
		AnErr("error", err).
		Msg("event handled")
}

// recoverPanic turns a panicking event into a failed operation: the session
// it touched is closed and the user gets the generic error.
func (bh *Handlers) recoverPanic(ctx context.Context, ev types.Event) {
	r := recover()
	if r == nil {
		return
	}
	bh.log.Error().
		Int64("user_id", ev.From.UserID).
		Int64("update_id", ev.UpdateID).
		Interface("panic", r).
		Bytes("stack", debug.Stack()).
		Msg("event handler panicked")

	bh.engine.Abort(ctx, ev.From, types.ConversionFailed("handle", fmt.Errorf("panic: %v", r)))
	if err := bh.messenger.SendText(ctx, ev.From, messages.ErrorDefault()); err != nil {
		bh.log.Error().Int64("user_id", ev.From.UserID).Err(err).Msg("send error message")
	}
}

func (bh *Handlers) record(ctx context.Context, who types.Identity, op router.Operation, started time.Time, err error) {
	if bh.journal == nil {
		return
	}
	rec := types.OperationRecord{
		UserID:    who.UserID,
		ChatID:    who.ChatID,
		Operation: op.String(),
		Outcome:   types.OutcomeOf(err),
		Duration:  bh.now().Sub(started),
		At:        bh.now(),
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if jerr := bh.journal.Record(ctx, rec); jerr != nil {
		bh.log.Warn().Err(jerr).Msg("journal record")
	}
}
