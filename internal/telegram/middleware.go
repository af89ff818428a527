package telegram

import (
	"context"
	"errors"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"

	"github.com/BatmanBruc/any2any-bot/internal/messages"
	"github.com/BatmanBruc/any2any-bot/internal/scheduler"
	"github.com/BatmanBruc/any2any-bot/types"
)

// Submitter queues an event for processing; scheduler.Scheduler implements it.
type Submitter interface {
	Submit(ev types.Event) error
}

type Middlewares struct {
	deduper types.Deduper
	log     zerolog.Logger
}

func NewMiddlewares(deduper types.Deduper, log zerolog.Logger) *Middlewares {
	return &Middlewares{deduper: deduper, log: log.With().Str("component", "telegram").Logger()}
}

// DedupeMiddleware drops updates Telegram delivers more than once. A failing
// deduper lets the update through.
func (m *Middlewares) DedupeMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if m.deduper != nil && update != nil {
			seen, err := m.deduper.Seen(ctx, update.ID)
			if err != nil {
				m.log.Warn().Int64("update_id", update.ID).Err(err).Msg("dedupe check")
			} else if seen {
				m.log.Debug().Int64("update_id", update.ID).Msg("duplicate update dropped")
				return
			}
		}
		next(ctx, b, update)
	}
}

// Dispatcher returns the bot's default handler. It only translates and
// queues; the work happens on the submitter's goroutines so the webhook
// request returns quickly. A user whose queue is full is told so directly.
func Dispatcher(sub Submitter, log zerolog.Logger) bot.HandlerFunc {
	log = log.With().Str("component", "telegram").Logger()
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		ev, ok := EventFromUpdate(update, time.Now())
		if !ok {
			return
		}
		err := sub.Submit(ev)
		if err == nil {
			return
		}
		log.Warn().Int64("user_id", ev.From.UserID).Int64("update_id", ev.UpdateID).Err(err).Msg("event dropped")
		if !errors.Is(err, scheduler.ErrBusy) || b == nil {
			return
		}
		if _, err := b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: ev.From.ChatID,
			Text:   messages.Busy(),
		}); err != nil {
			log.Error().Int64("user_id", ev.From.UserID).Err(err).Msg("send busy notice")
		}
	}
}
