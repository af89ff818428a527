package handlers

import (
	"context"

	"github.com/BatmanBruc/any2any-bot/internal/messages"
	"github.com/BatmanBruc/any2any-bot/internal/router"
	"github.com/BatmanBruc/any2any-bot/types"
)

func (bh *Handlers) singleShot(ctx context.Context, act router.Action) error {
	who := act.Event.From
	switch act.Op {
	case router.OpWelcome:
		return bh.sendInfo(ctx, who, messages.StartWelcome())
	case router.OpHelp:
		return bh.sendInfo(ctx, who, messages.Help())
	}

	started := bh.now()
	err := bh.convert(ctx, act)
	bh.record(ctx, who, act.Op, started, err)
	if err != nil {
		bh.report(ctx, who, act.Op, err)
	}
	return err
}

func (bh *Handlers) sendInfo(ctx context.Context, who types.Identity, text string) error {
	err := bh.messenger.SendText(ctx, who, text)
	if err != nil {
		bh.log.Error().Int64("user_id", who.UserID).Err(err).Msg("send info")
	}
	return types.Transport("send", err)
}

// ignore answers events that lead nowhere with a hint; ReasonNone stays silent.
func (bh *Handlers) ignore(ctx context.Context, act router.Action) {
	var text string
	switch act.Reason {
	case router.ReasonPlainText:
		text = messages.SendFileHint()
	case router.ReasonUnknownCommand:
		text = messages.UnknownCommand()
	case router.ReasonNothingToCancel:
		text = messages.NothingToCancel()
	case router.ReasonAttachmentRequired:
		text = messages.AttachRequired(act.Directive)
	case router.ReasonUnsupportedFormat:
		name := ""
		if act.Event.Attachment != nil {
			name = act.Event.Attachment.FileName
		}
		text = messages.UnsupportedFormat(name)
	case router.ReasonStaleButton:
		text = messages.NoActiveOperation()
	default:
		return
	}
	if err := bh.messenger.SendText(ctx, act.Event.From, text); err != nil {
		bh.log.Error().Int64("user_id", act.Event.From.UserID).Err(err).Msg("send hint")
	}
}

// report sends the one message a failed operation produces.
func (bh *Handlers) report(ctx context.Context, who types.Identity, op router.Operation, err error) {
	text := messages.ErrorText(err)
	if op == router.OpImageOcr && isNoText(err) {
		text = messages.NoTextInImage()
	}

	kind := types.KindOf(err)
	ev := bh.log.Error()
	if kind == types.KindInputRejected {
		ev = bh.log.Warn()
	}
	ev.Int64("user_id", who.UserID).Str("op", op.String()).Str("kind", string(kind)).Err(err).Msg("operation failed")

	if sendErr := bh.messenger.SendText(ctx, who, text); sendErr != nil {
		bh.log.Error().Int64("user_id", who.UserID).Err(sendErr).Msg("send error message")
	}
}
