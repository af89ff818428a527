// Package conversation drives the multi-step flows: text to PDF, PDF merge
// and page extraction.
package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/BatmanBruc/any2any-bot/internal/files"
	"github.com/BatmanBruc/any2any-bot/internal/messages"
	"github.com/BatmanBruc/any2any-bot/internal/pagerange"
	"github.com/BatmanBruc/any2any-bot/internal/session"
	"github.com/BatmanBruc/any2any-bot/types"
)

var mergeButtons = []types.Button{
	{Text: messages.ButtonMergeNow, Data: types.CallbackMergeNow},
	{Text: messages.ButtonCancel, Data: types.CallbackCancelMerge},
}

// Config tunes an Engine.
type Config struct {
	// IdleTimeout expires sessions without activity; zero disables expiry.
	IdleTimeout time.Duration
}

// Engine must see the events of one identity one at a time; the scheduler
// package provides that ordering.
type Engine struct {
	sessions  *session.Store
	messenger types.Messenger
	gateway   types.Gateway
	journal   types.Journal
	log       zerolog.Logger
	idle      time.Duration
	now       func() time.Time
}

// NewEngine returns an Engine that keeps its sessions in sessions.
func NewEngine(sessions *session.Store, messenger types.Messenger, gateway types.Gateway, journal types.Journal, log zerolog.Logger, cfg Config) *Engine {
	return &Engine{
		sessions:  sessions,
		messenger: messenger,
		gateway:   gateway,
		journal:   journal,
		log:       log.With().Str("component", "conversation").Logger(),
		idle:      cfg.IdleTimeout,
		now:       time.Now,
	}
}

// Start begins flow for who, discarding whatever flow was active before.
func (e *Engine) Start(ctx context.Context, who types.Identity, flow session.Flow) error {
	state, ok := initialState[flow]
	if !ok {
		return fmt.Errorf("unknown flow %v", flow)
	}

	now := e.now()
	prev, replaced := e.sessions.Put(session.Session{
		Owner:     who,
		Flow:      flow,
		State:     state,
		StartedAt: now,
		TouchedAt: now,
	})

	var prompt strings.Builder
	if replaced {
		e.release(prev)
		e.record(ctx, prev, types.OutcomeCancelled, nil)
		prompt.WriteString(messages.PreviousDiscarded() + "\n\n")
		e.log.Info().Int64("user_id", who.UserID).Stringer("previous", prev.Flow).Stringer("flow", flow).Msg("flow replaced")
	}

	var err error
	switch flow {
	case session.FlowTextToPdf:
		prompt.WriteString(messages.TextToPdfStarted())
		err = e.messenger.SendText(ctx, who, prompt.String())
	case session.FlowMerge:
		prompt.WriteString(messages.MergeStarted())
		err = e.messenger.PromptWithButtons(ctx, who, prompt.String(), mergeButtons)
	case session.FlowExtractPages:
		prompt.WriteString(messages.ExtractStarted())
		err = e.messenger.SendText(ctx, who, prompt.String())
	}
	if err != nil {
		err = types.Transport("send", err)
		if cur, ok := e.sessions.Get(who.Key()); ok {
			e.finish(ctx, cur, err)
		}
		e.report(ctx, who, session.FlowNone, err)
		return err
	}

	e.log.Debug().Int64("user_id", who.UserID).Stringer("flow", flow).Msg("flow started")
	return nil
}

// Handle applies ev to the sender's active session. Without a session it does
// nothing. Any failure has already been reported to the user when Handle
// returns it.
func (e *Engine) Handle(ctx context.Context, ev types.Event) error {
	s, ok := e.sessions.Get(ev.From.Key())
	if !ok {
		return nil
	}

	in := classify(ev)
	st, ok := next(s.Flow, s.State, in)
	if !ok {
		e.log.Error().Stringer("flow", s.Flow).Stringer("state", s.State).Stringer("input", in).Msg("no transition defined")
	}

	e.log.Debug().
		Int64("user_id", s.Owner.UserID).
		Stringer("flow", s.Flow).
		Stringer("state", s.State).
		Stringer("input", in).
		Stringer("step", st).
		Msg("conversation step")

	var err error
	switch st {
	case stepRenderText:
		err = e.renderText(ctx, s, ev.Text)
	case stepAppendPdf:
		err = e.appendPdf(ctx, s, ev)
	case stepCombine:
		err = e.combine(ctx, s)
	case stepRecordPdf:
		err = e.recordPdf(ctx, s, ev)
	case stepExtract:
		err = e.extract(ctx, s, ev.Text)
	case stepCancel:
		err = e.cancel(ctx, s)
	case stepExpire:
		err = e.expire(ctx, s)
	default:
		err = e.reject(s, rejection(s))
	}

	if err != nil {
		e.report(ctx, s.Owner, s.Flow, err)
	}
	return err
}

// Active reports the flow currently running for key, if any.
func (e *Engine) Active(key int64) (session.Flow, bool) {
	s, ok := e.sessions.Get(key)
	return s.Flow, ok
}

// Abort ends who's session, if one is still open, as failed. It is the
// cleanup for a step that never returned, such as one that panicked.
func (e *Engine) Abort(ctx context.Context, who types.Identity, cause error) {
	if s, ok := e.sessions.Get(who.Key()); ok {
		e.end(ctx, s, types.OutcomeFailed, cause)
		e.log.Warn().Int64("user_id", who.UserID).Stringer("flow", s.Flow).Msg("session aborted")
	}
}

// Close drops every session and releases its files.
func (e *Engine) Close() {
	for _, s := range e.sessions.Drain() {
		e.release(s)
	}
}

func (e *Engine) renderText(ctx context.Context, s session.Session, text string) (err error) {
	if strings.TrimSpace(text) == "" {
		return e.reject(s, messages.TextExpected())
	}
	defer e.settle(ctx, s, &err)

	scope := &files.Scope{}
	defer scope.Close()

	e.notify(ctx, s.Owner, messages.ProgressTextToPdf())
	out, err := e.gateway.RenderTextToPdf(ctx, text)
	if err != nil {
		return err
	}
	scope.Add(out)

	return types.Transport("send", e.messenger.SendDocument(ctx, s.Owner, out, messages.TextToPdfDone()))
}

func (e *Engine) appendPdf(ctx context.Context, s session.Session, ev types.Event) error {
	f, err := e.messenger.Download(ctx, *ev.Attachment)
	if err != nil {
		err = types.Transport("download", err)
		e.finish(ctx, s, err)
		return err
	}

	next := s
	next.Files = append(next.Files, f)
	next.TouchedAt = e.now()
	updated, err := e.sessions.CompareAndSwap(s, next)
	if err != nil {
		_ = f.Release()
		return err
	}

	err = e.messenger.PromptWithButtons(ctx, s.Owner, messages.MergeReceived(f.Name, len(updated.Files)), mergeButtons)
	if err != nil {
		err = types.Transport("send", err)
		e.finish(ctx, updated, err)
		return err
	}
	return nil
}

func (e *Engine) combine(ctx context.Context, s session.Session) (err error) {
	if len(s.Files) == 0 {
		return e.reject(s, messages.MergeNoFiles())
	}
	defer e.settle(ctx, s, &err)

	if len(s.Files) == 1 {
		return types.Transport("send", e.messenger.SendDocument(ctx, s.Owner, s.Files[0], messages.MergeSingle()))
	}

	scope := &files.Scope{}
	defer scope.Close()

	e.notify(ctx, s.Owner, messages.ProgressMerging(len(s.Files)))
	out, err := e.gateway.CombinePdfs(ctx, s.Files)
	if err != nil {
		return err
	}
	scope.Add(out)

	return types.Transport("send", e.messenger.SendDocument(ctx, s.Owner, out, messages.MergeDone(len(s.Files))))
}

func (e *Engine) recordPdf(ctx context.Context, s session.Session, ev types.Event) error {
	f, err := e.messenger.Download(ctx, *ev.Attachment)
	if err != nil {
		err = types.Transport("download", err)
		e.finish(ctx, s, err)
		return err
	}

	kept := false
	defer func() {
		if !kept {
			_ = f.Release()
		}
	}()

	count, err := e.gateway.PageCount(ctx, f)
	if err != nil {
		e.finish(ctx, s, err)
		return err
	}

	next := s
	next.Files = []*types.StoredFile{f}
	next.PageCount = count
	next.State = session.StateAwaitingRange
	next.TouchedAt = e.now()
	updated, err := e.sessions.CompareAndSwap(s, next)
	if err != nil {
		return err
	}
	kept = true

	if err := e.messenger.SendText(ctx, s.Owner, messages.ExtractReceived(f.Name, count)); err != nil {
		err = types.Transport("send", err)
		e.finish(ctx, updated, err)
		return err
	}
	return nil
}

func (e *Engine) extract(ctx context.Context, s session.Session, expr string) (err error) {
	pages, perr := pagerange.Parse(expr, s.PageCount)
	if perr != nil {
		e.log.Debug().Int64("user_id", s.Owner.UserID).Err(perr).Msg("page selection rejected")
		return e.reject(s, messages.ExtractInvalidRange(s.PageCount))
	}
	defer e.settle(ctx, s, &err)

	scope := &files.Scope{}
	defer scope.Close()

	e.notify(ctx, s.Owner, messages.ProgressExtracting(pagerange.Format(pages)))
	out, err := e.gateway.SelectPages(ctx, s.Files[0], pages)
	if err != nil {
		return err
	}
	scope.Add(out)

	return types.Transport("send", e.messenger.SendDocument(ctx, s.Owner, out, messages.ExtractDone(pagerange.Format(pages))))
}

func (e *Engine) cancel(ctx context.Context, s session.Session) error {
	e.end(ctx, s, types.OutcomeCancelled, nil)
	return types.Transport("send", e.messenger.SendText(ctx, s.Owner, messages.Cancelled()))
}

func (e *Engine) expire(ctx context.Context, s session.Session) error {
	// The sweeper may have queued this before the user's latest event.
	if e.idle > 0 && e.now().Sub(s.TouchedAt) < e.idle {
		return nil
	}
	e.end(ctx, s, types.OutcomeExpired, nil)
	e.log.Info().Int64("user_id", s.Owner.UserID).Stringer("flow", s.Flow).Msg("session expired")
	return types.Transport("send", e.messenger.SendText(ctx, s.Owner, messages.Expired()))
}

// reject keeps the session where it is and refreshes its activity time.
func (e *Engine) reject(s session.Session, text string) error {
	touched := s
	touched.TouchedAt = e.now()
	if _, err := e.sessions.CompareAndSwap(s, touched); err != nil {
		e.log.Warn().Int64("user_id", s.Owner.UserID).Err(err).Msg("touch on reject")
	}
	return types.Rejected(s.Flow.String(), text)
}

func rejection(s session.Session) string {
	switch {
	case s.Flow == session.FlowTextToPdf:
		return messages.TextExpected()
	case s.Flow == session.FlowMerge:
		return messages.MergeExpectPdf()
	case s.State == session.StateAwaitingRange:
		return messages.ExtractExpectRange(s.PageCount)
	}
	return messages.ExtractExpectPdf()
}

// settle finishes s with the step's result. A panicking step is recorded as
// failed before the panic continues up the stack.
func (e *Engine) settle(ctx context.Context, s session.Session, err *error) {
	if r := recover(); r != nil {
		e.finish(ctx, s, types.ConversionFailed(s.Flow.String(), fmt.Errorf("panic: %v", r)))
		panic(r)
	}
	e.finish(ctx, s, *err)
}

func (e *Engine) finish(ctx context.Context, s session.Session, err error) {
	e.end(ctx, s, types.OutcomeOf(err), err)
}

// end removes s if it is still current and releases everything it held.
func (e *Engine) end(ctx context.Context, s session.Session, outcome types.Outcome, err error) {
	if !e.sessions.CompareAndDelete(s) {
		return
	}
	e.release(s)
	e.record(ctx, s, outcome, err)
}

func (e *Engine) release(s session.Session) {
	if err := types.ReleaseAll(s.Files); err != nil {
		e.log.Error().Int64("user_id", s.Owner.UserID).Err(err).Msg("release session files")
	}
}

func (e *Engine) record(ctx context.Context, s session.Session, outcome types.Outcome, err error) {
	if e.journal == nil {
		return
	}
	rec := types.OperationRecord{
		UserID:    s.Owner.UserID,
		ChatID:    s.Owner.ChatID,
		Operation: s.Flow.String(),
		Outcome:   outcome,
		Duration:  e.now().Sub(s.StartedAt),
		At:        e.now(),
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if jerr := e.journal.Record(ctx, rec); jerr != nil {
		e.log.Warn().Err(jerr).Msg("journal record")
	}
}

func (e *Engine) notify(ctx context.Context, who types.Identity, text string) {
	if err := e.messenger.Notify(ctx, who, text); err != nil {
		e.log.Warn().Int64("user_id", who.UserID).Err(err).Msg("send progress notice")
	}
}

func (e *Engine) report(ctx context.Context, who types.Identity, flow session.Flow, err error) {
	text := messages.ErrorText(err)
	kind := types.KindOf(err)

	var sendErr error
	if kind == types.KindInputRejected && flow == session.FlowMerge {
		sendErr = e.messenger.PromptWithButtons(ctx, who, text, mergeButtons)
	} else {
		sendErr = e.messenger.SendText(ctx, who, text)
	}

	ev := e.log.Warn()
	if kind != types.KindInputRejected {
		ev = e.log.Error()
	}
	ev.Int64("user_id", who.UserID).Str("kind", string(kind)).Err(err).Msg("conversation step failed")
	if sendErr != nil {
		e.log.Error().Int64("user_id", who.UserID).Err(sendErr).Msg("send error message")
	}
}
