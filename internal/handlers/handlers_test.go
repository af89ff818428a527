package handlers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BatmanBruc/any2any-bot/internal/conversation"
	"github.com/BatmanBruc/any2any-bot/internal/fakes"
	"github.com/BatmanBruc/any2any-bot/internal/files"
	"github.com/BatmanBruc/any2any-bot/internal/messages"
	"github.com/BatmanBruc/any2any-bot/internal/router"
	"github.com/BatmanBruc/any2any-bot/internal/scheduler"
	"github.com/BatmanBruc/any2any-bot/internal/session"
	"github.com/BatmanBruc/any2any-bot/types"
)

var user = types.Identity{UserID: 7, ChatID: 70}

type journal struct {
	mu      sync.Mutex
	records []types.OperationRecord
}

func (j *journal) Record(_ context.Context, rec types.OperationRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, rec)
	return nil
}

func (j *journal) all() []types.OperationRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]types.OperationRecord(nil), j.records...)
}

type bot struct {
	handlers  *Handlers
	sessions  *session.Store
	store     *files.Store
	messenger *fakes.Messenger
	gateway   *fakes.Gateway
	journal   *journal
}

func newBot(t *testing.T) *bot {
	t.Helper()
	store, err := files.NewStore(t.TempDir())
	require.NoError(t, err)

	b := &bot{
		sessions:  session.NewStore(),
		store:     store,
		messenger: fakes.NewMessenger(store),
		gateway:   fakes.NewGateway(store),
		journal:   &journal{},
	}
	engine := conversation.NewEngine(b.sessions, b.messenger, b.gateway, b.journal, zerolog.Nop(), conversation.Config{})
	b.handlers = NewHandlers(router.New(b.sessions), engine, b.messenger, b.gateway, b.journal, zerolog.Nop(), Config{PreviewPages: 3})
	return b
}

func (b *bot) send(ev types.Event) {
	ev.From = user
	b.handlers.MainHandler(context.Background(), ev)
}

func text(s string) types.Event {
	return types.Event{Kind: types.EventText, Text: s}
}

func document(id, name, mime, caption string) types.Event {
	return types.Event{
		Kind:       types.EventDocument,
		Text:       caption,
		Attachment: &types.Attachment{FileID: id, FileName: name, MimeType: mime},
	}
}

func photo(id, caption string) types.Event {
	return types.Event{
		Kind:       types.EventPhoto,
		Text:       caption,
		Attachment: &types.Attachment{FileID: id, FileName: "photo.jpg", MimeType: "image/jpeg"},
	}
}

func pdf(id, caption string) types.Event {
	return document(id, id+".pdf", "application/pdf", caption)
}

func button(data string) types.Event {
	return types.Event{Kind: types.EventCallback, Callback: data, CallbackID: "cb-" + data}
}

func TestSingleShotConversions(t *testing.T) {
	tests := []struct {
		name     string
		event    types.Event
		call     string
		kind     string
		fileName string
		caption  string
	}{
		{"bare pdf", pdf("report", ""), "pdf2text", "document", "text.txt", messages.PdfToTextDone()},
		{"bare docx", document("cv", "cv.docx", "", ""), "docx2pdf", "document", "converted.pdf", messages.DocxToPdfDone()},
		{"bare photo", photo("snap", ""), "ocr", "document", "ocr_result.txt", messages.OcrDone()},
		{"image document", document("scan", "scan.PNG", "", ""), "ocr", "document", "ocr_result.txt", messages.OcrDone()},
		{"img2pdf on photo", photo("snap", "/img2pdf"), "img2pdf", "document", "image.pdf", messages.ImageToPdfDone()},
		{"img2pdf on image document", document("scan", "scan.tiff", "", "/IMG2PDF"), "img2pdf", "document", "image.pdf", messages.ImageToPdfDone()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBot(t)
			b.send(tt.event)

			assert.Equal(t, []string{tt.call}, b.gateway.Calls())
			sent := b.messenger.Sent()
			require.Len(t, sent, 1)
			assert.Equal(t, tt.kind, sent[0].Kind)
			assert.Equal(t, tt.fileName, sent[0].FileName)
			assert.Equal(t, tt.caption, sent[0].Text)
			assert.Zero(t, b.store.Live(), "leaked %v", b.store.LiveNames())

			recs := b.journal.all()
			require.Len(t, recs, 1)
			assert.Equal(t, tt.call, recs[0].Operation)
			assert.Equal(t, types.OutcomeSuccess, recs[0].Outcome)
		})
	}
}

func TestCompressReportsSizes(t *testing.T) {
	b := newBot(t)
	b.messenger.Blobs["big"] = strings.Repeat("x", 100)

	b.send(pdf("big", "/compress"))

	last := b.messenger.Last()
	assert.Equal(t, "document", last.Kind)
	assert.Equal(t, "compressed_big.pdf", last.FileName)
	assert.Equal(t, messages.CompressDone(100, 1), last.Text)
	assert.Zero(t, b.store.Live())
}

func TestFileInfo(t *testing.T) {
	b := newBot(t)
	b.send(pdf("doc", "/info"))

	sent := b.messenger.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "text", sent[0].Kind)
	assert.Contains(t, sent[0].Text, "doc.pdf")
	assert.Zero(t, b.store.Live())
}

func TestPdfToImagesCapsPreview(t *testing.T) {
	b := newBot(t)
	b.gateway.Pages = 5

	b.send(pdf("deck", "/pdf2img"))

	sent := b.messenger.Sent()
	require.Len(t, sent, 5)
	assert.Equal(t, messages.PdfToImagesSummary(5, 3), sent[0].Text)
	for i := 1; i <= 3; i++ {
		assert.Equal(t, "photo", sent[i].Kind)
		assert.Equal(t, messages.PageCaption(i), sent[i].Text)
		assert.Equal(t, fmt.Sprintf("page_%d.jpg", i), sent[i].FileName)
	}
	assert.Equal(t, messages.PdfToImagesTruncated(3, 5), sent[4].Text)
	assert.Zero(t, b.store.Live())
}

func TestPdfToImagesWithoutTruncation(t *testing.T) {
	b := newBot(t)
	b.gateway.Pages = 2

	b.send(pdf("deck", "/pdf2img"))

	sent := b.messenger.Sent()
	require.Len(t, sent, 3)
	assert.Equal(t, "photo", sent[2].Kind)
}

func TestWrongInputIsRejectedBeforeDownload(t *testing.T) {
	tests := []struct {
		name  string
		event types.Event
		want  string
	}{
		{"pdf2img on docx", document("cv", "cv.docx", "", "/pdf2img"), messages.ExpectPdfFor("/pdf2img")},
		{"compress on photo", photo("snap", "/compress"), messages.ExpectPdfFor("/compress")},
		{"img2pdf on pdf", pdf("doc", "/img2pdf"), messages.ExpectImageFor("/img2pdf")},
		{"info on photo", photo("snap", "/info"), messages.ExpectDocumentFor("/info")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBot(t)
			b.messenger.FailDownload = fakes.ErrInjected

			b.send(tt.event)

			assert.Empty(t, b.gateway.Calls())
			sent := b.messenger.Sent()
			require.Len(t, sent, 1)
			assert.Equal(t, tt.want, sent[0].Text)

			recs := b.journal.all()
			require.Len(t, recs, 1)
			assert.Equal(t, types.OutcomeRejected, recs[0].Outcome)
		})
	}
}

func TestFailuresSendOneMessageAndLeakNothing(t *testing.T) {
	tests := []struct {
		name  string
		setup func(b *bot)
		event types.Event
		want  string
	}{
		{
			name:  "conversion fails",
			setup: func(b *bot) { b.gateway.Fail["pdf2text"] = fakes.ErrInjected },
			event: pdf("doc", ""),
			want:  messages.ErrorConversionFailed(fakes.ErrInjected),
		},
		{
			name:  "download fails",
			setup: func(b *bot) { b.messenger.FailDownload = fakes.ErrInjected },
			event: pdf("doc", ""),
			want:  messages.ErrorTransport(),
		},
		{
			name:  "upload fails",
			setup: func(b *bot) { b.messenger.FailDocument = fakes.ErrInjected },
			event: document("cv", "cv.docx", "", ""),
			want:  messages.ErrorTransport(),
		},
		{
			name:  "photo upload fails mid preview",
			setup: func(b *bot) { b.messenger.FailPhoto = fakes.ErrInjected },
			event: pdf("deck", "/pdf2img"),
			want:  messages.ErrorTransport(),
		},
		{
			name:  "no text in pdf",
			setup: func(b *bot) { b.gateway.Fail["pdf2text"] = types.ErrNoText },
			event: pdf("scan", ""),
			want:  messages.NoTextInPdf(),
		},
		{
			name:  "no text in photo",
			setup: func(b *bot) { b.gateway.Fail["ocr"] = types.ErrNoText },
			event: photo("blank", ""),
			want:  messages.NoTextInImage(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBot(t)
			tt.setup(b)

			b.send(tt.event)

			var texts []string
			for _, s := range b.messenger.Sent() {
				if s.Kind == "text" && s.Text != messages.PdfToImagesSummary(10, 3) {
					texts = append(texts, s.Text)
				}
			}
			assert.Equal(t, []string{tt.want}, texts)
			assert.Zero(t, b.store.Live(), "leaked %v", b.store.LiveNames())

			recs := b.journal.all()
			require.Len(t, recs, 1)
			assert.Equal(t, types.OutcomeFailed, recs[0].Outcome)
		})
	}
}

func TestHints(t *testing.T) {
	tests := []struct {
		name  string
		event types.Event
		want  string
	}{
		{"start", text("/start"), messages.StartWelcome()},
		{"help", text("/help"), messages.Help()},
		{"plain text", text("hello"), messages.SendFileHint()},
		{"unknown command", text("/frobnicate"), messages.UnknownCommand()},
		{"cancel without session", text("/cancel"), messages.NothingToCancel()},
		{"directive without file", text("/compress"), messages.AttachRequired("/compress")},
		{"unsupported document", document("x", "notes.odt", "", ""), messages.UnsupportedFormat("notes.odt")},
		{"stale button", button(types.CallbackMergeNow), messages.NoActiveOperation()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBot(t)
			b.send(tt.event)

			sent := b.messenger.Sent()
			require.Len(t, sent, 1)
			assert.Equal(t, tt.want, sent[0].Text)
			assert.Empty(t, b.gateway.Calls())
			assert.Empty(t, b.journal.all())
		})
	}
}

func TestCallbacksAreAcknowledged(t *testing.T) {
	b := newBot(t)
	b.send(button(types.CallbackCancelMerge))

	assert.Equal(t, []string{"cb-" + types.CallbackCancelMerge}, b.messenger.Acks())
}

func TestMergeFlowThroughRouter(t *testing.T) {
	b := newBot(t)

	b.send(text("/merge"))
	b.send(pdf("a", ""))
	b.send(pdf("b", ""))
	b.send(button(types.CallbackMergeNow))

	last := b.messenger.Last()
	assert.Equal(t, "merged.pdf", last.FileName)
	assert.Equal(t, "a|b", last.Content)
	assert.Equal(t, []string{"combine"}, b.gateway.Calls())
	assert.False(t, b.sessions.Has(user.Key()))
	assert.Zero(t, b.store.Live())
}

func TestHelpDuringFlowKeepsSession(t *testing.T) {
	b := newBot(t)

	b.send(text("/extract"))
	b.send(text("/help"))

	assert.Equal(t, messages.Help(), b.messenger.Last().Text)
	assert.True(t, b.sessions.Has(user.Key()))
}

func TestCaptionedFileDuringFlowGoesToConversation(t *testing.T) {
	b := newBot(t)

	b.send(text("/merge"))
	b.send(pdf("a", "/compress"))

	assert.Empty(t, b.gateway.Calls())
	s, ok := b.sessions.Get(user.Key())
	require.True(t, ok)
	assert.Len(t, s.Files, 1)

	b.send(text("/cancel"))
	assert.Equal(t, messages.Cancelled(), b.messenger.Last().Text)
	assert.Zero(t, b.store.Live())
}

func TestProgressNoticeBeforeConversion(t *testing.T) {
	tests := []struct {
		event types.Event
		want  []string
	}{
		{pdf("doc", ""), []string{messages.ProgressPdfToText()}},
		{photo("snap", ""), []string{messages.ProgressOcr()}},
		{pdf("doc", "/compress"), []string{messages.ProgressCompress()}},
		{pdf("doc", "/info"), []string{}},
		{pdf("doc", "/img2pdf"), []string{}},
	}
	for _, tt := range tests {
		b := newBot(t)
		b.send(tt.event)
		assert.Equal(t, tt.want, b.messenger.Notices(), "caption %q", tt.event.Text)
	}
}

func TestPanicRepliesOnceAndEndsSession(t *testing.T) {
	b := newBot(t)
	b.gateway.Panic = map[string]any{"combine": "boom"}
	sched := scheduler.NewScheduler(b.handlers.MainHandler, zerolog.Nop(), scheduler.Config{})
	sched.Start()

	for _, ev := range []types.Event{text("/merge"), pdf("A", ""), pdf("B", "")} {
		ev.From = user
		require.NoError(t, sched.Submit(ev))
	}
	require.Eventually(t, func() bool { return sched.Pending() == 0 }, 2*time.Second, 5*time.Millisecond)
	b.messenger.Reset()

	ev := button(types.CallbackMergeNow)
	ev.From = user
	require.NoError(t, sched.Submit(ev))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sched.Stop(ctx))

	sent := b.messenger.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, messages.ErrorDefault(), sent[0].Text)
	assert.False(t, b.sessions.Has(user.Key()))
	assert.Zero(t, b.store.Live(), "leaked %v", b.store.LiveNames())

	recs := b.journal.all()
	require.NotEmpty(t, recs)
	assert.Equal(t, types.OutcomeFailed, recs[len(recs)-1].Outcome)
}

func TestPanicBeforeSessionUpdateIsCleanedUp(t *testing.T) {
	b := newBot(t)
	b.gateway.Panic = map[string]any{"page_count": "boom"}

	b.send(text("/extract"))
	b.messenger.Reset()
	b.send(pdf("doc", ""))

	sent := b.messenger.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, messages.ErrorDefault(), sent[0].Text)
	assert.False(t, b.sessions.Has(user.Key()))
	assert.Zero(t, b.store.Live())
}

func TestPanicInSingleShotReplies(t *testing.T) {
	b := newBot(t)
	b.gateway.Panic = map[string]any{"pdf2text": "boom"}

	assert.NotPanics(t, func() { b.send(pdf("doc", "")) })

	sent := b.messenger.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, messages.ErrorDefault(), sent[0].Text)
	assert.Zero(t, b.store.Live())
}

func TestConcurrentUploadsAreAllMerged(t *testing.T) {
	b := newBot(t)
	sched := scheduler.NewScheduler(b.handlers.MainHandler, zerolog.Nop(), scheduler.Config{MaxPending: 64})
	sched.Start()

	submit := func(ev types.Event) {
		ev.From = user
		require.NoError(t, sched.Submit(ev))
	}

	submit(text("/merge"))
	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ev := pdf(fmt.Sprintf("p%02d", i), "")
			ev.From = user
			assert.NoError(t, sched.Submit(ev))
		}(i)
	}
	wg.Wait()
	submit(button(types.CallbackMergeNow))
	submit(button(types.CallbackMergeNow))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sched.Stop(ctx))

	var merged []fakes.Sent
	for _, s := range b.messenger.Sent() {
		if s.Kind == "document" {
			merged = append(merged, s)
		}
	}
	require.Len(t, merged, 1)
	assert.Len(t, strings.Split(merged[0].Content, "|"), n)
	assert.Equal(t, messages.NoActiveOperation(), b.messenger.Last().Text)
	assert.Zero(t, b.store.Live())
}
