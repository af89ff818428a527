// Package fakes provides in-memory Messenger and Gateway implementations for
// tests. Files still go through a real files.Store so leaks show up.
package fakes

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/BatmanBruc/any2any-bot/internal/files"
	"github.com/BatmanBruc/any2any-bot/types"
)

var ErrInjected = errors.New("injected failure")

type Sent struct {
	Kind     string
	To       types.Identity
	Text     string
	FileName string
	Content  string
	Buttons  []types.Button
}

type Messenger struct {
	Files *files.Store

	// Blobs maps file ids to downloaded content; unknown ids download their own id.
	Blobs map[string]string

	FailText     error
	FailDocument error
	FailPhoto    error
	FailPrompt   error
	FailDownload error
	FailNotify   error

	mu      sync.Mutex
	sent    []Sent
	notices []Sent
	acks    []string
}

var _ types.Messenger = (*Messenger)(nil)

func NewMessenger(store *files.Store) *Messenger {
	return &Messenger{Files: store, Blobs: make(map[string]string)}
}

func (m *Messenger) SendText(_ context.Context, to types.Identity, text string) error {
	if m.FailText != nil {
		return m.FailText
	}
	m.record(Sent{Kind: "text", To: to, Text: text})
	return nil
}

// Notify records progress notices apart from Sent so outcome messages can be
// counted on their own.
func (m *Messenger) Notify(_ context.Context, to types.Identity, text string) error {
	if m.FailNotify != nil {
		return m.FailNotify
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notices = append(m.notices, Sent{Kind: "notice", To: to, Text: text})
	return nil
}

func (m *Messenger) SendDocument(_ context.Context, to types.Identity, f *types.StoredFile, caption string) error {
	if m.FailDocument != nil {
		return m.FailDocument
	}
	return m.sendFile("document", to, f, caption)
}

func (m *Messenger) SendPhoto(_ context.Context, to types.Identity, f *types.StoredFile, caption string) error {
	if m.FailPhoto != nil {
		return m.FailPhoto
	}
	return m.sendFile("photo", to, f, caption)
}

func (m *Messenger) sendFile(kind string, to types.Identity, f *types.StoredFile, caption string) error {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return fmt.Errorf("read %s: %w", f.Name, err)
	}
	m.record(Sent{Kind: kind, To: to, Text: caption, FileName: f.Name, Content: string(data)})
	return nil
}

func (m *Messenger) PromptWithButtons(_ context.Context, to types.Identity, text string, buttons []types.Button) error {
	if m.FailPrompt != nil {
		return m.FailPrompt
	}
	m.record(Sent{Kind: "prompt", To: to, Text: text, Buttons: buttons})
	return nil
}

func (m *Messenger) Download(_ context.Context, ref types.Attachment) (*types.StoredFile, error) {
	if m.FailDownload != nil {
		return nil, m.FailDownload
	}
	m.mu.Lock()
	content, ok := m.Blobs[ref.FileID]
	m.mu.Unlock()
	if !ok {
		content = ref.FileID
	}
	name := ref.FileName
	if name == "" {
		name = "photo.jpg"
	}
	f, err := m.Files.WriteBytes(name, []byte(content))
	if err != nil {
		return nil, err
	}
	f.MimeType = ref.MimeType
	return f, nil
}

func (m *Messenger) Acknowledge(_ context.Context, callbackID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acks = append(m.acks, callbackID)
	return nil
}

func (m *Messenger) record(s Sent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, s)
}

func (m *Messenger) Sent() []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Sent(nil), m.sent...)
}

// Last returns the most recent message, or a zero Sent.
func (m *Messenger) Last() Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return Sent{}
	}
	return m.sent[len(m.sent)-1]
}

func (m *Messenger) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
	m.notices = nil
	m.acks = nil
}

func (m *Messenger) Notices() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	texts := make([]string, 0, len(m.notices))
	for _, n := range m.notices {
		texts = append(texts, n.Text)
	}
	return texts
}

func (m *Messenger) Acks() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.acks...)
}

// Gateway fakes conversions with readable text outputs, e.g. merging files
// "a" and "b" yields "a|b".
type Gateway struct {
	Files *files.Store

	// Pages is what PageCount and RasterizePdf report; defaults to 10.
	Pages int
	// Fail makes the named operation fail with a conversion error.
	Fail map[string]error
	// Panic makes the named operation panic with the given value.
	Panic map[string]any

	mu       sync.Mutex
	calls    []string
	selected []types.PageSelection
}

var _ types.Gateway = (*Gateway)(nil)

func NewGateway(store *files.Store) *Gateway {
	return &Gateway{Files: store, Pages: 10, Fail: make(map[string]error)}
}

func (g *Gateway) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

func (g *Gateway) Selected() []types.PageSelection {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]types.PageSelection(nil), g.selected...)
}

func (g *Gateway) enter(op string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, op)
	if v, ok := g.Panic[op]; ok {
		panic(v)
	}
	if err := g.Fail[op]; err != nil {
		return types.ConversionFailed(op, err)
	}
	return nil
}

func (g *Gateway) write(op, name, content string) (*types.StoredFile, error) {
	f, err := g.Files.WriteBytes(name, []byte(content))
	if err != nil {
		return nil, types.ConversionFailed(op, err)
	}
	return f, nil
}

func read(f *types.StoredFile) string {
	data, _ := os.ReadFile(f.Path)
	return string(data)
}

func (g *Gateway) ExtractText(_ context.Context, in *types.StoredFile) (*types.StoredFile, error) {
	if err := g.enter("pdf2text"); err != nil {
		return nil, err
	}
	return g.write("pdf2text", "text.txt", "text of "+read(in))
}

func (g *Gateway) RenderDocxToPdf(_ context.Context, in *types.StoredFile) (*types.StoredFile, error) {
	if err := g.enter("docx2pdf"); err != nil {
		return nil, err
	}
	return g.write("docx2pdf", "converted.pdf", "pdf of "+read(in))
}

func (g *Gateway) RecognizeText(_ context.Context, in *types.StoredFile) (*types.StoredFile, error) {
	if err := g.enter("ocr"); err != nil {
		return nil, err
	}
	return g.write("ocr", "ocr_result.txt", "ocr of "+read(in))
}

func (g *Gateway) RasterizePdf(_ context.Context, in *types.StoredFile, limit int) ([]*types.StoredFile, int, error) {
	if err := g.enter("pdf2img"); err != nil {
		return nil, 0, err
	}
	n := g.Pages
	if limit > 0 && limit < n {
		n = limit
	}
	pages := make([]*types.StoredFile, 0, n)
	for i := 1; i <= n; i++ {
		f, err := g.write("pdf2img", fmt.Sprintf("page_%d.jpg", i), fmt.Sprintf("page %d of %s", i, read(in)))
		if err != nil {
			_ = types.ReleaseAll(pages)
			return nil, 0, err
		}
		pages = append(pages, f)
	}
	return pages, g.Pages, nil
}

func (g *Gateway) RenderTextToPdf(_ context.Context, text string) (*types.StoredFile, error) {
	if err := g.enter("text2pdf"); err != nil {
		return nil, err
	}
	return g.write("text2pdf", "text.pdf", "pdf of "+text)
}

func (g *Gateway) CombinePdfs(_ context.Context, pdfs []*types.StoredFile) (*types.StoredFile, error) {
	if err := g.enter("combine"); err != nil {
		return nil, err
	}
	parts := make([]string, 0, len(pdfs))
	for _, f := range pdfs {
		parts = append(parts, read(f))
	}
	return g.write("combine", "merged.pdf", strings.Join(parts, "|"))
}

func (g *Gateway) SelectPages(_ context.Context, in *types.StoredFile, pages types.PageSelection) (*types.StoredFile, error) {
	if err := g.enter("select_pages"); err != nil {
		return nil, err
	}
	g.mu.Lock()
	g.selected = append(g.selected, pages)
	g.mu.Unlock()
	return g.write("select_pages", "extracted_pages.pdf", fmt.Sprintf("pages %v of %s", []int(pages), read(in)))
}

func (g *Gateway) Compress(_ context.Context, in *types.StoredFile) (*types.StoredFile, error) {
	if err := g.enter("compress"); err != nil {
		return nil, err
	}
	return g.write("compress", "compressed_"+in.Name, "z")
}

func (g *Gateway) ImageToPdf(_ context.Context, in *types.StoredFile) (*types.StoredFile, error) {
	if err := g.enter("img2pdf"); err != nil {
		return nil, err
	}
	return g.write("img2pdf", "image.pdf", "pdf of "+read(in))
}

func (g *Gateway) PageCount(_ context.Context, _ *types.StoredFile) (int, error) {
	if err := g.enter("page_count"); err != nil {
		return 0, err
	}
	return g.Pages, nil
}

func (g *Gateway) Inspect(_ context.Context, f *types.StoredFile) (*types.FileInfo, error) {
	if err := g.enter("info"); err != nil {
		return nil, err
	}
	return &types.FileInfo{Name: f.Name, MimeType: f.MimeType, Size: f.Size, Extension: "pdf", Pages: g.Pages}, nil
}
