package types

import (
	"context"
	"time"
)

// Identity is the chat participant an event came from. Sessions are keyed by
// UserID; replies go to ChatID.
type Identity struct {
	UserID int64 `json:"user_id"`
	ChatID int64 `json:"chat_id"`
}

func (i Identity) Key() int64 {
	return i.UserID
}

type Attachment struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// Event is a transport-neutral inbound update. Text carries either the message
// text or the attachment caption.
type Event struct {
	UpdateID   int64       `json:"update_id"`
	From       Identity    `json:"from"`
	Kind       EventKind   `json:"kind"`
	Text       string      `json:"text,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`
	CallbackID string      `json:"callback_id,omitempty"`
	Callback   string      `json:"callback,omitempty"`
	ReceivedAt time.Time   `json:"received_at"`
}

// PageSelection holds 1-based page numbers, ascending and without duplicates.
type PageSelection []int

type FileInfo struct {
	Name      string
	MimeType  string
	Extension string
	Size      int64
	Pages     int
	Metadata  map[string]string
}

type Button struct {
	Text string
	Data string
}

type OperationRecord struct {
	UserID    int64
	ChatID    int64
	Operation string
	Outcome   Outcome
	Error     string
	Duration  time.Duration
	At        time.Time
}

type Messenger interface {
	SendText(ctx context.Context, to Identity, text string) error
	// Notify sends a progress notice ahead of a slow step. It never carries
	// an operation's outcome.
	Notify(ctx context.Context, to Identity, text string) error
	SendDocument(ctx context.Context, to Identity, file *StoredFile, caption string) error
	SendPhoto(ctx context.Context, to Identity, file *StoredFile, caption string) error
	PromptWithButtons(ctx context.Context, to Identity, text string, buttons []Button) error
	Download(ctx context.Context, ref Attachment) (*StoredFile, error)
	Acknowledge(ctx context.Context, callbackID string) error
}

// Gateway is the boundary over the file-format engines. Every returned
// StoredFile is owned by the caller.
type Gateway interface {
	ExtractText(ctx context.Context, pdf *StoredFile) (*StoredFile, error)
	RenderDocxToPdf(ctx context.Context, docx *StoredFile) (*StoredFile, error)
	RecognizeText(ctx context.Context, image *StoredFile) (*StoredFile, error)
	// RasterizePdf renders at most limit pages (all when limit <= 0) and
	// reports the document's total page count.
	RasterizePdf(ctx context.Context, pdf *StoredFile, limit int) ([]*StoredFile, int, error)
	RenderTextToPdf(ctx context.Context, text string) (*StoredFile, error)
	CombinePdfs(ctx context.Context, pdfs []*StoredFile) (*StoredFile, error)
	SelectPages(ctx context.Context, pdf *StoredFile, pages PageSelection) (*StoredFile, error)
	Compress(ctx context.Context, pdf *StoredFile) (*StoredFile, error)
	ImageToPdf(ctx context.Context, image *StoredFile) (*StoredFile, error)
	PageCount(ctx context.Context, pdf *StoredFile) (int, error)
	Inspect(ctx context.Context, file *StoredFile) (*FileInfo, error)
}

type Journal interface {
	Record(ctx context.Context, rec OperationRecord) error
}

// Deduper reports whether an update id was already seen, marking it seen.
type Deduper interface {
	Seen(ctx context.Context, updateID int64) (bool, error)
}
