// Package telegram adapts the Telegram Bot API to the bot's transport-neutral
// types.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/BatmanBruc/any2any-bot/internal/files"
	"github.com/BatmanBruc/any2any-bot/internal/messages"
	"github.com/BatmanBruc/any2any-bot/types"
)

const defaultFileServer = "https://api.telegram.org"

type Options struct {
	// FileServer is where file contents are fetched from; defaults to the
	// public Bot API.
	FileServer string
	// DownloadClient defaults to a client with a 10 minute timeout.
	DownloadClient *http.Client
}

type Messenger struct {
	bot        *bot.Bot
	files      *files.Store
	client     *http.Client
	fileServer string
}

var _ types.Messenger = (*Messenger)(nil)

func NewMessenger(b *bot.Bot, store *files.Store, opts Options) *Messenger {
	if opts.FileServer == "" {
		opts.FileServer = defaultFileServer
	}
	if opts.DownloadClient == nil {
		opts.DownloadClient = &http.Client{Timeout: 10 * time.Minute}
	}
	return &Messenger{
		bot:        b,
		files:      store,
		client:     opts.DownloadClient,
		fileServer: strings.TrimRight(opts.FileServer, "/"),
	}
}

func (m *Messenger) SendText(ctx context.Context, to types.Identity, text string) error {
	_, err := m.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    to.ChatID,
		Text:      text,
		ParseMode: messages.ParseModeHTML,
	})
	if err != nil {
		return m.fail("send_message", err)
	}
	return nil
}

func (m *Messenger) Notify(ctx context.Context, to types.Identity, text string) error {
	_, err := m.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: to.ChatID,
		Text:   text,
	})
	if err != nil {
		return m.fail("notify", err)
	}
	return nil
}

func (m *Messenger) PromptWithButtons(ctx context.Context, to types.Identity, text string, buttons []types.Button) error {
	keyboard := BuildInlineKeyboard(buttons)
	_, err := m.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      to.ChatID,
		Text:        text,
		ParseMode:   messages.ParseModeHTML,
		ReplyMarkup: &keyboard,
	})
	if err != nil {
		return m.fail("send_message", err)
	}
	return nil
}

func (m *Messenger) SendDocument(ctx context.Context, to types.Identity, file *types.StoredFile, caption string) error {
	f, err := file.Open()
	if err != nil {
		return m.fail("send_document", err)
	}
	defer f.Close()

	_, err = m.bot.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID: to.ChatID,
		Document: &models.InputFileUpload{
			Filename: file.Name,
			Data:     f,
		},
		Caption:   caption,
		ParseMode: messages.ParseModeHTML,
	})
	if err != nil {
		return m.fail("send_document", err)
	}
	return nil
}

func (m *Messenger) SendPhoto(ctx context.Context, to types.Identity, file *types.StoredFile, caption string) error {
	f, err := file.Open()
	if err != nil {
		return m.fail("send_photo", err)
	}
	defer f.Close()

	_, err = m.bot.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID: to.ChatID,
		Photo: &models.InputFileUpload{
			Filename: file.Name,
			Data:     f,
		},
		Caption:   caption,
		ParseMode: messages.ParseModeHTML,
	})
	if err != nil {
		return m.fail("send_photo", err)
	}
	return nil
}

// Download fetches an attachment into the file store. The caller owns the
// returned file.
func (m *Messenger) Download(ctx context.Context, ref types.Attachment) (*types.StoredFile, error) {
	fileInfo, err := m.bot.GetFile(ctx, &bot.GetFileParams{
		FileID: ref.FileID,
	})
	if err != nil {
		return nil, m.fail("download", fmt.Errorf("get file info: %w", err))
	}

	fileURL := fmt.Sprintf("%s/file/bot%s/%s", m.fileServer, m.bot.Token(), fileInfo.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, m.fail("download", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, m.fail("download", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.TransportFailed("download", fmt.Errorf("bad status: %d", resp.StatusCode))
	}

	name := ref.FileName
	if name == "" {
		name = fileName("", ref.MimeType, "file")
	}
	f, err := m.files.Write(name, resp.Body)
	if err != nil {
		return nil, m.fail("download", err)
	}
	f.MimeType = ref.MimeType
	return f, nil
}

func (m *Messenger) Acknowledge(ctx context.Context, callbackID string) error {
	_, err := m.bot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
	})
	if err != nil {
		return m.fail("answer_callback", err)
	}
	return nil
}

// fail wraps err as a transport failure. File URLs embed the bot token, so it
// is cut out of the message.
func (m *Messenger) fail(op string, err error) error {
	if token := m.bot.Token(); token != "" && strings.Contains(err.Error(), token) {
		err = errors.New(strings.ReplaceAll(err.Error(), token, "<token>"))
	}
	return types.TransportFailed(op, err)
}

// BuildInlineKeyboard lays buttons out three per row.
func BuildInlineKeyboard(buttons []types.Button) models.InlineKeyboardMarkup {
	pad := func(s string) string { return " " + s + " " }
	rows := make([][]models.InlineKeyboardButton, 0)
	row := make([]models.InlineKeyboardButton, 0, 3)
	for i, button := range buttons {
		if i > 0 && i%3 == 0 {
			rows = append(rows, row)
			row = make([]models.InlineKeyboardButton, 0, 3)
		}
		row = append(row, models.InlineKeyboardButton{
			Text:         pad(button.Text),
			CallbackData: button.Data,
		})
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	return models.InlineKeyboardMarkup{
		InlineKeyboard: rows,
	}
}
