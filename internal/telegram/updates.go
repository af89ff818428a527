package telegram

import (
	"strings"
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/BatmanBruc/any2any-bot/internal/formats"
	"github.com/BatmanBruc/any2any-bot/types"
)

// EventFromUpdate translates an update into an event. Updates the bot has no
// use for (edits, channel posts, messages without a sender) report false.
func EventFromUpdate(update *models.Update, now time.Time) (types.Event, bool) {
	if update == nil {
		return types.Event{}, false
	}
	ev := types.Event{UpdateID: update.ID, ReceivedAt: now}

	switch {
	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		chatID := getChatIDFromMaybeInaccessibleMessage(cq.Message)
		if cq.From.ID == 0 || chatID == 0 || cq.Data == "" {
			return types.Event{}, false
		}
		ev.From = types.Identity{UserID: cq.From.ID, ChatID: chatID}
		ev.Kind = types.EventCallback
		ev.CallbackID = cq.ID
		ev.Callback = cq.Data
		return ev, true

	case update.Message != nil:
		msg := update.Message
		if msg.From == nil || msg.From.ID == 0 || msg.Chat.ID == 0 {
			return types.Event{}, false
		}
		ev.From = types.Identity{UserID: msg.From.ID, ChatID: msg.Chat.ID}
		if msg.Date > 0 {
			ev.ReceivedAt = time.Unix(int64(msg.Date), 0)
		}
		return fromMessage(ev, msg)
	}
	return types.Event{}, false
}

func fromMessage(ev types.Event, msg *models.Message) (types.Event, bool) {
	switch {
	case len(msg.Photo) > 0:
		best := msg.Photo[0]
		for i := 1; i < len(msg.Photo); i++ {
			if msg.Photo[i].FileSize > best.FileSize {
				best = msg.Photo[i]
			}
		}
		ev.Kind = types.EventPhoto
		ev.Text = msg.Caption
		ev.Attachment = &types.Attachment{
			FileID:   best.FileID,
			FileName: "photo.jpg",
			MimeType: "image/jpeg",
			Size:     int64(best.FileSize),
		}
	case msg.Document != nil:
		ev.Kind = types.EventDocument
		ev.Text = msg.Caption
		ev.Attachment = &types.Attachment{
			FileID:   msg.Document.FileID,
			FileName: fileName(msg.Document.FileName, msg.Document.MimeType, "document"),
			MimeType: msg.Document.MimeType,
			Size:     int64(msg.Document.FileSize),
		}
	// Media the bot cannot convert still arrives as a document so the user
	// gets the unsupported format hint instead of silence.
	case msg.Video != nil:
		ev.Kind = types.EventDocument
		ev.Text = msg.Caption
		ev.Attachment = &types.Attachment{
			FileID:   msg.Video.FileID,
			FileName: fileName(msg.Video.FileName, msg.Video.MimeType, "video"),
			MimeType: msg.Video.MimeType,
			Size:     int64(msg.Video.FileSize),
		}
	case msg.Audio != nil:
		ev.Kind = types.EventDocument
		ev.Text = msg.Caption
		ev.Attachment = &types.Attachment{
			FileID:   msg.Audio.FileID,
			FileName: fileName(msg.Audio.FileName, msg.Audio.MimeType, "audio"),
			MimeType: msg.Audio.MimeType,
			Size:     int64(msg.Audio.FileSize),
		}
	case msg.Voice != nil:
		ev.Kind = types.EventDocument
		ev.Text = msg.Caption
		ev.Attachment = &types.Attachment{
			FileID:   msg.Voice.FileID,
			FileName: fileName("", msg.Voice.MimeType, "voice"),
			MimeType: msg.Voice.MimeType,
			Size:     int64(msg.Voice.FileSize),
		}
	case msg.Text != "":
		ev.Kind = types.EventText
		ev.Text = msg.Text
	default:
		return types.Event{}, false
	}
	return ev, true
}

// fileName keeps the sender's name and makes one up from the MIME type when
// there is none.
func fileName(name, mimeType, fallback string) string {
	name = strings.TrimSpace(name)
	if name != "" {
		return name
	}
	if ext := formats.ExtForMime(mimeType); ext != "" {
		return fallback + "." + ext
	}
	if _, sub, ok := strings.Cut(mimeType, "/"); ok && sub != "" && !strings.ContainsAny(sub, ".+;") {
		return fallback + "." + sub
	}
	return fallback
}

func getChatIDFromMaybeInaccessibleMessage(m models.MaybeInaccessibleMessage) int64 {
	if m.Message != nil {
		return m.Message.Chat.ID
	}
	if m.InaccessibleMessage != nil {
		return m.InaccessibleMessage.Chat.ID
	}
	return 0
}
