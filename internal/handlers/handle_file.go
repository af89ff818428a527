package handlers

import (
	"context"
	"errors"

	"github.com/BatmanBruc/any2any-bot/internal/files"
	"github.com/BatmanBruc/any2any-bot/internal/formats"
	"github.com/BatmanBruc/any2any-bot/internal/messages"
	"github.com/BatmanBruc/any2any-bot/internal/router"
	"github.com/BatmanBruc/any2any-bot/types"
)

// convert runs one file operation. Everything it downloads or produces is
// released before it returns.
func (bh *Handlers) convert(ctx context.Context, act router.Action) error {
	ev := act.Event
	if err := validate(act); err != nil {
		return err
	}

	scope := &files.Scope{}
	defer func() {
		if err := scope.Close(); err != nil {
			bh.log.Error().Int64("user_id", ev.From.UserID).Err(err).Msg("release files")
		}
	}()

	in, err := bh.messenger.Download(ctx, *ev.Attachment)
	if err != nil {
		return types.Transport("download", err)
	}
	scope.Add(in)
	bh.notify(ctx, ev.From, progress(act.Op))

	switch act.Op {
	case router.OpPdfToText:
		return bh.sendResult(ctx, scope, ev.From, messages.PdfToTextDone(), func() (*types.StoredFile, error) {
			return bh.gateway.ExtractText(ctx, in)
		})
	case router.OpDocxToPdf:
		return bh.sendResult(ctx, scope, ev.From, messages.DocxToPdfDone(), func() (*types.StoredFile, error) {
			return bh.gateway.RenderDocxToPdf(ctx, in)
		})
	case router.OpImageOcr:
		return bh.sendResult(ctx, scope, ev.From, messages.OcrDone(), func() (*types.StoredFile, error) {
			return bh.gateway.RecognizeText(ctx, in)
		})
	case router.OpImageToPdf:
		return bh.sendResult(ctx, scope, ev.From, messages.ImageToPdfDone(), func() (*types.StoredFile, error) {
			return bh.gateway.ImageToPdf(ctx, in)
		})
	case router.OpCompress:
		out, err := bh.gateway.Compress(ctx, in)
		if err != nil {
			return err
		}
		scope.Add(out)
		return types.Transport("send_document", bh.messenger.SendDocument(ctx, ev.From, out, messages.CompressDone(in.Size, out.Size)))
	case router.OpFileInfo:
		info, err := bh.gateway.Inspect(ctx, in)
		if err != nil {
			return err
		}
		return types.Transport("send", bh.messenger.SendText(ctx, ev.From, messages.FileInfo(info)))
	case router.OpPdfToImages:
		return bh.previewPages(ctx, scope, ev.From, in)
	}
	return types.Rejected(act.Op.String(), messages.UnknownCommand())
}

func (bh *Handlers) sendResult(ctx context.Context, scope *files.Scope, to types.Identity, caption string, run func() (*types.StoredFile, error)) error {
	out, err := run()
	if err != nil {
		return err
	}
	scope.Add(out)
	return types.Transport("send_document", bh.messenger.SendDocument(ctx, to, out, caption))
}

func (bh *Handlers) previewPages(ctx context.Context, scope *files.Scope, to types.Identity, in *types.StoredFile) error {
	pages, total, err := bh.gateway.RasterizePdf(ctx, in, bh.preview)
	if err != nil {
		return err
	}
	scope.Add(pages...)

	if err := bh.messenger.SendText(ctx, to, messages.PdfToImagesSummary(total, len(pages))); err != nil {
		return types.Transport("send", err)
	}
	for i, page := range pages {
		if err := bh.messenger.SendPhoto(ctx, to, page, messages.PageCaption(i+1)); err != nil {
			return types.Transport("send_photo", err)
		}
	}
	if total > len(pages) {
		return types.Transport("send", bh.messenger.SendText(ctx, to, messages.PdfToImagesTruncated(len(pages), total)))
	}
	return nil
}

func progress(op router.Operation) string {
	switch op {
	case router.OpPdfToText:
		return messages.ProgressPdfToText()
	case router.OpDocxToPdf:
		return messages.ProgressDocxToPdf()
	case router.OpImageOcr:
		return messages.ProgressOcr()
	case router.OpImageToPdf:
		return messages.ProgressImageToPdf()
	case router.OpPdfToImages:
		return messages.ProgressPdfToImages()
	case router.OpCompress:
		return messages.ProgressCompress()
	}
	return ""
}

// notify sends a progress notice; a failed notice does not stop the work.
func (bh *Handlers) notify(ctx context.Context, to types.Identity, text string) {
	if text == "" {
		return
	}
	if err := bh.messenger.Notify(ctx, to, text); err != nil {
		bh.log.Warn().Int64("user_id", to.UserID).Err(err).Msg("send progress notice")
	}
}

// validate checks the attachment shape before anything is downloaded.
func validate(act router.Action) error {
	op := act.Op.String()
	att := act.Event.Attachment
	if att == nil {
		return types.Rejected(op, messages.AttachRequired(act.Directive))
	}
	kind := formats.Classify(att.FileName, att.MimeType)
	photo := act.Event.Kind == types.EventPhoto

	switch act.Op {
	case router.OpPdfToImages, router.OpCompress:
		if photo || kind != formats.KindPdf {
			return types.Rejected(op, messages.ExpectPdfFor(act.Directive))
		}
	case router.OpImageToPdf:
		if !photo && kind != formats.KindImage && !formats.IsImageMime(att.MimeType) {
			return types.Rejected(op, messages.ExpectImageFor(act.Directive))
		}
	case router.OpFileInfo:
		if photo {
			return types.Rejected(op, messages.ExpectDocumentFor(act.Directive))
		}
	}
	return nil
}

func isNoText(err error) bool {
	return errors.Is(err, types.ErrNoText)
}
