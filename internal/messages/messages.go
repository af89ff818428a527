package messages

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BatmanBruc/any2any-bot/types"
)

const ParseModeHTML = "HTML"

const (
	ButtonMergeNow = "✅ Merge Now"
	ButtonCancel   = "❌ Cancel"
)

func Escape(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&#39;",
	)
	return replacer.Replace(strings.TrimSpace(s))
}

func FileLine(fileName string) string {
	name := strings.TrimSpace(fileName)
	if name == "" {
		name = "file"
	}
	return fmt.Sprintf("📄 <b>File:</b> %s", Escape(name))
}

func StartWelcome() string {
	return "👋 <b>Welcome!</b>\nI convert and edit files.\n\n" +
		"📎 Send a PDF, DOCX or image and I'll pick a sensible conversion.\n" +
		"ℹ️ Use /help to see everything I can do."
}

func Help() string {
	return "ℹ️ <b>What I can do</b>\n\n" +
		"<b>Send a file:</b>\n" +
		"• PDF → extract text\n" +
		"• DOCX → convert to PDF\n" +
		"• Image or photo → recognize text (OCR)\n\n" +
		"<b>Commands:</b>\n" +
		"/text2pdf - turn your next message into a PDF\n" +
		"/merge - combine several PDFs\n" +
		"/extract - pull selected pages out of a PDF\n" +
		"/cancel - stop the current operation\n\n" +
		"<b>Captions (attach a file with the caption):</b>\n" +
		"/img2pdf - image → PDF\n" +
		"/pdf2img - PDF → images\n" +
		"/info - file details\n" +
		"/compress - shrink a PDF"
}

func PreviousDiscarded() string {
	return "♻️ Your previous operation was discarded."
}

func TextToPdfStarted() string {
	return "📝 <b>Text to PDF</b>\nSend me the text you want to convert."
}

func TextExpected() string {
	return "✍️ Please send the text you want in the PDF, or /cancel."
}

func TextToPdfDone() string {
	return "✅ Here's your PDF!"
}

func MergeStarted() string {
	return "🔗 <b>PDF merge</b>\nSend me the PDF files one by one, then tap <b>Merge Now</b>."
}

func MergeReceived(fileName string, count int) string {
	return fmt.Sprintf("📥 <b>Received:</b> %s\n%d file(s) queued. Send another PDF or tap <b>Merge Now</b>.", Escape(fileName), count)
}

func MergeExpectPdf() string {
	return "❗ Please send a PDF file, or tap <b>Merge Now</b> when you're done."
}

func MergeNoFiles() string {
	return "❗ No PDFs received yet. Send at least one PDF first."
}

func MergeSingle() string {
	return "⚠️ Only one PDF received, nothing to merge. Here it is unchanged."
}

func MergeDone(count int) string {
	return fmt.Sprintf("✅ Here's your merged PDF! (%d files combined)", count)
}

func ExtractStarted() string {
	return "✂️ <b>Extract pages</b>\nSend me the PDF file."
}

func ExtractExpectPdf() string {
	return "❗ Please send a PDF file, or /cancel."
}

func ExtractReceived(fileName string, pageCount int) string {
	return fmt.Sprintf("📥 <b>Received:</b> %s (%d pages)\n\n", Escape(fileName), pageCount) + rangeHint(pageCount)
}

func ExtractExpectRange(pageCount int) string {
	return "❗ Please send the page numbers as text.\n\n" + rangeHint(pageCount)
}

func ExtractInvalidRange(pageCount int) string {
	return fmt.Sprintf("❗ Invalid page numbers. Use numbers between 1 and %d.\n\n", pageCount) + rangeHint(pageCount)
}

func ExtractDone(pages string) string {
	return fmt.Sprintf("✅ Extracted pages: %s", Escape(pages))
}

func rangeHint(pageCount int) string {
	return fmt.Sprintf("Which pages do you want? (1-%d)\nExamples: <code>1,3,5</code> or <code>2-4</code> or <code>1,3-5,7</code>", pageCount)
}

func Cancelled() string {
	return "❌ Operation cancelled."
}

func NothingToCancel() string {
	return "🤷 Nothing to cancel."
}

func Expired() string {
	return "⌛ Your operation expired after a period of inactivity. Start again whenever you're ready."
}

func PdfToTextDone() string {
	return "✅ Text extracted from PDF"
}

func DocxToPdfDone() string {
	return "✅ Converted to PDF"
}

func OcrDone() string {
	return "✅ Text recognized from image"
}

func NoTextInPdf() string {
	return "🔍 No text found in this PDF. It may be a scan; try sending pages as images."
}

func NoTextInImage() string {
	return "🔍 No text detected in the image."
}

func ImageToPdfDone() string {
	return "✅ Image converted to PDF"
}

func PdfToImagesSummary(total, sent int) string {
	return fmt.Sprintf("🖼 Converted PDF to %d image(s). Sending %d.", total, sent)
}

func PdfToImagesTruncated(sent, total int) string {
	return fmt.Sprintf("ℹ️ Only the first %d of %d pages were sent.", sent, total)
}

func PageCaption(page int) string {
	return fmt.Sprintf("Page %d", page)
}

func FileInfo(info *types.FileInfo) string {
	var b strings.Builder
	b.WriteString("📋 <b>File information</b>\n\n")
	b.WriteString(fmt.Sprintf("<b>Name:</b> %s\n", Escape(info.Name)))
	if info.MimeType != "" {
		b.WriteString(fmt.Sprintf("<b>Type:</b> %s\n", Escape(info.MimeType)))
	}
	b.WriteString(fmt.Sprintf("<b>Size:</b> %s\n", HumanSize(info.Size)))
	if info.Extension != "" {
		b.WriteString(fmt.Sprintf("<b>Extension:</b> .%s\n", Escape(info.Extension)))
	}
	if info.Pages > 0 {
		b.WriteString(fmt.Sprintf("<b>Pages:</b> %d\n", info.Pages))
	}
	for _, key := range []string{"title", "author", "subject", "creator", "producer"} {
		if v := strings.TrimSpace(info.Metadata[key]); v != "" {
			b.WriteString(fmt.Sprintf("<b>%s:</b> %s\n", strings.ToUpper(key[:1])+key[1:], Escape(v)))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func HumanSize(size int64) string {
	const mb = 1024 * 1024
	if size >= mb {
		return fmt.Sprintf("%.2f MB", float64(size)/mb)
	}
	return fmt.Sprintf("%.2f KB", float64(size)/1024)
}

func CompressDone(original, compressed int64) string {
	ratio := 0.0
	if original > 0 {
		ratio = (1 - float64(compressed)/float64(original)) * 100
	}
	return fmt.Sprintf("✅ <b>Compressed</b>\nOriginal: %s\nCompressed: %s\nSaved: %.1f%%",
		HumanSize(original), HumanSize(compressed), ratio)
}

func AttachRequired(directive string) string {
	return fmt.Sprintf("📎 Send a file with the caption <code>%s</code>.", Escape(directive))
}

func ExpectPdfFor(directive string) string {
	return fmt.Sprintf("❗ <code>%s</code> works on PDF files. Send a PDF with that caption.", Escape(directive))
}

func ExpectImageFor(directive string) string {
	return fmt.Sprintf("❗ <code>%s</code> works on images. Send a photo or an image file with that caption.", Escape(directive))
}

func ExpectDocumentFor(directive string) string {
	return fmt.Sprintf("❗ <code>%s</code> needs the file sent as a document.", Escape(directive))
}

func UnsupportedFormat(fileName string) string {
	return "🤖 <b>Unsupported file format</b>\n" + FileLine(fileName) + "\n\nI handle PDF, DOCX and images. See /help."
}

func UnknownCommand() string {
	return "❓ <b>Unknown command</b>\nSee /help."
}

func SendFileHint() string {
	return "📎 Send me a file, or use /help to see what I can do."
}

func NoActiveOperation() string {
	return "🤷 That button belongs to an operation that is no longer active."
}

// Progress notices go out as plain text.

func ProgressTextToPdf() string {
	return "🔄 Converting text to PDF..."
}

func ProgressMerging(count int) string {
	return fmt.Sprintf("🔄 Merging %d PDFs...", count)
}

func ProgressExtracting(pages string) string {
	return fmt.Sprintf("🔄 Extracting pages %s...", pages)
}

func ProgressPdfToText() string {
	return "🔄 Extracting text from PDF..."
}

func ProgressDocxToPdf() string {
	return "🔄 Converting DOCX to PDF..."
}

func ProgressOcr() string {
	return "🔍 Processing image with OCR..."
}

func ProgressImageToPdf() string {
	return "🔄 Converting image to PDF..."
}

func ProgressPdfToImages() string {
	return "🔄 Converting PDF to images..."
}

func ProgressCompress() string {
	return "🗜 Compressing PDF..."
}

func ErrorDefault() string {
	return "🚫 <b>Something went wrong</b>\nPlease try again."
}

func Busy() string {
	return "⏳ Too many pending requests. Please wait for the current ones to finish."
}

func ErrorTransport() string {
	return "🚫 <b>Couldn't transfer the file</b>\nPlease try again."
}

func ErrorConversionFailed(cause error) string {
	msg := "🚫 <b>Conversion failed</b>"
	if cause != nil {
		msg += "\n\n" + fmt.Sprintf("<code>%s</code>", Escape(cause.Error()))
	}
	return msg
}

// ErrorText picks the single user-visible message for a failed operation.
func ErrorText(err error) string {
	var oe *types.OpError
	if !errors.As(err, &oe) {
		return ErrorDefault()
	}
	switch oe.Kind {
	case types.KindInputRejected:
		if oe.Message != "" {
			return oe.Message
		}
		return ErrorDefault()
	case types.KindTransportFailure:
		return ErrorTransport()
	}
	if errors.Is(err, types.ErrNoText) {
		return NoTextInPdf()
	}
	return ErrorConversionFailed(oe.Err)
}
