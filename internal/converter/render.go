package converter

import (
	"context"
	"errors"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/BatmanBruc/any2any-bot/types"
)

const (
	pageMargin = 50.0
	lineHeight = 15.0
	fontSize   = 12.0
)

// RenderTextToPdf lays text out on Letter pages in 12pt Helvetica, wrapping
// long lines and breaking pages automatically.
func (g *Gateway) RenderTextToPdf(ctx context.Context, text string) (*types.StoredFile, error) {
	const op = "text2pdf"
	if err := checkContext(ctx, op); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, types.ConversionFailed(op, errors.New("text is empty"))
	}

	doc := fpdf.New("P", "pt", "Letter", "")
	doc.SetMargins(pageMargin, pageMargin, pageMargin)
	doc.SetAutoPageBreak(true, pageMargin)
	doc.AddPage()
	doc.SetFont("Helvetica", "", fontSize)
	tr := doc.UnicodeTranslatorFromDescriptor("")

	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			doc.Ln(lineHeight)
			continue
		}
		doc.MultiCell(0, lineHeight, tr(line), "", "L", false)
	}

	out := g.files.Reserve("text.pdf")
	err := doc.OutputFileAndClose(out.Path)
	return g.seal(op, out, err)
}
