package converter

import (
	"context"
	"fmt"
	"image/jpeg"
	"os"
	"strconv"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/BatmanBruc/any2any-bot/internal/formats"
	"github.com/BatmanBruc/any2any-bot/types"
)

func (g *Gateway) CombinePdfs(ctx context.Context, pdfs []*types.StoredFile) (*types.StoredFile, error) {
	const op = "combine"
	if err := checkContext(ctx, op); err != nil {
		return nil, err
	}
	if len(pdfs) == 0 {
		return nil, types.ConversionFailed(op, errNoInput)
	}

	paths := make([]string, 0, len(pdfs))
	for _, f := range pdfs {
		paths = append(paths, f.Path)
	}

	out := g.files.Reserve("merged.pdf")
	err := api.MergeCreateFile(paths, out.Path, false, g.pdfConfig())
	return g.seal(op, out, err)
}

func (g *Gateway) SelectPages(ctx context.Context, in *types.StoredFile, pages types.PageSelection) (*types.StoredFile, error) {
	const op = "select_pages"
	if err := checkContext(ctx, op); err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, types.ConversionFailed(op, fmt.Errorf("empty page selection"))
	}

	selection := make([]string, 0, len(pages))
	for _, p := range pages {
		selection = append(selection, strconv.Itoa(p))
	}

	out := g.files.Reserve("extracted_pages.pdf")
	err := api.CollectFile(in.Path, out.Path, selection, g.pdfConfig())
	return g.seal(op, out, err)
}

func (g *Gateway) Compress(ctx context.Context, in *types.StoredFile) (*types.StoredFile, error) {
	const op = "compress"
	if err := checkContext(ctx, op); err != nil {
		return nil, err
	}

	out := g.files.Reserve("compressed_" + in.Name)
	err := api.OptimizeFile(in.Path, out.Path, g.pdfConfig())
	return g.seal(op, out, err)
}

func (g *Gateway) ImageToPdf(ctx context.Context, img *types.StoredFile) (*types.StoredFile, error) {
	const op = "img2pdf"
	if err := checkContext(ctx, op); err != nil {
		return nil, err
	}

	out := g.files.Reserve("image.pdf")
	err := api.ImportImagesFile([]string{img.Path}, out.Path, nil, g.pdfConfig())
	return g.seal(op, out, err)
}

func (g *Gateway) PageCount(ctx context.Context, in *types.StoredFile) (int, error) {
	const op = "page_count"
	if err := checkContext(ctx, op); err != nil {
		return 0, err
	}
	n, err := api.PageCountFile(in.Path)
	if err != nil {
		return 0, types.ConversionFailed(op, err)
	}
	if n == 0 {
		return 0, types.ConversionFailed(op, fmt.Errorf("document has no pages"))
	}
	return n, nil
}

func (g *Gateway) ExtractText(ctx context.Context, in *types.StoredFile) (*types.StoredFile, error) {
	const op = "pdf2text"
	if err := checkContext(ctx, op); err != nil {
		return nil, err
	}

	text, err := readPlainText(in.Path)
	if err != nil {
		return nil, types.ConversionFailed(op, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, types.ConversionFailed(op, types.ErrNoText)
	}

	out, err := g.files.WriteBytes(formats.ResultName(in.Name, "txt"), []byte(text))
	if err != nil {
		return nil, types.ConversionFailed(op, err)
	}
	return out, nil
}

func readPlainText(path string) (text string, err error) {
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer func() { _ = f.Close() }()

	fonts := make(map[string]*pdf.Font)
	var parts []string
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		for _, name := range p.Fonts() {
			if _, ok := fonts[name]; !ok {
				font := p.Font(name)
				fonts[name] = &font
			}
		}

		pageText, err := p.GetPlainText(fonts)
		if err != nil {
			return "", fmt.Errorf("read page %d: %w", i, err)
		}
		if trimmed := strings.TrimSpace(pageText); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

func (g *Gateway) RasterizePdf(ctx context.Context, in *types.StoredFile, limit int) ([]*types.StoredFile, int, error) {
	const op = "pdf2img"

	doc, err := fitz.New(in.Path)
	if err != nil {
		return nil, 0, types.ConversionFailed(op, err)
	}
	defer doc.Close()

	total := doc.NumPage()
	if total == 0 {
		return nil, 0, types.ConversionFailed(op, fmt.Errorf("document has no pages"))
	}
	n := total
	if limit > 0 && limit < n {
		n = limit
	}

	pages := make([]*types.StoredFile, 0, n)
	fail := func(err error) ([]*types.StoredFile, int, error) {
		_ = types.ReleaseAll(pages)
		return nil, 0, types.ConversionFailed(op, err)
	}

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		img, err := doc.Image(i)
		if err != nil {
			return fail(fmt.Errorf("render page %d: %w", i+1, err))
		}

		out := g.files.Reserve(fmt.Sprintf("page_%d.jpg", i+1))
		pages = append(pages, out)

		file, err := os.Create(out.Path)
		if err != nil {
			return fail(err)
		}
		err = jpeg.Encode(file, img, &jpeg.Options{Quality: g.quality})
		if cerr := file.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fail(fmt.Errorf("encode page %d: %w", i+1, err))
		}
		if err := g.files.Seal(out); err != nil {
			return fail(err)
		}
	}
	return pages, total, nil
}

func (g *Gateway) Inspect(ctx context.Context, file *types.StoredFile) (*types.FileInfo, error) {
	const op = "info"
	if err := checkContext(ctx, op); err != nil {
		return nil, err
	}

	info := &types.FileInfo{
		Name:      file.Name,
		MimeType:  file.MimeType,
		Extension: formats.Ext(file.Name),
		Size:      file.Size,
	}
	if formats.Classify(file.Name, file.MimeType) != formats.KindPdf {
		return info, nil
	}

	pages, err := api.PageCountFile(file.Path)
	if err != nil {
		return nil, types.ConversionFailed(op, err)
	}
	info.Pages = pages

	// Metadata is best effort; a document fitz cannot open still has a page count.
	if doc, err := fitz.New(file.Path); err == nil {
		info.Metadata = doc.Metadata()
		_ = doc.Close()
	}
	return info, nil
}
