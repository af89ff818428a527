package converter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/BatmanBruc/any2any-bot/internal/formats"
	"github.com/BatmanBruc/any2any-bot/types"
)

func (g *Gateway) RenderDocxToPdf(ctx context.Context, docx *types.StoredFile) (*types.StoredFile, error) {
	const op = "docx2pdf"
	cmdName, ok := g.firstCommand("libreoffice", "soffice")
	if !ok {
		return nil, types.ConversionFailed(op, errors.New("LibreOffice is not installed"))
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	workDir, err := os.MkdirTemp(g.files.Dir(), "lo-*")
	if err != nil {
		return nil, types.ConversionFailed(op, err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	// A private profile lets several conversions run side by side.
	profile := "-env:UserInstallation=file://" + filepath.ToSlash(filepath.Join(workDir, "profile"))
	cmd := exec.CommandContext(ctx, cmdName, profile, "--headless", "--convert-to", "pdf", "--outdir", workDir, docx.Path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, types.ConversionFailed(op, fmt.Errorf("LibreOffice: %v, output: %s", err, strings.TrimSpace(string(output))))
	}

	base := strings.TrimSuffix(filepath.Base(docx.Path), filepath.Ext(docx.Path))
	generated := filepath.Join(workDir, base+".pdf")

	out := g.files.Reserve(formats.ResultName(docx.Name, "pdf"))
	return g.seal(op, out, os.Rename(generated, out.Path))
}

func (g *Gateway) RecognizeText(ctx context.Context, img *types.StoredFile) (*types.StoredFile, error) {
	const op = "ocr"
	if !g.hasCommand("tesseract") {
		return nil, types.ConversionFailed(op, errors.New("Tesseract is not installed"))
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	workDir, err := os.MkdirTemp(g.files.Dir(), "ocr-*")
	if err != nil {
		return nil, types.ConversionFailed(op, err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	outBase := filepath.Join(workDir, "result")
	cmd := exec.CommandContext(ctx, "tesseract", img.Path, outBase)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, types.ConversionFailed(op, fmt.Errorf("Tesseract: %v, output: %s", err, strings.TrimSpace(string(output))))
	}

	text, err := os.ReadFile(outBase + ".txt")
	if err != nil {
		return nil, types.ConversionFailed(op, err)
	}
	if strings.TrimSpace(string(text)) == "" {
		return nil, types.ConversionFailed(op, types.ErrNoText)
	}

	out, err := g.files.WriteBytes("ocr_result.txt", text)
	if err != nil {
		return nil, types.ConversionFailed(op, err)
	}
	return out, nil
}
