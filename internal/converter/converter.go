package converter

import (
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/BatmanBruc/any2any-bot/internal/files"
	"github.com/BatmanBruc/any2any-bot/types"
)

func init() {
	// pdfcpu would otherwise create a config dir under $HOME on first use.
	api.DisableConfigDir()
}

type Options struct {
	// Timeout bounds external tools (LibreOffice, Tesseract).
	Timeout     time.Duration
	JPEGQuality int
}

// Gateway implements types.Gateway with pure-Go PDF libraries and a couple of
// command line tools.
type Gateway struct {
	files    *files.Store
	timeout  time.Duration
	quality  int
	lookPath func(string) (string, error)
}

var _ types.Gateway = (*Gateway)(nil)

func NewGateway(store *files.Store, opts Options) *Gateway {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Minute
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = 90
	}
	return &Gateway{
		files:    store,
		timeout:  opts.Timeout,
		quality:  opts.JPEGQuality,
		lookPath: exec.LookPath,
	}
}

// pdfcpu mutates the configuration it is given, so every call gets its own.
func (g *Gateway) pdfConfig() *model.Configuration {
	return model.NewDefaultConfiguration()
}

func (g *Gateway) hasCommand(cmd string) bool {
	_, err := g.lookPath(cmd)
	return err == nil
}

func (g *Gateway) firstCommand(names ...string) (string, bool) {
	for _, name := range names {
		if g.hasCommand(name) {
			return name, true
		}
	}
	return "", false
}

// seal validates a produced file; on any failure the file is released and
// the error is reported as a conversion failure of op.
func (g *Gateway) seal(op string, out *types.StoredFile, err error) (*types.StoredFile, error) {
	if err == nil {
		err = g.files.Seal(out)
	}
	if err != nil {
		_ = out.Release()
		return nil, types.ConversionFailed(op, err)
	}
	return out, nil
}

func checkContext(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return types.ConversionFailed(op, err)
	}
	return nil
}

var errNoInput = errors.New("no input files")
