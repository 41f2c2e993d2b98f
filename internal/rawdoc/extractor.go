// Package rawdoc turns PDF bytes into a layout-preserving RawDocument.
package rawdoc

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/joseph-ayodele/shipdocs/internal/common"
	"github.com/joseph-ayodele/shipdocs/internal/entity"
)

type Config struct {
	Pdftotext string        // binary name or absolute path; if empty -> "pdftotext"
	MaxPages  int           // 0 = no limit
	Timeout   time.Duration // per pdftotext invocation
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Extractor{cfg: cfg, runner: execRunner{}, logger: logger}
}

// WithRunner swaps the command runner (tests).
func (e *Extractor) WithRunner(r Runner) *Extractor {
	e.runner = r
	return e
}

// ExtractFile reads path and extracts it.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (*entity.RawDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, common.NewParseError("read "+path, err)
	}
	return e.Extract(ctx, filepath.Base(path), data)
}

// Extract decodes data and captures its text and tables. It returns a ParseError when the
// bytes are not a decodable PDF; a PDF without extractable text yields an empty RawText.
func (e *Extractor) Extract(ctx context.Context, filename string, data []byte) (*entity.RawDocument, error) {
	start := time.Now()
	log := e.logger.With("filename", filename)

	if len(data) == 0 {
		return nil, common.NewParseError("empty document "+filename, nil)
	}
	pages, err := validatePDF(data)
	if err != nil {
		log.Warn("rawdoc.decode.failed", "error", err)
		return nil, common.NewParseError("decode "+filename, err)
	}

	lines, posErr := readPositioned(data, e.cfg.MaxPages)
	if posErr != nil {
		log.Warn("rawdoc.positional.failed", "error", posErr)
	}

	text, method, err := e.layoutText(ctx, data, filename)
	if err != nil {
		log.Warn("rawdoc.pdftotext.failed", "error", err)
		text, method = renderLines(lines), "positional"
	}
	text = NormalizeLayout(text)

	doc := &entity.RawDocument{
		Filename:  filename,
		RawText:   text,
		Tables:    tablesFromLines(lines),
		PageCount: pages,
	}
	doc.Lines = make([]entity.TextLine, len(lines))
	for i, l := range lines {
		doc.Lines[i] = l.toEntity()
	}

	if strings.TrimSpace(text) == "" {
		log.Warn("rawdoc.extract.no_text", "pages", pages)
	}
	log.Info("rawdoc.extract.ok",
		"method", method,
		"pages", pages,
		"text_len", len(text),
		"tables", len(doc.Tables),
		"lines", len(doc.Lines),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return doc, nil
}

func validatePDF(data []byte) (pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = 0, fmt.Errorf("pdf validation panicked: %v", r)
		}
	}()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return 0, err
	}
	return pdfCtx.PageCount, nil
}

// layoutText runs pdftotext -layout over a temporary copy of the document.
func (e *Extractor) layoutText(ctx context.Context, data []byte, filename string) (string, string, error) {
	tmp, err := os.CreateTemp("", "shipdocs-*.pdf")
	if err != nil {
		return "", "", err
	}
	defer func() {
		if err := os.Remove(tmp.Name()); err != nil {
			e.logger.Debug("temp cleanup failed", "path", tmp.Name(), "error", err)
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", "", err
	}
	if err := tmp.Close(); err != nil {
		return "", "", err
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	args := []string{"-layout", "-enc", "UTF-8", "-eol", "unix"}
	if e.cfg.MaxPages > 0 {
		args = append(args, "-l", fmt.Sprintf("%d", e.cfg.MaxPages))
	}
	args = append(args, tmp.Name(), "-")
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, e.logger, args...)
	if err != nil {
		return "", "", fmt.Errorf("pdftotext %s: %w: %s", filename, err, truncate(string(errb), 512))
	}
	// \f separates pages; keep a line break so column offsets stay intact.
	return strings.ReplaceAll(string(out), "\f", "\n"), "pdftotext-layout", nil
}
