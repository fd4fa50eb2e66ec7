// Package export turns downloaded content into distributable artifacts:
// text units become a single document through an external converter, image
// units become a zip archive readable by comic viewers.
package export

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/seriarr/seriarr/internal/data"
	"github.com/spf13/afero"
)

// UnitFile points at one persisted unit on disk.
type UnitFile struct {
	Number int
	Title  string
	Path   string
}

// Manifest describes the content to export.
type Manifest struct {
	ItemID string
	Title  string
	Author string
	Units  []UnitFile
}

// DocumentConverter produces a single document artifact from a manifest of
// text units. Implementations return data.ErrConverterUnavailable when their
// backing tool is missing and data.ErrConversionFailed on tool errors.
type DocumentConverter interface {
	Convert(ctx context.Context, m Manifest, outDir string) (string, error)
}

// PandocConverter shells out to pandoc to build an EPUB from the unit text
// files, in unit order.
type PandocConverter struct {
	bin      string
	log      *slog.Logger
	run      func(ctx context.Context, name string, args ...string) ([]byte, error)
	lookPath func(string) (string, error)
}

var _ DocumentConverter = (*PandocConverter)(nil)

func NewPandocConverter(log *slog.Logger) *PandocConverter {
	if log == nil {
		log = slog.Default()
	}
	return &PandocConverter{bin: "pandoc", log: log, run: execRun, lookPath: exec.LookPath}
}

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.Bytes(), err
}

func (p *PandocConverter) Convert(ctx context.Context, m Manifest, outDir string) (string, error) {
	if _, err := p.lookPath(p.bin); err != nil {
		return "", data.ErrConverterUnavailable
	}
	if len(m.Units) == 0 {
		return "", fmt.Errorf("%w: no units to convert", data.ErrConversionFailed)
	}
	units := append([]UnitFile(nil), m.Units...)
	sort.Slice(units, func(i, j int) bool { return units[i].Number < units[j].Number })

	out := filepath.Join(outDir, sanitizeName(m.Title)+".epub")
	args := []string{
		"--metadata", "title=" + m.Title,
		"-o", out,
	}
	if m.Author != "" {
		args = append(args, "--metadata", "author="+m.Author)
	}
	for _, u := range units {
		args = append(args, u.Path)
	}
	p.log.Info("export document", "item", m.ItemID, "units", len(units), "out", out)
	if stderr, err := p.run(ctx, p.bin, args...); err != nil {
		return "", fmt.Errorf("%w: %v: %s", data.ErrConversionFailed, err, strings.TrimSpace(string(stderr)))
	}
	return out, nil
}

// ArchiveBuilder packs image unit files into one zip archive per item.
type ArchiveBuilder struct {
	fs  afero.Fs
	log *slog.Logger
}

func NewArchiveBuilder(fs afero.Fs, log *slog.Logger) *ArchiveBuilder {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if log == nil {
		log = slog.Default()
	}
	return &ArchiveBuilder{fs: fs, log: log}
}

// Build writes a .cbz archive containing every unit file, stored under a
// zero-padded name so viewers keep reading order.
func (b *ArchiveBuilder) Build(ctx context.Context, m Manifest, outDir string) (string, error) {
	if len(m.Units) == 0 {
		return "", fmt.Errorf("%w: no units to archive", data.ErrConversionFailed)
	}
	units := append([]UnitFile(nil), m.Units...)
	sort.Slice(units, func(i, j int) bool { return units[i].Number < units[j].Number })

	out := filepath.Join(outDir, sanitizeName(m.Title)+".cbz")
	f, err := b.fs.Create(out)
	if err != nil {
		return "", fmt.Errorf("%w: %v", data.ErrConversionFailed, err)
	}
	zw := zip.NewWriter(f)
	for _, u := range units {
		if err := ctx.Err(); err != nil {
			_ = zw.Close()
			_ = f.Close()
			_ = b.fs.Remove(out)
			return "", err
		}
		if err := b.addEntry(zw, u); err != nil {
			_ = zw.Close()
			_ = f.Close()
			_ = b.fs.Remove(out)
			return "", fmt.Errorf("%w: %v", data.ErrConversionFailed, err)
		}
	}
	if err := zw.Close(); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("%w: %v", data.ErrConversionFailed, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", data.ErrConversionFailed, err)
	}
	b.log.Info("export archive", "item", m.ItemID, "units", len(units), "out", out)
	return out, nil
}

func (b *ArchiveBuilder) addEntry(zw *zip.Writer, u UnitFile) error {
	src, err := b.fs.Open(u.Path)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()
	name := fmt.Sprintf("%04d%s", u.Number, filepath.Ext(u.Path))
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}

func sanitizeName(s string) string {
	repl := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_", string(os.PathSeparator), "_")
	s = strings.TrimSpace(repl.Replace(s))
	if s == "" {
		s = "untitled"
	}
	return s
}
