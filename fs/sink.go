package fs

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/fwojciec/modharvest"
	"gopkg.in/yaml.v3"
)

// Ensure Sink implements modharvest.Sink at compile time.
var _ modharvest.Sink = (*Sink)(nil)

// Output file names inside the export directory.
const (
	AggregateFile = "output.json"
	RecordsFile   = "records.jsonl"
	ModulesDir    = "modules"
)

// Sink exports a completed run to a directory with atomic update semantics.
// Files are written to baseDir/name.tmp and moved to baseDir/name when
// everything has been written, replacing any previous export.
type Sink struct {
	baseDir string
	name    string
}

// NewSink creates a new Sink.
// baseDir is the parent directory, name is the output directory name.
func NewSink(baseDir, name string) *Sink {
	return &Sink{
		baseDir: baseDir,
		name:    name,
	}
}

func (s *Sink) tempDir() string {
	return filepath.Join(s.baseDir, s.name+".tmp")
}

func (s *Sink) finalDir() string {
	return filepath.Join(s.baseDir, s.name)
}

// Emit writes the aggregate record, the per-node records as JSON lines, and
// one markdown file per successfully harvested module.
func (s *Sink) Emit(ctx context.Context, out *modharvest.Output) error {
	if out == nil || out.Aggregate == nil {
		return modharvest.Errorf(modharvest.EINVALID, "output has no aggregate record")
	}

	if err := s.Abort(); err != nil {
		return err
	}
	if err := s.write(ctx, out); err != nil {
		_ = s.Abort()
		return err
	}
	return s.Commit()
}

func (s *Sink) write(ctx context.Context, out *modharvest.Output) error {
	dir := s.tempDir()
	if err := os.MkdirAll(filepath.Join(dir, ModulesDir), 0755); err != nil {
		return err
	}

	agg, err := json.MarshalIndent(out.Aggregate, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding aggregate: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, AggregateFile), append(agg, '\n'), 0644); err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(dir, RecordsFile))
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, r := range out.Records {
		if err := ctx.Err(); err != nil {
			f.Close()
			return err
		}
		if err := enc.Encode(r); err != nil {
			f.Close()
			return fmt.Errorf("encoding record %d: %w", r.Position, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	for _, r := range out.Records {
		if r.Failed {
			continue
		}
		doc, err := FormatRecord(r)
		if err != nil {
			return err
		}
		p := filepath.Join(dir, RecordPath(r))
		if err := os.WriteFile(p, []byte(doc), 0644); err != nil {
			return err
		}
	}
	return nil
}

// Commit moves the temporary directory over the final one.
func (s *Sink) Commit() error {
	if err := os.RemoveAll(s.finalDir()); err != nil {
		return err
	}
	return os.Rename(s.tempDir(), s.finalDir())
}

// Abort removes the temporary directory.
func (s *Sink) Abort() error {
	return os.RemoveAll(s.tempDir())
}

// RecordPath returns the relative path of a record's markdown file.
// Example: position 3, "Getting Started" → modules/0003-getting-started.md
func RecordPath(r *modharvest.NodeRecord) string {
	slug := slugify(r.ModuleTitle)
	if slug == "" {
		return filepath.Join(ModulesDir, fmt.Sprintf("%04d.md", r.Position))
	}
	return filepath.Join(ModulesDir, fmt.Sprintf("%04d-%s.md", r.Position, slug))
}

// Frontmatter is the YAML header of an exported module file.
type Frontmatter struct {
	Section string `yaml:"section"`
	Title   string `yaml:"title"`
	ID      string `yaml:"id,omitempty"`
	Video   string `yaml:"video,omitempty"`
	Scraped string `yaml:"scraped,omitempty"`
}

// FormatRecord formats a record as markdown with YAML frontmatter. The
// rendered markdown is used when present, otherwise the plain text.
func FormatRecord(r *modharvest.NodeRecord) (string, error) {
	fm := Frontmatter{
		Section: r.SectionTitle,
		Title:   r.ModuleTitle,
		ID:      r.ModuleID,
		Video:   r.VideoLink,
	}
	if !r.ScrapedAt.IsZero() {
		fm.Scraped = r.ScrapedAt.Format("2006-01-02")
	}
	header, err := yaml.Marshal(fm)
	if err != nil {
		return "", fmt.Errorf("failed to encode frontmatter: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(header)
	b.WriteString("---\n\n")
	if r.Markdown != "" {
		b.WriteString(r.Markdown)
	} else {
		b.WriteString(r.Content)
	}
	b.WriteString("\n")
	return b.String(), nil
}

func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
