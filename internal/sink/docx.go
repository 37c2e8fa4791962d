package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gingfrederik/docx"
)

// DocxDir is the local sink variant: one .docx per transcript in a
// directory, instead of a single hosted document.
type DocxDir struct {
	Dir      string
	MaxWords int
}

func NewDocxDir(dir string, maxWords int) *DocxDir {
	return &DocxDir{Dir: dir, MaxWords: maxWords}
}

func (d *DocxDir) Append(_ context.Context, e Entry) error {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	f := docx.NewFile()

	titleP := f.AddParagraph()
	run := titleP.AddText(e.Title)
	run.Size(16)
	f.AddParagraph() // Spacer

	for _, line := range strings.Split(Format(e, d.MaxWords), "\n") {
		p := f.AddParagraph()
		p.AddText(line)
	}

	path := filepath.Join(d.Dir, d.filename(e))
	if err := f.Save(path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}

func (d *DocxDir) filename(e Entry) string {
	name := e.LoggedAt.Format("20060102-150405") + "-" + sanitize(e.Title)
	if len(name) > 80 {
		name = name[:80]
	}
	return name + ".docx"
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '-'
		}
		return r
	}, s)
}
