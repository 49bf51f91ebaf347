package transcript

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// maxLineBytes is the longest single line Read accepts. Replies are written
// as one line per paragraph, so the cap is generous.
const maxLineBytes = 1 << 20 // 1 MiB

// Write serializes records to w in transcript order: each record as a label
// line, a blank line, the trimmed text, and a closing blank line.
//
// Labels are trimmed before writing and must be recognizable by [Read]; a
// label without a glyph prefix, or one spanning multiple lines, fails the
// whole write before any output is produced.
func Write(w io.Writer, records []Record) error {
	for i, r := range records {
		label := strings.TrimSpace(r.Label)
		if strings.ContainsAny(label, "\n\r") {
			return fmt.Errorf("transcript: record %d: label %q must be a single line", i, r.Label)
		}
		if !isLabel(label) {
			return fmt.Errorf("transcript: record %d: label %q needs a glyph, whitespace, then a name", i, r.Label)
		}
	}

	bw := bufio.NewWriter(w)
	for _, r := range records {
		fmt.Fprintf(bw, "%s\n\n%s\n\n", strings.TrimSpace(r.Label), strings.TrimSpace(r.Text))
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("transcript: write: %w", err)
	}
	return nil
}

// Read parses a transcript from r into ordered records.
//
// Lines before the first speaker label are skipped. Each label opens a new
// record; every following line up to the next label (or EOF) belongs to the
// record's text, which is trimmed of surrounding whitespace. Interior blank
// lines inside a text block are preserved.
func Read(r io.Reader) ([]Record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var records []Record
	var cur *Record
	var body []string

	flush := func() {
		if cur == nil {
			return
		}
		cur.Text = strings.TrimSpace(strings.Join(body, "\n"))
		records = append(records, *cur)
		cur, body = nil, nil
	}

	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimSpace(line)
		if isLabel(trimmed) {
			flush()
			cur = &Record{Label: trimmed}
			continue
		}
		if cur != nil {
			body = append(body, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("transcript: read: %w", err)
	}
	flush()
	return records, nil
}

// Save writes records to the file at path, creating missing parent
// directories. An existing file is replaced; there is no overwrite check.
func Save(path string, records []Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("transcript: create directories for %s: %w", path, err)
	}
	var buf bytes.Buffer
	if err := Write(&buf, records); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("transcript: write %s: %w", path, err)
	}
	return nil
}

// Load reads the transcript file at path.
func Load(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("transcript: open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}
