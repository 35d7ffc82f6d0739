// Package replay reads recorded detector frames and drives them through a
// session with the recording's own timestamps.
package replay

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/claude/repcoach/internal/pose"
)

// maxLine bounds one JSON line. A full 33-landmark frame is a few KiB.
const maxLine = 1 << 20

var gzipMagic = []byte{0x1f, 0x8b}

// Record is one line of a recording.
type Record struct {
	TMillis    int64           `json:"t_ms"`
	Landmarks  []pose.Landmark `json:"landmarks"`
	Width      float64         `json:"width,omitempty"`
	Height     float64         `json:"height,omitempty"`
	Normalized bool            `json:"normalized,omitempty"`
}

// Frame returns the landmarks in pixel space.
func (r Record) Frame() (pose.Frame, error) {
	if !r.Normalized {
		return pose.Frame(r.Landmarks), nil
	}
	if r.Width <= 0 || r.Height <= 0 {
		return nil, errors.New("width and height are required for normalized landmarks")
	}
	return pose.Scale(r.Landmarks, r.Width, r.Height), nil
}

// Reader yields the records of a JSON-lines recording, gzip compressed or not.
type Reader struct {
	sc     *bufio.Scanner
	closer io.Closer
	line   int
}

// Open opens the recording at path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening recording: %w", err)
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.closer = f
	return r, nil
}

// NewReader reads a recording from src, detecting gzip by its magic bytes.
func NewReader(src io.Reader) (*Reader, error) {
	br := bufio.NewReader(src)
	var in io.Reader = br
	if head, err := br.Peek(len(gzipMagic)); err == nil && bytes.Equal(head, gzipMagic) {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		in = zr
	}
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	return &Reader{sc: sc}, nil
}

// Next returns the next record, or io.EOF after the last one. Blank lines are skipped.
func (r *Reader) Next() (Record, error) {
	for r.sc.Scan() {
		r.line++
		line := bytes.TrimSpace(r.sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return Record{}, fmt.Errorf("line %d: %w", r.line, err)
		}
		return rec, nil
	}
	if err := r.sc.Err(); err != nil {
		return Record{}, fmt.Errorf("line %d: %w", r.line+1, err)
	}
	return Record{}, io.EOF
}

// Close releases the underlying file when the reader was opened from a path.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Writer appends records as JSON lines.
type Writer struct {
	enc *json.Encoder
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w)}
}

func (w *Writer) Write(rec Record) error {
	return w.enc.Encode(rec)
}
