package l1samples

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode"
)

// Reader streams FrameSamples from either a JSON array or newline
// delimited JSON objects.
type Reader struct {
	br      *bufio.Reader
	dec     *json.Decoder
	inArray bool
	done    bool
}

// NewReader wraps r. The input format is detected from the first
// non-space byte on the first call to Next.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// Next returns the next sample, or io.EOF once the input is exhausted.
func (r *Reader) Next() (FrameSample, error) {
	var s FrameSample
	if r.done {
		return s, io.EOF
	}
	if r.dec == nil {
		if err := r.start(); err != nil {
			r.done = true
			return s, err
		}
	}
	if !r.dec.More() {
		r.done = true
		if r.inArray {
			if _, err := r.dec.Token(); err != nil {
				return s, fmt.Errorf("failed to read closing bracket: %w", err)
			}
		}
		return s, io.EOF
	}
	if err := r.dec.Decode(&s); err != nil {
		r.done = true
		return s, fmt.Errorf("failed to decode frame: %w", err)
	}
	return s, nil
}

func (r *Reader) start() error {
	first, err := r.peekNonSpace()
	if err != nil {
		return err
	}
	r.dec = json.NewDecoder(r.br)
	if first == '[' {
		if _, err := r.dec.Token(); err != nil {
			return fmt.Errorf("failed to read opening bracket: %w", err)
		}
		r.inArray = true
	}
	return nil
}

func (r *Reader) peekNonSpace() (byte, error) {
	for {
		b, err := r.br.Peek(1)
		if err != nil {
			return 0, err
		}
		if !unicode.IsSpace(rune(b[0])) {
			return b[0], nil
		}
		if _, err := r.br.ReadByte(); err != nil {
			return 0, err
		}
	}
}

// ReadAll drains rd into a slice.
func ReadAll(rd io.Reader) ([]FrameSample, error) {
	r := NewReader(rd)
	var out []FrameSample
	for {
		s, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, s)
	}
}
