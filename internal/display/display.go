// Package display hands refresh results to whatever shows them.
package display

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"gdqnow/internal/refresh"
	"gdqnow/internal/render"
)

// Sink receives the result of every refresh pass.
type Sink interface {
	Show(res refresh.Result) error
}

// Multi fans a result out to several sinks. Every sink is tried; the first
// error is returned.
type Multi []Sink

func (m Multi) Show(res refresh.Result) error {
	var first error
	for _, s := range m {
		if err := s.Show(res); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// TextSink prints the label text, one line per pass.
type TextSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: w}
}

func (s *TextSink) Show(res refresh.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintln(s.w, res.Label.Text)
	return err
}

// i3Block is one block of the i3bar protocol.
type i3Block struct {
	Name     string `json:"name"`
	Instance string `json:"instance,omitempty"`
	FullText string `json:"full_text"`
	Color    string `json:"color,omitempty"`
	Urgent   bool   `json:"urgent,omitempty"`
}

const errorColor = "#ff5555"

// I3BarSink speaks the i3bar protocol: a header, the opening of the
// infinite array and one block array per pass.
type I3BarSink struct {
	mu      sync.Mutex
	w       io.Writer
	name    string
	started bool
}

func NewI3BarSink(w io.Writer, name string) *I3BarSink {
	if name == "" {
		name = "gdqnow"
	}
	return &I3BarSink{w: w, name: name}
}

func (s *I3BarSink) Show(res refresh.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		if _, err := io.WriteString(s.w, "{\"version\":1}\n[\n"); err != nil {
			return err
		}
	}

	block := i3Block{
		Name:     s.name,
		Instance: res.Label.Icon,
		FullText: res.Label.Text,
	}
	if res.Label.State == render.StateError {
		block.Color = errorColor
		block.Urgent = true
	}
	var buf bytes.Buffer
	if s.started {
		buf.WriteByte(',')
	}
	// Titles routinely contain "->" and "&"; keep them readable.
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode([]i3Block{block}); err != nil {
		return err
	}
	if _, err := s.w.Write(buf.Bytes()); err != nil {
		return err
	}
	s.started = true
	return nil
}

// Latest keeps the most recent result for readers such as the web API.
type Latest struct {
	mu  sync.RWMutex
	res *refresh.Result
}

func (l *Latest) Show(res refresh.Result) error {
	l.mu.Lock()
	l.res = &res
	l.mu.Unlock()
	return nil
}

// Get returns the last result and whether there has been one.
func (l *Latest) Get() (refresh.Result, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.res == nil {
		return refresh.Result{}, false
	}
	return *l.res, true
}
