// Package render turns a selection into the status label text.
package render

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	appLog "gdqnow/internal/log"
	"gdqnow/internal/model"
)

const (
	DefaultFormat = "{{.Current}} -> {{.Next}}"
	DefaultIcon   = "joystick"

	// ErrorText is shown for any failed refresh.
	ErrorText = "ERR"
	// NoneText stands in for a missing next run.
	NoneText = "None"
)

type State string

const (
	StateOK    State = "ok"
	StateError State = "error"
)

// Label is what a display sink shows for one refresh cycle.
type Label struct {
	Text     string `json:"text"`
	Icon     string `json:"icon"`
	Category string `json:"category,omitempty"`
	State    State  `json:"state"`
}

// Data is the value the format template is executed against.
type Data struct {
	Current      string
	Next         string
	CurrentEntry model.Entry
	NextEntry    *model.Entry
	// Remaining is the time left in the current run; zero once it is over
	// or when the length is unknown.
	Remaining time.Duration
	Now       time.Time
}

var funcMap = template.FuncMap{
	"fmtDur": fmtDur,
	"fmtTime": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Local().Format("15:04")
	},
	"upper": strings.ToUpper,
}

// fmtDur prints a duration as "1h05m" / "12m" / "40s".
func fmtDur(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
}

// Renderer formats labels with one parsed template.
type Renderer struct {
	tmpl *template.Template
	icon string
}

// New parses format (DefaultFormat when empty).
func New(format, icon string) (*Renderer, error) {
	if strings.TrimSpace(format) == "" {
		format = DefaultFormat
	}
	if icon == "" {
		icon = DefaultIcon
	}
	tmpl, err := template.New("label").Funcs(funcMap).Option("missingkey=error").Parse(format)
	if err != nil {
		return nil, fmt.Errorf("render: parse format: %w", err)
	}
	return &Renderer{tmpl: tmpl, icon: icon}, nil
}

// Error returns the label shown when no schedule could be determined.
func (r *Renderer) Error() Label {
	return Label{Text: ErrorText, Icon: r.icon, State: StateError}
}

// Render builds the label for current and next. A template that fails at
// execution time yields the error label.
func (r *Renderer) Render(current model.Entry, next *model.Entry, now time.Time) Label {
	d := Data{
		Current:      current.Title,
		Next:         NoneText,
		CurrentEntry: current,
		NextEntry:    next,
		Now:          now,
	}
	if next != nil {
		d.Next = next.Title
	}
	if end := current.End(); end.After(now) && current.Length != nil {
		d.Remaining = end.Sub(now)
	}

	var b strings.Builder
	if err := r.tmpl.Execute(&b, d); err != nil {
		appLog.Error("render: template execution failed", err)
		return r.Error()
	}
	return Label{
		Text:     b.String(),
		Icon:     r.icon,
		Category: current.Category,
		State:    StateOK,
	}
}
