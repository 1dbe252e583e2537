// Package notify delivers user-facing toasts: a title, a description and a
// severity. Sinks are fire-and-forget.
package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

type Severity int

const (
	Normal Severity = iota
	Destructive
)

func (s Severity) String() string {
	if s == Destructive {
		return "destructive"
	}
	return "normal"
}

type Notification struct {
	Title       string
	Description string
	Severity    Severity
}

type Notifier interface {
	Notify(n Notification)
}

// Func adapts a plain function to Notifier.
type Func func(Notification)

func (f Func) Notify(n Notification) { f(n) }

// Discard drops every notification.
var Discard Notifier = Func(func(Notification) {})

var (
	titleStyle       = lipgloss.NewStyle().Bold(true)
	normalStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	destructiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// Console prints notifications as single styled lines.
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	noColor bool
}

func NewConsole(w io.Writer, noColor bool) *Console {
	return &Console{w: w, noColor: noColor}
}

func (c *Console) Notify(n Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	mark, style := "✓", normalStyle
	if n.Severity == Destructive {
		mark, style = "✗", destructiveStyle
	}

	line := fmt.Sprintf("%s %s: %s", mark, n.Title, n.Description)
	if !c.noColor {
		line = style.Render(mark) + " " + titleStyle.Render(n.Title+":") + " " + n.Description
	}
	fmt.Fprintln(c.w, line)
}

// Recorder keeps every notification it receives.
type Recorder struct {
	mu  sync.Mutex
	got []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
}

func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.got...)
}

// Last returns the most recent notification, or the zero value.
func (r *Recorder) Last() Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.got) == 0 {
		return Notification{}
	}
	return r.got[len(r.got)-1]
}
