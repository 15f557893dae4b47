// Package session holds the single in-memory clinical session: its metadata,
// the ordered audio parts and their transcripts.
package session

import (
	"errors"
	"strings"
	"time"

	"github.com/lukasbauer/scribe/internal/costs"
)

var (
	// ErrSessionAlreadyActive is returned by Start while a session is running.
	ErrSessionAlreadyActive = errors.New("a session is already active")

	// ErrNoActiveSession is returned by operations that need a running session.
	ErrNoActiveSession = errors.New("no active session")

	// ErrModelTimeout marks a transcription or summarization call that
	// exceeded the configured model timeout.
	ErrModelTimeout = errors.New("model call timed out")

	// ErrTemplateInUse is returned when deleting the active session's template.
	ErrTemplateInUse = errors.New("template is used by the active session")
)

// ValidationError reports a bad or missing request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// State is the lifecycle state of the store.
type State string

const (
	StateIdle   State = "idle"
	StateActive State = "active"
)

// StartParams are the inputs of Start.
type StartParams struct {
	Subject   string
	Disorders []string
	Template  string
	IsLive    bool
}

// Session is the metadata of one recording session.
type Session struct {
	ID        string    `json:"id"`
	Subject   string    `json:"name"`
	Disorders []string  `json:"disorders"`
	Template  string    `json:"template"`
	IsLive    bool      `json:"isLive"`
	StartedAt time.Time `json:"startedAt"`
}

// Source is one submitted audio segment. Data wins over Path when both are set.
type Source struct {
	Name string
	Data []byte
	Path string
}

func (s Source) label() string {
	switch {
	case s.Name != "":
		return s.Name
	case s.Path != "":
		return s.Path
	default:
		return "upload"
	}
}

// AudioPart is one transcribed segment of the active session.
type AudioPart struct {
	Ordinal    int       `json:"ordinal"`
	Source     string    `json:"source"`
	Text       string    `json:"text"`
	DurationMs int64     `json:"durationMs"`
	AddedAt    time.Time `json:"addedAt"`
}

// Result is returned by End.
type Result struct {
	Session    Session     `json:"session"`
	Transcript string      `json:"transcript"`
	Summary    string      `json:"summary"`
	Parts      []AudioPart `json:"parts"`

	// Estimated model usage cost of the whole session
	Cost costs.SessionCosts `json:"cost"`
}

// Status is a point-in-time view of the store.
type Status struct {
	State            State    `json:"state"`
	Session          *Session `json:"session,omitempty"`
	PartCount        int      `json:"partCount"`
	TranscriptLength int      `json:"transcriptLength"`
}

// normalizeDisorders trims entries, drops empties and removes duplicates,
// keeping first-seen order.
func normalizeDisorders(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, d := range in {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}

// joinParts concatenates part texts exactly, in ordinal order.
func joinParts(parts []AudioPart) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.Text)
	}
	return b.String()
}
