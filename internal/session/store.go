package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lukasbauer/scribe/internal/audio"
	"github.com/lukasbauer/scribe/internal/costs"
	"github.com/lukasbauer/scribe/internal/eventlog"
	"github.com/lukasbauer/scribe/internal/llm"
	"github.com/lukasbauer/scribe/internal/stt"
	"github.com/lukasbauer/scribe/internal/templates"
)

// DefaultModelTimeout bounds a single model call when Config leaves it unset.
const DefaultModelTimeout = 2 * time.Minute

// EventRecorder receives session lifecycle events. *eventlog.Logger implements it.
type EventRecorder interface {
	LogAsync(sessionID string, eventType eventlog.EventType, data map[string]any)
}

type nopRecorder struct{}

func (nopRecorder) LogAsync(string, eventlog.EventType, map[string]any) {}

// Recorders fans every event out to each recorder in order.
type Recorders []EventRecorder

func (rs Recorders) LogAsync(sessionID string, eventType eventlog.EventType, data map[string]any) {
	for _, r := range rs {
		r.LogAsync(sessionID, eventType, data)
	}
}

// Config holds the dependencies of a Store.
type Config struct {
	Transcriber  stt.Transcriber
	Summarizer   llm.Summarizer
	Templates    *templates.Catalog
	Events       EventRecorder
	Rates        costs.Rates
	ModelTimeout time.Duration
	Logger       *log.Logger
	Now          func() time.Time
}

type activeSession struct {
	info  Session
	parts []AudioPart
	usage costs.SessionMetrics
}

// Store is the process-wide session state.
//
// ingest serializes the AddPart, Summary and End pipelines so parts get
// ordinals in arrival order. mu guards active and is never held across a
// model call, so reads stay fast while a part is being transcribed.
type Store struct {
	transcriber  stt.Transcriber
	summarizer   llm.Summarizer
	catalog      *templates.Catalog
	events       EventRecorder
	rates        costs.Rates
	modelTimeout time.Duration
	logger       *log.Logger
	now          func() time.Time

	ingest sync.Mutex
	mu     sync.RWMutex
	active *activeSession
}

// New creates an idle Store.
func New(cfg Config) *Store {
	s := &Store{
		transcriber:  cfg.Transcriber,
		summarizer:   cfg.Summarizer,
		catalog:      cfg.Templates,
		events:       cfg.Events,
		rates:        cfg.Rates,
		modelTimeout: cfg.ModelTimeout,
		logger:       cfg.Logger,
		now:          cfg.Now,
	}
	if s.catalog == nil {
		s.catalog = templates.Default()
	}
	if s.events == nil {
		s.events = nopRecorder{}
	}
	if s.modelTimeout <= 0 {
		s.modelTimeout = DefaultModelTimeout
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard, "", 0)
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// Start opens a new empty session.
func (s *Store) Start(_ context.Context, p StartParams) (Session, error) {
	subject := strings.TrimSpace(p.Subject)
	if subject == "" {
		return Session{}, &ValidationError{Field: "name", Message: "is required"}
	}
	templateID := strings.TrimSpace(p.Template)
	if templateID == "" {
		return Session{}, &ValidationError{Field: "template", Message: "is required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Checked under mu so DeleteTemplate cannot remove it concurrently.
	if _, ok := s.catalog.Get(templateID); !ok {
		return Session{}, &ValidationError{Field: "template", Message: fmt.Sprintf("unknown template %q", templateID)}
	}

	if s.active != nil {
		return Session{}, ErrSessionAlreadyActive
	}

	info := Session{
		ID:        uuid.New().String(),
		Subject:   subject,
		Disorders: normalizeDisorders(p.Disorders),
		Template:  templateID,
		IsLive:    p.IsLive,
		StartedAt: s.now(),
	}
	s.active = &activeSession{info: info}

	s.logger.Printf("session: started %s (template=%s, live=%t)", info.ID, info.Template, info.IsLive)
	s.events.LogAsync(info.ID, eventlog.EventSessionStarted, map[string]any{
		"template":       info.Template,
		"disorder_count": len(info.Disorders),
		"is_live":        info.IsLive,
	})
	return cloneSession(info), nil
}

// AddPart decodes and transcribes src and appends it to the active session.
// On any failure the session is left unchanged.
func (s *Store) AddPart(ctx context.Context, src Source) (AudioPart, error) {
	s.ingest.Lock()
	defer s.ingest.Unlock()

	sessionID, ok := s.activeID()
	if !ok {
		return AudioPart{}, ErrNoActiveSession
	}

	wf, err := decodeSource(src)
	if err != nil {
		s.partFailed(sessionID, src, "decode", err)
		return AudioPart{}, err
	}

	text, err := s.transcribe(ctx, wf)
	if err != nil {
		s.partFailed(sessionID, src, "transcribe", err)
		return AudioPart{}, err
	}

	s.mu.Lock()
	if s.active == nil || s.active.info.ID != sessionID {
		s.mu.Unlock()
		return AudioPart{}, ErrNoActiveSession
	}
	part := AudioPart{
		Ordinal:    len(s.active.parts) + 1,
		Source:     src.label(),
		Text:       text,
		DurationMs: wf.Duration().Milliseconds(),
		AddedAt:    s.now(),
	}
	s.active.parts = append(s.active.parts, part)
	s.active.usage.AudioMs += part.DurationMs
	s.mu.Unlock()

	s.logger.Printf("session: part %d added to %s (%d chars, %dms audio)", part.Ordinal, sessionID, len(text), part.DurationMs)
	s.events.LogAsync(sessionID, eventlog.EventPartAdded, map[string]any{
		"ordinal":     part.Ordinal,
		"text_length": len(text),
		"duration_ms": part.DurationMs,
	})
	return part, nil
}

// CurrentTranscript returns the concatenated transcript of the active session.
func (s *Store) CurrentTranscript() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.active == nil {
		return "", ErrNoActiveSession
	}
	return joinParts(s.active.parts), nil
}

// Summary summarizes the active session's transcript without ending it.
func (s *Store) Summary(ctx context.Context) (string, error) {
	s.ingest.Lock()
	defer s.ingest.Unlock()

	snap, ok := s.snapshot()
	if !ok {
		return "", ErrNoActiveSession
	}
	return s.summarize(ctx, snap, joinParts(snap.parts))
}

// End summarizes the active session and closes it. When summarization fails
// the session stays active so the caller can retry.
func (s *Store) End(ctx context.Context) (Result, error) {
	s.ingest.Lock()
	defer s.ingest.Unlock()

	snap, ok := s.snapshot()
	if !ok {
		return Result{}, ErrNoActiveSession
	}

	transcript := joinParts(snap.parts)
	summary, err := s.summarize(ctx, snap, transcript)
	if err != nil {
		return Result{}, err
	}

	s.mu.Lock()
	if s.active == nil || s.active.info.ID != snap.info.ID {
		s.mu.Unlock()
		return Result{}, ErrNoActiveSession
	}
	usage := s.active.usage
	s.active = nil
	s.mu.Unlock()

	cost := s.rates.Estimate(usage)
	s.logger.Printf("session: ended %s after %d parts (est. %d cents)", snap.info.ID, len(snap.parts), cost.TotalCostCents)
	s.events.LogAsync(snap.info.ID, eventlog.EventSessionEnded, map[string]any{
		"part_count":        len(snap.parts),
		"transcript_length": len(transcript),
		"duration_ms":       s.now().Sub(snap.info.StartedAt).Milliseconds(),
		"audio_ms":          usage.AudioMs,
		"est_cost_cents":    cost.TotalCostCents,
	})

	return Result{
		Session:    snap.info,
		Transcript: transcript,
		Summary:    summary,
		Parts:      snap.parts,
		Cost:       cost,
	}, nil
}

// Status reports whether a session is active and how far along it is.
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.active == nil {
		return Status{State: StateIdle}
	}
	info := cloneSession(s.active.info)
	return Status{
		State:            StateActive,
		Session:          &info,
		PartCount:        len(s.active.parts),
		TranscriptLength: len(joinParts(s.active.parts)),
	}
}

// Templates exposes the catalog sessions are validated against.
func (s *Store) Templates() *templates.Catalog {
	return s.catalog
}

// PutTemplate adds or replaces a template. Replacing the active session's
// template changes the note its next summary produces.
func (s *Store) PutTemplate(t templates.Template) (bool, error) {
	created, err := s.catalog.Put(t)
	if err != nil {
		return false, &ValidationError{Field: "template", Message: err.Error()}
	}
	s.logger.Printf("templates: %s saved (created=%t)", strings.TrimSpace(t.ID), created)
	return created, nil
}

// DeleteTemplate removes a template unless the active session uses it.
func (s *Store) DeleteTemplate(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil && s.active.info.Template == id {
		return ErrTemplateInUse
	}
	if err := s.catalog.Delete(id); err != nil {
		return err
	}
	s.logger.Printf("templates: %s deleted", id)
	return nil
}

func (s *Store) activeID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return "", false
	}
	return s.active.info.ID, true
}

// snapshot copies the active session so it can be read without the lock.
func (s *Store) snapshot() (activeSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return activeSession{}, false
	}
	parts := make([]AudioPart, len(s.active.parts))
	copy(parts, s.active.parts)
	return activeSession{info: cloneSession(s.active.info), parts: parts}, true
}

func (s *Store) transcribe(ctx context.Context, wf audio.Waveform) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.modelTimeout)
	defer cancel()

	text, err := s.transcriber.Transcribe(callCtx, wf)
	if err != nil {
		return "", timeoutOr(callCtx, err)
	}
	return text, nil
}

func (s *Store) summarize(ctx context.Context, snap activeSession, transcript string) (string, error) {
	tmpl, ok := s.catalog.Get(snap.info.Template)
	if !ok {
		return "", fmt.Errorf("template %q no longer in catalog", snap.info.Template)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.modelTimeout)
	defer cancel()

	req := llm.SummaryRequest{
		Subject:    snap.info.Subject,
		Disorders:  snap.info.Disorders,
		Template:   tmpl,
		Transcript: transcript,
	}
	start := s.now()
	summary, err := s.summarizer.Summarize(callCtx, req)
	if err != nil {
		err = timeoutOr(callCtx, err)
		s.logger.Printf("session: summary failed for %s: %v", snap.info.ID, err)
		s.events.LogAsync(snap.info.ID, eventlog.EventSummaryFailed, map[string]any{
			"error": err.Error(),
		})
		return "", err
	}

	promptChars := len(llm.SystemPromptClinical) + len(llm.BuildSummaryPrompt(req))
	s.mu.Lock()
	if s.active != nil && s.active.info.ID == snap.info.ID {
		s.active.usage.PromptChars += promptChars
		s.active.usage.SummaryChars += len(summary)
	}
	s.mu.Unlock()

	s.events.LogAsync(snap.info.ID, eventlog.EventSummaryGenerated, map[string]any{
		"transcript_length": len(transcript),
		"summary_length":    len(summary),
		"latency_ms":        s.now().Sub(start).Milliseconds(),
	})
	return summary, nil
}

func (s *Store) partFailed(sessionID string, src Source, stage string, err error) {
	s.logger.Printf("session: %s failed for %s (%s): %v", stage, src.label(), sessionID, err)
	s.events.LogAsync(sessionID, eventlog.EventPartFailed, map[string]any{
		"stage": stage,
		"error": err.Error(),
	})
}

func decodeSource(src Source) (audio.Waveform, error) {
	if src.Data == nil && src.Path != "" {
		return audio.DecodeFile(src.Path)
	}
	return audio.DecodeBytes(src.Data)
}

// timeoutOr marks err as a model timeout when the call's own deadline fired.
func timeoutOr(callCtx context.Context, err error) error {
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrModelTimeout, err)
	}
	return err
}

func cloneSession(in Session) Session {
	disorders := make([]string, len(in.Disorders))
	copy(disorders, in.Disorders)
	in.Disorders = disorders
	return in
}
