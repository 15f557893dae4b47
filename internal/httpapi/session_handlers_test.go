package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lukasbauer/scribe/internal/audio"
	"github.com/lukasbauer/scribe/internal/eventlog"
	"github.com/lukasbauer/scribe/internal/llm"
	"github.com/lukasbauer/scribe/internal/stt"
	"github.com/lukasbauer/scribe/internal/templates"
)

func wavOf(t *testing.T, n int) []byte {
	t.Helper()
	data, err := audio.EncodeWAV(audio.Waveform{Samples: make([]float32, n), SampleRate: audio.TargetSampleRate})
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	return data
}

func multipartAudio(t *testing.T, field, filename string, data []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = fw.Write(data)
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return buf.Bytes(), mw.FormDataContentType()
}

func (e *testEnv) start(t *testing.T) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/startSession", "application/json",
		[]byte(`{"name": "Jan Novak", "disorders": ["stuttering"], "template": "soap", "isLive": true}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("startSession status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func (e *testEnv) upload(t *testing.T, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartAudio(t, "audio", "part.wav", data)
	return e.do(t, http.MethodPost, "/addAudio", ct, body)
}

func TestSessionLifecycle(t *testing.T) {
	tr := &fakeTranscriber{texts: map[int]string{160: "hello ", 320: "world"}}
	env := newTestEnv(t, RouterConfig{}, tr, nil)

	rec := env.do(t, http.MethodPost, "/startSession", "application/json",
		[]byte(`{"name": "Jan Novak", "disorders": ["stuttering", " stuttering", ""], "template": "soap", "isLive": true}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("startSession status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var started struct {
		ID        string   `json:"id"`
		Name      string   `json:"name"`
		Disorders []string `json:"disorders"`
		IsLive    bool     `json:"isLive"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &started); err != nil {
		t.Fatalf("decode start response: %v", err)
	}
	if started.ID == "" || started.Name != "Jan Novak" || !started.IsLive {
		t.Errorf("start response = %+v", started)
	}
	if len(started.Disorders) != 1 || started.Disorders[0] != "stuttering" {
		t.Errorf("disorders = %v, want [stuttering]", started.Disorders)
	}

	for i, n := range []int{160, 320} {
		rec := env.upload(t, wavOf(t, n))
		if rec.Code != http.StatusOK {
			t.Fatalf("addAudio %d status = %d, body = %s", i, rec.Code, rec.Body.String())
		}
		var part addAudioResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &part); err != nil {
			t.Fatalf("decode addAudio response: %v", err)
		}
		if part.Ordinal != i+1 {
			t.Errorf("ordinal = %d, want %d", part.Ordinal, i+1)
		}
	}

	rec = env.do(t, http.MethodGet, "/pastMainText", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("pastMainText status = %d", rec.Code)
	}
	var past map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &past)
	if past["transcript"] != "hello world" {
		t.Errorf("transcript = %q, want %q", past["transcript"], "hello world")
	}

	rec = env.do(t, http.MethodGet, "/summary", "", nil)
	var sum map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &sum)
	if rec.Code != http.StatusOK || sum["summary"] != "note: hello world" {
		t.Errorf("summary = %d %q", rec.Code, sum["summary"])
	}

	rec = env.do(t, http.MethodPost, "/endSession", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("endSession status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var ended struct {
		Transcript string            `json:"transcript"`
		Summary    string            `json:"summary"`
		Parts      []json.RawMessage `json:"parts"`
		Cost       map[string]int    `json:"cost"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &ended); err != nil {
		t.Fatalf("decode end response: %v", err)
	}
	if ended.Transcript != "hello world" || ended.Summary != "note: hello world" || len(ended.Parts) != 2 {
		t.Errorf("end response = %+v", ended)
	}
	if _, ok := ended.Cost["totalCostCents"]; !ok {
		t.Errorf("end response cost = %v, want totalCostCents", ended.Cost)
	}

	rec = env.upload(t, wavOf(t, 160))
	if rec.Code != http.StatusNotFound {
		t.Errorf("addAudio after end status = %d, want 404", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Kind != KindNoActiveSession {
		t.Errorf("kind = %q, want %q", resp.Kind, KindNoActiveSession)
	}
}

func TestStartSessionErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantKind ErrorKind
	}{
		{"malformed json", `{"name":`, http.StatusBadRequest, KindValidation},
		{"missing name", `{"template": "soap"}`, http.StatusBadRequest, KindValidation},
		{"missing template", `{"name": "Jan"}`, http.StatusBadRequest, KindValidation},
		{"unknown template", `{"name": "Jan", "template": "haiku"}`, http.StatusBadRequest, KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, RouterConfig{}, nil, nil)
			rec := env.do(t, http.MethodPost, "/startSession", "application/json", []byte(tt.body))

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if resp := decodeError(t, rec); resp.Kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", resp.Kind, tt.wantKind)
			}
		})
	}
}

func TestStartSessionTwice(t *testing.T) {
	env := newTestEnv(t, RouterConfig{}, nil, nil)
	env.start(t)

	rec := env.do(t, http.MethodPost, "/startSession", "application/json", []byte(`{"name": "Other", "template": "dap"}`))
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Kind != KindSessionAlreadyActive {
		t.Errorf("kind = %q, want %q", resp.Kind, KindSessionAlreadyActive)
	}
	if st := env.store.Status(); st.Session == nil || st.Session.Subject != "Jan Novak" {
		t.Errorf("active session was overwritten: %+v", st.Session)
	}
}

func TestNoActiveSessionRoutes(t *testing.T) {
	env := newTestEnv(t, RouterConfig{}, nil, nil)

	routes := []struct {
		method, path string
	}{
		{http.MethodPost, "/endSession"},
		{http.MethodGet, "/pastMainText"},
		{http.MethodGet, "/summary"},
	}
	for _, rt := range routes {
		t.Run(rt.path, func(t *testing.T) {
			rec := env.do(t, rt.method, rt.path, "", nil)
			if rec.Code != http.StatusNotFound {
				t.Errorf("status = %d, want 404", rec.Code)
			}
			if resp := decodeError(t, rec); resp.Kind != KindNoActiveSession {
				t.Errorf("kind = %q, want %q", resp.Kind, KindNoActiveSession)
			}
		})
	}

	t.Run("/addAudio", func(t *testing.T) {
		if rec := env.upload(t, wavOf(t, 160)); rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	// The session check runs before the body is read, so an otherwise
	// invalid request still reports the missing session.
	t.Run("/addAudio path reference", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/addAudio", "application/json", []byte(`{"path":"a.wav"}`))
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404 (body %s)", rec.Code, rec.Body.String())
		}
		if resp := decodeError(t, rec); resp.Kind != KindNoActiveSession {
			t.Errorf("kind = %q, want %q", resp.Kind, KindNoActiveSession)
		}
	})
}

func TestAddAudioErrors(t *testing.T) {
	tests := []struct {
		name     string
		tr       *fakeTranscriber
		send     func(t *testing.T, env *testEnv) *httptest.ResponseRecorder
		wantCode int
		wantKind ErrorKind
	}{
		{
			name:     "corrupt audio",
			send:     func(t *testing.T, env *testEnv) *httptest.ResponseRecorder { return env.upload(t, []byte("not a wav")) },
			wantCode: http.StatusUnprocessableEntity,
			wantKind: KindDecode,
		},
		{
			name:     "empty audio",
			send:     func(t *testing.T, env *testEnv) *httptest.ResponseRecorder { return env.upload(t, nil) },
			wantCode: http.StatusUnprocessableEntity,
			wantKind: KindDecode,
		},
		{
			name:     "transcription failure",
			tr:       &fakeTranscriber{err: &stt.TranscriptionError{Provider: "fake", Err: errors.New("model down")}},
			send:     func(t *testing.T, env *testEnv) *httptest.ResponseRecorder { return env.upload(t, wavOf(t, 160)) },
			wantCode: http.StatusUnprocessableEntity,
			wantKind: KindTranscription,
		},
		{
			name:     "model timeout",
			tr:       &fakeTranscriber{block: true},
			send:     func(t *testing.T, env *testEnv) *httptest.ResponseRecorder { return env.upload(t, wavOf(t, 160)) },
			wantCode: http.StatusGatewayTimeout,
			wantKind: KindModelTimeout,
		},
		{
			name: "missing audio field",
			send: func(t *testing.T, env *testEnv) *httptest.ResponseRecorder {
				body, ct := multipartAudio(t, "file", "part.wav", wavOf(t, 160))
				return env.do(t, http.MethodPost, "/addAudio", ct, body)
			},
			wantCode: http.StatusBadRequest,
			wantKind: KindValidation,
		},
		{
			name: "path references disabled",
			send: func(t *testing.T, env *testEnv) *httptest.ResponseRecorder {
				return env.do(t, http.MethodPost, "/addAudio", "application/json", []byte(`{"path": "a.wav"}`))
			},
			wantCode: http.StatusBadRequest,
			wantKind: KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, RouterConfig{}, tt.tr, nil)
			env.start(t)

			rec := tt.send(t, env)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if resp := decodeError(t, rec); resp.Kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", resp.Kind, tt.wantKind)
			}
			if n := env.store.Status().PartCount; n != 0 {
				t.Errorf("PartCount = %d, want 0", n)
			}
		})
	}
}

func TestAddAudioTooLarge(t *testing.T) {
	env := newTestEnv(t, RouterConfig{MaxUploadBytes: 1024}, nil, nil)
	env.start(t)

	rec := env.do(t, http.MethodPost, "/addAudio", "audio/wav", wavOf(t, 4000))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestAddAudioRawBody(t *testing.T) {
	env := newTestEnv(t, RouterConfig{}, &fakeTranscriber{texts: map[int]string{160: "raw"}}, nil)
	env.start(t)

	rec := env.do(t, http.MethodPost, "/addAudio", "audio/wav", wavOf(t, 160))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var part addAudioResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &part)
	if part.Text != "raw" || part.DurationMs != 10 {
		t.Errorf("part = %+v", part)
	}
}

func TestAddAudioPathReference(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "session1.wav"), wavOf(t, 160), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	env := newTestEnv(t, RouterConfig{AudioDir: dir}, &fakeTranscriber{texts: map[int]string{160: "from disk"}}, nil)
	env.start(t)

	tests := []struct {
		name     string
		path     string
		wantCode int
	}{
		{"inside audio dir", "session1.wav", http.StatusOK},
		{"escapes audio dir", "../etc/passwd", http.StatusBadRequest},
		{"absolute path", "/etc/passwd", http.StatusBadRequest},
		{"empty path", "", http.StatusBadRequest},
		{"missing file", "nope.wav", http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(addAudioRequest{Path: tt.path})
			rec := env.do(t, http.MethodPost, "/addAudio", "application/json", body)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
		})
	}

	if got, _ := env.store.CurrentTranscript(); got != "from disk" {
		t.Errorf("transcript = %q, want %q", got, "from disk")
	}
}

func TestEndSessionSummarizationFailure(t *testing.T) {
	sum := &fakeSummarizer{err: &llm.SummarizationError{Err: errors.New("upstream 500")}}
	env := newTestEnv(t, RouterConfig{}, nil, sum)
	env.start(t)

	rec := env.do(t, http.MethodPost, "/endSession", "", nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Kind != KindSummarization {
		t.Errorf("kind = %q, want %q", resp.Kind, KindSummarization)
	}

	rec = env.do(t, http.MethodGet, "/session", "", nil)
	if !strings.Contains(rec.Body.String(), `"state":"active"`) {
		t.Errorf("session should remain active, got %s", rec.Body.String())
	}
}

func TestListTemplates(t *testing.T) {
	env := newTestEnv(t, RouterConfig{}, nil, nil)
	rec := env.do(t, http.MethodGet, "/templates", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Templates []struct {
			ID string `json:"id"`
		} `json:"templates"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Templates) != 4 || resp.Templates[0].ID != "dap" {
		t.Errorf("templates = %+v", resp.Templates)
	}
}

func TestSessionStatusIdle(t *testing.T) {
	env := newTestEnv(t, RouterConfig{}, nil, nil)
	rec := env.do(t, http.MethodGet, "/session", "", nil)

	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"state":"idle"`) {
		t.Errorf("got %d %s", rec.Code, rec.Body.String())
	}
}

type fakeHistory struct {
	events map[string][]eventlog.Event
	err    error
}

func (f *fakeHistory) List(_ context.Context, sessionID string) ([]eventlog.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.events[sessionID], nil
}

func TestSessionEvents(t *testing.T) {
	history := &fakeHistory{events: map[string][]eventlog.Event{
		"s1": {
			{SessionID: "s1", Type: eventlog.EventSessionStarted, Data: json.RawMessage(`{"template":"soap"}`)},
			{SessionID: "s1", Type: eventlog.EventSessionEnded, Data: json.RawMessage(`{"part_count":2}`)},
		},
	}}

	tests := []struct {
		name      string
		events    EventHistory
		id        string
		wantCode  int
		wantTypes []eventlog.EventType
	}{
		{"stored session", history, "s1", http.StatusOK, []eventlog.EventType{eventlog.EventSessionStarted, eventlog.EventSessionEnded}},
		{"unknown session", history, "nope", http.StatusOK, nil},
		{"event log disabled", nil, "s1", http.StatusOK, nil},
		{"store failure", &fakeHistory{err: errors.New("connection reset")}, "s1", http.StatusInternalServerError, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, RouterConfig{Events: tt.events}, nil, nil)
			rec := env.do(t, http.MethodGet, "/sessions/"+tt.id+"/events", "", nil)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				if resp := decodeError(t, rec); resp.Kind != KindInternal || strings.Contains(resp.Error, "connection") {
					t.Errorf("error = %+v, want generic InternalError", resp)
				}
				return
			}

			var body struct {
				Events []eventlog.Event `json:"events"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Events == nil {
				t.Error("events should be an empty list, not null")
			}
			if len(body.Events) != len(tt.wantTypes) {
				t.Fatalf("events = %d, want %d", len(body.Events), len(tt.wantTypes))
			}
			for i, want := range tt.wantTypes {
				if body.Events[i].Type != want {
					t.Errorf("event %d = %q, want %q", i, body.Events[i].Type, want)
				}
			}
		})
	}
}

func TestTemplateRoutes(t *testing.T) {
	env := newTestEnv(t, RouterConfig{}, nil, nil)

	fluency := `{"id":"fluency","name":"Fluency Note","format":"TARGETS: [TARGETS]",` +
		`"fields":[{"label":"TARGETS","placeholder":"[TARGETS]","type":"textarea"}]}`

	rec := env.do(t, http.MethodPost, "/templates", "application/json", []byte(fluency))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodPost, "/templates", "application/json",
		[]byte(strings.Replace(fluency, "Fluency Note", "Fluency Note v2", 1)))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Fluency Note v2") {
		t.Errorf("update = %d %s, want 200 with new name", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/templates", "application/json", []byte(`{"id":"broken"}`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid template status = %d, want 400", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/templates", "application/json", []byte(`{`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/startSession", "application/json",
		[]byte(`{"name":"Jan Novak","template":"fluency"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("startSession with new template = %d, body = %s", rec.Code, rec.Body.String())
	}

	tests := []struct {
		name     string
		id       string
		wantCode int
		wantKind ErrorKind
	}{
		{"in use by active session", "fluency", http.StatusConflict, KindTemplateInUse},
		{"unused built-in", "dap", http.StatusNoContent, ""},
		{"already deleted", "dap", http.StatusNotFound, KindTemplateNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodDelete, "/templates/"+tt.id, "", nil)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantKind != "" {
				if resp := decodeError(t, rec); resp.Kind != tt.wantKind {
					t.Errorf("kind = %q, want %q", resp.Kind, tt.wantKind)
				}
			}
		})
	}

	var list struct {
		Templates []templates.Template `json:"templates"`
	}
	rec = env.do(t, http.MethodGet, "/templates", "", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	ids := make([]string, len(list.Templates))
	for i, tmpl := range list.Templates {
		ids[i] = tmpl.ID
	}
	if got := strings.Join(ids, ","); got != "fluency,intake,psychotherapy,soap" {
		t.Errorf("templates = %s", got)
	}
}
