package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/lukasbauer/scribe/internal/eventlog"
	"github.com/lukasbauer/scribe/internal/session"
	"github.com/lukasbauer/scribe/internal/templates"
)

type startSessionRequest struct {
	Name      string   `json:"name"`
	Disorders []string `json:"disorders"`
	Template  string   `json:"template"`
	IsLive    bool     `json:"isLive"`
}

func (r *Router) handleStartSession(w http.ResponseWriter, req *http.Request) {
	var body startSessionRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, KindValidation, "invalid request body")
		return
	}

	info, err := r.sessions.Start(req.Context(), session.StartParams{
		Subject:   body.Name,
		Disorders: body.Disorders,
		Template:  body.Template,
		IsLive:    body.IsLive,
	})
	if err != nil {
		r.writeSessionError(w, req, "start", err)
		return
	}

	if claims := getClaims(req.Context()); claims != nil && claims.Subject != "" {
		r.logger.Printf("session: %s started by %s", info.ID, claims.Subject)
	}
	writeJSON(w, http.StatusOK, info)
}

type addAudioRequest struct {
	Path string `json:"path"`
}

type addAudioResponse struct {
	Ordinal    int    `json:"ordinal"`
	Text       string `json:"text"`
	DurationMs int64  `json:"durationMs"`
}

func (r *Router) handleAddAudio(w http.ResponseWriter, req *http.Request) {
	// AddPart checks again under the ingest lock.
	if r.sessions.Status().State == session.StateIdle {
		r.writeSessionError(w, req, "addAudio", session.ErrNoActiveSession)
		return
	}

	req.Body = http.MaxBytesReader(w, req.Body, r.cfg.MaxUploadBytes)

	src, err := r.readAudioSource(req)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, KindValidation,
				fmt.Sprintf("audio exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, KindValidation, err.Error())
		return
	}

	part, err := r.sessions.AddPart(req.Context(), src)
	if err != nil {
		r.writeSessionError(w, req, "addAudio", err)
		return
	}

	writeJSON(w, http.StatusOK, addAudioResponse{
		Ordinal:    part.Ordinal,
		Text:       part.Text,
		DurationMs: part.DurationMs,
	})
}

// readAudioSource accepts a multipart upload (field "audio"), a JSON
// {"path"} reference inside AudioDir, or a raw audio body.
func (r *Router) readAudioSource(req *http.Request) (session.Source, error) {
	mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))

	switch {
	case mediaType == "multipart/form-data":
		if err := req.ParseMultipartForm(32 << 20); err != nil {
			return session.Source{}, fmt.Errorf("invalid multipart body: %w", err)
		}
		defer func() { _ = req.MultipartForm.RemoveAll() }()

		file, header, err := req.FormFile("audio")
		if err != nil {
			return session.Source{}, errors.New(`missing "audio" file field`)
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return session.Source{}, err
		}
		return session.Source{Name: header.Filename, Data: data}, nil

	case mediaType == "application/json":
		var body addAudioRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			return session.Source{}, errors.New("invalid request body")
		}
		path, err := r.resolveAudioPath(body.Path)
		if err != nil {
			return session.Source{}, err
		}
		return session.Source{Name: body.Path, Path: path}, nil

	default:
		data, err := io.ReadAll(req.Body)
		if err != nil {
			return session.Source{}, err
		}
		return session.Source{Name: "body", Data: data}, nil
	}
}

// resolveAudioPath maps a client path reference onto AudioDir. Absolute
// paths and paths escaping the directory are rejected.
func (r *Router) resolveAudioPath(ref string) (string, error) {
	if r.cfg.AudioDir == "" {
		return "", errors.New("path references are disabled")
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", errors.New("path is required")
	}
	if !filepath.IsLocal(ref) {
		return "", fmt.Errorf("path %q is outside the audio directory", ref)
	}
	return filepath.Join(r.cfg.AudioDir, ref), nil
}

func (r *Router) handleEndSession(w http.ResponseWriter, req *http.Request) {
	res, err := r.sessions.End(req.Context())
	if err != nil {
		r.writeSessionError(w, req, "end", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (r *Router) handlePastMainText(w http.ResponseWriter, req *http.Request) {
	transcript, err := r.sessions.CurrentTranscript()
	if err != nil {
		r.writeSessionError(w, req, "pastMainText", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"transcript": transcript})
}

func (r *Router) handleSummary(w http.ResponseWriter, req *http.Request) {
	summary, err := r.sessions.Summary(req.Context())
	if err != nil {
		r.writeSessionError(w, req, "summary", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

func (r *Router) handleSessionStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, r.sessions.Status())
}

func (r *Router) handleListTemplates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]templates.Template{
		"templates": r.sessions.Templates().List(),
	})
}

func (r *Router) handlePutTemplate(w http.ResponseWriter, req *http.Request) {
	var body templates.Template
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, KindValidation, "invalid request body")
		return
	}

	created, err := r.sessions.PutTemplate(body)
	if err != nil {
		r.writeSessionError(w, req, "putTemplate", err)
		return
	}

	saved, _ := r.sessions.Templates().Get(strings.TrimSpace(body.ID))
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, saved)
}

func (r *Router) handleDeleteTemplate(w http.ResponseWriter, req *http.Request) {
	if err := r.sessions.DeleteTemplate(req.PathValue("id")); err != nil {
		r.writeSessionError(w, req, "deleteTemplate", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleSessionEvents(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")

	events := []eventlog.Event{}
	if r.cfg.Events != nil {
		stored, err := r.cfg.Events.List(req.Context(), id)
		if err != nil {
			r.logger.Printf("eventlog: list %s failed: %v", id, err)
			captureError(req, err, "list session events")
			writeError(w, http.StatusInternalServerError, KindInternal, "internal server error")
			return
		}
		if stored != nil {
			events = stored
		}
	}
	writeJSON(w, http.StatusOK, map[string][]eventlog.Event{"events": events})
}
