package stt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/lukasbauer/scribe/internal/audio"
)

const (
	defaultDeepgramURL   = "wss://api.deepgram.com/v1/listen"
	defaultDeepgramModel = "nova-3"

	// 250ms of 16kHz linear16 per websocket frame.
	deepgramChunkBytes = 8000
)

// DeepgramClient implements Transcriber using Deepgram's streaming API. Each
// Transcribe call opens a stream, sends the whole part, and waits for the
// final results before the server closes the socket.
type DeepgramClient struct {
	cfg    DeepgramConfig
	dialer *websocket.Dialer
}

// DeepgramConfig holds configuration for the Deepgram client.
type DeepgramConfig struct {
	APIKey    string
	URL       string // e.g., "wss://api.deepgram.com/v1/listen"
	Language  string // e.g., "en"
	Model     string // e.g., "nova-3"
	Punctuate bool
}

// deepgramResponse represents a Deepgram WebSocket response.
type deepgramResponse struct {
	Type    string `json:"type"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
	IsFinal bool `json:"is_final"`
}

// NewDeepgramClient creates a new Deepgram transcriber.
func NewDeepgramClient(cfg DeepgramConfig) *DeepgramClient {
	if cfg.URL == "" {
		cfg.URL = defaultDeepgramURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultDeepgramModel
	}
	return &DeepgramClient{cfg: cfg, dialer: websocket.DefaultDialer}
}

func (c *DeepgramClient) listenURL() (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("invalid deepgram url: %w", err)
	}
	q := u.Query()
	q.Set("model", c.cfg.Model)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(audio.TargetSampleRate))
	q.Set("channels", "1")
	q.Set("punctuate", strconv.FormatBool(c.cfg.Punctuate))
	if c.cfg.Language != "" {
		q.Set("language", c.cfg.Language)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Transcribe streams the waveform to Deepgram and joins the final segments.
func (c *DeepgramClient) Transcribe(ctx context.Context, wf audio.Waveform) (string, error) {
	text, err := c.transcribe(ctx, wf)
	if err != nil {
		return "", &TranscriptionError{Provider: "deepgram", Err: err}
	}
	return text, nil
}

func (c *DeepgramClient) transcribe(ctx context.Context, wf audio.Waveform) (string, error) {
	listenURL, err := c.listenURL()
	if err != nil {
		return "", err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+c.cfg.APIKey)

	conn, _, err := c.dialer.DialContext(ctx, listenURL, headers)
	if err != nil {
		return "", fmt.Errorf("failed to connect to Deepgram: %w", err)
	}

	s := &deepgramStream{conn: conn, done: make(chan struct{})}
	defer s.close()

	s.wg.Add(1)
	go s.readLoop()

	// Unblock the read loop if the caller gives up.
	stopWatch := context.AfterFunc(ctx, s.close)
	defer stopWatch()

	pcm := audio.PCM16LE(wf)
	for off := 0; off < len(pcm); off += deepgramChunkBytes {
		end := min(off+deepgramChunkBytes, len(pcm))
		if err := s.write(websocket.BinaryMessage, pcm[off:end]); err != nil {
			return "", contextOr(ctx, fmt.Errorf("failed to stream audio: %w", err))
		}
	}
	if err := s.write(websocket.TextMessage, []byte(`{"type": "CloseStream"}`)); err != nil {
		return "", contextOr(ctx, fmt.Errorf("failed to close stream: %w", err))
	}

	s.wg.Wait()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.err != nil {
		return "", s.err
	}
	if !s.gotResults {
		return "", errors.New("no results in response")
	}
	return strings.Join(s.finals, " "), nil
}

// Warmup only validates configuration; opening a stream bills audio time.
func (c *DeepgramClient) Warmup(_ context.Context) error {
	if c.cfg.APIKey == "" {
		return errors.New("deepgram warmup: API key not configured")
	}
	_, err := c.listenURL()
	return err
}

type deepgramStream struct {
	conn      *websocket.Conn
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex
	wg        sync.WaitGroup

	// Written by readLoop, read after wg.Wait.
	finals     []string
	gotResults bool
	err        error
}

func (s *deepgramStream) write(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.done:
		return errors.New("stream is closed")
	default:
	}
	return s.conn.WriteMessage(messageType, data)
}

func (s *deepgramStream) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// readLoop collects final transcripts until the server closes the socket.
func (s *deepgramStream) readLoop() {
	defer s.wg.Done()

	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.err = fmt.Errorf("read error: %w", err)
			}
			return
		}

		var resp deepgramResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			log.Printf("deepgram: failed to parse response: %v", err)
			continue
		}

		if resp.Type != "Results" {
			continue
		}
		s.gotResults = true

		if !resp.IsFinal || len(resp.Channel.Alternatives) == 0 {
			continue
		}
		if text := strings.TrimSpace(resp.Channel.Alternatives[0].Transcript); text != "" {
			s.finals = append(s.finals, text)
		}
	}
}

func contextOr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}
