// Package ingest implements the streaming HTTP+WebSocket front door for the
// pronunciation scoring engine: the "caller" referred to throughout the
// engine package's docs, kept outside the core scoring packages so the
// engine itself stays transport-agnostic.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/speechlab/pronounce/internal/feedback/narrator"
	"github.com/speechlab/pronounce/internal/observe"
	"github.com/speechlab/pronounce/internal/pronounce"
	"github.com/speechlab/pronounce/internal/pronounce/engine"
	"github.com/speechlab/pronounce/pkg/audio"
	"github.com/speechlab/pronounce/pkg/history"
)

// maxUtteranceBytes bounds how much PCM16 audio a single session may upload
// before the server gives up on it, protecting against a client that never
// sends an end-of-utterance message.
const maxUtteranceBytes = 32 * 1024 * 1024 // ~17 minutes of mono 16kHz PCM16

// startMessage is the first text frame a client must send: the sentence the
// speaker is attempting to pronounce.
type startMessage struct {
	Sentence string `json:"sentence"`
	UserID   string `json:"user_id"`
	Dialect  string `json:"dialect,omitempty"`
}

// controlMessage is any subsequent text frame. Only "end" is recognised;
// other types are ignored so the protocol can grow without breaking old
// clients.
type controlMessage struct {
	Type string `json:"type"`
}

// response is the final message sent back to the client before the
// connection closes.
type response struct {
	Result   pronounce.PronunciationEvalResult `json:"result"`
	Feedback string                            `json:"feedback,omitempty"`
	Error    string                            `json:"error,omitempty"`
}

// Server wires the scoring engine, and the optional result-history and
// feedback-narration collaborators, into a streaming ingest endpoint.
type Server struct {
	evaluator *engine.Evaluator
	history   history.Store      // nil disables history persistence
	narrator  *narrator.Narrator // nil disables feedback narration
	metrics   *observe.Metrics
}

// Option configures a Server.
type Option func(*Server)

// WithHistory enables result-history persistence and similarity recall.
func WithHistory(store history.Store) Option {
	return func(s *Server) { s.history = store }
}

// WithNarrator enables LLM feedback narration on each scored result.
func WithNarrator(n *narrator.Narrator) Option {
	return func(s *Server) { s.narrator = n }
}

// WithMetrics overrides the default package-level metrics instance. Used in
// tests to avoid shared, cross-test counters.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New creates a Server backed by evaluator.
func New(evaluator *engine.Evaluator, opts ...Option) *Server {
	s := &Server{
		evaluator: evaluator,
		metrics:   observe.DefaultMetrics(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register adds the streaming ingest route to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/v1/score/stream", s.handleStream)
}

// handleStream upgrades the connection and runs a single scoring session to
// completion: it reads a start message, accumulates PCM16 audio chunks,
// scores on an end message or on connection close, and writes back one JSON
// response before closing.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("ingest: websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	s.metrics.ActiveSessions.Add(ctx, 1)
	defer s.metrics.ActiveSessions.Add(ctx, -1)

	sentence, userID, err := s.readStart(ctx, conn)
	if err != nil {
		s.closeWithError(ctx, conn, websocket.StatusPolicyViolation, err)
		return
	}

	samples, err := s.readAudio(ctx, conn)
	if err != nil && !errors.Is(err, errEndOfUtterance) {
		s.closeWithError(ctx, conn, websocket.StatusPolicyViolation, err)
		return
	}

	start := time.Now()
	result, err := s.evaluator.Evaluate(ctx, sentence, samples)
	s.metrics.ScoreDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		s.closeWithError(ctx, conn, websocket.StatusInternalError, fmt.Errorf("evaluate: %w", err))
		return
	}

	resp := response{Result: result}
	if s.narrator != nil {
		narrateStart := time.Now()
		feedback, ferr := s.narrator.Narrate(ctx, sentence, result)
		s.metrics.NarrationDuration.Record(ctx, time.Since(narrateStart).Seconds())
		if ferr != nil {
			slog.Warn("ingest: narration failed, returning score without feedback", "err", ferr)
		} else {
			resp.Feedback = feedback
		}
	}

	if s.history != nil && userID != "" {
		rec := history.Record{
			UserID:    userID,
			Sentence:  sentence,
			Timestamp: time.Now(),
			Result:    result,
		}
		if err := s.history.Save(ctx, rec); err != nil {
			slog.Warn("ingest: failed to persist scoring history", "err", err)
		}
	}

	data, err := json.Marshal(resp)
	if err != nil {
		s.closeWithError(ctx, conn, websocket.StatusInternalError, err)
		return
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		slog.Warn("ingest: failed to write response", "err", err)
		return
	}
	conn.Close(websocket.StatusNormalClosure, "scored")
}

func (s *Server) readStart(ctx context.Context, conn *websocket.Conn) (sentence, userID string, err error) {
	typ, data, err := conn.Read(ctx)
	if err != nil {
		return "", "", fmt.Errorf("read start message: %w", err)
	}
	if typ != websocket.MessageText {
		return "", "", fmt.Errorf("expected a text start message, got binary")
	}
	var start startMessage
	if err := json.Unmarshal(data, &start); err != nil {
		return "", "", fmt.Errorf("decode start message: %w", err)
	}
	return start.Sentence, start.UserID, nil
}

// errEndOfUtterance is a sentinel returned by readAudio when the client sent
// an explicit end-of-utterance control message, distinguishing a clean stop
// from a connection error.
var errEndOfUtterance = errors.New("ingest: end of utterance")

// readAudio accumulates binary PCM16 frames until the client sends an "end"
// control message, closes the connection, or the session exceeds
// maxUtteranceBytes.
func (s *Server) readAudio(ctx context.Context, conn *websocket.Conn) ([]float32, error) {
	var samples []float32
	var received int

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			var closeErr websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == websocket.StatusNormalClosure {
				return samples, nil
			}
			return samples, fmt.Errorf("read audio frame: %w", err)
		}

		switch typ {
		case websocket.MessageBinary:
			received += len(data)
			if received > maxUtteranceBytes {
				return samples, fmt.Errorf("utterance exceeds %d bytes", maxUtteranceBytes)
			}
			samples = audio.AppendPCM16(samples, data)
		case websocket.MessageText:
			var ctrl controlMessage
			if err := json.Unmarshal(data, &ctrl); err != nil {
				return samples, fmt.Errorf("decode control message: %w", err)
			}
			if ctrl.Type == "end" {
				return samples, errEndOfUtterance
			}
		}
	}
}

func (s *Server) closeWithError(ctx context.Context, conn *websocket.Conn, status websocket.StatusCode, cause error) {
	slog.Warn("ingest: session failed", "err", cause)
	data, err := json.Marshal(response{Error: cause.Error()})
	if err == nil {
		_ = conn.Write(ctx, websocket.MessageText, data)
	}
	conn.Close(status, "error")
}
