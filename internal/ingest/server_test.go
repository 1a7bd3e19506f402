package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"go.opentelemetry.io/otel/sdk/metric"

	"github.com/speechlab/pronounce/internal/feedback/narrator"
	"github.com/speechlab/pronounce/internal/observe"
	"github.com/speechlab/pronounce/internal/pronounce/ctc"
	"github.com/speechlab/pronounce/internal/pronounce/engine"
	"github.com/speechlab/pronounce/internal/pronounce/reference"
	"github.com/speechlab/pronounce/internal/pronounce/vocab"
	acousticmock "github.com/speechlab/pronounce/pkg/provider/acoustic/mock"
	g2pmock "github.com/speechlab/pronounce/pkg/provider/g2p/mock"
	"github.com/speechlab/pronounce/pkg/provider/acoustic"
	"github.com/speechlab/pronounce/pkg/provider/llm"
	llmmock "github.com/speechlab/pronounce/pkg/provider/llm/mock"
	historymock "github.com/speechlab/pronounce/pkg/history/mock"
)

func testVocab(t *testing.T) *vocab.Vocabulary {
	t.Helper()
	const vocabJSON = `{
		"vocab_size": 5,
		"id_to_token": {"0": "<blank>", "1": "h", "2": "ə", "3": "l", "4": "o"},
		"special_tokens": {}
	}`
	v, err := vocab.LoadFromReader(strings.NewReader(vocabJSON))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	return v
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(metric.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func newTestServer(t *testing.T, opts ...Option) *httptest.Server {
	t.Helper()
	v := testVocab(t)

	acousticProvider := &acousticmock.Provider{
		Logits: []acoustic.Logits{{
			Frames:    [][]float64{{0, 10, 0, 0, 0}, {0, 0, 10, 0, 0}, {0, 0, 0, 10, 0}},
			VocabSize: v.Size(),
		}},
	}
	g2pProvider := &g2pmock.Provider{}

	decoder := ctc.New(acousticProvider, v)
	ref := reference.New(g2pProvider)
	evaluator := engine.New(decoder, ref)

	allOpts := append([]Option{WithMetrics(testMetrics(t))}, opts...)
	srv := New(evaluator, allOpts...)

	mux := http.NewServeMux()
	srv.Register(mux)
	return httptest.NewServer(mux)
}

func dialStream(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/score/stream"
	conn, _, err := websocket.Dial(context.Background(), wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestHandleStream_ScoresAndReturnsResult(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	conn := dialStream(t, srv)
	defer conn.CloseNow()

	ctx := context.Background()
	start, _ := json.Marshal(startMessage{Sentence: "hello", UserID: "alice"})
	if err := conn.Write(ctx, websocket.MessageText, start); err != nil {
		t.Fatalf("write start: %v", err)
	}

	pcm := make([]byte, 640) // 320 int16 samples of silence
	if err := conn.Write(ctx, websocket.MessageBinary, pcm); err != nil {
		t.Fatalf("write audio: %v", err)
	}

	end, _ := json.Marshal(controlMessage{Type: "end"})
	if err := conn.Write(ctx, websocket.MessageText, end); err != nil {
		t.Fatalf("write end: %v", err)
	}

	typ, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	if typ != websocket.MessageText {
		t.Fatalf("expected text response, got %v", typ)
	}

	var resp response
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error != "" {
		t.Fatalf("unexpected error in response: %s", resp.Error)
	}
}

func TestHandleStream_EmptySentenceProducesZeroScore(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	conn := dialStream(t, srv)
	defer conn.CloseNow()

	ctx := context.Background()
	start, _ := json.Marshal(startMessage{Sentence: ""})
	conn.Write(ctx, websocket.MessageText, start)
	end, _ := json.Marshal(controlMessage{Type: "end"})
	conn.Write(ctx, websocket.MessageText, end)

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	var resp response
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error != "" {
		t.Fatalf("unexpected error: %s", resp.Error)
	}
	if resp.Result.TotalScore != 0 || len(resp.Result.Words) != 0 {
		t.Errorf("expected zero-score empty result, got %+v", resp.Result)
	}
}

func TestHandleStream_MalformedStartMessageClosesWithError(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	conn := dialStream(t, srv)
	defer conn.CloseNow()

	ctx := context.Background()
	if err := conn.Write(ctx, websocket.MessageText, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	var resp response
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error == "" {
		t.Error("expected an error response for malformed start message")
	}
}

func TestHandleStream_NarratesWhenNarratorConfigured(t *testing.T) {
	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: `{"feedback": "good job"}`},
	}
	n := narrator.New(provider)

	srv := newTestServer(t, WithNarrator(n))
	defer srv.Close()

	conn := dialStream(t, srv)
	defer conn.CloseNow()

	ctx := context.Background()
	start, _ := json.Marshal(startMessage{Sentence: "hello"})
	conn.Write(ctx, websocket.MessageText, start)
	end, _ := json.Marshal(controlMessage{Type: "end"})
	conn.Write(ctx, websocket.MessageText, end)

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var resp response
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Feedback != "good job" {
		t.Errorf("feedback = %q, want %q", resp.Feedback, "good job")
	}
}

func TestHandleStream_PersistsHistoryWhenUserIDPresent(t *testing.T) {
	store := &historymock.Store{}
	srv := newTestServer(t, WithHistory(store))
	defer srv.Close()

	conn := dialStream(t, srv)
	defer conn.CloseNow()

	ctx := context.Background()
	start, _ := json.Marshal(startMessage{Sentence: "hello", UserID: "bob"})
	conn.Write(ctx, websocket.MessageText, start)
	end, _ := json.Marshal(controlMessage{Type: "end"})
	conn.Write(ctx, websocket.MessageText, end)

	if _, _, err := conn.Read(ctx); err != nil {
		t.Fatalf("read: %v", err)
	}

	time.Sleep(10 * time.Millisecond) // Save happens before the write, but guard against flakiness.
	recent, err := store.Recent(ctx, "bob", 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("expected 1 saved record, got %d", len(recent))
	}
}
