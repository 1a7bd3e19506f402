package narrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/speechlab/pronounce/internal/pronounce"
	"github.com/speechlab/pronounce/pkg/provider/llm"
	llmmock "github.com/speechlab/pronounce/pkg/provider/llm/mock"
)

func sampleResult() pronounce.PronunciationEvalResult {
	return pronounce.PronunciationEvalResult{
		TotalScore: 0.72,
		Words: []pronounce.WordScore{
			{Word: "hello", Score: 0.95},
			{Word: "world", Score: 0.49, Aligned: []pronounce.AlignedPhoneme{
				{Kind: pronounce.Replace, Target: "ɹ", Actual: "w", Note: "liquid substitution"},
			}},
		},
	}
}

func TestNarrate_ParsesJSONResponse(t *testing.T) {
	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"feedback": "Nice work overall, just focus on the R sound in 'world'."}`,
		},
	}
	n := New(provider)

	got, err := n.Narrate(context.Background(), "hello world", sampleResult())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Nice work overall, just focus on the R sound in 'world'." {
		t.Errorf("got %q", got)
	}
	if len(provider.CompleteCalls) != 1 {
		t.Fatalf("provider called %d times, want 1", len(provider.CompleteCalls))
	}
	req := provider.CompleteCalls[0].Req
	if req.SystemPrompt == "" {
		t.Error("expected a system prompt to be set")
	}
	if len(req.Messages) != 1 || !strings.Contains(req.Messages[0].Content, "world") {
		t.Errorf("expected prompt to embed the scoring result, got %+v", req.Messages)
	}
}

func TestNarrate_StripsMarkdownFence(t *testing.T) {
	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: "```json\n{\"feedback\": \"Great job!\"}\n```",
		},
	}
	n := New(provider)

	got, err := n.Narrate(context.Background(), "hello world", sampleResult())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Great job!" {
		t.Errorf("got %q, want %q", got, "Great job!")
	}
}

func TestNarrate_ProviderError(t *testing.T) {
	provider := &llmmock.Provider{CompleteErr: errors.New("rate limited")}
	n := New(provider)

	_, err := n.Narrate(context.Background(), "hello world", sampleResult())
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestNarrate_MalformedJSON(t *testing.T) {
	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "not json at all"},
	}
	n := New(provider)

	_, err := n.Narrate(context.Background(), "hello world", sampleResult())
	if err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
}

func TestNarrate_EmptyFeedbackField(t *testing.T) {
	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: `{"feedback": ""}`},
	}
	n := New(provider)

	_, err := n.Narrate(context.Background(), "hello world", sampleResult())
	if err == nil {
		t.Fatal("expected an error for empty feedback")
	}
}

func TestWithSystemPrompt_Override(t *testing.T) {
	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: `{"feedback": "ok"}`},
	}
	n := New(provider, WithSystemPrompt("custom prompt"))

	if _, err := n.Narrate(context.Background(), "hi", sampleResult()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.CompleteCalls[0].Req.SystemPrompt != "custom prompt" {
		t.Errorf("system prompt = %q, want %q", provider.CompleteCalls[0].Req.SystemPrompt, "custom prompt")
	}
}

func TestWithMaxTokens_Override(t *testing.T) {
	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: `{"feedback": "ok"}`},
	}
	n := New(provider, WithMaxTokens(50))

	if _, err := n.Narrate(context.Background(), "hi", sampleResult()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.CompleteCalls[0].Req.MaxTokens != 50 {
		t.Errorf("MaxTokens = %d, want 50", provider.CompleteCalls[0].Req.MaxTokens)
	}
}
