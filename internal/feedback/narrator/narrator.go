// Package narrator renders a PronunciationEvalResult into a short piece of
// coaching text using an LLM: "you're dropping the final /t/ in 'cat'" rather
// than a bare score. It is an optional, purely additive enrichment — the
// narration is never read back into scoring (AlignedPhoneme.Note and
// per-word scores flow into the prompt, never the other way).
package narrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/speechlab/pronounce/internal/pronounce"
	"github.com/speechlab/pronounce/pkg/provider/llm"
	"github.com/speechlab/pronounce/pkg/types"
)

// defaultSystemPrompt instructs the model to act as a pronunciation coach
// and to respond with a small JSON object, mirroring the typed-response
// style used elsewhere in this codebase for LLM calls.
const defaultSystemPrompt = `You are a concise, encouraging pronunciation coach.
Given a target sentence and a per-word phoneme scoring breakdown, write 1-2
short sentences of spoken feedback a language learner can act on
immediately. Mention the single worst-scoring word by name if its score is
below 0.7; otherwise give brief encouragement. Never mention scores,
phoneme symbols, or JSON in the feedback text itself.

Respond with a single JSON object: {"feedback": "<the feedback text>"}.`

// Narrator renders scoring results into coaching text via an llm.Provider.
type Narrator struct {
	provider     llm.Provider
	systemPrompt string
	maxTokens    int
}

// Option configures a Narrator.
type Option func(*Narrator)

// WithSystemPrompt overrides the default coaching system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(n *Narrator) { n.systemPrompt = prompt }
}

// WithMaxTokens caps the completion length. Zero uses the provider default.
func WithMaxTokens(tokens int) Option {
	return func(n *Narrator) { n.maxTokens = tokens }
}

// New creates a Narrator backed by provider.
func New(provider llm.Provider, opts ...Option) *Narrator {
	n := &Narrator{
		provider:     provider,
		systemPrompt: defaultSystemPrompt,
		maxTokens:    200,
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// response is the expected shape of the model's JSON reply.
type response struct {
	Feedback string `json:"feedback"`
}

// Narrate produces a short coaching sentence for result, scored against
// sentence. It never mutates result.
func (n *Narrator) Narrate(ctx context.Context, sentence string, result pronounce.PronunciationEvalResult) (string, error) {
	prompt, err := buildPrompt(sentence, result)
	if err != nil {
		return "", fmt.Errorf("narrator: build prompt: %w", err)
	}

	resp, err := n.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: n.systemPrompt,
		Messages: []types.Message{
			{Role: "user", Content: prompt},
		},
		MaxTokens: n.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("narrator: complete: %w", err)
	}

	feedback, err := parseResponse(resp.Content)
	if err != nil {
		return "", fmt.Errorf("narrator: parse response: %w", err)
	}
	return feedback, nil
}

// promptPayload is the structured evaluation summary embedded in the prompt.
// Only the fields a coach would plausibly reference are included; raw
// per-phoneme probability data is omitted as noise.
type promptPayload struct {
	Sentence   string        `json:"sentence"`
	TotalScore float64       `json:"total_score"`
	Words      []wordSummary `json:"words"`
}

type wordSummary struct {
	Word  string   `json:"word"`
	Score float64  `json:"score"`
	Notes []string `json:"notes,omitempty"`
}

func buildPrompt(sentence string, result pronounce.PronunciationEvalResult) (string, error) {
	payload := promptPayload{
		Sentence:   sentence,
		TotalScore: result.TotalScore,
		Words:      make([]wordSummary, 0, len(result.Words)),
	}
	for _, w := range result.Words {
		ws := wordSummary{Word: w.Word, Score: w.Score}
		for _, a := range w.Aligned {
			if a.Note != "" {
				ws.Notes = append(ws.Notes, a.Note)
			}
		}
		payload.Words = append(payload.Words, ws)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func parseResponse(content string) (string, error) {
	content = strings.TrimSpace(content)
	// Models occasionally wrap JSON in a markdown code fence despite
	// instructions; strip it defensively.
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var resp response
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		return "", fmt.Errorf("unmarshal: %w", err)
	}
	if resp.Feedback == "" {
		return "", fmt.Errorf("empty feedback field")
	}
	return resp.Feedback, nil
}
