// Package whisper bridges whisper.cpp (via its CGO Go bindings, already a
// dependency of this module's STT stack) into the acoustic.Provider
// contract: a pure function from a fixed-length sample window to a [T, V]
// phoneme-logits tensor.
//
// This is a best-effort bridge, not a native fit: whisper.cpp is an
// encoder-decoder grapheme-token model, not a CTC phoneme model, so there is
// no true per-frame phoneme logits tensor to extract. Adapter projects each
// emitted token's reported probability onto the nearest vocabulary phoneme
// (via a fixed grapheme-to-phoneme token map) and treats whisper.cpp's
// per-segment token sequence as if it were one CTC frame per token, with the
// reported token probability as that frame's only non-negligible logit. It is
// useful for end-to-end wiring and for exercising the acoustic.Provider contract, not a
// substitute for a real CTC acoustic model in production.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"github.com/speechlab/pronounce/internal/pronounce/vocab"
	"github.com/speechlab/pronounce/pkg/provider/acoustic"
	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// Compile-time assertion that Provider satisfies acoustic.Provider.
var _ acoustic.Provider = (*Provider)(nil)

// Provider adapts a shared whisper.cpp model into acoustic.Provider.
type Provider struct {
	model    whisperlib.Model
	language string
	vocab    *vocab.Vocabulary

	// graphemeToPhoneme maps a whisper.cpp sub-word token's lower-cased text
	// to the vocabulary phoneme it is projected onto. Tokens with no entry
	// project to the CTC blank token.
	graphemeToPhoneme map[string]string
}

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLanguage sets the BCP-47 language code passed to whisper.cpp. Defaults
// to "en" (the core has no non-English Non-goal exception here: spec.md's
// own Non-goals already exclude non-English languages, so this is never
// meaningfully overridden in practice).
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithGraphemeToPhoneme overrides the default (empty) grapheme-token to
// phoneme projection table.
func WithGraphemeToPhoneme(m map[string]string) Option {
	return func(p *Provider) { p.graphemeToPhoneme = m }
}

// New creates a Provider from an already-loaded whisper.cpp model and the
// phoneme vocabulary the decoder expects logits indices to align with.
func New(model whisperlib.Model, v *vocab.Vocabulary, opts ...Option) (*Provider, error) {
	if model == nil {
		return nil, errors.New("acoustic/whisper: model must not be nil")
	}
	if v == nil {
		return nil, errors.New("acoustic/whisper: vocabulary must not be nil")
	}
	p := &Provider{
		model:             model,
		language:          "en",
		vocab:             v,
		graphemeToPhoneme: map[string]string{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Predict runs whisper.cpp inference on samples and projects the resulting
// token sequence onto a [T, V] logits tensor, one row per emitted token.
func (p *Provider) Predict(ctx context.Context, samples []float32) (acoustic.Logits, error) {
	if err := ctx.Err(); err != nil {
		return acoustic.Logits{}, fmt.Errorf("acoustic/whisper: context cancelled: %w", err)
	}
	if len(samples) != acoustic.WindowSamples {
		slog.Warn("acoustic/whisper: unexpected window length",
			"got", len(samples), "want", acoustic.WindowSamples)
	}

	wctx, err := p.model.NewContext()
	if err != nil {
		return acoustic.Logits{}, fmt.Errorf("acoustic/whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(p.language); err != nil {
		slog.Warn("acoustic/whisper: failed to set language", "language", p.language, "error", err)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return acoustic.Logits{}, fmt.Errorf("acoustic/whisper: process audio: %w", err)
	}

	vocabSize := p.vocab.Size()
	var frames [][]float64

	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return acoustic.Logits{}, fmt.Errorf("acoustic/whisper: read segment: %w", err)
		}
		for _, tok := range segment.Tokens {
			phoneme, prob := p.projectToken(tok.Text, float64(tok.P))
			row := make([]float64, vocabSize)
			id, ok := p.vocab.ID(phoneme)
			if !ok {
				id = p.vocab.BlankID()
			}
			row[id] = logit(prob)
			frames = append(frames, row)
		}
	}

	return acoustic.Logits{Frames: frames, VocabSize: vocabSize}, nil
}

// projectToken maps one whisper.cpp token's text onto a vocabulary phoneme
// and confidence, using the configured grapheme-to-phoneme table. Tokens
// with no mapping project to the blank token with low confidence, so they
// collapse away during CTC decode rather than corrupting the phoneme
// stream.
func (p *Provider) projectToken(text string, probability float64) (phoneme string, prob float64) {
	key := strings.ToLower(strings.TrimSpace(text))
	if ph, ok := p.graphemeToPhoneme[key]; ok {
		return ph, probability
	}
	return p.vocab.Token(p.vocab.BlankID()), 0.05
}

// logit converts a probability in [0,1] into an unnormalized logit that
// argmax/softmax decoding downstream will recover as approximately that
// probability.
func logit(prob float64) float64 {
	if prob <= 0 {
		prob = 1e-6
	}
	if prob >= 1 {
		prob = 1 - 1e-6
	}
	return math.Log(prob / (1 - prob))
}
