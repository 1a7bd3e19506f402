// Package ctc implements the CTC collapse and confidence aggregator (§4.D):
// it chunks raw audio samples into the acoustic model's fixed window size,
// invokes the model per chunk, merges the overlapping chunk outputs, and
// greedily collapses the resulting argmax sequence into phoneme predictions
// with run-start confidence.
package ctc

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/speechlab/pronounce/internal/pronounce"
	"github.com/speechlab/pronounce/internal/pronounce/vocab"
	"github.com/speechlab/pronounce/pkg/provider/acoustic"
)

// overlapSamples is the 0.5 s chunk overlap from §4.D step 1, at the
// required 16 kHz sample rate.
const overlapSamples = acoustic.SampleRate / 2

// topK is the size of each frame's retained top-k prediction list (§4.D
// step 2: "k=3").
const topK = 3

// noPrev is a sentinel that never matches a real vocabulary ID, used so the
// very first frame is always treated as differing from "the previous
// token".
const noPrev = -1

// Decoder runs the full chunk-and-collapse pipeline of §4.D over a
// acoustic.Provider and a fixed vocabulary.
type Decoder struct {
	provider acoustic.Provider
	vocab    *vocab.Vocabulary
}

// New constructs a Decoder.
func New(provider acoustic.Provider, v *vocab.Vocabulary) *Decoder {
	return &Decoder{provider: provider, vocab: v}
}

// Decode chunks samples, runs the acoustic model over each chunk, merges
// overlapping frames, and returns the greedily-collapsed phoneme prediction
// sequence. An empty samples slice returns an empty prediction list (the
// EmptyAudio condition of §7 is detected by the caller from this result).
func (d *Decoder) Decode(ctx context.Context, samples []float32) ([]pronounce.PhonemePrediction, error) {
	if len(samples) == 0 {
		return nil, nil
	}

	chunks := chunkSamples(samples)
	var allFrames [][]float64
	var vocabSize int

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("ctc: decode cancelled: %w", err)
		}
		logits, err := d.provider.Predict(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("ctc: predict chunk %d: %w", i, err)
		}
		if logits.VocabSize > 0 {
			vocabSize = logits.VocabSize
		}
		frames := logits.Frames
		if i > 0 && len(frames) > 0 {
			dropN := overlapFrameCount(len(frames))
			if dropN > len(frames) {
				dropN = len(frames)
			}
			frames = frames[dropN:]
		}
		allFrames = append(allFrames, frames...)
	}

	return collapse(allFrames, d.vocab), nil
}

// overlapFrameCount computes overlap_samples / frame_stride for a chunk that
// produced frameCount output frames, per §4.D step 1.
func overlapFrameCount(frameCount int) int {
	if frameCount == 0 {
		return 0
	}
	frameStride := float64(acoustic.WindowSamples) / float64(frameCount)
	return int(math.Round(float64(overlapSamples) / frameStride))
}

// chunkSamples splits samples into acoustic.WindowSamples windows
// overlapping by overlapSamples, normalizing the real (non-padded) portion
// of each window and zero-padding any remainder afterward, per §6: "Padding
// beyond the real audio length uses zeros after normalization."
func chunkSamples(samples []float32) [][]float32 {
	const window = acoustic.WindowSamples
	stride := window - overlapSamples

	var chunks [][]float32
	for start := 0; start < len(samples); start += stride {
		end := start + window
		var real []float32
		if end <= len(samples) {
			real = samples[start:end]
		} else {
			real = samples[start:]
		}

		normalized := acoustic.Normalize(real)
		if len(normalized) < window {
			padded := make([]float32, window)
			copy(padded, normalized)
			normalized = padded
		}
		chunks = append(chunks, normalized)

		if end >= len(samples) {
			break
		}
	}
	return chunks
}

// collapse implements §4.D steps 2-5: per-frame argmax and top-k softmax,
// then greedy CTC collapse. A token is emitted whenever the frame's argmax
// ID differs from the immediately preceding frame's argmax ID (blank
// included); confidence is always taken at the frame where the run begins,
// per the DESIGN decision locking down run-start semantics.
func collapse(frames [][]float64, v *vocab.Vocabulary) []pronounce.PhonemePrediction {
	var out []pronounce.PhonemePrediction
	prev := noPrev
	blank := v.BlankID()

	for _, row := range frames {
		id, ranked := argmaxTopK(row, v)
		if id != prev && id != blank {
			out = append(out, pronounce.PhonemePrediction{
				Phoneme:    v.Token(id),
				Confidence: ranked[0].Confidence,
				TopK:       ranked,
			})
		}
		prev = id
	}
	return out
}

// argmaxTopK returns the argmax ID of row and its top-k softmax-probability
// entries, sorted by descending confidence.
func argmaxTopK(row []float64, v *vocab.Vocabulary) (int, []pronounce.RankedPhoneme) {
	probs := softmax(row)

	type idProb struct {
		id   int
		prob float64
	}
	ranked := make([]idProb, len(probs))
	for i, p := range probs {
		ranked[i] = idProb{id: i, prob: p}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].prob > ranked[j].prob })

	k := topK
	if k > len(ranked) {
		k = len(ranked)
	}
	out := make([]pronounce.RankedPhoneme, k)
	for i := range k {
		out[i] = pronounce.RankedPhoneme{
			Phoneme:    v.Token(ranked[i].id),
			Confidence: ranked[i].prob,
		}
	}

	argmax := 0
	if len(ranked) > 0 {
		argmax = ranked[0].id
	}
	return argmax, out
}

// softmax computes a numerically stable softmax over row.
func softmax(row []float64) []float64 {
	if len(row) == 0 {
		return nil
	}
	max := row[0]
	for _, v := range row[1:] {
		if v > max {
			max = v
		}
	}
	exps := make([]float64, len(row))
	var sum float64
	for i, v := range row {
		e := math.Exp(v - max)
		exps[i] = e
		sum += e
	}
	if sum == 0 {
		return exps
	}
	for i := range exps {
		exps[i] /= sum
	}
	return exps
}
