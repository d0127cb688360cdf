package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// OutputKind tells how the model's output tensor is read.
type OutputKind string

const (
	// OutputLabels is a batch of sampled class indices.
	OutputLabels OutputKind = "labels"
	// OutputScores is one probability per class. Models that emit logits
	// must set Metadata.Softmax.
	OutputScores OutputKind = "scores"
)

// Metadata describes the model artifact. It is stored next to the model as a
// JSON sidecar.
type Metadata struct {
	InputName   string     `json:"input_name"`
	OutputName  string     `json:"output_name"`
	InputShape  []int64    `json:"input_shape"`
	OutputShape []int64    `json:"output_shape"`
	OutputKind  OutputKind `json:"output_kind"`
	NumClasses  int        `json:"num_classes"`

	// Softmax turns raw score logits into probabilities before aggregation.
	Softmax bool `json:"softmax,omitempty"`
}

// DefaultMetadata matches the stock digit graph: a 1x28x28x1 float input
// named "input" and 100 sampled labels on "output".
func DefaultMetadata() Metadata {
	return Metadata{
		InputName:   "input",
		OutputName:  "output",
		InputShape:  []int64{1, 28, 28, 1},
		OutputShape: []int64{100},
		OutputKind:  OutputLabels,
		NumClasses:  10,
	}
}

func LoadMetadata(path string) (Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}

	metadata := DefaultMetadata()
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}

	if err := metadata.Validate(); err != nil {
		return Metadata{}, err
	}
	return metadata, nil
}

func (m Metadata) Validate() error {
	if m.InputName == "" || m.OutputName == "" {
		return fmt.Errorf("metadata: input and output names are required")
	}
	if volume(m.InputShape) <= 0 {
		return fmt.Errorf("metadata: invalid input shape %v", m.InputShape)
	}
	if volume(m.OutputShape) <= 0 {
		return fmt.Errorf("metadata: invalid output shape %v", m.OutputShape)
	}
	if m.NumClasses <= 0 {
		return fmt.Errorf("metadata: num_classes must be positive, got %d", m.NumClasses)
	}

	switch m.OutputKind {
	case OutputLabels:
		if m.Softmax {
			return fmt.Errorf("metadata: softmax applies only to score output")
		}
	case OutputScores:
		if volume(m.OutputShape) != m.NumClasses {
			return fmt.Errorf("metadata: score output has %d values for %d classes",
				volume(m.OutputShape), m.NumClasses)
		}
	default:
		return fmt.Errorf("metadata: unknown output kind %q", m.OutputKind)
	}
	return nil
}

// InputSize is the number of feature values one inference consumes.
func (m Metadata) InputSize() int {
	return volume(m.InputShape)
}

// OutputSize is the number of values one inference produces.
func (m Metadata) OutputSize() int {
	return volume(m.OutputShape)
}

func volume(shape []int64) int {
	if len(shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, dim := range shape {
		if dim <= 0 {
			return 0
		}
		n *= dim
	}
	return int(n)
}

// RawPrediction is the unprocessed model output. Exactly one of Labels and
// Scores is set.
type RawPrediction struct {
	Labels []int
	Scores []float32
}

// softmax maps logits to probabilities in place, shifted by the maximum so
// large logits do not overflow.
func softmax(scores []float32) {
	if len(scores) == 0 {
		return
	}

	peak := scores[0]
	for _, s := range scores[1:] {
		if s > peak {
			peak = s
		}
	}

	var sum float64
	exp := make([]float64, len(scores))
	for i, s := range scores {
		exp[i] = math.Exp(float64(s - peak))
		sum += exp[i]
	}
	for i := range scores {
		scores[i] = float32(exp[i] / sum)
	}
}
