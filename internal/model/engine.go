// Package model binds the digit classifier behind the Engine contract.
package model

import (
	"fmt"
	"sync"
)

// Engine maps a feature vector to raw model output. Implementations are not
// required to be safe for concurrent use; wrap a shared handle with Locked.
// Close must be called once the engine is no longer needed.
type Engine interface {
	Infer(features []float32) (*RawPrediction, error)
	Close() error
}

type lockedEngine struct {
	mu     sync.Mutex
	engine Engine
}

// Locked serializes every call on engine.
func Locked(engine Engine) Engine {
	return &lockedEngine{engine: engine}
}

func (l *lockedEngine) Infer(features []float32) (*RawPrediction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.engine.Infer(features)
}

func (l *lockedEngine) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.engine.Close()
}

func checkInput(features []float32, want int) error {
	if len(features) != want {
		return &InferenceError{
			Op:  "input",
			Err: fmt.Errorf("%w: expected %d values, got %d", ErrInputSize, want, len(features)),
		}
	}
	return nil
}

// finishPrediction validates p and, when the model emits logits, converts
// its scores to probabilities.
func finishPrediction(p *RawPrediction, m Metadata) error {
	if err := checkPrediction(p, m.NumClasses); err != nil {
		return err
	}
	if m.Softmax {
		softmax(p.Scores)
	}
	return nil
}

// checkPrediction rejects output the aggregator must never see.
func checkPrediction(p *RawPrediction, numClasses int) error {
	switch {
	case p == nil, len(p.Labels) == 0 && len(p.Scores) == 0:
		return &InferenceError{Op: "output", Err: ErrEmptyBatch}
	case len(p.Labels) > 0 && len(p.Scores) > 0:
		return &InferenceError{Op: "output", Err: fmt.Errorf("both labels and scores returned")}
	case len(p.Scores) > 0 && len(p.Scores) != numClasses:
		return &InferenceError{
			Op:  "output",
			Err: fmt.Errorf("got %d scores for %d classes", len(p.Scores), numClasses),
		}
	}

	for i, label := range p.Labels {
		if label < 0 || label >= numClasses {
			return &InferenceError{
				Op:  "output",
				Err: fmt.Errorf("%w: sample %d is %d, want [0, %d)", ErrLabelRange, i, label, numClasses),
			}
		}
	}
	return nil
}
