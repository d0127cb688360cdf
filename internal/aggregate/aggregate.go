// Package aggregate reduces raw model output to a single digit.
package aggregate

import (
	"fmt"
	"sort"

	"github.com/Brownie44l1/digit-api/internal/model"
)

// FinalPrediction is the selected label and the share of evidence behind it.
// Confidence is a fraction in [0, 1]; formatting it is left to the caller.
type FinalPrediction struct {
	Label      int         `json:"label"`
	Confidence float64     `json:"confidence"`
	Samples    int         `json:"samples,omitempty"`
	Votes      map[int]int `json:"votes,omitempty"`
}

// Vote is how many samples in a batch carried Label.
type Vote struct {
	Label int
	Count int
}

// Tally counts each observed label and orders the result by count
// descending, then label ascending. Labels that never occur are omitted.
func Tally(labels []int) []Vote {
	counts := make(map[int]int)
	for _, label := range labels {
		counts[label]++
	}

	votes := make([]Vote, 0, len(counts))
	for label, count := range counts {
		votes = append(votes, Vote{Label: label, Count: count})
	}

	sort.Slice(votes, func(i, j int) bool {
		if votes[i].Count != votes[j].Count {
			return votes[i].Count > votes[j].Count
		}
		return votes[i].Label < votes[j].Label
	})
	return votes
}

// Aggregate picks the winning label. A label batch is decided by majority
// vote with ties going to the lowest label; a score vector by its highest
// score, again lowest index on ties. Scores are expected to be
// probabilities; engines apply softmax first for models that emit logits.
func Aggregate(raw *model.RawPrediction) (FinalPrediction, error) {
	switch {
	case raw == nil:
	case len(raw.Labels) > 0:
		return fromLabels(raw.Labels), nil
	case len(raw.Scores) > 0:
		return fromScores(raw.Scores), nil
	}
	return FinalPrediction{}, &model.InferenceError{
		Op:  "aggregate",
		Err: fmt.Errorf("%w: nothing to aggregate", model.ErrEmptyBatch),
	}
}

func fromLabels(labels []int) FinalPrediction {
	votes := Tally(labels)
	winner := votes[0]

	histogram := make(map[int]int, len(votes))
	for _, v := range votes {
		histogram[v.Label] = v.Count
	}

	return FinalPrediction{
		Label:      winner.Label,
		Confidence: float64(winner.Count) / float64(len(labels)),
		Samples:    len(labels),
		Votes:      histogram,
	}
}

func fromScores(scores []float32) FinalPrediction {
	best := 0
	for i, s := range scores {
		if s > scores[best] {
			best = i
		}
	}

	confidence := float64(scores[best])
	switch {
	case confidence < 0:
		confidence = 0
	case confidence > 1:
		confidence = 1
	}

	return FinalPrediction{Label: best, Confidence: confidence}
}
