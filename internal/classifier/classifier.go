// Package classifier runs a drawing through normalization, the model and
// aggregation.
package classifier

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Brownie44l1/digit-api/internal/aggregate"
	"github.com/Brownie44l1/digit-api/internal/model"
	"github.com/Brownie44l1/digit-api/internal/preprocess"
)

// Classifier is safe for concurrent use only if its engine is; share one
// engine between goroutines through model.Locked.
type Classifier struct {
	engine model.Engine
	log    zerolog.Logger
}

func New(engine model.Engine, log zerolog.Logger) *Classifier {
	return &Classifier{
		engine: engine,
		log:    log.With().Str("component", "classifier").Logger(),
	}
}

// CheckMetadata rejects a model whose input does not take exactly one
// normalized drawing.
func CheckMetadata(m model.Metadata) error {
	if want := preprocess.Width * preprocess.Height; m.InputSize() != want {
		return fmt.Errorf("model input shape %v holds %d values, drawings produce %d",
			m.InputShape, m.InputSize(), want)
	}
	return nil
}

// Classify blocks until the model answers. Errors from the engine are
// returned unchanged and no partial prediction is produced.
func (c *Classifier) Classify(raw *preprocess.RawImage) (aggregate.FinalPrediction, error) {
	norm, err := preprocess.Normalize(raw)
	if err != nil {
		return aggregate.FinalPrediction{}, err
	}
	return c.ClassifyFeatures(preprocess.ToFeatureVector(norm))
}

// ClassifyFeatures skips normalization for callers that already hold a
// feature vector.
func (c *Classifier) ClassifyFeatures(features preprocess.FeatureVector) (aggregate.FinalPrediction, error) {
	raw, err := c.engine.Infer(features)
	if err != nil {
		return aggregate.FinalPrediction{}, err
	}

	prediction, err := aggregate.Aggregate(raw)
	if err != nil {
		return aggregate.FinalPrediction{}, err
	}

	c.log.Debug().
		Int("label", prediction.Label).
		Float64("confidence", prediction.Confidence).
		Int("samples", prediction.Samples).
		Msgf("Selecting %d @ %.0f%% confidence", prediction.Label, prediction.Confidence*100)

	return prediction, nil
}
