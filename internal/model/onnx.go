package model

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXEngine runs the model artifact through onnxruntime. It reuses one pair
// of tensors across calls and is therefore not safe for concurrent use.
type ONNXEngine struct {
	session  *ort.AdvancedSession
	Metadata Metadata

	inputTensor *ort.Tensor[float32]
	labelTensor *ort.Tensor[int64]
	scoreTensor *ort.Tensor[float32]
	hasEnv      bool
	closed      bool
}

// NewONNXEngine loads modelPath. libraryPath points at the onnxruntime shared
// library and may be empty to use the platform default.
func NewONNXEngine(modelPath, libraryPath string, metadata Metadata) (*ONNXEngine, error) {
	if err := metadata.Validate(); err != nil {
		return nil, err
	}

	e := &ONNXEngine{Metadata: metadata}

	if err := acquireEnvironment(libraryPath); err != nil {
		return nil, err
	}
	e.hasEnv = true

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.InputShape...))
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	e.inputTensor = inputTensor

	var output ort.ArbitraryTensor
	outputShape := ort.NewShape(metadata.OutputShape...)
	switch metadata.OutputKind {
	case OutputLabels:
		e.labelTensor, err = ort.NewEmptyTensor[int64](outputShape)
		output = e.labelTensor
	case OutputScores:
		e.scoreTensor, err = ort.NewEmptyTensor[float32](outputShape)
		output = e.scoreTensor
	}
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{output},
		nil)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	e.session = session

	return e, nil
}

func (e *ONNXEngine) Infer(features []float32) (*RawPrediction, error) {
	if e.closed || e.session == nil {
		return nil, &InferenceError{Op: "infer", Err: ErrClosed}
	}
	if err := checkInput(features, e.Metadata.InputSize()); err != nil {
		return nil, err
	}

	copy(e.inputTensor.GetData(), features)

	if err := e.session.Run(); err != nil {
		return nil, &InferenceError{Op: "run", Err: err}
	}

	prediction := &RawPrediction{}
	switch e.Metadata.OutputKind {
	case OutputLabels:
		samples := e.labelTensor.GetData()
		prediction.Labels = make([]int, len(samples))
		for i, label := range samples {
			prediction.Labels[i] = int(label)
		}
	case OutputScores:
		prediction.Scores = append([]float32(nil), e.scoreTensor.GetData()...)
	}

	if err := finishPrediction(prediction, e.Metadata); err != nil {
		return nil, err
	}
	return prediction, nil
}

// Close releases the session, its tensors and this engine's reference to the
// onnxruntime environment. It is safe to call more than once.
func (e *ONNXEngine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if e.session != nil {
		keep(e.session.Destroy())
	}
	if e.inputTensor != nil {
		keep(e.inputTensor.Destroy())
	}
	if e.labelTensor != nil {
		keep(e.labelTensor.Destroy())
	}
	if e.scoreTensor != nil {
		keep(e.scoreTensor.Destroy())
	}
	if e.hasEnv {
		keep(releaseEnvironment())
	}

	if firstErr != nil {
		return fmt.Errorf("failed to release ONNX engine: %w", firstErr)
	}
	return nil
}
