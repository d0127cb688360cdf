package model

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// The onnxruntime environment is process wide. Every ONNXEngine holds one
// reference; the environment is torn down when the last engine that shares
// it closes, and never if something else initialized it first.
var env struct {
	sync.Mutex
	refs  int
	owned bool
}

// Replaced in tests so reference counting can run without the shared library.
var (
	ortIsInitialized = ort.IsInitialized
	ortInitialize    = func(libraryPath string) error {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		return ort.InitializeEnvironment()
	}
	ortDestroy = ort.DestroyEnvironment
)

func acquireEnvironment(libraryPath string) error {
	env.Lock()
	defer env.Unlock()

	if env.refs == 0 && !ortIsInitialized() {
		if err := ortInitialize(libraryPath); err != nil {
			return fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
		env.owned = true
	}
	env.refs++
	return nil
}

func releaseEnvironment() error {
	env.Lock()
	defer env.Unlock()

	if env.refs == 0 {
		return nil
	}
	env.refs--
	if env.refs > 0 || !env.owned {
		return nil
	}

	env.owned = false
	return ortDestroy()
}
