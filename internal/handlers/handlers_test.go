package handlers

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Brownie44l1/digit-api/internal/aggregate"
	"github.com/Brownie44l1/digit-api/internal/classifier"
	"github.com/Brownie44l1/digit-api/internal/model"
)

type stubEngine struct {
	prediction *model.RawPrediction
	err        error
}

func (s *stubEngine) Infer(features []float32) (*model.RawPrediction, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.prediction, nil
}

func (s *stubEngine) Close() error { return nil }

func newRouter(engine model.Engine) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(zerolog.Nop()), CORS())
	NewHandler(classifier.New(engine, zerolog.Nop()), 1<<20).Register(r)
	return r
}

func drawing(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 140, 140))
	for y := 0; y < 140; y++ {
		for x := 0; x < 140; x++ {
			img.Set(x, y, color.White)
			if x > 60 && x < 80 {
				img.Set(x, y, color.Black)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func multipartRequest(t *testing.T, path, field string, data []byte) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, "digit.png")
	if err != nil {
		t.Fatal(err)
	}
	part.Write(data)
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, path string, v any) *http.Request {
	t.Helper()
	body, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealth(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(&stubEngine{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Error("missing request id header")
	}
}

func TestPredict(t *testing.T) {
	ok := &stubEngine{prediction: &model.RawPrediction{Labels: []int{3, 3, 3, 7, 7}}}
	broken := &stubEngine{err: &model.InferenceError{Op: "run", Err: model.ErrClosed}}
	misconfigured := &stubEngine{err: &model.InferenceError{Op: "input", Err: model.ErrInputSize}}

	tests := []struct {
		name       string
		engine     model.Engine
		req        func(t *testing.T) *http.Request
		wantStatus int
	}{
		{
			name:   "feature vector",
			engine: ok,
			req: func(t *testing.T) *http.Request {
				return jsonRequest(t, "/predict", PredictionRequest{Image: make([]float32, 784)})
			},
			wantStatus: http.StatusOK,
		},
		{
			name:   "wrong size",
			engine: ok,
			req: func(t *testing.T) *http.Request {
				return jsonRequest(t, "/predict", PredictionRequest{Image: make([]float32, 100)})
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "bad json",
			engine: ok,
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/predict", bytes.NewBufferString("{"))
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "engine failure",
			engine: broken,
			req: func(t *testing.T) *http.Request {
				return jsonRequest(t, "/predict", PredictionRequest{Image: make([]float32, 784)})
			},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:   "feature vector size rejected by engine",
			engine: misconfigured,
			req: func(t *testing.T) *http.Request {
				return jsonRequest(t, "/predict", PredictionRequest{Image: make([]float32, 784)})
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "image upload against mismatched model",
			engine: misconfigured,
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/predict/image", "image", drawing(t))
			},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:   "image upload",
			engine: ok,
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/predict/image", "image", drawing(t))
			},
			wantStatus: http.StatusOK,
		},
		{
			name:   "image upload wrong field",
			engine: ok,
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/predict/image", "file", drawing(t))
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "not an image",
			engine: ok,
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/predict/image", "image", []byte("hello"))
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "image upload engine failure",
			engine: broken,
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/predict/image", "image", drawing(t))
			},
			wantStatus: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			newRouter(tt.engine).ServeHTTP(w, tt.req(t))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var got aggregate.FinalPrediction
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if got.Label != 3 || got.Confidence != 0.6 || got.Votes[7] != 2 {
				t.Errorf("response = %+v, want label 3 @ 0.6 with 2 votes for 7", got)
			}
		})
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(&stubEngine{}).ServeHTTP(w, multipartRequest(t, "/normalize", "image", drawing(t)))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}

	img, err := png.Decode(w.Body)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 28 || b.Dy() != 28 {
		t.Errorf("size = %dx%d, want 28x28", b.Dx(), b.Dy())
	}

	// Vertical bar through the middle, white edges.
	if y := color.GrayModel.Convert(img.At(14, 14)).(color.Gray).Y; y != 0 {
		t.Errorf("centre = %d, want black", y)
	}
	if y := color.GrayModel.Convert(img.At(0, 14)).(color.Gray).Y; y != 0xff {
		t.Errorf("edge = %d, want white", y)
	}
}

func TestNormalizeEndpointPreviewSize(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(&stubEngine{}).ServeHTTP(w, multipartRequest(t, "/normalize?size=280", "image", drawing(t)))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}

	img, err := png.Decode(w.Body)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 280 || b.Dy() != 280 {
		t.Fatalf("size = %dx%d, want 280x280", b.Dx(), b.Dy())
	}

	// Cell (14, 14) spans pixels 140..149; edges stay sharp.
	for _, x := range []int{140, 145, 149} {
		if y := color.GrayModel.Convert(img.At(x, 145)).(color.Gray).Y; y != 0 {
			t.Errorf("At(%d, 145) = %d, want black", x, y)
		}
	}
	if y := color.GrayModel.Convert(img.At(5, 145)).(color.Gray).Y; y != 0xff {
		t.Errorf("At(5, 145) = %d, want white", y)
	}

	for _, size := range []string{"10", "5000", "big"} {
		w := httptest.NewRecorder()
		newRouter(&stubEngine{}).ServeHTTP(w, multipartRequest(t, "/normalize?size="+size, "image", drawing(t)))
		if w.Code != http.StatusBadRequest {
			t.Errorf("size=%s: status = %d, want 400", size, w.Code)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(&stubEngine{}).ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/predict", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}
