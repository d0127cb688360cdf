package handlers

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nfnt/resize"
	"github.com/rs/zerolog"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/Brownie44l1/digit-api/internal/classifier"
	"github.com/Brownie44l1/digit-api/internal/model"
	"github.com/Brownie44l1/digit-api/internal/preprocess"
)

type PredictionRequest struct {
	Image []float32 `json:"image"`
}

type Handler struct {
	classifier     *classifier.Classifier
	maxUploadBytes int64
}

func NewHandler(c *classifier.Classifier, maxUploadBytes int64) *Handler {
	return &Handler{
		classifier:     c,
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *Handler) Register(r gin.IRouter) {
	r.GET("/health", h.Health)
	r.POST("/predict", h.Predict)
	r.POST("/predict/image", h.PredictFromImage)
	r.POST("/normalize", h.Normalize)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// Predict classifies an already normalized feature vector.
func (h *Handler) Predict(c *gin.Context) {
	var req PredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON", "message": err.Error()})
		return
	}

	expectedSize := preprocess.Width * preprocess.Height
	if len(req.Image) != expectedSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid input size",
			"message": fmt.Sprintf("Expected %d values, got %d", expectedSize, len(req.Image)),
		})
		return
	}

	result, err := h.classifier.ClassifyFeatures(req.Image)
	if errors.Is(err, model.ErrInputSize) {
		// The caller chose the vector length here; on other routes a size
		// mismatch is a server fault.
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input size", "message": err.Error()})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// PredictFromImage classifies an uploaded drawing.
func (h *Handler) PredictFromImage(c *gin.Context) {
	raw, ok := h.readImage(c)
	if !ok {
		return
	}

	result, err := h.classifier.Classify(raw)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

const maxPreviewSize = 1024

// Normalize returns the monochrome image the model would see, as PNG. The
// optional size query parameter enlarges it for display without blurring.
func (h *Handler) Normalize(c *gin.Context) {
	size, err := strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(preprocess.Width)))
	if err != nil || size < preprocess.Width || size > maxPreviewSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("size must be between %d and %d", preprocess.Width, maxPreviewSize),
		})
		return
	}

	raw, ok := h.readImage(c)
	if !ok {
		return
	}

	norm, err := preprocess.Normalize(raw)
	if err != nil {
		respondError(c, err)
		return
	}

	var preview image.Image = norm.Image()
	if size != preprocess.Width {
		preview = resize.Resize(uint(size), uint(size), preview, resize.NearestNeighbor)
	}

	c.Header("Content-Type", "image/png")
	c.Status(http.StatusOK)
	if err := png.Encode(c.Writer, preview); err != nil {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("encode normalized image")
	}
}

func (h *Handler) readImage(c *gin.Context) (*preprocess.RawImage, bool) {
	log := zerolog.Ctx(c.Request.Context())
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	header, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "No image file provided. Use 'image' as the form field name",
			"message": err.Error(),
		})
		return nil, false
	}

	file, err := header.Open()
	if err != nil {
		log.Err(err).Msg("open form file")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to open form file", "message": err.Error()})
		return nil, false
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid image format. Supported: PNG, JPEG, GIF, BMP, WebP",
			"message": err.Error(),
		})
		return nil, false
	}

	log.Debug().
		Str("file", header.Filename).
		Int64("size", header.Size).
		Str("format", format).
		Int("width", img.Bounds().Dx()).
		Int("height", img.Bounds().Dy()).
		Msg("received drawing")

	raw, err := preprocess.NewRawImage(img)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return raw, true
}

func respondError(c *gin.Context, err error) {
	log := zerolog.Ctx(c.Request.Context())

	var inferErr *model.InferenceError
	switch {
	case errors.Is(err, preprocess.ErrInvalidImage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid image", "message": err.Error()})
	case errors.As(err, &inferErr):
		log.Err(err).Str("op", inferErr.Op).Msg("prediction failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Prediction failed"})
	default:
		log.Err(err).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}
