package handlers

import (
	"context"
	"errors"
	"image"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Brownie44l1/fer-classifier/internal/classifier"
	"github.com/Brownie44l1/fer-classifier/internal/emotion"
	"github.com/Brownie44l1/fer-classifier/internal/model"
	"github.com/Brownie44l1/fer-classifier/internal/preprocess"
	"github.com/Brownie44l1/fer-classifier/internal/presentation"
	"github.com/Brownie44l1/fer-classifier/internal/repository"
	"github.com/Brownie44l1/fer-classifier/internal/source"
)

// DefaultMaxUploadSize caps gallery uploads and camera frames.
const DefaultMaxUploadSize = 10 << 20

// Classifier is the subset of classifier.Service the routes need.
type Classifier interface {
	ClassifyBytes(ctx context.Context, src source.Kind, data []byte) (*classifier.Outcome, error)
	ClassifyImage(ctx context.Context, src source.Kind, img image.Image) (*classifier.Outcome, error)
	ClassifyTensor(ctx context.Context, src source.Kind, tensor preprocess.Tensor) (*classifier.Outcome, error)
	GetResult(ctx context.Context, requestID string) (*repository.ClassificationLog, error)
	Summary(ctx context.Context) (*classifier.Summary, error)
}

type Handler struct {
	classifier    Classifier
	logger        *zap.Logger
	maxUploadSize int64
}

func NewHandler(c Classifier, logger *zap.Logger, maxUploadSize int64) *Handler {
	if maxUploadSize <= 0 {
		maxUploadSize = DefaultMaxUploadSize
	}
	return &Handler{
		classifier:    c,
		logger:        logger.Named("handlers"),
		maxUploadSize: maxUploadSize,
	}
}

// RegisterRoutes wires the HTTP handlers to the Gin router. A nil auth
// middleware leaves every route open.
func RegisterRoutes(router *gin.Engine, h *Handler, auth gin.HandlerFunc) {
	router.Use(CORS())
	router.GET("/health", h.Health)

	protected := router.Group("/")
	if auth != nil {
		protected.Use(auth)
	}
	protected.POST("/predict", h.Predict)
	protected.POST("/predict/image", h.PredictFromImage)
	protected.POST("/predict/camera", h.PredictFromCamera)
	protected.GET("/result/:id", h.Result)
	protected.GET("/metrics/summary", h.MetricsSummary)
}

// CORS allows browser clients from any origin.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

// RequestLogger logs one line per request.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

type predictionRequest struct {
	Image []float32 `json:"image"`
}

type cameraRequest struct {
	Permission string   `json:"permission"`
	Width      int      `json:"width"`
	Height     int      `json:"height"`
	Pixels     []uint32 `json:"pixels"`
}

type predictionResponse struct {
	RequestID  string              `json:"request_id"`
	Source     source.Kind         `json:"source"`
	Label      emotion.Label       `json:"label"`
	Confidence float32             `json:"confidence"`
	Scores     map[string]float32  `json:"scores,omitempty"`
	Dialog     presentation.Dialog `json:"dialog"`
	Notice     string              `json:"notice,omitempty"`
	Cached     bool                `json:"cached"`
	Error      string              `json:"error,omitempty"`
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// Predict classifies a raw, already preprocessed tensor.
func (h *Handler) Predict(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)

	var req predictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if isTooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON"})
		return
	}
	if len(req.Image) != preprocess.TensorLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected 2304 values"})
		return
	}

	outcome, err := h.classifier.ClassifyTensor(c.Request.Context(), source.Gallery, preprocess.Tensor(req.Image))
	h.respond(c, outcome, err)
}

// PredictFromImage classifies an uploaded picture (the gallery path).
func (h *Handler) PredictFromImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)

	file, err := c.FormFile("image")
	if err != nil {
		if isTooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "no image file provided, use 'image' as the form field name"})
		return
	}

	if ct := file.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || !source.SupportedContentTypes[mediaType] {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported image type"})
			return
		}
	}

	src, err := file.Open()
	if err != nil {
		h.respond(c, nil, errors.Join(source.ErrUnreadableImage, err))
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		h.respond(c, nil, errors.Join(source.ErrUnreadableImage, err))
		return
	}

	h.logger.Debug("received upload", zap.String("filename", file.Filename), zap.Int64("size", file.Size))
	outcome, err := h.classifier.ClassifyBytes(c.Request.Context(), source.Gallery, data)
	h.respond(c, outcome, err)
}

// PredictFromCamera classifies an in-memory camera frame. The permission field
// is required; a missing or denied permission ends the attempt with advice on
// how to grant it.
func (h *Handler) PredictFromCamera(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)

	var req cameraRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if isTooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "frame too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON"})
		return
	}

	permission, err := source.ParsePermission(req.Permission)
	if errors.Is(err, source.ErrPermissionRequired) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  err.Error(),
			"dialog": presentation.PermissionDialog(&source.PermissionError{}),
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var permErr *source.PermissionError
	if errors.As(source.CheckCamera(permission), &permErr) {
		c.JSON(http.StatusForbidden, gin.H{
			"error":  permErr.Error(),
			"dialog": presentation.PermissionDialog(permErr),
		})
		return
	}

	bitmap, err := source.NewBitmap(req.Width, req.Height, req.Pixels)
	if err != nil {
		h.respond(c, nil, err)
		return
	}

	outcome, err := h.classifier.ClassifyImage(c.Request.Context(), source.Camera, bitmap)
	h.respond(c, outcome, err)
}

func (h *Handler) Result(c *gin.Context) {
	log, err := h.classifier.GetResult(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, classifier.ErrHistoryDisabled):
			c.JSON(http.StatusNotImplemented, gin.H{"error": "history is disabled"})
		case errors.Is(err, repository.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
		default:
			h.logger.Error("failed to load result", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load result"})
		}
		return
	}

	dialog, ok := presentation.Lookup(log.Label)
	if !ok {
		dialog = presentation.ForLabel(emotion.Error)
	}
	c.JSON(http.StatusOK, gin.H{
		"request_id": log.RequestID,
		"source":     log.Source,
		"label":      log.Label,
		"confidence": log.Confidence,
		"dialog":     dialog,
		"latency_ms": log.LatencyMs,
		"created_at": log.CreatedAt,
	})
}

func (h *Handler) MetricsSummary(c *gin.Context) {
	summary, err := h.classifier.Summary(c.Request.Context())
	if err != nil {
		if errors.Is(err, classifier.ErrHistoryDisabled) {
			c.JSON(http.StatusNotImplemented, gin.H{"error": "history is disabled"})
			return
		}
		h.logger.Error("failed to build summary", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build summary"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// respond renders an outcome. Failed attempts still carry the error dialog so
// the client always has one of the nine states to show.
func (h *Handler) respond(c *gin.Context, outcome *classifier.Outcome, err error) {
	if outcome == nil {
		outcome = &classifier.Outcome{Label: emotion.Error}
	}

	resp := predictionResponse{
		RequestID:  outcome.RequestID,
		Source:     outcome.Source,
		Label:      outcome.Label,
		Confidence: outcome.Confidence,
		Scores:     outcome.Scores,
		Dialog:     presentation.ForLabel(outcome.Label),
		Notice:     outcome.Notice,
		Cached:     outcome.Cached,
	}
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
		resp.Error = http.StatusText(status)
		h.logger.Warn("prediction failed", zap.String("request_id", outcome.RequestID), zap.Error(err))
	}
	c.JSON(status, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, source.ErrUnreadableImage),
		errors.Is(err, preprocess.ErrEmptyImage),
		errors.Is(err, classifier.ErrInvalidTensor):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrModelLoad),
		errors.Is(err, classifier.ErrClassifierBusy):
		return http.StatusServiceUnavailable
	case errors.Is(err, classifier.ErrInferenceTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
