package classifier

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Brownie44l1/fer-classifier/internal/emotion"
	"github.com/Brownie44l1/fer-classifier/internal/logging"
	"github.com/Brownie44l1/fer-classifier/internal/model"
	"github.com/Brownie44l1/fer-classifier/internal/preprocess"
	"github.com/Brownie44l1/fer-classifier/internal/repository"
	"github.com/Brownie44l1/fer-classifier/internal/source"
)

var (
	ErrInferenceTimeout = errors.New("inference timed out")
	ErrClassifierBusy   = errors.New("classifier busy, no run slot became free in time")
	ErrInvalidTensor    = errors.New("tensor must hold 2304 values in [0,1]")
	ErrBadOutput        = errors.New("classifier returned too few confidences")
)

// Outcome is the result of one classification attempt. Label is always one of
// the nine presentation states.
type Outcome struct {
	RequestID  string             `json:"request_id"`
	Source     source.Kind        `json:"source"`
	Label      emotion.Label      `json:"label"`
	Confidence float32            `json:"confidence"`
	Scores     map[string]float32 `json:"scores,omitempty"`
	Notice     string             `json:"notice,omitempty"`
	Cached     bool               `json:"cached"`
	Latency    time.Duration      `json:"-"`
}

type Options struct {
	Threshold float32
	Timeout   time.Duration
	CacheTTL  time.Duration
}

func DefaultOptions() Options {
	return Options{
		Threshold: emotion.DefaultThreshold,
		Timeout:   10 * time.Second,
		CacheTTL:  10 * time.Minute,
	}
}

// Service runs the preprocess, infer and decide pipeline. Runs are serialized:
// a classification holds the only run slot from model load until the session
// is closed.
type Service struct {
	loader    model.Loader
	cache     Cache
	repo      Repository
	logger    *zap.Logger
	threshold float32
	timeout   time.Duration
	cacheTTL  time.Duration
	slot      chan struct{}

	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewService constructs a service. cache and repo may be nil to disable
// caching and history.
func NewService(loader model.Loader, cache Cache, repo Repository, logger *zap.Logger, opts Options) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	if repo == nil {
		repo = nopRepository{}
	}
	defaults := DefaultOptions()
	if opts.Threshold <= 0 {
		opts.Threshold = defaults.Threshold
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaults.CacheTTL
	}
	return &Service{
		loader:         loader,
		cache:          cache,
		repo:           repo,
		logger:         logger.Named("classifier"),
		threshold:      opts.Threshold,
		timeout:        opts.Timeout,
		cacheTTL:       opts.CacheTTL,
		slot:           make(chan struct{}, 1),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// ClassifyBytes decodes an encoded picture and classifies it. The returned
// Outcome is never nil; on failure it carries emotion.Error and err says why.
func (s *Service) ClassifyBytes(ctx context.Context, src source.Kind, data []byte) (*Outcome, error) {
	img, err := decodeImage(data)
	if err != nil {
		requestID := uuid.NewString()
		return s.fail(ctx, requestID, src, "classifier.read_image", err, time.Now())
	}
	return s.ClassifyImage(ctx, src, img)
}

// ClassifyImage preprocesses img and classifies it.
func (s *Service) ClassifyImage(ctx context.Context, src source.Kind, img image.Image) (*Outcome, error) {
	started := time.Now()
	tensor, err := preprocessImage(img)
	if err != nil {
		return s.fail(ctx, uuid.NewString(), src, "classifier.preprocess", err, started)
	}
	return s.classify(ctx, uuid.NewString(), src, tensor, started)
}

// ClassifyTensor classifies an already preprocessed input.
func (s *Service) ClassifyTensor(ctx context.Context, src source.Kind, tensor preprocess.Tensor) (*Outcome, error) {
	started := time.Now()
	requestID := uuid.NewString()
	if !tensor.Valid() {
		return s.fail(ctx, requestID, src, "classifier.validate_tensor", ErrInvalidTensor, started)
	}
	return s.classify(ctx, requestID, src, tensor, started)
}

func (s *Service) classify(ctx context.Context, requestID string, src source.Kind, tensor preprocess.Tensor, started time.Time) (*Outcome, error) {
	opLogger := logging.WithOperation(s.logger, "classifier.classify", requestID)

	sum := sha1.Sum(tensor.Bytes())
	hash := hex.EncodeToString(sum[:])
	cacheKey := "classification:" + hash

	// Raw confidences are cached, so every service applies its own threshold.
	if confidences, ok := s.lookup(ctx, requestID, cacheKey); ok {
		outcome := s.decide(requestID, src, confidences, started)
		outcome.Cached = true
		s.record(ctx, outcome, hash)
		return outcome, nil
	}

	confidences, err := s.infer(ctx, tensor)
	if err != nil {
		return s.fail(ctx, requestID, src, "classifier.infer", err, started)
	}

	outcome := s.decide(requestID, src, confidences, started)
	opLogger.Info("classified image",
		zap.String("source", string(src)),
		zap.Stringer("label", outcome.Label),
		zap.Float32("confidence", outcome.Confidence),
		zap.Duration("latency", outcome.Latency))

	s.store(ctx, requestID, cacheKey, confidences)
	s.record(ctx, outcome, hash)
	return outcome, nil
}

func (s *Service) decide(requestID string, src source.Kind, confidences []float32, started time.Time) *Outcome {
	decision := emotion.Decide(confidences, s.threshold)
	return &Outcome{
		RequestID:  requestID,
		Source:     src,
		Label:      decision.Label,
		Confidence: decision.Confidence,
		Scores:     emotion.Scores(confidences),
		Latency:    time.Since(started),
	}
}

// decodeImage and preprocessImage turn decoder and resampler panics on hostile
// input into ErrUnreadableImage.
func decodeImage(data []byte) (img image.Image, err error) {
	defer recoverUnreadable("decoding", &err)
	return source.DecodeGalleryBytes(data)
}

func preprocessImage(img image.Image) (tensor preprocess.Tensor, err error) {
	defer recoverUnreadable("preprocessing", &err)
	return preprocess.FromImage(img)
}

func recoverUnreadable(stage string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: %s panicked: %v", source.ErrUnreadableImage, stage, r)
	}
}

func (s *Service) fail(ctx context.Context, requestID string, src source.Kind, operation string, cause error, started time.Time) (*Outcome, error) {
	err := logging.NewOperationError(operation, requestID, cause)
	outcome := &Outcome{
		RequestID: requestID,
		Source:    src,
		Label:     emotion.Error,
		Latency:   time.Since(started),
	}
	if errors.Is(cause, model.ErrModelLoad) {
		outcome.Notice = "Error: " + cause.Error()
	}
	logging.WithOperation(s.logger, operation, requestID).Error("classification failed",
		zap.String("source", string(src)), zap.Error(cause))
	s.record(ctx, outcome, "")
	return outcome, err
}

// infer waits up to the configured timeout for the run slot, then loads, runs
// and closes one session within a fresh timeout. Time spent queued never
// counts against inference. On timeout the slot stays held until the
// abandoned run finishes and its session is closed.
func (s *Service) infer(ctx context.Context, input []float32) ([]float32, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		confidences []float32
		err         error
	}
	done := make(chan result, 1)
	go func() {
		defer func() { <-s.slot }()
		confidences, err := s.run(ctx, input)
		done <- result{confidences, err}
	}()

	select {
	case r := <-done:
		return r.confidences, r.err
	case <-ctx.Done():
		return nil, contextError(ctx)
	}
}

func (s *Service) run(ctx context.Context, input []float32) (confidences []float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("classifier panicked: %v", r)
		}
	}()

	session, err := s.loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			s.logger.Warn("failed to release classifier session", zap.Error(cerr))
		}
	}()

	confidences, err = session.Predict(input)
	if err != nil {
		return nil, err
	}
	if len(confidences) < len(emotion.Classes) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrBadOutput, len(confidences), len(emotion.Classes))
	}
	return confidences, nil
}

func (s *Service) acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	select {
	case s.slot <- struct{}{}:
		return nil
	case <-waitCtx.Done():
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrClassifierBusy
	}
}

func contextError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrInferenceTimeout
	}
	return ctx.Err()
}

type cachedClassification struct {
	Confidences []float32 `json:"confidences"`
}

func (s *Service) lookup(ctx context.Context, requestID, key string) ([]float32, bool) {
	var raw string
	err := s.withCacheRetry(ctx, requestID, "cache.get.classification", func() error {
		value, err := s.cache.Get(ctx, key)
		if err != nil {
			return err
		}
		raw = value
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			logging.WithOperation(s.logger, "classifier.lookup", requestID).Warn("failed to read cache", zap.Error(err))
		}
		return nil, false
	}

	var cached cachedClassification
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		logging.WithOperation(s.logger, "classifier.lookup", requestID).Warn("failed to decode cached result", zap.Error(err))
		return nil, false
	}
	if len(cached.Confidences) < len(emotion.Classes) {
		return nil, false
	}
	return cached.Confidences, true
}

func (s *Service) store(ctx context.Context, requestID, key string, confidences []float32) {
	payload, err := json.Marshal(cachedClassification{Confidences: confidences})
	if err != nil {
		s.logger.Error("failed to serialize classification", zap.Error(err))
		return
	}
	if err := s.withCacheRetry(ctx, requestID, "cache.set.classification", func() error {
		return s.cache.Set(ctx, key, string(payload), s.cacheTTL)
	}); err != nil {
		logging.WithOperation(s.logger, "classifier.store", requestID).Warn("failed to cache classification", zap.Error(err))
	}
}

// record persists the attempt. History failures never change the outcome.
func (s *Service) record(ctx context.Context, outcome *Outcome, hash string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	scores := ""
	if len(outcome.Scores) > 0 {
		if raw, err := json.Marshal(outcome.Scores); err == nil {
			scores = string(raw)
		}
	}
	log := &repository.ClassificationLog{
		RequestID:  outcome.RequestID,
		Source:     string(outcome.Source),
		Label:      outcome.Label.String(),
		Confidence: outcome.Confidence,
		Scores:     scores,
		TensorHash: hash,
		LatencyMs:  outcome.Latency.Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.SaveLog(ctx, log); err != nil {
		logging.WithOperation(s.logger, "classifier.record", outcome.RequestID).Warn("failed to persist classification", zap.Error(err))
	}
}

func (s *Service) withCacheRetry(ctx context.Context, requestID, operation string, fn func() error) error {
	backoff := s.initialBackoff
	opLogger := logging.WithOperation(s.logger, operation, requestID)
	var err error
	for attempt := 0; attempt < s.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= s.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("cache operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}
		if errors.Is(err, ErrCacheMiss) {
			return err
		}
		if !isTransientError(err) {
			break
		}
		opLogger.Warn("transient cache error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}
	return false
}
