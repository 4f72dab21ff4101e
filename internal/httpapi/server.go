package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"scribeflow/internal/audio"
	"scribeflow/internal/config"
	"scribeflow/internal/model"
	"scribeflow/internal/pipeline"
	"scribeflow/internal/pool"
	"scribeflow/internal/postprocess"
	"scribeflow/internal/store"
	"scribeflow/internal/transcript"
	"scribeflow/internal/transcription"
	"scribeflow/internal/upstream/inference"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type PipelineService interface {
	Process(ctx context.Context, job pipeline.Job) (pipeline.Result, error)
}

// DeviceRegistry is the view of the model pool the API needs for health
// probes and administrative reloads.
type DeviceRegistry interface {
	Replicas() []pool.Replica
	Reconfigure(ctx context.Context, device int, fn func(context.Context, *pool.Replica) error) error
}

type AudioFetcher interface {
	Fetch(ctx context.Context, url string) (audio.Audio, error)
}

// HealthChecker is implemented by replica models that can report whether
// their worker has the models loaded.
type HealthChecker interface {
	CheckModels(ctx context.Context) error
}

type MetricsObserver interface {
	ObserveHTTP(route, method string, status int, duration time.Duration)
}

type Dependencies struct {
	Pipeline       PipelineService
	Devices        DeviceRegistry
	Fetcher        AudioFetcher
	Store          store.Store
	Metrics        MetricsObserver
	MetricsHandler http.Handler
}

type server struct {
	cfg          config.Config
	logger       *slog.Logger
	pipeline     PipelineService
	devices      DeviceRegistry
	fetcher      AudioFetcher
	store        store.Store
	metrics      MetricsObserver
	metricsRoute http.Handler
}

type ctxKey string

const (
	requestIDHeader  = "X-Request-Id"
	requestIDContext = ctxKey("request_id")
	maxJSONBodyBytes = 1 << 20
	serviceName      = "ScribeFlow"
)

func NewServer(cfg config.Config, logger *slog.Logger, deps Dependencies) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Pipeline == nil || deps.Devices == nil || deps.Fetcher == nil || deps.Store == nil {
		panic("httpapi: all dependencies are required")
	}

	s := &server{
		cfg:          cfg,
		logger:       logger,
		pipeline:     deps.Pipeline,
		devices:      deps.Devices,
		fetcher:      deps.Fetcher,
		store:        deps.Store,
		metrics:      deps.Metrics,
		metricsRoute: deps.MetricsHandler,
	}

	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusNotFound, "not_found", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
	})

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(s.authMiddleware)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if s.metricsRoute != nil {
		r.Handle("/metrics", s.metricsRoute)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/audio", s.handleAudio)
		r.Post("/audio-url", s.handleAudioURL)
		r.Get("/jobs/{id}", s.handleGetJob)
		r.Post("/admin/devices/{device}/model", s.handleLoadModel)
	})

	return r
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.HealthResponse{OK: true})
}

// handleReadyz probes every device worker in parallel. Replicas whose
// transcriber cannot report health count as ready.
func (s *server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	replicas := s.devices.Replicas()
	statuses := make([]model.DeviceStatus, len(replicas))
	var g errgroup.Group
	for i, replica := range replicas {
		statuses[i] = model.DeviceStatus{Device: replica.Device, OK: true}
		checker, ok := replica.Transcriber.(HealthChecker)
		if !ok {
			continue
		}
		g.Go(func() error {
			if err := checker.CheckModels(ctx); err != nil {
				statuses[i].OK = false
				statuses[i].Error = err.Error()
				return fmt.Errorf("device %d: %w", replica.Device, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.Warn("readiness probe failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		writeJSON(w, http.StatusServiceUnavailable, model.ReadyResponse{OK: false, ServiceName: serviceName, Devices: statuses})
		return
	}
	writeJSON(w, http.StatusOK, model.ReadyResponse{OK: true, ServiceName: serviceName, Devices: statuses})
}

func (s *server) handleAudio(w http.ResponseWriter, r *http.Request) {
	file, form, err := s.readMultipartAudio(w, r)
	if err != nil {
		s.handleMultipartReadError(w, r, err)
		return
	}
	defer cleanupMultipartForm(form)
	defer func() { _ = file.Close() }()

	opts, err := parseFormOptions(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	decoded, err := audio.DecodeWAV(file)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}

	s.dispatch(w, r, decoded, opts)
}

func (s *server) handleAudioURL(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	defer func() { _ = r.Body.Close() }()

	var req model.AudioURLRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		s.handleJSONDecodeError(w, r, err)
		return
	}
	if err := ensureBodyFullyConsumed(decoder); err != nil {
		s.handleJSONDecodeError(w, r, err)
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		s.writeError(w, r, http.StatusBadRequest, "invalid_request", "url must be an http(s) URL", nil)
		return
	}
	if err := validateOptions(req.JobOptions); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	decoded, err := s.fetcher.Fetch(r.Context(), req.URL)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}

	s.dispatch(w, r, decoded, req.JobOptions)
}

// dispatch runs the job inline, or in the background when async was
// requested.
func (s *server) dispatch(w http.ResponseWriter, r *http.Request, decoded audio.Audio, opts model.JobOptions) {
	job, format, err := s.buildJob(uuid.NewString(), decoded, opts)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	if opts.Async {
		if err := s.store.Save(r.Context(), store.Record{ID: job.ID, Status: store.StatusRunning, UpdatedAt: time.Now().UTC()}); err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		go s.runAsync(context.WithoutCancel(r.Context()), job, opts, format)
		writeJSON(w, http.StatusAccepted, model.JobAcceptedResponse{JobID: job.ID, Status: string(store.StatusRunning)})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()
	res, err := s.pipeline.Process(ctx, job)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAudioResponse(res, opts, job.Options.Language, format))
}

func (s *server) runAsync(ctx context.Context, job pipeline.Job, opts model.JobOptions, format postprocess.TimestampFormat) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()
	logger := s.logger.With("request_id", requestIDFromContext(ctx), "job_id", job.ID)

	rec := store.Record{ID: job.ID, Status: store.StatusCompleted}
	res, err := s.pipeline.Process(ctx, job)
	if err == nil {
		rec.Result, err = json.Marshal(toAudioResponse(res, opts, job.Options.Language, format))
	}
	if err != nil {
		rec.Status = store.StatusFailed
		rec.Error = err.Error()
		rec.Result = nil
	}
	rec.UpdatedAt = time.Now().UTC()

	saveCtx, saveCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer saveCancel()
	if err := s.store.Save(saveCtx, rec); err != nil {
		logger.Error("saving job result failed", "status", rec.Status, "error", err)
		return
	}
	logger.Info("async job finished", "status", rec.Status)
}

func (s *server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_request", "job id must be a UUID", nil)
		return
	}

	rec, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}

	resp := model.JobStatusResponse{
		JobID:     rec.ID,
		Status:    string(rec.Status),
		Error:     rec.Error,
		UpdatedAt: rec.UpdatedAt.Format(time.RFC3339),
	}
	if len(rec.Result) > 0 {
		var result model.AudioResponse
		if err := json.Unmarshal(rec.Result, &result); err != nil {
			s.writeMappedError(w, r, fmt.Errorf("decode stored result: %w", err))
			return
		}
		resp.Result = &result
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleLoadModel(w http.ResponseWriter, r *http.Request) {
	device, err := strconv.Atoi(chi.URLParam(r, "device"))
	if err != nil || device < 0 {
		s.writeError(w, r, http.StatusBadRequest, "invalid_request", "device must be a non-negative integer", nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	defer func() { _ = r.Body.Close() }()
	var req model.LoadModelRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		s.handleJSONDecodeError(w, r, err)
		return
	}
	req.ModelPath = strings.TrimSpace(req.ModelPath)
	req.Language = strings.ToLower(strings.TrimSpace(req.Language))
	if req.ModelPath == "" || req.Language == "" {
		s.writeError(w, r, http.StatusBadRequest, "invalid_request", "model_path and language are required", nil)
		return
	}

	err = s.devices.Reconfigure(r.Context(), device, func(ctx context.Context, replica *pool.Replica) error {
		if replica.Loader == nil {
			return pool.ErrNoLoader
		}
		return replica.Loader.LoadModel(ctx, req.ModelPath, req.Language)
	})
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}

	s.logger.Info("model reloaded",
		"request_id", requestIDFromContext(r.Context()),
		"device", device,
		"model_path", req.ModelPath,
		"language", req.Language,
	)
	writeJSON(w, http.StatusOK, model.LoadModelResponse{Device: device, ModelPath: req.ModelPath, Language: req.Language})
}

func (s *server) buildJob(id string, decoded audio.Audio, opts model.JobOptions) (pipeline.Job, postprocess.TimestampFormat, error) {
	format, err := postprocess.ParseTimestampFormat(opts.Timestamps)
	if err != nil {
		return pipeline.Job{}, "", err
	}
	if len(decoded.Channels) == 0 {
		return pipeline.Job{}, "", pipeline.ErrNoAudio
	}
	if opts.DualChannel && len(decoded.Channels) < 2 {
		return pipeline.Job{}, "", errors.New("dual_channel requires audio with at least two channels")
	}

	topts := transcription.DefaultOptions()
	topts.Language = s.cfg.DefaultLanguage
	if lang := strings.ToLower(strings.TrimSpace(opts.SourceLang)); lang != "" {
		topts.Language = lang
	}
	topts.Vocab = opts.Vocab
	topts.VADFilter = opts.InternalVAD
	topts.WordTimestamps = opts.WordTimestamps
	topts.RepetitionPenalty = s.cfg.RepetitionPenalty
	if opts.RepetitionPenalty != nil {
		topts.RepetitionPenalty = *opts.RepetitionPenalty
	}
	topts.CompressionRatioThreshold = s.cfg.CompressionRatioThreshold
	topts.LogProbThreshold = s.cfg.LogProbThreshold
	topts.NoSpeechThreshold = s.cfg.NoSpeechThreshold

	return pipeline.Job{
		ID:             id,
		Channels:       decoded.Channels,
		Duration:       decoded.Duration,
		MultiChannel:   opts.DualChannel,
		Diarization:    opts.Diarization,
		NumSpeakers:    opts.NumSpeakers,
		WordTimestamps: opts.WordTimestamps,
		Options:        topts,
	}, format, nil
}

func validateOptions(opts model.JobOptions) error {
	if opts.NumSpeakers < 0 {
		return errors.New("num_speakers must be >= 0")
	}
	if opts.RepetitionPenalty != nil && *opts.RepetitionPenalty <= 0 {
		return errors.New("repetition_penalty must be > 0")
	}
	if _, err := postprocess.ParseTimestampFormat(opts.Timestamps); err != nil {
		return err
	}
	return nil
}

func parseFormOptions(r *http.Request) (model.JobOptions, error) {
	var opts model.JobOptions
	var err error

	opts.SourceLang = strings.TrimSpace(r.FormValue("source_lang"))
	opts.Timestamps = strings.TrimSpace(r.FormValue("timestamps"))
	opts.JobName = strings.TrimSpace(r.FormValue("job_name"))
	opts.Vocab = transcription.SplitVocabulary(r.FormValue("vocab"))

	bools := []struct {
		field string
		dst   *bool
	}{
		{"diarization", &opts.Diarization},
		{"dual_channel", &opts.DualChannel},
		{"word_timestamps", &opts.WordTimestamps},
		{"internal_vad", &opts.InternalVAD},
		{"async", &opts.Async},
	}
	for _, b := range bools {
		if *b.dst, err = parseOptionalBool(r.FormValue(b.field)); err != nil {
			return model.JobOptions{}, fmt.Errorf("%s must be a boolean", b.field)
		}
	}

	if raw := strings.TrimSpace(r.FormValue("num_speakers")); raw != "" {
		if opts.NumSpeakers, err = strconv.Atoi(raw); err != nil {
			return model.JobOptions{}, errors.New("num_speakers must be an integer")
		}
	}
	if raw := strings.TrimSpace(r.FormValue("repetition_penalty")); raw != "" {
		penalty, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return model.JobOptions{}, errors.New("repetition_penalty must be a number")
		}
		opts.RepetitionPenalty = &penalty
	}

	if err := validateOptions(opts); err != nil {
		return model.JobOptions{}, err
	}
	return opts, nil
}

func toAudioResponse(res pipeline.Result, opts model.JobOptions, language string, format postprocess.TimestampFormat) model.AudioResponse {
	utterances := make([]model.Utterance, 0, len(res.Segments))
	for _, seg := range res.Segments {
		u := model.Utterance{
			Text:    seg.Text,
			Start:   postprocess.ConvertTimestamp(seg.Start, format),
			End:     postprocess.ConvertTimestamp(seg.End, format),
			Speaker: seg.Speaker,
		}
		for _, w := range seg.Words {
			u.Words = append(u.Words, model.Word{
				Word:  w.Word,
				Start: postprocess.ConvertTimestamp(w.Start, format),
				End:   postprocess.ConvertTimestamp(w.End, format),
				Score: w.Score,
			})
		}
		utterances = append(utterances, u)
	}

	times := model.ProcessTimes{
		Total:          res.Timings.Total.Seconds(),
		Transcription:  res.Timings.Transcription.Seconds(),
		PostProcessing: res.Timings.PostProcessing.Seconds(),
	}
	if res.Timings.Diarization != nil {
		d := res.Timings.Diarization.Seconds()
		times.Diarization = &d
	}

	vocab := opts.Vocab
	if vocab == nil {
		vocab = []string{}
	}
	return model.AudioResponse{
		JobID:          res.JobID,
		Utterances:     utterances,
		AudioDuration:  res.Duration,
		Diarization:    opts.Diarization,
		DualChannel:    opts.DualChannel,
		SourceLang:     language,
		Timestamps:     string(format),
		Vocab:          vocab,
		WordTimestamps: opts.WordTimestamps,
		InternalVAD:    opts.InternalVAD,
		JobName:        opts.JobName,
		NumSpeakers:    res.NumSpeakers,
		Device:         res.Device,
		FallbackUsed:   res.FallbackUsed,
		ProcessTimes:   times,
	}
}

func (s *server) readMultipartAudio(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(min(s.cfg.MaxUploadBytes, 8<<20)); err != nil {
		return nil, nil, err
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, r.MultipartForm, err
	}
	return file, r.MultipartForm, nil
}

func (s *server) handleMultipartReadError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		s.writeError(w, r, http.StatusRequestEntityTooLarge, "request_too_large", fmt.Sprintf("request exceeds %d bytes", s.cfg.MaxUploadBytes), nil)
		return
	}
	if errors.Is(err, http.ErrMissingFile) {
		s.writeError(w, r, http.StatusBadRequest, "invalid_request", "multipart field 'file' is required", nil)
		return
	}
	s.writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid multipart form data", nil)
}

func (s *server) handleJSONDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		s.writeError(w, r, http.StatusRequestEntityTooLarge, "request_too_large", "JSON body too large", nil)
		return
	}
	s.writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body", nil)
}

func (s *server) writeMappedError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"
	message := "request failed"
	details := detailsForError(err)

	var upstreamErr *inference.Error
	var downloadErr *audio.DownloadError
	switch {
	case errors.As(err, &upstreamErr):
		status = http.StatusBadGateway
		code = "upstream_request_failed"
		message = "model worker request failed"
	case errors.Is(err, transcript.ErrMalformed):
		status = http.StatusBadGateway
		code = "malformed_model_output"
		message = "model returned malformed output"
	case errors.As(err, &downloadErr):
		status = http.StatusBadGateway
		code = "download_failed"
		message = "audio download failed"
	case errors.Is(err, audio.ErrTooLarge):
		status = http.StatusRequestEntityTooLarge
		code = "request_too_large"
		message = "audio exceeds size limit"
	case errors.Is(err, audio.ErrInvalidWAV), errors.Is(err, audio.ErrUnsupportedSampleRate), errors.Is(err, pipeline.ErrNoAudio):
		status = http.StatusBadRequest
		code = "invalid_audio"
		message = "audio could not be used"
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
		code = "not_found"
		message = "job not found"
	case errors.Is(err, pool.ErrUnknownDevice):
		status = http.StatusNotFound
		code = "not_found"
		message = "device not found"
	case errors.Is(err, pool.ErrNoLoader):
		status = http.StatusConflict
		code = "reload_unsupported"
		message = "device does not support model reloads"
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		code = "timeout"
		message = "request timed out"
	case errors.Is(err, context.Canceled):
		status = 499
		code = "canceled"
		message = "request canceled"
	}

	s.writeError(w, r, status, code, message, details)
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]any) {
	if rid := requestIDFromContext(r.Context()); rid != "" {
		w.Header().Set(requestIDHeader, rid)
	}
	writeJSON(w, status, model.ErrorResponse{
		Error:     model.APIError{Code: code, Message: message, Details: details},
		RequestID: requestIDFromContext(r.Context()),
	})
}

func (s *server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		ctx := context.WithValue(r.Context(), requestIDContext, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		duration := time.Since(started)
		if s.metrics != nil {
			s.metrics.ObserveHTTP(route, r.Method, status, duration)
		}

		s.logger.Info("http_request",
			"request_id", requestIDFromContext(r.Context()),
			"method", r.Method,
			"route", route,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", duration.Milliseconds(),
		)
	})
}

func (s *server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", "request_id", requestIDFromContext(r.Context()), "panic", rec)
				s.writeError(w, r, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware enforces API_TOKEN when one is configured.
func (s *server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIToken == "" || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		token, hasHeader, ok := extractBearerToken(r.Header.Get("Authorization"))
		if hasHeader && !ok {
			s.writeError(w, r, http.StatusUnauthorized, "unauthorized", "Authorization must be Bearer <token>", nil)
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.APIToken)) != 1 {
			s.writeError(w, r, http.StatusUnauthorized, "unauthorized", "invalid or missing bearer token", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isPublicPath(path string) bool {
	switch path {
	case "/healthz", "/readyz", "/metrics":
		return true
	default:
		return false
	}
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func ensureBodyFullyConsumed(decoder *json.Decoder) error {
	var extra any
	if err := decoder.Decode(&extra); err != io.EOF {
		if err == nil {
			return fmt.Errorf("multiple JSON values")
		}
		return err
	}
	return nil
}

func parseOptionalBool(value string) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return false, nil
	}
	return strconv.ParseBool(value)
}

func cleanupMultipartForm(form *multipart.Form) {
	if form != nil {
		_ = form.RemoveAll()
	}
}

func requestIDFromContext(ctx context.Context) string {
	value, _ := ctx.Value(requestIDContext).(string)
	return value
}

func extractBearerToken(header string) (token string, hasHeader bool, ok bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false, true
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", true, false
	}
	token = strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", true, false
	}
	return token, true, true
}

func detailsForError(err error) map[string]any {
	if err == nil {
		return nil
	}
	details := map[string]any{"error": err.Error()}
	var upstreamErr *inference.Error
	if errors.As(err, &upstreamErr) {
		details["upstream_status"] = upstreamErr.StatusCode
		if upstreamErr.Body != "" {
			details["upstream_body"] = upstreamErr.Body
		}
	}
	var jobErr *pipeline.JobError
	if errors.As(err, &jobErr) {
		details["job_id"] = jobErr.JobID
		details["job_state"] = jobErr.State.String()
	}
	return details
}
