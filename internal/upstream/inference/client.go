// Package inference talks to the model worker that serves one device. A
// Client satisfies the transcription, diarization and voice-detection
// model contracts, so a pool replica is built from a single Client.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"scribeflow/internal/audio"
	"scribeflow/internal/diarization"
	"scribeflow/internal/transcript"
	"scribeflow/internal/transcription"
)

type ObserverFunc func(endpoint string, status int, duration time.Duration)

type Option func(*Client)

type Client struct {
	baseURL    string
	apiKey     string
	device     int
	httpClient *http.Client
	observer   ObserverFunc
}

// Error is a non-200 answer from the worker.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("inference request failed with status %d", e.StatusCode)
}

func WithObserver(observer ObserverFunc) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

func New(baseURL, apiKey string, device int, httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     strings.TrimSpace(apiKey),
		device:     device,
		httpClient: httpClient,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Client) Device() int {
	return c.device
}

type transcribeRequest struct {
	Language                  string                      `json:"language"`
	Prompt                    string                      `json:"prompt,omitempty"`
	VADFilter                 bool                        `json:"vad_filter"`
	VADParameters             transcription.VADParameters `json:"vad_parameters"`
	SuppressBlank             bool                        `json:"suppress_blank"`
	WordTimestamps            bool                        `json:"word_timestamps"`
	ConditionOnPreviousText   bool                        `json:"condition_on_previous_text"`
	RepetitionPenalty         float64                     `json:"repetition_penalty"`
	CompressionRatioThreshold float64                     `json:"compression_ratio_threshold"`
	LogProbThreshold          float64                     `json:"log_prob_threshold"`
	NoSpeechThreshold         float64                     `json:"no_speech_threshold"`
}

func (c *Client) Transcribe(ctx context.Context, req transcription.Request) ([]transcription.RawSegment, error) {
	payload := transcribeRequest{
		Language:                  req.Language,
		Prompt:                    req.Prompt,
		VADFilter:                 req.VADFilter,
		VADParameters:             req.VADParameters,
		SuppressBlank:             req.SuppressBlank,
		WordTimestamps:            req.WordTimestamps,
		ConditionOnPreviousText:   req.ConditionOnPreviousText,
		RepetitionPenalty:         req.RepetitionPenalty,
		CompressionRatioThreshold: req.CompressionRatioThreshold,
		LogProbThreshold:          req.LogProbThreshold,
		NoSpeechThreshold:         req.NoSpeechThreshold,
	}
	var parsed struct {
		Segments []transcription.RawSegment `json:"segments"`
	}
	if err := c.postAudio(ctx, "transcribe", "/v1/transcribe", req.Audio, payload, &parsed); err != nil {
		return nil, err
	}
	return parsed.Segments, nil
}

type diarizeRequest struct {
	Scales            []diarization.Scale   `json:"scales"`
	MultiscaleWeights []float64             `json:"multiscale_weights"`
	BatchSize         int                   `json:"batch_size"`
	Speech            []transcript.Interval `json:"speech"`
	OracleNumSpeakers int                   `json:"oracle_num_speakers,omitempty"`
	MaxNumSpeakers    int                   `json:"max_num_speakers"`
}

func (c *Client) Diarize(ctx context.Context, req diarization.Request) (diarization.Result, error) {
	payload := diarizeRequest{
		Scales:            req.Config.Scales,
		MultiscaleWeights: req.Config.Weights,
		BatchSize:         req.Config.BatchSize,
		Speech:            req.Speech,
		OracleNumSpeakers: req.OracleNumSpeakers,
		MaxNumSpeakers:    req.MaxNumSpeakers,
	}
	var parsed struct {
		Segments    []transcript.SpeakerSegment `json:"segments"`
		NumSpeakers int                         `json:"num_speakers"`
	}
	if err := c.postAudio(ctx, "diarize", "/v1/diarize", req.Audio, payload, &parsed); err != nil {
		return diarization.Result{}, err
	}
	return diarization.Result{Segments: parsed.Segments, NumSpeakers: parsed.NumSpeakers}, nil
}

func (c *Client) DetectSpeech(ctx context.Context, samples []float32) ([]transcript.Interval, error) {
	var parsed struct {
		Speech []transcript.Interval `json:"speech"`
	}
	if err := c.postAudio(ctx, "vad", "/v1/vad", samples, struct{}{}, &parsed); err != nil {
		return nil, err
	}
	return parsed.Speech, nil
}

// LoadModel asks the worker to swap its transcription model. Callers must
// hold the replica lease.
func (c *Client) LoadModel(ctx context.Context, modelPath, language string) error {
	payload, err := json.Marshal(map[string]string{"model_path": modelPath, "language": language})
	if err != nil {
		return err
	}
	return c.do(ctx, "models_load", http.MethodPost, "/v1/models/load", "application/json", bytes.NewReader(payload), nil)
}

// CheckModels reports whether the worker has its models loaded.
func (c *Client) CheckModels(ctx context.Context) error {
	return c.do(ctx, "health", http.MethodGet, "/v1/health", "", nil, nil)
}

func (c *Client) postAudio(ctx context.Context, endpoint, path string, samples []float32, request any, out any) error {
	meta, err := json.Marshal(request)
	if err != nil {
		return err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("request", string(meta)); err != nil {
		return err
	}
	part, err := writer.CreateFormFile("audio", "audio.f32")
	if err != nil {
		return err
	}
	if _, err := part.Write(audio.EncodeFloat32LE(samples)); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	return c.do(ctx, endpoint, http.MethodPost, path, writer.FormDataContentType(), &body, out)
}

func (c *Client) do(ctx context.Context, endpoint, method, path, contentType string, body io.Reader, out any) error {
	started := time.Now()
	statusCode := 0
	defer func() { c.observe(endpoint, statusCode, time.Since(started)) }()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	statusCode = resp.StatusCode

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return &Error{StatusCode: resp.StatusCode, Body: truncateBody(string(respBody))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: invalid %s response: %v", transcript.ErrMalformed, endpoint, err)
	}
	return nil
}

func (c *Client) observe(endpoint string, status int, duration time.Duration) {
	if c.observer != nil {
		c.observer(endpoint, status, duration)
	}
}

func truncateBody(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 4096 {
		return s
	}
	return s[:4096] + "..."
}
