package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	cenv "github.com/caarlos0/env/v11"
)

type Config struct {
	ListenAddr           string
	APIToken             string
	DeviceIndices        []int
	InferenceBaseURLs    []string
	InferenceAPIKey      string
	RequestTimeout       time.Duration
	TranscriptionTimeout time.Duration
	DiarizationTimeout   time.Duration
	AcquireTimeout       time.Duration
	MaxUploadBytes       int64
	DownloadConcurrency  int64
	LogLevel             string
	LogFile              string

	DefaultLanguage           string
	WindowLengths             []float64
	ShiftLengths              []float64
	MultiscaleWeights         []float64
	LongAudioSeconds          float64
	VeryLongAudioSeconds      float64
	MaxNumSpeakers            int
	CompressionRatioThreshold float64
	LogProbThreshold          float64
	NoSpeechThreshold         float64
	RepetitionPenalty         float64

	RedisURL  string
	ResultTTL time.Duration
}

type envConfig struct {
	ListenAddr                  string    `env:"LISTEN_ADDR" envDefault:":8080"`
	APIToken                    string    `env:"API_TOKEN"`
	DeviceIndices               []int     `env:"DEVICE_INDICES" envDefault:"0" envSeparator:","`
	InferenceBaseURLs           []string  `env:"INFERENCE_BASE_URLS" envDefault:"http://127.0.0.1:9000" envSeparator:","`
	InferenceAPIKey             string    `env:"INFERENCE_API_KEY"`
	RequestTimeoutSeconds       int       `env:"REQUEST_TIMEOUT_SECONDS" envDefault:"600"`
	TranscriptionTimeoutSeconds int       `env:"TRANSCRIPTION_TIMEOUT_SECONDS" envDefault:"300"`
	DiarizationTimeoutSeconds   int       `env:"DIARIZATION_TIMEOUT_SECONDS" envDefault:"300"`
	AcquireTimeoutSeconds       int       `env:"ACQUIRE_TIMEOUT_SECONDS" envDefault:"0"`
	MaxUploadBytes              int64     `env:"MAX_UPLOAD_BYTES" envDefault:"536870912"`
	DownloadConcurrency         int64     `env:"DOWNLOAD_CONCURRENCY" envDefault:"10"`
	LogLevel                    string    `env:"LOG_LEVEL" envDefault:"info"`
	LogFile                     string    `env:"LOG_FILE"`
	DefaultLanguage             string    `env:"DEFAULT_LANGUAGE" envDefault:"en"`
	WindowLengths               []float64 `env:"WINDOW_LENGTHS" envDefault:"1.5,1.25,1.0,0.75,0.5" envSeparator:","`
	ShiftLengths                []float64 `env:"SHIFT_LENGTHS" envDefault:"0.75,0.625,0.5,0.375,0.25" envSeparator:","`
	MultiscaleWeights           []float64 `env:"MULTISCALE_WEIGHTS" envDefault:"1,1,1,1,1" envSeparator:","`
	LongAudioSeconds            float64   `env:"LONG_AUDIO_SECONDS" envDefault:"3600"`
	VeryLongAudioSeconds        float64   `env:"VERY_LONG_AUDIO_SECONDS" envDefault:"10800"`
	MaxNumSpeakers              int       `env:"MAX_NUM_SPEAKERS" envDefault:"8"`
	CompressionRatioThreshold   float64   `env:"COMPRESSION_RATIO_THRESHOLD" envDefault:"2.4"`
	LogProbThreshold            float64   `env:"LOG_PROB_THRESHOLD" envDefault:"-1.0"`
	NoSpeechThreshold           float64   `env:"NO_SPEECH_THRESHOLD" envDefault:"0.6"`
	RepetitionPenalty           float64   `env:"REPETITION_PENALTY" envDefault:"1.0"`
	RedisURL                    string    `env:"REDIS_URL"`
	ResultTTLHours              int       `env:"RESULT_TTL_HOURS" envDefault:"6"`
}

func Load() (Config, error) {
	var raw envConfig
	if err := cenv.Parse(&raw); err != nil {
		return Config{}, err
	}

	urls := make([]string, 0, len(raw.InferenceBaseURLs))
	for _, u := range raw.InferenceBaseURLs {
		urls = append(urls, strings.TrimRight(strings.TrimSpace(u), "/"))
	}

	cfg := Config{
		ListenAddr:                strings.TrimSpace(raw.ListenAddr),
		APIToken:                  strings.TrimSpace(raw.APIToken),
		DeviceIndices:             raw.DeviceIndices,
		InferenceBaseURLs:         urls,
		InferenceAPIKey:           strings.TrimSpace(raw.InferenceAPIKey),
		RequestTimeout:            time.Duration(raw.RequestTimeoutSeconds) * time.Second,
		TranscriptionTimeout:      time.Duration(raw.TranscriptionTimeoutSeconds) * time.Second,
		DiarizationTimeout:        time.Duration(raw.DiarizationTimeoutSeconds) * time.Second,
		AcquireTimeout:            time.Duration(raw.AcquireTimeoutSeconds) * time.Second,
		MaxUploadBytes:            raw.MaxUploadBytes,
		DownloadConcurrency:       raw.DownloadConcurrency,
		LogLevel:                  strings.ToLower(strings.TrimSpace(raw.LogLevel)),
		LogFile:                   strings.TrimSpace(raw.LogFile),
		DefaultLanguage:           strings.ToLower(strings.TrimSpace(raw.DefaultLanguage)),
		WindowLengths:             raw.WindowLengths,
		ShiftLengths:              raw.ShiftLengths,
		MultiscaleWeights:         raw.MultiscaleWeights,
		LongAudioSeconds:          raw.LongAudioSeconds,
		VeryLongAudioSeconds:      raw.VeryLongAudioSeconds,
		MaxNumSpeakers:            raw.MaxNumSpeakers,
		CompressionRatioThreshold: raw.CompressionRatioThreshold,
		LogProbThreshold:          raw.LogProbThreshold,
		NoSpeechThreshold:         raw.NoSpeechThreshold,
		RepetitionPenalty:         raw.RepetitionPenalty,
		RedisURL:                  strings.TrimSpace(raw.RedisURL),
		ResultTTL:                 time.Duration(raw.ResultTTLHours) * time.Hour,
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("LISTEN_ADDR must not be empty")
	}
	if len(c.DeviceIndices) == 0 {
		return errors.New("DEVICE_INDICES must not be empty")
	}
	seen := make(map[int]struct{}, len(c.DeviceIndices))
	for _, d := range c.DeviceIndices {
		if d < 0 {
			return fmt.Errorf("DEVICE_INDICES must be >= 0, got %d", d)
		}
		if _, dup := seen[d]; dup {
			return fmt.Errorf("DEVICE_INDICES contains %d twice", d)
		}
		seen[d] = struct{}{}
	}
	if len(c.InferenceBaseURLs) != len(c.DeviceIndices) {
		return fmt.Errorf("INFERENCE_BASE_URLS has %d entries, want one per device (%d)", len(c.InferenceBaseURLs), len(c.DeviceIndices))
	}
	for _, u := range c.InferenceBaseURLs {
		if u == "" {
			return errors.New("INFERENCE_BASE_URLS must not contain empty entries")
		}
	}
	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT_SECONDS must be > 0")
	}
	if c.TranscriptionTimeout <= 0 {
		return errors.New("TRANSCRIPTION_TIMEOUT_SECONDS must be > 0")
	}
	if c.DiarizationTimeout <= 0 {
		return errors.New("DIARIZATION_TIMEOUT_SECONDS must be > 0")
	}
	if c.AcquireTimeout < 0 {
		return errors.New("ACQUIRE_TIMEOUT_SECONDS must be >= 0")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be > 0")
	}
	if c.DownloadConcurrency <= 0 {
		return errors.New("DOWNLOAD_CONCURRENCY must be > 0")
	}
	if c.DefaultLanguage == "" {
		return errors.New("DEFAULT_LANGUAGE must not be empty")
	}
	if len(c.WindowLengths) != len(c.ShiftLengths) || len(c.WindowLengths) != len(c.MultiscaleWeights) {
		return errors.New("WINDOW_LENGTHS, SHIFT_LENGTHS and MULTISCALE_WEIGHTS must have the same length")
	}
	if c.LongAudioSeconds <= 0 || c.VeryLongAudioSeconds <= c.LongAudioSeconds {
		return errors.New("LONG_AUDIO_SECONDS must be > 0 and below VERY_LONG_AUDIO_SECONDS")
	}
	if c.MaxNumSpeakers <= 0 {
		return errors.New("MAX_NUM_SPEAKERS must be > 0")
	}
	if c.NoSpeechThreshold < 0 || c.NoSpeechThreshold > 1 {
		return errors.New("NO_SPEECH_THRESHOLD must be within [0,1]")
	}
	if c.ResultTTL <= 0 {
		return errors.New("RESULT_TTL_HOURS must be > 0")
	}
	return nil
}
