package model

type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error     APIError `json:"error"`
	RequestID string   `json:"request_id,omitempty"`
}

type HealthResponse struct {
	OK bool `json:"ok"`
}

type DeviceStatus struct {
	Device int    `json:"device"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

type ReadyResponse struct {
	OK          bool           `json:"ok"`
	ServiceName string         `json:"service_name,omitempty"`
	Devices     []DeviceStatus `json:"devices,omitempty"`
}

// JobOptions are the per-request knobs shared by uploads and URL jobs.
type JobOptions struct {
	SourceLang        string   `json:"source_lang,omitempty"`
	Diarization       bool     `json:"diarization"`
	DualChannel       bool     `json:"dual_channel"`
	NumSpeakers       int      `json:"num_speakers,omitempty"`
	Vocab             []string `json:"vocab,omitempty"`
	WordTimestamps    bool     `json:"word_timestamps"`
	InternalVAD       bool     `json:"internal_vad"`
	RepetitionPenalty *float64 `json:"repetition_penalty,omitempty"`
	Timestamps        string   `json:"timestamps,omitempty"`
	JobName           string   `json:"job_name,omitempty"`
	Async             bool     `json:"async,omitempty"`
}

type AudioURLRequest struct {
	URL string `json:"url"`
	JobOptions
}

type Word struct {
	Word  string  `json:"word"`
	Start any     `json:"start"`
	End   any     `json:"end"`
	Score float64 `json:"score"`
}

type Utterance struct {
	Text    string `json:"text"`
	Start   any    `json:"start"`
	End     any    `json:"end"`
	Speaker *int   `json:"speaker"`
	Words   []Word `json:"words,omitempty"`
}

// ProcessTimes are reported in seconds. Diarization is null when it did
// not run.
type ProcessTimes struct {
	Total          float64  `json:"total"`
	Transcription  float64  `json:"transcription"`
	Diarization    *float64 `json:"diarization"`
	PostProcessing float64  `json:"post_processing"`
}

type AudioResponse struct {
	JobID          string       `json:"job_id"`
	Utterances     []Utterance  `json:"utterances"`
	AudioDuration  float64      `json:"audio_duration"`
	Diarization    bool         `json:"diarization"`
	DualChannel    bool         `json:"dual_channel"`
	SourceLang     string       `json:"source_lang"`
	Timestamps     string       `json:"timestamps"`
	Vocab          []string     `json:"vocab"`
	WordTimestamps bool         `json:"word_timestamps"`
	InternalVAD    bool         `json:"internal_vad"`
	JobName        string       `json:"job_name,omitempty"`
	NumSpeakers    int          `json:"num_speakers"`
	Device         int          `json:"device"`
	FallbackUsed   bool         `json:"fallback_used"`
	ProcessTimes   ProcessTimes `json:"process_times"`
}

type JobAcceptedResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type JobStatusResponse struct {
	JobID     string         `json:"job_id"`
	Status    string         `json:"status"`
	Result    *AudioResponse `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	UpdatedAt string         `json:"updated_at"`
}

type LoadModelRequest struct {
	ModelPath string `json:"model_path"`
	Language  string `json:"language"`
}

type LoadModelResponse struct {
	Device    int    `json:"device"`
	ModelPath string `json:"model_path"`
	Language  string `json:"language"`
}
