package doubaospeech

import (
	"encoding/json"
)

// ================== Audio Encoding ==================

// AudioEncoding represents audio encoding format (TTS output)
type AudioEncoding string

const (
	EncodingPCM AudioEncoding = "pcm"
	EncodingWAV AudioEncoding = "wav"
	EncodingMP3 AudioEncoding = "mp3"
	EncodingOGG AudioEncoding = "ogg_opus"
)

// AudioFormat represents audio format (ASR input)
type AudioFormat string

const (
	FormatWAV AudioFormat = "wav"
	FormatMP3 AudioFormat = "mp3"
	FormatPCM AudioFormat = "pcm"
	FormatRaw AudioFormat = "raw"
)

// ================== Language ==================

// Language represents language code
type Language string

const (
	LanguageZhCN Language = "zh-CN" // Chinese (Mandarin)
	LanguageEnUS Language = "en-US" // English (US)
)

// ================== TTS Types ==================

// TTSTextType represents text type
type TTSTextType string

const (
	TTSTextTypePlain TTSTextType = "plain" // Plain text
	TTSTextTypeSSML  TTSTextType = "ssml"  // SSML format
)

// TTS defaults used by the device firmware.
const (
	DefaultVoiceType       = "BV700_streaming"
	DefaultTTSSampleRate   = 24000
	DefaultSilenceDuration = 125 // ms
)

// TTSRequest represents TTS synthesis request
//
// Zero values fall back to the defaults above; ratios default to 1.0.
type TTSRequest struct {
	Text            string        `json:"text" yaml:"text"`
	TextType        TTSTextType   `json:"text_type,omitempty" yaml:"text_type,omitempty"`
	VoiceType       string        `json:"voice_type,omitempty" yaml:"voice_type,omitempty"`
	Cluster         string        `json:"cluster,omitempty" yaml:"cluster,omitempty"`
	Encoding        AudioEncoding `json:"encoding,omitempty" yaml:"encoding,omitempty"`
	SampleRate      int           `json:"sample_rate,omitempty" yaml:"sample_rate,omitempty"`
	SpeedRatio      float64       `json:"speed_ratio,omitempty" yaml:"speed_ratio,omitempty"`
	VolumeRatio     float64       `json:"volume_ratio,omitempty" yaml:"volume_ratio,omitempty"`
	PitchRatio      float64       `json:"pitch_ratio,omitempty" yaml:"pitch_ratio,omitempty"`
	Emotion         string        `json:"emotion,omitempty" yaml:"emotion,omitempty"`
	Language        Language      `json:"language,omitempty" yaml:"language,omitempty"`
	SilenceDuration int           `json:"silence_duration,omitempty" yaml:"silence_duration,omitempty"`

	// ReqID overrides the generated request id.
	ReqID string `json:"reqid,omitempty" yaml:"reqid,omitempty"`

	// Addition is sent verbatim as request.addition.
	Addition json.RawMessage `json:"addition,omitempty" yaml:"-"`
}

// TTSResponse represents TTS synthesis response
type TTSResponse struct {
	Audio    []byte `json:"-"`
	Duration int    `json:"duration"` // ms, when reported by the server
	ReqID    string `json:"reqid"`
}

// TTSChunk represents streaming TTS chunk
type TTSChunk struct {
	Audio    []byte `json:"-"`
	Sequence int32  `json:"sequence"`
	IsLast   bool   `json:"is_last"`
}

// StreamStatus is the terminal state of a TTSStream.
type StreamStatus int

const (
	StreamRunning StreamStatus = iota
	StreamCompleted
	StreamCancelled
	StreamFailed
)

func (s StreamStatus) String() string {
	switch s {
	case StreamRunning:
		return "running"
	case StreamCompleted:
		return "completed"
	case StreamCancelled:
		return "cancelled"
	case StreamFailed:
		return "failed"
	}
	return "unknown"
}

// ================== ASR Types ==================

// ASR defaults used by the device firmware.
const (
	DefaultASRWorkflow = "audio_in,resample,partition,vad,fe,decode,itn,nlu_punctuate"
	DefaultSegmentMs   = 15000
	DefaultMP3Segment  = 10000 // bytes
	DefaultASRRate     = 16000
	DefaultASRBits     = 16
	DefaultASRChannels = 1
	DefaultASRCodec    = "raw"
	DefaultASRResult   = "full"
	DefaultASRNBest    = 1
)

// RecognizeConfig represents recognition configuration
//
// For WAV input the sample rate, bits and channels used for segment sizing
// are read from the WAV header.
type RecognizeConfig struct {
	Format         AudioFormat     `json:"format" yaml:"format"`
	SampleRate     int             `json:"rate,omitempty" yaml:"rate,omitempty"`
	Bits           int             `json:"bits,omitempty" yaml:"bits,omitempty"`
	Channels       int             `json:"channel,omitempty" yaml:"channel,omitempty"`
	Codec          string          `json:"codec,omitempty" yaml:"codec,omitempty"`
	Language       Language        `json:"language,omitempty" yaml:"language,omitempty"`
	Cluster        string          `json:"cluster,omitempty" yaml:"cluster,omitempty"`
	Workflow       string          `json:"workflow,omitempty" yaml:"workflow,omitempty"`
	NBest          int             `json:"nbest,omitempty" yaml:"nbest,omitempty"`
	ShowLanguage   bool            `json:"show_language,omitempty" yaml:"show_language,omitempty"`
	ShowUtterances bool            `json:"show_utterances,omitempty" yaml:"show_utterances,omitempty"`
	ResultType     string          `json:"result_type,omitempty" yaml:"result_type,omitempty"`
	SegmentMs      int             `json:"segment_ms,omitempty" yaml:"segment_ms,omitempty"`
	MP3SegmentSize int             `json:"mp3_segment_size,omitempty" yaml:"mp3_segment_size,omitempty"`
	Addition       json.RawMessage `json:"addition,omitempty" yaml:"-"`
}

// withDefaults returns a copy with zero fields filled.
func (c *RecognizeConfig) withDefaults() RecognizeConfig {
	var out RecognizeConfig
	if c != nil {
		out = *c
	}
	if out.Format == "" {
		out.Format = FormatWAV
	}
	if out.SampleRate == 0 {
		out.SampleRate = DefaultASRRate
	}
	if out.Bits == 0 {
		out.Bits = DefaultASRBits
	}
	if out.Channels == 0 {
		out.Channels = DefaultASRChannels
	}
	if out.Codec == "" {
		out.Codec = DefaultASRCodec
	}
	if out.Language == "" {
		out.Language = LanguageZhCN
	}
	if out.Workflow == "" {
		out.Workflow = DefaultASRWorkflow
	}
	if out.NBest == 0 {
		out.NBest = DefaultASRNBest
	}
	if out.ResultType == "" {
		out.ResultType = DefaultASRResult
	}
	if out.SegmentMs == 0 {
		out.SegmentMs = DefaultSegmentMs
	}
	if out.MP3SegmentSize == 0 {
		out.MP3SegmentSize = DefaultMP3Segment
	}
	return out
}

// ASRResult represents ASR result
type ASRResult struct {
	ReqID    string `json:"reqid"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`

	Text       string         `json:"text"`
	Candidates []ASRCandidate `json:"result,omitempty"`

	// Raw is the undecoded final response.
	Raw json.RawMessage `json:"-"`
}

// ASRCandidate is one n-best hypothesis.
type ASRCandidate struct {
	Text       string      `json:"text"`
	Confidence int         `json:"confidence,omitempty"`
	Language   string      `json:"language,omitempty"`
	Utterances []Utterance `json:"utterances,omitempty"`
}

// Utterance represents sentence segment
type Utterance struct {
	Text      string `json:"text"`
	StartTime int    `json:"start_time"`
	EndTime   int    `json:"end_time"`
	Definite  bool   `json:"definite"`
	Words     []Word `json:"words,omitempty"`
}

// Word represents word information
type Word struct {
	Text      string `json:"text"`
	StartTime int    `json:"start_time"`
	EndTime   int    `json:"end_time"`
}
