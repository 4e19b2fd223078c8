package doubaospeech

import (
	"encoding/json"

	"github.com/google/uuid"
)

// ================== 请求结构体 ==================

// appInfo 应用信息
type appInfo struct {
	AppID   string `json:"appid"`
	Token   string `json:"token,omitempty"`
	Cluster string `json:"cluster"`
}

// userInfo 用户信息
type userInfo struct {
	UID string `json:"uid"`
}

// ttsAudioParams TTS 音频参数
type ttsAudioParams struct {
	VoiceType   string  `json:"voice_type"`
	Encoding    string  `json:"encoding,omitempty"`
	SpeedRatio  float64 `json:"speed_ratio,omitempty"`
	VolumeRatio float64 `json:"volume_ratio,omitempty"`
	PitchRatio  float64 `json:"pitch_ratio,omitempty"`
	Rate        int     `json:"rate,omitempty"`
	Emotion     string  `json:"emotion,omitempty"`
	Language    string  `json:"language,omitempty"`
}

// ttsRequestParams TTS 请求参数
type ttsRequestParams struct {
	ReqID           string          `json:"reqid"`
	Text            string          `json:"text"`
	TextType        string          `json:"text_type,omitempty"`
	Operation       string          `json:"operation"`
	SilenceDuration int             `json:"silence_duration,omitempty"`
	Addition        json.RawMessage `json:"addition,omitempty"`
}

// ttsRequest TTS 请求体
type ttsRequest struct {
	App     appInfo          `json:"app"`
	User    userInfo         `json:"user"`
	Audio   ttsAudioParams   `json:"audio"`
	Request ttsRequestParams `json:"request"`
}

// asrAudioParams ASR 音频参数
type asrAudioParams struct {
	Format   string `json:"format"`
	Rate     int    `json:"rate"`
	Language string `json:"language,omitempty"`
	Bits     int    `json:"bits"`
	Channel  int    `json:"channel"`
	Codec    string `json:"codec"`
}

// asrRequestParams ASR 请求参数
type asrRequestParams struct {
	ReqID          string          `json:"reqid"`
	Workflow       string          `json:"workflow"`
	NBest          int             `json:"nbest"`
	ShowLanguage   bool            `json:"show_language"`
	ShowUtterances bool            `json:"show_utterances"`
	ResultType     string          `json:"result_type"`
	Sequence       int             `json:"sequence"`
	Addition       json.RawMessage `json:"addition,omitempty"`
}

// asrRequest ASR 请求体
type asrRequest struct {
	App     appInfo          `json:"app"`
	User    userInfo         `json:"user"`
	Request asrRequestParams `json:"request"`
	Audio   asrAudioParams   `json:"audio"`
}

// 操作类型
const (
	operationQuery  = "query"
	operationSubmit = "submit"
)

// generateReqID 生成请求 ID
func generateReqID() string {
	return uuid.New().String()
}

// buildTTSRequest 构建 TTS 请求
func (c *Client) buildTTSRequest(req *TTSRequest, operation, reqID string) *ttsRequest {
	voiceType := req.VoiceType
	if voiceType == "" {
		voiceType = DefaultVoiceType
	}
	encoding := req.Encoding
	if encoding == "" {
		encoding = EncodingPCM
	}
	rate := req.SampleRate
	if rate == 0 {
		rate = DefaultTTSSampleRate
	}
	silence := req.SilenceDuration
	if silence == 0 {
		silence = DefaultSilenceDuration
	}
	speed := req.SpeedRatio
	if speed == 0 {
		speed = 1.0
	}
	volume := req.VolumeRatio
	if volume == 0 {
		volume = 1.0
	}
	pitch := req.PitchRatio
	if pitch == 0 {
		pitch = 1.0
	}
	textType := req.TextType
	if textType == "" {
		textType = "plain"
	}
	cluster := req.Cluster
	if cluster == "" {
		cluster = c.config.cluster
	}
	if req.ReqID != "" {
		reqID = req.ReqID
	}

	return &ttsRequest{
		App: appInfo{
			AppID:   c.config.appID,
			Token:   c.config.accessToken, // Required in request body
			Cluster: cluster,
		},
		User: userInfo{
			UID: c.config.userID,
		},
		Audio: ttsAudioParams{
			VoiceType:   voiceType,
			Encoding:    string(encoding),
			SpeedRatio:  speed,
			VolumeRatio: volume,
			PitchRatio:  pitch,
			Rate:        rate,
			Emotion:     req.Emotion,
			Language:    string(req.Language),
		},
		Request: ttsRequestParams{
			ReqID:           reqID,
			Text:            req.Text,
			TextType:        string(textType),
			Operation:       operation,
			SilenceDuration: silence,
			Addition:        req.Addition,
		},
	}
}

// buildASRRequest 构建 ASR 请求
func (c *Client) buildASRRequest(config *RecognizeConfig, reqID string) *asrRequest {
	cluster := config.Cluster
	if cluster == "" {
		cluster = c.config.asrCluster
	}
	return &asrRequest{
		App: appInfo{
			AppID:   c.config.appID,
			Token:   c.config.accessToken, // Required in request body
			Cluster: cluster,
		},
		User: userInfo{
			UID: c.config.userID,
		},
		Request: asrRequestParams{
			ReqID:          reqID,
			Workflow:       config.Workflow,
			NBest:          config.NBest,
			ShowLanguage:   config.ShowLanguage,
			ShowUtterances: config.ShowUtterances,
			ResultType:     config.ResultType,
			Sequence:       1,
			Addition:       config.Addition,
		},
		Audio: asrAudioParams{
			Format:   string(config.Format),
			Rate:     config.SampleRate,
			Language: string(config.Language),
			Bits:     config.Bits,
			Channel:  config.Channels,
			Codec:    config.Codec,
		},
	}
}
