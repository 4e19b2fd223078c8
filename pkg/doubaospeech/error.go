package doubaospeech

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Framing errors. A frame failing with any of these is rejected and the
// current exchange is aborted.
var (
	ErrFraming                = errors.New("doubaospeech: framing error")
	ErrInvalidExtensionLength = fmt.Errorf("%w: invalid extension length", ErrFraming)
	ErrTruncatedFrame         = fmt.Errorf("%w: truncated frame", ErrFraming)
	ErrUnknownMessageType     = fmt.Errorf("%w: unknown message type", ErrFraming)
)

// Payload errors.
var (
	ErrCompression = errors.New("doubaospeech: compression error")
	ErrDecode      = errors.New("doubaospeech: decode error")
)

// ErrSessionCancelled is returned by Session.Receive and Session.Send once
// the session has been cancelled.
var ErrSessionCancelled = errors.New("doubaospeech: session cancelled")

// Error 豆包语音 API 错误
//
// It is returned when the server answers with SERVER_ERROR_RESPONSE or a
// response whose code is not a success code. Code and Message are verbatim.
type Error struct {
	// Code 业务错误码
	Code int64 `json:"code"`

	// Message 错误消息
	Message string `json:"message"`

	// ReqID 请求 ID
	ReqID string `json:"reqid,omitempty"`
}

func (e *Error) Error() string {
	if e.ReqID != "" {
		return fmt.Sprintf("doubaospeech: %s (code=%d, reqid=%s)", e.Message, e.Code, e.ReqID)
	}
	return fmt.Sprintf("doubaospeech: %s (code=%d)", e.Message, e.Code)
}

// IsAuthError 是否为认证错误
func (e *Error) IsAuthError() bool {
	return e.Code == CodeAuthError || e.Code == CodeASRAuthError
}

// IsRateLimit 是否为限流错误
func (e *Error) IsRateLimit() bool {
	return e.Code == CodeRateLimit || e.Code == CodeASRBusy
}

// IsServerError 是否为服务端错误
func (e *Error) IsServerError() bool {
	return e.Code == CodeServerError || e.Code == CodeASRServerError
}

// Retryable 是否可重试. Retrying is left to the caller.
func (e *Error) Retryable() bool {
	return e.IsRateLimit() || e.IsServerError()
}

// AsError 尝试将 error 转换为 *Error
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// API 响应状态码
const (
	CodeSuccess     = 3000 // TTS 成功
	CodeParamError  = 3001 // 参数错误
	CodeAuthError   = 3002 // 认证失败
	CodeRateLimit   = 3003 // 频率限制
	CodeQuotaExceed = 3004 // 余额不足
	CodeServerError = 3005 // 服务内部错误

	CodeASRSuccess     = 1000 // ASR 成功
	CodeASRParamError  = 1001
	CodeASRAuthError   = 1002
	CodeASRBusy        = 1003
	CodeASRServerError = 1013
)

// TransportError is a socket level failure: dial refused, handshake failed,
// connection reset. It is never retried internally.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("doubaospeech: %s %s: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("doubaospeech: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// errorFromResponse converts a SERVER_ERROR_RESPONSE into *Error. A JSON body
// with a message field is unwrapped, anything else is used as the message.
func errorFromResponse(resp *Response) *Error {
	e := &Error{Code: int64(resp.Code), Message: string(resp.Body)}
	if resp.JSON != nil {
		var body struct {
			ReqID   string `json:"reqid"`
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if json.Unmarshal(resp.JSON, &body) == nil {
			switch {
			case body.Message != "":
				e.Message = body.Message
			case body.Error != "":
				e.Message = body.Error
			}
			e.ReqID = body.ReqID
		}
	}
	return e
}

// wrapError 包装错误
func wrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
