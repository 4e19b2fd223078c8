package doubaospeech

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
)

var errEmptyText = errors.New("doubaospeech: text is required")

// TTSService provides text-to-speech synthesis functionality
//
// Both modes run over /api/v1/tts/ws_binary: SynthesizeOnce sends
// operation=query and collects the whole utterance, SynthesizeStream sends
// operation=submit and yields audio as it arrives.
type TTSService struct {
	client *Client
}

// newTTSService creates TTS service
func newTTSService(c *Client) *TTSService {
	return &TTSService{client: c}
}

// ttsServerMessage is the JSON body of a full server response.
type ttsServerMessage struct {
	ReqID    string `json:"reqid"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int32  `json:"sequence"`
	Addition struct {
		Duration string `json:"duration"`
	} `json:"addition"`
}

// SynthesizeOnce performs one-shot synthesis and returns the complete audio.
func (s *TTSService) SynthesizeOnce(ctx context.Context, req *TTSRequest) (*TTSResponse, error) {
	stream, err := s.open(ctx, req, operationQuery)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var audio bytes.Buffer
	for chunk, err := range stream.Recv() {
		if err != nil {
			return nil, err
		}
		audio.Write(chunk.Audio)
	}
	if st := stream.Status(); st != StreamCompleted {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, wrapError(ErrSessionCancelled, "synthesize "+st.String())
	}

	return &TTSResponse{
		Audio:    audio.Bytes(),
		Duration: stream.Duration(),
		ReqID:    stream.ReqID(),
	}, nil
}

// SynthesizeStream starts streaming synthesis.
//
// The request is sent before SynthesizeStream returns; audio is pulled with
// TTSStream.Recv. The caller must drain or Close the stream.
func (s *TTSService) SynthesizeStream(ctx context.Context, req *TTSRequest) (*TTSStream, error) {
	return s.open(ctx, req, operationSubmit)
}

func (s *TTSService) open(ctx context.Context, req *TTSRequest, operation string) (*TTSStream, error) {
	if req == nil || req.Text == "" {
		return nil, errEmptyText
	}

	sess, err := s.client.OpenSession(ctx, ttsPath)
	if err != nil {
		return nil, err
	}

	payload := s.client.buildTTSRequest(req, operation, sess.ReqID())
	if err := sess.SendJSON(ctx, DefaultHeader(), payload); err != nil {
		sess.Close()
		return nil, wrapError(err, "send request")
	}

	stream := &TTSStream{
		ctx:    ctx,
		sess:   sess,
		reqID:  payload.Request.ReqID,
		logger: sess.logger,
	}
	stream.logger.Debug("tts request sent", "operation", operation, "voice_type", payload.Audio.VoiceType, "text_len", len(req.Text))
	return stream, nil
}

// TTSStream is one in-flight streaming synthesis. It is finite and can be
// consumed only once.
type TTSStream struct {
	ctx    context.Context
	sess   *Session
	reqID  string
	logger *slog.Logger

	started  atomic.Bool
	duration atomic.Int64

	mu     sync.Mutex
	status StreamStatus
	err    error
}

// ReqID returns the request id sent to the server.
func (st *TTSStream) ReqID() string {
	return st.reqID
}

// Recv yields every non-empty audio frame as soon as it is decoded.
//
// The sequence ends after the final frame, on an error (yielded once), or
// at the next frame boundary after Cancel. Breaking out of the loop counts
// as cancellation. A second call yields nothing.
func (st *TTSStream) Recv() iter.Seq2[*TTSChunk, error] {
	return func(yield func(*TTSChunk, error) bool) {
		if !st.started.CompareAndSwap(false, true) {
			return
		}
		defer st.sess.Close()

		for {
			resp, err := st.sess.ReceiveResponse(st.ctx)
			if err != nil {
				if errors.Is(err, ErrSessionCancelled) {
					st.finish(StreamCancelled, nil)
					return
				}
				st.finish(StreamFailed, err)
				yield(nil, err)
				return
			}

			chunk, last, err := st.handle(resp)
			if err != nil {
				st.finish(StreamFailed, err)
				yield(nil, err)
				return
			}
			if chunk != nil {
				if !yield(chunk, nil) {
					st.finish(StreamCancelled, nil)
					return
				}
			}
			if last {
				st.finish(StreamCompleted, nil)
				return
			}
		}
	}
}

// handle turns one server frame into an optional audio chunk.
func (st *TTSStream) handle(resp *Response) (*TTSChunk, bool, error) {
	switch resp.MessageType {
	case MsgTypeError:
		return nil, true, errorFromResponse(resp)

	case MsgTypeServerACK:
		if resp.Flags == FlagNoSequence {
			return nil, false, nil
		}
		last := resp.IsLast()
		if len(resp.Body) == 0 {
			return nil, last, nil
		}
		return &TTSChunk{Audio: resp.Body, Sequence: resp.Sequence, IsLast: last}, last, nil

	case MsgTypeFullServer:
		var msg ttsServerMessage
		if resp.JSON != nil {
			if err := resp.Unmarshal(&msg); err != nil {
				return nil, true, err
			}
		}
		if msg.Code != 0 && msg.Code != CodeSuccess {
			if msg.ReqID == "" {
				msg.ReqID = st.reqID
			}
			return nil, true, &Error{Code: int64(msg.Code), Message: msg.Message, ReqID: msg.ReqID}
		}
		if d, err := strconv.Atoi(msg.Addition.Duration); err == nil {
			st.duration.Store(int64(d))
		}
		return nil, msg.Sequence < 0, nil

	case MsgTypeFrontendServer:
		st.logger.Debug("tts frontend message", "size", len(resp.Body))
		return nil, false, nil
	}
	return nil, false, nil
}

func (st *TTSStream) finish(status StreamStatus, err error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.status != StreamRunning {
		return
	}
	st.status = status
	st.err = err
	if err != nil {
		st.logger.Warn("tts stream failed", "error", err)
	} else {
		st.logger.Debug("tts stream finished", "status", status)
	}
}

// Cancel stops the stream at the next receive boundary. Recv then ends
// without an error and Status reports StreamCancelled.
func (st *TTSStream) Cancel() {
	st.sess.Cancel()
}

// Status reports the terminal state, or StreamRunning while in flight.
func (st *TTSStream) Status() StreamStatus {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.status
}

// Err returns the failure of a StreamFailed stream.
func (st *TTSStream) Err() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.err
}

// Duration returns the audio duration in milliseconds reported by the
// server, or 0.
func (st *TTSStream) Duration() int {
	return int(st.duration.Load())
}

// Close releases the connection. A stream that was never consumed is
// marked cancelled.
func (st *TTSStream) Close() error {
	st.finish(StreamCancelled, nil)
	return st.sess.Close()
}
