package doubaospeech

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/go-audio/wav"
)

var errEmptyAudio = errors.New("doubaospeech: audio is required")

// ASRService provides speech recognition over /api/v2/asr.
type ASRService struct {
	client *Client
}

// newASRService creates ASR service
func newASRService(c *Client) *ASRService {
	return &ASRService{client: c}
}

// Recognize sends a finite audio buffer and returns the final result.
//
// The buffer is split into segments of config.SegmentMs of audio and sent
// as gzip audio-only requests after one full client request carrying the
// configuration. Exactly one response is read after every send; the first
// failing response stops the exchange and the remaining segments are not
// sent. The result of the response to the last segment is returned.
func (s *ASRService) Recognize(ctx context.Context, audio []byte, config *RecognizeConfig) (*ASRResult, error) {
	if len(audio) == 0 {
		return nil, errEmptyAudio
	}
	cfg := config.withDefaults()

	segSize, err := SegmentSize(audio, &cfg)
	if err != nil {
		return nil, err
	}

	// The full request is built before dialing; signature auth signs it
	// into the handshake.
	reqID := generateReqID()
	request, err := encodeJSONFrame(DefaultHeader(), s.client.buildASRRequest(&cfg, reqID))
	if err != nil {
		return nil, err
	}
	header := s.client.authHeader()
	if s.client.config.secret != "" {
		header = s.client.signedHeader(asrPath, request)
	}

	sess, err := s.client.openSession(ctx, asrPath, reqID, header)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	logger := sess.logger.With("format", cfg.Format)

	if err := sess.Send(ctx, request); err != nil {
		return nil, wrapError(err, "send request")
	}
	if _, err := s.receive(ctx, sess); err != nil {
		return nil, err
	}

	var result *ASRResult
	segments := splitSegments(audio, segSize)
	for i, seg := range segments {
		last := i == len(segments)-1
		seq := sess.NextSequence()

		compressed, err := CompressPayload(CompressionGzip, seg)
		if err != nil {
			return nil, err
		}
		frame, err := EncodeFrame(AudioHeader(last), compressed)
		if err != nil {
			return nil, err
		}
		if err := sess.Send(ctx, frame); err != nil {
			return nil, wrapError(err, fmt.Sprintf("send segment %d", seq))
		}

		result, err = s.receive(ctx, sess)
		if err != nil {
			logger.Warn("asr segment rejected", "segment", seq, "error", err)
			return nil, err
		}
	}

	logger.Debug("asr finished", "segments", len(segments), "text", result.Text)
	return result, nil
}

// receive reads one response and checks its status code.
func (s *ASRService) receive(ctx context.Context, sess *Session) (*ASRResult, error) {
	resp, err := sess.ReceiveResponse(ctx)
	if err != nil {
		return nil, wrapError(err, "receive response")
	}

	switch resp.MessageType {
	case MsgTypeError:
		e := errorFromResponse(resp)
		if e.ReqID == "" {
			e.ReqID = sess.ReqID()
		}
		return nil, e
	case MsgTypeFullServer:
	default:
		return nil, fmt.Errorf("%w: unexpected %s", ErrDecode, resp.MessageType)
	}

	var result ASRResult
	if err := resp.Unmarshal(&result); err != nil {
		return nil, err
	}
	if result.Code != CodeASRSuccess {
		reqID := result.ReqID
		if reqID == "" {
			reqID = sess.ReqID()
		}
		return nil, &Error{Code: int64(result.Code), Message: result.Message, ReqID: reqID}
	}
	if len(result.Candidates) > 0 {
		result.Text = result.Candidates[0].Text
	}
	result.Raw = resp.JSON
	return &result, nil
}

// SegmentSize returns the number of bytes carrying config.SegmentMs of
// audio.
//
// WAV sizes come from the WAV header, PCM and raw sizes from config, and
// MP3 uses the fixed config.MP3SegmentSize.
func SegmentSize(audio []byte, config *RecognizeConfig) (int, error) {
	cfg := config.withDefaults()

	var size int
	switch cfg.Format {
	case FormatWAV:
		dec := wav.NewDecoder(bytes.NewReader(audio))
		if !dec.IsValidFile() {
			return 0, fmt.Errorf("%w: not a valid wav file", ErrDecode)
		}
		size = int(dec.NumChans) * int(dec.BitDepth/8) * int(dec.SampleRate) * cfg.SegmentMs / 1000
	case FormatPCM, FormatRaw:
		size = cfg.Channels * (cfg.Bits / 8) * cfg.SampleRate * cfg.SegmentMs / 1000
	case FormatMP3:
		size = cfg.MP3SegmentSize
	default:
		return 0, fmt.Errorf("doubaospeech: unsupported audio format %q", cfg.Format)
	}
	if size <= 0 {
		return 0, fmt.Errorf("doubaospeech: invalid segment size %d for %s", size, cfg.Format)
	}
	return size, nil
}

// splitSegments slices data into consecutive chunks of at most size bytes.
func splitSegments(data []byte, size int) [][]byte {
	segments := make([][]byte, 0, (len(data)+size-1)/size)
	for offset := 0; offset < len(data); offset += size {
		end := min(offset+size, len(data))
		segments = append(segments, data[offset:end])
	}
	return segments
}
