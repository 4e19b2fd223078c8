package doubaospeech

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// ================== Protocol constants ==================

// MessageType is the 4-bit message type of a frame.
type MessageType byte

// MessageFlags is the 4-bit message-type specific flags of a frame.
type MessageFlags byte

// Serialization is the 4-bit payload serialization method.
type Serialization byte

// Compression is the 4-bit payload compression method.
type Compression byte

const (
	// ProtocolVersion1 is the only protocol version spoken by the server.
	ProtocolVersion1 byte = 0b0001

	MsgTypeFullClient      MessageType = 0b0001
	MsgTypeAudioOnlyClient MessageType = 0b0010
	MsgTypeFullServer      MessageType = 0b1001
	MsgTypeServerACK       MessageType = 0b1011 // audio-only server response
	MsgTypeFrontendServer  MessageType = 0b1100
	MsgTypeError           MessageType = 0b1111

	FlagNoSequence   MessageFlags = 0b0000
	FlagPosSequence  MessageFlags = 0b0001
	FlagNegSequence  MessageFlags = 0b0010 // last message, sequence < 0
	FlagNegSequence1 MessageFlags = 0b0011

	SerializationNone   Serialization = 0b0000
	SerializationJSON   Serialization = 0b0001
	SerializationThrift Serialization = 0b0011
	SerializationCustom Serialization = 0b1111

	CompressionNone   Compression = 0b0000
	CompressionGzip   Compression = 0b0001
	CompressionCustom Compression = 0b1111
)

func (t MessageType) String() string {
	switch t {
	case MsgTypeFullClient:
		return "full client request"
	case MsgTypeAudioOnlyClient:
		return "audio-only client request"
	case MsgTypeFullServer:
		return "full server response"
	case MsgTypeServerACK:
		return "audio-only server response"
	case MsgTypeFrontendServer:
		return "frontend server response"
	case MsgTypeError:
		return "error message from server"
	}
	return fmt.Sprintf("message type %#x", byte(t))
}

// ================== Header ==================

// Header is the fixed 4-byte frame header plus its optional extension.
//
// Layout:
//   - (4bits) version + (4bits) header size in 4-byte units
//   - (4bits) message type + (4bits) message type flags
//   - (4bits) serialization + (4bits) compression
//   - (8bits) reserved
//   - extension, 4*(header size-1) bytes
type Header struct {
	Version       byte
	MessageType   MessageType
	Flags         MessageFlags
	Serialization Serialization
	Compression   Compression
	Reserved      byte
	Extension     []byte
}

// headerUnits is the largest header size expressible in 4 bits.
const headerUnits = 0x0f

// DefaultHeader returns the header used for synthesis and recognition
// control requests: v1, full client request, no sequence, JSON, gzip.
func DefaultHeader() Header {
	return Header{
		Version:       ProtocolVersion1,
		MessageType:   MsgTypeFullClient,
		Flags:         FlagNoSequence,
		Serialization: SerializationJSON,
		Compression:   CompressionGzip,
	}
}

// AudioHeader returns the header for an audio-only client request. The last
// segment of a stream carries FlagNegSequence.
func AudioHeader(last bool) Header {
	h := DefaultHeader()
	h.MessageType = MsgTypeAudioOnlyClient
	if last {
		h.Flags = FlagNegSequence
	}
	return h
}

// Units returns the header length in 4-byte units.
func (h Header) Units() int {
	return len(h.Extension)/4 + 1
}

// EncodeHeader encodes the header and its extension.
func EncodeHeader(h Header) ([]byte, error) {
	if len(h.Extension)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidExtensionLength, len(h.Extension))
	}
	units := h.Units()
	if units > headerUnits {
		return nil, fmt.Errorf("%w: %d units", ErrInvalidExtensionLength, units)
	}

	buf := make([]byte, 0, units*4)
	buf = append(buf,
		(h.Version&0x0f)<<4|byte(units),
		byte(h.MessageType&0x0f)<<4|byte(h.Flags&0x0f),
		byte(h.Serialization&0x0f)<<4|byte(h.Compression&0x0f),
		h.Reserved,
	)
	return append(buf, h.Extension...), nil
}

// DecodeHeader parses the header of a frame and returns the remaining payload.
// The returned extension and payload alias data.
func DecodeHeader(data []byte) (Header, []byte, error) {
	if len(data) < 4 {
		return Header{}, nil, fmt.Errorf("%w: %d bytes", ErrTruncatedFrame, len(data))
	}
	units := int(data[0] & 0x0f)
	size := units * 4
	if units == 0 || len(data) < size {
		return Header{}, nil, fmt.Errorf("%w: header declares %d bytes, have %d", ErrTruncatedFrame, size, len(data))
	}

	h := Header{
		Version:       data[0] >> 4,
		MessageType:   MessageType(data[1] >> 4),
		Flags:         MessageFlags(data[1] & 0x0f),
		Serialization: Serialization(data[2] >> 4),
		Compression:   Compression(data[2] & 0x0f),
		Reserved:      data[3],
	}
	if size > 4 {
		h.Extension = data[4:size]
	}
	return h, data[size:], nil
}

// EncodeFrame encodes a client frame: header, 4-byte big-endian payload size
// and payload. The payload must already be compressed as the header says.
func EncodeFrame(h Header, payload []byte) ([]byte, error) {
	header, err := EncodeHeader(h)
	if err != nil {
		return nil, err
	}
	buf := bytes.NewBuffer(make([]byte, 0, len(header)+4+len(payload)))
	buf.Write(header)
	if err := binary.Write(buf, binary.BigEndian, uint32(len(payload))); err != nil {
		return nil, fmt.Errorf("write payload size: %w", err)
	}
	buf.Write(payload)
	return buf.Bytes(), nil
}

// encodeJSONFrame marshals v, compresses it as h says and frames it.
func encodeJSONFrame(h Header, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	payload, err := CompressPayload(h.Compression, body)
	if err != nil {
		return nil, err
	}
	return EncodeFrame(h, payload)
}

// CompressPayload compresses data with the given method.
func CompressPayload(c Compression, data []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionGzip:
		out, err := gzipCompress(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCompression, err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: unsupported method %#x", ErrCompression, byte(c))
}

// ================== Server responses ==================

// Response is a decoded server frame payload.
type Response struct {
	MessageType MessageType
	Flags       MessageFlags

	// Sequence is set for SERVER_ACK frames. Negative means last frame.
	Sequence int32

	// Code is set for SERVER_ERROR_RESPONSE frames.
	Code uint32

	// HasBody reports whether the frame carried a size-prefixed body.
	HasBody     bool
	PayloadSize uint32

	// Body is the decompressed payload body.
	Body []byte

	// JSON is Body when the frame is JSON serialized. It has been validated.
	JSON json.RawMessage
}

// IsLast reports whether this frame ends the server stream.
func (r *Response) IsLast() bool {
	return r.Sequence < 0
}

// Unmarshal decodes a JSON body into v.
func (r *Response) Unmarshal(v any) error {
	if r.JSON == nil {
		return fmt.Errorf("%w: %s has no JSON body", ErrDecode, r.MessageType)
	}
	if err := json.Unmarshal(r.JSON, v); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

// DecodeFrame parses a whole server frame.
func DecodeFrame(data []byte) (*Response, error) {
	h, payload, err := DecodeHeader(data)
	if err != nil {
		return nil, err
	}
	return DecodePayload(h, payload)
}

// DecodePayload decodes the payload that follows a server frame header.
func DecodePayload(h Header, payload []byte) (*Response, error) {
	resp := &Response{
		MessageType: h.MessageType,
		Flags:       h.Flags,
	}

	var body []byte
	switch h.MessageType {
	case MsgTypeFullServer, MsgTypeFrontendServer:
		if len(payload) < 4 {
			return nil, fmt.Errorf("%w: %s payload of %d bytes", ErrTruncatedFrame, h.MessageType, len(payload))
		}
		resp.HasBody = true
		resp.PayloadSize = binary.BigEndian.Uint32(payload[:4])
		body = payload[4:]
	case MsgTypeServerACK:
		if len(payload) >= 4 {
			resp.Sequence = int32(binary.BigEndian.Uint32(payload[:4]))
		}
		if len(payload) >= 8 {
			resp.HasBody = true
			resp.PayloadSize = binary.BigEndian.Uint32(payload[4:8])
			body = payload[8:]
		}
	case MsgTypeError:
		if len(payload) < 8 {
			return nil, fmt.Errorf("%w: error payload of %d bytes", ErrTruncatedFrame, len(payload))
		}
		resp.Code = binary.BigEndian.Uint32(payload[:4])
		resp.HasBody = true
		resp.PayloadSize = binary.BigEndian.Uint32(payload[4:8])
		body = payload[8:]
	default:
		return nil, fmt.Errorf("%w: %#x", ErrUnknownMessageType, byte(h.MessageType))
	}

	if !resp.HasBody {
		return resp, nil
	}
	if uint64(resp.PayloadSize) > uint64(len(body)) {
		return nil, fmt.Errorf("%w: %s declares %d payload bytes, have %d",
			ErrTruncatedFrame, h.MessageType, resp.PayloadSize, len(body))
	}
	body = body[:resp.PayloadSize]

	if h.Compression == CompressionGzip && len(body) > 0 {
		decompressed, err := gzipDecompress(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCompression, err)
		}
		body = decompressed
	}
	resp.Body = body

	if h.Serialization == SerializationJSON && len(body) > 0 {
		switch {
		case h.MessageType == MsgTypeServerACK:
			// Audio-only responses carry audio bytes; the serialization
			// nibble describes the control channel.
		case json.Valid(body):
			resp.JSON = json.RawMessage(body)
		case h.MessageType == MsgTypeError:
			// Error messages are plain text on some clusters.
		default:
			return nil, fmt.Errorf("%w: invalid JSON body in %s", ErrDecode, h.MessageType)
		}
	}
	return resp, nil
}

// gzipCompress gzip 压缩
func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// gzipDecompress gzip 解压
func gzipDecompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
