package doubaospeech

import (
	"bytes"
	"encoding/binary"
	"errors"
	"reflect"
	"testing"
)

func TestDefaultHeaderGoldenVector(t *testing.T) {
	got, err := EncodeHeader(DefaultHeader())
	if err != nil {
		t.Fatalf("EncodeHeader() error = %v", err)
	}
	want := []byte{0x11, 0x10, 0x11, 0x00}
	if !bytes.Equal(got, want) {
		t.Fatalf("EncodeHeader(DefaultHeader()) = % x, want % x", got, want)
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		h    Header
	}{
		{"default", DefaultHeader()},
		{"audio last", AudioHeader(true)},
		{"audio", AudioHeader(false)},
		{"error", Header{Version: 1, MessageType: MsgTypeError, Serialization: SerializationJSON, Reserved: 0x7f}},
		{"extension", Header{Version: 1, MessageType: MsgTypeServerACK, Flags: FlagNegSequence1,
			Serialization: SerializationThrift, Compression: CompressionCustom, Extension: []byte{1, 2, 3, 4, 5, 6, 7, 8}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeHeader(tt.h)
			if err != nil {
				t.Fatalf("EncodeHeader() error = %v", err)
			}
			if len(data) != tt.h.Units()*4 {
				t.Fatalf("len = %d, want %d", len(data), tt.h.Units()*4)
			}
			got, rest, err := DecodeHeader(data)
			if err != nil {
				t.Fatalf("DecodeHeader() error = %v", err)
			}
			if len(rest) != 0 {
				t.Errorf("rest = % x, want empty", rest)
			}
			if !reflect.DeepEqual(got, tt.h) {
				t.Errorf("DecodeHeader() = %+v, want %+v", got, tt.h)
			}
		})
	}
}

func TestAudioHeaderFlags(t *testing.T) {
	if got := AudioHeader(true).Flags; got != FlagNegSequence {
		t.Errorf("AudioHeader(true).Flags = %d, want %d", got, FlagNegSequence)
	}
	if got := AudioHeader(false).Flags; got != FlagNoSequence {
		t.Errorf("AudioHeader(false).Flags = %d, want %d", got, FlagNoSequence)
	}
	data, _ := EncodeHeader(AudioHeader(true))
	if data[1] != 0x22 {
		t.Errorf("byte 1 = %#x, want 0x22", data[1])
	}
}

func TestEncodeHeaderInvalidExtension(t *testing.T) {
	for _, n := range []int{1, 3, 6, 60} {
		h := DefaultHeader()
		h.Extension = make([]byte, n)
		_, err := EncodeHeader(h)
		if !errors.Is(err, ErrInvalidExtensionLength) {
			t.Errorf("extension %d bytes: error = %v, want ErrInvalidExtensionLength", n, err)
		}
		if !errors.Is(err, ErrFraming) {
			t.Errorf("extension %d bytes: error does not wrap ErrFraming", n)
		}
	}
}

func TestDecodeHeaderTruncated(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"three bytes", []byte{0x11, 0x10, 0x11}},
		{"zero units", []byte{0x10, 0x10, 0x11, 0x00}},
		{"declared extension missing", []byte{0x12, 0x10, 0x11, 0x00, 0xaa}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeHeader(tt.data)
			if !errors.Is(err, ErrTruncatedFrame) {
				t.Errorf("DecodeHeader() error = %v, want ErrTruncatedFrame", err)
			}
		})
	}
}

func TestEncodeFrame(t *testing.T) {
	frame, err := EncodeFrame(AudioHeader(false), []byte("abc"))
	if err != nil {
		t.Fatalf("EncodeFrame() error = %v", err)
	}
	want := []byte{0x11, 0x20, 0x11, 0x00, 0, 0, 0, 3, 'a', 'b', 'c'}
	if !bytes.Equal(frame, want) {
		t.Fatalf("EncodeFrame() = % x, want % x", frame, want)
	}
}

func ackHeader(flags MessageFlags) Header {
	return Header{Version: 1, MessageType: MsgTypeServerACK, Flags: flags}
}

func TestDecodePayloadACKShort(t *testing.T) {
	resp, err := DecodePayload(ackHeader(FlagPosSequence), []byte{0x01, 0x02})
	if err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	if resp.Sequence != 0 || resp.HasBody || resp.Body != nil {
		t.Errorf("short ACK = %+v, want sequence 0 and no body", resp)
	}

	resp, err = DecodePayload(ackHeader(FlagNegSequence), []byte{0xff, 0xff, 0xff, 0xfe, 0x00, 0x01})
	if err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	if resp.Sequence != -2 {
		t.Errorf("Sequence = %d, want -2", resp.Sequence)
	}
	if !resp.IsLast() {
		t.Error("IsLast() = false, want true")
	}
	if resp.HasBody || resp.PayloadSize != 0 {
		t.Errorf("HasBody = %v, PayloadSize = %d, want no body", resp.HasBody, resp.PayloadSize)
	}
}

func TestDecodePayloadACKAudio(t *testing.T) {
	payload := binary.BigEndian.AppendUint32(nil, 7)
	payload = binary.BigEndian.AppendUint32(payload, 4)
	payload = append(payload, 0xde, 0xad, 0xbe, 0xef)

	h := ackHeader(FlagPosSequence)
	h.Serialization = SerializationJSON
	resp, err := DecodePayload(h, payload)
	if err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	if resp.Sequence != 7 || resp.PayloadSize != 4 {
		t.Errorf("Sequence = %d, PayloadSize = %d, want 7, 4", resp.Sequence, resp.PayloadSize)
	}
	if !bytes.Equal(resp.Body, []byte{0xde, 0xad, 0xbe, 0xef}) {
		t.Errorf("Body = % x", resp.Body)
	}
	if resp.JSON != nil {
		t.Errorf("JSON = %s, want nil for audio", resp.JSON)
	}
}

func TestDecodePayloadTrimsToDeclaredSize(t *testing.T) {
	payload := binary.BigEndian.AppendUint32(nil, 3)
	payload = binary.BigEndian.AppendUint32(payload, 2)
	payload = append(payload, 0x01, 0x02, 0xff, 0xff)

	resp, err := DecodePayload(ackHeader(FlagPosSequence), payload)
	if err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	if !bytes.Equal(resp.Body, []byte{0x01, 0x02}) {
		t.Errorf("Body = % x, want 01 02", resp.Body)
	}
}

func TestDecodeFrameFullServerGzipJSON(t *testing.T) {
	frame := fullFrame(t, map[string]any{"code": 1000, "message": "Success"})
	resp, err := DecodeFrame(frame)
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}
	if resp.MessageType != MsgTypeFullServer {
		t.Errorf("MessageType = %s", resp.MessageType)
	}
	var body struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := resp.Unmarshal(&body); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if body.Code != 1000 || body.Message != "Success" {
		t.Errorf("body = %+v", body)
	}
}

func TestDecodePayloadFrontend(t *testing.T) {
	body := []byte(`{"words":[]}`)
	payload := binary.BigEndian.AppendUint32(nil, uint32(len(body)))
	payload = append(payload, body...)
	resp, err := DecodePayload(Header{Version: 1, MessageType: MsgTypeFrontendServer, Serialization: SerializationJSON}, payload)
	if err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	if string(resp.JSON) != string(body) {
		t.Errorf("JSON = %s, want %s", resp.JSON, body)
	}
}

func TestDecodeFrameErrorPlainText(t *testing.T) {
	resp, err := DecodeFrame(errorFrame(45000001, "bad request"))
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}
	if resp.Code != 45000001 {
		t.Errorf("Code = %d, want 45000001", resp.Code)
	}
	if string(resp.Body) != "bad request" {
		t.Errorf("Body = %q, want %q", resp.Body, "bad request")
	}

	e := errorFromResponse(resp)
	if e.Code != 45000001 || e.Message != "bad request" {
		t.Errorf("errorFromResponse() = %+v", e)
	}
}

func TestErrorFromResponseVerbatim(t *testing.T) {
	resp, err := DecodeFrame(errorFrame(0xfffffff0, "  busy, retry later\n"))
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}
	e := errorFromResponse(resp)
	if e.Code != 4294967280 {
		t.Errorf("Code = %d, want 4294967280", e.Code)
	}
	if e.Message != "  busy, retry later\n" {
		t.Errorf("Message = %q, want the body as sent", e.Message)
	}
}

func TestDecodePayloadErrorJSON(t *testing.T) {
	body := []byte(`{"reqid":"r1","error":"quota exceeded"}`)
	payload := binary.BigEndian.AppendUint32(nil, 3004)
	payload = binary.BigEndian.AppendUint32(payload, uint32(len(body)))
	payload = append(payload, body...)

	resp, err := DecodePayload(Header{Version: 1, MessageType: MsgTypeError, Serialization: SerializationJSON}, payload)
	if err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	e := errorFromResponse(resp)
	if e.Code != 3004 || e.Message != "quota exceeded" || e.ReqID != "r1" {
		t.Errorf("errorFromResponse() = %+v", e)
	}
}

func TestDecodePayloadErrors(t *testing.T) {
	sized := func(body []byte) []byte {
		return append(binary.BigEndian.AppendUint32(nil, uint32(len(body))), body...)
	}

	tests := []struct {
		name    string
		h       Header
		payload []byte
		want    error
	}{
		{
			name: "unknown type",
			h:    Header{Version: 1, MessageType: MsgTypeFullClient},
			want: ErrUnknownMessageType,
		},
		{
			name:    "bad gzip",
			h:       Header{Version: 1, MessageType: MsgTypeFullServer, Compression: CompressionGzip},
			payload: sized([]byte("not gzip")),
			want:    ErrCompression,
		},
		{
			name:    "bad json",
			h:       Header{Version: 1, MessageType: MsgTypeFullServer, Serialization: SerializationJSON},
			payload: sized([]byte("{oops")),
			want:    ErrDecode,
		},
		{
			name:    "short full response",
			h:       Header{Version: 1, MessageType: MsgTypeFullServer},
			payload: []byte{0, 0},
			want:    ErrTruncatedFrame,
		},
		{
			name:    "short error response",
			h:       Header{Version: 1, MessageType: MsgTypeError},
			payload: []byte{0, 0, 0, 1},
			want:    ErrTruncatedFrame,
		},
		{
			name:    "full size exceeds body",
			h:       Header{Version: 1, MessageType: MsgTypeFullServer},
			payload: append(binary.BigEndian.AppendUint32(nil, 1000), "abc"...),
			want:    ErrTruncatedFrame,
		},
		{
			name:    "ack size exceeds body",
			h:       ackHeader(FlagNegSequence),
			payload: append(binary.BigEndian.AppendUint32([]byte{0xff, 0xff, 0xff, 0xfe}, 1000), "abc"...),
			want:    ErrTruncatedFrame,
		},
		{
			name:    "error size exceeds body",
			h:       Header{Version: 1, MessageType: MsgTypeError},
			payload: append(binary.BigEndian.AppendUint32([]byte{0, 0, 0x0b, 0xbc}, 64), "oops"...),
			want:    ErrTruncatedFrame,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePayload(tt.h, tt.payload)
			if !errors.Is(err, tt.want) {
				t.Errorf("DecodePayload() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCompressPayload(t *testing.T) {
	data := []byte("hello hello hello")
	gz, err := CompressPayload(CompressionGzip, data)
	if err != nil {
		t.Fatalf("CompressPayload() error = %v", err)
	}
	got, err := gzipDecompress(gz)
	if err != nil {
		t.Fatalf("gzipDecompress() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("round trip = %q, want %q", got, data)
	}

	if _, err := CompressPayload(CompressionCustom, data); !errors.Is(err, ErrCompression) {
		t.Errorf("CompressPayload(custom) error = %v, want ErrCompression", err)
	}
}
