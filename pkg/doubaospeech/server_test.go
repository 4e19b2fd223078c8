package doubaospeech

import (
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

// fakeHandler drives one accepted connection of a fake speech server.
type fakeHandler func(t *testing.T, conn *websocket.Conn, r *http.Request)

// newFakeServer starts a WebSocket server and returns a client dialing it.
func newFakeServer(t *testing.T, handler fakeHandler, opts ...Option) *Client {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		handler(t, conn, r)
	}))
	t.Cleanup(srv.Close)

	opts = append([]Option{
		WithBearerToken("test-token"),
		WithCluster("volcano_tts"),
		WithASRCluster("volcengine_streaming_common"),
		WithWebSocketURL("ws" + strings.TrimPrefix(srv.URL, "http")),
	}, opts...)
	return NewClient("test-app", opts...)
}

// readClientFrame reads one client frame and returns its header and the
// decompressed body.
func readClientFrame(t *testing.T, conn *websocket.Conn) (Header, []byte, error) {
	t.Helper()

	_, data, err := conn.ReadMessage()
	if err != nil {
		return Header{}, nil, err
	}
	h, payload, err := DecodeHeader(data)
	if err != nil {
		t.Fatalf("DecodeHeader() error = %v", err)
	}
	if len(payload) < 4 {
		t.Fatalf("client payload too short: %d bytes", len(payload))
	}
	size := binary.BigEndian.Uint32(payload[:4])
	body := payload[4:]
	if int(size) != len(body) {
		t.Fatalf("payload size = %d, body has %d bytes", size, len(body))
	}
	if h.Compression == CompressionGzip {
		body, err = gzipDecompress(body)
		if err != nil {
			t.Fatalf("gzipDecompress() error = %v", err)
		}
	}
	return h, body, nil
}

// readClientJSON reads one full client request into v.
func readClientJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()

	h, body, err := readClientFrame(t, conn)
	if err != nil {
		t.Fatalf("read request: %v", err)
	}
	if h.MessageType != MsgTypeFullClient {
		t.Fatalf("MessageType = %s, want %s", h.MessageType, MsgTypeFullClient)
	}
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("unmarshal request: %v", err)
	}
}

func serverHeader(typ MessageType, flags MessageFlags, ser Serialization, comp Compression) []byte {
	h, err := EncodeHeader(Header{
		Version:       ProtocolVersion1,
		MessageType:   typ,
		Flags:         flags,
		Serialization: ser,
		Compression:   comp,
	})
	if err != nil {
		panic(err)
	}
	return h
}

// ackFrame builds an audio-only server response.
func ackFrame(seq int32, audio []byte) []byte {
	flags := FlagPosSequence
	if seq < 0 {
		flags = FlagNegSequence
	}
	buf := serverHeader(MsgTypeServerACK, flags, SerializationNone, CompressionNone)
	buf = binary.BigEndian.AppendUint32(buf, uint32(seq))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(audio)))
	return append(buf, audio...)
}

// errorFrame builds a server error response with a plain text message.
func errorFrame(code uint32, msg string) []byte {
	buf := serverHeader(MsgTypeError, FlagNoSequence, SerializationJSON, CompressionNone)
	buf = binary.BigEndian.AppendUint32(buf, code)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(msg)))
	return append(buf, msg...)
}

// fullFrame builds a gzip JSON full server response.
func fullFrame(t *testing.T, v any) []byte {
	t.Helper()

	body, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	gz, err := gzipCompress(body)
	if err != nil {
		t.Fatalf("gzipCompress() error = %v", err)
	}
	buf := serverHeader(MsgTypeFullServer, FlagNoSequence, SerializationJSON, CompressionGzip)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(gz)))
	return append(buf, gz...)
}

func writeFrame(t *testing.T, conn *websocket.Conn, frame []byte) {
	t.Helper()
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		t.Errorf("write frame: %v", err)
	}
}
