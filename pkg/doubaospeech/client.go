package doubaospeech

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/semaphore"
)

const (
	defaultWSURL           = "wss://openspeech.bytedance.com"
	defaultHandshakeTimout = 10 * time.Second
	defaultMaxSessions     = 4

	ttsPath = "/api/v1/tts/ws_binary"
	asrPath = "/api/v2/asr"
)

// Client represents Doubao Speech API client speaking the binary framing
// protocol over WebSocket.
type Client struct {
	TTS *TTSService // TTS 经典版 (/api/v1/tts/ws_binary)
	ASR *ASRService // ASR 流式版 (/api/v2/asr)

	config   *clientConfig
	dialer   *websocket.Dialer
	sessions *semaphore.Weighted
	logger   *slog.Logger
}

// clientConfig represents client configuration
type clientConfig struct {
	appID       string
	accessToken string // Bearer Token auth
	secret      string // HMAC256 signature auth, ASR only
	cluster     string // TTS cluster, e.g. volcano_tts
	asrCluster  string // ASR cluster, e.g. volcengine_streaming_common
	wsURL       string
	userID      string
	timeout     time.Duration
	maxSessions int64
	logger      *slog.Logger
}

// Option represents configuration option function
type Option func(*clientConfig)

// NewClient creates Doubao Speech client
//
// appID is the application ID from Volcano Engine console
func NewClient(appID string, opts ...Option) *Client {
	config := &clientConfig{
		appID:       appID,
		wsURL:       defaultWSURL,
		userID:      "pudding-robot",
		timeout:     defaultHandshakeTimout,
		maxSessions: defaultMaxSessions,
	}

	for _, opt := range opts {
		opt(config)
	}
	if config.maxSessions < 1 {
		config.maxSessions = 1
	}

	logger := config.logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		config: config,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.timeout,
		},
		sessions: semaphore.NewWeighted(config.maxSessions),
		logger:   logger.With("component", "doubaospeech"),
	}
	c.TTS = newTTSService(c)
	c.ASR = newASRService(c)
	return c
}

// WithBearerToken uses Bearer Token authentication
//
// token is the access_token from console
// Header format: Authorization: Bearer; {token}
func WithBearerToken(token string) Option {
	return func(c *clientConfig) {
		c.accessToken = token
	}
}

// WithSignature signs the ASR handshake with secret instead of sending the
// token as a Bearer header. The token set by WithBearerToken is still
// required.
//
// Header format: Authorization: HMAC256; access_token="{token}"; mac="{mac}"; h="Custom"
func WithSignature(secret string) Option {
	return func(c *clientConfig) {
		c.secret = secret
	}
}

// WithCluster sets the TTS cluster name, e.g. volcano_tts.
func WithCluster(cluster string) Option {
	return func(c *clientConfig) {
		c.cluster = cluster
	}
}

// WithASRCluster sets the ASR cluster name.
func WithASRCluster(cluster string) Option {
	return func(c *clientConfig) {
		c.asrCluster = cluster
	}
}

// WithWebSocketURL sets WebSocket URL
//
// Default: wss://openspeech.bytedance.com
func WithWebSocketURL(url string) Option {
	return func(c *clientConfig) {
		c.wsURL = url
	}
}

// WithTimeout sets the WebSocket handshake timeout. It does not bound
// Receive; callers needing bounded latency cancel the session themselves.
func WithTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// WithUserID sets user identifier
func WithUserID(userID string) Option {
	return func(c *clientConfig) {
		c.userID = userID
	}
}

// WithMaxSessions bounds the number of concurrently open sessions.
// OpenSession blocks until a slot is free.
func WithMaxSessions(n int) Option {
	return func(c *clientConfig) {
		c.maxSessions = int64(n)
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// authHeader returns the handshake headers.
// Note: the format is "Bearer; {token}" not "Bearer {token}".
func (c *Client) authHeader() http.Header {
	h := http.Header{}
	if c.config.accessToken != "" {
		h.Set("Authorization", "Bearer; "+c.config.accessToken)
	}
	return h
}

// signedHeader returns the HMAC256 handshake headers. The mac covers the
// request line, the values of the signed headers and first, the full
// client request sent after the handshake.
func (c *Client) signedHeader(path string, first []byte) http.Header {
	const custom = "auth_custom"

	reqPath := path
	if u, err := url.Parse(c.config.wsURL + path); err == nil {
		reqPath = u.Path
	}
	mac := hmac.New(sha256.New, []byte(c.config.secret))
	fmt.Fprintf(mac, "GET %s HTTP/1.1\n%s\n", reqPath, custom)
	mac.Write(first)
	sig := base64.URLEncoding.EncodeToString(mac.Sum(nil))

	h := http.Header{}
	h.Set("Custom", custom)
	h.Set("Authorization", fmt.Sprintf(`HMAC256; access_token="%s"; mac="%s"; h="Custom"`, c.config.accessToken, sig))
	return h
}

// OpenSession dials path on the configured WebSocket endpoint. It waits for
// a free session slot; the slot is released by Session.Close.
func (c *Client) OpenSession(ctx context.Context, path string) (*Session, error) {
	return c.openSession(ctx, path, generateReqID(), c.authHeader())
}

func (c *Client) openSession(ctx context.Context, path, reqID string, header http.Header) (*Session, error) {
	if err := c.sessions.Acquire(ctx, 1); err != nil {
		return nil, &TransportError{Op: "acquire session", Err: err}
	}

	target := c.config.wsURL + path
	conn, resp, err := c.dialer.DialContext(ctx, target, header)
	if err != nil {
		c.sessions.Release(1)
		if resp != nil {
			err = wrapError(err, "handshake status "+resp.Status)
		}
		return nil, &TransportError{Op: "dial", URL: target, Err: err}
	}
	// Binary frames can be large for long passages.
	conn.SetReadLimit(1 << 30)

	return newSession(conn, reqID, func() { c.sessions.Release(1) }, c.logger), nil
}
