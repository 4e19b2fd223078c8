package doubaospeech

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Session is one live WebSocket connection to the speech service.
//
// A session owns its request id, a running sequence counter for multi-segment
// sends and a cancellation token. Cancel is cooperative: a blocking Receive
// completes its read and then reports ErrSessionCancelled, so a frame is
// never abandoned half way.
//
// Send and Receive may be called from different goroutines; concurrent calls
// to the same method are serialized.
type Session struct {
	conn   *websocket.Conn
	reqID  string
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	seq atomic.Int32

	writeMu sync.Mutex
	readMu  sync.Mutex

	closeOnce sync.Once
	closeErr  error
	release   func()
}

func newSession(conn *websocket.Conn, reqID string, release func(), logger *slog.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		conn:    conn,
		reqID:   reqID,
		logger:  logger.With("reqid", reqID),
		ctx:     ctx,
		cancel:  cancel,
		release: release,
	}
}

// ReqID returns the request id of the session.
func (s *Session) ReqID() string {
	return s.reqID
}

// NextSequence returns the next segment sequence number, starting at 1.
func (s *Session) NextSequence() int32 {
	return s.seq.Add(1)
}

// Cancel requests cooperative cancellation. It never blocks.
func (s *Session) Cancel() {
	s.cancel()
}

// Cancelled reports whether Cancel has been called.
func (s *Session) Cancelled() bool {
	return s.ctx.Err() != nil
}

// Done is closed when the session is cancelled.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Send writes one binary frame.
func (s *Session) Send(ctx context.Context, frame []byte) error {
	if s.Cancelled() {
		return ErrSessionCancelled
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		s.conn.SetWriteDeadline(deadline)
		defer s.conn.SetWriteDeadline(time.Time{})
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return &TransportError{Op: "write message", Err: err}
	}
	return nil
}

// SendJSON encodes v as a gzip JSON frame with header h and sends it.
func (s *Session) SendJSON(ctx context.Context, h Header, v any) error {
	frame, err := encodeJSONFrame(h, v)
	if err != nil {
		return err
	}
	return s.Send(ctx, frame)
}

// Receive blocks until the next frame arrives and returns its bytes.
//
// There is no read timeout. ctx only unblocks the read early when it is done;
// the connection is unusable afterwards. Cancellation through Cancel is
// checked after the read returns.
func (s *Session) Receive(ctx context.Context) ([]byte, error) {
	if s.Cancelled() {
		return nil, ErrSessionCancelled
	}

	s.readMu.Lock()
	defer s.readMu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		s.conn.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	for {
		typ, data, err := s.conn.ReadMessage()
		if s.Cancelled() {
			return nil, ErrSessionCancelled
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				err = io.EOF
			}
			return nil, &TransportError{Op: "read message", Err: err}
		}
		if typ != websocket.BinaryMessage {
			s.logger.Debug("ignore non-binary message", "type", typ, "size", len(data))
			continue
		}
		return data, nil
	}
}

// ReceiveResponse receives one frame and decodes it.
func (s *Session) ReceiveResponse(ctx context.Context) (*Response, error) {
	data, err := s.Receive(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := DecodeFrame(data)
	if err != nil {
		return nil, wrapError(err, "decode frame")
	}
	return resp, nil
}

// Close cancels the session, closes the connection and frees the session
// slot. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		s.writeMu.Unlock()
		if err := s.conn.Close(); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			s.closeErr = err
		}
		if s.release != nil {
			s.release()
		}
	})
	return s.closeErr
}
