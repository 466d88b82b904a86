package detector

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/Gowithe/scangrade-thai/internal/imaging"
	"github.com/Gowithe/scangrade-thai/internal/marks"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// request is the frame sent to the model server.
type request struct {
	Conf   float64 `json:"conf"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Image  string  `json:"image"`
}

// response is the model server's reply. Each box is [x1, y1, x2, y2, conf].
type response struct {
	Boxes [][]float64 `json:"boxes"`
	Error string      `json:"error,omitempty"`
}

// Option configures a WebSocket detector.
type Option func(*WebSocket)

// WithLogger sets the logger used for connection events.
func WithLogger(log logrus.FieldLogger) Option {
	return func(w *WebSocket) {
		w.log = log
	}
}

// WithHandshakeTimeout bounds the websocket handshake.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(w *WebSocket) {
		w.dialer.HandshakeTimeout = d
	}
}

// WebSocket asks an external model server for marks over a websocket.
//
// The connection is opened on first use and reopened after any failure.
// Requests are serialised over the single connection. The detector applies
// no timeout of its own; a deadline on the context passed to Detect bounds
// the exchange.
type WebSocket struct {
	url    string
	dialer websocket.Dialer
	log    logrus.FieldLogger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWebSocket creates a detector talking to the model server at url
// (ws:// or wss://). No connection is made until the first Detect.
func NewWebSocket(url string, opts ...Option) *WebSocket {
	w := &WebSocket{
		url:    url,
		dialer: websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Detect sends img to the model server and returns the boxes with a
// confidence of at least confThreshold.
func (w *WebSocket) Detect(ctx context.Context, img image.Image, confThreshold float64) ([]marks.Detection, error) {
	encoded, err := imaging.EncodeBase64(img, imaging.FormatPNG)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(request{
		Conf:   confThreshold,
		Width:  encoded.Width,
		Height: encoded.Height,
		Image:  encoded.ImageBase64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode detector request: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	conn, err := w.connect(ctx)
	if err != nil {
		return nil, err
	}

	deadline, _ := ctx.Deadline()
	conn.SetWriteDeadline(deadline)
	conn.SetReadDeadline(deadline)

	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		w.drop()
		return nil, fmt.Errorf("%w: error sending frame: %v", ErrUnavailable, err)
	}

	_, message, err := conn.ReadMessage()
	if err != nil {
		w.drop()
		return nil, fmt.Errorf("%w: error reading reply: %v", ErrUnavailable, err)
	}

	var resp response
	if err := json.Unmarshal(message, &resp); err != nil {
		return nil, fmt.Errorf("%w: malformed reply: %v", ErrUnavailable, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, resp.Error)
	}

	detections := make([]marks.Detection, 0, len(resp.Boxes))
	for _, b := range resp.Boxes {
		if len(b) < 5 {
			continue
		}
		if b[4] < confThreshold {
			continue
		}
		detections = append(detections, marks.Detection{
			Box:        marks.Box{X1: b[0], Y1: b[1], X2: b[2], Y2: b[3]},
			Confidence: b[4],
		})
	}

	w.log.WithField("boxes", len(detections)).Debug("Received marks from model server")
	return detections, nil
}

// Close closes the connection, if any. The detector reconnects on the next
// Detect.
func (w *WebSocket) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return nil
	}
	err := w.conn.Close()
	w.conn = nil
	return err
}

// connect returns the open connection, dialling when there is none. The
// caller holds w.mu.
func (w *WebSocket) connect(ctx context.Context) (*websocket.Conn, error) {
	if w.conn != nil {
		return w.conn, nil
	}

	w.log.WithField("url", w.url).Info("Connecting to model server")
	conn, _, err := w.dialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to %s: %v", ErrUnavailable, w.url, err)
	}
	w.conn = conn
	return conn, nil
}

// drop discards a broken connection. The caller holds w.mu.
func (w *WebSocket) drop() {
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
}
