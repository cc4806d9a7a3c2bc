package broadcast

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// WebSocketSender writes each chunk as one binary message of little-endian
// float32 samples.
type WebSocketSender struct {
	mu   sync.Mutex
	conn *websocket.Conn
	buf  []byte
}

// Dial connects to a WebSocket endpoint such as ws://host/live.
func Dial(ctx context.Context, url string, header http.Header) (*WebSocketSender, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("broadcast: dial %s: %w", url, err)
	}
	return NewWebSocketSender(conn), nil
}

// NewWebSocketSender wraps an established connection.
func NewWebSocketSender(conn *websocket.Conn) *WebSocketSender {
	return &WebSocketSender{conn: conn}
}

func (w *WebSocketSender) Send(ctx context.Context, chunk []float32) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = EncodeChunk(w.buf[:0], chunk)
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := w.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return w.conn.WriteMessage(websocket.BinaryMessage, w.buf)
}

// Close sends a close frame and closes the connection.
func (w *WebSocketSender) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	return w.conn.Close()
}

// EncodeChunk appends chunk to dst as little-endian float32.
func EncodeChunk(dst []byte, chunk []float32) []byte {
	for _, v := range chunk {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}

// DecodeChunk is the inverse of EncodeChunk. Trailing bytes are ignored.
func DecodeChunk(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
