package transport

import (
	"context"

	"nhooyr.io/websocket"
)

// keepalivePayload matches what the backend expects while a session is
// capturing: a plain literal ping, once per second.
const keepalivePayload = "Ping"

type wsWire struct {
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
}

// Endpoint returns a DialFunc for the backend's live-analysis websocket,
// e.g. ws://localhost:8000/ws/analysis.
func Endpoint(endpoint string) DialFunc {
	return func(ctx context.Context) (Wire, error) {
		wireCtx, cancel := context.WithCancel(ctx)
		conn, _, err := websocket.Dial(wireCtx, endpoint, nil)
		if err != nil {
			cancel()
			return nil, err
		}
		return &wsWire{conn: conn, ctx: wireCtx, cancel: cancel}, nil
	}
}

func (w *wsWire) Ping() error {
	return w.conn.Write(w.ctx, websocket.MessageText, []byte(keepalivePayload))
}

func (w *wsWire) Recv() ([]byte, error) {
	_, data, err := w.conn.Read(w.ctx)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (w *wsWire) Close() error {
	w.cancel()
	return w.conn.Close(websocket.StatusNormalClosure, "")
}
