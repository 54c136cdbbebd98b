package connection

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/devbridge/internal/protocol"
)

// Conn is an open websocket.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens websockets. Supplying one makes websocket transport
// available regardless of configuration.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// GorillaDialer dials with gorilla/websocket.
type GorillaDialer struct {
	Dialer *websocket.Dialer
	Header http.Header
}

// Dial implements Dialer.
func (d GorillaDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, url, d.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// socket serializes writes to one websocket.
type socket struct {
	conn Conn
	mu   sync.Mutex
}

func (s *socket) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (m *Manager) runWebSocket(ctx context.Context, connectURL string) {
	m.setState(StateConnecting, TransportWebSocket)

	target, err := m.makeURL(connectURL)
	if err != nil {
		m.logger.Error("Cannot build websocket url", zap.Error(err))
		m.setState(StateDisconnected, TransportWebSocket)
		return
	}

	conn, err := m.dialer.Dial(ctx, target)
	if err != nil {
		m.logger.Error("Websocket connection failed", zap.String("url", target), zap.Error(err))
		m.closed(target, TransportWebSocket)
		return
	}

	sock := &socket{conn: conn}
	reply := protocol.Reply{Socket: sock}
	m.established(target, reply, TransportWebSocket)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				m.logger.Info("Websocket closed", zap.String("url", target), zap.Error(err))
			}
			break
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			m.metrics.DecodeErrors.Inc()
			m.logger.Error("Dropping undecodable message", zap.Error(err))
			continue
		}
		msg.Reply.Socket = sock
		m.deliver(ctx, msg)
	}

	conn.Close()
	m.closed(target, TransportWebSocket)
}
