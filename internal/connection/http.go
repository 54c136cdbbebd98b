package connection

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/devbridge/internal/protocol"
)

// runHTTP connects over HTTP until ctx is cancelled. Failed handshakes back
// off exponentially; a failed poll loop reconnects from attempt zero.
func (m *Manager) runHTTP(ctx context.Context, connectURL string) {
	defer m.setState(StateDisconnected, TransportHTTP)

	attempt := 0
	for ctx.Err() == nil {
		m.setState(StateConnecting, TransportHTTP)

		target, err := m.makeURL(connectURL)
		if err != nil {
			m.logger.Error("Cannot build connect url", zap.Error(err))
			return
		}

		payload, err := m.client.GetJSON(ctx, withInit(target))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			wait := m.backoff.Delay(attempt)
			m.metrics.ReconnectAttempts.Inc()
			m.logger.Info("HTTP connection error: next connection attempt scheduled",
				zap.Error(err),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait))
			attempt++

			if !sleep(ctx, wait) {
				return
			}
			continue
		}

		typ, _ := payload[protocol.KeyConnectionType].(string)
		m.logger.Info("Connected", zap.String("connection_type", typ))
		m.deliverHTTP(ctx, payload, target)
		m.established(target, protocol.Reply{HTTPURL: target}, TransportHTTP)

		err = m.poll(ctx, connectURL, typ == protocol.ConnectionTypeLongPolling)
		if ctx.Err() == nil {
			m.logger.Info("HTTP poll failed, reconnecting", zap.Error(err))
		}
		m.closed(target, TransportHTTP)
		attempt = 0
	}
}

// poll fetches messages until a request fails. Short polling waits the
// poll interval between requests; long polling re-issues immediately.
func (m *Manager) poll(ctx context.Context, connectURL string, long bool) error {
	for {
		target, err := m.makeURL(connectURL)
		if err != nil {
			return err
		}

		payload, err := m.client.GetJSON(ctx, target)
		if err != nil {
			return err
		}
		m.deliverHTTP(ctx, payload, target)

		if !long && !sleep(ctx, m.pollInterval) {
			return ctx.Err()
		}
	}
}

func (m *Manager) deliverHTTP(ctx context.Context, payload map[string]interface{}, target string) {
	payload[protocol.KeyHTTPURL] = target
	m.deliver(ctx, protocol.FromMap(payload))
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
