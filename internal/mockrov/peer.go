package mockrov

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skobkin/rovlink/internal/protocol"
)

type peer struct {
	server *Server
	conn   *websocket.Conn
	send   chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func (p *peer) readLoop() {
	for {
		_, raw, err := p.conn.ReadMessage()
		if err != nil {
			return
		}

		msg, err := protocol.Decode(raw)
		if err != nil {
			p.server.logger.Warn("undecodable client frame", "error", err)
			continue
		}
		p.server.record(msg)
		if msg.Type != protocol.TypeMovementCommand {
			p.server.logger.Debug("received", "type", msg.Type)
		}

		for _, out := range p.server.reply(msg) {
			p.enqueueMessage(out)
		}
	}
}

// writeLoop is the only writer on the socket.
func (p *peer) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case raw := <-p.send:
			if p.server.silent.Load() {
				continue
			}
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := p.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				p.close()
				return
			}
		}
	}
}

func (p *peer) streamLoop(ctx context.Context) {
	telemetry := newOptionalTicker(p.server.opts.TelemetryInterval)
	defer telemetry.stop()
	status := newOptionalTicker(p.server.opts.StatusInterval)
	defer status.stop()
	heartbeat := newOptionalTicker(p.server.opts.HeartbeatInterval)
	defer heartbeat.stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case now := <-telemetry.c:
			p.enqueueMessage(protocol.Message{Type: protocol.TypeTelemetry, Payload: p.server.telemetryAt(now)})
		case <-status.c:
			p.enqueueMessage(protocol.Message{Type: protocol.TypeStatusUpdate, Payload: p.server.currentStatus()})
		case now := <-heartbeat.c:
			p.enqueueMessage(protocol.NewHeartbeat(now.UnixMilli()))
		}
	}
}

func (p *peer) enqueueMessage(msg protocol.Message) {
	raw, err := protocol.Encode(msg)
	if err != nil {
		p.server.logger.Warn("encode reply failed", "type", msg.Type, "error", err)
		return
	}
	p.enqueue(raw)
}

// enqueue drops the frame when the client is not keeping up.
func (p *peer) enqueue(raw []byte) {
	select {
	case p.send <- raw:
	case <-p.done:
	default:
	}
}

func (p *peer) close() {
	p.closeOnce.Do(func() {
		close(p.done)
		_ = p.conn.Close()
	})
}

type optionalTicker struct {
	ticker *time.Ticker
	c      <-chan time.Time
}

func newOptionalTicker(d time.Duration) optionalTicker {
	if d <= 0 {
		return optionalTicker{}
	}
	t := time.NewTicker(d)

	return optionalTicker{ticker: t, c: t.C}
}

func (t optionalTicker) stop() {
	if t.ticker != nil {
		t.ticker.Stop()
	}
}
