package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/overcall/internal/adapters/mq/broker"
	"github.com/okian/overcall/pkg/logger"
)

const (
	streamWriteWait  = 5 * time.Second
	streamPingPeriod = 30 * time.Second
)

// StreamDependencies exposes the realtime event feed.
type StreamDependencies interface {
	Subscribe(ctx context.Context) (<-chan broker.Event, func())
}

// StreamHandler upgrades GET /events to a websocket and relays broker events.
type StreamHandler struct {
	deps     StreamDependencies
	upgrader websocket.Upgrader
	base     context.Context
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(deps StreamDependencies) *StreamHandler {
	return &StreamHandler{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		base: context.Background(),
	}
}

// HandleStream handles GET /events?type=a,b requests.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	log := logger.Get().Named("stream")
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		log.Debug(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(h.base)
	defer cancel()

	events, unsubscribe := h.deps.Subscribe(ctx)
	defer unsubscribe()

	// Read pump: clients only send control frames; any read error ends the stream.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	filter := typeFilter(r.URL.Query().Get("type"))
	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(streamWriteWait))
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !filter(ev.Type) {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				log.Debug(ctx, "websocket write failed", logger.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}

func typeFilter(raw string) func(string) bool {
	wanted := map[string]struct{}{}
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			wanted[t] = struct{}{}
		}
	}
	if len(wanted) == 0 {
		return func(string) bool { return true }
	}
	return func(t string) bool {
		_, ok := wanted[t]
		return ok
	}
}
