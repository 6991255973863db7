package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Papyszoo/ImmichVR-sub001/internal/logger"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/events"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/store/models"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The realtime bridge carries no credentials and mutating actions
	// are limited to generation requests, so all origins are accepted.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsCommand is an inbound message from a realtime client.
type wsCommand struct {
	Action   string `json:"action"`
	AssetID  string `json:"assetId"`
	Type     string `json:"type"`
	ModelKey string `json:"modelKey"`
}

// websocket upgrades the connection and bridges it to the event bus.
// Outbound frames are bus events; inbound frames are generate commands.
func (h *handler) websocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("Websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}

	sub := h.orch.Subscribe()
	logger.Debug("Realtime subscriber connected", "remote_addr", r.RemoteAddr)

	done := make(chan struct{})
	go h.wsWritePump(conn, sub, done)
	h.wsReadPump(conn)

	sub.Unsubscribe()
	<-done
	conn.Close()
	logger.Debug("Realtime subscriber disconnected", "remote_addr", r.RemoteAddr)
}

// wsReadPump consumes inbound frames until the connection drops. The only
// supported action is "generate", which runs asynchronously; its outcome
// arrives through the event stream like any other completion.
func (h *handler) wsReadPump(conn *websocket.Conn) {
	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd wsCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			logger.Debug("Ignoring malformed realtime command", "error", err)
			continue
		}
		if cmd.Action != "generate" || cmd.AssetID == "" {
			continue
		}

		kind := models.ArtifactKind(cmd.Type)
		if kind == "" {
			kind = models.ArtifactKindDepth
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			if _, err := h.orch.GenerateOnDemand(ctx, cmd.AssetID, kind, cmd.ModelKey); err != nil {
				logger.Warn("Realtime generate failed", "asset_id", cmd.AssetID, "error", err)
			}
		}()
	}
}

// wsWritePump forwards bus events as JSON frames and keeps the connection
// alive with pings. Exits when the subscription closes or a write fails.
func (h *handler) wsWritePump(conn *websocket.Conn, sub *events.Subscription, done chan struct{}) {
	defer close(done)
	// Closing the connection here also unblocks the read pump when the
	// write side dies first.
	defer conn.Close()
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-sub.Events():
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(wsWriteWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
