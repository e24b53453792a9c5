package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"parking-ledger/internal/logging"
	"parking-ledger/internal/parking"
)

const (
	writeWait       = 10 * time.Second
	broadcastBuffer = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// LiveEvent is pushed to every websocket client after each ledger change.
type LiveEvent struct {
	Type   string         `json:"type"`
	Status StatusResponse `json:"status"`
	Stats  parking.Stats  `json:"stats"`
}

// Hub fans ledger snapshots out to connected websocket clients. Only the Run
// goroutine writes to client connections.
type Hub struct {
	ledger     *parking.InstrumentedLedger
	clients    map[*websocket.Conn]bool
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan []byte
	done       chan struct{}
}

func NewHub(ledger *parking.InstrumentedLedger) *Hub {
	return &Hub{
		ledger:     ledger,
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan []byte, broadcastBuffer),
		done:       make(chan struct{}),
	}
}

// Run serves clients until ctx is cancelled, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			logging.Debug(ctx).Int("clients", len(h.clients)).Msg("websocket client connected")

			message, err := h.snapshot(ctx, "snapshot")
			if err != nil {
				logging.Error(ctx).Err(err).Msg("failed to build websocket snapshot")
				continue
			}
			h.send(ctx, client, message)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			logging.Debug(ctx).Int("clients", len(h.clients)).Msg("websocket client disconnected")

		case message := <-h.broadcast:
			for client := range h.clients {
				h.send(ctx, client, message)
			}
		}
	}
}

// Publish queues the current ledger state for every client. It is registered
// as a ledger change listener and never blocks the caller.
func (h *Hub) Publish(ctx context.Context) {
	message, err := h.snapshot(ctx, "update")
	if err != nil {
		logging.Error(ctx).Err(err).Msg("failed to build websocket update")
		return
	}

	select {
	case h.broadcast <- message:
	default:
		logging.Warn(ctx).Msg("websocket broadcast buffer is full, dropping update")
	}
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn(r.Context()).Err(err).Msg("failed to upgrade to websocket")
		return
	}

	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
		return
	}

	go func() {
		defer func() {
			select {
			case h.unregister <- conn:
			case <-h.done:
			}
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logging.Warn(context.Background()).Err(err).Msg("websocket read failed")
				}
				return
			}
		}
	}()
}

func (h *Hub) send(ctx context.Context, client *websocket.Conn, message []byte) {
	client.SetWriteDeadline(time.Now().Add(writeWait))
	if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
		logging.Warn(ctx).Err(err).Msg("failed to write to websocket client")
		client.Close()
		delete(h.clients, client)
	}
}

func (h *Hub) snapshot(ctx context.Context, kind string) ([]byte, error) {
	return json.Marshal(LiveEvent{
		Type:   kind,
		Status: newStatusResponse(h.ledger.Slots(ctx)),
		Stats:  h.ledger.Aggregate(ctx),
	})
}
