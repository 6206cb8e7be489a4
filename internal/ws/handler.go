package ws

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/ordmarket/sale-service/internal/platform/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Callers are browsers on arbitrary origins; auth is out of
		// scope for this service.
		return true
	},
}

// Handler upgrades HTTP connections into item subscriptions.
type Handler struct {
	manager *Manager
	log     *logger.Logger
}

func NewHandler(manager *Manager, log *logger.Logger) *Handler {
	return &Handler{manager: manager, log: log}
}

// Router configures the broadcaster's routes.
func (h *Handler) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/ws/items/{id}", h.handleWebSocket)
	router.HandleFunc("/health", h.healthCheck).Methods("GET")
	router.HandleFunc("/stats/items/{id}", h.getStats).Methods("GET")

	return router
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["id"]
	if itemID == "" {
		http.Error(w, "Item ID is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "err", err)
		return
	}

	client := &Client{
		ID:     uuid.New().String(),
		ItemID: itemID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
	}

	// Queue the welcome before handing the client to the manager; once
	// registered the manager may close Send at any time.
	client.Send <- []byte(fmt.Sprintf(`{"type":"connected","item_id":%q,"client_id":%q}`, itemID, client.ID))

	h.manager.RegisterClient(client)
	client.StartReadPump(h.manager.unregister)
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{"status":"healthy","service":"broadcaster"}`)
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["id"]
	count := h.manager.SubscriberCount(itemID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"item_id":%q,"subscribers":%d}`, itemID, count)
}
