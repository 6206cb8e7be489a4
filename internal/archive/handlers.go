package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/ordmarket/sale-service/internal/platform/logger"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// History reads back archived rows. *PostgresClient implements it.
type History interface {
	BidHistory(ctx context.Context, auctionID string, limit int) ([]ArchivedBid, error)
	TicketHistory(ctx context.Context, raffleID string) ([]ArchivedTicket, error)
}

// Handler serves read access to the archive. Live state stays with the
// API server; this surface answers history queries only.
type Handler struct {
	history History
	log     *logger.Logger
}

func NewHandler(history History, log *logger.Logger) *Handler {
	return &Handler{history: history, log: log}
}

// Router configures the archiver's routes.
func (h *Handler) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", h.healthCheck).Methods("GET")
	router.HandleFunc("/api/v1/auctions/{id}/bids", h.getBidHistory).Methods("GET")
	router.HandleFunc("/api/v1/raffles/{id}/tickets", h.getTicketHistory).Methods("GET")

	return router
}

func (h *Handler) getBidHistory(w http.ResponseWriter, r *http.Request) {
	auctionID := mux.Vars(r)["id"]

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			respondError(w, http.StatusBadRequest,
				fmt.Sprintf("Limit must be an integer between 1 and %d", maxHistoryLimit))
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	bids, err := h.history.BidHistory(ctx, auctionID, limit)
	if err != nil {
		h.log.Error("bid history", "auction_id", auctionID, "err", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if bids == nil {
		bids = []ArchivedBid{}
	}
	respondData(w, http.StatusOK, bids)
}

func (h *Handler) getTicketHistory(w http.ResponseWriter, r *http.Request) {
	raffleID := mux.Vars(r)["id"]

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	tickets, err := h.history.TicketHistory(ctx, raffleID)
	if err != nil {
		h.log.Error("ticket history", "raffle_id", raffleID, "err", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if tickets == nil {
		tickets = []ArchivedTicket{}
	}
	respondData(w, http.StatusOK, tickets)
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{"status":"healthy","service":"archiver"}`)
}

type dataResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

type errorResponse struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

type errorBody struct {
	Message string `json:"message"`
}

func respondData(w http.ResponseWriter, statusCode int, data interface{}) {
	respondJSON(w, statusCode, dataResponse{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, errorResponse{Error: errorBody{Message: message}})
}

func respondJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}
