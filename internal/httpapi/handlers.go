package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/ordmarket/sale-service/internal/core"
	"github.com/ordmarket/sale-service/internal/events"
	"github.com/ordmarket/sale-service/internal/platform/logger"
)

// EventPublisher receives an event after a mutation commits.
type EventPublisher interface {
	Publish(evt events.SaleEvent)
}

// Handler exposes the two ledgers over HTTP.
type Handler struct {
	auctions *core.AuctionLedger
	raffles  *core.RaffleLedger
	events   EventPublisher
	log      *logger.Logger
}

func NewHandler(auctions *core.AuctionLedger, raffles *core.RaffleLedger, publisher EventPublisher, log *logger.Logger) *Handler {
	return &Handler{
		auctions: auctions,
		raffles:  raffles,
		events:   publisher,
		log:      log,
	}
}

// Router configures all HTTP routes.
func (h *Handler) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", h.healthCheck).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/auctions", h.createAuction).Methods("POST")
	api.HandleFunc("/auctions", h.listActiveAuctions).Methods("GET")
	api.HandleFunc("/auctions/{id}", h.getAuction).Methods("GET")
	api.HandleFunc("/auctions/{id}/bid", h.placeBid).Methods("POST")
	api.HandleFunc("/auctions/{id}/end", h.endAuction).Methods("POST")
	api.HandleFunc("/auctions/{id}/activate", h.activateAuction).Methods("POST")
	api.HandleFunc("/auctions/{id}/cancel", h.cancelAuction).Methods("POST")

	api.HandleFunc("/raffles", h.createRaffle).Methods("POST")
	api.HandleFunc("/raffles", h.listActiveRaffles).Methods("GET")
	api.HandleFunc("/raffles/{id}", h.getRaffle).Methods("GET")
	api.HandleFunc("/raffles/{id}/ticket", h.buyTicket).Methods("POST")
	api.HandleFunc("/raffles/{id}/draw", h.drawWinner).Methods("POST")
	api.HandleFunc("/raffles/{id}/activate", h.activateRaffle).Methods("POST")
	api.HandleFunc("/raffles/{id}/cancel", h.cancelRaffle).Methods("POST")

	router.Use(h.loggingMiddleware)
	router.Use(corsMiddleware)

	return router
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "sale-service",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) createAuction(w http.ResponseWriter, r *http.Request) {
	var spec core.AuctionSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}
	auction, err := h.auctions.Create(r.Context(), spec)
	if err != nil {
		h.respondLedgerError(w, err)
		return
	}
	respondData(w, http.StatusCreated, auction)
}

func (h *Handler) getAuction(w http.ResponseWriter, r *http.Request) {
	auction, err := h.auctions.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondLedgerError(w, err)
		return
	}
	respondData(w, http.StatusOK, auction)
}

func (h *Handler) listActiveAuctions(w http.ResponseWriter, r *http.Request) {
	auctions, err := h.auctions.ListActive(r.Context())
	if err != nil {
		h.respondLedgerError(w, err)
		return
	}
	if auctions == nil {
		auctions = []*core.Auction{}
	}
	respondData(w, http.StatusOK, auctions)
}

type bidRequest struct {
	BidderAddress string  `json:"bidder_address"`
	Amount        float64 `json:"amount"`
}

func (h *Handler) placeBid(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req bidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}
	if req.BidderAddress == "" {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Bidder address is required")
		return
	}

	auction, err := h.auctions.PlaceBid(r.Context(), id, req.BidderAddress, req.Amount)
	if err != nil {
		h.respondLedgerError(w, err)
		return
	}
	h.publish(events.TypeBidAccepted, auction, req.BidderAddress, req.Amount, 0)
	respondData(w, http.StatusOK, auction)
}

func (h *Handler) endAuction(w http.ResponseWriter, r *http.Request) {
	auction, err := h.auctions.End(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondLedgerError(w, err)
		return
	}
	h.publish(events.TypeAuctionEnded, auction, auction.HighestBidder, auction.CurrentPrice, 0)
	respondData(w, http.StatusOK, auction)
}

func (h *Handler) activateAuction(w http.ResponseWriter, r *http.Request) {
	auction, err := h.auctions.Activate(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondLedgerError(w, err)
		return
	}
	h.publish(events.TypeActivated, auction, "", 0, 0)
	respondData(w, http.StatusOK, auction)
}

func (h *Handler) cancelAuction(w http.ResponseWriter, r *http.Request) {
	auction, err := h.auctions.Cancel(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondLedgerError(w, err)
		return
	}
	h.publish(events.TypeCancelled, auction, "", 0, 0)
	respondData(w, http.StatusOK, auction)
}

func (h *Handler) createRaffle(w http.ResponseWriter, r *http.Request) {
	var spec core.RaffleSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}
	raffle, err := h.raffles.Create(r.Context(), spec)
	if err != nil {
		h.respondLedgerError(w, err)
		return
	}
	respondData(w, http.StatusCreated, raffle)
}

func (h *Handler) getRaffle(w http.ResponseWriter, r *http.Request) {
	raffle, err := h.raffles.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondLedgerError(w, err)
		return
	}
	respondData(w, http.StatusOK, raffle)
}

func (h *Handler) listActiveRaffles(w http.ResponseWriter, r *http.Request) {
	raffles, err := h.raffles.ListActive(r.Context())
	if err != nil {
		h.respondLedgerError(w, err)
		return
	}
	if raffles == nil {
		raffles = []*core.Raffle{}
	}
	respondData(w, http.StatusOK, raffles)
}

type ticketRequest struct {
	BuyerAddress string `json:"buyer_address"`
}

func (h *Handler) buyTicket(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req ticketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}
	if req.BuyerAddress == "" {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Buyer address is required")
		return
	}

	raffle, number, err := h.raffles.BuyTicket(r.Context(), id, req.BuyerAddress)
	if err != nil {
		h.respondLedgerError(w, err)
		return
	}
	h.publish(events.TypeTicketSold, raffle, req.BuyerAddress, raffle.TicketPrice, number)
	respondData(w, http.StatusOK, map[string]interface{}{
		"raffle":        raffle,
		"ticket_number": number,
	})
}

func (h *Handler) drawWinner(w http.ResponseWriter, r *http.Request) {
	raffle, winner, err := h.raffles.DrawWinner(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondLedgerError(w, err)
		return
	}
	h.publish(events.TypeWinnerDrawn, raffle, winner, 0, 0)
	respondData(w, http.StatusOK, map[string]interface{}{
		"raffle": raffle,
		"winner": winner,
	})
}

func (h *Handler) activateRaffle(w http.ResponseWriter, r *http.Request) {
	raffle, err := h.raffles.Activate(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondLedgerError(w, err)
		return
	}
	h.publish(events.TypeActivated, raffle, "", 0, 0)
	respondData(w, http.StatusOK, raffle)
}

func (h *Handler) cancelRaffle(w http.ResponseWriter, r *http.Request) {
	raffle, err := h.raffles.Cancel(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondLedgerError(w, err)
		return
	}
	h.publish(events.TypeCancelled, raffle, "", 0, 0)
	respondData(w, http.StatusOK, raffle)
}

func (h *Handler) publish(eventType events.Type, rec core.Record, actor string, amount float64, ticketNumber int) {
	base := rec.Base()
	h.events.Publish(events.SaleEvent{
		EventID:      uuid.New().String(),
		Type:         eventType,
		Kind:         rec.Kind(),
		ItemID:       base.ID,
		Actor:        actor,
		Amount:       amount,
		TicketNumber: ticketNumber,
		Version:      base.Version,
		Timestamp:    time.Now().UTC(),
	})
}

// respondLedgerError maps ledger error codes onto HTTP statuses. Version
// conflicts that survive the retry loop come back as 409 so the caller
// knows to try again; violated preconditions are the caller's to fix.
func (h *Handler) respondLedgerError(w http.ResponseWriter, err error) {
	code := core.CodeOf(err)
	status := http.StatusBadRequest
	switch code {
	case core.CodeNotFound:
		status = http.StatusNotFound
	case core.CodeConflict:
		status = http.StatusConflict
	case core.CodeInvalidState, core.CodeInvalidSpec, core.CodeBidTooLow,
		core.CodeIncrementTooSmall, core.CodeSoldOut, core.CodeNoTicketsSold:
		status = http.StatusBadRequest
	default:
		h.log.Error("unexpected ledger error", "err", err)
		respondError(w, http.StatusInternalServerError, "INTERNAL", "Internal server error")
		return
	}
	respondError(w, status, string(code), err.Error())
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
	Code    string `json:"code"`
}

func respondData(w http.ResponseWriter, statusCode int, data interface{}) {
	respondJSON(w, statusCode, dataResponse{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, statusCode int, code, message string) {
	respondJSON(w, statusCode, errorResponse{Error: errorBody{Message: message, Code: code}})
}

func respondJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.log.Debug("request", "method", r.Method, "uri", r.RequestURI, "duration", time.Since(start).String())
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
