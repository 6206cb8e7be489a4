package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ordmarket/sale-service/internal/core"
	"github.com/ordmarket/sale-service/internal/events"
	"github.com/ordmarket/sale-service/internal/platform/logger"
	"github.com/ordmarket/sale-service/internal/store/memstore"
)

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.SaleEvent
}

func (p *recordingPublisher) Publish(evt events.SaleEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) byType(eventType events.Type) []events.SaleEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.SaleEvent
	for _, evt := range p.events {
		if evt.Type == eventType {
			out = append(out, evt)
		}
	}
	return out
}

func newTestServer(t *testing.T) (*httptest.Server, *recordingPublisher) {
	t.Helper()
	auctionStore := memstore.New(func() *core.Auction { return &core.Auction{} })
	raffleStore := memstore.New(func() *core.Raffle { return &core.Raffle{} })
	log := logger.NewNop()
	publisher := &recordingPublisher{}
	handler := NewHandler(
		core.NewAuctionLedger(auctionStore, log),
		core.NewRaffleLedger(raffleStore, log),
		publisher,
		log,
	)
	server := httptest.NewServer(handler.Router())
	t.Cleanup(server.Close)
	return server, publisher
}

func doJSON(t *testing.T, method, url string, body interface{}) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var envelope map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, envelope
}

func errorCode(t *testing.T, envelope map[string]json.RawMessage) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(envelope["error"], &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Code
}

func createActiveAuction(t *testing.T, baseURL, assetID string) string {
	t.Helper()
	now := time.Now().UTC()
	resp, envelope := doJSON(t, "POST", baseURL+"/api/v1/auctions", core.AuctionSpec{
		AssetID:         assetID,
		SellerAddress:   "bc1q-seller",
		StartingPrice:   100,
		MinBidIncrement: 10,
		StartTime:       now,
		EndTime:         now.Add(24 * time.Hour),
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create auction: want=201 got=%d", resp.StatusCode)
	}
	var auction core.Auction
	if err := json.Unmarshal(envelope["data"], &auction); err != nil {
		t.Fatalf("decode auction: %v", err)
	}

	resp, _ = doJSON(t, "POST", fmt.Sprintf("%s/api/v1/auctions/%s/activate", baseURL, auction.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("activate auction: want=200 got=%d", resp.StatusCode)
	}
	return auction.ID
}

func TestAuctionBidFlow(t *testing.T) {
	server, publisher := newTestServer(t)
	id := createActiveAuction(t, server.URL, "ord-1")

	bidURL := fmt.Sprintf("%s/api/v1/auctions/%s/bid", server.URL, id)

	resp, envelope := doJSON(t, "POST", bidURL, bidRequest{BidderAddress: "bc1q-alice", Amount: 105})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("short increment: want=400 got=%d", resp.StatusCode)
	}
	if code := errorCode(t, envelope); code != string(core.CodeIncrementTooSmall) {
		t.Fatalf("error code: want=%s got=%s", core.CodeIncrementTooSmall, code)
	}

	resp, envelope = doJSON(t, "POST", bidURL, bidRequest{BidderAddress: "bc1q-alice", Amount: 110})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("valid bid: want=200 got=%d", resp.StatusCode)
	}
	var auction core.Auction
	if err := json.Unmarshal(envelope["data"], &auction); err != nil {
		t.Fatalf("decode auction: %v", err)
	}
	if auction.CurrentPrice != 110 || auction.HighestBidder != "bc1q-alice" {
		t.Fatalf("auction after bid: price=%v bidder=%s", auction.CurrentPrice, auction.HighestBidder)
	}

	accepted := publisher.byType(events.TypeBidAccepted)
	if len(accepted) != 1 {
		t.Fatalf("bid events: want=1 got=%d", len(accepted))
	}
	if accepted[0].ItemID != id || accepted[0].Amount != 110 || accepted[0].Actor != "bc1q-alice" {
		t.Fatalf("bid event fields: %+v", accepted[0])
	}
}

func TestAuctionEndFlow(t *testing.T) {
	server, publisher := newTestServer(t)
	id := createActiveAuction(t, server.URL, "ord-1")
	endURL := fmt.Sprintf("%s/api/v1/auctions/%s/end", server.URL, id)

	resp, _ := doJSON(t, "POST", endURL, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("end: want=200 got=%d", resp.StatusCode)
	}
	if len(publisher.byType(events.TypeAuctionEnded)) != 1 {
		t.Fatal("auction-ended event not published")
	}

	resp, envelope := doJSON(t, "POST", endURL, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("second end: want=400 got=%d", resp.StatusCode)
	}
	if code := errorCode(t, envelope); code != string(core.CodeInvalidState) {
		t.Fatalf("error code: want=%s got=%s", core.CodeInvalidState, code)
	}
}

func TestAuctionNotFound(t *testing.T) {
	server, _ := newTestServer(t)

	resp, envelope := doJSON(t, "GET", server.URL+"/api/v1/auctions/missing", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("want=404 got=%d", resp.StatusCode)
	}
	if code := errorCode(t, envelope); code != string(core.CodeNotFound) {
		t.Fatalf("error code: want=%s got=%s", core.CodeNotFound, code)
	}
}

func TestCreateAuctionRejectsInvalidSpec(t *testing.T) {
	server, _ := newTestServer(t)
	now := time.Now().UTC()

	resp, envelope := doJSON(t, "POST", server.URL+"/api/v1/auctions", core.AuctionSpec{
		AssetID:       "ord-1",
		SellerAddress: "bc1q-seller",
		StartTime:     now,
		EndTime:       now.Add(-time.Hour),
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("want=400 got=%d", resp.StatusCode)
	}
	if code := errorCode(t, envelope); code != string(core.CodeInvalidSpec) {
		t.Fatalf("error code: want=%s got=%s", core.CodeInvalidSpec, code)
	}
}

func TestListActiveAuctionsEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	createActiveAuction(t, server.URL, "ord-1")
	createActiveAuction(t, server.URL, "ord-2")

	resp, envelope := doJSON(t, "GET", server.URL+"/api/v1/auctions", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want=200 got=%d", resp.StatusCode)
	}
	var auctions []core.Auction
	if err := json.Unmarshal(envelope["data"], &auctions); err != nil {
		t.Fatalf("decode auctions: %v", err)
	}
	if len(auctions) != 2 {
		t.Fatalf("active auctions: want=2 got=%d", len(auctions))
	}
}

func TestRaffleTicketAndDrawFlow(t *testing.T) {
	server, publisher := newTestServer(t)
	now := time.Now().UTC()

	resp, envelope := doJSON(t, "POST", server.URL+"/api/v1/raffles", core.RaffleSpec{
		AssetID:       "ord-9",
		SellerAddress: "bc1q-seller",
		TicketPrice:   5,
		MaxTickets:    2,
		StartTime:     now,
		EndTime:       now.Add(24 * time.Hour),
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create raffle: want=201 got=%d", resp.StatusCode)
	}
	var raffle core.Raffle
	if err := json.Unmarshal(envelope["data"], &raffle); err != nil {
		t.Fatalf("decode raffle: %v", err)
	}

	if resp, _ = doJSON(t, "POST", fmt.Sprintf("%s/api/v1/raffles/%s/activate", server.URL, raffle.ID), nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("activate raffle: want=200 got=%d", resp.StatusCode)
	}

	ticketURL := fmt.Sprintf("%s/api/v1/raffles/%s/ticket", server.URL, raffle.ID)
	for i := 1; i <= 2; i++ {
		resp, envelope = doJSON(t, "POST", ticketURL, ticketRequest{BuyerAddress: fmt.Sprintf("bc1q-buyer-%d", i)})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("buy ticket %d: want=200 got=%d", i, resp.StatusCode)
		}
		var body struct {
			TicketNumber int `json:"ticket_number"`
		}
		if err := json.Unmarshal(envelope["data"], &body); err != nil {
			t.Fatalf("decode ticket body: %v", err)
		}
		if body.TicketNumber != i {
			t.Fatalf("ticket number: want=%d got=%d", i, body.TicketNumber)
		}
	}

	resp, envelope = doJSON(t, "POST", ticketURL, ticketRequest{BuyerAddress: "bc1q-late"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("sold out: want=400 got=%d", resp.StatusCode)
	}
	if code := errorCode(t, envelope); code != string(core.CodeSoldOut) {
		t.Fatalf("error code: want=%s got=%s", core.CodeSoldOut, code)
	}

	resp, envelope = doJSON(t, "POST", fmt.Sprintf("%s/api/v1/raffles/%s/draw", server.URL, raffle.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("draw: want=200 got=%d", resp.StatusCode)
	}
	var drawBody struct {
		Winner string `json:"winner"`
	}
	if err := json.Unmarshal(envelope["data"], &drawBody); err != nil {
		t.Fatalf("decode draw body: %v", err)
	}
	if drawBody.Winner != "bc1q-buyer-1" && drawBody.Winner != "bc1q-buyer-2" {
		t.Fatalf("winner %q did not buy a ticket", drawBody.Winner)
	}

	if len(publisher.byType(events.TypeTicketSold)) != 2 {
		t.Fatalf("ticket events: want=2 got=%d", len(publisher.byType(events.TypeTicketSold)))
	}
	drawn := publisher.byType(events.TypeWinnerDrawn)
	if len(drawn) != 1 || drawn[0].Actor != drawBody.Winner {
		t.Fatalf("winner event: %+v", drawn)
	}
}

func TestBidRequestValidation(t *testing.T) {
	server, _ := newTestServer(t)
	id := createActiveAuction(t, server.URL, "ord-1")
	bidURL := fmt.Sprintf("%s/api/v1/auctions/%s/bid", server.URL, id)

	resp, envelope := doJSON(t, "POST", bidURL, map[string]interface{}{"amount": 110})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing bidder: want=400 got=%d", resp.StatusCode)
	}
	if code := errorCode(t, envelope); code != "INVALID_BODY" {
		t.Fatalf("error code: want=INVALID_BODY got=%s", code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	resp, err := http.Get(server.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want=200 got=%d", resp.StatusCode)
	}
}
