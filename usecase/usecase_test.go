package usecase

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"salvage-market/dao"
	"salvage-market/db/dbtest"
	"salvage-market/model"
	"salvage-market/pkg/clock"
	"salvage-market/pkg/payment"
)

var t0 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

var operator = model.Actor{UserID: "ops-1", IsOperator: true}

func user(id string) model.Actor { return model.Actor{UserID: id} }

// fakeProcessor answers captures from a queue; an empty queue means
// success.
type fakeProcessor struct {
	mu       sync.Mutex
	results  []fakeResult
	requests []payment.CaptureRequest
}

type fakeResult struct {
	resp *payment.CaptureResponse
	err  error
}

func (f *fakeProcessor) push(resp *payment.CaptureResponse, err error) {
	f.mu.Lock()
	f.results = append(f.results, fakeResult{resp, err})
	f.mu.Unlock()
}

func (f *fakeProcessor) calls() []payment.CaptureRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]payment.CaptureRequest(nil), f.requests...)
}

func (f *fakeProcessor) AuthorizeAndCapture(_ context.Context, req payment.CaptureRequest) (*payment.CaptureResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if len(f.results) == 0 {
		return &payment.CaptureResponse{Success: true, ReferenceID: "ch_ok"}, nil
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r.resp, r.err
}

func (f *fakeProcessor) CreateIntent(_ context.Context, amountMinor int64, currency string) (string, error) {
	return "secret_" + currency, nil
}

type harness struct {
	t          *testing.T
	ctx        context.Context
	conn       *sql.DB
	clock      *clock.FakeClock
	processor  *fakeProcessor
	listings   *ListingUsecase
	bids       *BidUsecase
	agents     *AgentUsecase
	payments   *PaymentUsecase
	containers *ContainerUsecase
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	c := clock.Fake(t0)
	logger := slog.New(slog.DiscardHandler)

	tx := dao.NewTransactor(conn)
	listingRepo := dao.NewListingRepository(conn)
	bidRepo := dao.NewBidRepository(conn)
	agentRepo := dao.NewAgentRepository(conn)
	assignmentRepo := dao.NewAssignmentRepository(conn)
	msgRepo := dao.NewMessageRepository(conn)
	paymentRepo := dao.NewPaymentRepository(conn)
	containerRepo := dao.NewContainerRepository(conn)

	h := &harness{t: t, ctx: context.Background(), conn: conn, clock: c, processor: &fakeProcessor{}}
	h.agents = NewAgentUsecase(tx, agentRepo, assignmentRepo, listingRepo, msgRepo, LeastLoaded{}, c, logger)
	h.listings = NewListingUsecase(tx, listingRepo, assignmentRepo, h.agents, c, logger)
	h.bids = NewBidUsecase(tx, listingRepo, bidRepo, assignmentRepo, c, logger)
	h.payments = NewPaymentUsecase(bidRepo, listingRepo, paymentRepo, h.processor, "aud", 2*time.Second, c, logger)
	h.containers = NewContainerUsecase(containerRepo, c, logger)
	return h
}

func (h *harness) registerAgent(userID string) *model.Agent {
	h.t.Helper()
	a, err := h.agents.RegisterAgent(h.ctx, operator, "Agent "+userID, userID+"@agents.test", userID)
	require.NoError(h.t, err)
	return a
}

func listingInput(price string, days int) model.ListingInput {
	return model.ListingInput{
		Title:        "Steel beams",
		Description:  "Six reclaimed I-beams, 4m",
		Kind:         model.KindSalvage,
		Category:     "building-materials",
		Price:        decimal.RequireFromString(price),
		Location:     "Footscray",
		ImageRefs:    []string{"beams/1.jpg"},
		DurationDays: days,
	}
}

func (h *harness) createListing(owner, price string, days int) *model.Listing {
	h.t.Helper()
	l, _, err := h.listings.CreateListing(h.ctx, user(owner), listingInput(price, days))
	require.NoError(h.t, err)
	return l
}

func (h *harness) placeBid(bidder, listingID, amount string) *model.Bid {
	h.t.Helper()
	b, err := h.bids.PlaceBid(h.ctx, user(bidder), listingID, decimal.RequireFromString(amount), nil)
	require.NoError(h.t, err)
	return b
}

func fieldsOf(t *testing.T, err error) []string {
	t.Helper()
	var e *model.Error
	require.True(t, errors.As(err, &e), "want *model.Error, got %v", err)
	var out []string
	for _, f := range e.Fields {
		out = append(out, f.Field)
	}
	return out
}
