package controller

import (
	"log/slog"
	"net/http"

	"salvage-market/model"
	"salvage-market/usecase"
)

// Usecases bundles what the router dispatches to.
type Usecases struct {
	Listings   *usecase.ListingUsecase
	Bids       *usecase.BidUsecase
	Agents     *usecase.AgentUsecase
	Payments   *usecase.PaymentUsecase
	Containers *usecase.ContainerUsecase
}

// NewRouter wires every route. isOperator decides which user ids get
// operator rights.
func NewRouter(u Usecases, isOperator func(userID string) bool, logger *slog.Logger) http.Handler {
	b := base{isOperator: isOperator, logger: logger}
	listings := newListingController(b, u.Listings, u.Agents)
	bids := newBidController(b, u.Bids, u.Payments)
	agents := newAgentController(b, u.Agents)
	containers := newContainerController(b, u.Containers)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		b.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /listings", listings.ListActive)
	mux.HandleFunc("POST /listings", listings.CreateListing)
	mux.HandleFunc("GET /listings/mine", listings.ListMine)
	mux.HandleFunc("GET /listings/{id}", listings.GetListing)
	mux.HandleFunc("PUT /listings/{id}", listings.UpdateListing)
	mux.HandleFunc("POST /listings/{id}/cancel", listings.CancelListing)
	mux.HandleFunc("POST /listings/{id}/assignments", listings.StartNegotiation)
	mux.HandleFunc("GET /listings/{id}/bids", bids.ListBids)
	mux.HandleFunc("POST /listings/{id}/bids", bids.PlaceBid)

	mux.HandleFunc("GET /bids/{id}", bids.GetBid)
	mux.HandleFunc("POST /bids/{id}/accept", bids.AcceptBid)
	mux.HandleFunc("POST /bids/{id}/reject", bids.RejectBid)
	mux.HandleFunc("POST /bids/{id}/payment-intent", bids.CreateIntent)
	mux.HandleFunc("POST /bids/{id}/capture", bids.InitiateCapture)
	mux.HandleFunc("POST /bids/{id}/payment-confirm", bids.ConfirmCapture)
	mux.HandleFunc("GET /bids/{id}/payment", bids.GetPayment)

	mux.HandleFunc("GET /assignments", agents.ListAssignments)
	mux.HandleFunc("GET /assignments/{id}/messages", agents.ListMessages)
	mux.HandleFunc("POST /assignments/{id}/messages", agents.SendMessage)
	mux.HandleFunc("POST /assignments/{id}/read", agents.MarkRead)
	mux.HandleFunc("POST /assignments/{id}/complete", agents.closeAssignment(model.AssignmentCompleted))
	mux.HandleFunc("POST /assignments/{id}/cancel", agents.closeAssignment(model.AssignmentCancelled))
	mux.HandleFunc("GET /agents", agents.ListAgents)
	mux.HandleFunc("POST /agents", agents.RegisterAgent)

	mux.HandleFunc("GET /container-requests", containers.ListRequests)
	mux.HandleFunc("POST /container-requests", containers.CreateRequest)
	mux.HandleFunc("GET /container-requests/{id}", containers.GetRequest)
	mux.HandleFunc("POST /container-requests/{id}/advance", containers.Advance)

	return accessLog(logger, cors(mux))
}
