package controller

import (
	"net/http"

	"github.com/shopspring/decimal"

	"salvage-market/model"
	"salvage-market/usecase"
)

type BidController struct {
	base
	usecase  *usecase.BidUsecase
	payments *usecase.PaymentUsecase
}

func newBidController(b base, u *usecase.BidUsecase, payments *usecase.PaymentUsecase) *BidController {
	return &BidController{base: b, usecase: u, payments: payments}
}

type placeBidRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	Message *string         `json:"message"`
}

func (c *BidController) PlaceBid(w http.ResponseWriter, r *http.Request) {
	var req placeBidRequest
	if !c.decode(w, r, &req) {
		return
	}
	bid, err := c.usecase.PlaceBid(r.Context(), c.actor(r), r.PathValue("id"), req.Amount, req.Message)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	c.writeJSON(w, http.StatusCreated, bid)
}

func (c *BidController) ListBids(w http.ResponseWriter, r *http.Request) {
	bids, err := c.usecase.ListBids(r.Context(), c.actor(r), r.PathValue("id"))
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	c.writeJSON(w, http.StatusOK, bids)
}

func (c *BidController) GetBid(w http.ResponseWriter, r *http.Request) {
	bid, err := c.usecase.GetBid(r.Context(), c.actor(r), r.PathValue("id"))
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	c.writeJSON(w, http.StatusOK, bid)
}

func (c *BidController) AcceptBid(w http.ResponseWriter, r *http.Request) {
	bid, err := c.usecase.AcceptBid(r.Context(), c.actor(r), r.PathValue("id"))
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	c.writeJSON(w, http.StatusOK, bid)
}

func (c *BidController) RejectBid(w http.ResponseWriter, r *http.Request) {
	bid, err := c.usecase.RejectBid(r.Context(), c.actor(r), r.PathValue("id"))
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	c.writeJSON(w, http.StatusOK, bid)
}

type captureRequest struct {
	PaymentMethodToken string `json:"payment_method_token"`
}

func (c *BidController) InitiateCapture(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if !c.decode(w, r, &req) {
		return
	}
	p, err := c.payments.InitiateCapture(r.Context(), c.actor(r), r.PathValue("id"), req.PaymentMethodToken)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	c.writeJSON(w, http.StatusOK, p)
}

// ConfirmCapture relays a processor notification. Operators only.
func (c *BidController) ConfirmCapture(w http.ResponseWriter, r *http.Request) {
	var result model.CaptureResult
	if !c.decode(w, r, &result) {
		return
	}
	p, err := c.payments.RecordCaptureResult(r.Context(), c.actor(r), r.PathValue("id"), result)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	c.writeJSON(w, http.StatusOK, p)
}

func (c *BidController) CreateIntent(w http.ResponseWriter, r *http.Request) {
	secret, err := c.payments.CreateIntent(r.Context(), c.actor(r), r.PathValue("id"))
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	c.writeJSON(w, http.StatusOK, map[string]string{"client_secret": secret})
}

func (c *BidController) GetPayment(w http.ResponseWriter, r *http.Request) {
	p, err := c.payments.GetPayment(r.Context(), c.actor(r), r.PathValue("id"))
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	c.writeJSON(w, http.StatusOK, p)
}
