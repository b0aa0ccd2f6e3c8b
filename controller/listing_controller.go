package controller

import (
	"net/http"

	"salvage-market/model"
	"salvage-market/usecase"
)

type ListingController struct {
	base
	usecase *usecase.ListingUsecase
	agents  *usecase.AgentUsecase
}

func newListingController(b base, u *usecase.ListingUsecase, agents *usecase.AgentUsecase) *ListingController {
	return &ListingController{base: b, usecase: u, agents: agents}
}

type createListingResponse struct {
	Listing    *model.Listing         `json:"listing"`
	Assignment *model.AgentAssignment `json:"assignment"`
}

func (c *ListingController) CreateListing(w http.ResponseWriter, r *http.Request) {
	var in model.ListingInput
	if !c.decode(w, r, &in) {
		return
	}
	listing, assignment, err := c.usecase.CreateListing(r.Context(), c.actor(r), in)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	c.writeJSON(w, http.StatusCreated, createListingResponse{Listing: listing, Assignment: assignment})
}

func (c *ListingController) ListActive(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.ListingFilter{Kind: model.ListingKind(q.Get("kind")), Category: q.Get("category")}
	listings, err := c.usecase.ListActive(r.Context(), filter)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	c.writeJSON(w, http.StatusOK, listings)
}

func (c *ListingController) ListMine(w http.ResponseWriter, r *http.Request) {
	listings, err := c.usecase.ListMine(r.Context(), c.actor(r))
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	c.writeJSON(w, http.StatusOK, listings)
}

func (c *ListingController) GetListing(w http.ResponseWriter, r *http.Request) {
	listing, err := c.usecase.GetListing(r.Context(), c.actor(r), r.PathValue("id"))
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	c.writeJSON(w, http.StatusOK, listing)
}

func (c *ListingController) UpdateListing(w http.ResponseWriter, r *http.Request) {
	var in model.ListingInput
	if !c.decode(w, r, &in) {
		return
	}
	listing, err := c.usecase.UpdateListing(r.Context(), c.actor(r), r.PathValue("id"), in)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	c.writeJSON(w, http.StatusOK, listing)
}

func (c *ListingController) CancelListing(w http.ResponseWriter, r *http.Request) {
	listing, err := c.usecase.CancelListing(r.Context(), c.actor(r), r.PathValue("id"))
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	c.writeJSON(w, http.StatusOK, listing)
}

// StartNegotiation opens the caller's buy assignment on the listing.
func (c *ListingController) StartNegotiation(w http.ResponseWriter, r *http.Request) {
	a, err := c.agents.StartNegotiation(r.Context(), c.actor(r), r.PathValue("id"))
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	c.writeJSON(w, http.StatusOK, a)
}
