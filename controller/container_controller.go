package controller

import (
	"net/http"

	"salvage-market/model"
	"salvage-market/usecase"
)

type ContainerController struct {
	base
	usecase *usecase.ContainerUsecase
}

func newContainerController(b base, u *usecase.ContainerUsecase) *ContainerController {
	return &ContainerController{base: b, usecase: u}
}

func (c *ContainerController) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var in model.ContainerRequestInput
	if !c.decode(w, r, &in) {
		return
	}
	req, err := c.usecase.CreateRequest(r.Context(), c.actor(r), in)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	c.writeJSON(w, http.StatusCreated, req)
}

func (c *ContainerController) ListRequests(w http.ResponseWriter, r *http.Request) {
	status := model.ContainerStatus(r.URL.Query().Get("status"))
	reqs, err := c.usecase.ListRequests(r.Context(), c.actor(r), status)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	c.writeJSON(w, http.StatusOK, reqs)
}

func (c *ContainerController) GetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := c.usecase.GetRequest(r.Context(), c.actor(r), r.PathValue("id"))
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	c.writeJSON(w, http.StatusOK, req)
}

type advanceRequest struct {
	Status model.ContainerStatus `json:"status"`
}

func (c *ContainerController) Advance(w http.ResponseWriter, r *http.Request) {
	var body advanceRequest
	if !c.decode(w, r, &body) {
		return
	}
	req, err := c.usecase.Advance(r.Context(), c.actor(r), r.PathValue("id"), body.Status)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	c.writeJSON(w, http.StatusOK, req)
}
