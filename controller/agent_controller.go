package controller

import (
	"net/http"

	"salvage-market/model"
	"salvage-market/usecase"
)

type AgentController struct {
	base
	usecase *usecase.AgentUsecase
}

func newAgentController(b base, u *usecase.AgentUsecase) *AgentController {
	return &AgentController{base: b, usecase: u}
}

func (c *AgentController) ListAssignments(w http.ResponseWriter, r *http.Request) {
	summaries, err := c.usecase.ListAssignments(r.Context(), c.actor(r))
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	c.writeJSON(w, http.StatusOK, summaries)
}

func (c *AgentController) ListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := c.usecase.ListMessages(r.Context(), c.actor(r), r.PathValue("id"))
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	c.writeJSON(w, http.StatusOK, msgs)
}

type sendMessageRequest struct {
	Body string            `json:"body"`
	Type model.MessageType `json:"message_type"`
}

func (c *AgentController) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if !c.decode(w, r, &req) {
		return
	}
	msg, err := c.usecase.SendMessage(r.Context(), c.actor(r), r.PathValue("id"), req.Body, req.Type)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	c.writeJSON(w, http.StatusCreated, msg)
}

func (c *AgentController) MarkRead(w http.ResponseWriter, r *http.Request) {
	n, err := c.usecase.MarkRead(r.Context(), c.actor(r), r.PathValue("id"))
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	c.writeJSON(w, http.StatusOK, map[string]int64{"marked_read": n})
}

func (c *AgentController) closeAssignment(status model.AssignmentStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := c.usecase.CloseAssignment(r.Context(), c.actor(r), r.PathValue("id"), status)
		if err != nil {
			c.writeError(w, r, err)
			return
		}
		c.writeJSON(w, http.StatusOK, a)
	}
}

func (c *AgentController) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := c.usecase.ListAgents(r.Context())
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	c.writeJSON(w, http.StatusOK, agents)
}

type registerAgentRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	UserID string `json:"user_id"`
}

func (c *AgentController) RegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req registerAgentRequest
	if !c.decode(w, r, &req) {
		return
	}
	agent, err := c.usecase.RegisterAgent(r.Context(), c.actor(r), req.Name, req.Email, req.UserID)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	c.writeJSON(w, http.StatusOK, agent)
}
