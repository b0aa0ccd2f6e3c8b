package usecase

import (
	"context"
	"database/sql"
	"log/slog"
	"net/mail"
	"strings"

	"salvage-market/dao"
	"salvage-market/model"
	"salvage-market/pkg/clock"
)

const maxMessageBody = 4000

type AgentUsecase struct {
	tx             *dao.Transactor
	agentRepo      *dao.AgentRepository
	assignmentRepo *dao.AssignmentRepository
	listingRepo    *dao.ListingRepository
	msgRepo        *dao.MessageRepository
	selector       AgentSelector
	clock          clock.Clock
	logger         *slog.Logger
}

func NewAgentUsecase(tx *dao.Transactor, agentRepo *dao.AgentRepository, assignmentRepo *dao.AssignmentRepository,
	listingRepo *dao.ListingRepository, msgRepo *dao.MessageRepository, selector AgentSelector,
	c clock.Clock, logger *slog.Logger) *AgentUsecase {
	return &AgentUsecase{
		tx:             tx,
		agentRepo:      agentRepo,
		assignmentRepo: assignmentRepo,
		listingRepo:    listingRepo,
		msgRepo:        msgRepo,
		selector:       selector,
		clock:          c,
		logger:         logger,
	}
}

// AssignAgent returns the active assignment for (clientID, listingID),
// creating one with a newly selected agent when none exists. The listing
// row stays locked for the whole check-then-insert, so concurrent calls
// for the same pair end with a single assignment.
func (u *AgentUsecase) AssignAgent(ctx context.Context, listingID, clientID string, typ model.AssignmentType) (*model.AgentAssignment, error) {
	if typ != model.AssignmentSell && typ != model.AssignmentBuy {
		return nil, model.Invalid("assignment_type", "must be sell or buy")
	}
	var out *model.AgentAssignment
	created := false
	err := u.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		listings := u.listingRepo.WithTx(tx)
		assignments := u.assignmentRepo.WithTx(tx)
		if err := listings.Lock(ctx, listingID); err != nil {
			return err
		}
		listing, err := listings.GetByID(ctx, listingID)
		if err != nil {
			return err
		}
		if listing == nil {
			return model.NotFound("listing not found")
		}

		existing, err := assignments.GetActiveForPair(ctx, clientID, listingID)
		if err != nil {
			return err
		}
		if existing != nil {
			out = existing
			return nil
		}
		if listing.Status != model.ListingActive {
			return model.InvalidState("listing is " + string(listing.Status))
		}

		loads, err := u.agentRepo.WithTx(tx).ListLoads(ctx, clientID)
		if err != nil {
			return err
		}
		if len(loads) == 0 {
			return model.InvalidState("no sales agent is available")
		}
		agent := u.selector.Select(loads)
		out = &model.AgentAssignment{
			ID:         newID(),
			AgentID:    agent.ID,
			ClientID:   clientID,
			ListingID:  listingID,
			Type:       typ,
			Status:     model.AssignmentActive,
			AssignedAt: stamp(u.clock),
		}
		created = true
		return assignments.Insert(ctx, out)
	})
	if err != nil {
		return nil, err
	}
	if created {
		u.logger.InfoContext(ctx, "agent assigned", "assignment_id", out.ID, "agent_id", out.AgentID,
			"client_id", clientID, "listing_id", listingID, "type", typ)
	}
	return out, nil
}

// StartNegotiation opens (or returns) the actor's buy assignment on an
// open listing.
func (u *AgentUsecase) StartNegotiation(ctx context.Context, actor model.Actor, listingID string) (*model.AgentAssignment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	listing, err := u.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing == nil || (!listing.OpenAt(stamp(u.clock)) && listing.OwnerID != actor.UserID) {
		return nil, model.NotFound("listing not found")
	}
	if listing.OwnerID == actor.UserID {
		return nil, model.Invalid("listing_id", "cannot negotiate on your own listing")
	}
	return u.AssignAgent(ctx, listingID, actor.UserID, model.AssignmentBuy)
}

// party resolves which side of the assignment actor is on. fromAgent is
// true for the agent.
func (u *AgentUsecase) party(ctx context.Context, actor model.Actor, assignmentID string) (a *model.AgentAssignment, fromAgent bool, err error) {
	if err := requireActor(actor); err != nil {
		return nil, false, err
	}
	a, err = u.assignmentRepo.GetByID(ctx, assignmentID)
	if err != nil {
		return nil, false, err
	}
	if a == nil {
		return nil, false, model.NotFound("assignment not found")
	}
	if a.ClientID == actor.UserID {
		return a, false, nil
	}
	agent, err := u.agentRepo.GetByID(ctx, a.AgentID)
	if err != nil {
		return nil, false, err
	}
	if agent != nil && agent.UserID == actor.UserID {
		return a, true, nil
	}
	return nil, false, model.Unauthorized("not a party to this assignment")
}

// SendMessage appends to the assignment's conversation. Only the client
// and the agent may write, and only while the assignment is active.
func (u *AgentUsecase) SendMessage(ctx context.Context, actor model.Actor, assignmentID, body string, typ model.MessageType) (*model.AgentCommunication, error) {
	a, fromAgent, err := u.party(ctx, actor, assignmentID)
	if err != nil {
		return nil, err
	}

	body = strings.TrimSpace(body)
	if typ == "" {
		typ = model.MessageText
	}
	var v model.Validation
	v.Check(body != "", "body", "is required")
	v.Check(len(body) <= maxMessageBody, "body", "is too long")
	v.Check(typ.Valid(), "message_type", "must be text, email or call_log")
	if err := v.Err(); err != nil {
		return nil, err
	}
	if a.Status != model.AssignmentActive {
		return nil, model.InvalidState("assignment is " + string(a.Status))
	}

	msg := &model.AgentCommunication{
		ID:           newID(),
		AssignmentID: a.ID,
		FromAgent:    fromAgent,
		Body:         body,
		Type:         typ,
		CreatedAt:    stamp(u.clock),
	}
	ok, err := u.msgRepo.CreateMessage(ctx, msg)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.InvalidState("assignment is no longer active")
	}
	return msg, nil
}

// MarkRead stamps every unread message the other party sent and returns
// how many were stamped.
func (u *AgentUsecase) MarkRead(ctx context.Context, actor model.Actor, assignmentID string) (int64, error) {
	a, fromAgent, err := u.party(ctx, actor, assignmentID)
	if err != nil {
		return 0, err
	}
	return u.msgRepo.MarkRead(ctx, a.ID, !fromAgent, stamp(u.clock))
}

func (u *AgentUsecase) ListMessages(ctx context.Context, actor model.Actor, assignmentID string) ([]model.AgentCommunication, error) {
	if actor.IsOperator {
		a, err := u.assignmentRepo.GetByID(ctx, assignmentID)
		if err != nil {
			return nil, err
		}
		if a == nil {
			return nil, model.NotFound("assignment not found")
		}
		return u.msgRepo.GetMessagesByAssignmentID(ctx, assignmentID)
	}
	a, _, err := u.party(ctx, actor, assignmentID)
	if err != nil {
		return nil, err
	}
	return u.msgRepo.GetMessagesByAssignmentID(ctx, a.ID)
}

// ListAssignments returns the actor's assignments, as client or as agent,
// with the unread count seen from the actor's side.
func (u *AgentUsecase) ListAssignments(ctx context.Context, actor model.Actor) ([]model.AssignmentSummary, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	return u.assignmentRepo.ListForUser(ctx, actor.UserID)
}

func (u *AgentUsecase) CompleteAssignment(ctx context.Context, id string) (*model.AgentAssignment, error) {
	return u.close(ctx, id, model.AssignmentCompleted)
}

func (u *AgentUsecase) CancelAssignment(ctx context.Context, id string) (*model.AgentAssignment, error) {
	return u.close(ctx, id, model.AssignmentCancelled)
}

// close moves an active assignment to status. An assignment that is
// already terminal is returned unchanged.
func (u *AgentUsecase) close(ctx context.Context, id string, status model.AssignmentStatus) (*model.AgentAssignment, error) {
	changed, err := u.assignmentRepo.Close(ctx, id, status, stamp(u.clock))
	if err != nil {
		return nil, err
	}
	a, err := u.assignmentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, model.NotFound("assignment not found")
	}
	if changed {
		u.logger.InfoContext(ctx, "assignment closed", "assignment_id", id, "status", status)
	}
	return a, nil
}

// CloseAssignment is the operator path for forcing an assignment to
// completed or cancelled.
func (u *AgentUsecase) CloseAssignment(ctx context.Context, actor model.Actor, id string, status model.AssignmentStatus) (*model.AgentAssignment, error) {
	if !actor.IsOperator {
		return nil, model.Unauthorized("operator access required")
	}
	switch status {
	case model.AssignmentCompleted, model.AssignmentCancelled:
		return u.close(ctx, id, status)
	}
	return nil, model.Invalid("status", "must be completed or cancelled")
}

// RegisterAgent adds an agent to the pool. Registering an email that is
// already known returns the existing agent.
func (u *AgentUsecase) RegisterAgent(ctx context.Context, actor model.Actor, name, email, userID string) (*model.Agent, error) {
	if !actor.IsOperator {
		return nil, model.Unauthorized("operator access required")
	}
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	userID = strings.TrimSpace(userID)
	var v model.Validation
	v.Check(name != "", "name", "is required")
	v.Check(!tooLong(name, maxNameLen), "name", "is too long")
	v.Check(userID != "", "user_id", "is required")
	v.Check(!tooLong(userID, maxUserIDLen), "user_id", "is too long")
	if _, err := mail.ParseAddress(email); err != nil {
		v.Add("email", "is not a valid address")
	} else if tooLong(email, maxNameLen) {
		v.Add("email", "is too long")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	existing, err := u.agentRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	agent := &model.Agent{
		ID:        newID(),
		UserID:    userID,
		Name:      name,
		Email:     email,
		Available: true,
		CreatedAt: stamp(u.clock),
	}
	if err := u.agentRepo.Insert(ctx, agent); err != nil {
		// Lost a race with a registration of the same email.
		if again, gerr := u.agentRepo.GetByEmail(ctx, email); gerr == nil && again != nil {
			return again, nil
		}
		return nil, err
	}
	u.logger.InfoContext(ctx, "agent registered", "agent_id", agent.ID, "user_id", userID)
	return agent, nil
}

func (u *AgentUsecase) ListAgents(ctx context.Context) ([]model.Agent, error) {
	return u.agentRepo.List(ctx)
}
