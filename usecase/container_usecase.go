package usecase

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"

	"salvage-market/dao"
	"salvage-market/model"
	"salvage-market/pkg/clock"
)

const (
	maxPhoneLen   = 64
	maxTypeLen    = 128
	maxAddressLen = 1000
)

type ContainerUsecase struct {
	repo   *dao.ContainerRepository
	clock  clock.Clock
	logger *slog.Logger
}

func NewContainerUsecase(repo *dao.ContainerRepository, c clock.Clock, logger *slog.Logger) *ContainerUsecase {
	return &ContainerUsecase{repo: repo, clock: c, logger: logger}
}

// CreateRequest files a pending container request. Signed-out visitors
// may file one too; the request then has no requester.
func (u *ContainerUsecase) CreateRequest(ctx context.Context, actor model.Actor, in model.ContainerRequestInput) (*model.ContainerRequest, error) {
	in.ContactName = strings.TrimSpace(in.ContactName)
	in.ContactEmail = strings.TrimSpace(in.ContactEmail)
	in.ContactPhone = strings.TrimSpace(in.ContactPhone)
	in.Address = strings.TrimSpace(in.Address)
	in.ContainerType = strings.TrimSpace(in.ContainerType)
	in.Notes = strings.TrimSpace(in.Notes)

	var v model.Validation
	v.Check(in.ContactName != "", "contact_name", "is required")
	v.Check(!tooLong(in.ContactName, maxNameLen), "contact_name", "is too long")
	switch {
	case in.ContactEmail == "":
		v.Add("contact_email", "is required")
	case tooLong(in.ContactEmail, maxNameLen):
		v.Add("contact_email", "is too long")
	default:
		if _, err := mail.ParseAddress(in.ContactEmail); err != nil {
			v.Add("contact_email", "is not a valid address")
		}
	}
	v.Check(in.ContactPhone != "", "contact_phone", "is required")
	v.Check(!tooLong(in.ContactPhone, maxPhoneLen), "contact_phone", "is too long")
	v.Check(in.Address != "", "address", "is required")
	v.Check(len(in.Address) <= maxAddressLen, "address", "is too long")
	v.Check(in.ContainerType != "", "container_type", "is required")
	v.Check(!tooLong(in.ContainerType, maxTypeLen), "container_type", "is too long")
	v.Check(in.Quantity > 0, "quantity", "must be greater than zero")
	v.Check(len(in.Notes) <= maxNotesLen, "notes", "is too long")
	if actor.Authenticated() {
		v.Check(!tooLong(actor.UserID, maxUserIDLen), "user_id", "is too long")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	now := stamp(u.clock)
	req := &model.ContainerRequest{
		ID:            newID(),
		ContactName:   in.ContactName,
		ContactEmail:  in.ContactEmail,
		ContactPhone:  in.ContactPhone,
		Address:       in.Address,
		ContainerType: in.ContainerType,
		Quantity:      in.Quantity,
		Status:        model.ContainerPending,
		Notes:         in.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if actor.Authenticated() {
		id := actor.UserID
		req.RequesterID = &id
	}
	if err := u.repo.Insert(ctx, req); err != nil {
		return nil, err
	}
	u.logger.InfoContext(ctx, "container request filed", "request_id", req.ID, "type", req.ContainerType, "quantity", req.Quantity)
	return req, nil
}

// Advance moves a request along pending -> approved | rejected and
// approved -> delivered. Operators only.
func (u *ContainerUsecase) Advance(ctx context.Context, actor model.Actor, id string, target model.ContainerStatus) (*model.ContainerRequest, error) {
	if !actor.IsOperator {
		return nil, model.Unauthorized("operator access required")
	}
	if !target.Known() {
		return nil, model.Invalid("status", "unknown status "+string(target))
	}
	req, err := u.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, model.NotFound("container request not found")
	}
	from, ok := model.ContainerSource(target)
	if !ok || req.Status != from {
		return nil, model.InvalidState("cannot move a " + string(req.Status) + " request to " + string(target))
	}

	now := stamp(u.clock)
	moved, err := u.repo.Transition(ctx, id, from, target, now)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, model.InvalidState("request changed concurrently")
	}
	u.logger.InfoContext(ctx, "container request advanced", "request_id", id, "from", from, "to", target,
		"operator_id", actor.UserID)
	req.Status = target
	req.UpdatedAt = now
	return req, nil
}

// GetRequest is visible to operators and the requester.
func (u *ContainerUsecase) GetRequest(ctx context.Context, actor model.Actor, id string) (*model.ContainerRequest, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	req, err := u.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil || !(actor.IsOperator || (req.RequesterID != nil && *req.RequesterID == actor.UserID)) {
		return nil, model.NotFound("container request not found")
	}
	return req, nil
}

// ListRequests returns every request to operators and the actor's own
// requests to anyone else.
func (u *ContainerUsecase) ListRequests(ctx context.Context, actor model.Actor, status model.ContainerStatus) ([]model.ContainerRequest, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if status != "" && !status.Known() {
		return nil, model.Invalid("status", "unknown status "+string(status))
	}
	requester := actor.UserID
	if actor.IsOperator {
		requester = ""
	}
	return u.repo.List(ctx, requester, status)
}
