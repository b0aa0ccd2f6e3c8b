package usecase

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"salvage-market/dao"
	"salvage-market/model"
	"salvage-market/pkg/clock"
)

const (
	maxTitleLen    = 120
	maxImages      = 10
	maxDescription = 4000
)

// AgentAssigner binds an agent to a client and listing.
type AgentAssigner interface {
	AssignAgent(ctx context.Context, listingID, clientID string, typ model.AssignmentType) (*model.AgentAssignment, error)
}

type ListingUsecase struct {
	tx             *dao.Transactor
	listingRepo    *dao.ListingRepository
	assignmentRepo *dao.AssignmentRepository
	agents         AgentAssigner
	clock          clock.Clock
	logger         *slog.Logger
}

func NewListingUsecase(tx *dao.Transactor, listingRepo *dao.ListingRepository, assignmentRepo *dao.AssignmentRepository,
	agents AgentAssigner, c clock.Clock, logger *slog.Logger) *ListingUsecase {
	return &ListingUsecase{
		tx:             tx,
		listingRepo:    listingRepo,
		assignmentRepo: assignmentRepo,
		agents:         agents,
		clock:          c,
		logger:         logger,
	}
}

// SweepResult counts what one expiration sweep changed.
type SweepResult struct {
	Expired              int64 `json:"expired"`
	AssignmentsCancelled int64 `json:"assignments_cancelled"`
	AgentsAssigned       int64 `json:"agents_assigned"`
}

func normalizeInput(in *model.ListingInput) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = plainText(in.Description)
	in.Location = strings.TrimSpace(in.Location)
	in.Category = strings.TrimSpace(in.Category)
	refs := make([]string, 0, len(in.ImageRefs))
	for _, r := range in.ImageRefs {
		if r = strings.TrimSpace(r); r != "" {
			refs = append(refs, r)
		}
	}
	in.ImageRefs = refs
}

// plainText drops any markup pasted into a description and keeps the
// text.
func plainText(s string) string {
	s = strings.TrimSpace(s)
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	doc.Find("script, style").Remove()
	return strings.TrimSpace(doc.Text())
}

// validateMetadata checks the fields a seller may change after creation.
func validateMetadata(v *model.Validation, in model.ListingInput) {
	v.Check(in.Title != "", "title", "is required")
	v.Check(!tooLong(in.Title, maxTitleLen), "title", "is too long")
	v.Check(len(in.Description) <= maxDescription, "description", "is too long")
	v.Check(in.Location != "", "location", "is required")
	v.Check(!tooLong(in.Location, maxNameLen), "location", "is too long")
	v.Check(len(in.ImageRefs) <= maxImages, "image_refs", "too many images")
	for _, r := range in.ImageRefs {
		if tooLong(r, maxRefLen) {
			v.Add("image_refs", "reference is too long")
			break
		}
	}
	switch {
	case !in.Price.IsPositive():
		v.Add("price", "must be greater than zero")
	case in.Price.GreaterThan(model.MaxAmount):
		v.Add("price", "must not exceed "+priceString(model.MaxAmount))
	case !in.Price.Equal(in.Price.Round(2)):
		v.Add("price", "must have at most two decimal places")
	}
}

func validateListing(in model.ListingInput) error {
	var v model.Validation
	validateMetadata(&v, in)
	switch in.Kind {
	case model.KindRecycle, model.KindSalvage:
		v.Check(model.ValidCategory(in.Kind, in.Category), "category", "is not allowed for "+string(in.Kind)+" listings")
	default:
		v.Add("kind", "must be recycle or salvage")
	}
	v.Check(model.ValidDuration(in.DurationDays), "duration_days", "must be 7, 14 or 30")
	return v.Err()
}

// CreateListing stores a new active listing and binds a sell agent to
// it. A failed assignment does not fail the listing; the returned
// assignment is nil in that case.
func (u *ListingUsecase) CreateListing(ctx context.Context, actor model.Actor, in model.ListingInput) (*model.Listing, *model.AgentAssignment, error) {
	if err := requireActor(actor); err != nil {
		return nil, nil, err
	}
	normalizeInput(&in)
	if err := validateListing(in); err != nil {
		return nil, nil, err
	}

	now := stamp(u.clock)
	listing := &model.Listing{
		ID:           newID(),
		OwnerID:      actor.UserID,
		Title:        in.Title,
		Description:  in.Description,
		Kind:         in.Kind,
		Category:     in.Category,
		Price:        in.Price,
		Location:     in.Location,
		ImageRefs:    in.ImageRefs,
		Status:       model.ListingActive,
		DurationDays: in.DurationDays,
		CreatedAt:    now,
		ExpiresAt:    now.AddDate(0, 0, in.DurationDays),
		UpdatedAt:    now,
	}
	if err := u.listingRepo.Insert(ctx, listing); err != nil {
		return nil, nil, err
	}
	u.logger.InfoContext(ctx, "listing created", "listing_id", listing.ID, "owner_id", listing.OwnerID,
		"kind", listing.Kind, "expires_at", listing.ExpiresAt)

	assignment, err := u.agents.AssignAgent(ctx, listing.ID, listing.OwnerID, model.AssignmentSell)
	if err != nil {
		u.logger.WarnContext(ctx, "sell agent not assigned", "listing_id", listing.ID, "error", err)
		return listing, nil, nil
	}
	return listing, assignment, nil
}

// loadOwned fetches a listing and checks actor owns it.
func (u *ListingUsecase) loadOwned(ctx context.Context, actor model.Actor, id string) (*model.Listing, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	listing, err := u.listingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, model.NotFound("listing not found")
	}
	if listing.OwnerID != actor.UserID {
		return nil, model.Unauthorized("only the owner can change this listing")
	}
	if listing.Status != model.ListingActive {
		return nil, model.InvalidState("listing is " + string(listing.Status))
	}
	return listing, nil
}

// CancelListing withdraws an active listing and cancels its active agent
// assignments.
func (u *ListingUsecase) CancelListing(ctx context.Context, actor model.Actor, id string) (*model.Listing, error) {
	if _, err := u.loadOwned(ctx, actor, id); err != nil {
		return nil, err
	}

	now := stamp(u.clock)
	var cancelled int64
	err := u.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		ok, err := u.listingRepo.WithTx(tx).Cancel(ctx, id, actor.UserID, now)
		if err != nil {
			return err
		}
		if !ok {
			return model.InvalidState("listing is no longer active")
		}
		cancelled, err = u.assignmentRepo.WithTx(tx).CloseForListing(ctx, id, model.AssignmentCancelled, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	u.logger.InfoContext(ctx, "listing cancelled", "listing_id", id, "assignments_cancelled", cancelled)
	return u.listingRepo.GetByID(ctx, id)
}

// UpdateListing rewrites title, description, price, location and images
// of an active listing. Kind, category and duration are fixed at creation.
func (u *ListingUsecase) UpdateListing(ctx context.Context, actor model.Actor, id string, in model.ListingInput) (*model.Listing, error) {
	listing, err := u.loadOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	normalizeInput(&in)
	var v model.Validation
	validateMetadata(&v, in)
	if err := v.Err(); err != nil {
		return nil, err
	}

	listing.Title = in.Title
	listing.Description = in.Description
	listing.Price = in.Price
	listing.Location = in.Location
	listing.ImageRefs = in.ImageRefs
	listing.UpdatedAt = stamp(u.clock)
	ok, err := u.listingRepo.UpdateMetadata(ctx, listing)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.InvalidState("listing is no longer active")
	}
	return listing, nil
}

// GetListing returns a listing to its owner in any status and to anyone
// else only while it is open.
func (u *ListingUsecase) GetListing(ctx context.Context, actor model.Actor, id string) (*model.Listing, error) {
	listing, err := u.listingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, model.NotFound("listing not found")
	}
	if actor.IsOperator || (actor.Authenticated() && listing.OwnerID == actor.UserID) {
		return listing, nil
	}
	if !listing.OpenAt(stamp(u.clock)) {
		return nil, model.NotFound("listing not found")
	}
	return listing, nil
}

func (u *ListingUsecase) ListActive(ctx context.Context, filter model.ListingFilter) ([]model.Listing, error) {
	if filter.Kind != "" && filter.Kind != model.KindRecycle && filter.Kind != model.KindSalvage {
		return nil, model.Invalid("kind", "must be recycle or salvage")
	}
	return u.listingRepo.ListActive(ctx, stamp(u.clock), filter)
}

func (u *ListingUsecase) ListMine(ctx context.Context, actor model.Actor) ([]model.Listing, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	return u.listingRepo.ListByOwner(ctx, actor.UserID)
}

// SweepExpirations expires every active listing whose expiry has passed
// and cancels the active assignments of expired or cancelled listings.
// Open listings still missing a sell agent get another assignment try.
// Running it twice in a row changes nothing the second time.
func (u *ListingUsecase) SweepExpirations(ctx context.Context) (SweepResult, error) {
	now := stamp(u.clock)
	var res SweepResult
	err := u.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		var err error
		if res.Expired, err = u.listingRepo.WithTx(tx).ExpireDue(ctx, now); err != nil {
			return err
		}
		res.AssignmentsCancelled, err = u.assignmentRepo.WithTx(tx).CancelForClosedListings(ctx, now)
		return err
	})
	if err != nil {
		return SweepResult{}, err
	}
	if res.AgentsAssigned, err = u.assignMissingAgents(ctx, now); err != nil {
		return res, err
	}
	if res.Expired > 0 || res.AssignmentsCancelled > 0 || res.AgentsAssigned > 0 {
		u.logger.InfoContext(ctx, "expiration sweep", "expired", res.Expired,
			"assignments_cancelled", res.AssignmentsCancelled, "agents_assigned", res.AgentsAssigned)
	}
	return res, nil
}

// assignMissingAgents retries the sell assignment for open listings
// created while no agent could take them.
func (u *ListingUsecase) assignMissingAgents(ctx context.Context, now time.Time) (int64, error) {
	listings, err := u.listingRepo.ListWithoutSellAgent(ctx, now)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, l := range listings {
		_, err := u.agents.AssignAgent(ctx, l.ID, l.OwnerID, model.AssignmentSell)
		switch {
		case err == nil:
			n++
		case errors.Is(err, model.ErrInvalidState):
			u.logger.DebugContext(ctx, "sell agent still unassigned", "listing_id", l.ID, "error", err)
		default:
			return n, err
		}
	}
	return n, nil
}

// priceString renders an amount for messages.
func priceString(d decimal.Decimal) string {
	return d.StringFixed(2)
}
