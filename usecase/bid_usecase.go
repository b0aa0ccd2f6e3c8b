package usecase

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"salvage-market/dao"
	"salvage-market/model"
	"salvage-market/pkg/clock"
)

const maxBidMessage = 1000

type BidUsecase struct {
	tx             *dao.Transactor
	listingRepo    *dao.ListingRepository
	bidRepo        *dao.BidRepository
	assignmentRepo *dao.AssignmentRepository
	clock          clock.Clock
	logger         *slog.Logger
}

func NewBidUsecase(tx *dao.Transactor, listingRepo *dao.ListingRepository, bidRepo *dao.BidRepository,
	assignmentRepo *dao.AssignmentRepository, c clock.Clock, logger *slog.Logger) *BidUsecase {
	return &BidUsecase{
		tx:             tx,
		listingRepo:    listingRepo,
		bidRepo:        bidRepo,
		assignmentRepo: assignmentRepo,
		clock:          c,
		logger:         logger,
	}
}

// biddable reports every reason bidder may not bid amount on listing.
func biddable(listing *model.Listing, bidderID string, amount decimal.Decimal, now time.Time) error {
	var v model.Validation
	switch {
	case !amount.IsPositive():
		v.Add("amount", "must be greater than zero")
	case amount.GreaterThan(model.MaxAmount):
		v.Add("amount", "must not exceed "+priceString(model.MaxAmount))
	case !amount.Equal(amount.Round(2)):
		v.Add("amount", "must have at most two decimal places")
	case amount.LessThan(listing.Price):
		v.Add("amount", "must be at least the asking price of "+priceString(listing.Price))
	}
	v.Check(listing.OpenAt(now), "listing_id", "listing is not accepting bids")
	v.Check(listing.OwnerID != bidderID, "listing_id", "cannot bid on your own listing")
	return v.Err()
}

// PlaceBid records a pending bid. The insert re-checks the listing in the
// same statement, so a sale, expiry or price change that races the bid
// still rejects it.
func (u *BidUsecase) PlaceBid(ctx context.Context, actor model.Actor, listingID string, amount decimal.Decimal, message *string) (*model.Bid, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if message != nil {
		trimmed := strings.TrimSpace(*message)
		if len(trimmed) > maxBidMessage {
			return nil, model.Invalid("message", "is too long")
		}
		message = &trimmed
		if trimmed == "" {
			message = nil
		}
	}

	listing, err := u.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, model.NotFound("listing not found")
	}
	now := stamp(u.clock)
	if err := biddable(listing, actor.UserID, amount, now); err != nil {
		return nil, err
	}

	bid := &model.Bid{
		ID:        newID(),
		ListingID: listingID,
		BidderID:  actor.UserID,
		Amount:    amount,
		Message:   message,
		Status:    model.BidPending,
		CreatedAt: now,
	}
	ok, err := u.bidRepo.InsertIfOpen(ctx, bid, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// The listing changed between the read and the insert.
		current, err := u.listingRepo.GetByID(ctx, listingID)
		if err != nil {
			return nil, err
		}
		if current != nil {
			if err := biddable(current, actor.UserID, amount, now); err != nil {
				return nil, err
			}
		}
		return nil, model.Invalid("listing_id", "listing is not accepting bids")
	}
	u.logger.InfoContext(ctx, "bid placed", "bid_id", bid.ID, "listing_id", listingID, "bidder_id", bid.BidderID,
		"amount", priceString(amount))
	return bid, nil
}

// loadForOwner fetches a bid and its listing and checks actor owns the
// listing, the listing is unsold and the bid is still pending.
func (u *BidUsecase) loadForOwner(ctx context.Context, actor model.Actor, bidID string) (*model.Bid, *model.Listing, error) {
	if err := requireActor(actor); err != nil {
		return nil, nil, err
	}
	bid, err := u.bidRepo.GetByID(ctx, bidID)
	if err != nil {
		return nil, nil, err
	}
	if bid == nil {
		return nil, nil, model.NotFound("bid not found")
	}
	listing, err := u.listingRepo.GetByID(ctx, bid.ListingID)
	if err != nil {
		return nil, nil, err
	}
	if listing == nil {
		return nil, nil, model.NotFound("listing not found")
	}
	if listing.OwnerID != actor.UserID {
		return nil, nil, model.Unauthorized("only the listing owner can decide on bids")
	}
	if listing.Status == model.ListingSold {
		return nil, nil, model.InvalidState("listing already sold")
	}
	if bid.Status != model.BidPending {
		return nil, nil, model.InvalidState("bid is already " + string(bid.Status))
	}
	return bid, listing, nil
}

// AcceptBid sells the listing to the bid. In one transaction the listing
// becomes sold, the bid accepted, every other pending bid rejected and
// the listing's active assignments completed. Of several concurrent
// accepts on one listing exactly one succeeds.
func (u *BidUsecase) AcceptBid(ctx context.Context, actor model.Actor, bidID string) (*model.Bid, error) {
	bid, listing, err := u.loadForOwner(ctx, actor, bidID)
	if err != nil {
		return nil, err
	}
	now := stamp(u.clock)
	if !listing.OpenAt(now) {
		return nil, model.InvalidState("listing is no longer active")
	}

	var rejected, completed int64
	err = u.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		listings := u.listingRepo.WithTx(tx)
		sold, err := listings.MarkSold(ctx, listing.ID, now)
		if err != nil {
			return err
		}
		if !sold {
			current, err := listings.GetByID(ctx, listing.ID)
			if err != nil {
				return err
			}
			if current != nil && current.Status != model.ListingSold {
				return model.InvalidState("listing is no longer active")
			}
			return model.InvalidState("listing already sold")
		}
		bids := u.bidRepo.WithTx(tx)
		accepted, err := bids.Accept(ctx, bid.ID, listing.ID, now)
		if err != nil {
			return err
		}
		if !accepted {
			return model.InvalidState("bid is no longer pending")
		}
		if rejected, err = bids.RejectSiblings(ctx, listing.ID, bid.ID, now); err != nil {
			return err
		}
		completed, err = u.assignmentRepo.WithTx(tx).CloseForListing(ctx, listing.ID, model.AssignmentCompleted, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	u.logger.InfoContext(ctx, "bid accepted", "bid_id", bid.ID, "listing_id", listing.ID,
		"amount", priceString(bid.Amount), "siblings_rejected", rejected, "assignments_completed", completed)

	bid.Status = model.BidAccepted
	bid.DecidedAt = &now
	return bid, nil
}

// RejectBid declines one pending bid and completes the bidder's buy
// assignment on the listing. The listing and other bids are untouched.
func (u *BidUsecase) RejectBid(ctx context.Context, actor model.Actor, bidID string) (*model.Bid, error) {
	bid, listing, err := u.loadForOwner(ctx, actor, bidID)
	if err != nil {
		return nil, err
	}
	now := stamp(u.clock)
	err = u.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		ok, err := u.bidRepo.WithTx(tx).Reject(ctx, bid.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return model.InvalidState("bid is no longer pending")
		}
		_, err = u.assignmentRepo.WithTx(tx).CompleteBuy(ctx, listing.ID, bid.BidderID, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	u.logger.InfoContext(ctx, "bid rejected", "bid_id", bid.ID, "listing_id", listing.ID)

	bid.Status = model.BidRejected
	bid.DecidedAt = &now
	return bid, nil
}

// ListBids returns every bid on the listing to its owner and only the
// actor's own bids to anyone else.
func (u *BidUsecase) ListBids(ctx context.Context, actor model.Actor, listingID string) ([]model.Bid, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	listing, err := u.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, model.NotFound("listing not found")
	}
	if actor.IsOperator || listing.OwnerID == actor.UserID {
		return u.bidRepo.ListByListing(ctx, listingID)
	}
	return u.bidRepo.ListByListingAndBidder(ctx, listingID, actor.UserID)
}

// GetBid is visible to the bidder and the listing owner.
func (u *BidUsecase) GetBid(ctx context.Context, actor model.Actor, id string) (*model.Bid, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	bid, err := u.bidRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if bid == nil {
		return nil, model.NotFound("bid not found")
	}
	if actor.IsOperator || bid.BidderID == actor.UserID {
		return bid, nil
	}
	listing, err := u.listingRepo.GetByID(ctx, bid.ListingID)
	if err != nil {
		return nil, err
	}
	if listing == nil || listing.OwnerID != actor.UserID {
		return nil, model.NotFound("bid not found")
	}
	return bid, nil
}
