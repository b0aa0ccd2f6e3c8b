package command

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"salvage-market/config"
	"salvage-market/controller"
	"salvage-market/dao"
	"salvage-market/db"
	"salvage-market/pkg/clock"
	"salvage-market/pkg/payment"
	"salvage-market/usecase"
)

// App is the wired application shared by every subcommand.
type App struct {
	Config   *config.Config
	DB       *sql.DB
	Logger   *slog.Logger
	Usecases controller.Usecases
	Sweeper  *usecase.Sweeper
}

// NewApp connects to the store and builds every layer on top of it.
func NewApp(ctx context.Context, cfg *config.Config, c clock.Clock) (*App, error) {
	logger := cfg.Logger()

	conn, err := db.Open(ctx, cfg.DBDriver, cfg.DSN())
	if err != nil {
		return nil, err
	}

	selector, err := usecase.NewAgentSelector(cfg.AgentPolicy)
	if err != nil {
		conn.Close()
		return nil, err
	}

	tx := dao.NewTransactor(conn)
	listingRepo := dao.NewListingRepository(conn)
	bidRepo := dao.NewBidRepository(conn)
	agentRepo := dao.NewAgentRepository(conn)
	assignmentRepo := dao.NewAssignmentRepository(conn)
	msgRepo := dao.NewMessageRepository(conn)
	paymentRepo := dao.NewPaymentRepository(conn)
	containerRepo := dao.NewContainerRepository(conn)

	processor := payment.NewClient(cfg.PaymentURL, cfg.PaymentAPIKey)

	agents := usecase.NewAgentUsecase(tx, agentRepo, assignmentRepo, listingRepo, msgRepo, selector, c, logger)
	listings := usecase.NewListingUsecase(tx, listingRepo, assignmentRepo, agents, c, logger)
	u := controller.Usecases{
		Listings:   listings,
		Bids:       usecase.NewBidUsecase(tx, listingRepo, bidRepo, assignmentRepo, c, logger),
		Agents:     agents,
		Payments:   usecase.NewPaymentUsecase(bidRepo, listingRepo, paymentRepo, processor, cfg.Currency, cfg.PaymentTimeout, c, logger),
		Containers: usecase.NewContainerUsecase(containerRepo, c, logger),
	}

	sweeper, err := usecase.NewSweeper(listings, cfg.SweepSchedule, c, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &App{Config: cfg, DB: conn, Logger: logger, Usecases: u, Sweeper: sweeper}, nil
}

func (a *App) Migrate(ctx context.Context) error {
	return db.Migrate(ctx, a.DB, a.Config.DBDriver, a.Logger)
}

func (a *App) Handler() http.Handler {
	return controller.NewRouter(a.Usecases, a.Config.IsOperator, a.Logger)
}

func (a *App) Close() error {
	return a.DB.Close()
}

// loadApp reads the configuration and builds the App.
func loadApp(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return NewApp(ctx, cfg, clock.Real())
}
