package auction

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/gavelhq/gavel/go/internal/models"
)

// AuctionRepository defines what the app layer needs from the repository
type AuctionRepository interface {
	CreateAuction(ctx context.Context, a *models.Auction) error
	GetAuction(ctx context.Context, id uuid.UUID) (*models.Auction, error)
	UpdateQueue(ctx context.Context, auctionID uuid.UUID, queue []uuid.UUID, cursor int) error
	CreateTeam(ctx context.Context, t *models.Team) error
	ListTeams(ctx context.Context, auctionID uuid.UUID) ([]models.Team, error)
	GetTeamByCaptain(ctx context.Context, auctionID, captainID uuid.UUID) (*models.Team, error)
	CreatePlayer(ctx context.Context, p *models.Player) error
	ListPlayers(ctx context.Context, auctionID uuid.UUID) ([]models.Player, error)
}

// App handles auction setup business logic. Live-round operations go through
// the engine instead; the app only covers the pre-LIVE surface.
type App struct {
	repo AuctionRepository
}

// NewApp creates a new auction App
func NewApp(repo AuctionRepository) *App {
	return &App{repo: repo}
}

// CreateAuctionRequest contains all data needed to create an auction
type CreateAuctionRequest struct {
	Name     string                 `json:"name"`
	Currency string                 `json:"currency"`
	Settings models.AuctionSettings `json:"settings"`
}

// CreateAuction creates a new auction in DRAFT with validation
func (a *App) CreateAuction(ctx context.Context, req CreateAuctionRequest) (*models.Auction, error) {
	if err := validateCreateAuctionRequest(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	auction := &models.Auction{
		ID:       uuid.New(),
		Name:     req.Name,
		Status:   models.AuctionStatusDraft,
		Currency: req.Currency,
		Settings: req.Settings,
	}
	if err := a.repo.CreateAuction(ctx, auction); err != nil {
		return nil, fmt.Errorf("failed to create auction: %w", err)
	}
	return auction, nil
}

// GetAuction retrieves an auction by ID
func (a *App) GetAuction(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	auction, err := a.repo.GetAuction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	return auction, nil
}

// RegisterTeamRequest contains all data needed to register a team
type RegisterTeamRequest struct {
	AuctionID uuid.UUID `json:"auction_id"`
	Name      string    `json:"name"`
	CaptainID uuid.UUID `json:"captain_id"`
}

// RegisterTeam adds a team to an auction that has not gone live yet. The
// team's budget comes from the auction settings so every team starts equal.
func (a *App) RegisterTeam(ctx context.Context, req RegisterTeamRequest) (*models.Team, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("validation failed: name is required")
	}
	auction, err := a.repo.GetAuction(ctx, req.AuctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	if auction.Status != models.AuctionStatusDraft && auction.Status != models.AuctionStatusLobby {
		return nil, fmt.Errorf("cannot register a team once the auction is %s", auction.Status)
	}

	team := &models.Team{
		ID:        uuid.New(),
		AuctionID: req.AuctionID,
		Name:      req.Name,
		CaptainID: req.CaptainID,
		Budget:    auction.Settings.BudgetPerTeam,
	}
	if err := a.repo.CreateTeam(ctx, team); err != nil {
		return nil, fmt.Errorf("failed to register team: %w", err)
	}
	return team, nil
}

// AddPlayerRequest contains all data needed to add a player to the pool
type AddPlayerRequest struct {
	AuctionID uuid.UUID `json:"auction_id"`
	FullName  string    `json:"full_name"`
	Tier      string    `json:"tier"`
	BasePrice float64   `json:"base_price"`
}

// AddPlayer adds a player to the auction pool and appends it to the queue.
func (a *App) AddPlayer(ctx context.Context, req AddPlayerRequest) (*models.Player, error) {
	if req.FullName == "" {
		return nil, fmt.Errorf("validation failed: full_name is required")
	}
	if req.BasePrice < 0 {
		return nil, fmt.Errorf("validation failed: base_price cannot be negative")
	}
	auction, err := a.repo.GetAuction(ctx, req.AuctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	if auction.Status != models.AuctionStatusDraft && auction.Status != models.AuctionStatusLobby {
		return nil, fmt.Errorf("cannot add a player once the auction is %s", auction.Status)
	}

	player := &models.Player{
		ID:        uuid.New(),
		AuctionID: req.AuctionID,
		FullName:  req.FullName,
		Tier:      req.Tier,
		BasePrice: req.BasePrice,
		Status:    models.PlayerStatusAvailable,
	}
	if err := a.repo.CreatePlayer(ctx, player); err != nil {
		return nil, fmt.Errorf("failed to add player: %w", err)
	}

	queue := append(auction.Queue, player.ID)
	if err := a.repo.UpdateQueue(ctx, req.AuctionID, queue, auction.QueueCursor); err != nil {
		return nil, fmt.Errorf("failed to append player to queue: %w", err)
	}
	return player, nil
}

// ResolveTeam maps an authenticated captain to their team for bid identity.
func (a *App) ResolveTeam(ctx context.Context, auctionID, captainID uuid.UUID) (*models.Team, error) {
	team, err := a.repo.GetTeamByCaptain(ctx, auctionID, captainID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve team: %w", err)
	}
	return team, nil
}

func validateCreateAuctionRequest(req CreateAuctionRequest) error {
	if req.Name == "" {
		return fmt.Errorf("name is required")
	}
	if req.Settings.SquadSize <= 0 {
		return fmt.Errorf("squad_size must be positive")
	}
	if req.Settings.BudgetPerTeam <= 0 {
		return fmt.Errorf("budget_per_team must be positive")
	}
	if req.Settings.MinViableBid < 0 || req.Settings.MinBidIncrement < 0 {
		return fmt.Errorf("bid floors cannot be negative")
	}
	if req.Settings.RoundSeconds < 0 {
		return fmt.Errorf("round_seconds cannot be negative")
	}
	return nil
}
