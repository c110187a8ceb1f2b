package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gavelhq/gavel/go/internal/dbconfig"
	"github.com/gavelhq/gavel/go/internal/models"
)

// Fixture is the JSON layout for a full auction seed: one auction with its
// settings, the captains' teams and the player pool in queue order.
type Fixture struct {
	Name     string                 `json:"name"`
	Currency string                 `json:"currency"`
	Settings models.AuctionSettings `json:"settings"`
	Teams    []struct {
		Name      string    `json:"name"`
		CaptainID uuid.UUID `json:"captain_id"`
	} `json:"teams"`
	Players []struct {
		FullName  string  `json:"full_name"`
		Tier      string  `json:"tier"`
		BasePrice float64 `json:"base_price"`
	} `json:"players"`
}

func main() {
	ctx := context.Background()

	path := "go/internal/assets/auction_fixture.json"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read fixture: %v\n", err)
		os.Exit(1)
	}
	var fx Fixture
	if err := json.Unmarshal(data, &fx); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal fixture: %v\n", err)
		os.Exit(1)
	}

	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect error: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	settingsJSON, err := json.Marshal(fx.Settings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal settings: %v\n", err)
		os.Exit(1)
	}

	auctionID := uuid.New()

	queue := make([]uuid.UUID, len(fx.Players))
	for i := range fx.Players {
		queue[i] = uuid.New()
	}
	queueJSON, err := json.Marshal(queue)
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal queue: %v\n", err)
		os.Exit(1)
	}

	_, err = pool.Exec(ctx, `
        INSERT INTO auctions (
          id, name, status, currency, settings, queue, queue_cursor, created_at, updated_at
        ) VALUES ($1,$2,'DRAFT',$3,$4,$5,0,now(),now())
    `, auctionID, fx.Name, fx.Currency, settingsJSON, queueJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "insert auction: %v\n", err)
		os.Exit(1)
	}

	inserted, errs := 0, 0
	for _, t := range fx.Teams {
		_, err := pool.Exec(ctx, `
            INSERT INTO teams (
              id, auction_id, name, captain_id, budget, spent, slots_filled, created_at
            ) VALUES ($1,$2,$3,$4,$5,0,0,now())
            ON CONFLICT (auction_id, captain_id) DO NOTHING
        `, uuid.New(), auctionID, t.Name, t.CaptainID, fx.Settings.BudgetPerTeam)
		if err != nil {
			errs++
			continue
		}
		inserted++
	}
	fmt.Printf("Teams seed: total=%d inserted=%d errors=%d\n", len(fx.Teams), inserted, errs)

	inserted, errs = 0, 0
	for i, p := range fx.Players {
		_, err := pool.Exec(ctx, `
            INSERT INTO players (
              id, auction_id, full_name, tier, base_price, status, created_at
            ) VALUES ($1,$2,$3,$4,$5,'AVAILABLE',now())
        `, queue[i], auctionID, p.FullName, p.Tier, p.BasePrice)
		if err != nil {
			errs++
			continue
		}
		inserted++
	}
	fmt.Printf("Players seed: total=%d inserted=%d errors=%d\n", len(fx.Players), inserted, errs)
	fmt.Printf("Auction %q created: %s\n", fx.Name, auctionID)
}
