package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v4"

	"creator-paywall/internal/config"
	"creator-paywall/internal/domain/model"
	"creator-paywall/internal/domain/ports/repository"
	pg "creator-paywall/internal/infra/db/postgres"
	"creator-paywall/internal/infra/logging"
	"creator-paywall/internal/infra/web"
)

// Seeds a buyer, a creator and a few published items so the checkout and
// return flow can be walked by hand, and prints a session token for the buyer.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	reset := flag.Bool("reset", false, "truncate all tables before seeding")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	if *reset {
		if _, err := pool.Exec(ctx, `TRUNCATE users, contents, transactions, purchases RESTART IDENTITY CASCADE;`); err != nil {
			logger.Fatal().Err(err).Msg("truncate")
		}
		logger.Info().Msg("tables truncated")
	}

	users := pg.NewPostgresUserRepo(pool)
	contents := pg.NewContentRepo(pool)

	buyer := &model.Actor{ID: "buyer-1", Email: "buyer@example.test", DisplayName: "Demo Buyer"}
	creator := &model.Actor{ID: "creator-1", Email: "creator@example.test", DisplayName: "Demo Creator", IsCreator: true}
	now := time.Now()
	seed := []model.Content{
		{ID: "content-1", Title: "Sunset over Dakar", Price: 500, CreatedAt: now.Add(-48 * time.Hour)},
		{ID: "content-2", Title: "Street food tour", Price: 1500, CreatedAt: now.Add(-24 * time.Hour)},
		{ID: "content-3", Title: "Sunset timelapse", Price: 500, CreatedAt: now},
	}

	err = pg.NewTxManager(pool).WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		for _, a := range []*model.Actor{buyer, creator} {
			if err := users.Save(ctx, tx, a); err != nil {
				return fmt.Errorf("user %s: %w", a.ID, err)
			}
		}
		for i := range seed {
			c := &seed[i]
			c.BeneficiaryID = creator.ID
			c.Status = model.ContentStatusPublished
			if err := contents.Save(ctx, tx, c); err != nil {
				return fmt.Errorf("content %s: %w", c.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("seed")
	}
	for _, c := range seed {
		fmt.Printf("seeded: %s %q price=%d %s\n", c.ID, c.Title, c.Price, cfg.Payment.Currency)
	}

	auth := web.NewAuthManager(web.AuthConfig{HMACSecret: []byte(cfg.Auth.JWTSecret), TTL: cfg.Auth.TTL})
	token, err := auth.Mint(nil, buyer)
	if err != nil {
		logger.Fatal().Err(err).Msg("mint session")
	}
	fmt.Printf("\nsession for %s (send as cookie %q or Authorization: Bearer):\n%s\n", buyer.ID, cfg.Auth.CookieName, token)
}
