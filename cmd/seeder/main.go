// Seeder loads a demo user with recipients and a draft campaign for local
// development.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/quillsend/quillsend-backend/internal/config"
	"github.com/quillsend/quillsend-backend/internal/model"
	"github.com/quillsend/quillsend-backend/internal/store"
)

const demoUser = "demo-user"

func main() {
	if err := run(); err != nil {
		slog.Error("seeder failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, relying on OS environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := store.Connect(ctx, cfg.Mongo)
	if err != nil {
		return err
	}
	defer db.Client().Disconnect(context.Background()) //nolint:errcheck

	recipients := make([]model.Recipient, 0, 20)
	for i := 1; i <= 20; i++ {
		recipients = append(recipients, model.Recipient{
			ID:     uuid.NewString(),
			UserID: demoUser,
			Email:  fmt.Sprintf("subscriber%02d@example.com", i),
			CustomFields: map[string]string{
				"name":    fmt.Sprintf("Subscriber %d", i),
				"company": "Example Corp",
			},
			CreatedAt: time.Now(),
		})
	}
	if err := store.NewRecipientStore(db).CreateMany(ctx, recipients); err != nil {
		return err
	}

	campaign := &model.Campaign{
		ID:           uuid.NewString(),
		UserID:       demoUser,
		Name:         "Welcome series",
		Subject:      "Welcome aboard, {{name}}!",
		Body:         "<p>Hi {{name}},</p>{{#if company}}<p>Greetings to everyone at {{company}}.</p>{{/if}}<p>Thanks for subscribing.</p>",
		TemplateType: model.TemplateHTML,
		RateLimit:    600,
		DailyQuota:   1000,
		Status:       model.StatusDraft,
		CreatedAt:    time.Now(),
	}
	if err := campaign.Validate(); err != nil {
		return err
	}
	if err := store.NewCampaignStore(db).Create(ctx, campaign); err != nil {
		return err
	}

	slog.Info("seeded demo data",
		slog.String("user_id", demoUser),
		slog.Int("recipients", len(recipients)),
		slog.String("campaign_id", campaign.ID),
	)
	return nil
}
