// Command rideeasy-watch follows one account from the terminal: its
// notification inbox and its live booking list.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/surajs41/RideEasy-Rental/internal/auth"
	"github.com/surajs41/RideEasy-Rental/internal/changefeed"
	"github.com/surajs41/RideEasy-Rental/internal/client"
	"github.com/surajs41/RideEasy-Rental/internal/config"
	"github.com/surajs41/RideEasy-Rental/internal/models"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("Error loading .env file: %v", err)
	}

	cfg, err := config.LoadWatch()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	token := cfg.Token
	if token == "" {
		if err := auth.InitJWTSecret(cfg.JWTSecret); err != nil {
			log.Fatal(err)
		}
		if token, err = auth.GenerateJWT(cfg.User, cfg.Role, 24*time.Hour); err != nil {
			log.Fatalf("Failed to sign development token: %v", err)
		}
	}

	audience := cfg.Audience
	if audience == "" {
		audience = cfg.User
		if cfg.Role == auth.RoleAdmin {
			audience = models.AdminAudience
		}
	}
	if audience == "" {
		log.Fatal("WATCH_AUDIENCE is required when WATCH_TOKEN is set without WATCH_USER")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := client.NewAPI(cfg.APIURL, token)

	inbox := client.NewInbox()
	session := client.NewSession(api, audience, inbox)
	session.OnSync = func(added int) {
		log.Printf("[inbox] synced: %d new, %d unread", added, inbox.UnreadCount())
	}
	session.OnPush = func(n models.Notification, added bool) {
		if added {
			log.Printf("[inbox] %s %s: %s (%d unread)", n.Severity, n.Kind, n.Message, inbox.UnreadCount())
		}
	}

	view := client.NewBookingView()
	feed := client.NewBookingFeed(api, view)
	feed.OnSync = func(rows int) {
		log.Printf("[bookings] baseline of %d bookings", rows)
	}
	feed.OnChange = func(c changefeed.Change) {
		log.Printf("[bookings] %s %s status=%s", c.Op, c.Booking.ID, c.Booking.Status)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = session.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		_ = feed.Run(ctx)
	}()
	wg.Wait()
}
