package main

import (
	"context"
	"flag"
	"os"

	"go-pos-ws/internal/config"
	"go-pos-ws/internal/repository"
	"go-pos-ws/pkg/database"
	applogger "go-pos-ws/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	email := flag.String("email", "", "email of the profile to reset (defaults to ADMIN_EMAIL)")
	password := flag.String("password", "", "new password (defaults to RESET_PASSWORD)")
	flag.Parse()

	// 1. Load config
	cfg := config.Load()
	log, err := applogger.New(cfg.Env)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	if *email == "" {
		*email = cfg.AdminEmail
	}
	if *password == "" {
		*password = os.Getenv("RESET_PASSWORD")
	}
	if len(*password) < 6 {
		log.Fatal("Password must be at least 6 characters (use -password or RESET_PASSWORD)")
	}

	// 2. Setup Database
	db, err := database.ConnectDB(cfg.DatabaseURL, false)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	profileRepo := repository.NewProfileRepo(db)
	ctx := context.Background()

	// 3. Find profile
	profile, err := profileRepo.FindByEmail(ctx, *email)
	if err != nil {
		log.Fatal("Profile not found", zap.String("email", *email), zap.Error(err))
	}

	// 4. Hash new password and sign out every existing token
	if err := profile.SetPassword(*password); err != nil {
		log.Fatal("Failed to hash password", zap.Error(err))
	}
	profile.TokenVersion = uuid.NewString()
	profile.UpdatedBy = "reset-password"

	// 5. Update
	if err := profileRepo.Update(ctx, profile); err != nil {
		log.Fatal("Failed to update password", zap.Error(err))
	}

	log.Info("Password reset", zap.String("email", *email))
}
