// Command createadmin creates an ADMIN account, or promotes an existing
// account with the same email.  It reads the same environment as the
// server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/iliyamo/library-api/internal/config"
	"github.com/iliyamo/library-api/internal/database"
	"github.com/iliyamo/library-api/internal/logger"
	"github.com/iliyamo/library-api/internal/model"
	"github.com/iliyamo/library-api/internal/repository"
	"github.com/iliyamo/library-api/internal/service"
)

func main() {
	name := flag.String("name", "Administrator", "display name")
	email := flag.String("email", "", "login email (required)")
	password := flag.String("password", "", "password, at least 6 characters (required)")
	flag.Parse()

	if *email == "" || *password == "" {
		flag.Usage()
		os.Exit(2)
	}
	if err := run(*name, *email, *password); err != nil {
		fmt.Fprintln(os.Stderr, "createadmin:", err)
		os.Exit(1)
	}
}

func run(name, email, password string) error {
	_ = godotenv.Load()
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if cfg.StorageDriver != config.DriverMySQL {
		return errors.New("createadmin needs STORAGE_DRIVER=mysql")
	}
	zl, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = zl.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.Open(ctx, database.Options{
		User:     cfg.DBUser,
		Password: cfg.DBPass,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		Name:     cfg.DBName,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	users := service.NewUserService(repository.NewUserRepo(db), repository.NewTokenRepo(db), service.AuthOptions{
		JWTSecret:      cfg.JWTSecret,
		AccessTTLMin:   cfg.AccessTTLMin,
		RefreshTTLDays: cfg.RefreshTTLDays,
		BcryptCost:     cfg.BcryptCost,
	}, zl)

	admin := model.RoleAdmin
	u, err := users.Create(ctx, service.UserInput{Name: &name, Email: &email, Password: &password, Role: &admin})
	if service.CodeOf(err) == service.CodeDuplicateEmail {
		u, err = promote(ctx, users, email)
	}
	if err != nil {
		return err
	}
	zl.Info("admin ready", zap.Uint64("user_id", u.ID), zap.String("email", u.Email))
	return nil
}

// promote gives the existing account with email the ADMIN role.
func promote(ctx context.Context, users *service.UserService, email string) (*model.User, error) {
	all, err := users.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range all {
		if !strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			continue
		}
		admin := model.RoleAdmin
		return users.Update(ctx, u.ID, service.UserInput{Role: &admin})
	}
	return nil, fmt.Errorf("no user with email %s", email)
}
