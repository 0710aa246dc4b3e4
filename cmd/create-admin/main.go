// Command create-admin provisions a privileged account directly in the
// database. It is the only way to create the first admin.
//
//	create-admin -email ops@gadgetcloud.io -password '...' -name Ops [-role admin]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gadgetcloud/gc-backend/internal/app"
	"github.com/gadgetcloud/gc-backend/internal/core/domain"
	"github.com/gadgetcloud/gc-backend/internal/core/ports"
	"github.com/gadgetcloud/gc-backend/internal/core/service"
	"github.com/gadgetcloud/gc-backend/internal/infrastructure/security"
	"github.com/gadgetcloud/gc-backend/internal/pkg/config"
	"github.com/gadgetcloud/gc-backend/pkg/logger"
)

const commandTimeout = time.Minute

func main() {
	email := flag.String("email", "", "account email (required)")
	password := flag.String("password", "", "initial password (required)")
	name := flag.String("name", "", "display name (required)")
	role := flag.String("role", string(domain.RoleAdmin), "role: customer, partner, support or admin")
	flag.Parse()

	if err := run(*email, *password, *name, domain.Role(*role)); err != nil {
		fmt.Fprintln(os.Stderr, "create-admin:", err)
		os.Exit(1)
	}
}

func run(email, password, name string, role domain.Role) error {
	if email == "" || password == "" || name == "" {
		flag.Usage()
		return errors.New("-email, -password and -name are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	cfg, err := config.LoadStore(ctx)
	if err != nil {
		return err
	}
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  true,
		Service: "create-admin",
		Env:     cfg.Env,
	})

	store, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(ctx); err != nil {
			log.Error().Err(err).Msg("close store")
		}
	}()

	admin := service.NewAdminService(store.Users, security.NewBcryptHasher(cfg.Auth.BcryptCost), store.Audit, log)
	user, err := admin.CreateUser(ctx,
		domain.Identity{UserID: domain.SystemActor, Role: domain.RoleAdmin},
		ports.CreateUserInput{Email: email, Password: password, DisplayName: name, Role: role},
	)
	if err != nil {
		return err
	}

	fmt.Printf("created %s %s (%s)\n", user.Role, user.Email, user.ID)
	return nil
}
