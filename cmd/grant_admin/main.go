package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"accounts-api/internal/config"
	"accounts-api/internal/db"
	"accounts-api/internal/domain"
	"accounts-api/internal/repository"
	"accounts-api/internal/service"
)

// grant_admin cambia el rol de una cuenta existente. El registro público no
// permite elegir admin, así que el primer admin se crea con esta herramienta.
func main() {
	emailAddr := flag.String("email", "", "email de la cuenta")
	role := flag.String("role", domain.RoleAdmin, "rol a asignar (user, provider, admin)")
	flag.Parse()

	if *emailAddr == "" {
		fmt.Fprintln(os.Stderr, "usage: grant_admin -email user@example.com [-role admin]")
		os.Exit(2)
	}

	ctx := context.Background()
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Fatalf("db pool: %v", err)
	}
	defer pool.Close()

	if err := db.Ping(ctx, pool); err != nil {
		log.Fatalf("db ping: %v", err)
	}

	accountRepo := repository.NewPgAccountRepository(pool)
	accountSvc := service.NewAccountService(zap.NewNop(), accountRepo, service.NewBcryptHasher(cfg.BcryptCost), nil, nil, nil, nil)

	account, err := accountSvc.GrantRole(ctx, *emailAddr, *role)
	if err != nil {
		log.Fatalf("grant role: %v", err)
	}
	fmt.Printf("account %s (%s) now has role %s\n", account.ID, account.Email, account.Role)
}
