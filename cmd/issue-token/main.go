// Command issue-token mints a bearer token signed with the configured JWT
// secret. Operator tokens are only obtainable this way.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"mobile-money-ledger/config"
	"mobile-money-ledger/internal/core/ports"
	"mobile-money-ledger/internal/service"

	"github.com/joho/godotenv"
)

func main() {
	phone := flag.String("phone", "", "subject phone number (E.164)")
	role := flag.String("role", ports.RoleOperator, "token role: operator or user")
	expiry := flag.Duration("expiry", 0, "token lifetime, defaults to jwt.expiry")
	configPath := flag.String("config", "", "config file path")
	flag.Parse()

	if *phone == "" {
		fmt.Fprintln(os.Stderr, "usage: go run ./cmd/issue-token --phone <+E164> [--role operator|user] [--expiry 1h] [--config config.yaml]")
		os.Exit(2)
	}
	if *role != ports.RoleOperator && *role != ports.RoleUser {
		fmt.Fprintf(os.Stderr, "unsupported role: %s\n", *role)
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	ttl := cfg.JWT.Expiry
	if *expiry > 0 {
		ttl = *expiry
	}

	token, exp, err := service.NewJWTTokenService(cfg.JWT.Secret, ttl, cfg.JWT.Issuer).Generate(*phone, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", exp.UTC().Format(time.RFC3339))
}
