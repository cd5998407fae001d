package main

// Mint a bearer token for local testing against JWT_SECRET:
//   go run ./cmd/devtoken -sub user-1 -role admin

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"cv-ranker/internal/shared/auth"
	"cv-ranker/internal/shared/config"
)

func main() {
	sub := flag.String("sub", "", "user id (required)")
	email := flag.String("email", "", "email claim")
	name := flag.String("name", "", "name claim")
	role := flag.String("role", "", "role claim, e.g. admin")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *sub == "" {
		flag.Usage()
		os.Exit(2)
	}
	if !config.IsDevLike(config.Load().Env) {
		log.Printf("refusing to mint tokens outside dev-like environments")
		os.Exit(1)
	}

	token, err := auth.SignJWT(auth.Claims{
		Email: *email,
		Name:  *name,
		Role:  *role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   *sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().UTC().Add(*ttl)),
		},
	})
	if err != nil {
		log.Printf("failed to sign token: %v", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
