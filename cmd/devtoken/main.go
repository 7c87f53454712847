// Command devtoken mints a bearer token for local testing against a server
// that shares the same JWT_SIGNING_KEY and JWT_ISSUER.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"docverify/internal/authz"
	jwttoken "docverify/internal/jwt_token"
	"docverify/internal/platform/config"
)

func main() {
	role := flag.String("role", "applicant", "applicant, reviewer or administrator (legacy names accepted)")
	user := flag.String("user", "", "user id; a random one is generated when empty")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.FromEnv()
	if err != nil {
		fail(err)
	}

	r, err := authz.ParseRole(*role)
	if err != nil {
		fail(err)
	}

	userID := uuid.New()
	if *user != "" {
		if userID, err = uuid.Parse(*user); err != nil {
			fail(fmt.Errorf("invalid user id: %w", err))
		}
	}

	token, err := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer).GenerateAccessToken(userID, r, *ttl)
	if err != nil {
		fail(err)
	}
	fmt.Fprintf(os.Stderr, "user %s role %s\n", userID, r)
	fmt.Println(token)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "devtoken:", err)
	os.Exit(1)
}
