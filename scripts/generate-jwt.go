//go:build ignore

// This script generates a bearer token for the token node HTTP API
// Run with: TOKEN_NODE_JWT_SECRET=... go run scripts/generate-jwt.go -sub operator

package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/chainsafe/canton-token-flows/pkg/auth"
)

func main() {
	subject := flag.String("sub", "operator", "Token subject")
	issuer := flag.String("iss", "", "Token issuer, must match auth.issuer when set")
	ttl := flag.Duration("ttl", time.Hour, "Token lifetime")
	secretEnv := flag.String("secret-env", "TOKEN_NODE_JWT_SECRET", "Environment variable holding the HMAC secret")
	flag.Parse()

	secret := os.Getenv(*secretEnv)
	if secret == "" {
		fmt.Fprintf(os.Stderr, "secret not set: env=%s\n", *secretEnv)
		os.Exit(1)
	}

	token, err := auth.NewJWTValidator([]byte(secret), *issuer).IssueToken(*subject, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== Token Node API JWT ===")
	fmt.Println()
	fmt.Println(token)
	fmt.Println()
	fmt.Println("Use it with: curl -H 'Authorization: Bearer " + token + "' ...")
}
