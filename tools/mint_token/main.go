package main

import (
	"context"
	"fmt"
	"log"
	"os"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"

	"github.com/formsage/backend/internal/infrastructure/database"
	"github.com/formsage/backend/internal/infrastructure/persistence"
	"github.com/formsage/backend/pkg/auth"
)

// Mints a JWT for an existing user, bypassing the login endpoint.
// Handy for curl sessions and end-to-end scripts.
func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: mint_token <email>")
	}
	email := os.Args[1]

	paths := []string{"../.env", ".env", "../../.env"}
	for _, p := range paths {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	conn, err := database.GetInstance()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	users := persistence.NewUserRepository(conn.DB())
	user, err := users.GetByEmail(context.Background(), email)
	if err != nil {
		log.Fatalf("Failed to look up user %s: %v", email, err)
	}
	if user == nil {
		log.Fatalf("No user with email %s", email)
	}

	token, err := auth.GenerateToken(auth.UserSession{
		ID:      user.ID,
		Name:    user.Name,
		Email:   user.Email,
		IsAdmin: user.IsAdmin,
	})
	if err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}

	fmt.Print(token)
}
