// seed inserts development users for local testing. Idempotent: existing usernames are left alone.
package main

import (
	"context"
	"fmt"
	"log"

	"truledgr/backend/internal/config"
	"truledgr/backend/internal/db"
	"truledgr/backend/internal/security"
	userrepo "truledgr/backend/internal/user/repository"
	userservice "truledgr/backend/internal/user/service"
)

const devPassword = "password123"

var devUsers = []userservice.CreateInput{
	{Username: "admin", Email: "admin@truledgr.dev", FullName: "Admin User", Password: devPassword, IsAdmin: true},
	{Username: "testuser", Email: "testuser@truledgr.dev", FullName: "Test User", Password: devPassword},
	{Username: "alice", Email: "alice@truledgr.dev", FullName: "Alice Example", Password: devPassword},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx := context.Background()
	bunDB, err := db.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close(bunDB)
	if cfg.DBAutoMigrate {
		if err := db.EnsureSchema(ctx, bunDB); err != nil {
			log.Fatalf("schema: %v", err)
		}
	}

	users := userservice.NewService(userrepo.NewBunRepository(bunDB), security.NewHasher(cfg.BcryptCost))
	for _, in := range devUsers {
		u, created, err := users.EnsureUser(ctx, in)
		if err != nil {
			log.Fatalf("seed %s: %v", in.Username, err)
		}
		if !created {
			log.Printf("%s already exists (id %s). Skipping.", u.Username, u.ID)
			continue
		}
		log.Printf("created %s (id %s, admin=%t)", u.Username, u.ID, u.IsAdmin)
	}

	log.Println("Seed completed successfully.")
	fmt.Printf("Dev logins: admin, testuser, alice / %s\n", devPassword)
}
