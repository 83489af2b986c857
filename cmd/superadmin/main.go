package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"gorm.io/gorm"

	"github.com/mensajeropro/mensajero/app/models"
	"github.com/mensajeropro/mensajero/app/repository"
	"github.com/mensajeropro/mensajero/internal/pkg/database"
	"github.com/mensajeropro/mensajero/internal/pkg/env"
)

// Creates a superadmin account, or issues a fresh API key for an existing
// one, and prints the raw key once.
func main() {
	username := flag.String("username", "", "superadmin username")
	email := flag.String("email", "", "superadmin email")
	password := flag.String("password", "", "superadmin password (min 6 chars)")
	flag.Parse()

	if *username == "" {
		flag.Usage()
		os.Exit(1)
	}

	env.SetupEnvFile()
	database.SetupDatabase()
	users := repository.NewUserRepository(database.GetDB())

	user, err := users.GetByUsername(*username)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user, err = models.CreateSuperadmin(*username, *email, *password)
		if err != nil {
			log.Fatalf("Invalid superadmin data: %v", err)
		}
		if err := users.Create(user); err != nil {
			log.Fatalf("Failed to create superadmin: %v", err)
		}
		log.Printf("Created superadmin %s (id=%d)", user.Username, user.ID)
	case err != nil:
		log.Fatalf("Failed to look up user %s: %v", *username, err)
	default:
		user.Role = models.ROLE_SUPERADMIN
		user.IsSuperuser = true
		user.MaxBusinesses = models.UnlimitedBusinesses
		log.Printf("Promoting existing user %s (id=%d) to superadmin", user.Username, user.ID)
	}

	rawKey, err := user.IssueAPIKey()
	if err != nil {
		log.Fatalf("Failed to generate API key: %v", err)
	}
	if err := users.Update(user); err != nil {
		log.Fatalf("Failed to store API key: %v", err)
	}

	fmt.Println(rawKey)
}
