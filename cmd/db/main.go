package main

import (
	"context"
	"log"

	"github.com/letieu/idea-store/config"
	"github.com/letieu/idea-store/internal/database"
)

func main() {
	cnf, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if cnf.Backend.Type != config.BackendLibSQL {
		log.Fatalf("backend.type is %q, schema bootstrap only applies to %q", cnf.Backend.Type, config.BackendLibSQL)
	}

	db, err := database.NewDB(cnf)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		log.Fatalf("Fail to apply schema %v", err)
	}

	log.Println("DONE")
}
