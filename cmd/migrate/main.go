// migrate creates or updates the SQLite schema.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/kdimtricp/cineman/internal/database"
)

func main() {
	dbPath := flag.String("db", "./cineman.db", "SQLite database path")
	flag.Parse()

	if env := os.Getenv("CINEMAN_DATABASE__PATH"); env != "" {
		*dbPath = env
	}

	db, err := database.NewDB(database.Config{Path: *dbPath})
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}
	defer db.Close()

	fmt.Printf("Schema up to date at %s\n", *dbPath)
}
