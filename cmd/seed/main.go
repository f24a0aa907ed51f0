// Command seed provisions the builtin permission catalog, the system roles
// and the bootstrap accounts in a PostgreSQL database. Safe to run repeatedly.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"authcore.org/internal/auth"
	"authcore.org/internal/store/pg"
)

func main() {
	log.SetFlags(0)
	dsn := flag.String("dsn", os.Getenv("AUTHCORE_PG_DSN"), "PostgreSQL DSN")
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or AUTHCORE_PG_DSN")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := pg.Open(*dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	if err := store.Ping(ctx); err != nil {
		log.Fatalf("ping db: %v", err)
	}
	if err := auth.Seed(ctx, store); err != nil {
		log.Fatalf("seed: %v", err)
	}
	log.Println("seed complete")
}
