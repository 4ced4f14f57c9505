package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"

	"optibid.com/internal/auth"
	"optibid.com/internal/migrate"
)

func main() {
	log.SetFlags(0)
	var (
		dsn        = flag.String("dsn", os.Getenv("OPTIBID_PG_DSN"), "PostgreSQL DSN")
		principals = flag.String("principals", os.Getenv("OPTIBID_PRINCIPALS_FILE"), "YAML principals file for seed")
		demo       = flag.Bool("demo", false, "seed the built-in demo accounts")
		cost       = flag.Int("cost", bcrypt.DefaultCost, "bcrypt cost for plaintext seed passwords")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or OPTIBID_PG_DSN")
	}
	if len(flag.Args()) == 0 {
		log.Fatal("usage: migrate [up|down|seed|status]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := auth.OpenPG(*dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	mgr := migrate.NewManager(db)

	switch flag.Arg(0) {
	case "up":
		var applied []string
		applied, err = mgr.Up(ctx)
		for _, name := range applied {
			fmt.Println("applied", name)
		}
	case "down":
		var last string
		last, err = mgr.Down(ctx)
		if err == nil {
			fmt.Println("rolled back", last)
		}
	case "seed":
		err = seed(ctx, mgr, *principals, *demo, *cost)
	case "status":
		var history []string
		history, err = mgr.Status(ctx)
		if err == nil {
			for _, item := range history {
				fmt.Println(item)
			}
		}
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", flag.Arg(0), err)
	}
}

func seed(ctx context.Context, mgr *migrate.Manager, file string, demo bool, cost int) error {
	var seeds []auth.Seed
	switch {
	case file != "":
		var err error
		if seeds, err = auth.LoadSeeds(file); err != nil {
			return err
		}
	case demo:
		seeds = auth.DemoSeeds()
	default:
		return fmt.Errorf("nothing to seed: pass -principals or -demo")
	}
	creds, err := auth.BuildCredentials(seeds, cost)
	if err != nil {
		return err
	}
	n, err := mgr.SeedPrincipals(ctx, creds)
	if err != nil {
		return err
	}
	fmt.Printf("seeded %d principals\n", n)
	return nil
}
