package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"velora/internal/config"
	"velora/internal/database"
	"velora/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type dressSeed struct {
	Dresses []models.WeddingDress `yaml:"dresses"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		seedPath = flag.String("dresses", "configs/dresses.yaml", "path to dresses.yaml")
		dbPath   = flag.String("db", "./data/velora.db", "path to sqlite db")
		dryRun   = flag.Bool("dry-run", false, "validate and report without writing")
	)
	flag.Parse()

	data, err := os.ReadFile(*seedPath)
	if err != nil {
		return fmt.Errorf("read dresses: %w", err)
	}
	var seed dressSeed
	if err = yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse dresses: %w", err)
	}
	if len(seed.Dresses) == 0 {
		return fmt.Errorf("no dresses in yaml")
	}
	if err = config.ValidateDresses(seed.Dresses); err != nil {
		return err
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	created := 0
	updated := 0
	for _, d := range seed.Dresses {
		_, err = db.GetDress(ctx, d.ID)
		switch {
		case err == nil:
			updated++
		case errors.Is(err, database.ErrDressNotFound):
			created++
		default:
			return fmt.Errorf("get %s: %w", d.ID, err)
		}
	}

	if !*dryRun {
		if err = db.SyncDresses(ctx, seed.Dresses); err != nil {
			return fmt.Errorf("sync dresses: %w", err)
		}
	}

	fmt.Printf("done: created=%d updated=%d dry_run=%t\n", created, updated, *dryRun)
	return nil
}
