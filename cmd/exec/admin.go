package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/Strob0t/Exec/internal/adapter/postgres"
	"github.com/Strob0t/Exec/internal/config"
	"github.com/Strob0t/Exec/internal/domain/actor"
	"github.com/Strob0t/Exec/internal/service"
)

// runAdmin dispatches admin subcommands against the configured postgres store.
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp(os.Stderr)
		return nil
	}

	switch args[0] {
	case "seed":
		return runAdminSeed(args[1:])
	case "create-actor":
		return runAdminCreateActor(args[1:])
	case "list-actors":
		return runAdminListActors(args[1:])
	case "migrate-status":
		return runAdminMigrateStatus(args[1:])
	case "rollback":
		return runAdminRollback(args[1:])
	default:
		printAdminHelp(os.Stderr)
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp(w io.Writer) {
	_, _ = fmt.Fprint(w, `Usage: exec admin <command> [options]

Commands:
  seed             Create the default actors (admin, alice, manager, agent)
  create-actor     Create an actor
  list-actors      List all actors
  migrate-status   Print the current schema version
  rollback         Roll back schema migrations
  help             Show this help message

Examples:
  exec admin seed
  exec admin create-actor --name bob --kind human
  exec admin rollback --steps 1
`)
}

func loadAdminDeps(ctx context.Context) (*service.ActorService, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Store.Driver != "postgres" {
		return nil, nil, errors.New("admin commands need store.driver=postgres (EXEC_STORE_DRIVER)")
	}

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		pool.Close()
		return nil, nil, err
	}

	actors := service.NewActorService(postgres.NewStore(pool), cfg.Orchestrator.DefaultAgent)
	return actors, pool.Close, nil
}

func runAdminSeed(args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	actors, cleanup, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	seeded, err := actors.Seed(ctx)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	return printActors(os.Stdout, seeded)
}

func runAdminCreateActor(args []string) error {
	fs := flag.NewFlagSet("create-actor", flag.ContinueOnError)
	name := fs.String("name", "", "actor name (required)")
	kind := fs.String("kind", string(actor.KindHuman), "human, manager, agent or client")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return errors.New("--name is required")
	}

	ctx := context.Background()
	actors, cleanup, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	a, err := actors.Create(ctx, actor.CreateRequest{Name: *name, Kind: actor.Kind(*kind)})
	if err != nil {
		return fmt.Errorf("create actor: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Actor created: %s (id=%s, kind=%s)\n", a.Name, a.ID, a.Kind)
	return nil
}

func runAdminListActors(args []string) error {
	fs := flag.NewFlagSet("list-actors", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	actors, cleanup, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	list, err := actors.List(ctx)
	if err != nil {
		return fmt.Errorf("list actors: %w", err)
	}
	if len(list) == 0 {
		fmt.Println("No actors found.")
		return nil
	}
	return printActors(os.Stdout, list)
}

func printActors(out io.Writer, list []actor.Actor) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tKIND\tCREATED")
	for i := range list {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			list[i].ID, list[i].Name, list[i].Kind, list[i].CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runAdminMigrateStatus(args []string) error {
	fs := flag.NewFlagSet("migrate-status", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	v, err := postgres.MigrationVersion(context.Background(), cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	fmt.Printf("schema version: %d\n", v)
	return nil
}

func runAdminRollback(args []string) error {
	fs := flag.NewFlagSet("rollback", flag.ContinueOnError)
	steps := fs.Int("steps", 1, "number of migrations to roll back")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *steps < 1 {
		return errors.New("--steps must be >= 1")
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := postgres.RollbackMigrations(context.Background(), cfg.Postgres.DSN, *steps); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Rolled back %d migration(s)\n", *steps)
	return nil
}
