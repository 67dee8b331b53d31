package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/studentbulle/internal/app"
	"github.com/shrimpsizemoose/studentbulle/internal/models"
)

const usage = `usage: manage [-config config.toml] <command> [flags]

commands:
  initdb   drop and recreate every table, then create the default admin
  adduser  create an account
`

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML config file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	service, err := app.NewService(*configPath)
	if err != nil {
		logger.Error.Fatalf("Failed to start service: %v", err)
	}
	defer service.Close()

	ctx := context.Background()
	cmd, args := flag.Arg(0), flag.Args()[1:]

	switch cmd {
	case "initdb":
		err = initDB(ctx, service, args)
	case "adduser":
		err = addUser(ctx, service, args)
	default:
		flag.Usage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		service.Close()
		logger.Error.Fatalf("%s failed: %v", cmd, err)
	}
}

func initDB(ctx context.Context, service *app.Service, args []string) error {
	fs := flag.NewFlagSet("initdb", flag.ExitOnError)
	yes := fs.Bool("yes", false, "confirm that all data will be lost")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*yes {
		return fmt.Errorf("refusing to wipe the database without -yes")
	}

	if err := service.ResetDatabase(ctx); err != nil {
		return err
	}
	logger.Info.Printf("Database re-initialized, default admin is %q", service.Config.Admin.Username)
	return nil
}

func addUser(ctx context.Context, service *app.Service, args []string) error {
	fs := flag.NewFlagSet("adduser", flag.ExitOnError)
	username := fs.String("username", "", "account name")
	password := fs.String("password", "", "account password")
	role := fs.String("role", string(models.RoleUser), "admin or user")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if !models.Role(*role).Valid() {
		return fmt.Errorf("invalid role %q", *role)
	}

	user, err := service.Accounts.Create(ctx, *username, *password, models.Role(*role))
	if err != nil {
		return err
	}
	logger.Info.Printf("Created %s %q (id %d)", user.Role, user.Username, user.ID)
	return nil
}
