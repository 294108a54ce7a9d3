// Command maintenance runs operator jobs against the karting database:
//
//	maintenance clear-registrations
//	maintenance create-staff -username admin -email admin@example.com -password ... -dob 1990-01-01
//	maintenance migrate
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"karting-platform/internal/config"
	"karting-platform/internal/karting"
	"karting-platform/internal/logger"
	"karting-platform/internal/store/postgres"
)

type envConfig struct {
	DatabaseURL string        `env:"DATABASE_URL,required"`
	DBMaxConns  int32         `env:"DB_MAX_CONNS" envDefault:"2"`
	Timeout     time.Duration `env:"MAINTENANCE_TIMEOUT" envDefault:"5m"`
	LogLevel    string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string        `env:"LOG_FORMAT" envDefault:"text"`
}

// command is a parsed invocation.
type command struct {
	name  string
	staff karting.SignupForm
}

var errUsage = errors.New("usage: maintenance <clear-registrations|create-staff|migrate> [flags]")

func parseCommand(args []string) (command, error) {
	if len(args) == 0 {
		return command{}, errUsage
	}
	cmd := command{name: args[0]}
	switch cmd.name {
	case "clear-registrations", "migrate":
		if len(args) > 1 {
			return command{}, fmt.Errorf("%s takes no arguments", cmd.name)
		}
	case "create-staff":
		fs := flag.NewFlagSet(cmd.name, flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		fs.StringVar(&cmd.staff.Username, "username", "", "staff username")
		fs.StringVar(&cmd.staff.Email, "email", "", "staff email")
		fs.StringVar(&cmd.staff.Password, "password", "", "staff password")
		fs.StringVar(&cmd.staff.DateOfBirth, "dob", "", "date of birth, YYYY-MM-DD")
		fs.StringVar(&cmd.staff.FirstName, "first-name", "", "first name")
		fs.StringVar(&cmd.staff.LastName, "last-name", "", "last name")
		if err := fs.Parse(args[1:]); err != nil {
			return command{}, fmt.Errorf("create-staff: %w", err)
		}
		cmd.staff.Password2 = cmd.staff.Password
	default:
		return command{}, errUsage
	}
	return cmd, nil
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		config.Exitf("maintenance: load .env: %v", err)
	}
	var cfg envConfig
	if err := config.ParseEnv(&cfg); err != nil {
		config.Exitf("maintenance: %v", err)
	}
	cmd, err := parseCommand(os.Args[1:])
	if err != nil {
		config.Exitf("maintenance: %v", err)
	}
	log := logger.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if err := run(ctx, cfg, cmd, log, os.Stdout); err != nil {
		config.Exitf("maintenance %s: %v", cmd.name, err)
	}
}

func run(ctx context.Context, cfg envConfig, cmd command, log *slog.Logger, out io.Writer) error {
	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.DBMaxConns, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		return err
	}
	svc := karting.NewService(postgres.New(pool), karting.WithLogger(log))

	switch cmd.name {
	case "migrate":
		fmt.Fprintln(out, "Migrations applied.")
	case "clear-registrations":
		n, err := svc.ClearPastRegistrations(ctx, nil)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, karting.CleanupMessage(n))
	case "create-staff":
		u, err := svc.CreateStaff(ctx, cmd.staff)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Staff user %q created (id %d).\n", u.Username, u.ID)
	}
	return nil
}
