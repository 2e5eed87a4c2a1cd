// main.go - Admin control tool for linkpage
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"linkpage/internal"
	"linkpage/internal/config"
	"linkpage/internal/jobs"
	"linkpage/internal/seeder"
	"linkpage/internal/users"
)

const (
	defaultShutdownTimeout = 30 * time.Second
	minPasswordLength      = 8
)

// Command defines the interface for all command implementations
type Command interface {
	Name() string
	Description() string
	Execute(ctx context.Context, app *internal.Application, args []string) error
}

// The set of available commands
var commands = []Command{
	&CreateUserCommand{},
	&ChangePasswordCommand{},
	&MigrateCommand{},
	&SeedCommand{},
	&CleanupCommand{},
	&StatusCommand{},
	&HelpCommand{},
}

func main() {
	flag.Parse()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v, initiating cleanup...", sig)
		cancel()
	}()

	cmdName, args := parseArgs()

	cmd := findCommand(cmdName)
	if cmd == nil {
		showUsageAndExit()
	}

	var app *internal.Application
	if cmd.Name() != "help" {
		var err error
		app, err = internal.NewApp()
		if err != nil {
			log.Fatalf("Failed to initialize app: %v", err)
		}
	}

	err := cmd.Execute(ctx, app, args)

	if app != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		if shutdownErr := app.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Printf("Warning: Cleanup error: %v", shutdownErr)
		}
		cancelShutdown()
	}

	if err != nil {
		log.Fatalf("Command failed: %v", err)
	}
	log.Printf("Command %s completed successfully", cmd.Name())
}

// CreateUserCommand creates a page owner account
type CreateUserCommand struct{}

func (c *CreateUserCommand) Name() string        { return "create-user" }
func (c *CreateUserCommand) Description() string { return "Creates a user: create-user <email> [password]" }

func (c *CreateUserCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: %s <email> [password]", c.Name())
	}
	email := strings.TrimSpace(args[0])

	password, err := passwordFromArgs(args[1:])
	if err != nil {
		return err
	}

	log.Printf("Creating user with email: %s", email)

	user, err := users.CreateUser(slog.Default(), app.DBManager.GetConnection(), email, password)
	if err != nil {
		if errors.Is(err, users.ErrUserExists) {
			log.Printf("User %s already exists", email)
			return nil
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Printf("Created user %d (%s)\n", user.ID, user.Email)
	return nil
}

// ChangePasswordCommand updates the password of an existing user
type ChangePasswordCommand struct{}

func (c *ChangePasswordCommand) Name() string { return "change-password" }
func (c *ChangePasswordCommand) Description() string {
	return "Changes a user's password: change-password <email> [password]"
}

func (c *ChangePasswordCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	var email string
	if len(args) >= 1 {
		email = strings.TrimSpace(args[0])
	} else {
		fmt.Print("Enter email: ")
		input, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		email = strings.TrimSpace(input)
	}

	if email == "" {
		return fmt.Errorf("email is required")
	}

	db := app.DBManager.GetConnection()
	if _, err := users.FindByEmail(db, email); err != nil {
		return fmt.Errorf("user lookup failed: %w", err)
	}

	var rest []string
	if len(args) >= 2 {
		rest = args[1:]
	}
	password, err := passwordFromArgs(rest)
	if err != nil {
		return err
	}

	if err := users.ChangePassword(slog.Default(), db, email, password); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	fmt.Println("Password updated successfully")
	return nil
}

// passwordFromArgs takes the password from args or prompts for it twice.
func passwordFromArgs(args []string) (string, error) {
	if len(args) >= 1 {
		password := strings.TrimSpace(args[0])
		return password, validatePassword(password)
	}

	fmt.Printf("Enter password (minimum %d characters): ", minPasswordLength)
	password, err := readPassword()
	if err != nil {
		return "", err
	}
	if err := validatePassword(password); err != nil {
		return "", err
	}

	fmt.Print("Confirm password: ")
	confirm, err := readPassword()
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", fmt.Errorf("passwords do not match")
	}
	return password, nil
}

func readPassword() (string, error) {
	fd := int(syscall.Stdin)
	if term.IsTerminal(fd) {
		passBytes, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimSpace(string(passBytes)), nil
	}

	input, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && input == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(input), nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	return nil
}

// MigrateCommand runs database migrations
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string        { return "migrate" }
func (c *MigrateCommand) Description() string { return "Runs database migrations" }

func (c *MigrateCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	log.Println("Running database migrations...")
	if err := app.DBManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	log.Println("Migrations completed successfully")
	return nil
}

// SeedCommand populates the DB with a demo page and traffic
type SeedCommand struct{}

func (c *SeedCommand) Name() string        { return "seed" }
func (c *SeedCommand) Description() string { return "Seeds the database with a demo page and visits" }

func (c *SeedCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	visits := fs.Int("visits", 500, "number of visits to generate")
	days := fs.Int("days", 30, "spread visits over this many days")
	slug := fs.String("page", "", "existing published page to seed (creates the demo page if empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := app.DBManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	se := seeder.NewSeeder(app.DBManager, slog.Default(), *visits, *days)
	se.Salt = config.GetConfig().PrivateKey

	if *slug != "" {
		return se.SeedPage(ctx, *slug)
	}
	return se.Run(ctx)
}

// CleanupCommand applies the visit retention policy now
type CleanupCommand struct{}

func (c *CleanupCommand) Name() string        { return "cleanup" }
func (c *CleanupCommand) Description() string { return "Deletes visits older than the retention period" }

func (c *CleanupCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	return app.Jobs.RunCleanup()
}

// StatusCommand shows database and GeoLite status
type StatusCommand struct{}

func (c *StatusCommand) Name() string        { return "status" }
func (c *StatusCommand) Description() string { return "Shows the current system status" }

func (c *StatusCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	counts, err := app.DBManager.TableCounts()
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	log.Println("System Status:")
	log.Println("- Database: Connected")

	tables := make([]string, 0, len(counts))
	for table := range counts {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	for _, table := range tables {
		log.Printf("- %s: %d", table, counts[table])
	}

	sqlDB, err := app.DBManager.GetConnection().DB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB: %w", err)
	}
	stats := sqlDB.Stats()
	log.Printf("- Max Open Connections: %d", stats.MaxOpenConnections)
	log.Printf("- Open Connections: %d", stats.OpenConnections)
	log.Printf("- In Use: %d", stats.InUse)
	log.Printf("- Idle: %d", stats.Idle)

	geo := jobs.GetGeoLiteStatus(config.GetConfig())
	log.Printf("- GeoLite configured: %t", geo.Configured)
	if geo.DBExists {
		log.Printf("- GeoLite database: %s (updated %s)", geo.Path, geo.LastUpdate.Format(time.RFC3339))
	} else {
		log.Printf("- GeoLite database: missing (%s)", geo.Path)
	}

	return nil
}

// HelpCommand shows usage information
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Shows usage information" }

func (c *HelpCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	printUsage()
	return nil
}

// parseArgs parses the command name and arguments
func parseArgs() (string, []string) {
	args := flag.Args()
	if len(args) == 0 {
		return "help", []string{}
	}
	return args[0], args[1:]
}

// findCommand finds a command by name
func findCommand(name string) Command {
	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

func printUsage() {
	fmt.Println("Usage: linkctl [command] [args...]")
	fmt.Println("Available commands:")
	for _, cmd := range commands {
		fmt.Printf("  %s: %s\n", cmd.Name(), cmd.Description())
	}
}

// showUsageAndExit shows usage information and exits
func showUsageAndExit() {
	printUsage()
	os.Exit(1)
}
