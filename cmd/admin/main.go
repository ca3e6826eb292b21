// Command admin manages operator accounts out of band.
//
//	admin create-admin -email ops@example.com [-first Ada] [-last Lovelace]
//
// The password is read from the terminal without echo.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"golang.org/x/term"

	"travel-booking/internal/auth"
	"travel-booking/internal/config"
	"travel-booking/internal/db"
)

// readPassword is swapped in tests.
var readPassword = term.ReadPassword

type adminBootstrapper interface {
	BootstrapAdmin(ctx context.Context, email, password, firstName, lastName string) error
}

type connectFunc func(ctx context.Context) (adminBootstrapper, func() error, error)

func main() {
	_ = godotenv.Load()

	if err := run(context.Background(), os.Args[1:], os.Stdout, connect); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func connect(ctx context.Context) (adminBootstrapper, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	database, err := db.Open(ctx, cfg.DatabaseURL, cfg.Pool)
	if err != nil {
		return nil, nil, err
	}

	service := auth.NewService(auth.NewRepository(database), auth.NewTokenCodec(cfg.JWTSecret))
	return service, database.Close, nil
}

func run(ctx context.Context, args []string, w io.Writer, connect connectFunc) error {
	if len(args) == 0 || args[0] != "create-admin" {
		return errors.New("usage: admin create-admin -email <email> [-first <name>] [-last <name>]")
	}

	fs := flag.NewFlagSet("create-admin", flag.ContinueOnError)
	fs.SetOutput(w)
	email := fs.String("email", "", "admin email")
	first := fs.String("first", "Admin", "first name")
	last := fs.String("last", "User", "last name")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" {
		return errors.New("-email is required")
	}

	password, err := promptPassword(w)
	if err != nil {
		return err
	}

	service, closeFn, err := connect(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := service.BootstrapAdmin(ctx, *email, password, *first, *last); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}

	fmt.Fprintf(w, "admin %s is ready\n", strings.ToLower(strings.TrimSpace(*email)))
	return nil
}

func promptPassword(w io.Writer) (string, error) {
	fmt.Fprint(w, "Password: ")
	first, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	fmt.Fprint(w, "Repeat password: ")
	second, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	if !bytes.Equal(first, second) {
		return "", errors.New("passwords do not match")
	}
	if err := auth.ValidatePassword(string(first)); err != nil {
		return "", err
	}

	return string(first), nil
}
