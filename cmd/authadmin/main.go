// Command authadmin is the operator tool for pepper maintenance: rotating
// in a new pepper, migrating stored credential versions after a rotation,
// and inspecting the pepper sequence without revealing secrets.
package main

import (
	"bufio"
	"context"
	"crypto/sha256"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/term"

	"github.com/Omoju-Mayowa/blogauth/internal/common"
	"github.com/Omoju-Mayowa/blogauth/internal/flagx"
	"github.com/Omoju-Mayowa/blogauth/internal/server/config"
	"github.com/Omoju-Mayowa/blogauth/internal/server/pepper"
	"github.com/Omoju-Mayowa/blogauth/internal/server/repositories/repomanager"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "authadmin: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	args := flagx.FilterArgs(os.Args[1:], []string{"-rotate", "-migrate", "-show", "-secret-stdin"})

	fs := flag.NewFlagSet("authadmin", flag.ContinueOnError)
	rotate := fs.Bool("rotate", false, "install a new current pepper")
	migrate := fs.Int("migrate", 0, "shift stored pepper versions by N after a rotation")
	show := fs.Bool("show", false, "print pepper count and fingerprints")
	secretStdin := fs.Bool("secret-stdin", false, "read the new pepper from stdin instead of prompting")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.LoadConfig()

	store, err := pepper.Open(cfg.PepperFile, pepper.Seed{Current: cfg.Pepper, Old: cfg.PepperFallbacks})
	if err != nil {
		return err
	}

	switch {
	case *rotate:
		return runRotate(store, *secretStdin)
	case *migrate != 0:
		return runMigrate(cfg, store, *migrate)
	case *show:
		return runShow(store)
	default:
		fs.Usage()
		return fmt.Errorf("one of -rotate, -migrate or -show is required")
	}
}

func runRotate(store *pepper.Store, fromStdin bool) error {
	secret, err := readSecret(fromStdin)
	if err != nil {
		return err
	}

	rotated, err := store.Rotate([]string{secret})
	if err != nil {
		return err
	}

	fmt.Printf("rotated: %d peppers now retained\n", len(rotated))
	fmt.Println("IMPORTANT: run 'authadmin -migrate 1' exactly once to update stored credential versions.")
	fmt.Println("Running it zero times leaves hints stale (slower logins); running it twice corrupts them.")
	return nil
}

func runMigrate(cfg *config.Config, store *pepper.Store, delta int) error {
	if delta < 0 {
		return fmt.Errorf("migration delta must be positive, got %d", delta)
	}
	if delta >= store.Len() {
		return fmt.Errorf("migration delta %d exceeds the %d known pepper versions", delta, store.Len())
	}

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	defer db.Close()

	m, err := repomanager.NewPostgresRepositoryManager()
	if err != nil {
		return err
	}

	n, err := m.Credentials(db).ShiftPepperVersions(context.Background(), delta)
	if err != nil {
		return err
	}

	fmt.Printf("migrated: %d credential records shifted by %d\n", n, delta)
	return nil
}

func runShow(store *pepper.Store) error {
	peppers := store.List()
	fmt.Printf("peppers retained: %d (index 0 is current)\n", len(peppers))
	for i, p := range peppers {
		sum := sha256.Sum256([]byte(p))
		fmt.Printf("  version %d: fingerprint %x\n", i, sum[:6])
	}
	return nil
}

// readSecret reads the new pepper without echoing it. A terminal gets a
// prompt-and-confirm flow; -secret-stdin reads a single line, for use from
// provisioning scripts.
func readSecret(fromStdin bool) (string, error) {
	if fromStdin {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("reading secret from stdin: %w", err)
		}
		secret := strings.TrimRight(line, "\r\n")
		if secret == "" {
			return "", fmt.Errorf("empty secret")
		}
		return secret, nil
	}

	fmt.Print("New pepper: ")
	first, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading secret: %w", err)
	}

	fmt.Print("Confirm: ")
	second, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading confirmation: %w", err)
	}

	defer common.WipeByteArray(first)
	defer common.WipeByteArray(second)

	if string(first) != string(second) {
		return "", fmt.Errorf("secrets do not match")
	}
	if len(first) == 0 {
		return "", fmt.Errorf("empty secret")
	}
	return string(first), nil
}
