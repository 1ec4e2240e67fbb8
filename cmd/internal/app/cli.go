package app

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"sessiond/cmd/identity"
	"sessiond/cmd/security/password"
)

// HashPasswordCommand prints an Argon2id hash for a password read from the
// terminal without echo, or from the first line of in when it is not a TTY.
// The output is suitable for SESSIOND_ADMIN_PASSWORD_HASH.
func HashPasswordCommand(args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("hash-password", flag.ContinueOnError)
	fs.SetOutput(out)
	if err := fs.Parse(args); err != nil {
		return err
	}

	LoadDotEnv()
	pw, err := password.FromEnv()
	if err != nil {
		return err
	}

	secret, err := readSecret(in, out, "Password: ")
	if err != nil {
		return err
	}
	hash, err := pw.Hash(secret)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, hash)
	return err
}

// CreateAdminCommand provisions an admin user in the configured database.
func CreateAdminCommand(args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("create-admin", flag.ContinueOnError)
	fs.SetOutput(out)
	email := fs.String("email", "", "admin email address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" {
		return errors.New("create-admin: -email is required")
	}

	LoadDotEnv()
	cfg := LoadConfig()
	if cfg.DatabaseURL == "" {
		return errors.New("create-admin: SESSIOND_DATABASE_URL is not set")
	}
	pw, err := password.FromEnv()
	if err != nil {
		return err
	}

	secret, err := readSecret(in, out, "Password: ")
	if err != nil {
		return err
	}
	hash, err := pw.Hash(secret)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer pool.Close()
	db := NewSQLX(pool)
	defer func() { _ = db.Close() }()

	if cfg.AutoMigrate {
		if err := Migrate(ctx, db); err != nil {
			return err
		}
	}

	users, err := identity.NewSQLStore(db)
	if err != nil {
		return err
	}
	return createAdmin(ctx, users, *email, hash, out)
}

func createAdmin(ctx context.Context, p identity.Provisioner, email, hash string, out io.Writer) error {
	u, err := p.CreateUser(ctx, identity.CreateUserInput{
		Email:        email,
		PasswordHash: hash,
		Role:         identity.RoleAdmin,
	})
	if err != nil {
		if identity.IsConflict(err) {
			return fmt.Errorf("create-admin: %s already exists", email)
		}
		return err
	}
	_, err = fmt.Fprintf(out, "created admin %s (%s)\n", u.Email, u.ID)
	return err
}

func readSecret(in io.Reader, out io.Writer, prompt string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) { // #nosec G115 -- file descriptors fit in int.
		_, _ = fmt.Fprint(out, prompt)
		b, err := term.ReadPassword(int(f.Fd())) // #nosec G115
		_, _ = fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("read password: empty input")
	}
	return line, nil
}
