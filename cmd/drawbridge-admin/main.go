// ABOUTME: Admin CLI for drawbridge operating directly on the SQLite store
// ABOUTME: Commands: user create/list/show/tombstone, token create/list/revoke

package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"golang.org/x/crypto/bcrypt"

	"github.com/drawbridgehq/drawbridge/internal/store"
)

const banner = `
     _                   _          _     _
  __| |_ __ __ ___      _| |__  _ __(_) __| | __ _  ___
 / _' | '__/ _' \ \ /\ / / '_ \| '__| |/ _' |/ _' |/ _ \
| (_| | | | (_| |\ V  V /| |_) | |  | | (_| | (_| |  __/
 \__,_|_|  \__,_| \_/\_/ |_.__/|_|  |_|\__,_|\__, |\___|
                                             |___/  admin
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(configPath())
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
	if !cfg.Output.Color {
		color.NoColor = true
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		color.Red("Error: opening database: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "user":
		err = cmdUser(ctx, s, args)
	case "token":
		err = cmdToken(ctx, s, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: drawbridge-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  user list                      List all accounts")
	fmt.Println("  user show <email>              Show one account")
	fmt.Println("  user create --email EMAIL      Create an account (prints the password)")
	fmt.Println("  user tombstone <email>         Tombstone an account")
	fmt.Println("  token list <email>             List a user's access tokens")
	fmt.Println("  token create <email>           Mint an access token for a user")
	fmt.Println("  token revoke <email> <id>      Revoke a user's token by id")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  DRAWBRIDGE_ADMIN_CONFIG   Config file path (default: ~/.config/drawbridge/admin.toml)")
	fmt.Println("  DRAWBRIDGE_DB             Database path (overrides the config file)")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  export DRAWBRIDGE_DB=~/.local/share/drawbridge/drawbridge.db")
	fmt.Println("  drawbridge-admin user create --email ops@example.com --role admin")
	fmt.Println("  drawbridge-admin token create ops@example.com --comment ci --scope auth:read")
	fmt.Println()
}

func cmdUser(ctx context.Context, s *store.SQLiteStore, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}

	switch args[0] {
	case "list":
		return cmdUserList(ctx, s)
	case "show":
		if len(args) < 2 {
			return fmt.Errorf("usage: user show <email>")
		}
		return cmdUserShow(ctx, s, args[1])
	case "create":
		return cmdUserCreate(ctx, s, args[1:])
	case "tombstone":
		if len(args) < 2 {
			return fmt.Errorf("usage: user tombstone <email>")
		}
		return cmdUserTombstone(ctx, s, args[1])
	default:
		return fmt.Errorf("unknown user subcommand: %s", args[0])
	}
}

func cmdUserList(ctx context.Context, s *store.SQLiteStore) error {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return err
	}

	if len(users) == 0 {
		fmt.Println("No accounts.")
		return nil
	}

	bold := color.New(color.Bold)
	bold.Printf("%-6s %-35s %-10s %-8s %s\n", "ID", "EMAIL", "ROLE", "LANG", "CREATED")
	for _, u := range users {
		email := u.Email
		if u.Deleted() {
			email = color.HiBlackString("(tombstoned)")
		}
		fmt.Printf("%-6d %-35s %-10s %-8s %s\n",
			u.ID, email, u.Role, u.Language, u.CreatedAt.Format("2006-01-02"))
	}
	return nil
}

func cmdUserShow(ctx context.Context, s *store.SQLiteStore, email string) error {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("looking up %s: %w", email, err)
	}

	cyan := color.New(color.FgCyan)
	cyan.Println("Account")
	cyan.Println("-------")
	fmt.Printf("ID:       %d\n", user.ID)
	fmt.Printf("Email:    %s\n", user.Email)
	fmt.Printf("Role:     %s\n", user.Role)
	fmt.Printf("Language: %s\n", user.Language)
	fmt.Printf("Created:  %s\n", user.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Pending:  %t\n", user.ActivateToken != nil)

	tokens, err := s.ListAccessTokens(ctx, user.ID)
	if err != nil {
		return err
	}
	fmt.Printf("Tokens:   %d\n", len(tokens))
	return nil
}

func cmdUserCreate(ctx context.Context, s *store.SQLiteStore, args []string) error {
	var email, role, password string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--email":
			if i+1 >= len(args) {
				return fmt.Errorf("--email requires a value")
			}
			email = args[i+1]
			i++
		case "--role":
			if i+1 >= len(args) {
				return fmt.Errorf("--role requires a value")
			}
			role = args[i+1]
			i++
		case "--password":
			if i+1 >= len(args) {
				return fmt.Errorf("--password requires a value")
			}
			password = args[i+1]
			i++
		default:
			return fmt.Errorf("unknown flag: %s", args[i])
		}
	}

	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("--email is required and must be an email address")
	}
	if role == "" {
		role = store.RoleEditor
	}
	switch role {
	case store.RoleAdmin, store.RoleEditor, store.RolePending:
	default:
		return fmt.Errorf("invalid role %q (admin, editor, pending)", role)
	}

	generated := false
	if password == "" {
		buf := make([]byte, 16)
		if _, err := rand.Read(buf); err != nil {
			return fmt.Errorf("generating password: %w", err)
		}
		password = hex.EncodeToString(buf)
		generated = true
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	user := &store.User{
		Email:    email,
		PwdHash:  string(hash),
		Role:     role,
		Language: "en-US",
	}
	if err := s.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("creating user: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Created account %s (id %d, role %s)\n", email, user.ID, role)
	if generated {
		fmt.Printf("  Password: %s\n", password)
	}
	return nil
}

func cmdUserTombstone(ctx context.Context, s *store.SQLiteStore, email string) error {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("looking up %s: %w", email, err)
	}

	if err := s.TombstoneUser(ctx, user.ID); err != nil {
		return fmt.Errorf("tombstoning: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Tombstoned account %s (id %d)\n", email, user.ID)
	fmt.Println("  Existing sessions and tokens will stop authenticating immediately.")
	return nil
}

func cmdToken(ctx context.Context, s *store.SQLiteStore, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: token <list|create|revoke> <email> [args]")
	}

	sub := args[0]
	user, err := s.GetUserByEmail(ctx, args[1])
	if err != nil {
		return fmt.Errorf("looking up %s: %w", args[1], err)
	}

	switch sub {
	case "list":
		return cmdTokenList(ctx, s, user)
	case "create":
		return cmdTokenCreate(ctx, s, user, args[2:])
	case "revoke":
		if len(args) < 3 {
			return fmt.Errorf("usage: token revoke <email> <id>")
		}
		return cmdTokenRevoke(ctx, s, user, args[2])
	default:
		return fmt.Errorf("unknown token subcommand: %s", sub)
	}
}

func cmdTokenList(ctx context.Context, s *store.SQLiteStore, user *store.User) error {
	tokens, err := s.ListAccessTokens(ctx, user.ID)
	if err != nil {
		return err
	}

	if len(tokens) == 0 {
		fmt.Println("No tokens.")
		return nil
	}

	bold := color.New(color.Bold)
	bold.Printf("%-6s %-20s %-25s %-20s %s\n", "ID", "COMMENT", "SCOPES", "LAST USED", "TOKEN")
	for _, t := range tokens {
		scopes := strings.Join(t.Scopes, ",")
		if scopes == "" {
			scopes = "*"
		}
		fmt.Printf("%-6d %-20s %-25s %-20s %s\n",
			t.ID, truncate(t.Comment, 20), truncate(scopes, 25),
			t.LastUsedAt.Format("2006-01-02 15:04"), truncate(t.Token, 12)+"…")
	}
	return nil
}

func cmdTokenCreate(ctx context.Context, s *store.SQLiteStore, user *store.User, args []string) error {
	var comment string
	var scopes []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--comment":
			if i+1 >= len(args) {
				return fmt.Errorf("--comment requires a value")
			}
			comment = args[i+1]
			i++
		case "--scope":
			if i+1 >= len(args) {
				return fmt.Errorf("--scope requires a value")
			}
			scopes = append(scopes, args[i+1])
			i++
		default:
			return fmt.Errorf("unknown flag: %s", args[i])
		}
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	token := &store.AccessToken{
		Token:   hex.EncodeToString(buf),
		UserID:  user.ID,
		Comment: comment,
		Scopes:  scopes,
	}
	if err := s.CreateAccessToken(ctx, token); err != nil {
		return fmt.Errorf("creating token: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Created token %d for %s\n", token.ID, user.Email)
	fmt.Printf("  Token: %s\n", token.Token)
	if len(scopes) > 0 {
		fmt.Printf("  Scopes: %s\n", strings.Join(scopes, ", "))
	}
	return nil
}

func cmdTokenRevoke(ctx context.Context, s *store.SQLiteStore, user *store.User, idArg string) error {
	id, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid token id: %s", idArg)
	}

	if err := s.DeleteAccessToken(ctx, id, user.ID); err != nil {
		return fmt.Errorf("revoking token %d: %w", id, err)
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Revoked token %d for %s\n", id, user.Email)
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-1] + "…"
}
