// ABOUTME: Entry point for folio-gateway, the reading progress server
// ABOUTME: Serves the progress API and manages readers and the article catalog

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/2389/folio-gateway/internal/auth"
	"github.com/2389/folio-gateway/internal/catalog"
	"github.com/2389/folio-gateway/internal/config"
	"github.com/2389/folio-gateway/internal/gateway"
	"github.com/2389/folio-gateway/internal/logging"
	"github.com/2389/folio-gateway/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
   __       _ _                       _
  / _| ___ | (_) ___         __ _  __ _| |_ _____      ____ _ _   _
 | |_ / _ \| | |/ _ \ _____ / _' |/ _' | __/ _ \ \ /\ / / _' | | | |
 |  _| (_) | | | (_) |_____| (_| | (_| | ||  __/\ V  V / (_| | |_| |
 |_|  \___/|_|_|\___/       \__, |\__,_|\__\___| \_/\_/ \__,_|\__, |
                            |___/                             |___/
`

func usage() {
	fmt.Println("Usage: folio-gateway <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                          Start the gateway server")
	fmt.Println("  init                           Create a new config file interactively")
	fmt.Println("  bootstrap --name NAME          Create config, database and a first reader")
	fmt.Println("  reader add --name NAME         Create a reader and print its token")
	fmt.Println("  reader list                    List readers")
	fmt.Println("  reader revoke ID               Revoke a reader")
	fmt.Println("  token --principal ID           Issue a new token for a reader")
	fmt.Println("  import MANIFEST                Import the article catalog from a manifest")
	fmt.Println("  health                         Check gateway health")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	args := os.Args[2:]
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "bootstrap":
		err = runBootstrap(ctx, args)
	case "reader":
		err = runReader(ctx, args)
	case "token":
		err = runToken(ctx, args)
	case "import":
		err = runImport(ctx, args)
	case "health":
		err = runHealth(ctx)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := config.DefaultPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(cfg.Logging, os.Stdout)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("Auth:      ")
	if cfg.Auth.JWTSecret == "" {
		yellow.Println("disabled (lookup only)")
	} else {
		fmt.Println("jwt")
	}

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			yellow.Print(" [funnel]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}

	fmt.Println()

	logger.Info("starting folio-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health/ready", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	fmt.Println("healthy")
	return nil
}

// openStore loads the config and opens its database.
func openStore() (*config.Config, *store.SQLiteStore, error) {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return cfg, s, nil
}

// parseName reads a --name/-n flag, accepting "--name value" and "--name=value".
func parseName(args []string) (string, error) {
	var displayName string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--name" || arg == "-n":
			if i+1 >= len(args) {
				return "", fmt.Errorf("--name requires a value")
			}
			displayName = args[i+1]
			i++
		case strings.HasPrefix(arg, "--name="):
			displayName = strings.TrimPrefix(arg, "--name=")
		case strings.HasPrefix(arg, "-n="):
			displayName = strings.TrimPrefix(arg, "-n=")
		case strings.HasPrefix(arg, "-"):
			return "", fmt.Errorf("unknown flag: %s", arg)
		default:
			return "", fmt.Errorf("unexpected argument: %s", arg)
		}
	}

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return "", fmt.Errorf("--name flag is required")
	}
	if len(displayName) > 100 {
		return "", fmt.Errorf("display name exceeds maximum length of 100 characters")
	}
	return displayName, nil
}

// createReader creates an approved principal and issues its token.
func createReader(ctx context.Context, cfg *config.Config, s *store.SQLiteStore, displayName string) (*store.Principal, string, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, "", fmt.Errorf("auth.jwt_secret is not configured")
	}

	p := &store.Principal{
		ID:          uuid.New().String(),
		DisplayName: displayName,
		Status:      store.PrincipalStatusApproved,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.CreatePrincipal(ctx, p); err != nil {
		return nil, "", fmt.Errorf("creating principal: %w", err)
	}

	token, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret)).Generate(p.ID, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, "", fmt.Errorf("generating token: %w", err)
	}
	return p, token, nil
}

func printReader(p *store.Principal, token string, ttl time.Duration) {
	cyan := color.New(color.FgCyan)
	cyan.Println("  Reader")
	cyan.Println("  ------")
	fmt.Printf("  ID:           %s\n", p.ID)
	fmt.Printf("  Display Name: %s\n", p.DisplayName)
	if ttl > 0 {
		fmt.Printf("  Expires:      %s\n", time.Now().Add(ttl).UTC().Format("Jan 02, 2006"))
	}
	fmt.Printf("  Token:        %s\n", token)
	fmt.Println()
	color.New(color.FgYellow).Println("  Sign the CLI in with:")
	fmt.Printf("    folio login %s\n", token)
	fmt.Println()
}

// runBootstrap performs first-time setup of the gateway:
// 1. Creates a config file with a random JWT secret (if not exists)
// 2. Creates the database and a first reader
// 3. Prints the reader's token
func runBootstrap(ctx context.Context, args []string) error {
	displayName, err := parseName(args)
	if err != nil {
		return err
	}

	configPath := config.DefaultPath()
	dbPath := filepath.Join(config.DataDir(), "gateway.db")
	green := color.New(color.FgGreen)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		secretBytes := make([]byte, 32)
		if _, err := rand.Read(secretBytes); err != nil {
			return fmt.Errorf("generating JWT secret: %w", err)
		}
		jwtSecret := base64.StdEncoding.EncodeToString(secretBytes)

		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}

		configContent := fmt.Sprintf(`# folio-gateway configuration
# Generated by folio-gateway bootstrap

server:
  http_addr: "127.0.0.1:8080"

database:
  path: "%s"

auth:
  jwt_secret: "%s"
  token_ttl: "8760h"

logging:
  level: "info"
  format: "text"
`, dbPath, jwtSecret)

		if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
		green.Printf("  ✓ Created config: %s\n", configPath)
	} else {
		color.New(color.FgCyan).Printf("  Using existing config: %s\n", configPath)
	}

	cfg, s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()
	green.Printf("  ✓ Database: %s\n", cfg.Database.Path)

	existing, err := s.ListPrincipals(ctx)
	if err != nil {
		return fmt.Errorf("checking principals: %w", err)
	}
	if len(existing) > 0 {
		return fmt.Errorf("bootstrap already complete: %d reader(s) exist; use 'folio-gateway reader add'", len(existing))
	}

	p, token, err := createReader(ctx, cfg, s, displayName)
	if err != nil {
		return err
	}
	green.Printf("  ✓ Created reader: %s\n", displayName)
	fmt.Println()
	printReader(p, token, cfg.Auth.TokenTTL)

	color.New(color.FgYellow).Println("  Ready to go:")
	fmt.Println("    folio-gateway import articles.yaml   # load the catalog")
	fmt.Println("    folio-gateway serve                  # start the gateway")
	fmt.Println()
	return nil
}

func runReader(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: folio-gateway reader add|list|revoke")
	}

	cfg, s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	switch args[0] {
	case "add":
		displayName, err := parseName(args[1:])
		if err != nil {
			return err
		}
		p, token, err := createReader(ctx, cfg, s, displayName)
		if err != nil {
			return err
		}
		printReader(p, token, cfg.Auth.TokenTTL)
		return nil

	case "list":
		principals, err := s.ListPrincipals(ctx)
		if err != nil {
			return fmt.Errorf("listing readers: %w", err)
		}
		if len(principals) == 0 {
			fmt.Println("No readers.")
			return nil
		}
		gray := color.New(color.FgHiBlack)
		for _, p := range principals {
			status := color.GreenString(string(p.Status))
			if !p.Active() {
				status = color.RedString(string(p.Status))
			}
			seen := "never"
			if p.LastSeen != nil {
				seen = p.LastSeen.Local().Format(time.DateTime)
			}
			fmt.Printf("%s  %-24s %s ", p.ID, p.DisplayName, status)
			gray.Printf("last seen %s\n", seen)
		}
		return nil

	case "revoke":
		if len(args) != 2 {
			return fmt.Errorf("usage: folio-gateway reader revoke ID")
		}
		if err := s.SetPrincipalStatus(ctx, args[1], store.PrincipalStatusRevoked); err != nil {
			return fmt.Errorf("revoking reader: %w", err)
		}
		color.New(color.FgGreen).Printf("  ✓ Revoked %s\n", args[1])
		return nil
	}
	return fmt.Errorf("unknown reader command: %s", args[0])
}

func runToken(ctx context.Context, args []string) error {
	var principalID string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--principal" || arg == "-p":
			if i+1 >= len(args) {
				return fmt.Errorf("--principal requires a value")
			}
			principalID = args[i+1]
			i++
		case strings.HasPrefix(arg, "--principal="):
			principalID = strings.TrimPrefix(arg, "--principal=")
		default:
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}
	if principalID == "" {
		return fmt.Errorf("--principal flag is required")
	}

	cfg, s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is not configured")
	}
	p, err := s.GetPrincipal(ctx, principalID)
	if err != nil {
		return fmt.Errorf("loading reader: %w", err)
	}
	if !p.Active() {
		return fmt.Errorf("reader %s has been revoked", p.ID)
	}

	token, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret)).Generate(p.ID, cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	printReader(p, token, cfg.Auth.TokenTTL)
	return nil
}

func runImport(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: folio-gateway import MANIFEST")
	}

	cfg, s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	logger := logging.New(cfg.Logging, os.Stdout)
	n, err := catalog.Import(ctx, s, args[0], logger)
	if err != nil {
		return err
	}
	color.New(color.FgGreen).Printf("  ✓ Imported %d article(s)\n", n)
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("folio-gateway configuration setup")
	fmt.Println("=================================")
	fmt.Println()

	outputFile := prompt(reader, "Config file path", config.DefaultPath())

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if !yes(overwrite) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "127.0.0.1:8080")

	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", filepath.Join(config.DataDir(), "gateway.db"))

	fmt.Println("\n--- Tailscale Configuration ---")
	tailscaleEnabled := yes(prompt(reader, "Enable Tailscale?", "no"))

	var tsHostname, tsAuthKey string
	var tsEphemeral, tsFunnel bool
	if tailscaleEnabled {
		tsHostname = prompt(reader, "Tailscale hostname", "folio")
		tsAuthKey = prompt(reader, "Tailscale auth key (leave empty for interactive)", "")
		tsEphemeral = yes(prompt(reader, "Ephemeral node?", "no"))
		tsFunnel = yes(prompt(reader, "Enable Funnel (public HTTPS)?", "no"))
	}

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# folio-gateway configuration\n")
	cfg.WriteString("# Generated by folio-gateway init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: \"%s\"\n\n", httpAddr))

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n\n", dbPath))

	cfg.WriteString("auth:\n")
	cfg.WriteString("  jwt_secret: \"${FOLIO_JWT_SECRET}\"\n\n")

	cfg.WriteString("tailscale:\n")
	cfg.WriteString(fmt.Sprintf("  enabled: %t\n", tailscaleEnabled))
	if tailscaleEnabled {
		cfg.WriteString(fmt.Sprintf("  hostname: \"%s\"\n", tsHostname))
		if tsAuthKey != "" {
			cfg.WriteString(fmt.Sprintf("  auth_key: \"%s\"\n", tsAuthKey))
		}
		cfg.WriteString(fmt.Sprintf("  ephemeral: %t\n", tsEphemeral))
		cfg.WriteString(fmt.Sprintf("  funnel: %t\n", tsFunnel))
	}
	cfg.WriteString("\n")

	cfg.WriteString("tracking:\n")
	cfg.WriteString("  throttle: \"300ms\"\n")
	cfg.WriteString("  decrease_dwell: \"1200ms\"\n\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nSet FOLIO_JWT_SECRET (32+ bytes), then start the server:")
	fmt.Printf("  folio-gateway serve\n")

	return nil
}

func yes(s string) bool {
	s = strings.ToLower(s)
	return s == "yes" || s == "y"
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
