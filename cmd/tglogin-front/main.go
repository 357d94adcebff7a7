package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/dgellow/tglogin-front/internal"
	"github.com/dgellow/tglogin-front/internal/config"
	"github.com/dgellow/tglogin-front/internal/crypto"
	"github.com/dgellow/tglogin-front/internal/log"
)

var BuildVersion = "dev"

func generateDefaultConfig(path string) error {
	defaultConfig := map[string]any{
		"version": config.ConfigVersion,
		"server": map[string]any{
			"baseURL":        "https://login.yourcompany.com",
			"addr":           ":8080",
			"name":           "tglogin-front",
			"redirectPath":   "/app",
			"allowedOrigins": []string{"https://login.yourcompany.com"},
		},
		"telegram": map[string]any{
			"botToken":    map[string]string{"$env": "BOT_TOKEN"},
			"botUsername": map[string]string{"$env": "BOT_USERNAME"},
			"maxAuthAge":  "24h",
		},
		"session": map[string]any{
			"format": "hmac",
			"secret": map[string]string{"$env": "TGLOGIN_SESSION_SECRET"},
			"maxAge": "168h",
		},
		"storage": map[string]any{
			"kind":       "sqlite",
			"sqlitePath": "tglogin.db",
		},
	}

	data, err := json.MarshalIndent(defaultConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func validateConfig(path string) error {
	result, err := config.ValidateFile(path)
	if err != nil {
		return fmt.Errorf("error during validation: %w", err)
	}

	fmt.Printf("Validating: %s\n", path)

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for _, err := range result.Errors {
			if err.Path != "" {
				fmt.Printf("  - %s: %s\n", err.Path, err.Message)
			} else {
				fmt.Printf("  - %s\n", err.Message)
			}
		}
	}

	if len(result.Warnings) > 0 {
		fmt.Printf("\nWarnings (%d):\n", len(result.Warnings))
		for _, warn := range result.Warnings {
			if warn.Path != "" {
				fmt.Printf("  - %s: %s\n", warn.Path, warn.Message)
			} else {
				fmt.Printf("  - %s\n", warn.Message)
			}
		}
	}

	fmt.Println()
	if len(result.Errors) == 0 && len(result.Warnings) == 0 {
		fmt.Println("Result: PASS")
	} else if len(result.Errors) == 0 {
		fmt.Println("Result: PASS (with warnings)")
	} else {
		fmt.Println("Result: FAIL")
	}

	if len(result.Errors) > 0 {
		return fmt.Errorf("validation failed: %d error(s), %d warning(s)", len(result.Errors), len(result.Warnings))
	}
	return nil
}

// generateSecret prints a random value suitable for session.secret.
func generateSecret() error {
	secret, err := crypto.GenerateSecureToken()
	if err != nil {
		return err
	}
	fmt.Println(secret)
	return nil
}

func listUsers(ctx context.Context, cfg config.Config) error {
	store, err := internal.SetupStorage(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	users, err := store.ListUsers(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(users)
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.LoadFromEnv()
	}
	return config.Load(path)
}

func main() {
	conf := flag.String("config", "", "path to config file (environment variables are used when omitted)")
	version := flag.Bool("version", false, "print version and exit")
	help := flag.Bool("help", false, "print help and exit")
	configInit := flag.String("config-init", "", "generate default config file at specified path")
	validate := flag.Bool("validate", false, "validate config file and exit")
	genSecret := flag.Bool("gen-secret", false, "print a random session secret and exit")
	users := flag.Bool("list-users", false, "print stored user profiles as JSON and exit")
	flag.Parse()
	if *help {
		flag.Usage()
		return
	}
	if *version {
		fmt.Println(BuildVersion)
		return
	}
	if *genSecret {
		if err := generateSecret(); err != nil {
			log.LogError("Failed to generate secret: %v", err)
			os.Exit(1)
		}
		return
	}
	if *configInit != "" {
		if err := generateDefaultConfig(*configInit); err != nil {
			log.LogError("Failed to generate config: %v", err)
			os.Exit(1)
		}
		fmt.Printf("Generated default config at: %s\n", *configInit)
		return
	}

	if *validate {
		if *conf == "" {
			fmt.Fprintf(os.Stderr, "Error: -config flag is required for validation\n")
			os.Exit(1)
		}
		if err := validateConfig(*conf); err != nil {
			os.Exit(1)
		}
		return
	}

	cfg, err := loadConfig(*conf)
	if err != nil {
		log.LogError("Failed to load config: %v", err)
		os.Exit(1)
	}

	ctx := context.Background()

	if *users {
		if err := listUsers(ctx, cfg); err != nil {
			log.LogError("Failed to list users: %v", err)
			os.Exit(1)
		}
		return
	}

	log.LogInfoWithFields("main", "Starting tglogin-front", map[string]any{
		"version": BuildVersion,
		"config":  *conf,
	})

	app, err := internal.NewLoginFront(ctx, cfg)
	if err != nil {
		log.LogError("Failed to create login service: %v", err)
		os.Exit(1)
	}

	if err := app.Run(); err != nil {
		log.LogError("Failed to start server: %v", err)
		os.Exit(1)
	}
}
