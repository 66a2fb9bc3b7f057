package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"helpdesk/internal/config"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your helpdeskd installation",
		Long: `Verifies that helpdeskd's configuration, gateway endpoints, cache
database, and log destination are correctly set up. Reports pass/fail for
each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("helpdeskd doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file exists
			if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				fmt.Printf("\nRun 'helpdeskd init' to create a default configuration.\n")
				return nil
			}
			printPass("Config file", cfgPath)
			passed++

			// 2. Config loads and validates
			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				failed++
				fmt.Printf("\n%d passed, %d failed\n", passed, failed)
				return fmt.Errorf("%d check(s) failed", failed)
			}
			printPass("Config validation", "valid")
			passed++

			// 3. Gateway URLs parse
			if u, err := url.Parse(cfg.Gateway.WSURL); err == nil && (u.Scheme == "ws" || u.Scheme == "wss") {
				printPass("Gateway websocket", cfg.Gateway.WSURL)
				passed++
			} else {
				printFail("Gateway websocket", fmt.Sprintf("bad URL: %s", cfg.Gateway.WSURL))
				failed++
			}

			// 4. Bulk session API reachable
			if err := checkAPI(cfg.Gateway.APIBase); err != nil {
				printWarn("Gateway API", fmt.Sprintf("%s: %v", cfg.Gateway.APIBase, err))
				warned++
			} else {
				printPass("Gateway API", cfg.Gateway.APIBase)
				passed++
			}

			// 5. Cache database writable
			if cfg.Cache.Enabled {
				if err := checkDatabase(cfg.Cache.DBPath); err != nil {
					printFail("Cache database", err.Error())
					failed++
				} else {
					printPass("Cache database", cfg.Cache.DBPath)
					passed++
				}
			} else {
				printWarn("Cache database", "disabled (no offline history)")
				warned++
			}

			// 6. Bridge tokens present
			if cfg.Bridges.Discord.Enabled {
				printPass("Discord bridge", "enabled")
				passed++
			}
			if cfg.Bridges.Telegram.Enabled {
				printPass("Telegram bridge", "enabled")
				passed++
			}

			// 7. Metrics port free
			if cfg.Metrics.Enabled {
				if err := checkPort(cfg.Metrics.Port); err != nil {
					printWarn("Metrics port", fmt.Sprintf("port %d may be in use: %v", cfg.Metrics.Port, err))
					warned++
				} else {
					printPass("Metrics port", fmt.Sprintf(":%d available", cfg.Metrics.Port))
					passed++
				}
			}

			// 8. Log file writable
			if cfg.Log.File != "" {
				if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0o755); err != nil {
					printWarn("Log file", fmt.Sprintf("cannot create log directory: %v", err))
					warned++
				} else {
					printPass("Log file", cfg.Log.File)
					passed++
				}
			}

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running helpdeskd.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\nhelpdeskd should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! helpdeskd is ready to run.\n")
			}
			return nil
		},
	}
}

func checkAPI(apiBase string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(apiBase + "/api/sessions")
	if err != nil {
		return err
	}
	resp.Body.Close()
	// Unauthorized is still reachable; only transport failures count.
	return nil
}

func checkDatabase(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("cannot create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}

	// Try a write.
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _doctor_test (id INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	db.ExecContext(ctx, "DROP TABLE IF EXISTS _doctor_test")

	return nil
}

func checkPort(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
