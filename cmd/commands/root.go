package commands

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"luahost/internal/api"
	"luahost/internal/db"
	"luahost/internal/host"
)

// cliState holds the shared runtime state for the application.
type cliState struct {
	DB     *db.DB
	Config config
}

// config holds the environment configuration.
type config struct {
	PluginDir         string
	LogDBPath         string
	StorePath         string
	AdminSecret       string
	HostName          string
	Workers           int
	MaxUploadMB       int
	Production        bool
	TrustProxyHeaders bool
	Port              int
}

// NewRootCmd creates the entire command tree and returns the root command.
func NewRootCmd() *cobra.Command {
	state := &cliState{}

	rootCmd := &cobra.Command{
		Use:   "luahost",
		Short: "LuaHost CLI",
		Long:  `CLI for running and operating the LuaHost plugin server.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			state.Config = config{
				PluginDir:         os.Getenv("PLUGIN_DIR"),
				LogDBPath:         os.Getenv("LOG_DB_PATH"),
				StorePath:         os.Getenv("KV_STORE_PATH"),
				AdminSecret:       os.Getenv("ADMIN_SECRET"),
				HostName:          os.Getenv("HOST_NAME"),
				Workers:           envInt("WORKERS", host.DefaultWorkers),
				MaxUploadMB:       envInt("MAX_UPLOAD_MB", 16),
				Production:        !(os.Getenv("IS_DEVELOPMENT") == "true"),
				TrustProxyHeaders: os.Getenv("TRUST_PROXY_HEADERS") == "true",
				Port:              envInt("PORT", api.DefaultPort),
			}

			logDbPath := db.DefaultLogDb
			if state.Config.LogDBPath != "" {
				logDbPath = state.Config.LogDBPath
			}

			var err error
			state.DB, err = db.New("file:" + logDbPath + "?cache=shared")
			if err != nil {
				return fmt.Errorf("failed to open log database: %w", err)
			}

			return nil
		},
		// PersistentPostRun ensures the DB is closed after the command finishes.
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if state.DB != nil {
				err := state.DB.Close()
				if err != nil {
					log.Printf("Error closing log database: %v", err)
				}
			}
		},
	}

	rootCmd.AddCommand(newServerCmd(state))
	rootCmd.AddCommand(newPluginsCmd(state))
	rootCmd.AddCommand(newPruneLogsCmd(state))
	rootCmd.AddCommand(newTokenCmd(state))

	return rootCmd
}

// envInt reads an integer environment variable with a fallback.
func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Fatalf("Invalid %s value: %v", key, err)
	}

	return v
}
