package commands

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"luahost/internal/api"
	"luahost/internal/host"
)

// newServerCmd creates the "serve" command to start the plugin host.
func newServerCmd(state *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the plugin host server",
		Run: func(cmd *cobra.Command, args []string) {
			if state.Config.AdminSecret == "" {
				log.Println("Warning: ADMIN_SECRET is not set; the admin refresh and log endpoints are disabled")
			}

			manager, err := host.NewManager(host.Options{
				PluginDir: state.Config.PluginDir,
				Workers:   state.Config.Workers,
				StorePath: state.Config.StorePath,
				Logger:    state.DB.CreateLogEntry,
			})
			if err != nil {
				log.Fatalf("Failed to create plugin manager: %v", err)
			}

			for _, p := range manager.Plugins() {
				log.Printf("plugin %s\t%s", p.Name, p.Path)
			}

			hostName := api.DefaultHostName
			if state.Config.HostName != "" {
				hostName = state.Config.HostName
			}

			server, err := api.NewServer(api.ServerConfig{
				Database:          state.DB,
				Manager:           manager,
				AdminSecret:       state.Config.AdminSecret,
				HostName:          hostName,
				Production:        state.Config.Production,
				TrustProxyHeaders: state.Config.TrustProxyHeaders,
				MaxUploadBytes:    int64(state.Config.MaxUploadMB) << 20,
				Port:              state.Config.Port,
			})
			if err != nil {
				log.Fatalf("Failed to create server: %v", err)
			}

			log.Printf("Starting %s on :%d", hostName, state.Config.Port)

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

			var startErr error
			go func() {
				err := server.Start()
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Printf("Server failed: %v", err)
					startErr = err
					close(stop)
				}
			}()

			<-stop
			log.Println("Shutdown signal received...")

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			err = server.Shutdown(ctx)
			if err != nil {
				log.Printf("Server forced to shutdown: %v", err)
			}

			err = manager.Close()
			if err != nil {
				log.Printf("Error cleaning up plugin host: %v", err)
			}

			if startErr != nil {
				_ = state.DB.Close()
				os.Exit(1)
			}

			log.Println("Server exited gracefully.")
		},
	}

	return cmd
}
