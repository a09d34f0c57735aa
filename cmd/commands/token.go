package commands

import (
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
)

// newTokenCmd creates the "token" command to mint an admin bearer token.
func newTokenCmd(state *cliState) *cobra.Command {
	var validFor time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the admin API",
		Run: func(cmd *cobra.Command, args []string) {
			if state.Config.AdminSecret == "" {
				log.Fatal("ADMIN_SECRET must be set to mint admin tokens")
			}

			now := time.Now()
			claims := jwt.MapClaims{
				"sub": "admin",
				"iat": now.Unix(),
				"exp": now.Add(validFor).Unix(),
			}

			token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

			signed, err := token.SignedString([]byte(state.Config.AdminSecret))
			if err != nil {
				log.Fatalf("Failed to sign token: %v", err)
			}

			fmt.Println(signed)
		},
	}

	cmd.Flags().DurationVar(&validFor, "valid-for", 24*time.Hour, "Token lifetime")

	return cmd
}
