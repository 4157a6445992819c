package main

import (
	"github.com/spf13/cobra"

	"github.com/saadbelcaidx/connector-os/internal/config"
	"github.com/saadbelcaidx/connector-os/internal/server"
)

var tokenCmd = &cobra.Command{
	Use:   "token OPERATOR_ID",
	Short: "Issue an API bearer token for an operator",
	Long:  "Token signs a bearer token for the HTTP API with JWT_SECRET. The operator id becomes the token subject.",
	Args:  cobra.ExactArgs(1),
	RunE:  runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	jwtCfg, err := config.NewJWTConfig()
	if err != nil {
		return err
	}
	token, err := server.NewJWTService(jwtCfg).GenerateToken(args[0])
	if err != nil {
		return err
	}
	printf(cmd.OutOrStdout(), "%s\n", token)
	return nil
}
