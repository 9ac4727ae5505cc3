// Package main provides the metastore CLI binary. It is a thin client
// for the metastore server HTTP API.
package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version = "dev"

	globalClient *apiClient
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "metastore",
		Short: "CLI for the metadata store",
		Long: `metastore is a command-line tool for working with the metadata store.

It provides commands for managing secrets, registered models, model
versions and stage transitions.

Settings may come from flags, environment variables prefixed with
METASTORE_ (e.g. METASTORE_SERVER), or a ~/.metastore.yaml config file.`,
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			globalClient = newAPIClient(
				viper.GetString("server"),
				viper.GetString("user"),
				viper.GetString("user-name"),
				viper.GetString("workspaces"),
			)
			return nil
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("server", "http://localhost:8080", "Metastore server URL")
	rootCmd.PersistentFlags().String("user", "", "Caller user ID (sent as X-Remote-User)")
	rootCmd.PersistentFlags().String("user-name", "", "Caller display name (sent as X-Remote-User-Name)")
	rootCmd.PersistentFlags().String("workspaces", "", "Comma-separated workspace IDs (sent as X-Remote-Workspaces)")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "Output format: table, json, yaml")

	viper.SetEnvPrefix("METASTORE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindPFlags(rootCmd.PersistentFlags())

	viper.SetConfigName(".metastore")
	viper.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
	}
	_ = viper.ReadInConfig()

	rootCmd.AddCommand(newSecretCmd())
	rootCmd.AddCommand(newModelCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func outputFormat() string { return viper.GetString("output") }
