package main

import (
	"fmt"
	"os"

	"github.com/glefebvre/listcatalog/internal/config"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "listcatalog",
	Short: "listcatalog serves movie and series lists as one virtual catalog",
	Long: `listcatalog enumerates a user's lists across list-hosting providers and imported
catalog addons, probes whether each list holds movies, series or both, and serves
the result as catalogs over the catalog protocol. All per-user state travels in
the configuration token; the service keeps no database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of listcatalog",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("listcatalog %s\n", version)
	},
}

var configFile string

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ./config.yml)")
	cobra.OnInitialize(initConfig)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	// Skip config loading for commands that do not need it
	if len(os.Args) > 1 && (os.Args[1] == "version" || os.Args[1] == "token") {
		return
	}

	if err := config.LoadFile(configFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
