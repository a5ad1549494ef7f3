// Package cmd provides the command-line interface of vpsim.
package cmd

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sarchlab/vpsim/examples/pingpong"
	"github.com/sarchlab/vpsim/platform"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vpsim",
	Short: "vpsim runs cycle-accurate virtual platforms.",
	Long: `vpsim builds a virtual platform from a YAML description and ` +
		`runs it. Settings can also come from VPSIM_* environment ` +
		`variables or a .env file in the working directory.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		loadEnv()
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func loadEnv() {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: cannot load .env: %v", err)
	}
}

// NewRegistry returns a registry with every component kind vpsim knows.
func NewRegistry() *platform.Registry {
	reg := platform.NewRegistry()
	pingpong.Register(reg)

	return reg
}
