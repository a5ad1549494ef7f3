package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/sarchlab/vpsim/platform"
	"github.com/sarchlab/vpsim/simulation"
)

var validateCmd = &cobra.Command{
	Use:   "validate [platform.yaml]...",
	Short: "Check platform descriptions without running them.",
	Long: "`validate` parses each file, builds the platform and finalizes " +
		"its bindings, then prints how every binding was resolved.",
	Args: cobra.MinimumNArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		failed := false

		for _, path := range args {
			if err := validate(path); err != nil {
				log.Printf("%s: %v", path, err)
				failed = true
			}
		}

		if failed {
			log.Fatal("validation failed")
		}
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validate(path string) error {
	cfg, err := platform.Load(path)
	if err != nil {
		return err
	}

	s, err := cfg.Apply(simulation.MakeBuilder().WithoutMonitoring()).Build()
	if err != nil {
		return err
	}

	if err := platform.Build(cfg, s, NewRegistry()); err != nil {
		return err
	}

	fmt.Printf("%s: %d domains, %d components\n",
		path, len(s.Clocks()), len(s.Components()))

	for _, b := range s.Bindings() {
		fmt.Printf("  %s -> %s [%s, mux %d]\n", b.Master, b.Slave, b.Kind, b.MuxID)
	}

	return nil
}
