package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/atoreson/schemadiff/internal/wizard"
)

var (
	cfgFile string
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "schemadiff",
	Short: "schemadiff — structural comparison for relational database schemas",
	Long: `schemadiff extracts and compares the structural catalog (tables, columns,
constraints, indexes) of two same-dialect relational databases — live
connections or DDL scripts materialised in ephemeral containers.

Running without a subcommand launches the interactive wizard.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Launching interactive wizard...")
		w, err := wizard.New(cfgFile)
		if err != nil {
			return err
		}
		return w.Run()
	},
}

func Execute() {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (the wizard saves to it, serve loads it; no file is used when unset)")
}
