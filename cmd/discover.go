package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atoreson/schemadiff/internal/config"
	"github.com/atoreson/schemadiff/internal/extract"
	"github.com/atoreson/schemadiff/internal/progress"
)

var (
	discoverDBType string
	discoverHost   string
	discoverPort   int
	discoverDB     string
	discoverSchema string
	discoverUser   string
	discoverPass   string
	discoverOutput string
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Extract one side's schema metadata and dump it as YAML",
	Long: `discover connects to a single database, runs the four-phase catalog
extraction, and writes the resulting metadata as YAML — useful for caching a
side's metadata as a CI artifact instead of re-extracting on every compare.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if discoverDBType == "" {
			return fmt.Errorf("--db-type is required")
		}

		if discoverPort == 0 {
			switch discoverDBType {
			case "mysql":
				discoverPort = 3306
			case "postgres":
				discoverPort = 5432
			case "mssql":
				discoverPort = 1433
			case "oracle":
				discoverPort = 1521
			case "db2":
				discoverPort = 50000
			}
		}

		side := &config.SideConfig{
			Host:     discoverHost,
			Port:     discoverPort,
			Database: discoverDB,
			Schema:   discoverSchema,
			Username: discoverUser,
			Password: discoverPass,
		}

		extractor, err := extract.New(discoverDBType, side)
		if err != nil {
			return fmt.Errorf("initializing extractor: %w", err)
		}

		ctx := context.Background()

		fmt.Printf("Connecting to %s at %s:%d/%s...\n", discoverDBType, discoverHost, discoverPort, discoverDB)
		if err := extractor.Connect(ctx); err != nil {
			return fmt.Errorf("connecting: %w", err)
		}
		defer extractor.Close()

		fmt.Println("Extracting schema...")
		md, err := extractor.Extract(ctx, progress.NopSink{}, progress.SideReference)
		if err != nil {
			return fmt.Errorf("extracting schema: %w", err)
		}

		fmt.Println(md.Summary())

		outputPath := discoverOutput
		if outputPath == "" {
			outputPath = "schema.yaml"
		}
		if err := md.WriteYAML(outputPath); err != nil {
			return fmt.Errorf("writing metadata: %w", err)
		}
		fmt.Printf("\nMetadata written to %s\n", outputPath)
		return nil
	},
}

func init() {
	discoverCmd.Flags().StringVar(&discoverDBType, "db-type", "", "dialect: mysql|postgres|mssql|oracle|db2")
	discoverCmd.Flags().StringVar(&discoverHost, "host", "localhost", "database host")
	discoverCmd.Flags().IntVar(&discoverPort, "port", 0, "database port (default: dialect's canonical port)")
	discoverCmd.Flags().StringVar(&discoverDB, "database", "", "database name")
	discoverCmd.Flags().StringVar(&discoverSchema, "schema", "", "schema/owner name (default: dialect's session default)")
	discoverCmd.Flags().StringVar(&discoverUser, "username", "", "connection username")
	discoverCmd.Flags().StringVar(&discoverPass, "password", "", "connection password")
	discoverCmd.Flags().StringVarP(&discoverOutput, "output", "o", "", "output path for metadata YAML (default: schema.yaml)")
	rootCmd.AddCommand(discoverCmd)
}
