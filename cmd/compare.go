package cmd

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/atoreson/schemadiff/internal/config"
	"github.com/atoreson/schemadiff/internal/lock"
	"github.com/atoreson/schemadiff/internal/orchestrate"
	"github.com/atoreson/schemadiff/internal/progress"
	"github.com/atoreson/schemadiff/internal/report"
	"github.com/atoreson/schemadiff/internal/validate"
)

var (
	compareReference string
	compareTarget     string
	compareRefUser    string
	compareRefPass    string
	compareTgtUser    string
	compareTgtPass    string
	compareDBType     string
	compareImage      string
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare the structural catalog of two same-dialect databases",
	Long: `compare extracts the table/column/constraint/index catalog of two
databases — each a filesystem path to a DDL script or a connection URL — and
reports every structural difference.

Exit codes: 0 no differences, 1 differences found, 2 operational error.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		exitCode, err := runCompare(cmd)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(2)
		}
		os.Exit(exitCode)
		return nil
	},
}

func runCompare(cmd *cobra.Command) (int, error) {
	if compareDBType == "" {
		return 2, fmt.Errorf("--db-type is required")
	}

	ref, err := resolveSide(compareReference, compareRefUser, compareRefPass)
	if err != nil {
		return 2, fmt.Errorf("--reference: %w", err)
	}
	tgt, err := resolveSide(compareTarget, compareTgtUser, compareTgtPass)
	if err != nil {
		return 2, fmt.Errorf("--target: %w", err)
	}

	cfg := &config.Config{
		Version:   config.CurrentVersion,
		DBType:    compareDBType,
		Reference: ref,
		Target:    tgt,
		Image:     compareImage,
	}

	recorder := progress.NewRecorder(func(e progress.Event) {
		fmt.Fprintln(os.Stderr, e.String())
	})

	// A provisioned DDL-script side uses a fixed container workspace; only
	// one compare run can occupy it at a time.
	if ref.IsScript() || tgt.IsScript() {
		if err := lock.Acquire(""); err != nil {
			return 2, err
		}
		defer lock.Release("")
	}

	result, err := orchestrate.Run(cmd.Context(), cfg, recorder)
	if err != nil {
		return 2, fmt.Errorf("running comparison: %w", err)
	}

	var warnings []string
	for _, w := range validate.Check(result.Reference, nil) {
		fmt.Fprintf(os.Stderr, "reference validation warning: %s\n", w)
		warnings = append(warnings, "reference: "+w.String())
	}
	for _, w := range validate.Check(result.Target, nil) {
		fmt.Fprintf(os.Stderr, "target validation warning: %s\n", w)
		warnings = append(warnings, "target: "+w.String())
	}

	fmt.Print(report.FormatText(result.Diff, warnings...))

	if result.Diff.Count() > 0 {
		return 1, nil
	}
	return 0, nil
}

// resolveSide interprets raw as a DDL script path when it names an existing
// file, otherwise as a connection URL per spec §6 ("each either a
// filesystem path to a DDL script or a connection URL").
func resolveSide(raw, user, pass string) (config.SideConfig, error) {
	if raw == "" {
		return config.SideConfig{}, fmt.Errorf("a --reference/--target value is required")
	}
	if _, err := os.Stat(raw); err == nil {
		return config.SideConfig{Script: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return config.SideConfig{}, fmt.Errorf("parsing connection URL: %w", err)
	}

	side := config.SideConfig{
		Host:     u.Hostname(),
		Database: strings.TrimPrefix(u.Path, "/"),
		Username: user,
		Password: pass,
	}
	if u.User != nil {
		if side.Username == "" {
			side.Username = u.User.Username()
		}
		if side.Password == "" {
			if p, ok := u.User.Password(); ok {
				side.Password = p
			}
		}
	}
	if p := u.Port(); p != "" {
		if port, err := strconv.Atoi(p); err == nil {
			side.Port = port
		}
	}
	if q := u.Query().Get("schema"); q != "" {
		side.Schema = q
	}
	return side, nil
}

func init() {
	compareCmd.Flags().StringVar(&compareReference, "reference", "", "reference side: DDL script path or connection URL")
	compareCmd.Flags().StringVar(&compareTarget, "target", "", "target side: DDL script path or connection URL")
	compareCmd.Flags().StringVar(&compareRefUser, "ref-user", "", "username for a --reference connection URL")
	compareCmd.Flags().StringVar(&compareRefPass, "ref-pass", "", "password for a --reference connection URL")
	compareCmd.Flags().StringVar(&compareTgtUser, "target-user", "", "username for a --target connection URL")
	compareCmd.Flags().StringVar(&compareTgtPass, "target-pass", "", "password for a --target connection URL")
	compareCmd.Flags().StringVar(&compareDBType, "db-type", "", "dialect for both sides: mysql|postgres|mssql|oracle|db2")
	compareCmd.Flags().StringVar(&compareImage, "image", "", "container image used when a side is a DDL script")
	_ = compareCmd.MarkFlagRequired("reference")
	_ = compareCmd.MarkFlagRequired("target")
	_ = compareCmd.MarkFlagRequired("db-type")
	rootCmd.AddCommand(compareCmd)
}
