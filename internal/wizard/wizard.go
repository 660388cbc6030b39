// Package wizard implements the interactive no-subcommand flow: a short
// bubbletea form collecting the shared dialect and both sides' connection
// details, followed by a live compare run. Grounded on the teacher's
// internal/wizard package (one tea.Program per step, Elm-architecture
// per-step models in source.go/target.go), trimmed from the teacher's
// fourteen-odd migration-setup steps down to the four schema-diff actually
// needs: dialect, reference side, target side, container image.
package wizard

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/atoreson/schemadiff/internal/config"
	"github.com/atoreson/schemadiff/internal/orchestrate"
	"github.com/atoreson/schemadiff/internal/progress"
	"github.com/atoreson/schemadiff/internal/report"
	"github.com/atoreson/schemadiff/internal/validate"
)

// Wizard drives the interactive setup-then-compare flow.
type Wizard struct {
	cfgPath string
}

// New creates a Wizard. cfgPath, if non-empty, is where the assembled
// configuration is saved once the form is complete, before the comparison
// runs, for reuse with `compare`.
func New(cfgPath string) (*Wizard, error) {
	return &Wizard{cfgPath: cfgPath}, nil
}

// Run walks the operator through dialect and connection selection, runs the
// comparison, and prints the rendered report.
func (w *Wizard) Run() error {
	dialect, err := w.runDialect()
	if err != nil {
		return err
	}

	reference, err := w.runSide("Step 2: Reference side", dialect)
	if err != nil {
		return err
	}

	target, err := w.runSide("Step 3: Target side", dialect)
	if err != nil {
		return err
	}

	var image string
	if reference.IsScript() || target.IsScript() {
		image, err = w.runImage()
		if err != nil {
			return err
		}
	}

	cfg := &config.Config{
		Version:   config.CurrentVersion,
		DBType:    dialect,
		Reference: reference,
		Target:    target,
		Image:     image,
	}

	if w.cfgPath != "" {
		if err := cfg.Save(w.cfgPath); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
	}

	recorder := progress.NewRecorder(func(e progress.Event) {
		fmt.Fprintln(os.Stderr, e.String())
	})

	fmt.Println("\nRunning comparison...")
	result, err := orchestrate.Run(context.Background(), cfg, recorder)
	if err != nil {
		return fmt.Errorf("running comparison: %w", err)
	}

	var warnings []string
	for _, warn := range validate.Check(result.Reference, nil) {
		fmt.Printf("reference validation warning: %s\n", warn)
		warnings = append(warnings, "reference: "+warn.String())
	}
	for _, warn := range validate.Check(result.Target, nil) {
		fmt.Printf("target validation warning: %s\n", warn)
		warnings = append(warnings, "target: "+warn.String())
	}

	fmt.Println()
	fmt.Print(report.FormatText(result.Diff, warnings...))
	return nil
}

func (w *Wizard) runDialect() (string, error) {
	p := tea.NewProgram(NewDialectModel(), tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("running dialect step: %w", err)
	}
	m := finalModel.(DialectModel)
	if m.Cancelled() {
		return "", fmt.Errorf("cancelled")
	}
	return m.Dialect(), nil
}

func (w *Wizard) runSide(label, dialect string) (config.SideConfig, error) {
	p := tea.NewProgram(NewSideModel(label, dialect), tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return config.SideConfig{}, fmt.Errorf("running %s: %w", label, err)
	}
	m := finalModel.(SideModel)
	if m.Cancelled() {
		return config.SideConfig{}, fmt.Errorf("cancelled")
	}
	return m.Config(), nil
}

func (w *Wizard) runImage() (string, error) {
	p := tea.NewProgram(NewImageModel(), tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("running image step: %w", err)
	}
	m := finalModel.(ImageModel)
	if m.Cancelled() {
		return "", fmt.Errorf("cancelled")
	}
	return m.Image(), nil
}
