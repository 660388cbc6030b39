package typenorm

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// VerbatimFunctions is the set of default-value expressions preserved
// verbatim rather than treated as string literals, per spec §4.3 rule 5
// ("Preserve known function calls verbatim"). It is override/restore-able
// and YAML-persistable, mirroring the shape of the teacher's type-mapping
// registry.
type VerbatimFunctions struct {
	Known     map[string]bool `yaml:"known"`
	Overrides map[string]bool `yaml:"overrides,omitempty"`
	defaults  map[string]bool
}

// DefaultVerbatimFunctions returns the built-in set for a dialect: function
// calls and expressions a default-value normaliser must never mistake for a
// quoted literal.
func DefaultVerbatimFunctions(dialect string) *VerbatimFunctions {
	base := map[string]bool{
		"CURRENT_TIMESTAMP": true,
		"CURRENT_DATE":      true,
		"CURRENT_TIME":      true,
	}
	switch dialect {
	case "oracle":
		base["SYSDATE"] = true
		base["SYS_GUID()"] = true
	case "mssql":
		base["GETDATE()"] = true
		base["GETUTCDATE()"] = true
		base["NEWID()"] = true
	case "postgres":
		base["NOW()"] = true
		base["GEN_RANDOM_UUID()"] = true
	case "db2":
		base["GENERATED ALWAYS AS IDENTITY"] = true
	}
	return &VerbatimFunctions{Known: base}
}

// IsKnown reports whether v is a recognised verbatim function/expression,
// or matches the generic nextval(...) pattern that every sequence-backed
// dialect can produce.
func (vf *VerbatimFunctions) IsKnown(v string) bool {
	upper := strings.ToUpper(strings.TrimSpace(v))
	if vf != nil && vf.Known[upper] {
		return true
	}
	if strings.HasPrefix(strings.ToLower(v), "nextval(") {
		return true
	}
	return false
}

// Add registers v (case-normalised to upper) as a known verbatim expression.
func (vf *VerbatimFunctions) Add(v string) {
	if vf.Known == nil {
		vf.Known = make(map[string]bool)
	}
	upper := strings.ToUpper(v)
	vf.Known[upper] = true
	if vf.defaults != nil {
		if vf.defaults[upper] {
			return
		}
	}
	if vf.Overrides == nil {
		vf.Overrides = make(map[string]bool)
	}
	vf.Overrides[upper] = true
}

// RestoreDefaults resets Known to the dialect baseline, discarding any
// additions made via Add.
func (vf *VerbatimFunctions) RestoreDefaults(dialect string) {
	fresh := DefaultVerbatimFunctions(dialect)
	vf.Known = fresh.Known
	vf.Overrides = nil
}

// Sorted returns every known verbatim expression, alphabetically.
func (vf *VerbatimFunctions) Sorted() []string {
	out := make([]string, 0, len(vf.Known))
	for k := range vf.Known {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// WriteYAML persists the registry to disk, allowing operators to extend the
// verbatim set for site-specific default expressions without code changes.
func (vf *VerbatimFunctions) WriteYAML(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	data, err := yaml.Marshal(vf)
	if err != nil {
		return fmt.Errorf("marshaling verbatim functions: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadVerbatimYAML reads a registry from disk.
func LoadVerbatimYAML(path string) (*VerbatimFunctions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading verbatim functions file: %w", err)
	}
	vf := &VerbatimFunctions{}
	if err := yaml.Unmarshal(data, vf); err != nil {
		return nil, fmt.Errorf("parsing verbatim functions: %w", err)
	}
	if vf.Known == nil {
		vf.Known = make(map[string]bool)
	}
	return vf, nil
}
