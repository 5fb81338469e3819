package cli

import (
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/LImboing/hostsim/internal/dnstypes"
	"github.com/LImboing/hostsim/internal/rules"
)

// ruleFileSchema is the CUE contract every rule file must satisfy. YAML is
// decoded first, then unified with this schema, so malformed files fail
// with a position-carrying error instead of a half-configured rule set.
const ruleFileSchema = `
#Rule: {
	kind: "forward" | "ip-literal" | "fail" | "fail-timeout" | "fail-once-https"
	pattern: string & != ""
	if kind == "ip-literal" {
		addresses: string & != ""
	}
	replacement?: string
	addresses?:   string
	aliases?: [...string & != ""]
	family?: "ipv4" | "ipv6"
	latency_ms?: int & >= 0
}

rules: [...#Rule]
`

// RuleConfig is one rule read from a YAML rule file.
type RuleConfig struct {
	Kind        string   `yaml:"kind" json:"kind"`
	Pattern     string   `yaml:"pattern" json:"pattern"`
	Replacement string   `yaml:"replacement,omitempty" json:"replacement,omitempty"`
	Addresses   string   `yaml:"addresses,omitempty" json:"addresses,omitempty"`
	Aliases     []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Family      string   `yaml:"family,omitempty" json:"family,omitempty"`
	LatencyMS   int      `yaml:"latency_ms,omitempty" json:"latency_ms,omitempty"`
}

// RuleFile is the top-level rule file structure.
type RuleFile struct {
	Rules []RuleConfig `yaml:"rules" json:"rules"`
}

// LoadRuleFile reads, CUE-validates and decodes a YAML rule file.
func LoadRuleFile(path string) (*RuleFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file: %w", err)
	}

	var file RuleFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse rule file %s: %w", path, err)
	}

	if err := validateRuleFile(&file); err != nil {
		return nil, fmt.Errorf("validate rule file %s: %w", path, err)
	}
	return &file, nil
}

// validateRuleFile unifies the decoded file with the CUE schema.
func validateRuleFile(file *RuleFile) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(ruleFileSchema)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("internal schema error: %w", err)
	}
	value := ctx.Encode(file)
	if err := value.Err(); err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}
	unified := schema.Unify(value)
	// Concrete validation turns a missing required field (an incomplete
	// value in CUE terms) into an error instead of a silent pass.
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return err
	}
	return nil
}

// Apply installs the file's rules into a rule set in file order.
func (f *RuleFile) Apply(rs *rules.RuleSet) error {
	for i, rc := range f.Rules {
		if err := applyRule(rs, rc); err != nil {
			return fmt.Errorf("rule %d (%s %q): %w", i, rc.Kind, rc.Pattern, err)
		}
	}
	return nil
}

func applyRule(rs *rules.RuleSet, rc RuleConfig) error {
	switch rc.Kind {
	case "forward":
		switch {
		case rc.Replacement == "":
			rs.AllowDirectLookup(rc.Pattern)
		case rc.LatencyMS > 0:
			rs.AddRuleWithLatency(rc.Pattern, rc.Replacement, time.Duration(rc.LatencyMS)*time.Millisecond)
		case rc.Family != "":
			family, err := parseFamily(rc.Family)
			if err != nil {
				return err
			}
			rs.AddRuleForAddressFamily(rc.Pattern, family, rc.Replacement)
		default:
			rs.AddRule(rc.Pattern, rc.Replacement)
		}
	case "ip-literal":
		rs.AddIPLiteralRuleWithAliases(rc.Pattern, rc.Addresses, rc.Aliases...)
	case "fail":
		rs.AddSimulatedFailure(rc.Pattern)
	case "fail-timeout":
		rs.AddSimulatedTimeoutFailure(rc.Pattern)
	case "fail-once-https":
		rs.AddSimulatedHTTPSServiceFormRecord(rc.Pattern)
	default:
		return fmt.Errorf("unknown rule kind %q", rc.Kind)
	}
	return nil
}

func parseFamily(s string) (dnstypes.AddressFamily, error) {
	switch s {
	case "ipv4":
		return dnstypes.FamilyIPv4, nil
	case "ipv6":
		return dnstypes.FamilyIPv6, nil
	default:
		return dnstypes.FamilyUnspecified, fmt.Errorf("unknown address family %q", s)
	}
}
