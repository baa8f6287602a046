package orchestrator

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aegis-agent/aegis/internal/gate"
	"github.com/aegis-agent/aegis/internal/mcp"
)

// builtinToolNames is the complete set of built-in tools an agent may enable.
var builtinToolNames = map[string]bool{
	"read_file":  true,
	"write_file": true,
	"list_dir":   true,
	"bash":       true,
	"web_fetch":  true,
}

// highRiskBuiltins may not run without human verification.
var highRiskBuiltins = []string{"bash", "write_file"}

// Config is one agent definition, loaded from YAML. Unknown keys are
// rejected at decode time so a typo cannot silently weaken a security
// setting.
type Config struct {
	Name         string             `yaml:"name"`
	Description  string             `yaml:"description"`
	Model        string             `yaml:"model"`
	Provider     string             `yaml:"provider"`
	SystemPrompt string             `yaml:"system_prompt"`
	Operator     string             `yaml:"operator"`
	Tools        ToolsConfig        `yaml:"tools"`
	Verification VerificationConfig `yaml:"verification"`
	MaxTurns     int                `yaml:"max_turns"`
	Handoff      HandoffConfig      `yaml:"handoff"`
	AllowedPaths []string           `yaml:"allowed_paths"`
	Audit        AuditConfig        `yaml:"audit"`
}

// ToolsConfig declares the tools enabled for an agent. Only listed tools
// exist as far as the agent is concerned.
type ToolsConfig struct {
	Builtin []string           `yaml:"builtin"`
	MCP     []mcp.ServerConfig `yaml:"mcp"`
}

// VerificationConfig controls the human verification gate.
type VerificationConfig struct {
	Mode       string   `yaml:"mode"`
	RequireFor []string `yaml:"require_for"`
}

// HandoffConfig controls multi-agent delegation.
type HandoffConfig struct {
	CanDelegateTo []string `yaml:"can_delegate_to"`
}

// AuditConfig controls the audit trail location.
type AuditConfig struct {
	LogDir         string `yaml:"log_dir"`
	MaxResultChars int    `yaml:"max_result_chars"`
}

// maxAuditResultChars caps the configurable audit result summary length.
const maxAuditResultChars = 2000

// ParseConfig decodes and validates an agent definition. Environment
// variable references ($VAR or ${VAR}) are expanded before decoding, so
// MCP env blocks can reference credentials without embedding them.
func ParseConfig(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse agent config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration, including the policy that high-risk
// tools may never run unverified.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("agent config: name is required")
	}
	if c.Model == "" {
		return fmt.Errorf("agent config %q: model is required", c.Name)
	}
	if c.SystemPrompt == "" {
		return fmt.Errorf("agent config %q: system_prompt is required", c.Name)
	}

	switch c.Provider {
	case "", "anthropic", "openai":
	default:
		return fmt.Errorf("agent config %q: unknown provider %q", c.Name, c.Provider)
	}

	switch c.Verification.Mode {
	case "", gate.ModeAlways, gate.ModeSelective, gate.ModeNever:
	default:
		return fmt.Errorf("agent config %q: unknown verification mode %q", c.Name, c.Verification.Mode)
	}

	for _, name := range c.Tools.Builtin {
		if !builtinToolNames[name] {
			return fmt.Errorf("agent config %q: unknown builtin tool %q", c.Name, name)
		}
	}

	if c.MaxTurns < 0 {
		return fmt.Errorf("agent config %q: max_turns must be positive", c.Name)
	}
	if c.Audit.MaxResultChars < 0 || c.Audit.MaxResultChars > maxAuditResultChars {
		return fmt.Errorf("agent config %q: audit.max_result_chars must be in [0, %d]", c.Name, maxAuditResultChars)
	}

	if err := c.checkHighRiskNeverMode(); err != nil {
		return err
	}
	return nil
}

// checkHighRiskNeverMode rejects configurations that would let bash or
// write_file run without human review.
func (c *Config) checkHighRiskNeverMode() error {
	if c.Verification.Mode != gate.ModeNever {
		return nil
	}

	enabled := make(map[string]bool, len(c.Tools.Builtin))
	for _, name := range c.Tools.Builtin {
		enabled[name] = true
	}

	var violations []string
	for _, name := range highRiskBuiltins {
		if enabled[name] {
			violations = append(violations, name)
		}
	}
	if len(violations) == 0 {
		return nil
	}

	sort.Strings(violations)
	return fmt.Errorf(
		"agent config %q: verification mode 'never' is not permitted when high-risk tools are enabled: [%s]; use 'always' or 'selective' mode",
		c.Name, strings.Join(violations, ", "))
}

// VerificationMode returns the configured mode, defaulting to "always".
func (c *Config) VerificationMode() string {
	if c.Verification.Mode == "" {
		return gate.ModeAlways
	}
	return c.Verification.Mode
}
