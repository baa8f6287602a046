// Package orchestrator loads agent definitions from YAML and wires every
// runtime component around them: the path enforcer (with the audit log
// directory protected), the verification gate, the tool registry, MCP
// connections, the provider, and the single session-wide audit logger.
package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aegis-agent/aegis/internal/agent"
	"github.com/aegis-agent/aegis/internal/agent/providers"
	"github.com/aegis-agent/aegis/internal/audit"
	"github.com/aegis-agent/aegis/internal/gate"
	"github.com/aegis-agent/aegis/internal/mcp"
	"github.com/aegis-agent/aegis/internal/observability"
	"github.com/aegis-agent/aegis/internal/pathguard"
	"github.com/aegis-agent/aegis/internal/tools/files"
	"github.com/aegis-agent/aegis/internal/tools/shell"
	"github.com/aegis-agent/aegis/internal/tools/web"
)

// highRiskNameParts flags MCP-discovered tools that must be reviewed even
// under verification mode "never". Matching is by lowercase substring of
// the tool name.
var highRiskNameParts = []string{"exec", "shell", "write", "delete", "run"}

// Options configures an Orchestrator. Auditor and Prompter are required for
// real sessions; tests inject fakes.
type Options struct {
	// AgentsDir is where delegation targets are lazily loaded from when the
	// parent config was not loaded from a file.
	AgentsDir string

	Auditor  *audit.Logger
	Logger   *observability.Logger
	Metrics  *observability.Metrics
	Prompter gate.Prompter

	// Provider overrides provider construction for every agent. Tests use
	// this to inject a fake; when nil, providers are built per vendor from
	// each config's provider field.
	Provider agent.LLMProvider
}

// Orchestrator loads agents from YAML, wires security components, and runs
// tasks. One orchestrator serves one session: every agent it builds shares
// the session's audit logger.
type Orchestrator struct {
	opts Options

	mu        sync.Mutex
	configs   map[string]*Config
	yamlDirs  map[string]string
	providers map[string]agent.LLMProvider
}

// New creates an orchestrator.
func New(opts Options) *Orchestrator {
	return &Orchestrator{
		opts:      opts,
		configs:   make(map[string]*Config),
		yamlDirs:  make(map[string]string),
		providers: make(map[string]agent.LLMProvider),
	}
}

// LoadAgentFile loads, validates, and caches a single agent YAML file.
func (o *Orchestrator) LoadAgentFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agent config %q: %w", path, err)
	}

	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("agent config %q: %w", path, err)
	}

	dir := filepath.Dir(path)

	o.mu.Lock()
	o.configs[cfg.Name] = cfg
	o.yamlDirs[cfg.Name] = dir
	o.mu.Unlock()

	return cfg, nil
}

// LoadAgentsDir loads every *.yaml file from the agents directory. Files
// that fail to load are skipped with a warning.
func (o *Orchestrator) LoadAgentsDir(ctx context.Context) error {
	if o.opts.AgentsDir == "" {
		return nil
	}
	matches, err := filepath.Glob(filepath.Join(o.opts.AgentsDir, "*.yaml"))
	if err != nil {
		return err
	}
	for _, path := range matches {
		if _, err := o.LoadAgentFile(path); err != nil {
			if o.opts.Logger != nil {
				o.opts.Logger.Warn(ctx, "failed to load agent config", "path", path, "error", err)
			}
		}
	}
	return nil
}

// config returns a cached agent config by name.
func (o *Orchestrator) config(name string) (*Config, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	cfg, ok := o.configs[name]
	return cfg, ok
}

// yamlDir returns the directory an agent's config was loaded from, falling
// back to the configured agents directory.
func (o *Orchestrator) yamlDir(name string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if dir, ok := o.yamlDirs[name]; ok {
		return dir
	}
	return o.opts.AgentsDir
}

// BuildAgent wires a fully configured agent. The returned MCP manager is
// owned by the caller, which must call Shutdown when the agent is done.
func (o *Orchestrator) BuildAgent(ctx context.Context, cfg *Config) (*agent.Agent, *mcp.Manager, error) {
	auditLogDir := cfg.Audit.LogDir
	if auditLogDir == "" && o.opts.Auditor != nil {
		auditLogDir = o.opts.Auditor.LogDir()
	}
	if auditLogDir == "" {
		auditLogDir = audit.DefaultLogDir
	}

	if len(cfg.AllowedPaths) == 0 && o.opts.Logger != nil {
		o.opts.Logger.Warn(ctx, "agent has no allowed_paths, defaulting to working directory",
			"agent", cfg.Name)
	}
	guard, err := pathguard.NewWithCwdFallback(cfg.AllowedPaths, []string{auditLogDir})
	if err != nil {
		return nil, nil, fmt.Errorf("agent %q: build path enforcer: %w", cfg.Name, err)
	}

	registry := agent.NewToolRegistry(o.opts.Auditor, o.opts.Metrics)
	for _, name := range cfg.Tools.Builtin {
		tool, err := buildBuiltinTool(name, guard)
		if err != nil {
			return nil, nil, fmt.Errorf("agent %q: %w", cfg.Name, err)
		}
		registry.Register(tool)
	}

	if len(cfg.Handoff.CanDelegateTo) > 0 {
		registry.Register(newDelegateTool(o, cfg.Name, cfg.Handoff.CanDelegateTo))
	}

	g := gate.New(cfg.VerificationMode(), cfg.Verification.RequireFor,
		o.opts.Prompter, o.opts.Auditor, o.opts.Metrics)

	manager := mcp.NewManager(o.opts.Logger)
	if len(cfg.Tools.MCP) > 0 {
		if err := manager.ConnectAll(ctx, cfg.Tools.MCP, o.opts.Auditor); err != nil {
			manager.Shutdown()
			return nil, nil, fmt.Errorf("agent %q: connect MCP servers: %w", cfg.Name, err)
		}
	}

	// Discovered tool names are not part of the validated config, so a
	// server could expose a destructive tool to an agent configured with
	// mode "never". Names that look destructive are forced through review.
	if cfg.VerificationMode() == gate.ModeNever {
		if forced := highRiskToolNames(manager.ToolNames()); len(forced) > 0 {
			g.ForceReview(forced)
			if o.opts.Logger != nil {
				o.opts.Logger.Warn(ctx, "forcing review for high-risk MCP tools despite mode never",
					"agent", cfg.Name, "tools", forced)
			}
		}
	}

	provider, err := o.providerFor(cfg)
	if err != nil {
		manager.Shutdown()
		return nil, nil, fmt.Errorf("agent %q: %w", cfg.Name, err)
	}

	return &agent.Agent{
		Name:         cfg.Name,
		Model:        cfg.Model,
		SystemPrompt: cfg.SystemPrompt,
		MaxTurns:     cfg.MaxTurns,
		Registry:     registry,
		MCP:          manager,
		Gate:         g,
		Provider:     provider,
		Auditor:      o.opts.Auditor,
		Logger:       o.opts.Logger,
		Metrics:      o.opts.Metrics,
	}, manager, nil
}

// RunTask runs a task on a named, already loaded agent.
func (o *Orchestrator) RunTask(ctx context.Context, agentName, task, taskContext string) (string, error) {
	cfg, ok := o.config(agentName)
	if !ok {
		return "", fmt.Errorf("agent %q not loaded", agentName)
	}
	return o.run(ctx, cfg, task, taskContext)
}

// RunFromYAML loads an agent YAML file and immediately runs a task on it.
func (o *Orchestrator) RunFromYAML(ctx context.Context, path, task, taskContext string) (string, error) {
	cfg, err := o.LoadAgentFile(path)
	if err != nil {
		return "", err
	}
	return o.run(ctx, cfg, task, taskContext)
}

func (o *Orchestrator) run(ctx context.Context, cfg *Config, task, taskContext string) (string, error) {
	a, manager, err := o.BuildAgent(ctx, cfg)
	if err != nil {
		return "", err
	}
	defer manager.Shutdown()
	return a.Run(ctx, task, taskContext)
}

// providerFor returns the provider for a config, building and caching one
// per vendor.
func (o *Orchestrator) providerFor(cfg *Config) (agent.LLMProvider, error) {
	if o.opts.Provider != nil {
		return o.opts.Provider, nil
	}

	vendor := cfg.Provider
	if vendor == "" {
		vendor = "anthropic"
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if p, ok := o.providers[vendor]; ok {
		return p, nil
	}

	var (
		p   agent.LLMProvider
		err error
	)
	switch vendor {
	case "anthropic":
		p, err = providers.NewAnthropicProvider(providers.AnthropicConfig{Metrics: o.opts.Metrics})
	case "openai":
		p, err = providers.NewOpenAIProvider(providers.OpenAIConfig{Metrics: o.opts.Metrics})
	default:
		err = fmt.Errorf("unknown provider %q", vendor)
	}
	if err != nil {
		return nil, err
	}
	o.providers[vendor] = p
	return p, nil
}

// buildBuiltinTool constructs one built-in tool closed over the agent's
// path enforcer.
func buildBuiltinTool(name string, guard *pathguard.Enforcer) (agent.Tool, error) {
	switch name {
	case "read_file":
		return files.NewReadTool(guard), nil
	case "write_file":
		return files.NewWriteTool(guard), nil
	case "list_dir":
		return files.NewListTool(guard), nil
	case "bash":
		return shell.NewBashTool(guard), nil
	case "web_fetch":
		return web.NewFetchTool(&http.Client{}), nil
	default:
		return nil, fmt.Errorf("unknown builtin tool %q", name)
	}
}

// highRiskToolNames filters tool names that match the destructive-name
// heuristic.
func highRiskToolNames(names []string) []string {
	var out []string
	for _, name := range names {
		lower := strings.ToLower(name)
		for _, part := range highRiskNameParts {
			if strings.Contains(lower, part) {
				out = append(out, name)
				break
			}
		}
	}
	return out
}
