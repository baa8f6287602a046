// Package main provides the CLI entry point for the aegis secure agent
// runtime.
//
// The session is created here, once per invocation, before any agent runs.
// The audit logger is created from the session and passed into the
// orchestrator; the audit log path is printed to the operator at startup.
//
// # Basic Usage
//
// Run a task on an agent:
//
//	aegis run --agent agents/researcher.yaml --task "Summarize README.md"
//
// Validate an agent definition without starting a session:
//
//	aegis agents validate agents/researcher.yaml
//
// # Environment Variables
//
//   - ANTHROPIC_API_KEY: Anthropic API key
//   - OPENAI_API_KEY: OpenAI API key
//   - AEGIS_AUDIT_LOG_DIR: audit log directory (default: .audit_logs)
//   - AUDIT_LOG_DIR: audit log directory, used when the AEGIS_ variable is unset
//   - AEGIS_LOG_LEVEL: operational log level (default: info)
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aegis-agent/aegis/internal/audit"
	"github.com/aegis-agent/aegis/internal/gate"
	"github.com/aegis-agent/aegis/internal/observability"
	"github.com/aegis-agent/aegis/internal/orchestrator"
	"github.com/aegis-agent/aegis/internal/session"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "aegis",
		Short: "aegis - secure tool-execution runtime for LLM agents",
		Long: `aegis runs LLM agents behind a security pipeline: input validation,
path confinement, secret scrubbing, human verification, and an append-only
audit trail. Every tool call is validated, reviewed, executed, and recorded.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildRunCmd(),
		buildAgentsCmd(),
	)

	return rootCmd
}

// buildRunCmd creates the "run" command: one task on one agent.
func buildRunCmd() *cobra.Command {
	var (
		agentPath   string
		task        string
		taskContext string
		operator    string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a task on an agent defined in a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if agentPath == "" {
				return fmt.Errorf("--agent is required")
			}
			if task == "" {
				return fmt.Errorf("--task is required")
			}

			logger := observability.NewLogger(observability.LogConfig{
				Level: os.Getenv("AEGIS_LOG_LEVEL"),
			})

			sess := session.New(operator)
			auditor, err := audit.New(auditLogDir(), sess.SessionID, sess.Operator)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session: %s  Audit log: %s\n", sess.ShortID(), auditor.Path())

			orch := orchestrator.New(orchestrator.Options{
				Auditor:  auditor,
				Logger:   logger,
				Metrics:  observability.NewMetrics(nil),
				Prompter: gate.NewTerminalPrompter(cmd.InOrStdin(), cmd.OutOrStdout()),
			})

			result, runErr := orch.RunFromYAML(cmd.Context(), agentPath, task, taskContext)
			if closeErr := auditor.Close(); runErr == nil {
				runErr = closeErr
			}
			if runErr != nil {
				return runErr
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", result)
			return nil
		},
	}

	cmd.Flags().StringVar(&agentPath, "agent", "", "Path to the agent YAML file")
	cmd.Flags().StringVar(&task, "task", "", "Task for the agent")
	cmd.Flags().StringVar(&taskContext, "context", "", "Additional context passed with the task")
	cmd.Flags().StringVar(&operator, "operator", "", "Human identity running this session, recorded in the audit trail")

	return cmd
}

// auditLogDir resolves the audit directory from the environment, preferring
// the namespaced variable. Empty means the logger's default directory.
func auditLogDir() string {
	if dir := os.Getenv("AEGIS_AUDIT_LOG_DIR"); dir != "" {
		return dir
	}
	return os.Getenv("AUDIT_LOG_DIR")
}

// buildAgentsCmd creates the "agents" command group.
func buildAgentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Inspect agent definitions",
	}
	cmd.AddCommand(buildAgentsValidateCmd())
	return cmd
}

// buildAgentsValidateCmd creates "agents validate": load a config and report
// errors without starting a session.
func buildAgentsValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate an agent YAML file without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			cfg, err := orchestrator.ParseConfig(data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: agent %q (model %s, %d builtin tools, %d MCP servers)\n",
				cfg.Name, cfg.Model, len(cfg.Tools.Builtin), len(cfg.Tools.MCP))
			return nil
		},
	}
}
