package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"solari/internal/audit"
	"solari/internal/classifier"
	"solari/internal/config"
	"solari/internal/flow"
	"solari/internal/logging"
	"solari/internal/orchestrator"
	"solari/internal/policy"
	"solari/internal/spine"
	"solari/internal/suggest"
	"solari/internal/tools"
	"solari/internal/types"
)

var (
	// Global flags
	configPath   string
	snapshotPath string
	actorID      string
	actorRole    string
	stepUp       bool
	verbose      bool

	// handle flags
	confirmationToken string
	explainResult     bool

	// Logger for classifier I/O
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "solari",
	Short: "Solari - natural-language front desk for service businesses",
	Long: `Solari turns free-text operator requests into authorized, audited
business actions: bookings, refunds, client changes, campaigns and
configuration flips.

Risky actions require confirmation tokens and step-up authentication;
every decision lands on a tamper-evident, hash-chained audit log. A set
of advisory engines scans business state and explains every suggestion
it makes.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		return logging.Initialize(logging.Options{
			Dir:       cfg.Logging.Dir,
			DebugMode: cfg.Logging.Debug || verbose,
			Level:     cfg.Logging.Level,
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.Close()
	},
}

// handleCmd executes a single free-text request
var handleCmd = &cobra.Command{
	Use:   "handle [request]",
	Short: "Execute a natural-language request",
	Long: `Routes the request to a domain, extracts entities, compiles a flow,
and executes it under the policy gate. High-impact actions return a
confirmation token instead of executing; re-run with --confirm to
proceed.

Example:
  solari handle "book Anna for a cut tomorrow at 3" --role receptionist
  solari handle "refund $45 to Anna" --role manager --step-up
  solari handle "refund $45 to Anna" --role manager --step-up --confirm <token>`,
	Args: cobra.MinimumNArgs(1),
	RunE: runHandle,
}

// explainCmd dry-runs a request
var explainCmd = &cobra.Command{
	Use:   "explain [request]",
	Short: "Show what a request would do without executing it",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExplain,
}

// suggestCmd runs the advisory engines
var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Run the advisory engines over the business snapshot",
	RunE:  runSuggest,
}

// auditCmd groups audit chain operations
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit chain operations",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Recompute every hash and linkage in the audit chain",
	RunE:  runAuditVerify,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "solari.yaml", "Path to the YAML config")
	rootCmd.PersistentFlags().StringVar(&snapshotPath, "snapshot", "", "Path to a business snapshot JSON file")
	rootCmd.PersistentFlags().StringVar(&actorID, "actor", "cli", "Acting operator ID")
	rootCmd.PersistentFlags().StringVar(&actorRole, "role", "owner", "Acting role (owner, manager, receptionist, assistant)")
	rootCmd.PersistentFlags().BoolVar(&stepUp, "step-up", false, "Carry a verified step-up credential for high-risk actions")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	handleCmd.Flags().StringVar(&confirmationToken, "confirm", "", "Confirmation token from a pending run")
	handleCmd.Flags().BoolVar(&explainResult, "explain", false, "Attach an explanation to the result")

	auditCmd.AddCommand(auditVerifyCmd)

	rootCmd.AddCommand(handleCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(suggestCmd)
	rootCmd.AddCommand(auditCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// ====== COMMAND IMPLEMENTATIONS ======

func runHandle(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	snap, err := loadSnapshot(snapshotPath)
	if err != nil {
		return err
	}
	orch, cleanup, err := buildOrchestrator(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	result := orch.Handle(ctx, strings.Join(args, " "), snap, orchestrator.Options{
		Actor:             buildActor(),
		ConfirmationToken: confirmationToken,
		Explain:           explainResult,
	})
	return printJSON(result)
}

func runExplain(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	snap, err := loadSnapshot(snapshotPath)
	if err != nil {
		return err
	}
	orch, cleanup, err := buildOrchestrator(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Print(orch.Explain(ctx, strings.Join(args, " "), snap))
	return nil
}

func runSuggest(cmd *cobra.Command, args []string) error {
	snap, err := loadSnapshot(snapshotPath)
	if err != nil {
		return err
	}

	suggestions, failures := suggest.DefaultRegistry().RunAll(cmd.Context(), snap)
	for _, f := range failures {
		fmt.Fprintf(os.Stderr, "engine %s failed: %s\n", f.Engine, f.Detail)
	}
	return printJSON(suggestions)
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	sink, closeSink, err := openSink(cfg)
	if err != nil {
		return err
	}
	defer closeSink()

	events, err := sink.ReadAll()
	if err != nil {
		return err
	}
	if err := audit.Verify(events); err != nil {
		return fmt.Errorf("audit chain FAILED verification: %w", err)
	}
	fmt.Printf("audit chain OK: %d events verified\n", len(events))
	return nil
}

// ====== WIRING ======

// buildOrchestrator assembles the full pipeline from config. The returned
// cleanup stops the policy watcher and closes the sink.
func buildOrchestrator(ctx context.Context, cfg *config.Config) (*orchestrator.Orchestrator, func(), error) {
	sink, closeSink, err := openSink(cfg)
	if err != nil {
		return nil, nil, err
	}
	chain, err := audit.NewChain(sink)
	if err != nil {
		closeSink()
		return nil, nil, err
	}

	table := policy.DefaultTable()
	if cfg.Policy.TablePath != "" {
		if table, err = policy.LoadTable(cfg.Policy.TablePath); err != nil {
			closeSink()
			return nil, nil, err
		}
	}
	gate, err := policy.NewGate(table)
	if err != nil {
		closeSink()
		return nil, nil, err
	}

	var watcher *config.PolicyWatcher
	if cfg.Policy.HotReload && cfg.Policy.TablePath != "" {
		if watcher, err = config.NewPolicyWatcher(cfg.Policy.TablePath, gate); err == nil {
			_ = watcher.Start(ctx)
		}
	}

	registry := tools.NewRegistry(config.Duration(cfg.Flow.ToolTimeout, 30*time.Second))
	registerStubTools(registry)

	tokens := flow.NewTokenStore(
		config.Duration(cfg.Flow.ConfirmationTTL, flow.DefaultTokenTTL),
		cfg.Flow.TokenCapacity,
	)
	executor, err := flow.NewExecutor(gate, registry, chain, tokens)
	if err != nil {
		closeSink()
		return nil, nil, err
	}

	var cls classifier.Classifier = classifier.Absent{}
	if cfg.Classifier.Enabled && cfg.Classifier.APIKey != "" {
		genai, err := classifier.NewGenAI(ctx, cfg.Classifier.APIKey, cfg.Classifier.Model,
			config.Duration(cfg.Classifier.Timeout, 10*time.Second), logger)
		if err != nil {
			logging.Get(logging.CategoryClassifier).Warn("classifier disabled: %v", err)
		} else {
			cls = genai
		}
	}

	orch, err := orchestrator.New(spine.DefaultRegistry(), executor, chain, cls, cfg.Router.MinConfidence)
	if err != nil {
		closeSink()
		return nil, nil, err
	}

	cleanup := func() {
		if watcher != nil {
			watcher.Stop()
		}
		closeSink()
	}
	return orch, cleanup, nil
}

func openSink(cfg *config.Config) (audit.Sink, func(), error) {
	switch cfg.Audit.Backend {
	case "memory":
		return audit.NewMemorySink(), func() {}, nil
	case "jsonl":
		sink, err := audit.NewJSONLSink(cfg.Audit.Path)
		if err != nil {
			return nil, nil, err
		}
		return sink, func() { _ = sink.Close() }, nil
	default:
		sink, err := audit.NewSQLiteSink(cfg.Audit.Path)
		if err != nil {
			return nil, nil, err
		}
		return sink, func() { _ = sink.Close() }, nil
	}
}

func buildActor() types.Actor {
	actor := types.Actor{ID: actorID, Role: types.Role(actorRole)}
	if stepUp {
		actor.StepUp = &types.StepUpCredential{
			Token:     "cli-step-up",
			IssuedAt:  time.Now(),
			ExpiresAt: time.Now().Add(5 * time.Minute),
			Verified:  true,
		}
	}
	return actor
}

// loadSnapshot reads a snapshot JSON file; an empty path yields an empty
// snapshot pinned to now.
func loadSnapshot(path string) (*types.Snapshot, error) {
	snap := &types.Snapshot{Now: time.Now()}
	if path == "" {
		return snap, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	if snap.Now.IsZero() {
		snap.Now = time.Now()
	}
	return snap, nil
}

// registerStubTools wires the standard tool names to echo implementations.
// Deployments replace these with adapters into their booking, payment and
// messaging systems.
func registerStubTools(registry *tools.Registry) {
	for _, name := range []string{
		"booking.create", "booking.reschedule", "booking.cancel",
		"payments.capture", "payments.refund",
		"clients.update", "clients.merge", "clients.suspend",
		"campaigns.send", "campaigns.preview",
		"admin.set_hours", "admin.set_price", "admin.toggle",
	} {
		registry.MustRegister(&tools.Tool{
			Name:        name,
			Description: "Echo stub for " + name,
			Category:    strings.SplitN(name, ".", 2)[0],
			Execute: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				return map[string]any{"tool": name, "args": args, "stub": true}, nil
			},
		})
	}
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
