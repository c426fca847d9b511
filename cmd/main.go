package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yungbote/neurobridge-adaptive/internal/app"
	"github.com/yungbote/neurobridge-adaptive/internal/data/graph"
	"github.com/yungbote/neurobridge-adaptive/internal/modules/learning/bandit"
)

var (
	reportDays     int
	reportTopK     int
	reportAhead    int
	resetAllScopes bool

	rootCmd = &cobra.Command{
		Use:           "adaptive",
		Short:         "Adaptive learning recommendation engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Load the knowledge base and keep it refreshed; serve /metrics when enabled",
		RunE:  runServe,
	}

	refreshGraphCmd = &cobra.Command{
		Use:   "refresh-graph",
		Short: "Rebuild the concept graph from the knowledge base once and print its size",
		RunE:  runRefreshGraph,
	}

	syncGraphCmd = &cobra.Command{
		Use:   "sync-graph",
		Short: "Copy concepts from the relational store into neo4j",
		RunE:  runSyncGraph,
	}

	resetBanditCmd = &cobra.Command{
		Use:   "reset-bandit [learner-id]",
		Short: "Discard the strategy weight table (global, or one learner's with BANDIT_SCOPE=learner)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runResetBandit,
	}

	reportCmd = &cobra.Command{
		Use:   "report <learner-id>",
		Short: "Print weaknesses, a remediation plan and a progress report for a learner",
		Args:  cobra.ExactArgs(1),
		RunE:  runReport,
	}
)

func init() {
	reportCmd.Flags().IntVar(&reportDays, "days", 30, "report period in days")
	reportCmd.Flags().IntVar(&reportTopK, "top", 3, "number of weaknesses in the remediation plan")
	reportCmd.Flags().IntVar(&reportAhead, "ahead", 7, "days ahead for the mastery prediction")
	resetBanditCmd.Flags().BoolVar(&resetAllScopes, "global", false, "reset the global table even when BANDIT_SCOPE=learner")

	rootCmd.AddCommand(serveCmd, refreshGraphCmd, syncGraphCmd, resetBanditCmd, reportCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	a, err := app.New(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func runServe(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if err := a.Start(ctx); err != nil {
			return err
		}
		a.Log.Info("adaptive engine running",
			"knowledge_base", a.Cfg.KnowledgeBaseSource,
			"bandit_scope", a.Cfg.BanditScope,
			"bandit_store", a.Cfg.BanditStore,
		)
		<-ctx.Done()
		a.Log.Info("shutting down")
		return nil
	})
}

func runRefreshGraph(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		res, err := a.Services.KnowledgeBase.Refresh(ctx)
		if err != nil {
			return err
		}
		return printJSON(res)
	})
}

func runSyncGraph(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if a.Clients.Neo4j == nil {
			return fmt.Errorf("sync-graph: NEO4J_URI is not configured")
		}
		nodes, err := a.Repos.Concepts.ListConcepts(ctx, nil)
		if err != nil {
			return err
		}
		if err := graph.NewKnowledgeBase(a.Clients.Neo4j, a.Log).UpsertConcepts(ctx, nodes); err != nil {
			return err
		}
		return printJSON(map[string]int{"concepts": len(nodes)})
	})
}

func runResetBandit(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		learnerID := ""
		if len(args) == 1 {
			learnerID = args[0]
		}
		if resetAllScopes || a.Cfg.BanditScope == bandit.ScopeGlobal {
			if err := a.Services.Bandit.Reset(ctx, bandit.GlobalKey); err != nil {
				return err
			}
			return printJSON(map[string]string{"reset": bandit.GlobalKey})
		}
		if learnerID == "" {
			return fmt.Errorf("reset-bandit: learner id required when BANDIT_SCOPE=learner")
		}
		if err := a.Services.Recommendation.ResetBandit(ctx, learnerID); err != nil {
			return err
		}
		return printJSON(map[string]string{"reset": bandit.ScopeLearner.Key(learnerID)})
	})
}

func runReport(cmd *cobra.Command, args []string) error {
	learnerID := args[0]
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if err := a.Start(ctx); err != nil {
			return err
		}
		svc := a.Services.Recommendation
		weaknesses, err := svc.AnalyzeWeaknesses(ctx, learnerID)
		if err != nil {
			return err
		}
		if _, err := svc.CaptureSnapshot(ctx, learnerID); err != nil {
			return err
		}
		return printJSON(map[string]any{
			"weaknesses":  weaknesses,
			"patterns":    svc.IdentifyWeaknessPatterns(ctx, learnerID),
			"remediation": svc.GetRemediationPlan(ctx, learnerID, reportTopK),
			"progress":    svc.GenerateProgressReport(ctx, learnerID, reportDays),
			"prediction":  svc.PredictFutureMastery(ctx, learnerID, reportAhead),
		})
	})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
