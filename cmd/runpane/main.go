package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/park9140/kilroy-run-pane/internal/config"
	"github.com/park9140/kilroy-run-pane/internal/logger"
	"github.com/park9140/kilroy-run-pane/internal/observability"
	"github.com/park9140/kilroy-run-pane/internal/probe"
	"github.com/park9140/kilroy-run-pane/internal/runstate"
	"github.com/park9140/kilroy-run-pane/internal/watch"
)

var (
	configPath  string
	statusJSON  bool
	metricsAddr string
)

var rootCmd = &cobra.Command{
	Use:   "runpane",
	Short: "Inspect pipeline runs from their on-disk state",
	Long: "runpane reconstructs the live and historical state of pipeline runs " +
		"purely from the files the pipeline writes to disk. It never talks to " +
		"the running pipeline and never mutates anything.",
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List run ids across all configured roots, newest first",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var statusCmd = &cobra.Command{
	Use:   "status <run-id>",
	Short: "Print one run's reconstructed state",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var followCmd = &cobra.Command{
	Use:   "follow <run-id>",
	Short: "Print state snapshots as the run changes, until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE:  runFollow,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to runpane.yaml")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "emit JSON")
	followCmd.Flags().StringVar(&metricsAddr, "metrics", "", "serve prometheus metrics on this address while following")
	rootCmd.AddCommand(listCmd, statusCmd, followCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRegistry() (*watch.Registry, *config.Config, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, nil, err
	}
	if cfg.DockerBinary != "" {
		probe.DockerBinary = cfg.DockerBinary
	}
	log := logger.NewStderr(logger.ParseLevel(cfg.LogLevel))
	metrics := observability.NewMetrics(nil)
	return watch.NewRegistry(cfg, log, metrics), cfg, nil
}

func runList(cmd *cobra.Command, args []string) error {
	reg, _, err := newRegistry()
	if err != nil {
		return err
	}
	defer reg.Shutdown()

	for _, id := range reg.ListRuns() {
		fmt.Println(id)
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	reg, _, err := newRegistry()
	if err != nil {
		return err
	}
	defer reg.Shutdown()

	st, err := reg.GetState(args[0])
	if err != nil {
		return fmt.Errorf("run %s: %w", args[0], err)
	}
	if statusJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	printState(st)
	return nil
}

func runFollow(cmd *cobra.Command, args []string) error {
	reg, _, err := newRegistry()
	if err != nil {
		return err
	}
	defer reg.Shutdown()

	if metricsAddr != "" {
		go func() {
			_ = http.ListenAndServe(metricsAddr, observability.Handler())
		}()
	}

	st, err := reg.GetState(args[0])
	if err != nil {
		return fmt.Errorf("run %s: %w", args[0], err)
	}
	printState(st)

	sub := reg.Subscribe(args[0], func(next *runstate.RunState) {
		fmt.Println("---")
		printState(next)
	})
	defer sub.Cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	return nil
}

func printState(st *runstate.RunState) {
	fmt.Printf("run_id=%s\n", st.ID)
	fmt.Printf("status=%s\n", st.Status)
	fmt.Printf("computed_status=%s\n", st.ComputedStatus)
	fmt.Printf("alive=%v\n", st.Alive)
	fmt.Printf("format=%s\n", st.Format)
	if st.CurrentNode != "" {
		fmt.Printf("current_node=%s\n", st.CurrentNode)
	}
	if st.FailureReason != "" {
		fmt.Printf("failure_reason=%s\n", st.FailureReason)
	}
	if st.RestartCount > 0 {
		fmt.Printf("restarts=%d\n", st.RestartCount)
	}
	if !st.HeartbeatAt.IsZero() {
		fmt.Printf("heartbeat_at=%s\n", st.HeartbeatAt.Format("2006-01-02 15:04:05"))
	}
	if st.Cycle != nil {
		fmt.Printf("cycle node=%s count=%d limit=%d breaker=%v\n",
			st.Cycle.NodeID, st.Cycle.Count, st.Cycle.Limit, st.Cycle.Breaker)
		if nodes := runstate.LoopNodes(st.History, st.Cycle); len(nodes) > 0 {
			fmt.Printf("cycle nodes=%v\n", nodes)
		}
	}
	for _, stage := range st.History {
		label := stage.NodeID
		if stage.BranchKey != "" {
			label = stage.ParallelParent + "/" + stage.BranchKey + "/" + stage.NodeID
		}
		fmt.Printf("  [%d] %s attempt=%d status=%s", stage.RestartIndex, label, stage.Attempt, stage.Status)
		if stage.DurationSecs > 0 {
			fmt.Printf(" duration=%ds", stage.DurationSecs)
		}
		if stage.FailureReason != "" {
			fmt.Printf(" reason=%s", stage.FailureReason)
		}
		fmt.Println()
	}
}
