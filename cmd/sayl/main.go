// Command sayl is the CLI entrypoint: it loads a scenario or stress
// config (YAML file, Postman collection, or a bare manual URL), drives
// the corresponding engine, prints a report, and exits with the code
// spec.md §7 names (0 pass, 1 SLA violation, 2 fatal error). Grounded
// on the teacher's cmd/sayl/main.go flag set and signal handling;
// extended with YAML/Postman config loading, a stress mode, and
// structured logging instead of the teacher's bare fmt.Printf; the
// interactive setup wizard is kept for runs started without flags.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/deli-labs/sayl/internal/configio"
	"github.com/deli-labs/sayl/internal/dashboard"
	"github.com/deli-labs/sayl/internal/executor"
	"github.com/deli-labs/sayl/internal/metrics"
	"github.com/deli-labs/sayl/internal/obslog"
	"github.com/deli-labs/sayl/internal/postman"
	"github.com/deli-labs/sayl/internal/reqprep"
	"github.com/deli-labs/sayl/internal/report"
	"github.com/deli-labs/sayl/internal/scheduler"
	"github.com/deli-labs/sayl/internal/sla"
	"github.com/deli-labs/sayl/internal/stress"
	"github.com/deli-labs/sayl/internal/wizard"
	"github.com/deli-labs/sayl/pkg/model"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	exitOK           = 0
	exitSLAViolation = 1
	exitFatal        = 2
)

func main() {
	logger := obslog.New()
	defer logger.Sync()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("fatal panic", zap.Any("panic", r))
			os.Exit(exitFatal)
		}
	}()

	var (
		configPath   string
		collection   string
		manualURL    string
		mode         string
		envFlag      string
		debugMode    bool
		noDashboard  bool
		outputPrefix string
	)

	flag.StringVar(&configPath, "config", "", "Path to YAML ScenarioConfig/StressConfig file")
	flag.StringVar(&configPath, "f", "", "Path to YAML config file (shorthand)")
	flag.StringVar(&collection, "collection", "", "Path to a Postman v2.1 collection file")
	flag.StringVar(&manualURL, "url", "", "Target URL for a single-request manual run")
	flag.StringVar(&mode, "mode", "load", `Run mode: "load" or "stress"`)
	flag.StringVar(&envFlag, "env", "", "Comma-separated KEY=VALUE overrides for {{var}} substitution")
	flag.BoolVar(&debugMode, "debug", false, "Dry run: execute one iteration against one VU and print the result")
	flag.BoolVar(&debugMode, "d", false, "Dry run (shorthand)")
	flag.BoolVar(&noDashboard, "no-dashboard", false, "Disable the live terminal dashboard")
	flag.StringVar(&outputPrefix, "out", "sayl-report", "Report file prefix (writes <prefix>.json)")
	flag.Parse()

	env := parseEnvOverrides(envFlag)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received interrupt, shutting down gracefully")
		cancel()
	}()

	// With no request source and no config file given at all, drop into
	// the interactive setup wizard instead of requiring flags, the way
	// the teacher's TUI setup model did when no flags were passed.
	if configPath == "" && collection == "" && manualURL == "" {
		targetURL, cfg, err := wizard.Run()
		if err != nil {
			logger.Error("setup wizard failed", zap.Error(err))
			os.Exit(exitFatal)
		}
		requests, err := postman.BuildManualRequest(targetURL)
		if err != nil {
			logger.Error("invalid target URL", zap.Error(err))
			os.Exit(exitFatal)
		}
		runLoadModeWithConfig(ctx, logger, cfg, targetURL, requests, env, debugMode, noDashboard, outputPrefix)
		return
	}

	if configPath == "" {
		logger.Error("missing required -config flag (or run with no flags for interactive setup)")
		os.Exit(exitFatal)
	}

	requests, targetLabel, err := loadRequestSource(collection, manualURL, env)
	if err != nil {
		logger.Error("invalid request source", zap.Error(err))
		os.Exit(exitFatal)
	}

	switch mode {
	case "stress":
		runStressMode(ctx, logger, configPath, targetLabel, requests, env, outputPrefix)
	default:
		runLoadMode(ctx, logger, configPath, targetLabel, requests, env, debugMode, noDashboard, outputPrefix)
	}
}

func parseEnvOverrides(s string) map[string]string {
	if s == "" {
		return nil
	}
	out := map[string]string{}
	for _, part := range strings.Split(s, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) == 2 {
			out[kv[0]] = kv[1]
		}
	}
	return out
}

func loadRequestSource(collection, manualURL string, env map[string]string) ([]model.ParsedRequest, string, error) {
	switch {
	case collection != "":
		reqs, err := postman.Load(collection, env)
		return reqs, collection, err
	case manualURL != "":
		reqs, err := postman.BuildManualRequest(manualURL)
		return reqs, postman.ManualReportName(manualURL), err
	default:
		return nil, "", fmt.Errorf("%w: one of -collection or -url must be given", model.ErrCollectionInvalid)
	}
}

func runLoadMode(ctx context.Context, logger *zap.Logger, configPath, targetLabel string, requests []model.ParsedRequest, env map[string]string, debugMode, noDashboard bool, outputPrefix string) {
	cfg, err := configio.LoadRunConfig(configPath)
	if err != nil {
		logger.Error("invalid scenario config", zap.Error(err))
		os.Exit(exitFatal)
	}
	runLoadModeWithConfig(ctx, logger, cfg, targetLabel, requests, env, debugMode, noDashboard, outputPrefix)
}

// runLoadModeWithConfig drives a load test once a RunConfig is already
// in hand, shared by the flag/config-file path and the interactive
// wizard path.
func runLoadModeWithConfig(ctx context.Context, logger *zap.Logger, cfg model.RunConfig, targetLabel string, requests []model.ParsedRequest, env map[string]string, debugMode, noDashboard bool, outputPrefix string) {
	client := executor.New(executor.Options{})
	cache := reqprep.NewCache(env)

	if debugMode {
		runDebugDryRun(client, cache, requests, targetLabel)
		return
	}

	results := make(chan model.RequestResult, 10000)
	collector := metrics.New(time.Now().UnixNano(), metrics.DefaultMaxResults)

	sched := scheduler.New(cfg, requests, client, cache, results)

	drainDone := make(chan struct{})
	go func() {
		defer close(drainDone)
		for r := range results {
			collector.Add(r)
		}
	}()

	duration := time.Duration(cfg.DurationSeconds) * time.Second
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		runCtx, runCancel := context.WithTimeout(ctx, duration+5*time.Second)
		defer runCancel()
		sched.Run(runCtx)
		close(results)
		<-drainDone
		collector.SetEndTime(time.Now().UnixNano())
	}()

	if !noDashboard && isInteractive() {
		dash := dashboard.New(targetLabel, duration, collector)
		p := tea.NewProgram(dash)
		go func() {
			<-runDone
			p.Send(dashboard.DoneMsg{})
		}()
		if _, err := p.Run(); err != nil {
			logger.Warn("dashboard exited with error", zap.Error(err))
		}
	} else {
		<-runDone
	}

	agg := collector.FullAggregate(false)
	thresholds := sla.FromRunConfig(cfg)
	verdict := sla.Evaluate(agg, thresholds)

	summary := report.BuildRunSummary(targetLabel, cfg, agg, verdict)
	writeReport(logger, outputPrefix, summary)
	fmt.Println(report.WriteRunText(summary))

	if !verdict.Pass {
		os.Exit(exitSLAViolation)
	}
	os.Exit(exitOK)
}

func runStressMode(ctx context.Context, logger *zap.Logger, configPath, targetLabel string, requests []model.ParsedRequest, env map[string]string, outputPrefix string) {
	cfg, err := configio.LoadStressConfig(configPath)
	if err != nil {
		logger.Error("invalid stress config", zap.Error(err))
		os.Exit(exitFatal)
	}

	client := executor.New(executor.Options{})
	cache := reqprep.NewCache(env)
	ctrl := stress.New(requests, client, cache)

	result := ctrl.Run(ctx, cfg)

	summary := report.BuildStressSummary(targetLabel, cfg, result)
	writeReport(logger, outputPrefix, summary)
	fmt.Println(report.WriteStressText(summary))

	for _, p := range result.Phases {
		if p.Breached {
			os.Exit(exitSLAViolation)
		}
	}
	os.Exit(exitOK)
}

// runDebugDryRun executes each request definition once, as a single
// "debug-vu", with verbose output, folding in the teacher's internal/debug.go dry-run
// behavior as a --debug flag instead of a bypassed TUI path.
func runDebugDryRun(client *executor.Client, cache *reqprep.Cache, requests []model.ParsedRequest, targetLabel string) {
	fmt.Printf("dry run against %s (%d request definitions)\n\n", targetLabel, len(requests))
	for _, req := range requests {
		prepared := cache.Prepare(req)
		result := client.Execute(context.Background(), req, prepared, "debug-vu")
		fmt.Printf("[%s] %s %s -> status=%d elapsed=%.1fms ok=%v",
			req.Name, prepared.Method, prepared.URL, result.StatusCode, result.ElapsedMs, result.OK)
		if !result.OK {
			fmt.Printf(" error_kind=%s message=%q", result.ErrorKind, result.ErrorMessage)
		}
		fmt.Println()
	}
}

func writeReport(logger *zap.Logger, prefix string, summary interface{}) {
	data, err := report.WriteJSON(summary)
	if err != nil {
		logger.Warn("failed to marshal report", zap.Error(err))
		return
	}
	path := prefix + ".json"
	if err := os.WriteFile(path, data, 0o644); err != nil {
		logger.Warn("failed to write report file", zap.String("path", path), zap.Error(err))
		return
	}
	logger.Info("report written", zap.String("path", path))
}

func isInteractive() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
