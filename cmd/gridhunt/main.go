package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/boristopalov/gridhunt/pkg/agent"
	"github.com/boristopalov/gridhunt/pkg/config"
	"github.com/boristopalov/gridhunt/pkg/core"
	"github.com/boristopalov/gridhunt/pkg/environment"
	"github.com/boristopalov/gridhunt/pkg/experiment"
	"github.com/boristopalov/gridhunt/pkg/messaging"
	"github.com/boristopalov/gridhunt/pkg/providers"
	"github.com/boristopalov/gridhunt/pkg/viewer"
)

type options struct {
	configPath string
	seed       int64
	episodes   int
	maxSteps   int
	gridSize   int
	policy     string
	provider   string
	model      string
	epsilon    float64
	statsPath  string
	addr       string
	watchDelay time.Duration
	serveDelay time.Duration
}

func main() {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "gridhunt",
		Short: "Gridhunt is a grid-world treasure hunt for evaluating policies against wandering monsters.",
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().Int64Var(&opts.seed, "seed", 0, "random seed (0 seeds from the clock)")
	rootCmd.PersistentFlags().IntVar(&opts.gridSize, "grid-size", 0, "side length of the grid")
	rootCmd.PersistentFlags().IntVar(&opts.maxSteps, "max-steps", 0, "step cap per episode")
	rootCmd.PersistentFlags().StringVarP(&opts.policy, "policy", "p", "", "policy kind: random, greedy or llm")
	rootCmd.PersistentFlags().StringVar(&opts.provider, "provider", "", "llm provider: openai or gemini")
	rootCmd.PersistentFlags().StringVar(&opts.model, "model", "", "llm model name")
	rootCmd.PersistentFlags().Float64Var(&opts.epsilon, "epsilon", -1, "exploration rate of the greedy policy")

	evaluateCmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run a policy for a number of episodes and report statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(cmd, opts)
		},
	}
	evaluateCmd.Flags().IntVarP(&opts.episodes, "episodes", "n", 0, "number of episodes")
	evaluateCmd.Flags().StringVar(&opts.statsPath, "stats", "", "write per-episode CSV statistics here")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Play one episode and draw every step in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, opts)
		},
	}
	watchCmd.Flags().DurationVar(&opts.watchDelay, "delay", 300*time.Millisecond, "pause between frames")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run episodes continuously and stream them to websocket viewers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	serveCmd.Flags().StringVar(&opts.addr, "addr", "", "listen address for the viewer")
	serveCmd.Flags().DurationVar(&opts.serveDelay, "delay", 250*time.Millisecond, "pause between steps")
	serveCmd.Flags().IntVarP(&opts.episodes, "episodes", "n", 0, "number of episodes")

	for _, envFile := range []string{
		".env",
		"../../.env",
		"../../../.env",
	} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	rootCmd.AddCommand(evaluateCmd, watchCmd, serveCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig layers defaults, the config file, GRIDHUNT_* variables and
// explicitly set flags, in that order.
func loadConfig(cmd *cobra.Command, opts *options) (*config.ExperimentConfig, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.LoadConfig(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Seed = opts.seed
	}
	if flags.Changed("grid-size") {
		cfg.Environment.GridSize = opts.gridSize
	}
	if flags.Changed("max-steps") {
		cfg.MaxSteps = opts.maxSteps
	}
	if flags.Changed("policy") {
		cfg.Policy.Kind = opts.policy
	}
	if flags.Changed("provider") {
		cfg.Policy.Provider = opts.provider
	}
	if flags.Changed("model") {
		cfg.Policy.Model = opts.model
	}
	if flags.Changed("epsilon") {
		cfg.Policy.Epsilon = opts.epsilon
	}
	if flags.Changed("episodes") {
		cfg.Episodes = opts.episodes
	}
	if flags.Changed("stats") {
		cfg.StatsPath = opts.statsPath
	}
	if flags.Changed("addr") {
		cfg.Viewer.Addr = opts.addr
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogging(cfg *config.ExperimentConfig) (func(), error) {
	if cfg.Logging.Path == "" {
		return func() {}, nil
	}
	f, err := os.OpenFile(cfg.Logging.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	log.SetOutput(f)
	return func() { f.Close() }, nil
}

// signalContext cancels on interrupt
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		select {
		case <-sigChan:
			log.Println("Interrupted, shutting down")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}

func newWorld(cfg *config.ExperimentConfig) (*environment.GridWorld, error) {
	return environment.NewGridWorld(
		environment.WithGridSize(cfg.Environment.GridSize),
		environment.WithMaxSpawnAttempts(cfg.Environment.MaxSpawnAttempts),
		environment.WithSeed(cfg.Seed),
	)
}

func newPolicy(ctx context.Context, cfg *config.ExperimentConfig) (core.Policy, error) {
	rng := rand.New(rand.NewSource(cfg.Seed + 1))
	switch cfg.Policy.Kind {
	case config.PolicyRandom:
		return agent.NewRandomPolicy(rng), nil
	case config.PolicyGreedy:
		return agent.NewGreedyPolicy(cfg.Environment.GridSize, cfg.Policy.Epsilon, rng), nil
	case config.PolicyLLM:
		client, err := providers.New(ctx, cfg.Policy.Provider)
		if err != nil {
			return nil, fmt.Errorf("failed to create provider: %w", err)
		}
		model := cfg.Policy.Model
		if model == "" {
			model = providers.DefaultModel(cfg.Policy.Provider)
		}
		p, err := agent.NewLLMPolicy(
			agent.WithClient(client),
			agent.WithModel(agent.ModelInfo{Id: model, Config: make(map[string]any)}),
			agent.WithGridSize(cfg.Environment.GridSize),
			agent.WithMemoryCapacity(cfg.Policy.Memory),
		)
		if err != nil {
			return nil, err
		}
		log.Printf("Created %s using %s", p.GetID(), model)
		return p, nil
	default:
		return nil, fmt.Errorf("unknown policy kind %q", cfg.Policy.Kind)
	}
}

func runEvaluate(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	closeLog, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := signalContext()
	defer cancel()

	env, err := newWorld(cfg)
	if err != nil {
		return err
	}
	policy, err := newPolicy(ctx, cfg)
	if err != nil {
		return err
	}
	log.Printf("Evaluating %s policy for %d episodes on a %dx%d grid (seed %d)",
		cfg.Policy.Kind, cfg.Episodes, cfg.Environment.GridSize, cfg.Environment.GridSize, cfg.Seed)

	eval, err := experiment.NewEvaluator(env, policy, nil, experiment.EvaluationConfig{
		Name:               cfg.Name,
		Episodes:           cfg.Episodes,
		MaxStepsPerEpisode: cfg.MaxSteps,
		StatsPath:          cfg.StatsPath,
		Quiet:              cfg.Logging.Level == "quiet",
	})
	if err != nil {
		return err
	}
	if _, err := eval.Run(ctx); err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}
	return nil
}

func runWatch(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	env, err := newWorld(cfg)
	if err != nil {
		return err
	}
	policy, err := newPolicy(ctx, cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	res, err := experiment.RunEpisode(ctx, env, policy, cfg.MaxSteps,
		func(step int, action core.Action, result core.StepResult) {
			fmt.Fprint(out, "\033[H\033[2J")
			fmt.Fprint(out, viewer.Frame(env.RenderState()))
			if step > 0 {
				fmt.Fprintf(out, "%s  reward %.2f\n", action, result.Reward)
			}
			time.Sleep(opts.watchDelay)
		})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nEpisode finished after %d steps: reward %.2f, success %v, truncated %v\n",
		res.Length, res.Reward, res.Success, res.Truncated)
	return nil
}

func runServe(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	closeLog, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := signalContext()
	defer cancel()

	broker := messaging.NewBroker()
	defer broker.Reset()
	hub := viewer.NewHub(broker)
	go func() {
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Viewer hub stopped: %v", err)
		}
	}()

	srv := &http.Server{Addr: cfg.Viewer.Addr, Handler: hub.Handler()}
	go func() {
		log.Printf("Viewer listening on %s", cfg.Viewer.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Viewer server failed: %v", err)
			cancel()
		}
	}()
	defer func() {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		srv.Shutdown(shutdownCtx)
	}()

	env, err := newWorld(cfg)
	if err != nil {
		return err
	}
	policy, err := newPolicy(ctx, cfg)
	if err != nil {
		return err
	}
	eval, err := experiment.NewEvaluator(env, policy, broker, experiment.EvaluationConfig{
		Name:               cfg.Name,
		Episodes:           cfg.Episodes,
		MaxStepsPerEpisode: cfg.MaxSteps,
		StatsPath:          cfg.StatsPath,
		Quiet:              cfg.Logging.Level == "quiet",
		StepDelay:          opts.serveDelay,
	})
	if err != nil {
		return err
	}
	if _, err := eval.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("evaluation failed: %w", err)
	}
	return nil
}
