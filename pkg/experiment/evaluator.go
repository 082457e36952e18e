package experiment

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/boristopalov/gridhunt/pkg/core"
	"github.com/boristopalov/gridhunt/pkg/messaging"
)

// EvaluatorID is the sender ID used for published step events
const EvaluatorID = "evaluator"

type EvaluationConfig struct {
	Name               string
	Episodes           int
	MaxStepsPerEpisode int
	// StatsPath receives one CSV row per episode when set
	StatsPath string
	// Quiet suppresses the per-episode log line
	Quiet bool
	// StepDelay paces transitions for live viewers
	StepDelay time.Duration
}

type EvaluationStatus struct {
	Running   bool
	Episode   int
	Completed int
	StartTime time.Time
	EndTime   time.Time
}

// Evaluator rolls a policy out over a number of episodes, publishing every
// transition on the broker and tracking episode statistics.
type Evaluator struct {
	env     core.Environment
	policy  core.Policy
	broker  messaging.Broker
	config  EvaluationConfig
	tracker *Tracker

	mu     sync.RWMutex
	status EvaluationStatus
}

// NewEvaluator creates an evaluator. broker may be nil.
func NewEvaluator(env core.Environment, policy core.Policy, broker messaging.Broker, cfg EvaluationConfig) (*Evaluator, error) {
	if env == nil {
		return nil, errors.New("evaluator requires an environment")
	}
	if policy == nil {
		return nil, errors.New("evaluator requires a policy")
	}
	if cfg.Episodes < 1 {
		return nil, fmt.Errorf("invalid episode count %d", cfg.Episodes)
	}
	if cfg.MaxStepsPerEpisode < 1 {
		cfg.MaxStepsPerEpisode = DefaultMaxStepsPerEpisode
	}
	if cfg.Name == "" {
		cfg.Name = "Evaluation"
	}
	return &Evaluator{
		env:     env,
		policy:  policy,
		broker:  broker,
		config:  cfg,
		tracker: NewTracker(),
	}, nil
}

func (e *Evaluator) Tracker() *Tracker {
	return e.tracker
}

func (e *Evaluator) GetStatus() EvaluationStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

// Run executes the configured number of episodes. On context cancellation it
// returns the summary of the episodes finished so far along with ctx.Err().
func (e *Evaluator) Run(ctx context.Context) (Summary, error) {
	e.mu.Lock()
	e.status = EvaluationStatus{Running: true, StartTime: time.Now()}
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.status.Running = false
		e.status.EndTime = time.Now()
		e.mu.Unlock()
	}()

	stats, err := e.openStats()
	if err != nil {
		return Summary{}, err
	}
	if stats != nil {
		defer stats.close()
	}

	for ep := 1; ep <= e.config.Episodes; ep++ {
		e.mu.Lock()
		e.status.Episode = ep
		e.mu.Unlock()

		episodeID := uuid.New().String()
		e.tracker.BeginEpisode()
		res, err := RunEpisode(ctx, e.env, e.policy, e.config.MaxStepsPerEpisode,
			func(step int, action core.Action, result core.StepResult) {
				if step > 0 {
					e.tracker.ObserveStep(action, result)
				}
				e.publish(episodeID, ep, step, action, result)
				if e.config.StepDelay > 0 {
					select {
					case <-ctx.Done():
					case <-time.After(e.config.StepDelay):
					}
				}
			})
		if err != nil {
			return e.tracker.Summary(), fmt.Errorf("episode %d: %w", ep, err)
		}
		if res.Truncated {
			e.tracker.Truncate()
		}

		e.mu.Lock()
		e.status.Completed = ep
		e.mu.Unlock()

		if !e.config.Quiet {
			log.Printf("Episode %d: Reward = %.2f, Steps = %d, Success = %s",
				ep, res.Reward, res.Length, outcome(res))
		}
		if stats != nil {
			rates := e.tracker.SuccessRates()
			stats.write(ep, episodeID, res, rates[len(rates)-1])
		}
	}

	summary := e.tracker.Summary()
	LogSummary(e.config.Name, summary)
	return summary, nil
}

func (e *Evaluator) publish(episodeID string, episode, step int, action core.Action, result core.StepResult) {
	if e.broker == nil {
		return
	}
	event := messaging.StepEvent{
		EpisodeID: episodeID,
		Episode:   episode,
		Step:      step,
		Reward:    result.Reward,
		Done:      result.Done,
		Info:      result.Info,
		State:     e.env.RenderState(),
	}
	if step > 0 {
		event.Action = action.String()
	}
	if err := e.broker.Publish(messaging.Message{
		From:      EvaluatorID,
		Content:   event,
		Timestamp: time.Now(),
	}); err != nil {
		log.Printf("Warning: Failed to publish step %d of episode %d: %v", step, episode, err)
	}
}

func outcome(res EpisodeResult) string {
	switch {
	case res.Success:
		return "Yes"
	case res.Truncated:
		return "No (truncated)"
	default:
		return "No"
	}
}

type statsWriter struct {
	file *os.File
	csv  *csv.Writer
}

var statsHeader = []string{"Episode", "EpisodeID", "Reward", "Length", "Success", "Truncated", "SuccessRate"}

func (e *Evaluator) openStats() (*statsWriter, error) {
	if e.config.StatsPath == "" {
		return nil, nil
	}
	f, err := os.Create(e.config.StatsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create stats file: %w", err)
	}
	w := &statsWriter{file: f, csv: csv.NewWriter(f)}
	if err := w.csv.Write(statsHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write stats header: %w", err)
	}
	return w, nil
}

func (w *statsWriter) write(episode int, episodeID string, res EpisodeResult, successRate float64) {
	row := []string{
		strconv.Itoa(episode),
		episodeID,
		strconv.FormatFloat(res.Reward, 'f', 2, 64),
		strconv.Itoa(res.Length),
		strconv.FormatBool(res.Success),
		strconv.FormatBool(res.Truncated),
		strconv.FormatFloat(successRate, 'f', 3, 64),
	}
	if err := w.csv.Write(row); err != nil {
		log.Printf("Warning: Failed to write to stats file: %v", err)
	}
}

func (w *statsWriter) close() {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		log.Printf("Warning: Failed to flush stats file: %v", err)
	}
	w.file.Close()
}
