package experiment

import (
	"log"

	"gonum.org/v1/gonum/stat"

	"github.com/boristopalov/gridhunt/pkg/core"
)

var _ core.StepObserver = (*Tracker)(nil)

// Summary aggregates the episodes recorded by a Tracker
type Summary struct {
	Episodes    int     `json:"episodes"`
	MeanReward  float64 `json:"mean_reward"`
	StdReward   float64 `json:"std_reward"`
	MinReward   float64 `json:"min_reward"`
	MaxReward   float64 `json:"max_reward"`
	MeanLength  float64 `json:"mean_length"`
	Successes   int     `json:"successes"`
	SuccessRate float64 `json:"success_rate"`
	Truncated   int     `json:"truncated"`
}

// Tracker records cumulative reward, length and success per episode.
// It is fed step by step and closes an episode when a step reports done
// or when the harness truncates it.
type Tracker struct {
	rewards      []float64
	lengths      []float64
	successRates []float64
	successes    int
	truncated    int

	currentReward float64
	currentLength int
}

func NewTracker() *Tracker {
	return &Tracker{}
}

func (t *Tracker) BeginEpisode() {
	t.currentReward = 0
	t.currentLength = 0
}

func (t *Tracker) ObserveStep(action core.Action, result core.StepResult) {
	t.currentReward += result.Reward
	t.currentLength++
	if result.Done {
		t.finish(result.Info.IsSuccess)
	}
}

// Truncate closes an episode that hit the step cap. It counts as a failure.
// Calling it with no steps observed since the last close is a no-op.
func (t *Tracker) Truncate() {
	if t.currentLength == 0 {
		return
	}
	t.truncated++
	t.finish(false)
}

func (t *Tracker) finish(success bool) {
	if success {
		t.successes++
	}
	t.rewards = append(t.rewards, t.currentReward)
	t.lengths = append(t.lengths, float64(t.currentLength))
	t.successRates = append(t.successRates, float64(t.successes)/float64(len(t.rewards)))
	t.currentReward = 0
	t.currentLength = 0
}

func (t *Tracker) Episodes() int {
	return len(t.rewards)
}

func (t *Tracker) Rewards() []float64 {
	out := make([]float64, len(t.rewards))
	copy(out, t.rewards)
	return out
}

func (t *Tracker) Lengths() []int {
	out := make([]int, len(t.lengths))
	for i, l := range t.lengths {
		out[i] = int(l)
	}
	return out
}

// SuccessRates holds the cumulative success rate after each episode
func (t *Tracker) SuccessRates() []float64 {
	out := make([]float64, len(t.successRates))
	copy(out, t.successRates)
	return out
}

// MovingAverage smooths episode rewards over a sliding window. Only full
// windows are reported, so the result has len(rewards)-window+1 entries.
func (t *Tracker) MovingAverage(window int) []float64 {
	if window < 1 || window > len(t.rewards) {
		return nil
	}
	out := make([]float64, 0, len(t.rewards)-window+1)
	for i := 0; i+window <= len(t.rewards); i++ {
		out = append(out, stat.Mean(t.rewards[i:i+window], nil))
	}
	return out
}

func (t *Tracker) Summary() Summary {
	s := Summary{
		Episodes:  len(t.rewards),
		Successes: t.successes,
		Truncated: t.truncated,
	}
	if s.Episodes == 0 {
		return s
	}
	s.MeanReward, s.StdReward = stat.PopMeanStdDev(t.rewards, nil)
	s.MeanLength = stat.Mean(t.lengths, nil)
	s.MinReward, s.MaxReward = t.rewards[0], t.rewards[0]
	for _, r := range t.rewards[1:] {
		if r < s.MinReward {
			s.MinReward = r
		}
		if r > s.MaxReward {
			s.MaxReward = r
		}
	}
	s.SuccessRate = float64(t.successes) / float64(s.Episodes)
	return s
}

// LogSummary prints a statistics block for the recorded episodes
func LogSummary(name string, s Summary) {
	log.Printf("\n=== %s Statistics ===", name)
	log.Printf("Episodes: %d", s.Episodes)
	log.Printf("Reward Metrics:")
	log.Printf("  Average Reward: %.2f", s.MeanReward)
	log.Printf("  Standard Deviation: %.2f", s.StdReward)
	log.Printf("  Range (min/max): %.2f / %.2f", s.MinReward, s.MaxReward)
	log.Printf("\nEpisode Metrics:")
	log.Printf("  Average Length: %.1f", s.MeanLength)
	log.Printf("  Successes: %d", s.Successes)
	log.Printf("  Truncated: %d", s.Truncated)
	log.Printf("  Success Rate: %.1f%%", s.SuccessRate*100)
	log.Printf("==========================\n")
}
