package environment

import "errors"

var (
	// ErrInvalidAction is returned for actions outside UP..STAY
	ErrInvalidAction = errors.New("invalid action")
	// ErrEpisodeAlreadyDone is returned when stepping a terminated episode; reset first
	ErrEpisodeAlreadyDone = errors.New("episode already done")
	// ErrEpisodeNotStarted is returned when stepping before the first successful reset
	ErrEpisodeNotStarted = errors.New("episode not started")
	// ErrUnsatisfiableSpawnConstraints is returned when the monster rejection
	// sampler runs out of attempts, typically on grids too small for the spacing rules
	ErrUnsatisfiableSpawnConstraints = errors.New("unsatisfiable spawn constraints")
)
