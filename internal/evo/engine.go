package evo

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"gramevo/internal/genotype"
	"gramevo/internal/grammar"
	"gramevo/internal/runner"
)

// State names the engine's position in the generational cycle.
type State int

const (
	StateIdle State = iota
	StateEvaluatingFitness
	StateRecordingHistory
	StateCheckingStop
	StateBreeding
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEvaluatingFitness:
		return "evaluating-fitness"
	case StateRecordingHistory:
		return "recording-history"
	case StateCheckingStop:
		return "checking-stop"
	case StateBreeding:
		return "breeding"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StopFunc is a custom stopping predicate over the current scoreboard. An
// error from it aborts the run; it is treated as a caller mistake, not a
// per-individual failure.
type StopFunc func(*FitnessList) (bool, error)

// Config carries the engine hyperparameters. DefaultConfig supplies the
// conventional starting values; NewEngine validates whatever it is handed.
type Config struct {
	PopulationSize int
	MaxGenerations int

	Grammar grammar.Table

	Mode Mode
	// TargetScore stops the run once the best value satisfies the mode
	// comparison. Only consulted when StopOnTarget is set.
	TargetScore  float64
	StopOnTarget bool
	StopFunc     StopFunc

	// MaxFitnessRate bounds the breeding pool at ceil(rate * population).
	MaxFitnessRate       float64
	MutationRate         float64
	MutationType         genotype.MutationType
	ChildrenPerCrossover int

	StartGeneLength  int
	MaxGeneLength    int
	MaxProgramLength int
	FitnessFail      float64
	Wrap             bool
	Extend           bool
	BuildTimeout     time.Duration
	ExecuteTimeout   time.Duration

	// DisableHistory turns off the per-generation scoreboard snapshots.
	DisableHistory bool

	Seed   int64
	Runner runner.Runner
	Logger *slog.Logger
}

// DefaultConfig returns the conventional hyperparameters: single mutation at
// rate 0.02, two children per crossover, half the population bred each
// generation, wrap and extend on, fail fitness -1000.
func DefaultConfig() Config {
	return Config{
		PopulationSize:       50,
		MaxGenerations:       20,
		Mode:                 Maximize,
		MaxFitnessRate:       0.5,
		MutationRate:         0.02,
		MutationType:         genotype.MutateSingle,
		ChildrenPerCrossover: 2,
		StartGeneLength:      20,
		MaxGeneLength:        50,
		MaxProgramLength:     5000,
		FitnessFail:          -1000,
		Wrap:                 true,
		Extend:               true,
		BuildTimeout:         20 * time.Second,
		ExecuteTimeout:       3600 * time.Second,
	}
}

// Engine owns the fixed-size population and its scoreboard and drives the
// generational state machine. It is not safe for concurrent use.
type Engine struct {
	cfg    Config
	rng    *rand.Rand
	logger *slog.Logger

	population  []*genotype.Genotype
	fitnessList *FitnessList
	history     []*FitnessList
	generation  int
	state       State

	fitnessStrategies     []Strategy
	replacementStrategies []ReplacementStrategy
}

func NewEngine(cfg Config) (*Engine, error) {
	if cfg.PopulationSize < 2 {
		return nil, fmt.Errorf("%w: population size %d must be >= 2", ErrInvalidConfig, cfg.PopulationSize)
	}
	if cfg.MaxGenerations <= 0 {
		return nil, fmt.Errorf("%w: max generations must be > 0", ErrInvalidConfig)
	}
	if cfg.Grammar == nil {
		return nil, fmt.Errorf("%w: grammar is required", ErrInvalidConfig)
	}
	if cfg.MaxFitnessRate <= 0 || cfg.MaxFitnessRate > 1 {
		return nil, fmt.Errorf("%w: max fitness rate %v outside (0, 1]", ErrInvalidConfig, cfg.MaxFitnessRate)
	}
	if cfg.MutationRate < 0 || cfg.MutationRate > 1 {
		return nil, fmt.Errorf("%w: mutation rate %v outside [0, 1]", ErrInvalidConfig, cfg.MutationRate)
	}
	if cfg.ChildrenPerCrossover != 1 && cfg.ChildrenPerCrossover != 2 {
		return nil, fmt.Errorf("%w: children per crossover %d must be 1 or 2", ErrInvalidConfig, cfg.ChildrenPerCrossover)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	rng := rand.New(rand.NewSource(cfg.Seed))

	fitnessList := NewFitnessList(cfg.Mode)
	if cfg.Mode == Center || cfg.StopOnTarget {
		fitnessList.SetTarget(cfg.TargetScore)
	}

	population := make([]*genotype.Genotype, cfg.PopulationSize)
	for i := range population {
		member, err := genotype.New(genotype.Config{
			StartGeneLength:  cfg.StartGeneLength,
			MaxGeneLength:    cfg.MaxGeneLength,
			MemberIndex:      i,
			Grammar:          cfg.Grammar,
			MaxProgramLength: cfg.MaxProgramLength,
			FitnessFail:      cfg.FitnessFail,
			Wrap:             cfg.Wrap,
			Extend:           cfg.Extend,
			BuildTimeout:     cfg.BuildTimeout,
			ExecuteTimeout:   cfg.ExecuteTimeout,
			Runner:           cfg.Runner,
			Logger:           cfg.Logger,
			Rand:             rng,
		})
		if err != nil {
			return nil, fmt.Errorf("member %d: %w", i, err)
		}
		population[i] = member
		fitnessList.Append(Row{Score: cfg.FitnessFail, MemberIndex: i})
	}

	return &Engine{
		cfg:         cfg,
		rng:         rng,
		logger:      cfg.Logger,
		population:  population,
		fitnessList: fitnessList,
		state:       StateIdle,
	}, nil
}

// SetFitnessStrategies installs the breeding-pool selection strategies, run
// in order each generation. Strategies are usually built against
// FitnessList() so they read live scores.
func (e *Engine) SetFitnessStrategies(strategies ...Strategy) {
	e.fitnessStrategies = strategies
}

// SetReplacementStrategies installs the eviction strategies, run in order.
func (e *Engine) SetReplacementStrategies(strategies ...ReplacementStrategy) {
	e.replacementStrategies = strategies
}

// FitnessList exposes the live scoreboard, primarily so strategies can be
// bound to it.
func (e *Engine) FitnessList() *FitnessList { return e.fitnessList }

func (e *Engine) Generation() int { return e.generation }

func (e *Engine) State() State { return e.state }

// Population returns the members in slot order. The genotypes themselves are
// shared, not copied.
func (e *Engine) Population() []*genotype.Genotype {
	return append([]*genotype.Genotype(nil), e.population...)
}

// History returns the per-generation scoreboard snapshots, oldest first.
func (e *Engine) History() []*FitnessList {
	return append([]*FitnessList(nil), e.history...)
}

// BestMember returns the genotype holding the best score under the mode.
func (e *Engine) BestMember() (*genotype.Genotype, error) {
	member, err := e.fitnessList.BestMember()
	if err != nil {
		return nil, err
	}
	return e.population[member], nil
}

func (e *Engine) WorstMember() (*genotype.Genotype, error) {
	member, err := e.fitnessList.WorstMember()
	if err != nil {
		return nil, err
	}
	return e.population[member], nil
}

// FitnessHistory extracts one statistic per recorded generation. Statistic
// is one of best, worst, min, max, mean, median, stddev.
func (e *Engine) FitnessHistory(statistic string) ([]float64, error) {
	out := make([]float64, 0, len(e.history))
	for generation, snapshot := range e.history {
		var value float64
		var err error
		switch statistic {
		case "best":
			value, err = snapshot.BestValue()
		case "worst":
			value, err = snapshot.WorstValue()
		case "min":
			value, err = snapshot.MinValue()
		case "max":
			value, err = snapshot.MaxValue()
		case "mean":
			value, err = snapshot.Mean()
		case "median":
			value, err = snapshot.Median()
		case "stddev":
			value, err = snapshot.Stddev()
		default:
			return nil, fmt.Errorf("%w: unknown statistic %q", ErrInvalidConfig, statistic)
		}
		if err != nil {
			return nil, fmt.Errorf("generation %d: %w", generation, err)
		}
		out = append(out, value)
	}
	return out, nil
}

// Run drives the state machine until Done and returns the best member index
// of the final scoreboard. Per-individual mapping and execution failures
// are contained inside fitness computation; a run always reaches Done even
// when every member fails, converging on the fail-fitness value.
func (e *Engine) Run(ctx context.Context) (int, error) {
	if len(e.fitnessStrategies) == 0 {
		elites, err := NewFitnessElites(e.fitnessList, 0.5)
		if err != nil {
			return 0, err
		}
		e.fitnessStrategies = []Strategy{elites}
	}
	if len(e.replacementStrategies) == 0 {
		e.replacementStrategies = []ReplacementStrategy{NewReplacementDeleteWorst(e.fitnessList)}
	}

	e.state = StateIdle
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		switch e.state {
		case StateIdle:
			e.state = StateEvaluatingFitness

		case StateEvaluatingFitness:
			if err := e.evaluate(ctx); err != nil {
				return 0, err
			}
			e.state = StateRecordingHistory

		case StateRecordingHistory:
			if !e.cfg.DisableHistory {
				e.history = append(e.history, e.fitnessList.Clone())
			}
			e.state = StateCheckingStop

		case StateCheckingStop:
			stop, err := e.shouldStop()
			if err != nil {
				return 0, err
			}
			if stop {
				e.state = StateDone
			} else {
				e.state = StateBreeding
			}

		case StateBreeding:
			if err := e.breed(ctx); err != nil {
				return 0, err
			}
			e.generation++
			e.state = StateIdle

		case StateDone:
			return e.fitnessList.BestMember()
		}
	}
}

func (e *Engine) evaluate(ctx context.Context) error {
	for slot, member := range e.population {
		if err := ctx.Err(); err != nil {
			return err
		}
		score := member.ComputeFitness(ctx)
		if err := e.fitnessList.SetScore(slot, score); err != nil {
			return err
		}
	}
	best, err := e.fitnessList.BestValue()
	if err != nil {
		return err
	}
	e.logger.Debug("generation evaluated",
		"generation", e.generation,
		"best", best,
	)
	return nil
}

func (e *Engine) shouldStop() (bool, error) {
	if e.generation >= e.cfg.MaxGenerations {
		return true, nil
	}
	if e.cfg.StopOnTarget {
		best, err := e.fitnessList.BestValue()
		if err != nil {
			return false, err
		}
		switch e.cfg.Mode {
		case Maximize:
			if best >= e.cfg.TargetScore {
				return true, nil
			}
		case Minimize:
			if best <= e.cfg.TargetScore {
				return true, nil
			}
		case Center:
			if math.Abs(best-e.cfg.TargetScore) <= e.cfg.TargetScore {
				return true, nil
			}
		}
	}
	if e.cfg.StopFunc != nil {
		return e.cfg.StopFunc(e.fitnessList)
	}
	return false, nil
}

// breed builds the pool, crosses and mutates it, then overwrites the chosen
// victim slots in place. The scoreboard is not touched here; the next
// evaluation pass rescores everything.
func (e *Engine) breed(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	poolSize := int(math.Ceil(e.cfg.MaxFitnessRate * float64(e.cfg.PopulationSize)))
	pool := make([]*genotype.Genotype, 0, poolSize)
	for _, strategy := range e.fitnessStrategies {
		if len(pool) >= poolSize {
			break
		}
		selected, err := strategy.Select(e.rng)
		if err != nil {
			return err
		}
		for member := range selected {
			pool = append(pool, e.population[member].Clone())
			if len(pool) >= poolSize {
				break
			}
		}
	}

	// Pair in pool order; an odd leftover does not breed. Children extend
	// the pool behind the selected survivors.
	bred := len(pool)
	for i := 0; i+1 < bred; i += 2 {
		first, second, _, err := genotype.Crossover(e.rng, pool[i], pool[i+1])
		if err != nil {
			return err
		}
		pool = append(pool, first)
		if e.cfg.ChildrenPerCrossover == 2 {
			pool = append(pool, second)
		}
	}
	// The whole pool mutates, survivor copies included, so selected members
	// re-enter the search perturbed rather than untouched.
	for _, member := range pool {
		if err := member.Mutate(e.cfg.MutationRate, e.cfg.MutationType); err != nil {
			return err
		}
	}
	if len(pool) == 0 {
		return nil
	}

	victims := make([]int, 0, len(pool))
	chosen := make(map[int]bool, len(pool))
	for _, strategy := range e.replacementStrategies {
		if len(victims) >= len(pool) {
			break
		}
		targets, err := strategy.Targets(e.rng)
		if err != nil {
			return err
		}
		for member := range targets {
			if chosen[member] {
				continue
			}
			chosen[member] = true
			victims = append(victims, member)
			if len(victims) >= len(pool) {
				break
			}
		}
	}

	for i, slot := range victims {
		replacement := pool[i]
		replacement.SetMemberIndex(slot)
		replacement.SetGeneration(e.generation + 1)
		e.population[slot] = replacement
	}
	e.logger.Debug("generation bred",
		"generation", e.generation,
		"pool", bred,
		"children", len(pool)-bred,
		"replaced", len(victims),
	)
	return nil
}
