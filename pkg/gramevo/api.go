// Package gramevo is the embeddable client for running grammatical
// evolution experiments and querying their persisted results.
package gramevo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gramevo/internal/evo"
	"gramevo/internal/grammar"
	"gramevo/internal/model"
	"gramevo/internal/storage"
)

const defaultDBPath = "gramevo.db"

type Options struct {
	StoreKind string
	DBPath    string
}

type Client struct {
	store storage.Store
}

// RunRequest configures one evolution run. Zero values fall back to the
// engine defaults, so callers only set what they care about.
type RunRequest struct {
	GrammarText  string
	Mode         string
	TargetScore  float64
	StopOnTarget bool

	Population  int
	Generations int
	Seed        int64

	MaxFitnessRate       float64
	MutationRate         float64
	ChildrenPerCrossover int

	StartGeneLength  int
	MaxGeneLength    int
	MaxProgramLength int
	FitnessFail      float64

	BuildTimeout   time.Duration
	ExecuteTimeout time.Duration
}

type RunSummary struct {
	RunID          string
	Generations    int
	BestFitness    float64
	BestProgram    string
	FitnessHistory []float64
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	CreatedAtUTC string
	Mode         string
	Seed         int64
	Population   int
	Generations  int
	BestFitness  float64
}

type FitnessHistoryRequest struct {
	RunID string
	Limit int
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{store: store}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.GrammarText == "" {
		return RunSummary{}, errors.New("grammar text is required")
	}
	mode, err := modeFromName(req.Mode)
	if err != nil {
		return RunSummary{}, err
	}
	table, err := grammar.Parse(req.GrammarText)
	if err != nil {
		return RunSummary{}, err
	}

	cfg := evo.DefaultConfig()
	cfg.Grammar = table
	cfg.Mode = mode
	cfg.TargetScore = req.TargetScore
	cfg.StopOnTarget = req.StopOnTarget
	cfg.Seed = req.Seed
	if req.Population > 0 {
		cfg.PopulationSize = req.Population
	}
	if req.Generations > 0 {
		cfg.MaxGenerations = req.Generations
	}
	if req.MaxFitnessRate > 0 {
		cfg.MaxFitnessRate = req.MaxFitnessRate
	}
	if req.MutationRate > 0 {
		cfg.MutationRate = req.MutationRate
	}
	if req.ChildrenPerCrossover > 0 {
		cfg.ChildrenPerCrossover = req.ChildrenPerCrossover
	}
	if req.StartGeneLength > 0 {
		cfg.StartGeneLength = req.StartGeneLength
	}
	if req.MaxGeneLength > 0 {
		cfg.MaxGeneLength = req.MaxGeneLength
	}
	if req.MaxProgramLength > 0 {
		cfg.MaxProgramLength = req.MaxProgramLength
	}
	if req.FitnessFail != 0 {
		cfg.FitnessFail = req.FitnessFail
	}
	if req.BuildTimeout > 0 {
		cfg.BuildTimeout = req.BuildTimeout
	}
	if req.ExecuteTimeout > 0 {
		cfg.ExecuteTimeout = req.ExecuteTimeout
	}

	engine, err := evo.NewEngine(cfg)
	if err != nil {
		return RunSummary{}, err
	}

	if _, err := engine.Run(ctx); err != nil {
		return RunSummary{}, err
	}
	generation := engine.Generation()

	best, err := engine.BestMember()
	if err != nil {
		return RunSummary{}, err
	}
	bestFitness, err := engine.FitnessList().BestValue()
	if err != nil {
		return RunSummary{}, err
	}
	history, err := engine.FitnessHistory("best")
	if err != nil {
		return RunSummary{}, err
	}

	runID := uuid.NewString()
	run := model.RunRecord{
		ID:             runID,
		CreatedAtUTC:   time.Now().UTC().Format(time.RFC3339),
		Mode:           modeName(mode),
		Seed:           req.Seed,
		PopulationSize: cfg.PopulationSize,
		Generations:    generation,
		BestFitness:    bestFitness,
		BestProgram:    best.Program(),
	}
	storage.Stamp(&run)
	if err := c.store.SaveRun(ctx, run); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveFitnessHistory(ctx, runID, history); err != nil {
		return RunSummary{}, err
	}
	generations, err := generationRecords(engine.History())
	if err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveGenerations(ctx, runID, generations); err != nil {
		return RunSummary{}, err
	}

	return RunSummary{
		RunID:          runID,
		Generations:    generation,
		BestFitness:    bestFitness,
		BestProgram:    best.Program(),
		FitnessHistory: history,
	}, nil
}

func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if len(runs) > req.Limit {
		runs = runs[:req.Limit]
	}

	out := make([]RunItem, 0, len(runs))
	for _, run := range runs {
		out = append(out, RunItem{
			RunID:        run.ID,
			CreatedAtUTC: run.CreatedAtUTC,
			Mode:         run.Mode,
			Seed:         run.Seed,
			Population:   run.PopulationSize,
			Generations:  run.Generations,
			BestFitness:  run.BestFitness,
		})
	}
	return out, nil
}

func (c *Client) FitnessHistory(ctx context.Context, req FitnessHistoryRequest) ([]float64, error) {
	if req.RunID == "" {
		return nil, errors.New("fitness history requires run id")
	}
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}

	history, ok, err := c.store.GetFitnessHistory(ctx, req.RunID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("fitness history not found for run id: %s", req.RunID)
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return history, nil
}

func (c *Client) Generations(ctx context.Context, runID string) ([]model.GenerationRecord, error) {
	if runID == "" {
		return nil, errors.New("generations requires run id")
	}

	generations, ok, err := c.store.GetGenerations(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("generations not found for run id: %s", runID)
	}
	return generations, nil
}

func generationRecords(snapshots []*evo.FitnessList) ([]model.GenerationRecord, error) {
	out := make([]model.GenerationRecord, 0, len(snapshots))
	for i, snapshot := range snapshots {
		best, err := snapshot.BestValue()
		if err != nil {
			return nil, fmt.Errorf("generation %d: %w", i, err)
		}
		worst, err := snapshot.WorstValue()
		if err != nil {
			return nil, fmt.Errorf("generation %d: %w", i, err)
		}
		mean, err := snapshot.Mean()
		if err != nil {
			return nil, fmt.Errorf("generation %d: %w", i, err)
		}
		median, err := snapshot.Median()
		if err != nil {
			return nil, fmt.Errorf("generation %d: %w", i, err)
		}
		out = append(out, model.GenerationRecord{
			Generation: i,
			Best:       best,
			Worst:      worst,
			Mean:       mean,
			Median:     median,
		})
	}
	return out, nil
}

func modeFromName(name string) (evo.Mode, error) {
	switch name {
	case "", "max":
		return evo.Maximize, nil
	case "min":
		return evo.Minimize, nil
	case "center":
		return evo.Center, nil
	default:
		return 0, fmt.Errorf("unsupported fitness mode: %s", name)
	}
}

func modeName(mode evo.Mode) string {
	switch mode {
	case evo.Minimize:
		return "min"
	case evo.Center:
		return "center"
	default:
		return "max"
	}
}
