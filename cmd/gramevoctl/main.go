package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"gramevo/internal/storage"
	gramapi "gramevo/pkg/gramevo"
)

const defaultDBPath = "gramevo.db"

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "fitness":
		return runFitness(ctx, args[1:])
	case "generations":
		return runGenerations(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := gramapi.New(gramapi.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Init(ctx); err != nil {
		return err
	}

	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional run config JSON path")
	grammarPath := fs.String("grammar", "", "grammar file path (BNF)")
	mode := fs.String("mode", "max", "fitness mode: max|min|center")
	target := fs.Float64("target", 0, "target fitness for -stop-on-target and center mode")
	stopOnTarget := fs.Bool("stop-on-target", false, "stop once the best fitness reaches the target")
	population := fs.Int("pop", 0, "population size (0 uses the engine default)")
	generations := fs.Int("gens", 0, "generation count (0 uses the engine default)")
	seed := fs.Int64("seed", 1, "rng seed")
	maxFitnessRate := fs.Float64("max-fitness-rate", 0, "fraction of the population bred each generation")
	mutationRate := fs.Float64("mutation-rate", 0, "per-bit mutation probability")
	children := fs.Int("children", 0, "children kept per crossover: 1 or 2")
	startGene := fs.Int("start-gene", 0, "initial gene length in codons")
	maxGene := fs.Int("max-gene", 0, "maximum gene length in codons")
	maxProgram := fs.Int("max-program", 0, "maximum generated program length")
	fitnessFail := fs.Float64("fitness-fail", 0, "fitness assigned to failed members")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	jsonOut := fs.Bool("json", false, "emit run summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	req, err := loadOrDefaultRunRequest(*configPath)
	if err != nil {
		return err
	}
	overrideFromFlags(&req, setFlags, map[string]any{
		"mode":             *mode,
		"target":           *target,
		"stop-on-target":   *stopOnTarget,
		"pop":              *population,
		"gens":             *generations,
		"seed":             *seed,
		"max-fitness-rate": *maxFitnessRate,
		"mutation-rate":    *mutationRate,
		"children":         *children,
		"start-gene":       *startGene,
		"max-gene":         *maxGene,
		"max-program":      *maxProgram,
		"fitness-fail":     *fitnessFail,
	})
	if *configPath == "" {
		req.Mode = *mode
		req.Seed = *seed
	}
	if *grammarPath != "" {
		text, err := os.ReadFile(*grammarPath)
		if err != nil {
			return fmt.Errorf("read grammar: %w", err)
		}
		req.GrammarText = string(text)
	}
	if req.GrammarText == "" {
		return errors.New("run requires -grammar or a config with grammar_text")
	}

	client, err := gramapi.New(gramapi.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	fmt.Printf("run_id=%s\n", summary.RunID)
	fmt.Printf("generations=%d evaluations=%s\n",
		summary.Generations, humanize.Comma(evaluationCount(&req, summary.Generations)))
	fmt.Printf("best_fitness=%.6f\n", summary.BestFitness)
	fmt.Printf("best_program:\n%s\n", summary.BestProgram)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := gramapi.New(gramapi.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	runs, err := client.Runs(ctx, gramapi.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	for _, item := range runs {
		fmt.Printf("run_id=%s created=%s mode=%s seed=%d pop=%d gens=%d best=%.6f\n",
			item.RunID, displayTime(item.CreatedAtUTC), item.Mode, item.Seed,
			item.Population, item.Generations, item.BestFitness)
	}
	return nil
}

func runFitness(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fitness", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	limit := fs.Int("limit", 50, "max generations to print (<=0 for all)")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	jsonOut := fs.Bool("json", false, "emit fitness history as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return errors.New("fitness requires --run-id")
	}

	client, err := gramapi.New(gramapi.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	history, err := client.FitnessHistory(ctx, gramapi.FitnessHistoryRequest{RunID: *runID, Limit: *limit})
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Println("no fitness history")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(history)
	}

	for i, best := range history {
		fmt.Printf("generation=%d best_fitness=%.6f\n", i, best)
	}
	return nil
}

func runGenerations(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("generations", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	jsonOut := fs.Bool("json", false, "emit generation statistics as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return errors.New("generations requires --run-id")
	}

	client, err := gramapi.New(gramapi.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	generations, err := client.Generations(ctx, *runID)
	if err != nil {
		return err
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(generations)
	}

	for _, record := range generations {
		fmt.Printf("generation=%d best=%.6f worst=%.6f mean=%.6f median=%.6f\n",
			record.Generation, record.Best, record.Worst, record.Mean, record.Median)
	}
	return nil
}

// evaluationCount estimates total program evaluations: every member is scored
// once per evaluated generation, including the final one.
func evaluationCount(req *gramapi.RunRequest, generations int) int64 {
	population := req.Population
	if population <= 0 {
		population = 50
	}
	return int64(population) * int64(generations+1)
}

func displayTime(createdAtUTC string) string {
	t, err := time.Parse(time.RFC3339, createdAtUTC)
	if err != nil {
		return createdAtUTC
	}
	return humanize.Time(t)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: gramevoctl <init|run|runs|fitness|generations> [flags]", msg)
}
