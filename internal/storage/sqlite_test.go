//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"gramevo/internal/model"
)

func TestSQLiteStoreRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "gramevo.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	run := model.RunRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion},
		ID:              "run-1",
		CreatedAtUTC:    "2026-01-05T12:00:00Z",
		Mode:            "max",
		Seed:            42,
		PopulationSize:  50,
		Generations:     20,
		BestFitness:     4,
		BestProgram:     "fitness = 2 + 2\nreport_fitness(fitness)",
	}
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("save run: %v", err)
	}

	loaded, ok, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if !ok {
		t.Fatalf("expected run %s", run.ID)
	}
	if loaded.ID != run.ID || loaded.BestProgram != run.BestProgram {
		t.Fatalf("unexpected run loaded: %+v", loaded)
	}

	run.BestFitness = 9
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("upsert run: %v", err)
	}
	loaded, _, err = store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run after upsert: %v", err)
	}
	if loaded.BestFitness != 9 {
		t.Fatalf("upsert did not replace payload: %+v", loaded)
	}
}

func TestSQLiteStoreListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "gramevo.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	older := model.RunRecord{ID: "run-old", CreatedAtUTC: "2026-01-05T12:00:00Z"}
	newer := model.RunRecord{ID: "run-new", CreatedAtUTC: "2026-01-06T12:00:00Z"}
	if err := store.SaveRun(ctx, older); err != nil {
		t.Fatalf("save older run: %v", err)
	}
	if err := store.SaveRun(ctx, newer); err != nil {
		t.Fatalf("save newer run: %v", err)
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-new" || runs[1].ID != "run-old" {
		t.Fatalf("unexpected run order: %+v", runs)
	}
}

func TestSQLiteStoreHistoryAndGenerations(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "gramevo.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	history := []float64{1, 3, 5}
	if err := store.SaveFitnessHistory(ctx, "run-1", history); err != nil {
		t.Fatalf("save history: %v", err)
	}
	loadedHistory, ok, err := store.GetFitnessHistory(ctx, "run-1")
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if !ok || len(loadedHistory) != 3 || loadedHistory[2] != 5 {
		t.Fatalf("unexpected history: %+v", loadedHistory)
	}

	generations := []model.GenerationRecord{
		{Generation: 0, Best: 3, Worst: 1, Mean: 2, Median: 2},
	}
	if err := store.SaveGenerations(ctx, "run-1", generations); err != nil {
		t.Fatalf("save generations: %v", err)
	}
	loadedGenerations, ok, err := store.GetGenerations(ctx, "run-1")
	if err != nil {
		t.Fatalf("get generations: %v", err)
	}
	if !ok || len(loadedGenerations) != 1 || loadedGenerations[0].Best != 3 {
		t.Fatalf("unexpected generations: %+v", loadedGenerations)
	}
}

func TestSQLiteStoreRequiresPath(t *testing.T) {
	store := NewSQLiteStore("")
	if err := store.Init(context.Background()); err == nil {
		t.Fatal("expected init error for empty path")
	}
}
