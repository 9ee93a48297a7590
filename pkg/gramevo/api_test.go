package gramevo

import (
	"context"
	"strings"
	"testing"
)

const additionGrammar = "<S> ::=\n" +
	"fitness = <value> + <value>\n" +
	"report_fitness(fitness)\n" +
	"<value> ::= 1|2|3\n"

func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := New(Options{StoreKind: "memory"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	if err := client.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return client
}

func TestClientRunPersistsResults(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	summary, err := client.Run(ctx, RunRequest{
		GrammarText: additionGrammar,
		Mode:        "max",
		Population:  8,
		Generations: 2,
		Seed:        42,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RunID == "" {
		t.Fatal("expected run id")
	}
	if summary.BestFitness < 2 || summary.BestFitness > 6 {
		t.Fatalf("best fitness outside grammar range: %f", summary.BestFitness)
	}
	if !strings.Contains(summary.BestProgram, "report_fitness") {
		t.Fatalf("unexpected best program: %q", summary.BestProgram)
	}
	if len(summary.FitnessHistory) != summary.Generations+1 {
		t.Fatalf("expected %d history entries, got %d", summary.Generations+1, len(summary.FitnessHistory))
	}

	runs, err := client.Runs(ctx, RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != summary.RunID {
		t.Fatalf("unexpected run listing: %+v", runs)
	}
	if runs[0].Mode != "max" || runs[0].Population != 8 {
		t.Fatalf("unexpected run item: %+v", runs[0])
	}

	history, err := client.FitnessHistory(ctx, FitnessHistoryRequest{RunID: summary.RunID})
	if err != nil {
		t.Fatalf("fitness history: %v", err)
	}
	if len(history) != len(summary.FitnessHistory) {
		t.Fatalf("history length mismatch: %d vs %d", len(history), len(summary.FitnessHistory))
	}

	generations, err := client.Generations(ctx, summary.RunID)
	if err != nil {
		t.Fatalf("generations: %v", err)
	}
	if len(generations) != summary.Generations+1 {
		t.Fatalf("expected %d generation records, got %d", summary.Generations+1, len(generations))
	}
	for i, record := range generations {
		if record.Generation != i {
			t.Fatalf("unexpected generation numbering: %+v", record)
		}
		if record.Best < record.Worst {
			t.Fatalf("best below worst in maximize run: %+v", record)
		}
	}
}

func TestClientRunStopsOnTarget(t *testing.T) {
	client := newTestClient(t)

	summary, err := client.Run(context.Background(), RunRequest{
		GrammarText:  additionGrammar,
		Mode:         "max",
		TargetScore:  2,
		StopOnTarget: true,
		Population:   8,
		Generations:  10,
		Seed:         7,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.BestFitness < 2 {
		t.Fatalf("run stopped below target: %f", summary.BestFitness)
	}
}

func TestClientRunRequiresGrammar(t *testing.T) {
	client := newTestClient(t)

	_, err := client.Run(context.Background(), RunRequest{})
	if err == nil {
		t.Fatal("expected error for missing grammar")
	}
}

func TestClientRunRejectsUnknownMode(t *testing.T) {
	client := newTestClient(t)

	_, err := client.Run(context.Background(), RunRequest{
		GrammarText: additionGrammar,
		Mode:        "sideways",
	})
	if err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestClientFitnessHistoryNotFound(t *testing.T) {
	client := newTestClient(t)

	_, err := client.FitnessHistory(context.Background(), FitnessHistoryRequest{RunID: "missing"})
	if err == nil {
		t.Fatal("expected error for unknown run id")
	}
}
