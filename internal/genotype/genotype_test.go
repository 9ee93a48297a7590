package genotype

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"gramevo/internal/grammar"
)

const testGrammar = `
<S> ::=
a = <value>
report_fitness(a)

<value> ::= 1|2|3
`

func testConfig(t *testing.T, seed int64) Config {
	t.Helper()
	table, err := grammar.Parse(testGrammar)
	if err != nil {
		t.Fatalf("parse grammar: %v", err)
	}
	return Config{
		StartGeneLength:  4,
		MaxGeneLength:    4,
		Grammar:          table,
		MaxProgramLength: 500,
		FitnessFail:      -1000,
		Wrap:             true,
		BuildTimeout:     20 * time.Second,
		ExecuteTimeout:   20 * time.Second,
		Rand:             rand.New(rand.NewSource(seed)),
	}
}

func bitsFor(codons ...int) string {
	var sb strings.Builder
	for _, codon := range codons {
		fmt.Fprintf(&sb, "%08b", codon)
	}
	return sb.String()
}

func mustGenotype(t *testing.T, cfg Config) *Genotype {
	t.Helper()
	g, err := New(cfg)
	if err != nil {
		t.Fatalf("new genotype: %v", err)
	}
	return g
}

func drawAll(t *testing.T, g *Genotype, n int) []int {
	t.Helper()
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		codon, err := g.NextCodon()
		if err != nil {
			t.Fatalf("codon %d: %v", i, err)
		}
		out = append(out, codon)
	}
	return out
}

func TestNewValidatesConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero start length", func(c *Config) { c.StartGeneLength = 0 }},
		{"max below start", func(c *Config) { c.MaxGeneLength = 2 }},
		{"zero program length", func(c *Config) { c.MaxProgramLength = 0 }},
		{"missing grammar", func(c *Config) { c.Grammar = nil }},
		{"missing rand", func(c *Config) { c.Rand = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, 1)
			tt.mutate(&cfg)
			if _, err := New(cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("got %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestNewGeneratesGeneOfStartLength(t *testing.T) {
	g := mustGenotype(t, testConfig(t, 7))
	if got := len(g.BinaryGene()); got != 4*codonBits {
		t.Fatalf("binary gene length %d, want %d", got, 4*codonBits)
	}
	if got := len(g.DecimalGene()); got != 4 {
		t.Fatalf("decimal gene length %d, want 4", got)
	}
}

func TestSetBinaryGeneTruncatesToCodonMultiple(t *testing.T) {
	g := mustGenotype(t, testConfig(t, 7))
	if err := g.SetBinaryGene(bitsFor(3, 34) + "101"); err != nil {
		t.Fatalf("set binary gene: %v", err)
	}
	if got, want := g.BinaryGene(), bitsFor(3, 34); got != want {
		t.Fatalf("binary gene %q, want %q", got, want)
	}
	decimal := g.DecimalGene()
	if len(decimal) != 2 || decimal[0] != 3 || decimal[1] != 34 {
		t.Fatalf("decimal gene %v, want [3 34]", decimal)
	}
}

func TestSetBinaryGeneRejectsBadInput(t *testing.T) {
	g := mustGenotype(t, testConfig(t, 7))
	if err := g.SetBinaryGene("00110012"); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("non-binary digit: got %v, want ErrInvalidConfig", err)
	}
	if err := g.SetBinaryGene("0101"); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("short gene: got %v, want ErrInvalidConfig", err)
	}
}

func TestNextCodonWrapWithExtension(t *testing.T) {
	cfg := testConfig(t, 7)
	cfg.MaxGeneLength = 5
	cfg.Extend = true
	g := mustGenotype(t, cfg)
	if err := g.SetBinaryGene(bitsFor(3, 34, 5, 6)); err != nil {
		t.Fatalf("set binary gene: %v", err)
	}

	got := drawAll(t, g, 5)
	want := []int{3, 34, 5, 6, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("draw sequence %v, want %v", got, want)
		}
	}

	decimal := g.DecimalGene()
	if len(decimal) != 5 || decimal[4] != 3 {
		t.Fatalf("extended gene %v, want [3 34 5 6 3]", decimal)
	}
}

func TestNextCodonWrapWithoutExtension(t *testing.T) {
	cfg := testConfig(t, 7)
	g := mustGenotype(t, cfg)
	if err := g.SetBinaryGene(bitsFor(3, 34, 5, 6)); err != nil {
		t.Fatalf("set binary gene: %v", err)
	}

	got := drawAll(t, g, 6)
	want := []int{3, 34, 5, 6, 3, 34}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("draw sequence %v, want %v", got, want)
		}
	}
	if n := len(g.DecimalGene()); n != 4 {
		t.Fatalf("gene grew to %d codons without extension", n)
	}
}

func TestNextCodonWithoutWrapExhausts(t *testing.T) {
	cfg := testConfig(t, 7)
	cfg.Wrap = false
	g := mustGenotype(t, cfg)
	if err := g.SetBinaryGene(bitsFor(3, 34, 5, 6)); err != nil {
		t.Fatalf("set binary gene: %v", err)
	}

	drawAll(t, g, 4)
	if _, err := g.NextCodon(); !errors.Is(err, ErrExhausted) {
		t.Fatalf("fifth draw: got %v, want ErrExhausted", err)
	}
}

func TestResetCursorReplaysSequence(t *testing.T) {
	cfg := testConfig(t, 7)
	g := mustGenotype(t, cfg)
	if err := g.SetBinaryGene(bitsFor(3, 34, 5, 6)); err != nil {
		t.Fatalf("set binary gene: %v", err)
	}

	first := drawAll(t, g, 6)
	g.ResetCursor()
	second := drawAll(t, g, 6)
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("replay diverged: %v vs %v", first, second)
		}
	}
}

func TestMutateSingleFlipsAtMostOneBit(t *testing.T) {
	cfg := testConfig(t, 11)
	g := mustGenotype(t, cfg)
	before := g.BinaryGene()

	if err := g.Mutate(1.0, MutateSingle); err != nil {
		t.Fatalf("mutate: %v", err)
	}
	after := g.BinaryGene()

	flips := 0
	for i := range before {
		if before[i] != after[i] {
			flips++
		}
	}
	if flips != 1 {
		t.Fatalf("flipped %d bits, want exactly 1 at rate 1.0", flips)
	}
	if n := len(g.DecimalGene()); n != len(after)/codonBits {
		t.Fatalf("decimal gene has %d codons for %d bits", n, len(after))
	}
}

func TestMutateMultipleAtFullRateComplementsGene(t *testing.T) {
	g := mustGenotype(t, testConfig(t, 11))
	before := g.BinaryGene()

	if err := g.Mutate(1.0, MutateMultiple); err != nil {
		t.Fatalf("mutate: %v", err)
	}
	after := g.BinaryGene()
	for i := range before {
		if before[i] == after[i] {
			t.Fatalf("bit %d unchanged at rate 1.0", i)
		}
	}
}

func TestMutateZeroRateIsIdentity(t *testing.T) {
	g := mustGenotype(t, testConfig(t, 11))
	before := g.BinaryGene()
	if err := g.Mutate(0, MutateMultiple); err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if g.BinaryGene() != before {
		t.Fatal("gene changed at rate 0")
	}
}

func TestMutateRejectsRateOutsideUnitInterval(t *testing.T) {
	g := mustGenotype(t, testConfig(t, 11))
	if err := g.Mutate(-0.1, MutateSingle); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("negative rate: got %v, want ErrInvalidConfig", err)
	}
	if err := g.Mutate(1.1, MutateSingle); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("rate above one: got %v, want ErrInvalidConfig", err)
	}
}

func TestCrossoverChildrenResplice(t *testing.T) {
	cfg := testConfig(t, 13)
	cfg.MaxGeneLength = 8
	parent1 := mustGenotype(t, cfg)
	parent2 := mustGenotype(t, cfg)
	if err := parent1.SetBinaryGene(bitsFor(3, 34, 5, 6)); err != nil {
		t.Fatalf("set parent1: %v", err)
	}
	if err := parent2.SetBinaryGene(bitsFor(200, 100, 50, 25, 12, 6)); err != nil {
		t.Fatalf("set parent2: %v", err)
	}

	rng := rand.New(rand.NewSource(13))
	child1, child2, crosspoint, err := Crossover(rng, parent1, parent2)
	if err != nil {
		t.Fatalf("crossover: %v", err)
	}

	minLength := min(len(parent1.BinaryGene()), len(parent2.BinaryGene()))
	if crosspoint < 2 || crosspoint > minLength-2 {
		t.Fatalf("crosspoint %d outside [2, %d]", crosspoint, minLength-2)
	}

	// Re-splicing the children at the same crosspoint must reproduce the
	// parents exactly, in one order or the other.
	respliced1 := child1.BinaryGene()[:crosspoint] + child2.BinaryGene()[crosspoint:]
	respliced2 := child2.BinaryGene()[:crosspoint] + child1.BinaryGene()[crosspoint:]
	p1, p2 := parent1.BinaryGene(), parent2.BinaryGene()
	straight := respliced1 == p1 && respliced2 == p2
	swapped := respliced1 == p2 && respliced2 == p1
	if !straight && !swapped {
		t.Fatalf("resplice does not reproduce parents at crosspoint %d", crosspoint)
	}

	for i, child := range []*Genotype{child1, child2} {
		if len(child.BinaryGene())%codonBits != 0 {
			t.Fatalf("child %d gene length %d not a codon multiple", i, len(child.BinaryGene()))
		}
		if n := len(child.DecimalGene()); n != len(child.BinaryGene())/codonBits {
			t.Fatalf("child %d decimal view out of sync: %d codons, %d bits", i, n, len(child.BinaryGene()))
		}
	}
}

func TestCrossoverLeavesParentsIntact(t *testing.T) {
	cfg := testConfig(t, 17)
	parent1 := mustGenotype(t, cfg)
	parent2 := mustGenotype(t, cfg)
	p1, p2 := parent1.BinaryGene(), parent2.BinaryGene()

	rng := rand.New(rand.NewSource(17))
	if _, _, _, err := Crossover(rng, parent1, parent2); err != nil {
		t.Fatalf("crossover: %v", err)
	}
	if parent1.BinaryGene() != p1 || parent2.BinaryGene() != p2 {
		t.Fatal("crossover mutated a parent gene")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	g := mustGenotype(t, testConfig(t, 19))
	clone := g.Clone()

	if err := clone.Mutate(1.0, MutateMultiple); err != nil {
		t.Fatalf("mutate clone: %v", err)
	}
	if g.BinaryGene() == clone.BinaryGene() {
		t.Fatal("clone mutation reached the original")
	}

	clone.grammar.Set("<value>", []string{"9"})
	alts, err := g.grammar.Alternatives("<value>")
	if err != nil {
		t.Fatalf("alternatives: %v", err)
	}
	if len(alts) == 1 && alts[0] == "9" {
		t.Fatal("clone grammar edit reached the original")
	}
}

func TestMemberIdentityReassignment(t *testing.T) {
	cfg := testConfig(t, 23)
	cfg.MemberIndex = 3
	g := mustGenotype(t, cfg)
	if g.MemberIndex() != 3 {
		t.Fatalf("member index %d, want 3", g.MemberIndex())
	}
	g.SetMemberIndex(7)
	g.SetGeneration(2)
	if g.MemberIndex() != 7 || g.Generation() != 2 {
		t.Fatalf("got member %d generation %d, want 7 and 2", g.MemberIndex(), g.Generation())
	}
}
