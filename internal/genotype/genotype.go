// Package genotype implements the genetic material of a grammatical-evolution
// individual: a binary gene with a decimal codon view, the codon cursor with
// wrap/extend semantics, the gene-to-program mapping against a private grammar
// copy, and the bit-level genetic operators.
package genotype

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"gramevo/internal/grammar"
	"gramevo/internal/runner"
)

const codonBits = 8

var (
	ErrExhausted      = errors.New("genotype exhausted")
	ErrMappingTimeout = errors.New("mapping deadline exceeded")
	ErrProgramTooLong = errors.New("program exceeds max length")
	ErrInvalidBool    = errors.New("boolean value must be literal true or false")
	ErrInvalidConfig  = errors.New("invalid genotype config")
)

// MutationType selects between single-point and per-bit mutation.
type MutationType int

const (
	// MutateSingle flips exactly one uniformly random bit with probability
	// equal to the mutation rate.
	MutateSingle MutationType = iota
	// MutateMultiple flips every bit independently with probability equal to
	// the mutation rate.
	MutateMultiple
)

// Config carries everything a genotype needs to stand alone: the engine hands
// each individual a complete copy of the operating parameters so fitness
// computation never reaches back into shared state.
type Config struct {
	StartGeneLength  int // decimal codons
	MaxGeneLength    int // decimal codons
	MemberIndex      int
	Grammar          grammar.Table
	MaxProgramLength int
	FitnessFail      float64
	Wrap             bool
	Extend           bool
	BuildTimeout     time.Duration
	ExecuteTimeout   time.Duration
	Runner           runner.Runner
	Logger           *slog.Logger
	Rand             *rand.Rand
}

// Genotype is one member of the population. It owns a private grammar copy so
// per-individual grammar mutation never leaks across siblings.
type Genotype struct {
	memberIndex int
	generation  int

	binaryGene  string
	decimalGene []int

	position   int
	sequenceNo int

	grammar    grammar.Table
	preprogram string
	program    string

	fitness     float64
	fitnessFail float64

	maxGeneLength    int
	maxProgramLength int
	wrap             bool
	extend           bool
	buildTimeout     time.Duration
	executeTimeout   time.Duration

	start  time.Time
	errors []string

	runner runner.Runner
	logger *slog.Logger
	rng    *rand.Rand
}

// New builds a genotype with a random gene of StartGeneLength codons.
func New(cfg Config) (*Genotype, error) {
	if cfg.StartGeneLength <= 0 {
		return nil, fmt.Errorf("%w: start gene length must be > 0", ErrInvalidConfig)
	}
	if cfg.MaxGeneLength < cfg.StartGeneLength {
		return nil, fmt.Errorf("%w: max gene length %d < start gene length %d",
			ErrInvalidConfig, cfg.MaxGeneLength, cfg.StartGeneLength)
	}
	if cfg.MaxProgramLength <= 0 {
		return nil, fmt.Errorf("%w: max program length must be > 0", ErrInvalidConfig)
	}
	if cfg.Grammar == nil {
		return nil, fmt.Errorf("%w: grammar is required", ErrInvalidConfig)
	}
	if cfg.Rand == nil {
		return nil, fmt.Errorf("%w: random source is required", ErrInvalidConfig)
	}
	if cfg.Runner == nil {
		cfg.Runner = runner.NewInterpreter()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	preprogram, err := cfg.Grammar.Alternatives(grammar.StartSymbol)
	if err != nil {
		return nil, err
	}

	g := &Genotype{
		memberIndex:      cfg.MemberIndex,
		grammar:          cfg.Grammar.Clone(),
		preprogram:       preprogram[0],
		fitness:          cfg.FitnessFail,
		fitnessFail:      cfg.FitnessFail,
		maxGeneLength:    cfg.MaxGeneLength,
		maxProgramLength: cfg.MaxProgramLength,
		wrap:             cfg.Wrap,
		extend:           cfg.Extend,
		buildTimeout:     cfg.BuildTimeout,
		executeTimeout:   cfg.ExecuteTimeout,
		runner:           cfg.Runner,
		logger:           cfg.Logger,
		rng:              cfg.Rand,
	}
	g.randomizeGene(cfg.StartGeneLength)
	return g, nil
}

func (g *Genotype) randomizeGene(codons int) {
	var sb strings.Builder
	sb.Grow(codons * codonBits)
	for i := 0; i < codons*codonBits; i++ {
		if g.rng.Intn(2) == 1 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	g.binaryGene = sb.String()
	g.regenerateDecimalGene()
}

// SetBinaryGene replaces the gene, truncating the bit string to a multiple of
// eight and regenerating the decimal view. The cursor is reset.
func (g *Genotype) SetBinaryGene(bits string) error {
	for i := 0; i < len(bits); i++ {
		if bits[i] != '0' && bits[i] != '1' {
			return fmt.Errorf("%w: binary gene may contain only 0 and 1", ErrInvalidConfig)
		}
	}
	trimmed := bits[:len(bits)-len(bits)%codonBits]
	if len(trimmed) == 0 {
		return fmt.Errorf("%w: binary gene needs at least %d bits", ErrInvalidConfig, codonBits)
	}
	g.binaryGene = trimmed
	g.regenerateDecimalGene()
	return nil
}

func (g *Genotype) regenerateDecimalGene() {
	codons := len(g.binaryGene) / codonBits
	g.decimalGene = make([]int, codons)
	for i := 0; i < codons; i++ {
		chunk := g.binaryGene[i*codonBits : (i+1)*codonBits]
		value, _ := strconv.ParseInt(chunk, 2, 32)
		g.decimalGene[i] = int(value)
	}
	g.ResetCursor()
}

// resynthesizeBinaryGene rebuilds the bit string from the decimal gene after
// the gene has grown through extension.
func (g *Genotype) resynthesizeBinaryGene() {
	var sb strings.Builder
	sb.Grow(len(g.decimalGene) * codonBits)
	for _, codon := range g.decimalGene {
		fmt.Fprintf(&sb, "%08b", codon)
	}
	g.binaryGene = sb.String()
}

func (g *Genotype) BinaryGene() string   { return g.binaryGene }
func (g *Genotype) DecimalGene() []int   { return append([]int(nil), g.decimalGene...) }
func (g *Genotype) MemberIndex() int     { return g.memberIndex }
func (g *Genotype) Generation() int      { return g.generation }
func (g *Genotype) Fitness() float64     { return g.fitness }
func (g *Genotype) FitnessFail() float64 { return g.fitnessFail }
func (g *Genotype) Errors() []string     { return append([]string(nil), g.errors...) }

// Program returns the last mapped program text; valid only after mapping.
func (g *Genotype) Program() string { return g.program }

// Preprogram returns the raw statement block the gene is mapped against.
func (g *Genotype) Preprogram() string { return g.preprogram }

// SetMemberIndex reassigns the population slot identity. Replacement uses it
// when a bred genotype takes over a victim slot.
func (g *Genotype) SetMemberIndex(index int) { g.memberIndex = index }

func (g *Genotype) SetGeneration(generation int) { g.generation = generation }

// ResetCursor rewinds the codon cursor so the gene replays the exact same
// choice sequence on the next mapping.
func (g *Genotype) ResetCursor() {
	g.position = 0
	g.sequenceNo = 0
}

// NextCodon returns the decimal gene value at the cursor and advances it.
// sequenceNo counts every draw regardless of wrapping and enforces the
// non-wrap cap; extension appends the wrapped codon once per pass over the
// current gene length, bounded by the max gene length.
func (g *Genotype) NextCodon() (int, error) {
	if !g.wrap && g.sequenceNo >= g.maxGeneLength {
		return 0, fmt.Errorf("%w: %d codons drawn", ErrExhausted, g.sequenceNo)
	}
	if g.position >= len(g.decimalGene) {
		return 0, fmt.Errorf("%w: cursor past gene end", ErrExhausted)
	}

	length := len(g.decimalGene)
	codon := g.decimalGene[g.position]
	if g.extend && g.sequenceNo == length && length < g.maxGeneLength {
		g.decimalGene = append(g.decimalGene, codon)
	}

	g.position++
	g.sequenceNo++
	if g.position == length && g.wrap {
		g.position = 0
	}
	return codon, nil
}

// Clone deep-copies the genotype, including its private grammar.
func (g *Genotype) Clone() *Genotype {
	out := *g
	out.decimalGene = append([]int(nil), g.decimalGene...)
	out.grammar = g.grammar.Clone()
	out.errors = append([]string(nil), g.errors...)
	return &out
}

// Mutate applies the configured mutation type at the given rate.
func (g *Genotype) Mutate(rate float64, mutationType MutationType) error {
	if rate < 0 || rate > 1 {
		return fmt.Errorf("%w: mutation rate %v outside [0, 1]", ErrInvalidConfig, rate)
	}
	switch mutationType {
	case MutateSingle:
		if g.rng.Float64() < rate {
			g.flipBit(g.rng.Intn(len(g.binaryGene)))
		}
	case MutateMultiple:
		bits := []byte(g.binaryGene)
		for i := range bits {
			if g.rng.Float64() < rate {
				bits[i] = flipped(bits[i])
			}
		}
		g.binaryGene = string(bits)
	default:
		return fmt.Errorf("%w: unknown mutation type %d", ErrInvalidConfig, mutationType)
	}
	g.regenerateDecimalGene()
	return nil
}

func (g *Genotype) flipBit(position int) {
	bits := []byte(g.binaryGene)
	bits[position] = flipped(bits[position])
	g.binaryGene = string(bits)
}

func flipped(bit byte) byte {
	if bit == '0' {
		return '1'
	}
	return '0'
}

// Crossover breeds two children by exchanging gene tails at a crosspoint
// drawn uniformly from [2, min(len1, len2)-2]. Parent labels are swapped at
// random first, so either parent may contribute either head. Children are
// truncated to a multiple of eight bits. The chosen crosspoint is returned so
// callers can audit or replay the exchange.
func Crossover(rng *rand.Rand, parent1, parent2 *Genotype) (*Genotype, *Genotype, int, error) {
	if rng == nil {
		return nil, nil, 0, fmt.Errorf("%w: random source is required", ErrInvalidConfig)
	}
	if rng.Intn(2) == 1 {
		parent1, parent2 = parent2, parent1
	}

	child1 := parent1.Clone()
	child2 := parent2.Clone()

	bits1 := child1.binaryGene
	bits2 := child2.binaryGene
	minLength := min(len(bits1), len(bits2))
	if minLength < 4 {
		return nil, nil, 0, fmt.Errorf("%w: genes too short to cross", ErrInvalidConfig)
	}
	crosspoint := 2 + rng.Intn(minLength-3)

	crossed1 := bits1[:crosspoint] + bits2[crosspoint:]
	crossed2 := bits2[:crosspoint] + bits1[crosspoint:]
	if err := child1.SetBinaryGene(crossed1); err != nil {
		return nil, nil, 0, err
	}
	if err := child2.SetBinaryGene(crossed2); err != nil {
		return nil, nil, 0, err
	}
	return child1, child2, crosspoint, nil
}
