package genotype

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gramevo/internal/runner"
)

// nonterminalPattern matches an angle-bracket-delimited grammar token.
// Whitespace and nested brackets are excluded so comparison operators in
// generated text never match.
var nonterminalPattern = regexp.MustCompile(`<[^<>|\s]+>`)

// stoplist holds the reserved hook names. A nonterminal occurrence whose
// preceding text segment mentions one of these is left for run-time
// resolution instead of build-time substitution.
var stoplist = []string{"request_value", "report_fitness"}

type mapPhase int

const (
	phaseBuild mapPhase = iota
	phaseExecute
)

// mapText repeatedly substitutes nonterminal occurrences until a full pass
// makes no change. Each non-skipped occurrence draws one codon and selects
// alternatives[codon mod len(alternatives)], so every codon has a defined
// effect regardless of list length.
func (g *Genotype) mapText(text string, phase mapPhase) (string, error) {
	for {
		substituted := false
		matches := nonterminalPattern.FindAllStringIndex(text, -1)

		var sb strings.Builder
		sb.Grow(len(text))
		last := 0
		for _, match := range matches {
			segment := text[last:match[0]]
			sb.WriteString(segment)
			token := text[match[0]:match[1]]
			if phase == phaseBuild && onStoplist(segment) {
				sb.WriteString(token)
			} else {
				replacement, err := g.resolveNonterminal(token)
				if err != nil {
					return "", err
				}
				sb.WriteString(replacement)
				substituted = true
			}
			last = match[1]
		}
		sb.WriteString(text[last:])
		text = sb.String()

		if err := g.checkDeadline(phase); err != nil {
			return "", err
		}
		if len(text) > g.maxProgramLength {
			return "", fmt.Errorf("%w: %d > %d", ErrProgramTooLong, len(text), g.maxProgramLength)
		}
		if !substituted {
			return text, nil
		}
	}
}

func onStoplist(segment string) bool {
	for _, name := range stoplist {
		if strings.Contains(segment, name) {
			return true
		}
	}
	return false
}

func (g *Genotype) resolveNonterminal(token string) (string, error) {
	alternatives, err := g.grammar.Alternatives(token)
	if err != nil {
		return "", err
	}
	codon, err := g.NextCodon()
	if err != nil {
		return "", err
	}
	return alternatives[codon%len(alternatives)], nil
}

// checkDeadline enforces the cooperative wall-clock deadlines. It is called
// only at substitution-pass boundaries and hook invocations; a generated
// program that loops without calling a hook is not interruptible here.
func (g *Genotype) checkDeadline(phase mapPhase) error {
	if g.start.IsZero() {
		return nil
	}
	elapsed := time.Since(g.start)
	if phase == phaseBuild {
		if g.buildTimeout > 0 && elapsed > g.buildTimeout {
			return fmt.Errorf("%w: build phase after %s", ErrMappingTimeout, elapsed)
		}
		return nil
	}
	if g.executeTimeout > 0 && elapsed > g.executeTimeout {
		return fmt.Errorf("%w: execute phase after %s", ErrMappingTimeout, elapsed)
	}
	return nil
}

// RequestValue resolves a nonterminal at run time with the same codon-draw
// and modulo selection as build-time mapping, then coerces the result to the
// requested primitive type. It backs the request_value hook.
func (g *Genotype) RequestValue(name string, kind runner.Kind) (runner.Value, error) {
	resolved, err := g.mapText(name, phaseExecute)
	if err != nil {
		return runner.Nil(), err
	}
	return coerceValue(resolved, kind)
}

func coerceValue(text string, kind runner.Kind) (runner.Value, error) {
	switch kind {
	case runner.KindStr:
		return runner.Str(text), nil
	case runner.KindInt:
		if value, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64); err == nil {
			return runner.Num(float64(value)), nil
		}
		value, err := runner.EvalExpression(text)
		if err != nil {
			return runner.Nil(), err
		}
		f, err := value.Float()
		if err != nil {
			return runner.Nil(), err
		}
		return runner.Num(float64(int64(f))), nil
	case runner.KindFloat:
		if value, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil {
			return runner.Num(value), nil
		}
		value, err := runner.EvalExpression(text)
		if err != nil {
			return runner.Nil(), err
		}
		f, err := value.Float()
		if err != nil {
			return runner.Nil(), err
		}
		return runner.Num(f), nil
	case runner.KindBool:
		switch strings.TrimSpace(text) {
		case "true":
			return runner.Bool(true), nil
		case "false":
			return runner.Bool(false), nil
		default:
			return runner.Nil(), fmt.Errorf("%w: %q", ErrInvalidBool, text)
		}
	default:
		return runner.Nil(), fmt.Errorf("unsupported value kind %q", kind)
	}
}

// ComputeFitness maps the gene to program text and executes it. Mapping and
// execution failures are contained: they are logged, the fail-fitness value
// is recorded, and the generation continues. The returned score is always a
// finite assignment of the last reported fitness or the fail value.
func (g *Genotype) ComputeFitness(ctx context.Context) float64 {
	g.start = time.Now()
	g.errors = g.errors[:0]
	g.fitness = g.fitnessFail
	g.program = ""
	g.ResetCursor()

	// The gene may have grown during mapping or run-time resolution, so the
	// binary view is resynthesized even when the individual fails.
	defer func() {
		if g.extend {
			g.resynthesizeBinaryGene()
		}
	}()

	program, err := g.mapText(g.preprogram, phaseBuild)
	if err != nil {
		g.fail("mapping failed", err)
		return g.fitness
	}
	g.program = program

	reported := g.fitnessFail
	hooks := runner.Hooks{
		RequestValue:  g.RequestValue,
		ReportFitness: func(value float64) { reported = value },
	}
	if err := g.runner.Run(ctx, program, hooks); err != nil {
		g.fail("execution failed", err)
		return g.fitness
	}
	g.fitness = reported
	return g.fitness
}

func (g *Genotype) fail(stage string, err error) {
	g.errors = append(g.errors, err.Error())
	g.fitness = g.fitnessFail
	g.logger.Debug("genotype failure",
		"member", g.memberIndex,
		"generation", g.generation,
		"stage", stage,
		"err", err,
	)
}
