// Package evo implements the generational search: the fitness scoreboard,
// the selection and replacement strategy framework, and the engine state
// machine that drives evaluation, breeding and replacement.
package evo

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrInvalidConfig = errors.New("invalid evolution config")
	ErrEmptyList     = errors.New("fitness list is empty")
	ErrMixedSign     = errors.New("fitness weights mix signs")
)

// Mode selects the direction of the fitness comparison.
type Mode int

const (
	// Maximize treats higher scores as better.
	Maximize Mode = iota
	// Minimize treats lower scores as better.
	Minimize
	// Center treats scores closest to the target value as better.
	Center
)

func (m Mode) String() string {
	switch m {
	case Maximize:
		return "maximize"
	case Minimize:
		return "minimize"
	case Center:
		return "center"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Row is one scoreboard entry. MemberIndex is the stable population slot the
// score belongs to; row order always mirrors population order.
type Row struct {
	Score       float64
	MemberIndex int
}

// FitnessList is the per-generation scoreboard. Best and worst are defined by
// the mode: maximize ranks raw scores descending, minimize ascending, center
// by absolute distance to the target.
type FitnessList struct {
	mode   Mode
	target float64
	rows   []Row
}

func NewFitnessList(mode Mode) *FitnessList {
	return &FitnessList{mode: mode}
}

func (fl *FitnessList) Mode() Mode          { return fl.mode }
func (fl *FitnessList) SetMode(mode Mode)   { fl.mode = mode }
func (fl *FitnessList) Target() float64     { return fl.target }
func (fl *FitnessList) SetTarget(t float64) { fl.target = t }

func (fl *FitnessList) Len() int { return len(fl.rows) }

// Set replaces the scoreboard contents.
func (fl *FitnessList) Set(rows []Row) {
	fl.rows = append(fl.rows[:0:0], rows...)
}

func (fl *FitnessList) Append(row Row) {
	fl.rows = append(fl.rows, row)
}

// SetScore updates the row at a population slot.
func (fl *FitnessList) SetScore(slot int, score float64) error {
	if slot < 0 || slot >= len(fl.rows) {
		return fmt.Errorf("%w: slot %d out of range", ErrInvalidConfig, slot)
	}
	fl.rows[slot].Score = score
	return nil
}

// Rows returns a copy of the scoreboard in population order.
func (fl *FitnessList) Rows() []Row {
	return append([]Row(nil), fl.rows...)
}

// Values returns the raw scores in population order.
func (fl *FitnessList) Values() []float64 {
	out := make([]float64, len(fl.rows))
	for i, row := range fl.rows {
		out[i] = row.Score
	}
	return out
}

// Clone deep-copies the scoreboard; history snapshots rely on this.
func (fl *FitnessList) Clone() *FitnessList {
	return &FitnessList{
		mode:   fl.mode,
		target: fl.target,
		rows:   append([]Row(nil), fl.rows...),
	}
}

// keyed returns the comparison key for a score under the current mode.
// Under center mode rows are ranked by distance to the target; the other
// modes rank by the raw score.
func (fl *FitnessList) keyed(score float64) float64 {
	if fl.mode == Center {
		return math.Abs(score - fl.target)
	}
	return score
}

// betterKey reports whether key a ranks ahead of key b under the mode.
func (fl *FitnessList) betterKey(a, b float64) bool {
	if fl.mode == Maximize {
		return a > b
	}
	return a < b
}

func (fl *FitnessList) bestRow() (Row, error) {
	if len(fl.rows) == 0 {
		return Row{}, ErrEmptyList
	}
	best := fl.rows[0]
	for _, row := range fl.rows[1:] {
		if fl.betterKey(fl.keyed(row.Score), fl.keyed(best.Score)) {
			best = row
		}
	}
	return best, nil
}

func (fl *FitnessList) worstRow() (Row, error) {
	if len(fl.rows) == 0 {
		return Row{}, ErrEmptyList
	}
	worst := fl.rows[0]
	for _, row := range fl.rows[1:] {
		if fl.betterKey(fl.keyed(worst.Score), fl.keyed(row.Score)) {
			worst = row
		}
	}
	return worst, nil
}

// BestMember returns the member index of the best row under the mode.
func (fl *FitnessList) BestMember() (int, error) {
	row, err := fl.bestRow()
	return row.MemberIndex, err
}

// BestValue returns the raw score of the best member. Under center mode this
// is the score itself, not the distance to the target.
func (fl *FitnessList) BestValue() (float64, error) {
	row, err := fl.bestRow()
	return row.Score, err
}

func (fl *FitnessList) WorstMember() (int, error) {
	row, err := fl.worstRow()
	return row.MemberIndex, err
}

func (fl *FitnessList) WorstValue() (float64, error) {
	row, err := fl.worstRow()
	return row.Score, err
}

// MinValue and friends ignore the mode entirely.
func (fl *FitnessList) MinValue() (float64, error) {
	row, err := fl.minRow()
	return row.Score, err
}

func (fl *FitnessList) MinMember() (int, error) {
	row, err := fl.minRow()
	return row.MemberIndex, err
}

func (fl *FitnessList) MaxValue() (float64, error) {
	row, err := fl.maxRow()
	return row.Score, err
}

func (fl *FitnessList) MaxMember() (int, error) {
	row, err := fl.maxRow()
	return row.MemberIndex, err
}

func (fl *FitnessList) minRow() (Row, error) {
	if len(fl.rows) == 0 {
		return Row{}, ErrEmptyList
	}
	minimum := fl.rows[0]
	for _, row := range fl.rows[1:] {
		if row.Score < minimum.Score {
			minimum = row
		}
	}
	return minimum, nil
}

func (fl *FitnessList) maxRow() (Row, error) {
	if len(fl.rows) == 0 {
		return Row{}, ErrEmptyList
	}
	maximum := fl.rows[0]
	for _, row := range fl.rows[1:] {
		if row.Score > maximum.Score {
			maximum = row
		}
	}
	return maximum, nil
}

func (fl *FitnessList) Mean() (float64, error) {
	if len(fl.rows) == 0 {
		return 0, ErrEmptyList
	}
	total := 0.0
	for _, row := range fl.rows {
		total += row.Score
	}
	return total / float64(len(fl.rows)), nil
}

func (fl *FitnessList) Median() (float64, error) {
	if len(fl.rows) == 0 {
		return 0, ErrEmptyList
	}
	values := fl.Values()
	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid], nil
	}
	return (values[mid-1] + values[mid]) / 2, nil
}

// Stddev returns the sample standard deviation of the scores.
func (fl *FitnessList) Stddev() (float64, error) {
	if len(fl.rows) < 2 {
		return 0, fmt.Errorf("%w: stddev needs at least two rows", ErrEmptyList)
	}
	mean, err := fl.Mean()
	if err != nil {
		return 0, err
	}
	total := 0.0
	for _, row := range fl.rows {
		diff := row.Score - mean
		total += diff * diff
	}
	return math.Sqrt(total / float64(len(fl.rows)-1)), nil
}

// Sorted returns the rows ordered worst first, best last under the mode.
// Stable, so ties keep population order.
func (fl *FitnessList) Sorted() []Row {
	out := fl.Rows()
	sort.SliceStable(out, func(i, j int) bool {
		return fl.betterKey(fl.keyed(out[j].Score), fl.keyed(out[i].Score))
	})
	return out
}
