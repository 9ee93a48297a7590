package evo

import (
	"fmt"
	"iter"
	"math/rand"
)

// ReplacementStrategy chooses eviction targets: member indices whose slots
// the bred pool overwrites. It always leans toward the weakest members.
type ReplacementStrategy interface {
	Targets(rng *rand.Rand) (iter.Seq[int], error)
}

// ReplacementDeleteWorst evicts the N worst members outright, worst first.
type ReplacementDeleteWorst struct {
	list *FitnessList
}

func NewReplacementDeleteWorst(list *FitnessList) *ReplacementDeleteWorst {
	return &ReplacementDeleteWorst{list: list}
}

func (rd *ReplacementDeleteWorst) Targets(_ *rand.Rand) (iter.Seq[int], error) {
	if rd.list.Len() == 0 {
		return nil, ErrEmptyList
	}
	sorted := rd.list.Sorted()
	return func(yield func(int) bool) {
		for _, row := range sorted {
			if !yield(row.MemberIndex) {
				return
			}
		}
	}, nil
}

// ReplacementTournament runs inverted contests: each round keeps the loser,
// so weaker members are evicted with higher probability while strong ones
// occasionally fall too.
type ReplacementTournament struct {
	list *FitnessList
	size int
}

func NewReplacementTournament(list *FitnessList, size int) (*ReplacementTournament, error) {
	if size < 1 || size > list.Len() {
		return nil, fmt.Errorf("%w: tournament size %d outside [1, %d]",
			ErrInvalidConfig, size, list.Len())
	}
	return &ReplacementTournament{list: list, size: size}, nil
}

func (rt *ReplacementTournament) Targets(rng *rand.Rand) (iter.Seq[int], error) {
	// Weights rank fit members high; minimizing the contest keeps the loser.
	tournament, err := NewTournament(NewFitness(rt.list).weights(false), rt.size, false)
	if err != nil {
		return nil, err
	}
	return capMembers(tournament.Winners(rng), rt.list.Rows(), rt.list.Len()), nil
}
