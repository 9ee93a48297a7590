package evo

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func take(t *testing.T, strategy Strategy, rng *rand.Rand, n int) []int {
	t.Helper()
	out := make([]int, 0, n)
	selected, err := strategy.Select(rng)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	for index := range selected {
		out = append(out, index)
		if len(out) == n {
			break
		}
	}
	return out
}

func TestAscendingPairsSortsByWeight(t *testing.T) {
	pairs := NewSelection([]float64{3, 1, 2}).AscendingPairs()
	wantIndex := []int{1, 2, 0}
	for i, pair := range pairs {
		if pair.Index != wantIndex[i] {
			t.Fatalf("pair order %v, want indices %v", pairs, wantIndex)
		}
	}
}

func TestRouletteOnlySamplesPositiveWeight(t *testing.T) {
	s := NewSelection([]float64{0, 0, 5})
	rng := rand.New(rand.NewSource(1))
	seq, err := s.Roulette(rng)
	if err != nil {
		t.Fatalf("roulette: %v", err)
	}
	count := 0
	for index := range seq {
		if index != 2 {
			t.Fatalf("drew zero-weight index %d", index)
		}
		count++
		if count == 50 {
			break
		}
	}
}

func TestRouletteFavorsHeavyWeights(t *testing.T) {
	s := NewSelection([]float64{1, 3})
	rng := rand.New(rand.NewSource(2))
	seq, err := s.Roulette(rng)
	if err != nil {
		t.Fatalf("roulette: %v", err)
	}
	heavy, total := 0, 0
	for index := range seq {
		if index == 1 {
			heavy++
		}
		total++
		if total == 2000 {
			break
		}
	}
	// Expected share is 0.75; a wide band keeps the test stable.
	if heavy < 1300 || heavy > 1700 {
		t.Fatalf("heavy index drawn %d of 2000, want near 1500", heavy)
	}
}

func TestRouletteRejectsNonPositiveTotal(t *testing.T) {
	if _, err := NewSelection([]float64{0, 0}).Roulette(rand.New(rand.NewSource(1))); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("got %v, want ErrInvalidConfig", err)
	}
	if _, err := NewSelection(nil).Roulette(rand.New(rand.NewSource(1))); !errors.Is(err, ErrEmptyList) {
		t.Fatalf("got %v, want ErrEmptyList", err)
	}
}

func TestTournamentFullSizeAlwaysFindsExtreme(t *testing.T) {
	weights := []float64{2, 9, 4, 7}
	rng := rand.New(rand.NewSource(3))

	maximizer, err := NewTournament(weights, len(weights), true)
	if err != nil {
		t.Fatalf("tournament: %v", err)
	}
	for winner := range maximizer.Winners(rng) {
		if winner != 1 {
			t.Fatalf("winner %d, want 1", winner)
		}
		break
	}

	minimizer, err := NewTournament(weights, len(weights), false)
	if err != nil {
		t.Fatalf("tournament: %v", err)
	}
	for winner := range minimizer.Winners(rng) {
		if winner != 0 {
			t.Fatalf("winner %d, want 0", winner)
		}
		break
	}
}

func TestTournamentSizeBounds(t *testing.T) {
	if _, err := NewTournament([]float64{1, 2}, 3, true); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("oversized: got %v, want ErrInvalidConfig", err)
	}
	if _, err := NewTournament([]float64{1, 2}, 0, true); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("zero size: got %v, want ErrInvalidConfig", err)
	}
}

func TestFitnessWeightsFollowMode(t *testing.T) {
	maximize := listOf(Maximize, 2, 4)
	weights := NewFitness(maximize).weights(false)
	if weights[0] != 2 || weights[1] != 4 {
		t.Fatalf("maximize weights %v, want raw scores", weights)
	}

	minimize := listOf(Minimize, 2, 4)
	weights = NewFitness(minimize).weights(false)
	if !almostEqual(weights[0], 0.5) || !almostEqual(weights[1], 0.25) {
		t.Fatalf("minimize weights %v, want [0.5 0.25]", weights)
	}

	center := listOf(Center, 1, 3)
	center.SetTarget(3)
	weights = NewFitness(center).weights(false)
	if weights[1] <= weights[0] {
		t.Fatalf("center weights %v, want on-target member heaviest", weights)
	}
}

func TestFitnessWeightsInversionFlipsDirection(t *testing.T) {
	fl := listOf(Maximize, 2, 4)
	weights := NewFitness(fl).weights(true)
	if !almostEqual(weights[0], 0.5) || !almostEqual(weights[1], 0.25) {
		t.Fatalf("inverted weights %v, want [0.5 0.25]", weights)
	}
}

func TestFitnessElitesCountAndOrder(t *testing.T) {
	fl := listOf(Maximize, 1, 5, 3, 2, 4)
	elites, err := NewFitnessElites(fl, 0.4)
	if err != nil {
		t.Fatalf("elites: %v", err)
	}
	got := take(t, elites, nil, 10)
	want := []int{1, 4}
	if len(got) != len(want) {
		t.Fatalf("elite members %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("elite members %v, want best-first %v", got, want)
		}
	}
}

func TestFitnessElitesNeverEmpty(t *testing.T) {
	fl := listOf(Maximize, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	elites, err := NewFitnessElites(fl, 0.01)
	if err != nil {
		t.Fatalf("elites: %v", err)
	}
	got := take(t, elites, nil, 10)
	if len(got) != 1 || got[0] != 9 {
		t.Fatalf("elite members %v, want just the best member 9", got)
	}
}

func TestFitnessElitesRateBounds(t *testing.T) {
	fl := listOf(Maximize, 1, 2)
	if _, err := NewFitnessElites(fl, 0); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("zero rate: got %v, want ErrInvalidConfig", err)
	}
	if _, err := NewFitnessElites(fl, 1.5); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("rate above one: got %v, want ErrInvalidConfig", err)
	}
}

func TestFitnessTournamentSamplesFitMembers(t *testing.T) {
	fl := listOf(Maximize, 2, 9, 4)
	ft, err := NewFitnessTournament(fl, 3)
	if err != nil {
		t.Fatalf("tournament: %v", err)
	}
	got := take(t, ft, rand.New(rand.NewSource(4)), 3)
	for _, member := range got {
		if member != 1 {
			t.Fatalf("full-size tournament chose member %d, want 1", member)
		}
	}
}

func TestFitnessTournamentSizeValidation(t *testing.T) {
	fl := listOf(Maximize, 1, 2)
	if _, err := NewFitnessTournament(fl, 5); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("got %v, want ErrInvalidConfig", err)
	}
}

func TestProportionateDistributionLinear(t *testing.T) {
	fl := listOf(Maximize, 1, 3)
	fp, err := NewFitnessProportionate(fl, ScaleLinear, 0)
	if err != nil {
		t.Fatalf("proportionate: %v", err)
	}
	dist, err := fp.distribution([]float64{1, 3})
	if err != nil {
		t.Fatalf("distribution: %v", err)
	}
	if !almostEqual(dist[0], 0.25) || !almostEqual(dist[1], 0.75) {
		t.Fatalf("distribution %v, want [0.25 0.75]", dist)
	}
}

func TestProportionateDistributionExponential(t *testing.T) {
	fl := listOf(Maximize, 1, 2, 3)
	fp, err := NewFitnessProportionate(fl, ScaleExponential, 0)
	if err != nil {
		t.Fatalf("proportionate: %v", err)
	}
	// Default power 2: [1 4 9] normalized.
	dist, err := fp.distribution([]float64{1, 2, 3})
	if err != nil {
		t.Fatalf("distribution: %v", err)
	}
	want := []float64{1.0 / 14, 4.0 / 14, 9.0 / 14}
	for i := range want {
		if !almostEqual(dist[i], want[i]) {
			t.Fatalf("distribution %v, want %v", dist, want)
		}
	}
}

func TestProportionateDistributionLogarithmic(t *testing.T) {
	fl := listOf(Maximize, 1, 2)
	fp, err := NewFitnessProportionate(fl, ScaleLogarithmic, 0)
	if err != nil {
		t.Fatalf("proportionate: %v", err)
	}
	dist, err := fp.distribution([]float64{math.E, math.E * math.E})
	if err != nil {
		t.Fatalf("distribution: %v", err)
	}
	if !almostEqual(dist[0], 1.0/3) || !almostEqual(dist[1], 2.0/3) {
		t.Fatalf("distribution %v, want [1/3 2/3]", dist)
	}
}

func TestProportionateDistributionTruncated(t *testing.T) {
	fl := listOf(Maximize, 1, 5, 24)
	fp, err := NewFitnessProportionate(fl, ScaleTruncated, 2)
	if err != nil {
		t.Fatalf("proportionate: %v", err)
	}
	dist, err := fp.distribution([]float64{1, 5, 24})
	if err != nil {
		t.Fatalf("distribution: %v", err)
	}
	want := []float64{0, 5.0 / 29, 24.0 / 29}
	for i := range want {
		if !almostEqual(dist[i], want[i]) {
			t.Fatalf("distribution %v, want %v", dist, want)
		}
	}
}

func TestProportionateRejectsMixedSign(t *testing.T) {
	fl := listOf(Maximize, -1, 2)
	fp, err := NewFitnessProportionate(fl, ScaleLinear, 0)
	if err != nil {
		t.Fatalf("proportionate: %v", err)
	}
	if _, err := fp.Select(rand.New(rand.NewSource(5))); !errors.Is(err, ErrMixedSign) {
		t.Fatalf("got %v, want ErrMixedSign", err)
	}
}

func TestLinearRankingWeights(t *testing.T) {
	fl := listOf(Maximize, 1, 2, 3)
	fr, err := NewFitnessLinearRanking(fl, 0.6)
	if err != nil {
		t.Fatalf("linear ranking: %v", err)
	}
	// worstFactor 0.6, N=3: expected weights 0.2, 0.3333, 0.4667 by rank.
	n := 3
	want := []float64{0.2, 1.0 / 3, 7.0 / 15}
	for rank := 0; rank < n; rank++ {
		got := (fr.worstFactor + float64(rank)*(2-2*fr.worstFactor)/float64(n-1)) / float64(n)
		if !almostEqual(got, want[rank]) {
			t.Fatalf("rank %d weight %v, want %v", rank, got, want[rank])
		}
	}
}

func TestLinearRankingSingleMember(t *testing.T) {
	fl := listOf(Maximize, 7)
	fr, err := NewFitnessLinearRanking(fl, 0.6)
	if err != nil {
		t.Fatalf("linear ranking: %v", err)
	}
	got := take(t, fr, rand.New(rand.NewSource(6)), 3)
	if len(got) != 1 || got[0] != 0 {
		t.Fatalf("single-member selection %v, want [0]", got)
	}
}

func TestLinearRankingWorstFactorBounds(t *testing.T) {
	fl := listOf(Maximize, 1, 2)
	if _, err := NewFitnessLinearRanking(fl, -0.1); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("got %v, want ErrInvalidConfig", err)
	}
}

func TestTruncationRankingOnlySamplesEligible(t *testing.T) {
	fl := listOf(Maximize, 1, 4, 2, 3)
	fr, err := NewFitnessTruncationRanking(fl, 0.5)
	if err != nil {
		t.Fatalf("truncation ranking: %v", err)
	}
	// Eligible ranks are the top round(0.5*4)=2 members: scores 4 and 3.
	got := take(t, fr, rand.New(rand.NewSource(7)), 40)
	for _, member := range got {
		if member != 1 && member != 3 {
			t.Fatalf("sampled ineligible member %d", member)
		}
	}
}

func TestSelectYieldsAtMostOneListLength(t *testing.T) {
	fl := listOf(Maximize, 1, 2, 3)
	ft, err := NewFitnessTournament(fl, 2)
	if err != nil {
		t.Fatalf("tournament: %v", err)
	}
	got := take(t, ft, rand.New(rand.NewSource(8)), 100)
	if len(got) != 3 {
		t.Fatalf("one Select call yielded %d indices, want 3", len(got))
	}
}
