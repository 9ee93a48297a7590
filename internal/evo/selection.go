package evo

import (
	"fmt"
	"iter"
	"math"
	"math/rand"
	"sort"
)

// Strategy produces a lazy sequence of member indices drawn from a fitness
// scoreboard. Callers pull until their target count is met; a single Select
// call yields at most one scoreboard length of indices so several strategies
// can share one breeding pool.
type Strategy interface {
	Select(rng *rand.Rand) (iter.Seq[int], error)
}

// WeightedIndex pairs a selection weight with its position in the weight list.
type WeightedIndex struct {
	Weight float64
	Index  int
}

// Selection is the sampling core: a flat weight list with roulette-wheel
// draws over the ascending cumulative sum.
type Selection struct {
	weights []float64
}

func NewSelection(weights []float64) *Selection {
	return &Selection{weights: append([]float64(nil), weights...)}
}

func (s *Selection) Weights() []float64 {
	return append([]float64(nil), s.weights...)
}

// AscendingPairs returns (weight, index) pairs ordered by ascending weight.
// Stable, so equal weights keep list order.
func (s *Selection) AscendingPairs() []WeightedIndex {
	pairs := make([]WeightedIndex, len(s.weights))
	for i, w := range s.weights {
		pairs[i] = WeightedIndex{Weight: w, Index: i}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].Weight < pairs[j].Weight
	})
	return pairs
}

// Roulette samples indices with replacement, proportionally to weight: each
// draw is uniform in [0, sum of weights) and walks the ascending cumulative
// sum until it is exceeded. The sequence is unbounded and restartable.
func (s *Selection) Roulette(rng *rand.Rand) (iter.Seq[int], error) {
	if len(s.weights) == 0 {
		return nil, fmt.Errorf("%w: no weights to sample", ErrEmptyList)
	}
	pairs := s.AscendingPairs()
	total := 0.0
	for _, pair := range pairs {
		total += pair.Weight
	}
	if total <= 0 {
		return nil, fmt.Errorf("%w: weight sum %v not positive", ErrInvalidConfig, total)
	}
	return func(yield func(int) bool) {
		for {
			draw := rng.Float64() * total
			cumulative := 0.0
			chosen := pairs[len(pairs)-1].Index
			for _, pair := range pairs {
				cumulative += pair.Weight
				if cumulative > draw {
					chosen = pair.Index
					break
				}
			}
			if !yield(chosen) {
				return
			}
		}
	}, nil
}

// Tournament extends Selection with repeated fixed-size contests: each round
// draws tournamentSize distinct indices and keeps the best by weight.
type Tournament struct {
	*Selection
	size     int
	maximize bool
}

func NewTournament(weights []float64, size int, maximize bool) (*Tournament, error) {
	if size < 1 || size > len(weights) {
		return nil, fmt.Errorf("%w: tournament size %d outside [1, %d]",
			ErrInvalidConfig, size, len(weights))
	}
	return &Tournament{
		Selection: NewSelection(weights),
		size:      size,
		maximize:  maximize,
	}, nil
}

// Winners yields an unbounded sequence of round winners.
func (t *Tournament) Winners(rng *rand.Rand) iter.Seq[int] {
	return func(yield func(int) bool) {
		for {
			contenders := rng.Perm(len(t.weights))[:t.size]
			winner := contenders[0]
			for _, index := range contenders[1:] {
				better := t.weights[index] > t.weights[winner]
				if !t.maximize {
					better = t.weights[index] < t.weights[winner]
				}
				if better {
					winner = index
				}
			}
			if !yield(winner) {
				return
			}
		}
	}
}

// Fitness adapts a FitnessList into Selection weights consistent with the
// fitness mode: higher weight always means a fitter member. Inverting flips
// that, which replacement strategies use to weight the weakest.
type Fitness struct {
	list *FitnessList
}

func NewFitness(list *FitnessList) *Fitness {
	return &Fitness{list: list}
}

// weightEpsilon bounds inversion away from division by zero. A perfect
// distance-zero member gets a very large, finite weight.
const weightEpsilon = 1e-12

func invertWeight(w float64) float64 {
	if math.Abs(w) < weightEpsilon {
		w = math.Copysign(weightEpsilon, w)
	}
	return 1 / w
}

// weights returns one weight per scoreboard row, row order preserved.
func (f *Fitness) weights(invert bool) []float64 {
	out := make([]float64, f.list.Len())
	for i, row := range f.list.Rows() {
		w := f.list.keyed(row.Score)
		// Minimize and center rank small keys as better, so the weight
		// direction flips once before any caller-requested inversion.
		if f.list.Mode() != Maximize {
			w = invertWeight(w)
		}
		if invert {
			w = invertWeight(w)
		}
		out[i] = w
	}
	return out
}

// FitnessTournament samples breeding candidates through fixed-size contests
// over the scoreboard.
type FitnessTournament struct {
	list *FitnessList
	size int
}

func NewFitnessTournament(list *FitnessList, size int) (*FitnessTournament, error) {
	if size < 1 || size > list.Len() {
		return nil, fmt.Errorf("%w: tournament size %d outside [1, %d]",
			ErrInvalidConfig, size, list.Len())
	}
	return &FitnessTournament{list: list, size: size}, nil
}

func (ft *FitnessTournament) Select(rng *rand.Rand) (iter.Seq[int], error) {
	tournament, err := NewTournament(NewFitness(ft.list).weights(false), ft.size, true)
	if err != nil {
		return nil, err
	}
	rows := ft.list.Rows()
	winners := tournament.Winners(rng)
	return capMembers(winners, rows, ft.list.Len()), nil
}

// capMembers translates weight-list indices into member indices and bounds
// one Select call at limit yields.
func capMembers(seq iter.Seq[int], rows []Row, limit int) iter.Seq[int] {
	return func(yield func(int) bool) {
		count := 0
		for index := range seq {
			if count >= limit {
				return
			}
			count++
			if !yield(rows[index].MemberIndex) {
				return
			}
		}
	}
}

// FitnessElites deterministically returns the top round(rate*N) members,
// never fewer than one, best first. No sampling is involved.
type FitnessElites struct {
	list *FitnessList
	rate float64
}

func NewFitnessElites(list *FitnessList, rate float64) (*FitnessElites, error) {
	if rate <= 0 || rate > 1 {
		return nil, fmt.Errorf("%w: elite rate %v outside (0, 1]", ErrInvalidConfig, rate)
	}
	return &FitnessElites{list: list, rate: rate}, nil
}

func (fe *FitnessElites) Select(_ *rand.Rand) (iter.Seq[int], error) {
	if fe.list.Len() == 0 {
		return nil, ErrEmptyList
	}
	sorted := fe.list.Sorted()
	count := int(math.Round(fe.rate * float64(len(sorted))))
	if count < 1 {
		count = 1
	}
	return func(yield func(int) bool) {
		for i := 0; i < count; i++ {
			// Sorted is worst first, so elites come off the back.
			if !yield(sorted[len(sorted)-1-i].MemberIndex) {
				return
			}
		}
	}, nil
}

// Scaling adjusts proportionate weights before normalization.
type Scaling int

const (
	// ScaleLinear uses the weights unchanged.
	ScaleLinear Scaling = iota
	// ScaleExponential raises each weight to a configured power.
	ScaleExponential
	// ScaleLogarithmic replaces each weight with its natural log.
	ScaleLogarithmic
	// ScaleTruncated zeroes every weight below a configured threshold.
	ScaleTruncated
)

// defaultExponentialPower applies when no scaling parameter is given.
const defaultExponentialPower = 2

// FitnessProportionate normalizes mode-consistent weights to a probability
// distribution, optionally rescaled first, and roulette-samples from it. The
// pre-normalization weights must share one sign.
type FitnessProportionate struct {
	list    *FitnessList
	scaling Scaling
	param   float64
}

func NewFitnessProportionate(list *FitnessList, scaling Scaling, param float64) (*FitnessProportionate, error) {
	switch scaling {
	case ScaleLinear, ScaleLogarithmic:
	case ScaleExponential:
		if param == 0 {
			param = defaultExponentialPower
		}
	case ScaleTruncated:
		if param <= 0 {
			return nil, fmt.Errorf("%w: truncation threshold %v must be > 0", ErrInvalidConfig, param)
		}
	default:
		return nil, fmt.Errorf("%w: unknown scaling %d", ErrInvalidConfig, scaling)
	}
	return &FitnessProportionate{list: list, scaling: scaling, param: param}, nil
}

func (fp *FitnessProportionate) Select(rng *rand.Rand) (iter.Seq[int], error) {
	weights := NewFitness(fp.list).weights(false)
	probabilities, err := fp.distribution(weights)
	if err != nil {
		return nil, err
	}
	roulette, err := NewSelection(probabilities).Roulette(rng)
	if err != nil {
		return nil, err
	}
	return capMembers(roulette, fp.list.Rows(), fp.list.Len()), nil
}

func (fp *FitnessProportionate) distribution(weights []float64) ([]float64, error) {
	if len(weights) == 0 {
		return nil, ErrEmptyList
	}
	if err := requireUniformSign(weights); err != nil {
		return nil, err
	}

	scaled := make([]float64, len(weights))
	for i, w := range weights {
		switch fp.scaling {
		case ScaleLinear:
			scaled[i] = w
		case ScaleExponential:
			scaled[i] = math.Pow(w, fp.param)
		case ScaleLogarithmic:
			if w <= 0 {
				return nil, fmt.Errorf("%w: log scaling needs positive weights, got %v",
					ErrInvalidConfig, w)
			}
			scaled[i] = math.Log(w)
		case ScaleTruncated:
			if w < fp.param {
				scaled[i] = 0
			} else {
				scaled[i] = w
			}
		}
	}

	total := 0.0
	for _, w := range scaled {
		total += w
	}
	if total == 0 {
		return nil, fmt.Errorf("%w: scaled weights sum to zero", ErrInvalidConfig)
	}
	out := make([]float64, len(scaled))
	for i, w := range scaled {
		out[i] = w / total
	}
	return out, nil
}

func requireUniformSign(weights []float64) error {
	positive, negative := false, false
	for _, w := range weights {
		if w > 0 {
			positive = true
		}
		if w < 0 {
			negative = true
		}
	}
	if positive && negative {
		return ErrMixedSign
	}
	return nil
}

// FitnessLinearRanking weights members by rank rather than raw score: rank 0
// is the worst, N-1 the best, and weight(rank) interpolates from worstFactor
// up so the best member gets (2 - worstFactor) times the budget of the worst.
type FitnessLinearRanking struct {
	list        *FitnessList
	worstFactor float64
}

func NewFitnessLinearRanking(list *FitnessList, worstFactor float64) (*FitnessLinearRanking, error) {
	if worstFactor < 0 || worstFactor > 1 {
		return nil, fmt.Errorf("%w: worst factor %v outside [0, 1]", ErrInvalidConfig, worstFactor)
	}
	return &FitnessLinearRanking{list: list, worstFactor: worstFactor}, nil
}

func (fr *FitnessLinearRanking) Select(rng *rand.Rand) (iter.Seq[int], error) {
	sorted := fr.list.Sorted()
	n := len(sorted)
	if n == 0 {
		return nil, ErrEmptyList
	}
	if n == 1 {
		member := sorted[0].MemberIndex
		return func(yield func(int) bool) { yield(member) }, nil
	}

	weights := make([]float64, n)
	for rank := 0; rank < n; rank++ {
		weights[rank] = (fr.worstFactor + float64(rank)*(2-2*fr.worstFactor)/float64(n-1)) / float64(n)
	}
	roulette, err := NewSelection(weights).Roulette(rng)
	if err != nil {
		return nil, err
	}
	return capMembers(roulette, sorted, n), nil
}

// FitnessTruncationRanking gives the top round(truncRate*N) ranks a uniform
// probability and everyone else zero, then roulette-samples.
type FitnessTruncationRanking struct {
	list      *FitnessList
	truncRate float64
}

func NewFitnessTruncationRanking(list *FitnessList, truncRate float64) (*FitnessTruncationRanking, error) {
	if truncRate <= 0 || truncRate > 1 {
		return nil, fmt.Errorf("%w: truncation rate %v outside (0, 1]", ErrInvalidConfig, truncRate)
	}
	return &FitnessTruncationRanking{list: list, truncRate: truncRate}, nil
}

func (fr *FitnessTruncationRanking) Select(rng *rand.Rand) (iter.Seq[int], error) {
	sorted := fr.list.Sorted()
	n := len(sorted)
	if n == 0 {
		return nil, ErrEmptyList
	}
	eligible := int(math.Round(fr.truncRate * float64(n)))
	if eligible < 1 {
		eligible = 1
	}

	weights := make([]float64, n)
	for rank := n - eligible; rank < n; rank++ {
		weights[rank] = 1 / float64(eligible)
	}
	roulette, err := NewSelection(weights).Roulette(rng)
	if err != nil {
		return nil, err
	}
	return capMembers(roulette, sorted, n), nil
}
