package search

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"btfast/internal/btferr"
	"btfast/internal/telemetry"
)

// Individual is one member of a Population: a chromosome plus its fitness
// and its roulette-wheel selection probability, mirroring the C++
// Individual class.
type Individual struct {
	Chromosome  Chromosome
	Fitness     float64
	Probability float64
}

// Population is a generation of individuals sharing one fitness metric
// name, mirroring the C++ Population class.
type Population struct {
	individuals   []Individual
	fitnessMetric string
}

// NewPopulation samples size distinct chromosomes without replacement from
// searchSpace (via Fisher-Yates shuffle, matching std::shuffle +
// begin..begin+size in Population::initialize_population). size must not
// exceed len(searchSpace); exceeding it is a Configuration error, checked
// again here defensively (the primary check lives in config.Validate).
func NewPopulation(size int, fitnessMetric string, searchSpace []Chromosome, rng *rand.Rand) (*Population, error) {
	if size <= 0 || size > len(searchSpace) {
		return nil, fmt.Errorf("%wpopulation_size %d exceeds search space of %d", btferr.Configuration, size, len(searchSpace))
	}
	shuffled := make([]Chromosome, len(searchSpace))
	copy(shuffled, searchSpace)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	individuals := make([]Individual, size)
	for i := 0; i < size; i++ {
		individuals[i] = Individual{Chromosome: shuffled[i]}
	}
	return &Population{individuals: individuals, fitnessMetric: fitnessMetric}, nil
}

// Individuals returns a defensive copy of the population's members.
func (p *Population) Individuals() []Individual {
	out := make([]Individual, len(p.individuals))
	copy(out, p.individuals)
	return out
}

// FitnessFunc evaluates one chromosome's full backtest and returns its
// scalar fitness plus the strategy_t row to append to the optimization
// results, mirroring Individual::compute_individual_fitness.
type FitnessFunc func(Chromosome) (fitness float64, row StrategyRow, err error)

// ComputeFitness evaluates every individual's fitness in parallel (the Go
// analogue of the C++ `#pragma omp parallel for`), then sets total
// fitness/probabilities and sorts the population descending by fitness.
// Returns the strategy_t rows produced this generation.
func (p *Population) ComputeFitness(ctx context.Context, fn FitnessFunc) ([]StrategyRow, error) {
	rows := make([]StrategyRow, len(p.individuals))
	g, gctx := errgroup.WithContext(ctx)
	for i := range p.individuals {
		i := i
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			fitness, row, err := fn(p.individuals[i].Chromosome)
			if err != nil {
				return err
			}
			p.individuals[i].Fitness = fitness
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := p.setProbabilities(); err != nil {
		return nil, err
	}
	p.sortByFitnessDescending()
	return rows, nil
}

// setProbabilities computes total_fitness (fatal RuntimeDegenerate if 0)
// and per-individual probability p_i = v_i/Σv, v_i = (f_i-min f)/(max f-min
// f), mirroring Population::set_total_fitness / set_probabilities.
func (p *Population) setProbabilities() error {
	var total float64
	minFitness, maxFitness := math.Inf(1), math.Inf(-1)
	for _, ind := range p.individuals {
		total += ind.Fitness
		minFitness = math.Min(minFitness, ind.Fitness)
		maxFitness = math.Max(maxFitness, ind.Fitness)
	}
	if total == 0 {
		return fmt.Errorf("%wpopulation fitness sums to zero, no trades generated", btferr.RuntimeDegenerate)
	}
	if maxFitness == minFitness {
		return fmt.Errorf("%wmax fitness equals min fitness", btferr.RuntimeDegenerate)
	}

	v := make([]float64, len(p.individuals))
	var sumV float64
	for i, ind := range p.individuals {
		v[i] = (ind.Fitness - minFitness) / (maxFitness - minFitness)
		sumV += v[i]
	}
	if sumV == 0 {
		return fmt.Errorf("%wnormalized fitness sums to zero", btferr.RuntimeDegenerate)
	}
	for i := range p.individuals {
		p.individuals[i].Probability = v[i] / sumV
	}
	return nil
}

func (p *Population) sortByFitnessDescending() {
	sort.Slice(p.individuals, func(i, j int) bool {
		return p.individuals[i].Fitness > p.individuals[j].Fitness
	})
}

// Select performs fitness-proportionate (roulette wheel) selection.
func (p *Population) Select(rng *rand.Rand) Individual {
	target := rng.Float64()
	var offset float64
	for _, ind := range p.individuals {
		offset += ind.Probability
		if target < offset {
			return ind
		}
	}
	return p.individuals[len(p.individuals)-1]
}

// selectDistinctPair draws two parents via Select, retrying up to
// len(population) times to find a second parent with a different
// chromosome, per spec §4.9 step 5.
func (p *Population) selectDistinctPair(rng *rand.Rand) (Individual, Individual) {
	parent1 := p.Select(rng)
	parent2 := p.Select(rng)
	for retries := len(p.individuals); retries > 0 && parent1.Chromosome.Equal(parent2.Chromosome); retries-- {
		parent2 = p.Select(rng)
	}
	return parent1, parent2
}

// UniformCrossover builds one offspring chromosome: each gene independently
// from parent1 or parent2 with equal probability, mirroring
// Individual::uniform_crossover.
func UniformCrossover(parent1, parent2 Chromosome, rng *rand.Rand) Chromosome {
	offspring := make(Chromosome, len(parent1))
	copy(offspring, parent1)
	for i := range offspring {
		if rng.Intn(2) == 1 {
			offspring[i] = parent2[i]
		}
	}
	return offspring
}

// SingleCrossover swaps the chromosome tail after a random crossover point
// between two parents with probability crossoverRate, producing two
// offspring, mirroring Individual::single_crossover.
func SingleCrossover(parent1, parent2 Chromosome, crossoverRate float64, rng *rand.Rand) (Chromosome, Chromosome) {
	offspring1 := make(Chromosome, len(parent1))
	offspring2 := make(Chromosome, len(parent2))
	copy(offspring1, parent1)
	copy(offspring2, parent2)
	if rng.Float64() < crossoverRate && len(parent1) > 0 {
		point := rng.Intn(len(parent1))
		for i := point; i < len(parent1); i++ {
			offspring1[i], offspring2[i] = offspring2[i], offspring1[i]
		}
	}
	return offspring1, offspring2
}

// Mutate replaces one random gene of chromosome with that gene's value
// from a random member of searchSpace, retrying up to 2*len(chromosome)
// times to force an actual value change, mirroring Individual::mutate.
func Mutate(chromosome Chromosome, searchSpace []Chromosome, rng *rand.Rand) Chromosome {
	genesNum := len(chromosome)
	spaceSize := len(searchSpace)
	if genesNum == 0 || spaceSize == 0 {
		return chromosome
	}
	mutated := make(Chromosome, genesNum)
	copy(mutated, chromosome)

	r1 := rng.Intn(genesNum)
	r2 := rng.Intn(spaceSize)
	for trials := 0; mutated[r1].Value == searchSpace[r2][r1].Value && trials < 2*genesNum; trials++ {
		r1 = rng.Intn(genesNum)
		r2 = rng.Intn(spaceSize)
	}
	mutated[r1] = searchSpace[r2][r1]
	return mutated
}

// NextGeneration carries the top eliteNum individuals unchanged, then fills
// the remainder by distinct-parent roulette selection, uniform crossover,
// and per-individual mutation at mutationRate, per spec §4.9 steps 4-6.
// The receiver must already be sorted descending by fitness (ComputeFitness
// leaves it that way).
func (p *Population) NextGeneration(searchSpace []Chromosome, eliteNum int, mutationRate float64, rng *rand.Rand) *Population {
	size := len(p.individuals)
	next := make([]Individual, 0, size)
	for i := 0; i < eliteNum && i < size; i++ {
		next = append(next, Individual{Chromosome: p.individuals[i].Chromosome})
	}
	for len(next) < size {
		parent1, parent2 := p.selectDistinctPair(rng)
		offspring := Individual{Chromosome: UniformCrossover(parent1.Chromosome, parent2.Chromosome, rng)}
		if rng.Float64() < mutationRate {
			offspring.Chromosome = Mutate(offspring.Chromosome, searchSpace, rng)
		}
		next = append(next, offspring)
	}
	return &Population{individuals: next, fitnessMetric: p.fitnessMetric}
}

// RunGeneticSearch drives the full generational loop: fitness evaluation,
// elitism, selection/crossover/mutation, and early exit once the best
// fitness has been unchanged for stagnationLimit consecutive generations,
// per spec §4.9. It returns every strategy_t row produced across all
// generations.
func RunGeneticSearch(
	ctx context.Context,
	searchSpace []Chromosome,
	populationSize, eliteNum int,
	mutationRate float64,
	generations, stagnationLimit int,
	fitnessMetric string,
	fitnessFn FitnessFunc,
	rng *rand.Rand,
) ([]StrategyRow, error) {
	pop, err := NewPopulation(populationSize, fitnessMetric, searchSpace, rng)
	if err != nil {
		return nil, err
	}

	var allRows []StrategyRow
	bestFitness := math.Inf(-1)
	stagnantFor := 0
	for gen := 0; gen < generations; gen++ {
		genStart := time.Now()
		rows, err := pop.ComputeFitness(ctx, fitnessFn)
		telemetry.OptimizationGenerationSeconds.WithLabelValues(fitnessMetric).Observe(time.Since(genStart).Seconds())
		if err != nil {
			return nil, err
		}
		allRows = append(allRows, rows...)

		genBest := pop.individuals[0].Fitness
		if genBest > bestFitness {
			bestFitness = genBest
			stagnantFor = 0
		} else {
			stagnantFor++
		}
		if stagnantFor >= stagnationLimit || gen == generations-1 {
			break
		}
		pop = pop.NextGeneration(searchSpace, eliteNum, mutationRate, rng)
	}
	return allRows, nil
}
