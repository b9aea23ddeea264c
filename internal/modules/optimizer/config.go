package optimizer

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned when a merged configuration is unusable
var ErrInvalidConfig = errors.New("invalid optimizer config")

// FitnessConfig holds the constants shaping the fitness curve
type FitnessConfig struct {
	MinSampleSize         int       `json:"min_sample_size" yaml:"min_sample_size"`
	MinROI                float64   `json:"min_roi" yaml:"min_roi"`
	DisqualifiedFitness   float64   `json:"disqualified_fitness" yaml:"disqualified_fitness"`
	ROIFloorFitness       float64   `json:"roi_floor_fitness" yaml:"roi_floor_fitness"`
	SampleWeight          float64   `json:"sample_weight" yaml:"sample_weight"`
	SteadinessWeight      float64   `json:"steadiness_weight" yaml:"steadiness_weight"`
	DrawdownFloor         float64   `json:"drawdown_floor" yaml:"drawdown_floor"`
	ROITiers              []float64 `json:"roi_tiers" yaml:"roi_tiers"`
	TierMultiplier        float64   `json:"tier_multiplier" yaml:"tier_multiplier"`
	DrawdownPenaltyStart  float64   `json:"drawdown_penalty_start" yaml:"drawdown_penalty_start"`
	DrawdownPenaltyWeight float64   `json:"drawdown_penalty_weight" yaml:"drawdown_penalty_weight"`
}

// Config controls one optimizer run
type Config struct {
	PopulationSize int           `json:"population_size" yaml:"population_size"`
	MaxGenerations int           `json:"max_generations" yaml:"max_generations"`
	MutationRate   float64       `json:"mutation_rate" yaml:"mutation_rate"`
	CrossoverRate  float64       `json:"crossover_rate" yaml:"crossover_rate"`
	EliteSize      int           `json:"elite_size" yaml:"elite_size"`
	MinFactors     int           `json:"min_factors" yaml:"min_factors"` // Predicates per genome
	MaxFactors     int           `json:"max_factors" yaml:"max_factors"`
	TournamentSize int           `json:"tournament_size" yaml:"tournament_size"`
	Seed           int64         `json:"seed" yaml:"seed"` // 0 seeds from the clock
	CheckpointPath string        `json:"checkpoint_path" yaml:"checkpoint_path"`
	ResumeFrom     string        `json:"resume_from" yaml:"resume_from"`
	Fitness        FitnessConfig `json:"fitness" yaml:"fitness"`
}

// DefaultFitnessConfig returns the standard fitness shaping
func DefaultFitnessConfig() FitnessConfig {
	return FitnessConfig{
		MinSampleSize:         40,
		MinROI:                5,
		DisqualifiedFitness:   -1000,
		ROIFloorFitness:       -500,
		SampleWeight:          2,
		SteadinessWeight:      10,
		DrawdownFloor:         1,
		ROITiers:              []float64{10, 20, 30},
		TierMultiplier:        1.25,
		DrawdownPenaltyStart:  20,
		DrawdownPenaltyWeight: 0.5,
	}
}

// DefaultConfig returns the standard run configuration
func DefaultConfig() Config {
	return Config{
		PopulationSize: 50,
		MaxGenerations: 100,
		MutationRate:   0.2,
		CrossoverRate:  0.8,
		EliteSize:      5,
		MinFactors:     1,
		MaxFactors:     5,
		TournamentSize: 3,
		Fitness:        DefaultFitnessConfig(),
	}
}

// FitnessOverrides replaces individual fitness constants
type FitnessOverrides struct {
	MinSampleSize         *int      `json:"min_sample_size,omitempty" yaml:"min_sample_size,omitempty"`
	MinROI                *float64  `json:"min_roi,omitempty" yaml:"min_roi,omitempty"`
	DisqualifiedFitness   *float64  `json:"disqualified_fitness,omitempty" yaml:"disqualified_fitness,omitempty"`
	ROIFloorFitness       *float64  `json:"roi_floor_fitness,omitempty" yaml:"roi_floor_fitness,omitempty"`
	SampleWeight          *float64  `json:"sample_weight,omitempty" yaml:"sample_weight,omitempty"`
	SteadinessWeight      *float64  `json:"steadiness_weight,omitempty" yaml:"steadiness_weight,omitempty"`
	DrawdownFloor         *float64  `json:"drawdown_floor,omitempty" yaml:"drawdown_floor,omitempty"`
	ROITiers              []float64 `json:"roi_tiers,omitempty" yaml:"roi_tiers,omitempty"`
	TierMultiplier        *float64  `json:"tier_multiplier,omitempty" yaml:"tier_multiplier,omitempty"`
	DrawdownPenaltyStart  *float64  `json:"drawdown_penalty_start,omitempty" yaml:"drawdown_penalty_start,omitempty"`
	DrawdownPenaltyWeight *float64  `json:"drawdown_penalty_weight,omitempty" yaml:"drawdown_penalty_weight,omitempty"`
}

// Overrides replaces individual settings; nil fields keep the base value
type Overrides struct {
	PopulationSize *int              `json:"population_size,omitempty" yaml:"population_size,omitempty"`
	MaxGenerations *int              `json:"max_generations,omitempty" yaml:"max_generations,omitempty"`
	MutationRate   *float64          `json:"mutation_rate,omitempty" yaml:"mutation_rate,omitempty"`
	CrossoverRate  *float64          `json:"crossover_rate,omitempty" yaml:"crossover_rate,omitempty"`
	EliteSize      *int              `json:"elite_size,omitempty" yaml:"elite_size,omitempty"`
	MinFactors     *int              `json:"min_factors,omitempty" yaml:"min_factors,omitempty"`
	MaxFactors     *int              `json:"max_factors,omitempty" yaml:"max_factors,omitempty"`
	TournamentSize *int              `json:"tournament_size,omitempty" yaml:"tournament_size,omitempty"`
	Seed           *int64            `json:"seed,omitempty" yaml:"seed,omitempty"`
	CheckpointPath *string           `json:"checkpoint_path,omitempty" yaml:"checkpoint_path,omitempty"`
	ResumeFrom     *string           `json:"resume_from,omitempty" yaml:"resume_from,omitempty"`
	Fitness        *FitnessOverrides `json:"fitness,omitempty" yaml:"fitness,omitempty"`
}

// Merge returns c with every non-nil override applied
func (c Config) Merge(o Overrides) Config {
	setInt(&c.PopulationSize, o.PopulationSize)
	setInt(&c.MaxGenerations, o.MaxGenerations)
	setFloat(&c.MutationRate, o.MutationRate)
	setFloat(&c.CrossoverRate, o.CrossoverRate)
	setInt(&c.EliteSize, o.EliteSize)
	setInt(&c.MinFactors, o.MinFactors)
	setInt(&c.MaxFactors, o.MaxFactors)
	setInt(&c.TournamentSize, o.TournamentSize)
	if o.Seed != nil {
		c.Seed = *o.Seed
	}
	if o.CheckpointPath != nil {
		c.CheckpointPath = *o.CheckpointPath
	}
	if o.ResumeFrom != nil {
		c.ResumeFrom = *o.ResumeFrom
	}

	// copy so the base config's tier slice is never shared
	c.Fitness.ROITiers = append([]float64(nil), c.Fitness.ROITiers...)
	if f := o.Fitness; f != nil {
		setInt(&c.Fitness.MinSampleSize, f.MinSampleSize)
		setFloat(&c.Fitness.MinROI, f.MinROI)
		setFloat(&c.Fitness.DisqualifiedFitness, f.DisqualifiedFitness)
		setFloat(&c.Fitness.ROIFloorFitness, f.ROIFloorFitness)
		setFloat(&c.Fitness.SampleWeight, f.SampleWeight)
		setFloat(&c.Fitness.SteadinessWeight, f.SteadinessWeight)
		setFloat(&c.Fitness.DrawdownFloor, f.DrawdownFloor)
		if f.ROITiers != nil {
			c.Fitness.ROITiers = append([]float64(nil), f.ROITiers...)
		}
		setFloat(&c.Fitness.TierMultiplier, f.TierMultiplier)
		setFloat(&c.Fitness.DrawdownPenaltyStart, f.DrawdownPenaltyStart)
		setFloat(&c.Fitness.DrawdownPenaltyWeight, f.DrawdownPenaltyWeight)
	}
	return c
}

// Apply layers other on top of o, field by field
func (o Overrides) Apply(other Overrides) Overrides {
	if other.PopulationSize != nil {
		o.PopulationSize = other.PopulationSize
	}
	if other.MaxGenerations != nil {
		o.MaxGenerations = other.MaxGenerations
	}
	if other.MutationRate != nil {
		o.MutationRate = other.MutationRate
	}
	if other.CrossoverRate != nil {
		o.CrossoverRate = other.CrossoverRate
	}
	if other.EliteSize != nil {
		o.EliteSize = other.EliteSize
	}
	if other.MinFactors != nil {
		o.MinFactors = other.MinFactors
	}
	if other.MaxFactors != nil {
		o.MaxFactors = other.MaxFactors
	}
	if other.TournamentSize != nil {
		o.TournamentSize = other.TournamentSize
	}
	if other.Seed != nil {
		o.Seed = other.Seed
	}
	if other.CheckpointPath != nil {
		o.CheckpointPath = other.CheckpointPath
	}
	if other.ResumeFrom != nil {
		o.ResumeFrom = other.ResumeFrom
	}
	if other.Fitness != nil {
		var base FitnessOverrides
		if o.Fitness != nil {
			base = *o.Fitness
		}
		merged := base.Apply(*other.Fitness)
		o.Fitness = &merged
	}
	return o
}

// Apply layers other on top of f, field by field
func (f FitnessOverrides) Apply(other FitnessOverrides) FitnessOverrides {
	layer(&f.MinSampleSize, other.MinSampleSize)
	layer(&f.MinROI, other.MinROI)
	layer(&f.DisqualifiedFitness, other.DisqualifiedFitness)
	layer(&f.ROIFloorFitness, other.ROIFloorFitness)
	layer(&f.SampleWeight, other.SampleWeight)
	layer(&f.SteadinessWeight, other.SteadinessWeight)
	layer(&f.DrawdownFloor, other.DrawdownFloor)
	if other.ROITiers != nil {
		f.ROITiers = append([]float64(nil), other.ROITiers...)
	}
	layer(&f.TierMultiplier, other.TierMultiplier)
	layer(&f.DrawdownPenaltyStart, other.DrawdownPenaltyStart)
	layer(&f.DrawdownPenaltyWeight, other.DrawdownPenaltyWeight)
	return f
}

func layer[T any](dst **T, v *T) {
	if v != nil {
		*dst = v
	}
}

// Validate checks ranges that would make the search meaningless
func (c Config) Validate() error {
	switch {
	case c.PopulationSize < 2:
		return fmt.Errorf("%w: population_size must be at least 2", ErrInvalidConfig)
	case c.MaxGenerations < 1:
		return fmt.Errorf("%w: max_generations must be at least 1", ErrInvalidConfig)
	case c.MutationRate < 0 || c.MutationRate > 1:
		return fmt.Errorf("%w: mutation_rate must be in [0, 1]", ErrInvalidConfig)
	case c.CrossoverRate < 0 || c.CrossoverRate > 1:
		return fmt.Errorf("%w: crossover_rate must be in [0, 1]", ErrInvalidConfig)
	case c.EliteSize < 0 || c.EliteSize >= c.PopulationSize:
		return fmt.Errorf("%w: elite_size must be in [0, population_size)", ErrInvalidConfig)
	case c.MinFactors < 0 || c.MaxFactors < c.MinFactors:
		return fmt.Errorf("%w: need 0 <= min_factors <= max_factors", ErrInvalidConfig)
	case c.TournamentSize < 1:
		return fmt.Errorf("%w: tournament_size must be at least 1", ErrInvalidConfig)
	case c.Fitness.MinSampleSize < 0:
		return fmt.Errorf("%w: min_sample_size must not be negative", ErrInvalidConfig)
	case c.Fitness.DrawdownFloor <= 0:
		return fmt.Errorf("%w: drawdown_floor must be positive", ErrInvalidConfig)
	}
	return nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}
