package dqn

import (
	"fmt"

	"github.com/samuelfneumann/goatari/initwfn"
	"github.com/samuelfneumann/goatari/network"
	"github.com/samuelfneumann/goatari/solver"
)

// Default hyperparameters. These follow the common settings for deep
// Q-learning on Atari screens.
const (
	DefaultReplayCapacity  int = 10_000
	DefaultHistoryLength   int = 4
	DefaultBatchSize       int = 32
	DefaultReplayStartSize int = 10_000

	DefaultDiscount           float64 = 0.99
	DefaultUpdateInterval     int     = 4
	DefaultTargetSyncInterval int     = 1_000
	DefaultTau                float64 = 1.0

	DefaultInitExploration       float64 = 1.0
	DefaultFinalExploration      float64 = 0.1
	DefaultFinalExplorationFrame int     = 1_000_000
	DefaultTerminalExploration   float64 = 0.01

	defaultStepSize     float64 = 1e-4
	defaultAdamEpsilon  float64 = 1e-6
	defaultAdamBeta1    float64 = 0.9
	defaultAdamBeta2    float64 = 0.999
	defaultInitWFnGain  float64 = 1.0
	defaultHiddenLayer1 int     = 512
	defaultHiddenLayer2 int     = 256
)

// Config implements a configuration for a DQN agent. A Config is an
// immutable record of hyperparameters: it is fully constructed before
// the agent is created and never modified afterwards.
type Config struct {
	PolicyLayers []int                 // Layer sizes in neural net
	Biases       []bool                // Whether each layer should have a bias
	Activations  []*network.Activation // Activation of each layer
	Solver       *solver.Solver        // Solver for learning weights

	// Initialization algorithm for weights
	InitWFn *initwfn.InitWFn

	// Experience replay parameters
	ReplayCapacity  int // Maximum transitions held in replay memory
	HistoryLength   int // Frames stacked to form a state
	BatchSize       int // Transitions sampled per update
	ReplayStartSize int // Steps of pure exploration before updates

	// Learning parameters
	Discount           float64 // Discount factor γ
	UpdateInterval     int     // Environment steps between updates
	TargetSyncInterval int     // Gradient steps between target syncs
	Tau                float64 // Polyak averaging constant (1 = hard sync)

	// Epsilon annealing endpoints. Epsilon stays at InitExploration
	// until ReplayStartSize steps have been taken, anneals linearly to
	// FinalExploration at FinalExplorationFrame, then anneals linearly
	// to TerminalExploration at 25 * FinalExplorationFrame.
	InitExploration       float64
	FinalExploration      float64
	FinalExplorationFrame int
	TerminalExploration   float64
}

// DefaultConfig returns a Config with the default DQN hyperparameters
func DefaultConfig() (Config, error) {
	adam, err := solver.NewAdam(defaultStepSize, defaultAdamEpsilon,
		defaultAdamBeta1, defaultAdamBeta2, DefaultBatchSize)
	if err != nil {
		return Config{}, fmt.Errorf("defaultconfig: could not create "+
			"solver: %v", err)
	}

	init, err := initwfn.NewGlorotU(defaultInitWFnGain)
	if err != nil {
		return Config{}, fmt.Errorf("defaultconfig: could not create "+
			"weight initializer: %v", err)
	}

	return Config{
		PolicyLayers: []int{defaultHiddenLayer1, defaultHiddenLayer2},
		Biases:       []bool{true, true},
		Activations: []*network.Activation{
			network.ReLU(),
			network.ReLU(),
		},
		Solver:  adam,
		InitWFn: init,

		ReplayCapacity:  DefaultReplayCapacity,
		HistoryLength:   DefaultHistoryLength,
		BatchSize:       DefaultBatchSize,
		ReplayStartSize: DefaultReplayStartSize,

		Discount:           DefaultDiscount,
		UpdateInterval:     DefaultUpdateInterval,
		TargetSyncInterval: DefaultTargetSyncInterval,
		Tau:                DefaultTau,

		InitExploration:       DefaultInitExploration,
		FinalExploration:      DefaultFinalExploration,
		FinalExplorationFrame: DefaultFinalExplorationFrame,
		TerminalExploration:   DefaultTerminalExploration,
	}, nil
}

// Validate checks a Config to ensure it is a valid configuration of a
// DQN agent.
func (c Config) Validate() error {
	if len(c.PolicyLayers) != len(c.Biases) {
		return fmt.Errorf("validate: invalid number of biases\n\twant(%v)"+
			"\n\thave(%v)", len(c.PolicyLayers), len(c.Biases))
	}

	if len(c.PolicyLayers) != len(c.Activations) {
		return fmt.Errorf("validate: invalid number of activations"+
			"\n\twant(%v)\n\thave(%v)", len(c.PolicyLayers),
			len(c.Activations))
	}

	if c.Solver == nil {
		return fmt.Errorf("validate: no solver given")
	}

	if c.InitWFn == nil {
		return fmt.Errorf("validate: no weight initializer given")
	}

	if c.ReplayCapacity < 1 {
		return fmt.Errorf("validate: replay capacity must be positive "+
			"\n\twant(>0) \n\thave(%v)", c.ReplayCapacity)
	}

	if c.HistoryLength < 1 {
		return fmt.Errorf("validate: history length must be positive "+
			"\n\twant(>0) \n\thave(%v)", c.HistoryLength)
	}

	if c.BatchSize < 1 {
		return fmt.Errorf("validate: batch size must be positive "+
			"\n\twant(>0) \n\thave(%v)", c.BatchSize)
	}

	if c.ReplayStartSize < c.BatchSize {
		return fmt.Errorf("validate: replay start size must be at least "+
			"the batch size \n\twant(>=%v) \n\thave(%v)", c.BatchSize,
			c.ReplayStartSize)
	}

	if c.Discount < 0 || c.Discount > 1 {
		return fmt.Errorf("validate: discount must be in [0, 1] "+
			"\n\thave(%v)", c.Discount)
	}

	if c.UpdateInterval < 1 {
		return fmt.Errorf("validate: weights must be updated at positive "+
			"timestep intervals \n\twant(>0) \n\thave(%v)", c.UpdateInterval)
	}

	if c.TargetSyncInterval < 1 {
		return fmt.Errorf("validate: target networks must be updated at "+
			"positive timestep intervals \n\twant(>0) \n\thave(%v)",
			c.TargetSyncInterval)
	}

	if c.Tau <= 0 || c.Tau > 1 {
		return fmt.Errorf("validate: tau must be in (0, 1] \n\thave(%v)",
			c.Tau)
	}

	for _, ε := range []float64{c.InitExploration, c.FinalExploration,
		c.TerminalExploration} {
		if ε < 0 || ε > 1 {
			return fmt.Errorf("validate: exploration rates must be in "+
				"[0, 1] \n\thave(%v)", ε)
		}
	}

	if c.FinalExplorationFrame <= c.ReplayStartSize {
		return fmt.Errorf("validate: exploration must end after the "+
			"replay start size \n\twant(>%v) \n\thave(%v)",
			c.ReplayStartSize, c.FinalExplorationFrame)
	}

	return nil
}

// schedule returns the epsilon annealing schedule described by the
// Config
func (c Config) schedule() *Schedule {
	return NewSchedule(c.InitExploration, c.FinalExploration,
		c.TerminalExploration, c.ReplayStartSize, c.FinalExplorationFrame)
}
