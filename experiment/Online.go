// Package experiment implements functionality for running an experiment
package experiment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samuelfneumann/progressbar"

	"github.com/samuelfneumann/goatari/agent"
	env "github.com/samuelfneumann/goatari/environment"
	"github.com/samuelfneumann/goatari/experiment/checkpointer"
	"github.com/samuelfneumann/goatari/experiment/tracker"
	ts "github.com/samuelfneumann/goatari/timestep"
	"github.com/samuelfneumann/goatari/utils/floatutils"
)

// movingAverageWindow is the number of recent episodes averaged over
// when logging performance
const movingAverageWindow = 100

const progressBarWidth = 50

// epsiloner is implemented by agents that can report their current
// exploration rate
type epsiloner interface {
	Epsilon() float64
}

// Online is an Experiment that runs an agent online only. No offline
// evaluation is performed. Each run is tagged with a UUID so that log
// lines and saved data from concurrent runs can be told apart.
type Online struct {
	environment env.Environment
	agent       agent.Agent

	maxSteps     uint
	currentSteps uint
	episodes     int

	trackers      []tracker.Tracker
	checkpointers []checkpointer.Checkpointer

	logInterval   int // Episodes between log lines
	runID         uuid.UUID
	logger        zerolog.Logger
	recentReturns []float64

	bar *progressbar.ProgressBar
}

// NewOnline creates and returns a new online experiment on a given
// environment with a given agent. The steps parameter determines how
// many timesteps the experiment is run for. The trackers determine
// what data generated by the experiment is saved, and the
// checkpointers determine how the agent's learned weights are saved
// during the run. Every logInterval episodes, a summary of recent
// performance is logged.
func NewOnline(e env.Environment, a agent.Agent, steps uint,
	logger zerolog.Logger, logInterval int, t []tracker.Tracker,
	c []checkpointer.Checkpointer) *Online {
	runID := uuid.New()

	return &Online{
		environment: e,
		agent:       a,

		maxSteps: steps,

		trackers:      t,
		checkpointers: c,

		logInterval: logInterval,
		runID:       runID,
		logger:      logger.With().Str("run", runID.String()).Logger(),
	}
}

// RunID returns the UUID that tags the experiment's log lines
func (o *Online) RunID() uuid.UUID {
	return o.runID
}

// Register registers a tracker.Tracker with the Experiment so that
// data generated during the experiment can be tracked and saved
func (o *Online) Register(t tracker.Tracker) {
	o.trackers = append(o.trackers, t)
}

// RunEpisode runs a single episode of the experiment, returning
// whether or not the max timestep limit has been reached
func (o *Online) RunEpisode() (bool, error) {
	step, err := o.environment.Reset()
	if err != nil {
		return false, fmt.Errorf("runepisode: could not reset "+
			"environment: %v", err)
	}
	err = o.agent.ObserveFirst(step)
	if err != nil {
		return false, fmt.Errorf("runepisode: could not observe first "+
			"timestep: %v", err)
	}
	o.track(step)

	episodeReturn := 0.0
	episodeSteps := 0

	// Run the next timestep
	for !step.Last() && o.currentSteps < o.maxSteps {
		o.currentSteps++
		episodeSteps++
		if o.bar != nil {
			o.bar.Increment()
		}

		// Select action, step in environment
		action := o.agent.SelectAction(step)
		step, _, err = o.environment.Step(action)
		if err != nil {
			return false, fmt.Errorf("runepisode: could not step "+
				"environment: %v", err)
		}
		episodeReturn += step.Reward

		// Cache the environment step in each Tracker and checkpoint
		// the agent if needed
		o.track(step)
		err = o.checkpoint(step)
		if err != nil {
			return false, fmt.Errorf("runepisode: %v", err)
		}

		// Observe the timestep and step the agent
		err = o.agent.Observe(action, step)
		if err != nil {
			return false, fmt.Errorf("runepisode: could not observe "+
				"timestep: %v", err)
		}
		err = o.agent.Step()
		if err != nil {
			return false, fmt.Errorf("runepisode: could not step "+
				"agent: %v", err)
		}
	}
	o.agent.EndEpisode()

	if step.Last() {
		o.episodes++
		o.recentReturns = append(o.recentReturns, episodeReturn)
		if len(o.recentReturns) > movingAverageWindow {
			o.recentReturns = o.recentReturns[1:]
		}

		if o.logInterval > 0 && o.episodes%o.logInterval == 0 {
			event := o.logger.Info().
				Int("episode", o.episodes).
				Int("episodeSteps", episodeSteps).
				Uint("totalSteps", o.currentSteps).
				Float64("return", episodeReturn).
				Float64("averageReturn",
					floatutils.Mean(o.recentReturns))
			if e, ok := o.agent.(epsiloner); ok {
				event = event.Float64("epsilon", e.Epsilon())
			}
			event.Msg("episode finished")
		}
	}

	// Return whether or not the max timestep limit has been reached
	return o.currentSteps >= o.maxSteps, nil
}

// Run runs the entire experiment for all timesteps
func (o *Online) Run() error {
	o.logger.Info().Uint("maxSteps", o.maxSteps).Msg("starting experiment")

	o.bar = progressbar.New(progressBarWidth, int(o.maxSteps),
		time.Second, false)
	o.bar.Display()
	defer func() {
		o.bar.Close()
		o.bar = nil
	}()

	ended := false
	for !ended {
		var err error
		ended, err = o.RunEpisode()
		if err != nil {
			return fmt.Errorf("run: %v", err)
		}
	}

	o.logger.Info().Uint("totalSteps", o.currentSteps).
		Int("episodes", o.episodes).Msg("experiment finished")
	return nil
}

// Save saves all the data cached by the Trackers to disk
func (o *Online) Save() error {
	for _, t := range o.trackers {
		if err := t.Save(); err != nil {
			return fmt.Errorf("save: %v", err)
		}
	}
	return nil
}

// track tracks the current timestep by caching its data in each
// Tracker
func (o *Online) track(t ts.TimeStep) {
	for _, tr := range o.trackers {
		tr.Track(t)
	}
}

// checkpoint saves the current state of the agent with each
// Checkpointer
func (o *Online) checkpoint(t ts.TimeStep) error {
	for _, c := range o.checkpointers {
		if err := c.Checkpoint(t); err != nil {
			return fmt.Errorf("checkpoint: %v", err)
		}
	}
	return nil
}
