package cmd

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/gammazero/deque"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"

	"github.com/samuelfneumann/goatari/agent"
	"github.com/samuelfneumann/goatari/agent/dqn"
	"github.com/samuelfneumann/goatari/agent/policy"
	env "github.com/samuelfneumann/goatari/environment"
)

// loadPolicy reconstructs an epsilon greedy policy from a checkpointed
// weights file. The architecture is recovered from the checkpoint
// itself; the features and actions parameters only size the throwaway
// network that the checkpoint is decoded over.
func loadPolicy(filename string, epsilon float64, features, actions int,
	seed int64) (agent.EGreedyNNPolicy, G.VM, error) {
	config, err := dqn.DefaultConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("loadpolicy: %v", err)
	}

	g := G.NewGraph()
	p, err := policy.NewMultiHeadEGreedyMLP(epsilon, features, 1, actions,
		g, config.PolicyLayers, config.Biases, config.InitWFn.InitWFn(),
		config.Activations, seed)
	if err != nil {
		return nil, nil, fmt.Errorf("loadpolicy: could not create "+
			"policy: %v", err)
	}

	file, err := os.Open(filename)
	if err != nil {
		return nil, nil, fmt.Errorf("loadpolicy: could not open weights "+
			"file: %v", err)
	}
	defer file.Close()

	concrete := p.(*policy.MultiHeadEGreedyMLP)
	dec := gob.NewDecoder(file)
	if err := dec.Decode(concrete); err != nil {
		return nil, nil, fmt.Errorf("loadpolicy: could not decode "+
			"weights: %v", err)
	}
	concrete.SetEpsilon(epsilon)

	// The decoded network lives on a fresh graph, so the VM must be
	// created after decoding
	vm := G.NewTapeMachine(concrete.Graph())
	return concrete, vm, nil
}

// evalEpisode runs a single evaluation episode, optionally recording
// each raw frame, and returns the episodic return and episode length
func evalEpisode(e env.Environment, p agent.EGreedyNNPolicy, vm G.VM,
	historyLength int, record func([]float64) error) (float64, int, error) {
	step, err := e.Reset()
	if err != nil {
		return 0, 0, fmt.Errorf("evalepisode: could not reset "+
			"environment: %v", err)
	}

	var frames deque.Deque[[]float64]
	first := frameData(step.Observation)
	for i := 0; i < historyLength; i++ {
		frames.PushBack(first)
	}
	if record != nil {
		if err := record(first); err != nil {
			return 0, 0, fmt.Errorf("evalepisode: %v", err)
		}
	}

	episodeReturn := 0.0
	steps := 0
	for !step.Last() {
		err := p.SetInput(stackedFrames(&frames))
		if err != nil {
			return 0, 0, fmt.Errorf("evalepisode: could not set policy "+
				"input: %v", err)
		}
		if err := vm.RunAll(); err != nil {
			return 0, 0, fmt.Errorf("evalepisode: could not run "+
				"policy: %v", err)
		}
		action, _ := p.SelectAction()
		vm.Reset()

		step, _, err = e.Step(action)
		if err != nil {
			return 0, 0, fmt.Errorf("evalepisode: could not step "+
				"environment: %v", err)
		}

		frame := frameData(step.Observation)
		frames.PopFront()
		frames.PushBack(frame)
		if record != nil {
			if err := record(frame); err != nil {
				return 0, 0, fmt.Errorf("evalepisode: %v", err)
			}
		}

		episodeReturn += step.Reward
		steps++
	}

	return episodeReturn, steps, nil
}

// stackedFrames concatenates a frame window into a single policy input
func stackedFrames(frames *deque.Deque[[]float64]) []float64 {
	obs := make([]float64, 0, frames.Len()*len(frames.Front()))
	for i := 0; i < frames.Len(); i++ {
		obs = append(obs, frames.At(i)...)
	}
	return obs
}

// frameData copies the data of a single frame out of an observation
// vector
func frameData(obs mat.Vector) []float64 {
	frame := make([]float64, obs.Len())
	for i := range frame {
		frame[i] = obs.AtVec(i)
	}
	return frame
}
