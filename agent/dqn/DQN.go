// Package dqn implements the deep Q-learning algorithm for learning
// control of Atari games from stacked screen frames.
package dqn

import (
	"fmt"
	"os"

	"github.com/gammazero/deque"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/goatari/agent"
	"github.com/samuelfneumann/goatari/agent/policy"
	"github.com/samuelfneumann/goatari/environment"
	"github.com/samuelfneumann/goatari/expreplay"
	ts "github.com/samuelfneumann/goatari/timestep"
)

// DQN implements the deep Q-learning algorithm. A behaviour policy
// selects actions epsilon greedily over the action values predicted
// for the current stack of frames, with epsilon annealed over
// training. Single frames are stored in an experience replay memory
// and re-stacked when sampled. A separate target network provides the
// update target
//
//	r + γ * max[Q(s', a')] * (1 - terminal)
//
// and is synchronized with the learned weights at fixed intervals.
type DQN struct {
	// Action selection policies
	behaviourPolicy   agent.EGreedyNNPolicy // Behaviour egreedy policy
	behaviourPolicyVM G.VM
	targetPolicy      agent.EGreedyNNPolicy // Target greedy policy
	targetPolicyVM    G.VM

	// Policy for learning weights that takes in batches of inputs
	trainNet   agent.EGreedyNNPolicy // Policy whose weights are adapted
	trainNetVM G.VM
	solver     G.Solver // Adapts the weights of trainNet

	// Policy that provides the update target for a batch of inputs.
	// Note that this is a target network, providing the update target.
	// It is not the network for the target policy
	targetNet   agent.EGreedyNNPolicy
	targetNetVM G.VM

	// Variables to track weight and target network updates
	tau                float64 // Polyak averaging constant
	targetSyncInterval int     // Gradient steps between target syncs
	updateInterval     int     // Environment steps between updates
	replayStartSize    int     // Steps before updates begin
	gradientSteps      int
	steps              int // Total environment steps observed

	schedule *Schedule // Epsilon annealing

	selectedActions *G.Node // Actions taken at the previous states
	numActions      int

	// nextStateActionValues is the input node in the graph of trainNet
	// that is given the action values of the next states, as computed
	// by targetNet
	nextStateActionValues *G.Node
	rewards               *G.Node
	discounts             *G.Node

	replay *expreplay.Memory

	// Window of the most recent frames, stacked to form the state
	// observation for action selection
	frames        deque.Deque[[]float64]
	historyLength int
	frameSize     int

	nextStep ts.TimeStep

	batchSize int
	discount  float64
	eval      bool // Whether or not in evaluation mode
}

// New creates and returns a new DQN agent
func New(env environment.Environment, config Config,
	seed int64) (*DQN, error) {
	// Ensure environment has discrete actions
	if env.ActionSpec().Cardinality != environment.Discrete {
		return &DQN{}, fmt.Errorf("dqn: cannot use non-discrete actions")
	}

	// Ensure actions are one-dimensional
	if env.ActionSpec().LowerBound.Len() > 1 {
		return &DQN{}, fmt.Errorf("dqn: actions must be 1-dimensional")
	}

	// Ensure actions are enumerated from 0
	if env.ActionSpec().LowerBound.AtVec(0) != 0.0 {
		return &DQN{}, fmt.Errorf("dqn: actions must be enumerated " +
			"starting from 0")
	}

	// Ensure the configuration is valid
	err := config.Validate()
	if err != nil {
		return &DQN{}, err
	}

	// Extract configuration variables
	batchSize := config.BatchSize
	numActions := int(env.ActionSpec().UpperBound.AtVec(0)) + 1
	hiddenSizes := config.PolicyLayers
	biases := config.Biases
	activations := config.Activations
	init := config.InitWFn.InitWFn()

	// The networks see historyLength stacked frames at once
	frameSize := env.ObservationSpec().Shape.Len()
	features := config.HistoryLength * frameSize

	// Behaviour network for selecting actions
	g := G.NewGraph()
	behaviourPolicy, err := policy.NewMultiHeadEGreedyMLP(
		config.InitExploration,
		features,
		1, // For behaviour policy, we only need to select a single action
		numActions,
		g,
		hiddenSizes,
		biases,
		init,
		activations,
		seed,
	)
	if err != nil {
		return &DQN{}, err
	}
	behaviourPolicyVM := G.NewTapeMachine(g)

	// Create the target policy for selecting actions in evaluation mode
	targetPolicyClone, err := behaviourPolicy.ClonePolicy()
	if err != nil {
		return &DQN{}, fmt.Errorf("dqn: could not create target policy")
	}
	targetPolicy := targetPolicyClone.(agent.EGreedyNNPolicy)
	targetPolicy.SetEpsilon(0.0)
	targetPolicyVM := G.NewTapeMachine(targetPolicy.Graph())

	// Create the target network which provides the update target
	targetNetClone, err := behaviourPolicy.ClonePolicyWithBatch(batchSize)
	if err != nil {
		msg := "dqn: could not create target network: %v"
		return &DQN{}, fmt.Errorf(msg, err)
	}
	targetNet := targetNetClone.(agent.EGreedyNNPolicy)
	targetNet.SetEpsilon(0.0) // Q-learning target policy is greedy
	targetNetVM := G.NewTapeMachine(targetNet.Graph())

	// Create a training network which learns the weights
	trainNetClone, err := behaviourPolicy.ClonePolicyWithBatch(batchSize)
	if err != nil {
		msg := "dqn: could not create learning network: %v"
		return &DQN{}, fmt.Errorf(msg, err)
	}
	trainNet := trainNetClone.(agent.EGreedyNNPolicy)
	gTrain := trainNet.Graph()

	// Create nodes to compute the update target:
	// r + γ * max[Q(s', a')] * (1 - terminal)
	nextStateActionValues := G.NewMatrix(gTrain, tensor.Float64,
		G.WithShape(batchSize, numActions), G.WithName("targetActionVals"))
	rewards := G.NewVector(gTrain, tensor.Float64, G.WithShape(batchSize),
		G.WithName("reward"))
	discounts := G.NewVector(gTrain, tensor.Float64, G.WithShape(batchSize),
		G.WithName("discount"))

	// Compute the update target. The discounts vector holds
	// γ * (1 - terminal) so that terminal transitions bootstrap from
	// the reward alone
	updateTarget := G.Must(G.Max(nextStateActionValues, 1))
	updateTarget = G.Must(G.HadamardProd(updateTarget, discounts))
	updateTarget = G.Must(G.Add(updateTarget, rewards))

	// Action selected in the previous state. This is needed to compute
	// the loss using the correct action value since the network outputs
	// N action values, one for each environmental action
	selectedActions := G.NewMatrix(
		gTrain,
		tensor.Float64,
		G.WithName("actionSelected"),
		G.WithShape(batchSize, numActions),
	)
	selectedActionsValue := G.Must(G.HadamardProd(trainNet.Prediction()[0],
		selectedActions))
	selectedActionsValue = G.Must(G.Sum(selectedActionsValue, 1))

	// Compute the Mean Squared TD error
	losses := G.Must(G.Sub(updateTarget, selectedActionsValue))
	losses = G.Must(G.Square(losses))
	cost := G.Must(G.Mean(losses))

	// Compute the gradient with respect to the Mean Squared TD error
	_, err = G.Grad(cost, trainNet.Learnables()...)
	if err != nil {
		msg := "dqn: could not compute gradient: %v"
		return &DQN{}, fmt.Errorf(msg, err)
	}

	// Compile the trainNet graph into a VM
	trainNetVM := G.NewTapeMachine(
		gTrain,
		G.BindDualValues(trainNet.Learnables()...),
	)

	// Create the experience replay memory, which stores single frames
	// and re-stacks them when sampled
	replay, err := expreplay.New(config.ReplayCapacity, config.HistoryLength,
		frameSize, uint64(seed))
	if err != nil {
		msg := "dqn: could not create experience replay memory: %v"
		return &DQN{}, fmt.Errorf(msg, err)
	}

	return &DQN{
		behaviourPolicy:   behaviourPolicy,
		behaviourPolicyVM: behaviourPolicyVM,
		targetPolicy:      targetPolicy,
		targetPolicyVM:    targetPolicyVM,

		trainNet:   trainNet,
		trainNetVM: trainNetVM,
		solver:     config.Solver,

		targetNet:   targetNet,
		targetNetVM: targetNetVM,

		tau:                config.Tau,
		targetSyncInterval: config.TargetSyncInterval,
		updateInterval:     config.UpdateInterval,
		replayStartSize:    config.ReplayStartSize,
		gradientSteps:      0,
		steps:              0,

		schedule: config.schedule(),

		selectedActions:       selectedActions,
		numActions:            numActions,
		nextStateActionValues: nextStateActionValues,
		rewards:               rewards,
		discounts:             discounts,

		replay:        replay,
		historyLength: config.HistoryLength,
		frameSize:     frameSize,

		nextStep:  ts.TimeStep{},
		batchSize: batchSize,
		discount:  config.Discount,
		eval:      false,
	}, nil
}

// ObserveFirst observes and records the first episodic timestep
func (d *DQN) ObserveFirst(t ts.TimeStep) error {
	if !t.First() {
		fmt.Fprintf(os.Stderr, "Warning: ObserveFirst() should only be "+
			"called on the first timestep (current timestep = %d)\n",
			t.Number)
	}
	d.nextStep = t

	// Seed the frame window with copies of the first frame so that a
	// full stack is available from the very first action selection
	d.frames.Clear()
	first := frameData(t.Observation)
	for i := 0; i < d.historyLength; i++ {
		d.frames.PushBack(first)
	}

	return nil
}

// Observe observes and records any timestep other than the first
// timestep
func (d *DQN) Observe(action mat.Vector, nextStep ts.TimeStep) error {
	if action.Len() != 1 {
		fmt.Fprintf(os.Stderr, "Warning: value-based methods should not "+
			"have multi-dimensional actions (action dim = %d)\n",
			action.Len())
	}

	// Add to the replay memory. Evaluation episodes are not recorded
	if !d.eval {
		transition := ts.NewTransition(d.nextStep, int(action.AtVec(0)),
			nextStep)
		err := d.replay.Push(transition)
		if err != nil {
			return fmt.Errorf("observe: could not record transition: %v",
				err)
		}
		d.steps++
	}

	// Slide the frame window forward
	d.frames.PopFront()
	d.frames.PushBack(frameData(nextStep.Observation))

	d.nextStep = nextStep
	return nil
}

// Step updates the weights of the Agent's Policies. Updates are gated
// on the update interval and do not begin until the replay memory
// holds at least the replay start size of transitions.
func (d *DQN) Step() error {
	if d.eval {
		return nil
	}
	if d.replay.Len() < d.replayStartSize {
		return nil
	}
	if d.steps%d.updateInterval != 0 {
		return nil
	}

	indices, err := d.replay.SampleIndices(d.batchSize)
	if expreplay.IsInsufficientData(err) {
		return nil
	} else if err != nil {
		return fmt.Errorf("step: could not sample: %v", err)
	}

	states, actions, rewards, nextStates, terminals, err :=
		d.replay.Minibatch(indices)
	if err != nil {
		return fmt.Errorf("step: could not construct minibatch: %v", err)
	}

	// Selected action one-hot vectors
	selected := make([]float64, d.batchSize*d.numActions)
	for i, action := range actions {
		selected[i*d.numActions+action] = 1.0
	}
	selectedTensor := tensor.New(
		tensor.WithShape(d.batchSize, d.numActions),
		tensor.WithBacking(selected),
	)
	err = G.Let(d.selectedActions, selectedTensor)
	if err != nil {
		return fmt.Errorf("step: could not set selected actions: %v", err)
	}

	// Predict the action values in the sampled states
	err = d.trainNet.SetInput(states)
	if err != nil {
		return fmt.Errorf("step: could not set trainNet input: %v", err)
	}

	// Predict the action values in the sampled next states
	err = d.targetNet.SetInput(nextStates)
	if err != nil {
		return fmt.Errorf("step: could not set target net input: %v", err)
	}
	err = d.targetNetVM.RunAll()
	if err != nil {
		return fmt.Errorf("step: could not run target net: %v", err)
	}

	// Set the action values for the actions in the next states
	err = G.Let(d.nextStateActionValues, d.targetNet.Output()[0])
	if err != nil {
		return fmt.Errorf("step: could not set next state-action "+
			"values: %v", err)
	}

	rewardTensor := tensor.New(tensor.WithBacking(rewards),
		tensor.WithShape(d.batchSize))
	err = G.Let(d.rewards, rewardTensor)
	if err != nil {
		return fmt.Errorf("step: could not set rewards: %v", err)
	}

	// Terminal transitions bootstrap from the reward alone
	discounts := make([]float64, len(terminals))
	for i, terminal := range terminals {
		if !terminal {
			discounts[i] = d.discount
		}
	}
	discountTensor := tensor.New(tensor.WithBacking(discounts),
		tensor.WithShape(d.batchSize))
	err = G.Let(d.discounts, discountTensor)
	if err != nil {
		return fmt.Errorf("step: could not set discounts: %v", err)
	}

	d.targetNetVM.Reset()

	// Run the learning step
	err = d.trainNetVM.RunAll()
	if err != nil {
		return fmt.Errorf("step: could not run learning step: %v", err)
	}
	err = d.solver.Step(d.trainNet.Model())
	if err != nil {
		return fmt.Errorf("step: could not update weights: %v", err)
	}
	d.trainNetVM.Reset()
	d.gradientSteps++

	// Update the target network by setting its weights to the newly
	// learned weights
	if d.gradientSteps%d.targetSyncInterval == 0 {
		if d.tau == 1.0 {
			err = d.targetNet.Set(d.trainNet)
		} else {
			err = d.targetNet.Polyak(d.trainNet, d.tau)
		}
		if err != nil {
			return fmt.Errorf("step: could not sync target network: %v",
				err)
		}
	}

	err = d.targetPolicy.Set(d.trainNet)
	if err != nil {
		return fmt.Errorf("step: could not update target policy: %v", err)
	}
	err = d.behaviourPolicy.Set(d.trainNet)
	if err != nil {
		return fmt.Errorf("step: could not update behaviour policy: %v",
			err)
	}

	return nil
}

// SelectAction runs the necessary VMs and then returns an action
// selected over the current stack of frames. In training mode the
// behaviour policy is used with its epsilon annealed according to the
// schedule; in evaluation mode the greedy target policy is used.
func (d *DQN) SelectAction(t ts.TimeStep) *mat.VecDense {
	var p agent.NNPolicy
	var vm G.VM

	if d.eval {
		p = d.targetPolicy
		vm = d.targetPolicyVM
	} else {
		d.behaviourPolicy.SetEpsilon(d.schedule.Value(d.steps))
		p = d.behaviourPolicy
		vm = d.behaviourPolicyVM
	}

	err := p.SetInput(d.stackedObservation())
	if err != nil {
		panic(fmt.Sprintf("selectaction: %v", err))
	}

	// Run the policy's computational graph
	err = vm.RunAll()
	if err != nil {
		panic(fmt.Sprintf("selectaction: could not run policy: %v", err))
	}

	// Get the policy to select an action using the data generated by
	// running the computational graph
	action, _ := p.SelectAction()

	vm.Reset()
	return action
}

// Epsilon returns the current value of epsilon used by the behaviour
// policy
func (d *DQN) Epsilon() float64 {
	return d.schedule.Value(d.steps)
}

// Eval sets the agent into evaluation mode
func (d *DQN) Eval() {
	d.eval = true
}

// Train sets the agent into training mode
func (d *DQN) Train() {
	d.eval = false
}

// IsEval returns whether the agent is in evaluation mode
func (d *DQN) IsEval() bool {
	return d.eval
}

// EndEpisode performs cleanup at the end of an episode
func (d *DQN) EndEpisode() {}

// Close closes the VMs that run the agent's computational graphs
func (d *DQN) Close() error {
	behaviourErr := d.behaviourPolicyVM.Close()
	targetErr := d.targetPolicyVM.Close()
	trainErr := d.trainNetVM.Close()
	targetNetErr := d.targetNetVM.Close()

	for _, err := range []error{behaviourErr, targetErr, trainErr,
		targetNetErr} {
		if err != nil {
			return fmt.Errorf("close: could not close VM: %v", err)
		}
	}
	return nil
}

// TargetPolicy returns the greedy policy learned by the agent
func (d *DQN) TargetPolicy() agent.EGreedyNNPolicy {
	return d.targetPolicy
}

// stackedObservation concatenates the frame window into a single
// input vector for the action selection networks
func (d *DQN) stackedObservation() []float64 {
	obs := make([]float64, 0, d.historyLength*d.frameSize)
	for i := 0; i < d.frames.Len(); i++ {
		obs = append(obs, d.frames.At(i)...)
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
