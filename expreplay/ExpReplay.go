// Package expreplay implements experience replay for off-policy
// learning from pixel observations.
//
// The replay buffer stores one flattened frame per transition and
// reconstructs multi-frame state stacks at sampling time. Storing
// single frames rather than full stacks keeps the memory footprint at
// roughly 1/historyLength of the naive layout, which matters at Atari
// scale where buffers hold hundreds of thousands of frames.
package expreplay

import (
	"fmt"
	"sync"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/goatari/timestep"
	"github.com/samuelfneumann/goatari/utils/intutils"
)

// Memory implements a fixed-capacity circular buffer of transitions
// with uniform random minibatch sampling.
//
// Slots are overwritten oldest-first once the buffer fills: a full
// buffer is the expected steady state of training, not an error. The
// buffer has exactly two macro-states, filling (Len() < Cap()) and
// full (Len() == Cap()), and moves between them exactly once.
//
// All mutation is routed through Memory's methods behind a single
// mutex, and Minibatch copies data out under the lock, so a Push
// racing with a sample can never produce a torn batch. The reference
// training loop is single-threaded; the locking exists so that a
// parallel actor/learner split needs no changes here.
type Memory struct {
	mu sync.Mutex

	states    []float64 // capacity * frameSize, frame observed at each slot
	nextFrame []float64 // capacity * frameSize, frame following each slot
	actions   []int
	rewards   []float64
	terminals []bool

	pos  int // next slot to overwrite
	size int

	capacity      int
	historyLength int
	frameSize     int

	rng *rand.Rand
}

// New returns an empty replay buffer holding at most capacity
// transitions. The historyLength parameter sets the number of
// consecutive frames composing one state stack and frameSize the
// number of features in a single flattened frame.
func New(capacity, historyLength, frameSize int, seed uint64) (*Memory,
	error) {
	if capacity <= 0 || historyLength <= 0 || frameSize <= 0 {
		return nil, &ExpReplayError{Op: "new", Err: errInvalidConfiguration}
	}

	source := rand.NewSource(seed)

	return &Memory{
		states:    make([]float64, capacity*frameSize),
		nextFrame: make([]float64, capacity*frameSize),
		actions:   make([]int, capacity),
		rewards:   make([]float64, capacity),
		terminals: make([]bool, capacity),

		capacity:      capacity,
		historyLength: historyLength,
		frameSize:     frameSize,

		rng: rand.New(source),
	}, nil
}

// Push writes a transition into the buffer, overwriting the oldest
// stored transition once the buffer is full. Push only errors when the
// transition's frames do not match the buffer's frame size.
func (m *Memory) Push(t timestep.Transition) error {
	if t.State.Len() != m.frameSize || t.NextState.Len() != m.frameSize {
		return fmt.Errorf("push: invalid frame size \n\twant(%v)\n\thave"+
			"(%v, %v)", m.frameSize, t.State.Len(), t.NextState.Len())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	start := m.pos * m.frameSize
	for i := 0; i < m.frameSize; i++ {
		m.states[start+i] = t.State.AtVec(i)
		m.nextFrame[start+i] = t.NextState.AtVec(i)
	}
	m.actions[m.pos] = t.Action
	m.rewards[m.pos] = t.Reward
	m.terminals[m.pos] = t.Terminal

	m.pos = (m.pos + 1) % m.capacity
	if m.size < m.capacity {
		m.size++
	}
	return nil
}

// Len returns the number of transitions currently stored
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size
}

// Cap returns the maximum number of transitions the buffer can store
func (m *Memory) Cap() int {
	return m.capacity
}

// HistoryLength returns the number of frames composing one state stack
func (m *Memory) HistoryLength() int {
	return m.historyLength
}

// FrameSize returns the number of features in one flattened frame
func (m *Memory) FrameSize() int {
	return m.frameSize
}

// Position returns the slot that the next Push will overwrite
func (m *Memory) Position() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos
}

// Full returns whether the buffer has reached capacity. Once full, a
// buffer stays full for the remainder of its lifetime.
func (m *Memory) Full() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size == m.capacity
}

// At returns a copy of the transition stored at slot i
func (m *Memory) At(i int) (timestep.Transition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if i < 0 || i >= m.size {
		return timestep.Transition{}, fmt.Errorf("at: index out of range "+
			"\n\twant[0, %v)\n\thave(%v)", m.size, i)
	}

	state := make([]float64, m.frameSize)
	next := make([]float64, m.frameSize)
	copy(state, m.states[i*m.frameSize:(i+1)*m.frameSize])
	copy(next, m.nextFrame[i*m.frameSize:(i+1)*m.frameSize])

	return timestep.Transition{
		State:     mat.NewVecDense(m.frameSize, state),
		Action:    m.actions[i],
		Reward:    m.rewards[i],
		NextState: mat.NewVecDense(m.frameSize, next),
		Terminal:  m.terminals[i],
	}, nil
}

// SampleIndices draws batchSize slot indices uniformly at random
// without replacement from the stackable transitions in the buffer.
// Sampling without replacement within a minibatch prevents duplicate
// transitions from skewing a single gradient update.
//
// A slot is stackable when a full historyLength-frame stack ending at
// it can be reconstructed: its window must not reach past the oldest
// stored frame, must not wrap backward across the write cursor once
// the buffer is full, and must not cross a terminal transition from an
// earlier episode. Callers should additionally gate sampling on a
// replay start size to avoid highly correlated early minibatches.
func (m *Memory) SampleIndices(batchSize int) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if batchSize <= 0 {
		return nil, &ExpReplayError{Op: "sampleIndices",
			Err: errInvalidConfiguration}
	}
	if m.size < batchSize {
		return nil, &ExpReplayError{Op: "sampleIndices", Err: errInsufficientData}
	}

	candidates := m.stackableIndices()
	if len(candidates) < batchSize {
		return nil, &ExpReplayError{Op: "sampleIndices", Err: errInsufficientData}
	}

	indices := make([]int, batchSize)
	for i, j := range m.rng.Perm(len(candidates))[:batchSize] {
		indices[i] = candidates[j]
	}
	return indices, nil
}

// Minibatch gathers the transitions at the argument indices into five
// aligned batches: flattened state stacks, actions, rewards, flattened
// next-state stacks, and terminal flags, ordered as the indices are.
// The state batches are row-major with one historyLength*frameSize
// stack per row, frames ordered oldest first.
//
// Minibatch is a pure read: calling it twice with the same indices on
// an unchanged buffer yields identical output.
func (m *Memory) Minibatch(indices []int) ([]float64, []int, []float64,
	[]float64, []bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stackSize := m.historyLength * m.frameSize
	states := make([]float64, len(indices)*stackSize)
	actions := make([]int, len(indices))
	rewards := make([]float64, len(indices))
	nextStates := make([]float64, len(indices)*stackSize)
	terminals := make([]bool, len(indices))

	for i, index := range indices {
		if index < 0 || index >= m.size {
			return nil, nil, nil, nil, nil, fmt.Errorf("minibatch: index "+
				"out of range \n\twant[0, %v)\n\thave(%v)", m.size, index)
		}

		row := states[i*stackSize : (i+1)*stackSize]
		nextRow := nextStates[i*stackSize : (i+1)*stackSize]

		m.stackInto(row, index)

		// The next-state stack shares all but its newest frame with
		// the state stack
		copy(nextRow, row[m.frameSize:])
		frame := m.nextFrame[index*m.frameSize : (index+1)*m.frameSize]
		copy(nextRow[(m.historyLength-1)*m.frameSize:], frame)

		actions[i] = m.actions[index]
		rewards[i] = m.rewards[index]
		terminals[i] = m.terminals[index]
	}

	return states, actions, rewards, nextStates, terminals, nil
}

// predecessors returns the number of stored transitions that
// chronologically precede slot i
func (m *Memory) predecessors(i int) int {
	if m.size < m.capacity {
		return i
	}
	return (i - m.pos + m.capacity) % m.capacity
}

// reach returns how many frames before slot i may be used in a stack
// ending at i. The backward walk stops at the oldest stored frame and
// at any terminal transition, so a stack never mixes frames from two
// episodes and never reads a slot that has been overwritten.
func (m *Memory) reach(i int) int {
	avail := m.predecessors(i)
	back := 0
	for back < m.historyLength-1 && back < avail {
		j := (i - back - 1 + m.capacity) % m.capacity
		if m.terminals[j] {
			break
		}
		back++
	}
	return back
}

// stackInto reconstructs the historyLength-frame stack ending at slot
// i into dst, oldest frame first. When fewer than historyLength-1
// predecessors are usable, the earliest usable frame is duplicated to
// pad the front of the stack.
func (m *Memory) stackInto(dst []float64, i int) {
	back := m.reach(i)

	for k := 0; k < m.historyLength; k++ {
		off := intutils.Min(m.historyLength-1-k, back)
		j := (i - off + m.capacity) % m.capacity
		copy(dst[k*m.frameSize:(k+1)*m.frameSize],
			m.states[j*m.frameSize:(j+1)*m.frameSize])
	}
}

// stackableIndices returns the slots at which a full state stack can
// be reconstructed without padding
func (m *Memory) stackableIndices() []int {
	indices := make([]int, 0, m.size)
	for i := 0; i < m.size; i++ {
		if m.reach(i) == m.historyLength-1 {
			indices = append(indices, i)
		}
	}
	return indices
}

// String returns the string representation of the buffer
func (m *Memory) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fmt.Sprintf("Memory(%v/%v, cursor: %v)", m.size, m.capacity, m.pos)
}
