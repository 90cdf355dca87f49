package expreplay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/goatari/timestep"
)

const testSeed uint64 = 192382

// push stores a transition whose single-feature frame holds the value
// v and whose following frame holds v + 0.5
func push(t *testing.T, m *Memory, v float64, action int, reward float64,
	terminal bool) {
	t.Helper()
	err := m.Push(timestep.Transition{
		State:     mat.NewVecDense(1, []float64{v}),
		Action:    action,
		Reward:    reward,
		NextState: mat.NewVecDense(1, []float64{v + 0.5}),
		Terminal:  terminal,
	})
	require.NoError(t, err)
}

func TestNewInvalidConfiguration(t *testing.T) {
	for _, args := range [][3]int{
		{0, 4, 1},
		{-1, 4, 1},
		{100, 0, 1},
		{100, 4, 0},
	} {
		_, err := New(args[0], args[1], args[2], testSeed)
		require.Error(t, err)
		assert.True(t, IsInvalidConfiguration(err))
		assert.False(t, IsInsufficientData(err))
	}
}

func TestPushRoundTrip(t *testing.T) {
	m, err := New(5, 1, 2, testSeed)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		v := float64(i)
		err := m.Push(timestep.Transition{
			State:     mat.NewVecDense(2, []float64{v, v + 0.25}),
			Action:    i,
			Reward:    v * 2,
			NextState: mat.NewVecDense(2, []float64{v + 0.5, v + 0.75}),
			Terminal:  i == 2,
		})
		require.NoError(t, err)
		assert.Equal(t, i+1, m.Len())
	}

	for i := 0; i < 3; i++ {
		v := float64(i)
		tr, err := m.At(i)
		require.NoError(t, err)
		assert.Equal(t, v, tr.State.AtVec(0))
		assert.Equal(t, v+0.25, tr.State.AtVec(1))
		assert.Equal(t, i, tr.Action)
		assert.Equal(t, v*2, tr.Reward)
		assert.Equal(t, v+0.5, tr.NextState.AtVec(0))
		assert.Equal(t, i == 2, tr.Terminal)
	}

	_, err = m.At(3)
	assert.Error(t, err)
}

func TestPushInvalidFrameSize(t *testing.T) {
	m, err := New(5, 1, 2, testSeed)
	require.NoError(t, err)

	err = m.Push(timestep.Transition{
		State:     mat.NewVecDense(3, nil),
		NextState: mat.NewVecDense(3, nil),
	})
	assert.Error(t, err)
	assert.Equal(t, 0, m.Len())
}

func TestCircularOverwrite(t *testing.T) {
	m, err := New(3, 1, 1, testSeed)
	require.NoError(t, err)

	assert.False(t, m.Full())
	for i := 0; i < 5; i++ {
		push(t, m, float64(i), i, float64(i), false)
	}

	assert.Equal(t, 3, m.Len())
	assert.Equal(t, 2, m.Position())
	assert.True(t, m.Full())

	// The three most recent pushes survive, oldest-first from the
	// write cursor
	survivors := make(map[int]bool)
	for i := 0; i < 3; i++ {
		tr, err := m.At(i)
		require.NoError(t, err)
		survivors[tr.Action] = true
	}
	assert.Equal(t, map[int]bool{2: true, 3: true, 4: true}, survivors)

	// Slots hold T3, T4, T2 in physical order after wrapping
	for slot, want := range []int{3, 4, 2} {
		tr, err := m.At(slot)
		require.NoError(t, err)
		assert.Equal(t, want, tr.Action)
	}
}

func TestFillingToFullOnce(t *testing.T) {
	m, err := New(4, 1, 1, testSeed)
	require.NoError(t, err)

	for i := 0; i < 12; i++ {
		push(t, m, float64(i), i, 0, false)
		assert.Equal(t, (i+1)%4, m.Position())
		if i < 3 {
			assert.False(t, m.Full())
		} else {
			assert.True(t, m.Full())
			assert.Equal(t, 4, m.Len())
		}
	}
}

func TestSampleIndicesDistinct(t *testing.T) {
	m, err := New(5, 1, 1, testSeed)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		push(t, m, float64(i), i, 0, false)
	}

	// Sampling everything must return a permutation of all slots
	indices, err := m.SampleIndices(5)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4}, indices)

	// Smaller batches are distinct and in range
	for trial := 0; trial < 25; trial++ {
		indices, err := m.SampleIndices(3)
		require.NoError(t, err)
		require.Len(t, indices, 3)

		seen := make(map[int]bool)
		for _, index := range indices {
			assert.GreaterOrEqual(t, index, 0)
			assert.Less(t, index, m.Len())
			assert.False(t, seen[index])
			seen[index] = true
		}
	}
}

func TestSampleInsufficientData(t *testing.T) {
	m, err := New(5, 1, 1, testSeed)
	require.NoError(t, err)
	push(t, m, 0, 0, 0, false)
	push(t, m, 1, 1, 0, false)

	_, err = m.SampleIndices(3)
	require.Error(t, err)
	assert.True(t, IsInsufficientData(err))
	assert.False(t, IsInvalidConfiguration(err))

	_, err = m.SampleIndices(0)
	require.Error(t, err)
	assert.True(t, IsInvalidConfiguration(err))
}

func TestMinibatchAlignment(t *testing.T) {
	m, err := New(6, 1, 1, testSeed)
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		push(t, m, float64(i), i, float64(i)*10, i == 5)
	}

	indices := []int{4, 1, 5}
	states, actions, rewards, nextStates, terminals, err := m.Minibatch(indices)
	require.NoError(t, err)

	for i, index := range indices {
		assert.Equal(t, float64(index), states[i])
		assert.Equal(t, index, actions[i])
		assert.Equal(t, float64(index)*10, rewards[i])
		assert.Equal(t, float64(index)+0.5, nextStates[i])
		assert.Equal(t, index == 5, terminals[i])
	}

	// Pure read: a second call on an unchanged buffer is identical
	states2, actions2, rewards2, nextStates2, terminals2, err := m.Minibatch(indices)
	require.NoError(t, err)
	assert.Equal(t, states, states2)
	assert.Equal(t, actions, actions2)
	assert.Equal(t, rewards, rewards2)
	assert.Equal(t, nextStates, nextStates2)
	assert.Equal(t, terminals, terminals2)

	_, _, _, _, _, err = m.Minibatch([]int{6})
	assert.Error(t, err)
}

func TestFrameStackReconstruction(t *testing.T) {
	m, err := New(10, 4, 1, testSeed)
	require.NoError(t, err)
	for i := 0; i < 8; i++ {
		push(t, m, float64(i), i, 0, false)
	}

	states, _, _, nextStates, _, err := m.Minibatch([]int{5})
	require.NoError(t, err)

	// Stack ends at slot 5, frames ordered oldest first
	assert.Equal(t, []float64{2, 3, 4, 5}, states)

	// Next-state stack shifts the window forward one frame
	assert.Equal(t, []float64{3, 4, 5, 5.5}, nextStates)
}

func TestStackPadsAtEpisodeStart(t *testing.T) {
	m, err := New(10, 4, 1, testSeed)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		push(t, m, float64(i), i, 0, false)
	}

	// Slot 1 has a single predecessor, so the earliest usable frame
	// is duplicated to fill the stack
	states, _, _, _, _, err := m.Minibatch([]int{1})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 1}, states)
}

func TestTerminalBoundaryExcludedFromSampling(t *testing.T) {
	m, err := New(10, 3, 1, testSeed)
	require.NoError(t, err)
	for i := 0; i < 8; i++ {
		push(t, m, float64(i), i, 0, i == 3)
	}

	// Stackable slots need two predecessors in the same episode.
	// Slots 0 and 1 lack predecessors, slots 4 and 5 would cross the
	// terminal at slot 3. A stack may end at the terminal itself.
	indices, err := m.SampleIndices(4)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{2, 3, 6, 7}, indices)

	_, err = m.SampleIndices(5)
	require.Error(t, err)
	assert.True(t, IsInsufficientData(err))

	// An externally supplied index just past the terminal pads with
	// its own frame rather than reading the previous episode
	states, _, _, _, _, err := m.Minibatch([]int{4})
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 4, 4}, states)
}

func TestStackNeverCrossesWriteCursor(t *testing.T) {
	m, err := New(5, 3, 1, testSeed)
	require.NoError(t, err)
	for i := 0; i < 7; i++ {
		push(t, m, float64(i), i, 0, false)
	}

	// Physical slots now hold 5, 6, 2, 3, 4 with the cursor at 2.
	// Slots 2 and 3 sit too close to the oldest stored frame for a
	// full stack.
	indices, err := m.SampleIndices(3)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{0, 1, 4}, indices)

	// A stack ending at slot 0 (frame 5) reads backward through the
	// wraparound in chronological order
	states, _, _, _, _, err := m.Minibatch([]int{0})
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4, 5}, states)
}

func TestSampleThenMinibatch(t *testing.T) {
	m, err := New(50, 4, 3, testSeed)
	require.NoError(t, err)
	for i := 0; i < 30; i++ {
		v := float64(i)
		err := m.Push(timestep.Transition{
			State:     mat.NewVecDense(3, []float64{v, v, v}),
			Action:    i % 4,
			Reward:    v,
			NextState: mat.NewVecDense(3, []float64{v + 1, v + 1, v + 1}),
			Terminal:  false,
		})
		require.NoError(t, err)
	}

	indices, err := m.SampleIndices(8)
	require.NoError(t, err)

	states, actions, rewards, nextStates, terminals, err := m.Minibatch(indices)
	require.NoError(t, err)
	require.Len(t, states, 8*4*3)
	require.Len(t, nextStates, 8*4*3)
	require.Len(t, actions, 8)
	require.Len(t, rewards, 8)
	require.Len(t, terminals, 8)

	for i, index := range indices {
		assert.Equal(t, index%4, actions[i])
		assert.Equal(t, float64(index), rewards[i])

		// Newest frame of each stack is the slot's own frame
		row := states[i*12 : (i+1)*12]
		assert.Equal(t, float64(index), row[9])
	}
}

func TestConcurrentPushDoesNotTearMinibatch(t *testing.T) {
	const (
		capacity  = 256
		history   = 4
		frameSize = 8
		total     = 4096
	)

	m, err := New(capacity, history, frameSize, testSeed)
	require.NoError(t, err)

	frame := func(v float64) mat.Vector {
		data := make([]float64, frameSize)
		for i := range data {
			data[i] = v
		}
		return mat.NewVecDense(frameSize, data)
	}
	pushValue := func(i int) error {
		return m.Push(timestep.Transition{
			State:     frame(float64(i)),
			Action:    i,
			Reward:    float64(i),
			NextState: frame(float64(i) + 0.5),
			Terminal:  i%50 == 49,
		})
	}

	for i := 0; i < 64; i++ {
		require.NoError(t, pushValue(i))
	}

	pushErr := make(chan error, 1)
	go func() {
		for i := 64; i < total; i++ {
			if err := pushValue(i); err != nil {
				pushErr <- err
				return
			}
		}
		pushErr <- nil
	}()

	stackSize := history * frameSize
	for trial := 0; trial < 200; trial++ {
		indices, err := m.SampleIndices(16)
		if err != nil {
			require.True(t, IsInsufficientData(err))
			continue
		}

		states, actions, _, nextStates, _, err := m.Minibatch(indices)
		require.NoError(t, err)

		for i := range indices {
			row := states[i*stackSize : (i+1)*stackSize]
			nextRow := nextStates[i*stackSize : (i+1)*stackSize]

			// Every pushed frame is a constant-valued block, so a
			// partially copied frame would surface as a mixed block
			for f := 0; f < history; f++ {
				for _, batch := range [][]float64{row, nextRow} {
					block := batch[f*frameSize : (f+1)*frameSize]
					for _, v := range block[1:] {
						require.Equal(t, block[0], v)
					}
				}
			}

			// The newest frame and the action are written to the same
			// slot under one lock, so they must agree even if the slot
			// was overwritten after the indices were drawn
			require.Equal(t, float64(actions[i]),
				row[(history-1)*frameSize])
			require.Equal(t, float64(actions[i])+0.5,
				nextRow[(history-1)*frameSize])
		}
	}

	require.NoError(t, <-pushErr)
}
