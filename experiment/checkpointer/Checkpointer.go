// Package checkpointer implements periodic saving of serializable
// objects, such as learned agent weights, during an experiment
package checkpointer

import (
	"encoding/gob"

	ts "github.com/samuelfneumann/goatari/timestep"
)

// Serializable is an object that can be saved/serialized
type Serializable interface {
	gob.GobEncoder
	gob.GobDecoder
}

// Checkpointer checkpoints/saves serializable objects based on
// timestep.TimeSteps
type Checkpointer interface {
	Checkpoint(ts.TimeStep) error
}
