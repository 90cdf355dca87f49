// Package network implements neural network function approximators
// using Gorgonia
package network

import (
	G "gorgonia.org/gorgonia"
)

// NeuralNet outlines the behaviour of neural network function
// approximators. A NeuralNet populates a Gorgonia ExprGraph; an
// external VM runs the graph to produce predictions.
type NeuralNet interface {
	// Graph returns the computational graph that the network
	// populates
	Graph() *G.ExprGraph

	// Clone clones the network to a new computational graph
	Clone() (NeuralNet, error)

	// CloneWithBatch clones the network to a new computational graph
	// with a new input batch size
	CloneWithBatch(int) (NeuralNet, error)

	// BatchSize returns the number of inputs in one batch
	BatchSize() int

	// Features returns the number of features in a single input
	Features() int

	// Outputs returns the number of outputs from the network
	Outputs() int

	// SetInput sets the value of the network's input node before the
	// graph is run
	SetInput([]float64) error

	// Set sets the weights of the network to those of another network
	Set(NeuralNet) error

	// Polyak sets the weights of the network to a Polyak average
	// between its existing weights and those of another network
	Polyak(NeuralNet, float64) error

	// Learnables returns the learnable nodes of the network
	Learnables() G.Nodes

	// Model returns the learnable nodes with their gradients
	Model() []G.ValueGrad

	// Output returns the value of the network's prediction from the
	// last run of the graph
	Output() []G.Value

	// Prediction returns the nodes of the computational graph that
	// store predictions
	Prediction() []*G.Node
}
