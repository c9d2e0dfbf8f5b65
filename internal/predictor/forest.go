package predictor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ZanzyTHEbar/startup-success-predictor/internal/features"
)

// leaf marks a missing child in the flattened tree arrays.
const leaf = -1

// Tree is one decision tree in flattened array form. Node 0 is the root.
// value[i] holds the class weights (failure, success) at node i.
type Tree struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

// Forest averages the leaf class distributions of its trees.
type Forest struct {
	trees []Tree
	info  Info
}

type forestDocument struct {
	Envelope
	Trees []Tree `json:"trees"`
}

func decodeForest(env Envelope, data []byte) (Predictor, error) {
	var doc forestDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return NewForest(doc.Trees, Info{Format: env.Format, Version: env.Version})
}

// NewForest validates trees and builds a Forest.
func NewForest(trees []Tree, info Info) (*Forest, error) {
	if len(trees) == 0 {
		return nil, fmt.Errorf("forest has no trees")
	}
	for i := range trees {
		if err := trees[i].validate(features.Len()); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
	}
	info.Trees = len(trees)
	if info.Format == "" {
		info.Format = "forest"
	}
	return &Forest{trees: trees, info: info}, nil
}

func (t *Tree) validate(nFeatures int) error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return fmt.Errorf("empty tree")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return fmt.Errorf("node arrays have mismatched lengths")
	}
	for i := 0; i < n; i++ {
		l, r := t.ChildrenLeft[i], t.ChildrenRight[i]
		if (l == leaf) != (r == leaf) {
			return fmt.Errorf("node %d has exactly one child", i)
		}
		if l == leaf {
			if len(t.Value[i]) != 2 {
				return fmt.Errorf("leaf %d has %d class weights, want 2", i, len(t.Value[i]))
			}
			if t.Value[i][0] < 0 || t.Value[i][1] < 0 || t.Value[i][0]+t.Value[i][1] <= 0 {
				return fmt.Errorf("leaf %d has invalid class weights %v", i, t.Value[i])
			}
			continue
		}
		// Children always point forward, so traversal terminates.
		if l <= i || l >= n || r <= i || r >= n {
			return fmt.Errorf("node %d has out-of-range children %d/%d", i, l, r)
		}
		if t.Feature[i] < 0 || t.Feature[i] >= nFeatures {
			return fmt.Errorf("node %d splits on feature %d, schema has %d", i, t.Feature[i], nFeatures)
		}
	}
	return nil
}

func (t *Tree) leafFor(vec features.Vector) int {
	node := 0
	for t.ChildrenLeft[node] != leaf {
		if vec[t.Feature[node]] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return node
}

func (f *Forest) probabilities(vec features.Vector) Probabilities {
	var failure, success float64
	for i := range f.trees {
		w := f.trees[i].Value[f.trees[i].leafFor(vec)]
		total := w[0] + w[1]
		failure += w[0] / total
		success += w[1] / total
	}
	n := float64(len(f.trees))
	return Probabilities{Failure: failure / n, Success: success / n}
}

// Predict computes class and probabilities with one traversal per tree.
// The class is the argmax of the averaged distribution; ties go to failure.
func (f *Forest) Predict(_ context.Context, vec features.Vector) (Output, error) {
	if err := vec.Validate(); err != nil {
		return Output{}, err
	}
	probs := f.probabilities(vec)
	class := 0
	if probs.Success > probs.Failure {
		class = 1
	}
	return Output{Class: class, Probabilities: probs}, nil
}

func (f *Forest) Classify(ctx context.Context, vec features.Vector) (int, error) {
	out, err := f.Predict(ctx, vec)
	return out.Class, err
}

func (f *Forest) ClassProbabilities(ctx context.Context, vec features.Vector) (Probabilities, error) {
	out, err := f.Predict(ctx, vec)
	return out.Probabilities, err
}

func (f *Forest) Info() Info { return f.info }
