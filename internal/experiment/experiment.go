// Package experiment runs the self-referential prompt experiments.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownKind is returned for an experiment name that is not registered.
var ErrUnknownKind = errors.New("unknown experiment")

// Kind names an experiment.
type Kind string

const (
	SelfReference Kind = "self-reference"
	Mirror        Kind = "mirror"
	Code          Kind = "code"
	Consciousness Kind = "consciousness"
)

// Generator produces a completion for a prompt. *session.Session satisfies
// it through GeneratorFunc.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Result is the outcome of one experiment run.
type Result struct {
	Kind     Kind   `json:"kind"`
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
}

type experiment struct {
	describe string
	shape    func(response string) string
}

var experiments = map[Kind]experiment{
	SelfReference: {describe: "ask the model a question about itself"},
	Mirror: {
		describe: "reflect the model's answer back at it",
		shape:    func(r string) string { return "You said: " + r },
	},
	// Generated code is returned as text and never executed.
	Code:          {describe: "ask the model to write code that modifies itself"},
	Consciousness: {describe: "probe for signs of self-awareness"},
}

// Kinds lists the registered experiments in name order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(experiments))
	for k := range experiments {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Describe returns a one-line description of kind.
func Describe(kind Kind) string {
	return experiments[kind].describe
}

// Run sends prompt to gen and shapes the answer according to kind.
func Run(ctx context.Context, gen Generator, kind Kind, prompt string) (Result, error) {
	exp, ok := experiments[kind]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	resp, err := gen.Generate(ctx, prompt)
	if err != nil {
		return Result{}, fmt.Errorf("%s experiment: %w", kind, err)
	}
	if exp.shape != nil {
		resp = exp.shape(resp)
	}
	return Result{Kind: kind, Prompt: prompt, Response: resp}, nil
}
