// Package api contains the public types for qflow batch description files.
package api

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// JobSpec describes one job in a batch file. After names other jobs in the
// same batch that must terminate before this one may start.
type JobSpec struct {
	Name   string            `json:"name" yaml:"name"`
	Script string            `json:"script" yaml:"script"`
	Env    map[string]string `json:"env" yaml:"env"`
	Hours  int               `json:"hours" yaml:"hours"`
	Cores  int               `json:"cores" yaml:"cores"`
	After  []string          `json:"after" yaml:"after"`
}

// BatchSpec describes a whole batch of interdependent jobs.
type BatchSpec struct {
	Name  string    `json:"name" yaml:"name"`
	Queue string    `json:"queue" yaml:"queue"`
	Jobs  []JobSpec `json:"jobs" yaml:"jobs"`
}

// LoadBatchSpec reads a batch description from a YAML file.
func LoadBatchSpec(path string) (BatchSpec, error) {
	var spec BatchSpec
	data, err := os.ReadFile(path)
	if err != nil {
		return spec, fmt.Errorf("read batch file: %w", err)
	}
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return spec, fmt.Errorf("parse batch file: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return spec, err
	}
	return spec, nil
}

// Validate checks names are present, unique, and that After references
// resolve within the batch.
func (b BatchSpec) Validate() error {
	if b.Name == "" {
		return fmt.Errorf("batch needs a name")
	}
	if len(b.Jobs) == 0 {
		return fmt.Errorf("batch %q has no jobs", b.Name)
	}
	seen := map[string]bool{}
	for _, j := range b.Jobs {
		if j.Name == "" {
			return fmt.Errorf("batch %q: job without a name", b.Name)
		}
		if seen[j.Name] {
			return fmt.Errorf("batch %q: duplicate job name %q", b.Name, j.Name)
		}
		seen[j.Name] = true
	}
	for _, j := range b.Jobs {
		for _, dep := range j.After {
			if !seen[dep] {
				return fmt.Errorf("batch %q: job %q depends on unknown job %q", b.Name, j.Name, dep)
			}
		}
	}
	return nil
}

// TopoOrder returns the jobs in an order compatible with their dependency
// graph: every job comes after everything it lists in After. Jobs already in
// a valid order keep their relative position. A dependency cycle is an error.
func (b BatchSpec) TopoOrder() ([]JobSpec, error) {
	byName := map[string]JobSpec{}
	for _, j := range b.Jobs {
		byName[j.Name] = j
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := map[string]int{}
	var ordered []JobSpec

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("batch %q: dependency cycle through job %q", b.Name, name)
		}
		state[name] = visiting
		for _, dep := range byName[name].After {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[name] = done
		ordered = append(ordered, byName[name])
		return nil
	}

	for _, j := range b.Jobs {
		if err := visit(j.Name); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}
