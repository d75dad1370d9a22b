package executor

import (
	"fmt"
	"log/slog"

	"github.com/me/cyclelaunch/pkg/model"
)

// Registry maps SchedulerKind values to their Submitter implementations.
// Registration happens at startup before concurrent access, so no mutex is needed.
type Registry struct {
	submitters map[model.SchedulerKind]Submitter
	logger     *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		submitters: make(map[model.SchedulerKind]Submitter),
		logger:     logger.With("component", "submitter-registry"),
	}
}

// Register adds a Submitter to the registry, keyed by its Kind().
func (r *Registry) Register(s Submitter) {
	k := s.Kind()
	r.submitters[k] = s
	r.logger.Debug("submitter registered", "kind", k)
}

// Get returns the Submitter for the given kind or an error if none is registered.
func (r *Registry) Get(k model.SchedulerKind) (Submitter, error) {
	s, ok := r.submitters[k]
	if !ok {
		return nil, fmt.Errorf("no submitter registered for scheduler kind %q", k)
	}
	return s, nil
}

// NewDefaultRegistry registers a CommandSubmitter for every known kind.
// The selected kind takes command and args overrides; an empty command keeps
// the kind's default binary.
func NewDefaultRegistry(selected model.SchedulerKind, command string, args []string, logger *slog.Logger) *Registry {
	reg := NewRegistry(logger)
	for _, kind := range []model.SchedulerKind{model.SchedulerKindSlurm, model.SchedulerKindPBS} {
		cmd, cmdArgs := DefaultCommand(kind), []string(nil)
		if kind == selected {
			if command != "" {
				cmd = command
			}
			cmdArgs = args
		}
		reg.Register(NewCommandSubmitter(kind, cmd, cmdArgs, logger))
	}
	return reg
}
