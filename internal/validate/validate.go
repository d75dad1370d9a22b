// Package validate checks that an experiment has everything a launch needs
// before any time is spent polling.
package validate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/me/cyclelaunch/pkg/model"
)

// Problem is one unmet precondition.
type Problem struct {
	Path    string
	Message string
}

func (p Problem) String() string {
	return p.Path + ": " + p.Message
}

// Experiment checks that the experiment directory exists and that every
// path in required is a regular file. The returned slice is empty when the
// experiment can run.
func Experiment(exp model.Experiment, required []string) []Problem {
	return experiment(os.Stat, exp, required)
}

func experiment(stat func(string) (fs.FileInfo, error), exp model.Experiment, required []string) []Problem {
	var problems []Problem

	info, err := stat(exp.Dir)
	switch {
	case err != nil:
		problems = append(problems, Problem{Path: exp.Dir, Message: describe("experiment directory", err)})
	case !info.IsDir():
		problems = append(problems, Problem{Path: exp.Dir, Message: "experiment path is not a directory"})
	}

	for _, path := range required {
		info, err := stat(path)
		switch {
		case err != nil:
			problems = append(problems, Problem{Path: path, Message: describe("required file", err)})
		case info.IsDir():
			problems = append(problems, Problem{Path: path, Message: "required file is a directory"})
		}
	}
	return problems
}

func describe(what string, err error) string {
	if errors.Is(err, fs.ErrNotExist) {
		return what + " does not exist"
	}
	return fmt.Sprintf("%s is not accessible: %v", what, err)
}

// Err folds problems into a configuration RunError, or returns nil.
func Err(problems []Problem) error {
	if len(problems) == 0 {
		return nil
	}
	parts := make([]string, len(problems))
	for i, p := range problems {
		parts[i] = p.String()
	}
	return &model.RunError{
		Kind: model.KindConfiguration,
		Op:   "validate experiment",
		Err:  errors.New(strings.Join(parts, "; ")),
	}
}
