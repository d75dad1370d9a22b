package executor

import (
	"testing"

	"github.com/me/cyclelaunch/internal/logging"
	"github.com/me/cyclelaunch/pkg/model"
)

func TestRegistry_GetUnknown(t *testing.T) {
	reg := NewRegistry(logging.Discard())
	if _, err := reg.Get("lsf"); err == nil {
		t.Fatal("expected error for unregistered kind")
	}
}

func TestNewDefaultRegistry(t *testing.T) {
	reg := NewDefaultRegistry(model.SchedulerKindPBS, "/opt/pbs/bin/qsub", []string{"-q", "debug"}, logging.Discard())

	pbs, err := reg.Get(model.SchedulerKindPBS)
	if err != nil {
		t.Fatalf("Get(pbs): %v", err)
	}
	cs := pbs.(*CommandSubmitter)
	if cs.command != "/opt/pbs/bin/qsub" || len(cs.args) != 2 {
		t.Errorf("pbs submitter = %q %v, want overrides applied", cs.command, cs.args)
	}

	slurm, err := reg.Get(model.SchedulerKindSlurm)
	if err != nil {
		t.Fatalf("Get(slurm): %v", err)
	}
	ss := slurm.(*CommandSubmitter)
	if ss.command != "/usr/bin/sbatch" || ss.args != nil {
		t.Errorf("slurm submitter = %q %v, want defaults", ss.command, ss.args)
	}
}

func TestDefaultCommand(t *testing.T) {
	if DefaultCommand(model.SchedulerKindSlurm) != "/usr/bin/sbatch" {
		t.Error("slurm default")
	}
	if DefaultCommand(model.SchedulerKindPBS) != "qsub" {
		t.Error("pbs default")
	}
	if DefaultCommand("other") != "" {
		t.Error("unknown kind should have no default")
	}
}
