// Package preflight verifies that everything a workload references
// exists before the job is handed to the scheduler.
package preflight

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/btq-lab/batch-watcher/pkg/types"
	"github.com/sirupsen/logrus"
)

type Checker struct {
	logger *logrus.Logger
}

func NewChecker(logger *logrus.Logger) *Checker {
	return &Checker{logger: logger}
}

// Check validates the workload's referenced paths. Environment
// variables in paths are expanded against the submitting environment,
// which matches how the shell on the worker node resolves them.
func (c *Checker) Check(workload types.WorkloadSpec) error {
	if workload.Workdir != "" {
		dir := os.ExpandEnv(workload.Workdir)
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("working directory %s: %w", workload.Workdir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("working directory %s is not a directory", workload.Workdir)
		}
	}

	if workload.Venv != "" {
		activate := filepath.Join(os.ExpandEnv(workload.Venv), "bin", "activate")
		if _, err := os.Stat(activate); err != nil {
			return fmt.Errorf("virtualenv activate script %s: %w", activate, err)
		}
	}

	c.checkModules(workload.Modules)

	return nil
}

// checkModules is advisory: module systems vary per cluster, so a
// missing modulecmd only logs.
func (c *Checker) checkModules(modules []string) {
	if len(modules) == 0 {
		return
	}
	if _, err := exec.LookPath("modulecmd"); err != nil {
		c.logger.Debugf("modulecmd not on PATH, skipping module checks for: %s",
			strings.Join(modules, ", "))
		return
	}
	c.logger.Debugf("Modules to load at dispatch: %s", strings.Join(modules, ", "))
}
