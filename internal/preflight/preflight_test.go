package preflight

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/btq-lab/batch-watcher/pkg/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChecker() *Checker {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return NewChecker(logger)
}

func TestCheckPasses(t *testing.T) {
	root := t.TempDir()
	venv := filepath.Join(root, "venv")
	require.NoError(t, os.MkdirAll(filepath.Join(venv, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(venv, "bin", "activate"), []byte("# venv"), 0o644))

	workdir := filepath.Join(root, "work")
	require.NoError(t, os.MkdirAll(workdir, 0o755))

	checker := newTestChecker()
	err := checker.Check(types.WorkloadSpec{
		Modules: []string{"python", "conda"},
		Venv:    venv,
		Workdir: workdir,
		Command: "python framework.py",
	})
	assert.NoError(t, err)
}

func TestCheckExpandsEnv(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "work"), 0o755))
	t.Setenv("BTQ_ROOT", root)

	checker := newTestChecker()
	err := checker.Check(types.WorkloadSpec{
		Workdir: "$BTQ_ROOT/work",
		Command: "python framework.py",
	})
	assert.NoError(t, err)
}

func TestCheckMissingWorkdir(t *testing.T) {
	checker := newTestChecker()
	err := checker.Check(types.WorkloadSpec{
		Workdir: filepath.Join(t.TempDir(), "nope"),
		Command: "python framework.py",
	})
	assert.ErrorContains(t, err, "working directory")
}

func TestCheckWorkdirIsFile(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	checker := newTestChecker()
	err := checker.Check(types.WorkloadSpec{Workdir: file, Command: "x"})
	assert.ErrorContains(t, err, "is not a directory")
}

func TestCheckMissingVenv(t *testing.T) {
	checker := newTestChecker()
	err := checker.Check(types.WorkloadSpec{
		Venv:    filepath.Join(t.TempDir(), "venv"),
		Command: "python framework.py",
	})
	assert.ErrorContains(t, err, "activate script")
}

func TestCheckEmptyWorkloadPasses(t *testing.T) {
	checker := newTestChecker()
	assert.NoError(t, checker.Check(types.WorkloadSpec{Command: "python framework.py"}))
}
