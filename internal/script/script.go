// Package script renders and parses batch scripts: a #SBATCH directive
// block followed by a fixed, non-branching command sequence.
package script

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/btq-lab/batch-watcher/pkg/types"
	"github.com/btq-lab/batch-watcher/pkg/utils"
)

// DirectivePrefix is the marker the scheduler scans batch scripts for.
const DirectivePrefix = "#SBATCH"

const shebang = "#!/bin/bash"

var jobNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Render produces the batch script for a descriptor and workload. The
// directive block and the command sequence both come out in a fixed
// order; the scheduler and the worker node consume them as-is.
func Render(desc types.JobDescriptor, workload types.WorkloadSpec) (string, error) {
	if err := Validate(desc, workload); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(shebang + "\n")

	writeDirective(&b, "qos", desc.QOS)
	writeDirective(&b, "nodes", strconv.Itoa(desc.Nodes))
	writeDirective(&b, "time", desc.Walltime)
	writeDirective(&b, "licenses", desc.Licenses)
	writeDirective(&b, "constraint", desc.Constraint)
	writeDirective(&b, "account", desc.Account)
	writeDirective(&b, "job-name", desc.JobName)
	writeDirective(&b, "output", desc.Output)
	writeDirective(&b, "error", desc.Error)

	b.WriteString("\n")

	for _, module := range workload.Modules {
		fmt.Fprintf(&b, "module load %s\n", module)
	}
	if workload.Venv != "" {
		fmt.Fprintf(&b, "source %s/bin/activate\n", workload.Venv)
	}
	if workload.Workdir != "" {
		fmt.Fprintf(&b, "cd %s\n", workload.Workdir)
	}
	b.WriteString(workload.Command + "\n")
	if workload.Venv != "" {
		b.WriteString("deactivate\n")
	}

	return b.String(), nil
}

func writeDirective(b *strings.Builder, key, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "%s --%s=%s\n", DirectivePrefix, key, value)
}

// Parse reads a batch script back into a descriptor and workload. It
// accepts anything Render emits plus blank lines and # comments.
func Parse(text string) (types.JobDescriptor, types.WorkloadSpec, error) {
	var desc types.JobDescriptor
	var workload types.WorkloadSpec

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, DirectivePrefix):
			if err := parseDirective(line, &desc); err != nil {
				return desc, workload, err
			}
		case strings.HasPrefix(line, "#"):
			continue
		case strings.HasPrefix(line, "module load "):
			workload.Modules = append(workload.Modules, strings.TrimPrefix(line, "module load "))
		case strings.HasPrefix(line, "source ") && strings.HasSuffix(line, "/bin/activate"):
			workload.Venv = strings.TrimSuffix(strings.TrimPrefix(line, "source "), "/bin/activate")
		case strings.HasPrefix(line, "cd "):
			workload.Workdir = strings.TrimPrefix(line, "cd ")
		case line == "deactivate":
			continue
		default:
			if workload.Command != "" {
				return desc, workload, fmt.Errorf("multiple program invocations: %q and %q", workload.Command, line)
			}
			workload.Command = line
		}
	}

	if err := Validate(desc, workload); err != nil {
		return desc, workload, err
	}
	return desc, workload, nil
}

func parseDirective(line string, desc *types.JobDescriptor) error {
	rest := strings.TrimSpace(strings.TrimPrefix(line, DirectivePrefix))
	if !strings.HasPrefix(rest, "--") {
		return fmt.Errorf("malformed directive %q", line)
	}
	key, value, ok := strings.Cut(strings.TrimPrefix(rest, "--"), "=")
	if !ok || value == "" {
		return fmt.Errorf("malformed directive %q", line)
	}

	switch key {
	case "qos":
		desc.QOS = value
	case "nodes":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid node count %q", value)
		}
		desc.Nodes = n
	case "time":
		desc.Walltime = value
	case "licenses":
		desc.Licenses = value
	case "constraint":
		desc.Constraint = value
	case "account":
		desc.Account = value
	case "job-name":
		desc.JobName = value
	case "output":
		desc.Output = value
	case "error":
		desc.Error = value
	default:
		return fmt.Errorf("unknown directive --%s", key)
	}
	return nil
}

// Validate rejects descriptors the scheduler would bounce, before any
// submission is attempted.
func Validate(desc types.JobDescriptor, workload types.WorkloadSpec) error {
	if desc.JobName == "" {
		return fmt.Errorf("job name is required")
	}
	if !jobNamePattern.MatchString(desc.JobName) {
		return fmt.Errorf("invalid job name %q", desc.JobName)
	}
	if desc.Nodes < 1 {
		return fmt.Errorf("node count must be at least 1, got %d", desc.Nodes)
	}
	if _, err := utils.ParseWalltime(desc.Walltime); err != nil {
		return fmt.Errorf("invalid wall-clock limit: %w", err)
	}
	if strings.TrimSpace(workload.Command) == "" {
		return fmt.Errorf("workload command is required")
	}
	return nil
}
