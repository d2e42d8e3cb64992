package types

// JobDescriptor holds the scheduler directives for a batch job. It is
// static configuration: built once at submission time and consumed by
// the scheduler, never mutated afterwards.
type JobDescriptor struct {
	JobName    string `json:"job_name" yaml:"job_name"`
	QOS        string `json:"qos" yaml:"qos"`
	Nodes      int    `json:"nodes" yaml:"nodes"`
	Walltime   string `json:"walltime" yaml:"walltime"`
	Licenses   string `json:"licenses,omitempty" yaml:"licenses,omitempty"`
	Constraint string `json:"constraint,omitempty" yaml:"constraint,omitempty"`
	Account    string `json:"account,omitempty" yaml:"account,omitempty"`
	Output     string `json:"output,omitempty" yaml:"output,omitempty"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// WorkloadSpec is the command sequence the allocation runs, in order:
// load modules, activate the virtualenv, change directory, run the
// program, deactivate. The order is fixed and never rearranged.
type WorkloadSpec struct {
	Modules []string `json:"modules,omitempty" yaml:"modules,omitempty"`
	Venv    string   `json:"venv,omitempty" yaml:"venv,omitempty"`
	Workdir string   `json:"workdir,omitempty" yaml:"workdir,omitempty"`
	Command string   `json:"command" yaml:"command"`
}

// JobTemplate is a named descriptor+workload pair loaded from the
// templates file.
type JobTemplate struct {
	Name       string        `yaml:"name"`
	Enabled    bool          `yaml:"enabled"`
	Descriptor JobDescriptor `yaml:"descriptor"`
	Workload   WorkloadSpec  `yaml:"workload"`
}

// DefaultTrialDescriptor is the descriptor of the btq trial-run job the
// service was built around.
func DefaultTrialDescriptor() JobDescriptor {
	return JobDescriptor{
		JobName:    "btq_trial_runs",
		QOS:        "debug",
		Nodes:      1,
		Walltime:   "00:10:00",
		Licenses:   "cfs",
		Constraint: "cpu",
		Account:    "m3930",
		Output:     "job-btq.o%j",
		Error:      "job-btq.e%j",
	}
}

// DefaultTrialWorkload is the matching command sequence. Paths are
// placeholders; deployments override them from the templates file.
func DefaultTrialWorkload() WorkloadSpec {
	return WorkloadSpec{
		Modules: []string{"python", "conda"},
		Venv:    "$HOME/venvs/btq",
		Workdir: "$HOME/btq",
		Command: "python framework.py",
	}
}
