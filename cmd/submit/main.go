// submit renders one job template and hands it to sbatch. With
// -dry-run it prints the batch script instead of submitting.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/btq-lab/batch-watcher/internal/preflight"
	"github.com/btq-lab/batch-watcher/internal/script"
	"github.com/btq-lab/batch-watcher/internal/slurm"
	"github.com/btq-lab/batch-watcher/pkg/templates"
	"github.com/btq-lab/batch-watcher/pkg/types"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	templatesPath := flag.String("templates", "", "path to the job templates file (default: probe for config/jobs.yaml)")
	templateName := flag.String("template", "btq-trial", "name of the job template to submit")
	dryRun := flag.Bool("dry-run", false, "print the rendered batch script without submitting")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		_ = godotenv.Load(".env.local")
	}

	logger := logrus.New()

	desc := types.DefaultTrialDescriptor()
	workload := types.DefaultTrialWorkload()

	if file, err := templates.Load(*templatesPath); err != nil {
		logger.Warnf("Templates file not loaded (%v), using built-in trial job", err)
	} else if tmpl, err := file.Get(*templateName); err != nil {
		logger.Fatalf("Template lookup failed: %v", err)
	} else {
		desc = tmpl.Descriptor
		workload = tmpl.Workload
	}

	text, err := script.Render(desc, workload)
	if err != nil {
		logger.Fatalf("Failed to render batch script: %v", err)
	}

	if *dryRun {
		fmt.Print(text)
		return
	}

	checker := preflight.NewChecker(logger)
	if err := checker.Check(workload); err != nil {
		logger.Fatalf("Preflight failed: %v", err)
	}

	client := slurm.NewClient(logger, 30*time.Second)
	if info := client.Detect(); !info.Available {
		logger.Fatal(slurm.ErrSchedulerUnavailable)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	jobID, err := client.Submit(ctx, text)
	if err != nil {
		logger.Fatalf("Submission failed: %v", err)
	}

	fmt.Printf("Submitted job %s (%s)\n", jobID, desc.JobName)
}
