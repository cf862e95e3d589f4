// ABOUTME: validate command: loads definition files and dry-runs each workflow
// ABOUTME: Drives a synchronous engine through every step and renders the deliverable

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/2389/coven-wizard/internal/deliverable"
	"github.com/2389/coven-wizard/internal/engine"
	"github.com/2389/coven-wizard/internal/workflow"
)

// dryRunValue is submitted for every field in a dry run.
const dryRunValue = "example"

// runValidate checks every file and reports all failures before returning.
func runValidate(ctx context.Context, paths []string, out io.Writer) error {
	if len(paths) == 0 {
		return fmt.Errorf("validate requires at least one definition file")
	}

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	var failed int
	for _, path := range paths {
		def, err := workflow.LoadFile(path)
		if err == nil {
			err = dryRun(ctx, def)
		}
		if err != nil {
			failed++
			red.Fprint(out, "  ✗ ")
			fmt.Fprintf(out, "%s: %v\n", path, err)
			continue
		}
		green.Fprint(out, "  ✓ ")
		fmt.Fprintf(out, "%s: %s (%d steps)\n", path, def.ID, len(def.Steps))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d definitions invalid", failed, len(paths))
	}
	return nil
}

// dryRun walks def from start to deliverable with a synchronous scheduler,
// answering every field.
func dryRun(ctx context.Context, def *workflow.Definition) error {
	e, err := engine.New(def, engine.WithScheduler(engine.ImmediateScheduler{}))
	if err != nil {
		return err
	}
	defer e.Detach()

	if err := e.Start(); err != nil {
		return fmt.Errorf("starting: %w", err)
	}

	for range def.Steps {
		step, ok := e.ActiveStep()
		if !ok {
			return errors.New("no step prompted before completion")
		}
		if err := e.Submit(step.ID, sampleValues(step)); err != nil {
			return fmt.Errorf("step %s: %w", step.ID, err)
		}
	}
	if !e.IsComplete() {
		return fmt.Errorf("workflow incomplete after %d steps", len(def.Steps))
	}

	producer := deliverable.NewMarkdownProducer(time.Now)
	if _, err := e.Deliver(ctx, producer); err != nil {
		return err
	}
	return nil
}

// sampleValues fills every field of step, picking the first option for selects.
func sampleValues(step workflow.Step) map[string]string {
	values := make(map[string]string, len(step.Fields))
	for _, f := range step.Fields {
		switch {
		case f.Type == workflow.FieldSelect && len(f.Options) > 0:
			values[f.ID] = f.Options[0]
		case f.Type == workflow.FieldURL:
			values[f.ID] = "https://example.com"
		default:
			values[f.ID] = dryRunValue
		}
	}
	return values
}
