// Copyright 2025 Nhat-Nguyen Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package domain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"storyline/modules/worker"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type (
	CascadeStep string
	StepStatus  string
)

// Steps in execution order. The bulk rename steps only run on renames.
const (
	StepDeleteProfile  CascadeStep = "delete_profile"
	StepInsertProfile  CascadeStep = "insert_profile"
	StepRenameAccount  CascadeStep = "rename_account"
	StepRenameStories  CascadeStep = "rename_story_authors"
	StepRenameComments CascadeStep = "rename_comment_commenters"
	StepRenameReplies  CascadeStep = "rename_reply_commenters"
	StepReplaceLikes   CascadeStep = "replace_comment_likes"
	// StepCommit is reported when every step succeeded but the transaction did not commit.
	StepCommit CascadeStep = "commit"
)

const (
	StepPending            StepStatus = "pending"
	StepApplied            StepStatus = "applied"
	StepFailed             StepStatus = "failed"
	StepCompensated        StepStatus = "compensated"
	StepCompensationFailed StepStatus = "compensation_failed"
	StepRolledBack         StepStatus = "rolled_back"
)

type (
	StepOutcome struct {
		Step     CascadeStep
		Status   StepStatus
		Affected int64
		Err      error
		// CompensationErr is set when undoing the step failed.
		CompensationErr error
	}

	// CascadeReport aggregates the outcome of every step of one profile
	// replacement, with or without rename.
	CascadeReport struct {
		From    string
		To      string
		Renamed bool
		// Atomic is true when the store ran all steps in one transaction.
		Atomic     bool
		Steps      []StepOutcome
		FailedStep CascadeStep
		// Compensated is true when every step that had been applied was
		// undone again, by rollback or by compensation.
		Compensated bool
	}

	// CascadeError is returned when any step fails. It matches
	// ErrStorageFailure and the underlying step error.
	CascadeError struct {
		Report *CascadeReport
		Err    error
	}
)

func (e *CascadeError) Error() string {
	return fmt.Sprintf("profile cascade %s -> %s failed at %s: %v", e.Report.From, e.Report.To, e.Report.FailedStep, e.Err)
}

func (e *CascadeError) Unwrap() []error {
	return []error{ErrStorageFailure, e.Err}
}

// Completed lists the steps that had been applied before the failure,
// whatever happened to them afterwards.
func (r *CascadeReport) Completed() []CascadeStep {
	var done []CascadeStep
	for _, s := range r.Steps {
		switch s.Status {
		case StepApplied, StepCompensated, StepCompensationFailed, StepRolledBack:
			done = append(done, s.Step)
		}
	}
	return done
}

func (r *CascadeReport) outcome() string {
	switch {
	case r.FailedStep == "":
		return "committed"
	case r.Compensated:
		return "reverted"
	default:
		return "inconsistent"
	}
}

type contentRenameOp func(tx ProfileWriteTx, ctx context.Context, from, to string, only []string) ([]string, error)

type cascadeStep struct {
	name  CascadeStep
	apply func(ctx context.Context, tx ProfileWriteTx) (int64, error)
	undo  func(ctx context.Context, tx ProfileWriteTx) error
	// bulk steps touch disjoint records, so they can be undone concurrently
	// and re-running their undo is harmless
	bulk bool
}

// planCascade replaces current with candidate and, on rename, rewrites the
// denormalized username everywhere. saved receives the inserted profile.
func planCascade(current, candidate *Profile, renamed bool, saved **Profile) []cascadeStep {
	from, to := current.Username, candidate.Username

	steps := []cascadeStep{
		{
			name: StepDeleteProfile,
			apply: func(ctx context.Context, tx ProfileWriteTx) (int64, error) {
				if _, err := tx.DeleteProfile(ctx, from); err != nil {
					return 0, err
				}
				return 1, nil
			},
			undo: func(ctx context.Context, tx ProfileWriteTx) error {
				_, err := tx.InsertProfile(ctx, current)
				return err
			},
		},
		{
			name: StepInsertProfile,
			apply: func(ctx context.Context, tx ProfileWriteTx) (int64, error) {
				p, err := tx.InsertProfile(ctx, candidate)
				if err != nil {
					return 0, err
				}
				*saved = p
				return 1, nil
			},
			undo: func(ctx context.Context, tx ProfileWriteTx) error {
				_, err := tx.DeleteProfile(ctx, to)
				return err
			},
		},
	}
	if !renamed {
		return steps
	}

	account := cascadeStep{
		name: StepRenameAccount,
		bulk: true,
		apply: func(ctx context.Context, tx ProfileWriteTx) (int64, error) {
			return tx.RenameAccount(ctx, from, to)
		},
		undo: func(ctx context.Context, tx ProfileWriteTx) error {
			_, err := tx.RenameAccount(ctx, to, from)
			return err
		},
	}

	// undo is scoped to the records apply targeted; others may have held to
	// before the rename
	content := func(name CascadeStep, op contentRenameOp) cascadeStep {
		var touched []string
		return cascadeStep{
			name: name,
			bulk: true,
			apply: func(ctx context.Context, tx ProfileWriteTx) (int64, error) {
				ids, err := op(tx, ctx, from, to, nil)
				touched = ids
				return int64(len(ids)), err
			},
			undo: func(ctx context.Context, tx ProfileWriteTx) error {
				if len(touched) == 0 {
					return nil
				}
				_, err := op(tx, ctx, to, from, touched)
				return err
			},
		}
	}

	return append(steps,
		account,
		content(StepRenameStories, ProfileWriteTx.RenameStoryAuthor),
		content(StepRenameComments, ProfileWriteTx.RenameCommenter),
		content(StepRenameReplies, ProfileWriteTx.RenameReplyCommenter),
		content(StepReplaceLikes, ProfileWriteTx.ReplaceCommentLike),
	)
}

func newCascadeReport(from, to string, renamed bool, plan []cascadeStep) *CascadeReport {
	r := &CascadeReport{From: from, To: to, Renamed: renamed, Steps: make([]StepOutcome, len(plan))}
	for i, s := range plan {
		r.Steps[i] = StepOutcome{Step: s.name, Status: StepPending}
	}
	return r
}

// runCascade executes plan in one WithTx call. Transactional stores roll
// back on failure; on the others the applied steps are compensated.
func (app *Application) runCascade(ctx context.Context, plan []cascadeStep, report *CascadeReport) error {
	start := app.clock.Now()
	report.Atomic = app.writer.Transactional()

	err := app.writer.WithTimeoutTx(ctx, app.cascadeTimeout, func(ctx context.Context, tx ProfileWriteTx) error {
		err := app.applySteps(ctx, tx, plan, report)
		if err != nil && !report.Atomic {
			app.compensate(ctx, tx, plan, report)
		}
		return err
	})

	if err != nil && report.Atomic {
		if report.FailedStep == "" {
			report.FailedStep = StepCommit
		}
		for i := range report.Steps {
			if report.Steps[i].Status == StepApplied {
				report.Steps[i].Status = StepRolledBack
			}
		}
		report.Compensated = true
	}

	app.metrics.RecordRename(ctx, report.outcome(), app.clock.Now().Sub(start))

	if err != nil {
		slog.ErrorContext(ctx, "profile cascade failed",
			slog.String("from", report.From),
			slog.String("to", report.To),
			slog.String("failed_step", string(report.FailedStep)),
			slog.String("completed", joinSteps(report.Completed())),
			slog.Bool("compensated", report.Compensated),
			slog.Any("error", err),
		)
		return &CascadeError{Report: report, Err: err}
	}
	return nil
}

func (app *Application) applySteps(ctx context.Context, tx ProfileWriteTx, plan []cascadeStep, report *CascadeReport) error {
	for i, step := range plan {
		out := &report.Steps[i]

		if err := ctx.Err(); err != nil {
			out.Status, out.Err = StepFailed, err
			report.FailedStep = step.name
			return err
		}

		stepCtx, span := app.tracer.Start(ctx, "profile.cascade."+string(step.name))
		n, err := step.apply(stepCtx, tx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()

			out.Status, out.Err = StepFailed, err
			report.FailedStep = step.name
			return err
		}
		span.SetAttributes(attribute.Int64("cascade.affected", n))
		span.End()

		out.Status, out.Affected = StepApplied, n
		app.metrics.RecordStep(ctx, string(step.name), n)
	}
	return nil
}

// compensate undoes applied steps in reverse order. Bulk renames are undone
// concurrently, then the profile replacement is undone in order. A failed
// bulk step is undone too since it may have been partially applied.
func (app *Application) compensate(ctx context.Context, tx ProfileWriteTx, plan []cascadeStep, report *CascadeReport) {
	// the cascade deadline may be what failed the step
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), app.cascadeTimeout)
	defer cancel()

	ctx, span := app.tracer.Start(ctx, "profile.cascade.compensate")
	defer span.End()

	var bulk, ordered []int
	for i := len(plan) - 1; i >= 0; i-- {
		switch st := report.Steps[i].Status; {
		case st == StepApplied && plan[i].bulk, st == StepFailed && plan[i].bulk:
			bulk = append(bulk, i)
		case st == StepApplied:
			ordered = append(ordered, i)
		}
	}

	undo := func(ctx context.Context, i int) {
		out := &report.Steps[i]
		if err := plan[i].undo(ctx, tx); err != nil {
			out.CompensationErr = err
			if out.Status == StepApplied {
				out.Status = StepCompensationFailed
			}
			slog.ErrorContext(ctx, "cascade compensation failed",
				slog.String("step", string(out.Step)),
				slog.Any("error", err),
			)
			return
		}
		if out.Status == StepApplied {
			out.Status = StepCompensated
		}
	}

	// each job writes its own report slot only
	worker.RunAll(ctx, app.compensationWorkers, bulk, undo)
	for _, i := range ordered {
		undo(ctx, i)
	}

	report.Compensated = true
	for _, s := range report.Steps {
		if s.Status == StepApplied || s.Status == StepCompensationFailed || s.CompensationErr != nil {
			report.Compensated = false
		}
	}
	span.SetAttributes(attribute.Bool("cascade.compensated", report.Compensated))
}

func joinSteps(steps []CascadeStep) string {
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = string(s)
	}
	return strings.Join(names, ",")
}
