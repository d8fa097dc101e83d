package storage

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/ruteri/fallback-storage/interfaces"
)

// Operation names a façade operation for logging, metrics and errors.
type Operation string

const (
	OpOpen          Operation = "open"
	OpSave          Operation = "save"
	OpDelete        Operation = "delete"
	OpExists        Operation = "exists"
	OpSize          Operation = "size"
	OpAccessedTime  Operation = "accessed_time"
	OpCreatedTime   Operation = "created_time"
	OpModifiedTime  Operation = "modified_time"
	OpListDir       Operation = "listdir"
	OpURL           Operation = "url"
	OpValidName     Operation = "get_valid_name"
	OpAvailableName Operation = "get_available_name"
	OpPath          Operation = "path"
)

// Dispatch outcomes reported to a DispatchRecorder.
const (
	OutcomeSuccess     = "success"
	OutcomeFailure     = "failure"
	OutcomeUnsupported = "unsupported"
)

// DispatchRecorder observes dispatch cycles. Implementations must be safe for concurrent use.
type DispatchRecorder interface {
	RecordDispatch(op Operation, outcome string, duration time.Duration)
	RecordBackendFailure(op Operation, backend string)
	RecordNegotiation(rounds int)
}

type nopRecorder struct{}

func (nopRecorder) RecordDispatch(Operation, string, time.Duration) {}
func (nopRecorder) RecordBackendFailure(Operation, string)          {}
func (nopRecorder) RecordNegotiation(int)                           {}

// firstSuccess returns the first value produced without error by a backend
// implementing C, in registry order.
func firstSuccess[C, R any](ctx context.Context, s *FallbackStorage, op Operation, call func(C) (R, error)) (R, error) {
	var zero R
	var errs ErrorSet
	start := time.Now()

	for e, err := range capable[C](s.registry) {
		if err != nil {
			return zero, err
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		if !s.available(ctx, e.Entry) {
			s.backendFailed(op, e.Entry, &errs, unavailable(e.Entry))
			continue
		}

		v, err := call(e.cap)
		if err != nil {
			s.backendFailed(op, e.Entry, &errs, err)
			continue
		}

		s.log.Debug("Backend served operation",
			slog.String("op", string(op)),
			slog.String("backend_name", e.Backend.Name()),
			slog.Duration("duration", time.Since(start)))
		s.recorder.RecordDispatch(op, OutcomeSuccess, time.Since(start))
		return v, nil
	}

	return zero, s.fail(op, &errs, start)
}

// anyTrue asks every Exister and ORs the answers of those that succeeded.
func anyTrue(ctx context.Context, s *FallbackStorage, op Operation, name string) (bool, error) {
	var errs ErrorSet
	var answered, found bool
	start := time.Now()

	for e, err := range capable[interfaces.Exister](s.registry) {
		if err != nil {
			return false, err
		}
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if !s.available(ctx, e.Entry) {
			s.backendFailed(op, e.Entry, &errs, unavailable(e.Entry))
			continue
		}

		ok, err := e.cap.Exists(ctx, name)
		if err != nil {
			s.backendFailed(op, e.Entry, &errs, err)
			continue
		}
		answered = true
		found = found || ok
	}

	if answered {
		s.recorder.RecordDispatch(op, OutcomeSuccess, time.Since(start))
		return found, nil
	}
	return false, s.fail(op, &errs, start)
}

// concatLists concatenates directory and file listings of every Lister that
// succeeded. With no Lister configured there is nothing to fail and the
// listing is empty.
func concatLists(ctx context.Context, s *FallbackStorage, op Operation, path string) ([]string, []string, error) {
	var errs ErrorSet
	var answered bool
	dirs := []string{}
	files := []string{}
	start := time.Now()

	for e, err := range capable[interfaces.Lister](s.registry) {
		if err != nil {
			return nil, nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if !s.available(ctx, e.Entry) {
			s.backendFailed(op, e.Entry, &errs, unavailable(e.Entry))
			continue
		}

		d, f, err := e.cap.ListDir(ctx, path)
		if err != nil {
			s.backendFailed(op, e.Entry, &errs, err)
			continue
		}
		answered = true
		dirs = append(dirs, d...)
		files = append(files, f...)
	}

	if answered || errs.Len() == 0 {
		s.recorder.RecordDispatch(op, OutcomeSuccess, time.Since(start))
		return dirs, files, nil
	}
	return nil, nil, s.fail(op, &errs, start)
}

// existenceGated returns the URL of the first backend that holds name. When
// none does, the last configured backend is assumed to be where the file
// will live and is asked directly.
func existenceGated(ctx context.Context, s *FallbackStorage, op Operation, name string) (string, error) {
	start := time.Now()

	for e, err := range s.registry.Backends() {
		if err != nil {
			return "", err
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		provider, ok := e.Backend.(interfaces.URLProvider)
		if !ok {
			continue
		}
		exister, ok := e.Backend.(interfaces.Exister)
		if !ok {
			continue
		}
		if !s.available(ctx, e) {
			continue
		}

		exists, err := exister.Exists(ctx, name)
		if err != nil {
			s.log.Debug("Existence check failed, skipping backend",
				slog.String("op", string(op)),
				slog.String("backend_name", e.Backend.Name()),
				"err", err)
			continue
		}
		if !exists {
			continue
		}

		url, err := provider.URL(ctx, name)
		s.finish(op, err, start)
		return url, err
	}

	last, err := s.registry.Last()
	if err != nil {
		return "", err
	}
	provider, ok := last.Backend.(interfaces.URLProvider)
	if !ok {
		s.recorder.RecordDispatch(op, OutcomeUnsupported, time.Since(start))
		return "", &UnsupportedOperationError{Op: op}
	}

	s.log.Debug("No backend holds file, using last backend",
		slog.String("op", string(op)),
		slog.String("backend_name", last.Backend.Name()))
	url, err := provider.URL(ctx, name)
	s.finish(op, err, start)
	return url, err
}

// negotiate runs name negotiation until every AvailableNamer agrees on one name.
func negotiate(ctx context.Context, s *FallbackStorage, op Operation, name string) (string, error) {
	start := time.Now()
	desired := name

	for round := 1; round <= s.maxRounds; round++ {
		candidates, err := proposeNames(ctx, s, op, desired, start)
		if err != nil {
			return "", err
		}

		if len(candidates) == 1 {
			s.recorder.RecordNegotiation(round)
			s.recorder.RecordDispatch(op, OutcomeSuccess, time.Since(start))
			return candidates[0], nil
		}

		// A backend renamed, so desired is taken somewhere.
		candidates = slices.DeleteFunc(candidates, func(c string) bool { return c == desired })
		s.log.Debug("Name collision, renegotiating",
			slog.String("op", string(op)),
			slog.String("taken", desired),
			slog.String("next", candidates[0]),
			slog.Int("round", round))
		desired = candidates[0]
	}

	s.recorder.RecordNegotiation(s.maxRounds)
	s.recorder.RecordDispatch(op, OutcomeFailure, time.Since(start))
	s.log.Warn("Name negotiation did not converge",
		slog.String("name", name),
		slog.Int("rounds", s.maxRounds))
	return "", &NegotiationFailedError{Name: name, Rounds: s.maxRounds}
}

// proposeNames collects the distinct names the backends offer for desired, sorted.
func proposeNames(ctx context.Context, s *FallbackStorage, op Operation, desired string, start time.Time) ([]string, error) {
	var errs ErrorSet
	var proposals []string

	for e, err := range capable[interfaces.AvailableNamer](s.registry) {
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.available(ctx, e.Entry) {
			s.backendFailed(op, e.Entry, &errs, unavailable(e.Entry))
			continue
		}

		candidate, err := e.cap.AvailableName(ctx, desired)
		if err != nil {
			s.backendFailed(op, e.Entry, &errs, err)
			continue
		}
		proposals = append(proposals, candidate)
	}

	if len(proposals) == 0 {
		return nil, s.fail(op, &errs, start)
	}

	slices.Sort(proposals)
	return slices.Compact(proposals), nil
}

func (s *FallbackStorage) available(ctx context.Context, e Entry) bool {
	checker, ok := e.Backend.(interfaces.AvailabilityChecker)
	if !ok {
		return true
	}
	return checker.Available(ctx)
}

func unavailable(e Entry) error {
	return fmt.Errorf("%w: %s", interfaces.ErrBackendUnavailable, e.Backend.Name())
}

func (s *FallbackStorage) backendFailed(op Operation, e Entry, errs *ErrorSet, err error) {
	errs.Add(e.ID(), err)
	s.recorder.RecordBackendFailure(op, e.Backend.Name())
	s.log.Debug("Backend failed operation",
		slog.String("op", string(op)),
		slog.String("backend_name", e.Backend.Name()),
		"err", err)
}

// fail turns the collected failures into the dispatch error.
func (s *FallbackStorage) fail(op Operation, errs *ErrorSet, start time.Time) error {
	if errs.Len() == 0 {
		s.recorder.RecordDispatch(op, OutcomeUnsupported, time.Since(start))
		return &UnsupportedOperationError{Op: op}
	}

	s.recorder.RecordDispatch(op, OutcomeFailure, time.Since(start))
	level := slog.LevelWarn
	err := errs.Err(op)
	if IsNotFound(err) {
		level = slog.LevelDebug
	}
	s.log.Log(context.Background(), level, "All backends failed operation",
		slog.String("op", string(op)),
		slog.Int("failed_backends", errs.Len()),
		slog.Duration("duration", time.Since(start)))
	return err
}

func (s *FallbackStorage) finish(op Operation, err error, start time.Time) {
	if err != nil {
		s.recorder.RecordDispatch(op, OutcomeFailure, time.Since(start))
		return
	}
	s.recorder.RecordDispatch(op, OutcomeSuccess, time.Since(start))
}
