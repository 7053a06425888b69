// Package ledger records runs and per-endpoint outcomes so operators can see which
// endpoints of a version still need a re-run.
package ledger

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

// RunRecord is one pipeline run.
type RunRecord struct {
	RunID            string
	GroupID          string
	ArtifactID       string
	Version          string
	State            string
	DescriptorSHA256 string
	Error            string
	StartedAt        time.Time
	FinishedAt       *time.Time
}

// EndpointRecord is the latest state of one endpoint within a run.
type EndpointRecord struct {
	RunID      string
	Endpoint   string
	Kind       string
	State      string
	Error      string
	RecordedAt time.Time
}

// Ledger persists run history. Callers log write failures and carry on.
type Ledger interface {
	StartRun(ctx context.Context, run RunRecord) error
	FinishRun(ctx context.Context, run RunRecord) error
	RecordEndpoint(ctx context.Context, record EndpointRecord) error
}

var ErrNotFound = errors.New("run not found")

func validateRun(run RunRecord) error {
	if strings.TrimSpace(run.RunID) == "" {
		return errors.New("run id is required")
	}
	if strings.TrimSpace(run.State) == "" {
		return errors.New("state is required")
	}
	return nil
}

func validateEndpoint(record EndpointRecord) error {
	if strings.TrimSpace(record.RunID) == "" {
		return errors.New("run id is required")
	}
	if strings.TrimSpace(record.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.TrimSpace(record.State) == "" {
		return errors.New("state is required")
	}
	return nil
}

func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

// Memory keeps records for the life of the process.
type Memory struct {
	mu        sync.Mutex
	runs      map[string]RunRecord
	endpoints map[string]map[string]EndpointRecord
}

func NewMemory() *Memory {
	return &Memory{
		runs:      map[string]RunRecord{},
		endpoints: map[string]map[string]EndpointRecord{},
	}
}

func (m *Memory) StartRun(_ context.Context, run RunRecord) error {
	if err := validateRun(run); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.RunID]; ok {
		return nil
	}
	run.StartedAt = normalizeTime(run.StartedAt)
	m.runs[run.RunID] = run
	return nil
}

func (m *Memory) FinishRun(_ context.Context, run RunRecord) error {
	if err := validateRun(run); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.runs[run.RunID]
	if !ok {
		return ErrNotFound
	}
	existing.State = run.State
	existing.DescriptorSHA256 = run.DescriptorSHA256
	existing.Error = run.Error
	finished := normalizeTime(time.Time{})
	if run.FinishedAt != nil {
		finished = normalizeTime(*run.FinishedAt)
	}
	existing.FinishedAt = &finished
	m.runs[run.RunID] = existing
	return nil
}

func (m *Memory) RecordEndpoint(_ context.Context, record EndpointRecord) error {
	if err := validateEndpoint(record); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	byName, ok := m.endpoints[record.RunID]
	if !ok {
		byName = map[string]EndpointRecord{}
		m.endpoints[record.RunID] = byName
	}
	if prev, ok := byName[record.Endpoint]; ok && isTerminal(prev.State) {
		return nil
	}
	record.RecordedAt = normalizeTime(record.RecordedAt)
	byName[record.Endpoint] = record
	return nil
}

// Run returns a recorded run.
func (m *Memory) Run(runID string) (RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return RunRecord{}, ErrNotFound
	}
	return run, nil
}

// Endpoints lists endpoint records of a run sorted by endpoint name.
func (m *Memory) Endpoints(runID string) []EndpointRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EndpointRecord, 0, len(m.endpoints[runID]))
	for _, rec := range m.endpoints[runID] {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Endpoint < out[j].Endpoint })
	return out
}

func isTerminal(state string) bool {
	return state == "published" || state == "failed"
}
