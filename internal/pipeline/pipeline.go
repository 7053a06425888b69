// Package pipeline drives one release run: build, assemble, describe, publish.
//
// Stages run strictly in sequence. Build and assembly failures abort the run; once
// the descriptor is ready the run always reaches Done, and per-endpoint failures
// are reported on the endpoints themselves.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/animus-labs/nativepack/internal/assemble"
	"github.com/animus-labs/nativepack/internal/build"
	"github.com/animus-labs/nativepack/internal/config"
	"github.com/animus-labs/nativepack/internal/credentials"
	"github.com/animus-labs/nativepack/internal/descriptor"
	"github.com/animus-labs/nativepack/internal/domain"
	"github.com/animus-labs/nativepack/internal/events"
	"github.com/animus-labs/nativepack/internal/ledger"
	"github.com/animus-labs/nativepack/internal/publish"
	"github.com/animus-labs/nativepack/internal/signing"
)

// Secrets resolves endpoint credentials and signing material.
type Secrets interface {
	publish.CredentialSource
	signing.Lookup
}

type Option func(*Pipeline)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock overrides the timestamp source (tests).
func WithClock(clock func() time.Time) Option {
	return func(p *Pipeline) {
		if clock != nil {
			p.now = clock
		}
	}
}

// WithRunner replaces the process runner used for the native build.
func WithRunner(runner build.Runner) Option {
	return func(p *Pipeline) {
		if runner != nil {
			p.runner = runner
		}
	}
}

func WithResolver(secrets Secrets) Option {
	return func(p *Pipeline) {
		if secrets != nil {
			p.secrets = secrets
		}
	}
}

// WithUploaders replaces the uploaders for the kinds they declare.
func WithUploaders(uploaders ...publish.Uploader) Option {
	return func(p *Pipeline) {
		for _, u := range uploaders {
			if u != nil {
				p.uploaders[u.Kind()] = u
			}
		}
	}
}

func WithLedger(l ledger.Ledger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.ledger = l
		}
	}
}

func WithNotifier(n events.Notifier) Option {
	return func(p *Pipeline) {
		if n != nil {
			p.notifier = n
		}
	}
}

func WithSigner(s signing.Signer) Option {
	return func(p *Pipeline) {
		if s != nil {
			p.signer = s
		}
	}
}

func WithRunID(id string) Option {
	return func(p *Pipeline) {
		if id != "" {
			p.runID = id
		}
	}
}

// Pipeline owns one run over an immutable project snapshot.
type Pipeline struct {
	project   config.Project
	logger    *slog.Logger
	now       func() time.Time
	runner    build.Runner
	secrets   Secrets
	uploaders map[string]publish.Uploader
	ledger    ledger.Ledger
	notifier  events.Notifier
	signer    signing.Signer
	runID     string
}

// New snapshots project. Without WithResolver the credential file named in the
// project is loaded here, so a malformed file fails before anything is built.
func New(project config.Project, opts ...Option) (*Pipeline, error) {
	project = project.Clone()
	p := &Pipeline{
		project:  project,
		logger:   slog.Default(),
		now:      time.Now,
		runner:   build.ExecRunner{},
		ledger:   ledger.NewMemory(),
		notifier: events.Discard{},
		uploaders: map[string]publish.Uploader{
			config.KindMaven: publish.NewMavenUploader(nil),
			config.KindS3:    publish.NewS3Uploader(nil),
			config.KindFile:  publish.NewFileUploader(project.BaseDir),
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.runID == "" {
		p.runID = uuid.NewString()
	}
	if p.secrets == nil {
		resolver, err := credentials.FromProject(project, nil)
		if err != nil {
			return nil, err
		}
		p.secrets = resolver
	}
	p.logger = p.logger.With("run_id", p.runID)
	return p, nil
}

func (p *Pipeline) RunID() string { return p.runID }

// Report summarizes a run.
type Report struct {
	RunID            string
	Version          string
	State            domain.RunState
	Package          domain.Package
	Descriptor       domain.PublicationDescriptor
	DescriptorSHA256 string
	Endpoints        []publish.Outcome
	Err              error
	StartedAt        time.Time
	FinishedAt       time.Time
}

// Failed lists endpoints that did not publish.
func (r Report) Failed() []publish.Outcome {
	var out []publish.Outcome
	for _, o := range r.Endpoints {
		if !o.Published() {
			out = append(out, o)
		}
	}
	return out
}

// Published lists endpoints that accepted the release.
func (r Report) Published() []publish.Outcome {
	var out []publish.Outcome
	for _, o := range r.Endpoints {
		if o.Published() {
			out = append(out, o)
		}
	}
	return out
}

// Run executes the whole pipeline. An aborted run returns its fatal error; a run
// that reached Done returns nil even when endpoints failed.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	report := Report{
		RunID:     p.runID,
		Version:   p.project.Version(),
		State:     domain.RunStateInit,
		StartedAt: p.now().UTC(),
	}
	p.recordStart(ctx, report)
	p.logger.Info("run started", "version", report.Version, "architectures", len(p.project.Architectures))

	if err := p.advance(ctx, &report, domain.RunStateBuilding); err != nil {
		return report, err
	}
	outcome, err := p.Build(ctx)
	if err != nil {
		return p.abort(ctx, report, err)
	}

	if err := p.advance(ctx, &report, domain.RunStateAssembling); err != nil {
		return report, err
	}
	pkg, err := p.Assemble(outcome.StagingDir)
	if err != nil {
		return p.abort(ctx, report, err)
	}
	report.Package = pkg

	d, raw, err := p.Describe()
	if err != nil {
		return p.abort(ctx, report, err)
	}
	if err := domain.CheckVersionConsistency(d, pkg.Artifacts); err != nil {
		return p.abort(ctx, report, err)
	}
	report.Descriptor = d
	report.DescriptorSHA256 = descriptor.Fingerprint(raw)
	if err := p.advance(ctx, &report, domain.RunStateDescriptorReady); err != nil {
		return report, err
	}

	if err := p.advance(ctx, &report, domain.RunStatePublishing); err != nil {
		return report, err
	}
	report.Endpoints = p.publish(ctx, &report, raw)

	if err := p.advance(ctx, &report, domain.RunStateDone); err != nil {
		return report, err
	}
	report.FinishedAt = p.now().UTC()
	p.recordFinish(ctx, report)
	p.logger.Info("run finished",
		"state", report.State,
		"published", len(report.Published()),
		"failed", len(report.Failed()),
		"duration_ms", report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
	)
	return report, nil
}

// Build runs the native build for every declared architecture.
func (p *Pipeline) Build(ctx context.Context) (build.Outcome, error) {
	logger := p.logger.With("stage", "build")
	return build.NewInvoker(p.project, p.runner, logger).Invoke(ctx, p.project.TargetArchitectures())
}

// Assemble collects one binary per architecture from stagingDir.
func (p *Pipeline) Assemble(stagingDir string) (domain.Package, error) {
	logger := p.logger.With("stage", "assemble")
	return assemble.New(p.project, logger).Assemble(p.project.TargetArchitectures(), stagingDir)
}

// StagingDir is where Build leaves its outputs.
func (p *Pipeline) StagingDir() string {
	return build.NewInvoker(p.project, p.runner, p.logger).StagingDir()
}

// Describe builds the descriptor and its canonical bytes.
func (p *Pipeline) Describe() (domain.PublicationDescriptor, []byte, error) {
	d, err := descriptor.Build(p.project)
	if err != nil {
		return domain.PublicationDescriptor{}, nil, err
	}
	raw, err := descriptor.Marshal(d)
	if err != nil {
		return domain.PublicationDescriptor{}, nil, err
	}
	return d, raw, nil
}

func (p *Pipeline) publish(ctx context.Context, report *Report, raw []byte) []publish.Outcome {
	logger := p.logger.With("stage", "publish")
	uploaders := make([]publish.Uploader, 0, len(p.uploaders))
	for _, u := range p.uploaders {
		uploaders = append(uploaders, u)
	}
	publisher := publish.New(logger, p.secrets, uploaders,
		publish.WithParallel(p.project.Publish.Parallel),
		publish.WithClock(p.now),
		publish.WithObserver(p.observeEndpoint(ctx, report.Version)),
	)
	endpoints := p.project.Endpoints()

	unit, err := p.prepareUnit(report, raw)
	if err != nil {
		logger.Error("release unit unavailable", "error", err)
		return publisher.FailAll(publish.Pending(endpoints), err)
	}
	return publisher.Publish(ctx, endpoints, unit)
}

// prepareUnit archives the package, renders the POM, and signs when enabled.
func (p *Pipeline) prepareUnit(report *Report, raw []byte) (publish.Unit, error) {
	pkg, err := assemble.New(p.project, p.logger.With("stage", "pack")).Pack(report.Package, report.Descriptor, raw)
	if err != nil {
		return publish.Unit{}, err
	}
	report.Package = pkg
	pom, err := descriptor.RenderPOM(report.Descriptor)
	if err != nil {
		return publish.Unit{}, err
	}
	unit, err := publish.NewUnit(report.Descriptor, pkg.ArchivePath, raw, pom)
	if err != nil {
		return publish.Unit{}, err
	}
	signer := p.signer
	if signer == nil {
		signer, err = signing.FromProject(p.project, p.secrets)
		if err != nil {
			return publish.Unit{}, err
		}
	}
	return signing.SignUnit(signer, unit)
}

func (p *Pipeline) advance(ctx context.Context, report *Report, next domain.RunState) error {
	if !domain.CanTransitionRunState(report.State, next) {
		return fmt.Errorf("pipeline: invalid transition %s -> %s", report.State, next)
	}
	report.State = next
	p.logger.Debug("run state", "state", next)
	p.emit(ctx, events.Event{
		Type:       events.TypeRunState,
		RunID:      p.runID,
		Version:    report.Version,
		State:      string(next),
		OccurredAt: p.now().UTC(),
	})
	return nil
}

func (p *Pipeline) abort(ctx context.Context, report Report, cause error) (Report, error) {
	if err := p.advance(ctx, &report, domain.RunStateAborted); err != nil {
		return report, err
	}
	report.Err = cause
	report.FinishedAt = p.now().UTC()
	p.recordFinish(ctx, report)
	p.logger.Error("run aborted", "error", cause)
	return report, cause
}

func (p *Pipeline) observeEndpoint(ctx context.Context, version string) publish.Observer {
	return func(ep domain.RepositoryEndpoint, state domain.EndpointState, err error) {
		msg := ""
		if err != nil {
			msg = err.Error()
		}
		now := p.now().UTC()
		if lerr := p.ledger.RecordEndpoint(ctx, ledger.EndpointRecord{
			RunID:      p.runID,
			Endpoint:   ep.Name,
			Kind:       ep.Kind,
			State:      string(state),
			Error:      msg,
			RecordedAt: now,
		}); lerr != nil {
			p.logger.Warn("ledger write failed", "endpoint", ep.Name, "error", lerr)
		}
		p.emit(ctx, events.Event{
			Type:       events.TypeEndpointState,
			RunID:      p.runID,
			Version:    version,
			Endpoint:   ep.Name,
			State:      string(state),
			Error:      msg,
			OccurredAt: now,
		})
	}
}

func (p *Pipeline) emit(ctx context.Context, ev events.Event) {
	if err := p.notifier.Notify(ctx, ev); err != nil {
		p.logger.Warn("event delivery failed", "type", ev.Type, "error", err)
	}
}

func (p *Pipeline) recordStart(ctx context.Context, report Report) {
	err := p.ledger.StartRun(ctx, ledger.RunRecord{
		RunID:      report.RunID,
		GroupID:    p.project.Identity.Group,
		ArtifactID: p.project.Identity.Artifact,
		Version:    report.Version,
		State:      string(report.State),
		StartedAt:  report.StartedAt,
	})
	if err != nil {
		p.logger.Warn("ledger write failed", "error", err)
	}
}

func (p *Pipeline) recordFinish(ctx context.Context, report Report) {
	finished := report.FinishedAt
	rec := ledger.RunRecord{
		RunID:            report.RunID,
		State:            string(report.State),
		DescriptorSHA256: report.DescriptorSHA256,
		FinishedAt:       &finished,
	}
	if report.Err != nil {
		rec.Error = report.Err.Error()
	}
	if err := p.ledger.FinishRun(ctx, rec); err != nil {
		p.logger.Warn("ledger write failed", "error", err)
	}
}
