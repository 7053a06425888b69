package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/animus-labs/nativepack/internal/domain"
)

// Uploader delivers a unit to one kind of endpoint.
type Uploader interface {
	Kind() string
	Upload(ctx context.Context, ep domain.RepositoryEndpoint, cred *domain.Credential, unit Unit) error
}

// CredentialSource resolves what an endpoint needs to authenticate.
type CredentialSource interface {
	ForEndpoint(ep domain.RepositoryEndpoint) (*domain.Credential, error)
}

// Outcome is the terminal state of one endpoint.
type Outcome struct {
	Endpoint   domain.RepositoryEndpoint
	State      domain.EndpointState
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

func (o Outcome) Published() bool { return o.State == domain.EndpointPublished }

// Observer is told about every endpoint state change. With parallel publishing it is
// called from several goroutines.
type Observer func(ep domain.RepositoryEndpoint, state domain.EndpointState, err error)

type Option func(*Publisher)

func WithParallel(parallel bool) Option {
	return func(p *Publisher) { p.parallel = parallel }
}

func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}

func WithObserver(obs Observer) Option {
	return func(p *Publisher) { p.observer = obs }
}

// Publisher fans a unit out to endpoints. Endpoints never affect each other's
// outcome and nothing is retried.
type Publisher struct {
	logger    *slog.Logger
	uploaders map[string]Uploader
	creds     CredentialSource
	parallel  bool
	now       func() time.Time
	observer  Observer
}

func New(logger *slog.Logger, creds CredentialSource, uploaders []Uploader, opts ...Option) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher{
		logger:    logger,
		uploaders: make(map[string]Uploader, len(uploaders)),
		creds:     creds,
		now:       time.Now,
	}
	for _, u := range uploaders {
		p.uploaders[u.Kind()] = u
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish returns one outcome per endpoint, in endpoint order.
func (p *Publisher) Publish(ctx context.Context, endpoints []domain.RepositoryEndpoint, unit Unit) []Outcome {
	outcomes := make([]Outcome, len(endpoints))
	for i, ep := range endpoints {
		outcomes[i] = Outcome{Endpoint: ep, State: domain.EndpointPending}
		p.notify(ep, domain.EndpointPending, nil)
	}
	if err := unit.Validate(); err != nil {
		return p.FailAll(outcomes, err)
	}

	if !p.parallel {
		for i := range outcomes {
			p.publishOne(ctx, &outcomes[i], unit)
		}
		return outcomes
	}

	var g errgroup.Group
	for i := range outcomes {
		o := &outcomes[i]
		g.Go(func() error {
			p.publishOne(ctx, o, unit)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// FailAll moves every non-terminal outcome to failed with err wrapped as a publish
// failure.
func (p *Publisher) FailAll(outcomes []Outcome, err error) []Outcome {
	for i := range outcomes {
		if outcomes[i].State.IsTerminal() {
			continue
		}
		now := p.now()
		if outcomes[i].StartedAt.IsZero() {
			outcomes[i].StartedAt = now
		}
		p.finish(&outcomes[i], &domain.PublishError{Endpoint: outcomes[i].Endpoint.Name, Err: err})
	}
	return outcomes
}

// Pending returns pending outcomes for endpoints, used when publishing cannot start.
func Pending(endpoints []domain.RepositoryEndpoint) []Outcome {
	out := make([]Outcome, 0, len(endpoints))
	for _, ep := range endpoints {
		out = append(out, Outcome{Endpoint: ep, State: domain.EndpointPending})
	}
	return out
}

func (p *Publisher) publishOne(ctx context.Context, o *Outcome, unit Unit) {
	ep := o.Endpoint
	o.StartedAt = p.now()
	logger := p.logger.With("endpoint", ep.Name, "kind", ep.Kind)

	var cred *domain.Credential
	if p.creds != nil {
		resolved, err := p.creds.ForEndpoint(ep)
		if err != nil {
			logger.Warn("endpoint credential unavailable", "error", err)
			p.finish(o, err)
			return
		}
		cred = resolved
	} else if ep.RequiresCredential() {
		p.finish(o, &domain.MissingCredentialError{Endpoint: ep.Name})
		return
	}

	uploader, ok := p.uploaders[ep.Kind]
	if !ok {
		p.finish(o, &domain.PublishError{Endpoint: ep.Name, Err: fmt.Errorf("no uploader for kind %q", ep.Kind)})
		return
	}

	p.transition(o, domain.EndpointPublishing)
	logger.Info("endpoint publishing", "version", unit.Descriptor.Version(), "files", len(unit.Files))
	if err := uploader.Upload(ctx, ep, cred, unit); err != nil {
		logger.Error("endpoint publish failed", "error", err)
		var pe *domain.PublishError
		if !errors.As(err, &pe) {
			err = &domain.PublishError{Endpoint: ep.Name, Err: err}
		}
		p.finish(o, err)
		return
	}
	p.finish(o, nil)
	logger.Info("endpoint published", "duration_ms", o.FinishedAt.Sub(o.StartedAt).Milliseconds())
}

func (p *Publisher) finish(o *Outcome, err error) {
	o.FinishedAt = p.now()
	o.Err = err
	if err != nil {
		p.transition(o, domain.EndpointFailed)
		return
	}
	p.transition(o, domain.EndpointPublished)
}

func (p *Publisher) transition(o *Outcome, next domain.EndpointState) {
	if !domain.CanTransitionEndpointState(o.State, next) {
		p.logger.Error("invalid endpoint transition", "endpoint", o.Endpoint.Name, "from", o.State, "to", next)
		return
	}
	o.State = next
	p.notify(o.Endpoint, next, o.Err)
}

func (p *Publisher) notify(ep domain.RepositoryEndpoint, state domain.EndpointState, err error) {
	if p.observer != nil {
		p.observer(ep, state, err)
	}
}
