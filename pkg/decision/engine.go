package decision

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rhuss/ldapgate/pkg/audit"
	"github.com/rhuss/ldapgate/pkg/cache"
	"github.com/rhuss/ldapgate/pkg/debug"
	"github.com/rhuss/ldapgate/pkg/directory"
	"github.com/rhuss/ldapgate/pkg/observability"
)

// Result is the outcome of one evaluation.
type Result struct {
	Accepted bool
	// Err is nil when accepted; otherwise it matches one rejection kind.
	Err error
	// CacheHit is true when the decision was served from the cache.
	CacheHit bool
	// Config is the resolved directory configuration. Zero when
	// resolution failed or was not attempted.
	Config directory.Config
}

// Engine makes authentication decisions. It is safe for concurrent use.
type Engine struct {
	cache   *cache.Cache
	factory directory.Factory
	env     directory.EnvLookup
	auditor audit.Recorder
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithAuditor sends every decision to r.
func WithAuditor(r audit.Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.auditor = r
		}
	}
}

// WithLogger sets the logger used for decision logs.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Engine. env supplies fallback directory settings;
// production passes os.LookupEnv.
func New(c *cache.Cache, factory directory.Factory, env directory.EnvLookup, opts ...Option) *Engine {
	if env == nil {
		env = directory.MapEnv(nil)
	}
	e := &Engine{
		cache:   c,
		factory: factory,
		env:     env,
		auditor: audit.Nop{},
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Decide reports whether identity and secret are accepted for a request
// carrying headers.
func (e *Engine) Decide(ctx context.Context, identity, secret string, headers http.Header) bool {
	return e.Evaluate(ctx, identity, secret, headers).Accepted
}

// Evaluate runs the decision pipeline and reports how it ended.
func (e *Engine) Evaluate(ctx context.Context, identity, secret string, headers http.Header) Result {
	res := e.evaluate(ctx, identity, secret, headers)
	e.report(ctx, identity, res)
	return res
}

func (e *Engine) evaluate(ctx context.Context, identity, secret string, headers http.Header) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			res = Result{
				Err:    fmt.Errorf("%w: capability panic: %v", ErrDirectoryUnavailable, p),
				Config: res.Config,
			}
		}
	}()

	if identity == "" || secret == "" {
		return Result{Err: ErrEmptyCredentials}
	}

	cfg, err := directory.Resolve(headers, e.env)
	if err != nil {
		return Result{Err: err}
	}
	res.Config = cfg
	scope := cfg.Scope()

	capability := e.factory(cfg)
	capability.BindAs(identity, secret)

	// Groups are checked before the cache so a revoked membership takes
	// effect on the next request.
	if len(cfg.RequiredGroups) > 0 {
		ok, err := capability.HasRequiredGroups(ctx, cfg.RequiredGroups)
		if err != nil {
			res.Err = fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err)
			return res
		}
		if !ok {
			res.Err = ErrGroupCheckFailed
			return res
		}
	}

	if e.cache.Validate(identity, secret, scope) {
		res.Accepted = true
		res.CacheHit = true
		return res
	}

	ok, err := capability.Authenticate(ctx)
	if err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err)
		return res
	}
	if !ok {
		res.Err = ErrDirectoryAuthFailed
		return res
	}

	e.cache.Add(identity, secret, scope)
	res.Accepted = true
	return res
}

// report logs, counts and audits one decision.
func (e *Engine) report(ctx context.Context, identity string, res Result) {
	outcome := audit.OutcomeAccepted
	reason := Reason(res.Err)
	if !res.Accepted {
		outcome = audit.OutcomeRejected
	}
	observability.AuthDecisionsTotal.WithLabelValues(outcome, reason).Inc()

	info := audit.RequestInfoFrom(ctx)
	if res.Accepted {
		e.logger.Debug("authentication accepted",
			"identity", identity,
			"cache_hit", res.CacheHit,
			"request_id", info.RequestID,
		)
	} else {
		level := slog.LevelInfo
		if reason == "directory_unavailable" || reason == "internal" {
			level = slog.LevelWarn
		}
		e.logger.Log(ctx, level, "authentication rejected",
			"identity", identity,
			"reason", reason,
			"error", res.Err,
			"request_id", info.RequestID,
		)
	}
	debug.Log("auth", "decision", "identity", identity, "endpoint", res.Config.Endpoint, "outcome", outcome)

	ev := audit.Event{
		Time:       e.now(),
		RequestID:  info.RequestID,
		Identity:   identity,
		RemoteAddr: info.RemoteAddr,
		Endpoint:   res.Config.Endpoint,
		Outcome:    outcome,
		Reason:     reason,
		CacheHit:   res.CacheHit,
	}
	if err := e.auditor.Record(ctx, ev); err != nil {
		e.logger.Warn("recording audit event failed", "identity", identity, "error", err)
	}
}
