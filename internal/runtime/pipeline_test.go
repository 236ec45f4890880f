package runtime_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/aretw0/espalier/internal/runtime"
	"github.com/aretw0/espalier/pkg/domain"
	"github.com/aretw0/espalier/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// probes counts hook and handler invocations so tests can assert which
// steps ran and which were skipped.
type probes struct {
	applySession int
	beforeMount  int
	beforeEvent  int
	handlers     map[string]int
}

func newProbes() *probes {
	return &probes{handlers: make(map[string]int)}
}

func (p *probes) handler(name string, fn domain.HandlerFunc) domain.HandlerFunc {
	return func(ctx context.Context, s *domain.State, params domain.Params) (domain.Outcome, error) {
		p.handlers[name]++
		if fn != nil {
			return fn(ctx, s, params)
		}
		return s, nil
	}
}

// articlesRegistry builds the scenario registry: mount actions {index, show},
// events {delete}.
func articlesRegistry(t *testing.T, pr *probes) *registry.Registry {
	t.Helper()

	reg, err := registry.NewBuilder().
		MountAction("index", pr.handler("index", nil)).
		MountAction("show", pr.handler("show", func(ctx context.Context, s *domain.State, params domain.Params) (domain.Outcome, error) {
			return s.Assign("article_id", params.String("id")), nil
		})).
		Event("delete", pr.handler("delete", func(ctx context.Context, s *domain.State, params domain.Params) (domain.Outcome, error) {
			return s.RedirectTo("/articles"), nil
		})).
		Build()
	require.NoError(t, err)
	return reg
}

func TestMount_DispatchesRegisteredAction(t *testing.T) {
	pr := newProbes()
	p := runtime.New("ArticlesLive", articlesRegistry(t, pr))

	env, err := p.Mount(context.Background(), "show", domain.Params{"id": "7"}, domain.Session{})
	require.NoError(t, err)

	assert.Equal(t, domain.DispositionContinue, env.Disposition)
	require.NotNil(t, env.State)
	id, _ := env.State.Value("article_id")
	assert.Equal(t, "7", id)
	assert.Equal(t, 1, pr.handlers["show"])
}

func TestMount_UnknownActionFailsBeforeAnyHook(t *testing.T) {
	pr := newProbes()
	p := runtime.New("ArticlesLive", articlesRegistry(t, pr),
		runtime.WithApplySession(func(ctx context.Context, s *domain.State, sess domain.Session) *domain.State {
			pr.applySession++
			return s
		}),
		runtime.WithBeforeActionMount(func(ctx context.Context, s *domain.State, key domain.HandlerKey, params domain.Params) *domain.State {
			pr.beforeMount++
			return s
		}),
	)

	_, err := p.Mount(context.Background(), "new", domain.Params{}, domain.Session{})
	require.ErrorIs(t, err, domain.ErrUnknownAction)

	assert.Zero(t, pr.applySession, "applySession must not run for unknown actions")
	assert.Zero(t, pr.beforeMount, "beforeActionMount must not run for unknown actions")
	assert.Empty(t, pr.handlers)
}

func TestMount_ApplySessionRedirectSkipsRemainingSteps(t *testing.T) {
	pr := newProbes()
	p := runtime.New("ArticlesLive", articlesRegistry(t, pr),
		runtime.WithApplySession(func(ctx context.Context, s *domain.State, sess domain.Session) *domain.State {
			return s.RedirectTo("/login")
		}),
		runtime.WithBeforeActionMount(func(ctx context.Context, s *domain.State, key domain.HandlerKey, params domain.Params) *domain.State {
			pr.beforeMount++
			return s
		}),
	)

	env, err := p.Mount(context.Background(), "show", domain.Params{"id": "7"}, domain.Session{})
	require.NoError(t, err)

	assert.Equal(t, domain.DispositionRedirect, env.Disposition)
	assert.Equal(t, "/login", env.Target)
	assert.Zero(t, pr.beforeMount, "beforeActionMount must be skipped after redirect")
	assert.Zero(t, pr.handlers["show"], "actionMount must be skipped after redirect")
}

func TestMount_ApplySessionFoldsSessionData(t *testing.T) {
	pr := newProbes()
	p := runtime.New("ArticlesLive", articlesRegistry(t, pr),
		runtime.WithApplySession(func(ctx context.Context, s *domain.State, sess domain.Session) *domain.State {
			if user, ok := sess["user"]; ok {
				return s.Assign("current_user", user)
			}
			return s
		}),
	)

	env, err := p.Mount(context.Background(), "index", domain.Params{}, domain.Session{"user": "ada"})
	require.NoError(t, err)

	user, _ := env.State.Value("current_user")
	assert.Equal(t, "ada", user)
}

func TestHandleEvent_RedirectEnvelope(t *testing.T) {
	pr := newProbes()
	p := runtime.New("ArticlesLive", articlesRegistry(t, pr))

	state := domain.NewState().Assign("article_id", "7")
	env, err := p.HandleEvent(context.Background(), "delete", domain.Params{"id": "7"}, state)
	require.NoError(t, err)

	assert.Equal(t, domain.DispositionRedirect, env.Disposition)
	assert.Equal(t, "/articles", env.Target)
	require.NotNil(t, env.State)
	assert.True(t, env.State.Redirected())
}

func TestHandleEvent_UnknownEventLeavesStateUntouched(t *testing.T) {
	pr := newProbes()
	p := runtime.New("ArticlesLive", articlesRegistry(t, pr),
		runtime.WithBeforeEventHandler(func(ctx context.Context, s *domain.State, key domain.HandlerKey, params domain.Params) *domain.State {
			pr.beforeEvent++
			return s
		}),
	)

	state := domain.NewState().Assign("article_id", "7")
	_, err := p.HandleEvent(context.Background(), "unknown_evt", domain.Params{}, state)
	require.ErrorIs(t, err, domain.ErrUnknownEvent)

	assert.Zero(t, pr.beforeEvent)
	assert.Empty(t, pr.handlers)
	id, _ := state.Value("article_id")
	assert.Equal(t, "7", id, "state must be unchanged on rejection")
}

func TestHandleEvent_BeforeHookRedirectSkipsHandler(t *testing.T) {
	pr := newProbes()
	p := runtime.New("ArticlesLive", articlesRegistry(t, pr),
		runtime.WithBeforeEventHandler(func(ctx context.Context, s *domain.State, key domain.HandlerKey, params domain.Params) *domain.State {
			return s.RedirectTo("/denied")
		}),
	)

	env, err := p.HandleEvent(context.Background(), "delete", domain.Params{}, domain.NewState())
	require.NoError(t, err)

	assert.Equal(t, domain.DispositionRedirect, env.Disposition)
	assert.Equal(t, "/denied", env.Target)
	assert.Zero(t, pr.handlers["delete"], "eventHandler must be skipped after redirect")
}

func TestHandleEvent_DeterministicDispatch(t *testing.T) {
	reg, err := registry.NewBuilder().
		Event("ping", func(ctx context.Context, s *domain.State, params domain.Params) (domain.Outcome, error) {
			return s.Assign("last", params.String("n")), nil
		}).
		Build()
	require.NoError(t, err)

	p := runtime.New("PingLive", reg)
	for i := 0; i < 5; i++ {
		env, err := p.HandleEvent(context.Background(), "ping", domain.Params{"n": "42"}, domain.NewState())
		require.NoError(t, err)
		assert.Equal(t, domain.DispositionNoFurtherAction, env.Disposition)
		last, _ := env.State.Value("last")
		assert.Equal(t, "42", last)
	}
}

func TestNormalize_CustomEnvelopePassesThroughVerbatim(t *testing.T) {
	custom := &domain.Envelope{
		Disposition: domain.DispositionRedirect,
		Target:      "/totally/custom",
	}
	reg, err := registry.NewBuilder().
		MountAction("raw", func(ctx context.Context, s *domain.State, params domain.Params) (domain.Outcome, error) {
			return custom, nil
		}).
		Build()
	require.NoError(t, err)

	p := runtime.New("RawLive", reg)
	env, err := p.Mount(context.Background(), "raw", domain.Params{}, domain.Session{})
	require.NoError(t, err)

	assert.Equal(t, *custom, env)
	assert.Nil(t, env.State, "custom envelopes are not re-wrapped")
}

func TestDispatchOverride_DelegatesToDefault(t *testing.T) {
	pr := newProbes()
	var sawKey domain.HandlerKey
	p := runtime.New("ArticlesLive", articlesRegistry(t, pr),
		runtime.WithEventHandler(func(ctx context.Context, s *domain.State, key domain.HandlerKey, params domain.Params, next domain.DispatchFunc) (domain.Outcome, error) {
			sawKey = key
			return next(ctx, s.Assign("audited", true), key, params)
		}),
	)

	env, err := p.HandleEvent(context.Background(), "delete", domain.Params{}, domain.NewState())
	require.NoError(t, err)

	assert.Equal(t, domain.HandlerKey("delete"), sawKey)
	assert.Equal(t, 1, pr.handlers["delete"], "override must still reach the default dispatch")
	audited, _ := env.State.Value("audited")
	assert.Equal(t, true, audited)
}

func TestHandlerError_Propagates(t *testing.T) {
	boom := errors.New("boom")
	reg, err := registry.NewBuilder().
		Event("explode", func(ctx context.Context, s *domain.State, params domain.Params) (domain.Outcome, error) {
			return nil, boom
		}).
		Build()
	require.NoError(t, err)

	p := runtime.New("BoomLive", reg)
	_, err = p.HandleEvent(context.Background(), "explode", domain.Params{}, domain.NewState())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestLifecycleHooks_EmitMountDispatchReject(t *testing.T) {
	pr := newProbes()
	var mounts, dispatches, rejects int
	hooks := domain.LifecycleHooks{
		OnMount:    func(ctx context.Context, e *domain.MountEvent) { mounts++ },
		OnDispatch: func(ctx context.Context, e *domain.DispatchEventInfo) { dispatches++ },
		OnReject:   func(ctx context.Context, e *domain.RejectEventInfo) { rejects++ },
	}
	p := runtime.New("ArticlesLive", articlesRegistry(t, pr), runtime.WithLifecycleHooks(hooks))

	ctx := context.Background()
	_, _ = p.Mount(ctx, "index", domain.Params{}, domain.Session{})
	_, _ = p.HandleEvent(ctx, "delete", domain.Params{}, domain.NewState())
	_, _ = p.HandleEvent(ctx, "nope", domain.Params{}, domain.NewState())

	assert.Equal(t, 1, mounts)
	assert.Equal(t, 1, dispatches)
	assert.Equal(t, 1, rejects)
}

func TestLifecycleHooks_RejectNameIsBounded(t *testing.T) {
	pr := newProbes()
	var raw string
	p := runtime.New("ArticlesLive", articlesRegistry(t, pr), runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnReject: func(ctx context.Context, e *domain.RejectEventInfo) { raw = e.RawName },
	}))

	long := fmt.Sprintf("%0512d", 0)
	_, _ = p.HandleEvent(context.Background(), long, domain.Params{}, domain.NewState())
	assert.LessOrEqual(t, len(raw), 64)
}

func TestLifecycleHooks_RejectNameStaysValidUTF8(t *testing.T) {
	pr := newProbes()
	var raw string
	p := runtime.New("ArticlesLive", articlesRegistry(t, pr), runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnReject: func(ctx context.Context, e *domain.RejectEventInfo) { raw = e.RawName },
	}))

	_, _ = p.HandleEvent(context.Background(), strings.Repeat("日", 40), domain.Params{}, domain.NewState())
	assert.LessOrEqual(t, len(raw), 64)
	assert.True(t, utf8.ValidString(raw), "reject name split a rune: %q", raw)
}

func TestHandleEvent_PersistedRedirectReentersClean(t *testing.T) {
	reg, err := registry.NewBuilder().
		Event("touch", func(ctx context.Context, s *domain.State, params domain.Params) (domain.Outcome, error) {
			return s.Assign("touched", true), nil
		}).
		Build()
	require.NoError(t, err)

	p := runtime.New("ArticlesLive", reg)
	stale := domain.NewState().RedirectTo("/articles")

	env, err := p.HandleEvent(context.Background(), "touch", domain.Params{}, stale)
	require.NoError(t, err)

	assert.Equal(t, domain.DispositionNoFurtherAction, env.Disposition)
	touched, _ := env.State.Value("touched")
	assert.Equal(t, true, touched, "a stale marker must not short-circuit a fresh run")
}
