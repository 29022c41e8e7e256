package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leapstack-labs/nsbrowse/internal/resolve"
	"github.com/leapstack-labs/nsbrowse/internal/testutil"
	"github.com/leapstack-labs/nsbrowse/internal/view"
	"github.com/leapstack-labs/nsbrowse/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scenarioHost is alpha (loaded: public foo, private bar) and beta
// (unloaded, exposes baz once required).
func scenarioHost() *testutil.FakeHost {
	return testutil.NewFakeHost().
		AddNamespace("alpha", true,
			testutil.Member("foo", core.KindPublic, core.KindIntern),
			testutil.Member("bar", core.KindPrivate, core.KindIntern)).
		AddNamespace("beta", false,
			testutil.Member("baz", core.KindPublic, core.KindIntern)).
		SetDoc("alpha/foo", core.FacetDoc, "foo: does foo").
		SetDoc("alpha/foo", core.FacetSource, "def foo():\n    pass").
		SetDoc("alpha/bar", core.FacetDoc, "bar: does bar")
}

func newEngine(t *testing.T, host core.Host, configure ...func(*Config)) *Engine {
	t.Helper()
	cfg := Config{
		Host:          host,
		NamespaceMode: core.NamespacesAll,
		MemberMode:    core.MembersMap,
		Logger:        testutil.NewTestLogger(t),
	}
	for _, fn := range configure {
		fn(&cfg)
	}
	e := New(cfg)
	t.Cleanup(e.Close)
	require.NoError(t, e.Refresh(context.Background()))
	return e
}

func drain(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, e.Drain(ctx))
}

func namespaceNames(dm view.DisplayModel) []string {
	out := make([]string, len(dm.NamespaceRows))
	for i, r := range dm.NamespaceRows {
		out[i] = r.Name
	}
	return out
}

func memberNames(dm view.DisplayModel) []string {
	out := make([]string, len(dm.MemberRows))
	for i, r := range dm.MemberRows {
		out[i] = r.Name
	}
	return out
}

func TestEngine_BrowseScenario(t *testing.T) {
	e := newEngine(t, scenarioHost())

	e.SetNamespaceFilter(core.NamespacesLoaded, "")
	assert.Equal(t, []string{"alpha"}, namespaceNames(e.Display()))

	require.NoError(t, e.SelectNamespace("alpha"))
	e.SetMemberFilter(core.MembersPublics, "")
	assert.Equal(t, []string{"foo"}, memberNames(e.Display()))

	require.NoError(t, e.SelectMember("alpha/foo"))
	e.SetDocFacet(core.FacetSource)

	dm := e.Display()
	assert.Equal(t, "pending", dm.DocStatus.String())
	assert.Equal(t, core.FacetSource, dm.DocFacet)

	drain(t, e)

	dm = e.Display()
	assert.Equal(t, "ok", dm.DocStatus.String())
	assert.Equal(t, "def foo():\n    pass", dm.DocText)
	assert.Equal(t, "alpha", dm.SelectedNamespace)
	assert.Equal(t, "alpha/foo", dm.SelectedMember)
}

func TestEngine_RequireScenario(t *testing.T) {
	host := scenarioHost()
	e := newEngine(t, host)
	e.SetNamespaceFilter(core.NamespacesLoaded, "")
	assert.Equal(t, []string{"alpha"}, namespaceNames(e.Display()))

	issued, err := e.Require("beta")
	require.NoError(t, err)
	assert.True(t, issued)
	drain(t, e)

	beta, ok := e.Catalog().Namespace("beta")
	require.True(t, ok)
	assert.True(t, beta.Loaded)
	assert.Equal(t, 1, beta.MemberCount)
	assert.Equal(t, []string{"alpha", "beta"}, namespaceNames(e.Display()))

	require.NoError(t, e.SelectNamespace("beta"))
	dm := e.Display()
	assert.Equal(t, []string{"baz"}, memberNames(dm))
	assert.Equal(t, "ok", dm.RequireStatus.String())
	assert.False(t, dm.RequireEnabled)
}

func TestEngine_RequireLoadedIssuesNoTask(t *testing.T) {
	host := scenarioHost()
	e := newEngine(t, host)

	issued, err := e.Require("alpha")
	require.NoError(t, err)
	assert.False(t, issued)
	assert.Zero(t, e.InFlight())
	assert.Zero(t, host.CallCount(testutil.RequireKey("alpha")))
}

func TestEngine_RequireIsIdempotentWhilePending(t *testing.T) {
	host := scenarioHost()
	release := host.Hold(testutil.RequireKey("beta"))
	e := newEngine(t, host)

	first, err := e.Require("beta")
	require.NoError(t, err)
	second, err := e.Require("beta")
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)

	require.NoError(t, e.SelectNamespace("beta"))
	dm := e.Display()
	assert.Equal(t, "pending", dm.RequireStatus.String())
	assert.False(t, dm.RequireEnabled)

	release()
	drain(t, e)

	again, err := e.Require("beta")
	require.NoError(t, err)
	assert.False(t, again)
	assert.Equal(t, 1, host.CallCount(testutil.RequireKey("beta")))
}

func TestEngine_RequireUnknown(t *testing.T) {
	e := newEngine(t, scenarioHost())

	_, err := e.Require("gamma")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestEngine_RequireFailure(t *testing.T) {
	host := scenarioHost().FailRequire("beta", fmt.Errorf("beta.star:3: %w", core.ErrLoadError))
	e := newEngine(t, host)
	require.NoError(t, e.SelectNamespace("beta"))

	_, err := e.Require("beta")
	require.NoError(t, err)
	drain(t, e)

	dm := e.Display()
	assert.Equal(t, "error(LoadError)", dm.RequireStatus.String())
	assert.True(t, dm.RequireEnabled, "a failed require can be retried")
	ns, _ := e.Catalog().Namespace("beta")
	assert.False(t, ns.Loaded)
}

func namespaceRow(t *testing.T, dm view.DisplayModel, name string) view.NamespaceRow {
	t.Helper()
	for _, r := range dm.NamespaceRows {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("namespace %s not in rows %v", name, namespaceNames(dm))
	return view.NamespaceRow{}
}

func TestEngine_RequireKeepsSelection(t *testing.T) {
	e := newEngine(t, scenarioHost())
	e.SetNamespaceFilter(core.NamespacesUnloaded, "")
	require.NoError(t, e.SelectNamespace("beta"))
	before := e.Selection()

	_, err := e.Require("beta")
	require.NoError(t, err)
	drain(t, e)

	assert.Equal(t, before, e.Selection(), "require must not change the selection")
	dm := e.Display()
	assert.Equal(t, "beta", dm.SelectedNamespace)
	assert.True(t, namespaceRow(t, dm, "beta").Selected)
	assert.Equal(t, []string{"baz"}, memberNames(dm))

	// The pinned row goes away once the user changes the filter.
	e.SetNamespaceFilter(core.NamespacesUnloaded, "b")
	dm = e.Display()
	assert.Empty(t, dm.SelectedNamespace)
	assert.Empty(t, dm.NamespaceRows)
}

func TestEngine_RequireFailureShowsOnRow(t *testing.T) {
	host := scenarioHost().FailRequire("beta", fmt.Errorf("beta.star:3: %w", core.ErrLoadError))
	e := newEngine(t, host)
	require.NoError(t, e.SelectNamespace("alpha"))

	_, err := e.Require("beta")
	require.NoError(t, err)
	assert.Equal(t, "pending", namespaceRow(t, e.Display(), "beta").Require.String())
	drain(t, e)

	dm := e.Display()
	assert.Equal(t, "error(LoadError)", namespaceRow(t, dm, "beta").Require.String())
	assert.Equal(t, "idle", namespaceRow(t, dm, "alpha").Require.String())
	assert.Equal(t, "idle", dm.RequireStatus.String())
	assert.Equal(t, "error(LoadError)", e.RequireStatus("beta").String())
}

func TestEngine_RefreshReloadsStaleNamespace(t *testing.T) {
	host := scenarioHost()
	e := newEngine(t, host)
	require.NoError(t, e.SelectNamespace("alpha"))
	require.NoError(t, e.SelectMember("alpha/foo"))
	drain(t, e)

	host.Change("alpha",
		testutil.Member("foo", core.KindPublic, core.KindIntern),
		testutil.Member("qux", core.KindPublic, core.KindIntern))
	release := host.Hold(testutil.RequireKey("alpha"))

	// The reload runs as a require task; refresh itself does not wait for it.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, e.Refresh(ctx))
	assert.Equal(t, 1, e.InFlight())

	dm := e.Display()
	row := namespaceRow(t, dm, "alpha")
	assert.True(t, row.Loaded)
	assert.True(t, row.Stale)
	assert.Equal(t, "pending", row.Require.String())
	assert.Equal(t, []string{"bar", "foo"}, memberNames(dm), "stale members are served until the reload lands")

	release()
	drain(t, e)

	dm = e.Display()
	assert.False(t, namespaceRow(t, dm, "alpha").Stale)
	assert.Equal(t, "ok", dm.RequireStatus.String())
	assert.Equal(t, []string{"foo", "qux"}, memberNames(dm))
	assert.Equal(t, "alpha/foo", dm.SelectedMember)
}

func TestEngine_FailedReloadKeepsNamespaceLoaded(t *testing.T) {
	host := scenarioHost()
	e := newEngine(t, host)
	require.NoError(t, e.SelectNamespace("alpha"))

	host.Change("alpha", testutil.Member("qux", core.KindPublic))
	host.FailRequire("alpha", fmt.Errorf("alpha.star:1: %w", core.ErrLoadError))
	require.NoError(t, e.Refresh(context.Background()))
	drain(t, e)

	alpha, _ := e.Catalog().Namespace("alpha")
	assert.True(t, alpha.Loaded)
	assert.True(t, alpha.Stale)
	dm := e.Display()
	assert.Equal(t, "error(LoadError)", dm.RequireStatus.String())
	assert.True(t, dm.RequireEnabled, "a failed reload can be retried")
	assert.Equal(t, []string{"bar", "foo"}, memberNames(dm))
}

func TestEngine_DocNotFound(t *testing.T) {
	e := newEngine(t, scenarioHost())
	require.NoError(t, e.SelectNamespace("alpha"))
	require.NoError(t, e.SelectMember("alpha/foo"))
	drain(t, e)

	before := e.Selection()
	e.SetDocFacet(core.FacetExamples)
	drain(t, e)

	dm := e.Display()
	assert.Equal(t, "error(NotFound)", dm.DocStatus.String())
	assert.Empty(t, dm.DocText)
	assert.Equal(t, "alpha/foo", dm.SelectedMember)

	after := e.Selection()
	assert.Equal(t, before.Namespace, after.Namespace)
	assert.Equal(t, before.Member, after.Member)
}

func TestEngine_SelectNamespaceClearsMember(t *testing.T) {
	e := newEngine(t, scenarioHost())
	require.NoError(t, e.SelectNamespace("alpha"))
	require.NoError(t, e.SelectMember("alpha/foo"))
	drain(t, e)
	require.Equal(t, "ok", e.Display().DocStatus.String())

	require.NoError(t, e.SelectNamespace("beta"))

	dm := e.Display()
	assert.Equal(t, "beta", dm.SelectedNamespace)
	assert.Empty(t, dm.SelectedMember)
	assert.Empty(t, dm.MemberRows, "unloaded namespaces have no members")
	assert.Equal(t, "idle", dm.DocStatus.String())
	assert.Empty(t, dm.DocText)
	assert.True(t, dm.RequireEnabled)
}

func TestEngine_StaleSelection(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*Engine)
		pick  func(*Engine) error
	}{
		{
			name:  "member before namespace",
			setup: func(*Engine) {},
			pick:  func(e *Engine) error { return e.SelectMember("alpha/foo") },
		},
		{
			name:  "member of another namespace",
			setup: func(e *Engine) { _ = e.SelectNamespace("beta") },
			pick:  func(e *Engine) error { return e.SelectMember("alpha/foo") },
		},
		{
			name: "member hidden by filter",
			setup: func(e *Engine) {
				_ = e.SelectNamespace("alpha")
				e.SetMemberFilter(core.MembersPublics, "")
			},
			pick: func(e *Engine) error { return e.SelectMember("alpha/bar") },
		},
		{
			name:  "unknown member",
			setup: func(e *Engine) { _ = e.SelectNamespace("alpha") },
			pick:  func(e *Engine) error { return e.SelectMember("alpha/nope") },
		},
		{
			name:  "namespace hidden by filter",
			setup: func(e *Engine) { e.SetNamespaceFilter(core.NamespacesLoaded, "") },
			pick:  func(e *Engine) error { return e.SelectNamespace("beta") },
		},
		{
			name:  "unknown namespace",
			setup: func(*Engine) {},
			pick:  func(e *Engine) error { return e.SelectNamespace("gamma") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := scenarioHost()
			e := newEngine(t, host)
			tt.setup(e)
			before := e.Selection()

			err := tt.pick(e)

			assert.ErrorIs(t, err, core.ErrStaleSelection)
			assert.Equal(t, before, e.Selection())
			assert.Zero(t, e.InFlight())
		})
	}
}

func TestEngine_MemberFilterDropsHiddenSelection(t *testing.T) {
	e := newEngine(t, scenarioHost())
	require.NoError(t, e.SelectNamespace("alpha"))
	require.NoError(t, e.SelectMember("alpha/bar"))
	drain(t, e)

	e.SetMemberFilter(core.MembersPublics, "")

	dm := e.Display()
	assert.Empty(t, dm.SelectedMember)
	assert.Equal(t, "idle", dm.DocStatus.String())
	assert.Equal(t, []string{"foo"}, memberNames(dm))
}

func TestEngine_NamespaceFilterDropsHiddenSelection(t *testing.T) {
	e := newEngine(t, scenarioHost())
	require.NoError(t, e.SelectNamespace("beta"))

	e.SetNamespaceFilter(core.NamespacesAll, "^al")

	dm := e.Display()
	assert.Empty(t, dm.SelectedNamespace)
	assert.Empty(t, dm.MemberRows)
	assert.Equal(t, []string{"alpha"}, namespaceNames(dm))
}

func TestEngine_InvalidPattern(t *testing.T) {
	e := newEngine(t, scenarioHost())

	e.SetNamespaceFilter(core.NamespacesAll, "([")

	dm := e.Display()
	assert.True(t, dm.NamespaceInvalidPattern)
	assert.Empty(t, dm.NamespaceRows)
	assert.Zero(t, dm.NamespaceMatchCount)

	e.SetNamespaceFilter(core.NamespacesAll, "ALP")
	dm = e.Display()
	assert.False(t, dm.NamespaceInvalidPattern)
	assert.Equal(t, []string{"alpha"}, namespaceNames(dm))
}

func TestEngine_OutOfOrderDocCompletion(t *testing.T) {
	host := &slowHost{FakeHost: scenarioHost(), entered: make(chan struct{}), gate: make(chan struct{})}
	e := newEngine(t, host)
	require.NoError(t, e.SelectNamespace("alpha"))

	require.NoError(t, e.SelectMember("alpha/foo"))
	<-host.entered
	require.NoError(t, e.SelectMember("alpha/bar"))

	ctx := context.Background()
	applied, err := e.Await(ctx)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, "bar: does bar", e.Display().DocText)

	close(host.gate)
	applied, err = e.Await(ctx)
	require.NoError(t, err)
	assert.False(t, applied, "late completion for foo must be discarded")

	dm := e.Display()
	assert.Equal(t, "bar: does bar", dm.DocText)
	assert.Equal(t, "alpha/bar", dm.SelectedMember)
}

func TestEngine_DocForOlderGenerationIsDropped(t *testing.T) {
	host := scenarioHost()
	release := host.Hold(testutil.DocKey("alpha/foo", core.FacetDoc))
	defer release()
	e := newEngine(t, host)
	require.NoError(t, e.SelectNamespace("alpha"))
	require.NoError(t, e.SelectMember("alpha/foo"))

	task, ok := e.resolver.Current(resolve.DocSlot)
	require.True(t, ok)

	applied := e.Apply(context.Background(), resolve.Completion{
		TaskID:     task.ID,
		Kind:       resolve.TaskDoc,
		Slot:       resolve.DocSlot,
		Target:     "alpha/foo",
		Generation: task.Generation - 1,
		Text:       "stale",
	})

	assert.False(t, applied)
	assert.Empty(t, e.Display().DocText)
}

func TestEngine_CopyPasteFQN(t *testing.T) {
	e := newEngine(t, scenarioHost())

	_, ok := e.CopyFQN()
	assert.False(t, ok)

	require.NoError(t, e.PasteFQN("  alpha/bar\n"))
	fqn, ok := e.CopyFQN()
	require.True(t, ok)
	assert.Equal(t, "alpha/bar", fqn)

	assert.ErrorIs(t, e.PasteFQN("no-slash"), core.ErrStaleSelection)
	assert.ErrorIs(t, e.PasteFQN("gamma/x"), core.ErrStaleSelection)
}

func TestEngine_SourceLocation(t *testing.T) {
	host := testutil.NewFakeHost().AddNamespace("alpha", true,
		core.MemberInfo{Name: "foo", Kinds: core.Kinds(core.KindPublic), Line: 12})
	e := newEngine(t, host)

	_, _, ok := e.SourceLocation()
	assert.False(t, ok)

	require.NoError(t, e.SelectNamespace("alpha"))
	src, line, ok := e.SourceLocation()
	require.True(t, ok)
	assert.Equal(t, "alpha.fake", src)
	assert.Zero(t, line)

	require.NoError(t, e.SelectMember("alpha/foo"))
	src, line, ok = e.SourceLocation()
	require.True(t, ok)
	assert.Equal(t, "alpha.fake", src)
	assert.Equal(t, 12, line)
}

func TestEngine_Trace(t *testing.T) {
	e := newEngine(t, scenarioHost())
	require.NoError(t, e.SelectNamespace("alpha"))
	e.SetMemberFilter(core.MembersTraced, "")
	assert.Empty(t, e.Display().MemberRows)

	require.NoError(t, e.Trace("alpha/foo"))
	drain(t, e)

	assert.Equal(t, []string{"foo"}, memberNames(e.Display()))
}

func TestEngine_TraceRejected(t *testing.T) {
	host := testutil.NewFakeHost().AddNamespace("builtins", true,
		testutil.Member("if", core.KindSpecialForm))
	e := newEngine(t, host)

	assert.ErrorIs(t, e.Trace("builtins/if"), resolve.ErrNotTraceable)
	assert.ErrorIs(t, e.Trace("builtins/missing"), core.ErrNotFound)
}

func TestEngine_OnView(t *testing.T) {
	var viewed []string
	e := newEngine(t, scenarioHost(), func(cfg *Config) {
		cfg.OnView = func(m core.Member, facet core.DocFacet, _ string) {
			viewed = append(viewed, m.QualifiedName()+":"+facet.String())
		}
	})

	require.NoError(t, e.PasteFQN("alpha/foo"))
	drain(t, e)
	e.SetDocFacet(core.FacetExamples) // NotFound is not recorded
	drain(t, e)

	assert.Equal(t, []string{"alpha/foo:Doc"}, viewed)
}

func TestEngine_RefreshKeepsSelection(t *testing.T) {
	host := scenarioHost()
	e := newEngine(t, host)
	require.NoError(t, e.PasteFQN("alpha/foo"))
	drain(t, e)

	host.AddNamespace("gamma", true)
	require.NoError(t, e.Refresh(context.Background()))

	dm := e.Display()
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, namespaceNames(dm))
	assert.Equal(t, "alpha/foo", dm.SelectedMember)
	assert.Equal(t, "ok", dm.DocStatus.String())
}

func TestEngine_RefreshFailureStaysRenderable(t *testing.T) {
	host := scenarioHost()
	e := newEngine(t, host)

	host.FailList(fmt.Errorf("socket closed: %w", core.ErrHostUnavailable))
	err := e.Refresh(context.Background())

	assert.ErrorIs(t, err, core.ErrHostUnavailable)
	assert.Equal(t, []string{"alpha", "beta"}, namespaceNames(e.Display()))
}

// slowHost blocks FetchDoc for alpha/foo until gate closes, ignoring
// cancellation, so its result arrives after newer requests.
type slowHost struct {
	*testutil.FakeHost
	entered chan struct{}
	gate    chan struct{}
}

func (h *slowHost) FetchDoc(_ context.Context, m core.Member, facet core.DocFacet) (string, error) {
	if m.QualifiedName() == "alpha/foo" {
		close(h.entered)
		<-h.gate
	}
	return h.FakeHost.FetchDoc(context.Background(), m, facet)
}
