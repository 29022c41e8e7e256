package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/leapstack-labs/nsbrowse/internal/testutil"
	"github.com/leapstack-labs/nsbrowse/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names[T interface{ DisplayName() string }](items []T) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.DisplayName()
	}
	return out
}

func newTestStore(t *testing.T, host core.Host) *Store {
	t.Helper()
	s := New(host, testutil.NewTestLogger(t))
	require.NoError(t, s.Refresh(context.Background()))
	return s
}

func TestStore_Refresh_OrdersNamespacesAndMembers(t *testing.T) {
	host := testutil.NewFakeHost().
		AddNamespace("gamma", true, testutil.Member("zed", core.KindPublic), testutil.Member("abc", core.KindPrivate)).
		AddNamespace("alpha", true, testutil.Member("foo", core.KindPublic)).
		AddNamespace("beta", false, testutil.Member("hidden", core.KindPublic))

	s := newTestStore(t, host)

	assert.Equal(t, []string{"alpha", "beta", "gamma"}, names(s.ListNamespaces()))
	assert.Equal(t, []string{"abc", "zed"}, names(s.MembersOf("gamma")))
	assert.Empty(t, s.MembersOf("beta"), "unloaded namespaces expose no members")

	gamma, ok := s.Namespace("gamma")
	require.True(t, ok)
	assert.Equal(t, 2, gamma.MemberCount)

	m, ok := s.Member("gamma/zed")
	require.True(t, ok)
	assert.True(t, m.Is(core.KindPublic))
	assert.Equal(t, "gamma/zed", m.QualifiedName())
}

func TestStore_Refresh_PreservesIdentity(t *testing.T) {
	host := testutil.NewFakeHost().
		AddNamespace("alpha", true, testutil.Member("foo", core.KindPublic))
	s := newTestStore(t, host)

	alpha, _ := s.Namespace("alpha")
	foo, _ := s.Member("alpha/foo")
	before := s.Version()

	require.NoError(t, s.Refresh(context.Background()))

	alphaAgain, _ := s.Namespace("alpha")
	fooAgain, _ := s.Member("alpha/foo")
	assert.Same(t, alpha, alphaAgain)
	assert.Same(t, foo, fooAgain)
	assert.Equal(t, before, s.Version(), "unchanged refresh must not bump the version")
}

func TestStore_Refresh_KeepsVanishedNamespaces(t *testing.T) {
	host := testutil.NewFakeHost().AddNamespace("alpha", true)
	s := newTestStore(t, host)

	// A brand-new fake host without alpha
	s.host = testutil.NewFakeHost().AddNamespace("beta", false)
	require.NoError(t, s.Refresh(context.Background()))

	assert.Equal(t, []string{"alpha", "beta"}, names(s.ListNamespaces()))
}

func TestStore_MarkLoaded(t *testing.T) {
	host := testutil.NewFakeHost().
		AddNamespace("beta", false, testutil.Member("b1", core.KindPublic))
	s := newTestStore(t, host)
	ctx := context.Background()

	require.NoError(t, host.RequireNamespace(ctx, "beta"))

	changed, err := s.MarkLoaded(ctx, "beta")
	require.NoError(t, err)
	assert.True(t, changed)

	beta, _ := s.Namespace("beta")
	assert.True(t, beta.Loaded)
	assert.Equal(t, []string{"b1"}, names(s.MembersOf("beta")))

	version := s.Version()
	changed, err = s.MarkLoaded(ctx, "beta")
	require.NoError(t, err)
	assert.False(t, changed, "second MarkLoaded is a no-op")
	assert.Equal(t, version, s.Version())
	assert.True(t, beta.Loaded)
}

func TestStore_Refresh_NeverUnloads(t *testing.T) {
	host := testutil.NewFakeHost().
		AddNamespace("alpha", true, testutil.Member("foo", core.KindPublic))
	s := newTestStore(t, host)

	host.Unload("alpha")
	require.NoError(t, s.Refresh(context.Background()))

	alpha, _ := s.Namespace("alpha")
	assert.True(t, alpha.Loaded, "loading is one-way")
	assert.Equal(t, []string{"foo"}, names(s.MembersOf("alpha")))
}

func TestStore_Refresh_TracksStale(t *testing.T) {
	host := testutil.NewFakeHost().
		AddNamespace("alpha", true, testutil.Member("foo", core.KindPublic))
	s := newTestStore(t, host)
	ctx := context.Background()
	alpha, _ := s.Namespace("alpha")

	host.Change("alpha", testutil.Member("bar", core.KindPublic))
	before := s.Version()
	require.NoError(t, s.Refresh(ctx))

	assert.True(t, alpha.Loaded)
	assert.True(t, alpha.Stale)
	assert.Greater(t, s.Version(), before)
	assert.Equal(t, []string{"foo"}, names(s.MembersOf("alpha")), "stale members stay until reloaded")

	require.NoError(t, host.RequireNamespace(ctx, "alpha"))
	changed, err := s.MarkLoaded(ctx, "alpha")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.False(t, alpha.Stale)
	assert.Equal(t, []string{"bar"}, names(s.MembersOf("alpha")))

	changed, err = s.MarkLoaded(ctx, "alpha")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestStore_ReloadMembers_DuplicateInfos(t *testing.T) {
	host := testutil.NewFakeHost().
		AddNamespace("alpha", true, testutil.Member("a", core.KindPublic), testutil.Member("b", core.KindPublic))
	s := newTestStore(t, host)

	host.AddNamespace("alpha", true, testutil.Member("a", core.KindPublic), testutil.Member("a", core.KindPublic))
	require.NoError(t, s.ReloadMembers(context.Background(), "alpha"))

	assert.Equal(t, []string{"a"}, names(s.MembersOf("alpha")))
	_, ok := s.Member("alpha/b")
	assert.False(t, ok, "vanished member must be dropped")
	alpha, _ := s.Namespace("alpha")
	assert.Equal(t, 1, alpha.MemberCount)
}

func TestStore_ReloadMembers_PicksUpKindChanges(t *testing.T) {
	host := testutil.NewFakeHost().
		AddNamespace("alpha", true, testutil.Member("foo", core.KindPublic))
	s := newTestStore(t, host)
	ctx := context.Background()

	foo, _ := s.Member("alpha/foo")
	_, err := host.ToggleTrace(ctx, *foo)
	require.NoError(t, err)

	before := s.Version()
	require.NoError(t, s.ReloadMembers(ctx, "alpha"))

	assert.Greater(t, s.Version(), before)
	assert.True(t, foo.Is(core.KindTraced), "existing record is updated in place")
}

func TestStore_ReloadMembers_UnknownNamespace(t *testing.T) {
	s := newTestStore(t, testutil.NewFakeHost())

	err := s.ReloadMembers(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestStore_Refresh_HostFailure(t *testing.T) {
	host := testutil.NewFakeHost().AddNamespace("alpha", true)
	s := newTestStore(t, host)

	host.FailList(errors.New("connection refused"))
	err := s.Refresh(context.Background())
	require.Error(t, err)

	// Previously known data survives
	assert.Equal(t, []string{"alpha"}, names(s.ListNamespaces()))
}
