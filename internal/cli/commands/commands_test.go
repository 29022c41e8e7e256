package commands

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/leapstack-labs/nsbrowse/internal/cli/config"
	"github.com/leapstack-labs/nsbrowse/internal/cli/output"
	clitest "github.com/leapstack-labs/nsbrowse/internal/cli/testutil"
	"github.com/leapstack-labs/nsbrowse/internal/testutil"
	"github.com/leapstack-labs/nsbrowse/pkg/core"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, tr *clitest.TestRenderer, configure ...func(*config.Config)) *App {
	t.Helper()

	cfg := clitest.NewTestConfig(t, clitest.SetupTestProject(t))
	for _, fn := range configure {
		fn(cfg)
	}
	app, cleanup, err := newApp(context.Background(), cfg, testutil.NewTestLogger(t), tr.Renderer, io.Discard)
	require.NoError(t, err)
	t.Cleanup(cleanup)
	return app
}

func testCommand() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	return cmd
}

func TestNamespaces_Markdown(t *testing.T) {
	tr := clitest.NewTestRendererMarkdown()
	app := newTestApp(t, tr)

	require.NoError(t, runNamespaces(testCommand(), app))

	out := tr.Output()
	clitest.AssertNoANSI(t, out)
	clitest.AssertValidMarkdown(t, out)
	assert.Contains(t, out, "# Namespaces (4)")
	assert.Contains(t, out, "| Name | Loaded | Members | Source |")
	assert.Contains(t, out, "| builtins | yes |")
	assert.Contains(t, out, "| main | no | 0 |")
}

func TestNamespaces_JSON(t *testing.T) {
	tr := clitest.NewTestRendererJSON()
	app := newTestApp(t, tr)

	require.NoError(t, runNamespaces(testCommand(), app))

	var got []output.NamespaceOutput
	require.NoError(t, json.Unmarshal(tr.Out.Bytes(), &got))
	names := make([]string, len(got))
	for i, ns := range got {
		names[i] = ns.Name
	}
	assert.Equal(t, []string{"builtins", "broken", "main", "util"}, names)
	assert.True(t, got[0].Loaded)
	assert.NotEmpty(t, got[2].Source)
}

func TestNamespaces_Filtered(t *testing.T) {
	tr := clitest.NewTestRendererMarkdown()
	app := newTestApp(t, tr, func(cfg *config.Config) {
		cfg.Browse.NamespaceMode = core.NamespacesUnloaded
		cfg.Browse.NamespacePattern = "^MA"
	})

	require.NoError(t, runNamespaces(testCommand(), app))

	out := tr.Output()
	assert.Contains(t, out, "# Namespaces (1)")
	assert.Contains(t, out, "| main |")
	assert.NotContains(t, out, "| util |")
}

func TestNamespaces_InvalidPattern(t *testing.T) {
	tr := clitest.NewTestRendererMarkdown()
	app := newTestApp(t, tr, func(cfg *config.Config) {
		cfg.Browse.NamespacePattern = "("
	})

	require.NoError(t, runNamespaces(testCommand(), app))

	assert.Contains(t, tr.ErrorOutput(), `invalid namespace pattern "("`)
	assert.Contains(t, tr.Output(), "# Namespaces (0)")
	assert.Contains(t, tr.Output(), "No namespaces match.")
}

func TestMembers_Unloaded(t *testing.T) {
	tr := clitest.NewTestRendererMarkdown()
	app := newTestApp(t, tr)

	require.NoError(t, runMembers(testCommand(), app, "main", false))

	assert.Contains(t, tr.Output(), "Namespace main is not loaded")
}

func TestMembers_Require(t *testing.T) {
	tr := clitest.NewTestRendererMarkdown()
	app := newTestApp(t, tr)

	require.NoError(t, runMembers(testCommand(), app, "main", true))

	out := tr.Output()
	assert.Contains(t, out, "# main (3 publics)")
	assert.Contains(t, out, "| greet |")
	assert.Contains(t, out, "| compute |")
	assert.Contains(t, out, "| limits |")
	assert.NotContains(t, out, "_hidden")
	assert.NotContains(t, out, "| helper |")
}

func TestMembers_JSON(t *testing.T) {
	tr := clitest.NewTestRendererJSON()
	app := newTestApp(t, tr, func(cfg *config.Config) {
		cfg.Browse.MemberMode = core.MembersPrivates
	})

	require.NoError(t, runMembers(testCommand(), app, "main", true))

	var got []output.MemberOutput
	require.NoError(t, json.Unmarshal(tr.Out.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "_hidden", got[0].Name)
	assert.Equal(t, "main/_hidden", got[0].QualifiedName)
	assert.Equal(t, []string{"private", "intern"}, got[0].Kinds)
}

func TestMembers_UnknownNamespace(t *testing.T) {
	app := newTestApp(t, clitest.NewTestRendererMarkdown())

	err := runMembers(testCommand(), app, "gamma", false)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestMembers_RequireFailure(t *testing.T) {
	app := newTestApp(t, clitest.NewTestRendererMarkdown())

	err := runMembers(testCommand(), app, "broken", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to require broken: error(LoadError)")
}

func TestDoc(t *testing.T) {
	tr := clitest.NewTestRendererMarkdown()
	app := newTestApp(t, tr)

	require.NoError(t, runDoc(testCommand(), app, "main/greet"))

	out := tr.Output()
	clitest.AssertValidMarkdown(t, out)
	assert.Contains(t, out, "# main/greet")
	assert.Contains(t, out, "- **Facet**: Doc")
	assert.Contains(t, out, "greet(name)\n\nReturns a greeting.")
}

func TestDoc_Source(t *testing.T) {
	tr := clitest.NewTestRendererMarkdown()
	app := newTestApp(t, tr, func(cfg *config.Config) {
		cfg.Browse.DocFacet = core.FacetSource
	})

	require.NoError(t, runDoc(testCommand(), app, "main/greet"))

	out := tr.Output()
	clitest.AssertValidMarkdown(t, out)
	assert.Contains(t, out, "```python\ndef greet(name):")
}

func TestDoc_MemberOutsideConfiguredMode(t *testing.T) {
	tr := clitest.NewTestRendererJSON()
	app := newTestApp(t, tr)

	require.NoError(t, runDoc(testCommand(), app, "main/_hidden"))

	var got output.DocOutput
	require.NoError(t, json.Unmarshal(tr.Out.Bytes(), &got))
	assert.Equal(t, "main/_hidden", got.QualifiedName)
	assert.Equal(t, "Doc", got.Facet)
	assert.Equal(t, "ok", got.Status)
	assert.Contains(t, got.Text, "_hidden(")
}

func TestDoc_RecordsHistory(t *testing.T) {
	app := newTestApp(t, clitest.NewTestRendererMarkdown())

	require.NoError(t, runDoc(testCommand(), app, "main/greet"))

	views, err := app.Store.RecentViews(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "main/greet", views[0].QualifiedName)
	assert.Equal(t, core.FacetDoc, views[0].Facet)
	assert.Equal(t, app.SessionID, views[0].SessionID)
}

func TestDoc_Errors(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		wantErr string
		is      error
	}{
		{name: "not qualified", target: "greet", wantErr: "expected namespace/name"},
		{name: "unknown namespace", target: "gamma/x", is: core.ErrNotFound},
		{name: "unknown member", target: "main/nope", is: core.ErrNotFound},
		{name: "load failure", target: "broken/x", wantErr: "failed to require broken"},
		{name: "facet missing", target: "main/compute", wantErr: "Examples of main/compute: NotFound"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t, clitest.NewTestRendererMarkdown(), func(cfg *config.Config) {
				cfg.Browse.DocFacet = core.FacetExamples
			})

			err := runDoc(testCommand(), app, tt.target)
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
			if tt.wantErr != "" {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestDiscover_JSON(t *testing.T) {
	tr := clitest.NewTestRendererJSON()
	app := newTestApp(t, tr)
	ctx := context.Background()

	require.NoError(t, runDiscover(testCommand(), app))

	var got output.DiscoverOutput
	require.NoError(t, json.Unmarshal(tr.Out.Bytes(), &got))
	assert.Equal(t, 4, got.Summary.TotalNamespaces)
	assert.Equal(t, 1, got.Summary.Failed)
	assert.Equal(t, app.Store.Path(), got.Summary.StatePath)

	byName := map[string]output.DiscoverNamespace{}
	for _, ns := range got.Namespaces {
		byName[ns.Name] = ns
	}
	assert.NotEmpty(t, byName["broken"].Error)
	assert.False(t, byName["broken"].Loaded)
	assert.True(t, byName["main"].Loaded)
	assert.Contains(t, byName["main"].Members, "greet")
	assert.Contains(t, byName["util"].Members, "helper")

	// The snapshot survives in the state store.
	records, err := app.Store.Namespaces(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 4)
	for _, rec := range records {
		assert.Equal(t, rec.Name != "broken", rec.Loaded, rec.Name)
	}
	members, err := app.Store.Members(ctx, "main")
	require.NoError(t, err)
	assert.Len(t, members, len(byName["main"].Members))
}

func TestDiscover_Markdown(t *testing.T) {
	tr := clitest.NewTestRendererMarkdown()
	app := newTestApp(t, tr)

	require.NoError(t, runDiscover(testCommand(), app))

	assert.Contains(t, tr.Output(), "# Discovery")
	assert.Contains(t, tr.Output(), "4 namespaces")
	assert.Contains(t, tr.ErrorOutput(), "1 namespaces failed to load")
}

func TestMemberModeFor(t *testing.T) {
	tests := []struct {
		kinds core.KindSet
		want  core.MemberMode
	}{
		{core.Kinds(core.KindPublic, core.KindIntern), core.MembersPublics},
		{core.Kinds(core.KindPrivate, core.KindIntern), core.MembersPrivates},
		{core.Kinds(core.KindRefer, core.KindAlias), core.MembersRefers},
		{core.Kinds(core.KindImport), core.MembersImports},
		{core.Kinds(core.KindSpecialForm), core.MembersMap},
	}
	for _, tt := range tests {
		t.Run(tt.kinds.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, memberModeFor(&core.Member{Kinds: tt.kinds}))
		})
	}
}
