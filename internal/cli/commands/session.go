package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/nsbrowse/internal/cli/output"
	"github.com/leapstack-labs/nsbrowse/internal/engine"
	"github.com/leapstack-labs/nsbrowse/internal/view"
	"github.com/leapstack-labs/nsbrowse/pkg/core"
)

// session is one interactive browse session. Engine access goes through
// the loop; the renderer writes above the prompt.
type session struct {
	app  *App
	loop *engine.Loop
	r    *output.Renderer

	nsMode        core.NamespaceMode
	nsPattern     string
	memberMode    core.MemberMode
	memberPattern string

	copyText  func(string) error
	pasteText func() (string, error)
}

func newSession(app *App, loop *engine.Loop) *session {
	b := app.Cfg.Browse
	return &session{
		app:           app,
		loop:          loop,
		r:             app.Renderer,
		nsMode:        b.NamespaceMode,
		nsPattern:     b.NamespacePattern,
		memberMode:    b.MemberMode,
		memberPattern: b.MemberPattern,
		copyText:      writeClipboard,
		pasteText:     readClipboard,
	}
}

func (s *session) run(ctx context.Context, rl *readline.Instance) error {
	stop := context.AfterFunc(ctx, func() { _ = rl.Close() })
	defer stop()

	s.r.Printf("nsbrowse (macros: %s)\n", s.app.Cfg.MacrosDir)
	s.r.Println("Type help for commands, quit to exit")
	s.r.Println("")
	if _, err := s.exec(ctx, "ls"); err != nil {
		s.r.Error(err.Error())
	}

	for {
		line, err := rl.Readline()
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		quit, err := s.exec(ctx, line)
		if err != nil {
			if errors.Is(err, engine.ErrLoopClosed) {
				return nil
			}
			s.r.Error(err.Error())
		}
		if quit {
			return nil
		}
	}
}

// exec runs one input line and reports whether the session should end.
func (s *session) exec(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	word, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(word) {
	case "quit", "exit":
		return true, nil
	case "help":
		printBrowseHelp(s.r.Writer())
		return false, nil
	case "ls", "namespaces":
		return false, s.showNamespaces(ctx)
	case "nsmode":
		return false, s.setNamespaceMode(ctx, rest)
	case "nsfilter":
		s.nsPattern = rest
		return false, s.applyNamespaceFilter(ctx)
	case "ns":
		return false, s.selectNamespace(ctx, rest)
	case "members":
		return false, s.showMembers(ctx)
	case "mode":
		return false, s.setMemberMode(ctx, rest)
	case "filter":
		s.memberPattern = rest
		return false, s.applyMemberFilter(ctx)
	case "m", "member":
		return false, s.selectMember(ctx, rest)
	case "facet":
		return false, s.setFacet(ctx, rest)
	case "doc":
		return false, s.showDoc(ctx)
	case "require":
		return false, s.require(ctx, rest)
	case "trace":
		return false, s.trace(ctx, rest)
	case "eval":
		return false, s.eval(ctx, rest)
	case "where":
		return false, s.where(ctx)
	case "copy":
		return false, s.copy(ctx)
	case "paste":
		return false, s.paste(ctx, rest)
	case "history":
		return false, s.history(ctx, rest)
	case "refresh":
		return false, s.refresh(ctx)
	default:
		return false, fmt.Errorf("unknown command %q (type help)", word)
	}
}

// =============================================================================
// Commands
// =============================================================================

func (s *session) setNamespaceMode(ctx context.Context, label string) error {
	mode, ok := core.ParseNamespaceMode(label)
	if !ok || label == "" {
		return fmt.Errorf("unknown namespace mode %q", label)
	}
	s.nsMode = mode
	return s.applyNamespaceFilter(ctx)
}

func (s *session) applyNamespaceFilter(ctx context.Context) error {
	err := s.loop.Do(ctx, func(e *engine.Engine) error {
		e.SetNamespaceFilter(s.nsMode, s.nsPattern)
		return nil
	})
	if err != nil {
		return err
	}
	return s.showNamespaces(ctx)
}

func (s *session) selectNamespace(ctx context.Context, name string) error {
	if name == "" {
		return errors.New("usage: ns <namespace>")
	}
	if err := s.loop.Do(ctx, func(e *engine.Engine) error {
		return e.SelectNamespace(name)
	}); err != nil {
		return err
	}
	return s.showMembers(ctx)
}

func (s *session) setMemberMode(ctx context.Context, label string) error {
	mode, ok := core.ParseMemberMode(label)
	if !ok {
		return fmt.Errorf("unknown member mode %q", label)
	}
	s.memberMode = mode
	return s.applyMemberFilter(ctx)
}

func (s *session) applyMemberFilter(ctx context.Context) error {
	err := s.loop.Do(ctx, func(e *engine.Engine) error {
		e.SetMemberFilter(s.memberMode, s.memberPattern)
		return nil
	})
	if err != nil {
		return err
	}
	return s.showMembers(ctx)
}

func (s *session) selectMember(ctx context.Context, name string) error {
	if name == "" {
		return errors.New("usage: member <name>")
	}
	qn, err := s.qualify(ctx, name)
	if err != nil {
		return err
	}
	if err := s.loop.Do(ctx, func(e *engine.Engine) error {
		return e.SelectMember(qn)
	}); err != nil {
		return err
	}
	return s.showDoc(ctx)
}

func (s *session) setFacet(ctx context.Context, label string) error {
	facet, ok := core.ParseDocFacet(label)
	if !ok {
		return fmt.Errorf("unknown facet %q", label)
	}
	if err := s.loop.Do(ctx, func(e *engine.Engine) error {
		e.SetDocFacet(facet)
		return nil
	}); err != nil {
		return err
	}
	return s.showDoc(ctx)
}

func (s *session) require(ctx context.Context, name string) error {
	if name == "" {
		dm, err := s.loop.Display(ctx)
		if err != nil {
			return err
		}
		if dm.SelectedNamespace == "" {
			return errors.New("usage: require <namespace>")
		}
		name = dm.SelectedNamespace
	}

	var issued bool
	if err := s.loop.Do(ctx, func(e *engine.Engine) error {
		var err error
		issued, err = e.Require(name)
		return err
	}); err != nil {
		return err
	}
	if !issued {
		s.r.Muted(fmt.Sprintf("%s is already loaded", name))
		return nil
	}
	if err := s.settle(ctx); err != nil {
		return err
	}

	var status view.Status
	if err := s.loop.Do(ctx, func(e *engine.Engine) error {
		status = e.RequireStatus(name)
		return nil
	}); err != nil {
		return err
	}
	if status.State == view.StateError {
		return fmt.Errorf("failed to require %s: %s", name, status)
	}
	s.r.Success(fmt.Sprintf("loaded %s", name))
	return s.showMembers(ctx)
}

func (s *session) trace(ctx context.Context, name string) error {
	var qn string
	if name == "" {
		dm, err := s.loop.Display(ctx)
		if err != nil {
			return err
		}
		if dm.SelectedMember == "" {
			return errors.New("usage: trace <member>")
		}
		qn = dm.SelectedMember
	} else {
		var err error
		if qn, err = s.qualify(ctx, name); err != nil {
			return err
		}
	}

	if err := s.loop.Do(ctx, func(e *engine.Engine) error {
		return e.Trace(qn)
	}); err != nil {
		return err
	}
	if err := s.settle(ctx); err != nil {
		return err
	}

	var traced bool
	if err := s.loop.Do(ctx, func(e *engine.Engine) error {
		m, ok := e.Catalog().Member(qn)
		traced = ok && m.Is(core.KindTraced)
		return nil
	}); err != nil {
		return err
	}
	if traced {
		s.r.Success(fmt.Sprintf("tracing %s", qn))
	} else {
		s.r.Muted(fmt.Sprintf("stopped tracing %s", qn))
	}
	return nil
}

func (s *session) eval(ctx context.Context, expr string) error {
	if expr == "" {
		return errors.New("usage: eval <expression>")
	}
	dm, err := s.loop.Display(ctx)
	if err != nil {
		return err
	}
	result, err := s.app.Macros.Eval(ctx, dm.SelectedNamespace, expr)
	if err != nil {
		return err
	}
	s.r.Println(result)
	return nil
}

func (s *session) where(ctx context.Context) error {
	var (
		source string
		line   int
		ok     bool
	)
	if err := s.loop.Do(ctx, func(e *engine.Engine) error {
		source, line, ok = e.SourceLocation()
		return nil
	}); err != nil {
		return err
	}
	if !ok {
		s.r.Muted("No source location.")
		return nil
	}
	if line > 0 {
		s.r.Printf("%s:%d\n", source, line)
	} else {
		s.r.Println(source)
	}
	return nil
}

func (s *session) copy(ctx context.Context) error {
	var (
		qn string
		ok bool
	)
	if err := s.loop.Do(ctx, func(e *engine.Engine) error {
		qn, ok = e.CopyFQN()
		return nil
	}); err != nil {
		return err
	}
	if !ok {
		return errors.New("no member selected")
	}
	s.r.Println(qn)
	if err := s.copyText(qn); err != nil {
		s.r.Muted(fmt.Sprintf("(%v)", err))
		return nil
	}
	s.r.Muted("(copied to clipboard)")
	return nil
}

func (s *session) paste(ctx context.Context, text string) error {
	if text == "" {
		var err error
		if text, err = s.pasteText(); err != nil {
			return err
		}
	}
	if err := s.loop.Do(ctx, func(e *engine.Engine) error {
		return e.PasteFQN(text)
	}); err != nil {
		return err
	}
	return s.showDoc(ctx)
}

func (s *session) history(ctx context.Context, arg string) error {
	limit := 0
	if arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid history limit %q", arg)
		}
		limit = n
	}

	views, err := s.app.Store.RecentViews(ctx, limit)
	if err != nil {
		return err
	}
	if len(views) == 0 {
		s.r.Muted("No history yet.")
		return nil
	}

	if s.r.EffectiveMode() == output.ModeJSON {
		out := make([]output.ViewOutput, 0, len(views))
		for _, v := range views {
			out = append(out, output.ViewOutput{
				QualifiedName: v.QualifiedName,
				Facet:         v.Facet.String(),
				ViewedAt:      v.ViewedAt.Format("2006-01-02T15:04:05Z07:00"),
				SessionID:     v.SessionID,
			})
		}
		return s.r.JSON(out)
	}

	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{
			v.ViewedAt.Local().Format("2006-01-02 15:04:05"),
			v.QualifiedName,
			v.Facet.String(),
		})
	}
	s.r.Table([]string{"Viewed", "Member", "Facet"}, rows)
	return nil
}

func (s *session) refresh(ctx context.Context) error {
	if err := s.loop.Do(ctx, func(e *engine.Engine) error {
		return e.Refresh(ctx)
	}); err != nil {
		s.r.Warning(err.Error())
	}
	return s.showNamespaces(ctx)
}

// reload refreshes the catalog after files changed on disk.
func (s *session) reload(ctx context.Context, paths []string) {
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	s.app.Logger.Info("macros changed", "files", names)

	if err := s.loop.Do(ctx, func(e *engine.Engine) error {
		return e.Refresh(ctx)
	}); err != nil {
		if ctx.Err() == nil {
			s.r.Warning(err.Error())
		}
		return
	}
	s.r.Muted(fmt.Sprintf("refreshed after changes to %s", strings.Join(names, ", ")))
}

// =============================================================================
// Helpers
// =============================================================================

// settle waits until every issued task has been applied.
func (s *session) settle(ctx context.Context) error {
	return s.loop.Do(ctx, func(e *engine.Engine) error {
		return e.Drain(ctx)
	})
}

// qualify resolves a bare member name against the selected namespace.
func (s *session) qualify(ctx context.Context, name string) (string, error) {
	if strings.Contains(name, "/") {
		return name, nil
	}
	dm, err := s.loop.Display(ctx)
	if err != nil {
		return "", err
	}
	if dm.SelectedNamespace == "" {
		return "", errors.New("no namespace selected")
	}
	return core.QualifiedName(dm.SelectedNamespace, name), nil
}

func (s *session) showNamespaces(ctx context.Context) error {
	dm, err := s.loop.Display(ctx)
	if err != nil {
		return err
	}
	title := fmt.Sprintf("Namespaces (%d %s)", dm.NamespaceMatchCount, s.nsMode)
	if s.nsPattern != "" {
		title += fmt.Sprintf(" matching %q", s.nsPattern)
	}
	s.r.Header(2, title)
	if dm.NamespaceInvalidPattern {
		s.r.Warning(fmt.Sprintf("invalid namespace pattern %q", s.nsPattern))
		return nil
	}
	if len(dm.NamespaceRows) == 0 {
		s.r.Muted("No namespaces match.")
		return nil
	}

	rows := make([][]string, 0, len(dm.NamespaceRows))
	for _, row := range dm.NamespaceRows {
		rows = append(rows, []string{
			marker(row.Selected), row.Name, yesNo(row.Loaded), strconv.Itoa(row.MemberCount), rowStatus(row),
		})
	}
	s.r.Table([]string{"", "Name", "Loaded", "Members", "Status"}, rows)
	return nil
}

func selectedRow(dm view.DisplayModel) view.NamespaceRow {
	for _, row := range dm.NamespaceRows {
		if row.Selected {
			return row
		}
	}
	return view.NamespaceRow{}
}

// rowStatus is the require state worth showing for a namespace row.
func rowStatus(row view.NamespaceRow) string {
	switch {
	case row.Require.State == view.StatePending, row.Require.State == view.StateError:
		return row.Require.String()
	case row.Stale:
		return "changed"
	default:
		return ""
	}
}

func (s *session) showMembers(ctx context.Context) error {
	dm, err := s.loop.Display(ctx)
	if err != nil {
		return err
	}
	if dm.SelectedNamespace == "" {
		s.r.Muted("No namespace selected.")
		return nil
	}

	title := fmt.Sprintf("%s (%d %s)", dm.SelectedNamespace, dm.MemberMatchCount, s.memberMode)
	if s.memberPattern != "" {
		title += fmt.Sprintf(" matching %q", s.memberPattern)
	}
	s.r.Header(2, title)
	if dm.MemberInvalidPattern {
		s.r.Warning(fmt.Sprintf("invalid member pattern %q", s.memberPattern))
		return nil
	}
	if len(dm.MemberRows) == 0 {
		if dm.RequireEnabled && !selectedRow(dm).Loaded {
			msg := fmt.Sprintf("%s is not loaded. Type require to load it.", dm.SelectedNamespace)
			if dm.RequireStatus.State == view.StateError {
				msg += fmt.Sprintf(" Last attempt: %s.", dm.RequireStatus)
			}
			s.r.Muted(msg)
		} else {
			s.r.Muted("No members match.")
		}
		return nil
	}

	rows := make([][]string, 0, len(dm.MemberRows))
	for _, row := range dm.MemberRows {
		line := ""
		if row.Line > 0 {
			line = strconv.Itoa(row.Line)
		}
		rows = append(rows, []string{marker(row.Selected), row.Name, row.Kinds.String(), line})
	}
	s.r.Table([]string{"", "Name", "Kinds", "Line"}, rows)
	return nil
}

func (s *session) showDoc(ctx context.Context) error {
	if err := s.settle(ctx); err != nil {
		return err
	}
	dm, err := s.loop.Display(ctx)
	if err != nil {
		return err
	}
	if dm.SelectedMember == "" {
		s.r.Muted("No member selected.")
		return nil
	}

	switch dm.DocStatus.State {
	case view.StateError:
		return fmt.Errorf("%s of %s: %s", dm.DocFacet, dm.SelectedMember, dm.DocStatus.Err)
	case view.StateOK:
		renderDoc(s.r, dm)
	default:
		s.r.Muted(fmt.Sprintf("%s of %s: %s", dm.DocFacet, dm.SelectedMember, dm.DocStatus))
	}
	return nil
}

func marker(selected bool) string {
	if selected {
		return "*"
	}
	return ""
}

func printBrowseHelp(w io.Writer) {
	help := `Commands:
  ls                    List namespaces
  nsmode <mode>         Namespace mode (loaded|unloaded|all)
  nsfilter [pattern]    Namespace pattern (empty clears)
  ns <namespace>        Select a namespace
  members               List members of the selected namespace
  mode <mode>           Member mode (publics|privates|interns|...|traced)
  filter [pattern]      Member pattern (empty clears)
  member <name>         Select a member and show its documentation (alias: m)
  facet <facet>         Documentation facet (doc|source|examples|comments|see-alsos|value)
  doc                   Show the documentation of the selected member
  require [namespace]   Load a namespace (default: selected)
  trace [member]        Toggle tracing of a function (default: selected)
  eval <expression>     Evaluate in the selected namespace
  where                 Source location of the selection
  copy                  Copy the selected member's qualified name
  paste [ns/name]       Select a member by qualified name (default: clipboard)
  history [n]           Recently viewed documentation
  refresh               Re-read the macros directory
  help                  Show this help
  quit                  Exit`
	_, _ = fmt.Fprintln(w, help)
}

// completer completes commands, namespace names and member names.
func (s *session) completer(ctx context.Context) *readline.PrefixCompleter {
	namespaces := func(string) []string {
		dm, err := s.loop.Display(ctx)
		if err != nil {
			return nil
		}
		names := make([]string, len(dm.NamespaceRows))
		for i, row := range dm.NamespaceRows {
			names[i] = row.Name
		}
		return names
	}
	members := func(string) []string {
		dm, err := s.loop.Display(ctx)
		if err != nil {
			return nil
		}
		names := make([]string, len(dm.MemberRows))
		for i, row := range dm.MemberRows {
			names[i] = row.Name
		}
		return names
	}

	return readline.NewPrefixCompleter(
		readline.PcItem("ls"),
		readline.PcItem("nsmode", labelItems(core.NamespaceModes())...),
		readline.PcItem("nsfilter"),
		readline.PcItem("ns", readline.PcItemDynamic(namespaces)),
		readline.PcItem("members"),
		readline.PcItem("mode", labelItems(core.MemberModes())...),
		readline.PcItem("filter"),
		readline.PcItem("member", readline.PcItemDynamic(members)),
		readline.PcItem("m", readline.PcItemDynamic(members)),
		readline.PcItem("facet", labelItems(core.DocFacets())...),
		readline.PcItem("doc"),
		readline.PcItem("require", readline.PcItemDynamic(namespaces)),
		readline.PcItem("trace", readline.PcItemDynamic(members)),
		readline.PcItem("eval"),
		readline.PcItem("where"),
		readline.PcItem("copy"),
		readline.PcItem("paste"),
		readline.PcItem("history"),
		readline.PcItem("refresh"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
}

func labelItems[T fmt.Stringer](values []T) []readline.PrefixCompleterInterface {
	items := make([]readline.PrefixCompleterInterface, len(values))
	for i, v := range values {
		items[i] = readline.PcItem(v.String())
	}
	return items
}
