package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/ninelines/pybc/cmd/pycdis/disasm"
	"github.com/ninelines/pybc/compiler"
	"github.com/ninelines/pybc/config"
	"github.com/ninelines/pybc/internal/diag"
	"github.com/ninelines/pybc/object"

	"github.com/ninelines/pybc/cmd/pycdis/fixtures"
)

var browseTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#FAFAFA")).
	Background(lipgloss.Color("#7D56F4")).
	Padding(0, 1)

var browseHelpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#767676"))

var browseCmd = &cobra.Command{
	Use:   "browse [fixture]",
	Short: "Interactively browse a fixture's compiled instruction sequences",
	Long: `browse opens a read-only terminal viewer over a compiled unit's
instruction sequence, with its nested code objects (functions, classes,
comprehensions) reachable by drilling in, the way dr8co-kong's REPL
drives an interactive loop over source input — except there is no
source to type here, only a compiled tree to walk.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBrowse,
}

func init() {
	rootCmd.AddCommand(browseCmd)
}

// browseItem is one row in the instruction/child list: either a decoded
// instruction or a link down into a nested code object.
type browseItem struct {
	title    string
	desc     string
	child    *object.CodeObject // non-nil when this row descends into a child scope
}

func (i browseItem) Title() string       { return i.title }
func (i browseItem) Description() string { return i.desc }
func (i browseItem) FilterValue() string { return i.title }

// browseModel is a stack of frames, each frame a code object being
// viewed; Enter pushes a child frame, Esc/backspace pops one.
type browseModel struct {
	stack []*object.CodeObject
	list  list.Model
}

func framesFor(co *object.CodeObject) list.Model {
	var items []list.Item
	for _, ins := range disasm.Decode(co) {
		items = append(items, browseItem{
			title: fmt.Sprintf("%4d  %s", ins.Offset, ins.Name),
			desc:  fmt.Sprintf("arg=%d line=%d", ins.Arg, ins.Line),
		})
	}
	for _, child := range disasm.ChildCodes(co) {
		items = append(items, browseItem{
			title: "→ " + child.QualName,
			desc:  "nested code object; press enter to open",
			child: child,
		})
	}
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = disasm.Summary(co)
	l.SetShowStatusBar(false)
	return l
}

func newBrowseModel(root *object.CodeObject) browseModel {
	return browseModel{stack: []*object.CodeObject{root}, list: framesFor(root)}
}

func (m browseModel) Init() tea.Cmd { return nil }

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height-4)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "esc", "backspace":
			if len(m.stack) > 1 {
				m.stack = m.stack[:len(m.stack)-1]
				m.list = framesFor(m.stack[len(m.stack)-1])
			}
			return m, nil
		case "enter":
			if sel, ok := m.list.SelectedItem().(browseItem); ok && sel.child != nil {
				m.stack = append(m.stack, sel.child)
				m.list = framesFor(sel.child)
			}
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m browseModel) View() string {
	var b strings.Builder
	path := make([]string, len(m.stack))
	for i, co := range m.stack {
		path[i] = co.Name
	}
	b.WriteString(browseTitleStyle.Render(" pycdis browse: " + strings.Join(path, " › ") + " "))
	b.WriteString("\n")
	b.WriteString(m.list.View())
	b.WriteString("\n")
	b.WriteString(browseHelpStyle.Render("enter: open nested scope · esc: back · q: quit"))
	return b.String()
}

func runBrowse(_ *cobra.Command, args []string) error {
	name := "greet"
	if len(args) == 1 {
		name = args[0]
	}
	mod, ok := fixtures.Get(name)
	if !ok {
		return fmt.Errorf("unknown fixture %q (available: %s)", name, strings.Join(fixtures.Names(), ", "))
	}

	log := diag.New(os.Stderr)
	co, err := compiler.New(config.Default(), log).Compile(mod, "<"+name+">")
	if err != nil {
		return fmt.Errorf("compiling %q: %w", name, err)
	}

	p := tea.NewProgram(newBrowseModel(co), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
