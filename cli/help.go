package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

// Palette holds the styles used by the help renderer.
type Palette struct {
	Title   lipgloss.Style
	Section lipgloss.Style
	Name    lipgloss.Style
	Flag    lipgloss.Style
	Sub     lipgloss.Style
	Muted   lipgloss.Style
	Italic  lipgloss.Style
}

// DefaultPalette is used by every styled help page.
var DefaultPalette = &Palette{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
	Section: lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("214")),
	Name:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
	Flag:    lipgloss.NewStyle().Foreground(lipgloss.Color("13")),
	Sub:     lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
	Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	Italic:  lipgloss.NewStyle().Italic(true),
}

// HelpRow is one name/description line of a help section.
type HelpRow struct {
	Name        string
	Description string
}

// HelpSection is an extra titled table printed after the flags, such as
// the channel events the dev server accepts.
type HelpSection struct {
	Title string
	Rows  []HelpRow
}

var (
	sectionsMu sync.RWMutex
	sections   = make(map[*cobra.Command][]HelpSection)
)

// AddHelpSections attaches extra sections to cmd's help page.
func AddHelpSections(cmd *cobra.Command, extra ...HelpSection) {
	sectionsMu.Lock()
	sections[cmd] = append(sections[cmd], extra...)
	sectionsMu.Unlock()
}

func sectionsFor(cmd *cobra.Command) []HelpSection {
	sectionsMu.RLock()
	defer sectionsMu.RUnlock()
	return sections[cmd]
}

const (
	maxWidth = 60
	minWidth = 40
)

func helpWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < minWidth || width > maxWidth {
		return maxWidth
	}
	return width
}

// wrapText wraps each paragraph of text at width.
func wrapText(text string, width int) []string {
	var out []string
	for _, paragraph := range strings.Split(text, "\n") {
		if len(paragraph) <= width {
			out = append(out, paragraph)
			continue
		}
		line := ""
		for _, word := range strings.Fields(paragraph) {
			switch {
			case line == "":
				line = word
			case len(line)+1+len(word) <= width:
				line += " " + word
			default:
				out = append(out, line)
				line = word
			}
		}
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// SetStyledHelp applies the storybook styling to a command's help output.
func SetStyledHelp(cmd *cobra.Command) {
	cmd.SetHelpFunc(styledHelpFunc)
}

// ApplyStyledHelpRecursive styles cmd and all of its subcommands. Call it
// after every subcommand has been added.
func ApplyStyledHelpRecursive(cmd *cobra.Command) {
	cmd.SetHelpFunc(styledHelpFunc)
	// Errors are reported by the ErrorHandler; usage dumps only add noise.
	cmd.SetUsageFunc(func(*cobra.Command) error { return nil })
	for _, sub := range cmd.Commands() {
		ApplyStyledHelpRecursive(sub)
	}
}

// splitExamples separates a trailing "Examples:" block from a long
// description.
func splitExamples(long string) (string, string) {
	for _, marker := range []string{"\nExamples:\n", "\nExample:\n"} {
		if i := strings.Index(long, marker); i != -1 {
			return strings.TrimSpace(long[:i]), strings.TrimSpace(long[i+len(marker):])
		}
	}
	return long, ""
}

// helpPage renders one command's help.
type helpPage struct {
	w     io.Writer
	p     *Palette
	cmd   *cobra.Command
	width int
}

func styledHelpFunc(cmd *cobra.Command, _ []string) {
	h := &helpPage{w: cmd.OutOrStdout(), p: DefaultPalette, cmd: cmd, width: helpWidth() - 2}
	h.render()
}

func (h *helpPage) line(s string) { fmt.Fprintln(h.w, " "+s) }

func (h *helpPage) section(title string) {
	fmt.Fprintln(h.w)
	h.line(h.p.Section.Render(title))
}

// table prints rows with names padded to a common column.
func (h *helpPage) table(rows []HelpRow, style lipgloss.Style) {
	width := 0
	for _, r := range rows {
		width = max(width, len(r.Name))
	}
	for _, r := range rows {
		h.line(style.Render(r.Name) + strings.Repeat(" ", width-len(r.Name)) + "  " + r.Description)
	}
}

func (h *helpPage) render() {
	cmd := h.cmd
	h.line(h.p.Title.Render(strings.ToUpper(cmd.CommandPath())))

	description, examples := splitExamples(cmd.Long)
	if cmd.Short != "" {
		for _, l := range wrapText(cmd.Short, h.width) {
			h.line(h.p.Italic.Render(l))
		}
	}
	if description != "" && description != cmd.Short {
		fmt.Fprintln(h.w)
		for _, l := range wrapText(description, h.width) {
			h.line(l)
		}
	}

	if cmd.Runnable() || cmd.HasSubCommands() {
		h.section("USAGE")
		if cmd.Runnable() {
			h.line(cmd.UseLine())
		}
		if cmd.HasSubCommands() {
			h.line(cmd.CommandPath() + " [command]")
		}
	}

	if cmd.HasAvailableSubCommands() {
		var rows []HelpRow
		for _, sub := range cmd.Commands() {
			if sub.IsAvailableCommand() {
				rows = append(rows, HelpRow{sub.Name(), sub.Short})
			}
		}
		h.section("COMMANDS")
		h.table(rows, h.p.Name)
	}

	h.flags()

	if cmd.Example != "" {
		examples = cmd.Example
	}
	if examples != "" {
		h.section("EXAMPLES")
		h.examples(examples)
	}

	for _, s := range sectionsFor(cmd) {
		h.section(s.Title)
		h.table(s.Rows, h.p.Sub)
	}

	if cmd.HasSubCommands() {
		fmt.Fprintf(h.w, "\n Use \"%s [command] --help\" for more information.\n", cmd.CommandPath())
	}
}

// flags lists local flags in detail for leaf commands and inline for
// commands with subcommands.
func (h *helpPage) flags() {
	var visible []*pflag.Flag
	h.cmd.LocalFlags().VisitAll(func(f *pflag.Flag) {
		if !f.Hidden {
			visible = append(visible, f)
		}
	})
	if len(visible) == 0 {
		return
	}

	if h.cmd.HasAvailableSubCommands() {
		names := make([]string, 0, len(visible))
		for _, f := range visible {
			names = append(names, "--"+f.Name)
		}
		fmt.Fprintln(h.w)
		h.line(h.p.Muted.Render("Flags: " + strings.Join(names, ", ")))
		return
	}

	h.section("FLAGS")
	rows := make([]HelpRow, 0, len(visible))
	var choices [][]string
	for _, f := range visible {
		usage, opts := parseChoices(f.Usage)
		if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "[]" {
			usage += h.p.Muted.Render(" (default: " + f.DefValue + ")")
		}
		rows = append(rows, HelpRow{flagName(f), usage})
		choices = append(choices, opts)
	}
	width := 0
	for _, r := range rows {
		width = max(width, len(r.Name))
	}
	for i, r := range rows {
		h.line(h.p.Flag.Render(r.Name) + strings.Repeat(" ", width-len(r.Name)) + "  " + r.Description)
		for _, c := range choices[i] {
			h.line(strings.Repeat(" ", width+2) + h.p.Muted.Render("• "+c))
		}
	}
}

// examples prints example lines, muting comments and colouring the
// command, subcommand and flags of each invocation.
func (h *helpPage) examples(text string) {
	root := strings.Fields(h.cmd.CommandPath())[0]
	for _, raw := range strings.Split(text, "\n") {
		l := strings.TrimSpace(raw)
		switch {
		case l == "":
			fmt.Fprintln(h.w)
		case strings.HasPrefix(l, "#"):
			h.line(h.p.Muted.Render(l))
		default:
			parts := strings.Fields(l)
			for i, part := range parts {
				switch {
				case i == 0 && part == root:
					parts[i] = h.p.Sub.Render(part)
				case strings.HasPrefix(part, "-"):
					parts[i] = h.p.Flag.Render(part)
				case i == 1:
					parts[i] = h.p.Name.Render(part)
				}
			}
			h.line("  " + strings.Join(parts, " "))
		}
	}
}

func flagName(f *pflag.Flag) string {
	if f.Shorthand != "" {
		return fmt.Sprintf("-%s, --%s", f.Shorthand, f.Name)
	}
	return "    --" + f.Name
}

// parseChoices splits a usage string of the form "Label: a, b, c" into the
// label and its choices. Lists of fewer than three items stay inline.
func parseChoices(usage string) (string, []string) {
	colon := strings.Index(usage, ": ")
	if colon == -1 {
		return usage, nil
	}
	rest := usage[colon+2:]
	suffix := ""
	if i := strings.Index(rest, " ("); i != -1 {
		rest, suffix = rest[:i], rest[i:]
	}
	parts := strings.Split(rest, ", ")
	if len(parts) < 3 {
		return usage, nil
	}
	for i, p := range parts {
		parts[i] = strings.TrimSpace(strings.TrimPrefix(p, "or "))
	}
	return usage[:colon+1] + suffix, parts
}
