package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Console prints the short human-facing lines a command shows next to its
// structured logs, such as the dev server address.
type Console struct {
	writer io.Writer
	styles ConsoleStyles
}

// ConsoleStyles holds the lipgloss styles of a Console.
type ConsoleStyles struct {
	Success lipgloss.Style
	Warning lipgloss.Style
	Key     lipgloss.Style
	Value   lipgloss.Style
	Path    lipgloss.Style
}

// DefaultConsoleStyles returns the default styles.
func DefaultConsoleStyles() ConsoleStyles {
	return ConsoleStyles{
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		Key:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Value:   lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true),
		Path:    lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Italic(true),
	}
}

// NewConsole creates a console writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{writer: w, styles: DefaultConsoleStyles()}
}

func (c *Console) Success(message string) {
	fmt.Fprintf(c.writer, "%s %s\n", c.styles.Success.Render("✓"), c.styles.Success.Render(message))
}

func (c *Console) Warn(message string) {
	fmt.Fprintf(c.writer, "%s %s\n", c.styles.Warning.Render("!"), c.styles.Warning.Render(message))
}

// Field prints an aligned key and value.
func (c *Console) Field(key string, value any) {
	fmt.Fprintf(c.writer, "  %s %s\n", c.styles.Key.Render(fmt.Sprintf("%-10s", key+":")), c.styles.Value.Render(fmt.Sprint(value)))
}

func (c *Console) Path(label, path string) {
	fmt.Fprintf(c.writer, "  %s %s\n", c.styles.Key.Render(fmt.Sprintf("%-10s", label+":")), c.styles.Path.Render(path))
}

func (c *Console) Divider() {
	fmt.Fprintln(c.writer, c.styles.Key.Render(strings.Repeat("─", 40)))
}
