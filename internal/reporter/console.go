package reporter

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Console prints an indented tree of groups and assertions.
type Console struct {
	mu     sync.Mutex
	w      io.Writer
	depth  int
	pass   func(a ...interface{}) string
	fail   func(a ...interface{}) string
	header func(a ...interface{}) string
}

// NewConsole creates a console reporter. Colors are used only when w is a terminal.
func NewConsole(w io.Writer) *Console {
	c := &Console{w: w}
	plain := fmt.Sprint
	c.pass, c.fail, c.header = plain, plain, plain
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) && !color.NoColor {
		c.pass = color.New(color.FgGreen).SprintFunc()
		c.fail = color.New(color.FgRed).SprintFunc()
		c.header = color.New(color.Bold).SprintFunc()
	}
	return c
}

// BeginGroup implements Reporter.
func (c *Console) BeginGroup(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "%s%s\n", c.indent(), c.header(name))
	c.depth++
}

// ReportAssertion implements Reporter.
func (c *Console) ReportAssertion(name string, passed bool, detail string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if passed {
		fmt.Fprintf(c.w, "%s%s %s\n", c.indent(), c.pass("✓"), name)
		return
	}
	if detail == "" {
		fmt.Fprintf(c.w, "%s%s %s\n", c.indent(), c.fail("✗"), name)
		return
	}
	fmt.Fprintf(c.w, "%s%s %s: %s\n", c.indent(), c.fail("✗"), name, detail)
}

// EndGroup implements Reporter.
func (c *Console) EndGroup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.depth > 0 {
		c.depth--
	}
}

func (c *Console) indent() string {
	return strings.Repeat("  ", c.depth)
}
