package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/suffix-labs/hns-signer/pkg/engine"
)

// pageWidth is the number of message characters shown at once.
const pageWidth = 4 * engine.DefaultPageWidth

// terminalConfirmer shows prompts the way the device does, a window over
// the message scrolled with < and >, and reads y/n answers.
type terminalConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

func newTerminalConfirmer(in io.Reader, out io.Writer) *terminalConfirmer {
	return &terminalConfirmer{in: bufio.NewReader(in), out: out}
}

func (c *terminalConfirmer) Confirm(p engine.Prompt) bool {
	fmt.Fprintf(c.out, "\n== %s ==\n", p.Header)
	pager := engine.NewPager(p.Message, pageWidth)
	for {
		c.show(pager)
		line, err := c.in.ReadString('\n')
		if err != nil && line == "" {
			return false
		}

		answer := strings.ToLower(strings.TrimSpace(line))
		switch answer {
		case "y", "yes":
			return true
		case "", "n", "no":
			return false
		}
		if strings.Trim(answer, "<>") != "" {
			return false
		}
		for _, ch := range answer {
			if ch == '<' {
				pager.Left()
			} else {
				pager.Right()
			}
		}
	}
}

func (c *terminalConfirmer) show(pager *engine.Pager) {
	left, right := " ", " "
	if pager.CanLeft() {
		left = "<"
	}
	if pager.CanRight() {
		right = ">"
	}
	fmt.Fprintf(c.out, "%s %s %s\n", left, pager.Window(), right)
	if pager.CanLeft() || pager.CanRight() {
		fmt.Fprint(c.out, "Approve? [y/N, < > to scroll] ")
	} else {
		fmt.Fprint(c.out, "Approve? [y/N] ")
	}
}
