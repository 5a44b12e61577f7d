package sink

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/gookit/color"
)

// ConsolePresenter prints generic alerts on a terminal.
type ConsolePresenter struct {
	mu      sync.Mutex
	out     io.Writer
	colours bool
}

func NewConsolePresenter(out io.Writer, colours bool) *ConsolePresenter {
	return &ConsolePresenter{out: out, colours: colours}
}

func (p *ConsolePresenter) Present(_ context.Context, title, body string) error {
	header := fmt.Sprintf("[%s]", title)
	if p.colours {
		header = color.New(color.FgCyan, color.OpBold).Render(header)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintf(p.out, "%s %s\n", header, body)
	return err
}
