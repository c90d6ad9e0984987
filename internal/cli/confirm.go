package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dshills/sandboxctl/internal/transfer"
)

// promptConfirmer asks on the terminal before an import with warnings.
// Without a terminal it declines, so scripted imports need --yes.
type promptConfirmer struct {
	in         io.Reader
	out        io.Writer
	isTerminal func() bool
}

func (c *promptConfirmer) Confirm(ctx context.Context, p transfer.Prompt) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	fmt.Fprintln(c.out, "The imported configuration needs attention:")
	if p.CrossPlatform {
		fmt.Fprintf(c.out, "  - exported on %s, importing on %s\n", p.SourcePlatform, p.TargetPlatform)
	}
	for _, w := range p.Warnings {
		fmt.Fprintf(c.out, "  - [%s] %s: %s\n", w.Severity, w.Setting, w.Message)
	}

	if !c.isTerminal() {
		fmt.Fprintln(c.out, "Not a terminal; rerun with --yes to import anyway.")
		return false, nil
	}

	fmt.Fprint(c.out, "Import anyway? [y/N] ")
	line, err := bufio.NewReader(c.in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("reading confirmation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
