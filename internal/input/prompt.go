package input

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Prompter asks the user for a single line of text. ok is false when the
// user cancels.
type Prompter interface {
	Prompt(ctx context.Context, label string) (text string, ok bool, err error)
}

// LinePrompter prompts on a terminal. An empty line or end of input
// cancels.
type LinePrompter struct {
	In  io.Reader
	Out io.Writer
}

func (p LinePrompter) Prompt(ctx context.Context, label string) (string, bool, error) {
	if p.Out != nil {
		fmt.Fprintf(p.Out, "Enter input for %s: ", label)
	}

	type line struct {
		text string
		err  error
	}
	ch := make(chan line, 1)
	go func() {
		s, err := bufio.NewReader(p.In).ReadString('\n')
		ch <- line{text: s, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", false, ctx.Err()
	case l := <-ch:
		text := strings.TrimRight(l.text, "\r\n")
		if l.err != nil && l.err != io.EOF {
			return "", false, l.err
		}
		if strings.TrimSpace(text) == "" {
			return "", false, nil
		}
		return text, true, nil
	}
}

// NoPrompter always cancels. It is used when no interactive surface exists.
type NoPrompter struct{}

func (NoPrompter) Prompt(context.Context, string) (string, bool, error) { return "", false, nil }
