package picker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// Fzf runs the fzf binary as the picker.
type Fzf struct {
	// Bin is the fzf executable.
	Bin string
	// Stderr receives fzf's interface. Nil uses the process stderr.
	Stderr io.Writer
}

// Pick feeds the candidates to fzf on stdin and returns its selection.
// Candidates are written from a separate goroutine so a full pipe never
// blocks fzf from starting; stdin is closed once the last line is written.
func (f *Fzf) Pick(ctx context.Context, p Prompt) (string, error) {
	args := []string{"--header", p.Header}
	for _, b := range p.Binds {
		args = append(args, "--bind", b)
	}

	cmd := exec.CommandContext(ctx, f.Bin, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = f.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return "", fmt.Errorf("fzf stdin: %w", err)
	}

	slog.Debug("$ "+f.Bin, "args", args, "items", len(p.Items))
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return "", fmt.Errorf("failed to spawn fzf: %w", err)
	}

	written := make(chan error, 1)
	go func() {
		defer stdin.Close()
		_, err := io.WriteString(stdin, strings.Join(p.Items, "\n"))
		written <- err
	}()

	waitErr := cmd.Wait()
	if err := <-written; err != nil && waitErr == nil {
		// fzf can exit as soon as a selection is made; a broken pipe after
		// that is expected.
		slog.Debug("fzf stdin write interrupted", "err", err)
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			// 1: no match, 130: interrupted with Esc or CTRL-C.
			switch exitErr.ExitCode() {
			case 1, 130:
				return "", ErrAborted
			}
		}
		return "", fmt.Errorf("fzf error: %w", waitErr)
	}

	selection := strings.TrimSpace(stdout.String())
	if selection == "" {
		return "", ErrAborted
	}
	return selection, nil
}
