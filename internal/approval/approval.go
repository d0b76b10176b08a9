// Package approval implements the human-in-the-loop gate between
// scripting and synthesis. A run parks in the store as
// awaiting_approval; a reviewer approves, rejects, or edits the script
// either interactively or later through the CLI.
package approval

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"shortreel/internal/store"
	"shortreel/internal/types"

	"go.uber.org/zap"
)

// ErrRejected is returned when the reviewer rejects the script.
var ErrRejected = errors.New("script rejected")

// Gate parks runs for review and drives interactive decisions.
type Gate struct {
	logger *zap.Logger
	store  *store.Store

	// overridable for tests
	in  io.Reader
	out io.Writer
}

// New creates a Gate reading decisions from stdin.
func New(logger *zap.Logger, st *store.Store) *Gate {
	return &Gate{
		logger: logger.Named("approval"),
		store:  st,
		in:     os.Stdin,
		out:    os.Stdout,
	}
}

// NewWithIO creates a Gate with explicit input and output streams.
func NewWithIO(logger *zap.Logger, st *store.Store, in io.Reader, out io.Writer) *Gate {
	g := New(logger, st)
	g.in = in
	g.out = out
	return g
}

// Park stores the script and marks the run awaiting approval.
func (g *Gate) Park(ctx context.Context, runID string, script *types.Script) error {
	if err := g.store.SetScript(ctx, runID, script); err != nil {
		return err
	}
	if err := g.store.Transition(ctx, runID, store.StatusAwaitingApproval); err != nil {
		return err
	}
	g.logger.Info("run parked for approval", zap.String("run_id", runID))
	return nil
}

// Decide runs the interactive review loop on a parked run. It returns
// the approved script (possibly edited), or ErrRejected. An edited
// script replaces the stored one and re-enters the gate.
func (g *Gate) Decide(ctx context.Context, run *store.Run) (*types.Script, error) {
	if run.Script == nil {
		return nil, fmt.Errorf("run %s has no script to review", run.ID)
	}

	script := run.Script
	reader := bufio.NewReader(g.in)

	for {
		g.printScript(script)
		fmt.Fprint(g.out, "\napprove / reject / edit? [a/r/e]: ")

		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return nil, fmt.Errorf("read decision: %w", err)
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "a", "approve":
			if err := g.store.Transition(ctx, run.ID, store.StatusApproved); err != nil {
				return nil, err
			}
			g.logger.Info("script approved", zap.String("run_id", run.ID))
			return script, nil

		case "r", "reject":
			fmt.Fprint(g.out, "reason: ")
			reason, _ := reader.ReadString('\n')
			if err := g.store.Reject(ctx, run.ID, strings.TrimSpace(reason)); err != nil {
				return nil, err
			}
			g.logger.Info("script rejected", zap.String("run_id", run.ID))
			return nil, ErrRejected

		case "e", "edit":
			edited, err := g.editScript(run, script)
			if err != nil {
				fmt.Fprintf(g.out, "edit failed: %v\n", err)
				continue
			}
			// re-park and re-enter the gate with the edited script
			if err := g.Park(ctx, run.ID, edited); err != nil {
				return nil, err
			}
			script = edited

		default:
			fmt.Fprintln(g.out, "please answer a, r or e")
		}
	}
}

// editScript round-trips the script JSON through $EDITOR.
func (g *Gate) editScript(run *store.Run, script *types.Script) (*types.Script, error) {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}

	path := filepath.Join(run.RunDir, "script_edit.json")
	data, err := json.MarshalIndent(script, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, err
	}

	cmd := exec.Command(editor, path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("run %s: %w", editor, err)
	}

	edited, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out types.Script
	if err := json.Unmarshal(edited, &out); err != nil {
		return nil, fmt.Errorf("edited script is not valid JSON: %w", err)
	}
	return &out, nil
}

func (g *Gate) printScript(script *types.Script) {
	fmt.Fprintf(g.out, "\n══ %s ══\n", script.Title)
	fmt.Fprintf(g.out, "hook: %s\n\n", script.Hook)
	for _, s := range script.Scenes {
		fmt.Fprintf(g.out, "[%02d] %5.1fs  %s\n", s.Index, s.AudioDurationSec, s.Narration)
		if s.VisualDirection != "" {
			fmt.Fprintf(g.out, "      visual: %s\n", s.VisualDirection)
		}
	}
	fmt.Fprintf(g.out, "\n~%.0f seconds total\n", script.TotalSec)
}
