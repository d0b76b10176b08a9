// Package pipeline sequences the four stages: research, scripting,
// approval, synthesis. Every stage output is written to the run
// directory as JSON and mirrored into the run store, so a run can be
// parked at the approval gate and resumed in another process.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shortreel/internal/approval"
	"shortreel/internal/broker"
	"shortreel/internal/config"
	"shortreel/internal/llm"
	"shortreel/internal/publish"
	"shortreel/internal/research"
	"shortreel/internal/script"
	"shortreel/internal/store"
	"shortreel/internal/synth"
	"shortreel/internal/types"
)

// ErrAwaitingApproval is returned by Run when the pipeline parks a run
// at the approval gate instead of reviewing interactively.
var ErrAwaitingApproval = errors.New("run parked awaiting approval")

// Pipeline drives one topic through the stages.
type Pipeline struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
}

// New creates a Pipeline. Stage clients are built when their stage
// runs, so a resume never needs the research-side credentials.
func New(cfg *config.Config, logger *zap.Logger, st *store.Store) *Pipeline {
	return &Pipeline{cfg: cfg, logger: logger.Named("pipeline"), store: st}
}

// Run executes research and scripting for the topic, then parks the
// run at the approval gate. In interactive mode the gate is reviewed
// in-process and, when approved, synthesis follows immediately;
// otherwise Run returns ErrAwaitingApproval and the reviewer picks the
// run up later with approve/resume.
func (p *Pipeline) Run(ctx context.Context, topic string) (*store.Run, error) {
	runID := uuid.NewString()[:8]
	runDir := filepath.Join(p.cfg.Paths.Output, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}

	run, err := p.store.Create(ctx, runID, topic, runDir)
	if err != nil {
		return nil, err
	}
	p.logger.Info("pipeline starting",
		zap.String("run_id", runID), zap.String("topic", topic), zap.String("run_dir", runDir))

	state := &types.RunState{
		RunID:     runID,
		Topic:     topic,
		StartedAt: time.Now().UTC().Format(time.RFC3339),
	}
	defer p.saveState(state, runDir)

	// stage 1: research
	doc, err := p.runResearch(ctx, topic)
	if err != nil {
		return run, p.fail(ctx, run.ID, state, fmt.Errorf("research: %w", err))
	}
	state.Research = doc
	saveJSON(p.logger, filepath.Join(runDir, "research.json"), doc)

	// stage 2: scripting
	if err := p.store.Transition(ctx, run.ID, store.StatusScripting); err != nil {
		return run, err
	}
	scr, err := p.runScripting(ctx, doc)
	if err != nil {
		return run, p.fail(ctx, run.ID, state, fmt.Errorf("scripting: %w", err))
	}
	state.Script = scr
	saveJSON(p.logger, filepath.Join(runDir, "script.json"), scr)

	// stage 3: approval gate
	gate := approval.New(p.logger, p.store)
	if err := gate.Park(ctx, run.ID, scr); err != nil {
		return run, err
	}

	if !p.cfg.Approval.Interactive {
		p.logger.Info("run awaiting approval",
			zap.String("run_id", run.ID),
			zap.String("hint", "shortreel approve "+run.ID+" && shortreel resume "+run.ID))
		return run, ErrAwaitingApproval
	}

	parked, err := p.store.GetByID(ctx, run.ID)
	if err != nil {
		return run, err
	}
	approved, err := gate.Decide(ctx, parked)
	if err != nil {
		if errors.Is(err, approval.ErrRejected) {
			state.Error = "rejected at approval gate"
		}
		return run, err
	}
	state.Script = approved
	saveJSON(p.logger, filepath.Join(runDir, "script.json"), approved)

	// stage 4: synthesis
	if err := p.synthesize(ctx, run.ID, runDir, approved, doc.ImageURLs, state); err != nil {
		return run, p.fail(ctx, run.ID, state, err)
	}

	state.CompletedAt = time.Now().UTC().Format(time.RFC3339)
	return p.store.GetByID(ctx, run.ID)
}

// Resume continues an approved run into synthesis.
func (p *Pipeline) Resume(ctx context.Context, runID string) error {
	run, err := p.store.GetByID(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status != store.StatusApproved {
		return fmt.Errorf("run %s is %s, expected %s", runID, run.Status, store.StatusApproved)
	}
	if run.Script == nil {
		return fmt.Errorf("run %s has no stored script", runID)
	}

	state := loadState(run.RunDir)
	state.RunID = runID
	state.Topic = run.Topic
	state.Script = run.Script
	defer p.saveState(state, run.RunDir)

	var imageURLs []string
	if state.Research != nil {
		imageURLs = state.Research.ImageURLs
	}

	if err := p.synthesize(ctx, runID, run.RunDir, run.Script, imageURLs, state); err != nil {
		return p.fail(ctx, runID, state, err)
	}
	state.CompletedAt = time.Now().UTC().Format(time.RFC3339)
	return nil
}

func (p *Pipeline) runResearch(ctx context.Context, topic string) (*types.ResearchDoc, error) {
	bk, err := broker.New(p.cfg.Broker.BaseURL)
	if err != nil {
		return nil, err
	}
	lm, err := llm.New()
	if err != nil {
		return nil, err
	}
	return research.New(p.cfg, p.logger, bk, lm).Run(ctx, topic)
}

func (p *Pipeline) runScripting(ctx context.Context, doc *types.ResearchDoc) (*types.Script, error) {
	lm, err := llm.New()
	if err != nil {
		return nil, err
	}
	return script.New(p.cfg, p.logger, lm).Run(ctx, doc)
}

// synthesize runs stage four: reference assets, narration audio, the
// render job, and the optional publish step.
func (p *Pipeline) synthesize(ctx context.Context, runID, runDir string, scr *types.Script, imageURLs []string, state *types.RunState) error {
	if err := p.store.Transition(ctx, runID, store.StatusSynthesizing); err != nil {
		return err
	}

	synth.DownloadAssets(ctx, p.logger, imageURLs,
		filepath.Join(runDir, "assets"), p.cfg.Video.DownloadWorkers)

	audioGen, err := synth.NewAudioGenerator(p.cfg, p.logger)
	if err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	audioFile, err := audioGen.Run(ctx, scr, filepath.Join(runDir, "audio"))
	if err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	state.AudioFile = audioFile
	saveJSON(p.logger, filepath.Join(runDir, "script.json"), scr)

	renderer, err := synth.NewRenderer(p.cfg, p.logger)
	if err != nil {
		return fmt.Errorf("video: %w", err)
	}
	result, err := renderer.Run(ctx, scr, audioFile, runDir)
	if err != nil {
		return fmt.Errorf("video: %w", err)
	}
	state.Render = result

	if err := p.store.SetVideoPath(ctx, runID, result.VideoPath); err != nil {
		return err
	}

	if p.cfg.Publish.Enabled {
		videoID, videoURL, err := publish.New(p.cfg, p.logger).Run(ctx, result.VideoPath, scr)
		if err != nil {
			// the video is safe on disk; publishing is best-effort
			p.logger.Warn("publish failed", zap.Error(err))
		} else {
			state.PublishedID = videoID
			state.PublishedAt = time.Now().UTC().Format(time.RFC3339)
			p.logger.Info("published", zap.String("url", videoURL))
		}
	}

	if err := p.store.Transition(ctx, runID, store.StatusCompleted); err != nil {
		return err
	}
	p.logger.Info("pipeline complete",
		zap.String("run_id", runID), zap.String("video", result.VideoPath))
	return nil
}

func (p *Pipeline) fail(ctx context.Context, runID string, state *types.RunState, err error) error {
	state.Error = err.Error()
	if storeErr := p.store.Fail(ctx, runID, err.Error()); storeErr != nil {
		p.logger.Warn("could not mark run failed", zap.Error(storeErr))
	}
	return err
}

func (p *Pipeline) saveState(state *types.RunState, runDir string) {
	saveJSON(p.logger, filepath.Join(runDir, "state.json"), state)
}

func loadState(runDir string) *types.RunState {
	state := &types.RunState{}
	data, err := os.ReadFile(filepath.Join(runDir, "state.json"))
	if err != nil {
		return state
	}
	_ = json.Unmarshal(data, state)
	return state
}

func saveJSON(logger *zap.Logger, path string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logger.Warn("could not marshal artifact", zap.String("path", path), zap.Error(err))
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		logger.Warn("could not save artifact", zap.String("path", path), zap.Error(err))
	}
}
