// Package pipeline drives the ordered sequence of generation calls that turn
// finalized interview state into customer avatars and marketing statements,
// with per-stage progress, fallback between image backends and variant
// fan-out per implied audience gender.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/marketforge/marketforge/internal/docstore"
	"github.com/marketforge/marketforge/internal/gateway"
	"github.com/marketforge/marketforge/internal/session"
)

// DefaultStageTimeout bounds each stage's gateway calls. On expiry the stage
// is treated as failed, never hung; busy indicators are always cleared.
const DefaultStageTimeout = 15 * time.Second

// Deps holds the orchestrator's collaborators.
type Deps struct {
	Store    *session.Store
	Docs     docstore.Store // optional; artifacts persisted best-effort
	Primary  gateway.AvatarBackend
	Fallback gateway.AvatarBackend // optional degradation backend
	Writer   gateway.StatementWriter

	StageTimeout time.Duration
	OnStatus     func(stages []Stage) // progress callback for UI feedback
}

type stageDef struct {
	name string
	done func(session.State) bool
	run  func(ctx context.Context, state session.State) (string, error)
}

// Orchestrator runs the generation stages sequentially. Independent stages
// could be reordered, but the reference behavior runs them in declaration
// order with visible progress, and rate limits make sequential the safe
// choice.
type Orchestrator struct {
	deps Deps
	defs []stageDef

	mu     sync.Mutex
	stages []Stage
}

// New creates an orchestrator. Stage order: avatar, then statements.
func New(deps Deps) *Orchestrator {
	if deps.StageTimeout <= 0 {
		deps.StageTimeout = DefaultStageTimeout
	}
	o := &Orchestrator{deps: deps}
	o.defs = []stageDef{
		{
			name: StageAvatar,
			done: func(st session.State) bool { return st.Avatar != nil && len(st.Avatars) > 0 },
			run:  o.runAvatarStage,
		},
		{
			name: StageStatements,
			done: func(st session.State) bool { return st.Statements != nil },
			run:  o.runStatementsStage,
		},
	}
	o.resetStages()
	return o
}

// Stages returns a copy of the current per-stage progress.
func (o *Orchestrator) Stages() []Stage {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Stage, len(o.stages))
	copy(out, o.stages)
	return out
}

func (o *Orchestrator) resetStages() {
	o.mu.Lock()
	o.stages = make([]Stage, len(o.defs))
	for i, def := range o.defs {
		o.stages[i] = Stage{Name: def.name, Status: StagePending}
	}
	o.mu.Unlock()
}

func (o *Orchestrator) setStage(i int, status StageStatus, summary string, err error) {
	o.mu.Lock()
	o.stages[i].Status = status
	o.stages[i].Summary = summary
	o.stages[i].Err = err
	o.mu.Unlock()
	if o.deps.OnStatus != nil {
		o.deps.OnStatus(o.Stages())
	}
}

// Run executes all stages whose artifacts are missing, in order. When valid
// artifacts already exist for every stage, no gateway call is made and the
// run reports immediate success; re-invocation after a re-render is free.
//
// A stage failure stops the run without advancing. Calling Run again retries
// from the failed stage onward: upstream stages with intact artifacts are
// skipped, and no partial output of the failed attempt is consumed (failed
// stages store nothing).
func (o *Orchestrator) Run(ctx context.Context) error {
	o.resetStages()

	for i, def := range o.defs {
		state := o.deps.Store.State()

		if def.done(state) {
			o.setStage(i, StageCompleted, "already generated", nil)
			continue
		}

		o.setStage(i, StageActive, "", nil)

		stageCtx, cancel := context.WithTimeout(ctx, o.deps.StageTimeout)
		summary, err := def.run(stageCtx, state)
		cancel()

		if err != nil {
			o.setStage(i, StageError, "", err)
			return fmt.Errorf("stage %s failed: %w", def.name, err)
		}
		o.setStage(i, StageCompleted, summary, nil)
	}

	return nil
}

// runAvatarStage generates one avatar per implied audience category,
// sequentially to respect rate limits, and designates the first as primary.
func (o *Orchestrator) runAvatarStage(ctx context.Context, state session.State) (string, error) {
	genders := impliedGenders(state.Answers[session.AudienceQuestion])

	var avatars []*session.Avatar
	for _, gender := range genders {
		req := gateway.AvatarRequest{
			Answers:    state.Answers,
			CoreDesire: state.CoreDesire,
			SixS:       state.SixS,
			Gender:     gender,
			SessionID:  state.ID,
		}

		avatar, err := o.generateWithFallback(ctx, req)
		if err != nil {
			return "", err
		}
		if avatar.ID == "" {
			avatar.ID = docstore.GenerateID()
		}
		avatars = append(avatars, avatar)
	}

	o.deps.Store.SetAvatars(avatars)
	o.persistAvatars(ctx, avatars)

	return fmt.Sprintf("generated %d avatar(s): %s", len(avatars), strings.Join(genders, ", ")), nil
}

// generateWithFallback tries the primary image backend, and on a
// rate-limit-class failure degrades to the fallback backend exactly once.
// When both fail, the combined error names both backends.
func (o *Orchestrator) generateWithFallback(ctx context.Context, req gateway.AvatarRequest) (*session.Avatar, error) {
	avatar, err := o.deps.Primary.Generate(ctx, req)
	if err == nil {
		return avatar, nil
	}
	if o.deps.Fallback == nil || !errors.Is(err, gateway.ErrRateLimited) {
		return nil, err
	}

	log.Printf("Warning: %s rate limited, degrading to %s\n", o.deps.Primary.Name(), o.deps.Fallback.Name())
	avatar, fbErr := o.deps.Fallback.Generate(ctx, req)
	if fbErr != nil {
		return nil, fmt.Errorf("primary backend %s and fallback backend %s both failed: %w",
			o.deps.Primary.Name(), o.deps.Fallback.Name(), errors.Join(err, fbErr))
	}
	return avatar, nil
}

// runStatementsStage generates marketing statements from the primary avatar.
func (o *Orchestrator) runStatementsStage(ctx context.Context, state session.State) (string, error) {
	if state.Avatar == nil {
		return "", fmt.Errorf("statement generation requires a generated avatar")
	}

	statements, err := o.deps.Writer.Write(ctx, gateway.StatementRequest{
		Answers:    state.Answers,
		CoreDesire: state.CoreDesire,
		SixS:       state.SixS,
		Avatar:     state.Avatar,
	})
	if err != nil {
		return "", err
	}
	if statements.ID == "" {
		statements.ID = docstore.GenerateID()
	}
	if statements.SessionID == "" {
		statements.SessionID = state.ID
	}

	o.deps.Store.SetStatements(statements)
	o.persistStatements(ctx, statements)

	return fmt.Sprintf("generated %d statement(s)", len(statements.Items)), nil
}

// persistAvatars saves avatar artifacts best-effort; a remote failure never
// fails the stage, the artifacts already live in local state.
func (o *Orchestrator) persistAvatars(ctx context.Context, avatars []*session.Avatar) {
	if o.deps.Docs == nil {
		return
	}
	for _, avatar := range avatars {
		record, err := docstore.EncodeAvatar(avatar)
		if err != nil {
			log.Printf("Warning: failed to encode avatar artifact: %v\n", err)
			continue
		}
		if _, err := o.deps.Docs.SaveArtifact(ctx, record); err != nil {
			log.Printf("Warning: failed to persist avatar artifact: %v\n", err)
		}
	}
}

func (o *Orchestrator) persistStatements(ctx context.Context, statements *session.Statements) {
	if o.deps.Docs == nil {
		return
	}
	record, err := docstore.EncodeStatements(statements)
	if err != nil {
		log.Printf("Warning: failed to encode statements artifact: %v\n", err)
		return
	}
	if _, err := o.deps.Docs.SaveArtifact(ctx, record); err != nil {
		log.Printf("Warning: failed to persist statements artifact: %v\n", err)
	}
}

// impliedGenders derives the avatar categories from the audience answer.
// More than one implied category fans out to one avatar per category.
func impliedGenders(audience string) []string {
	male, female := false, false
	for _, token := range strings.FieldsFunc(strings.ToLower(audience), func(r rune) bool {
		return !('a' <= r && r <= 'z')
	}) {
		switch token {
		case "male", "males", "man", "men", "guy", "guys":
			male = true
		case "female", "females", "woman", "women", "lady", "ladies":
			female = true
		case "both", "everyone", "anyone", "all":
			male, female = true, true
		}
	}

	switch {
	case male && female:
		return []string{"male", "female"}
	case male:
		return []string{"male"}
	case female:
		return []string{"female"}
	default:
		return []string{"neutral"}
	}
}
