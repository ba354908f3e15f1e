// Package builder implements the staged builder: a state machine that
// collects a record one field per turn, whichever surface the turns come
// from.
//
// A Builder is driven by a declarative list of stages.  Each successful
// SetValue stores one field and advances to the next stage; a rejected
// value leaves the builder untouched and re-issues the same prompt.  Once
// every stage has a value the builder is READY and Build returns the
// record.
package builder

import (
	"fmt"
	"strings"

	ferrors "flatctl/internal/errors"
	"flatctl/internal/protocol"
)

// Stage is one named field slot.
type Stage[T any] struct {
	Name   string
	Prompt string
	// Apply parses raw and stores it into draft.  It must not modify draft
	// when it returns an error.
	Apply func(raw string, draft *T) error
	// Current renders the draft's present value.  Stages with a Current
	// func show it in update prompts and keep it on an empty line.
	Current func(draft *T) string
}

// Builder walks a fixed list of stages.  It is not safe for concurrent
// use; the owning command serializes access.
type Builder[T any] struct {
	stages  []Stage[T]
	stage   int
	draft   T
	keep    bool
	onBuild func(*T)
}

// Option configures a Builder.
type Option[T any] func(*Builder[T])

// WithDraft seeds the draft.
func WithDraft[T any](draft T) Option[T] {
	return func(b *Builder[T]) { b.draft = draft }
}

// KeepCurrent makes every stage with a Current func accept an empty line
// as "keep the present value" and show that value in its prompt.
func KeepCurrent[T any]() Option[T] {
	return func(b *Builder[T]) { b.keep = true }
}

// OnBuild registers a hook that finalizes the copy returned by Build.
func OnBuild[T any](fn func(*T)) Option[T] {
	return func(b *Builder[T]) { b.onBuild = fn }
}

// New returns a builder positioned at the first stage.
func New[T any](stages []Stage[T], opts ...Option[T]) *Builder[T] {
	b := &Builder[T]{stages: stages}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Stage returns the index of the current stage.  It equals Len() once
// the builder is READY.
func (b *Builder[T]) Stage() int { return b.stage }

// Len returns the number of stages.
func (b *Builder[T]) Len() int { return len(b.stages) }

// Ready reports whether every stage has been filled.
func (b *Builder[T]) Ready() bool { return b.stage >= len(b.stages) }

// StageName returns the current stage's name, or "READY".
func (b *Builder[T]) StageName() string {
	if b.Ready() {
		return "READY"
	}
	return b.stages[b.stage].Name
}

// Draft returns a copy of the partially filled record.
func (b *Builder[T]) Draft() T { return b.draft }

// Prompt returns the text asking for the current stage's value, or ""
// when the builder is READY.
func (b *Builder[T]) Prompt() string {
	if b.Ready() {
		return ""
	}
	s := b.stages[b.stage]
	if b.keep && s.Current != nil {
		return fmt.Sprintf("%s [%s]: ", s.Prompt, s.Current(&b.draft))
	}
	return s.Prompt + ": "
}

// SetValue offers raw to the current stage.
//
// On success the value is stored, the stage advances and the response is
// SUCCESS with the next prompt (empty at READY).  On failure the state is
// unchanged and the response is INVALID_VALUE, or INVALID_ARGUMENT when
// the value referenced a record that could not be used, with the same
// prompt.  After READY the response is INVALID_STAGE.
func (b *Builder[T]) SetValue(raw string) protocol.Response {
	if b.Ready() {
		return protocol.Response{
			Kind:    protocol.InvalidStage,
			Hint:    protocol.HintError,
			Content: "all values have already been entered",
		}
	}

	s := b.stages[b.stage]
	raw = strings.TrimSpace(raw)
	if raw == "" && b.keep && s.Current != nil {
		b.stage++
		return b.success()
	}

	next := b.draft
	if err := s.Apply(raw, &next); err != nil {
		kind := protocol.InvalidValue
		if ferrors.Is(err, ferrors.ErrNotFound) || ferrors.Is(err, ferrors.ErrNotOwner) {
			kind = protocol.InvalidArgument
		}
		return protocol.Response{
			Kind:    kind,
			Hint:    protocol.HintError,
			Content: err.Error(),
			Prompt:  b.Prompt(),
		}
	}
	b.draft = next
	b.stage++
	return b.success()
}

func (b *Builder[T]) success() protocol.Response {
	return protocol.Response{
		Kind:   protocol.Success,
		Hint:   protocol.HintNone,
		Prompt: b.Prompt(),
	}
}

// Build returns the finished record.  It fails unless the builder is
// READY and never changes the builder's state.
func (b *Builder[T]) Build() (T, error) {
	if !b.Ready() {
		var zero T
		return zero, fmt.Errorf("builder at stage %q is not ready", b.StageName())
	}
	out := b.draft
	if b.onBuild != nil {
		b.onBuild(&out)
	}
	return out, nil
}
