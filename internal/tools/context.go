package tools

import "context"

// SkillSession is the per-conversation skill state a tool may mutate.
// Implemented by sessions.Session.
type SkillSession interface {
	// LoadSkill activates a skill; reports false if it was already active.
	LoadSkill(name string) bool

	// UnloadSkill deactivates a skill; reports false if it was not active.
	UnloadSkill(name string) bool

	// ActiveSkills returns the currently active skill names in order.
	ActiveSkills() []string
}

type ctxKey int

const (
	threadIDKey ctxKey = iota
	skillSessionKey
)

// WithThreadID tags a context with the conversation thread id so tools can
// key per-thread state.
func WithThreadID(ctx context.Context, threadID string) context.Context {
	return context.WithValue(ctx, threadIDKey, threadID)
}

// ThreadIDFrom returns the thread id carried by the context, if any.
func ThreadIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(threadIDKey).(string)
	return id
}

// WithSkillSession attaches the active conversation's skill state for the
// duration of a turn.
func WithSkillSession(ctx context.Context, s SkillSession) context.Context {
	return context.WithValue(ctx, skillSessionKey, s)
}

// SkillSessionFrom returns the skill state carried by the context, if any.
func SkillSessionFrom(ctx context.Context) SkillSession {
	s, _ := ctx.Value(skillSessionKey).(SkillSession)
	return s
}
