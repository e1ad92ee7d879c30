package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pe200012/llmq-horizon/internal/config"
	"github.com/pe200012/llmq-horizon/internal/observability"
	"github.com/pe200012/llmq-horizon/internal/skills"
	"github.com/pe200012/llmq-horizon/internal/tools"
	"github.com/pe200012/llmq-horizon/pkg/models"
)

// MaxIterations bounds the invoke/execute loop within one turn.
const MaxIterations = 10

// Pipeline drives one turn against the model: context assembly, tool
// resolution, the invoke/execute loop, and final-message interpretation.
// It holds no per-thread state and is safe for concurrent use.
type Pipeline struct {
	provider Provider
	skills   *skills.Registry
	resolver *tools.Resolver

	systemPrompt string
	qaPairs      []config.QAPair
	maxTokens    int
	historyCap   int

	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewPipeline assembles a turn pipeline. metrics may be nil.
func NewPipeline(
	provider Provider,
	skillReg *skills.Registry,
	resolver *tools.Resolver,
	llm config.LLMConfig,
	historyCap int,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Pipeline {
	return &Pipeline{
		provider:     provider,
		skills:       skillReg,
		resolver:     resolver,
		systemPrompt: llm.SystemPrompt,
		qaPairs:      llm.QAPairs,
		maxTokens:    llm.MaxTokens,
		historyCap:   historyCap,
		logger:       logger,
		metrics:      metrics,
	}
}

// TurnInput is everything a single turn needs.
type TurnInput struct {
	ThreadID string

	// Skills is the conversation's skill state; the skill_setup tool
	// mutates it during the turn.
	Skills tools.SkillSession

	// History is the prior transcript, oldest first.
	History []*models.Message

	// UserMessage is the new inbound message.
	UserMessage *models.Message

	// ActiveSkills overrides the conversation's active set when non-nil.
	ActiveSkills []string
}

// TurnOutput is what a turn produced.
type TurnOutput struct {
	// Messages are the new messages this turn appended, the user message
	// included. Empty when trimming short-circuited the turn.
	Messages []*models.Message

	// Final is the last message, nil on short-circuit.
	Final *models.Message
}

// Run executes one turn. A returned error means the turn failed as a whole
// (model or aborting-tool failure); recoverable tool errors surface as
// error-bearing tool results inside the transcript instead.
func (p *Pipeline) Run(ctx context.Context, in *TurnInput) (*TurnOutput, error) {
	active := in.ActiveSkills
	if active == nil && in.Skills != nil {
		active = in.Skills.ActiveSkills()
	}

	// Keyword matches activate skills for this turn only; persistence
	// requires the model to call skill_setup.
	turnActive := active
	if in.UserMessage != nil {
		for _, name := range p.skills.MatchKeywords(in.UserMessage.Content) {
			if !contains(turnActive, name) {
				turnActive = append(turnActive, name)
				p.logger.Debug("skill auto-activated",
					"thread_id", in.ThreadID, "skill", name)
			}
		}
	}

	transcript := make([]*models.Message, 0, len(in.History)+1)
	transcript = append(transcript, in.History...)
	if in.UserMessage != nil {
		transcript = append(transcript, in.UserMessage)
	}
	trimmed := TrimMessages(transcript, p.historyCap)
	if trimmed == nil {
		return &TurnOutput{}, nil
	}

	msgs := p.fewShot()
	msgs = append(msgs, trimmed...)

	bound := p.resolver.Resolve(turnActive)
	system := p.buildSystem(turnActive)

	ctx = tools.WithThreadID(ctx, in.ThreadID)
	if in.Skills != nil {
		ctx = tools.WithSkillSession(ctx, in.Skills)
	}

	var produced []*models.Message
	if in.UserMessage != nil {
		produced = append(produced, in.UserMessage)
	}

	for i := 0; i < MaxIterations; i++ {
		reply, err := p.invoke(ctx, &CompletionRequest{
			System:    system,
			Messages:  msgs,
			Tools:     bound,
			MaxTokens: p.maxTokens,
		})
		if err != nil {
			return nil, err
		}

		msgs = append(msgs, reply)
		produced = append(produced, reply)

		calls := executableCalls(reply)
		if len(calls) == 0 {
			return &TurnOutput{Messages: produced, Final: reply}, nil
		}

		toolMsg, err := p.executeCalls(ctx, in.ThreadID, calls)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, toolMsg)
		produced = append(produced, toolMsg)
	}

	p.logger.Warn("turn hit iteration cap", "thread_id", in.ThreadID)
	final := produced[len(produced)-1]
	return &TurnOutput{Messages: produced, Final: final}, nil
}

func (p *Pipeline) invoke(ctx context.Context, req *CompletionRequest) (*models.Message, error) {
	start := time.Now()
	resp, err := p.provider.Invoke(ctx, req)
	elapsed := time.Since(start)

	if p.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		p.metrics.LLMRequestCounter.WithLabelValues(p.provider.Name(), p.provider.Model(), status).Inc()
		p.metrics.LLMRequestDuration.WithLabelValues(p.provider.Name(), p.provider.Model()).Observe(elapsed.Seconds())
	}
	if err != nil {
		return nil, fmt.Errorf("model invocation: %w", err)
	}
	return resp.Message, nil
}

// executeCalls runs every tool call through the full registry, so a call
// bound under an earlier turn's skill set still resolves. A non-nil error
// from a tool aborts the turn; ordinary failures become error results in
// the tool message.
func (p *Pipeline) executeCalls(ctx context.Context, threadID string, calls []models.ToolCall) (*models.Message, error) {
	results := make([]models.ToolResult, 0, len(calls))
	for _, call := range calls {
		start := time.Now()
		res, err := p.resolver.Execute(ctx, call.Name, call.Input)
		elapsed := time.Since(start)

		status := "success"
		if err != nil || (res != nil && res.IsError) {
			status = "error"
		}
		if p.metrics != nil {
			p.metrics.ToolExecutionCounter.WithLabelValues(call.Name, status).Inc()
			p.metrics.ToolExecutionDuration.WithLabelValues(call.Name).Observe(elapsed.Seconds())
		}
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", call.Name, err)
		}

		p.logger.Debug("tool executed",
			"thread_id", threadID, "tool", call.Name,
			"status", status, "elapsed", elapsed.Round(time.Millisecond))
		results = append(results, models.ToolResult{
			ToolCallID: call.ID,
			Name:       call.Name,
			Content:    res.Content,
			IsError:    res.IsError,
		})
	}

	return &models.Message{
		ID:          uuid.NewString(),
		ThreadID:    threadID,
		Role:        models.RoleTool,
		ToolResults: results,
		CreatedAt:   time.Now(),
	}, nil
}

// buildSystem assembles the system prompt: base prompt, skill catalog, and
// the knowledge blocks of the active skills.
func (p *Pipeline) buildSystem(active []string) string {
	var b strings.Builder
	b.WriteString(p.systemPrompt)

	if p.skills.Len() > 0 {
		b.WriteString("\n\n## Skills\n")
		b.WriteString("Use the skill_setup tool to enable a skill before relying on it.\n")
		b.WriteString(p.skills.Catalog(active))
	}
	if knowledge := p.skills.ContentFor(active); knowledge != "" {
		b.WriteString("\n\n")
		b.WriteString(knowledge)
	}
	return b.String()
}

func (p *Pipeline) fewShot() []*models.Message {
	msgs := make([]*models.Message, 0, len(p.qaPairs)*2)
	for _, pair := range p.qaPairs {
		msgs = append(msgs,
			&models.Message{Role: models.RoleUser, Content: pair.Question},
			&models.Message{Role: models.RoleAssistant, Content: pair.Answer},
		)
	}
	return msgs
}

func executableCalls(msg *models.Message) []models.ToolCall {
	var out []models.ToolCall
	for _, call := range msg.ToolCalls {
		if !call.Invalid {
			out = append(out, call)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
