// Package chat orchestrates one conversational turn: safety screening,
// intent extraction via function calling, context resolution, the
// catalog query gate, and reply generation. All session mutations a
// turn produced are committed together at the end; a turn that fails
// midway leaves the session untouched.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bensky103/SalaDBot/internal/intent"
	"github.com/bensky103/SalaDBot/internal/llm"
	"github.com/bensky103/SalaDBot/internal/messages"
	"github.com/bensky103/SalaDBot/internal/prompts"
	"github.com/bensky103/SalaDBot/internal/query"
	"github.com/bensky103/SalaDBot/internal/resolver"
	"github.com/bensky103/SalaDBot/internal/safety"
	"github.com/bensky103/SalaDBot/internal/session"
)

// Config wires a Service's collaborators and tuning.
type Config struct {
	LLM      llm.Client
	Model    string
	Sessions *session.Store
	Resolver *resolver.Resolver
	Gate     *query.Gate
	Filter   *safety.Filter

	OrderURL string
	// HistoryWindow bounds how many recent messages enter the model
	// context. Counted in messages, two per exchange.
	HistoryWindow int
	// CategoryTTL bounds how long a browsed category feeds the system
	// prompt context line.
	CategoryTTL time.Duration

	Logger *slog.Logger
}

// Service processes user turns.
type Service struct {
	llm      llm.Client
	model    string
	sessions *session.Store
	resolver *resolver.Resolver
	gate     *query.Gate
	filter   *safety.Filter

	orderURL      string
	historyWindow int
	categoryTTL   time.Duration

	clock  func() time.Time
	logger *slog.Logger
}

// New creates a chat service.
func New(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 40
	}
	return &Service{
		llm:           cfg.LLM,
		model:         cfg.Model,
		sessions:      cfg.Sessions,
		resolver:      cfg.Resolver,
		gate:          cfg.Gate,
		filter:        cfg.Filter,
		orderURL:      cfg.OrderURL,
		historyWindow: cfg.HistoryWindow,
		categoryTTL:   cfg.CategoryTTL,
		clock:         time.Now,
		logger:        cfg.Logger,
	}
}

// Process handles one inbound message and returns the reply text.
//
// Flagged hostile input is refused before any session or catalog access
// — the refusal does not enter history and does not touch browsing
// state. Collaborator failures (model, catalog) return an error and
// leave the session exactly as it was; the transport layer decides what
// apology to send.
func (s *Service) Process(ctx context.Context, userID, raw string) (string, error) {
	reqID := uuid.NewString()
	log := s.logger.With("request_id", reqID, "user", userID)

	if strings.TrimSpace(raw) == "" {
		return messages.Empty(), nil
	}

	if s.filter.Detect(raw) {
		log.Warn("hostile input refused", "length", len([]rune(raw)))
		return messages.SafetyRefusal(), nil
	}
	text := s.filter.Sanitize(raw)

	s.sessions.Touch(userID)
	lastCategory, _ := s.sessions.LastCategory(userID, s.categoryTTL)

	msgs := s.buildMessages(userID, lastCategory, text)

	resp, err := s.llm.Chat(ctx, s.model, msgs, prompts.Tools())
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	assistant := resp.Message

	commit := session.TurnCommit{UserText: text}
	var reply string

	switch {
	case len(assistant.ToolCalls) == 0:
		reply = assistant.Content
		log.Debug("direct reply, no tools")

	case len(assistant.ToolCalls) == 1:
		reply, err = s.handleSingleTool(ctx, log, msgs, assistant, userID, &commit)

	default:
		reply, err = s.handleMultipleTools(ctx, log, msgs, assistant, userID, lastCategory, text, &commit)
	}
	if err != nil {
		return "", err
	}

	commit.AssistantText = reply
	s.sessions.CommitTurn(userID, commit)
	return reply, nil
}

// buildMessages assembles system prompt, windowed history, and the new
// user message.
func (s *Service) buildMessages(userID, lastCategory, text string) []llm.Message {
	msgs := []llm.Message{{Role: "system", Content: prompts.System(s.clock(), lastCategory)}}

	history := s.sessions.History(userID)
	// Two messages per exchange; keep the most recent window.
	if keep := s.historyWindow / 2; len(history) > keep {
		history = history[len(history)-keep:]
	}
	for _, ex := range history {
		msgs = append(msgs,
			llm.Message{Role: "user", Content: ex.UserText},
			llm.Message{Role: "assistant", Content: ex.AssistantText},
		)
	}

	return append(msgs, llm.Message{Role: "user", Content: text})
}

// handleSingleTool dispatches the turn's only tool call. Static intents
// are answered from fixed texts without a second model call.
func (s *Service) handleSingleTool(ctx context.Context, log *slog.Logger, msgs []llm.Message, assistant llm.Message, userID string, commit *session.TurnCommit) (string, error) {
	tc := assistant.ToolCalls[0]
	args, err := tc.Args()
	if err != nil {
		return "", err
	}
	it, err := intent.FromToolCall(tc.Function.Name, args)
	if err != nil {
		return "", err
	}
	log.Info("tool call", "tool", tc.Function.Name, "intent", it.Kind.String())

	switch it.Kind {
	case intent.KindGreeting:
		commit.ClearCategory = true
		commit.ResetShown = true
		return messages.BusinessInfo(s.orderURL), nil

	case intent.KindOrderInfo:
		return messages.OrderRedirect(s.orderURL), nil

	case intent.KindCategoryList:
		commit.ClearCategory = true
		commit.ResetShown = true
		return messages.CategoryList(), nil

	default:
		return s.handleMenuQuery(ctx, log, msgs, assistant, tc, it.Menu, userID, commit)
	}
}

// handleMenuQuery resolves context, runs the query gate, and asks the
// model to phrase the classified result.
func (s *Service) handleMenuQuery(ctx context.Context, log *slog.Logger, msgs []llm.Message, assistant llm.Message, tc llm.ToolCall, m intent.MenuArgs, userID string, commit *session.TurnCommit) (string, error) {
	rq, err := s.resolver.Resolve(userID, m)
	if errors.Is(err, resolver.ErrNoContext) {
		// Ambiguous turn: nothing to query, ask instead of guessing.
		log.Info("ambiguous menu query, asking for clarification")
		return messages.Clarification(), nil
	}
	if err != nil {
		return "", err
	}

	res, err := s.gate.Run(ctx, rq)
	if err != nil {
		return "", err
	}
	log.Info("menu query classified",
		"outcome", res.Outcome.String(),
		"items", len(res.Items),
		"fallback", res.Fallback,
		"category", rq.Category,
		"search", rq.SearchTerm,
	)

	commit.SetCategory = rq.SetCategory
	commit.NewShownIDs = res.NewlyShownIDs

	includeDetails := !m.TrackShown
	toolResult := formatResult(res, includeDetails)

	msgs = append(msgs, assistant, llm.Message{
		Role:       "tool",
		ToolCallID: tc.ID,
		Name:       intent.ToolMenuItems,
		Content:    toolResult,
	})

	second, err := s.llm.Chat(ctx, s.model, msgs, nil)
	if err != nil {
		return "", fmt.Errorf("reply generation: %w", err)
	}
	return second.Message.Content, nil
}

// handleMultipleTools answers every requested tool call, then asks the
// model for one combined reply. Menu lookups here run in detail mode
// with no exclusions and no tracking — the user is comparing specific
// dishes, not browsing.
func (s *Service) handleMultipleTools(ctx context.Context, log *slog.Logger, msgs []llm.Message, assistant llm.Message, userID, lastCategory, userText string, commit *session.TurnCommit) (string, error) {
	log.Info("multiple tool calls", "count", len(assistant.ToolCalls))
	msgs = append(msgs, assistant)

	var lookups []menuLookup
	allMenuSearches := len(assistant.ToolCalls) >= 2

	for _, tc := range assistant.ToolCalls {
		args, err := tc.Args()
		if err != nil {
			return "", err
		}
		it, err := intent.FromToolCall(tc.Function.Name, args)
		if err != nil {
			return "", err
		}

		var content string
		switch it.Kind {
		case intent.KindGreeting:
			content = messages.BusinessInfo(s.orderURL)
			allMenuSearches = false
		case intent.KindOrderInfo:
			content = messages.OrderRedirect(s.orderURL)
			allMenuSearches = false
		case intent.KindCategoryList:
			content = messages.CategoryList()
			allMenuSearches = false

		default:
			category := it.Menu.Category
			if category == "" {
				category = lastCategory
			}
			if it.Menu.Category != "" {
				commit.SetCategory = it.Menu.Category
			}
			if it.Menu.SearchTerm == "" {
				allMenuSearches = false
			}

			// Detail mode unless the model explicitly asked to track:
			// default is the opposite of the single-call case.
			trackShown := it.Menu.TrackShownOr(false)

			res, err := s.gate.Run(ctx, resolver.Query{
				Category:   category,
				SearchTerm: it.Menu.SearchTerm,
				MaxPrice:   it.Menu.MaxPrice,
				Dietary:    it.Menu.Dietary,
				Day:        it.Menu.Day,
				ExcludeIDs: map[int64]struct{}{},
				TrackShown: false,
			})
			if err != nil {
				return "", err
			}
			content = formatResult(res, !trackShown)
			lookups = append(lookups, menuLookup{searchTerm: it.Menu.SearchTerm, result: res})
		}

		msgs = append(msgs, llm.Message{
			Role:       "tool",
			ToolCallID: tc.ID,
			Name:       tc.Function.Name,
			Content:    content,
		})
	}

	// Several per-dish lookups for ingredients or allergens: build the
	// reply directly from catalog fields. A generator pass over multiple
	// detailed dishes has mixed fields across dishes before.
	if allMenuSearches && len(lookups) >= 2 {
		if reply, ok := formatDishFacts(userText, lookups); ok {
			log.Info("pre-formatted multi-dish detail reply", "dishes", len(lookups))
			return reply, nil
		}
	}

	final, err := s.llm.Chat(ctx, s.model, msgs, nil)
	if err != nil {
		return "", fmt.Errorf("reply generation: %w", err)
	}
	return final.Message.Content, nil
}
