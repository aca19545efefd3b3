// Package service implements the interpretation execution pipeline: event
// triggered enqueueing, queue processing with retries and LLM response
// caching, and forced synchronous runs.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vibra-server/internal/llm"
	"vibra-server/internal/luna"
	"vibra-server/internal/messaging"
	"vibra-server/internal/model"
	"vibra-server/internal/parser"
	"vibra-server/internal/repository"
)

// PostProcessor turns raw LLM output into structured content. It never
// fails; malformed input degrades to heuristic formatting.
type PostProcessor interface {
	Process(ctx context.Context, rawText string) luna.Result
}

// TriggerRequest asks the pipeline to match templates for an event.
type TriggerRequest struct {
	Event          model.TriggerEvent
	UserID         uuid.UUID
	Context        map[string]any
	ForceImmediate bool
}

// TriggerResult reports the items enqueued for an event.
type TriggerResult struct {
	QueuedItems int         `json:"queued_items"`
	QueueIDs    []uuid.UUID `json:"queue_ids"`
}

// ItemResult reports the outcome of processing a single queue item.
type ItemResult struct {
	QueueID      uuid.UUID `json:"queue_id"`
	TemplateKey  string    `json:"template_key,omitempty"`
	Success      bool      `json:"success"`
	Skipped      bool      `json:"skipped,omitempty"`
	ResultLength int       `json:"result_length,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// ProcessResult aggregates a batch processing run.
type ProcessResult struct {
	Processed int          `json:"processed"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Results   []ItemResult `json:"results"`
}

// InterpretationService is the pipeline's operation surface.
type InterpretationService interface {
	// TriggerByEvent matches active templates for the event and the
	// user's plan, and enqueues one item per match.
	TriggerByEvent(ctx context.Context, req TriggerRequest) (*TriggerResult, error)
	// ProcessPending claims and processes up to limit eligible items.
	// One item failing does not abort the batch.
	ProcessPending(ctx context.Context, limit int) (*ProcessResult, error)
	// ForceProcess enqueues the template by key for immediate execution
	// and processes it synchronously.
	ForceProcess(ctx context.Context, userID uuid.UUID, templateKey string) (*ItemResult, error)
}

type interpretationService struct {
	templates       repository.TemplateRepository
	queue           repository.QueueRepository
	users           repository.UserRepository
	interpretations repository.InterpretationRepository
	notifications   repository.NotificationRepository
	gateway         llm.TextGenerator
	postProcessor   PostProcessor
	parser          *parser.Parser
	publisher       messaging.EventPublisher
	maxRetries      int
	staleAfter      time.Duration
	logger          *zap.Logger
}

// Deps bundles the pipeline's collaborators.
type Deps struct {
	Templates       repository.TemplateRepository
	Queue           repository.QueueRepository
	Users           repository.UserRepository
	Interpretations repository.InterpretationRepository
	Notifications   repository.NotificationRepository
	Gateway         llm.TextGenerator
	PostProcessor   PostProcessor
	Parser          *parser.Parser
	// Publisher may be nil when event publishing is disabled.
	Publisher  messaging.EventPublisher
	MaxRetries int
	// StaleAfter is how long an item may stay in processing before a
	// sweep returns it to pending. Zero disables the stale requeue.
	StaleAfter time.Duration
}

// NewInterpretationService wires the pipeline.
func NewInterpretationService(deps Deps, logger *zap.Logger) InterpretationService {
	return &interpretationService{
		templates:       deps.Templates,
		queue:           deps.Queue,
		users:           deps.Users,
		interpretations: deps.Interpretations,
		notifications:   deps.Notifications,
		gateway:         deps.Gateway,
		postProcessor:   deps.PostProcessor,
		parser:          deps.Parser,
		publisher:       deps.Publisher,
		maxRetries:      deps.MaxRetries,
		staleAfter:      deps.StaleAfter,
		logger:          logger.Named("InterpretationService"),
	}
}

func (s *interpretationService) TriggerByEvent(ctx context.Context, req TriggerRequest) (*TriggerResult, error) {
	if !req.Event.Valid() {
		return nil, fmt.Errorf("%w: unknown trigger event %q", model.ErrInvalidInput, req.Event)
	}

	plan := "semente"
	profile, err := s.users.GetProfile(ctx, req.UserID)
	if err != nil {
		if !errors.Is(err, model.ErrUserNotFound) {
			return nil, err
		}
		s.logger.Warn("Profile not found, using default plan",
			zap.String("user_id", req.UserID.String()))
	} else {
		plan = profile.Plan()
	}

	templates, err := s.templates.GetByEvent(ctx, req.Event, plan)
	if err != nil {
		return nil, err
	}

	result := &TriggerResult{QueueIDs: []uuid.UUID{}}
	now := time.Now()
	for i := range templates {
		tpl := &templates[i]
		scheduledFor := now
		if !req.ForceImmediate {
			scheduledFor = now.Add(tpl.ReleaseDelay())
		}
		item, err := s.queue.Add(ctx, req.UserID, tpl.ID, scheduledFor, s.maxRetries, req.Context)
		if err != nil {
			return nil, fmt.Errorf("error enqueueing template %s: %w", tpl.CustomKey, err)
		}
		result.QueuedItems++
		result.QueueIDs = append(result.QueueIDs, item.ID)
		itemsEnqueued.WithLabelValues(string(req.Event)).Inc()
		s.logger.Info("Template enqueued",
			zap.String("event", string(req.Event)),
			zap.String("template_key", tpl.CustomKey),
			zap.String("queue_id", item.ID.String()),
			zap.Time("scheduled_for", scheduledFor),
		)
	}
	return result, nil
}

func (s *interpretationService) ProcessPending(ctx context.Context, limit int) (*ProcessResult, error) {
	// Items whose worker died mid-processing would otherwise stay in
	// processing forever, since only pending items are swept.
	if s.staleAfter > 0 {
		if n, err := s.queue.RequeueStale(ctx, s.staleAfter); err != nil {
			s.logger.Warn("Failed to requeue stale items", zap.Error(err))
		} else if n > 0 {
			s.logger.Info("Requeued stale processing items", zap.Int("count", n))
		}
	}

	items, err := s.queue.GetPending(ctx, limit)
	if err != nil {
		return nil, err
	}

	result := &ProcessResult{Results: []ItemResult{}}
	for i := range items {
		itemResult := s.processQueueItem(ctx, &items[i])
		if itemResult.Skipped {
			continue
		}
		result.Processed++
		if itemResult.Success {
			result.Succeeded++
		} else {
			result.Failed++
		}
		result.Results = append(result.Results, itemResult)
	}
	return result, nil
}

func (s *interpretationService) ForceProcess(ctx context.Context, userID uuid.UUID, templateKey string) (*ItemResult, error) {
	tpl, err := s.templates.GetByKey(ctx, templateKey)
	if err != nil {
		return nil, err
	}

	item, err := s.queue.Add(ctx, userID, tpl.ID, time.Now(), s.maxRetries, nil)
	if err != nil {
		return nil, err
	}
	item.Template = tpl

	result := s.processQueueItem(ctx, item)
	return &result, nil
}

// processQueueItem runs the full state machine for one item: claim,
// generate (or reuse the cached response), post-process, persist, notify,
// complete. Any failure before completion transitions the item back to
// pending or to failed depending on the retry budget.
func (s *interpretationService) processQueueItem(ctx context.Context, item *model.QueueItem) ItemResult {
	log := s.logger.With(zap.String("queue_id", item.ID.String()))

	claimed, err := s.queue.Claim(ctx, item.ID)
	if err != nil {
		log.Error("Claim failed", zap.Error(err))
		return ItemResult{QueueID: item.ID, Error: err.Error()}
	}
	if !claimed {
		log.Info("Item already claimed by another processor, skipping")
		return ItemResult{QueueID: item.ID, Skipped: true}
	}

	tpl := item.Template
	if tpl == nil {
		tpl, err = s.templates.GetByID(ctx, item.TemplateID)
		if err != nil {
			return s.failAttempt(ctx, item, fmt.Errorf("template lookup failed: %w", err))
		}
	}
	log = log.With(zap.String("template_key", tpl.CustomKey))

	start := time.Now()
	rawResult, err := s.generateOrReuse(ctx, item, tpl, log)
	if err != nil {
		return s.failAttempt(ctx, item, err)
	}

	processed := s.postProcessor.Process(ctx, rawResult)
	finalText := processed.Text
	if finalText == "" {
		finalText = rawResult
	}

	if err := s.interpretations.Save(ctx, item.UserID, tpl.CustomKey, finalText); err != nil {
		return s.failAttempt(ctx, item, fmt.Errorf("saving interpretation failed: %w", err))
	}

	s.notify(ctx, item, tpl, processed, log)

	if err := s.queue.MarkCompleted(ctx, item.ID, finalText); err != nil {
		// The upsert above is idempotent, so the retry triggered here
		// redoes the tail of the pipeline without a second paid call.
		return s.failAttempt(ctx, item, fmt.Errorf("completing item failed: %w", err))
	}

	itemsProcessed.WithLabelValues("completed").Inc()
	processingDuration.Observe(time.Since(start).Seconds())
	log.Info("Queue item completed", zap.Int("result_length", len(finalText)))

	return ItemResult{
		QueueID:      item.ID,
		TemplateKey:  tpl.CustomKey,
		Success:      true,
		ResultLength: len(finalText),
	}
}

// generateOrReuse returns the cached raw response when a previous attempt
// already paid for the model call, otherwise builds the prompt and calls
// the gateway, persisting the raw output before anything else touches it.
func (s *interpretationService) generateOrReuse(ctx context.Context, item *model.QueueItem, tpl *model.Template, log *zap.Logger) (string, error) {
	if item.HasCachedResponse() {
		log.Info("Reusing cached LLM response",
			zap.Int("retry_count", item.RetryCount),
			zap.Int("cached_length", len(*item.LLMResponseCache)),
		)
		cacheHits.Inc()
		return *item.LLMResponseCache, nil
	}

	execCtx, err := s.buildContext(ctx, item, log)
	if err != nil {
		return "", err
	}

	prompt, unresolved := s.parser.Parse(tpl.PromptContent, execCtx)
	if len(unresolved) > 0 {
		log.Warn("Prompt has unresolved variables", zap.Strings("tokens", unresolved))
	}
	systemPrompt := ""
	if tpl.SystemPrompt != "" {
		systemPrompt, _ = s.parser.Parse(tpl.SystemPrompt, execCtx)
	}

	rawResult, err := s.gateway.Generate(ctx, prompt, systemPrompt, tpl.LLMConfig)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}

	// Persist the raw output immediately: a crash past this point must
	// not cost a second model call.
	if err := s.queue.SaveResponseCache(ctx, item.ID, rawResult); err != nil {
		return "", fmt.Errorf("caching raw response failed: %w", err)
	}
	return rawResult, nil
}

func (s *interpretationService) buildContext(ctx context.Context, item *model.QueueItem, log *zap.Logger) (parser.Context, error) {
	var profileData map[string]any
	profile, err := s.users.GetProfile(ctx, item.UserID)
	if err != nil {
		if !errors.Is(err, model.ErrUserNotFound) {
			return nil, fmt.Errorf("loading profile failed: %w", err)
		}
		log.Warn("Processing without profile data")
	} else {
		profileData = profile
	}

	var macData map[string]any
	astralMap, err := s.users.GetAstralMap(ctx, item.UserID)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("loading astral map failed: %w", err)
		}
		log.Debug("No astral map for user")
	} else {
		macData = astralMap
	}

	return parser.BuildContext(profileData, macData, item.ContextData), nil
}

// notify creates the in-app notification and publishes the ready event.
// Both are best-effort; failures are logged and swallowed.
func (s *interpretationService) notify(ctx context.Context, item *model.QueueItem, tpl *model.Template, processed luna.Result, log *zap.Logger) {
	title := processed.Notification.Titulo
	if title == "" {
		title = "Nova análise"
	}
	message := processed.Notification.Texto
	if message == "" {
		message = fmt.Sprintf("Sua análise de %s está pronta", humanizeKey(tpl.CustomKey))
	}
	link := moduleLink(tpl.ModuleRelation)

	notification := &model.Notification{
		UserID:  item.UserID,
		Title:   title,
		Message: message,
		Link:    link,
	}
	if err := s.notifications.Create(ctx, notification); err != nil {
		notificationFailures.Inc()
		log.Warn("Failed to create notification", zap.Error(err))
	}

	if s.publisher == nil {
		return
	}
	event := messaging.InterpretationReadyEvent{
		QueueID:     item.ID.String(),
		UserID:      item.UserID.String(),
		TemplateKey: tpl.CustomKey,
		Title:       title,
		Message:     message,
		Link:        link,
		CompletedAt: time.Now(),
	}
	if err := s.publisher.PublishInterpretationReady(ctx, event); err != nil {
		log.Warn("Failed to publish ready event", zap.Error(err))
	}
}

// failAttempt applies the retry policy: back to pending while the budget
// allows, terminal failed otherwise. The response cache is preserved in
// both cases so a later attempt can skip the model call.
func (s *interpretationService) failAttempt(ctx context.Context, item *model.QueueItem, cause error) ItemResult {
	log := s.logger.With(
		zap.String("queue_id", item.ID.String()),
		zap.Int("retry_count", item.RetryCount),
	)

	if item.RetryCount < item.MaxRetries {
		if err := s.queue.MarkForRetry(ctx, item.ID, cause.Error()); err != nil {
			log.Error("Failed to schedule retry", zap.Error(err))
		} else {
			itemsProcessed.WithLabelValues("retried").Inc()
			log.Warn("Attempt failed, item returned to pending", zap.Error(cause))
		}
	} else {
		terminal := fmt.Sprintf("Max retries reached. Last error: %s", cause.Error())
		if err := s.queue.MarkFailed(ctx, item.ID, terminal); err != nil {
			log.Error("Failed to mark item failed", zap.Error(err))
		} else {
			itemsProcessed.WithLabelValues("failed").Inc()
			log.Error("Item failed permanently", zap.Error(cause))
		}
	}

	return ItemResult{QueueID: item.ID, Error: cause.Error()}
}

var moduleLinks = map[string]string{
	"Mapa Astral":              "https://app.vibraeu.com.br/meu-mac/mapa",
	"Vibrações":                "https://app.vibraeu.com.br/vibracoes",
	"Perfil Comportamental":    "https://app.vibraeu.com.br/perfil-comportamental",
	"Roda da Vida":             "https://app.vibraeu.com.br/roda-da-vida",
	"Diário de Bordo":          "https://app.vibraeu.com.br/diario",
	"Mantra Pessoal":           "https://app.vibraeu.com.br/mantra",
	"Teste de Compatibilidade": "https://app.vibraeu.com.br/compatibilidade",
	"Campo de Expressão":       "https://app.vibraeu.com.br/campo-expressao",
	"Metas e Conquistas":       "https://app.vibraeu.com.br/metas",
	"Centelhas":                "https://app.vibraeu.com.br/centelhas",
	"Geral (Sistema)":          "https://app.vibraeu.com.br/",
}

const defaultModuleLink = "https://app.vibraeu.com.br/meu-mac/mapa"

func moduleLink(moduleRelation string) string {
	if link, ok := moduleLinks[moduleRelation]; ok {
		return link
	}
	return defaultModuleLink
}

func humanizeKey(customKey string) string {
	words := strings.Split(strings.ReplaceAll(customKey, "-", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
