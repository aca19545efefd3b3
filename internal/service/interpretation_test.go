package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vibra-server/internal/luna"
	"vibra-server/internal/mocks"
	"vibra-server/internal/model"
	"vibra-server/internal/parser"
	"vibra-server/internal/service"
)

type pipelineMocks struct {
	templates       *mocks.MockTemplateRepository
	queue           *mocks.MockQueueRepository
	users           *mocks.MockUserRepository
	interpretations *mocks.MockInterpretationRepository
	notifications   *mocks.MockNotificationRepository
	gateway         *mocks.MockTextGenerator
	postProcessor   *mocks.MockPostProcessor
}

func newPipeline(t *testing.T) (service.InterpretationService, pipelineMocks) {
	return newPipelineWithStale(t, 0)
}

func newPipelineWithStale(t *testing.T, staleAfter time.Duration) (service.InterpretationService, pipelineMocks) {
	m := pipelineMocks{
		templates:       mocks.NewMockTemplateRepository(t),
		queue:           mocks.NewMockQueueRepository(t),
		users:           mocks.NewMockUserRepository(t),
		interpretations: mocks.NewMockInterpretationRepository(t),
		notifications:   mocks.NewMockNotificationRepository(t),
		gateway:         mocks.NewMockTextGenerator(t),
		postProcessor:   mocks.NewMockPostProcessor(t),
	}
	svc := service.NewInterpretationService(service.Deps{
		Templates:       m.templates,
		Queue:           m.queue,
		Users:           m.users,
		Interpretations: m.interpretations,
		Notifications:   m.notifications,
		Gateway:         m.gateway,
		PostProcessor:   m.postProcessor,
		Parser:          parser.New(zap.NewNop()),
		MaxRetries:      3,
		StaleAfter:      staleAfter,
	}, zap.NewNop())
	return svc, m
}

func makeTemplate(key string, delayDays, delayHours int) model.Template {
	return model.Template{
		ID:                uuid.New(),
		Title:             key,
		CustomKey:         key,
		PromptContent:     "Interprete o sol em @mac.sun para @user.name",
		TriggerEvent:      model.EventMACGenerated,
		ReleaseDelayDays:  delayDays,
		ReleaseDelayHours: delayHours,
		TargetProfiles:    []string{"all"},
		IsActive:          true,
	}
}

func pendingItem(tpl *model.Template) *model.QueueItem {
	return &model.QueueItem{
		ID:           uuid.New(),
		UserID:       uuid.New(),
		TemplateID:   tpl.ID,
		ScheduledFor: time.Now().Add(-time.Minute),
		Status:       model.StatusPending,
		MaxRetries:   3,
		Template:     tpl,
	}
}

func lunaResult() luna.Result {
	return luna.Result{
		Text:  "<p>Seu sol em Leão fala de coragem</p>",
		Frase: "Coragem é seu lema",
		Notification: luna.Notification{
			Titulo: "Sol em Leão",
			Texto:  "Descubra o que seu sol revela",
		},
	}
}

func TestTriggerByEvent_FanOut(t *testing.T) {
	svc, m := newPipeline(t)
	userID := uuid.New()

	templates := []model.Template{
		makeTemplate("mapa-geral", 0, 0),
		makeTemplate("sol-profundo", 1, 0),
		makeTemplate("lua-emocional", 0, 6),
	}

	m.users.On("GetProfile", mock.Anything, userID).
		Return(model.Profile{"plano": "florescer"}, nil)
	m.templates.On("GetByEvent", mock.Anything, model.EventMACGenerated, "florescer").
		Return(templates, nil)

	now := time.Now()
	var scheduled []time.Time
	for i := range templates {
		tpl := templates[i]
		m.queue.On("Add", mock.Anything, userID, tpl.ID, mock.AnythingOfType("time.Time"), 3, mock.Anything).
			Run(func(args mock.Arguments) {
				scheduled = append(scheduled, args.Get(3).(time.Time))
			}).
			Return(&model.QueueItem{ID: uuid.New(), TemplateID: tpl.ID}, nil).Once()
	}

	result, err := svc.TriggerByEvent(context.Background(), service.TriggerRequest{
		Event:  model.EventMACGenerated,
		UserID: userID,
	})

	require.NoError(t, err)
	assert.Equal(t, 3, result.QueuedItems)
	assert.Len(t, result.QueueIDs, 3)

	// Each item carries its own template's release delay.
	require.Len(t, scheduled, 3)
	assert.WithinDuration(t, now, scheduled[0], 5*time.Second)
	assert.WithinDuration(t, now.Add(24*time.Hour), scheduled[1], 5*time.Second)
	assert.WithinDuration(t, now.Add(6*time.Hour), scheduled[2], 5*time.Second)

	m.queue.AssertExpectations(t)
}

func TestTriggerByEvent_NoMatches(t *testing.T) {
	svc, m := newPipeline(t)
	userID := uuid.New()

	m.users.On("GetProfile", mock.Anything, userID).Return(model.Profile{}, nil)
	m.templates.On("GetByEvent", mock.Anything, model.EventTestCompleted, "semente").
		Return([]model.Template{}, nil)

	result, err := svc.TriggerByEvent(context.Background(), service.TriggerRequest{
		Event:  model.EventTestCompleted,
		UserID: userID,
	})

	require.NoError(t, err)
	assert.Equal(t, 0, result.QueuedItems)
}

func TestTriggerByEvent_MissingProfileUsesDefaultPlan(t *testing.T) {
	svc, m := newPipeline(t)
	userID := uuid.New()

	m.users.On("GetProfile", mock.Anything, userID).Return(nil, model.ErrUserNotFound)
	m.templates.On("GetByEvent", mock.Anything, model.EventAccountCreated, "semente").
		Return([]model.Template{}, nil)

	_, err := svc.TriggerByEvent(context.Background(), service.TriggerRequest{
		Event:  model.EventAccountCreated,
		UserID: userID,
	})

	require.NoError(t, err)
	m.templates.AssertExpectations(t)
}

func TestTriggerByEvent_InvalidEvent(t *testing.T) {
	svc, _ := newPipeline(t)

	_, err := svc.TriggerByEvent(context.Background(), service.TriggerRequest{
		Event:  "SOMETHING_ELSE",
		UserID: uuid.New(),
	})

	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestTriggerByEvent_ForceImmediateIgnoresDelay(t *testing.T) {
	svc, m := newPipeline(t)
	userID := uuid.New()
	tpl := makeTemplate("mapa-geral", 7, 0)

	m.users.On("GetProfile", mock.Anything, userID).Return(model.Profile{}, nil)
	m.templates.On("GetByEvent", mock.Anything, model.EventManualTrigger, "semente").
		Return([]model.Template{tpl}, nil)

	var scheduledFor time.Time
	m.queue.On("Add", mock.Anything, userID, tpl.ID, mock.AnythingOfType("time.Time"), 3, mock.Anything).
		Run(func(args mock.Arguments) { scheduledFor = args.Get(3).(time.Time) }).
		Return(&model.QueueItem{ID: uuid.New()}, nil)

	_, err := svc.TriggerByEvent(context.Background(), service.TriggerRequest{
		Event:          model.EventManualTrigger,
		UserID:         userID,
		ForceImmediate: true,
	})

	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), scheduledFor, 5*time.Second)
}

func TestProcessPending_HappyPath(t *testing.T) {
	svc, m := newPipeline(t)
	tpl := makeTemplate("sol-profundo", 0, 0)
	item := pendingItem(&tpl)

	m.queue.On("GetPending", mock.Anything, 10).Return([]model.QueueItem{*item}, nil)
	m.queue.On("Claim", mock.Anything, item.ID).Return(true, nil)
	m.users.On("GetProfile", mock.Anything, item.UserID).
		Return(model.Profile{"nome": "Ana", "plano": "semente"}, nil)
	m.users.On("GetAstralMap", mock.Anything, item.UserID).
		Return(model.AstralMap{"sol_signo": "Leão"}, nil)

	var sentPrompt string
	m.gateway.On("Generate", mock.Anything, mock.AnythingOfType("string"), "", tpl.LLMConfig).
		Run(func(args mock.Arguments) { sentPrompt = args.String(1) }).
		Return("texto bruto da interpretação", nil)
	m.queue.On("SaveResponseCache", mock.Anything, item.ID, "texto bruto da interpretação").Return(nil)
	m.postProcessor.On("Process", mock.Anything, "texto bruto da interpretação").Return(lunaResult())
	m.interpretations.On("Save", mock.Anything, item.UserID, "sol-profundo", lunaResult().Text).Return(nil)
	m.notifications.On("Create", mock.Anything, mock.MatchedBy(func(n *model.Notification) bool {
		return n.Title == "Sol em Leão" && n.UserID == item.UserID
	})).Return(nil)
	m.queue.On("MarkCompleted", mock.Anything, item.ID, lunaResult().Text).Return(nil)

	result, err := svc.ProcessPending(context.Background(), 10)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 0, result.Failed)

	// Variables resolved against the joined context before the call.
	assert.Contains(t, sentPrompt, "Leão")
	assert.Contains(t, sentPrompt, "Ana")

	m.queue.AssertExpectations(t)
	m.interpretations.AssertExpectations(t)
}

func TestProcessPending_ReusesCachedResponse(t *testing.T) {
	svc, m := newPipeline(t)
	tpl := makeTemplate("sol-profundo", 0, 0)
	item := pendingItem(&tpl)
	cached := "resposta cara já paga"
	item.LLMResponseCache = &cached
	item.RetryCount = 1

	m.queue.On("GetPending", mock.Anything, 10).Return([]model.QueueItem{*item}, nil)
	m.queue.On("Claim", mock.Anything, item.ID).Return(true, nil)
	m.postProcessor.On("Process", mock.Anything, cached).Return(lunaResult())
	m.interpretations.On("Save", mock.Anything, item.UserID, "sol-profundo", lunaResult().Text).Return(nil)
	m.notifications.On("Create", mock.Anything, mock.Anything).Return(nil)
	m.queue.On("MarkCompleted", mock.Anything, item.ID, lunaResult().Text).Return(nil)

	result, err := svc.ProcessPending(context.Background(), 10)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)

	// The paid call is never repeated when a cached response exists.
	m.gateway.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	m.queue.AssertNotCalled(t, "SaveResponseCache", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessPending_GenerationFailureSchedulesRetry(t *testing.T) {
	svc, m := newPipeline(t)
	tpl := makeTemplate("sol-profundo", 0, 0)
	item := pendingItem(&tpl)
	item.RetryCount = 1 // still under the budget of 3

	m.queue.On("GetPending", mock.Anything, 10).Return([]model.QueueItem{*item}, nil)
	m.queue.On("Claim", mock.Anything, item.ID).Return(true, nil)
	m.users.On("GetProfile", mock.Anything, item.UserID).Return(model.Profile{}, nil)
	m.users.On("GetAstralMap", mock.Anything, item.UserID).Return(nil, model.ErrNotFound)
	m.gateway.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("all llm providers failed"))
	m.queue.On("MarkForRetry", mock.Anything, item.ID, mock.MatchedBy(func(msg string) bool {
		return msg != ""
	})).Return(nil)

	result, err := svc.ProcessPending(context.Background(), 10)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	m.queue.AssertExpectations(t)
	m.queue.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything)
	m.queue.AssertNotCalled(t, "ClearResponseCache", mock.Anything, mock.Anything)
}

func TestProcessPending_RetryBudgetExhausted(t *testing.T) {
	svc, m := newPipeline(t)
	tpl := makeTemplate("sol-profundo", 0, 0)
	item := pendingItem(&tpl)
	item.RetryCount = 3 // equals max_retries

	m.queue.On("GetPending", mock.Anything, 10).Return([]model.QueueItem{*item}, nil)
	m.queue.On("Claim", mock.Anything, item.ID).Return(true, nil)
	m.users.On("GetProfile", mock.Anything, item.UserID).Return(model.Profile{}, nil)
	m.users.On("GetAstralMap", mock.Anything, item.UserID).Return(nil, model.ErrNotFound)
	m.gateway.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("boom"))
	m.queue.On("MarkFailed", mock.Anything, item.ID, mock.MatchedBy(func(msg string) bool {
		return assert.Contains(t, msg, "Max retries reached")
	})).Return(nil)

	result, err := svc.ProcessPending(context.Background(), 10)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	m.queue.AssertExpectations(t)
	m.queue.AssertNotCalled(t, "MarkForRetry", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessPending_SkipsAlreadyClaimedItem(t *testing.T) {
	svc, m := newPipeline(t)
	tpl := makeTemplate("sol-profundo", 0, 0)
	item := pendingItem(&tpl)

	m.queue.On("GetPending", mock.Anything, 10).Return([]model.QueueItem{*item}, nil)
	m.queue.On("Claim", mock.Anything, item.ID).Return(false, nil)

	result, err := svc.ProcessPending(context.Background(), 10)

	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)
	m.gateway.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessPending_RequeuesStaleProcessingItems(t *testing.T) {
	svc, m := newPipelineWithStale(t, 10*time.Minute)
	tpl := makeTemplate("sol-profundo", 0, 0)
	item := pendingItem(&tpl)
	cached := "resposta de um worker que morreu"
	item.LLMResponseCache = &cached

	// The stale sweep runs before pending items are fetched, so an item
	// whose worker died shows up in the same batch.
	m.queue.On("RequeueStale", mock.Anything, 10*time.Minute).Return(1, nil).Once()
	m.queue.On("GetPending", mock.Anything, 10).Return([]model.QueueItem{*item}, nil)
	m.queue.On("Claim", mock.Anything, item.ID).Return(true, nil)
	m.postProcessor.On("Process", mock.Anything, cached).Return(lunaResult())
	m.interpretations.On("Save", mock.Anything, item.UserID, "sol-profundo", lunaResult().Text).Return(nil)
	m.notifications.On("Create", mock.Anything, mock.Anything).Return(nil)
	m.queue.On("MarkCompleted", mock.Anything, item.ID, lunaResult().Text).Return(nil)

	result, err := svc.ProcessPending(context.Background(), 10)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	m.queue.AssertExpectations(t)
}

func TestProcessPending_StaleRequeueFailureDoesNotAbortSweep(t *testing.T) {
	svc, m := newPipelineWithStale(t, 10*time.Minute)

	m.queue.On("RequeueStale", mock.Anything, 10*time.Minute).
		Return(0, errors.New("database unreachable"))
	m.queue.On("GetPending", mock.Anything, 10).Return([]model.QueueItem{}, nil)

	result, err := svc.ProcessPending(context.Background(), 10)

	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)
	m.queue.AssertExpectations(t)
}

func TestProcessPending_OneFailureDoesNotAbortBatch(t *testing.T) {
	svc, m := newPipeline(t)
	tplA := makeTemplate("falha", 0, 0)
	tplB := makeTemplate("sucesso", 0, 0)
	itemA := pendingItem(&tplA)
	itemB := pendingItem(&tplB)
	cached := "texto pronto de tentativa anterior"
	itemB.LLMResponseCache = &cached

	m.queue.On("GetPending", mock.Anything, 10).Return([]model.QueueItem{*itemA, *itemB}, nil)

	m.queue.On("Claim", mock.Anything, itemA.ID).Return(true, nil)
	m.users.On("GetProfile", mock.Anything, itemA.UserID).Return(model.Profile{}, nil)
	m.users.On("GetAstralMap", mock.Anything, itemA.UserID).Return(nil, model.ErrNotFound)
	m.gateway.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("down")).Once()
	m.queue.On("MarkForRetry", mock.Anything, itemA.ID, mock.Anything).Return(nil)

	m.queue.On("Claim", mock.Anything, itemB.ID).Return(true, nil)
	m.postProcessor.On("Process", mock.Anything, cached).Return(lunaResult())
	m.interpretations.On("Save", mock.Anything, itemB.UserID, "sucesso", lunaResult().Text).Return(nil)
	m.notifications.On("Create", mock.Anything, mock.Anything).Return(nil)
	m.queue.On("MarkCompleted", mock.Anything, itemB.ID, lunaResult().Text).Return(nil)

	result, err := svc.ProcessPending(context.Background(), 10)

	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
}

func TestProcessPending_NotificationFailureIsSwallowed(t *testing.T) {
	svc, m := newPipeline(t)
	tpl := makeTemplate("sol-profundo", 0, 0)
	item := pendingItem(&tpl)
	cached := "interpretação pronta para formatar"
	item.LLMResponseCache = &cached

	m.queue.On("GetPending", mock.Anything, 10).Return([]model.QueueItem{*item}, nil)
	m.queue.On("Claim", mock.Anything, item.ID).Return(true, nil)
	m.postProcessor.On("Process", mock.Anything, cached).Return(lunaResult())
	m.interpretations.On("Save", mock.Anything, item.UserID, "sol-profundo", lunaResult().Text).Return(nil)
	m.notifications.On("Create", mock.Anything, mock.Anything).Return(errors.New("notifications down"))
	m.queue.On("MarkCompleted", mock.Anything, item.ID, lunaResult().Text).Return(nil)

	result, err := svc.ProcessPending(context.Background(), 10)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	m.queue.AssertExpectations(t)
}

func TestProcessPending_PersistFailurePreservesCache(t *testing.T) {
	svc, m := newPipeline(t)
	tpl := makeTemplate("sol-profundo", 0, 0)
	item := pendingItem(&tpl)

	m.queue.On("GetPending", mock.Anything, 10).Return([]model.QueueItem{*item}, nil)
	m.queue.On("Claim", mock.Anything, item.ID).Return(true, nil)
	m.users.On("GetProfile", mock.Anything, item.UserID).Return(model.Profile{}, nil)
	m.users.On("GetAstralMap", mock.Anything, item.UserID).Return(nil, model.ErrNotFound)
	m.gateway.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("resultado caro", nil)
	m.queue.On("SaveResponseCache", mock.Anything, item.ID, "resultado caro").Return(nil)
	m.postProcessor.On("Process", mock.Anything, "resultado caro").Return(lunaResult())
	m.interpretations.On("Save", mock.Anything, item.UserID, "sol-profundo", lunaResult().Text).
		Return(errors.New("storage down"))
	m.queue.On("MarkForRetry", mock.Anything, item.ID, mock.Anything).Return(nil)

	result, err := svc.ProcessPending(context.Background(), 10)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	// The raw response was cached before post-processing, and the retry
	// path never clears it.
	m.queue.AssertCalled(t, "SaveResponseCache", mock.Anything, item.ID, "resultado caro")
	m.queue.AssertNotCalled(t, "ClearResponseCache", mock.Anything, mock.Anything)
	m.queue.AssertNotCalled(t, "MarkCompleted", mock.Anything, mock.Anything, mock.Anything)
}

func TestForceProcess(t *testing.T) {
	svc, m := newPipeline(t)
	userID := uuid.New()
	tpl := makeTemplate("mantra-pessoal", 5, 0)
	queueID := uuid.New()

	m.templates.On("GetByKey", mock.Anything, "mantra-pessoal").Return(&tpl, nil)
	m.queue.On("Add", mock.Anything, userID, tpl.ID, mock.AnythingOfType("time.Time"), 3, mock.Anything).
		Return(&model.QueueItem{ID: queueID, UserID: userID, TemplateID: tpl.ID, MaxRetries: 3}, nil)
	m.queue.On("Claim", mock.Anything, queueID).Return(true, nil)
	m.users.On("GetProfile", mock.Anything, userID).Return(model.Profile{"nome": "Ana"}, nil)
	m.users.On("GetAstralMap", mock.Anything, userID).Return(model.AstralMap{"sol_signo": "Leão"}, nil)
	m.gateway.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("texto gerado", nil)
	m.queue.On("SaveResponseCache", mock.Anything, queueID, "texto gerado").Return(nil)
	m.postProcessor.On("Process", mock.Anything, "texto gerado").Return(lunaResult())
	m.interpretations.On("Save", mock.Anything, userID, "mantra-pessoal", lunaResult().Text).Return(nil)
	m.notifications.On("Create", mock.Anything, mock.Anything).Return(nil)
	m.queue.On("MarkCompleted", mock.Anything, queueID, lunaResult().Text).Return(nil)

	result, err := svc.ForceProcess(context.Background(), userID, "mantra-pessoal")

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, queueID, result.QueueID)
	assert.Equal(t, "mantra-pessoal", result.TemplateKey)
}

func TestForceProcess_UnknownTemplate(t *testing.T) {
	svc, m := newPipeline(t)

	m.templates.On("GetByKey", mock.Anything, "nao-existe").
		Return(nil, model.ErrTemplateNotFound)

	_, err := svc.ForceProcess(context.Background(), uuid.New(), "nao-existe")

	assert.ErrorIs(t, err, model.ErrTemplateNotFound)
}
