package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"nutrisync/internal/food"
	"nutrisync/internal/gpt"
	"nutrisync/internal/models"
	"nutrisync/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// pendingTTL bounds how long an analysed meal waits for its meal slot.
const pendingTTL = 30 * time.Minute

// Analyzer turns a meal description or photo into foods.
type Analyzer interface {
	AnalyzeText(ctx context.Context, description string) ([]models.NutritionData, error)
	AnalyzePhoto(ctx context.Context, imageURL, hint string) ([]models.NutritionData, error)
}

// botAPI is the part of tgbotapi.BotAPI the bot uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// chatState holds an analysed meal until the user picks its slot.
type chatState struct {
	Foods     []models.NutritionData
	Notes     string
	UpdatedAt time.Time
}

type TelegramBot struct {
	api        botAPI
	svc        *food.Service
	analyzer   Analyzer
	logger     *logger.Logger
	userStates map[int64]*chatState
	stateMutex sync.RWMutex
	now        func() time.Time
}

func NewTelegramBot(token string, svc *food.Service, analyzer Analyzer, l *logger.Logger) (*TelegramBot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	t := newTelegramBot(api, svc, analyzer, l)
	t.logger.Infow("authorized on Telegram", "username", api.Self.UserName)
	return t, nil
}

func newTelegramBot(api botAPI, svc *food.Service, analyzer Analyzer, l *logger.Logger) *TelegramBot {
	return &TelegramBot{
		api:        api,
		svc:        svc,
		analyzer:   analyzer,
		logger:     logger.OrNop(l).Named("bot"),
		userStates: make(map[int64]*chatState),
		now:        time.Now,
	}
}

// Start begins receiving updates from Telegram via polling
func (t *TelegramBot) Start(ctx context.Context) error {
	// Polling does not work while a webhook is registered.
	if _, err := t.api.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: true}); err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := t.api.GetUpdatesChan(updateConfig)

	t.logger.Infow("started receiving Telegram updates")
	go t.handleUpdates(ctx, updates)
	return nil
}

func (t *TelegramBot) handleUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			go func(update tgbotapi.Update) {
				defer func() {
					if r := recover(); r != nil {
						t.logger.Errorw("recovered from panic while processing update",
							"update_id", update.UpdateID, "panic", r)
					}
				}()
				t.handleUpdate(ctx, update)
			}(update)
		}
	}
}

func (t *TelegramBot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.From != nil:
		if update.Message.IsCommand() {
			t.handleCommand(ctx, update.Message)
			return
		}
		t.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		t.handleCallbackQuery(ctx, update.CallbackQuery)
	}
}

// handleMessage analyses a meal description or photo and asks for the slot.
func (t *TelegramBot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	userID := message.From.ID

	if t.analyzer == nil {
		t.reply(chatID, "Распознавание блюд сейчас недоступно.")
		return
	}

	var (
		foods []models.NutritionData
		notes string
		err   error
	)
	switch {
	case len(message.Photo) > 0:
		// The last size is the largest.
		photo := message.Photo[len(message.Photo)-1]
		var url string
		url, err = t.api.GetFileDirectURL(photo.FileID)
		if err == nil {
			foods, err = t.analyzer.AnalyzePhoto(ctx, url, message.Caption)
		}
		notes = message.Caption
	case message.Text != "":
		foods, err = t.analyzer.AnalyzeText(ctx, message.Text)
		notes = message.Text
	default:
		t.reply(chatID, "Опишите блюдо текстом или пришлите фото.")
		return
	}

	if err != nil {
		t.logger.Warnw("meal analysis failed", "user_id", userID, "error", err)
		if errors.Is(err, gpt.ErrNoFoods) {
			t.reply(chatID, "Не удалось распознать еду. Попробуйте описать блюдо подробнее.")
			return
		}
		t.reply(chatID, "Не получилось проанализировать блюдо. Попробуйте ещё раз позже.")
		return
	}

	t.setState(userID, &chatState{Foods: foods, Notes: notes, UpdatedAt: t.now()})

	msg := tgbotapi.NewMessage(chatID, formatFoods(foods)+"\n\nВыберите приём пищи:")
	msg.ReplyMarkup = mealKeyboard()
	if _, err := t.api.Send(msg); err != nil {
		t.logger.Errorw("failed to send analysis", "user_id", userID, "error", err)
	}
}

// handleCallbackQuery stores the pending meal in the chosen slot.
func (t *TelegramBot) handleCallbackQuery(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if _, err := t.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		t.logger.Warnw("failed to acknowledge callback", "error", err)
	}
	if cq.Message == nil {
		return
	}
	chatID := cq.Message.Chat.ID
	userID := cq.From.ID

	action, value := parseCallback(cq.Data)
	switch action {
	case callbackCancel:
		t.takeState(userID)
		t.edit(chatID, cq.Message.MessageID, "Запись отменена.")

	case callbackMeal:
		meal, err := models.ParseMealType(value)
		if err != nil {
			t.logger.Warnw("unknown meal in callback", "data", cq.Data)
			return
		}
		state := t.takeState(userID)
		if state == nil {
			t.edit(chatID, cq.Message.MessageID, "Нет блюда для записи. Опишите его ещё раз.")
			return
		}

		entry, err := t.svc.CreateFoodEntry(ctx, userKey(userID), food.CreateFoodEntryRequest{
			Date:     t.today(),
			MealType: meal,
			Notes:    state.Notes,
		}, state.Foods)
		if err != nil {
			t.logger.Errorw("failed to create food entry", "user_id", userID, "error", err)
			t.edit(chatID, cq.Message.MessageID, "Не удалось сохранить запись.")
			return
		}
		t.edit(chatID, cq.Message.MessageID, formatSaved(entry))
	}
}

func (t *TelegramBot) setState(userID int64, st *chatState) {
	t.stateMutex.Lock()
	defer t.stateMutex.Unlock()
	t.userStates[userID] = st
}

// takeState removes and returns the user's pending meal, or nil when there is
// none or it expired.
func (t *TelegramBot) takeState(userID int64) *chatState {
	t.stateMutex.Lock()
	defer t.stateMutex.Unlock()

	st, ok := t.userStates[userID]
	delete(t.userStates, userID)
	if !ok || t.now().Sub(st.UpdatedAt) > pendingTTL {
		return nil
	}
	return st
}

func (t *TelegramBot) today() string {
	return t.now().Format(models.DateLayout)
}

func (t *TelegramBot) reply(chatID int64, text string) {
	if _, err := t.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		t.logger.Errorw("failed to send message", "chat_id", chatID, "error", err)
	}
}

func (t *TelegramBot) edit(chatID int64, messageID int, text string) {
	if _, err := t.api.Request(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		t.logger.Errorw("failed to edit message", "chat_id", chatID, "error", err)
	}
}

// Stop gracefully shuts down the bot
func (t *TelegramBot) Stop(ctx context.Context) error {
	t.api.StopReceivingUpdates()

	// Give in-flight handlers a moment to finish.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(500 * time.Millisecond):
		return nil
	}
}
