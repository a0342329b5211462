package bot

import (
	"context"
	"errors"
	"strings"

	"nutrisync/internal/food"
	"nutrisync/internal/models"
	"nutrisync/internal/nutrition"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const favoritesShown = 10

// handleCommand processes bot commands
func (t *TelegramBot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	user := userKey(message.From.ID)
	args := strings.TrimSpace(message.CommandArguments())

	t.logger.Infow("handling command", "command", message.Command(), "user_id", user)

	switch message.Command() {
	case "start", "help":
		t.reply(chatID, helpText)

	case "today":
		daily := t.svc.GetDailyNutrition(ctx, user, t.today())
		var goals *models.NutritionGoals
		if g, ok := t.svc.GetNutritionGoals(ctx, user); ok {
			goals = &g
		}
		t.reply(chatID, formatDaily(daily, goals))

	case "week":
		t.sendReport(ctx, chatID, user, nutrition.PeriodWeekly)

	case "month":
		t.sendReport(ctx, chatID, user, nutrition.PeriodMonthly)

	case "status":
		t.reply(chatID, formatStatus(t.svc.GetOfflineQueueStatus()))

	case "sync":
		res, ran := t.svc.ForceSync(ctx)
		if !ran {
			t.reply(chatID, "Нет связи с сервером, синхронизация отложена.\n"+formatStatus(t.svc.GetOfflineQueueStatus()))
			return
		}
		t.logger.Infow("manual sync", "user_id", user,
			"attempted", res.Attempted, "succeeded", res.Succeeded, "failed", res.Failed)
		t.reply(chatID, formatStatus(t.svc.GetOfflineQueueStatus()))

	case "favorites":
		t.reply(chatID, formatFavorites(t.svc.GetFavoriteFoods(ctx, user, favoritesShown)))

	case "search":
		entries, err := t.svc.SearchFoodEntries(ctx, user, args)
		if err != nil {
			t.fail(chatID, user, err)
			return
		}
		t.reply(chatID, formatEntries(entries))

	case "delete":
		if args == "" {
			t.reply(chatID, "Укажите id записи: /delete <id>. Id можно найти через /search.")
			return
		}
		if err := t.svc.DeleteFoodEntry(ctx, user, args); err != nil {
			t.fail(chatID, user, err)
			return
		}
		t.reply(chatID, "🗑 Запись удалена.")

	case "goal":
		goals, err := parseGoalArgs(args)
		if err != nil {
			t.reply(chatID, "Формат: /goal <ккал> <белки> <углеводы> <жиры>, например /goal 2000 120 220 70")
			return
		}
		saved, err := t.svc.SetNutritionGoals(ctx, user, goals)
		if err != nil {
			t.fail(chatID, user, err)
			return
		}
		t.reply(chatID, "🎯 Цель сохранена: "+kcal(saved.DailyCalories)+" ("+formatMacros(saved.Macronutrients)+")")

	case "forget":
		t.takeState(message.From.ID)
		if err := t.svc.ClearUserData(user); err != nil {
			t.fail(chatID, user, err)
			return
		}
		t.reply(chatID, "Локальные данные удалены.")

	default:
		t.reply(chatID, "Неизвестная команда. Используйте /help.")
	}
}

func (t *TelegramBot) sendReport(ctx context.Context, chatID int64, user string, period nutrition.Period) {
	summary, err := t.svc.GetPeriodReport(ctx, user, period, t.now())
	if err != nil {
		t.fail(chatID, user, err)
		return
	}
	t.reply(chatID, formatReport(summary))
}

func (t *TelegramBot) fail(chatID int64, user string, err error) {
	switch {
	case errors.Is(err, food.ErrEntryNotFound):
		t.reply(chatID, "Запись не найдена.")
	case errors.Is(err, food.ErrInvalidInput):
		t.reply(chatID, "Некорректный запрос.")
	default:
		t.logger.Errorw("command failed", "user_id", user, "error", err)
		t.reply(chatID, "Извините, произошла ошибка. Попробуйте позже.")
	}
}
