package notify

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"go.uber.org/zap"
)

// Telegram pushes transition events to an operations chat. The coaching staff
// watch this channel for same-day cancellations and promotions.
type Telegram struct {
	bot    *bot.Bot
	chatID int64
	logger *zap.Logger
}

func NewTelegram(token string, chatID int64, logger *zap.Logger) (*Telegram, error) {
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &Telegram{
		bot:    b,
		chatID: chatID,
		logger: logger,
	}, nil
}

func (t *Telegram) Notify(ctx context.Context, event Event) error {
	_, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: t.chatID,
		Text:   formatEvent(event),
	})
	if err != nil {
		return fmt.Errorf("send telegram notification: %w", err)
	}

	t.logger.Debug("Notification sent",
		zap.String("event_id", event.ID.String()),
		zap.String("kind", string(event.Kind)),
	)

	return nil
}

func formatEvent(event Event) string {
	switch event.Kind {
	case EventReserved:
		return fmt.Sprintf("Lesson %s reserved: slot %d, member %d, trainer %d",
			event.LessonTime, event.ScheduleID, event.MemberID, event.TrainerID)
	case EventCancelled:
		return fmt.Sprintf("Lesson %s cancelled: slot %d, member %d, trainer %d",
			event.LessonTime, event.ScheduleID, event.MemberID, event.TrainerID)
	case EventPromoted:
		return fmt.Sprintf("Waiting member %d promoted into lesson %s: slot %d, trainer %d",
			event.MemberID, event.LessonTime, event.ScheduleID, event.TrainerID)
	default:
		return fmt.Sprintf("Lesson event %s: slot %d, member %d", event.Kind, event.ScheduleID, event.MemberID)
	}
}
