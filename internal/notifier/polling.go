package notifier

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// CommandHandler is called when a user command is received. An empty reply sends nothing.
type CommandHandler func(ctx context.Context, command string) string

// StartPolling long-polls for commands from the configured chat. Blocks until ctx is cancelled.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := t.bot.GetUpdatesChan(cfg)
	t.log.Info().Msg("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			t.log.Info().Msg("telegram polling stopped")
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			if upd.Message == nil || upd.Message.Chat == nil {
				continue
			}
			// Only the configured chat may issue commands.
			if upd.Message.Chat.ID != t.ChatID {
				t.log.Warn().Int64("chat_id", upd.Message.Chat.ID).Msg("ignoring command from unknown chat")
				continue
			}
			cmd := strings.TrimSpace(upd.Message.Text)
			t.log.Info().Str("command", cmd).Msg("received command")
			reply := handler(ctx, cmd)
			if reply == "" {
				continue
			}
			if err := t.sendTo(upd.Message.Chat.ID, reply); err != nil {
				t.log.Error().Err(err).Msg("send command reply")
			}
		}
	}
}
