package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/polywatch/internal/logger"
)

// Commander is the control surface the bot exposes over chat commands.
type Commander interface {
	StatusText() string
	Pause()
	Resume()
	ExportCSV() ([]byte, error)
}

// TelegramClient delivers alerts to a Telegram chat and serves bot commands.
type TelegramClient struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewTelegramClient creates a Telegram client bound to one chat.
func NewTelegramClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*TelegramClient, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &TelegramClient{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// SendAlerts delivers a batch of alerts as a single message.
func (c *TelegramClient) SendAlerts(alerts []Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	return c.sendMarkdown(formatAlerts(alerts))
}

// SendStatus delivers a plain status message, escaped for MarkdownV2.
func (c *TelegramClient) SendStatus(text string) error {
	return c.sendMarkdown(escapeMarkdownV2(text))
}

// SendDocument delivers a file attachment, used for /export.
func (c *TelegramClient) SendDocument(name string, data []byte) error {
	doc := tgbotapi.NewDocument(c.chatID, tgbotapi.FileBytes{Name: name, Bytes: data})

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(doc)
		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed to send document after %d retries: %w", c.maxRetries, lastErr)
}

func (c *TelegramClient) sendMarkdown(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// ListenCommands serves bot commands until ctx is cancelled. Commands from
// other chats are ignored.
func (c *TelegramClient) ListenCommands(ctx context.Context, cmd Commander) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30
	updates := c.bot.GetUpdatesChan(updateConfig)

	for {
		select {
		case <-ctx.Done():
			c.bot.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || update.Message.Chat.ID != c.chatID {
				continue
			}
			c.handleCommand(update.Message.Command(), cmd)
		}
	}
}

func (c *TelegramClient) handleCommand(command string, cmd Commander) {
	switch command {
	case "status":
		if err := c.SendStatus(cmd.StatusText()); err != nil {
			logger.Warn("Failed to send status: %v", err)
		}
	case "pause":
		cmd.Pause()
		if err := c.SendStatus("Auto-refresh paused"); err != nil {
			logger.Warn("Failed to confirm pause: %v", err)
		}
	case "resume":
		cmd.Resume()
		if err := c.SendStatus("Auto-refresh resumed"); err != nil {
			logger.Warn("Failed to confirm resume: %v", err)
		}
	case "export":
		data, err := cmd.ExportCSV()
		if err != nil {
			logger.Warn("Export failed: %v", err)
			_ = c.SendStatus("Export failed: " + err.Error())
			return
		}
		name := "markets-" + time.Now().Format("20060102-150405") + ".csv"
		if err := c.SendDocument(name, data); err != nil {
			logger.Warn("Failed to send export: %v", err)
		}
	}
}

// formatAlerts renders alerts as a MarkdownV2 message with one line per
// alert and a clickable market link when a slug is known.
func formatAlerts(alerts []Alert) string {
	var b strings.Builder
	b.WriteString("\U0001F6A8 *Market Alerts*\n\n")

	for i, alert := range alerts {
		var title string
		if alert.Slug != "" {
			title = fmt.Sprintf("[%s](https://polymarket.com/event/%s)", escapeMarkdownV2(alert.Question), alert.Slug)
		} else {
			title = escapeMarkdownV2(alert.Question)
		}
		b.WriteString(fmt.Sprintf("%d\\. %s\n", i+1, title))

		switch alert.Kind {
		case KindPriceMove:
			emoji := "\U0001F4C8"
			if alert.Percent < 0 {
				emoji = "\U0001F4C9"
			}
			detail := fmt.Sprintf("%+.1f%% (now %s%%)", alert.Percent, humanize.FtoaWithDigits(alert.YesPrice*100, 0))
			b.WriteString(fmt.Sprintf("   %s %s\n", emoji, escapeMarkdownV2(detail)))
		case KindExpiringHour:
			b.WriteString("   ⏰ " + escapeMarkdownV2("Resolves in under 1 hour") + "\n")
		case KindExpiringTenMin:
			b.WriteString("   ⏰ " + escapeMarkdownV2("Resolves in under 10 minutes") + "\n")
		}
		b.WriteString("\n")
	}

	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
