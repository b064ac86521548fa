package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Brownie44l1/fer-classifier/internal/classifier"
	"github.com/Brownie44l1/fer-classifier/internal/emotion"
	"github.com/Brownie44l1/fer-classifier/internal/presentation"
	"github.com/Brownie44l1/fer-classifier/internal/source"
)

const (
	helpText = "Send me a photo of a face and I will tell you which emotion it shows.\nCommands: /start, /health"

	defaultMaxPhotoBytes = 10 << 20
)

var errPhotoTooLarge = errors.New("photo too large")

// Bot is the part of tgbotapi.BotAPI the router uses.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

type Classifier interface {
	ClassifyBytes(ctx context.Context, src source.Kind, data []byte) (*classifier.Outcome, error)
}

type Router struct {
	Bot        Bot
	Classifier Classifier
	HTTPClient *http.Client
	Logger     *zap.Logger

	MaxPhotoBytes int64
}

func NewRouter(bot Bot, c Classifier, logger *zap.Logger) *Router {
	return &Router{
		Bot:           bot,
		Classifier:    c,
		HTTPClient:    &http.Client{Timeout: 30 * time.Second},
		Logger:        logger.Named("telegram"),
		MaxPhotoBytes: defaultMaxPhotoBytes,
	}
}

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message == nil {
		return
	}
	msg := upd.Message

	switch {
	case msg.IsCommand():
		r.HandleCommand(msg)
	case len(msg.Photo) > 0:
		// Telegram lists sizes smallest first.
		r.acceptPhoto(ctx, msg.Chat.ID, msg.Photo[len(msg.Photo)-1].FileID)
	case msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/"):
		r.acceptPhoto(ctx, msg.Chat.ID, msg.Document.FileID)
	default:
		r.send(msg.Chat.ID, helpText)
	}
}

func (r *Router) HandleCommand(msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	switch msg.Command() {
	case "start", "help":
		r.send(cid, helpText)
	case "health":
		r.send(cid, "OK")
	default:
		r.send(cid, "Unknown command")
	}
}

func (r *Router) acceptPhoto(ctx context.Context, chatID int64, fileID string) {
	logger := r.Logger.With(zap.Int64("chat_id", chatID))

	url, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		logger.Warn("failed to resolve photo", zap.Error(err))
		r.send(chatID, FormatReply(nil, err))
		return
	}
	data, err := r.download(ctx, url)
	if err != nil {
		logger.Warn("failed to download photo", zap.Error(err))
		r.send(chatID, FormatReply(nil, err))
		return
	}

	outcome, err := r.Classifier.ClassifyBytes(ctx, source.Gallery, data)
	if err != nil {
		logger.Warn("classification failed", zap.Error(err))
	}
	r.send(chatID, FormatReply(outcome, err))
}

func (r *Router) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download: unexpected status %s", resp.Status)
	}

	limit := r.MaxPhotoBytes
	if limit <= 0 {
		limit = defaultMaxPhotoBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errPhotoTooLarge
	}
	return data, nil
}

func (r *Router) send(chatID int64, text string) {
	if _, err := r.Bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		r.Logger.Warn("failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// FormatReply renders the dialog for an outcome as chat text. A nil outcome
// renders the error dialog.
func FormatReply(outcome *classifier.Outcome, err error) string {
	label := emotion.Error
	if outcome != nil {
		label = outcome.Label
	}
	dialog := presentation.ForLabel(label)

	var b strings.Builder
	b.WriteString(dialog.Title)
	b.WriteString("\n")
	b.WriteString(dialog.Message)
	if outcome != nil && label.IsClass() {
		fmt.Fprintf(&b, "\nConfidence: %.0f%%", outcome.Confidence*100)
	}
	if outcome != nil && outcome.Notice != "" {
		b.WriteString("\n")
		b.WriteString(outcome.Notice)
	} else if err != nil && errors.Is(err, errPhotoTooLarge) {
		b.WriteString("\nThe photo is too large.")
	}
	return b.String()
}
