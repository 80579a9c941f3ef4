// Package bot turns chat updates into ingest requests and user-facing replies.
package bot

import (
	"context"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/memohai/filerelay/internal/files"
	"github.com/memohai/filerelay/internal/ingest"
	"github.com/memohai/filerelay/internal/storage"
	"github.com/memohai/filerelay/internal/telegram"
)

// Messenger sends and edits plain text chat messages.
type Messenger interface {
	Reply(ctx context.Context, chatID int64, replyTo int, text string) (int, error)
	Edit(ctx context.Context, chatID int64, messageID int, text string) error
}

// Ingester is the part of the ingest orchestrator the processor drives.
type Ingester interface {
	Ingest(ctx context.Context, ev ingest.Event) (ingest.Result, error)
	Threshold() int64
	MaxFileSize() int64
}

// Processor handles one update at a time; it is safe for concurrent use.
type Processor struct {
	messenger Messenger
	ingester  Ingester
	store     files.Store
	objects   storage.Pinger
	logger    *slog.Logger
	started   time.Time
}

// NewProcessor creates a processor. objects may be nil when object storage is disabled.
func NewProcessor(log *slog.Logger, messenger Messenger, ingester Ingester, store files.Store, objects storage.Pinger) *Processor {
	if log == nil {
		log = slog.Default()
	}
	if objects == nil {
		objects = storage.Unconfigured{}
	}
	return &Processor{
		messenger: messenger,
		ingester:  ingester,
		store:     store,
		objects:   objects,
		logger:    log.With(slog.String("component", "bot")),
		started:   time.Now(),
	}
}

// HandleUpdate processes commands and file messages; other updates are ignored.
func (p *Processor) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return nil
	}
	if msg.IsCommand() {
		return p.handleCommand(ctx, msg)
	}
	att, ok := telegram.AttachmentFromMessage(msg)
	if !ok {
		if strings.TrimSpace(msg.Text) == "" {
			return nil
		}
		_, err := p.messenger.Reply(ctx, msg.Chat.ID, msg.MessageID, hintText)
		return err
	}
	return p.handleFile(ctx, msg, att)
}

func (p *Processor) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	var text string
	switch strings.ToLower(msg.Command()) {
	case "start":
		text = startText(p.ingester.Threshold(), p.ingester.MaxFileSize())
	case "help":
		text = helpText(p.ingester.MaxFileSize())
	case "status":
		text = p.statusText(ctx)
	default:
		text = unknownCommandText
	}
	_, err := p.messenger.Reply(ctx, msg.Chat.ID, msg.MessageID, text)
	return err
}

func (p *Processor) handleFile(ctx context.Context, msg *tgbotapi.Message, att telegram.Attachment) error {
	chatID := msg.Chat.ID
	owner := chatID
	if msg.From != nil {
		owner = msg.From.ID
	}
	log := p.logger.With(
		slog.Int64("chat_id", chatID),
		slog.String("kind", att.Kind),
		slog.String("name", att.Name),
	)

	statusID, err := p.messenger.Reply(ctx, chatID, msg.MessageID, processingText(att))
	if err != nil {
		log.Warn("send processing reply failed", slog.Any("error", err))
		statusID = 0
	}

	res, err := p.ingester.Ingest(ctx, ingest.Event{
		ContentRef: att.FileID,
		Name:       att.Name,
		MimeType:   att.MimeType,
		OwnerID:    owner,
		Size:       att.Size,
		Origin:     ingest.Origin{ChatID: chatID, MessageID: msg.MessageID},
	})
	var text string
	if err != nil {
		log.Warn("ingest failed", slog.Any("error", err))
		text = failureText(att, err, p.ingester.MaxFileSize())
	} else {
		log.Info("file relayed", slog.String("route", res.Route.String()), slog.Int64("size", res.Size))
		text = successText(res)
	}
	return p.deliver(ctx, chatID, msg.MessageID, statusID, text)
}

// deliver edits the processing reply in place, falling back to a new reply.
func (p *Processor) deliver(ctx context.Context, chatID int64, replyTo, statusID int, text string) error {
	if statusID != 0 {
		err := p.messenger.Edit(ctx, chatID, statusID, text)
		if err == nil {
			return nil
		}
		p.logger.Warn("edit reply failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
	_, err := p.messenger.Reply(ctx, chatID, replyTo, text)
	return err
}

func (p *Processor) statusText(ctx context.Context) string {
	count, err := p.store.Count(ctx)
	if err != nil {
		p.logger.Warn("count files failed", slog.Any("error", err))
		count = -1
	}
	objectsErr := p.objects.Ping(ctx)
	return statusText(time.Since(p.started), count, objectsErr, p.ingester.Threshold(), p.ingester.MaxFileSize())
}
