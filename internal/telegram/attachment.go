package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Attachment is the file carried by a message.
type Attachment struct {
	Kind     string
	FileID   string
	Name     string
	MimeType string
	Size     int64
}

// AttachmentFromMessage extracts the file of a document, photo, video, audio,
// animation or voice message. Messages without a file report false.
func AttachmentFromMessage(msg *tgbotapi.Message) (Attachment, bool) {
	if msg == nil {
		return Attachment{}, false
	}
	var att Attachment
	switch {
	case msg.Document != nil:
		att = Attachment{"document", msg.Document.FileID, msg.Document.FileName, msg.Document.MimeType, int64(msg.Document.FileSize)}
	case len(msg.Photo) > 0:
		p := largestPhoto(msg.Photo)
		att = Attachment{Kind: "photo", FileID: p.FileID, MimeType: "image/jpeg", Size: int64(p.FileSize)}
	case msg.Video != nil:
		att = Attachment{"video", msg.Video.FileID, msg.Video.FileName, msg.Video.MimeType, int64(msg.Video.FileSize)}
	case msg.Audio != nil:
		att = Attachment{"audio", msg.Audio.FileID, msg.Audio.FileName, msg.Audio.MimeType, int64(msg.Audio.FileSize)}
	case msg.Animation != nil:
		att = Attachment{"animation", msg.Animation.FileID, msg.Animation.FileName, msg.Animation.MimeType, int64(msg.Animation.FileSize)}
	case msg.Voice != nil:
		att = Attachment{Kind: "voice", FileID: msg.Voice.FileID, MimeType: msg.Voice.MimeType, Size: int64(msg.Voice.FileSize)}
	default:
		return Attachment{}, false
	}
	att.FileID = strings.TrimSpace(att.FileID)
	if att.FileID == "" {
		return Attachment{}, false
	}
	att.Name = strings.TrimSpace(att.Name)
	if att.Name == "" {
		att.Name = att.Kind + "_" + att.FileID
	}
	att.MimeType = strings.TrimSpace(att.MimeType)
	return att, true
}

func largestPhoto(items []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	best := items[0]
	for _, item := range items[1:] {
		if item.FileSize > best.FileSize {
			best = item
			continue
		}
		if item.FileSize == best.FileSize && item.Width*item.Height > best.Width*best.Height {
			best = item
		}
	}
	return best
}
