package bot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/memohai/filerelay/internal/ingest"
	"github.com/memohai/filerelay/internal/routing"
	"github.com/memohai/filerelay/internal/storage"
	"github.com/memohai/filerelay/internal/telegram"
)

const (
	hintText           = "Send me a document, photo, video, audio, animation or voice message and I will return a link to it."
	unknownCommandText = "Unknown command. Use /help to see what I can do."
)

func startText(threshold, maxSize int64) string {
	var b strings.Builder
	b.WriteString("File Relay Bot\n\n")
	b.WriteString("Send me any file and I will give you a link to it.\n\n")
	fmt.Fprintf(&b, "Files up to %s are copied to object storage.\n", routing.FormatSize(threshold))
	b.WriteString("Larger files are kept in Telegram and served through a private stream link.\n")
	if maxSize > 0 {
		fmt.Fprintf(&b, "Maximum size: %s\n", routing.FormatSize(maxSize))
	}
	b.WriteString("\nUse /help for details.")
	return b.String()
}

func helpText(maxSize int64) string {
	var b strings.Builder
	b.WriteString("Commands\n")
	b.WriteString("/start - introduction\n")
	b.WriteString("/help - this message\n")
	b.WriteString("/status - relay status\n\n")
	b.WriteString("Supported messages: documents, photos, videos, audio, animations and voice notes.\n")
	if maxSize > 0 {
		fmt.Fprintf(&b, "Files up to %s are accepted.\n", routing.FormatSize(maxSize))
	}
	b.WriteString("\nIf an upload fails, try again in a few minutes.")
	return b.String()
}

func statusText(uptime time.Duration, filesStored int, objectsErr error, threshold, maxSize int64) string {
	var b strings.Builder
	b.WriteString("Relay status\n\n")
	fmt.Fprintf(&b, "Uptime: %s\n", uptime.Truncate(time.Second))
	if filesStored >= 0 {
		fmt.Fprintf(&b, "Files stored: %d\n", filesStored)
	} else {
		b.WriteString("Files stored: unavailable\n")
	}
	switch {
	case objectsErr == nil:
		b.WriteString("Object storage: connected\n")
	case errors.Is(objectsErr, storage.ErrNotConfigured):
		b.WriteString("Object storage: not configured\n")
	default:
		b.WriteString("Object storage: unreachable\n")
	}
	fmt.Fprintf(&b, "Direct transfer limit: %s\n", routing.FormatSize(threshold))
	if maxSize > 0 {
		fmt.Fprintf(&b, "Maximum size: %s\n", routing.FormatSize(maxSize))
	}
	return strings.TrimRight(b.String(), "\n")
}

func sizeLabel(size int64) string {
	if size <= 0 {
		return "unknown"
	}
	return routing.FormatSize(size)
}

func processingText(att telegram.Attachment) string {
	return fmt.Sprintf("Processing %s: %s\nSize: %s\nPlease wait…", att.Kind, att.Name, sizeLabel(att.Size))
}

func successText(res ingest.Result) string {
	var b strings.Builder
	b.WriteString("Upload successful!\n")
	fmt.Fprintf(&b, "File: %s\n", res.Name)
	fmt.Fprintf(&b, "Size: %s\n", routing.FormatSize(res.Size))
	switch res.Route {
	case routing.DirectTransfer:
		b.WriteString("Method: object storage\n")
		fmt.Fprintf(&b, "\nDownload: %s", res.Links.DownloadURL)
		if res.Links.DirectURL != "" && res.Links.DirectURL != res.Links.DownloadURL {
			fmt.Fprintf(&b, "\nView: %s", res.Links.DirectURL)
		}
	default:
		b.WriteString("Method: stream proxy\n")
		fmt.Fprintf(&b, "\nStream: %s", res.StreamURL)
		fmt.Fprintf(&b, "\nDownload: %s", res.DownloadURL)
	}
	return b.String()
}

func failureText(att telegram.Attachment, err error, maxSize int64) string {
	header := fmt.Sprintf("File: %s\nSize: %s\n", att.Name, sizeLabel(att.Size))
	switch {
	case errors.Is(err, ingest.ErrFileTooLarge):
		return "File too large!\n" + header + fmt.Sprintf("Maximum supported size: %s", routing.FormatSize(maxSize))
	case errors.Is(err, ingest.ErrSizeUnknown):
		return "Could not determine the file size.\n" + header + "Please send the file again."
	case errors.Is(err, storage.ErrNotConfigured):
		return "Upload failed!\n" + header + "Object storage is not configured on this relay."
	case errors.Is(err, ingest.ErrUpstream):
		return "Upload failed!\n" + header + "Reason: " + err.Error() + "\nPlease try again later."
	default:
		return "Error processing file.\n" + header + "Please try again later."
	}
}
