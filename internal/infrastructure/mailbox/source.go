// Package mailbox reads newsletter emails from a directory of RFC 822 files.
package mailbox

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/encoding/htmlindex"

	"NewsletterScanner/internal/domain"
	"NewsletterScanner/internal/ports"
)

const maxMessageBytes = 20 << 20

// Source implements ports.MessageSource over a directory of .eml files.
type Source struct {
	dir     string
	senders map[string]bool
	logger  *slog.Logger
}

var _ ports.MessageSource = (*Source)(nil)

// NewSource lists dir. Only mail from senders is returned; an empty sender
// list accepts everyone.
func NewSource(dir string, senders []string, logger *slog.Logger) *Source {
	set := make(map[string]bool, len(senders))
	for _, s := range senders {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			set[s] = true
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		dir:     dir,
		senders: set,
		logger:  logger.With("component", "mailbox"),
	}
}

// FetchSince returns every monitored message received after since, oldest
// first. Files that cannot be parsed are logged and skipped.
func (s *Source) FetchSince(ctx context.Context, since time.Time) ([]domain.RawMessage, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list mailbox %s: %w", s.dir, err)
	}

	var out []domain.RawMessage
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".eml") {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		msg, err := ParseFile(path)
		if err != nil {
			s.logger.Warn("skip unreadable message", "file", entry.Name(), "error", err)
			continue
		}
		if !s.monitored(msg.Sender) {
			continue
		}
		if !since.IsZero() && !msg.ReceivedAt.After(since) {
			continue
		}
		out = append(out, msg)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ReceivedAt.Before(out[j].ReceivedAt)
	})
	s.logger.Debug("mailbox scanned", "files", len(entries), "messages", len(out))
	return out, nil
}

func (s *Source) monitored(sender string) bool {
	if len(s.senders) == 0 {
		return true
	}
	addr, err := mail.ParseAddress(sender)
	if err != nil {
		return s.senders[strings.ToLower(strings.TrimSpace(sender))]
	}
	return s.senders[strings.ToLower(addr.Address)]
}

// ParseFile reads one .eml file. The message id falls back to the file name
// and the received time to the file modification time.
func ParseFile(path string) (domain.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.RawMessage{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	msg, err := Parse(io.LimitReader(f, maxMessageBytes))
	if err != nil {
		return domain.RawMessage{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if msg.ID == "" {
		msg.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if msg.ReceivedAt.IsZero() {
		if info, statErr := f.Stat(); statErr == nil {
			msg.ReceivedAt = info.ModTime()
		}
	}
	return msg, nil
}

// Parse decodes headers and picks the body, preferring HTML over plain text.
func Parse(r io.Reader) (domain.RawMessage, error) {
	m, err := mail.ReadMessage(r)
	if err != nil {
		return domain.RawMessage{}, fmt.Errorf("read message: %w", err)
	}

	decoder := mime.WordDecoder{CharsetReader: charsetReader}
	decodeHeader := func(key string) string {
		raw := m.Header.Get(key)
		if out, err := decoder.DecodeHeader(raw); err == nil {
			return strings.TrimSpace(out)
		}
		return strings.TrimSpace(raw)
	}

	msg := domain.RawMessage{
		ID:      strings.TrimSpace(m.Header.Get("Message-Id")),
		Sender:  decodeHeader("From"),
		Subject: decodeHeader("Subject"),
	}
	if date, err := m.Header.Date(); err == nil {
		msg.ReceivedAt = date
	}

	var parts bodyParts
	if err := parts.collect(m.Header.Get("Content-Type"), m.Header.Get("Content-Transfer-Encoding"), m.Body); err != nil {
		return domain.RawMessage{}, err
	}
	if parts.html != "" {
		msg.Body, msg.HTML = parts.html, true
	} else {
		msg.Body = parts.plain
	}
	return msg, nil
}

type bodyParts struct {
	html  string
	plain string
}

func (b *bodyParts) collect(contentType, encoding string, body io.Reader) error {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType, params = "text/plain", map[string]string{}
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return fmt.Errorf("multipart body without boundary")
		}
		mr := multipart.NewReader(body, boundary)
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read part: %w", err)
			}
			if err := b.collect(part.Header.Get("Content-Type"), part.Header.Get("Content-Transfer-Encoding"), part); err != nil {
				return err
			}
		}
	}

	if mediaType != "text/html" && mediaType != "text/plain" {
		return nil
	}
	if (mediaType == "text/html" && b.html != "") || (mediaType == "text/plain" && b.plain != "") {
		return nil
	}

	text, err := decodeText(body, encoding, params["charset"])
	if err != nil {
		return err
	}
	if mediaType == "text/html" {
		b.html = text
	} else {
		b.plain = text
	}
	return nil
}

func decodeText(body io.Reader, encoding, charset string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		body = quotedprintable.NewReader(body)
	case "base64":
		body = base64.NewDecoder(base64.StdEncoding, body)
	}

	if charset != "" && !strings.EqualFold(charset, "utf-8") && !strings.EqualFold(charset, "us-ascii") {
		if decoded, err := charsetReader(charset, body); err == nil {
			body = decoded
		}
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("decode body: %w", err)
	}
	return string(raw), nil
}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q: %w", charset, err)
	}
	return enc.NewDecoder().Reader(input), nil
}
