package gmail

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/spigell/hh-outreach/internal/conversation"
	"github.com/spigell/hh-outreach/internal/outreach"
)

// buildMessage renders msg as an RFC 5322 message. reply, when set, threads
// the message under an earlier one.
func buildMessage(msg outreach.Message, reply *replyTarget, now time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{{Name: msg.Name, Address: msg.From}})
	h.SetAddressList("To", []*mail.Address{{Address: msg.To}})
	h.SetSubject(msg.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generate message id: %w", err)
	}

	kind := msg.Kind
	if kind == "" {
		kind = conversation.DirectionOutbound
	}
	h.Set(conversation.KindHeader, string(kind))

	if reply != nil && reply.messageID != "" {
		h.Set("In-Reply-To", reply.messageID)
		refs := strings.TrimSpace(reply.references + " " + reply.messageID)
		h.Set("References", refs)
	}

	contentType := "text/plain"
	if msg.IsHTML {
		contentType = "text/html"
	}
	h.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	h.Set("Content-Transfer-Encoding", "quoted-printable")

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	if _, err := io.WriteString(w, msg.Body); err != nil {
		return nil, fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close message: %w", err)
	}

	return buf.Bytes(), nil
}

func toRemote(msg *gmailapi.Message) conversation.RemoteMessage {
	remote := conversation.RemoteMessage{
		MessageID: msg.Id,
		ThreadID:  msg.ThreadId,
	}
	if msg.InternalDate > 0 {
		remote.InternalDate = time.UnixMilli(msg.InternalDate).UTC()
	}
	if msg.Payload == nil {
		return remote
	}

	headers := msg.Payload.Headers
	remote.From = getHeader(headers, "From")
	remote.To = getHeader(headers, "To")
	remote.Subject = decodeHeader(getHeader(headers, "Subject"))
	remote.Date = getHeader(headers, "Date")
	remote.Kind = getHeader(headers, conversation.KindHeader)
	remote.Body, remote.IsHTML = getEmailBody(msg.Payload)

	return remote
}

// getHeader matches names case-insensitively, providers differ in casing of
// Message-ID.
func getHeader(headers []*gmailapi.MessagePartHeader, name string) string {
	for _, header := range headers {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}

func decodeHeader(v string) string {
	var h mail.Header
	h.Set("Subject", v)
	decoded, err := h.Subject()
	if err != nil {
		return v
	}
	return decoded
}

// getEmailBody prefers the HTML alternative and falls back to plain text.
func getEmailBody(payload *gmailapi.MessagePart) (string, bool) {
	if payload.Body != nil && payload.Body.Data != "" && len(payload.Parts) == 0 {
		if data, err := decodeData(payload.Body.Data); err == nil {
			return data, payload.MimeType == "text/html"
		}
	}

	var htmlBody, plainBody string

	var findBody func(parts []*gmailapi.MessagePart)
	findBody = func(parts []*gmailapi.MessagePart) {
		for _, part := range parts {
			if part.Body != nil && part.Body.Data != "" && part.Filename == "" {
				switch part.MimeType {
				case "text/html":
					if data, err := decodeData(part.Body.Data); err == nil && htmlBody == "" {
						htmlBody = data
					}
				case "text/plain":
					if data, err := decodeData(part.Body.Data); err == nil && plainBody == "" {
						plainBody = data
					}
				}
			}

			if len(part.Parts) > 0 {
				findBody(part.Parts)
			}
		}
	}

	findBody(payload.Parts)

	if htmlBody != "" {
		return htmlBody, true
	}
	return plainBody, false
}

func decodeData(data string) (string, error) {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		// Gmail sometimes omits padding
		decoded, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
		if err != nil {
			return "", err
		}
	}
	return string(decoded), nil
}
