package mailer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
)

type Message struct {
	To      string
	ToName  string
	Subject string
	Body    string // plain text
}

// Compose renders msg as a UTF-8 plain-text MIME message. The returned id is
// the Message-ID without angle brackets.
func Compose(from, fromName string, msg Message, at time.Time) (raw []byte, id string, err error) {
	if strings.TrimSpace(msg.To) == "" {
		return nil, "", errors.New("recipient is empty")
	}
	id = uuid.NewString() + "@" + domainOf(from)

	var h mail.Header
	h.SetDate(at)
	h.SetAddressList("From", []*mail.Address{{Name: fromName, Address: from}})
	h.SetAddressList("To", []*mail.Address{{Name: msg.ToName, Address: msg.To}})
	h.SetSubject(msg.Subject)
	h.SetMessageID(id)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, "", fmt.Errorf("create mime writer: %w", err)
	}
	if _, err := io.WriteString(w, msg.Body); err != nil {
		return nil, "", fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close mime writer: %w", err)
	}
	return buf.Bytes(), id, nil
}

func domainOf(addr string) string {
	if i := strings.LastIndexByte(addr, '@'); i >= 0 && i < len(addr)-1 {
		return addr[i+1:]
	}
	return "talentmarket.local"
}
