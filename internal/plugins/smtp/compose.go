package smtp

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/samber/lo"

	"github.com/keyxmakerx/healthcore/internal/plugins/accounts"
	"github.com/keyxmakerx/healthcore/internal/sanitize"
)

// compose renders msg as a multipart/alternative RFC 5322 message sent
// from account.
func compose(account *accounts.EmailAccount, msg Mail, now time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(now)
	h.SetSubject(msg.Subject)
	h.SetAddressList("From", []*mail.Address{{Name: account.AccountName, Address: account.EmailID}})
	h.SetAddressList("To", lo.Map(msg.To, func(addr string, _ int) *mail.Address {
		return &mail.Address{Address: addr}
	}))
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generating message id: %w", err)
	}
	if msg.ReferenceDoctype != "" {
		h.Set("X-Reference-Doctype", msg.ReferenceDoctype)
	}
	if msg.ReferenceName != "" {
		h.Set("X-Reference-Name", msg.ReferenceName)
	}

	text := msg.TextBody
	if text == "" {
		text = textFromHTML(msg.HTMLBody)
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}

	alt, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("creating inline part: %w", err)
	}
	if err := writePart(alt, "text/plain", text); err != nil {
		return nil, err
	}
	if err := writePart(alt, "text/html", msg.HTMLBody); err != nil {
		return nil, err
	}
	if err := alt.Close(); err != nil {
		return nil, fmt.Errorf("closing inline part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing message: %w", err)
	}

	return buf.Bytes(), nil
}

func writePart(alt *mail.InlineWriter, contentType, body string) error {
	var ph mail.InlineHeader
	ph.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	w, err := alt.CreatePart(ph)
	if err != nil {
		return fmt.Errorf("creating %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return fmt.Errorf("writing %s part: %w", contentType, err)
	}
	return w.Close()
}

// textFromHTML produces a plain-text fallback: paragraph and line breaks
// become newlines, all other markup is dropped.
func textFromHTML(s string) string {
	r := strings.NewReplacer("</p>", "\n", "<br>", "\n", "<br/>", "\n", "</li>", "\n", "</h1>", "\n", "</h2>", "\n", "</h3>", "\n")
	text := html.UnescapeString(sanitize.Text(r.Replace(s)))
	lines := lo.FilterMap(strings.Split(text, "\n"), func(line string, _ int) (string, bool) {
		line = strings.TrimSpace(line)
		return line, line != ""
	})
	return strings.Join(lines, "\n")
}
