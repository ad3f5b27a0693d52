package smtpsetup

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/keyxmakerx/healthcore/internal/templates/layouts"
)

// ConfigurationPage renders the SMTP configuration page: current status
// and the account list. Passwords are never part of Page.
func ConfigurationPage(p Page) templ.Component {
	return layouts.Base(layouts.Options{
		Title:       p.Context.Title,
		NoCache:     p.Context.NoCache == 1,
		ShowSidebar: p.Context.ShowSidebar,
		ShowSearch:  p.Context.ShowSearch,
	}, configurationBody(p))
}

func configurationBody(p Page) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var m layouts.Markup
		m.Raw(`<h1>`)
		m.Text(p.Context.Title)
		m.Raw(`</h1>`)

		writeStatus(&m, p.Status)
		writeAccounts(&m, p.Accounts)

		_, err := io.WriteString(w, m.String())
		return err
	})
}

func writeStatus(m *layouts.Markup, s StatusResult) {
	m.Raw(`<section class="smtp-status status-`)
	m.Text(s.Status)
	m.Raw(`"><p class="message">`)
	m.Text(s.Message)
	m.Raw(`</p>`)

	if d := s.AccountDetails; d != nil {
		m.Raw(`<dl>`)
		term(m, "Email Account", d.AccountName)
		term(m, "SMTP Server", d.SMTPServer)
		term(m, "SMTP Port", strconv.Itoa(d.SMTPPort))
		term(m, "From Email", d.EmailID)
		term(m, "Outgoing", yesNo(d.EnableOutgoing))
		if s.IsManaged != nil {
			term(m, "Managed", yesNo(*s.IsManaged))
		}
		m.Raw(`</dl>`)
	}
	m.Raw(`</section>`)
}

func writeAccounts(m *layouts.Markup, l ListResult) {
	m.Raw(`<section class="smtp-accounts"><h2>Email Accounts</h2>`)
	if l.Status != StatusSuccess {
		m.Raw(`<p class="error">`)
		m.Text(l.Message)
		m.Raw(`</p></section>`)
		return
	}
	if len(l.Accounts) == 0 {
		m.Raw(`<p>No email accounts.</p></section>`)
		return
	}

	m.Raw(`<table><thead><tr><th>Account</th><th>Email</th><th>Server</th><th>Port</th><th>Default</th><th>Outgoing</th></tr></thead><tbody>`)
	for _, a := range l.Accounts {
		m.Raw(`<tr><td>`)
		m.Text(a.AccountName)
		m.Raw(`</td><td>`)
		m.Text(a.EmailID)
		m.Raw(`</td><td>`)
		m.Text(a.SMTPServer)
		m.Raw(`</td><td>`)
		m.Text(strconv.Itoa(a.SMTPPort))
		m.Raw(`</td><td>`)
		m.Text(yesNo(a.DefaultOutgoing))
		m.Raw(`</td><td>`)
		m.Text(yesNo(a.EnableOutgoing))
		m.Raw(`</td></tr>`)
	}
	m.Raw(`</tbody></table></section>`)
}

func term(m *layouts.Markup, name, value string) {
	m.Raw(`<dt>`)
	m.Text(name)
	m.Raw(`</dt><dd>`)
	m.Text(value)
	m.Raw(`</dd>`)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
