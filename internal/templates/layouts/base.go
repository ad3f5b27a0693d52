package layouts

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// Options controls the page shell.
type Options struct {
	Title       string
	NoCache     bool
	ShowSidebar bool
	ShowSearch  bool
}

// Base wraps body in the HTML document shell. The CSRF token is exposed as
// a meta tag so scripts can send it in the X-CSRF-Token header.
func Base(opts Options, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b Markup
		b.Raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		b.Raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		if opts.NoCache {
			b.Raw(`<meta http-equiv="Cache-Control" content="no-store">`)
		}
		if token := GetCSRFToken(ctx); token != "" {
			b.Raw(`<meta name="csrf-token" content="`)
			b.Text(token)
			b.Raw(`">`)
		}
		b.Raw(`<title>`)
		b.Text(opts.Title)
		b.Raw(`</title></head><body>`)

		if opts.ShowSidebar {
			b.Raw(`<nav class="sidebar"><a href="/smtp-configuration"`)
			if GetActivePath(ctx) == "/smtp-configuration" {
				b.Raw(` class="active"`)
			}
			b.Raw(`>SMTP Configuration</a>`)
			if IsAuthenticated(ctx) {
				b.Raw(`<span class="user">`)
				b.Text(GetUserEmail(ctx))
				b.Raw(`</span>`)
			}
			b.Raw(`</nav>`)
		}
		if opts.ShowSearch {
			b.Raw(`<form class="search" role="search"><input type="search" name="q"></form>`)
		}

		b.Raw(`<main>`)
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</main></body></html>`)
		return err
	})
}
