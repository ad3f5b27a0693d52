package layouts

import (
	"strings"

	"github.com/a-h/templ"
)

// Markup accumulates HTML. Text escapes its argument, Raw does not.
type Markup struct {
	strings.Builder
}

func (m *Markup) Raw(s string) {
	m.WriteString(s)
}

func (m *Markup) Text(s string) {
	m.WriteString(templ.EscapeString(s))
}
