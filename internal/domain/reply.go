package domain

// Reply is the bot's answer to a conversation. Text always holds the
// model's reply. Typeset marks replies whose math was sent to the
// rendering pipeline: their text is posted fenced, after any Pages.
// A typeset reply with no pages means rendering failed and only the
// fenced source goes out.
type Reply struct {
	Text    string
	Typeset bool
	Pages   []string // rendered PNG paths in page order
}

// HasPages reports whether the reply carries rendered images.
func (r Reply) HasPages() bool {
	return len(r.Pages) > 0
}
