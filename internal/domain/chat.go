package domain

// Role identifies the author of a chat entry as the OpenAI wire format
// expects it.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Entry is a single message in a chat log.
type Entry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Log is an ordered chat transcript sent to the completion API.
type Log []Entry

// Add appends an entry and returns the extended log.
func (l Log) Add(role Role, content string) Log {
	return append(l, Entry{Role: role, Content: content})
}

// System appends a system entry.
func (l Log) System(content string) Log {
	return l.Add(RoleSystem, content)
}

// User appends a user entry.
func (l Log) User(content string) Log {
	return l.Add(RoleUser, content)
}

// Assistant appends an assistant entry.
func (l Log) Assistant(content string) Log {
	return l.Add(RoleAssistant, content)
}

// Usage reports token consumption as returned by the completion API.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
