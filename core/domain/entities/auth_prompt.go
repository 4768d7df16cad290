package entities

// AuthPrompt represents a prompt-response pair during login
type AuthPrompt struct {
	WaitFor string // prompt to wait for
	SendCmd string // line to send once the prompt is seen
	Secret  bool   // SendCmd must never be logged
}
