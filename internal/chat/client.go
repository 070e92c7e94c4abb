// Package chat defines the seam to the remote chat-completion collaborator
// and the glue that archives finished conversations. The completion service
// itself lives outside this codebase.
package chat

import (
	"errors"

	"songbook/internal/archive"
	"songbook/pkg/models"

	"github.com/sirupsen/logrus"
)

// Errors a Client implementation reports. They surface to the UI as
// user-facing text; this layer only routes them.
var (
	ErrBadCredentials = errors.New("chat: invalid credentials")
	ErrNetwork        = errors.New("chat: network failure")
	ErrMalformedReply = errors.New("chat: malformed reply")
)

// Client sends a conversation and returns the assistant reply.
type Client interface {
	Send(messages []models.ChatMessage) (string, error)
}

// Message is the transcript message type used by conversations started here.
// Collaborators with their own message types only need to satisfy
// models.ChatMessage.
type Message struct {
	MsgRole string `json:"role"`
	Text    string `json:"content"`
}

// Role returns the message role.
func (m Message) Role() string { return m.MsgRole }

// Content returns the message text.
func (m Message) Content() string { return m.Text }

// Conversation accumulates a transcript against a Client.
type Conversation struct {
	client   Client
	messages []models.ChatMessage
	logger   *logrus.Logger
}

// NewConversation starts a conversation, optionally seeded with a system
// prompt (ignored when empty).
func NewConversation(client Client, systemPrompt string) *Conversation {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	c := &Conversation{
		client: client,
		logger: logger,
	}
	if systemPrompt != "" {
		c.messages = append(c.messages, Message{MsgRole: "system", Text: systemPrompt})
	}
	return c
}

// Say appends the user message, sends the conversation, and appends the
// assistant reply. On error the user message is rolled back so a retry does
// not duplicate it.
func (c *Conversation) Say(text string) (string, error) {
	c.messages = append(c.messages, Message{MsgRole: "user", Text: text})

	reply, err := c.client.Send(c.messages)
	if err != nil {
		c.messages = c.messages[:len(c.messages)-1]
		c.logger.WithError(err).Warn("Chat completion failed")
		return "", err
	}

	c.messages = append(c.messages, Message{MsgRole: "assistant", Text: reply})
	return reply, nil
}

// Messages returns the transcript so far.
func (c *Conversation) Messages() []models.ChatMessage {
	return c.messages
}

// Finish archives the transcript into the project. A conversation that never
// produced any messages is not archived.
func (c *Conversation) Finish(mgr *archive.Manager, p *models.Project) error {
	if len(c.messages) == 0 {
		return nil
	}
	return mgr.ArchiveConversation(c.messages, p)
}
