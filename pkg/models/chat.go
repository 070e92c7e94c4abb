package models

// ChatMessage is the narrow capability a transcript message must expose to be
// archivable. Any message type from the chat collaborator satisfies it.
type ChatMessage interface {
	Role() string
	Content() string
}
