package models

import (
	"github.com/ticobot/ticobot/config"
)

// AppState is a struct that holds the state of the application
// Use cmd.NewAppState to create a new instance
type AppState struct {
	LLMProvider       LLMProvider
	EmbeddingProvider EmbeddingProvider
	DocumentStore     DocumentStore
	VectorStore       VectorStore
	AnswerCache       AnswerCache
	UsageTracker      UsageTracker
	TaskRouter        TaskRouter
	TaskPublisher     TaskPublisher
	Config            *config.Config
}
