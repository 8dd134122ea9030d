package ai

import "context"

// GenerateParams параметры генерации одного ответа.
type GenerateParams struct {
	Temperature    float64
	TopP           float64
	TopK           int
	MaxTokens      int
	CandidateCount int
}

// Client интерфейс для взаимодействия с AI. Все реализации должны быть взаимозаменяемыми.
type Client interface {
	Generate(ctx context.Context, prompt string, p GenerateParams) (string, error)
}
