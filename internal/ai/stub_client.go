package ai

import (
	"context"
	"strings"
)

// StubClient заглушка, которая не делает реальных запросов: возвращает исходный текст из промпта.
type StubClient struct {
	// Reply переопределяет ответ; nil — эхо.
	Reply func(prompt string, p GenerateParams) (string, error)
}

func NewStubClient() *StubClient { return &StubClient{} }

func (c *StubClient) Generate(ctx context.Context, prompt string, p GenerateParams) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", context.Cause(ctx)
	}
	if c.Reply != nil {
		return c.Reply(prompt, p)
	}
	return EchoInput(prompt), nil
}

// EchoInput вырезает пользовательский текст из промпта вида "...Input: <текст>\n\n<Метка>:".
func EchoInput(prompt string) string {
	const marker = "Input: "
	i := strings.LastIndex(prompt, marker)
	if i < 0 {
		return prompt
	}
	rest := prompt[i+len(marker):]
	if j := strings.LastIndex(rest, "\n\n"); j >= 0 {
		rest = rest[:j]
	}
	return rest
}
