package ai

import (
	"context"
	"errors"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/responses"
	"go.uber.org/zap"
)

// OpenAIClient отправляет промпт в Responses API и возвращает текст ответа.
type OpenAIClient struct {
	client *openai.Client
	model  openai.ChatModel
	logger *zap.SugaredLogger
}

func NewOpenAIClient(client *openai.Client, model string, logger *zap.SugaredLogger) *OpenAIClient {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	m := openai.ChatModel(model)
	if model == "" {
		m = openai.ChatModelGPT4oMini
	}
	return &OpenAIClient{client: client, model: m, logger: logger}
}

func (c *OpenAIClient) Generate(ctx context.Context, prompt string, p GenerateParams) (string, error) {
	if c.client == nil {
		return "", errors.New("nil openai client")
	}
	params := responses.ResponseNewParams{
		Model: c.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: responses.ResponseInputParam{
				responses.ResponseInputItemParamOfMessage(
					responses.ResponseInputMessageContentListParam{
						{
							OfInputText: &responses.ResponseInputTextParam{
								Text: prompt,
							},
						},
					},
					responses.EasyInputMessageRoleUser,
				),
			},
		},
		Temperature: openai.Float(p.Temperature),
	}
	if p.TopP > 0 {
		params.TopP = openai.Float(p.TopP)
	}
	if p.MaxTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(p.MaxTokens))
	}
	// В Responses API нет top_k и нескольких кандидатов в одном ответе
	if p.TopK > 0 || p.CandidateCount > 1 {
		c.logger.Debugw("Параметры не поддерживаются Responses API", "top_k", p.TopK, "candidate_count", p.CandidateCount)
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return "", err
	}

	return resp.OutputText(), nil
}
