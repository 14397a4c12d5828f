package infra

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"github.com/pyama86/ticketbot/domain/model"
)

type OpenAI struct {
	client *openai.Client
}

func NewOpenAI() (*OpenAI, error) {
	if os.Getenv("OPENAI_API_KEY") == "" && os.Getenv("AZURE_OPENAI_KEY") == "" {
		return nil, nil
	}
	client, err := newOpenAIClient()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenAI client: %w", err)
	}
	return &OpenAI{
		client: client,
	}, nil
}

func newOpenAIClient() (*openai.Client, error) {
	if os.Getenv("AZURE_OPENAI_ENDPOINT") != "" {
		return newAzureClient()
	}

	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	options := []option.RequestOption{
		option.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
	}

	c := openai.NewClient(options...)
	return &c, nil
}

func newAzureClient() (*openai.Client, error) {
	key := os.Getenv("AZURE_OPENAI_KEY")
	if key == "" {
		return nil, fmt.Errorf("AZURE_OPENAI_KEY is not set")
	}
	var azureOpenAIEndpoint = os.Getenv("AZURE_OPENAI_ENDPOINT")

	var azureOpenAIAPIVersion = "2025-01-01-preview"

	if os.Getenv("AZURE_OPENAI_API_VERSION") != "" {
		azureOpenAIAPIVersion = os.Getenv("AZURE_OPENAI_API_VERSION")
	}

	c := openai.NewClient(
		azure.WithEndpoint(azureOpenAIEndpoint, azureOpenAIAPIVersion),
		azure.WithAPIKey(key),
	)
	return &c, nil
}

func (h *OpenAI) GenerateSummary(ctx context.Context, record *model.ClosureRecord, lines []model.TranscriptLine) (string, error) {
	var history strings.Builder
	for _, l := range lines {
		if l.Bot {
			continue
		}
		history.WriteString(l.String())
		history.WriteString("\n")
	}
	prompt := fmt.Sprintf(`## 依頼内容
あなたに渡すコンテンツはサポートチケットのやりとりの履歴です。
内容は日付と、発言者と、メッセージの内容です。
後からスタッフがチケットの経緯を把握するためのサマリを作ってください。

## 回答内容の指定
- 問い合わせの内容を1-2文で要約する
- スタッフがどのように対応したかを要約する
- 未解決の事項があれば列挙する
- 回答はユーザーの使用した言語で記述する

## フォーマットの指定
**Issue**
> {問い合わせの要約}

**Resolution**
> {対応の要約}

**Open items**
> {未解決の事項。なければ none}

## チケット
%s
## やりとり
%s
`,
		record.String(),
		history.String(),
	)

	response, err := h.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: os.Getenv("OPENAI_MODEL"),
	})

	if err != nil {
		return "", fmt.Errorf("failed to call OpenAI API: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("OpenAI API returned no choices")
	}

	return response.Choices[0].Message.Content, nil
}
