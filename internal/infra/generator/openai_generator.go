package generator

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"

	"ai-response-queue/internal/domain/model"
	"ai-response-queue/internal/domain/ports/adapter"
	"ai-response-queue/internal/domain/ports/repository"
)

// Compile-time assurance this generator satisfies the port
var _ adapter.ResponseGenerator = (*OpenAIGenerator)(nil)

// OpenAIGenerator produces replies through the Chat Completions streaming
// API. Each streamed chunk is forwarded to the caller as a content delta, and
// the finished reply is persisted to the conversation log before the result
// is reported.
type OpenAIGenerator struct {
	client   openai.Client
	model    string
	messages repository.MessageRepository
	log      *zerolog.Logger
}

func NewOpenAIGenerator(apiKey, model string, messages repository.MessageRepository, log *zerolog.Logger) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIGenerator{
		client:   openai.NewClient(option.WithAPIKey(apiKey)),
		model:    model,
		messages: messages,
		log:      log,
	}, nil
}

// personality 0..3 maps onto sampling temperature, conservative to playful.
var personalityTemperature = [...]float64{0.2, 0.5, 0.8, 1.1}

func (g *OpenAIGenerator) Generate(ctx context.Context, req adapter.GenerationRequest, onUpdate adapter.UpdateFunc) (adapter.GenerationResult, error) {
	history := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case model.RoleAssistant:
			history = append(history, openai.AssistantMessage(m.Content))
		default:
			history = append(history, openai.UserMessage(m.Content))
		}
	}

	if tokens := g.countPromptTokens(req.Messages); tokens > 0 {
		g.log.Debug().Int("prompt_tokens", tokens).Str("conversation_id", req.ConversationID).Msg("prompt sized")
	}

	temp := personalityTemperature[model.PersonalityDefault]
	if req.Parameters.Personality >= 0 && req.Parameters.Personality < len(personalityTemperature) {
		temp = personalityTemperature[req.Parameters.Personality]
	}

	stream := g.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:       g.model,
		Messages:    history,
		Temperature: openai.Float(temp),
	})

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		if len(chunk.Choices) > 0 {
			onUpdate(model.ContentDelta{Text: chunk.Choices[0].Delta.Content})
		}
	}
	if err := stream.Err(); err != nil {
		onUpdate(model.UpdateFailure{Message: err.Error()})
		return adapter.GenerationResult{Success: false, Error: err.Error()}, err
	}

	if len(acc.Choices) == 0 || acc.Choices[0].Message.Content == "" {
		err := errors.New("no completion content")
		onUpdate(model.UpdateFailure{Message: err.Error()})
		return adapter.GenerationResult{Success: false, Error: err.Error()}, err
	}
	reply := acc.Choices[0].Message.Content

	msg, err := model.NewConversationMessage(req.TenantID, req.WorkspaceID, req.ConversationID, model.RoleAssistant, reply)
	if err != nil {
		return adapter.GenerationResult{Success: false, Error: err.Error()}, err
	}
	if err := g.messages.SaveMessage(ctx, nil, msg); err != nil {
		err = fmt.Errorf("save assistant message: %w", err)
		onUpdate(model.UpdateFailure{Message: err.Error()})
		return adapter.GenerationResult{Success: false, Error: err.Error()}, err
	}
	onUpdate(model.MessageSaved{MessageID: msg.ID})

	return adapter.GenerationResult{Success: true, MessagesSaved: 1}, nil
}

func (g *OpenAIGenerator) countPromptTokens(messages []model.Message) int {
	enc, err := tiktoken.EncodingForModel(g.model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return 0
		}
	}
	total := 0
	for _, m := range messages {
		total += len(enc.Encode(m.Content, nil, nil))
	}
	return total
}
