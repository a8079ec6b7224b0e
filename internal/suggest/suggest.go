// file: internal/suggest/suggest.go
// version: 1.1.0
// guid: 5a6b7c8d-9e0f-1a2b-3c4d-5e6f7a8b9c0d

// Package suggest wraps the external text-completion endpoint behind a
// librarian persona. The service is strictly best-effort: any transport or
// service failure degrades to a fixed fallback message so the UI never sees
// a hard error from here.
package suggest

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
)

const (
	// FallbackMessage is returned whenever the completion call fails.
	FallbackMessage = "I'm having trouble connecting to the library network (API Error). Please try again later."

	// EmptyMessage is returned when the service answers with no content.
	EmptyMessage = "I couldn't think of any suggestions right now. Try asking again!"

	requestTimeout = 30 * time.Second
)

// Librarian handles AI-powered book suggestions
type Librarian struct {
	client  *openai.Client
	model   string
	enabled bool
}

// NewLibrarian creates a suggestion client. With an empty API key the
// librarian is disabled and every query gets the fallback message.
func NewLibrarian(apiKey, baseURL, model string) *Librarian {
	if apiKey == "" {
		return &Librarian{enabled: false}
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)

	if model == "" {
		model = "gpt-4o-mini"
	}

	return &Librarian{
		client:  &client,
		model:   model,
		enabled: true,
	}
}

// IsEnabled returns whether the librarian is configured
func (l *Librarian) IsEnabled() bool {
	return l.enabled
}

// Suggest answers query in the context of the user's library titles. It
// never returns an error; failures yield FallbackMessage.
func (l *Librarian) Suggest(ctx context.Context, query string, titles []string) string {
	if !l.enabled {
		return FallbackMessage
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	systemPrompt := fmt.Sprintf(`You are a knowledgeable and friendly librarian AI named Lumina.
The user has the following books in their library: [%s].

Your goal is to provide book suggestions, reading tips, or answer literary questions based on the user's library and their specific query.
Keep your answers concise, encouraging, and formatted in Markdown.
If suggesting books, provide the Title and Author and a brief reason why.`, strings.Join(titles, ", "))

	completion, err := l.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(query),
		},
		Model:       shared.ChatModel(l.model),
		Temperature: param.NewOpt(0.7),
		MaxTokens:   param.NewOpt[int64](800),
	})
	if err != nil {
		log.Printf("[WARN] suggestion service call failed: %v", err)
		return FallbackMessage
	}

	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return EmptyMessage
	}

	return completion.Choices[0].Message.Content
}
