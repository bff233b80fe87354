package tiltbot

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const (
	// chatHistoryMaxExchanges bounds the per-user conversation memory
	chatHistoryMaxExchanges = 10

	chatSystemPrompt = "You are a friendly Discord community bot. " +
		"Keep replies short and conversational."
)

// openAIClient is the subset of the OpenAI client the chat command
// uses, extracted so tests can stub completions.
type openAIClient interface {
	CreateChatCompletion(
		ctx context.Context,
		request openai.ChatCompletionRequest,
	) (openai.ChatCompletionResponse, error)
}

// chatHistory is one user's recent exchanges, oldest first
type chatHistory struct {
	messages []openai.ChatCompletionMessage
	limiter  *rate.Limiter
}

// ChatHandler answers the /chat command with an OpenAI completion,
// keeping a short per-user conversation history so follow-up prompts
// have context. Each user gets their own rate limit.
type ChatHandler struct {
	bot    *TiltBot
	logger *slog.Logger

	client openAIClient
	config *OpenAIConfig

	mu        sync.Mutex
	histories map[string]*chatHistory
}

func newChatHandler(t *TiltBot, config *OpenAIConfig) *ChatHandler {
	return &ChatHandler{
		bot:       t,
		config:    config,
		client:    openai.NewClient(config.Token),
		histories: map[string]*chatHistory{},
		logger: t.logger.With(
			slog.String(loggerNameKey, "chat"),
		),
	}
}

func (c *ChatHandler) historyFor(userID string) *chatHistory {
	c.mu.Lock()
	defer c.mu.Unlock()
	history, ok := c.histories[userID]
	if !ok {
		perMinute := c.config.MaxRequestsPerMinute
		if perMinute <= 0 {
			perMinute = DefaultOpenAIMaxRequestsPerMinute
		}
		history = &chatHistory{
			limiter: rate.NewLimiter(
				rate.Limit(float64(perMinute)/60.0),
				1,
			),
		}
		c.histories[userID] = history
	}
	return history
}

// handleCommand answers a /chat interaction. The response is deferred
// first, since completions regularly take longer than Discord's 3
// second interaction deadline.
func (c *ChatHandler) handleCommand(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) {
	var userID string
	switch {
	case i.Member != nil && i.Member.User != nil:
		userID = i.Member.User.ID
	case i.User != nil:
		userID = i.User.ID
	default:
		return
	}
	logger := c.logger.With(
		"user_id", userID,
		"interaction_id", i.ID,
	)

	if !c.bot.RuntimeConfig().ChatEnabled {
		c.bot.respondEphemeral(
			WithLogger(ctx, logger), i, "Chat is currently disabled.",
		)
		return
	}

	opts := discordInteractionOptions(i)
	promptOpt, ok := opts["prompt"]
	if !ok {
		return
	}
	prompt, _ := promptOpt.Value.(string)

	history := c.historyFor(userID)
	if !history.limiter.Allow() {
		c.bot.respondEphemeral(
			WithLogger(ctx, logger), i,
			"You're chatting too fast, give me a minute.",
		)
		return
	}

	err := c.bot.discord.session.InteractionRespond(
		i.Interaction,
		&discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		},
	)
	if err != nil {
		logger.ErrorContext(
			ctx, "error deferring interaction response", tint.Err(err),
		)
		return
	}

	reply, err := c.complete(ctx, history, prompt)
	if err != nil {
		logger.ErrorContext(ctx, "error creating completion", tint.Err(err))
		reply = "Something went wrong, try again later."
	}
	reply = truncate(reply, discordMaxMessageLength)

	_, err = c.bot.discord.session.InteractionResponseEdit(
		i.Interaction,
		&discordgo.WebhookEdit{Content: &reply},
	)
	if err != nil {
		logger.ErrorContext(
			ctx, "error editing interaction response", tint.Err(err),
		)
	}
}

// complete runs one completion, appending the exchange to the user's
// history and trimming it to the last chatHistoryMaxExchanges.
func (c *ChatHandler) complete(
	ctx context.Context,
	history *chatHistory,
	prompt string,
) (string, error) {
	c.mu.Lock()
	messages := make(
		[]openai.ChatCompletionMessage, 0, len(history.messages)+2,
	)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: chatSystemPrompt,
	})
	messages = append(messages, history.messages...)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})
	c.mu.Unlock()

	response, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:    c.config.Model,
			Messages: messages,
		},
	)
	if err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", nil
	}
	reply := response.Choices[0].Message.Content

	c.mu.Lock()
	history.messages = append(
		history.messages,
		openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: prompt,
		},
		openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleAssistant,
			Content: reply,
		},
	)
	if excess := len(history.messages) - 2*chatHistoryMaxExchanges; excess > 0 {
		history.messages = history.messages[excess:]
	}
	c.mu.Unlock()
	return reply, nil
}
