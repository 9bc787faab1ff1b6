package services

import (
	"context"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/analyzer"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/events"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/models"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/repository"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/utils"
)

const (
	chatSystemPrompt = "你是一位专业的医疗健康助手。请简明扼要地回答用户的问题。"
	chatMaxTokens    = 4096
	chatContextSize  = 10

	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatService interface {
	// Send stores the user message and an empty assistant reply, then
	// streams the reply in the background. The returned ID is the reply.
	Send(ctx context.Context, message string) (*models.AcceptedResponse, error)
	History(ctx context.Context, limit, offset int) ([]models.ChatMessage, error)
	Clear(ctx context.Context) error
}

type chatService struct {
	*Deps
}

func NewChatService(d *Deps) ChatService {
	return &chatService{Deps: d}
}

func (s *chatService) Send(ctx context.Context, message string) (*models.AcceptedResponse, error) {
	if strings.TrimSpace(message) == "" {
		return nil, utils.NewBadRequestError("Message is required")
	}

	var (
		recent []models.ChatMessage
		cfg    aiConfig
	)
	err := s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		var err error
		if cfg, err = s.loadAIConfig(ctx, tx); err != nil {
			return err
		}
		recent, err = tx.RecentChat(ctx, chatContextSize)
		return err
	})
	if err := s.wrap(err, "Failed to prepare chat"); err != nil {
		return nil, err
	}

	completer, err := s.newCompleter(cfg)
	if err != nil {
		return nil, err
	}

	user := &models.ChatMessage{ID: utils.GenerateID(), Role: RoleUser, Content: message}
	reply := &models.ChatMessage{ID: utils.GenerateID(), Role: RoleAssistant}
	err = s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		if err := tx.InsertChatMessage(ctx, user); err != nil {
			return err
		}
		return tx.InsertChatMessage(ctx, reply)
	})
	if err := s.wrap(err, "Failed to save chat message"); err != nil {
		return nil, err
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(recent)+2)
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: chatSystemPrompt})
	for _, m := range recent {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message})

	id := reply.ID
	if err := s.Queue.Submit("chat:"+id, func(jobCtx context.Context) error {
		return s.run(jobCtx, completer, id, messages)
	}); err != nil {
		s.publish(ctx, events.ChatStreamError, events.Failure{ID: id, Error: err.Error()})
		return nil, submitError(err)
	}
	return &models.AcceptedResponse{ID: id, Message: "Chat started"}, nil
}

func (s *chatService) run(ctx context.Context, c analyzer.Completer, id string, messages []openai.ChatCompletionMessage) error {
	content, err := c.Stream(ctx, messages, chatMaxTokens, func(fragment string) {
		s.Metrics.StreamFragments.WithLabelValues("chat").Inc()
		s.publish(ctx, events.ChatStreamChunk, events.Chunk{ID: id, Text: fragment})
	})

	bg := background(ctx)
	if err != nil && content == "" {
		s.Logger.Error("Chat failed", "message_id", id, "error", err)
		s.publish(bg, events.ChatStreamError, events.Failure{ID: id, Error: err.Error()})
		return err
	}

	if saveErr := s.Store.WithTx(bg, func(tx *repository.Tx) error {
		return tx.UpdateChatMessage(bg, id, content)
	}); saveErr != nil {
		s.Logger.Error("Failed to save chat reply", "message_id", id, "error", saveErr)
	}
	s.publish(bg, events.ChatStreamDone, events.StreamDone{ID: id, Content: content})
	return err
}

func (s *chatService) History(ctx context.Context, limit, offset int) ([]models.ChatMessage, error) {
	if limit < 1 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	var msgs []models.ChatMessage
	err := s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		var err error
		msgs, err = tx.ChatHistory(ctx, limit, offset)
		return err
	})
	if err := s.wrap(err, "Failed to load chat history"); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (s *chatService) Clear(ctx context.Context) error {
	err := s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		return tx.ClearChat(ctx)
	})
	return s.wrap(err, "Failed to clear chat history")
}
