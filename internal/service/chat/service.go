package chat

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/driroane/llamachat/internal/model/chat"
	"github.com/driroane/llamachat/internal/service/prompt"
	"github.com/driroane/llamachat/internal/service/session"
)

var (
	ErrEmptyMessage    = errors.New("message must not be empty")
	ErrSessionNotFound = errors.New("session not found")
)

// Generator is the slice of the inference client the orchestrator
// needs. Tests substitute a fake here.
type Generator interface {
	Generate(ctx context.Context, req chat.GenerationRequest) (chat.GenerationResult, error)
	GenerateStream(ctx context.Context, req chat.GenerationRequest, onDelta func(string)) (chat.GenerationResult, error)
}

// Reply is the outcome of one successful chat exchange.
type Reply struct {
	Response  string
	SessionID string
}

// Service orchestrates one chat exchange: resolve the session, record
// the user turn, assemble the prompt, call the backend, record the
// reply. No session or registry lock is held across the backend call.
type Service struct {
	registry  *session.Registry
	assembler *prompt.Assembler
	backend   Generator
}

func NewService(registry *session.Registry, assembler *prompt.Assembler, backend Generator) *Service {
	return &Service{
		registry:  registry,
		assembler: assembler,
		backend:   backend,
	}
}

// HandleChat runs a full unary exchange. maxTokens <= 0 means the
// configured default; any other value is clamped by the assembler.
func (s *Service) HandleChat(ctx context.Context, sessionID, message string, maxTokens int) (Reply, error) {
	sess, request, err := s.prepare(sessionID, message, maxTokens)
	if err != nil {
		return Reply{}, err
	}

	result, err := s.backend.Generate(ctx, request)
	if err != nil {
		// The user turn stands; history reflects what was asked even
		// when generation fails.
		log.Printf("[chat] generation failed for session=%s: %v", sess.ID, err)
		return Reply{}, err
	}

	sess.Append(chat.RoleAssistant, result.Text)
	return Reply{Response: result.Text, SessionID: sess.ID}, nil
}

// HandleChatStream is the streaming variant: deltas are forwarded to
// onDelta as they arrive and the full reply is recorded at the end. On
// failure no assistant turn is stored.
func (s *Service) HandleChatStream(ctx context.Context, sessionID, message string, maxTokens int, onDelta func(string)) (Reply, error) {
	sess, request, err := s.prepare(sessionID, message, maxTokens)
	if err != nil {
		return Reply{}, err
	}

	result, err := s.backend.GenerateStream(ctx, request, onDelta)
	if err != nil {
		log.Printf("[chat] streaming generation failed for session=%s: %v", sess.ID, err)
		return Reply{}, err
	}

	sess.Append(chat.RoleAssistant, result.Text)
	return Reply{Response: result.Text, SessionID: sess.ID}, nil
}

// Transcript returns the recorded turns for an existing session.
func (s *Service) Transcript(sessionID string) ([]chat.Turn, error) {
	sess, ok := s.registry.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess.Snapshot(), nil
}

// prepare performs the local, lock-bound half of an exchange: session
// resolution, validation, prompt assembly, and the user-turn append.
func (s *Service) prepare(sessionID, message string, maxTokens int) (*session.Session, chat.GenerationRequest, error) {
	sess, _ := s.registry.Resolve(sessionID)

	if strings.TrimSpace(message) == "" {
		return nil, chat.GenerationRequest{}, ErrEmptyMessage
	}

	snapshot := sess.Snapshot()
	request, err := s.assembler.Build(snapshot, message, maxTokens)
	if err != nil {
		return nil, chat.GenerationRequest{}, err
	}

	sess.Append(chat.RoleUser, message)
	return sess, request, nil
}
