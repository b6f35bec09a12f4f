package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/d60-Lab/free99/internal/model"
	"github.com/d60-Lab/free99/internal/repository"
	"github.com/d60-Lab/free99/pkg/logger"
)

// ThreadSummary 会话列表中的一条，LastReadAt/Muted 属于请求者自己
type ThreadSummary struct {
	ID             string     `json:"id"`
	ListingID      *string    `json:"listing_id"`
	ParticipantIDs []string   `json:"participant_ids"`
	CreatedAt      time.Time  `json:"created_at"`
	LastMessageAt  time.Time  `json:"last_message_at"`
	LastReadAt     *time.Time `json:"last_read_at"`
	Muted          bool       `json:"muted"`
}

// MessageService 会话去重与消息收发。
// 非参与者对会话的任何访问都返回 ErrNotFound，不暴露会话是否存在。
type MessageService interface {
	CreateOrGetThread(ctx context.Context, userID, participantID string) (string, error)
	StartListingThread(ctx context.Context, listingID, userID string) (string, error)

	SendMessage(ctx context.Context, threadID, senderID, text string) (*model.Message, error)
	ListMessages(ctx context.Context, threadID, requesterID string) ([]*model.Message, error)
	DeleteMessage(ctx context.Context, threadID, messageID, requesterID string) error

	ListThreadsForUser(ctx context.Context, userID string) ([]*ThreadSummary, error)
	MarkThreadRead(ctx context.Context, threadID, userID string) error
	SetThreadMuted(ctx context.Context, threadID, userID string, muted bool) error
}

type messageService struct {
	threads  repository.ThreadRepository
	messages repository.MessageRepository
	listings repository.ListingRepository
	users    repository.UserRepository
	opts     Options
}

func NewMessageService(
	threads repository.ThreadRepository,
	messages repository.MessageRepository,
	listings repository.ListingRepository,
	users repository.UserRepository,
	opts Options,
) MessageService {
	return &messageService{threads: threads, messages: messages, listings: listings, users: users, opts: opts}
}

func (s *messageService) caller(ctx context.Context, userID string) error {
	if _, err := requireUser(ctx, s.users, s.opts, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrUnauthorized
		}
		return err
	}
	return nil
}

// CreateOrGetThread 返回 {userID, participantID} 的私聊会话，不存在则创建。
// 参数顺序无关；并发创建时唯一 DedupKey 让输家读回赢家的会话。
func (s *messageService) CreateOrGetThread(ctx context.Context, userID, participantID string) (string, error) {
	if err := s.caller(ctx, userID); err != nil {
		return "", err
	}
	if _, err := s.users.GetByID(ctx, participantID); err != nil {
		return "", err
	}
	if userID == participantID {
		return "", invalid(ErrThreadWithSelf)
	}

	t, err := s.threads.FindDirect(ctx, userID, participantID)
	if err == nil {
		return t.ID, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}
	return s.createThread(ctx, model.DirectKey(userID, participantID), nil, userID, participantID)
}

// StartListingThread 请求者与 listing 发布者之间、绑定该 listing 的会话
func (s *messageService) StartListingThread(ctx context.Context, listingID, userID string) (string, error) {
	if err := s.caller(ctx, userID); err != nil {
		return "", err
	}
	l, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return "", err
	}
	if l.PosterID == userID {
		return "", invalid(ErrThreadWithSelf)
	}
	if _, err := s.users.GetByID(ctx, l.PosterID); err != nil {
		return "", err
	}

	key := model.ListingKey(listingID, userID, l.PosterID)
	t, err := s.threads.FindByDedupKey(ctx, key)
	if err == nil {
		return t.ID, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}
	return s.createThread(ctx, key, &listingID, userID, l.PosterID)
}

func (s *messageService) createThread(ctx context.Context, key string, listingID *string, a, b string) (string, error) {
	ctx, span := tracer.Start(ctx, "MessageService.createThread", trace.WithAttributes(attribute.String("thread.dedup_key", key)))
	defer span.End()

	now := s.opts.now()
	t := &model.Thread{
		ID:            uuid.New().String(),
		ListingID:     listingID,
		DedupKey:      &key,
		CreatedAt:     now,
		LastMessageAt: now,
	}
	err := s.threads.CreateWithParticipants(ctx, t, []string{a, b})
	if errors.Is(err, ErrConflict) {
		span.AddEvent("dedup conflict")
		winner, rErr := s.threads.FindByDedupKey(ctx, key)
		if rErr != nil {
			return "", fmt.Errorf("reload thread after conflict: %w", rErr)
		}
		return winner.ID, nil
	}
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	logger.Info("thread created", zap.String("thread_id", t.ID), zap.String("dedup_key", key))
	return t.ID, nil
}

func (s *messageService) SendMessage(ctx context.Context, threadID, senderID, text string) (*model.Message, error) {
	if _, err := s.threads.GetParticipant(ctx, threadID, senderID); err != nil {
		return nil, err
	}
	if _, err := requireUser(ctx, s.users, s.opts, senderID); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalid(ErrEmptyMessage)
	}

	m := &model.Message{
		ID:        uuid.New().String(),
		ThreadID:  threadID,
		SenderID:  senderID,
		Text:      text,
		CreatedAt: s.opts.now(),
	}
	if err := s.messages.Append(ctx, m); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	return m, nil
}

func (s *messageService) ListMessages(ctx context.Context, threadID, requesterID string) ([]*model.Message, error) {
	if _, err := s.threads.GetParticipant(ctx, threadID, requesterID); err != nil {
		return nil, err
	}
	return s.messages.ListByThread(ctx, threadID)
}

// DeleteMessage 只有发送者能软删除自己的消息
func (s *messageService) DeleteMessage(ctx context.Context, threadID, messageID, requesterID string) error {
	if _, err := s.threads.GetParticipant(ctx, threadID, requesterID); err != nil {
		return err
	}
	m, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if m.ThreadID != threadID || m.SenderID != requesterID || m.DeletedAt != nil {
		return ErrNotFound
	}
	return s.messages.SoftDelete(ctx, messageID, s.opts.now())
}

func (s *messageService) ListThreadsForUser(ctx context.Context, userID string) ([]*ThreadSummary, error) {
	threads, err := s.threads.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(threads))
	for i, t := range threads {
		ids[i] = t.ID
	}
	parts, err := s.threads.ParticipantsFor(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]*ThreadSummary, 0, len(threads))
	for _, t := range threads {
		sum := &ThreadSummary{
			ID:             t.ID,
			ListingID:      t.ListingID,
			ParticipantIDs: make([]string, 0, len(parts[t.ID])),
			CreatedAt:      t.CreatedAt,
			LastMessageAt:  t.LastMessageAt,
		}
		for _, p := range parts[t.ID] {
			sum.ParticipantIDs = append(sum.ParticipantIDs, p.UserID)
			if p.UserID == userID {
				sum.LastReadAt = p.LastReadAt
				sum.Muted = p.Muted
			}
		}
		out = append(out, sum)
	}
	return out, nil
}

func (s *messageService) MarkThreadRead(ctx context.Context, threadID, userID string) error {
	if _, err := s.threads.GetParticipant(ctx, threadID, userID); err != nil {
		return err
	}
	return s.threads.UpdateParticipant(ctx, threadID, userID, map[string]interface{}{"last_read_at": s.opts.now()})
}

func (s *messageService) SetThreadMuted(ctx context.Context, threadID, userID string, muted bool) error {
	if _, err := s.threads.GetParticipant(ctx, threadID, userID); err != nil {
		return err
	}
	return s.threads.UpdateParticipant(ctx, threadID, userID, map[string]interface{}{"muted": muted})
}
