package service

import (
	"context"
	"sort"

	"github.com/academy-platform/dashboard-messaging/internal/model"
)

// Conversations returns one page of the caller's threads, most recent
// activity first.
func (s *MessageService) Conversations(ctx context.Context, caller User, skip, limit int) *model.ConversationList {
	s.mu.RLock()
	type entry struct {
		conv    model.Conversation
		lastSeq uint64
	}
	entries := make([]entry, 0)
	for threadID, ids := range s.threads {
		conv, lastSeq, ok := s.summarizeLocked(threadID, ids, caller.ID)
		if ok {
			entries = append(entries, entry{conv: conv, lastSeq: lastSeq})
		}
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.conv.LastMessageAt.Equal(b.conv.LastMessageAt) {
			return a.conv.LastMessageAt.After(b.conv.LastMessageAt)
		}
		return a.lastSeq > b.lastSeq
	})

	start, end := pageBounds(len(entries), skip, limit)
	conversations := make([]model.Conversation, 0, end-start)
	for _, e := range entries[start:end] {
		conversations = append(conversations, e.conv)
	}

	return &model.ConversationList{
		Conversations: conversations,
		TotalCount:    len(entries),
		Skip:          skip,
		Limit:         limit,
	}
}

// summarizeLocked builds the caller's view of one thread. ok is false when
// the caller has no visible message in it.
func (s *MessageService) summarizeLocked(threadID string, ids []string, callerID string) (model.Conversation, uint64, bool) {
	conv := model.Conversation{ThreadID: threadID, IsArchived: true}
	if len(ids) > 0 {
		conv.Subject = s.messages[ids[0]].msg.Subject
	}

	seen := make(map[string]struct{})
	addParticipant := func(userID string, fallback model.Participant) {
		if _, ok := seen[userID]; ok {
			return
		}
		seen[userID] = struct{}{}
		if u, ok := s.directory.User(userID); ok {
			conv.Participants = append(conv.Participants, s.directory.Participant(u))
			return
		}
		conv.Participants = append(conv.Participants, fallback)
	}

	var first, last *record
	for _, id := range ids {
		rec := s.messages[id]
		m := &rec.msg
		addParticipant(m.SenderID, model.Participant{UserID: m.SenderID, UserType: m.SenderType, UserName: m.SenderName})
		addParticipant(m.RecipientID, model.Participant{UserID: m.RecipientID, UserType: m.RecipientType, UserName: m.RecipientName})

		if !visibleTo(m, callerID) {
			continue
		}
		if first == nil {
			first = rec
		}
		last = rec
		conv.MessageCount++
		if m.RecipientID == callerID && !m.IsRead {
			conv.UnreadCount++
		}
		if !m.IsArchived {
			conv.IsArchived = false
		}
	}
	if last == nil {
		return model.Conversation{}, 0, false
	}

	lastMessage := last.msg
	conv.LastMessage = &lastMessage
	conv.LastMessageAt = last.msg.CreatedAt
	conv.CreatedAt = first.msg.CreatedAt
	conv.UpdatedAt = last.msg.UpdatedAt
	return conv, last.seq, true
}
