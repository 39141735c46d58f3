package middleware

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/academy-platform/dashboard-messaging/internal/model"
)

const (
	maxSubjectLength = 200
	maxContentLength = 10000
	maxIDLength      = 64
)

// ValidateSendRequest validates a new message before it reaches the service.
func ValidateSendRequest(req *model.SendMessageRequest) error {
	if strings.TrimSpace(req.RecipientID) == "" {
		return errors.New("recipient_id is required")
	}
	if !req.RecipientType.Valid() {
		return errors.New("recipient_type must be one of student, coach, branch_manager, superadmin")
	}
	if err := ValidateSubject(req.Subject); err != nil {
		return err
	}
	if err := ValidateMessageContent(req.Content); err != nil {
		return err
	}
	if req.Priority != "" && !req.Priority.Valid() {
		return errors.New("priority must be one of low, normal, high, urgent")
	}
	if req.ReplyToMessageID != "" {
		if err := ValidateMessageID(req.ReplyToMessageID); err != nil {
			return err
		}
	}
	if req.ThreadID != "" {
		if err := ValidateThreadID(req.ThreadID); err != nil {
			return err
		}
	}
	return nil
}

// ValidateMessageContent validates message content.
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("content cannot be empty")
	}
	if utf8.RuneCountInString(content) > maxContentLength {
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateSubject validates a message subject.
func ValidateSubject(subject string) error {
	if strings.TrimSpace(subject) == "" {
		return errors.New("subject cannot be empty")
	}
	if utf8.RuneCountInString(subject) > maxSubjectLength {
		return errors.New("subject exceeds maximum length")
	}
	if !utf8.ValidString(subject) {
		return errors.New("subject must be valid UTF-8")
	}
	return nil
}

// ValidateThreadID validates a thread ID.
func ValidateThreadID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid thread ID format")
	}
	return nil
}

// ValidateMessageID validates a message ID.
func ValidateMessageID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid message ID format")
	}
	return nil
}

// ValidateNotificationID validates a notification ID.
func ValidateNotificationID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid notification ID format")
	}
	return nil
}

// ValidateBranchID validates an optional branch filter.
func ValidateBranchID(id string) error {
	if len(id) > maxIDLength {
		return errors.New("branch ID exceeds maximum length")
	}
	return nil
}
