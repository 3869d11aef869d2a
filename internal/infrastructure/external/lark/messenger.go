package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/flooring-crm/internal/application/port"
)

// Messenger posts staff alerts to a group chat and delivers customer
// emails through Lark's external email routing
type Messenger struct {
	sender      MessageSender
	staffChatID string
	logger      *zap.Logger
}

// NewMessenger creates a new Lark messenger
func NewMessenger(sender MessageSender, staffChatID string, logger *zap.Logger) *Messenger {
	return &Messenger{
		sender:      sender,
		staffChatID: staffChatID,
		logger:      logger,
	}
}

// NotifyStaff implements port.StaffMessenger
func (m *Messenger) NotifyStaff(ctx context.Context, title, body string) error {
	if m.staffChatID == "" {
		return fmt.Errorf("staff chat id is not configured")
	}

	content, err := postContent(title, body)
	if err != nil {
		return err
	}

	if _, err := m.sender.SendMessage(ctx, ReceiveByChatID, m.staffChatID, MsgTypePost, content); err != nil {
		return fmt.Errorf("failed to notify staff: %w", err)
	}
	return nil
}

// SendEmail delivers an HTML email as a rich-text post addressed by email
func (m *Messenger) SendEmail(ctx context.Context, to, subject, htmlBody string) (string, error) {
	if to == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}

	content, err := postContent(subject, htmlToText(htmlBody))
	if err != nil {
		return "", err
	}

	m.logger.Info("Sending email message",
		zap.String("email", to),
		zap.String("subject", subject))

	return m.sender.SendMessage(ctx, ReceiveByEmail, to, MsgTypePost, content)
}

// SendText sends a plain text message
func (m *Messenger) SendText(ctx context.Context, receiveIDType, receiveID, text string) (string, error) {
	if receiveID == "" {
		return "", fmt.Errorf("receiveID cannot be empty")
	}
	if text == "" {
		return "", fmt.Errorf("content cannot be empty")
	}

	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", fmt.Errorf("failed to marshal text content: %w", err)
	}
	return m.sender.SendMessage(ctx, receiveIDType, receiveID, MsgTypeText, string(content))
}

type postElement struct {
	Tag  string `json:"tag"`
	Text string `json:"text"`
}

type postBody struct {
	Title   string          `json:"title"`
	Content [][]postElement `json:"content"`
}

// postContent builds a rich-text post with one paragraph per line of body
func postContent(title, body string) (string, error) {
	paragraphs := [][]postElement{}
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		paragraphs = append(paragraphs, []postElement{{Tag: "text", Text: line}})
	}

	content, err := json.Marshal(map[string]postBody{
		"en_us": {Title: title, Content: paragraphs},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal post content: %w", err)
	}
	return string(content), nil
}

var (
	blockTag = regexp.MustCompile(`(?i)<\s*(br|/p|/div|/li|/h[1-6]|/tr)\s*/?>`)
	anyTag   = regexp.MustCompile(`<[^>]*>`)
)

// htmlToText flattens rendered email HTML into lines; posts do not render markup
func htmlToText(s string) string {
	s = blockTag.ReplaceAllString(s, "\n")
	s = anyTag.ReplaceAllString(s, "")
	return html.UnescapeString(s)
}

// Verify interface compliance
var _ port.StaffMessenger = (*Messenger)(nil)
