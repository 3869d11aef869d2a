package lark

import (
	"context"
	"fmt"

	larkIm "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"
)

// Receive id types accepted by the IM message API
const (
	ReceiveByChatID = "chat_id"
	ReceiveByEmail  = "email"
	ReceiveByOpenID = "open_id"
)

// Message types
const (
	MsgTypeText = "text"
	MsgTypePost = "post"
)

// MessageSender sends a single IM message and returns its message id
type MessageSender interface {
	SendMessage(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error)
}

// Client sends messages through the Lark IM API
type Client struct {
	sdk    *SDKClient
	logger *zap.Logger
}

// NewClient creates a new Lark message client
func NewClient(sdk *SDKClient, logger *zap.Logger) *Client {
	return &Client{
		sdk:    sdk,
		logger: logger,
	}
}

// SendMessage sends a message to a user, an email address or a group
func (c *Client) SendMessage(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error) {
	req := larkIm.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDType).
		Body(larkIm.NewCreateMessageReqBodyBuilder().
			ReceiveId(receiveID).
			MsgType(msgType).
			Content(content).
			Build()).
		Build()

	resp, err := c.sdk.GetClient().Im.Message.Create(ctx, req)
	if err != nil {
		c.logger.Error("Failed to send message",
			zap.String("receive_id_type", receiveIDType),
			zap.String("receive_id", receiveID),
			zap.Error(err))
		return "", fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		c.logger.Error("API returned failure",
			zap.String("receive_id", receiveID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return "", fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}

	c.logger.Debug("Message sent",
		zap.String("message_id", messageID),
		zap.String("receive_id", receiveID))

	return messageID, nil
}

// Verify interface compliance
var _ MessageSender = (*Client)(nil)
