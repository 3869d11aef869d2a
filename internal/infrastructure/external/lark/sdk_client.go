package lark

import (
	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"go.uber.org/zap"
)

// SDKClient wraps the Lark SDK client
type SDKClient struct {
	client      *lark.Client
	staffChatID string // Group chat that receives staff alerts
	appID       string
	logger      *zap.Logger
}

// Config holds Lark client configuration
type Config struct {
	AppID       string
	AppSecret   string
	StaffChatID string
}

// NewSDKClient creates a new Lark SDK client
func NewSDKClient(cfg Config, logger *zap.Logger) *SDKClient {
	client := lark.NewClient(cfg.AppID, cfg.AppSecret,
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	)

	return &SDKClient{
		client:      client,
		staffChatID: cfg.StaffChatID,
		appID:       cfg.AppID,
		logger:      logger,
	}
}

// GetClient returns the underlying Lark SDK client
func (c *SDKClient) GetClient() *lark.Client {
	return c.client
}

// StaffChatID returns the chat that staff alerts are posted to
func (c *SDKClient) StaffChatID() string {
	return c.staffChatID
}

// GetAppID returns the app ID
func (c *SDKClient) GetAppID() string {
	return c.appID
}
