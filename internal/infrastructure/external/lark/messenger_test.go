package lark

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sentMessage struct {
	receiveIDType string
	receiveID     string
	msgType       string
	content       string
}

type fakeSender struct {
	sent []sentMessage
	err  error
}

func (f *fakeSender) SendMessage(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, sentMessage{receiveIDType, receiveID, msgType, content})
	return "om_123", nil
}

func decodePost(t *testing.T, content string) postBody {
	t.Helper()
	var post map[string]postBody
	require.NoError(t, json.Unmarshal([]byte(content), &post))
	return post["en_us"]
}

func TestMessenger_NotifyStaff(t *testing.T) {
	sender := &fakeSender{}
	m := NewMessenger(sender, "oc_staff", zap.NewNop())

	err := m.NotifyStaff(context.Background(), "New task: Call \"Dana\"", "Priority: high\n\nDue: tomorrow")
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, ReceiveByChatID, msg.receiveIDType)
	assert.Equal(t, "oc_staff", msg.receiveID)
	assert.Equal(t, MsgTypePost, msg.msgType)

	post := decodePost(t, msg.content)
	assert.Equal(t, "New task: Call \"Dana\"", post.Title)
	require.Len(t, post.Content, 2)
	assert.Equal(t, "Priority: high", post.Content[0][0].Text)
	assert.Equal(t, "Due: tomorrow", post.Content[1][0].Text)
}

func TestMessenger_NotifyStaffRequiresChat(t *testing.T) {
	m := NewMessenger(&fakeSender{}, "", zap.NewNop())
	assert.Error(t, m.NotifyStaff(context.Background(), "t", "b"))
}

func TestMessenger_NotifyStaffPropagatesFailure(t *testing.T) {
	m := NewMessenger(&fakeSender{err: errors.New("code=99991663")}, "oc_staff", zap.NewNop())
	err := m.NotifyStaff(context.Background(), "t", "b")
	assert.ErrorContains(t, err, "99991663")
}

func TestMessenger_SendEmailFlattensHTML(t *testing.T) {
	sender := &fakeSender{}
	m := NewMessenger(sender, "oc_staff", zap.NewNop())

	id, err := m.SendEmail(context.Background(), "dana@example.com", "Your estimate",
		"<p>Hi Dana,</p><p>Total: <strong>$1,404.00</strong> &amp; tax</p>")
	require.NoError(t, err)
	assert.Equal(t, "om_123", id)

	msg := sender.sent[0]
	assert.Equal(t, ReceiveByEmail, msg.receiveIDType)
	assert.Equal(t, "dana@example.com", msg.receiveID)

	post := decodePost(t, msg.content)
	require.Len(t, post.Content, 2)
	assert.Equal(t, "Hi Dana,", post.Content[0][0].Text)
	assert.Equal(t, "Total: $1,404.00 & tax", post.Content[1][0].Text)
}

func TestMessenger_SendText(t *testing.T) {
	sender := &fakeSender{}
	m := NewMessenger(sender, "", zap.NewNop())

	_, err := m.SendText(context.Background(), ReceiveByOpenID, "ou_1", "line\n\"quoted\"")
	require.NoError(t, err)

	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(sender.sent[0].content), &body))
	assert.Equal(t, "line\n\"quoted\"", body["text"])

	_, err = m.SendText(context.Background(), ReceiveByOpenID, "", "x")
	assert.Error(t, err)
}
