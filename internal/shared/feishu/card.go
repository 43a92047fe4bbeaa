package feishu

import (
	"context"
	"encoding/json"
	"fmt"
)

// SendCard 向群聊发送消息卡片
func (c *FeishuClient) SendCard(ctx context.Context, chatID string, card InteractiveCard) error {
	return c.sendCard(ctx, "chat_id", chatID, card)
}

// SendUserCard 向个人发送消息卡片（open_id）
func (c *FeishuClient) SendUserCard(ctx context.Context, userID string, card InteractiveCard) error {
	return c.sendCard(ctx, "open_id", userID, card)
}

func (c *FeishuClient) sendCard(ctx context.Context, idType, id string, card InteractiveCard) error {
	cardBytes, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("序列化卡片内容失败: %w", err)
	}

	reqBody := map[string]interface{}{
		"receive_id": id,
		"msg_type":   "interactive",
		"content":    string(cardBytes),
	}

	path := fmt.Sprintf("/open-apis/im/v1/messages?receive_id_type=%s", idType)

	var resp SendMessageResponse
	if err := c.doRequest(ctx, "POST", path, reqBody, &resp); err != nil {
		return fmt.Errorf("发送消息卡片失败: %w", err)
	}

	return nil
}

// OutboundCardInfo 出库通知卡片内容
type OutboundCardInfo struct {
	Event       string // create / return / delete
	DeviceName  string
	Destination string
	Operator    string
	Summary     string
}

// NewOutboundCard 出库/归还/删除通知卡片
func NewOutboundCard(info OutboundCardInfo) InteractiveCard {
	title, template := "📦 设备出库通知", "blue"
	switch info.Event {
	case "return":
		title, template = "✅ 设备归还通知", "green"
	case "delete":
		title, template = "🗑 出库单删除通知", "red"
	}

	elements := []CardElement{
		{
			Tag: "div",
			Fields: []CardField{
				{IsShort: true, Text: CardText{Tag: "lark_md", Content: fmt.Sprintf("**设备**\n%s", info.DeviceName)}},
				{IsShort: true, Text: CardText{Tag: "lark_md", Content: fmt.Sprintf("**目的地**\n%s", info.Destination)}},
				{IsShort: true, Text: CardText{Tag: "lark_md", Content: fmt.Sprintf("**经办人**\n%s", info.Operator)}},
			},
		},
	}
	if info.Summary != "" {
		elements = append(elements,
			CardElement{Tag: "hr"},
			CardElement{Tag: "div", Text: &CardText{Tag: "lark_md", Content: info.Summary}},
		)
	}

	return InteractiveCard{
		Config:   &CardConfig{WideScreenMode: true},
		Header:   &CardHeader{Title: CardText{Tag: "plain_text", Content: title}, Template: template},
		Elements: elements,
	}
}
