package chat

import (
	"strings"

	"farmassist-server-go/src/core/types"
)

type Message = types.Message

// Turn 客户端传来的一轮历史对话，type为user或bot
type Turn struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// RoleForTurn 把客户端的轮次标记映射为模型角色，除user外都视为assistant
func RoleForTurn(turnType string) string {
	if strings.EqualFold(strings.TrimSpace(turnType), "user") {
		return types.RoleUser
	}
	return types.RoleAssistant
}

// DialogueManager 为单次请求重建发往模型的消息列表
// 服务端不保存任何对话状态，连续性完全依赖客户端每次重传历史
type DialogueManager struct {
	system   Message
	dialogue []Message
}

// NewDialogueManager 创建对话管理器，systemPrompt为空时不添加系统消息
func NewDialogueManager(systemPrompt string) *DialogueManager {
	dm := &DialogueManager{dialogue: make([]Message, 0)}
	if systemPrompt != "" {
		dm.system = Message{Role: types.RoleSystem, Content: systemPrompt}
	}
	return dm
}

// Replay 按原顺序回放客户端历史，跳过内容为空的轮次
func (dm *DialogueManager) Replay(history []Turn) {
	for _, turn := range history {
		if strings.TrimSpace(turn.Text) == "" {
			continue
		}
		dm.Put(Message{Role: RoleForTurn(turn.Type), Content: turn.Text})
	}
}

// Put 添加新消息到对话
func (dm *DialogueManager) Put(message Message) {
	dm.dialogue = append(dm.dialogue, message)
}

// GetLLMDialogue 获取完整消息列表：系统消息在前，其后是历史和新消息
func (dm *DialogueManager) GetLLMDialogue() []Message {
	dialogue := make([]Message, 0, len(dm.dialogue)+1)
	if dm.system.Content != "" {
		dialogue = append(dialogue, dm.system)
	}
	return append(dialogue, dm.dialogue...)
}
