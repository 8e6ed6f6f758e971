package llm

import "strings"

// stuffPrompt は文書を1つのプロンプトにまとめて渡す（stuff 方式）際の指示文
const stuffPrompt = "Use the following pieces of context to answer the user's question. " +
	"If you don't know the answer, just say that you don't know, don't try to make up an answer.\n" +
	"----------------\n"

// StuffDocuments は文書群を1つのシステムメッセージにまとめ、既存のシステムメッセージの直後に挿入します。
// docs が空の場合は messages をそのまま返します
func StuffDocuments(messages []ChatMessage, docs []string) []ChatMessage {
	if len(docs) == 0 {
		return messages
	}

	var sb strings.Builder
	sb.WriteString(stuffPrompt)
	sb.WriteString(strings.Join(docs, "\n\n"))
	contextMsg := SystemMessage(sb.String())

	pos := 0
	for pos < len(messages) && messages[pos].Role == RoleSystem {
		pos++
	}

	out := make([]ChatMessage, 0, len(messages)+1)
	out = append(out, messages[:pos]...)
	out = append(out, contextMsg)
	out = append(out, messages[pos:]...)
	return out
}
