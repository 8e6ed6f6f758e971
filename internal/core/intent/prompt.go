package intent

import "strings"

const (
	// Temperature は分類時の温度設定。決定論的にする
	Temperature = 0.0
)

const classificationInstructions = `You are an intent classifier for a customer support assistant.

Classify the user's message into exactly one intent:
- knowledge: a question that can be answered from the uploaded reference document (policies, product information, FAQs)
- order: a question about the status of a specific order, usually mentioning an order ID
- other: anything else, including complaints, requests for a human, or small talk

Guidelines:
- Always return exactly one intent
- confidence is a number between 0 and 1
- Return only a JSON object with this structure:
{"intentType": "knowledge", "confidence": 0.85}`

// BuildSystemPrompt はアシスタントの説明と分類指示を結合したシステムプロンプトを返します
func BuildSystemPrompt(description string) string {
	var sb strings.Builder
	if d := strings.TrimSpace(description); d != "" {
		sb.WriteString("Assistant description:\n")
		sb.WriteString(d)
		sb.WriteString("\n\n")
	}
	sb.WriteString(classificationInstructions)
	return sb.String()
}
