package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStuffDocuments_InsertsAfterSystemMessages(t *testing.T) {
	messages := []ChatMessage{
		SystemMessage("you are a shop assistant"),
		UserMessage("what is the return policy?"),
	}

	got := StuffDocuments(messages, []string{"returns within 14 days", "unused items only"})

	require.Len(t, got, 3)
	assert.Equal(t, messages[0], got[0])
	assert.Equal(t, RoleSystem, got[1].Role)
	assert.Contains(t, got[1].Content, "returns within 14 days\n\nunused items only")
	assert.Equal(t, messages[1], got[2])
	assert.Len(t, messages, 2)
}

func TestStuffDocuments_NoDocumentsIsNoop(t *testing.T) {
	messages := []ChatMessage{UserMessage("hi")}
	assert.Equal(t, messages, StuffDocuments(messages, nil))
}

func TestStuffDocuments_WithoutSystemMessage(t *testing.T) {
	got := StuffDocuments([]ChatMessage{UserMessage("hi")}, []string{"doc"})

	require.Len(t, got, 2)
	assert.Equal(t, RoleSystem, got[0].Role)
	assert.Equal(t, RoleUser, got[1].Role)
}
