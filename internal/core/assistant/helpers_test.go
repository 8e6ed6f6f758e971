package assistant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jinford/assist-rag/internal/core/chunk"
	"github.com/jinford/assist-rag/internal/core/conversation"
	"github.com/jinford/assist-rag/internal/core/ingestion"
	"github.com/jinford/assist-rag/internal/core/intent"
	"github.com/jinford/assist-rag/internal/core/llm"
	"github.com/jinford/assist-rag/internal/core/llm/llmtest"
	"github.com/jinford/assist-rag/internal/core/order"
	"github.com/jinford/assist-rag/internal/core/session"
	"github.com/jinford/assist-rag/internal/infra/memory"
)

const shopFAQ = "Returns are accepted within 14 days of delivery.\n\n" +
	"Shipping takes three to five business days.\n\n" +
	"Gift cards cannot be refunded or exchanged."

var testProfile = Profile{Name: "shop", Description: "You are the support assistant of an online shop."}

func newSession(t *testing.T) *session.Session {
	t.Helper()
	return newSessionWith(t, llmtest.NewHashEmbedder(256))
}

func newSessionWith(t *testing.T, embedder llm.Embedder) *session.Session {
	t.Helper()
	m := session.NewManager(ingestion.NewPipeline(embedder))
	s := m.Create(testProfile.Description)
	t.Cleanup(s.Close)
	return s
}

func newIndexedSession(t *testing.T, content string) *session.Session {
	t.Helper()
	return newIndexedSessionWith(t, llmtest.NewHashEmbedder(256), content)
}

func newIndexedSessionWith(t *testing.T, embedder llm.Embedder, content string) *session.Session {
	t.Helper()
	s := newSessionWith(t, embedder)
	_, err := s.Knowledge.Rebuild(context.Background(),
		ingestion.Document{Name: "faq.txt", Content: []byte(content)},
		chunk.Config{ChunkSize: 60, ChunkOverlap: 0})
	require.NoError(t, err)
	return s
}

func newOrders(t *testing.T) *memory.OrderRepository {
	t.Helper()
	repo, err := memory.NewOrderRepository(
		&order.Record{OrderID: "A1", Username: "sato", Product: "keyboard", Status: order.StatusShipped, Date: "2026-10-01"},
		&order.Record{OrderID: "B2", Username: "suzuki", Product: "mouse", Status: order.StatusPaid, Date: "2026-10-10"},
	)
	require.NoError(t, err)
	return repo
}

func turn(s *session.Session, message string, result intent.Result) Turn {
	return Turn{Session: s, Message: message, Intent: result}
}

// kinds は挨拶を除いた会話ログの種別一覧を返す
func kinds(s *session.Session) []conversation.Kind {
	var out []conversation.Kind
	for _, m := range s.Log.Messages() {
		if m.Kind == conversation.KindGreeting {
			continue
		}
		out = append(out, m.Kind)
	}
	return out
}

func lastMessage(s *session.Session) conversation.Message {
	msgs := s.Log.Messages()
	return msgs[len(msgs)-1]
}
