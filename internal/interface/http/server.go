// Package httpapi はアシスタントをHTTP経由で公開します。
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jinford/assist-rag/internal/core/assistant"
	"github.com/jinford/assist-rag/internal/core/conversation"
	"github.com/jinford/assist-rag/internal/core/ingestion"
	"github.com/jinford/assist-rag/internal/core/session"
	"github.com/jinford/assist-rag/internal/platform/container"
)

// MaxDocumentBytes はアップロードできるドキュメントの最大サイズ
const MaxDocumentBytes = 10 << 20

// Server はセッションAPIのハンドラー
type Server struct {
	app    *container.Container
	logger *slog.Logger

	// 実行中のインデックス再構築
	rebuilds sync.WaitGroup
}

// NewServer は新しい Server を作成します
func NewServer(app *container.Container) *Server {
	return &Server{
		app:    app,
		logger: app.Logger(),
	}
}

// Handler はルーティング済みの http.Handler を返します
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /sessions", s.handleCreateSession)
	mux.HandleFunc("GET /sessions/{id}", s.withSession(s.handleGetSession))
	mux.HandleFunc("DELETE /sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /sessions/{id}/messages", s.withSession(s.handleSendMessage))
	mux.HandleFunc("PUT /sessions/{id}/document", s.withSession(s.handlePutDocument))
	mux.HandleFunc("GET /sessions/{id}/document", s.withSession(s.handleGetDocument))
	return mux
}

// Wait は実行中のインデックス再構築の完了を待ちます
func (s *Server) Wait() {
	s.rebuilds.Wait()
}

// ListenAndServe は ctx が終了するまでHTTPサーバーを実行します
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("HTTPサーバーを起動しました", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("http server stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	s.app.Sessions.CloseAll()
	s.Wait()
	s.logger.Info("HTTPサーバーを停止しました")
	return nil
}

// ─────────────────────────────────────────────
// DTOs
// ─────────────────────────────────────────────

type sessionResponse struct {
	ID        string                 `json:"id"`
	CreatedAt time.Time              `json:"createdAt"`
	Knowledge knowledgeResponse      `json:"knowledge"`
	Messages  []conversation.Message `json:"messages"`
}

type knowledgeResponse struct {
	State     ingestion.BuildState `json:"state"`
	Document  string               `json:"document,omitempty"`
	Chunks    int                  `json:"chunks"`
	LastError string               `json:"lastError,omitempty"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

type sendMessageResponse struct {
	Reply    assistant.Reply        `json:"reply"`
	Messages []conversation.Message `json:"messages"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ─────────────────────────────────────────────
// Handlers
// ─────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.app.NewSession()
	writeJSON(w, http.StatusCreated, toSessionResponse(sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err := s.app.Sessions.Close(id); err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	reply, err := s.app.Assistant.Respond(r.Context(), sess, req.Text)
	switch {
	case errors.Is(err, assistant.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "text is required")
		return
	case errors.Is(err, session.ErrClosed):
		writeError(w, http.StatusGone, "session closed")
		return
	case err != nil:
		s.logger.Warn("ターンを完了できませんでした", "session", sess.ID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "turn interrupted")
		return
	}

	writeJSON(w, http.StatusOK, sendMessageResponse{
		Reply:    reply,
		Messages: reply.Messages,
	})
}

// handlePutDocument はドキュメントを受け取り、インデックスを非同期で再構築します
func (s *Server) handlePutDocument(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxDocumentBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "document too large")
		return
	}
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		name = "document.txt"
	}
	doc := ingestion.Document{Name: name, Content: body}

	// 受付前に検証できるものは同期的に返す
	if _, err := doc.Decode(); err != nil {
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
		return
	}

	sess.Knowledge.MarkBuilding(name)
	s.rebuilds.Add(1)
	go func() {
		defer s.rebuilds.Done()
		if _, err := s.app.IndexDocument(sess.Context(), sess, doc); err != nil {
			s.logger.Warn("ドキュメントのインデックス化に失敗しました",
				"stage", "index",
				"session", sess.ID,
				"document", name,
				"error", err,
			)
		}
	}()

	writeJSON(w, http.StatusAccepted, toKnowledgeResponse(sess))
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	writeJSON(w, http.StatusOK, toKnowledgeResponse(sess))
}

// ─────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────

func (s *Server) withSession(next func(http.ResponseWriter, *http.Request, *session.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		sess, err := s.app.Sessions.Get(id)
		if err != nil {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		next(w, r, sess)
	}
}

func toSessionResponse(sess *session.Session) sessionResponse {
	return sessionResponse{
		ID:        sess.ID.String(),
		CreatedAt: sess.CreatedAt,
		Knowledge: toKnowledgeResponse(sess),
		Messages:  sess.Log.Messages(),
	}
}

func toKnowledgeResponse(sess *session.Session) knowledgeResponse {
	st := sess.Knowledge.Status()
	return knowledgeResponse{
		State:     st.State,
		Document:  st.Document,
		Chunks:    st.Chunks,
		LastError: st.LastError,
		UpdatedAt: st.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
