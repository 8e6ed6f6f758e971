package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RateLimiter はモデル呼び出しのレートと並列度を制限します。
// 複数セッションから共有されることを前提とします。
type RateLimiter struct {
	mu sync.Mutex

	maxRequestsPerMinute int
	tokens               int
	lastRefill           time.Time
	waiting              int

	semaphore chan struct{}
	now       func() time.Time
}

// NewRateLimiter は新しいRateLimiterを作成します。
// maxConcurrent が0以下の場合は maxRequestsPerMinute を並列度の上限とします
func NewRateLimiter(maxRequestsPerMinute, maxConcurrent int) *RateLimiter {
	if maxRequestsPerMinute <= 0 {
		maxRequestsPerMinute = 1
	}
	if maxConcurrent <= 0 {
		maxConcurrent = maxRequestsPerMinute
	}
	return &RateLimiter{
		maxRequestsPerMinute: maxRequestsPerMinute,
		tokens:               maxRequestsPerMinute,
		lastRefill:           time.Now(),
		semaphore:            make(chan struct{}, maxConcurrent),
		now:                  time.Now,
	}
}

// Wait は実行権限を取得するまで待機します。
// 成功した場合は必ず Release を呼んでください
func (rl *RateLimiter) Wait(ctx context.Context) error {
	select {
	case rl.semaphore <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	for {
		rl.mu.Lock()
		rl.refillLocked()
		if rl.tokens > 0 {
			rl.tokens--
			rl.mu.Unlock()
			return nil
		}
		rl.waiting++
		rl.mu.Unlock()

		timer := time.NewTimer(time.Second)
		select {
		case <-timer.C:
			rl.mu.Lock()
			rl.waiting--
			rl.mu.Unlock()
		case <-ctx.Done():
			timer.Stop()
			rl.mu.Lock()
			rl.waiting--
			rl.mu.Unlock()
			<-rl.semaphore
			return ctx.Err()
		}
	}
}

// Release は実行権限を解放します
func (rl *RateLimiter) Release() {
	<-rl.semaphore
}

// 呼び出し側でロックを取得していること
func (rl *RateLimiter) refillLocked() {
	elapsed := rl.now().Sub(rl.lastRefill)
	if elapsed < time.Minute {
		return
	}
	minutes := int(elapsed / time.Minute)
	rl.tokens = min(rl.tokens+minutes*rl.maxRequestsPerMinute, rl.maxRequestsPerMinute)
	rl.lastRefill = rl.lastRefill.Add(time.Duration(minutes) * time.Minute)
}

// Status は現在の状態を返します
func (rl *RateLimiter) Status() RateLimiterStatus {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refillLocked()

	return RateLimiterStatus{
		MaxRequestsPerMinute: rl.maxRequestsPerMinute,
		AvailableTokens:      rl.tokens,
		WaitingRequests:      rl.waiting,
		ActiveRequests:       len(rl.semaphore),
	}
}

// RateLimiterStatus はレート制限の状態
type RateLimiterStatus struct {
	MaxRequestsPerMinute int
	AvailableTokens      int
	WaitingRequests      int
	ActiveRequests       int
}

func (s RateLimiterStatus) String() string {
	return fmt.Sprintf(
		"RateLimiter: max=%d/min, available=%d, waiting=%d, active=%d",
		s.MaxRequestsPerMinute,
		s.AvailableTokens,
		s.WaitingRequests,
		s.ActiveRequests,
	)
}

// ThrottledClient はレート制限付きの Client
type ThrottledClient struct {
	client  Client
	limiter *RateLimiter
}

var _ Client = (*ThrottledClient)(nil)

// NewThrottledClient はレート制限付きのクライアントを作成します
func NewThrottledClient(client Client, limiter *RateLimiter) *ThrottledClient {
	return &ThrottledClient{client: client, limiter: limiter}
}

// Chat はレート制限に従ってモデルを呼び出します
func (c *ThrottledClient) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return ChatResponse{}, fmt.Errorf("%w: rate limiter wait failed: %w", ErrLanguageModelService, err)
	}
	defer c.limiter.Release()

	return c.client.Chat(ctx, req)
}

// ThrottledEmbedder はレート制限付きの Embedder
type ThrottledEmbedder struct {
	embedder Embedder
	limiter  *RateLimiter
}

var _ Embedder = (*ThrottledEmbedder)(nil)

// NewThrottledEmbedder はレート制限付きの埋め込みクライアントを作成します
func NewThrottledEmbedder(embedder Embedder, limiter *RateLimiter) *ThrottledEmbedder {
	return &ThrottledEmbedder{embedder: embedder, limiter: limiter}
}

// Embed はレート制限に従って埋め込みを取得します
func (e *ThrottledEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter wait failed: %w", ErrEmbeddingService, err)
	}
	defer e.limiter.Release()

	return e.embedder.Embed(ctx, text)
}

// Dimension は埋め込みの次元数を返します
func (e *ThrottledEmbedder) Dimension() int {
	return e.embedder.Dimension()
}
