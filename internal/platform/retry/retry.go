// Package retry は外部呼び出しにタイムアウトと指数バックオフ付きの再試行を提供します。
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultTimeout は1回の試行あたりのタイムアウト
	DefaultTimeout = 60 * time.Second
	// DefaultMaxRetries は初回以降の最大再試行回数
	DefaultMaxRetries = 3
	// DefaultInitialBackoff は最初の待機時間
	DefaultInitialBackoff = 2 * time.Second
	// DefaultMaxBackoff は待機時間の上限
	DefaultMaxBackoff = 32 * time.Second
)

// Policy は再試行ポリシー
type Policy struct {
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultPolicy はデフォルトの再試行ポリシーを返します
func DefaultPolicy() Policy {
	return Policy{
		Timeout:        DefaultTimeout,
		MaxRetries:     DefaultMaxRetries,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
	}
}

// NoRetry は1回だけ試行するポリシーを返します
func NoRetry(timeout time.Duration) Policy {
	return Policy{Timeout: timeout}
}

// Permanent は再試行しないエラーとしてマークします
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Notify は再試行の直前に呼ばれます
type Notify func(err error, attempt int, wait time.Duration)

// Do は op をポリシーに従って実行します。
// 各試行には Timeout を上限とする子コンテキストが渡されます。
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	return DoNotify(ctx, p, op, nil)
}

// DoNotify は Do に再試行通知を加えたものです
func DoNotify(ctx context.Context, p Policy, op func(ctx context.Context) error, notify Notify) error {
	attempt := 0
	operation := func() error {
		attempt++
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}

		attemptCtx := ctx
		if p.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, p.Timeout)
			defer cancel()
		}

		err := op(attemptCtx)
		if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			// 呼び出し元のキャンセルは再試行しない
			return backoff.Permanent(err)
		}
		return err
	}

	var onRetry func(error, time.Duration)
	if notify != nil {
		onRetry = func(err error, wait time.Duration) {
			notify(err, attempt, wait)
		}
	}

	return backoff.RetryNotify(operation, p.backOff(ctx), onRetry)
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	if p.InitialBackoff > 0 {
		eb.InitialInterval = p.InitialBackoff
	}
	if p.MaxBackoff > 0 {
		eb.MaxInterval = p.MaxBackoff
	}
	eb.Multiplier = 2
	eb.MaxElapsedTime = 0
	eb.Reset()

	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(retries)), ctx)
}
