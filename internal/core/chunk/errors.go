package chunk

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig はチャンク設定が不正な場合に返されます
var ErrInvalidConfig = errors.New("invalid chunk config")

// ConfigError は不正な設定項目を表します
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidConfig, e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}
