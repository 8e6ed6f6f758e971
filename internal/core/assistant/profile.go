// Package assistant はユーザー発話を分類し、ナレッジ・注文・引き継ぎの各ハンドラーへ振り分けます。
package assistant

import (
	"fmt"
	"math"
	"strings"

	"github.com/jinford/assist-rag/internal/core/intent"
	"github.com/jinford/assist-rag/internal/core/search"
)

// DefaultHandoffThreshold はこれを超える確信度で即時に担当者へ引き継ぐ閾値
const DefaultHandoffThreshold = 0.6

// Profile はアシスタントの名前と説明。説明はシステムプロンプトと挨拶に使われます
type Profile struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

// DefaultProfile は既定のプロフィールを返します
func DefaultProfile() Profile {
	return Profile{
		Name:        "AIアシスタント",
		Description: "あなたはオンラインショップのカスタマーサポート担当のAIアシスタントです。丁寧かつ簡潔に回答してください。",
	}
}

// Messages はモデルを呼ばずに返す定型文
type Messages struct {
	KnowledgeNotConfigured string `yaml:"knowledgeNotConfigured"`
	KnowledgeUnavailable   string `yaml:"knowledgeUnavailable"`
	OrderUnavailable       string `yaml:"orderUnavailable"`
	Escalation             string `yaml:"escalation"`
	Deferred               string `yaml:"deferred"`
}

// DefaultMessages は既定の定型文を返します
func DefaultMessages() Messages {
	return Messages{
		KnowledgeNotConfigured: "ナレッジベースが設定されていません。先にドキュメントをアップロードしてください。",
		KnowledgeUnavailable:   "申し訳ありません。現在ナレッジベースを検索できません。しばらくしてから再度お試しください。",
		OrderUnavailable:       "申し訳ありません。注文サービスが一時的に利用できません。しばらくしてから再度お試しください。",
		Escalation:             "担当者におつなぎします。少々お待ちください。",
		Deferred:               "お問い合わせを受け付けました。担当者から後ほどご連絡いたします。",
	}
}

// withDefaults は空の項目を既定の定型文で埋めます
func (m Messages) withDefaults() Messages {
	d := DefaultMessages()
	fill := func(v *string, def string) {
		if strings.TrimSpace(*v) == "" {
			*v = def
		}
	}
	fill(&m.KnowledgeNotConfigured, d.KnowledgeNotConfigured)
	fill(&m.KnowledgeUnavailable, d.KnowledgeUnavailable)
	fill(&m.OrderUnavailable, d.OrderUnavailable)
	fill(&m.Escalation, d.Escalation)
	fill(&m.Deferred, d.Deferred)
	return m
}

// Policy は振り分けと回答の調整値
type Policy struct {
	// HandoffThreshold を確信度が超えると即時に引き継ぐ
	HandoffThreshold float64
	// TopK はナレッジ検索の取得件数
	TopK int
	// ClassificationFallback は分類に失敗した場合に使う結果
	ClassificationFallback intent.Result
}

// DefaultPolicy は既定のポリシーを返します
func DefaultPolicy() Policy {
	return Policy{
		HandoffThreshold:       DefaultHandoffThreshold,
		TopK:                   search.DefaultTopK,
		ClassificationFallback: intent.Fallback(),
	}
}

// Validate はポリシーを検証します
func (p Policy) Validate() error {
	if math.IsNaN(p.HandoffThreshold) || p.HandoffThreshold < 0 || p.HandoffThreshold > 1 {
		return fmt.Errorf("handoff threshold must be within [0,1]: %v", p.HandoffThreshold)
	}
	if p.TopK <= 0 {
		return fmt.Errorf("top-k must be positive: %d", p.TopK)
	}
	if err := p.ClassificationFallback.Validate(); err != nil {
		return fmt.Errorf("invalid classification fallback: %w", err)
	}
	return nil
}
