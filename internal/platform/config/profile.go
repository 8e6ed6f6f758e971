package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile はアシスタントのプロフィールファイルの内容
//
//	name: ショップアシスタント
//	description: あなたはオンラインショップのサポート担当です。
//	replies:
//	  orderUnavailable: 注文サービスは現在ご利用いただけません。
type Profile struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Replies     ProfileReply `yaml:"replies"`
}

// ProfileReply はモデルを呼ばずに返す定型文。空の項目は既定の文面になります
type ProfileReply struct {
	KnowledgeNotConfigured string `yaml:"knowledgeNotConfigured"`
	KnowledgeUnavailable   string `yaml:"knowledgeUnavailable"`
	OrderUnavailable       string `yaml:"orderUnavailable"`
	Escalation             string `yaml:"escalation"`
	Deferred               string `yaml:"deferred"`
}

// LoadProfile はYAMLのプロフィールファイルを読み込みます
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile %s: %w", path, err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: failed to parse profile %s: %w", ErrInvalidConfig, path, err)
	}
	if p.Description == "" {
		return nil, fmt.Errorf("%w: profile %s has no description", ErrInvalidConfig, path)
	}
	return &p, nil
}
