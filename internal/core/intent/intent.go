// Package intent はユーザー発話の意図分類を提供します。
package intent

import (
	"errors"
	"fmt"
	"math"
)

// ErrParse はモデルの分類結果を解釈できない場合のエラー
var ErrParse = errors.New("intent parse error")

// Type は意図の種別
type Type string

const (
	// TypeKnowledge はアップロードされた文書で回答できる質問
	TypeKnowledge Type = "knowledge"
	// TypeOrder は注文状況の問い合わせ
	TypeOrder Type = "order"
	// TypeOther はそれ以外（人間の担当者への引き継ぎ対象）
	TypeOther Type = "other"
)

var validTypes = map[Type]bool{
	TypeKnowledge: true,
	TypeOrder:     true,
	TypeOther:     true,
}

// Valid は既知の種別かどうかを返します
func (t Type) Valid() bool {
	return validTypes[t]
}

// Result は意図分類の結果
type Result struct {
	Type       Type    `json:"intentType"`
	Confidence float64 `json:"confidence"`
}

// Fallback は分類できなかった場合の既定の結果
func Fallback() Result {
	return Result{Type: TypeOther, Confidence: 0}
}

// Validate は結果が種別・確信度ともに有効かを検証します
func (r Result) Validate() error {
	if !r.Type.Valid() {
		return fmt.Errorf("%w: unknown intent type %q", ErrParse, r.Type)
	}
	if math.IsNaN(r.Confidence) || r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v out of range [0,1]", ErrParse, r.Confidence)
	}
	return nil
}
