// Package chunk はテキストを重複付きのチャンクへ再帰的に分割します。
package chunk

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Chunk は分割されたテキスト片
type Chunk struct {
	Text         string
	SourceOffset int // 元テキスト先頭からの文字（rune）位置
}

// LengthFunc はテキストの長さを測る関数
type LengthFunc func(string) int

// RuneLength は文字数で長さを測ります
func RuneLength(s string) int {
	return utf8.RuneCountInString(s)
}

// Option は Splitter のオプション
type Option func(*Splitter)

// WithLengthFunc は長さの計測方法を差し替えます
func WithLengthFunc(fn LengthFunc) Option {
	return func(s *Splitter) {
		if fn != nil {
			s.length = fn
		}
	}
}

// MinTokenChunkSize はトークン単位で測る場合の最小チャンク長。
// 1文字は最大 utf8.UTFMax バイトで、バイト単位のBPEでは1バイトが高々1トークンになるため、
// この長さ以上なら1文字だけのチャンクも上限を超えません
const MinTokenChunkSize = utf8.UTFMax

// WithTokenLength はトークン数で長さを測ります
func WithTokenLength(tc *TokenCounter) Option {
	return func(s *Splitter) {
		s.length = tc.Count
		s.minSize = MinTokenChunkSize
	}
}

// Splitter は再帰的な文字区切りによるチャンク分割器
type Splitter struct {
	size       int
	overlap    int
	separators []string
	length     LengthFunc
	minSize    int
}

// NewSplitter は設定を検証して Splitter を作成します
func NewSplitter(cfg Config, opts ...Option) (*Splitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Splitter{
		size:       cfg.ChunkSize,
		overlap:    cfg.ChunkOverlap,
		separators: cfg.separators(),
		length:     RuneLength,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.size < s.minSize {
		return nil, &ConfigError{Field: "chunk_size", Reason: fmt.Sprintf("must be at least %d for this length unit", s.minSize)}
	}
	return s, nil
}

// Split はテキストをチャンクに分割します。空のテキストは空のスライスを返します
func (s *Splitter) Split(text string) []Chunk {
	chunks := []Chunk{}
	if text == "" {
		return chunks
	}

	cursor := &runeCursor{text: text}
	for _, doc := range s.split(piece{text: text}, s.separators) {
		trimmed := strings.TrimLeftFunc(doc.text, unicode.IsSpace)
		lead := len(doc.text) - len(trimmed)
		trimmed = strings.TrimRightFunc(trimmed, unicode.IsSpace)
		if trimmed == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			Text:         trimmed,
			SourceOffset: cursor.runeAt(doc.offset + lead),
		})
	}
	return chunks
}

// piece は元テキスト上のバイト位置を保持した断片
type piece struct {
	text   string
	offset int
}

func (s *Splitter) split(seg piece, separators []string) []piece {
	separator := separators[len(separators)-1]
	var rest []string
	for i, sep := range separators {
		if sep == "" {
			separator = ""
			break
		}
		if strings.Contains(seg.text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	var out, good []piece
	for _, sp := range splitKeepEnd(seg, separator) {
		if s.length(sp.text) < s.size {
			good = append(good, sp)
			continue
		}
		if len(good) > 0 {
			out = append(out, s.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			out = append(out, sp)
		} else {
			out = append(out, s.split(sp, rest)...)
		}
	}
	if len(good) > 0 {
		out = append(out, s.merge(good)...)
	}
	return out
}

// merge は連続した断片を chunk size まで結合し、末尾の overlap 分を次へ持ち越します
func (s *Splitter) merge(splits []piece) []piece {
	var docs, current []piece
	total := 0
	for _, d := range splits {
		l := s.length(d.text)
		if total+l > s.size && len(current) > 0 {
			docs = append(docs, join(current))
			for len(current) > 0 && (total > s.overlap || total+l > s.size) {
				total -= s.length(current[0].text)
				current = current[1:]
			}
		}
		current = append(current, d)
		total += l
	}
	if len(current) > 0 {
		docs = append(docs, join(current))
	}
	return docs
}

// 断片は元テキスト上で連続していること
func join(parts []piece) piece {
	if len(parts) == 1 {
		return parts[0]
	}
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.text)
	}
	return piece{text: b.String(), offset: parts[0].offset}
}

// splitKeepEnd は区切り文字を直前の断片の末尾に残して分割します
func splitKeepEnd(seg piece, sep string) []piece {
	var out []piece
	if sep == "" {
		for i := 0; i < len(seg.text); {
			_, size := utf8.DecodeRuneInString(seg.text[i:])
			out = append(out, piece{text: seg.text[i : i+size], offset: seg.offset + i})
			i += size
		}
		return out
	}

	start := 0
	for {
		idx := strings.Index(seg.text[start:], sep)
		if idx < 0 {
			break
		}
		end := start + idx + len(sep)
		out = append(out, piece{text: seg.text[start:end], offset: seg.offset + start})
		start = end
	}
	if start < len(seg.text) {
		out = append(out, piece{text: seg.text[start:], offset: seg.offset + start})
	}
	return out
}

// runeCursor はバイト位置を文字位置へ変換します。近い位置への連続した問い合わせを想定しています
type runeCursor struct {
	text string
	b, r int
}

func (c *runeCursor) runeAt(b int) int {
	if b >= c.b {
		c.r += utf8.RuneCountInString(c.text[c.b:b])
	} else {
		c.r -= utf8.RuneCountInString(c.text[b:c.b])
	}
	c.b = b
	return c.r
}
