package llm

import (
	"errors"
	"math"
)

// ErrZeroVector は正規化できないゼロベクトルを表します
var ErrZeroVector = errors.New("cannot normalize zero vector")

// Normalize はベクトルをL2ノルム1に正規化した新しいスライスを返します
func Normalize(v []float32) ([]float32, error) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return nil, ErrZeroVector
	}

	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, nil
}

// Dot は2つのベクトルの内積を返します。長さが異なる場合は短い方に合わせます
func Dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
