package order

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// seedFile は注文投入ファイルの形式
//
//	orders:
//	  - orderId: A1
//	    username: sato
//	    product: keyboard
//	    status: shipped
//	    date: "2026-10-01"
type seedFile struct {
	Orders []*Record `yaml:"orders"`
}

// DecodeSeed はYAMLの注文一覧を読み込み、各レコードを検証します
func DecodeSeed(r io.Reader) ([]*Record, error) {
	var f seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: failed to parse order seed: %w", ErrInvalidRecord, err)
	}
	for i, rec := range f.Orders {
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("order #%d: %w", i+1, err)
		}
	}
	return f.Orders, nil
}

// LoadSeedFile はファイルから注文一覧を読み込みます
func LoadSeedFile(path string) ([]*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open order seed %s: %w", path, err)
	}
	defer f.Close()

	return DecodeSeed(f)
}
