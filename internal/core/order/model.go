// Package order は注文レコードと参照用のリポジトリインターフェースを定義します。
package order

import (
	"fmt"
	"strings"
)

// Status は注文の状態
type Status string

const (
	StatusAwaitingPayment Status = "awaiting_payment"
	StatusPaid            Status = "paid"
	StatusShipped         Status = "shipped"
	StatusCompleted       Status = "completed"
	StatusCancelled       Status = "cancelled"
)

// Statuses は有効な状態の一覧
var Statuses = []Status{
	StatusAwaitingPayment,
	StatusPaid,
	StatusShipped,
	StatusCompleted,
	StatusCancelled,
}

// Valid は有効な状態かどうかを返します
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Record は注文レコード
type Record struct {
	OrderID  string `json:"orderId" yaml:"orderId"`
	Username string `json:"username" yaml:"username"`
	Product  string `json:"product" yaml:"product"`
	Status   Status `json:"status" yaml:"status"`
	Date     string `json:"date" yaml:"date"`
}

// Validate はレコードを検証します
func (r *Record) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}
	if strings.TrimSpace(r.OrderID) == "" {
		return fmt.Errorf("%w: orderId is required", ErrInvalidRecord)
	}
	if !r.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidRecord, r.Status)
	}
	return nil
}
