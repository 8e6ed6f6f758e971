package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/jinford/assist-rag/internal/core/order"
	"github.com/jinford/assist-rag/internal/platform/config"
)

// OrderAddAction は注文を1件登録するコマンドのアクション。
// 注文IDを省略した場合は対話形式で入力を受け付けます
func OrderAddAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()
	warnIfEphemeral(appCtx)

	record := &order.Record{
		OrderID:  cmd.String("id"),
		Username: cmd.String("user"),
		Product:  cmd.String("product"),
		Status:   order.Status(cmd.String("status")),
		Date:     cmd.String("date"),
	}
	if record.OrderID == "" {
		if record, err = promptOrder(); err != nil {
			return err
		}
	}
	if record.Date == "" {
		record.Date = time.Now().Format(time.DateOnly)
	}

	if err := appCtx.Container.Orders.Insert(ctx, record); err != nil {
		if errors.Is(err, order.ErrDuplicateOrder) {
			return fmt.Errorf("注文 %s は既に登録されています: %w", record.OrderID, err)
		}
		return err
	}

	appCtx.Logger().Info("注文を登録しました", "orderId", record.OrderID)
	renderOrdersTable(os.Stdout, []*order.Record{record})
	return nil
}

// OrderShowAction は注文を1件表示するコマンドのアクション
func OrderShowAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	id := cmd.String("id")

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	found, err := appCtx.Container.Orders.Find(ctx, id)
	if err != nil {
		return err
	}
	rec, ok := found.Get()
	if !ok {
		return fmt.Errorf("注文が見つかりません %s", id)
	}

	renderOrdersTable(os.Stdout, []*order.Record{rec})
	return nil
}

// OrderListAction は注文一覧を表示するコマンドのアクション
func OrderListAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	records, err := appCtx.Container.Orders.List(ctx)
	if err != nil {
		return err
	}
	renderOrdersTable(os.Stdout, records)
	return nil
}

// OrderImportAction はYAMLファイルから注文を一括登録するコマンドのアクション
func OrderImportAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	path := cmd.String("file")

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()
	warnIfEphemeral(appCtx)

	records, err := order.LoadSeedFile(path)
	if err != nil {
		return err
	}
	if err := appCtx.Container.Orders.InsertAll(ctx, records); err != nil {
		return fmt.Errorf("注文の一括登録に失敗しました（何も登録されていません）: %w", err)
	}

	appCtx.Logger().Info("注文を一括登録しました", "path", path, "count", len(records))
	renderOrdersTable(os.Stdout, records)
	return nil
}

func warnIfEphemeral(appCtx *AppContext) {
	if appCtx.Container.Config.Orders.Store == config.OrderStoreMemory {
		appCtx.Logger().Warn("ORDER_STORE=memory のため登録内容はプロセス終了時に失われます")
	}
}

// promptOrder はインタラクティブに注文の入力を受け付けます
func promptOrder() (*order.Record, error) {
	rec := &order.Record{}

	fields := []struct {
		label string
		dest  *string
	}{
		{"注文ID", &rec.OrderID},
		{"購入者", &rec.Username},
		{"商品", &rec.Product},
	}
	for _, f := range fields {
		p := promptui.Prompt{Label: f.label}
		v, err := p.Run()
		if err != nil {
			return nil, err
		}
		*f.dest = v
	}

	items := make([]string, len(order.Statuses))
	for i, s := range order.Statuses {
		items[i] = string(s)
	}
	promptStatus := promptui.Select{
		Label: "状態",
		Items: items,
	}
	_, status, err := promptStatus.Run()
	if err != nil {
		return nil, err
	}
	rec.Status = order.Status(status)

	promptDate := promptui.Prompt{
		Label:   "注文日",
		Default: time.Now().Format(time.DateOnly),
	}
	if rec.Date, err = promptDate.Run(); err != nil {
		return nil, err
	}
	return rec, nil
}

// renderOrdersTable はテーブル形式で注文リストを表示します
func renderOrdersTable(w io.Writer, records []*order.Record) {
	table := tablewriter.NewWriter(w)
	table.Header("Order ID", "User", "Product", "Status", "Date")

	for _, r := range records {
		table.Append(
			r.OrderID,
			r.Username,
			r.Product,
			string(r.Status),
			r.Date,
		)
	}

	table.Render()
}
