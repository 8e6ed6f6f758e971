package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	appcli "github.com/jinford/assist-rag/internal/app/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "assist-rag",
		Usage: "ドキュメント検索と注文照会に対応した会話アシスタント",
		Commands: []*cli.Command{
			{
				Name:  "chat",
				Usage: "対話セッションを開始",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{
						Name:  "doc",
						Usage: "ナレッジとして読み込むドキュメントのパス",
					},
					&cli.BoolFlag{
						Name:  "watch",
						Usage: "ドキュメントの変更を監視して再インデックス（--doc が必要）",
					},
				},
				Action: appcli.ChatAction,
			},
			{
				Name:  "index",
				Usage: "ドキュメントをチャンク分割・インデックス化して表示",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{
						Name:     "file",
						Usage:    "ドキュメントのパス",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "query",
						Usage: "インデックスに対する検索クエリ",
					},
					&cli.IntFlag{
						Name:  "chunk-size",
						Usage: "チャンクの最大長（省略時は環境変数）",
					},
					&cli.IntFlag{
						Name:  "chunk-overlap",
						Usage: "チャンク間の重複長（省略時は環境変数）",
					},
					&cli.StringSliceFlag{
						Name:  "separator",
						Usage: "区切り文字（優先順に複数指定可、\\n などのエスケープ可）",
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "検索結果件数（省略時は環境変数）",
					},
				},
				Action: appcli.IndexAction,
			},
			{
				Name:  "order",
				Usage: "注文管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "add",
						Usage: "注文を登録（--id 省略時は対話入力）",
						Flags: []cli.Flag{
							envFlag(),
							&cli.StringFlag{
								Name:  "id",
								Usage: "注文ID",
							},
							&cli.StringFlag{
								Name:  "user",
								Usage: "購入者",
							},
							&cli.StringFlag{
								Name:  "product",
								Usage: "商品",
							},
							&cli.StringFlag{
								Name:  "status",
								Usage: "状態 (awaiting_payment, paid, shipped, completed, cancelled)",
								Value: "awaiting_payment",
							},
							&cli.StringFlag{
								Name:  "date",
								Usage: "注文日 (YYYY-MM-DD、省略時は当日)",
							},
						},
						Action: appcli.OrderAddAction,
					},
					{
						Name:  "show",
						Usage: "注文詳細を表示",
						Flags: []cli.Flag{
							envFlag(),
							&cli.StringFlag{
								Name:     "id",
								Usage:    "注文ID",
								Required: true,
							},
						},
						Action: appcli.OrderShowAction,
					},
					{
						Name:  "list",
						Usage: "注文一覧を表示",
						Flags: []cli.Flag{
							envFlag(),
						},
						Action: appcli.OrderListAction,
					},
					{
						Name:  "import",
						Usage: "YAML形式から一括登録",
						Flags: []cli.Flag{
							envFlag(),
							&cli.StringFlag{
								Name:     "file",
								Usage:    "YAMLファイルパス",
								Required: true,
							},
						},
						Action: appcli.OrderImportAction,
					},
				},
			},
			{
				Name:  "server",
				Usage: "HTTPサーバ管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "start",
						Usage: "HTTPサーバを起動",
						Flags: []cli.Flag{
							envFlag(),
							&cli.IntFlag{
								Name:  "port",
								Usage: "HTTPポート（省略時は環境変数またはデフォルトの8080）",
								Value: 8080,
							},
						},
						Action: appcli.ServerStartAction,
					},
				},
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func envFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "env",
		Usage: "環境変数ファイルパス",
		Value: ".env",
	}
}
