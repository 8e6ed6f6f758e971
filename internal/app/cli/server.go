package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	httpapi "github.com/jinford/assist-rag/internal/interface/http"
)

// ServerStartAction はHTTPサーバを起動するコマンドのアクション
func ServerStartAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	port := appCtx.Container.Config.HTTP.Port
	if cmd.IsSet("port") {
		port = int(cmd.Int("port"))
	}

	srv := httpapi.NewServer(appCtx.Container)
	return srv.ListenAndServe(ctx, fmt.Sprintf(":%d", port))
}
