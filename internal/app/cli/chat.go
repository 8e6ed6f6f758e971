package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/urfave/cli/v3"

	"github.com/jinford/assist-rag/internal/core/ingestion"
	"github.com/jinford/assist-rag/internal/core/session"
	"github.com/jinford/assist-rag/internal/infra/watcher"
	"github.com/jinford/assist-rag/internal/platform/container"
)

// ChatAction は対話形式でアシスタントと会話するコマンドのアクション
func ChatAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	docPath := cmd.String("doc")
	watch := cmd.Bool("watch")

	if watch && docPath == "" {
		return errors.New("--watch requires --doc")
	}

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	app := appCtx.Container
	sess := app.NewSession()

	// ドキュメントのインデックス化
	if docPath != "" {
		if err := indexFile(ctx, app, sess, docPath); err != nil {
			return err
		}
	}

	// ドキュメント変更の監視
	if watch {
		w, err := watcher.New(watcher.WithLogger(appCtx.Logger()))
		if err != nil {
			return err
		}
		defer w.Close()

		changes, err := w.Watch(ctx, docPath)
		if err != nil {
			return err
		}
		go func() {
			for range changes {
				if err := indexFile(sess.Context(), app, sess, docPath); err != nil {
					fmt.Fprintf(os.Stderr, "再インデックスに失敗しました: %v\n", err)
				}
			}
		}()
	}

	fmt.Printf("%s\n(終了するには exit と入力してください)\n\n", app.Profile.Description)
	return chatLoop(ctx, app, sess)
}

func chatLoop(ctx context.Context, app *container.Container, sess *session.Session) error {
	name := app.Profile.Name
	if name == "" {
		name = "assistant"
	}

	for {
		prompt := promptui.Prompt{
			Label: "あなた",
		}
		text, err := prompt.Run()
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return nil
		}
		if err != nil {
			return err
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if text == "exit" || text == "quit" {
			return nil
		}

		reply, err := app.Assistant.Respond(ctx, sess, text)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		fmt.Printf("%s: %s\n", name, reply.Text)
		if sources := lastSources(sess); len(sources) > 0 {
			fmt.Printf("  出典: %s\n", strings.Join(sources, ", "))
		}
		fmt.Println()
	}
}

func indexFile(ctx context.Context, app *container.Container, sess *session.Session, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read document %s: %w", path, err)
	}

	snap, err := app.IndexDocument(ctx, sess, ingestion.Document{Name: path, Content: content})
	if err != nil {
		return fmt.Errorf("failed to index document %s: %w", path, err)
	}
	fmt.Printf("%s を %d 個のチャンクに分割してインデックス化しました\n", path, len(snap.Chunks))
	return nil
}

func lastSources(sess *session.Session) []string {
	msgs := sess.Log.Messages()
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1].Sources
}
