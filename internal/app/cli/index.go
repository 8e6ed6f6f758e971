package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/jinford/assist-rag/internal/core/chunk"
	"github.com/jinford/assist-rag/internal/core/ingestion"
	"github.com/jinford/assist-rag/internal/core/search"
	"github.com/jinford/assist-rag/internal/platform/config"
	"github.com/jinford/assist-rag/internal/platform/logger"
)

// previewLength は表に表示するチャンク本文の最大文字数
const previewLength = 60

// IndexAction はドキュメントをチャンク分割・インデックス化して内容を表示するコマンドのアクション
func IndexAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	filePath := cmd.String("file")

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	// 1. チャンク設定（フラグで上書き）
	chunkCfg, err := chunkConfigFromFlags(cmd, appCtx.Container.Config)
	if err != nil {
		return err
	}

	// 2. インデックス構築
	content, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read document %s: %w", filePath, err)
	}
	result, err := appCtx.Container.Pipeline.Build(ctx, ingestion.Document{Name: filePath, Content: content}, chunkCfg)
	if err != nil {
		return err
	}

	fmt.Printf("%s: %d チャンク (size=%d, overlap=%d, %s)\n\n",
		filePath, len(result.Chunks), chunkCfg.ChunkSize, chunkCfg.ChunkOverlap, result.Duration)
	renderChunksTable(os.Stdout, result.Chunks)

	// 3. 検索
	query := cmd.String("query")
	if query == "" {
		return nil
	}
	topK := int(cmd.Int("top-k"))
	if topK <= 0 {
		topK = appCtx.Container.Config.Assistant.TopK
	}
	results, err := result.Index.Query(ctx, query, topK)
	if err != nil {
		return err
	}

	fmt.Printf("\n検索: %q (top-k=%d)\n\n", query, topK)
	renderResultsTable(os.Stdout, results)
	return nil
}

func chunkConfigFromFlags(cmd *cli.Command, cfg *config.Config) (chunk.Config, error) {
	chunkCfg := cfg.ChunkSettings()
	if cmd.IsSet("chunk-size") {
		chunkCfg.ChunkSize = int(cmd.Int("chunk-size"))
	}
	if cmd.IsSet("chunk-overlap") {
		chunkCfg.ChunkOverlap = int(cmd.Int("chunk-overlap"))
	}
	if cmd.IsSet("separator") {
		seps, err := config.ParseSeparators(strings.Join(cmd.StringSlice("separator"), "|"))
		if err != nil {
			return chunk.Config{}, err
		}
		chunkCfg.Separators = seps
	}
	return chunkCfg, chunkCfg.Validate()
}

// renderChunksTable はチャンク一覧をテーブル形式で表示します
func renderChunksTable(w io.Writer, chunks []chunk.Chunk) {
	table := tablewriter.NewWriter(w)
	table.Header("#", "Offset", "Length", "Text")

	for i, c := range chunks {
		table.Append(
			strconv.Itoa(i+1),
			strconv.Itoa(c.SourceOffset),
			strconv.Itoa(chunk.RuneLength(c.Text)),
			preview(c.Text),
		)
	}

	table.Render()
}

// renderResultsTable は検索結果をテーブル形式で表示します
func renderResultsTable(w io.Writer, results []search.Result) {
	table := tablewriter.NewWriter(w)
	table.Header("Source", "Score", "Offset", "Text")

	for _, r := range results {
		table.Append(
			fmt.Sprintf("chunk #%d", r.Rank),
			strconv.FormatFloat(r.Score, 'f', 4, 64),
			strconv.Itoa(r.Chunk.SourceOffset),
			preview(r.Chunk.Text),
		)
	}

	table.Render()
}

func preview(text string) string {
	return logger.Truncate(strings.ReplaceAll(text, "\n", " "), previewLength)
}
