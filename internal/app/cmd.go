package app

import (
	"fmt"
	"strings"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーと公開ディレクトリの配信。
	CommandServe Command = "serve"
	// CommandWorker は配信元フィードの取り込み、サイトマップ生成、セッション掃除。
	CommandWorker Command = "worker"
	// CommandMigrate はPostgreSQLバックエンドのスキーマ適用。
	CommandMigrate Command = "migrate"
	// CommandNormalize はデータセット正規化の1回実行。
	CommandNormalize Command = "normalize"
	// CommandHealthcheck はdistroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

var commands = []Command{CommandServe, CommandWorker, CommandMigrate, CommandNormalize, CommandHealthcheck}

// ParseCommand はコマンドライン引数の先頭からサブコマンドを解析する。
// 引数が空の場合はCommandServeを返す。2番目以降の引数は無視する。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return CommandServe, nil
	}

	for _, c := range commands {
		if args[0] == string(c) {
			return c, nil
		}
	}

	names := make([]string, len(commands))
	for i, c := range commands {
		names[i] = string(c)
	}
	return "", fmt.Errorf("unknown command %q (available: %s)", args[0], strings.Join(names, ", "))
}
