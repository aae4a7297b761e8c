package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はローカルHTTPサーバーとして起動することを示す。
	CommandServe Command = "serve"
	// CommandShow はカレンダーと進捗を表示することを示す。
	CommandShow Command = "show"
	// CommandToggle は指定した日付をトグルすることを示す。
	CommandToggle Command = "toggle"
	// CommandShare は共有リンクをクリップボードにコピーすることを示す。
	CommandShare Command = "share"
	// CommandSummary はAIによる予定の要約を表示することを示す。
	CommandSummary Command = "summary"
	// CommandExport は予約済みの日をiCalendar形式で出力することを示す。
	CommandExport Command = "export"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch Command(args[0]) {
	case CommandServe, CommandShow, CommandToggle, CommandShare,
		CommandSummary, CommandExport, CommandHealthcheck:
		return Command(args[0])
	default:
		return CommandServe
	}
}

// commandArgs はサブコマンド名を取り除いた残りの引数を返す。
func commandArgs(cmd Command, args []string) []string {
	if len(args) > 0 && Command(args[0]) == cmd {
		return args[1:]
	}
	return args
}
