package textproc

import "strings"

const promptTemplate = "再生時間（到着時間、発車時間の優先順位）と駅名をCSV形式で出力してください。" +
	"駅名がローマ字の場合は日本語に変換してください。また、CSVのみを出力し、それ以外のテキストは出力しないでください。\n\n" +
	"入力例:\n```\n" +
	"0:00 オープニング\n" +
	"0:30 - 1:10 網走駅(A69) 始発\n" +
	"4:20 桂台駅(B79)\n" +
	"1:44:40 - 48:10 知床斜里\n" +
	"3:16:05 釧路 終着\n" +
	"```\n\n" +
	"出力例:\n```csv\n" +
	"0:30,網走\n" +
	"4:20,桂台\n" +
	"1:44:40,知床斜里\n" +
	"3:16:05,釧路\n" +
	"```\n\n" +
	"次のデータをCSVに変換してください。\n```\n{{TEXT}}\n```"

// Prompt wraps text in the conversion instructions.
func Prompt(text string) string {
	return strings.Replace(promptTemplate, "{{TEXT}}", text, 1)
}
