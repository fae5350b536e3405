package deeplink

import (
	"fmt"
	"strings"
)

// Target は通知クリック時の遷移先。
type Target struct {
	// Path は遷移先のパス（クエリ文字列を含む）。
	Path string
}

// Resolve はルーティングキーを遷移先へ解決する。
// 解決できないキーの場合はfalseを返し、呼び出し側は「遷移なし」として扱う。
//
// この文法は意図的に部分一致で判定する。保存済みの通知には
// 旧エンコーダーが生成した表記ゆれ（コロン区切りと素のキーの混在）が
// 残っているため、完全一致に「修正」すると過去の行が解決できなくなる。
//
// 判定は以下の固定順で行い、最初に一致した分岐が採用される。
// "complaint"と"request"の両方を含むキーはclaim分岐が優先される。
//
//  1. "evaluation"または"technician"を含む → /evaluations?techId={末尾セグメント}
//     （technicianは本実装で明示的に追加した拡張。技術者記録の通知は
//     評価一覧を技術者IDで開く）
//  2. "complaint"を含み"list"を含まない → /complaints/{末尾セグメント}
//  3. "complaint_list"または旧形式の素の"create" → /complaints
//  4. "request"を含みコロンを含まない → /requests
//     （"delete_request"や"request_list"など一覧単位のキーを包含する）
//  5. "request"を含む → /requests/{末尾セグメント}
func Resolve(key string) (Target, bool) {
	if key == "" {
		return Target{}, false
	}

	segments := strings.Split(key, ":")
	last := segments[len(segments)-1]

	switch {
	case strings.Contains(key, "evaluation") || strings.Contains(key, "technician"):
		return Target{Path: fmt.Sprintf("/evaluations?techId=%s", last)}, true
	case strings.Contains(key, "complaint") && !strings.Contains(key, "list"):
		return Target{Path: fmt.Sprintf("/complaints/%s", last)}, true
	case key == "complaint_list" || key == "create":
		return Target{Path: "/complaints"}, true
	case strings.Contains(key, "request") && len(segments) == 1:
		return Target{Path: "/requests"}, true
	case strings.Contains(key, "request"):
		return Target{Path: fmt.Sprintf("/requests/%s", last)}, true
	default:
		return Target{}, false
	}
}
