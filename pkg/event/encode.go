package event

import (
	"fmt"
	"strconv"
	"strings"
)

// Payload は通知として保存される表示用の内容。
// Typeはルーティングキーであり、表示アイコンの選択とディープリンクの両方に使われる。
type Payload struct {
	// Title は通知のタイトル。
	Title string `json:"title"`
	// Message は通知メッセージ。
	Message string `json:"message"`
	// Type はルーティングキー（RoutingKeyの出力）。
	Type string `json:"type"`
}

// entityLabels はエンティティ種類の日本語表示名。
var entityLabels = map[EntityKind]string{
	EntityComplaint:        "クレーム",
	EntityEvaluation:       "技術者評価",
	EntityServiceRequest:   "サービス依頼",
	EntityTechnicianRecord: "技術者記録",
}

// actionLabels は操作種別の日本語表示名。
var actionLabels = map[Action]string{
	ActionCreate:       "登録されました",
	ActionUpdate:       "更新されました",
	ActionDelete:       "削除されました",
	ActionStatusChange: "のステータスが変更されました",
}

// Kind はIDを含まないイベント種別キーを返す。
// 配送ルールのマッピングキーとして使用する。
// 例: "create_complaint"、"complaint_list"
func (r Ref) Kind() string {
	if r.List {
		return fmt.Sprintf("%s_list", r.Entity)
	}
	return fmt.Sprintf("%s_%s", r.Action, r.Entity)
}

// RoutingKey はRefをレガシー互換のルーティングキーへ直列化する。
// エンティティ単位のイベントは "{action}_{entityKind}:{entityId}"、
// 一覧単位のイベントは "{entityKind}_list" となる。
// 同一のRefからは常に同一のキーが得られる。
// IDはint64なので区切り文字のコロンが混入することは構造上ない。
func (r Ref) RoutingKey() string {
	if r.List {
		return fmt.Sprintf("%s_list", r.Entity)
	}
	return fmt.Sprintf("%s_%s:%d", r.Action, r.Entity, r.EntityID)
}

// ParseRoutingKey は本パッケージのRoutingKeyが生成したキーをRefへ復元する。
// 旧エンコーダー由来のキー（部分一致でしか解釈できないもの）には対応しない。
// それらはdeeplinkパッケージが処理する。
func ParseRoutingKey(key string) (Ref, error) {
	if entity, found := strings.CutSuffix(key, "_list"); found {
		r := Ref{Entity: EntityKind(entity), List: true}
		if _, ok := validEntities[r.Entity]; !ok {
			return Ref{}, fmt.Errorf("未知のエンティティ種類です: %q", key)
		}
		return r, nil
	}

	head, idStr, found := strings.Cut(key, ":")
	if !found {
		return Ref{}, fmt.Errorf("ルーティングキーの形式が不正です: %q", key)
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return Ref{}, fmt.Errorf("エンティティIDの解析に失敗: %q: %w", key, err)
	}

	// 操作種別にはアンダースコアを含むもの（status_change）があるため、
	// エンティティ種類を末尾から切り出す。
	sep := strings.LastIndex(head, "_")
	if sep < 0 {
		return Ref{}, fmt.Errorf("ルーティングキーの形式が不正です: %q", key)
	}

	r := Ref{
		Action:   Action(head[:sep]),
		Entity:   EntityKind(head[sep+1:]),
		EntityID: id,
	}
	if !r.Valid() {
		return Ref{}, fmt.Errorf("未知の操作種別またはエンティティ種類です: %q", key)
	}
	return r, nil
}

// Encode はRefから通知の表示内容とルーティングキーを生成する。
// 同一のRefからは常に同一のPayloadが得られる（リトライの冪等性に必要）。
func (r Ref) Encode() (Payload, error) {
	if !r.Valid() {
		return Payload{}, fmt.Errorf("未知の操作種別またはエンティティ種類です: action=%q, entity=%q", r.Action, r.Entity)
	}

	label := entityLabels[r.Entity]
	action := actionLabels[r.Action]

	if r.List {
		return Payload{
			Title:   fmt.Sprintf("%s一覧が更新されました", label),
			Message: fmt.Sprintf("%s一覧に変更がありました。一覧を確認してください。", label),
			Type:    r.RoutingKey(),
		}, nil
	}

	var title string
	if r.Action == ActionStatusChange {
		title = fmt.Sprintf("%s%s", label, action)
	} else {
		title = fmt.Sprintf("%sが%s", label, action)
	}

	return Payload{
		Title:   title,
		Message: fmt.Sprintf("%s（ID: %d）に変更がありました。詳細を確認してください。", label, r.EntityID),
		Type:    r.RoutingKey(),
	}, nil
}
