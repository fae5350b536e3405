package event

// Action はドメインイベントの操作種別を表す。
type Action string

const (
	// ActionCreate はエンティティが新規作成されたことを表す。
	ActionCreate Action = "create"
	// ActionUpdate はエンティティが更新されたことを表す。
	ActionUpdate Action = "update"
	// ActionDelete はエンティティが削除されたことを表す。
	ActionDelete Action = "delete"
	// ActionStatusChange はエンティティのステータスが変更されたことを表す。
	ActionStatusChange Action = "status_change"
)

// EntityKind はイベントの対象となるエンティティの種類を表す。
// 値はルーティングキーにそのまま埋め込まれるため、
// 区切り文字のコロンとアンダースコアを含んではならない。
type EntityKind string

const (
	// EntityComplaint はクレームを表す。
	EntityComplaint EntityKind = "complaint"
	// EntityEvaluation は技術者評価を表す。
	EntityEvaluation EntityKind = "evaluation"
	// EntityServiceRequest はサービス依頼を表す。
	EntityServiceRequest EntityKind = "request"
	// EntityTechnicianRecord は技術者記録を表す。
	EntityTechnicianRecord EntityKind = "technician"
)

// Ref はドメインイベントの対象を一意に指す参照。
// 旧実装は操作・種類・IDを1本の文字列に詰め込んでいたが、
// 本実装では明示的なタグ付き構造体として扱い、
// 文字列表現はRoutingKeyによる直列化でのみ使用する。
type Ref struct {
	// Action はイベントの操作種別。
	Action Action
	// Entity は対象エンティティの種類。
	Entity EntityKind
	// EntityID は対象エンティティのID。Listがtrueの場合は無視される。
	EntityID int64
	// List は単一エンティティではなく一覧全体を対象とするイベントであることを表す。
	List bool
}

// validActions は既知の操作種別の集合。
var validActions = map[Action]struct{}{
	ActionCreate:       {},
	ActionUpdate:       {},
	ActionDelete:       {},
	ActionStatusChange: {},
}

// validEntities は既知のエンティティ種類の集合。
var validEntities = map[EntityKind]struct{}{
	EntityComplaint:        {},
	EntityEvaluation:       {},
	EntityServiceRequest:   {},
	EntityTechnicianRecord: {},
}

// Valid はRefが既知の操作種別とエンティティ種類の組み合わせであるかを返す。
func (r Ref) Valid() bool {
	if _, ok := validActions[r.Action]; !ok {
		return false
	}
	_, ok := validEntities[r.Entity]
	return ok
}
