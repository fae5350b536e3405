package delivery

import (
	"context"
	"fmt"

	"github.com/nao1215/servicedesk/pkg/event"
)

// Directory は受信者解決に使用するユーザーディレクトリ。
// 実体は外部コラボレーター（ユーザーサービス）へのHTTPクライアント。
type Directory interface {
	// UserIDsByRole は指定ロールを持つ全ユーザーのIDを返す。
	UserIDsByRole(ctx context.Context, role string) ([]string, error)
	// ComplaintAssignee はクレームの担当者のユーザーIDを返す。
	// 担当者が未割り当ての場合は空文字列を返す。
	ComplaintAssignee(ctx context.Context, complaintID int64) (string, error)
	// TechnicianSupervisor は技術者の上長のユーザーIDを返す。
	// 上長が存在しない場合は空文字列を返す。
	TechnicianSupervisor(ctx context.Context, technicianID int64) (string, error)
}

// PolicyConfig は既定の配送ポリシーの設定。
// ロール名はルーターに焼き込まず、設定として注入する。
type PolicyConfig struct {
	// AdminRole は全体向けイベントを受け取る管理者ロール名。
	AdminRole string
}

// DefaultSelectors は既定の配送ポリシーをセレクターのマッピングとして構築する。
//
//   - 一覧単位のイベントと削除イベントは管理者全員に届く。
//   - クレームのステータス変更は担当者に届く。
//   - 評価・技術者記録のイベントは対象技術者の上長に届く。
//   - それ以外のエンティティ単位の作成・更新は管理者全員に届く。
func DefaultSelectors(cfg PolicyConfig, dir Directory) map[string]Selector {
	admins := byRole(dir, cfg.AdminRole)
	supervisor := technicianSupervisor(dir)

	selectors := map[string]Selector{
		event.Ref{Action: event.ActionStatusChange, Entity: event.EntityComplaint}.Kind(): complaintAssignee(dir),

		event.Ref{Action: event.ActionCreate, Entity: event.EntityEvaluation}.Kind():       supervisor,
		event.Ref{Action: event.ActionUpdate, Entity: event.EntityEvaluation}.Kind():       supervisor,
		event.Ref{Action: event.ActionStatusChange, Entity: event.EntityEvaluation}.Kind(): supervisor,
		event.Ref{Action: event.ActionCreate, Entity: event.EntityTechnicianRecord}.Kind(): supervisor,
		event.Ref{Action: event.ActionUpdate, Entity: event.EntityTechnicianRecord}.Kind(): supervisor,

		event.Ref{Action: event.ActionCreate, Entity: event.EntityComplaint}.Kind():           admins,
		event.Ref{Action: event.ActionUpdate, Entity: event.EntityComplaint}.Kind():           admins,
		event.Ref{Action: event.ActionCreate, Entity: event.EntityServiceRequest}.Kind():      admins,
		event.Ref{Action: event.ActionUpdate, Entity: event.EntityServiceRequest}.Kind():      admins,
		event.Ref{Action: event.ActionStatusChange, Entity: event.EntityServiceRequest}.Kind(): admins,
	}

	// 削除と一覧更新は全体向けイベントとして管理者全員に届ける。
	for _, entity := range []event.EntityKind{
		event.EntityComplaint,
		event.EntityEvaluation,
		event.EntityServiceRequest,
		event.EntityTechnicianRecord,
	} {
		selectors[event.Ref{Action: event.ActionDelete, Entity: entity}.Kind()] = admins
		selectors[event.Ref{Entity: entity, List: true}.Kind()] = admins
	}

	return selectors
}

// byRole は指定ロールの全ユーザーを受信者とするセレクターを返す。
func byRole(dir Directory, role string) Selector {
	return func(ctx context.Context, _ event.Ref) ([]string, error) {
		ids, err := dir.UserIDsByRole(ctx, role)
		if err != nil {
			return nil, fmt.Errorf("ロール %q のユーザー取得に失敗: %w", role, err)
		}
		return ids, nil
	}
}

// complaintAssignee はクレームの担当者を受信者とするセレクターを返す。
// 担当者が未割り当ての場合は受信者ゼロとなる。
func complaintAssignee(dir Directory) Selector {
	return func(ctx context.Context, ref event.Ref) ([]string, error) {
		assignee, err := dir.ComplaintAssignee(ctx, ref.EntityID)
		if err != nil {
			return nil, fmt.Errorf("クレーム %d の担当者取得に失敗: %w", ref.EntityID, err)
		}
		if assignee == "" {
			return nil, nil
		}
		return []string{assignee}, nil
	}
}

// technicianSupervisor は対象技術者の上長を受信者とするセレクターを返す。
// 評価・技術者記録イベントのEntityIDは技術者IDを指す。
func technicianSupervisor(dir Directory) Selector {
	return func(ctx context.Context, ref event.Ref) ([]string, error) {
		supervisor, err := dir.TechnicianSupervisor(ctx, ref.EntityID)
		if err != nil {
			return nil, fmt.Errorf("技術者 %d の上長取得に失敗: %w", ref.EntityID, err)
		}
		if supervisor == "" {
			return nil, nil
		}
		return []string{supervisor}, nil
	}
}
