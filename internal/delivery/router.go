package delivery

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/nao1215/servicedesk/pkg/event"
)

// Notification は配送ルーターが作成する通知レコード。
// ファンアウトでは共有行ではなく、受信者ごとに1行を作成する。
type Notification struct {
	// ID は通知の一意識別子（UUID）。
	ID string
	// RecipientID は受信者のユーザーID。
	RecipientID string
	// Title は通知のタイトル。
	Title string
	// Message は通知メッセージ。
	Message string
	// Type はルーティングキー。
	Type string
}

// Store は通知の永続化先。internal/notificationのクエリ層が実装する。
type Store interface {
	// Create は通知を1件永続化する。
	Create(ctx context.Context, n Notification) error
}

// Selector はイベントの受信者を解決する。
// 受信者ゼロはエラーではなく「配送なし」を意味する。
type Selector func(ctx context.Context, ref event.Ref) ([]string, error)

// Router はドメインイベントを受信者ごとの通知レコードへファンアウトする。
// どのイベント種別を誰に届けるかはセレクターのマッピングとして
// 呼び出し側が与える。ロール名等のドメインポリシーはここには現れない。
type Router struct {
	// store は通知の永続化先。
	store Store
	// selectors はイベント種別キー（event.Ref.Kind()）からセレクターへのマッピング。
	selectors map[string]Selector
}

// New は新しい配送ルーターを生成する。
func New(store Store, selectors map[string]Selector) *Router {
	return &Router{store: store, selectors: selectors}
}

// Dispatch はイベントをエンコードし、解決された受信者ごとに通知を作成する。
// 作成に成功した件数と、失敗した作成のエラーを返す。
//
// セレクター未登録のイベント種別と受信者ゼロのイベントは
// 通知を作らずに正常終了する。
// 各受信者への作成は独立しており、一部の失敗が他の作成を妨げない。
// 失敗した作成の自動リトライは行わない（受信者・イベントごとに最大1回の配送）。
func (r *Router) Dispatch(ctx context.Context, ref event.Ref) (int, error) {
	payload, err := ref.Encode()
	if err != nil {
		return 0, fmt.Errorf("イベントのエンコードに失敗: %w", err)
	}

	selector, ok := r.selectors[ref.Kind()]
	if !ok {
		log.Printf("[Delivery] 配送ルール未登録のイベントを破棄します: kind=%s", ref.Kind())
		return 0, nil
	}

	recipients, err := selector(ctx, ref)
	if err != nil {
		return 0, fmt.Errorf("受信者の解決に失敗 (kind=%s): %w", ref.Kind(), err)
	}
	if len(recipients) == 0 {
		return 0, nil
	}

	var (
		created int
		errs    []error
	)
	for _, recipient := range dedupe(recipients) {
		n := Notification{
			ID:          uuid.New().String(),
			RecipientID: recipient,
			Title:       payload.Title,
			Message:     payload.Message,
			Type:        payload.Type,
		}
		if err := r.store.Create(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("受信者 %s への通知作成に失敗: %w", recipient, err))
			continue
		}
		created++
	}
	return created, errors.Join(errs...)
}

// dedupe は受信者リストから重複を取り除く。順序は維持する。
// 管理者と担当者が同一人物の場合に通知が二重に届くことを防ぐ。
func dedupe(recipients []string) []string {
	seen := make(map[string]struct{}, len(recipients))
	result := make([]string, 0, len(recipients))
	for _, r := range recipients {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		result = append(result, r)
	}
	return result
}
