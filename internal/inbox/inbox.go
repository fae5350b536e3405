package inbox

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/nao1215/servicedesk/pkg/deeplink"
)

// Notification はセッションキャッシュが保持する通知。
type Notification struct {
	// ID は通知の一意識別子。
	ID string
	// Title は通知のタイトル。
	Title string
	// Message は通知メッセージ。
	Message string
	// Type はルーティングキー。
	Type string
	// Read は既読状態。
	Read bool
	// CreatedAt は通知の作成日時。
	CreatedAt time.Time
}

// API は通知サービスへのアクセス手段。Clientが実装する。
type API interface {
	// List は自ユーザーの通知一覧を取得する。
	List(ctx context.Context) ([]Notification, error)
	// MarkRead は指定された通知を既読にする。
	MarkRead(ctx context.Context, id string) error
	// MarkAllRead は自ユーザーの全通知を既読にする。
	MarkAllRead(ctx context.Context) error
}

// Phase はキャッシュの取得状態を表す。
type Phase string

const (
	// PhaseIdle は一度も取得していない初期状態。
	PhaseIdle Phase = "idle"
	// PhaseFetching はサーバーから取得中の状態。
	PhaseFetching Phase = "fetching"
	// PhaseReady は取得済みの状態。
	PhaseReady Phase = "ready"
)

// mutationPhase は楽観的更新の進行状態を表す。
type mutationPhase string

const (
	// mutationPending はローカル反映済みでリモート確認待ちの状態。
	mutationPending mutationPhase = "pending"
	// mutationConfirmed はリモート確認が取れた状態。
	mutationConfirmed mutationPhase = "confirmed"
	// mutationRolledBack はリモート失敗によりローカル反映を巻き戻した状態。
	mutationRolledBack mutationPhase = "rolled_back"
)

// mutation は進行中の楽観的更新。確定または巻き戻しで終了する。
type mutation struct {
	// phase は更新の進行状態。
	phase mutationPhase
	// undo はローカル反映を巻き戻す処理。
	undo func()
}

// Cache はUIセッションが所有する通知キャッシュ。
// サーバーから取得した通知と楽観的なローカル既読状態を照合し、
// 未読数の導出とUIの再描画通知を担う。
//
// セッションごとに明示的に生成して持ち回る。プロセス全体で共有しない。
type Cache struct {
	// api は通知サービスへのアクセス手段。
	api API
	// onChange は表示の更新が必要になったときに呼ばれるフック。nil可。
	onChange func()

	// mu は以下のフィールドを保護するミューテックス。
	mu sync.Mutex
	// phase はキャッシュの取得状態。
	phase Phase
	// items は新着順（created_at降順、同時刻はid降順）の通知列。
	items []Notification
	// reconciling は楽観的更新のリモート確認待ちであることを表す。
	reconciling bool
	// refreshDeferred は確認待ち中に要求された再取得を保留していることを表す。
	refreshDeferred bool
}

// New は新しいセッションキャッシュを生成する。
// onChangeは表示の更新が必要になったときに呼ばれる。不要ならnilを渡す。
func New(api API, onChange func()) *Cache {
	return &Cache{
		api:      api,
		onChange: onChange,
		phase:    PhaseIdle,
	}
}

// Phase は現在の取得状態を返す。
func (c *Cache) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Snapshot は現在の通知列のコピーを新着順で返す。
func (c *Cache) Snapshot() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot := make([]Notification, len(c.items))
	copy(snapshot, c.items)
	return snapshot
}

// UnreadCount は現在の通知列から導出した未読数を返す。
func (c *Cache) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, n := range c.items {
		if !n.Read {
			count++
		}
	}
	return count
}

// Refresh はサーバーから通知一覧を取得してキャッシュを置き換える。
// 楽観的更新の確認待ち中は取得を保留し、確定後に1回だけ実行する。
// 取得に失敗した場合は直前の内容を保持したままエラーを返す。
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.reconciling {
		c.refreshDeferred = true
		c.mu.Unlock()
		return nil
	}
	prev := c.phase
	c.phase = PhaseFetching
	c.mu.Unlock()
	c.notify()

	items, err := c.api.List(ctx)

	c.mu.Lock()
	if err != nil {
		c.phase = prev
		c.mu.Unlock()
		c.notify()
		return fmt.Errorf("通知一覧の取得に失敗: %w", err)
	}
	sortNotifications(items)
	c.items = items
	c.phase = PhaseReady
	c.mu.Unlock()
	c.notify()
	return nil
}

// Start は定期的な再取得ループを開始する。
// バックグラウンドgoroutineとして呼び出されることを想定している。
// ctxのキャンセルで停止する。
func (c *Cache) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				log.Printf("[Inbox] 定期再取得エラー: %v", err)
			}
		}
	}
}

// MarkAsRead は通知を既読にする。
// リモート確認の前にローカルの既読フラグを立て（楽観的更新）、
// リモートが失敗した場合はフラグを巻き戻してエラーを返す。
// 既読の通知への再実行は何もせず成功する。
func (c *Cache) MarkAsRead(ctx context.Context, id string) error {
	c.mu.Lock()
	idx := c.indexOf(id)
	if idx < 0 {
		c.mu.Unlock()
		return fmt.Errorf("キャッシュに存在しない通知です: %s", id)
	}
	if c.items[idx].Read {
		c.mu.Unlock()
		return nil
	}

	c.items[idx].Read = true
	m := &mutation{
		phase: mutationPending,
		undo:  func() { c.items[idx].Read = false },
	}
	c.reconciling = true
	c.mu.Unlock()
	c.notify()

	return c.settle(ctx, m, c.api.MarkRead(ctx, id))
}

// MarkAllAsRead は未読の全通知を既読にする。
// MarkAsReadと同じ楽観的更新を未読の全件に対して行い、
// リモートが失敗した場合は全件を巻き戻す。
func (c *Cache) MarkAllAsRead(ctx context.Context) error {
	c.mu.Lock()
	var flipped []int
	for i := range c.items {
		if !c.items[i].Read {
			c.items[i].Read = true
			flipped = append(flipped, i)
		}
	}
	if len(flipped) == 0 {
		c.mu.Unlock()
		return nil
	}

	m := &mutation{
		phase: mutationPending,
		undo: func() {
			for _, i := range flipped {
				c.items[i].Read = false
			}
		},
	}
	c.reconciling = true
	c.mu.Unlock()
	c.notify()

	return c.settle(ctx, m, c.api.MarkAllRead(ctx))
}

// Open は通知クリック時の処理。通知を既読にし、画面遷移先を解決して返す。
// ルーティングキーが解決できない場合は既読化のみ行い、遷移なし（ok=false）を返す。
func (c *Cache) Open(ctx context.Context, id string) (deeplink.Target, bool, error) {
	c.mu.Lock()
	idx := c.indexOf(id)
	if idx < 0 {
		c.mu.Unlock()
		return deeplink.Target{}, false, fmt.Errorf("キャッシュに存在しない通知です: %s", id)
	}
	key := c.items[idx].Type
	c.mu.Unlock()

	if err := c.MarkAsRead(ctx, id); err != nil {
		return deeplink.Target{}, false, err
	}

	target, ok := deeplink.Resolve(key)
	if !ok {
		log.Printf("[Inbox] 遷移先を解決できないルーティングキー: %q", key)
	}
	return target, ok, nil
}

// settle は楽観的更新をリモートの結果に応じて確定または巻き戻す。
// 確認待ち中に保留された再取得があれば、確定後に実行する。
func (c *Cache) settle(ctx context.Context, m *mutation, err error) error {
	c.mu.Lock()
	if err != nil {
		m.undo()
		m.phase = mutationRolledBack
	} else {
		m.phase = mutationConfirmed
	}
	c.reconciling = false
	deferred := c.refreshDeferred
	c.refreshDeferred = false
	c.mu.Unlock()
	c.notify()

	if deferred {
		if rerr := c.Refresh(ctx); rerr != nil {
			log.Printf("[Inbox] 保留していた再取得に失敗: %v", rerr)
		}
	}

	if err != nil {
		return fmt.Errorf("既読化のリモート確認に失敗（ローカルの変更は巻き戻し済み）: %w", err)
	}
	return nil
}

// indexOf はIDで通知を検索する。呼び出し側がmuを保持していること。
func (c *Cache) indexOf(id string) int {
	for i := range c.items {
		if c.items[i].ID == id {
			return i
		}
	}
	return -1
}

// notify は表示更新フックを呼び出す。
func (c *Cache) notify() {
	if c.onChange != nil {
		c.onChange()
	}
}

// sortNotifications は通知列を新着順に整列する。
// created_atの降順、同時刻はidの降順で決定的に並べる。
func sortNotifications(items []Notification) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID > items[j].ID
	})
}
