package inbox

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeAPI はテスト用のAPI実装。
type fakeAPI struct {
	// notifications はListが返す通知列。
	notifications []Notification
	// listErr が非nilの場合、Listはこのエラーを返す。
	listErr error
	// markReadErr が非nilの場合、MarkReadはこのエラーを返す。
	markReadErr error
	// markAllReadErr が非nilの場合、MarkAllReadはこのエラーを返す。
	markAllReadErr error
	// listCalls はListの呼び出し回数。
	listCalls int
	// markReadIDs はMarkReadに渡されたIDの履歴。
	markReadIDs []string
	// onMarkRead が非nilの場合、MarkReadの実行中に呼び出される。
	onMarkRead func()
}

func (a *fakeAPI) List(_ context.Context) ([]Notification, error) {
	a.listCalls++
	if a.listErr != nil {
		return nil, a.listErr
	}
	items := make([]Notification, len(a.notifications))
	copy(items, a.notifications)
	return items, nil
}

func (a *fakeAPI) MarkRead(_ context.Context, id string) error {
	a.markReadIDs = append(a.markReadIDs, id)
	if a.onMarkRead != nil {
		a.onMarkRead()
	}
	return a.markReadErr
}

func (a *fakeAPI) MarkAllRead(_ context.Context) error {
	return a.markAllReadErr
}

// baseTime はテストで使用する基準時刻。
var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// testNotifications は未読2件・既読1件のテスト用通知列を返す。
func testNotifications() []Notification {
	return []Notification{
		{ID: "n-1", Title: "古い通知", Type: "create_complaint:1", Read: true, CreatedAt: baseTime},
		{ID: "n-2", Title: "未読1", Type: "create_complaint:42", Read: false, CreatedAt: baseTime.Add(time.Minute)},
		{ID: "n-3", Title: "未読2", Type: "complaint_list", Read: false, CreatedAt: baseTime.Add(2 * time.Minute)},
	}
}

// TestRefresh は一覧取得とフェーズ遷移のテスト。
func TestRefresh(t *testing.T) {
	t.Parallel()

	t.Run("取得成功でReadyに遷移し通知列が置き換わる", func(t *testing.T) {
		t.Parallel()

		api := &fakeAPI{notifications: testNotifications()}
		cache := New(api, nil)

		if cache.Phase() != PhaseIdle {
			t.Errorf("初期フェーズ: got %v, want %v", cache.Phase(), PhaseIdle)
		}

		if err := cache.Refresh(t.Context()); err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if cache.Phase() != PhaseReady {
			t.Errorf("取得後のフェーズ: got %v, want %v", cache.Phase(), PhaseReady)
		}
		if got := len(cache.Snapshot()); got != 3 {
			t.Errorf("通知数: got %d, want 3", got)
		}
		if got := cache.UnreadCount(); got != 2 {
			t.Errorf("未読数: got %d, want 2", got)
		}
	})

	t.Run("通知列は新着順に整列される", func(t *testing.T) {
		t.Parallel()

		api := &fakeAPI{notifications: []Notification{
			{ID: "n-1", CreatedAt: baseTime},
			{ID: "n-3", CreatedAt: baseTime.Add(time.Minute)},
			{ID: "n-2", CreatedAt: baseTime.Add(time.Minute)},
		}}
		cache := New(api, nil)

		if err := cache.Refresh(t.Context()); err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}

		snapshot := cache.Snapshot()
		// 同時刻のn-2とn-3はID降順で並ぶ
		want := []string{"n-3", "n-2", "n-1"}
		for i, id := range want {
			if snapshot[i].ID != id {
				t.Errorf("順序[%d]: got %s, want %s", i, snapshot[i].ID, id)
			}
		}
	})

	t.Run("取得失敗時は直前の内容とフェーズを保持する", func(t *testing.T) {
		t.Parallel()

		api := &fakeAPI{notifications: testNotifications()}
		cache := New(api, nil)
		if err := cache.Refresh(t.Context()); err != nil {
			t.Fatalf("初回取得に失敗: %v", err)
		}

		api.listErr = errors.New("接続タイムアウト")
		if err := cache.Refresh(t.Context()); err == nil {
			t.Fatal("エラーが返されるべき")
		}
		if cache.Phase() != PhaseReady {
			t.Errorf("失敗後のフェーズ: got %v, want %v", cache.Phase(), PhaseReady)
		}
		if got := len(cache.Snapshot()); got != 3 {
			t.Errorf("失敗後も直前の通知列を保持すべき: got %d, want 3", got)
		}
	})

	t.Run("初回取得の失敗時はIdleに戻る", func(t *testing.T) {
		t.Parallel()

		api := &fakeAPI{listErr: errors.New("接続タイムアウト")}
		cache := New(api, nil)

		if err := cache.Refresh(t.Context()); err == nil {
			t.Fatal("エラーが返されるべき")
		}
		if cache.Phase() != PhaseIdle {
			t.Errorf("失敗後のフェーズ: got %v, want %v", cache.Phase(), PhaseIdle)
		}
	})

	t.Run("onChangeフックが呼び出される", func(t *testing.T) {
		t.Parallel()

		calls := 0
		api := &fakeAPI{notifications: testNotifications()}
		cache := New(api, func() { calls++ })

		if err := cache.Refresh(t.Context()); err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		// Fetching遷移時とReady遷移時の2回
		if calls != 2 {
			t.Errorf("onChange呼び出し回数: got %d, want 2", calls)
		}
	})
}

// TestMarkAsRead は楽観的既読化のテスト。
func TestMarkAsRead(t *testing.T) {
	t.Parallel()

	t.Run("リモート成功で既読が確定する", func(t *testing.T) {
		t.Parallel()

		api := &fakeAPI{notifications: testNotifications()}
		cache := New(api, nil)
		if err := cache.Refresh(t.Context()); err != nil {
			t.Fatalf("取得に失敗: %v", err)
		}

		if err := cache.MarkAsRead(t.Context(), "n-2"); err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if got := cache.UnreadCount(); got != 1 {
			t.Errorf("未読数: got %d, want 1", got)
		}
		if len(api.markReadIDs) != 1 || api.markReadIDs[0] != "n-2" {
			t.Errorf("リモート呼び出し: got %v, want [n-2]", api.markReadIDs)
		}
	})

	t.Run("リモート失敗でローカルの既読が巻き戻される", func(t *testing.T) {
		t.Parallel()

		api := &fakeAPI{
			notifications: testNotifications(),
			markReadErr:   errors.New("サーバーエラー"),
		}
		cache := New(api, nil)
		if err := cache.Refresh(t.Context()); err != nil {
			t.Fatalf("取得に失敗: %v", err)
		}
		before := cache.UnreadCount()

		if err := cache.MarkAsRead(t.Context(), "n-2"); err == nil {
			t.Fatal("エラーが返されるべき")
		}
		if got := cache.UnreadCount(); got != before {
			t.Errorf("巻き戻し後の未読数: got %d, want %d", got, before)
		}
	})

	t.Run("既読の通知への再実行はリモートを呼ばず成功する", func(t *testing.T) {
		t.Parallel()

		api := &fakeAPI{notifications: testNotifications()}
		cache := New(api, nil)
		if err := cache.Refresh(t.Context()); err != nil {
			t.Fatalf("取得に失敗: %v", err)
		}

		if err := cache.MarkAsRead(t.Context(), "n-1"); err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if len(api.markReadIDs) != 0 {
			t.Errorf("リモートが呼ばれるべきではない: %v", api.markReadIDs)
		}
	})

	t.Run("キャッシュに存在しない通知はエラー", func(t *testing.T) {
		t.Parallel()

		api := &fakeAPI{notifications: testNotifications()}
		cache := New(api, nil)
		if err := cache.Refresh(t.Context()); err != nil {
			t.Fatalf("取得に失敗: %v", err)
		}

		if err := cache.MarkAsRead(t.Context(), "nonexistent"); err == nil {
			t.Fatal("エラーが返されるべき")
		}
	})
}

// TestMarkAllAsRead は全件既読化のテスト。
func TestMarkAllAsRead(t *testing.T) {
	t.Parallel()

	t.Run("全件が既読になる", func(t *testing.T) {
		t.Parallel()

		api := &fakeAPI{notifications: testNotifications()}
		cache := New(api, nil)
		if err := cache.Refresh(t.Context()); err != nil {
			t.Fatalf("取得に失敗: %v", err)
		}

		if err := cache.MarkAllAsRead(t.Context()); err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if got := cache.UnreadCount(); got != 0 {
			t.Errorf("未読数: got %d, want 0", got)
		}
	})

	t.Run("リモート失敗で全件巻き戻される", func(t *testing.T) {
		t.Parallel()

		api := &fakeAPI{
			notifications:  testNotifications(),
			markAllReadErr: errors.New("サーバーエラー"),
		}
		cache := New(api, nil)
		if err := cache.Refresh(t.Context()); err != nil {
			t.Fatalf("取得に失敗: %v", err)
		}

		if err := cache.MarkAllAsRead(t.Context()); err == nil {
			t.Fatal("エラーが返されるべき")
		}
		if got := cache.UnreadCount(); got != 2 {
			t.Errorf("巻き戻し後の未読数: got %d, want 2", got)
		}
	})

	t.Run("未読ゼロの場合はリモートを呼ばず成功する", func(t *testing.T) {
		t.Parallel()

		api := &fakeAPI{notifications: []Notification{
			{ID: "n-1", Read: true, CreatedAt: baseTime},
		}}
		cache := New(api, nil)
		if err := cache.Refresh(t.Context()); err != nil {
			t.Fatalf("取得に失敗: %v", err)
		}

		if err := cache.MarkAllAsRead(t.Context()); err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
	})
}

// TestDeferredRefresh は確認待ち中の再取得が保留され、確定後に実行されることを検証する。
func TestDeferredRefresh(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{notifications: testNotifications()}
	cache := New(api, nil)
	if err := cache.Refresh(t.Context()); err != nil {
		t.Fatalf("取得に失敗: %v", err)
	}
	listCallsBefore := api.listCalls

	// リモート確認の最中に再取得が要求されるケースを再現する
	api.onMarkRead = func() {
		if err := cache.Refresh(t.Context()); err != nil {
			t.Errorf("保留されるべき再取得がエラー: %v", err)
		}
		// 確認待ち中なのでListはまだ呼ばれていない
		if api.listCalls != listCallsBefore {
			t.Error("確認待ち中に再取得が実行された")
		}
	}

	if err := cache.MarkAsRead(t.Context(), "n-2"); err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}

	// 確定後に保留分が1回だけ実行される
	if api.listCalls != listCallsBefore+1 {
		t.Errorf("Listの呼び出し回数: got %d, want %d", api.listCalls, listCallsBefore+1)
	}
}

// TestOpen は通知クリック時の既読化と画面遷移先解決のテスト。
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("既読化され遷移先が解決される", func(t *testing.T) {
		t.Parallel()

		api := &fakeAPI{notifications: testNotifications()}
		cache := New(api, nil)
		if err := cache.Refresh(t.Context()); err != nil {
			t.Fatalf("取得に失敗: %v", err)
		}

		target, ok, err := cache.Open(t.Context(), "n-2")
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if !ok {
			t.Fatal("遷移先が解決されるべき")
		}
		if target.Path != "/complaints/42" {
			t.Errorf("Path: got %q, want /complaints/42", target.Path)
		}
		if got := cache.UnreadCount(); got != 1 {
			t.Errorf("未読数: got %d, want 1", got)
		}
	})

	t.Run("解決できないルーティングキーは既読化のみで遷移なし", func(t *testing.T) {
		t.Parallel()

		api := &fakeAPI{notifications: []Notification{
			{ID: "n-1", Type: "unknown_thing", Read: false, CreatedAt: baseTime},
		}}
		cache := New(api, nil)
		if err := cache.Refresh(t.Context()); err != nil {
			t.Fatalf("取得に失敗: %v", err)
		}

		_, ok, err := cache.Open(t.Context(), "n-1")
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if ok {
			t.Error("遷移なしとなるべき")
		}
		if got := cache.UnreadCount(); got != 0 {
			t.Errorf("未読数: got %d, want 0", got)
		}
	})

	t.Run("キャッシュに存在しない通知はエラー", func(t *testing.T) {
		t.Parallel()

		api := &fakeAPI{notifications: testNotifications()}
		cache := New(api, nil)
		if err := cache.Refresh(t.Context()); err != nil {
			t.Fatalf("取得に失敗: %v", err)
		}

		if _, _, err := cache.Open(t.Context(), "nonexistent"); err == nil {
			t.Fatal("エラーが返されるべき")
		}
	})
}

// TestStart は定期再取得ループのテスト。
func TestStart(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{notifications: testNotifications()}
	cache := New(api, nil)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		defer close(done)
		cache.Start(ctx, 10*time.Millisecond)
	}()

	// 少なくとも1回の取得が行われるまで待つ
	deadline := time.After(3 * time.Second)
	for cache.Phase() != PhaseReady {
		select {
		case <-deadline:
			t.Fatal("定期再取得が実行されませんでした")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("キャンセル後にループが停止しませんでした")
	}
}
