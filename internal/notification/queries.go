package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrValidation は通知の作成リクエストが不正であることを表す。
	// 永続化前に検出され、保存は行われない。
	ErrValidation = errors.New("通知の内容が不正です")
	// ErrNotFound は対象の通知が存在しないか、操作者の所有物ではないことを表す。
	// 所有権による認可であり、ロールによる認可ではない。
	ErrNotFound = errors.New("通知が見つかりません")
)

// listLimit は一覧取得の上限件数。
// ページネーションの契約は持たないため、直近の通知のみを返す。
const listLimit = 200

// Notification はnotificationsテーブルの1行を表す。
// is_read以外のフィールドは作成後に変更されない。
type Notification struct {
	// ID は通知の一意識別子（UUID）。
	ID string
	// UserID は通知の所有者（受信者）のユーザーID。
	UserID string
	// Title は通知のタイトル。
	Title string
	// Message は通知メッセージ。
	Message string
	// Type はルーティングキー。
	Type string
	// IsRead は通知の既読状態（0=未読、1=既読）。
	IsRead int64
	// CreatedAt は通知の作成日時。
	CreatedAt time.Time
}

// Queries はnotificationsテーブルへのクエリ実行オブジェクト。
type Queries struct {
	db *sql.DB
}

// NewQueries は新しいクエリ実行オブジェクトを生成する。
func NewQueries(db *sql.DB) *Queries {
	return &Queries{db: db}
}

// CreateNotificationParams はCreateNotificationのパラメータ。
type CreateNotificationParams struct {
	// ID は通知の一意識別子（UUID）。
	ID string
	// UserID は通知の所有者（受信者）のユーザーID。
	UserID string
	// Title は通知のタイトル。
	Title string
	// Message は通知メッセージ。
	Message string
	// Type はルーティングキー。
	Type string
}

// CreateNotification は通知を1件作成する。
// 受信者またはルーティングキーが欠けている場合はErrValidationを返し、保存しない。
func (q *Queries) CreateNotification(ctx context.Context, arg CreateNotificationParams) error {
	if arg.UserID == "" {
		return fmt.Errorf("%w: user_idが未設定です", ErrValidation)
	}
	if arg.Type == "" {
		return fmt.Errorf("%w: typeが未設定です", ErrValidation)
	}

	const query = `
		INSERT INTO notifications (id, user_id, title, message, type)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := q.db.ExecContext(ctx, query, arg.ID, arg.UserID, arg.Title, arg.Message, arg.Type); err != nil {
		return fmt.Errorf("通知の作成に失敗: %w", err)
	}
	return nil
}

// ListNotificationsByUserID は指定ユーザーの通知を新着順に返す。
// 並び順はcreated_atの降順、同時刻はidの降順で安定させる。
// 直近listLimit件のみ返す。
func (q *Queries) ListNotificationsByUserID(ctx context.Context, userID string) ([]Notification, error) {
	const query = `
		SELECT id, user_id, title, message, type, is_read, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
	return q.queryNotifications(ctx, query, userID, listLimit)
}

// ListUnreadNotifications は指定ユーザーの未読通知を新着順に返す。
func (q *Queries) ListUnreadNotifications(ctx context.Context, userID string) ([]Notification, error) {
	const query = `
		SELECT id, user_id, title, message, type, is_read, created_at
		FROM notifications
		WHERE user_id = ? AND is_read = 0
		ORDER BY created_at DESC, id DESC
	`
	return q.queryNotifications(ctx, query, userID)
}

// CountUnreadNotifications は指定ユーザーの未読通知数を返す。
func (q *Queries) CountUnreadNotifications(ctx context.Context, userID string) (int64, error) {
	const query = `
		SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0
	`
	var count int64
	if err := q.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("未読通知数の取得に失敗: %w", err)
	}
	return count, nil
}

// MarkAsReadParams はMarkAsReadのパラメータ。
type MarkAsReadParams struct {
	// ID は対象の通知ID。
	ID string
	// UserID は操作者のユーザーID。所有権の確認に使用する。
	UserID string
}

// MarkAsRead は通知を既読にする。冪等であり、既読の通知への再実行も成功する。
// 通知が存在しない、または操作者の所有物ではない場合はErrNotFoundを返す。
func (q *Queries) MarkAsRead(ctx context.Context, arg MarkAsReadParams) error {
	const query = `
		UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?
	`
	res, err := q.db.ExecContext(ctx, query, arg.ID, arg.UserID)
	if err != nil {
		return fmt.Errorf("通知の既読化に失敗: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新行数の取得に失敗: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllAsRead は指定ユーザーの全未読通知を既読にする。
// 単一のUPDATE文で実行するため、同時に作成中の通知が
// 中途半端な状態になることはない。
func (q *Queries) MarkAllAsRead(ctx context.Context, userID string) error {
	const query = `
		UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0
	`
	if _, err := q.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("全通知の既読化に失敗: %w", err)
	}
	return nil
}

// queryNotifications は通知一覧クエリの共通処理。
func (q *Queries) queryNotifications(ctx context.Context, query string, args ...any) ([]Notification, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("通知一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var notifications []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("通知行の読み取りに失敗: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}
