package inbox

import (
	"context"
	"fmt"
	"time"

	"github.com/nao1215/servicedesk/pkg/httpclient"
)

// Client は通知サービスのAPIを呼び出すセッションクライアント。
// APIインターフェースを実装する。
type Client struct {
	// http は通知サービスとの通信用HTTPクライアント。
	http *httpclient.Client
}

// NewClient は新しいセッションクライアントを生成する。
// tokenにはログイン時に発行されたJWTトークンを指定する。
func NewClient(baseURL, token string) *Client {
	c := httpclient.New(baseURL)
	c.SetBearerToken(token)
	return &Client{http: c}
}

// notificationWire は通知APIのJSONレスポンス構造。
type notificationWire struct {
	// ID は通知の一意識別子。
	ID string `json:"id"`
	// Title は通知のタイトル。
	Title string `json:"title"`
	// Message は通知メッセージ。
	Message string `json:"message"`
	// Type はルーティングキー。
	Type string `json:"type"`
	// IsRead は既読状態。
	IsRead bool `json:"is_read"`
	// CreatedAt は作成日時（RFC3339形式）。
	CreatedAt string `json:"created_at"`
}

// List は自ユーザーの通知一覧を取得する。
func (c *Client) List(ctx context.Context) ([]Notification, error) {
	var wire []notificationWire
	if err := c.http.GetJSON(ctx, "/api/v1/notifications", &wire); err != nil {
		return nil, fmt.Errorf("通知一覧の取得に失敗: %w", err)
	}

	notifications := make([]Notification, 0, len(wire))
	for _, w := range wire {
		createdAt, err := time.Parse(time.RFC3339, w.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("作成日時の解析に失敗 (id=%s): %w", w.ID, err)
		}
		notifications = append(notifications, Notification{
			ID:        w.ID,
			Title:     w.Title,
			Message:   w.Message,
			Type:      w.Type,
			Read:      w.IsRead,
			CreatedAt: createdAt,
		})
	}
	return notifications, nil
}

// MarkRead は指定された通知を既読にする。
func (c *Client) MarkRead(ctx context.Context, id string) error {
	path := fmt.Sprintf("/api/v1/notifications/%s/read", id)
	if err := c.http.PutJSON(ctx, path, nil, nil); err != nil {
		return fmt.Errorf("通知の既読化に失敗: %w", err)
	}
	return nil
}

// MarkAllRead は自ユーザーの全通知を既読にする。
func (c *Client) MarkAllRead(ctx context.Context) error {
	if err := c.http.PutJSON(ctx, "/api/v1/notifications/read-all", nil, nil); err != nil {
		return fmt.Errorf("全通知の既読化に失敗: %w", err)
	}
	return nil
}
