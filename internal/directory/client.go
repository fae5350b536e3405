package directory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/nao1215/servicedesk/pkg/httpclient"
)

// Client はユーザーディレクトリサービスへのHTTPクライアント。
// delivery.Directoryを実装する。
type Client struct {
	// http はディレクトリサービスとの通信用HTTPクライアント。
	http *httpclient.Client
}

// New は新しいディレクトリクライアントを生成する。
// baseURLにはユーザーディレクトリサービスのベースURLを指定する。
func New(baseURL string) *Client {
	return &Client{http: httpclient.New(baseURL)}
}

// userResponse はユーザー情報のJSONレスポンス構造。
type userResponse struct {
	// ID はユーザーの一意識別子。
	ID string `json:"id"`
}

// UserIDsByRole は指定ロールを持つ全ユーザーのIDを返す。
func (c *Client) UserIDsByRole(ctx context.Context, role string) ([]string, error) {
	path := fmt.Sprintf("/api/v1/users?role=%s", url.QueryEscape(role))

	var users []userResponse
	if err := c.http.GetJSON(ctx, path, &users); err != nil {
		return nil, fmt.Errorf("ロール別ユーザーの取得に失敗: %w", err)
	}

	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids, nil
}

// assigneeResponse は担当者情報のJSONレスポンス構造。
type assigneeResponse struct {
	// UserID は担当者のユーザーID。
	UserID string `json:"user_id"`
}

// ComplaintAssignee はクレームの担当者のユーザーIDを返す。
// 担当者が未割り当て（404）の場合は空文字列を返す。エラーにはしない。
func (c *Client) ComplaintAssignee(ctx context.Context, complaintID int64) (string, error) {
	path := fmt.Sprintf("/api/v1/complaints/%d/assignee", complaintID)

	var assignee assigneeResponse
	if err := c.http.GetJSON(ctx, path, &assignee); err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("クレーム担当者の取得に失敗: %w", err)
	}
	return assignee.UserID, nil
}

// TechnicianSupervisor は技術者の上長のユーザーIDを返す。
// 上長が存在しない（404）の場合は空文字列を返す。エラーにはしない。
func (c *Client) TechnicianSupervisor(ctx context.Context, technicianID int64) (string, error) {
	path := fmt.Sprintf("/api/v1/technicians/%d/supervisor", technicianID)

	var supervisor assigneeResponse
	if err := c.http.GetJSON(ctx, path, &supervisor); err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("技術者上長の取得に失敗: %w", err)
	}
	return supervisor.UserID, nil
}

// isNotFound はエラーが404レスポンス由来かを判定する。
func isNotFound(err error) bool {
	var statusErr *httpclient.StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}
