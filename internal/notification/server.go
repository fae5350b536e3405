package notification

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	_ "modernc.org/sqlite"

	"github.com/nao1215/servicedesk/internal/delivery"
	"github.com/nao1215/servicedesk/internal/directory"
	"github.com/nao1215/servicedesk/pkg/event"
	"github.com/nao1215/servicedesk/pkg/middleware"
	"github.com/nao1215/servicedesk/pkg/migration"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Server は通知サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// queries はnotificationsテーブルへのクエリ実行オブジェクト。
	queries *Queries
	// db はSQLiteデータベース接続。
	db *sql.DB
	// dispatcher はドメインイベントを通知へファンアウトする配送ルーター。
	dispatcher *delivery.Router
}

// NewServer は新しい通知サーバーを生成する。
// SQLiteデータベースの初期化とマイグレーションの適用を行う。
func NewServer(port string) (*Server, error) {
	dbPath := os.Getenv("NOTIFICATION_DB_PATH")
	if dbPath == "" {
		dbPath = "/data/notification.db"
	}

	sqlDB, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := migration.Run(sqlDB, migrationsFS, "migrations"); err != nil {
		return nil, fmt.Errorf("マイグレーションの適用に失敗: %w", err)
	}

	directoryURL := os.Getenv("DIRECTORY_URL")
	if directoryURL == "" {
		directoryURL = "http://localhost:8087"
	}

	adminRole := os.Getenv("ADMIN_ROLE")
	if adminRole == "" {
		adminRole = "admin"
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		router.Use(middleware.CORS(strings.Split(origins, ",")))
	}

	queries := NewQueries(sqlDB)
	selectors := delivery.DefaultSelectors(
		delivery.PolicyConfig{AdminRole: adminRole},
		directory.New(directoryURL),
	)

	s := &Server{
		router:     router,
		port:       port,
		queries:    queries,
		db:         sqlDB,
		dispatcher: delivery.New(&storeAdapter{queries: queries}, selectors),
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// storeAdapter はQueriesをdelivery.Storeに適合させるアダプタ。
type storeAdapter struct {
	queries *Queries
}

// Create はdelivery.Storeを実装する。
func (a *storeAdapter) Create(ctx context.Context, n delivery.Notification) error {
	return a.queries.CreateNotification(ctx, CreateNotificationParams{
		ID:      n.ID,
		UserID:  n.RecipientID,
		Title:   n.Title,
		Message: n.Message,
		Type:    n.Type,
	})
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "dev-secret-key"
	}

	api := s.router.Group("/api/v1")
	api.Use(middleware.JWTAuth(jwtSecret))
	{
		notifications := api.Group("/notifications")
		{
			// 通知一覧取得
			notifications.GET("", s.handleList())
			// 未読通知一覧取得
			notifications.GET("/unread", s.handleListUnread())
			// 未読通知数取得（バッジ表示用）
			notifications.GET("/unread/count", s.handleCountUnread())
			// 通知を既読にする
			notifications.PUT("/:id/read", s.handleMarkAsRead())
			// 全通知を既読にする
			notifications.PUT("/read-all", s.handleMarkAllAsRead())
		}

		// ドメインイベント受付（内部API - ドメイン操作のハンドラから呼び出される）
		internal := api.Group("/internal")
		{
			internal.POST("/events", s.handleEmit())
		}
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "notification"})
	})
}

// notificationResponse は通知のJSONレスポンス構造。
type notificationResponse struct {
	// ID は通知の一意識別子。
	ID string `json:"id"`
	// UserID は通知の所有者のユーザーID。
	UserID string `json:"user_id"`
	// Title は通知のタイトル。
	Title string `json:"title"`
	// Message は通知メッセージ。
	Message string `json:"message"`
	// Type はルーティングキー。
	Type string `json:"type"`
	// IsRead は通知の既読状態。
	IsRead bool `json:"is_read"`
	// CreatedAt は通知の作成日時（RFC3339形式）。
	CreatedAt string `json:"created_at"`
}

// toNotificationResponse はDB行をJSONレスポンスに変換する。
func toNotificationResponse(n Notification) notificationResponse {
	return notificationResponse{
		ID:        n.ID,
		UserID:    n.UserID,
		Title:     n.Title,
		Message:   n.Message,
		Type:      n.Type,
		IsRead:    n.IsRead != 0,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
	}
}

// toNotificationResponses はDB行のスライスをJSONレスポンスのスライスに変換する。
func toNotificationResponses(notifications []Notification) []notificationResponse {
	responses := make([]notificationResponse, 0, len(notifications))
	for _, n := range notifications {
		responses = append(responses, toNotificationResponse(n))
	}
	return responses
}

// handleList は認証済みユーザーの通知一覧を返すハンドラ。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		notifications, err := s.queries.ListNotificationsByUserID(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知一覧の取得に失敗しました"})
			log.Printf("通知一覧取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toNotificationResponses(notifications))
	}
}

// handleListUnread は認証済みユーザーの未読通知一覧を返すハンドラ。
func (s *Server) handleListUnread() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		notifications, err := s.queries.ListUnreadNotifications(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "未読通知一覧の取得に失敗しました"})
			log.Printf("未読通知一覧取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toNotificationResponses(notifications))
	}
}

// handleCountUnread は認証済みユーザーの未読通知数を返すハンドラ。
func (s *Server) handleCountUnread() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		count, err := s.queries.CountUnreadNotifications(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "未読通知数の取得に失敗しました"})
			log.Printf("未読通知数取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"count": count})
	}
}

// handleMarkAsRead は指定された通知を既読にするハンドラ。
// 既読の通知への再実行は成功扱いとなる（冪等）。
// 他ユーザーの通知はNotFoundとして扱う（所有権による認可）。
func (s *Server) handleMarkAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		notificationID := c.Param("id")
		if notificationID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "通知IDが必要です"})
			return
		}

		err := s.queries.MarkAsRead(c.Request.Context(), MarkAsReadParams{
			ID:     notificationID,
			UserID: userID,
		})
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "通知が見つかりません"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の既読処理に失敗しました"})
			log.Printf("通知既読処理エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "通知を既読にしました"})
	}
}

// handleMarkAllAsRead は認証済みユーザーの全通知を既読にするハンドラ。
func (s *Server) handleMarkAllAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		if err := s.queries.MarkAllAsRead(c.Request.Context(), userID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "全通知の既読処理に失敗しました"})
			log.Printf("全通知既読処理エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "全通知を既読にしました"})
	}
}

// emitRequest はドメインイベント受付リクエストのJSON構造。
type emitRequest struct {
	// Action はイベントの操作種別。
	Action string `json:"action" binding:"required"`
	// EntityKind は対象エンティティの種類。
	EntityKind string `json:"entity_kind" binding:"required"`
	// EntityID は対象エンティティのID。Listがtrueの場合は無視される。
	EntityID int64 `json:"entity_id"`
	// List は一覧全体を対象とするイベントであることを表す。
	List bool `json:"list"`
}

// handleEmit はドメインイベントを受け付け、通知をファンアウトするハンドラ。
// 内部API（クレーム・評価・サービス依頼のドメイン操作ハンドラから呼び出される）。
// 受信者が解決されなかったイベントは通知を作らずに正常終了する。
func (s *Server) handleEmit() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req emitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		ref := event.Ref{
			Action:   event.Action(req.Action),
			Entity:   event.EntityKind(req.EntityKind),
			EntityID: req.EntityID,
			List:     req.List,
		}
		if !ref.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("未知の操作種別またはエンティティ種類です: action=%q, entity_kind=%q", req.Action, req.EntityKind),
			})
			return
		}

		created, err := s.dispatcher.Dispatch(c.Request.Context(), ref)
		if err != nil {
			// 一部の受信者への作成が失敗した可能性がある。失敗分の自動リトライは行わない。
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "通知のファンアウトに失敗しました",
				"created": created,
			})
			log.Printf("ファンアウトエラー (kind=%s): %v", ref.Kind(), err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"message": "イベントを受け付けました",
			"created": created,
		})
	}
}
