// 通知サービスのエントリポイント。
// ドメインイベントを受け付け、受信者ごとの通知へファンアウトして配信する。
// 通知の一覧取得と既読管理のAPIも提供する。
package main

import (
	"log"
	"os"

	"github.com/nao1215/servicedesk/internal/notification"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8086"
	}

	server, err := notification.NewServer(port)
	if err != nil {
		log.Fatalf("通知サーバーの初期化に失敗: %v", err)
	}

	log.Printf("通知サービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("通知サービスの起動に失敗: %v", err)
	}
}
