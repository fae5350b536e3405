// Package notification は通知サービスの内部実装を提供する。
//
// ドメインイベント（クレーム・評価・サービス依頼のライフサイクル変更）を受け付け、
// 配送ルーターで受信者ごとの通知行へファンアウトして永続化する。
// 通知の一覧取得・未読数取得・既読管理のHTTP APIも提供する。
// 通知の削除は行わない。保持期間の管理は外部の責務とする。
package notification
