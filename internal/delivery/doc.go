// Package delivery はドメインイベントの通知ファンアウトを提供する。
//
// どのイベント種別を誰に届けるかはセレクターのマッピングとして外から与え、
// ルーター自体はロール名等のドメインポリシーを持たない。
// 受信者ゼロのイベントは通知を作らずに正常終了する。
package delivery
