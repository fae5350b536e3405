// Package inbox はUIセッション向けの通知キャッシュを提供する。
//
// サーバーから取得した通知一覧と楽観的なローカル既読状態を照合し、
// 未読数の導出・画面遷移先の解決・表示更新の通知を担う。
// キャッシュはセッションごとに明示的に生成して持ち回る。
// プロセス全体で共有するグローバル状態は持たない。
package inbox
