// Package event はクレーム管理のドメインイベントと、
// 通知へのエンコード処理を提供する。
//
// イベントの対象は操作種別・エンティティ種類・IDのタグ付き構造体（Ref）で表し、
// 保存済み通知との互換性が必要な箇所でのみレガシーの
// ルーティングキー文字列へ直列化する。
package event
