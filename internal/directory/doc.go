// Package directory はユーザーディレクトリサービスへのクライアントを提供する。
//
// 配送ポリシーが受信者を解決するために使用する。
// ロール別のユーザー一覧、クレーム担当者、技術者の上長を問い合わせる。
package directory
