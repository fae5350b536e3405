// Package deeplink は通知のルーティングキーを画面遷移先へ解決する。
//
// ルーティングキーの文法は旧エンコーダーとの互換のため部分一致で判定する。
// 解決できないキーはエラーではなく「遷移なし」として扱い、
// クリック時は既読化のみ行う。
package deeplink
