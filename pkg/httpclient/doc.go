// Package httpclient はサービス間のHTTP通信を行うクライアントを提供する。
//
// 通知サービスのAPI呼び出しやユーザーディレクトリへの問い合わせなど、
// コラボレーターとの通信パターンを統一する。
// 2xx以外のレスポンスはStatusErrorとして返し、
// 呼び出し側が対象なしと転送障害を区別できるようにする。
package httpclient
