package model

import (
	"errors"
	"fmt"
)

// UpstreamErrorKind 上流プロバイダエラーの分類
type UpstreamErrorKind string

const (
	// UpstreamRateLimited 上流のレート制限に到達。呼び出し側で回復可能
	UpstreamRateLimited UpstreamErrorKind = "rate_limited"

	// UpstreamNotFound クエリは正当だがデータが存在しない。失敗とは区別される
	UpstreamNotFound UpstreamErrorKind = "not_found"

	// UpstreamTransient ネットワーク障害や5xxなどの一時的な失敗。内部ではリトライしない
	UpstreamTransient UpstreamErrorKind = "transient"

	// UpstreamInvalidInput 不正な入力。キャッシュ・ネットワークに触れる前に拒否される
	UpstreamInvalidInput UpstreamErrorKind = "invalid_input"
)

// UpstreamError 上流プロバイダ呼び出しの失敗を表すエラー
type UpstreamError struct {
	Kind    UpstreamErrorKind
	Op      string // 失敗した操作名（suggest, details, reverse_geocode, matrix）
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%s): %v", e.Op, e.Message, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Op, e.Message, e.Kind)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NewUpstreamError 新しいUpstreamErrorを生成する
func NewUpstreamError(kind UpstreamErrorKind, op, message string, err error) *UpstreamError {
	return &UpstreamError{Kind: kind, Op: op, Message: message, Err: err}
}

// upstreamKindIs エラーが指定した分類のUpstreamErrorかどうか判定する
func upstreamKindIs(err error, kind UpstreamErrorKind) bool {
	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		return upstreamErr.Kind == kind
	}
	return false
}

// IsRateLimited レート制限エラーかどうか
func IsRateLimited(err error) bool { return upstreamKindIs(err, UpstreamRateLimited) }

// IsNotFound データ不在かどうか
func IsNotFound(err error) bool { return upstreamKindIs(err, UpstreamNotFound) }

// IsTransient 一時的な失敗かどうか
func IsTransient(err error) bool { return upstreamKindIs(err, UpstreamTransient) }

// IsInvalidInput 入力不正かどうか
func IsInvalidInput(err error) bool { return upstreamKindIs(err, UpstreamInvalidInput) }

// KeyError キャッシュキー導出の不変条件違反。
// プログラミングエラーとして扱い、検出箇所で大きくログに残す
type KeyError struct {
	Reason string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("キー導出に失敗: %s", e.Reason)
}

// NewKeyError 新しいKeyErrorを生成する
func NewKeyError(reason string) *KeyError {
	return &KeyError{Reason: reason}
}
