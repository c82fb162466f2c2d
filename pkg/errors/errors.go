// Package errors はプロジェクト全体のエラーハンドリングと警告システムを提供します。
// クライアント側の検証エラーとサーバーから返されるフィールドエラーは同じ
// FieldErrors の形で扱われ、ビューはフィールド名をキーにして表示・消去できます。
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	グローバル警告ハンドリング
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		// デフォルトのハンドラは標準エラー出力にログを出す
		log.Printf("ecgstudio-Warning: %v\n", w)
	}
	// zerologロガー（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetWarningHandler はライブラリ全体の警告ハンドラを設定します。
//
// 例:
//
//	errors.SetWarningHandler(func(w error) {
//	    // 警告を無視する
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc はzerolog警告関数を設定します（循環importを避けるため）。
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させます。
// zerologが設定されている場合は構造化ログとして出力し、そうでなければ従来のハンドラを使用します。
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}

	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	警告型
//
// ===========================================================================

// StaleResponseWarning は現在の対象と一致しないセッションへのレスポンスを破棄した場合の警告です。
type StaleResponseWarning struct {
	Kind     string // "training" または "analysis"
	Received string
	Current  string
}

func (w *StaleResponseWarning) Error() string {
	return fmt.Sprintf("discarded stale %s response for %q (current target %q)", w.Kind, w.Received, w.Current)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *StaleResponseWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("kind", w.Kind).
		Str("received", w.Received).
		Str("current", w.Current).
		Str("type", "StaleResponseWarning")
}

// NewStaleResponseWarning は新しいStaleResponseWarningを作成します。
func NewStaleResponseWarning(kind, received, current string) *StaleResponseWarning {
	return &StaleResponseWarning{Kind: kind, Received: received, Current: current}
}

// ===========================================================================
//
//	構造化されたエラー型
//
// ===========================================================================

// ValidationError はクライアント側の検証に失敗した場合のエラーです。
// ネットワーク呼び出しは行われません。
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("ecgstudio: validation failed: %s", e.Fields)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Strs("fields", e.Fields.Names()).
		Str("type", "ValidationError")
}

// NewValidationError は新しいValidationErrorを作成し、スタックトレースを付与します。
func NewValidationError(fields FieldErrors) error {
	err := &ValidationError{Fields: fields.Clone()}
	return errors.WithStack(err)
}

// ServerError はサービスが2xx以外のステータスとエラーマップを返した場合のエラーです。
type ServerError struct {
	Op         string
	StatusCode int
	Fields     FieldErrors
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("ecgstudio: %s: server responded %d: %s", e.Op, e.StatusCode, e.Fields)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ServerError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("status", e.StatusCode).
		Strs("fields", e.Fields.Names()).
		Str("type", "ServerError")
}

// NewServerError は新しいServerErrorを作成し、スタックトレースを付与します。
func NewServerError(op string, status int, fields FieldErrors) error {
	err := &ServerError{Op: op, StatusCode: status, Fields: fields}
	return errors.WithStack(err)
}

// TransportError はネットワーク層でリクエストが失敗した場合のエラーです。
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ecgstudio: %s: transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *TransportError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		AnErr("cause", e.Err).
		Str("type", "TransportError")
}

// NewTransportError は新しいTransportErrorを作成し、スタックトレースを付与します。
func NewTransportError(op string, err error) error {
	return errors.WithStack(&TransportError{Op: op, Err: err})
}

// UploadRejectedError はファイルが形式またはサイズの検証に失敗した場合のエラーです。
// Reason はそのままユーザーに表示できるメッセージです。
type UploadRejectedError struct {
	Name   string
	Size   int64
	Reason string
}

func (e *UploadRejectedError) Error() string {
	return e.Reason
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *UploadRejectedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("name", e.Name).
		Int64("size", e.Size).
		Str("reason", e.Reason).
		Str("type", "UploadRejectedError")
}

// NewUploadRejectedError は新しいUploadRejectedErrorを作成し、スタックトレースを付与します。
func NewUploadRejectedError(name string, size int64, reason string) error {
	return errors.WithStack(&UploadRejectedError{Name: name, Size: size, Reason: reason})
}

// StateError は操作が現在の状態では実行できない場合のエラーです。
type StateError struct {
	Op    string
	State string
	Err   error
}

func (e *StateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ecgstudio: %s: not allowed in state %q: %v", e.Op, e.State, e.Err)
	}
	return fmt.Sprintf("ecgstudio: %s: not allowed in state %q", e.Op, e.State)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// NewStateError は新しいStateErrorを作成し、スタックトレースを付与します。
func NewStateError(op, state string, err error) error {
	return errors.WithStack(&StateError{Op: op, State: state, Err: err})
}

// AsFieldErrors はエラーを表示用のフィールドエラーマップに変換します。
// 検証エラーとサーバーエラーはそのままのマップを、それ以外は "detail" キーに
// メッセージを格納した汎用マップを返します。
func AsFieldErrors(err error) FieldErrors {
	if err == nil {
		return nil
	}
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Fields.Clone()
	}
	var serverErr *ServerError
	if errors.As(err, &serverErr) && len(serverErr.Fields) > 0 {
		return serverErr.Fields.Clone()
	}
	var uploadErr *UploadRejectedError
	if errors.As(err, &uploadErr) {
		return FieldErrors{FieldEcgFile: {uploadErr.Reason}}
	}
	return FieldErrors{FieldDetail: {errors.UnwrapAll(err).Error()}}
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// Newf は新しいフォーマット済みエラーを作成します。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}

// CombineErrors は2つのエラーを1つにまとめます。どちらかがnilなら他方を返します。
func CombineErrors(err, other error) error {
	return errors.CombineErrors(err, other)
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrNoSession はトレーニングセッションがまだ作成されていない場合のエラーです。
	ErrNoSession = New("no training session")

	// ErrSessionNotDone はトレーニングセッションが完了していない場合のエラーです。
	ErrSessionNotDone = New("training session is not done")

	// ErrNoUpload は保留中のアップロードが無い場合のエラーです。
	ErrNoUpload = New("no pending upload")

	// ErrUnknownAlgorithm は登録されていないアルゴリズムIDが指定された場合のエラーです。
	ErrUnknownAlgorithm = New("unknown algorithm")

	// ErrUnknownParameter はアルゴリズムに存在しないパラメータ名が指定された場合のエラーです。
	ErrUnknownParameter = New("unknown parameter")
)
