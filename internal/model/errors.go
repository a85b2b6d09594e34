package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, not_found, auth, conflict, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// エラーカテゴリ。HTTPステータスへの変換に使用する。
const (
	CategoryValidation = "validation"
	CategoryNotFound   = "not_found"
	CategoryAuth       = "auth"
	CategoryForbidden  = "forbidden"
	CategoryConflict   = "conflict"
	CategorySystem     = "system"
)

// 定義済みエラーコード
const (
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeInvalidParent   = "INVALID_PARENT"
	ErrCodeSelfFollow      = "SELF_FOLLOW"
	ErrCodeUnderage        = "UNDERAGE"
	ErrCodeUserNotFound    = "USER_NOT_FOUND"
	ErrCodeNewsNotFound    = "NEWS_NOT_FOUND"
	ErrCodeCommentNotFound = "COMMENT_NOT_FOUND"
	ErrCodePollNotFound    = "POLL_NOT_FOUND"
	ErrCodeOptionNotFound  = "OPTION_NOT_FOUND"
	ErrCodeRowNotFound     = "ROW_NOT_FOUND"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeInvalidLogin    = "INVALID_CREDENTIALS"
	ErrCodeUserBlocked     = "USER_BLOCKED"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeAdultContent    = "ADULT_CONTENT"
	ErrCodeUsernameTaken   = "USERNAME_TAKEN"
	ErrCodeAlreadyVoted    = "ALREADY_VOTED"
)

// NewValidationError は必須項目の欠落や形式不正を表すエラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: CategoryValidation,
		Action:   "Girdiğiniz bilgileri kontrol edin.",
	}
}

// NewInvalidRequestError はリクエストボディを解析できない場合のエラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "İstek gövdesi çözümlenemedi.",
		Category: CategoryValidation,
		Action:   "İsteği geçerli JSON biçiminde gönderin.",
	}
}

// NewInvalidParentError は返信先コメントが同じ記事に存在しない場合のエラーを生成する。
func NewInvalidParentError(parentID ID) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidParent,
		Message:  fmt.Sprintf("Yanıtlanan yorum bu habere ait değil: %s", parentID),
		Category: CategoryValidation,
		Action:   "Yanıtladığınız yorumu kontrol edin.",
	}
}

// NewSelfFollowError は自分自身をフォローしようとした場合のエラーを生成する。
func NewSelfFollowError() *APIError {
	return &APIError{
		Code:     ErrCodeSelfFollow,
		Message:  "Kendinizi takip edemezsiniz.",
		Category: CategoryValidation,
		Action:   "Başka bir kullanıcı seçin.",
	}
}

// NewUnderageError は18歳未満の登録を拒否するエラーを生成する。
func NewUnderageError() *APIError {
	return &APIError{
		Code:     ErrCodeUnderage,
		Message:  "18 yaşından küçükler kayıt olamaz.",
		Category: CategoryForbidden,
		Action:   "Yalnızca 18 yaşından büyükler kayıt olabilir.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("Kullanıcı bulunamadı: %s", username),
		Category: CategoryNotFound,
		Action:   "Kullanıcı adını kontrol edin.",
	}
}

// NewNewsNotFoundError は記事が見つからない場合のエラーを生成する。
func NewNewsNotFoundError(newsID ID) *APIError {
	return &APIError{
		Code:     ErrCodeNewsNotFound,
		Message:  fmt.Sprintf("Haber bulunamadı: %s", newsID),
		Category: CategoryNotFound,
		Action:   "Haber numarasını kontrol edin.",
	}
}

// NewCommentNotFoundError はコメントが見つからない場合のエラーを生成する。
func NewCommentNotFoundError(commentID ID) *APIError {
	return &APIError{
		Code:     ErrCodeCommentNotFound,
		Message:  fmt.Sprintf("Yorum bulunamadı: %s", commentID),
		Category: CategoryNotFound,
		Action:   "Yorum numarasını kontrol edin.",
	}
}

// NewPollNotFoundError は投票が見つからない場合のエラーを生成する。
func NewPollNotFoundError(pollID ID) *APIError {
	return &APIError{
		Code:     ErrCodePollNotFound,
		Message:  fmt.Sprintf("Anket bulunamadı: %s", pollID),
		Category: CategoryNotFound,
		Action:   "Anket numarasını kontrol edin.",
	}
}

// NewOptionNotFoundError は投票の選択肢が見つからない場合のエラーを生成する。
func NewOptionNotFoundError(optionID ID) *APIError {
	return &APIError{
		Code:     ErrCodeOptionNotFound,
		Message:  fmt.Sprintf("Seçenek bulunamadı: %s", optionID),
		Category: CategoryNotFound,
		Action:   "Seçeneği kontrol edin.",
	}
}

// NewRowNotFoundError は管理画面のレコードが見つからない場合のエラーを生成する。
func NewRowNotFoundError(collection string, id ID) *APIError {
	return &APIError{
		Code:     ErrCodeRowNotFound,
		Message:  fmt.Sprintf("Kayıt bulunamadı: %s/%s", collection, id),
		Category: CategoryNotFound,
		Action:   "Koleksiyon adını ve kayıt numarasını kontrol edin.",
	}
}

// NewUnauthorizedError は認証が必要な操作を未ログインで行った場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Giriş yapmanız gerekiyor.",
		Category: CategoryAuth,
		Action:   "Lütfen giriş yapın.",
	}
}

// NewInvalidCredentialsError はログイン情報が誤っている場合のエラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidLogin,
		Message:  "Hatalı bilgiler.",
		Category: CategoryAuth,
		Action:   "Kullanıcı adı ve şifrenizi kontrol edin.",
	}
}

// NewUserBlockedError はブロックされたユーザーの操作を拒否するエラーを生成する。
func NewUserBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeUserBlocked,
		Message:  "Hesabınız engellenmiştir.",
		Category: CategoryForbidden,
		Action:   "Yönetici ile iletişime geçin.",
	}
}

// NewForbiddenError は所有者以外による操作を拒否するエラーを生成する。
func NewForbiddenError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  message,
		Category: CategoryForbidden,
		Action:   "Bu işlem için yetkiniz yok.",
	}
}

// NewAdultContentError は未ログインユーザーへの成人向け記事の表示を拒否するエラーを生成する。
func NewAdultContentError() *APIError {
	return &APIError{
		Code:     ErrCodeAdultContent,
		Message:  "Bu içerik yalnızca giriş yapmış kullanıcılar içindir.",
		Category: CategoryForbidden,
		Action:   "Giriş yaptıktan sonra tekrar deneyin.",
	}
}

// NewUsernameTakenError はユーザー名が既に使われている場合のエラーを生成する。
func NewUsernameTakenError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeUsernameTaken,
		Message:  fmt.Sprintf("Kullanıcı adı dolu: %s", username),
		Category: CategoryConflict,
		Action:   "Farklı bir kullanıcı adı seçin.",
	}
}

// NewAlreadyVotedError は同じ投票に二重投票しようとした場合のエラーを生成する。
func NewAlreadyVotedError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyVoted,
		Message:  "Bu ankette zaten oy kullandınız.",
		Category: CategoryConflict,
		Action:   "Her kullanıcı yalnızca bir kez oy kullanabilir.",
	}
}
