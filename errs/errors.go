package errs

import "net/http"

var (
	ErrInternal = New(KindInternal, 0, http.StatusInternalServerError, "internal server error")
)

// 入力検証
var (
	ErrIncompleteRequest     = NewValidationError(100, "missing required fields")
	ErrInvalidBirthDate      = NewValidationError(101, "birth date must be YYYY-MM-DD or DD/MM/YYYY")
	ErrInvalidBirthTime      = NewValidationError(102, "birth time must be HH:MM")
	ErrLocationNotFound      = NewValidationError(103, "could not find the birth location")
	ErrInvalidTimezone       = NewValidationError(104, "unknown timezone")
	ErrUnknownCharacter      = NewValidationError(105, "unknown character")
	ErrUnknownPromptVariant  = NewValidationError(106, "unknown prompt variant")
	ErrEmptyMessage          = NewValidationError(107, "message is empty")
	ErrInvalidFactStatus     = NewValidationError(108, "invalid fact status")
	ErrInvalidFactTransition = NewValidationError(109, "fact status transition is not allowed")
	ErrInvalidUserID         = NewValidationError(110, "invalid user id")
	ErrInvalidFactID         = NewValidationError(111, "invalid fact id")
	ErrInvalidCoordinates    = NewValidationError(112, "latitude or longitude out of range")
	ErrInvalidSessionID      = NewValidationError(113, "invalid session id")
	ErrUnknownLLMProvider    = NewValidationError(114, "unknown llm provider")
	ErrLLMAPIKeyMissing      = NewValidationError(115, "llm api key is not set")
)

// 参照先なし
var (
	ErrUserNotFound    = NewNotFoundError(200, "user not found")
	ErrSessionNotFound = NewNotFoundError(201, "session not found")
	ErrFactNotFound    = NewNotFoundError(202, "fact not found")
	ErrProfileNotFound = NewNotFoundError(203, "profile not found")
	ErrPlanetNotFound  = NewNotFoundError(204, "planet not found")
	ErrDoshaNotFound   = NewNotFoundError(205, "dosha not found")
)

// 認証
var (
	ErrInvalidAPIKey = New(KindUnauthorized, 300, http.StatusUnauthorized, "invalid api key")
)

// 外部サービス
var (
	ErrLLMRequestFailed      = NewUpstreamError(400, "llm request failed")
	ErrLLMEmptyResponse      = NewUpstreamError(401, "llm returned an empty response")
	ErrExtractionParseFailed = NewUpstreamError(402, "could not parse extraction result")
	ErrEmbeddingFailed       = NewUpstreamError(403, "embedding request failed")
)

// 永続化
var (
	ErrDatabaseOperation     = NewPersistenceError(500, "database operation failed")
	ErrDuplicateMessageIndex = NewPersistenceError(501, "message index already used in session")
	ErrDynamoOperation       = NewPersistenceError(502, "turn store operation failed")
)
