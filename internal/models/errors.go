package models

// ErrorKind - машинно-читаемый код ошибки в ответе API.
// Клиентская очередь опирается на эти коды при классификации ошибок.
type ErrorKind string

const (
	ErrorKindValidation             ErrorKind = "VALIDATION_ERROR"
	ErrorKindInsufficientStock      ErrorKind = "INSUFFICIENT_STOCK"
	ErrorKindInsufficientBalance    ErrorKind = "INSUFFICIENT_BALANCE"
	ErrorKindProductUnavailable     ErrorKind = "PRODUCT_UNAVAILABLE"
	ErrorKindConcurrentModification ErrorKind = "CONCURRENT_MODIFICATION"
	ErrorKindDuplicateSubmission    ErrorKind = "DUPLICATE_SUBMISSION"
	ErrorKindInternal               ErrorKind = "INTERNAL_ERROR"
)

// ErrorResponse - тело ответа при ошибке проведения заказа.
type ErrorResponse struct {
	Error   ErrorKind `json:"error"`
	Message string    `json:"message"`
}
