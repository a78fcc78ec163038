package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindCameraUnavailable          ErrorKind = "camera_unavailable"
	KindCameraPermissionDenied     ErrorKind = "camera_permission_denied"
	KindCameraNotFound             ErrorKind = "camera_not_found"
	KindCameraUnsupported          ErrorKind = "camera_unsupported"
	KindCameraTimeout              ErrorKind = "camera_timeout"
	KindDecodeFailure              ErrorKind = "decode_failure"
	KindFileReadFailure            ErrorKind = "file_read_failure"
	KindImageLoadFailure           ErrorKind = "image_load_failure"
	KindSubmissionTransportFailure ErrorKind = "submission_transport_failure"
	KindSubmissionRejected         ErrorKind = "submission_rejected"
	KindProcessingTransportFailure ErrorKind = "processing_transport_failure"
	KindProcessingRejected         ErrorKind = "processing_rejected"
	KindStatusPollTransient        ErrorKind = "status_poll_transient"
	KindStatusPollTimeout          ErrorKind = "status_poll_timeout"
	KindMissingSecurityToken       ErrorKind = "missing_security_token"
	KindNoReservation              ErrorKind = "no_reservation"
	KindUnauthenticated            ErrorKind = "unauthenticated"
	KindInvalidInput               ErrorKind = "invalid_input"
	KindRequestRejected            ErrorKind = "request_rejected"
	KindTransportFailure           ErrorKind = "transport_failure"
)

const (
	MsgUnknownError      = "Неизвестная ошибка"
	MsgConnectionFailed  = "Ошибка подключения к серверу"
	MsgSecurityError     = "Ошибка безопасности. Перезагрузите страницу."
	MsgPaymentTimeout    = "Время ожидания истекло"
	MsgPaymentCompleted  = "Платеж успешно выполнен!"
	MsgPaymentCancelled  = "Платеж отменен"
	MsgDecodeFailure     = "Не удалось распознать QR-код на изображении"
	MsgImageLoadFailure  = "Ошибка загрузки изображения"
	MsgFileReadFailure   = "Ошибка чтения файла"
	MsgDefaultPurchase   = "Оплата покупки"
	MsgQRRecognized      = "QR-код успешно распознан!"
	MsgPaymentProcessing = "Платеж отправлен в обработку"
)

const cameraPrefix = "Не удалось получить доступ к камере: "

var defaultMessages = map[ErrorKind]string{
	KindCameraUnavailable:          cameraPrefix + "устройство недоступно",
	KindCameraPermissionDenied:     cameraPrefix + "Разрешите доступ к камере в настройках браузера",
	KindCameraNotFound:             cameraPrefix + "Камера не найдена",
	KindCameraUnsupported:          cameraPrefix + "Ваш браузер не поддерживает камеру",
	KindCameraTimeout:              cameraPrefix + "превышено время ожидания видеопотока",
	KindDecodeFailure:              MsgDecodeFailure,
	KindFileReadFailure:            MsgFileReadFailure,
	KindImageLoadFailure:           MsgImageLoadFailure,
	KindSubmissionTransportFailure: MsgConnectionFailed,
	KindSubmissionRejected:         MsgUnknownError,
	KindProcessingTransportFailure: MsgConnectionFailed,
	KindProcessingRejected:         MsgUnknownError,
	KindStatusPollTransient:        MsgConnectionFailed,
	KindStatusPollTimeout:          MsgPaymentTimeout,
	KindMissingSecurityToken:       MsgSecurityError,
	KindNoReservation:              "Нет ожидающего платежа",
	KindUnauthenticated:            "Требуется авторизация",
	KindInvalidInput:               "Некорректные данные",
	KindRequestRejected:            MsgUnknownError,
	KindTransportFailure:           MsgConnectionFailed,
}

// Transport-level sentinels returned by the REST client. Services map them to kinds.
var (
	ErrTransport         = errors.New("transport failure")
	ErrMalformedResponse = errors.New("malformed response body")
	ErrUnauthorized      = errors.New("not authenticated")
)

// MsgInsecureContext is shown when the platform refuses camera access outside a secure context.
const MsgInsecureContext = "Для работы камеры требуется HTTPS соединение. Запустите сервер с SSL."

// Error is the categorized failure surfaced to the presentation layer.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = defaultMessages[e.Kind]
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// UserMessage is the text a person should see for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var de *Error
	if !errors.As(err, &de) {
		return MsgUnknownError
	}
	if de.Message != "" {
		return de.Message
	}
	if msg, ok := defaultMessages[de.Kind]; ok {
		return msg
	}
	return MsgUnknownError
}
