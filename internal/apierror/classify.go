package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"syscall"
)

// Classify converts err into a classified *Error. It never returns nil for a
// non-nil err and never panics. An already classified error is returned
// unchanged.
//
// Order: network failure, abort/timeout, body parse failure, HTTP status
// bucket, unknown.
func Classify(err error, resource Resource) *Error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	switch {
	case isNetworkFailure(err):
		return &Error{
			Kind:       KindNetwork,
			Message:    "無法連線到伺服器，請檢查您的網路連線",
			Suggestion: DefaultSuggestion(KindNetwork),
			Resource:   resource,
			Err:        err,
		}
	case isTimeout(err):
		return &Error{
			Kind:       KindTimeout,
			Message:    "請求逾時，伺服器回應時間過長",
			Suggestion: DefaultSuggestion(KindTimeout),
			Resource:   resource,
			Err:        err,
		}
	case isParseFailure(err):
		return &Error{
			Kind:       KindParse,
			Message:    "伺服器回應的資料格式有誤",
			Suggestion: DefaultSuggestion(KindParse),
			Resource:   resource,
			Err:        err,
		}
	}

	var se *StatusError
	if errors.As(err, &se) {
		return classifyStatus(se, resource)
	}

	return &Error{
		Kind:       KindUnknown,
		Message:    "發生未預期的錯誤",
		Suggestion: DefaultSuggestion(KindUnknown),
		Resource:   resource,
		Err:        err,
	}
}

func classifyStatus(se *StatusError, resource Resource) *Error {
	e := &Error{StatusCode: se.Code, Resource: resource, Err: se}
	switch {
	case se.Code >= 500:
		e.Kind = KindServer
		e.Message = "伺服器暫時無法處理您的請求"
		e.Suggestion = DefaultSuggestion(KindServer)
	case se.Code == http.StatusNotFound:
		e.Kind = KindClient
		e.Message = notFoundMessage(resource)
		e.Suggestion = "該資源可能已被刪除或不存在，請返回列表查看"
	case se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden:
		e.Kind = KindClient
		e.Message = "您沒有權限執行此操作"
		e.Suggestion = "請重新登入後再試"
	case se.Code >= 400:
		e.Kind = KindClient
		e.Message = "請求內容有誤，無法處理"
		e.Suggestion = DefaultSuggestion(KindClient)
	default:
		e.Kind = KindUnknown
		e.Message = "發生未預期的錯誤"
		e.Suggestion = DefaultSuggestion(KindUnknown)
	}
	return e
}

func notFoundMessage(resource Resource) string {
	switch resource {
	case ResourceTask:
		return "找不到此任務"
	case ResourceClaim:
		return "找不到此認領紀錄"
	case ResourceMap:
		return "找不到地圖資料"
	}
	return "找不到請求的資源"
}

func isNetworkFailure(err error) bool {
	if isTimeout(err) {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return false
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isParseFailure(err error) bool {
	var pf *ParseFailure
	if errors.As(err, &pf) {
		return true
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return true
	}
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &typeErr)
}
