package apierror

import "net/http"

// Action is a recovery affordance a client may offer next to an error.
type Action string

const (
	ActionRetry    Action = "retry"
	ActionLogin    Action = "login"
	ActionTaskList Action = "task_list"
	ActionAbout    Action = "about"
	ActionHome     Action = "home"
)

var titles = map[Kind]string{
	KindNetwork: "網路連線異常",
	KindTimeout: "請求逾時",
	KindClient:  "請求錯誤",
	KindServer:  "伺服器暫時無法使用",
	KindParse:   "資料格式錯誤",
	KindUnknown: "發生錯誤",
}

var suggestions = map[Kind]string{
	KindNetwork: "請確認網路連線後重試",
	KindTimeout: "如果問題持續發生，請聯絡系統管理員",
	KindClient:  "請重新整理頁面或返回首頁",
	KindServer:  "系統可能正在進行維護，請稍後再回來查看",
	KindParse:   "請重新整理頁面，如果問題持續請聯絡管理員",
	KindUnknown: "請重試或返回首頁",
}

// Outages leave nothing to retry around, so they point at informational pages.
var kindActions = map[Kind][]Action{
	KindNetwork: {ActionAbout, ActionHome},
	KindTimeout: {ActionAbout, ActionHome},
	KindServer:  {ActionAbout, ActionHome},
	KindClient:  {ActionRetry, ActionHome},
	KindParse:   {ActionRetry, ActionHome},
	KindUnknown: {ActionRetry, ActionHome},
}

// CLIENT_ERROR refinements keyed by upstream status.
var clientStatusActions = map[int][]Action{
	http.StatusNotFound:     {ActionTaskList, ActionHome},
	http.StatusUnauthorized: {ActionLogin, ActionHome},
	http.StatusForbidden:    {ActionLogin, ActionHome},
}

func Title(kind Kind) string {
	if t, ok := titles[kind]; ok {
		return t
	}
	return "發生錯誤"
}

func DefaultSuggestion(kind Kind) string {
	if s, ok := suggestions[kind]; ok {
		return s
	}
	return "請稍後再試"
}

// Actions returns the recovery actions for e. The returned slice is a copy.
func Actions(e *Error) []Action {
	if e == nil {
		return nil
	}
	src := kindActions[KindUnknown]
	if a, ok := kindActions[e.Kind]; ok {
		src = a
	}
	if e.Kind == KindClient {
		if a, ok := clientStatusActions[e.StatusCode]; ok {
			src = a
		}
	}
	return append([]Action(nil), src...)
}

// HTTPStatus is the status the gateway answers with for e.
func HTTPStatus(e *Error) int {
	switch e.Kind {
	case KindClient:
		if e.StatusCode >= 400 && e.StatusCode < 500 {
			return e.StatusCode
		}
		return http.StatusBadRequest
	case KindServer, KindNetwork, KindParse:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// Response is the JSON error body rendered by the gateway.
type Response struct {
	Type       Kind     `json:"type"`
	Title      string   `json:"title"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
	StatusCode int      `json:"status_code,omitempty"`
	Actions    []Action `json:"actions"`
}

func NewResponse(e *Error) Response {
	return Response{
		Type:       e.Kind,
		Title:      Title(e.Kind),
		Message:    e.Message,
		Suggestion: e.Suggestion,
		StatusCode: e.StatusCode,
		Actions:    Actions(e),
	}
}
