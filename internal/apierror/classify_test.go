package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_PassThrough(t *testing.T) {
	orig := New(KindServer, "boom", nil)
	wrapped := fmt.Errorf("list tasks: %w", orig)

	assert.Same(t, orig, Classify(orig, ResourceTask))
	assert.Same(t, orig, Classify(wrapped, ResourceTask))
	assert.Nil(t, Classify(nil, ResourceTask))
}

func TestClassify_Network(t *testing.T) {
	dial := &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}
	err := &url.Error{Op: "Get", URL: "http://api.local/tasks", Err: dial}

	e := Classify(err, ResourceTask)
	assert.Equal(t, KindNetwork, e.Kind)
	assert.Equal(t, "請確認網路連線後重試", e.Suggestion)
	assert.ErrorIs(t, e, syscall.ECONNREFUSED)

	e = Classify(&net.DNSError{Err: "no such host", Name: "api.local"}, ResourceNone)
	assert.Equal(t, KindNetwork, e.Kind)
}

func TestClassify_Timeout(t *testing.T) {
	for _, err := range []error{
		context.DeadlineExceeded,
		context.Canceled,
		&url.Error{Op: "Get", URL: "http://api.local", Err: context.DeadlineExceeded},
	} {
		e := Classify(err, ResourceTask)
		assert.Equal(t, KindTimeout, e.Kind, "err=%v", err)
	}
}

func TestClassify_Parse(t *testing.T) {
	var v map[string]any
	syntaxErr := json.Unmarshal([]byte("{"), &v)
	require.Error(t, syntaxErr)

	assert.Equal(t, KindParse, Classify(syntaxErr, ResourceTask).Kind)
	assert.Equal(t, KindParse, Classify(&ParseFailure{Err: errors.New("bad")}, ResourceTask).Kind)
}

func TestClassify_Status(t *testing.T) {
	tests := []struct {
		name       string
		code       int
		resource   Resource
		kind       Kind
		message    string
		suggestion string
		actions    []Action
	}{
		{
			name: "503 is server error", code: http.StatusServiceUnavailable, resource: ResourceTask,
			kind: KindServer, message: "伺服器暫時無法處理您的請求",
			suggestion: "系統可能正在進行維護，請稍後再回來查看",
			actions:    []Action{ActionAbout, ActionHome},
		},
		{
			name: "404 on task detail", code: http.StatusNotFound, resource: ResourceTask,
			kind: KindClient, message: "找不到此任務",
			suggestion: "該資源可能已被刪除或不存在，請返回列表查看",
			actions:    []Action{ActionTaskList, ActionHome},
		},
		{
			name: "401 asks to log in", code: http.StatusUnauthorized, resource: ResourceTask,
			kind: KindClient, message: "您沒有權限執行此操作", suggestion: "請重新登入後再試",
			actions: []Action{ActionLogin, ActionHome},
		},
		{
			name: "403 asks to log in", code: http.StatusForbidden, resource: ResourceClaim,
			kind: KindClient, message: "您沒有權限執行此操作", suggestion: "請重新登入後再試",
			actions: []Action{ActionLogin, ActionHome},
		},
		{
			name: "422 generic client error", code: http.StatusUnprocessableEntity, resource: ResourceTask,
			kind: KindClient, message: "請求內容有誤，無法處理", suggestion: "請重新整理頁面或返回首頁",
			actions: []Action{ActionRetry, ActionHome},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Classify(&StatusError{Code: tt.code, Status: http.StatusText(tt.code)}, tt.resource)
			assert.Equal(t, tt.kind, e.Kind)
			assert.Equal(t, tt.code, e.StatusCode)
			assert.Equal(t, tt.message, e.Message)
			assert.Equal(t, tt.suggestion, e.Suggestion)
			assert.Equal(t, tt.actions, Actions(e))
		})
	}
}

func TestClassify_Unknown(t *testing.T) {
	e := Classify(errors.New("something odd"), ResourceNone)
	assert.Equal(t, KindUnknown, e.Kind)
	assert.Equal(t, []Action{ActionRetry, ActionHome}, Actions(e))
}

func TestTablesCoverEveryKind(t *testing.T) {
	for _, k := range []Kind{KindNetwork, KindTimeout, KindClient, KindServer, KindParse, KindUnknown} {
		assert.NotEqual(t, "", Title(k))
		assert.NotEqual(t, "請稍後再試", DefaultSuggestion(k), "kind %s needs its own suggestion", k)
		assert.NotEmpty(t, Actions(&Error{Kind: k}))
	}
	assert.Equal(t, "伺服器暫時無法使用", Title(KindServer))
	assert.Equal(t, "發生錯誤", Title("SOMETHING_ELSE"))
}

func TestActionsReturnsCopy(t *testing.T) {
	e := &Error{Kind: KindServer}
	a := Actions(e)
	a[0] = ActionLogin
	assert.Equal(t, ActionAbout, Actions(e)[0])
}

func TestHTTPStatusAndResponse(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(&Error{Kind: KindClient, StatusCode: 404}))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(&Error{Kind: KindClient}))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(&Error{Kind: KindServer, StatusCode: 503}))
	assert.Equal(t, http.StatusGatewayTimeout, HTTPStatus(&Error{Kind: KindTimeout}))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(&Error{Kind: KindUnknown}))

	e := Classify(&StatusError{Code: 404}, ResourceTask)
	resp := NewResponse(e)
	assert.Equal(t, KindClient, resp.Type)
	assert.Equal(t, "請求錯誤", resp.Title)
	assert.Equal(t, "找不到此任務", resp.Message)
	assert.Equal(t, 404, resp.StatusCode)
	assert.Equal(t, []Action{ActionTaskList, ActionHome}, resp.Actions)
}

func TestTransient(t *testing.T) {
	assert.True(t, (&Error{Kind: KindNetwork}).Transient())
	assert.True(t, (&Error{Kind: KindTimeout}).Transient())
	assert.True(t, (&Error{Kind: KindServer}).Transient())
	assert.False(t, (&Error{Kind: KindClient}).Transient())
	assert.False(t, (&Error{Kind: KindParse}).Transient())
	assert.True(t, (&Error{Kind: KindClient, StatusCode: 404}).NotFound())
}
