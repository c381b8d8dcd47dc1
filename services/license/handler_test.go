package license

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"chwone-controlplane/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc, _ := newTestService(t)
	r := gin.New()
	r.Use(middleware.Identify(), middleware.Error())
	NewHandler(svc).Register(r.Group("/v1"))
	return r, svc
}

func do(r http.Handler, method, path, body string, asAdmin bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if asAdmin {
		req.Header.Set(middleware.HeaderUserID, admin.ID)
		req.Header.Set(middleware.HeaderUserName, admin.Name)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

const createBody = `{
	"entityType": "CHW Association",
	"entityId": "org-42",
	"entityName": "Coastal CHW Association",
	"status": "Active",
	"totalLicensedUsers": 2,
	"billingCycle": "Quarterly",
	"toolLicenses": [{"tool": "Forms", "maxUsers": 2}]
}`

func TestHandlerLicenseFlow(t *testing.T) {
	r, svc := newTestRouter(t)

	w := do(r, http.MethodPost, "/v1/licenses", createBody, true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	w = do(r, http.MethodGet, "/v1/licenses/"+created.ID, "", false)
	require.Equal(t, http.StatusOK, w.Code)
	var l OrganizationLicense
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &l))
	require.Equal(t, "60", l.TotalMonthlyCost.String())

	w = do(r, http.MethodGet, "/v1/entities/org-42/license", "", false)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodPost, "/v1/licenses/"+created.ID+"/tools", `{"tool":"Reports","maxUsers":1}`, true)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = do(r, http.MethodGet, "/v1/organizations/org-42/users/user-1/access?tool=Reports", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	var decision ToolAccess
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decision))
	require.True(t, decision.HasAccess)

	w = do(r, http.MethodPut, "/v1/licenses/"+created.ID+"/active-users/user-1", "", true)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = do(r, http.MethodPut, "/v1/licenses/"+created.ID+"/active-users/user-2", "", true)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = do(r, http.MethodPut, "/v1/licenses/"+created.ID+"/active-users/user-3", "", true)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "LIMIT_REACHED", errorCode(t, w))

	w = do(r, http.MethodGet, "/v1/licenses/"+created.ID+"/capacity", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"canAddUser":false,"currentUsers":2,"maxUsers":2}`, w.Body.String())

	w = do(r, http.MethodPost, "/v1/licenses/"+created.ID+"/status", `{"action":"suspend","reason":"audit"}`, true)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(r, http.MethodGet, "/v1/licenses/"+created.ID+"/history", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		Data []LicenseChangeLog `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history.Data, 3)
	require.Equal(t, ChangeSuspended, history.Data[0].ChangeType)

	require.Equal(t, StatusSuspended, mustGet(t, svc, created.ID).Status)
}

func TestHandlerSessions(t *testing.T) {
	r, svc := newTestRouter(t)
	l := mustCreate(t, svc, activeInput("org-1", 3))
	w := do(r, http.MethodPost, "/v1/licenses/"+l.ID+"/tools", `{"tool":"Forms","maxUsers":2}`, true)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(r, http.MethodPost, "/v1/licenses/"+l.ID+"/sessions", `{"tool":"Forms","userId":"user-1","userName":"Ana"}`, false)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var sess ToolSession
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	require.NotEmpty(t, sess.IPAddress)

	w = do(r, http.MethodPost, "/v1/licenses/"+l.ID+"/sessions", `{"tool":"Grants","userId":"user-1"}`, false)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, http.MethodPost, "/v1/licenses/"+l.ID+"/sessions/"+sess.ID+"/end", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	var ended struct {
		Closed bool             `json:"closed"`
		Usage  *LicenseUsageLog `json:"usage"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ended))
	require.True(t, ended.Closed)
	require.NotNil(t, ended.Usage)

	w = do(r, http.MethodGet, "/v1/licenses/"+l.ID+"/usage?limit=10", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	var usage struct {
		Data []LicenseUsageLog `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &usage))
	require.Len(t, usage.Data, 1)
}

func TestHandlerErrors(t *testing.T) {
	r, svc := newTestRouter(t)
	l := mustCreate(t, svc, activeInput("org-1", 3))

	tests := []struct {
		name    string
		method  string
		path    string
		body    string
		asAdmin bool
		code    int
		status  string
	}{
		{"missing identity", http.MethodPost, "/v1/licenses", createBody, false, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"malformed body", http.MethodPost, "/v1/licenses", `{`, true, http.StatusBadRequest, "BAD_REQUEST"},
		{"invalid record", http.MethodPost, "/v1/licenses", `{"entityId":"x"}`, true, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"unknown license", http.MethodGet, "/v1/licenses/nope", "", false, http.StatusNotFound, "NOT_FOUND"},
		{"no entity license", http.MethodGet, "/v1/entities/org-none/license", "", false, http.StatusNotFound, "NOT_FOUND"},
		{"revoke not granted", http.MethodDelete, "/v1/licenses/" + l.ID + "/tools/Forms", "", true, http.StatusNotFound, "NOT_FOUND"},
		{"bad status action", http.MethodPost, "/v1/licenses/" + l.ID + "/status", `{"action":"pause"}`, true, http.StatusBadRequest, "BAD_REQUEST"},
		{"reactivate active", http.MethodPost, "/v1/licenses/" + l.ID + "/status", `{"action":"reactivate"}`, true, http.StatusUnprocessableEntity, "UNPROCESSABLE_ENTITY"},
		{"bad usage limit", http.MethodGet, "/v1/licenses/" + l.ID + "/usage?limit=x", "", false, http.StatusBadRequest, "BAD_REQUEST"},
		{"unknown tool", http.MethodGet, "/v1/organizations/org-1/users/u/access?tool=Chat", "", false, http.StatusBadRequest, "BAD_REQUEST"},
		{"bad estimate", http.MethodGet, "/v1/pricing/estimate?users=0", "", false, http.StatusBadRequest, "BAD_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, tt.method, tt.path, tt.body, tt.asAdmin)
			require.Equal(t, tt.code, w.Code, w.Body.String())
			require.Equal(t, tt.status, errorCode(t, w))
		})
	}
}

func TestHandlerEstimate(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodGet, "/v1/pricing/estimate?users=60&cycle=Annual", "", false)
	require.Equal(t, http.StatusOK, w.Code)

	var est Estimate
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &est))
	require.Equal(t, "tier_3", est.Tier.ID)
	require.Equal(t, "2400", est.MonthlyCost.String())
	require.Equal(t, "28800", est.CycleCost.String())
}
