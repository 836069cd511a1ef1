package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBasicAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name       string
		cfgUser    string
		cfgPass    string
		user, pass string
		noHeader   bool
		wantStatus int
	}{
		{name: "valid", cfgUser: "admin", cfgPass: "secret", user: "admin", pass: "secret", wantStatus: http.StatusNoContent},
		{name: "wrong password", cfgUser: "admin", cfgPass: "secret", user: "admin", pass: "nope", wantStatus: http.StatusUnauthorized},
		{name: "wrong user", cfgUser: "admin", cfgPass: "secret", user: "root", pass: "secret", wantStatus: http.StatusUnauthorized},
		{name: "no header", cfgUser: "admin", cfgPass: "secret", noHeader: true, wantStatus: http.StatusUnauthorized},
		{name: "admin not configured", cfgUser: "", cfgPass: "", user: "", pass: "", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/recipes", nil)
			if !tt.noHeader {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			rr := httptest.NewRecorder()

			BasicAuth(tt.cfgUser, tt.cfgPass)(ok).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Equal(t, realm, rr.Header().Get("WWW-Authenticate"))
			}
		})
	}
}
