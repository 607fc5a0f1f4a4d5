package storage

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestContext(t *testing.T) {
	testCases := []struct {
		name   string
		header string
		cookie string
		want   string
	}{
		{"bearer header", "Bearer tok-1", "", "tok-1"},
		{"scheme is case insensitive", "bearer tok-2", "", "tok-2"},
		{"cookie without header", "", "tok-3", "tok-3"},
		{"header wins over cookie", "Bearer tok-4", "tok-3", "tok-4"},
		{"basic scheme is ignored", "Basic dXNlcjpwdw==", "tok-3", ""},
		{"bare token is ignored", "tok-5", "", ""},
		{"empty bearer", "Bearer ", "", ""},
		{"nothing", "", "", ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}
			if tc.cookie != "" {
				r.AddCookie(&http.Cookie{Name: AuthCookie, Value: tc.cookie})
			}
			assert.Equal(t, tc.want, AuthToken(RequestContext(r)))
		})
	}
}
