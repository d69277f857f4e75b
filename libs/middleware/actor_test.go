package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	should "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestParseActorToken(t *testing.T) {
	type tcGiven struct {
		secret []byte
		token  func(t *testing.T) string
	}

	type tcExpected struct {
		actor *Actor
		err   bool
	}

	type testCase struct {
		name  string
		given tcGiven
		exp   tcExpected
	}

	tests := []testCase{
		{
			name: "customer_default_role",
			given: tcGiven{
				secret: testSecret,
				token: func(t *testing.T) string {
					raw, err := SignActorToken(testSecret, "user-1", "", time.Hour)
					require.NoError(t, err)
					return raw
				},
			},
			exp: tcExpected{actor: &Actor{ID: "user-1", Role: RoleCustomer}},
		},

		{
			name: "admin",
			given: tcGiven{
				secret: testSecret,
				token: func(t *testing.T) string {
					raw, err := SignActorToken(testSecret, "admin-1", RoleAdmin, time.Hour)
					require.NoError(t, err)
					return raw
				},
			},
			exp: tcExpected{actor: &Actor{ID: "admin-1", Role: RoleAdmin}},
		},

		{
			name: "wrong_secret",
			given: tcGiven{
				secret: []byte("ffffffffffffffffffffffffffffffff"),
				token: func(t *testing.T) string {
					raw, err := SignActorToken(testSecret, "user-1", "", time.Hour)
					require.NoError(t, err)
					return raw
				},
			},
			exp: tcExpected{err: true},
		},

		{
			name: "expired",
			given: tcGiven{
				secret: testSecret,
				token: func(t *testing.T) string {
					raw, err := SignActorToken(testSecret, "user-1", "", -time.Hour)
					require.NoError(t, err)
					return raw
				},
			},
			exp: tcExpected{err: true},
		},

		{
			name: "garbage",
			given: tcGiven{
				secret: testSecret,
				token:  func(t *testing.T) string { return "not.a.token" },
			},
			exp: tcExpected{err: true},
		},
	}

	for i := range tests {
		tc := tests[i]

		t.Run(tc.name, func(t *testing.T) {
			actual, err := ParseActorToken(tc.given.secret, tc.given.token(t))
			if tc.exp.err {
				should.Error(t, err)
				return
			}

			require.NoError(t, err)
			should.Equal(t, tc.exp.actor, actual)
		})
	}
}

func TestRequireActor(t *testing.T) {
	h := ActorFromToken(testSecret)(RequireActor(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		require.True(t, ok)
		should.Equal(t, "user-1", actor.ID)
	})))

	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/transactions/my-transactions", nil))
	should.Equal(t, http.StatusUnauthorized, rw.Code)

	raw, err := SignActorToken(testSecret, "user-1", RoleCustomer, time.Hour)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/transactions/my-transactions", nil)
	r.Header.Set("Authorization", "Bearer "+raw)

	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, r)
	should.Equal(t, http.StatusOK, rw.Code)
}

func TestRequireAdmin(t *testing.T) {
	h := ActorFromToken(testSecret)(RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	customer, err := SignActorToken(testSecret, "user-1", RoleCustomer, time.Hour)
	require.NoError(t, err)

	admin, err := SignActorToken(testSecret, "admin-1", RoleAdmin, time.Hour)
	require.NoError(t, err)

	for token, code := range map[string]int{
		"":       http.StatusUnauthorized,
		customer: http.StatusForbidden,
		admin:    http.StatusOK,
	} {
		r := httptest.NewRequest(http.MethodGet, "/transactions", nil)
		if token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}

		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, r)
		should.Equal(t, code, rw.Code)
	}
}

func TestRequestIDTransfer(t *testing.T) {
	var seen string
	h := RequestIDTransfer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = w.Header().Get("x-request-id")
	}))

	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
	should.Len(t, seen, 16)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("x-request-id", "abc")
	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, r)
	should.Equal(t, "abc", rw.Header().Get("x-request-id"))
}
