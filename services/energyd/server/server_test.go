package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"nhbenergy/core"
	"nhbenergy/core/epoch"
	coreerrors "nhbenergy/core/errors"
	"nhbenergy/crypto"
	"nhbenergy/gateway/middleware"
	"nhbenergy/native/common"
	"nhbenergy/native/lock"
	"nhbenergy/storage"
)

const secret = "energyd-server-test"

var (
	owner = crypto.ModuleAddress("test/owner")
	alice = crypto.ModuleAddress("test/alice")
)

type fixture struct {
	srv    *Server
	clock  *epoch.ManualClock
	pauses *common.PauseSet
}

func newFixture(t *testing.T, manual bool) *fixture {
	t.Helper()
	f := &fixture{clock: epoch.NewManualClock(1), pauses: common.NewPauseSet()}
	events := NewEventLog(nil, 8)
	processor, err := core.NewProcessor(storage.NewMemDB(), f.clock, core.Config{
		Owner:  owner,
		Lock:   lock.DefaultParams(),
		Weeks:  epoch.DefaultTimekeeper(),
		Pauses: f.pauses,
	}, core.WithEmitter(events))
	require.NoError(t, err)
	auth, err := middleware.NewAuthenticator(middleware.AuthConfig{HMACSecret: secret}, nil)
	require.NoError(t, err)
	deps := Deps{Processor: processor, Auth: auth, Pauses: f.pauses, Events: events}
	if manual {
		deps.Advancer = f.clock
	}
	f.srv, err = New(Config{}, deps)
	require.NoError(t, err)
	return f
}

func token(t *testing.T, who crypto.Address, scope string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   who.String(),
		"exp":   time.Now().Add(time.Hour).Unix(),
		"scope": scope,
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func (f *fixture) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	res := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(res, req)
	return res
}

func decode[T any](t *testing.T, res *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out))
	return out
}

func TestLockAndEnergyFlow(t *testing.T) {
	f := newFixture(t, false)
	admin := token(t, owner, middleware.AdminScope)
	user := token(t, alice, "")

	res := f.do(t, http.MethodPost, "/v1/admin/mint", admin, map[string]string{"to": alice.String(), "token": "NHB", "amount": "1000"})
	require.Equal(t, http.StatusNoContent, res.Code, res.Body.String())

	res = f.do(t, http.MethodPost, "/v1/lock", user, map[string]any{"amount": "1000", "lock_epochs": 360})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	receipt := decode[receiptView](t, res)
	require.Equal(t, "LNHB", receipt.Output.Token)
	require.Equal(t, uint64(1), receipt.Output.Nonce)
	require.Equal(t, "360000", receipt.Energy.Amount)

	res = f.do(t, http.MethodGet, "/v1/energy/"+alice.String(), "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "360000", decode[energyView](t, res).Amount)

	res = f.do(t, http.MethodGet, "/v1/lots/1", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	lot := decode[lotView](t, res)
	require.Equal(t, alice.String(), lot.Owner)
	require.Equal(t, uint64(361), lot.UnlockEpoch)

	res = f.do(t, http.MethodGet, "/v1/penalty?amount=1000&epochs=360", "", nil)
	require.Equal(t, http.StatusOK, res.Code)

	res = f.do(t, http.MethodPost, "/v1/unlock", user, map[string]any{"nonce": 1, "amount": "1000"})
	require.Equal(t, http.StatusConflict, res.Code, "immature unlock is a precondition failure")

	res = f.do(t, http.MethodPost, "/v1/unlock-early", user, map[string]any{"nonce": 1, "amount": "1000"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	early := decode[receiptView](t, res)
	require.Equal(t, "NHB", early.Output.Token)
	require.NotEqual(t, "0", early.Penalty)

	res = f.do(t, http.MethodGet, "/v1/events?limit=3", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.NotEmpty(t, res.Body.String())
}

func TestRequestValidation(t *testing.T) {
	f := newFixture(t, false)
	user := token(t, alice, "")

	cases := []struct {
		name   string
		method string
		path   string
		bearer string
		body   any
		status int
	}{
		{"anonymous lock", http.MethodPost, "/v1/lock", "", map[string]any{"amount": "1"}, http.StatusUnauthorized},
		{"negative amount", http.MethodPost, "/v1/lock", user, map[string]any{"amount": "-5", "lock_epochs": 360}, http.StatusBadRequest},
		{"overflowing amount", http.MethodPost, "/v1/lock", user, map[string]any{"amount": "1" + string(bytes.Repeat([]byte("0"), 80)), "lock_epochs": 360}, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/v1/claim", user, map[string]any{"weeks": 1}, http.StatusBadRequest},
		{"bad lock option", http.MethodPost, "/v1/lock", user, map[string]any{"amount": "5", "lock_epochs": 17}, http.StatusBadRequest},
		{"unknown lot", http.MethodGet, "/v1/lots/99", "", nil, http.StatusBadRequest},
		{"bad address", http.MethodGet, "/v1/energy/nope", "", nil, http.StatusBadRequest},
		{"user on admin route", http.MethodPost, "/v1/admin/fees-burn", user, map[string]any{"bps": 10}, http.StatusForbidden},
		{"no pending fees", http.MethodPost, "/v1/fees/send", user, nil, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := f.do(t, tc.method, tc.path, tc.bearer, tc.body)
			require.Equal(t, tc.status, res.Code, res.Body.String())
		})
	}
}

func TestAdminRequiresOwner(t *testing.T) {
	f := newFixture(t, false)
	notOwner := token(t, alice, middleware.AdminScope)
	res := f.do(t, http.MethodPost, "/v1/admin/penalty", notOwner, map[string]any{"min_bps": 100, "max_bps": 200})
	require.Equal(t, http.StatusForbidden, res.Code)

	admin := token(t, owner, middleware.AdminScope)
	res = f.do(t, http.MethodPost, "/v1/admin/penalty", admin, map[string]any{"min_bps": 100, "max_bps": 200})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	params := decode[paramsView](t, res)
	require.Equal(t, uint64(100), params.PenaltyMinBps)
	require.Equal(t, uint64(200), params.PenaltyMaxBps)
}

func TestPauseAndEpochAdmin(t *testing.T) {
	f := newFixture(t, true)
	admin := token(t, owner, middleware.AdminScope)

	res := f.do(t, http.MethodPost, "/v1/admin/pause", admin, map[string]any{"module": lock.ModuleName, "paused": true})
	require.Equal(t, http.StatusOK, res.Code)
	require.True(t, f.pauses.IsPaused(lock.ModuleName))

	res = f.do(t, http.MethodPost, "/v1/admin/pause", admin, map[string]any{"module": "swap", "paused": true})
	require.Equal(t, http.StatusBadRequest, res.Code)

	res = f.do(t, http.MethodPost, "/v1/admin/epoch/advance", admin, map[string]any{"epochs": 6})
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, uint64(7), f.clock.CurrentEpoch())

	res = f.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.EqualValues(t, 7, decode[map[string]any](t, res)["epoch"])
}

func TestAdvanceEpochNeedsManualClock(t *testing.T) {
	f := newFixture(t, false)
	res := f.do(t, http.MethodPost, "/v1/admin/epoch/advance", token(t, owner, middleware.AdminScope), map[string]any{"epochs": 1})
	require.Equal(t, http.StatusConflict, res.Code)
}

func TestWeekView(t *testing.T) {
	f := newFixture(t, false)
	res := f.do(t, http.MethodGet, "/v1/weeks/1", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	week := decode[weekView](t, res)
	require.False(t, week.Computed)
	require.Equal(t, uint64(1), week.Week)
}

func TestStatusFor(t *testing.T) {
	require.Equal(t, http.StatusBadRequest, statusFor(coreerrors.Validation("x")))
	require.Equal(t, http.StatusConflict, statusFor(coreerrors.Precondition("x")))
	require.Equal(t, http.StatusForbidden, statusFor(coreerrors.Permission("x")))
	require.Equal(t, http.StatusInternalServerError, statusFor(coreerrors.Invariant("x")))
	require.Equal(t, http.StatusInternalServerError, statusFor(errors.New("disk")))
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t, false)
	f.srv.cfg.ListenAddress = "127.0.0.1:0"
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.srv.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestParseAmount(t *testing.T) {
	v, err := parseAmount(" 42 ")
	require.NoError(t, err)
	require.Equal(t, "42", v.String())
	for _, raw := range []string{"", "0", "-1", "+1", "1.5", "0x10", "abc"} {
		_, err := parseAmount(raw)
		require.Error(t, err, raw)
	}
}
