package lockbox_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HerbHall/lockboxctl/internal/lockbox"
	"github.com/HerbHall/lockboxctl/internal/testutil"
)

func TestLock_SendsPassword(t *testing.T) {
	dev := testutil.NewDeviceServer(t)
	c := lockbox.New(nil, lockbox.WithUserAgent("lockboxctl/test"))

	require.NoError(t, c.Lock(context.Background(), dev.URL, "abc123"))

	reqs := dev.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.Equal(t, "/lock", reqs[0].Path)
	assert.Equal(t, "abc123", reqs[0].Form.Get("password"))
	assert.NotEmpty(t, reqs[0].RequestID)
}

func TestUnlock_EmptyPasswordStillSent(t *testing.T) {
	dev := testutil.NewDeviceServer(t)
	c := lockbox.New(nil)

	require.NoError(t, c.Unlock(context.Background(), dev.URL, ""))

	reqs := dev.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/unlock", reqs[0].Path)
	assert.Contains(t, reqs[0].Form, "password")
	assert.Equal(t, "", reqs[0].Form.Get("password"))
}

func TestUnlock_Rejected(t *testing.T) {
	dev := testutil.NewDeviceServer(t)
	dev.Reply(http.MethodPost, "/unlock", http.StatusOK, `{"result":"error","error":"bad credential"}`)

	err := lockbox.New(nil).Unlock(context.Background(), dev.URL, "wrong")

	var ce *lockbox.CommandError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "bad credential", ce.Detail)
	assert.ErrorIs(t, err, lockbox.ErrRejected)

	var te *lockbox.TransportError
	assert.False(t, errors.As(err, &te), "application failure must not be a transport error")
}

func TestRejected_WithErrorStatus(t *testing.T) {
	dev := testutil.NewDeviceServer(t)
	dev.Reply(http.MethodPost, "/lock", http.StatusForbidden, `{"result":"error","error":"already locked"}`)

	err := lockbox.New(nil).Lock(context.Background(), dev.URL, "pw")
	require.ErrorIs(t, err, lockbox.ErrRejected)
	assert.Contains(t, err.Error(), "already locked")
}

func TestUpdate_NoBody(t *testing.T) {
	dev := testutil.NewDeviceServer(t)
	require.NoError(t, lockbox.New(nil).Update(context.Background(), dev.URL))

	reqs := dev.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/update", reqs[0].Path)
	assert.Empty(t, reqs[0].Body)
}

func TestSettings_ReturnsData(t *testing.T) {
	dev := testutil.NewDeviceServer(t)

	data, err := lockbox.New(nil).Settings(context.Background(), dev.URL)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"lockbox_000000","servo_open_position":10,"servo_closed_position":95}`, string(data))

	reqs := dev.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodGet, reqs[0].Method)
}

func TestSettings_MissingDataIsTransportError(t *testing.T) {
	dev := testutil.NewDeviceServer(t)
	dev.Reply(http.MethodGet, "/settings", http.StatusOK, testutil.SuccessBody)

	_, err := lockbox.New(nil).Settings(context.Background(), dev.URL)
	var te *lockbox.TransportError
	require.ErrorAs(t, err, &te)
}

func TestSettings_ScalarDataIsTransportError(t *testing.T) {
	dev := testutil.NewDeviceServer(t)
	dev.Reply(http.MethodGet, "/settings", http.StatusOK, `{"result":"success","data":5}`)

	data, err := lockbox.New(nil).Settings(context.Background(), dev.URL)
	var te *lockbox.TransportError
	require.ErrorAs(t, err, &te)
	assert.Nil(t, data)
}

func TestSettings_Rejected(t *testing.T) {
	dev := testutil.NewDeviceServer(t)
	dev.Reply(http.MethodGet, "/settings", http.StatusOK, `{"result":"error","error":"busy"}`)

	_, err := lockbox.New(nil).Settings(context.Background(), dev.URL)
	require.ErrorIs(t, err, lockbox.ErrRejected)
}

func TestSetSetting_Forwarded(t *testing.T) {
	dev := testutil.NewDeviceServer(t)
	require.NoError(t, lockbox.New(nil).SetSetting(context.Background(), dev.URL, "name", "my_first_box"))

	reqs := dev.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.Equal(t, "/settings", reqs[0].Path)
	assert.Equal(t, "my_first_box", reqs[0].Form.Get("name"))
}

func TestSetSetting_InvalidNeverSent(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"unknown key", "color", "red"},
		{"unknown key empty value", "color", ""},
		{"unknown key numeric", "color", "42"},
		{"empty value", "name", ""},
		{"empty key", "", "x"},
	}
	dev := testutil.NewDeviceServer(t)
	c := lockbox.New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.SetSetting(context.Background(), dev.URL, tt.key, tt.value)
			require.ErrorIs(t, err, lockbox.ErrInvalidSetting)
		})
	}
	assert.Empty(t, dev.Requests(), "invalid settings must not reach the device")
}

func TestMalformedResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>oops</html>`},
		{"empty", ``},
		{"no result", `{"status":"ok"}`},
		{"failure without error", `{"result":"error"}`},
		{"array", `[1,2,3]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := testutil.NewDeviceServer(t)
			dev.Reply(http.MethodPost, "/lock", http.StatusOK, tt.body)

			err := lockbox.New(nil).Lock(context.Background(), dev.URL, "pw")
			var te *lockbox.TransportError
			require.ErrorAs(t, err, &te)
			assert.NotErrorIs(t, err, lockbox.ErrRejected)
			assert.Equal(t, dev.URL+"/lock", te.URL)
		})
	}
}

func TestConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	err = lockbox.New(nil).Update(context.Background(), "http://"+addr)
	var te *lockbox.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.MethodPost, te.Op)
}

func TestTimeout(t *testing.T) {
	block := make(chan struct{})
	dev := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	t.Cleanup(dev.Close)
	t.Cleanup(func() { close(block) })

	err := lockbox.New(nil, lockbox.WithTimeout(50*time.Millisecond)).Update(context.Background(), dev.URL)
	var te *lockbox.TransportError
	require.ErrorAs(t, err, &te)
}

func TestTrailingSlashBaseURL(t *testing.T) {
	dev := testutil.NewDeviceServer(t)
	require.NoError(t, lockbox.New(nil).Update(context.Background(), dev.URL+"/"))
	assert.Equal(t, "/update", dev.Requests()[0].Path)
}
