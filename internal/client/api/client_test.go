package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/atinyakov/TapKeeper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roundTripperFunc lets a plain function stand in for the transport.
type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(fn roundTripperFunc, opts ...Option) *Client {
	return NewClient(&http.Client{Transport: fn, Timeout: time.Second}, "http://example.com/", opts...)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestLogin_SendsPasswordAndDecodesNumericUserID(t *testing.T) {
	c := newTestClient(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "http://example.com/api/auth/login", req.URL.String())
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		assert.Equal(t, "correct", body["password"])
		_, hasUsername := body["username"]
		assert.False(t, hasUsername, "empty username must be omitted")

		return jsonResponse(http.StatusOK, `{"success":true,"user_id":42}`), nil
	})

	resp, err := c.Login(context.Background(), "", "correct")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, models.UserID("42"), resp.UserID)
}

func TestLogin_RejectionIsNotTransportError(t *testing.T) {
	c := newTestClient(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusUnauthorized, `{"success":false,"message":"Invalid credentials."}`), nil
	})

	resp, err := c.Login(context.Background(), "alice", "nope")
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Invalid credentials.", resp.Message)
}

func TestDo_NetworkErrorIsTransportError(t *testing.T) {
	c := newTestClient(func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("network down")
	})

	_, err := c.ListCredentials(context.Background())
	require.Error(t, err)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "vault list", te.Op)
	assert.Zero(t, te.Status)
	assert.True(t, IsTransport(err))
	assert.Contains(t, err.Error(), "network down")
}

func TestDo_UnparseableBodyIsTransportError(t *testing.T) {
	c := newTestClient(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusBadGateway, "<html>bad gateway</html>"), nil
	})

	_, err := c.AddCredential(context.Background(), models.CredentialDraft{Name: "n", Password: "p"})
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusBadGateway, te.Status)
	assert.Contains(t, err.Error(), "invalid response")
}

func TestScanToken(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "null uid", body: `{"uid":null}`, want: ""},
		{name: "missing uid", body: `{}`, want: ""},
		{name: "empty uid", body: `{"uid":""}`, want: ""},
		{name: "present uid", body: `{"uid":" 67 AE 7B B4 "}`, want: "67 AE 7B B4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(func(req *http.Request) (*http.Response, error) {
				assert.Equal(t, http.MethodGet, req.Method)
				assert.Equal(t, "/api/auth/rfid-scan", req.URL.Path)
				return jsonResponse(http.StatusOK, tt.body), nil
			})
			got, err := c.ScanToken(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScanToken_CustomPath(t *testing.T) {
	var gotPath string
	c := newTestClient(func(req *http.Request) (*http.Response, error) {
		gotPath = req.URL.Path
		return jsonResponse(http.StatusOK, `{"uid":"ABC"}`), nil
	}, WithScanPath(PathTestScan))

	uid, err := c.ScanToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ABC", uid)
	assert.Equal(t, PathTestScan, gotPath)
}

func TestVerifyToken_EchoesUserIDShape(t *testing.T) {
	tests := []struct {
		name   string
		userID models.UserID
		want   string
	}{
		{name: "numeric", userID: "42", want: `{"user_id":42,"rfid_uid":"ABC"}`},
		{name: "uuid", userID: "9b2f", want: `{"user_id":"9b2f","rfid_uid":"ABC"}`},
		{name: "negative", userID: "-7", want: `{"user_id":-7,"rfid_uid":"ABC"}`},
		{name: "leading zeros", userID: "007", want: `{"user_id":"007","rfid_uid":"ABC"}`},
		{name: "plus sign", userID: "+5", want: `{"user_id":"+5","rfid_uid":"ABC"}`},
		{name: "negative zero", userID: "-0", want: `{"user_id":"-0","rfid_uid":"ABC"}`},
		{name: "beyond int64", userID: "99999999999999999999", want: `{"user_id":99999999999999999999,"rfid_uid":"ABC"}`},
		{name: "zero", userID: "0", want: `{"user_id":0,"rfid_uid":"ABC"}`},
		{name: "empty", userID: "", want: `{"user_id":"","rfid_uid":"ABC"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(func(req *http.Request) (*http.Response, error) {
				b, _ := io.ReadAll(req.Body)
				assert.JSONEq(t, tt.want, string(b))
				return jsonResponse(http.StatusOK, `{"success":true}`), nil
			})
			resp, err := c.VerifyToken(context.Background(), tt.userID, "ABC")
			require.NoError(t, err)
			assert.True(t, resp.Success)
		})
	}
}

func TestDeleteCredential_EscapesID(t *testing.T) {
	c := newTestClient(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, http.MethodDelete, req.Method)
		assert.Equal(t, "/api/vault/a%2Fb", req.URL.EscapedPath())
		assert.Empty(t, req.Header.Get("Content-Type"))
		return jsonResponse(http.StatusOK, `{"success":true}`), nil
	})

	resp, err := c.DeleteCredential(context.Background(), "a/b")
	require.NoError(t, err)
	assert.True(t, resp.Success)
}

func TestRegister_Rejected(t *testing.T) {
	c := newTestClient(func(req *http.Request) (*http.Response, error) {
		var body models.RegisterRequest
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		assert.Equal(t, "ABC", body.RFIDUID)
		return jsonResponse(http.StatusConflict, `{"success":false,"message":"Username or RFID already exists."}`), nil
	})

	resp, err := c.Register(context.Background(), models.RegisterRequest{Password: "p", RFIDUID: "ABC"})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Username or RFID already exists.", resp.Message)
}

func TestNewHTTPClient_KeepsCookiesAcrossCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case PathLogin:
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "s1", Path: "/"})
			_, _ = w.Write([]byte(`{"success":true}`))
		case PathVault:
			if c, err := r.Cookie("session"); err != nil || c.Value != "s1" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"success":false}`))
				return
			}
			_, _ = w.Write([]byte(`{"success":true,"credentials":[{"id":"1","name":"mail","password":"x"}]}`))
		}
	}))
	t.Cleanup(srv.Close)

	httpClient, err := NewHTTPClient(TLSOptions{})
	require.NoError(t, err)
	c := NewClient(httpClient, srv.URL)

	_, err = c.Login(context.Background(), "", "pw")
	require.NoError(t, err)

	list, err := c.ListCredentials(context.Background())
	require.NoError(t, err)
	require.True(t, list.Success)
	require.Len(t, list.Credentials, 1)
	assert.Equal(t, "mail", list.Credentials[0].Name)
}

func TestNewHTTPClient_Errors(t *testing.T) {
	_, err := NewHTTPClient(TLSOptions{CAFile: "nonexistent.pem"})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(bad, []byte("invalid pem"), 0600))
	_, err = NewHTTPClient(TLSOptions{CAFile: bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse CA cert")

	_, err = NewHTTPClient(TLSOptions{CertFile: "missing.crt", KeyFile: "missing.key"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load client cert/key")
}

func TestPushTestToken(t *testing.T) {
	c := newTestClient(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, PathTestScan, req.URL.Path)
		var body models.TestTokenRequest
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		assert.Equal(t, "ABC", body.UID)
		return jsonResponse(http.StatusOK, `{"success":true}`), nil
	})

	resp, err := c.PushTestToken(context.Background(), "ABC")
	require.NoError(t, err)
	assert.True(t, resp.Success)
}
