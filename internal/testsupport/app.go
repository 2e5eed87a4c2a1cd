package testsupport

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"linkpage/internal"
	"linkpage/internal/auth"
	"linkpage/internal/users"
)

// BrowserUserAgent is a desktop Chrome user agent that passes bot filtering.
const BrowserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// CreateTestApp creates a test Fiber app with all routes mounted on db.
func CreateTestApp(t *testing.T, db *gorm.DB) *fiber.App {
	t.Helper()

	dbManager := NewTestDBManager(db)
	appConfig := TestConfig()
	appConfig.PublicDirectory = t.TempDir()

	cfg := cartridge.DefaultServerConfig()
	cfg.Config = appConfig
	cfg.Logger = GetLogger()
	cfg.DBManager = dbManager
	cfg.StaticDirectory = appConfig.PublicDirectory
	cfg.StaticPrefix = "/assets"
	cfg.TemplatesDirectory = appConfig.PublicDirectory
	// Enable SecFetchSite validation in tests to match production behavior
	cfg.EnableSecFetchSite = true
	cfg.SecFetchSiteAllowedValues = []string{"cross-site", "same-site", "same-origin"}

	srv, err := cartridge.NewServer(cfg)
	require.NoError(t, err)

	internal.MountRoutesWithConfig(appConfig)(srv)
	return srv.App()
}

// AuthToken issues a bearer token for user signed with the test config key.
func AuthToken(t *testing.T, user users.User) string {
	t.Helper()
	token, _, err := auth.NewTokenService(TestConfig()).Issue(user.ID, user.Email)
	require.NoError(t, err)
	return token
}

// Request describes a test HTTP request. A non nil Body is JSON encoded
// unless it is already a string.
type Request struct {
	Method  string
	Path    string
	Body    any
	Token   string
	Headers map[string]string
}

// Do performs req against app and returns the response and its body.
func Do(t *testing.T, app *fiber.App, req Request) (*http.Response, []byte) {
	t.Helper()

	var body io.Reader
	switch b := req.Body.(type) {
	case nil:
	case string:
		body = bytes.NewBufferString(b)
	default:
		encoded, err := json.Marshal(b)
		require.NoError(t, err)
		body = bytes.NewReader(encoded)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq := httptest.NewRequest(method, req.Path, body)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Sec-Fetch-Site", "same-origin")
	httpReq.Header.Set("User-Agent", BrowserUserAgent)
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := app.Test(httpReq, 30000)
	require.NoError(t, err)

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	return resp, respBody
}

// DecodeJSON unmarshals body into a value of type T.
func DecodeJSON[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoErrorf(t, json.Unmarshal(body, &v), "body: %s", string(body))
	return v
}
