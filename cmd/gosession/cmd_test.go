package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/logging"
	"github.com/MrEthical07/goSession/profile/memstore"
	"github.com/MrEthical07/goSession/provider/providertest"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gosession.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestConfigLintValid(t *testing.T) {
	path := writeFile(t, "otp:\n  resend_cooldown: 30s\n")
	out, _, err := execute(t, "config", "lint", path)
	require.NoError(t, err)
	assert.Contains(t, out, "ok")
}

func TestConfigLintReportsProblems(t *testing.T) {
	path := writeFile(t, "session:\n  refresh_lead: -1s\n")
	_, stderr, err := execute(t, "config", "lint", path)
	require.Error(t, err)
	assert.Contains(t, stderr, "invalid")
}

func TestConfigLintNeedsFile(t *testing.T) {
	_, _, err := execute(t, "config", "lint")
	assert.Error(t, err)
}

func TestConfigPrintDefaults(t *testing.T) {
	out, _, err := execute(t, "config", "print")
	require.NoError(t, err)
	assert.Contains(t, out, "enterprise")
	assert.Contains(t, out, "5m0s")
}

func TestSimulatePrintsWalkthrough(t *testing.T) {
	out, _, err := execute(t, "simulate", "--timeout", "10s")
	require.NoError(t, err)

	assert.Contains(t, out, "sign_up")
	assert.Contains(t, out, "verification required")
	assert.Contains(t, out, "redirect_upgrade /pricing")
	assert.Contains(t, out, "suspicious")
	assert.Contains(t, out, "retry after")
	assert.Contains(t, out, "security score")
	assert.True(t, strings.Contains(out, "sign-ins ok=1 failed=4"), out)
}

func TestRouterGuardsRoutes(t *testing.T) {
	ctx := context.Background()
	fake := providertest.New()
	store := memstore.New()
	require.NoError(t, seedDemo(ctx, fake, store))

	engine, err := goSession.New().
		WithProvider(fake).
		WithProfileStore(store).
		WithLogger(logging.Discard()).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	readyCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, engine.WaitReady(readyCtx))

	srv := httptest.NewServer(newRouter(engine))
	t.Cleanup(srv.Close)
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	get := func(path string) *http.Response {
		resp, err := client.Get(srv.URL + path)
		require.NoError(t, err)
		_ = resp.Body.Close()
		return resp
	}

	resp := get("/dashboard")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/auth/signin?returnTo=%2Fdashboard", resp.Header.Get("Location"))

	resp, err = client.Post(srv.URL+"/auth/signin", "application/json",
		strings.NewReader(`{"email":"demo@example.com","password":"DemoPassw0rd"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, http.StatusOK, get("/dashboard").StatusCode)
	assert.Equal(t, http.StatusOK, get("/analytics").StatusCode)

	resp = get("/admin")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/unauthorized", resp.Header.Get("Location"))

	resp, err = client.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	var body bytes.Buffer
	_, _ = body.ReadFrom(resp.Body)
	_ = resp.Body.Close()
	assert.Contains(t, body.String(), "gosession_sign_in_success_total 1")
	assert.Contains(t, body.String(), "gosession_access_denied_total 2")
}

func TestWriteResultStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	writeResult(rec, goSession.Result{Err: &goSession.RateLimitError{RetryAfter: time.Minute}})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "1m0s")
}
