package web

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thenoetrevino/tablero/internal/app"
	"github.com/thenoetrevino/tablero/internal/config"
	"github.com/thenoetrevino/tablero/internal/mail"
	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/services/card"
	"github.com/thenoetrevino/tablero/internal/services/invitation"
	"github.com/thenoetrevino/tablero/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	srv    *Server
	app    *app.App
	outbox *mail.Outbox
	cfg    *config.Config
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.Default()
	cfg.Auth.JWTSecret = "web-test-secret"
	cfg.Auth.BcryptCost = 4
	cfg.Uploads.Dir = filepath.Join(t.TempDir(), "blobs")
	cfg.Uploads.MaxSize = "1KiB"

	maxUpload, err := cfg.Uploads.MaxBytes()
	require.NoError(t, err)

	outbox := &mail.Outbox{}
	a, err := app.New(cfg, testutil.SetupTestStore(t), app.WithMailer(outbox))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	return &testServer{
		srv:    NewServer(Config{StaticDir: "", MaxUploadBytes: maxUpload}, a),
		app:    a,
		outbox: outbox,
		cfg:    cfg,
	}
}

// envelope mirrors the response shape
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *apiError       `json:"error"`
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

// signup registers a user and returns a session token
func (ts *testServer) signup(t *testing.T, email string) (int, string) {
	t.Helper()
	w, env := ts.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"email": email, "name": strings.Split(email, "@")[0], "password": "correct horse",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var u models.User
	require.NoError(t, json.Unmarshal(env.Data, &u))

	w, env = ts.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": email, "password": "correct horse"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var session struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &session))
	require.NotEmpty(t, session.Token)
	return u.ID, session.Token
}

func (ts *testServer) createProject(t *testing.T, token, name string) *models.Project {
	t.Helper()
	w, env := ts.do(t, http.MethodPost, "/api/projects", token, gin.H{"name": name})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var p models.Project
	require.NoError(t, json.Unmarshal(env.Data, &p))
	return &p
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

// ============================================================================
// Infrastructure
// ============================================================================

func TestHealthz(t *testing.T) {
	ts := setupServer(t)
	w, _ := ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok"`)
}

func TestAuthRequired(t *testing.T) {
	ts := setupServer(t)

	w, env := ts.do(t, http.MethodGet, "/api/projects", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, CodeUnauthorized, env.Error.Code)

	w, _ = ts.do(t, http.MethodGet, "/api/projects", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUnknownAPIRoute(t *testing.T) {
	ts := setupServer(t)
	w, env := ts.do(t, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, CodeNotFound, env.Error.Code)
}

func TestStaticFallback(t *testing.T) {
	ts := setupServer(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>spa</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))
	srv := NewServer(Config{StaticDir: dir}, ts.app)

	for path, want := range map[string]string{
		"/app.js":           "console.log(1)",
		"/projects/3/board": "<html>spa</html>",
	} {
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, want, w.Body.String(), path)
	}
}

func TestCORS(t *testing.T) {
	ts := setupServer(t)
	srv := NewServer(Config{CORSOrigins: []string{"https://board.example"}}, ts.app)

	req := httptest.NewRequest(http.MethodOptions, "/api/projects", nil)
	req.Header.Set("Origin", "https://board.example")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://board.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/projects", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{card.ErrEmptyTitle, http.StatusBadRequest, CodeValidation},
		{fmt.Errorf("wrapped: %w", card.ErrCardNotFound), http.StatusNotFound, CodeNotFound},
		{models.ErrForbidden, http.StatusForbidden, CodeForbidden},
		{card.ErrCardArchived, http.StatusConflict, CodeConflict},
		{invitation.ErrInvitationExpired, http.StatusGone, CodeGone},
		{errors.New("disk on fire"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tt := range tests {
		class, _ := classify(tt.err)
		assert.Equal(t, tt.status, class.status, tt.err.Error())
		assert.Equal(t, tt.code, class.code, tt.err.Error())
	}
}

// ============================================================================
// Flows
// ============================================================================

func TestBoardFlow(t *testing.T) {
	ts := setupServer(t)
	_, token := ts.signup(t, "ada@example.com")
	project := ts.createProject(t, token, "Engine")

	w, env := ts.do(t, http.MethodGet, fmt.Sprintf("/api/projects/%d/board", project.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	board := decodeData[models.Board](t, env)
	require.Len(t, board.Columns, len(models.DefaultColumns))

	w, env = ts.do(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/cards", project.ID), token, gin.H{
		"title": "Bore the cylinders", "priority": "high",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	c := decodeData[models.Card](t, env)
	assert.Equal(t, board.Columns[0].ID, c.ColumnID)

	w, env = ts.do(t, http.MethodPost, fmt.Sprintf("/api/cards/%d/move", c.ID), token, gin.H{
		"column_id": board.Columns[1].ID, "position": 0,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, board.Columns[1].ID, decodeData[models.Card](t, env).ColumnID)

	w, _ = ts.do(t, http.MethodPost, fmt.Sprintf("/api/cards/%d/archive", c.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env = ts.do(t, http.MethodPatch, fmt.Sprintf("/api/cards/%d", c.ID), token, gin.H{"title": "Too late"})
	assert.Equal(t, http.StatusConflict, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, card.ErrCardArchived.Error(), env.Error.Message)

	w, env = ts.do(t, http.MethodGet, fmt.Sprintf("/api/projects/%d/cards?archived=true", project.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeData[[]models.Card](t, env), 1)

	w, env = ts.do(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/cards", project.ID), token, gin.H{"title": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeValidation, env.Error.Code)
}

func TestOutsiderIsForbidden(t *testing.T) {
	ts := setupServer(t)
	_, owner := ts.signup(t, "owner@example.com")
	_, outsider := ts.signup(t, "outsider@example.com")
	project := ts.createProject(t, owner, "Private")

	w, env := ts.do(t, http.MethodGet, fmt.Sprintf("/api/projects/%d/board", project.ID), outsider, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, CodeForbidden, env.Error.Code)

	w, _ = ts.do(t, http.MethodGet, "/api/projects/abc", owner, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInvitationFlow(t *testing.T) {
	ts := setupServer(t)
	_, owner := ts.signup(t, "owner@example.com")
	project := ts.createProject(t, owner, "Shared")

	w, env := ts.do(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/invitations", project.ID), owner, gin.H{
		"email": "Grace@Example.com",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	inv := decodeData[invitation.Created](t, env)
	require.NotEmpty(t, inv.Token)
	assert.Len(t, ts.outbox.Messages(), 1)

	// Preview needs no session
	w, env = ts.do(t, http.MethodGet, "/api/invitations/"+inv.Token, "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, string(env.Data), "Shared")

	graceID, grace := ts.signup(t, "grace@example.com")
	w, _ = ts.do(t, http.MethodPost, "/api/invitations/"+inv.Token+"/accept", grace, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = ts.do(t, http.MethodPost, "/api/invitations/"+inv.Token+"/accept", grace, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, env = ts.do(t, http.MethodGet, fmt.Sprintf("/api/projects/%d/members", project.ID), grace, nil)
	require.Equal(t, http.StatusOK, w.Code)
	members := decodeData[[]models.Member](t, env)
	var found bool
	for _, m := range members {
		found = found || m.UserID == graceID
	}
	assert.True(t, found, "invitee should be a member")

	// The inviter hears about it
	w, env = ts.do(t, http.MethodGet, "/api/notifications/unread-count", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"unread":1}`, string(env.Data))
}

func TestTimerFlow(t *testing.T) {
	ts := setupServer(t)
	_, token := ts.signup(t, "ada@example.com")
	project := ts.createProject(t, token, "Clock")
	_, env := ts.do(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/cards", project.ID), token, gin.H{"title": "Wind"})
	c := decodeData[models.Card](t, env)

	w, env := ts.do(t, http.MethodGet, "/api/timer", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "null", string(env.Data))

	w, _ = ts.do(t, http.MethodPost, "/api/timer/stop", token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = ts.do(t, http.MethodPost, "/api/timer/start", token, gin.H{"card_id": c.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env = ts.do(t, http.MethodGet, "/api/timer", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, c.ID, decodeData[models.ActiveTimer](t, env).CardID)

	w, _ = ts.do(t, http.MethodPost, "/api/timer/stop", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = ts.do(t, http.MethodGet, fmt.Sprintf("/api/projects/%d/time-report", project.ID), token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = ts.do(t, http.MethodGet, fmt.Sprintf("/api/projects/%d/time-report?from=yesterday", project.ID), token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func upload(t *testing.T, ts *testServer, token string, cardID int, name string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/cards/%d/attachments", cardID), &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(w, req)
	return w
}

func TestAttachmentFlow(t *testing.T) {
	ts := setupServer(t)
	_, token := ts.signup(t, "ada@example.com")
	project := ts.createProject(t, token, "Files")
	_, env := ts.do(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/cards", project.ID), token, gin.H{"title": "Draft"})
	c := decodeData[models.Card](t, env)

	content := []byte("pressure,temperature\n1,2\n")
	w := upload(t, ts, token, c.ID, "readings.csv", content)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var uploaded envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &uploaded))
	att := decodeData[models.Attachment](t, uploaded)

	w, _ = ts.do(t, http.MethodGet, fmt.Sprintf("/api/attachments/%d", att.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, content, w.Body.Bytes())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "readings.csv")

	w = upload(t, ts, token, c.ID, "big.bin", bytes.Repeat([]byte{1}, 2048))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	// A body far past the limit is cut off while parsing, not spooled whole.
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "huge.bin")
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte{2}, 4<<20))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	total := buf.Len()

	body := &countingReader{r: &buf}
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/cards/%d/attachments", c.ID), body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), CodeTooLarge)
	assert.Less(t, body.n, total/8)

	w, env = ts.do(t, http.MethodGet, fmt.Sprintf("/api/cards/%d/attachments", c.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeData[[]models.Attachment](t, env), 1)
}

type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}

// ============================================================================
// Live events
// ============================================================================

func TestProjectEventStream(t *testing.T) {
	ts := setupServer(t)
	ownerID, token := ts.signup(t, "ada@example.com")
	project := ts.createProject(t, token, "Live")

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = ts.app.Hub.Run(ctx)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	httpSrv := httptest.NewServer(ts.srv.Handler())
	defer httpSrv.Close()

	respCh := make(chan *http.Response, 1)
	go func() {
		url := fmt.Sprintf("%s/api/projects/%d/events?access_token=%s", httpSrv.URL, project.ID, token)
		resp, err := http.Get(url)
		if err != nil {
			close(respCh)
			return
		}
		respCh <- resp
	}()

	deadline := time.Now().Add(2 * time.Second)
	for ts.app.Hub.Metrics().ConnectedClients < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.EqualValues(t, 1, ts.app.Hub.Metrics().ConnectedClients)

	_, err := ts.app.Cards.CreateCard(context.Background(), card.CreateCardRequest{
		ActorID: ownerID, ProjectID: project.ID, Title: "Streamed",
	})
	require.NoError(t, err)

	var resp *http.Response
	select {
	case resp = <-respCh:
		require.NotNil(t, resp, "stream request failed")
	case <-time.After(3 * time.Second):
		t.Fatal("Timed out waiting for stream")
	}
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// Events queued before the stream opened may arrive first
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() && scanner.Text() != "event:card.created" {
	}
	require.True(t, scanner.Scan(), "stream ended before card.created")
	assert.True(t, strings.HasPrefix(scanner.Text(), "data:"), scanner.Text())
	assert.Contains(t, scanner.Text(), fmt.Sprintf(`"project_id":%d`, project.ID))
}

func TestProjectEventStream_EndsAfterMemberRemoved(t *testing.T) {
	ts := setupServer(t)
	ownerID, ownerToken := ts.signup(t, "ada@example.com")
	memberID, memberToken := ts.signup(t, "bob@example.com")
	project := ts.createProject(t, ownerToken, "Live")
	testutil.AddTestMember(t, ts.app.Store(), project.ID, memberID, models.RoleMember)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = ts.app.Hub.Run(ctx)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	httpSrv := httptest.NewServer(ts.srv.Handler())
	defer httpSrv.Close()

	type result struct {
		body string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		client := &http.Client{Timeout: 5 * time.Second}
		url := fmt.Sprintf("%s/api/projects/%d/events?access_token=%s", httpSrv.URL, project.ID, memberToken)
		resp, err := client.Get(url)
		if err != nil {
			done <- result{err: err}
			return
		}
		defer func() { _ = resp.Body.Close() }()
		body, err := io.ReadAll(resp.Body)
		done <- result{body: string(body), err: err}
	}()

	deadline := time.Now().Add(2 * time.Second)
	for ts.app.Hub.Metrics().ConnectedClients < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.EqualValues(t, 1, ts.app.Hub.Metrics().ConnectedClients)

	require.NoError(t, ts.app.Projects.RemoveMember(context.Background(), ownerID, project.ID, memberID))
	_, err := ts.app.Cards.CreateCard(context.Background(), card.CreateCardRequest{
		ActorID: ownerID, ProjectID: project.ID, Title: "Secret",
	})
	require.NoError(t, err)

	var res result
	select {
	case res = <-done:
	case <-time.After(6 * time.Second):
		t.Fatal("Stream stayed open after the member was removed")
	}
	require.NoError(t, res.err, "stream should end cleanly")
	assert.NotContains(t, res.body, "event:card.created")
	assert.NotContains(t, res.body, "Secret")

	deadline = time.Now().Add(2 * time.Second)
	for ts.app.Hub.Metrics().ConnectedClients > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.EqualValues(t, 0, ts.app.Hub.Metrics().ConnectedClients)
}
