package api

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/daybook/internal/auth"
	"github.com/starford/daybook/internal/journalservice"
	"github.com/starford/daybook/internal/testutil"
)

// testEnv sets up a temp journal, SQLite DB, asset store, service, and
// router. An empty token means disabled auth; a non-empty token means
// static-token mode.
func testEnv(t *testing.T, token string) (*journalservice.Service, http.Handler) {
	t.Helper()
	svc := journalservice.New(testutil.TestJournal(t), testutil.TestDB(t), testutil.TestAssets(t))
	var validate TokenValidator
	if token != "" {
		validate = func(got string) bool { return got == token }
	}
	router := NewRouter(svc, svc.Assets(), validate, nil, nil)
	return svc, router
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return doJSON(t, router, http.MethodPost, path, body)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestCreateAndGetEntry(t *testing.T) {
	_, router := testEnv(t, "")

	w := postJSON(t, router, "/entries", map[string]string{"date": "2024-03-15", "content": "first entry"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/entries/2024-03-15", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var entry EntryDetail
	_ = json.Unmarshal(w.Body.Bytes(), &entry)
	if entry.Date != "2024-03-15" {
		t.Errorf("date = %q", entry.Date)
	}
	if entry.Content != "first entry" {
		t.Errorf("content = %q", entry.Content)
	}
}

func TestGetEntry_LooseDateForm(t *testing.T) {
	_, router := testEnv(t, "")

	postJSON(t, router, "/entries", map[string]string{"date": "2024-03-05", "content": "x"})

	// Un-padded month and day reach the same entry.
	req := httptest.NewRequest(http.MethodGet, "/entries/2024-3-5", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("loose date get = %d, want 200", w.Code)
	}
}

func TestCreateEntry_DuplicateDate(t *testing.T) {
	_, router := testEnv(t, "")

	body := map[string]string{"date": "2024-03-15", "content": "a"}
	if w := postJSON(t, router, "/entries", body); w.Code != http.StatusCreated {
		t.Fatalf("first create = %d", w.Code)
	}
	if w := postJSON(t, router, "/entries", body); w.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", w.Code)
	}
}

func TestCreateEntry_InvalidDate(t *testing.T) {
	_, router := testEnv(t, "")

	w := postJSON(t, router, "/entries", map[string]string{"date": "2024-13-99", "content": "a"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid date = %d, want 400", w.Code)
	}
}

func TestUpdateWithOptimisticLocking(t *testing.T) {
	_, router := testEnv(t, "")

	w := postJSON(t, router, "/entries", map[string]string{"date": "2024-03-15", "content": "v1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d", w.Code)
	}
	var created EntryDetail
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	updateBody, _ := json.Marshal(map[string]string{"content": "v2"})
	req := httptest.NewRequest(http.MethodPut, "/entries/2024-03-15", bytes.NewReader(updateBody))
	req.Header.Set("If-Match", created.Checksum)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("update with correct checksum = %d, body = %s", w.Code, w.Body.String())
	}

	// Same checksum is stale now → 409.
	req = httptest.NewRequest(http.MethodPut, "/entries/2024-03-15", bytes.NewReader(updateBody))
	req.Header.Set("If-Match", created.Checksum)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("update with stale checksum = %d, want 409", w.Code)
	}
}

func TestUpdateWithoutIfMatch(t *testing.T) {
	_, router := testEnv(t, "")

	postJSON(t, router, "/entries", map[string]string{"date": "2024-03-15", "content": "v1"})

	w := doJSON(t, router, http.MethodPut, "/entries/2024-03-15", map[string]string{"content": "v2"})
	if w.Code != http.StatusOK {
		t.Errorf("update without If-Match = %d, want 200", w.Code)
	}
}

func TestDeleteEntry(t *testing.T) {
	_, router := testEnv(t, "")

	postJSON(t, router, "/entries", map[string]string{"date": "2024-03-15", "content": "gone"})

	req := httptest.NewRequest(http.MethodDelete, "/entries/2024-03-15", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/entries/2024-03-15", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
}

func TestListEntries_NewestFirst(t *testing.T) {
	_, router := testEnv(t, "")

	for _, d := range []string{"2024-03-14", "2024-03-15"} {
		postJSON(t, router, "/entries", map[string]string{"date": d, "content": "day " + d})
	}

	req := httptest.NewRequest(http.MethodGet, "/entries", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	var resp EntryListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 2 || len(resp.Entries) != 2 {
		t.Fatalf("total = %d, entries = %d, want 2", resp.Total, len(resp.Entries))
	}
	if resp.Entries[0].Date != "2024-03-15" {
		t.Errorf("first entry = %q, want newest", resp.Entries[0].Date)
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	postJSON(t, router, "/entries", map[string]string{"date": "2024-03-15", "content": "uniquetoken here"})

	req := httptest.NewRequest(http.MethodGet, "/search?q=uniquetoken", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d, body = %s", w.Code, w.Body.String())
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 {
		t.Errorf("search results = %d, want 1", len(resp.Results))
	}
}

func TestSearchMissingQuery(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

// Image flow: upload asset, insert marker, render, resize, remove.

func uploadAsset(t *testing.T, router http.Handler, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.Copy(part, bytes.NewReader(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/assets", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestImageFlow(t *testing.T) {
	_, router := testEnv(t, "")

	postJSON(t, router, "/entries", map[string]string{"date": "2024-03-15", "content": "before after"})

	w := uploadAsset(t, router, "photo.png", pngBytes(t, 200, 100))
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	var up AssetUploadResponse
	_ = json.Unmarshal(w.Body.Bytes(), &up)
	if up.Asset == "" || up.Markup == "" {
		t.Fatalf("upload response incomplete: %+v", up)
	}

	// Insert the marker between the words.
	w = postJSON(t, router, "/entries/2024-03-15/images", map[string]any{
		"offset": len("before"), "asset": up.Asset,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("insert = %d, body = %s", w.Code, w.Body.String())
	}
	var ins ImageMutationResponse
	_ = json.Unmarshal(w.Body.Bytes(), &ins)
	if ins.Span == nil {
		t.Fatal("insert returned no span")
	}

	// Render: expect one image run at the default width with scaled height.
	req := httptest.NewRequest(http.MethodGet, "/entries/2024-03-15/render", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("render = %d", w.Code)
	}
	var plan RenderResponse
	_ = json.Unmarshal(w.Body.Bytes(), &plan)
	var img *RunDTO
	for i := range plan.Runs {
		if plan.Runs[i].Type == "image" {
			img = &plan.Runs[i]
		}
	}
	if img == nil {
		t.Fatal("render has no image run")
	}
	if img.Width != 400 || img.Height != 200 {
		t.Errorf("image = %dx%d, want 400x200", img.Width, img.Height)
	}

	// Resize to 300; the 2:1 aspect ratio gives height 150.
	w = doJSON(t, router, http.MethodPatch, "/entries/2024-03-15/images", map[string]any{
		"start": img.Span.Start, "end": img.Span.End, "width": 300,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("resize = %d, body = %s", w.Code, w.Body.String())
	}

	// Render again to find the updated span, then remove the marker.
	req = httptest.NewRequest(http.MethodGet, "/entries/2024-03-15/render", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	_ = json.Unmarshal(w.Body.Bytes(), &plan)
	img = nil
	for i := range plan.Runs {
		if plan.Runs[i].Type == "image" {
			img = &plan.Runs[i]
		}
	}
	if img == nil {
		t.Fatal("image run missing after resize")
	}
	if img.Width != 300 || img.Height != 150 {
		t.Errorf("resized image = %dx%d, want 300x150", img.Width, img.Height)
	}

	w = doJSON(t, router, http.MethodDelete, "/entries/2024-03-15/images", map[string]any{
		"start": img.Span.Start, "end": img.Span.End,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("remove = %d, body = %s", w.Code, w.Body.String())
	}
	var rem ImageMutationResponse
	_ = json.Unmarshal(w.Body.Bytes(), &rem)
	if rem.Entry.Content != "before\n\n after" {
		t.Errorf("content after remove = %q", rem.Entry.Content)
	}
}

func TestResizeImage_InvalidWidth(t *testing.T) {
	_, router := testEnv(t, "")

	postJSON(t, router, "/entries", map[string]string{"date": "2024-03-15", "content": "<<IMG:x.png|400>>"})

	w := doJSON(t, router, http.MethodPatch, "/entries/2024-03-15/images", map[string]any{
		"start": 0, "end": len("<<IMG:x.png|400>>"), "width": 49,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("width 49 = %d, want 400", w.Code)
	}
}

func TestResizeImage_StaleSpan(t *testing.T) {
	_, router := testEnv(t, "")

	postJSON(t, router, "/entries", map[string]string{"date": "2024-03-15", "content": "plain text"})

	w := doJSON(t, router, http.MethodPatch, "/entries/2024-03-15/images", map[string]any{
		"start": 1, "end": 5, "width": 300,
	})
	if w.Code != http.StatusConflict {
		t.Errorf("stale span = %d, want 409", w.Code)
	}
}

func TestRenderEntry_MissingAssetSkipped(t *testing.T) {
	_, router := testEnv(t, "")

	postJSON(t, router, "/entries", map[string]string{
		"date": "2024-03-15", "content": "A<<IMG:ghost.png|300>>B",
	})

	req := httptest.NewRequest(http.MethodGet, "/entries/2024-03-15/render", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("render = %d", w.Code)
	}
	var plan RenderResponse
	_ = json.Unmarshal(w.Body.Bytes(), &plan)
	for _, run := range plan.Runs {
		if run.Type == "image" {
			t.Errorf("unresolved marker produced an image run: %+v", run)
		}
	}
}

func TestUploadAsset_BadExtension(t *testing.T) {
	_, router := testEnv(t, "")

	w := uploadAsset(t, router, "notes.txt", []byte("plain text"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad extension upload = %d, want 400", w.Code)
	}
}

func TestServeAsset(t *testing.T) {
	svc, _ := testEnv(t, "")
	name, err := svc.Assets().Put("pic.png", pngBytes(t, 4, 4))
	if err != nil {
		t.Fatal(err)
	}

	r := chi.NewRouter()
	r.Get("/assets/{name}", NewAssetHandler(svc.Assets()).ServeFile)

	req := httptest.NewRequest(http.MethodGet, "/assets/"+name, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("serve = %d, want 200", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/assets/nope.png", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing asset = %d, want 404", w.Code)
	}
}

// Auth middleware tests.

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/entries", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/entries", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/entries", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/entries", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// Session mode: credential gate endpoints plus session-token middleware.

func sessionEnv(t *testing.T) http.Handler {
	t.Helper()
	svc := journalservice.New(testutil.TestJournal(t), testutil.TestDB(t), testutil.TestAssets(t))
	gate := auth.NewGate(filepath.Join(t.TempDir(), "credentials.json"))
	sessions := auth.NewSessions(time.Hour)
	authH := NewAuthHandler(gate, sessions)
	return NewRouter(svc, svc.Assets(), sessions.Valid, authH, nil)
}

func TestSessionFlow(t *testing.T) {
	router := sessionEnv(t)

	// Setup endpoints are reachable without a token.
	w := postJSON(t, router, "/auth/setup", map[string]string{
		"password": "hunter2", "security_question": "first pet?", "security_answer": "biscuit",
	})
	if w.Code != http.StatusNoContent {
		t.Fatalf("setup = %d, body = %s", w.Code, w.Body.String())
	}

	// Protected routes reject missing tokens.
	req := httptest.NewRequest(http.MethodGet, "/entries", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthed list = %d, want 401", rec.Code)
	}

	// Wrong password.
	if w := postJSON(t, router, "/auth/login", map[string]string{"password": "nope"}); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong password login = %d, want 401", w.Code)
	}

	// Login issues a working token.
	w = postJSON(t, router, "/auth/login", map[string]string{"password": "hunter2"})
	if w.Code != http.StatusOK {
		t.Fatalf("login = %d, body = %s", w.Code, w.Body.String())
	}
	var login LoginResponse
	_ = json.Unmarshal(w.Body.Bytes(), &login)
	if login.Token == "" {
		t.Fatal("login returned empty token")
	}

	req = httptest.NewRequest(http.MethodGet, "/entries", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", rec.Code)
	}
}

func TestRecoverFlow(t *testing.T) {
	router := sessionEnv(t)

	postJSON(t, router, "/auth/setup", map[string]string{
		"password": "old", "security_question": "first pet?", "security_answer": "Biscuit",
	})

	// Question is public.
	req := httptest.NewRequest(http.MethodGet, "/auth/question", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("question = %d", w.Code)
	}

	// Wrong answer.
	if w := postJSON(t, router, "/auth/recover", map[string]string{
		"answer": "wrong", "new_password": "new",
	}); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong answer = %d, want 401", w.Code)
	}

	// Answers are normalized: different case and padding still match.
	rec := postJSON(t, router, "/auth/recover", map[string]string{
		"answer": "  biscuit ", "new_password": "new",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("recover = %d, body = %s", rec.Code, rec.Body.String())
	}

	// Old password no longer works, new one does.
	if w := postJSON(t, router, "/auth/login", map[string]string{"password": "old"}); w.Code != http.StatusUnauthorized {
		t.Errorf("old password after recover = %d, want 401", w.Code)
	}
	if w := postJSON(t, router, "/auth/login", map[string]string{"password": "new"}); w.Code != http.StatusOK {
		t.Errorf("new password after recover = %d, want 200", w.Code)
	}
}

func TestSetup_RefusesOverwrite(t *testing.T) {
	router := sessionEnv(t)

	body := map[string]string{
		"password": "a", "security_question": "q", "security_answer": "x",
	}
	if w := postJSON(t, router, "/auth/setup", body); w.Code != http.StatusNoContent {
		t.Fatalf("first setup = %d", w.Code)
	}
	if w := postJSON(t, router, "/auth/setup", body); w.Code != http.StatusConflict {
		t.Errorf("second setup = %d, want 409", w.Code)
	}
}

func TestChangePassword_RequiresSession(t *testing.T) {
	router := sessionEnv(t)

	postJSON(t, router, "/auth/setup", map[string]string{
		"password": "pw", "security_question": "q", "security_answer": "x",
	})

	// Without a token → 401.
	if w := postJSON(t, router, "/auth/password", map[string]string{"new_password": "pw2"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("change without session = %d, want 401", w.Code)
	}

	w := postJSON(t, router, "/auth/login", map[string]string{"password": "pw"})
	var login LoginResponse
	_ = json.Unmarshal(w.Body.Bytes(), &login)

	data, _ := json.Marshal(map[string]string{"new_password": "pw2"})
	req := httptest.NewRequest(http.MethodPost, "/auth/password", bytes.NewReader(data))
	req.Header.Set("Authorization", "Bearer "+login.Token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("change password = %d, body = %s", rec.Code, rec.Body.String())
	}

	if w := postJSON(t, router, "/auth/login", map[string]string{"password": "pw2"}); w.Code != http.StatusOK {
		t.Errorf("login with new password = %d, want 200", w.Code)
	}
}
