package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/youssef-george/Everlast-Intranet-Mobile-App-sub001/internal/chat"
	"github.com/youssef-george/Everlast-Intranet-Mobile-App-sub001/internal/config"
	appdb "github.com/youssef-george/Everlast-Intranet-Mobile-App-sub001/internal/db"
	"github.com/youssef-george/Everlast-Intranet-Mobile-App-sub001/internal/ws"
)

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := gdb.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := appdb.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Config{
		Port:                  "8080",
		JWTSecret:             "test-secret",
		Env:                   "dev",
		AccessTokenTTLMinutes: 15,
		RefreshTokenTTLDays:   7,
	}
	engine := chat.NewEngine(gdb, ws.NewRegistry())
	return SetupRouter(cfg, gdb, engine)
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return m
}

func registerAndLogin(t *testing.T, r *gin.Engine, username string) string {
	t.Helper()
	creds := map[string]string{"username": username, "password": "password123"}
	if w := doJSON(t, r, "POST", "/api/v1/auth/register", "", creds); w.Code != http.StatusOK {
		t.Fatalf("register %s: status %d: %s", username, w.Code, w.Body.String())
	}
	w := doJSON(t, r, "POST", "/api/v1/auth/login", "", creds)
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: status %d: %s", username, w.Code, w.Body.String())
	}
	token, _ := decode(t, w)["access_token"].(string)
	if token == "" {
		t.Fatal("login response missing access_token")
	}
	return token
}

func TestHealthz(t *testing.T) {
	r := testRouter(t)
	w := doJSON(t, r, "GET", "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", w.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	r := testRouter(t)
	for _, path := range []string{"/api/v1/conversations", "/api/v1/notifications", "/api/v1/chats/1/messages"} {
		w := doJSON(t, r, "GET", path, "", nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("GET %s without token: status = %d, want 401", path, w.Code)
		}
	}
	w := doJSON(t, r, "GET", "/api/v1/conversations", "not-a-jwt", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("garbage token: status = %d, want 401", w.Code)
	}
}

func TestRegister_Validation(t *testing.T) {
	r := testRouter(t)

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"ok", map[string]string{"username": "alice", "password": "secret1"}, http.StatusOK},
		{"duplicate", map[string]string{"username": "alice", "password": "secret1"}, http.StatusConflict},
		{"empty username", map[string]string{"username": "", "password": "secret1"}, http.StatusBadRequest},
		{"short username", map[string]string{"username": "a", "password": "secret1"}, http.StatusBadRequest},
		{"short password", map[string]string{"username": "bob", "password": "abc"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, "POST", "/api/v1/auth/register", "", tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	r := testRouter(t)
	registerAndLogin(t, r, "alice")

	w := doJSON(t, r, "POST", "/api/v1/auth/login", "", map[string]string{"username": "alice", "password": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: status = %d, want 401", w.Code)
	}
	w = doJSON(t, r, "POST", "/api/v1/auth/login", "", map[string]string{"username": "nobody", "password": "x"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unknown user: status = %d, want 401", w.Code)
	}
}

func TestRefreshToken_Rotation(t *testing.T) {
	r := testRouter(t)
	creds := map[string]string{"username": "alice", "password": "password123"}
	doJSON(t, r, "POST", "/api/v1/auth/register", "", creds)
	login := decode(t, doJSON(t, r, "POST", "/api/v1/auth/login", "", creds))
	rt, _ := login["refresh_token"].(string)
	if rt == "" {
		t.Fatal("login response missing refresh_token")
	}

	w := doJSON(t, r, "POST", "/api/v1/auth/refresh", "", map[string]string{"refresh_token": rt})
	if w.Code != http.StatusOK {
		t.Fatalf("refresh: status = %d: %s", w.Code, w.Body.String())
	}
	fresh := decode(t, w)
	if fresh["refresh_token"] == rt {
		t.Error("refresh should rotate the refresh token")
	}

	// Old token is revoked after rotation.
	w = doJSON(t, r, "POST", "/api/v1/auth/refresh", "", map[string]string{"refresh_token": rt})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("reused refresh token: status = %d, want 401", w.Code)
	}
}

func TestAuthedFlow(t *testing.T) {
	r := testRouter(t)
	token := registerAndLogin(t, r, "alice")

	w := doJSON(t, r, "GET", "/api/v1/conversations", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("conversations: status = %d: %s", w.Code, w.Body.String())
	}
	if _, ok := decode(t, w)["conversations"]; !ok {
		t.Error("response missing conversations field")
	}

	w = doJSON(t, r, "POST", "/api/v1/groups", token, map[string]interface{}{"name": "eng"})
	if w.Code != http.StatusOK {
		t.Fatalf("create group: status = %d: %s", w.Code, w.Body.String())
	}
	groupID := decode(t, w)["id"].(float64)

	w = doJSON(t, r, "GET", fmt.Sprintf("/api/v1/groups/%d/messages", int(groupID)), token, nil)
	if w.Code != http.StatusOK {
		t.Errorf("group history: status = %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, "GET", "/api/v1/notifications", token, nil)
	if w.Code != http.StatusOK {
		t.Errorf("notifications: status = %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, "POST", "/api/v1/notifications/999/read", token, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("absent notification: status = %d, want 404", w.Code)
	}

	w = doJSON(t, r, "GET", "/api/v1/chats/abc/messages", token, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad path id: status = %d, want 400", w.Code)
	}
}
