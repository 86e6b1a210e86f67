package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/amq10717-bit/SkillUp-sub001/internal/config"
	"github.com/amq10717-bit/SkillUp-sub001/internal/directory"
	"github.com/amq10717-bit/SkillUp-sub001/internal/logger"
	"github.com/amq10717-bit/SkillUp-sub001/internal/models"
	"github.com/amq10717-bit/SkillUp-sub001/internal/store/memstore"
	"github.com/amq10717-bit/SkillUp-sub001/internal/users"
)

const testSecret = "test-secret"

func testToken(t *testing.T, userID, role string) string {
	t.Helper()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func testServer(t *testing.T) (*Server, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	cfg := &config.Config{}
	cfg.JWT.Secret = testSecret
	cfg.Cloudinary.CloudName = "demo"
	cfg.Cloudinary.APIKey = "key123"
	cfg.Cloudinary.APISecret = "shhh"
	cfg.Cloudinary.Folder = "assignments"

	res := users.NewResolver(st, logger.Nop())
	eng := directory.NewEngine(st, res, st, nil, logger.Nop())
	return NewServer(cfg, st, eng, res, nil, logger.Nop()), st
}

func doJSON(t *testing.T, s *Server, method, path, token string, body any) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.App().Test(req, 5000)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func TestSignatureEndpoint(t *testing.T) {
	s, _ := testServer(t)
	token := testToken(t, "u1", "student")

	resp := doJSON(t, s, http.MethodGet, "/api/cloudinary-signature?folder=chat_media/c1", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		Timestamp int64  `json:"timestamp"`
		Signature string `json:"signature"`
		APIKey    string `json:"apiKey"`
		CloudName string `json:"cloudName"`
		Folder    string `json:"folder"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Folder != "chat_media/c1" || body.CloudName != "demo" || body.APIKey != "key123" {
		t.Fatalf("credential mismatch: %+v", body)
	}

	// the signature must be reproducible from the response fields
	want := SignParams(map[string]string{
		"folder":    body.Folder,
		"timestamp": strconv.FormatInt(body.Timestamp, 10),
	}, "shhh")
	if body.Signature != want {
		t.Fatalf("signature = %q, want %q", body.Signature, want)
	}
}

func TestSignatureEndpointDefaultsFolder(t *testing.T) {
	s, _ := testServer(t)
	resp := doJSON(t, s, http.MethodGet, "/api/cloudinary-signature", testToken(t, "u1", ""), nil)
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["folder"] != "assignments" {
		t.Fatalf("folder = %v, want configured default", body["folder"])
	}
}

func TestAPIRequiresAuth(t *testing.T) {
	s, _ := testServer(t)
	resp := doJSON(t, s, http.MethodGet, "/api/cloudinary-signature", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d", resp.StatusCode)
	}
	resp = doJSON(t, s, http.MethodGet, "/api/cloudinary-signature", "not-a-token", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("garbage token status = %d", resp.StatusCode)
	}
}

func TestCreatePrivateChatEndpoint(t *testing.T) {
	s, st := testServer(t)
	st.PutProfile(models.Profile{ID: "u2", DisplayName: "Bob"})

	resp := doJSON(t, s, http.MethodPost, "/api/chats/private", testToken(t, "u1", ""), map[string]string{"other_id": "u2"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var view directory.ChatView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Kind != models.ChatPrivate || !view.HasParticipant("u2") {
		t.Fatalf("chat view mismatch: %+v", view)
	}
}

func TestCreateGroupChatEndpointForbiddenForStudents(t *testing.T) {
	s, st := testServer(t)
	st.PutProfile(models.Profile{ID: "u1", DisplayName: "Stu", Role: "student"})

	resp := doJSON(t, s, http.MethodPost, "/api/chats/group", testToken(t, "u1", "student"), map[string]any{
		"name": "Go 101", "members": []string{"u2"},
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

func TestLifecycleEndpoints(t *testing.T) {
	s, st := testServer(t)
	ctx := context.Background()
	chat := &models.Chat{Kind: models.ChatPrivate, Participants: []string{"u1", "u2"}}
	if _, err := st.CreateChat(ctx, chat); err != nil {
		t.Fatalf("CreateChat: %v", err)
	}
	token := testToken(t, "u1", "")

	resp := doJSON(t, s, http.MethodPost, "/api/chats/private/"+chat.ID+"/pin", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pin status = %d", resp.StatusCode)
	}
	c, _ := st.GetChat(ctx, models.ChatPrivate, chat.ID)
	if !c.IsPinned {
		t.Fatalf("pin not applied")
	}

	resp = doJSON(t, s, http.MethodDelete, "/api/chats/private/"+chat.ID, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	if _, err := st.GetChat(ctx, models.ChatPrivate, chat.ID); err == nil {
		t.Fatalf("chat survived delete")
	}

	resp = doJSON(t, s, http.MethodPost, "/api/chats/broadcast/x/pin", token, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad kind status = %d", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	s, _ := testServer(t)
	resp := doJSON(t, s, http.MethodGet, "/healthz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
}

func TestSignParamsDeterministic(t *testing.T) {
	p := map[string]string{"timestamp": "1700000000", "folder": "chat_media/c1"}
	a := SignParams(p, "secret")
	b := SignParams(p, "secret")
	if a != b {
		t.Fatalf("signature not deterministic")
	}
	if a == SignParams(p, "other") {
		t.Fatalf("secret does not affect signature")
	}
	// ordering of map insertion must not matter
	q := map[string]string{"folder": "chat_media/c1", "timestamp": "1700000000"}
	if a != SignParams(q, "secret") {
		t.Fatalf("signature depends on insertion order")
	}
}
