// Package httpapi is the service's outer surface: REST routes for
// credentials, chat management and lifecycle actions, plus the
// websocket channel that streams live directory and message snapshots.
package httpapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/amq10717-bit/SkillUp-sub001/internal/apperr"
	"github.com/amq10717-bit/SkillUp-sub001/internal/config"
	"github.com/amq10717-bit/SkillUp-sub001/internal/directory"
	"github.com/amq10717-bit/SkillUp-sub001/internal/events"
	"github.com/amq10717-bit/SkillUp-sub001/internal/lifecycle"
	"github.com/amq10717-bit/SkillUp-sub001/internal/models"
	"github.com/amq10717-bit/SkillUp-sub001/internal/store"
	"github.com/amq10717-bit/SkillUp-sub001/internal/upload"
	"github.com/amq10717-bit/SkillUp-sub001/internal/users"
)

type Server struct {
	app      *fiber.App
	cfg      *config.Config
	log      *zap.SugaredLogger
	store    store.Store
	engine   *directory.Engine
	resolver *users.Resolver
	events   *events.Producer
	signer   *Signer

	pipeline *upload.Pipeline // optional server-side upload path

	http        *http.Client
	destroyBase string
}

// WithPipeline enables the server-side upload route, used when the
// deployment fronts an S3 bucket instead of handing out signed
// credentials for direct uploads.
func (s *Server) WithPipeline(p *upload.Pipeline) *Server {
	s.pipeline = p
	return s
}

func NewServer(cfg *config.Config, st store.Store, eng *directory.Engine, res *users.Resolver, ev *events.Producer, log *zap.SugaredLogger) *Server {
	s := &Server{
		app:      fiber.New(fiber.Config{DisableStartupMessage: true}),
		cfg:      cfg,
		log:      log,
		store:    st,
		engine:   eng,
		resolver: res,
		events:   ev,
		signer: &Signer{
			CloudName:     cfg.Cloudinary.CloudName,
			APIKey:        cfg.Cloudinary.APIKey,
			APISecret:     cfg.Cloudinary.APISecret,
			DefaultFolder: cfg.Cloudinary.Folder,
		},
		http:        &http.Client{Timeout: 30 * time.Second},
		destroyBase: "https://api.cloudinary.com/v1_1",
	}
	s.routes()
	return s
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Listen(addr string) error { return s.app.Listen(addr) }

func (s *Server) Shutdown() error { return s.app.Shutdown() }

func (s *Server) routes() {
	s.app.Use(recover.New())

	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := s.app.Group("/api", RequireAuth(s.cfg.JWT.Secret))
	api.Get("/cloudinary-signature", s.handleSignature)
	api.Post("/delete-cloudinary", s.handleDeleteAsset)
	api.Get("/users", s.handleListUsers)
	api.Post("/chats/private", s.handleCreatePrivate)
	api.Post("/chats/group", s.handleCreateGroup)
	api.Get("/chats/:kind/:id/messages", s.handleListMessages)
	api.Post("/upload", s.handleUpload)
	api.Post("/chats/:kind/:id/pin", s.lifecycleHandler((*lifecycle.Manager).Pin))
	api.Post("/chats/:kind/:id/unpin", s.lifecycleHandler((*lifecycle.Manager).Unpin))
	api.Post("/chats/:kind/:id/archive", s.lifecycleHandler((*lifecycle.Manager).Archive))
	api.Post("/chats/:kind/:id/unarchive", s.lifecycleHandler((*lifecycle.Manager).Unarchive))
	api.Post("/chats/:kind/:id/clear", s.lifecycleHandler((*lifecycle.Manager).ClearHistory))
	api.Delete("/chats/:kind/:id", s.lifecycleHandler((*lifecycle.Manager).Delete))

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws/directory", websocket.New(s.serveWS))
}

// handleSignature issues a folder-scoped upload credential. The folder
// falls back to the configured default, matching what the signature
// covers.
func (s *Server) handleSignature(c *fiber.Ctx) error {
	folder := c.Query("folder")
	cred := s.signer.Credential(folder)
	signatureRequests.Inc()
	return c.JSON(fiber.Map{
		"timestamp": cred.Timestamp,
		"signature": cred.Signature,
		"apiKey":    cred.APIKey,
		"cloudName": cred.CloudName,
		"folder":    cred.Folder,
	})
}

// handleDeleteAsset signs and forwards a blob-store destroy call so
// the API secret never reaches clients.
func (s *Server) handleDeleteAsset(c *fiber.Ctx) error {
	var req struct {
		PublicID     string `json:"public_id"`
		ResourceType string `json:"resource_type"`
	}
	if err := c.BodyParser(&req); err != nil || req.PublicID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing public_id"})
	}
	if req.ResourceType == "" {
		req.ResourceType = "image"
	}

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig := SignParams(map[string]string{
		"public_id": req.PublicID,
		"timestamp": ts,
	}, s.signer.APISecret)

	form := url.Values{}
	form.Set("public_id", req.PublicID)
	form.Set("timestamp", ts)
	form.Set("api_key", s.signer.APIKey)
	form.Set("signature", sig)

	endpoint := fmt.Sprintf("%s/%s/%s/destroy", s.destroyBase, s.signer.CloudName, req.ResourceType)
	resp, err := s.http.PostForm(endpoint, form)
	if err != nil {
		s.log.Warnw("asset destroy failed", "public_id", req.PublicID, "err", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "blob store unreachable"})
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "blob store rejected destroy"})
	}
	return c.JSON(fiber.Map{"result": "ok"})
}

func (s *Server) handleListUsers(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	list := s.resolver.ListUsers(c.Context(), userID)
	out := make([]fiber.Map, 0, len(list))
	for _, p := range list {
		out = append(out, fiber.Map{
			"id":           p.ID,
			"display_name": p.DisplayName,
			"email":        p.Email,
			"role":         p.Role,
			"avatar_url":   p.AvatarURL,
			"avatar_color": users.AvatarColorFor(p),
		})
	}
	return c.JSON(out)
}

func (s *Server) handleCreatePrivate(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	var req struct {
		OtherID string `json:"other_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed body"})
	}
	view, err := s.engine.CreateOrFindPrivateChat(c.Context(), userID, req.OtherID)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(view)
}

func (s *Server) handleCreateGroup(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	var req struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		CourseID    string   `json:"course_id"`
		Members     []string `json:"members"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed body"})
	}
	owner := s.resolver.Resolve(c.Context(), userID)
	view, err := s.engine.CreateGroupChat(c.Context(), owner, req.Name, req.Description, req.CourseID, req.Members)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(view)
}

// handleUpload is the server-side upload path. The default deployment
// returns 503 here: clients upload straight to the blob store with a
// signed credential and bytes never transit this service.
func (s *Server) handleUpload(c *fiber.Ctx) error {
	if s.pipeline == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "server-side uploads not enabled"})
	}
	chatID := c.FormValue("chat_id")
	if chatID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing chat_id"})
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing file"})
	}
	src, err := fh.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unreadable file"})
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unreadable file"})
	}

	f := upload.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}
	res, err := s.pipeline.Upload(c.Context(), f, chatID, upload.Category(c.FormValue("category")))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(res)
}

func (s *Server) handleListMessages(c *fiber.Ctx) error {
	kind, err := parseKind(c.Params("kind"))
	if err != nil {
		return s.fail(c, err)
	}
	msgs, err := s.store.ListMessages(c.Context(), kind, c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(msgs)
}

// lifecycleHandler adapts one manager operation into a route. REST
// callers confirm client-side, so the manager runs ungated with the
// caller as actor.
func (s *Server) lifecycleHandler(op func(*lifecycle.Manager, context.Context, models.ChatKind, string) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		kind, err := parseKind(c.Params("kind"))
		if err != nil {
			return s.fail(c, err)
		}
		userID, _ := c.Locals("user_id").(string)
		mgr := lifecycle.NewManager(s.store, nil, s.events, lifecycle.ConfirmAll, userID, s.log)
		if err := op(mgr, c.Context(), kind, c.Params("id")); err != nil {
			return s.fail(c, err)
		}
		return c.JSON(fiber.Map{"result": "ok"})
	}
}

func (s *Server) fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case apperr.IsValidation(err):
		status = fiber.StatusBadRequest
	case apperr.IsAuth(err):
		status = fiber.StatusUnauthorized
	case apperr.IsPermission(err):
		status = fiber.StatusForbidden
	case apperr.IsNotFound(err):
		status = fiber.StatusNotFound
	case apperr.IsNetwork(err):
		status = fiber.StatusBadGateway
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func parseKind(s string) (models.ChatKind, error) {
	switch strings.ToLower(s) {
	case string(models.ChatPrivate):
		return models.ChatPrivate, nil
	case string(models.ChatGroup):
		return models.ChatGroup, nil
	}
	return "", apperr.Newf(apperr.KindValidation, "unknown chat kind %q", s)
}
