package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/verdant/internal/cache"
	"github.com/example/verdant/internal/config"
	"github.com/example/verdant/internal/handlers"
	"github.com/example/verdant/internal/mail"
	"github.com/example/verdant/internal/models"
	"github.com/example/verdant/internal/routes"
	"github.com/example/verdant/internal/services"
	"github.com/example/verdant/internal/testutil"
	"github.com/example/verdant/internal/utils"
)

type fixedCode string

func (c fixedCode) Generate() (string, error) { return string(c), nil }

type server struct {
	app    *fiber.App
	db     *gorm.DB
	mailer *mail.Recorder
	cfg    *config.Config
}

func newServer(t *testing.T, tweak ...func(*config.Config)) *server {
	t.Helper()

	cfg := &config.Config{
		AppName:        "Verdant",
		JWTSecret:      "test-secret",
		TokenExpires:   time.Hour,
		RefreshExpires: 24 * time.Hour,
		ContactInbox:   "shop@example.com",
		MediaRoot:      t.TempDir(),
		CacheTTL:       time.Minute,
	}
	for _, fn := range tweak {
		fn(cfg)
	}

	s := &server{db: testutil.NewDB(t), mailer: &mail.Recorder{}, cfg: cfg}
	s.app = fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler(nil)})
	routes.Register(s.app, routes.Deps{
		DB:         s.db,
		Config:     cfg,
		Mailer:     s.mailer,
		Cache:      cache.NewMemory(),
		OTPOptions: []services.OTPOption{services.WithCodeSource(fixedCode("12345"))},
	})
	return s
}

func (s *server) token(t *testing.T, user models.User) string {
	t.Helper()
	tok, err := utils.GenerateToken(s.cfg.JWTSecret, user.ID, time.Hour)
	require.NoError(t, err)
	return tok
}

func (s *server) call(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func data(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	d, ok := body["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %v", body)
	return d
}

func TestRegisterLoginRefresh(t *testing.T) {
	s := newServer(t)

	registration := map[string]string{
		"first_name":       "Ada",
		"last_name":        "Fern",
		"email":            "Ada@Example.com",
		"password":         "correct-horse",
		"confirm_password": "correct-horse",
		"date_of_birth":    "1990-05-01",
		"gender":           "F",
		"phone":            "5551234",
	}

	status, body := s.call(t, http.MethodPost, "/api/register", "", registration)
	require.Equal(t, fiber.StatusCreated, status, body)
	assert.NotEmpty(t, body["access"])
	assert.NotEmpty(t, body["refresh"])
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "ada@example.com", user["email"])

	status, body = s.call(t, http.MethodPost, "/api/register", "", registration)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Email already exists", body["message"])

	mismatch := map[string]string{}
	for k, v := range registration {
		mismatch[k] = v
	}
	mismatch["email"] = "other@example.com"
	mismatch["confirm_password"] = "something-else"
	status, body = s.call(t, http.MethodPost, "/api/register", "", mismatch)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Passwords do not match", body["message"])

	status, _ = s.call(t, http.MethodPost, "/api/token", "", map[string]string{
		"email": "ada@example.com", "password": "wrong-password",
	})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, body = s.call(t, http.MethodPost, "/api/token", "", map[string]string{
		"email": "ada@example.com", "password": "correct-horse",
	})
	require.Equal(t, fiber.StatusOK, status, body)
	access, refresh := body["access"].(string), body["refresh"].(string)

	status, body = s.call(t, http.MethodPost, "/api/token/refresh", "", map[string]string{"refresh": refresh})
	assert.Equal(t, fiber.StatusOK, status)
	assert.NotEmpty(t, body["access"])

	status, _ = s.call(t, http.MethodPost, "/api/token/refresh", "", map[string]string{"refresh": access})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, body = s.call(t, http.MethodGet, "/api/profile", access, nil)
	require.Equal(t, fiber.StatusOK, status)
	profile := data(t, body)["profile"].(map[string]interface{})
	assert.Equal(t, "1990-05-01", profile["date_of_birth"])
}

func TestChangePassword(t *testing.T) {
	s := newServer(t)
	user := testutil.CreateUser(t, s.db, "grower@example.com", false)
	tok := s.token(t, user)

	status, body := s.call(t, http.MethodPut, "/api/change_password", tok, map[string]string{
		"old_password": "not-my-password", "new_password": "brand-new-pass",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Old password is incorrect.", body["message"])

	status, _ = s.call(t, http.MethodPut, "/api/change_password", tok, map[string]string{
		"old_password": testutil.Password, "new_password": "brand-new-pass",
	})
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = s.call(t, http.MethodPost, "/api/token", "", map[string]string{
		"email": user.Email, "password": "brand-new-pass",
	})
	assert.Equal(t, fiber.StatusOK, status)
}

func TestPasswordResetFlow(t *testing.T) {
	s := newServer(t)
	user := testutil.CreateUser(t, s.db, "forgetful@example.com", false)

	status, _ := s.call(t, http.MethodPost, "/api/get_otp", "", map[string]string{"email": "nobody@example.com"})
	assert.Equal(t, fiber.StatusNotFound, status)

	status, body := s.call(t, http.MethodPost, "/api/get_otp", "", map[string]string{"email": user.Email})
	require.Equal(t, fiber.StatusOK, status, body)
	msg, ok := s.mailer.Last()
	require.True(t, ok)
	assert.Equal(t, []string{user.Email}, msg.To)
	assert.Contains(t, msg.Body, "12345")

	status, body = s.call(t, http.MethodPost, "/api/verify_otp", "", map[string]string{"email": user.Email, "otp": "00000"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Invalid OTP.", body["message"])

	status, body = s.call(t, http.MethodPost, "/api/verify_otp", "", map[string]string{"email": user.Email, "otp": "12345"})
	require.Equal(t, fiber.StatusOK, status, body)
	resetToken := body["reset_token"].(string)
	require.NotEmpty(t, resetToken)

	status, _ = s.call(t, http.MethodPost, "/api/verify_otp", "", map[string]string{"email": user.Email, "otp": "12345"})
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = s.call(t, http.MethodPost, "/api/reset_password", "", map[string]string{
		"email": user.Email, "new_password": "fresh-start-1", "reset_token": "forged",
	})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = s.call(t, http.MethodPost, "/api/reset_password", "", map[string]string{
		"email": user.Email, "new_password": "fresh-start-1", "reset_token": resetToken,
	})
	require.Equal(t, fiber.StatusOK, status)

	status, _ = s.call(t, http.MethodPost, "/api/token", "", map[string]string{
		"email": user.Email, "password": "fresh-start-1",
	})
	assert.Equal(t, fiber.StatusOK, status)
}

func TestChangePasswordRevokesResetToken(t *testing.T) {
	s := newServer(t)
	user := testutil.CreateUser(t, s.db, "cautious@example.com", false)

	status, body := s.call(t, http.MethodPost, "/api/get_otp", "", map[string]string{"email": user.Email})
	require.Equal(t, fiber.StatusOK, status, body)
	status, body = s.call(t, http.MethodPost, "/api/verify_otp", "", map[string]string{"email": user.Email, "otp": "12345"})
	require.Equal(t, fiber.StatusOK, status, body)
	resetToken := body["reset_token"].(string)

	status, _ = s.call(t, http.MethodPut, "/api/change_password", s.token(t, user), map[string]string{
		"old_password": testutil.Password, "new_password": "changed-by-owner",
	})
	require.Equal(t, fiber.StatusOK, status)

	status, _ = s.call(t, http.MethodPost, "/api/reset_password", "", map[string]string{
		"email": user.Email, "new_password": "taken-over-pass", "reset_token": resetToken,
	})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = s.call(t, http.MethodPost, "/api/token", "", map[string]string{
		"email": user.Email, "password": "changed-by-owner",
	})
	assert.Equal(t, fiber.StatusOK, status)
}

func TestHandlersQueryWithRequestContext(t *testing.T) {
	db := testutil.NewDB(t)
	community := handlers.NewCommunityHandler(db, t.TempDir())

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler(nil)})
	app.Use(func(c *fiber.Ctx) error {
		if c.Get("X-Cancel") != "" {
			ctx, cancel := context.WithCancel(c.UserContext())
			cancel()
			c.SetUserContext(ctx)
		}
		return c.Next()
	})
	app.Get("/posts", community.ListPosts)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/posts", nil), -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/posts", nil)
	req.Header.Set("X-Cancel", "1")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestOTPEndpointsAreRateLimited(t *testing.T) {
	s := newServer(t, func(cfg *config.Config) { cfg.OTPRateLimit = 2 })

	for i := 0; i < 2; i++ {
		status, _ := s.call(t, http.MethodPost, "/api/get_otp", "", map[string]string{"email": "nobody@example.com"})
		assert.Equal(t, fiber.StatusNotFound, status)
	}

	status, body := s.call(t, http.MethodPost, "/api/get_otp", "", map[string]string{"email": "nobody@example.com"})
	assert.Equal(t, fiber.StatusTooManyRequests, status)
	assert.Equal(t, "TOO_MANY_REQUESTS", body["error"])
}

func TestCartAndCheckout(t *testing.T) {
	s := newServer(t)
	user := testutil.CreateUser(t, s.db, "buyer@example.com", false)
	product := testutil.CreateProduct(t, s.db, "Monstera", "monstera", "1250.00", 5)
	tok := s.token(t, user)

	status, _ := s.call(t, http.MethodGet, "/api/cart", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, body := s.call(t, http.MethodPost, "/api/cart", tok, map[string]string{"product_slug": "monstera"})
	require.Equal(t, fiber.StatusCreated, status, body)
	assert.Equal(t, "Item added to cart.", body["message"])

	status, body = s.call(t, http.MethodPost, "/api/cart", tok, map[string]string{"product_slug": "monstera"})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "Quantity updated.", body["message"])

	status, body = s.call(t, http.MethodGet, "/api/cart", tok, nil)
	require.Equal(t, fiber.StatusOK, status)
	total := decimal.RequireFromString(data(t, body)["total"].(string))
	assert.True(t, total.Equal(decimal.NewFromInt(2500)), total.String())

	status, body = s.call(t, http.MethodPost, "/api/checkout", tok, map[string]string{"phone": "5551234"})
	assert.Equal(t, fiber.StatusBadRequest, status, body)

	status, body = s.call(t, http.MethodPost, "/api/checkout", tok, map[string]string{
		"phone": "5551234", "email": "buyer@example.com", "address": "1 Greenhouse Lane",
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	order := data(t, body)
	assert.Equal(t, string(models.OrderStatusPending), order["status"])

	var reloaded models.Product
	require.NoError(t, s.db.First(&reloaded, "id = ?", product.ID).Error)
	assert.Equal(t, 3, reloaded.Quantity)

	status, body = s.call(t, http.MethodGet, "/api/cart", tok, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, data(t, body)["items"])

	status, body = s.call(t, http.MethodPost, "/api/checkout", tok, map[string]string{
		"phone": "5551234", "email": "buyer@example.com", "address": "1 Greenhouse Lane",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Cart is empty", body["message"])

	status, body = s.call(t, http.MethodGet, "/api/orders", tok, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["data"], 1)
}

func TestOrderStatusRequiresStaff(t *testing.T) {
	s := newServer(t)
	user := testutil.CreateUser(t, s.db, "buyer@example.com", false)
	staff := testutil.CreateUser(t, s.db, "staff@example.com", true)
	product := testutil.CreateProduct(t, s.db, "Fern", "fern", "10.00", 4)
	testutil.AddToCart(t, s.db, user.ID, product, 1)

	status, body := s.call(t, http.MethodPost, "/api/checkout", s.token(t, user), map[string]string{
		"phone": "5551234", "email": "buyer@example.com", "address": "1 Greenhouse Lane",
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	path := "/api/orders/" + data(t, body)["id"].(string) + "/status"

	status, _ = s.call(t, http.MethodPatch, path, s.token(t, user), map[string]string{"status": "Confirmed"})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body = s.call(t, http.MethodPatch, path, s.token(t, staff), map[string]string{"status": "Confirmed"})
	require.Equal(t, fiber.StatusOK, status, body)

	status, body = s.call(t, http.MethodGet, "/api/admin/stats", s.token(t, staff), nil)
	require.Equal(t, fiber.StatusOK, status, body)
	stats := data(t, body)
	assert.EqualValues(t, 2, stats["total_users"])
	assert.EqualValues(t, 1, stats["total_orders"])
	revenue := decimal.RequireFromString(stats["total_revenue"].(string))
	assert.True(t, revenue.Equal(decimal.NewFromInt(10)), revenue.String())

	status, _ = s.call(t, http.MethodGet, "/api/admin/stats", s.token(t, user), nil)
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestProductWritesRequireStaff(t *testing.T) {
	s := newServer(t)
	customer := testutil.CreateUser(t, s.db, "customer@example.com", false)
	staff := testutil.CreateUser(t, s.db, "staff@example.com", true)

	input := map[string]interface{}{
		"name":     "Snake Plant",
		"price":    "19.99",
		"quantity": 12,
		"category": models.CategoryPlants,
	}

	status, _ := s.call(t, http.MethodPost, "/api/products", "", input)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = s.call(t, http.MethodPost, "/api/products", s.token(t, customer), input)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body := s.call(t, http.MethodPost, "/api/products", s.token(t, staff), input)
	require.Equal(t, fiber.StatusCreated, status, body)
	assert.Equal(t, "snake-plant", data(t, body)["slug"])

	status, body = s.call(t, http.MethodGet, "/api/products?category=Plants", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["data"], 1)

	status, _ = s.call(t, http.MethodGet, "/api/products?minPrice=cheap", "", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestRateProduct(t *testing.T) {
	s := newServer(t)
	user := testutil.CreateUser(t, s.db, "critic@example.com", false)
	testutil.CreateProduct(t, s.db, "Cactus", "cactus", "5.00", 3)
	tok := s.token(t, user)

	status, body := s.call(t, http.MethodPost, "/api/products/cactus/rate", tok, map[string]float64{"rating": 4})
	require.Equal(t, fiber.StatusCreated, status, body)
	assert.EqualValues(t, 4, data(t, body)["product_rating"])

	status, body = s.call(t, http.MethodPost, "/api/products/cactus/rate", tok, map[string]float64{"rating": 2})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "You have already reviewed this product.", body["message"])

	status, _ = s.call(t, http.MethodPost, "/api/products/cactus/rate", tok, map[string]interface{}{})
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestWishlistRoutes(t *testing.T) {
	s := newServer(t)
	user := testutil.CreateUser(t, s.db, "dreamer@example.com", false)
	testutil.CreateProduct(t, s.db, "Orchid", "orchid", "30.00", 2)
	tok := s.token(t, user)

	status, body := s.call(t, http.MethodPost, "/api/wishlist", tok, map[string]string{"product_slug": "orchid"})
	require.Equal(t, fiber.StatusCreated, status, body)

	status, body = s.call(t, http.MethodGet, "/api/wishlist", tok, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["data"], 1)

	status, _ = s.call(t, http.MethodDelete, "/api/wishlist/delete/orchid", tok, nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = s.call(t, http.MethodDelete, "/api/wishlist/delete/orchid", tok, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestPostsOwnerOrStaff(t *testing.T) {
	s := newServer(t)
	owner := testutil.CreateUser(t, s.db, "owner@example.com", false)
	other := testutil.CreateUser(t, s.db, "other@example.com", false)
	staff := testutil.CreateUser(t, s.db, "staff@example.com", true)

	status, _ := s.call(t, http.MethodPost, "/api/posts", s.token(t, owner), map[string]string{"post_name": "Repotting"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body := s.call(t, http.MethodPost, "/api/posts", s.token(t, owner), map[string]string{
		"post_name": "Repotting", "content": "Spring is the time.",
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	postPath := "/api/posts/" + data(t, body)["id"].(string)

	status, _ = s.call(t, http.MethodPut, postPath, s.token(t, other), map[string]string{"content": "mine now"})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body = s.call(t, http.MethodPut, postPath, s.token(t, staff), map[string]string{"content": "Edited by staff."})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "Edited by staff.", data(t, body)["content"])

	status, body = s.call(t, http.MethodPost, postPath+"/comments", s.token(t, other), map[string]string{"comment": "Great tip"})
	require.Equal(t, fiber.StatusCreated, status, body)
	commentPath := "/api/comments/" + data(t, body)["id"].(string)

	status, body = s.call(t, http.MethodGet, postPath, "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, data(t, body)["comments"], 1)

	status, _ = s.call(t, http.MethodDelete, commentPath, s.token(t, owner), nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = s.call(t, http.MethodDelete, commentPath, s.token(t, other), nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = s.call(t, http.MethodPost, "/api/posts/00000000-0000-0000-0000-000000000001/comments",
		s.token(t, other), map[string]string{"comment": "Hello?"})
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = s.call(t, http.MethodDelete, postPath, s.token(t, owner), nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = s.call(t, http.MethodGet, postPath, "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestTestimonials(t *testing.T) {
	s := newServer(t)
	user := testutil.CreateUser(t, s.db, "fan@example.com", false)

	status, _ := s.call(t, http.MethodPost, "/api/reviews", "", map[string]string{"review": "Lovely plants"})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, body := s.call(t, http.MethodPost, "/api/reviews", s.token(t, user), map[string]string{"review": "Lovely plants"})
	require.Equal(t, fiber.StatusCreated, status, body)

	status, body = s.call(t, http.MethodGet, "/api/reviews", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["data"], 1)
}

func TestContact(t *testing.T) {
	s := newServer(t)
	form := map[string]string{
		"name":    "Jo",
		"email":   "jo@example.com",
		"message": "Do you ship cacti?",
	}

	status, body := s.call(t, http.MethodPost, "/api/contact", "", form)
	require.Equal(t, fiber.StatusCreated, status, body)
	msg, ok := s.mailer.Last()
	require.True(t, ok)
	assert.Equal(t, []string{"shop@example.com"}, msg.To)
	assert.Equal(t, "jo@example.com", msg.ReplyTo)
	assert.Contains(t, msg.Body, "Do you ship cacti?")

	s.mailer.Err = errors.New("relay down")
	status, body = s.call(t, http.MethodPost, "/api/contact", "", form)
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, false, body["success"])

	var stored int64
	require.NoError(t, s.db.Model(&models.ContactMessage{}).Count(&stored).Error)
	assert.EqualValues(t, 2, stored)
}

func TestErrorResponseShape(t *testing.T) {
	s := newServer(t)

	status, body := s.call(t, http.MethodGet, "/api/products/does-not-exist", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "NOT_FOUND", body["error"])
	assert.NotEmpty(t, body["message"])

	status, body = s.call(t, http.MethodGet, "/api/nowhere", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body["error"])

	status, body = s.call(t, http.MethodPost, "/api/token", "", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", body["error"])
}
