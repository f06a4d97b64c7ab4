package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/verdant/internal/cache"
	"github.com/example/verdant/internal/config"
	"github.com/example/verdant/internal/handlers"
	"github.com/example/verdant/internal/mail"
	"github.com/example/verdant/internal/metrics"
	"github.com/example/verdant/internal/middleware"
	"github.com/example/verdant/internal/services"
)

// Deps are the process-wide services the HTTP layer is built from.
type Deps struct {
	DB      *gorm.DB
	Config  *config.Config
	Log     *zap.Logger
	Mailer  mail.Mailer
	Cache   cache.Cache
	Metrics *metrics.Metrics

	// OTPOptions are passed to the OTP service, mostly to pin the clock and codes in tests.
	OTPOptions []services.OTPOption
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, d Deps) {
	cfg, db := d.Config, d.DB

	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	store := d.Cache
	if store == nil {
		store = cache.Nop{}
	}

	notifier := services.NewOrderNotifier(d.Mailer, cfg.ContactInbox, cfg.AppName)
	catalog := services.NewCatalogService(db, store, cfg.CacheTTL, log)
	cart := services.NewCartService(db, store, notifier, d.Metrics, log)
	otpOpts := append([]services.OTPOption{
		services.WithOTPMetrics(d.Metrics),
		services.WithAppName(cfg.AppName),
	}, d.OTPOptions...)
	otp := services.NewOTPService(db, d.Mailer, cfg.JWTSecret, log, otpOpts...)

	authHandler := handlers.NewAuthHandler(db, cfg, log)
	profileHandler := handlers.NewProfileHandler(db, cfg.MediaRoot)
	resetHandler := handlers.NewPasswordResetHandler(otp)
	productHandler := handlers.NewProductHandler(catalog)
	wishlistHandler := handlers.NewWishlistHandler(catalog)
	cartHandler := handlers.NewCartHandler(cart)
	orderHandler := handlers.NewOrderHandler(cart)
	communityHandler := handlers.NewCommunityHandler(db, cfg.MediaRoot)
	homeHandler := handlers.NewHomeHandler(db, handlers.HomeOptions{
		Mailer:    d.Mailer,
		Inbox:     cfg.ContactInbox,
		AppName:   cfg.AppName,
		MediaRoot: cfg.MediaRoot,
		Log:       log,
	})
	adminHandler := handlers.NewAdminHandler(db)

	auth := middleware.AuthMiddleware(cfg.JWTSecret)
	staff := middleware.StaffOnly(db)

	api := app.Group("/api")

	// Accounts
	api.Post("/register", authHandler.Register)
	api.Post("/token", authHandler.Login)
	api.Post("/token/refresh", authHandler.Refresh)

	api.Get("/profile", auth, profileHandler.GetProfile)
	api.Put("/update", auth, profileHandler.UpdateProfile)
	api.Post("/profile/image", auth, profileHandler.UploadImage)
	api.Put("/change_password", auth, profileHandler.ChangePassword)

	// Password reset
	otpLimit := otpLimiter(cfg.OTPRateLimit)
	api.Post("/get_otp", otpLimit, resetHandler.RequestOTP)
	api.Post("/verify_otp", otpLimit, resetHandler.VerifyOTP)
	api.Post("/reset_password", otpLimit, resetHandler.ResetPassword)

	// Catalog
	products := api.Group("/products")
	productHandler.RegisterProductRoutes(products, auth, staff)

	wishlist := api.Group("/wishlist", auth)
	wishlist.Get("/", wishlistHandler.List)
	wishlist.Post("/", wishlistHandler.Add)
	wishlist.Delete("/delete/:slug", wishlistHandler.Remove)

	// Cart and orders
	cartGroup := api.Group("/cart", auth)
	cartGroup.Get("/", cartHandler.ListCart)
	cartGroup.Post("/", cartHandler.AddToCart)
	cartGroup.Patch("/reduce-delete/:slug", cartHandler.ReduceOrRemove)
	cartGroup.Delete("/reduce-delete/:slug", cartHandler.RemoveFromCart)

	api.Post("/checkout", auth, cartHandler.Checkout)

	orders := api.Group("/orders", auth)
	orders.Get("/", orderHandler.ListOrders)
	orders.Get("/:id", orderHandler.GetOrder)
	orders.Patch("/:id/status", staff, orderHandler.UpdateStatus)

	// Community
	posts := api.Group("/posts")
	posts.Get("/", communityHandler.ListPosts)
	posts.Post("/", auth, communityHandler.CreatePost)
	posts.Get("/:id", communityHandler.GetPost)
	posts.Put("/:id", auth, communityHandler.UpdatePost)
	posts.Delete("/:id", auth, communityHandler.DeletePost)
	posts.Get("/:id/comments", communityHandler.ListPostComments)
	posts.Post("/:id/comments", auth, communityHandler.CreateComment)

	api.Get("/comments", communityHandler.ListComments)
	api.Delete("/comments/:id", auth, communityHandler.DeleteComment)

	// Home
	api.Get("/reviews", homeHandler.ListTestimonials)
	api.Post("/reviews", auth, homeHandler.CreateTestimonial)
	api.Post("/contact", homeHandler.Contact)

	// Admin
	admin := api.Group("/admin", auth, staff)
	admin.Get("/stats", adminHandler.DashboardStats)
	admin.Get("/orders", adminHandler.ListAllOrders)
	admin.Get("/orders/recent", adminHandler.RecentOrders)
	admin.Get("/users", adminHandler.ListAllUsers)
}

func otpLimiter(max int) fiber.Handler {
	if max <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusTooManyRequests, "Too many requests. Try again later.")
		},
	})
}
