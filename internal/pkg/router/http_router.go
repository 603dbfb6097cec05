package router

import (
	"log"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tablecarte/tablecarte/app/controllers"
	"github.com/tablecarte/tablecarte/app/repository"
	"github.com/tablecarte/tablecarte/internal/pkg/billing"
	"github.com/tablecarte/tablecarte/internal/pkg/cache"
	"github.com/tablecarte/tablecarte/internal/pkg/database"
	"github.com/tablecarte/tablecarte/internal/pkg/env"
	"github.com/tablecarte/tablecarte/internal/pkg/middleware"
	"github.com/tablecarte/tablecarte/internal/pkg/oauth"
	"github.com/tablecarte/tablecarte/internal/pkg/session"
	"github.com/tablecarte/tablecarte/internal/pkg/storage"
)

// Checkout sessions start with a 30 day trial.
const checkoutTrialDays = 30

type HttpRouter struct {
}

// dependencies bundles everything the HTTP and API routers share. Built once;
// all provider and storage boundaries are constructed here and injected down.
type dependencies struct {
	repos      *repository.Repositories
	reader     billing.StatusReader
	gateCfg    middleware.GateConfig
	billingCtl *controllers.BillingController
	menuCtl    *controllers.MenuController
	imageCtl   *controllers.ItemImageController
	qrCtl      *controllers.QRController
	publicCtl  *controllers.PublicMenuController
	userCtl    *controllers.UserController
}

var (
	deps     *dependencies
	depsOnce sync.Once
)

func getDependencies() *dependencies {
	depsOnce.Do(buildDependencies)
	return deps
}

func buildDependencies() {
	db := database.GetDB()
	repos := repository.NewRepositories(db)

	billingRepo := billing.NewRepository(db)
	billingSvc := billing.NewService(billingRepo)

	provider, err := billing.NewStripeClient(env.GetEnv("STRIPE_SECRET_KEY", ""))
	if err != nil {
		log.Printf("[router] stripe client not configured: %v", err)
	}

	ttl := 30 * time.Second
	if raw := env.GetEnv("BILLING_STATUS_CACHE_TTL", ""); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			ttl = parsed
		} else {
			log.Printf("[router] invalid BILLING_STATUS_CACHE_TTL %q: %v", raw, err)
		}
	}
	statusCache := billing.NewRedisStatusCache(cache.GetClient(), ttl)
	reader := billing.NewReader(billingRepo, provider, statusCache)

	gateCfg := middleware.GateConfig{
		FailOpen: env.GetEnv("BILLING_GATE_FAIL_OPEN", "false") == "true",
	}

	var store storage.ObjectStore
	storageCfg, err := storage.LoadConfig()
	if err != nil {
		log.Printf("[router] storage config invalid: %v", err)
		storageCfg = &storage.Config{}
	} else if storageCfg.IsEnabled() {
		client, err := storage.NewClient(storageCfg)
		if err != nil {
			log.Printf("[router] storage client unavailable: %v", err)
		} else {
			store = client
		}
	}

	deps = &dependencies{
		repos:   repos,
		reader:  reader,
		gateCfg: gateCfg,
		billingCtl: controllers.NewBillingController(
			billingSvc,
			reader,
			provider,
			statusCache,
			repos.User,
			env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
			env.GetEnv("STRIPE_PRICE_ID", ""),
			checkoutTrialDays,
		),
		menuCtl:   controllers.NewMenuController(repos.Menu),
		imageCtl:  controllers.NewItemImageController(repos.Menu, store, storageCfg),
		qrCtl:     controllers.NewQRController(repos.Menu),
		publicCtl: controllers.NewPublicMenuController(repos.Menu),
		userCtl:   controllers.NewUserController(repos.Menu),
	}
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// init oauth providers
	oauth.Setup()

	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware)

	d := getDependencies()

	h.registerPublicRoutes(app, d)
	h.registerCSRFProtectedRoutes(app, d)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}

func loggedInMiddleware(c *fiber.Ctx) error {
	// UserContextMiddleware already set all user context
	return c.Next()
}
