package router

import (
	"errors"
	"time"

	alertsvc "handyhub-backend/internal/application/alerts"
	auctionsvc "handyhub-backend/internal/application/auctions"
	fjsvc "handyhub-backend/internal/application/flashjobs"
	invsvc "handyhub-backend/internal/application/inventory"
	lesvc "handyhub-backend/internal/application/listingevents"
	listsvc "handyhub-backend/internal/application/listings"
	sweepsvc "handyhub-backend/internal/application/sweeper"
	"handyhub-backend/internal/config"
	"handyhub-backend/internal/infrastructure/database"
	"handyhub-backend/internal/infrastructure/directory"
	"handyhub-backend/internal/infrastructure/events"
	"handyhub-backend/internal/infrastructure/store"
	alerthandler "handyhub-backend/internal/interfaces/handlers/alerts"
	auctionhandler "handyhub-backend/internal/interfaces/handlers/auctions"
	fjhandler "handyhub-backend/internal/interfaces/handlers/flashjobs"
	healthhandler "handyhub-backend/internal/interfaces/handlers/health"
	invhandler "handyhub-backend/internal/interfaces/handlers/inventory"
	lehandler "handyhub-backend/internal/interfaces/handlers/listingevents"
	listhandler "handyhub-backend/internal/interfaces/handlers/listings"
	sweephandler "handyhub-backend/internal/interfaces/handlers/sweeps"
	"handyhub-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type gormDBPinger struct {
	db *gorm.DB
}

func (g *gormDBPinger) Ping() error {
	if g == nil || g.db == nil {
		return nil
	}
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Deps are the connections and engines behind the app. The periodic workers
// run the same Sweeper and Alerts the admin endpoints use.
type Deps struct {
	DB      *gorm.DB
	Redis   *redis.Client
	NATS    *nats.Conn
	Store   *store.ListingStore
	Events  events.Publisher
	Sweeper *sweepsvc.Service
	Alerts  *alertsvc.Service
	Now     func() time.Time
}

// Close releases the broker and cache connections.
func (d *Deps) Close() {
	if d.NATS != nil {
		d.NATS.Close()
	}
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
}

// CreateApp connects to Postgres, Redis and (optionally) NATS, migrates the
// schema and builds the app.
func CreateApp(cfg *config.Config) (*fiber.App, *Deps, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil, errors.New("database url is not configured")
	}
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := database.AutoMigrate(db, cfg.Env != "production"); err != nil {
		return nil, nil, err
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		rdb = redis.NewClient(opt)
	}

	pubs := events.Fanout{events.LogPublisher{}}
	var nc *nats.Conn
	if cfg.NatsURL != "" {
		nc, err = nats.Connect(cfg.NatsURL, nats.Name("handyhub-api"), nats.MaxReconnects(-1))
		if err != nil {
			return nil, nil, err
		}
		pubs = append(pubs, events.NewNATSPublisher(nc))
	}
	if rdb != nil {
		pubs = append(pubs, &events.RedisPublisher{Client: rdb})
	}

	app, deps := NewApp(cfg, db, rdb, pubs)
	deps.NATS = nc
	return app, deps, nil
}

// NewApp wires services and routes over already-open connections. rdb may be nil.
func NewApp(cfg *config.Config, db *gorm.DB, rdb *redis.Client, pub events.Publisher) (*fiber.App, *Deps) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))
	app.Use(middleware.Tracing())
	app.Use(middleware.HealthMarker(rdb))
	app.Use(middleware.RouteLogger())
	app.Use(middleware.ActorIdentity())

	deps := &Deps{
		DB:     db,
		Redis:  rdb,
		Store:  store.New(db, cfg.UpdateMaxAttempts, cfg.UpdateRetryBase),
		Events: pub,
		Now:    time.Now,
	}
	deps.Sweeper = &sweepsvc.Service{Store: deps.Store, Events: pub, BatchSize: cfg.SweepBatchSize}
	deps.Alerts = &alertsvc.Service{Store: deps.Store, Events: pub}

	var dir directory.Directory = &directory.DBDirectory{DB: db}
	if rdb != nil {
		dir = &directory.CachedDirectory{Next: dir, Client: rdb, TTL: cfg.ProfileCacheTTL}
	}

	adminOnly := middleware.RequireAdminKey(cfg.AdminKey)
	actor := middleware.RequireActor()

	hh := &healthhandler.Handlers{Rdb: rdb, DB: &gormDBPinger{db: db}}
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", adminOnly, hh.Errors)
	app.Get("/health/reset", adminOnly, hh.Reset)

	v1 := app.Group("/api/v1")

	lh := &listhandler.Handlers{Service: &listsvc.Service{Store: deps.Store, Events: pub, Now: deps.Now}}
	listings := v1.Group("/listings")
	listings.Post("/auctions", actor, lh.CreateAuction)
	listings.Post("/opportunities", actor, lh.CreateOpportunity)
	listings.Post("/offers", actor, lh.CreateOffer)
	listings.Post("/flash-jobs", actor, lh.CreateFlashJob)
	listings.Get("/my-listings", actor, lh.GetMyListings)
	listings.Get("/nearby", lh.Nearby)
	listings.Get("/get-listing/:listing_id", lh.GetListingByID)

	leh := &lehandler.Handlers{Service: &lesvc.Service{Store: deps.Store}}
	v1.Get("/listing-events/:listing_id", leh.GetListingEvents)

	ah := &auctionhandler.Handlers{Service: &auctionsvc.Service{Store: deps.Store, Events: pub, Now: deps.Now}}
	auctions := v1.Group("/auctions")
	auctions.Post("/:id/bids", actor, ah.PlaceBid)
	auctions.Get("/:id/bids", ah.ListBids)
	auctions.Post("/:id/finalize", adminOnly, ah.Finalize)

	ih := &invhandler.Handlers{Service: &invsvc.Service{Store: deps.Store, Events: pub, Now: deps.Now}}
	inventory := v1.Group("/inventory")
	inventory.Post("/:id/claims", actor, ih.Claim)
	inventory.Get("/:id/claims", actor, ih.ListClaims)
	inventory.Post("/:id/redeem-code", actor, ih.RedeemByCode)
	claims := v1.Group("/claims", actor)
	claims.Get("/mine", ih.MyClaims)
	claims.Post("/:id/redeem", ih.RedeemClaim)

	fh := &fjhandler.Handlers{Service: &fjsvc.Service{Store: deps.Store, Directory: dir, Events: pub, Now: deps.Now}}
	jobs := v1.Group("/flash-jobs", actor)
	jobs.Get("/nearby", fh.Nearby)
	jobs.Post("/:id/assign", fh.Assign)
	jobs.Post("/:id/accept", fh.Accept)
	jobs.Post("/:id/complete", fh.Complete)
	jobs.Get("/:id/assignment", fh.GetAssignment)

	alh := &alerthandler.Handlers{Service: deps.Alerts, Now: deps.Now}
	alerts := v1.Group("/alerts", adminOnly)
	alerts.Get("/due", alh.Due)
	alerts.Post("/mark-notified", alh.MarkNotified)
	alerts.Post("/dispatch", alh.Dispatch)

	sh := &sweephandler.Handlers{Service: deps.Sweeper, Now: deps.Now}
	v1.Post("/sweeps/expired", adminOnly, sh.SweepExpired)

	log.Debug().Int("routes", len(app.GetRoutes())).Msg("routes registered")
	return app, deps
}
