package router

import (
	"context"
	"fmt"
	"net/http"

	authsvc "webcarros-backend/internal/application/auth"
	"webcarros-backend/internal/application/carevents"
	carsvc "webcarros-backend/internal/application/cars"
	emailsvc "webcarros-backend/internal/application/emails"
	imgsvc "webcarros-backend/internal/application/images"
	"webcarros-backend/internal/application/views"
	"webcarros-backend/internal/config"
	"webcarros-backend/internal/infrastructure/blobstore"
	"webcarros-backend/internal/infrastructure/database"
	"webcarros-backend/internal/infrastructure/firestoredb"
	"webcarros-backend/internal/infrastructure/queue"
	authhandler "webcarros-backend/internal/interfaces/handlers/auth"
	blobhandler "webcarros-backend/internal/interfaces/handlers/blobs"
	carhandler "webcarros-backend/internal/interfaces/handlers/cars"
	cataloghandler "webcarros-backend/internal/interfaces/handlers/catalog"
	eventhandler "webcarros-backend/internal/interfaces/handlers/events"
	healthhandler "webcarros-backend/internal/interfaces/handlers/health"
	imghandler "webcarros-backend/internal/interfaces/handlers/images"
	"webcarros-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Deps are the opened backends the routes are built on.
type Deps struct {
	Config    *config.Config
	DB        *gorm.DB
	Rdb       *redis.Client
	Cars      carsvc.Store
	Blobs     blobstore.Store
	Publisher carevents.Publisher
	Mailer    emailsvc.Sender
}

// New builds the Fiber app with global middleware and every route.
func New(d Deps) *fiber.App {
	cfg := d.Config
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
		BodyLimit:               cfg.MaxUploadBytes + 1<<20,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())
	app.Use(middleware.Session(d.Rdb))
	app.Use(middleware.HealthMarker(d.Rdb))

	hh := &healthhandler.Handlers{
		Rdb:            d.Rdb,
		DB:             &database.Pinger{DB: d.DB},
		Blobs:          d.Blobs,
		HealthAdminKey: cfg.HealthAdminKey,
	}
	app.Get("/", hh.Dashboard)
	app.Get("/reset", hh.Reset)
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)

	if mem, ok := d.Blobs.(*blobstore.MemoryStore); ok {
		bh := &blobhandler.Handlers{Store: mem}
		app.Get("/blobs/*", bh.Get)
	}

	sessionCfg := middleware.SessionConfig{
		AllowCrossSiteDev: cfg.AllowCrossSiteDev,
		IsProduction:      cfg.IsProduction(),
	}

	as := &authsvc.Service{DB: d.DB, Rdb: d.Rdb, Mailer: d.Mailer}
	ah := &authhandler.Handlers{Service: as, Config: sessionCfg}
	authGroup := app.Group("/api/v1/auth")
	authGroup.Post("/register", ah.Register)
	authGroup.Post("/login", ah.Login)
	authGroup.Get("/me", ah.Me)
	authGroup.Delete("/logout", ah.Logout)
	authGroup.Patch("/profile", middleware.RequireAuth(), ah.Profile)

	manager := &imgsvc.Manager{Blobs: d.Blobs, MaxBytes: int64(cfg.MaxUploadBytes)}
	events := &carevents.Service{DB: d.DB, Publisher: d.Publisher}
	cs := &carsvc.Service{Store: d.Cars, Images: manager, Events: events}
	vs := &views.Service{Cars: cs}

	ch := &cataloghandler.Handlers{Views: vs}
	app.Get("/api/v1/cars", ch.Browse)
	app.Get("/api/v1/cars/:id", ch.Detail)

	dh := &carhandler.Handlers{Service: cs, Views: vs}
	ih := &imghandler.Handlers{Manager: manager, Drafts: cs}
	eh := &eventhandler.Handlers{Service: events}
	dg := app.Group("/api/v1/dashboard", middleware.RequireAuth())
	dg.Get("/cars", dh.List)
	dg.Post("/cars", dh.Create)
	dg.Get("/cars/:id", dh.Get)
	dg.Put("/cars/:id", dh.Update)
	dg.Delete("/cars/:id", dh.Delete)
	dg.Delete("/cars/:id/images/:uid", dh.RemoveImage)
	dg.Post("/images", ih.Upload)
	dg.Delete("/images/:uid", ih.Delete)
	dg.Get("/events", eh.List)

	return app
}

// Resources are the connections opened by CreateApp.
type Resources struct {
	DB      *gorm.DB
	Rdb     *redis.Client
	Blobs   blobstore.Store
	closers []func() error
}

// Close releases every connection, last opened first.
func (r *Resources) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			log.Warn().Err(err).Msg("router: close failed")
		}
	}
}

// CreateApp opens the backends named by cfg and builds the app on them.
func CreateApp(cfg *config.Config) (*fiber.App, *Resources, error) {
	ctx := context.Background()
	res := &Resources{}
	fail := func(err error) (*fiber.App, *Resources, error) {
		res.Close()
		return nil, nil, err
	}

	if cfg.DatabaseURL == "" {
		return fail(fmt.Errorf("DATABASE_URL is required"))
	}
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fail(fmt.Errorf("database: %w", err))
	}
	res.DB = db
	if sqlDB, err := db.DB(); err == nil {
		res.closers = append(res.closers, sqlDB.Close)
	}

	useFirestore := cfg.DocumentStore == "firestore"
	if err := database.AutoMigrate(db, !useFirestore); err != nil {
		return fail(fmt.Errorf("migrate: %w", err))
	}

	if cfg.RedisURL == "" {
		return fail(fmt.Errorf("REDIS_URL is required"))
	}
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fail(fmt.Errorf("redis: %w", err))
	}
	res.Rdb = redis.NewClient(opt)
	res.closers = append(res.closers, res.Rdb.Close)

	var cars carsvc.Store = &carsvc.GormStore{DB: db}
	if useFirestore {
		client, err := firestoredb.Open(ctx, cfg.FirestoreProjectID)
		if err != nil {
			return fail(fmt.Errorf("firestore: %w", err))
		}
		res.closers = append(res.closers, client.Close)
		cars = firestoredb.NewCarStore(client, cfg.FirestoreCollection)
	}

	blobs, err := blobstore.New(ctx, cfg)
	if err != nil {
		return fail(fmt.Errorf("blobs: %w", err))
	}
	res.Blobs = blobs
	if c, ok := blobs.(interface{ Close() error }); ok {
		res.closers = append(res.closers, c.Close)
	}

	var publisher carevents.Publisher
	if cfg.AMQPURL != "" {
		p := queue.NewAMQPPublisher(cfg.AMQPURL, queue.DefaultQueue)
		res.closers = append(res.closers, p.Close)
		publisher = p
	}

	var mailer emailsvc.Sender
	if cfg.SendinblueAPIKey != "" {
		mailer = &emailsvc.BrevoClient{
			APIKey:      cfg.SendinblueAPIKey,
			MailFrom:    cfg.MailFrom,
			FrontendURL: cfg.FrontendURL,
		}
	}

	log.Info().
		Str("document_store", cfg.DocumentStore).
		Str("blob_backend", blobs.Name()).
		Bool("amqp", publisher != nil).
		Bool("email", mailer != nil).
		Msg("router: backends ready")

	app := New(Deps{
		Config:    cfg,
		DB:        db,
		Rdb:       res.Rdb,
		Cars:      cars,
		Blobs:     blobs,
		Publisher: publisher,
		Mailer:    mailer,
	})
	return app, res, nil
}

func Handler(app *fiber.App) http.Handler {
	return adaptor.FiberApp(app)
}
