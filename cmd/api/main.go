package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/facturio/facturio-api/internal/application/billing"
	"github.com/facturio/facturio-api/internal/domain/entity"
	infraartifacts "github.com/facturio/facturio-api/internal/infrastructure/artifacts"
	infradian "github.com/facturio/facturio-api/internal/infrastructure/dian"
	infrapdf "github.com/facturio/facturio-api/internal/infrastructure/pdf"
	"github.com/facturio/facturio-api/internal/infrastructure/postgres"
	infrasigner "github.com/facturio/facturio-api/internal/infrastructure/signer"
	infrasri "github.com/facturio/facturio-api/internal/infrastructure/sri"
	httpRouter "github.com/facturio/facturio-api/internal/interfaces/http"
	"github.com/facturio/facturio-api/pkg/config"
	"github.com/facturio/facturio-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando motor de autorización")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	zl := log.Zerolog()

	companyRepo := postgres.NewCompanyRepository(pool)
	customerRepo := postgres.NewCustomerRepository(pool)
	credentialRepo := postgres.NewCredentialRepository(pool)
	documentRepo := postgres.NewDocumentRepository(pool)
	attemptRepo := postgres.NewAttemptRepository(pool)
	seriesRepo := postgres.NewSeriesRepository(pool)

	artifactStore := infraartifacts.NewFileStore(cfg.Artifacts.Dir, zl)
	signerSvc := infrasigner.NewDigitalSignatureService()
	credentialResolver := infrasigner.NewRepositoryCredentialResolver(credentialRepo)
	printableGen := infrapdf.NewMarotoPrintableGenerator()

	// Un serializador y un cliente de autoridad por jurisdicción.
	serializers := map[string]billing.Serializer{
		entity.JurisdictionSRI:  infrasri.NewXMLBuilderService(),
		entity.JurisdictionDIAN: infradian.NewXMLBuilderService(),
	}
	clients := map[string]billing.AuthorityClient{
		entity.JurisdictionSRI: infrasri.NewSOAPClient(infrasri.SOAPClientConfig{
			ReceptionURL:     cfg.Authority.SRIReceptionURL,
			AuthorizationURL: cfg.Authority.SRIAuthorizationURL,
			Timeout:          cfg.Authority.RequestTimeout,
		}, zl),
		entity.JurisdictionDIAN: infradian.NewSOAPClient(infradian.SOAPClientConfig{
			URL:     cfg.Authority.DIANURL,
			Timeout: cfg.Authority.RequestTimeout,
		}, zl),
	}

	lease := billing.NewDocumentLease()
	tracker := billing.NewLifecycleTracker(documentRepo, attemptRepo, zl)
	fallback := billing.NewDegradedFallback(artifactStore, printableGen, zl)

	pipeline := billing.NewAuthorizationPipeline(
		documentRepo, companyRepo, customerRepo,
		lease, tracker,
		serializers, clients,
		signerSvc, credentialResolver, artifactStore, printableGen, fallback,
		billing.PipelineConfig{
			RequestTimeout:   cfg.Authority.RequestTimeout,
			RetryBudget:      cfg.Authority.RetryBudget,
			RetryBaseDelay:   cfg.Authority.RetryBaseDelay,
			DIANTechnicalKey: cfg.Authority.DIANTechnicalKey,
		},
		zl,
	)

	submitUC := billing.NewSubmitSaleUseCase(
		documentRepo, companyRepo, customerRepo, seriesRepo, attemptRepo,
		artifactStore, billing.NewDocumentBuilder(), pipeline, zl,
	)

	// El flujo POS con wait espera el ciclo de autorización en línea: el
	// write timeout debe superar al timeout de la autoridad.
	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: cfg.Authority.RequestTimeout + 30*time.Second,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Facturio API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Submit:    submitUC,
		JWTSecret: cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
