package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"marketplace/internal/config"
	"marketplace/internal/domain/model"
	"marketplace/internal/handler"
	"marketplace/internal/infra/db"
	"marketplace/internal/infra/events"
	"marketplace/internal/infra/identity"
	infraRepo "marketplace/internal/infra/repository"
	"marketplace/internal/infra/storage"
	"marketplace/internal/logger"
	"marketplace/internal/repository"
	"marketplace/internal/server"
	"marketplace/internal/usecase"
	auth "marketplace/internal/usecase/auth_usecase"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now()
}

type jwtIssuer struct {
	secret    []byte
	accessTTL time.Duration
}

func (i *jwtIssuer) Issue(userID string, role model.Role, tokenVersion int, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(i.accessTTL)

	//tvはAuthJWT / TokenVersionGuardで照合する
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": string(role),
		"tv":   tokenVersion,
		"iat":  now.Unix(),
		"exp":  expiresAt.Unix(),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

func main() {
	//.envは無くてもよい（本番は環境変数）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Service:   "marketplace-api",
		Env:       cfg.GoEnv,
		Level:     cfg.LogLevel,
		AddSource: !cfg.IsProd(),
	})

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//DB接続
	gormDB, err := db.Connect(cfg.DSN(), !cfg.IsProd())
	if err != nil {
		return err
	}
	if err := db.Migrate(gormDB); err != nil {
		return err
	}

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	sellerRepo := infraRepo.NewSellerGormRepository(gormDB)
	cartRepo := infraRepo.NewCartGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)

	//画像ストレージ（GCS_BUCKET が空なら無効）
	var images repository.ImageStorage
	if cfg.GCSBucket != "" {
		client, err := storage.NewGCSClient(ctx, cfg.GCSCredentialsFile)
		if err != nil {
			return err
		}
		defer client.Close()
		gcsImages, err := storage.NewGCSImageStorage(client, cfg.GCSBucket, cfg.GCSPublicBaseURL)
		if err != nil {
			return err
		}
		images = gcsImages
	}

	//チェックアウトイベント（RABBITMQ_URL が空なら送らない）
	var publisher usecase.CheckoutPublisher = events.NopPublisher{}
	if cfg.RabbitMQURL != "" {
		conn, err := events.Dial(cfg.RabbitMQURL)
		if err != nil {
			return err
		}
		defer conn.Close()
		rp, err := events.NewRabbitPublisher(conn, cfg.CheckoutExchange)
		if err != nil {
			return err
		}
		defer rp.Close()
		publisher = rp
	}

	money, err := usecase.NewMoneyFormat(cfg.CurrencyPrefix, cfg.CurrencyLocale, int32(cfg.CurrencyDecimals))
	if err != nil {
		return err
	}

	//usecaseに渡す部品
	idGen := &uuidGenerator{}
	clock := &realClock{}
	ui := handler.NewRequestInteraction(log)
	ident := identity.NewProvider(userRepo)

	//bcrypt（会員登録：Hash / ログイン：Verify）
	hasher := auth.NewBcryptPasswordHasher(12)
	verifier := auth.NewBcryptPasswordVerifier()
	issuer := &jwtIssuer{secret: []byte(cfg.JWTSecret), accessTTL: cfg.AccessTokenTTL}

	//Usecase生成
	registerUC := auth.NewRegisterUserUsecase(userRepo, hasher, idGen, clock)
	loginUC := auth.NewLoginUsecase(userRepo, verifier, issuer, clock)
	logoutUC := auth.NewLogoutUsecase(userRepo)
	profileUC := auth.NewProfileUsecase(userRepo, clock)

	cartUC := usecase.NewCartUsecase(cartRepo, productRepo, ui, idGen, clock, log)
	checkoutUC := usecase.NewCheckoutUsecase(cartUC, ident, ui, publisher, ui, clock, usecase.CheckoutConfig{
		HandoffBaseURL: cfg.HandoffBaseURL,
		ClearDelay:     cfg.CheckoutClearDelay,
		Money:          money,
	}, log)
	productUC := usecase.NewProductUsecase(productRepo, sellerRepo, auditRepo, images, idGen, clock, log)
	sellerUC := usecase.NewSellerUsecase(sellerRepo, auditRepo, clock, log)
	adminUC := usecase.NewAdminUsecase(userRepo, auditRepo, clock, log)

	//Handler生成
	e := server.New(cfg, userRepo, server.Handlers{
		Auth:    handler.NewAuthHandler(registerUC, loginUC, logoutUC, profileUC),
		Product: handler.NewProductHandler(productUC),
		Cart:    handler.NewCartHandler(cartUC, checkoutUC, money),
		Seller:  handler.NewSellerHandler(productUC, sellerUC),
		Admin:   handler.NewAdminHandler(sellerUC, adminUC),
	}, log)

	addr := cfg.Port
	if !strings.HasPrefix(addr, ":") {
		addr = ":" + addr
	}
	return server.Start(ctx, e, addr, log)
}
