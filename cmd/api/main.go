package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-pos-ws/internal/cart"
	"go-pos-ws/internal/config"
	"go-pos-ws/internal/handler"
	"go-pos-ws/internal/middleware"
	"go-pos-ws/internal/model"
	"go-pos-ws/internal/repository"
	"go-pos-ws/internal/service"
	"go-pos-ws/internal/sessionid"
	"go-pos-ws/internal/storage"
	"go-pos-ws/internal/terminal"
	"go-pos-ws/internal/ws"
	"go-pos-ws/pkg/database"
	"go-pos-ws/pkg/jwt"
	applogger "go-pos-ws/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	// 1. Load config
	cfg := config.Load()

	log, err := applogger.New(cfg.Env)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// 2. Setup Database
	db, err := database.ConnectDB(cfg.DatabaseURL, !cfg.IsProduction())
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := db.AutoMigrate(
		&model.Privilege{}, &model.Role{}, &model.Profile{}, &model.PendingInvitation{},
		&model.Product{}, &model.Session{}, &model.SessionInventory{},
	); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}
	if err := database.InstallChangeTriggers(db, cfg.NotifyChannel); err != nil {
		log.Fatal("Failed to install change triggers", zap.Error(err))
	}

	// 3. Seed default privileges, roles, and admin profile
	seedPrivilegesRolesAndAdmin(ctx, db, cfg, log)

	// 4. Setup WebSocket Hub and change feed
	wsHub := ws.NewHub(log.Named("hub"))
	go wsHub.Run(ctx)

	listener := ws.NewListener(cfg.DatabaseURL, cfg.NotifyChannel, wsHub, log.Named("listener"))
	go func() {
		if err := listener.Run(ctx); err != nil {
			log.Error("Change listener stopped, realtime updates disabled until restart", zap.Error(err))
		}
	}()

	// 5. Cart store and file storage
	var cartStore cart.Store = cart.NewMemoryStore()
	if cfg.RedisURL != "" {
		client, err := cart.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn("Redis unavailable, carts are kept in memory", zap.Error(err))
		} else {
			defer client.Close()
			cartStore = cart.NewRedisStore(client, cfg.CartTTL)
		}
	}

	var fileStore storage.Store = storage.NoopStore{}
	if cfg.S3Bucket != "" {
		s3Client, err := storage.NewS3Client(ctx, cfg.AWSEndpoint)
		if err != nil {
			log.Warn("S3 unavailable, image uploads disabled", zap.Error(err))
		} else {
			fileStore = storage.NewS3Store(s3Client, cfg.S3Bucket, cfg.AWSEndpoint, cfg.S3PublicBaseURL)
		}
	}

	// 6. Dependency Injection (Wiring Layers)
	tokens := jwt.NewManager(cfg.JWTSecret, cfg.JWTTTL)

	productRepo := repository.NewProductRepo(db)
	sessionRepo := repository.NewSessionRepo(db)
	inventoryRepo := repository.NewInventoryRepo(db)
	profileRepo := repository.NewProfileRepo(db)
	privilegeRepo := repository.NewPrivilegeRepo(db)
	roleRepo := repository.NewRoleRepo(db)
	invitationRepo := repository.NewInvitationRepo(db)

	ids := sessionid.New(sessionRepo.Exists, cfg.SessionIDMaxAttempts, cfg.SessionIDRetryDelay)

	invService := service.NewInventoryService(sessionRepo, inventoryRepo, wsHub, log)
	checkoutService := service.NewCheckoutService(sessionRepo, inventoryRepo, wsHub, log)
	sessionService := service.NewSessionService(sessionRepo, inventoryRepo, productRepo, ids, wsHub, log)
	productService := service.NewProductService(productRepo, fileStore, wsHub, log)
	dashService := service.NewDashboardService(invService, sessionRepo, productRepo)

	terminals := terminal.NewManager(invService, checkoutService, wsHub, cartStore, log.Named("terminal"))

	authService := service.NewAuthService(profileRepo, roleRepo, invitationRepo, tokens, terminals, wsHub, log)
	memberService := service.NewMemberService(profileRepo, privilegeRepo, roleRepo, invitationRepo, terminals, log)

	authHandler := handler.NewAuthHandler(authService)
	productHandler := handler.NewProductHandler(productService)
	sessionHandler := handler.NewSessionHandler(sessionService, invService, checkoutService, dashService)
	terminalHandler := handler.NewTerminalHandler(terminals)
	memberHandler := handler.NewMemberHandler(memberService)
	roleHandler := handler.NewRoleHandler(memberService)
	dashHandler := handler.NewDashboardHandler(dashService)
	wsHandler := handler.NewWSHandler(wsHub, terminals, log)

	// 7. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName:   "POS Session Backend v1.0",
		BodyLimit: 6 * 1024 * 1024,
	})

	// Middleware
	app.Use(logger.New())  // Logging request
	app.Use(recover.New()) // Panic recovery
	app.Use(cors.New())    // CORS

	requireAuth := middleware.RequireAuth(tokens, profileRepo)

	// 8. Routes
	api := app.Group("/api/v1")

	// ============ PUBLIC ROUTES ============
	auth := api.Group("/auth")
	auth.Post("/sign-in", authHandler.SignIn)
	auth.Post("/sign-up", authHandler.SignUp)
	auth.Get("/session", authHandler.GetSession)
	auth.Post("/sign-out", requireAuth, authHandler.SignOut)
	auth.Post("/heartbeat", requireAuth, authHandler.Heartbeat)

	// ============ PROTECTED ROUTES ============
	protected := api.Group("", requireAuth)

	// Dashboard
	protected.Get("/dashboard/overview", middleware.RequirePrivilege(model.PrivDashboardView), dashHandler.GetOverview)

	// Products
	protected.Get("/products", middleware.RequirePrivilege(model.PrivProductView), productHandler.GetProducts)
	protected.Get("/products/:id", middleware.RequirePrivilege(model.PrivProductView), productHandler.GetProduct)
	protected.Post("/products", middleware.RequirePrivilege(model.PrivProductCreate), productHandler.CreateProduct)
	protected.Put("/products/:id", middleware.RequirePrivilege(model.PrivProductUpdate), productHandler.UpdateProduct)
	protected.Delete("/products/:id", middleware.RequirePrivilege(model.PrivProductDelete), productHandler.DeleteProduct)
	protected.Post("/products/:id/image", middleware.RequirePrivilege(model.PrivProductUpdate), productHandler.UploadImage)

	// Sessions and session inventory
	protected.Get("/sessions", middleware.RequirePrivilege(model.PrivSessionView), sessionHandler.GetSessions)
	protected.Post("/sessions", middleware.RequirePrivilege(model.PrivSessionCreate), sessionHandler.CreateSession)
	protected.Get("/sessions/:id", middleware.RequirePrivilege(model.PrivSessionView), sessionHandler.GetSession)
	protected.Put("/sessions/:id", middleware.RequirePrivilege(model.PrivSessionUpdate), sessionHandler.UpdateSession)
	protected.Delete("/sessions/:id", middleware.RequirePrivilege(model.PrivSessionDelete), sessionHandler.DeleteSession)
	protected.Put("/sessions/:id/status", middleware.RequirePrivilege(model.PrivSessionUpdate), sessionHandler.SetStatus)
	protected.Get("/sessions/:id/products", middleware.RequirePrivilege(model.PrivSessionView), sessionHandler.GetProducts)
	protected.Put("/sessions/:id/inventory/:productId", middleware.RequirePrivilege(model.PrivInventoryUpdate), sessionHandler.UpdateStock)
	protected.Get("/sessions/:id/summary", middleware.RequireAnyPrivilege(model.PrivDashboardView, model.PrivSessionView), sessionHandler.GetSummary)
	protected.Post("/sessions/:id/checkout", middleware.RequirePrivilege(model.PrivCheckoutCreate), sessionHandler.Checkout)

	// Terminals (cashier context)
	terminalsGroup := protected.Group("/terminals", middleware.RequirePrivilege(model.PrivCheckoutCreate))
	terminalsGroup.Post("", terminalHandler.Open)
	terminalsGroup.Delete("/:id", terminalHandler.Close)
	terminalsGroup.Put("/:id/session", terminalHandler.SelectSession)
	terminalsGroup.Delete("/:id/session", terminalHandler.LeaveSession)
	terminalsGroup.Get("/:id/cart", terminalHandler.GetCart)
	terminalsGroup.Post("/:id/cart/items", terminalHandler.AddItem)
	terminalsGroup.Patch("/:id/cart/items/:line", terminalHandler.UpdateLine)
	terminalsGroup.Delete("/:id/cart/items/:line", terminalHandler.RemoveItem)
	terminalsGroup.Put("/:id/cart/discount", terminalHandler.SetDiscount)
	terminalsGroup.Delete("/:id/cart", terminalHandler.ClearCart)
	terminalsGroup.Post("/:id/checkout", terminalHandler.Checkout)

	// Members and invitations
	protected.Get("/members", middleware.RequirePrivilege(model.PrivMemberView), memberHandler.GetMembers)
	protected.Get("/members/:id", middleware.RequirePrivilege(model.PrivMemberView), memberHandler.GetMember)
	protected.Put("/members/:id", middleware.RequirePrivilege(model.PrivMemberUpdate), memberHandler.UpdateMember)
	protected.Delete("/members/:id", middleware.RequirePrivilege(model.PrivMemberDelete), memberHandler.DeleteMember)
	protected.Put("/members/:id/privileges", middleware.RequirePrivilege(model.PrivMemberUpdate), memberHandler.UpdatePrivileges)
	protected.Get("/invitations", middleware.RequirePrivilege(model.PrivMemberInvite), memberHandler.GetInvitations)
	protected.Post("/invitations", middleware.RequirePrivilege(model.PrivMemberInvite), memberHandler.CreateInvitation)
	protected.Delete("/invitations/:email", middleware.RequirePrivilege(model.PrivMemberInvite), memberHandler.DeleteInvitation)

	// Roles and privileges
	protected.Get("/roles", roleHandler.GetRoles)
	protected.Get("/privileges", roleHandler.GetPrivileges)

	// WebSocket Route
	app.Get("/ws", requireAuth, wsHandler.Upgrade, wsHandler.Serve())

	// 9. Graceful Shutdown
	go func() {
		log.Info("Server starting", zap.String("addr", cfg.Address()))
		if err := app.Listen(cfg.Address()); err != nil {
			log.Panic("Server stopped", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	terminals.CloseAll()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	stop()

	log.Info("Server exited")
}

// seedPrivilegesRolesAndAdmin creates default privileges, roles, and the
// first admin profile if they don't exist
func seedPrivilegesRolesAndAdmin(ctx context.Context, db *gorm.DB, cfg config.Config, log *zap.Logger) {
	privilegeRepo := repository.NewPrivilegeRepo(db)
	roleRepo := repository.NewRoleRepo(db)
	profileRepo := repository.NewProfileRepo(db)

	// 1. Seed privileges first
	if err := privilegeRepo.SeedDefaults(ctx); err != nil {
		log.Warn("Failed to seed privileges", zap.Error(err))
	}

	// 2. Seed roles and assign their default privileges
	allPrivileges, err := privilegeRepo.FindAll(ctx)
	if err != nil {
		log.Warn("Failed to load privileges", zap.Error(err))
		return
	}
	if err := roleRepo.SeedDefaults(ctx, allPrivileges); err != nil {
		log.Warn("Failed to seed roles", zap.Error(err))
	}

	// 3. Create the admin profile when a password is configured
	if cfg.AdminPassword == "" {
		return
	}
	if _, err := profileRepo.FindByEmail(ctx, cfg.AdminEmail); err == nil {
		return
	}

	adminRole, err := roleRepo.FindByCode(ctx, model.RoleAdmin)
	if err != nil {
		log.Warn("Admin role missing, skipping admin profile", zap.Error(err))
		return
	}

	admin := &model.Profile{
		Email:      cfg.AdminEmail,
		FullName:   "Administrator",
		RoleID:     &adminRole.ID,
		IsActive:   true,
		Privileges: adminRole.Privileges,
	}
	admin.CreatedBy = "system"
	admin.UpdatedBy = "system"

	if err := admin.SetPassword(cfg.AdminPassword); err != nil {
		log.Warn("Failed to hash admin password", zap.Error(err))
		return
	}
	if err := profileRepo.Create(ctx, admin); err != nil {
		log.Warn("Failed to create admin profile", zap.Error(err))
		return
	}
	log.Info("Admin profile created", zap.String("email", cfg.AdminEmail))
}
