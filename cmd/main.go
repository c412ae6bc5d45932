package main

import (
	"fmt"
	"net/http"
	"time"

	_ "github.com/gizaguri/notion-memo-gateway/docs" // Import generated docs
	"github.com/gizaguri/notion-memo-gateway/internal/auth"
	"github.com/gizaguri/notion-memo-gateway/internal/config"
	"github.com/gizaguri/notion-memo-gateway/internal/controllers"
	"github.com/gizaguri/notion-memo-gateway/internal/database"
	"github.com/gizaguri/notion-memo-gateway/internal/middleware"
	"github.com/gizaguri/notion-memo-gateway/internal/notion"
	"github.com/gizaguri/notion-memo-gateway/internal/secrets"
	"github.com/gizaguri/notion-memo-gateway/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/swaggo/files"
	"github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// sweepInterval is how often expired OAuth state tokens are removed.
const sweepInterval = time.Minute

var (
	db             *gorm.DB
	configuration  *config.Config
	stateService   services.StateService
	userService    services.UserService
	pageCache      services.PageCacheService
	authController *controllers.AuthController
	memoController *controllers.MemoController
)

// @title Notion Memo Gateway
// @version 1.0
// @description Edge backend brokering access between the memo mobile app and the Notion API
// @host localhost:8080
// @BasePath /
func main() {
	// Load environment variables
	loadDotenvFile()

	// Initialize logger
	setUpLogger()

	// Load configuration (fails closed on missing secrets)
	configuration = loadConfig()

	// Initialize database connection
	setupDatabase()

	// Initialize components
	codec := secrets.NewCodec(configuration.EncryptionKey)
	tokenIssuer := auth.NewTokenIssuer(configuration.SessionSecret)
	notionClient := notion.NewClient(configuration.NotionClientID, configuration.NotionClientSecret, configuration.NotionRedirectURI)

	stateService = services.NewStateService(db)
	userService = services.NewUserService(db)
	pageCache = services.NewPageCacheService(db, userService, codec, notionClient)

	authController = controllers.NewAuthController(stateService, userService, tokenIssuer, codec, notionClient, configuration.AppScheme)
	memoController = controllers.NewMemoController(userService, pageCache, codec, notionClient)

	// Periodically evict expired OAuth states off the request path
	startStateSweeper()

	// Initialize Gin router
	router := setupRouter()

	// Start the server
	log.Infof("Starting server on %s:%d", configuration.Host, configuration.Port)
	router.Run(fmt.Sprintf("%v:%d", configuration.Host, configuration.Port))
}

// checkPanicErr checks if an error occurred and panics if it did
func checkPanicErr(err error) {
	if err != nil {
		panic(err)
	}
}

// loadDotenvFile loads environment variables from a .env file
// If the file is not found, it will log a warning and use system environment variables
func loadDotenvFile() {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found, using system environment variables")
	}
}

// setUpLogger initializes the logger with a JSON formatter and sets the log level based on the environment
func setUpLogger() {
	log.SetFormatter(&log.JSONFormatter{})
	environment := config.GetEnvWithDefault("APP_ENV", "development")
	switch environment {
	case "development":
		log.SetLevel(log.DebugLevel)
	case "production":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}

// loadConfig loads the application configuration from environment variables
// It returns a Config struct or panics if there is an error
func loadConfig() *config.Config {
	log.Info("Loading configuration from environment variables")
	conf, err := config.LoadConfig()
	checkPanicErr(err)
	return conf
}

// setupDatabase initializes the database connection and migrates the schema
func setupDatabase() {
	var err error
	db, err = database.InitDatabase(database.LoadDatabaseConfig())
	checkPanicErr(err)
}

// startStateSweeper runs the periodic expiry sweep for OAuth state tokens.
// Sweep failures are logged and never interrupt subsequent runs.
func startStateSweeper() {
	ticker := time.NewTicker(sweepInterval)
	go func() {
		for range ticker.C {
			deleted, err := stateService.Sweep(services.StateTTL)
			if err != nil {
				log.WithError(err).Warn("OAuth state sweep failed")
				continue
			}
			if deleted > 0 {
				log.WithField("deleted", deleted).Debug("Swept expired OAuth states")
			}
		}
	}()
}

// setupRouter initializes the Gin router and sets up the routes
// It returns the configured router
func setupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())

	setupRoutes(router)

	return router
}

// setupRoutes defines the routes for the Gin router
func setupRoutes(router *gin.Engine) {
	// Health check endpoint
	router.GET("/health", healthCheckHandler)

	// OAuth flow and session token verification
	router.GET("/auth/notion/login", authController.Login)
	router.GET("/auth/notion/callback", authController.Callback)
	router.POST("/auth/verify", authController.Verify)

	// Memo routes consumed by the mobile client
	router.GET("/get-pages", memoController.GetPages)
	router.GET("/get-blocks", memoController.GetBlocks)
	router.POST("/add-memo", memoController.AddMemo)

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// healthCheckHandler handles the health check endpoint
// @Summary Health check
// @Description Check if the service is running
// @Tags health
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "notion-memo-gateway",
	})
}
