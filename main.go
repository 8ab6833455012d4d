package main

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"docqa/controllers"
	"docqa/core"
	"docqa/internal"
	"docqa/internal/extraction"
	"docqa/internal/qa"
	"docqa/internal/qacache"
	"docqa/internal/retrieval"
	"docqa/models"
)

func main() {
	godotenv.Load()

	logger, err := internal.NewLogger()
	if err != nil {
		panic(err)
	}

	// connect to the database
	db, err := core.InitDB()
	if err != nil {
		panic(err)
	}

	// auto migrate the database
	err = db.AutoMigrate(
		&models.User{},
		&models.AccessToken{},
		&models.Project{},
		&models.Document{},
		&models.DocumentChunk{},
		&models.Extraction{},
		&models.QAHistory{},
	)
	if err != nil {
		panic(err)
	}

	embedder, err := retrieval.NewEmbedder()
	if err != nil {
		panic(err)
	}
	jobs := retrieval.NewJobManager(db, embedder, logger)

	// set up commands
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "embed_chunks":
			model := os.Getenv("OPENAI_EMBEDDING_MODEL")
			if model == "" {
				model = retrieval.DefaultEmbeddingModel
			}

			force := len(os.Args) > 2 && os.Args[2] == "--force"

			stats, err := jobs.Run(context.Background(), model, 10, 0, force)
			if err != nil {
				panic(err)
			}

			logger.Infow("embedding run complete",
				"total", stats.TotalChunks, "processed", stats.Processed,
				"errors", stats.Errors, "skipped", stats.Skipped,
				"duration_seconds", stats.DurationSeconds)
			return
		}
	}

	runServer(db, logger, embedder, jobs)
}

func runServer(db *gorm.DB, logger *zap.SugaredLogger, embedder *retrieval.Embedder, jobs *retrieval.JobManager) {
	// set up http server
	engine := gin.Default()
	err := engine.SetTrustedProxies(nil)
	if err != nil {
		panic(err)
	}

	engine.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "https://"+os.Getenv("UI_DOMAIN"))
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, Accept, Origin, Cache-Control, X-Requested-With, X-User-Token")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	generator, err := retrieval.NewGenerator(logger)
	if err != nil {
		panic(err)
	}

	searcher := retrieval.NewSearcher(db, embedder, logger)
	qaEngine := qa.NewEngine(db, searcher, generator, logger)
	cache := qacache.New(logger)

	extractionClient, err := extraction.NewClient()
	if err != nil {
		panic(err)
	}
	runner := extraction.NewRunner(db, extractionClient, logger)

	router := controllers.Router{
		HealthController: &controllers.HealthController{},
		UsersController:  &controllers.UsersController{},
		QAController: &controllers.QAController{
			Engine: qaEngine,
			Cache:  cache,
			Logger: logger,
		},
		ExtractionsController: &controllers.ExtractionsController{
			Runner: runner,
			Logger: logger,
		},
		DocumentsController: &controllers.DocumentsController{
			Jobs:   jobs,
			Logger: logger,
		},
	}

	router.RegisterRoutes(engine)

	err = engine.Run()
	if err != nil {
		return
	}
}
