package main

import (
	"log"

	"github.com/gin-gonic/gin"

	"snackstore/internal/config"
	"snackstore/internal/database"
	"snackstore/internal/handlers"
	"snackstore/internal/middleware"
	"snackstore/internal/token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	client, err := database.Connect(cfg.MongoURI)
	if err != nil {
		log.Fatal(err)
	}

	db := client.Database(cfg.DBName)
	log.Println("MongoDB connected to:", db.Name())

	if err := database.EnsureUserIndexes(db); err != nil {
		log.Printf("⚠️ user index warning: %v", err)
	}
	if err := database.EnsureCartIndexes(db); err != nil {
		log.Printf("⚠️ cart index warning: %v", err)
	}
	if err := database.EnsureFavoriteIndexes(db); err != nil {
		log.Printf("⚠️ favorite index warning: %v", err)
	}
	if err := database.EnsureOrderIndexes(db); err != nil {
		log.Printf("⚠️ order index warning: %v", err)
	}
	if err := database.EnsureRefreshTokenIndexes(db); err != nil {
		log.Printf("⚠️ refresh token index warning: %v", err)
	}

	tokens := token.NewService(cfg.AccessSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	refreshes := token.NewRefreshStore(db)

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.Metrics())
	r.Use(middleware.CsrfGuard(middleware.DefaultCsrfOptions(cfg.Production())))

	auth := middleware.SessionAuth(tokens, middleware.MongoUserResolver{DB: db}, refreshes, cfg.Production())
	admin := middleware.RequireAdmin()

	r.GET("/health", handlers.Health())
	r.GET("/metrics", middleware.MetricsHandler())

	r.POST("/auth/signup", handlers.Signup(db, tokens, refreshes, cfg))
	r.POST("/auth/login", handlers.Login(db, tokens, refreshes, cfg))
	r.POST("/auth/logout", handlers.Logout(refreshes, cfg))
	r.POST("/auth/refresh-token", handlers.RefreshToken(db, tokens, refreshes, cfg))
	r.GET("/auth/profile", auth, handlers.GetProfile())
	r.PUT("/auth/profile", auth, handlers.UpdateProfile(db))

	addresses := r.Group("/addresses", auth)
	{
		addresses.POST("", handlers.CreateAddress(db))
		addresses.PUT("/:id", handlers.UpdateAddress(db))
		addresses.DELETE("/:id", handlers.DeleteAddress(db))
		addresses.PUT("/:id/default", handlers.SetDefaultAddress(db))
	}

	cart := r.Group("/cart", auth)
	{
		cart.GET("", handlers.GetCart(db))
		cart.POST("/add", handlers.AddToCart(db))
		cart.PUT("/update", handlers.UpdateCartItem(db))
		cart.DELETE("/remove/:productId", handlers.RemoveFromCart(db))
		cart.DELETE("/clear", handlers.ClearCart(db))
	}

	favorites := r.Group("/favorites", auth)
	{
		favorites.GET("", handlers.GetFavorites(db))
		favorites.POST("/add", handlers.AddFavorite(db))
		favorites.DELETE("/remove/:productId", handlers.RemoveFavorite(db))
		favorites.GET("/check/:productId", handlers.CheckFavorite(db))
	}

	r.GET("/products", handlers.GetProducts(db))
	r.GET("/products/:id", handlers.GetProduct(db))
	r.POST("/products/:id/reviews", auth, handlers.AddProductReview(db))
	r.POST("/products", auth, admin, handlers.CreateProduct(db))
	r.PUT("/products/:id", auth, admin, handlers.UpdateProduct(db))
	r.DELETE("/products/:id", auth, admin, handlers.DeleteProduct(db))

	orders := r.Group("/orders", auth)
	{
		orders.POST("", handlers.CreateOrder(db, cfg))
		orders.GET("/myorders", handlers.GetMyOrders(db))
		orders.GET("/:id", handlers.GetOrder(db))
		orders.PUT("/:id/status", admin, handlers.UpdateOrderStatus(db))
		orders.PUT("/:id/cancel", handlers.CancelOrder(db, cfg))
	}

	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}
