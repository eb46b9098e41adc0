package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"gamyacollections/internal/cart"
	"gamyacollections/internal/checkout"
	"gamyacollections/internal/config"
	"gamyacollections/internal/database"
	"gamyacollections/internal/handlers"
	"gamyacollections/internal/mailer"
	"gamyacollections/internal/middleware"
	"gamyacollections/internal/outbox"
	"gamyacollections/internal/payment"
	"gamyacollections/internal/shipping"
	"gamyacollections/internal/store"
)

func main() {
	config.Load()
	cfg := config.AppEnv

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	client, err := database.Connect(cfg.MongoURI)
	if err != nil {
		log.Fatal(err)
	}
	db := client.Database(cfg.DBName)
	log.Println("MongoDB connected to:", db.Name())

	names := store.Collections(cfg.CollectionPrefix)
	if err := database.EnsureIndexes(db, names); err != nil {
		log.Printf("index warning: %v", err)
	}
	repos := store.NewMongo(db, names)

	razorpay := payment.NewRazorpay(payment.Config{
		KeyID:         cfg.RazorpayKeyID,
		KeySecret:     cfg.RazorpayKeySecret,
		WebhookSecret: cfg.RazorpayWebhookSecret,
		Timeout:       cfg.RazorpayTimeout,
	})
	shiprocket := shipping.New(shipping.Config{
		BaseURL:        cfg.ShiprocketBaseURL,
		Email:          cfg.ShiprocketEmail,
		Password:       cfg.ShiprocketPassword,
		PickupLocation: cfg.ShiprocketPickupLocation,
		Timeout:        cfg.ShiprocketTimeout,
	})
	mail := mailer.New(mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	})

	dispatcher := outbox.NewDispatcher(repos.Outbox, repos.Orders, cfg.OutboxMaxAttempts)
	orders := checkout.NewService(checkout.Deps{
		Products:   repos.Products,
		Carts:      repos.Carts,
		Orders:     repos.Orders,
		Payments:   razorpay,
		Shipping:   shiprocket,
		Mailer:     mail,
		Outbox:     dispatcher,
		AdminEmail: cfg.AdminEmail,
	})
	carts := cart.NewService(repos.Carts, repos.Products)

	retrier, err := outbox.StartRetrier(dispatcher, cfg.OutboxSchedule, time.Minute)
	if err != nil {
		log.Fatal(err)
	}
	defer retrier.Stop()

	r := gin.Default()
	registerRoutes(r, app{
		db:       db,
		names:    names,
		repos:    repos,
		orders:   orders,
		carts:    carts,
		mail:     mail,
		razorpay: razorpay,
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Println("listening on", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Println("server shutdown:", err)
	}
	if err := client.Disconnect(shutdownCtx); err != nil {
		log.Println("mongo disconnect:", err)
	}
}

type app struct {
	db       *mongo.Database
	names    store.CollectionNames
	repos    *store.Mongo
	orders   *checkout.Service
	carts    *cart.Service
	mail     mailer.Mailer
	razorpay *payment.Razorpay
}

func registerRoutes(r *gin.Engine, a app) {
	cfg := config.AppEnv
	auth := middleware.Auth(cfg.JWTSecret, a.repos.Users)
	adminOnly := middleware.AdminOnly()

	categories := a.db.Collection(a.names.Categories)
	subCategories := a.db.Collection(a.names.SubCategories)

	r.GET("/health", handlers.Health(a.db))
	r.POST("/webhooks/razorpay", handlers.RazorpayWebhook(a.orders, a.razorpay))

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", handlers.Register(a.repos.Users, cfg.JWTSecret, cfg.AccessTokenTTL))
		authGroup.POST("/login", handlers.Login(a.repos.Users, cfg.JWTSecret, cfg.AccessTokenTTL))
		authGroup.POST("/admin/login", handlers.AdminLogin(a.repos.Users, cfg.JWTSecret, cfg.AccessTokenTTL))
		authGroup.POST("/logout", handlers.Logout())
		authGroup.GET("/me", auth, handlers.Me())
		authGroup.POST("/forgot-password", handlers.ForgotPassword(a.repos.Users, a.mail))
		authGroup.POST("/reset-password", handlers.ResetPassword(a.repos.Users))
	}

	products := api.Group("/products")
	{
		products.GET("", handlers.GetProducts(a.repos.Products))
		products.GET("/:id", handlers.GetProduct(a.repos.Products))
		products.POST("", auth, adminOnly, handlers.CreateProduct(a.repos.Products))
		products.PUT("/:id", auth, adminOnly, handlers.UpdateProduct(a.repos.Products))
		products.DELETE("/:id", auth, adminOnly, handlers.DeleteProduct(a.repos.Products))
	}

	cats := api.Group("/categories")
	{
		cats.GET("", handlers.GetCategories(categories))
		cats.POST("", auth, adminOnly, handlers.CreateCategory(categories))
		cats.PUT("/:id", auth, adminOnly, handlers.UpdateCategory(categories))
		cats.DELETE("/:id", auth, adminOnly, handlers.DeleteCategory(categories))
	}

	subs := api.Group("/subcategories")
	{
		subs.GET("", handlers.GetSubCategories(subCategories))
		subs.POST("", auth, adminOnly, handlers.CreateSubCategory(subCategories, categories))
		subs.PUT("/:id", auth, adminOnly, handlers.UpdateSubCategory(subCategories, categories))
		subs.DELETE("/:id", auth, adminOnly, handlers.DeleteSubCategory(subCategories))
	}

	cartGroup := api.Group("/cart", auth)
	{
		cartGroup.GET("", handlers.GetCart(a.carts))
		cartGroup.POST("/add", handlers.AddToCart(a.carts))
		cartGroup.PUT("/update", handlers.UpdateCartItem(a.carts))
		cartGroup.DELETE("/remove/:productId", handlers.RemoveFromCart(a.carts))
		cartGroup.DELETE("/clear", handlers.ClearCart(a.carts))
	}

	pay := api.Group("/razorpay", auth)
	{
		pay.POST("/create-order", handlers.CreateRazorpayOrder(a.orders, a.razorpay.KeyID()))
		pay.POST("/verify-payment", handlers.VerifyRazorpayPayment(a.orders))
		pay.POST("/payment-failed", handlers.RazorpayPaymentFailed(a.orders))
	}

	orderGroup := api.Group("/orders", auth)
	{
		orderGroup.POST("/place", handlers.PlaceOrder(a.orders))
		orderGroup.GET("/myorders", handlers.GetMyOrders(a.orders))
		orderGroup.GET("/receipt/:orderId", handlers.DownloadReceipt(a.orders))
		orderGroup.GET("/export", adminOnly, handlers.ExportOrders(a.orders))
		orderGroup.GET("/:orderId", handlers.GetOrder(a.orders))
		orderGroup.GET("/:orderId/track", handlers.TrackOrder(a.orders))

		orderGroup.GET("", adminOnly, handlers.ListOrders(a.orders))
		orderGroup.PUT("/:orderId/status", adminOnly, handlers.UpdateOrderStatus(a.orders))
		orderGroup.PUT("/:orderId/seen", adminOnly, handlers.MarkOrderSeen(a.orders))
		orderGroup.DELETE("/:orderId", adminOnly, handlers.DeleteOrder(a.orders))
	}
}
