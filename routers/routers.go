package routers

import (
	"dentalshop/handlers"
	"dentalshop/metrics"
	"dentalshop/middleware"
	"dentalshop/storage"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"log/slog"
	"net/http"
	"time"
)

func SetupRouters(db *gorm.DB, svc *handlers.Services, log *slog.Logger) *gin.Engine {
	if svc.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	//建立Gin路由器
	router := gin.New()
	router.Use(
		middleware.RequestLogger(log),
		middleware.Recovery(),
		metrics.Middleware(),
		middleware.CORSMiddleware(svc.Config.App.CORSOrigins),
	)
	if err := router.SetTrustedProxies(nil); err != nil {
		log.Warn("設定信任代理失敗", "error", err)
	}

	//本機儲存時提供商品圖片靜態資源
	if disk, ok := svc.Storage.(*storage.LocalDisk); ok {
		router.Static(svc.Config.Storage.LocalURL, disk.Root())
	}

	router.GET("/metrics", metrics.Handler())
	router.GET("/healthz", func(context *gin.Context) {
		context.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	loginLimiter := middleware.NewRateLimiter(10, time.Minute)
	registerLimiter := middleware.NewRateLimiter(5, time.Minute)
	contactLimiter := middleware.NewRateLimiter(5, time.Minute)

	loginRequired := middleware.CheckLoginMiddleware()
	adminRequired := middleware.CheckAdminPermissionMiddleware()

	////所有API先以中間件解析Token，未登入也可繼續
	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware(db, svc.JWT))
	{
		//商品
		api.GET("/products", func(context *gin.Context) {
			handlers.GetProductListHandler(context, db, svc)
		})
		api.GET("/products/:id", func(context *gin.Context) {
			handlers.GetProductDataHandler(context, db)
		})
		api.POST("/products", adminRequired, func(context *gin.Context) {
			handlers.CreateProductHandler(context, db, svc)
		})
		api.PUT("/products/:id", adminRequired, func(context *gin.Context) {
			handlers.UpdateProductHandler(context, db, svc)
		})
		api.PATCH("/products/:id", adminRequired, func(context *gin.Context) {
			handlers.PatchProductHandler(context, db, svc)
		})
		api.DELETE("/products/:id", adminRequired, func(context *gin.Context) {
			handlers.DeleteProductHandler(context, db, svc)
		})

		//分類
		api.GET("/categories", func(context *gin.Context) {
			handlers.GetCategoryListHandler(context, db)
		})
		api.GET("/categories/:id", func(context *gin.Context) {
			handlers.GetCategoryDataHandler(context, db)
		})
		api.POST("/categories", adminRequired, func(context *gin.Context) {
			handlers.CreateCategoryHandler(context, db, svc)
		})
		api.PUT("/categories/:id", adminRequired, func(context *gin.Context) {
			handlers.UpdateCategoryHandler(context, db, svc)
		})
		api.DELETE("/categories/:id", adminRequired, func(context *gin.Context) {
			handlers.DeleteCategoryHandler(context, db, svc)
		})

		//購物車，未登入使用匿名購物車
		api.GET("/cart", func(context *gin.Context) {
			handlers.GetCartHandler(context, db)
		})
		api.POST("/cart/items", func(context *gin.Context) {
			handlers.AddToCartHandler(context, db)
		})
		api.PUT("/cart/items/:productId", func(context *gin.Context) {
			handlers.UpdateCartItemQuantityHandler(context, db)
		})
		api.DELETE("/cart/items/:productId", func(context *gin.Context) {
			handlers.DeleteCartItemHandler(context, db)
		})
		api.DELETE("/cart", func(context *gin.Context) {
			handlers.ClearCartHandler(context, db)
		})
		api.POST("/cart/sync", func(context *gin.Context) {
			handlers.SyncCartHandler(context, db)
		})
		//合併匿名和使用者購物車(登入或註冊後呼叫)
		api.POST("/cart/merge", loginRequired, func(context *gin.Context) {
			handlers.MergeCartHandler(context, db)
		})

		//訂單，訪客也可下單
		api.POST("/orders", func(context *gin.Context) {
			handlers.CreateOrderHandler(context, db, svc)
		})
		api.GET("/orders", loginRequired, func(context *gin.Context) {
			handlers.GetOrderListHandler(context, db)
		})
		api.GET("/orders/:id", loginRequired, func(context *gin.Context) {
			handlers.GetOrderDataHandler(context, db)
		})
		api.PUT("/orders", adminRequired, func(context *gin.Context) {
			handlers.UpdateOrderHandler(context, db, svc)
		})
		api.PUT("/orders/:id", adminRequired, func(context *gin.Context) {
			handlers.UpdateOrderHandler(context, db, svc)
		})

		//聯絡表單
		api.POST("/contact", contactLimiter.Middleware(), func(context *gin.Context) {
			handlers.CreateContactMessageHandler(context, db, svc)
		})

		//設定
		api.GET("/settings/public", func(context *gin.Context) {
			handlers.GetPublicSettingsHandler(context, db)
		})
		api.GET("/settings", adminRequired, func(context *gin.Context) {
			handlers.GetSettingsHandler(context, db)
		})
		api.POST("/settings", adminRequired, func(context *gin.Context) {
			handlers.UpdateSettingsHandler(context, db, svc)
		})

		//註冊、登入與信箱驗證
		auth := api.Group("/auth")
		{
			auth.POST("/register", registerLimiter.Middleware(), func(context *gin.Context) {
				handlers.RegisterHandler(context, db, svc)
			})
			auth.POST("/login", loginLimiter.Middleware(), func(context *gin.Context) {
				handlers.LoginHandler(context, db, svc)
			})
			auth.POST("/verify-email", func(context *gin.Context) {
				handlers.VerifyEmailHandler(context, db, svc)
			})
			auth.POST("/resend-verification", registerLimiter.Middleware(), func(context *gin.Context) {
				handlers.ResendVerificationHandler(context, db, svc)
			})
			auth.POST("/logout", loginRequired, func(context *gin.Context) {
				handlers.LogOutHandler(context, db)
			})
			auth.GET("/me", loginRequired, func(context *gin.Context) {
				handlers.GetUserProfileHandler(context, db)
			})
		}

		////需要登入
		user := api.Group("/user")
		user.Use(loginRequired)
		{
			user.GET("/profile", func(context *gin.Context) {
				handlers.GetUserProfileHandler(context, db)
			})
			user.PATCH("/profile", func(context *gin.Context) {
				handlers.UpdateUserProfileHandler(context, db)
			})
		}

		wishlist := api.Group("/wishlist")
		wishlist.Use(loginRequired)
		{
			wishlist.GET("", func(context *gin.Context) {
				handlers.GetWishlistHandler(context, db)
			})
			wishlist.POST("", func(context *gin.Context) {
				handlers.AddToWishlistHandler(context, db)
			})
			wishlist.POST("/toggle", func(context *gin.Context) {
				handlers.ToggleWishlistHandler(context, db)
			})
			wishlist.POST("/sync", func(context *gin.Context) {
				handlers.SyncWishlistHandler(context, db)
			})
			wishlist.DELETE("/:productId", func(context *gin.Context) {
				handlers.DeleteWishlistItemHandler(context, db)
			})
			wishlist.DELETE("", func(context *gin.Context) {
				handlers.ClearWishlistHandler(context, db)
			})
		}

		////需要admin身分
		security := api.Group("/security")
		security.Use(adminRequired)
		{
			security.GET("", func(context *gin.Context) {
				handlers.GetSecurityHandler(context, db)
			})
			security.POST("", func(context *gin.Context) {
				handlers.ChangePasswordHandler(context, db)
			})
			security.PUT("", func(context *gin.Context) {
				handlers.UpdateSecuritySettingsHandler(context, db)
			})
			security.DELETE("/sessions/:id", func(context *gin.Context) {
				handlers.RevokeSessionHandler(context, db)
			})
		}

		admin := api.Group("/admin")
		admin.Use(adminRequired)
		{
			//上傳商品圖片
			admin.POST("/uploads", func(context *gin.Context) {
				handlers.UploadImageHandler(context, svc)
			})

			//客戶
			admin.GET("/customers", func(context *gin.Context) {
				handlers.GetCustomerListHandler(context, db)
			})
			admin.GET("/customers/:id", func(context *gin.Context) {
				handlers.GetCustomerDataHandler(context, db)
			})
			admin.PATCH("/customers/:id", func(context *gin.Context) {
				handlers.PatchCustomerHandler(context, db)
			})
			admin.DELETE("/customers/:id", func(context *gin.Context) {
				handlers.DeleteCustomerHandler(context, db)
			})

			//聯絡訊息
			admin.GET("/messages", func(context *gin.Context) {
				handlers.GetMessageListHandler(context, db)
			})
			admin.GET("/messages/:id", func(context *gin.Context) {
				handlers.GetMessageDataHandler(context, db)
			})
			admin.PATCH("/messages/:id", func(context *gin.Context) {
				handlers.UpdateMessageStatusHandler(context, db)
			})
			admin.DELETE("/messages/:id", func(context *gin.Context) {
				handlers.DeleteMessageHandler(context, db)
			})

			//統計
			admin.GET("/analytics/overview", func(context *gin.Context) {
				handlers.GetAnalyticsOverviewHandler(context, db, svc)
			})
			admin.GET("/analytics/sales", func(context *gin.Context) {
				handlers.GetSalesAnalyticsHandler(context, db)
			})
			admin.GET("/analytics/top-products", func(context *gin.Context) {
				handlers.GetTopProductsHandler(context, db)
			})
			admin.GET("/analytics/order-status", func(context *gin.Context) {
				handlers.GetOrderStatusAnalyticsHandler(context, db)
			})
			admin.GET("/analytics/categories", func(context *gin.Context) {
				handlers.GetCategoryAnalyticsHandler(context, db)
			})

			//通知
			admin.GET("/notifications", func(context *gin.Context) {
				handlers.GetNotificationsHandler(context, db)
			})
		}
	}

	return router
}
