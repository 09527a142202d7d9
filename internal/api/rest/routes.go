package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atrkk2024-beep/inskate/internal/api/rest/handlers"
	"github.com/atrkk2024-beep/inskate/internal/api/rest/middleware"
	"github.com/atrkk2024-beep/inskate/internal/db"
	stripeint "github.com/atrkk2024-beep/inskate/internal/integration/stripe"
	"github.com/atrkk2024-beep/inskate/internal/service"
	"github.com/atrkk2024-beep/inskate/pkg/logger"
)

// Deps зависимости HTTP-слоя
type Deps struct {
	Booking         service.BookingService
	Coach           service.CoachService
	Subscription    service.SubscriptionService
	Webhook         service.WebhookService
	Push            service.PushService
	WebhookVerifier *stripeint.WebhookVerifier
	Stats           *db.DBClient
	JWTSecret       string
}

// SetupRouter настраивает маршрутизатор Gin с маршрутами и middleware
func SetupRouter(deps Deps, registry *prometheus.Registry, log *logger.Logger) *gin.Engine {
	r := gin.New()

	r.Use(middleware.LoggerMiddleware(log))
	r.Use(gin.Recovery())

	// Endpoint для проверки работоспособности сервиса
	r.GET("/health", handlers.HealthCheck)

	// Prometheus метрики
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	bookingHandler := handlers.NewBookingHandler(deps.Booking, log)
	coachHandler := handlers.NewCoachHandler(deps.Coach, log)
	subscriptionHandler := handlers.NewSubscriptionHandler(deps.Subscription, log)
	pushHandler := handlers.NewPushHandler(deps.Push, log)
	webhookHandler := handlers.NewWebhookHandler(deps.WebhookVerifier, deps.Webhook, log)
	statsHandler := handlers.NewStatsHandler(deps.Stats, log)

	v1 := r.Group("/api/v1")
	{
		// Публичные маршруты
		v1.GET("/coaches", coachHandler.ListCoaches)
		v1.GET("/coaches/:id", coachHandler.GetCoach)
		v1.GET("/coaches/:id/slots", bookingHandler.ListSlots)
		v1.GET("/plans", subscriptionHandler.ListPlans)

		// Маршруты для аутентифицированных пользователей
		authed := v1.Group("")
		authed.Use(middleware.RequireAuth(deps.JWTSecret, log))
		{
			bookings := authed.Group("/bookings")
			{
				bookings.POST("", bookingHandler.CreateBooking)
				bookings.GET("", bookingHandler.ListMyBookings)
				bookings.GET("/:id", bookingHandler.GetBooking)
				bookings.POST("/:id/cancel", bookingHandler.CancelBooking)
			}

			authed.GET("/packages", bookingHandler.ListMyPackages)

			subscriptions := authed.Group("/subscriptions")
			{
				subscriptions.POST("/checkout", subscriptionHandler.Checkout)
				subscriptions.POST("/portal", subscriptionHandler.CreatePortalSession)
				subscriptions.GET("/me", subscriptionHandler.GetMySubscription)
				subscriptions.DELETE("/me", subscriptionHandler.CancelMySubscription)
			}

			authed.POST("/push/register", pushHandler.RegisterToken)
		}

		// Административные маршруты
		admin := v1.Group("/admin")
		admin.Use(middleware.RequireAuth(deps.JWTSecret, log), middleware.RequireAdmin())
		{
			admin.GET("/bookings", bookingHandler.ListBookings)
			admin.PATCH("/bookings/:id/status", bookingHandler.UpdateBookingStatus)

			admin.POST("/slots", bookingHandler.CreateSlots)
			admin.DELETE("/slots/:id", bookingHandler.DeleteSlot)
			admin.POST("/packages", bookingHandler.CreatePackage)

			admin.POST("/coaches", coachHandler.CreateCoach)
			admin.PUT("/coaches/:id", coachHandler.UpdateCoach)
			admin.DELETE("/coaches/:id", coachHandler.DeleteCoach)

			admin.GET("/subscriptions", subscriptionHandler.ListSubscriptions)
			admin.POST("/subscriptions/grant", subscriptionHandler.GrantSubscription)
			admin.POST("/plans", subscriptionHandler.CreatePlan)
			admin.PUT("/plans/:id", subscriptionHandler.UpdatePlan)

			admin.POST("/push", pushHandler.SendPush)
			admin.GET("/push", pushHandler.ListPush)
			admin.GET("/push/:id", pushHandler.GetPush)
			admin.DELETE("/push/:id", pushHandler.DeletePush)

			admin.GET("/stats", statsHandler.GetDashboardStats)
		}
	}

	// Вебхуки на корневом уровне роутера
	webhooks := r.Group("/webhooks")
	{
		webhooks.POST("/stripe", webhookHandler.HandleStripeWebhook)
	}

	return r
}
