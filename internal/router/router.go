package router

import (
	"github.com/shopcore/orderpay/internal/logger"
	"github.com/shopcore/orderpay/internal/middleware"
	"github.com/shopcore/orderpay/internal/order"
	"github.com/shopcore/orderpay/internal/payment"
	"github.com/shopcore/orderpay/internal/user"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(
	userH *user.Handler,
	orderH *order.Handler,
	paymentH *payment.Handler,
	jwtSecret []byte,
	userRepo user.UserRepository,
	webhookSecret string,
) chi.Router {
	r := chi.NewRouter()

	r.Use(logger.WithLogging)
	r.Use(chiMiddleware.Recoverer)

	r.Use(middleware.GzipHandler)

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/register", userH.Register)
		r.Post("/login", userH.Login)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.JWTMiddleware(jwtSecret, userRepo))

		r.Post("/api/orders", orderH.PlaceOrder)
		r.Get("/api/orders", orderH.ListOrders)
		r.Get("/api/orders/{orderID}", orderH.GetOrder)
		r.Post("/api/orders/{orderID}/cancel", orderH.CancelOrder)
		r.Delete("/api/orders/{orderID}", orderH.DeleteOrder)

		r.Post("/api/payments/intent", paymentH.CreateIntent)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AdminOnly)
			r.Get("/api/orders/admin", orderH.AdminList)
			r.Put("/api/orders/admin/{orderID}", orderH.SetStatus)
			r.Delete("/api/orders/admin/{orderID}", orderH.AdminDelete)
		})
	})

	// Processor callback, authenticated by body signature instead of JWT.
	r.With(middleware.SignatureHandler(webhookSecret)).
		Put("/api/payments/{orderID}/status", paymentH.UpdateStatus)

	return r
}
