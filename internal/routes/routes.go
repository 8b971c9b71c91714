package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/AnshRaj112/storefront-backend/internal/handlers"
	"github.com/AnshRaj112/storefront-backend/internal/middleware"
	"github.com/AnshRaj112/storefront-backend/internal/models"
)

var (
	adminOnly    = models.Allow(models.RoleAdmin)
	reviewAuthor = models.Allow(models.RoleUser)
	reviewEditor = models.Allow(models.RoleUser, models.RoleAdmin)
)

// Resource mounts a generic handler under /api/v1/{Path}. Catalog resources
// are publicly readable and admin-writable; the rest require a login.
// Presets are read with the same access as the plain listing; Stats is
// admin-only.
type Resource struct {
	Path    string
	Handler *handlers.ResourceHandler
	Catalog bool
	Presets []handlers.Preset
	Stats   http.HandlerFunc
}

type Handlers struct {
	Sessions  middleware.SessionVerifier
	Auth      *handlers.AuthHandler
	Users     *handlers.UserHandler
	Reviews   *handlers.ReviewHandler
	Orders    *handlers.OrderHandler
	Upload    *handlers.UploadHandler
	Resources []Resource
	Metrics   *middleware.Metrics
}

func SetupRoutes(r chi.Router, h Handlers) {
	protect := middleware.Protect(h.Sessions)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Post("/signup", h.Auth.Signup)
			r.Post("/login", h.Auth.Login)
			r.Post("/forgotPassword", h.Auth.ForgotPassword)
			r.Patch("/resetPassword/{token}", h.Auth.ResetPassword)

			r.Group(func(r chi.Router) {
				r.Use(protect)
				r.Patch("/updateMyPassword", h.Auth.UpdatePassword)
				r.Get("/me", h.Users.Me)
				r.Patch("/updateMe", h.Users.UpdateMe)
				r.Delete("/deleteMe", h.Users.DeleteMe)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RestrictTo(adminOnly))
					r.Get("/", h.Users.List)
					r.Get("/{id}", h.Users.Get)
					r.Get("/{id}/authEvents", h.Users.AuthEvents)
				})
			})
		})

		r.Route("/reviews", reviewRoutes(h.Reviews, protect))
		r.Route("/orders", orderRoutes(h.Orders, protect))

		for _, res := range h.Resources {
			res := res
			r.Route("/"+res.Path, func(r chi.Router) {
				resourceRoutes(r, res, protect)
				if res.Path == "products" {
					r.Route("/{productID}/reviews", reviewRoutes(h.Reviews, protect))
				}
			})
		}

		r.With(protect, middleware.RestrictTo(adminOnly)).Post("/uploads", h.Upload.Upload)
	})
}

func resourceRoutes(r chi.Router, res Resource, protect func(http.Handler) http.Handler) {
	if res.Stats != nil {
		r.With(protect, middleware.RestrictTo(adminOnly)).Get("/stats", res.Stats)
	}
	if res.Catalog {
		for _, p := range res.Presets {
			r.Get(p.Path, res.Handler.Preset(p))
		}
		r.Get("/", res.Handler.List)
		r.Get("/{id}", res.Handler.Get)
		r.Group(func(r chi.Router) {
			r.Use(protect, middleware.RestrictTo(adminOnly))
			r.Post("/", res.Handler.Create)
			r.Patch("/{id}", res.Handler.Update)
			r.Delete("/{id}", res.Handler.Delete)
		})
		return
	}
	r.Group(func(r chi.Router) {
		r.Use(protect)
		for _, p := range res.Presets {
			r.Get(p.Path, res.Handler.Preset(p))
		}
		r.Get("/", res.Handler.List)
		r.Post("/", res.Handler.Create)
		r.Get("/{id}", res.Handler.Get)
		r.Patch("/{id}", res.Handler.Update)
		r.Delete("/{id}", res.Handler.Delete)
	})
}

func reviewRoutes(h *handlers.ReviewHandler, protect func(http.Handler) http.Handler) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Group(func(r chi.Router) {
			r.Use(protect)
			r.With(middleware.RestrictTo(reviewAuthor)).Post("/", h.Create)
			r.With(middleware.RestrictTo(reviewEditor)).Patch("/{id}", h.Update)
			r.With(middleware.RestrictTo(reviewEditor)).Delete("/{id}", h.Delete)
		})
	}
}

func orderRoutes(h *handlers.OrderHandler, protect func(http.Handler) http.Handler) func(chi.Router) {
	return func(r chi.Router) {
		r.Post("/guest", h.PlaceGuest)
		r.Get("/track/{orderNumber}", h.Track)
		r.Group(func(r chi.Router) {
			r.Use(protect)
			r.Post("/", h.Place)
			r.Get("/", h.List)
			r.Get("/{id}", h.Get)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RestrictTo(adminOnly))
				r.Get("/status/{status}", h.ByStatus)
				r.Patch("/{id}/status", h.UpdateStatus)
				r.Delete("/{id}", h.Delete)
			})
		})
	}
}
