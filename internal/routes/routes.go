package routes

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"shop_back_end/internal/audit"
	"shop_back_end/internal/auth"
	"shop_back_end/internal/handlers/admin"
	"shop_back_end/internal/handlers/product"
	"shop_back_end/internal/handlers/user"
	mw "shop_back_end/internal/middleware"
	"shop_back_end/internal/models"
	"shop_back_end/internal/services"
)

// Pinger reports whether a backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies is everything the HTTP surface needs. Revoker, AuditRecorder,
// AuditReader and Health entries are optional.
type Dependencies struct {
	Issuer   *auth.Issuer
	Revoker  auth.Revoker
	Accounts *services.AccountService
	Catalog  *services.CatalogService
	Carts    *services.CartService
	Orders   *services.OrderService

	AuditRecorder audit.Recorder
	AuditReader   audit.Reader

	Health map[string]Pinger
}

// Options controls the engine-level middleware.
type Options struct {
	Prefix      string
	CORSOrigins []string
}

type Route struct {
	Method   string
	Path     string
	Handlers []gin.HandlerFunc
}

// NewRouter builds the gin engine with the whole API mounted under
// opts.Prefix.
func NewRouter(opts Options, deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(mw.RequestID(), mw.RequestLogger(), mw.Recovery(), cors.New(corsConfig(opts.CORSOrigins)))
	r.HandleMethodNotAllowed = true
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found", "code": "ROUTE_NOT_FOUND"})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed", "code": "METHOD_NOT_ALLOWED"})
	})

	RegisterRoutes(r.Group(opts.Prefix), deps)
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", mw.RequestIDHeader},
		ExposeHeaders: []string{mw.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && strings.TrimSpace(origins[0]) == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cfg
}

// RegisterRoutes mounts every API route on g.
func RegisterRoutes(g *gin.RouterGroup, deps Dependencies) {
	for _, rt := range Table(deps) {
		g.Handle(rt.Method, rt.Path, rt.Handlers...)
	}
}

// Table lists the API routes with their gates.
func Table(deps Dependencies) []Route {
	users := user.NewHandler(deps.Accounts, deps.Carts, deps.Orders)
	products := product.NewHandler(deps.Catalog)
	admins := admin.NewHandler(deps.Orders, deps.AuditReader)

	authed := mw.AuthRequired(deps.Issuer, deps.Revoker)
	catalogRoles := mw.RequireRoles(models.RoleAdmin, models.RoleVendor)
	adminOnly := mw.RequireAdmin()
	audited := func(action, resource string) gin.HandlerFunc {
		return mw.AuditCriticalActions(deps.AuditRecorder, action, resource)
	}
	chain := func(hs ...gin.HandlerFunc) []gin.HandlerFunc { return hs }

	table := []Route{
		// Auth
		{http.MethodPost, "/auth/register", chain(audited(audit.ActionRegister, audit.ResourceAuth), users.Register)},
		{http.MethodPost, "/auth/login", chain(audited(audit.ActionLoginSuccess, audit.ResourceAuth), users.Login)},
		{http.MethodGet, "/auth/profile", chain(authed, users.Profile)},
		{http.MethodPut, "/auth/change-password", chain(authed, audited(audit.ActionPasswordChange, audit.ResourceAuth), users.ChangePassword)},
		{http.MethodPost, "/auth/logout", chain(authed, audited(audit.ActionLogout, audit.ResourceAuth), users.Logout)},

		// Products
		{http.MethodGet, "/products", chain(products.GetAllProducts)},
		{http.MethodGet, "/products/search", chain(products.SearchProducts)},
		{http.MethodGet, "/products/:id", chain(products.GetProduct)},
		{http.MethodPost, "/products", chain(authed, catalogRoles, audited(audit.ActionProductCreate, audit.ResourceProduct), products.CreateProduct)},
		{http.MethodPut, "/products/:id", chain(authed, catalogRoles, audited(audit.ActionProductUpdate, audit.ResourceProduct), products.UpdateProduct)},
		{http.MethodDelete, "/products/:id", chain(authed, catalogRoles, audited(audit.ActionProductDelete, audit.ResourceProduct), products.DeleteProduct)},
		{http.MethodDelete, "/products", chain(authed, adminOnly, audited(audit.ActionProductDeleteAll, audit.ResourceProduct), products.DeleteAllProducts)},

		// Categories
		{http.MethodGet, "/categories", chain(products.GetCategories)},
		{http.MethodPost, "/categories", chain(authed, adminOnly, audited(audit.ActionCategoryCreate, audit.ResourceCategory), products.CreateCategory)},
		{http.MethodDelete, "/categories/:id", chain(authed, adminOnly, audited(audit.ActionCategoryDelete, audit.ResourceCategory), products.DeleteCategory)},

		// Cart
		{http.MethodGet, "/cart", chain(authed, users.GetCart)},
		{http.MethodPost, "/cart", chain(authed, users.AddToCart)},
		{http.MethodDelete, "/cart/clear", chain(authed, users.ClearCart)},
		{http.MethodDelete, "/cart/:id", chain(authed, users.RemoveFromCart)},

		// Orders
		{http.MethodPost, "/orders", chain(authed, audited(audit.ActionOrderCreate, audit.ResourceOrder), users.CreateOrder)},
		{http.MethodGet, "/orders", chain(authed, users.GetMyOrders)},
		{http.MethodGet, "/orders/:id", chain(authed, users.GetOrderByID)},
		{http.MethodPatch, "/orders/:id/cancel", chain(authed, audited(audit.ActionOrderCancel, audit.ResourceOrder), users.CancelOrder)},

		// Admin
		{http.MethodGet, "/admin/orders", chain(authed, adminOnly, admins.GetAllOrders)},
		{http.MethodPatch, "/admin/orders/:id/status", chain(authed, adminOnly, audited(audit.ActionOrderStatusUpdate, audit.ResourceOrder), admins.UpdateOrderStatus)},

		{http.MethodGet, "/health", chain(health(deps.Health))},
	}
	if deps.AuditReader != nil {
		table = append(table, Route{http.MethodGet, "/admin/audit-logs", chain(authed, adminOnly, admins.GetAuditLogs)})
	}
	return table
}

func health(backends map[string]Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := gin.H{}
		for name, p := range backends {
			if err := p.Ping(ctx); err != nil {
				checks[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "up"
		}
		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		c.JSON(status, gin.H{"status": state, "checks": checks})
	}
}
