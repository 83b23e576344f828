package server

import (
	"net/http"
	"time"

	handler "vehicle-auction/services/auction/handler"
	"vehicle-auction/utils"

	"github.com/gin-gonic/gin"
)

// SessionService is what the router needs from the session manager
type SessionService interface {
	handler.SessionServiceInterface
	SessionResolver
}

type Options struct {
	SessionTTL   time.Duration
	SecureCookie bool
}

// SetupRouter configures all Gin routes for the application
func SetupRouter(sessions SessionService, auctions handler.AuctionServiceInterface, opts Options) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestLoggerMiddleware) // custom request logging
	router.Use(SessionMiddleware(sessions))

	authHandler := handler.NewAuthHandler(sessions, opts.SessionTTL, opts.SecureCookie)
	auctionHandler := handler.NewAuctionHandler(auctions)

	router.GET("/health", func(c *gin.Context) {
		utils.JSONResponse(c, http.StatusOK, gin.H{"ok": true}, "healthy")
	})

	api := router.Group("/api")
	{
		api.GET("/check-auth", authHandler.CheckAuthHandler)
		api.POST("/login", authHandler.LoginHandler)
		api.POST("/register", authHandler.RegisterHandler)
		api.POST("/logout", authHandler.LogoutHandler)

		api.GET("/vehicles", auctionHandler.ListVehiclesHandler)
		api.GET("/vehicles/:vehicle_id", auctionHandler.GetVehicleHandler)
		api.GET("/vehicles/:vehicle_id/bids", auctionHandler.GetBidsByVehicleHandler)
	}

	authed := api.Group("", RequireAuth)
	{
		authed.POST("/bid", auctionHandler.PlaceBidHandler)
		authed.GET("/notifications", auctionHandler.ListNotificationsHandler)
		authed.POST("/notifications/mark-read/:id", auctionHandler.MarkNotificationReadHandler)
		authed.GET("/profile", auctionHandler.ProfileHandler)
		authed.GET("/profile/bids", auctionHandler.ProfileBidsHandler)
		authed.POST("/profile/add-funds", auctionHandler.AddFundsHandler)
	}

	admin := api.Group("/admin", RequireAdmin)
	{
		admin.POST("/vehicles", auctionHandler.CreateVehicleHandler)
		admin.POST("/vehicles/edit/:id", auctionHandler.EditVehicleHandler)
		admin.POST("/vehicles/delete/:id", auctionHandler.DeleteVehicleHandler)
		admin.POST("/vehicles/mark-sold/:id", auctionHandler.MarkSoldHandler)
		admin.GET("/users", auctionHandler.ListUsersHandler)
	}

	return router
}
