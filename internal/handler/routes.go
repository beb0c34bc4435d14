package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bahiamar/hoa-backend/internal/middleware"
)

// RegisterRoutes sets up all API routes
func RegisterRoutes(e *echo.Echo, rl *middleware.RateLimiter, clientHandler *ClientHandler, transactionHandler *TransactionHandler, duesHandler *DuesHandler, waterHandler *WaterHandler, paymentHandler *PaymentHandler, reportHandler *ReportHandler, adminHandler *AdminHandler, wsHandler *WebSocketHandler) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// API version 1
	api := e.Group("/api/v1")
	api.Use(middleware.Principal())
	api.Use(middleware.RateLimitMiddleware(rl))

	api.GET("/clients", clientHandler.ListClients)
	api.GET("/rates", reportHandler.GetExchangeRate)

	// Per-client routes; access guards read :clientId.
	client := api.Group("/clients/:clientId")

	read := client.Group("", middleware.RequireClientRead())
	read.GET("", clientHandler.GetClient)
	read.GET("/units", clientHandler.ListUnits)
	read.GET("/units/:unitId", clientHandler.GetUnit)
	read.GET("/categories", clientHandler.ListCategories)
	read.GET("/vendors", clientHandler.ListVendors)
	read.GET("/budgets/:year", clientHandler.ListBudgets)
	read.GET("/transactions", transactionHandler.ListTransactions)
	read.GET("/transactions/:id", transactionHandler.GetTransaction)
	read.GET("/dues/:year", duesHandler.ListYearDues)
	read.GET("/units/:unitId/dues/:year", duesHandler.GetUnitDues)
	read.GET("/water/readings/:year/:month", waterHandler.GetReadings)
	read.GET("/water/bills", waterHandler.ListBills)
	read.GET("/water/bills/:year/:quarter", waterHandler.GetBill)
	read.GET("/units/:unitId/water/open", waterHandler.ListOpenBills)
	read.GET("/units/:unitId/statement/:year", reportHandler.GetStatement)
	read.GET("/reports/budget-actual/:year", reportHandler.GetBudgetVsActual)

	write := client.Group("", middleware.RequireClientWrite())
	write.PUT("/water-config", clientHandler.UpdateWaterConfig)
	write.PUT("/budgets/:year", clientHandler.SetBudget)
	write.POST("/transactions", transactionHandler.CreateTransaction)
	write.PUT("/water/readings/:year/:month", waterHandler.UpsertReadings)
	write.POST("/water/bills", waterHandler.GenerateBill)
	write.POST("/water/penalties/recalculate", waterHandler.RecalculatePenalties)
	write.POST("/units/:unitId/payments/preview", paymentHandler.PreviewPayment)
	write.POST("/units/:unitId/payments", paymentHandler.CommitPayment)

	admin := client.Group("", middleware.RequireClientAdmin())
	admin.DELETE("/transactions/:id", transactionHandler.DeleteTransaction)
	admin.POST("/admin/import", adminHandler.StartImport)
	admin.POST("/admin/purge", adminHandler.StartPurge)
	admin.GET("/admin/jobs", adminHandler.GetJobs)
	admin.DELETE("/admin/jobs", adminHandler.CancelJob)
	admin.GET("/admin/audit", adminHandler.ListAudit)

	// WebSocket event stream, outside the rate limiter.
	ws := e.Group("/ws", middleware.Principal())
	ws.GET("/clients/:clientId", wsHandler.HandleWS, middleware.RequireClientRead())
}
