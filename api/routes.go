package api

// registerRoutes registers all API routes
func (s *Server) registerRoutes() {
	api := s.router.Group("/api")
	{
		// Authentication routes
		auth := api.Group("/auth")
		{
			auth.POST("/login", s.handleLogin)

			authProtected := auth.Group("")
			authProtected.Use(s.AuthMiddleware())
			{
				authProtected.GET("/whoami", s.handleWhoAmI)
				authProtected.POST("/refresh", s.handleRefreshToken)
			}
		}

		// Node registry routes (public read, protected write)
		nodes := api.Group("/nodes")
		{
			nodes.GET("", s.handleListNodes)
			nodes.GET("/aggregates", s.handleGetAggregates)
			nodes.GET("/:address", s.handleGetNode)
			nodes.GET("/:address/jobs", s.handleRecommendedJobs)

			nodesProtected := nodes.Group("")
			nodesProtected.Use(s.AuthMiddleware())
			{
				nodesProtected.POST("", s.handleRegisterNode)
				nodesProtected.POST("/batch", s.handleRegisterBatch)
				nodesProtected.DELETE("/self", s.handleUnregisterNode)
				nodesProtected.POST("/self/attestation", s.handleRenewAttestation)
				nodesProtected.POST("/self/ping", s.handlePing)
				nodesProtected.PUT("/self/power-saving", s.handleSetPowerSaving)
				nodesProtected.POST("/:address/slash", s.handleSlashNode)
				nodesProtected.POST("/:address/reputation", s.handleUpdateReputation)
			}
		}

		// Capability catalog routes
		catalog := api.Group("/catalog")
		{
			catalog.GET("", s.handleListProfiles)
			catalog.GET("/counts", s.handleDeviceTypeCounts)

			catalogProtected := catalog.Group("")
			catalogProtected.Use(s.AuthMiddleware())
			{
				catalogProtected.PUT("/:device_type", s.handleSetProfile)
				catalogProtected.DELETE("/:device_type", s.handleRemoveProfile)
			}
		}

		// Job routes
		jobs := api.Group("/jobs")
		{
			jobs.GET("", s.handleListJobs)
			jobs.GET("/:id", s.handleGetJob)
			jobs.GET("/:id/quote", s.handleQuotePrice)

			jobsProtected := jobs.Group("")
			jobsProtected.Use(s.AuthMiddleware())
			{
				jobsProtected.POST("", s.handleCreateJob)
				jobsProtected.GET("/mine", s.handleMyJobs)
				jobsProtected.POST("/:id/audit", s.handleSetJobAudit)
				jobsProtected.POST("/:id/assign", s.handleAssignJob)
				jobsProtected.POST("/:id/start", s.handleStartJob)
				jobsProtected.POST("/:id/complete", s.handleCompleteJob)
				jobsProtected.POST("/:id/settle", s.handleSettleJob)
				jobsProtected.POST("/:id/cancel", s.handleCancelJob)
			}
		}

		// Escrow routes
		escrow := api.Group("/escrow")
		{
			escrow.GET("/:job_id", s.handleGetEscrow)

			escrowProtected := escrow.Group("")
			escrowProtected.Use(s.AuthMiddleware())
			{
				escrowProtected.POST("/:job_id/fund", s.handleFundEscrow)
			}
		}

		// Signal routes
		signals := api.Group("/signals")
		{
			signals.GET("/certificates/:node", s.handleGetCertificate)
			signals.GET("/scores/:node", s.handleGetNodeScore)
			signals.GET("/forecasts/:job_type", s.handleGetForecast)
			signals.GET("/predictions", s.handlePendingPredictions)
			signals.POST("/certificates", s.handleSubmitCertificate)

			signalsProtected := signals.Group("")
			signalsProtected.Use(s.AuthMiddleware())
			{
				signalsProtected.DELETE("/certificates/:node", s.handleRevokeCertificate)
				signalsProtected.PUT("/scores/:node", s.handleSetNodeScore)
				signalsProtected.PUT("/forecasts/:job_type", s.handleSetForecast)
				signalsProtected.POST("/predictions/:id/fulfill", s.handleFulfillPrediction)
			}
		}

		// Admin routes
		admin := api.Group("/admin")
		{
			admin.GET("/circuit", s.handleCircuitStatus)
			admin.GET("/params", s.handleGetParams)

			adminProtected := admin.Group("")
			adminProtected.Use(s.AuthMiddleware())
			{
				adminProtected.POST("/pause", s.handlePause)
				adminProtected.POST("/resume", s.handleResume)
				adminProtected.PUT("/params/registry", s.handleUpdateRegistryParams)
				adminProtected.PUT("/params/scheduler", s.handleUpdateSchedulerParams)
				adminProtected.POST("/roles", s.handleGrantRole)
				adminProtected.DELETE("/roles", s.handleRevokeRole)
			}
		}

		// Event log routes
		api.GET("/events", s.handleListEvents)
	}

	// WebSocket endpoint
	s.router.GET("/ws", s.handleWebSocket)
}
