package api

func (s *Server) setupRoutes() {
	s.router.GET("/", s.healthHandler.WorkerInfo)
	s.router.GET("/health", s.healthHandler.HealthCheck)

	runs := s.router.Group("/runs")
	{
		runs.GET("", s.runsHandler.ListRuns)
		runs.POST("", s.runsHandler.SubmitRun)
		runs.GET("/:id", s.runsHandler.GetRun)
		runs.DELETE("/:id", s.runsHandler.CancelRun)
		runs.GET("/:id/crossings", s.runsHandler.GetCrossings)
	}

	system := s.router.Group("/system")
	{
		system.GET("/stats", s.systemHandler.GetStats)
	}
}
