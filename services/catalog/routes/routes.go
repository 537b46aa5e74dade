// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianMarket/services/catalog/handlers"
)

// SetupRoutes registers the catalog API on router.
func SetupRoutes(router *gin.Engine, deps *handlers.Deps) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.GET("/apps", handlers.ListApps(deps))
		v1.GET("/apps/:id", handlers.GetApp(deps))
		v1.GET("/authors/:author", handlers.GetAuthor(deps))
		v1.GET("/summary", handlers.GetSummary(deps))

		// Fixed listings kept for existing report links
		listing := v1.Group("/listing")
		{
			listing.GET("/author/:author", handlers.ListByAuthor(deps))
			listing.GET("/num_ratings/:num_ratings", handlers.ListByNumRatings(deps))
		}

		v1.GET("/graphs", handlers.ListGraphs(deps))
		v1.GET("/distribution/:graph", handlers.Distribution(deps))
		v1.GET("/frequency/:graph", handlers.Frequency(deps))
		v1.GET("/pie/:graph", handlers.Pie(deps))

		v1.GET("/rebuild", handlers.RebuildProgress(deps))
		v1.POST("/rebuild", handlers.StartRebuild(deps))
	}
}
