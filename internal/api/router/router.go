package router

import (
	"github.com/wb-go/wbf/ginext"

	"github.com/batchpix/batchpix/internal/api/handlers/task"
)

func Setup(h *task.Handler) *ginext.Engine {
	r := ginext.New()

	r.Use(ginext.Logger())
	r.Use(ginext.Recovery())

	api := r.Group("/api")

	api.POST("/jobs", h.Submit)                 // submitting a batch job
	api.GET("/tasks/:id", h.Status)             // task status and progress
	api.DELETE("/tasks/:id", h.Cancel)          // cancelling one task
	api.POST("/tasks/cancel_all", h.CancelAll)  // cancelling everything
	api.GET("/pool", h.ListPool)                // listing the image pool
	api.POST("/pool", h.AddToPool)              // adding an image reference
	api.DELETE("/pool/:id", h.RemoveFromPool)   // removing an image reference
	api.GET("/runs", h.ListRuns)                // recorded run history

	return r
}
