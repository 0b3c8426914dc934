package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/annel0/mmo-game/internal/engine"
	"github.com/annel0/mmo-game/internal/vec"
)

// registerAdminRoutes exposes a minimal debug/admin surface over the
// engine façade (spec §6), matching the endpoints SPEC_FULL.md §2
// names for the gin-backed REST shell: /tick, /voxel, /component. r is
// a route group so the caller can guard the whole surface behind
// middleware (the admin JWT guard) without touching this function.
func registerAdminRoutes(r gin.IRoutes, eng *engine.Engine) {
	r.POST("/tick", func(c *gin.Context) {
		var body struct {
			DT float64 `json:"dt"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.DT <= 0 {
			body.DT = 0.05
		}
		eng.Tick(body.DT)
		c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
	})

	r.GET("/voxel", func(c *gin.Context) {
		pos, ok := parsePos(c)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid x/y/z"})
			return
		}
		v := eng.GetVoxel(pos)
		c.JSON(http.StatusOK, gin.H{
			"solid": v.Solid, "fluid": v.Fluid, "viscosity": v.Viscosity,
			"settled": v.Settled, "valid": v.Valid,
		})
	})

	r.POST("/voxel/fluid", func(c *gin.Context) {
		var body struct {
			X     int    `json:"x"`
			Y     int    `json:"y"`
			Z     int    `json:"z"`
			Add   bool   `json:"add"`
			Fluid string `json:"fluid"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		pos := vec.Vec3{X: body.X, Y: body.Y, Z: body.Z}
		if err := eng.ModifyFluid(pos, body.Add, body.Fluid); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
	})

	r.GET("/component", func(c *gin.Context) {
		pos, ok := parsePos(c)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid x/y/z"})
			return
		}
		comp, found := eng.Component(pos)
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "no component at position"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"id": comp.ID, "viscosity": comp.Viscosity, "count": comp.Count,
			"water_level": comp.WaterLevel, "settled": comp.Settled,
		})
	})
}

func parsePos(c *gin.Context) (vec.Vec3, bool) {
	x, errX := strconv.Atoi(c.Query("x"))
	y, errY := strconv.Atoi(c.Query("y"))
	z, errZ := strconv.Atoi(c.Query("z"))
	if errX != nil || errY != nil || errZ != nil {
		return vec.Vec3{}, false
	}
	return vec.Vec3{X: x, Y: y, Z: z}, true
}
