// Package mercator implements the EPSG:3857 web-mercator grid math shared by
// the AABB decorator, the draw-list generator and the tile-load URL builder.
package mercator

import (
	"math"

	"github.com/alpinemaps/terrainclient/internal/tileid"
)

// WorldExtent is half the circumference of the web-mercator square, in
// meters: the standard ±20037508.3427892 m world bound.
const WorldExtent = 20037508.3427892

// EarthCircumference is the equatorial circumference in meters at zoom 0.
const EarthCircumference = WorldExtent * 2

// DefaultTileSize is the standard web map tile dimension in pixels.
const DefaultTileSize = 256

// Bounds3857 is an axis-aligned rectangle in EPSG:3857 meters.
type Bounds3857 struct {
	MinX, MinY, MaxX, MaxY float64
}

// TileBounds returns the EPSG:3857 bounds of a tile. X always increases
// eastward; for SlippyMap (north-up) tiles Y increases southward from the
// top of the world, for TMS (south-up) tiles Y increases northward from the
// bottom, matching the two Y conventions used across tile-server
// protocols in the wild.
func TileBounds(id tileid.ID) Bounds3857 {
	n := math.Exp2(float64(id.Zoom))
	tileWorld := EarthCircumference / n

	minX := -WorldExtent + float64(id.X)*tileWorld
	maxX := minX + tileWorld

	var minY, maxY float64
	switch id.Scheme {
	case tileid.TMS:
		minY = -WorldExtent + float64(id.Y)*tileWorld
		maxY = minY + tileWorld
	default: // SlippyMap
		maxY = WorldExtent - float64(id.Y)*tileWorld
		minY = maxY - tileWorld
	}
	return Bounds3857{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
}

// LonLatToWorld converts WGS84 lon/lat (degrees) to EPSG:3857 meters.
func LonLatToWorld(lon, lat float64) (x, y float64) {
	x = lon * WorldExtent / 180.0
	y = math.Log(math.Tan((90.0+lat)*math.Pi/360.0)) / (math.Pi / 180.0)
	y = y * WorldExtent / 180.0
	return
}

// WorldToLonLat converts EPSG:3857 meters back to WGS84 lon/lat (degrees).
// This is the inverse used by law L3 (round trip within 1e-6 deg for |lat| <=
// 85.05).
func WorldToLonLat(x, y float64) (lon, lat float64) {
	lon = (x / WorldExtent) * 180.0
	lat = (y / WorldExtent) * 180.0
	lat = 180.0 / math.Pi * (2.0*math.Atan(math.Exp(lat*math.Pi/180.0)) - math.Pi/2.0)
	return
}

// LonLatToTile converts WGS84 lon/lat to the SlippyMap tile coordinate
// containing the point at the given zoom level, clamped to the valid range.
func LonLatToTile(lon, lat float64, zoom uint8) (x, y uint32) {
	n := math.Exp2(float64(zoom))
	fx := math.Floor((lon + 180.0) / 360.0 * n)
	latRad := lat * math.Pi / 180.0
	fy := math.Floor((1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0 * n)

	maxTile := n - 1
	fx = clamp(fx, 0, maxTile)
	fy = clamp(fy, 0, maxTile)
	return uint32(fx), uint32(fy)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ResolutionAtLat returns the ground resolution in meters/pixel at the given
// latitude and zoom level, for the given tile pixel size.
func ResolutionAtLat(lat float64, zoom uint8, tileSize int) float64 {
	return EarthCircumference * math.Cos(lat*math.Pi/180.0) / math.Exp2(float64(zoom)) / float64(tileSize)
}
