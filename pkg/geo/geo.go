package geo

import "math"

// earthRadiusM 地球平均半径（米）
const earthRadiusM = 6371000.0

// Point 经纬度坐标
type Point struct {
	Longitude float64
	Latitude  float64
}

// Distance 计算两点间的大圆距离（Haversine 公式），单位米
func Distance(a, b Point) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusM * c
}

// WithinRadius 判断 claimed 是否落在以 center 为圆心、radiusM 为半径的地理围栏内
func WithinRadius(center, claimed Point, radiusM float64) bool {
	return Distance(center, claimed) <= radiusM
}
