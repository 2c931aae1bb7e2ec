package services

import (
	"fmt"
	"math"
	"strings"
	"time"

	"astra/models"
)

var ZodiacSigns = []string{
	"Aries", "Taurus", "Gemini", "Cancer", "Leo", "Virgo",
	"Libra", "Scorpio", "Sagittarius", "Capricorn", "Aquarius", "Pisces",
}

var Nakshatras = []string{
	"Ashwini", "Bharani", "Krittika", "Rohini", "Mrigashira", "Ardra", "Punarvasu",
	"Pushya", "Ashlesha", "Magha", "Purva Phalguni", "Uttara Phalguni", "Hasta",
	"Chitra", "Swati", "Vishakha", "Anuradha", "Jyeshtha", "Mula", "Purva Ashadha",
	"Uttara Ashadha", "Shravana", "Dhanishta", "Shatabhisha", "Purva Bhadrapada",
	"Uttara Bhadrapada", "Revati",
}

// 惑星の表示順
var grahaOrder = []string{"Sun", "Moon", "Mars", "Mercury", "Jupiter", "Venus", "Saturn", "Rahu", "Ketu"}

// orbitalElements は J2000 基準のケプラー要素と世紀あたりの変化率
type orbitalElements struct {
	a, e, i, l, peri, node                   float64
	aDot, eDot, iDot, lDot, periDot, nodeDot float64
}

// 近似ケプラー要素 (1800-2050 年で有効)
var planetElements = map[string]orbitalElements{
	"Mercury": {0.38709927, 0.20563593, 7.00497902, 252.25032350, 77.45779628, 48.33076593,
		0.00000037, 0.00001906, -0.00594749, 149472.67411175, 0.16047689, -0.12534081},
	"Venus": {0.72333566, 0.00677672, 3.39467605, 181.97909950, 131.60246718, 76.67984255,
		0.00000390, -0.00004107, -0.00078890, 58517.81538729, 0.00268329, -0.27769418},
	"Earth": {1.00000261, 0.01671123, -0.00001531, 100.46457166, 102.93768193, 0.0,
		0.00000562, -0.00004392, -0.01294668, 35999.37244981, 0.32327364, 0.0},
	"Mars": {1.52371034, 0.09339410, 1.84969142, -4.55343205, -23.94362959, 49.55953891,
		0.00001847, 0.00007882, -0.00813131, 19140.30268499, 0.44441088, -0.29257343},
	"Jupiter": {5.20288700, 0.04838624, 1.30439695, 34.39644051, 14.72847983, 100.47390909,
		-0.00011607, -0.00013253, -0.00183714, 3034.74612775, 0.21252668, 0.20469106},
	"Saturn": {9.53667594, 0.05386179, 2.48599187, 49.95424423, 92.59887831, 113.66242448,
		-0.00125060, -0.00050991, 0.00193609, 1222.49362201, -0.41897216, -0.28867794},
}

// AstroService は恒星黄道 (ラヒリ)・ホールサイン方式でチャートを計算する
type AstroService struct{}

func NewAstroService() *AstroService {
	return &AstroService{}
}

// JulianDay は時刻のユリウス日
func JulianDay(t time.Time) float64 {
	return float64(t.UTC().UnixNano())/86400e9 + 2440587.5
}

// LahiriAyanamsa は歳差の線形近似
func LahiriAyanamsa(jd float64) float64 {
	t := (jd - 2451545.0) / 36525.0
	return 23.853 + 1.3972*t
}

// NatalChart は出生時刻と座標からチャートを計算する (同じ入力なら同じ結果)
func (a *AstroService) NatalChart(at time.Time, lat, lon float64) models.NatalChart {
	jd := JulianDay(at)
	ayanamsa := LahiriAyanamsa(jd)

	asc := normalizeDegrees(ascendant(jd, lat, lon) - ayanamsa)
	ascPos := position("Ascendant", asc)

	chart := models.NatalChart{
		JulianDay:   round(jd, 6),
		Ayanamsa:    round(ayanamsa, 4),
		HouseSystem: "whole_sign",
		Ascendant:   ascPos,
	}
	ascSign := signIndex(asc)

	for _, name := range grahaOrder {
		lonNow := siderealLongitude(name, jd, ayanamsa)
		p := position(name, lonNow)
		p.House = (signIndex(lonNow)-ascSign+12)%12 + 1
		p.Retrograde = isRetrograde(name, jd, ayanamsa)
		chart.Planets = append(chart.Planets, p)
	}
	return chart
}

// Transits は現在の惑星位置を出生チャートのハウスに重ねる
func (a *AstroService) Transits(now time.Time, natal models.NatalChart) []models.PlanetPosition {
	jd := JulianDay(now)
	ayanamsa := LahiriAyanamsa(jd)
	ascSign := signIndex(natal.Ascendant.Longitude)

	var transits []models.PlanetPosition
	for _, name := range grahaOrder {
		lonNow := siderealLongitude(name, jd, ayanamsa)
		p := position(name, lonNow)
		p.House = (signIndex(lonNow)-ascSign+12)%12 + 1
		p.Retrograde = isRetrograde(name, jd, ayanamsa)
		transits = append(transits, p)
	}
	return transits
}

// NatalContext はプロンプト用のチャート要約
func NatalContext(c models.NatalChart) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ascendant (Lagna): %s %.1f° (%s nakshatra)\n", c.Ascendant.Sign, c.Ascendant.Degree, c.Ascendant.Nakshatra)
	for _, p := range c.Planets {
		retro := ""
		if p.Retrograde && p.Name != "Rahu" && p.Name != "Ketu" {
			retro = ", retrograde"
		}
		fmt.Fprintf(&b, "%s: %s %.1f° in house %d, %s nakshatra%s\n", p.Name, p.Sign, p.Degree, p.House, p.Nakshatra, retro)
	}
	if moon, ok := c.Planet("Moon"); ok {
		fmt.Fprintf(&b, "Moon sign (Rashi): %s\n", moon.Sign)
	}
	return strings.TrimRight(b.String(), "\n")
}

// TransitContext はプロンプト用の現在のトランジット要約
func TransitContext(transits []models.PlanetPosition) string {
	var b strings.Builder
	for _, p := range transits {
		if p.Name == "Moon" {
			continue
		}
		retro := ""
		if p.Retrograde && p.Name != "Rahu" && p.Name != "Ketu" {
			retro = " (retrograde)"
		}
		fmt.Fprintf(&b, "%s transiting %s, natal house %d%s\n", p.Name, p.Sign, p.House, retro)
	}
	return strings.TrimRight(b.String(), "\n")
}

func siderealLongitude(name string, jd, ayanamsa float64) float64 {
	return normalizeDegrees(tropicalLongitude(name, jd) - ayanamsa)
}

// tropicalLongitude は日付分点基準の地心黄経
func tropicalLongitude(name string, jd float64) float64 {
	t := (jd - 2451545.0) / 36525.0
	switch name {
	case "Moon":
		return moonLongitude(t)
	case "Rahu":
		return normalizeDegrees(125.04452 - 1934.136261*t)
	case "Ketu":
		return normalizeDegrees(125.04452 - 1934.136261*t + 180)
	}

	ex, ey, _ := heliocentric(planetElements["Earth"], t)
	var x, y float64
	if name == "Sun" {
		x, y = -ex, -ey
	} else {
		px, py, _ := heliocentric(planetElements[name], t)
		x, y = px-ex, py-ey
	}
	// J2000 黄経に一般歳差を加える
	return normalizeDegrees(deg(math.Atan2(y, x)) + 1.396971*t)
}

func heliocentric(el orbitalElements, t float64) (x, y, z float64) {
	a := el.a + el.aDot*t
	e := el.e + el.eDot*t
	inc := rad(el.i + el.iDot*t)
	l := el.l + el.lDot*t
	peri := el.peri + el.periDot*t
	node := el.node + el.nodeDot*t

	m := rad(normalizeDegrees(l - peri))
	w := rad(peri - node)
	o := rad(node)

	// ケプラー方程式をニュートン法で解く
	ea := m + e*math.Sin(m)
	for i := 0; i < 10; i++ {
		d := (ea - e*math.Sin(ea) - m) / (1 - e*math.Cos(ea))
		ea -= d
		if math.Abs(d) < 1e-10 {
			break
		}
	}

	xp := a * (math.Cos(ea) - e)
	yp := a * math.Sqrt(1-e*e) * math.Sin(ea)

	cw, sw := math.Cos(w), math.Sin(w)
	co, so := math.Cos(o), math.Sin(o)
	ci, si := math.Cos(inc), math.Sin(inc)

	x = (cw*co-sw*so*ci)*xp + (-sw*co-cw*so*ci)*yp
	y = (cw*so+sw*co*ci)*xp + (-sw*so+cw*co*ci)*yp
	z = (sw*si)*xp + (cw*si)*yp
	return x, y, z
}

func moonLongitude(t float64) float64 {
	lp := 218.3164477 + 481267.88123421*t
	d := rad(297.8501921 + 445267.1114034*t)
	m := rad(357.5291092 + 35999.0502909*t)
	mp := rad(134.9633964 + 477198.8675055*t)
	f := rad(93.2720950 + 483202.0175233*t)

	lon := lp +
		6.289*math.Sin(mp) +
		1.274*math.Sin(2*d-mp) +
		0.658*math.Sin(2*d) +
		0.214*math.Sin(2*mp) -
		0.186*math.Sin(m) -
		0.114*math.Sin(2*f) +
		0.059*math.Sin(2*d-2*mp) +
		0.057*math.Sin(2*d-m-mp) +
		0.053*math.Sin(2*d+mp) +
		0.046*math.Sin(2*d-m) +
		0.041*math.Sin(mp-m) -
		0.035*math.Sin(d) -
		0.031*math.Sin(mp+m)
	return normalizeDegrees(lon)
}

// ascendant は日付分点基準の上昇点黄経
func ascendant(jd, lat, lon float64) float64 {
	t := (jd - 2451545.0) / 36525.0
	gmst := 280.46061837 + 360.98564736629*(jd-2451545.0) + 0.000387933*t*t - t*t*t/38710000.0
	ramc := rad(normalizeDegrees(gmst + lon))
	eps := rad(23.439291 - 0.0130042*t)
	phi := rad(lat)

	asc := math.Atan2(math.Cos(ramc), -(math.Sin(ramc)*math.Cos(eps) + math.Tan(phi)*math.Sin(eps)))
	return normalizeDegrees(deg(asc))
}

func isRetrograde(name string, jd, ayanamsa float64) bool {
	switch name {
	case "Sun", "Moon":
		return false
	case "Rahu", "Ketu":
		return true
	}
	now := siderealLongitude(name, jd, ayanamsa)
	next := siderealLongitude(name, jd+1, LahiriAyanamsa(jd+1))
	diff := next - now
	if diff > 180 {
		diff -= 360
	} else if diff < -180 {
		diff += 360
	}
	return diff < 0
}

func position(name string, lon float64) models.PlanetPosition {
	idx := signIndex(lon)
	return models.PlanetPosition{
		Name:      name,
		Longitude: round(lon, 4),
		Sign:      ZodiacSigns[idx],
		Degree:    round(lon-float64(idx)*30, 4),
		Nakshatra: Nakshatras[int(lon/(360.0/27.0))%27],
	}
}

func signIndex(lon float64) int {
	return int(normalizeDegrees(lon)/30) % 12
}

func normalizeDegrees(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func rad(d float64) float64 { return d * math.Pi / 180 }
func deg(r float64) float64 { return r * 180 / math.Pi }
