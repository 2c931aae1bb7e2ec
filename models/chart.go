package models

// PlanetPosition は恒星黄道 (ラヒリ) 上の位置
type PlanetPosition struct {
	Name       string  `json:"name"`
	Longitude  float64 `json:"longitude"`
	Sign       string  `json:"sign"`
	Degree     float64 `json:"degree"`
	Nakshatra  string  `json:"nakshatra"`
	House      int     `json:"house,omitempty"`
	Retrograde bool    `json:"retrograde,omitempty"`
}

// NatalChart はユーザー作成時に一度だけ計算し JSON で保存する
type NatalChart struct {
	JulianDay   float64          `json:"julian_day"`
	Ayanamsa    float64          `json:"ayanamsa"`
	HouseSystem string           `json:"house_system"`
	Ascendant   PlanetPosition   `json:"ascendant"`
	Planets     []PlanetPosition `json:"planets"`
}

func (c NatalChart) Planet(name string) (PlanetPosition, bool) {
	for _, p := range c.Planets {
		if p.Name == name {
			return p, true
		}
	}
	return PlanetPosition{}, false
}
