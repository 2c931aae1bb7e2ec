package models

// Persona はキャラクター (応答スタイルと専門領域)
type Persona struct {
	ID            string   `json:"id" yaml:"id"`
	Name          string   `json:"name" yaml:"name"`
	Age           int      `json:"age,omitempty" yaml:"age"`
	Experience    string   `json:"experience,omitempty" yaml:"experience"`
	Specialty     string   `json:"specialty" yaml:"specialty"`
	LanguageStyle string   `json:"language_style,omitempty" yaml:"language_style"`
	About         string   `json:"about,omitempty" yaml:"about"`
	Emoji         string   `json:"emoji" yaml:"emoji"`
	Traits        []string `json:"traits,omitempty" yaml:"traits"`
}

// PersonaDescriptor は一覧 API で返す項目
type PersonaDescriptor struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
	Emoji     string `json:"emoji"`
}

func (p Persona) Descriptor() PersonaDescriptor {
	return PersonaDescriptor{ID: p.ID, Name: p.Name, Specialty: p.Specialty, Emoji: p.Emoji}
}

type Gemstone struct {
	Primary     string `json:"primary" yaml:"primary"`
	Alternative string `json:"alternative" yaml:"alternative"`
}

type Mantra struct {
	Beej   string `json:"beej" yaml:"beej"`
	Simple string `json:"simple" yaml:"simple"`
	Count  int    `json:"count" yaml:"count"`
}

type Donation struct {
	Items  []string `json:"items" yaml:"items"`
	ToWhom string   `json:"to_whom" yaml:"to_whom"`
	Day    string   `json:"day" yaml:"day"`
}

// PlanetRemedy は惑星ごとの静的な処方
type PlanetRemedy struct {
	Planet       string   `json:"planet" yaml:"planet"`
	HindiName    string   `json:"hindi_name" yaml:"hindi_name"`
	Day          string   `json:"day" yaml:"day"`
	Color        string   `json:"color" yaml:"color"`
	Metal        string   `json:"metal" yaml:"metal"`
	Gemstone     Gemstone `json:"gemstone" yaml:"gemstone"`
	Mantra       Mantra   `json:"mantra" yaml:"mantra"`
	Donation     Donation `json:"donation" yaml:"donation"`
	Fasting      string   `json:"fasting" yaml:"fasting"`
	Worship      string   `json:"worship" yaml:"worship"`
	WeakSigns    []string `json:"weak_signs" yaml:"weak_signs"`
	StrongSigns  []string `json:"strong_signs" yaml:"strong_signs"`
	HealthIssues []string `json:"health_issues" yaml:"health_issues"`
	Note         string   `json:"note,omitempty" yaml:"note"`
}

type DoshaRemedy struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Effects     []string `json:"effects" yaml:"effects"`
	Remedies    []string `json:"remedies" yaml:"remedies"`
}
