package services

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"astra/errs"
	"astra/models"

	"gopkg.in/yaml.v3"
)

//go:embed data/personas.yaml
var embeddedPersonas []byte

//go:embed data/remedies.yaml
var embeddedRemedies []byte

// PersonaCatalog は起動時に読み込む閉じたキャラクター集合
type PersonaCatalog struct {
	order []string
	byID  map[string]models.Persona
}

type personaFile struct {
	Personas []models.Persona `yaml:"personas"`
}

// LoadPersonaCatalog は path が空なら組み込みの定義を使う
func LoadPersonaCatalog(path string) (*PersonaCatalog, error) {
	raw := embeddedPersonas
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read personas file: %w", err)
		}
		raw = b
	}
	return parsePersonas(raw)
}

func parsePersonas(raw []byte) (*PersonaCatalog, error) {
	var f personaFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse personas: %w", err)
	}
	if len(f.Personas) == 0 {
		return nil, fmt.Errorf("personas file defines no personas")
	}

	c := &PersonaCatalog{byID: make(map[string]models.Persona, len(f.Personas))}
	for _, p := range f.Personas {
		p.ID = strings.ToLower(strings.TrimSpace(p.ID))
		if p.ID == "" || strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("persona without id or name")
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate persona id %q", p.ID)
		}
		if p.Emoji == "" {
			p.Emoji = "✨"
		}
		c.byID[p.ID] = p
		c.order = append(c.order, p.ID)
	}
	return c, nil
}

// Get は未知の id を ValidationError にする
func (c *PersonaCatalog) Get(id string) (models.Persona, error) {
	p, ok := c.byID[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return models.Persona{}, errs.WithMessage(errs.ErrUnknownCharacter, fmt.Sprintf("unknown character %q", id))
	}
	return p, nil
}

func (c *PersonaCatalog) List() []models.Persona {
	out := make([]models.Persona, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

func (c *PersonaCatalog) Descriptors() []models.PersonaDescriptor {
	out := make([]models.PersonaDescriptor, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id].Descriptor())
	}
	return out
}

// RemedyCatalog は惑星とドーシャの処方
type RemedyCatalog struct {
	aliases map[string]string
	planets []models.PlanetRemedy
	doshas  []models.DoshaRemedy
}

type remedyFile struct {
	Aliases map[string]string     `yaml:"aliases"`
	Planets []models.PlanetRemedy `yaml:"planets"`
	Doshas  []models.DoshaRemedy  `yaml:"doshas"`
}

func LoadRemedyCatalog() (*RemedyCatalog, error) {
	var f remedyFile
	if err := yaml.Unmarshal(embeddedRemedies, &f); err != nil {
		return nil, fmt.Errorf("failed to parse remedies: %w", err)
	}
	return &RemedyCatalog{aliases: f.Aliases, planets: f.Planets, doshas: f.Doshas}, nil
}

func (c *RemedyCatalog) Planets() []models.PlanetRemedy {
	return c.planets
}

func (c *RemedyCatalog) Doshas() []models.DoshaRemedy {
	return c.doshas
}

// Planet はヒンディー名 (shani, guru など) も受け付ける
func (c *RemedyCatalog) Planet(name string) (*models.PlanetRemedy, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := c.aliases[key]; ok {
		key = alias
	}
	for i := range c.planets {
		if c.planets[i].Planet == key {
			return &c.planets[i], nil
		}
	}
	return nil, errs.WithMessage(errs.ErrPlanetNotFound, fmt.Sprintf("no remedies for planet %q", name))
}

// Dosha は "mangal", "mangal dosha", "mangal_dosha" のいずれも受け付ける
func (c *RemedyCatalog) Dosha(name string) (*models.DoshaRemedy, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
	key = strings.ReplaceAll(key, "-", "_")
	for i := range c.doshas {
		id := c.doshas[i].ID
		if id == key || id == key+"_dosha" {
			return &c.doshas[i], nil
		}
	}
	return nil, errs.WithMessage(errs.ErrDoshaNotFound, fmt.Sprintf("no remedies for dosha %q", name))
}

// RemedyContext はプロンプトに差し込む短い処方
func (c *RemedyCatalog) RemedyContext(planets ...string) string {
	var b strings.Builder
	for _, name := range planets {
		r, err := c.Planet(name)
		if err != nil {
			continue
		}
		items := r.Donation.Items
		if len(items) > 3 {
			items = items[:3]
		}
		fmt.Fprintf(&b, "%s (%s) remedies: day %s; mantra %q; gemstone %s; donate %s\n",
			capitalize(r.Planet), r.HindiName, r.Day, r.Mantra.Simple, r.Gemstone.Primary, strings.Join(items, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
