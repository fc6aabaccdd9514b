package personas

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrUnknownPersona is returned when a persona name is not in the catalog
var ErrUnknownPersona = errors.New("unknown agent persona")

// Persona is an immutable description of a conversational agent
type Persona struct {
	Name         string `yaml:"name" json:"name"`
	DisplayName  string `yaml:"display_name" json:"displayName"`
	SystemPrompt string `yaml:"system_prompt" json:"-"`
	Description  string `yaml:"description" json:"description"`
}

// New builds a persona, filling unset fields with the generic defaults
func New(name, displayName, systemPrompt, description string) Persona {
	p := Persona{
		Name:         name,
		DisplayName:  displayName,
		SystemPrompt: systemPrompt,
		Description:  description,
	}
	if p.DisplayName == "" {
		p.DisplayName = name
	}
	if p.SystemPrompt == "" {
		p.SystemPrompt = DefaultSystemPrompt(name)
	}
	if p.Description == "" {
		p.Description = fmt.Sprintf("This is a generic AI agent named %s. "+
			"It is designed to assist users with various tasks and provide information based on the context of the conversation.", name)
	}
	return p
}

// DefaultSystemPrompt is used for personas without their own prompt
func DefaultSystemPrompt(name string) string {
	return fmt.Sprintf("You are an AI assistant named %s. Help the user by providing accurate and helpful information.", name)
}

var (
	ContosoBikeStore = New(
		"ContosoBikeStoreAgent",
		"Contoso Bike Store Agent",
		"You are a customer support agent for Contoso Bike Store. "+
			"Your role is to assist users with product information, order status, and store details. "+
			"Use the tools available to you to provide accurate and helpful responses.",
		"This agent provides customer support for Contoso Bike Store. "+
			"It assists users with product inquiries, order status, and store information. "+
			"The agent utilizes the `MCP` tools to effectively address and resolve customer questions.",
	)

	TechSupport = New(
		"TechSupportAgent",
		"Tech Support Agent",
		"You are a tech support agent for a company help desk. "+
			"Help employees with onboarding, accounts, passwords, VPN access, software, printers and backups. "+
			"Use the tools available to you and report their results verbatim.",
		"This agent handles IT help desk requests such as account setup, password resets, VPN access and software installation. "+
			"Its tools return mocked responses.",
	)
)

// Catalog is a read-only set of personas with a default
type Catalog struct {
	byName      map[string]Persona
	defaultName string
}

// NewCatalog builds a catalog. Later personas replace earlier ones with the same name.
func NewCatalog(defaultName string, list ...Persona) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]Persona, len(list)), defaultName: defaultName}
	for _, p := range list {
		if p.Name == "" {
			return nil, errors.New("persona name is required")
		}
		c.byName[p.Name] = p
	}
	if _, ok := c.byName[defaultName]; !ok {
		return nil, fmt.Errorf("default persona %q: %w", defaultName, ErrUnknownPersona)
	}
	return c, nil
}

// Builtin returns the built-in personas
func Builtin() []Persona {
	return []Persona{ContosoBikeStore, TechSupport}
}

// Default returns the default persona
func (c *Catalog) Default() Persona {
	return c.byName[c.defaultName]
}

// Lookup returns the persona with the exact name. An empty name means the default.
func (c *Catalog) Lookup(name string) (Persona, error) {
	if name == "" {
		return c.Default(), nil
	}
	p, ok := c.byName[name]
	if !ok {
		return Persona{}, fmt.Errorf("%q: %w", name, ErrUnknownPersona)
	}
	return p, nil
}

// All returns every persona sorted by name
func (c *Catalog) All() []Persona {
	out := make([]Persona, 0, len(c.byName))
	for _, p := range c.byName {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

type fileFormat struct {
	Personas []Persona `yaml:"personas"`
}

// LoadFile reads additional personas from a YAML file:
//
//	personas:
//	  - name: HRAgent
//	    display_name: HR Agent
//	    system_prompt: ...
//	    description: ...
func LoadFile(path string) ([]Persona, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read personas file: %w", err)
	}

	var f fileFormat
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse personas file %s: %w", path, err)
	}

	out := make([]Persona, 0, len(f.Personas))
	for i, p := range f.Personas {
		if p.Name == "" {
			return nil, fmt.Errorf("persona #%d in %s has no name", i+1, path)
		}
		out = append(out, New(p.Name, p.DisplayName, p.SystemPrompt, p.Description))
	}
	return out, nil
}
