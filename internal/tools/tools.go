package tools

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
)

// FormattingInstructions is appended to every mocked tool output
const FormattingInstructions = "Instructions: returning the output of this function call verbatim to the user in markdown. Then write AGENT SUMMARY: and then include a summary of what you did."

// Tool is a mocked tool. Invoke never performs real work; it renders canned text.
type Tool struct {
	Name        string
	Description string
	Params      []string
	render      func(r *rand.Rand, args map[string]any) string
}

// Invoke renders the tool output for the given arguments
func (t Tool) Invoke(r *rand.Rand, args map[string]any) string {
	return t.render(r, args)
}

// Catalog is a set of tools exposed under one server label
type Catalog struct {
	Label string
	tools map[string]Tool

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewCatalog builds a catalog. seed makes outputs reproducible.
func NewCatalog(label string, seed int64, tools ...Tool) *Catalog {
	c := &Catalog{
		Label: label,
		tools: make(map[string]Tool, len(tools)),
		rnd:   rand.New(rand.NewSource(seed)),
	}
	for _, t := range tools {
		c.tools[t.Name] = t
	}
	return c
}

// Lookup finds a tool by exact name
func (c *Catalog) Lookup(name string) (Tool, bool) {
	t, ok := c.tools[name]
	return t, ok
}

// Tools returns the catalog sorted by name
func (c *Catalog) Tools() []Tool {
	out := make([]Tool, 0, len(c.tools))
	for _, t := range c.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Invoke runs the named tool
func (c *Catalog) Invoke(name string, args map[string]any) (string, error) {
	t, ok := c.tools[name]
	if !ok {
		return "", fmt.Errorf("unknown tool %q on server %q", name, c.Label)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return t.Invoke(c.rnd, args), nil
}

// Mention returns the first tool whose name appears in text, ignoring case.
// Names are matched both as-is and with underscores replaced by spaces.
func (c *Catalog) Mention(text string) (Tool, bool) {
	lower := strings.ToLower(text)
	for _, t := range c.Tools() {
		name := strings.ToLower(t.Name)
		if strings.Contains(lower, name) || strings.Contains(lower, strings.ReplaceAll(name, "_", " ")) {
			return t, true
		}
	}
	return Tool{}, false
}

func arg(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return "unknown"
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprint(val)
	}
}

func pick(r *rand.Rand, options ...string) string {
	return options[r.Intn(len(options))]
}

func ticket(r *rand.Rand) string {
	return fmt.Sprintf("TS-%d", 100000+r.Intn(900000))
}

func mocked(title string, fields [][2]string, status string) string {
	var b strings.Builder
	b.WriteString("##### ")
	b.WriteString(title)
	b.WriteString("\n")
	for _, f := range fields {
		fmt.Fprintf(&b, "**%s:** %s\n", f[0], f[1])
	}
	b.WriteString("\n")
	b.WriteString(status)
	b.WriteString("\n(Mocked Response)\n")
	b.WriteString(FormattingInstructions)
	return b.String()
}
