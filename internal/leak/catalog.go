// internal/leak/catalog.go
package leak

import (
	_ "embed"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// CatalogEntry holds the card copy for one leak type.
type CatalogEntry struct {
	Type            string   `yaml:"type"`
	Name            string   `yaml:"name"`
	Severity        Severity `yaml:"severity"`
	Cause           string   `yaml:"cause"`
	Consequence     string   `yaml:"consequence"`
	Action          string   `yaml:"action"`
	TimeSensitivity string   `yaml:"time_sensitivity"`
}

// Catalog maps leak types to card copy.
type Catalog struct {
	Entries  []CatalogEntry `yaml:"entries"`
	Fallback CatalogEntry   `yaml:"fallback"`

	byType map[string]CatalogEntry
}

var (
	defaultCatalog     *Catalog
	defaultCatalogOnce sync.Once
)

// DefaultCatalog returns the embedded catalog. The file is validated by
// tests, so a parse failure here is a build defect.
func DefaultCatalog() *Catalog {
	defaultCatalogOnce.Do(func() {
		c, err := ParseCatalog(catalogYAML)
		if err != nil {
			panic(fmt.Sprintf("leak: embedded catalog: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// ParseCatalog decodes a YAML catalog and indexes it by type.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c.byType = make(map[string]CatalogEntry, len(c.Entries))
	for _, e := range c.Entries {
		if e.Type == "" {
			return nil, fmt.Errorf("catalog entry %q has no type", e.Name)
		}
		switch e.Severity {
		case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		default:
			return nil, fmt.Errorf("catalog entry %q: unknown severity %q", e.Type, e.Severity)
		}
		c.byType[strings.ToLower(e.Type)] = e
	}
	return &c, nil
}

// Lookup returns the entry for a leak type.
func (c *Catalog) Lookup(leakType string) (CatalogEntry, bool) {
	e, ok := c.byType[strings.ToLower(strings.TrimSpace(leakType))]
	return e, ok
}

func hydrate(l *Leak, c *Catalog) {
	entry, ok := c.Lookup(l.Type)
	if !ok {
		entry = c.Fallback
		entry.Severity = deriveSeverity(l)
		if entry.Name == "" {
			entry.Name = l.Type
		}
	}

	r := strings.NewReplacer(
		"{{hours}}", strconv.Itoa(int(math.Floor(l.HoursSinceActivity))),
		"{{deals}}", strconv.Itoa(max(len(l.DealIDs), 1)),
		"{{risk}}", FormatCurrency(l.RevenueAtRisk),
	)

	l.Name = entry.Name
	l.Severity = entry.Severity
	l.Cause = r.Replace(entry.Cause)
	l.RecommendedAction = r.Replace(entry.Action)
	l.TimeSensitivity = r.Replace(entry.TimeSensitivity)
	l.Consequence = r.Replace(entry.Consequence)
}

// deriveSeverity grades leak types the catalog does not know about.
func deriveSeverity(l *Leak) Severity {
	switch {
	case l.IsSLABreach && l.UrgencyScore >= 1.6:
		return SeverityCritical
	case l.IsSLABreach:
		return SeverityHigh
	case l.UrgencyScore > 1.0:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// FormatCurrency renders whole US dollars with thousands separators.
func FormatCurrency(v float64) string {
	n := int64(math.Round(v))
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}

	digits := strconv.FormatInt(n, 10)
	var b strings.Builder
	for i, ch := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(ch)
	}
	return sign + "$" + b.String()
}
