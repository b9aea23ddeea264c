// Package factors loads the factor catalog and filters matches by factor
// conjunctions.
package factors

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ahlab/ahlab/internal/domain"
)

var (
	// ErrEmptyCatalog is returned when a catalog yields no usable factors
	ErrEmptyCatalog = errors.New("factor catalog is empty")
	// ErrUnknownFactor is returned when a reference matches no catalog entry
	ErrUnknownFactor = errors.New("unknown factor")
)

// rawFactor is one catalog entry as it appears on disk
type rawFactor struct {
	Expression      string   `json:"expression"`
	Description     string   `json:"description"`
	Role            string   `json:"role"`
	Side            string   `json:"side"`
	SideExpression  string   `json:"side_expression"`
	Stake           *float64 `json:"stake"`
	StakeExpression string   `json:"stake_expression"`
}

// Catalog is the immutable set of factors available to strategies
type Catalog struct {
	factors    []domain.FactorDefinition
	byIdentity map[string]domain.FactorDefinition
	pools      map[domain.Role][]domain.FactorDefinition
}

// LoadCatalog reads and parses a catalog file
func LoadCatalog(path string, log zerolog.Logger) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read factor catalog: %w", err)
	}
	return ParseCatalog(data, log)
}

// ParseCatalog builds a catalog from JSON of the form
// {category: {key: {expression, description, role, ...}}}.
// Invalid entries are skipped with a warning.
func ParseCatalog(data []byte, log zerolog.Logger) (*Catalog, error) {
	log = log.With().Str("component", "factor_catalog").Logger()

	var raw map[string]map[string]rawFactor
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse factor catalog: %w", err)
	}

	categories := make([]string, 0, len(raw))
	for category := range raw {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	var defs []domain.FactorDefinition
	for _, category := range categories {
		entries := raw[category]
		keys := make([]string, 0, len(entries))
		for key := range entries {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			def, err := buildFactor(category, key, entries[key])
			if err != nil {
				log.Warn().
					Err(err).
					Str("category", category).
					Str("key", key).
					Msg("Skipping invalid factor")
				continue
			}
			defs = append(defs, def)
		}
	}

	if len(defs) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := NewCatalog(defs)
	log.Info().
		Int("factors", len(c.factors)).
		Int("side", len(c.pools[domain.RoleSide])).
		Int("size", len(c.pools[domain.RoleSize])).
		Int("predicate", len(c.pools[domain.RolePredicate])).
		Msg("Factor catalog loaded")
	return c, nil
}

// NewCatalog indexes already-built definitions. Later duplicates of an
// identity are ignored.
func NewCatalog(defs []domain.FactorDefinition) *Catalog {
	c := &Catalog{
		byIdentity: make(map[string]domain.FactorDefinition, len(defs)),
		pools:      make(map[domain.Role][]domain.FactorDefinition),
	}
	for _, def := range defs {
		id := def.Identity()
		if _, dup := c.byIdentity[id]; dup {
			continue
		}
		c.byIdentity[id] = def
		c.factors = append(c.factors, def)
		c.pools[def.Role] = append(c.pools[def.Role], def)
	}
	for role := range c.pools {
		pool := c.pools[role]
		sort.Slice(pool, func(i, j int) bool { return pool[i].Identity() < pool[j].Identity() })
	}
	return c
}

func resolveRole(category, explicit string) (domain.Role, error) {
	if explicit != "" {
		switch r := domain.Role(strings.ToLower(strings.TrimSpace(explicit))); r {
		case domain.RoleSide, domain.RoleSize, domain.RolePredicate:
			return r, nil
		default:
			return "", fmt.Errorf("unknown role %q", explicit)
		}
	}
	switch strings.ToLower(category) {
	case "side", "bet_side":
		return domain.RoleSide, nil
	case "size", "bet_size", "stake":
		return domain.RoleSize, nil
	}
	return domain.RolePredicate, nil
}

func buildFactor(category, key string, raw rawFactor) (domain.FactorDefinition, error) {
	role, err := resolveRole(category, raw.Role)
	if err != nil {
		return domain.FactorDefinition{}, err
	}

	def := domain.FactorDefinition{
		ID:          domain.FactorID{Category: category, Key: key},
		Role:        role,
		Description: raw.Description,
	}

	switch role {
	case domain.RoleSide:
		if raw.Side != "" {
			side, ok := domain.ParseBetSide(raw.Side)
			if !ok {
				return def, fmt.Errorf("invalid literal side %q", raw.Side)
			}
			def.Side = side
			return def, nil
		}
		def.Expression = firstNonEmpty(raw.SideExpression, raw.Expression)
		if def.Expression == "" {
			return def, errors.New("side factor needs a side or side_expression")
		}

	case domain.RoleSize:
		if raw.Stake != nil {
			if *raw.Stake <= 0 {
				return def, fmt.Errorf("literal stake must be positive, got %g", *raw.Stake)
			}
			def.Expression = strconv.FormatFloat(*raw.Stake, 'f', -1, 64)
			return def, nil
		}
		def.Expression = firstNonEmpty(raw.StakeExpression, raw.Expression)
		if def.Expression == "" {
			return def, errors.New("size factor needs a stake or stake_expression")
		}

	default:
		def.Expression = strings.TrimSpace(raw.Expression)
		if def.Expression == "" {
			return def, errors.New("predicate factor needs an expression")
		}
	}
	return def, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// All returns every factor in catalog order
func (c *Catalog) All() []domain.FactorDefinition {
	return c.factors
}

// Len returns the number of factors
func (c *Catalog) Len() int {
	return len(c.factors)
}

// Pool returns the factors of one role sorted by identity
func (c *Catalog) Pool(role domain.Role) []domain.FactorDefinition {
	return append([]domain.FactorDefinition(nil), c.pools[role]...)
}

// Lookup finds a factor by its role|category|key identity
func (c *Catalog) Lookup(identity string) (domain.FactorDefinition, bool) {
	def, ok := c.byIdentity[identity]
	return def, ok
}

// Resolve accepts either a full identity or a category.key reference. A
// category.key reference shared by several roles is ambiguous when role is
// empty.
func (c *Catalog) Resolve(ref string, role domain.Role) (domain.FactorDefinition, error) {
	if def, ok := c.byIdentity[ref]; ok {
		return def, nil
	}

	category, key, ok := strings.Cut(ref, ".")
	if !ok {
		return domain.FactorDefinition{}, fmt.Errorf("%w: %s", ErrUnknownFactor, ref)
	}

	var found []domain.FactorDefinition
	for _, def := range c.factors {
		if def.ID.Category == category && def.ID.Key == key && (role == "" || def.Role == role) {
			found = append(found, def)
		}
	}
	switch len(found) {
	case 0:
		return domain.FactorDefinition{}, fmt.Errorf("%w: %s", ErrUnknownFactor, ref)
	case 1:
		return found[0], nil
	}
	return domain.FactorDefinition{}, fmt.Errorf("ambiguous factor %s: matches %d roles", ref, len(found))
}
