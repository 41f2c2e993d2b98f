// Package rules holds the data-driven rule sets used by reconciliation and
// dangerous-goods classification. Rule sets are loaded once and passed in explicitly.
package rules

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/joseph-ayodele/shipdocs/constants"
	"github.com/joseph-ayodele/shipdocs/internal/common"
	"github.com/joseph-ayodele/shipdocs/internal/textnorm"
)

// Family is a regulated product family. Patterns are case-insensitive substrings.
type Family struct {
	Name     string   `mapstructure:"name"`
	Template string   `mapstructure:"template"`
	Patterns []string `mapstructure:"patterns"`
}

// RuleSet is an ordered, immutable collection of matching rules.
type RuleSet struct {
	Families    []Family          `mapstructure:"dg_families"`
	Exclusions  []string          `mapstructure:"exclusions"`
	UnitAliases map[string]string `mapstructure:"unit_aliases"`
	Stopwords   []string          `mapstructure:"address_stopwords"`
}

// DefaultExclusions are the non-product keywords.
var DefaultExclusions = []string{"pallet", "freight", "brokerage", "charge", "fee"}

// DefaultStopwords are dropped from address signatures.
var DefaultStopwords = []string{
	"the", "and", "of", "attn", "attention", "street", "st", "road", "rd", "avenue", "ave",
	"suite", "ste", "unit", "inc", "ltd", "llc", "corp", "co", "canada", "usa", "us",
}

// Default returns the built-in rule set.
func Default() *RuleSet {
	aliases := make(map[string]string, len(constants.UnitAliases))
	for k, v := range constants.UnitAliases {
		aliases[k] = v
	}
	return &RuleSet{
		Families: []Family{
			{Name: "Isopropyl Alcohol", Template: "dg/un1219_isopropanol", Patterns: []string{"isopropyl", "isopropanol", "ipa 99"}},
			{Name: "Sodium Hydroxide Solution", Template: "dg/un1824_sodium_hydroxide", Patterns: []string{"sodium hydroxide", "caustic soda"}},
			{Name: "Hydrochloric Acid", Template: "dg/un1789_hydrochloric_acid", Patterns: []string{"hydrochloric", "muriatic"}},
			{Name: "Aerosols", Template: "dg/un1950_aerosols", Patterns: []string{"aerosol", "spray can"}},
			{Name: "Petroleum Distillates", Template: "dg/un1268_petroleum_distillates", Patterns: []string{"mineral spirits", "petroleum distillate", "solvent 142"}},
			{Name: "Corrosive Cleaner", Template: "dg/un1760_corrosive_liquid", Patterns: []string{"acid cleaner", "descaler", "corrosive"}},
		},
		Exclusions:  append([]string(nil), DefaultExclusions...),
		UnitAliases: aliases,
		Stopwords:   append([]string(nil), DefaultStopwords...),
	}
}

// Load reads a rule set file (yaml, json or toml). Sections absent from the file keep
// their defaults. An empty path returns Default().
func Load(path string) (*RuleSet, error) {
	rs := Default()
	if strings.TrimSpace(path) == "" {
		return rs, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, common.NewAppError(common.CodeConfig, "read rules "+path, err)
	}
	var loaded RuleSet
	if err := v.Unmarshal(&loaded); err != nil {
		return nil, common.NewAppError(common.CodeConfig, "decode rules "+path, err)
	}
	if len(loaded.Families) > 0 {
		rs.Families = loaded.Families
	}
	if len(loaded.Exclusions) > 0 {
		rs.Exclusions = foldWords(loaded.Exclusions, true)
	}
	for k, val := range loaded.UnitAliases {
		rs.UnitAliases[strings.ToLower(k)] = strings.ToUpper(val)
	}
	if len(loaded.Stopwords) > 0 {
		rs.Stopwords = foldWords(loaded.Stopwords, false)
	}
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return rs, nil
}

// foldWords brings file-supplied words into the form they are compared in: folded tokens,
// singular when singular is set. Blank entries are dropped.
func foldWords(words []string, singular bool) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = textnorm.Fold(w)
		if w == "" {
			continue
		}
		if singular {
			w = textnorm.Singular(w)
		}
		out = append(out, w)
	}
	return out
}

// Validate rejects families without a name or patterns.
func (r *RuleSet) Validate() error {
	for i, f := range r.Families {
		if strings.TrimSpace(f.Name) == "" {
			return common.NewAppError(common.CodeConfig, fmt.Sprintf("dg family %d has no name", i), common.ErrInvalidInput)
		}
		if len(f.Patterns) == 0 {
			return common.NewAppError(common.CodeConfig, fmt.Sprintf("dg family %q has no patterns", f.Name), common.ErrInvalidInput)
		}
	}
	return nil
}

// IsNonProduct reports whether description names a charge line rather than goods.
func (r *RuleSet) IsNonProduct(description string) bool {
	for _, tok := range textnorm.Tokens(description) {
		tok = textnorm.Singular(tok)
		for _, ex := range r.Exclusions {
			if tok == ex {
				return true
			}
		}
	}
	return false
}

// NormalizeUnit maps a unit spelling to its canonical code. Unknown spellings are upper-cased.
func (r *RuleSet) NormalizeUnit(unit string) string {
	u := strings.ToLower(strings.Trim(strings.TrimSpace(unit), "."))
	if u == "" {
		return ""
	}
	if canon, ok := r.UnitAliases[u]; ok {
		return canon
	}
	return strings.ToUpper(u)
}

// IsKnownUnit reports whether token is a recognised unit spelling.
func (r *RuleSet) IsKnownUnit(token string) bool {
	_, ok := r.UnitAliases[strings.ToLower(strings.Trim(token, "."))]
	return ok
}

// IsStopword reports whether a folded address token carries no identifying signal.
func (r *RuleSet) IsStopword(tok string) bool {
	for _, s := range r.Stopwords {
		if tok == s {
			return true
		}
	}
	return false
}
