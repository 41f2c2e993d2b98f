// Package dg groups regulated products for dangerous-goods paperwork and decides whether a
// buyer address differs from the consignee.
package dg

import (
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/shipdocs/internal/entity"
	"github.com/joseph-ayodele/shipdocs/internal/rules"
	"github.com/joseph-ayodele/shipdocs/internal/textnorm"
)

// Classifier maps order lines to dangerous-goods families.
type Classifier struct {
	rules  *rules.RuleSet
	logger *slog.Logger
}

func NewClassifier(rs *rules.RuleSet, logger *slog.Logger) *Classifier {
	if rs == nil {
		rs = rules.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{rules: rs, logger: logger}
}

// Family returns the first family with a pattern found in the item code or description.
func (c *Classifier) Family(item entity.LineItem) (rules.Family, bool) {
	hay := textnorm.Fold(entity.StrValue(item.ItemCode) + " " + item.Description)
	for _, f := range c.rules.Families {
		for _, p := range f.Patterns {
			if p = textnorm.Fold(p); p != "" && strings.Contains(hay, p) {
				return f, true
			}
		}
	}
	return rules.Family{}, false
}

// Classify groups items by family in order of first appearance. Quantities of lines in the
// same family are summed; unknown quantities add nothing.
func (c *Classifier) Classify(items []entity.LineItem) []entity.DangerousGoodsGroup {
	var groups []entity.DangerousGoodsGroup
	index := map[string]int{}
	for _, it := range items {
		f, ok := c.Family(it)
		if !ok {
			continue
		}
		i, seen := index[f.Name]
		if !seen {
			i = len(groups)
			index[f.Name] = i
			groups = append(groups, entity.DangerousGoodsGroup{
				ProductName:       f.Name,
				TemplateReference: f.Template,
				CombinedQuantity:  decimal.Zero,
			})
		}
		g := &groups[i]
		if it.Quantity.Valid {
			g.CombinedQuantity = g.CombinedQuantity.Add(it.Quantity.Decimal)
		}
		g.Members = append(g.Members, it)
	}
	c.logger.Debug("dg.classify", "items", len(items), "groups", len(groups))
	return groups
}
