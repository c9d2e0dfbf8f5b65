package features

import "fmt"

// Group labels a block of related fields on the input form.
type Group string

const (
	GroupTimeline    Group = "Funding & Milestone Timeline"
	GroupFunding     Group = "Funding"
	GroupLocation    Group = "Location"
	GroupCategory    Group = "Category"
	GroupInvestors   Group = "Investors & Rounds"
	GroupCompany     Group = "Company"
	GroupState       Group = "State (one-hot)"
	GroupCategoryHot Group = "Category (one-hot)"
	GroupFounded     Group = "Founded Year (one-hot)"
)

// Field is one named input of the model.
type Field struct {
	Name   string
	Group  Group
	Binary bool
}

// foundedYears are the founding years the model was trained with a flag for.
var foundedYears = []int{
	1984, 1985, 1990, 1992, 1995, 1996, 1997, 1998, 1999, 2000, 2001, 2002,
	2003, 2004, 2005, 2006, 2007, 2008, 2009, 2010, 2011, 2012, 2013,
}

// schema is the feature order the predictor was trained on. It is built once
// and never mutated.
var schema = buildSchema()

func buildSchema() []Field {
	fields := []Field{
		{"age_first_funding_year", GroupTimeline, false},
		{"age_last_funding_year", GroupTimeline, false},
		{"age_first_milestone_year", GroupTimeline, false},
		{"age_last_milestone_year", GroupTimeline, false},
		{"funding_rounds", GroupFunding, false},
		{"funding_total_usd", GroupFunding, false},
		{"milestones", GroupFunding, false},
		{"is_CA", GroupLocation, true},
		{"is_NY", GroupLocation, true},
		{"is_MA", GroupLocation, true},
		{"is_TX", GroupLocation, true},
		{"is_otherstate", GroupLocation, true},
		{"is_software", GroupCategory, true},
		{"is_web", GroupCategory, true},
		{"is_mobile", GroupCategory, true},
		{"is_enterprise", GroupCategory, true},
		{"is_advertising", GroupCategory, true},
		{"is_gamesvideo", GroupCategory, true},
		{"is_ecommerce", GroupCategory, true},
		{"is_biotech", GroupCategory, true},
		{"is_consulting", GroupCategory, true},
		{"is_othercategory", GroupCategory, true},
		{"has_VC", GroupInvestors, true},
		{"has_angel", GroupInvestors, true},
		{"has_roundA", GroupInvestors, true},
		{"has_roundB", GroupInvestors, true},
		{"has_roundC", GroupInvestors, true},
		{"has_roundD", GroupInvestors, true},
		{"avg_participants", GroupInvestors, false},
		{"is_top500", GroupCompany, true},
		{"has_RoundABCD", GroupInvestors, true},
		{"has_Investor", GroupInvestors, true},
		{"has_both", GroupInvestors, true},
		{"invalid_startup", GroupCompany, true},
		{"age_startup_year", GroupCompany, false},
		{"tier_relationships", GroupCompany, false},
		{"State_CA", GroupState, true},
		{"State_MA", GroupState, true},
		{"State_NY", GroupState, true},
		{"State_TX", GroupState, true},
		{"State_WA", GroupState, true},
		{"State_other", GroupState, true},
		{"category_advertising", GroupCategoryHot, true},
		{"category_biotech", GroupCategoryHot, true},
		{"category_enterprise", GroupCategoryHot, true},
		{"category_games_video", GroupCategoryHot, true},
		{"category_hardware", GroupCategoryHot, true},
		{"category_mobile", GroupCategoryHot, true},
		{"category_network_hosting", GroupCategoryHot, true},
		{"category_other", GroupCategoryHot, true},
		{"category_semiconductor", GroupCategoryHot, true},
		{"category_software", GroupCategoryHot, true},
		{"category_web", GroupCategoryHot, true},
	}

	for _, year := range foundedYears {
		fields = append(fields, Field{fmt.Sprintf("founded_year_%d", year), GroupFounded, true})
	}

	return fields
}

// names mirrors schema for callers that only need the ordered names.
var names = func() []string {
	out := make([]string, len(schema))
	for i, f := range schema {
		out[i] = f.Name
	}
	return out
}()

var index = func() map[string]int {
	out := make(map[string]int, len(schema))
	for i, f := range schema {
		out[f.Name] = i
	}
	return out
}()

// Len is the number of features the predictor expects.
func Len() int {
	return len(schema)
}

// Names returns a copy of the ordered feature names.
func Names() []string {
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// Fields returns a copy of the ordered schema.
func Fields() []Field {
	out := make([]Field, len(schema))
	copy(out, schema)
	return out
}

// IndexOf returns the vector position of name.
func IndexOf(name string) (int, bool) {
	i, ok := index[name]
	return i, ok
}

// FieldGroup is a run of fields sharing a Group, in first-appearance order.
type FieldGroup struct {
	Group  Group
	Fields []Field
}

// Grouped partitions the schema for form rendering. Vector order is unaffected.
func Grouped() []FieldGroup {
	var groups []FieldGroup
	pos := make(map[Group]int)
	for _, f := range schema {
		i, ok := pos[f.Group]
		if !ok {
			i = len(groups)
			pos[f.Group] = i
			groups = append(groups, FieldGroup{Group: f.Group})
		}
		groups[i].Fields = append(groups[i].Fields, f)
	}
	return groups
}

// Matches reports whether other lists exactly the schema names in order.
func Matches(other []string) error {
	if len(other) != len(names) {
		return fmt.Errorf("expected %d features, got %d", len(names), len(other))
	}
	for i, n := range names {
		if other[i] != n {
			return fmt.Errorf("feature %d: expected %q, got %q", i, n, other[i])
		}
	}
	return nil
}
