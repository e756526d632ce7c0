package core

// normalize.go turns raw workbook cells into typed row values.
//
// Cells typed by hand are messy: enum values arrive without diacritics
// ("foretag"), in other languages ("company") or in any case, booleans come as
// TRUE, 1, "ja" or "x", and exported sheets sometimes carry Excel formula
// prefixes (="value"). Nothing in here fails: unknown enum text is passed
// through tagged as unrecognized so the validator can report it.

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// categorySynonyms maps folded cell text to a customer category.
var categorySynonyms = synonymTable(map[CustomerCategory][]string{
	CategoryPrivatePerson: {"privat", "private", "private person", "konsument", "consumer"},
	CategoryCompany:       {"company", "business", "bolag"},
	CategorySchool:        {"school", "skolor"},
	CategoryMunicipality:  {"municipality", "kommuner"},
	CategoryAssociation:   {"association", "club", "forening"},
	CategoryAuthority:     {"authority", "government", "agency"},
	CategoryReseller:      {"reseller", "retailer", "dealer", "aterforsaljare"},
})

// typeGroupSynonyms maps folded cell text to a customer type group.
var typeGroupSynonyms = synonymTable(map[CustomerTypeGroup][]string{
	TypeGroupB2C: {"b-2-c", "b 2 c", "consumer"},
	TypeGroupB2B: {"b-2-b", "b 2 b", "business"},
	TypeGroupB2G: {"b-2-g", "b 2 g", "government", "public"},
})

// contactTypeSynonyms maps folded cell text to a contact type.
var contactTypeSynonyms = synonymTable(map[ContactType][]string{
	ContactTeacher:   {"teacher", "pedagog"},
	ContactPrincipal: {"principal", "headmaster", "skolledare"},
	ContactPurchaser: {"purchaser", "buyer", "inkop"},
	ContactFinance:   {"finance", "accounting", "ekonom"},
	ContactAdmin:     {"admin", "administrator"},
	ContactOther:     {"other", "annat", "ovrig"},
})

// truthyTokens are the (lowercased) strings read as true.
var truthyTokens = map[string]bool{
	"true": true,
	"1":    true,
	"yes":  true,
	"y":    true,
	"ja":   true,
	"j":    true,
	"sant": true,
	"x":    true,
}

// synonymTable builds a lookup keyed by folded text. Every canonical value
// matches its own folded form in addition to the listed synonyms.
func synonymTable[T ~string](values map[T][]string) map[string]T {
	table := make(map[string]T)
	for value, synonyms := range values {
		table[foldKey(string(value))] = value
		for _, s := range synonyms {
			table[foldKey(s)] = value
		}
	}
	return table
}

// foldKey lowercases s, strips diacritics and collapses inner whitespace.
// "  Återförsäljare " and "aterforsaljare" fold to the same key.
func foldKey(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// normalizeEnum looks raw up in table and tags the result.
func normalizeEnum[T ~string](raw string, table map[string]T) Enum[T] {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Enum[T]{}
	}
	if v, ok := table[foldKey(raw)]; ok {
		return Enum[T]{Value: v, Raw: raw, Known: true}
	}
	return Enum[T]{Value: T(raw), Raw: raw, Known: false}
}

// NormalizeCategory normalizes a customer category cell.
func NormalizeCategory(raw string) Enum[CustomerCategory] {
	return normalizeEnum(raw, categorySynonyms)
}

// NormalizeTypeGroup normalizes a customer type group cell.
func NormalizeTypeGroup(raw string) Enum[CustomerTypeGroup] {
	return normalizeEnum(raw, typeGroupSynonyms)
}

// NormalizeContactType normalizes a contact type cell.
func NormalizeContactType(raw string) Enum[ContactType] {
	return normalizeEnum(raw, contactTypeSynonyms)
}

// ParseAction reads an action cell case-insensitively.
// Anything that is not UPDATE or DELETE, including an empty cell, is CREATE.
func ParseAction(s string) Action {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(ActionUpdate):
		return ActionUpdate
	case string(ActionDelete):
		return ActionDelete
	default:
		return ActionCreate
	}
}

// ParseBool reads a boolean cell leniently.
// Accepts true/yes/ja style tokens and any number equal to 1; everything else is false.
func ParseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return false
	}
	if truthyTokens[s] {
		return true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f == 1
	}
	return false
}

// SplitList splits a comma-separated cell, trimming each part and dropping empties.
func SplitList(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = CleanCell(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// CleanCell removes common spreadsheet artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}

// knownCategories lists the accepted categories for messages and templates.
func knownCategories() []string {
	return []string{
		string(CategoryPrivatePerson), string(CategoryCompany), string(CategorySchool),
		string(CategoryMunicipality), string(CategoryAssociation), string(CategoryAuthority),
		string(CategoryReseller),
	}
}

func knownTypeGroups() []string {
	return []string{string(TypeGroupB2C), string(TypeGroupB2B), string(TypeGroupB2G)}
}

func knownContactTypes() []string {
	return []string{
		string(ContactTeacher), string(ContactPrincipal), string(ContactPurchaser),
		string(ContactFinance), string(ContactAdmin), string(ContactOther),
	}
}
