package enums

import "fmt"

// OfferScope declares which products an offer can touch.
type OfferScope string

const (
	OfferScopeSpecificProducts   OfferScope = "specific_products"
	OfferScopeSpecificCategories OfferScope = "specific_categories"
	OfferScopeAllProducts        OfferScope = "all_products"
	OfferScopeAllCategories      OfferScope = "all_categories"
)

var validOfferScopes = []OfferScope{
	OfferScopeSpecificProducts,
	OfferScopeSpecificCategories,
	OfferScopeAllProducts,
	OfferScopeAllCategories,
}

// String implements fmt.Stringer.
func (s OfferScope) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OfferScope.
func (s OfferScope) IsValid() bool {
	for _, candidate := range validOfferScopes {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsGlobal reports whether the scope applies storewide rather than to an
// explicit product or category list.
func (s OfferScope) IsGlobal() bool {
	return s == OfferScopeAllProducts || s == OfferScopeAllCategories
}

// Specificity orders scopes for tie-breaking; lower wins.
func (s OfferScope) Specificity() int {
	switch s {
	case OfferScopeSpecificProducts:
		return 0
	case OfferScopeSpecificCategories:
		return 1
	case OfferScopeAllProducts:
		return 2
	case OfferScopeAllCategories:
		return 3
	default:
		return 4
	}
}

// ParseOfferScope converts raw input into an OfferScope.
func ParseOfferScope(value string) (OfferScope, error) {
	for _, candidate := range validOfferScopes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid offer scope %q", value)
}
