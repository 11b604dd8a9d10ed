package core

import "strings"

const (
	MerchantShopping   MerchantType = "Shopping"
	MerchantGrocery    MerchantType = "Grocery"
	MerchantFastFood   MerchantType = "Fast Food"
	MerchantRestaurant MerchantType = "Restaurant"
)

// MerchantType is the coarse category of a merchant.
type MerchantType string

type merchantRule struct {
	kind     MerchantType
	keywords []string
}

// Checked in order; the first category with a matching keyword wins.
var merchantRules = []merchantRule{
	{MerchantShopping, []string{"cvs", "walgreens", "walmart", "target", "dollar general", "7-eleven"}},
	{MerchantGrocery, []string{"kroger", "publix", "safeway", "albertsons", "aldi", "whole foods"}},
	{MerchantFastFood, []string{"mcdonald", "burger king", "wendy", "taco bell", "kfc", "chipotle"}},
}

// Classify maps a merchant name to its category by case-insensitive keyword
// match. Unknown and empty names are Restaurant.
func Classify(name string) MerchantType {
	lower := strings.ToLower(name)
	if strings.TrimSpace(lower) == "" {
		return MerchantRestaurant
	}
	for _, rule := range merchantRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.kind
			}
		}
	}
	return MerchantRestaurant
}
