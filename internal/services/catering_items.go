package services

import (
	"strings"

	domain "github.com/cateringhub/pricing/internal/domain"
)

// ExtractCateringItems buckets a service's selected catalog items for CalculateCateringPrice.
//
// Items priced at zero or at the per-person base price are base items. Items carrying an
// upcharge are per-guest upgrades, and any other priced item is a standalone add-on counted
// by quantity. Combo options are resolved from combos against the item's categories and
// capped at each category's MaxSelections; unknown options are ignored.
func ExtractCateringItems(service Service, selections SelectedItems, combos []ComboSelection) CateringSelection {
	input := domain.NormalizePricing(service)
	index := newCatalogIndex(service.ID, input.Catalog)

	result := CateringSelection{BasePricePerPerson: input.BasePrice}
	if index.empty() {
		return result
	}

	for _, sel := range index.selected(selections) {
		item, qty := sel.item, sel.qty
		charge := CateringCharge{
			ItemID:           item.ID,
			Name:             item.Name,
			Quantity:         qty,
			UnitPrice:        item.Price,
			AdditionalCharge: item.AdditionalCharge,
			IsMenuItem:       true,
		}
		switch {
		case item.AdditionalCharge > 0:
			result.AdditionalChargeItems = append(result.AdditionalChargeItems, charge)
		case item.Price == 0 || item.Price == input.BasePrice || item.HasComboData():
			result.BaseItems = append(result.BaseItems, charge)
		default:
			charge.IsMenuItem = false
			result.AdditionalChargeItems = append(result.AdditionalChargeItems, charge)
		}
	}

	result.ComboCategoryItems = extractComboCharges(index, combos)
	return result
}

type comboKey struct {
	itemID     string
	categoryID string
}

func extractComboCharges(index catalogIndex, combos []ComboSelection) []ComboCharge {
	if len(combos) == 0 {
		return nil
	}
	var (
		charges []ComboCharge
		counts  = make(map[comboKey]int)
		seen    = make(map[comboKey]map[string]struct{})
	)
	for _, sel := range combos {
		item, ok := index.resolve(sel.ItemID)
		if !ok || !item.HasComboData() {
			continue
		}
		category, ok := findComboCategory(item, sel.CategoryID)
		if !ok {
			continue
		}
		key := comboKey{itemID: item.ID, categoryID: category.ID}
		if seen[key] == nil {
			seen[key] = make(map[string]struct{})
		}
		for _, optionID := range sel.OptionIDs {
			if category.MaxSelections > 0 && counts[key] >= category.MaxSelections {
				break
			}
			optionID = strings.TrimSpace(optionID)
			if _, dup := seen[key][optionID]; dup {
				continue
			}
			option, ok := findComboOption(category, optionID)
			if !ok {
				continue
			}
			seen[key][optionID] = struct{}{}
			counts[key]++
			charges = append(charges, ComboCharge{
				ItemID:           item.ID,
				CategoryID:       category.ID,
				Category:         chooseFirstNonEmpty(category.Name, category.ID),
				Name:             chooseFirstNonEmpty(option.Name, option.ID),
				AdditionalCharge: option.AdditionalCharge,
				IsPremium:        option.IsPremium,
			})
		}
	}
	return charges
}

func findComboCategory(item CatalogItem, categoryID string) (domain.ComboCategory, bool) {
	categoryID = strings.TrimSpace(categoryID)
	for _, category := range item.ComboCategories {
		if category.ID == categoryID || (category.ID == "" && category.Name == categoryID) {
			return category, true
		}
	}
	return domain.ComboCategory{}, false
}

func findComboOption(category domain.ComboCategory, optionID string) (domain.ComboOption, bool) {
	for _, option := range category.Items {
		if option.ID == optionID || (option.ID == "" && option.Name == optionID) {
			return option, true
		}
	}
	return domain.ComboOption{}, false
}
