package ranking

import "github.com/utafrali/storefront-search/internal/domain"

// SeasonalPoint is awarded per season keyword found in a product.
const SeasonalPoint = 0.05

// seasonKeywords are matched case-insensitively as substrings of the
// product name, description and category.
var seasonKeywords = map[domain.Season][]string{
	domain.SeasonSpring: {"spring", "mùa xuân", "tết", "floral", "garden", "làm vườn"},
	domain.SeasonSummer: {"summer", "mùa hè", "beach", "biển", "sunscreen", "chống nắng", "swim", "bơi", "quạt"},
	domain.SeasonAutumn: {"autumn", "mùa thu", "back to school", "cardigan", "trung thu", "sweater"},
	domain.SeasonWinter: {"winter", "mùa đông", "warm", "giữ nhiệt", "áo khoác", "jacket", "heater", "sưởi"},
}

// SeasonKeywords returns the vocabulary of season s.
func SeasonKeywords(s domain.Season) []string {
	return append([]string(nil), seasonKeywords[s]...)
}
