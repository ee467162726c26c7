package listing

import (
	"strings"

	"github.com/aluiziolira/asx-scraper/models"
)

// IsSector reports whether an industry group equals target after trimming and case folding.
func IsSector(industryGroup, target string) bool {
	return strings.EqualFold(strings.TrimSpace(industryGroup), strings.TrimSpace(target))
}

// FilterSector keeps companies whose industry group matches target, in listing order.
func FilterSector(companies []models.Company, target string) []models.Company {
	out := make([]models.Company, 0)
	for _, c := range companies {
		if IsSector(c.IndustryGroup, target) {
			out = append(out, c)
		}
	}
	return out
}

// FilterCodes keeps companies whose code is in the allow-list, in listing order.
func FilterCodes(companies []models.Company, codes []string) []models.Company {
	allowed := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		allowed[strings.ToUpper(strings.TrimSpace(code))] = struct{}{}
	}
	out := make([]models.Company, 0)
	for _, c := range companies {
		if _, ok := allowed[strings.ToUpper(c.Code)]; ok {
			out = append(out, c)
		}
	}
	return out
}
