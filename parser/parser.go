package parser

import (
	"fmt"
	"strings"

	"github.com/aluiziolira/asx-scraper/models"
)

// ValidateCompany ensures a listing record carries the fields the scraper needs.
func ValidateCompany(c models.Company) error {
	if strings.TrimSpace(c.Code) == "" {
		return fmt.Errorf("company missing code")
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("company missing name for %s", c.Code)
	}
	return nil
}

// NormalizeCode upper-cases an exchange code and removes surrounding whitespace.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
