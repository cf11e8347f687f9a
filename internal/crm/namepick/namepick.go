// Package namepick selects the donor name pair presented to external
// systems: an explicitly curated preferred name wins, then the denormalized
// display name split on whitespace, then the legal name parts from the
// payment provider.
package namepick

import (
	"strings"

	donordomain "github.com/sudocentral/paypal-mailwizz/internal/donor/domain"
)

// Pick returns the (first, last) pair to present for the donor.
func Pick(donor donordomain.Donor) (string, string) {
	first := strings.TrimSpace(donor.PreferredFirstName)
	last := strings.TrimSpace(donor.PreferredLastName)
	if first != "" || last != "" {
		return first, last
	}

	if display := strings.TrimSpace(donor.DisplayName); display != "" {
		tokens := strings.Fields(display)
		if len(tokens) == 1 {
			return tokens[0], ""
		}
		return tokens[0], tokens[len(tokens)-1]
	}

	return strings.TrimSpace(donor.FirstName), strings.TrimSpace(donor.LastName)
}
