package models

import (
	"regexp"

	"github.com/shopspring/decimal"
)

var (
	phonePattern = regexp.MustCompile(`^[0-9]{10}$`)
	codePattern  = regexp.MustCompile(`^[0-9]{6}$`)
)

func ValidPhone(phone string) bool { return phonePattern.MatchString(phone) }

// ValidSecurityCode also covers OTPs; both are six digits.
func ValidSecurityCode(code string) bool { return codePattern.MatchString(code) }

// WholePaise reports whether amount fits the two-decimal money columns
// without rounding.
func WholePaise(amount decimal.Decimal) bool {
	return amount.Equal(amount.Round(2))
}

// ReferralCodeFor derives a user's referral code from the last six digits
// of the phone number.
func ReferralCodeFor(phone string) string {
	if len(phone) <= 6 {
		return phone
	}
	return phone[len(phone)-6:]
}
