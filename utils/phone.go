package utils

import (
	"regexp"
	"strings"
)

// FormatPhoneNumber formats a phone number to a standard format
// Removes all non-digit characters and ensures it starts with country code
func FormatPhoneNumber(phoneNumber string) string {
	// Remove all non-digit characters
	re := regexp.MustCompile(`\D`)
	digits := re.ReplaceAllString(phoneNumber, "")

	// If it doesn't start with country code, assume Benin (+229)
	if len(digits) > 0 && !strings.HasPrefix(digits, "229") {
		// Remove leading zeros
		digits = strings.TrimLeft(digits, "0")
		// Add Benin country code
		digits = "229" + digits
	}

	return digits
}

// ValidatePhoneNumber validates if a phone number is in correct format
func ValidatePhoneNumber(phoneNumber string) bool {
	// Remove all non-digit characters
	re := regexp.MustCompile(`\D`)
	cleaned := re.ReplaceAllString(phoneNumber, "")

	// Local numbers are 8 digits; mobile money also accepts the
	// country-code form
	if strings.HasPrefix(cleaned, "229") {
		cleaned = cleaned[3:]
	}
	if len(cleaned) != 8 {
		return false
	}

	// Mobile prefixes in Benin are 4-9
	firstDigit := cleaned[0]
	return firstDigit >= '4' && firstDigit <= '9'
}

// NormalizePhoneNumber normalizes phone number for database storage
func NormalizePhoneNumber(phoneNumber string) string {
	return FormatPhoneNumber(phoneNumber)
}

// DisplayPhoneNumber formats phone number for display
func DisplayPhoneNumber(phoneNumber string) string {
	formatted := FormatPhoneNumber(phoneNumber)
	if len(formatted) == 11 && strings.HasPrefix(formatted, "229") {
		// Format as +229 XX XX XX XX
		return "+" + formatted[:3] + " " + formatted[3:5] + " " + formatted[5:7] + " " + formatted[7:9] + " " + formatted[9:11]
	}
	return phoneNumber
}
