package calculator

import (
	"strings"

	"github.com/shopspring/decimal"

	ierr "github.com/mmynk/billdesk/internal/errors"
)

// MaxWordsAmount is the largest amount ToWords can spell (nine digits).
const MaxWordsAmount = 999_999_999

var ones = [...]string{
	"", "One ", "Two ", "Three ", "Four ", "Five ", "Six ", "Seven ", "Eight ", "Nine ",
	"Ten ", "Eleven ", "Twelve ", "Thirteen ", "Fourteen ", "Fifteen ", "Sixteen ",
	"Seventeen ", "Eighteen ", "Nineteen ",
}

var tens = [...]string{
	"", "", "Twenty", "Thirty", "Forty", "Fifty", "Sixty", "Seventy", "Eighty", "Ninety",
}

// ToWords spells amount in the Indian numbering system.
//
// The amount is read as nine digits grouped 2-2-2-1-2 (crore, lakh,
// thousand, hundred, units). Every non-zero group is followed by its scale
// word and a trailing space, and the units group gets an "and " prefix when
// a higher group was spelled. The result is not trimmed: ToWords(100) is
// "One Hundred ".
func ToWords(amount uint64) (string, error) {
	if amount == 0 {
		return "Zero", nil
	}
	if amount > MaxWordsAmount {
		return "", ierr.NewErrorf("amount %d has more than nine digits", amount).
			WithHint("Amount is too large to print in words.").
			Mark(ierr.ErrOverflow)
	}

	groups := []struct {
		value uint64
		scale string
	}{
		{amount / 10_000_000, "Crore "},
		{amount / 100_000 % 100, "Lakh "},
		{amount / 1_000 % 100, "Thousand "},
		{amount / 100 % 10, "Hundred "},
	}

	var b strings.Builder
	for _, g := range groups {
		if g.value != 0 {
			b.WriteString(twoDigitWords(g.value))
			b.WriteString(g.scale)
		}
	}
	if units := amount % 100; units != 0 {
		if b.Len() > 0 {
			b.WriteString("and ")
		}
		b.WriteString(twoDigitWords(units))
	}
	return b.String(), nil
}

func twoDigitWords(n uint64) string {
	if n < 20 {
		return ones[n]
	}
	return tens[n/10] + " " + ones[n%10]
}

// AmountInWords renders a net amount the way it is printed on a document:
// "Rupees One Hundred and Twenty Six Only".
func AmountInWords(net decimal.Decimal) (string, error) {
	if net.IsNegative() {
		return "", ierr.NewErrorf("negative amount %s", net.String()).
			WithHint("Amount in words needs a non-negative amount.").
			Mark(ierr.ErrInvalidOperation)
	}
	if net.GreaterThan(decimal.NewFromInt(MaxWordsAmount)) {
		return "", ierr.NewErrorf("amount %s has more than nine digits", net.String()).
			WithHint("Amount is too large to print in words.").
			Mark(ierr.ErrOverflow)
	}
	words, err := ToWords(uint64(net.IntPart()))
	if err != nil {
		return "", err
	}
	return "Rupees " + strings.TrimSpace(words) + " Only", nil
}
