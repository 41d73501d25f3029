package extract

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/maltedev/retail-price-sweeper/internal/normalize"
)

var (
	// CurrencyPattern matches a full BRL amount such as "R$ 1.299,90".
	CurrencyPattern = regexp.MustCompile(`R\$\s*\d{1,3}(?:[.\s]\d{3})*,\d{2}`)

	loosePattern = regexp.MustCompile(`R\$\s*(\d{1,3}(?:\.\d{3})+|\d+)(?:,(\d{1,2}))?`)
	decimal      = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
)

// FormatPrice normalises raw into "R$ 1.234,56". Raw may be a BRL string
// or a plain decimal as found in structured data.
func FormatPrice(raw string) (string, bool) {
	raw = normalize.Squash(strings.ReplaceAll(raw, "\u00a0", " "))
	if raw == "" {
		return "", false
	}

	if m := CurrencyPattern.FindString(raw); m != "" {
		num := strings.TrimSpace(strings.TrimPrefix(m, "R$"))
		return "R$ " + strings.ReplaceAll(num, " ", "."), true
	}

	if m := loosePattern.FindStringSubmatch(raw); m != nil {
		cents := m[2]
		if len(cents) == 1 {
			cents += "0"
		}
		if cents == "" {
			cents = "00"
		}
		return "R$ " + m[1] + "," + cents, true
	}

	if decimal.MatchString(raw) {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return "", false
		}
		return FormatBRL(f), true
	}

	return "", false
}

// FormatBRL renders an amount with Brazilian separators.
func FormatBRL(amount float64) string {
	cents := int64(math.Round(amount * 100))
	whole := cents / 100
	frac := cents % 100

	s := strconv.FormatInt(whole, 10)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("R$ %s,%02d", b.String(), frac)
}
