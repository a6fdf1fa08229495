package analytics

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Formatter renders amounts for a locale and currency.
type Formatter struct {
	printer  *message.Printer
	currency string
}

// NewFormatter builds a Formatter. Unknown locales fall back to English.
func NewFormatter(locale, currency string) Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	if currency == "" {
		currency = "EUR"
	}
	return Formatter{printer: message.NewPrinter(tag), currency: strings.ToUpper(currency)}
}

// Amount formats v with two decimals followed by the currency code.
func (f Formatter) Amount(v float64) string {
	return f.printer.Sprintf("%v %s", number.Decimal(v, number.Scale(2)), f.currency)
}
