package formats

import (
	"fmt"
	"math/big"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/docintake/docintake/core/extraction"
)

// Format names accepted by ValidateOne. Matching is case-insensitive.
const (
	None          = "none"
	ISO8601       = "iso8601"
	ISO4217       = "iso4217"
	ISO3166       = "iso3166"
	ISO3166Alpha2 = "iso3166-alpha2"
	ISO3166Alpha3 = "iso3166-alpha3"
	ISO9362       = "iso9362"
	ISO13616      = "iso13616"
	ISO11649      = "iso11649"
	ISO17442      = "iso17442"
)

// Result is the outcome of validating one value. Corrected is set only when
// the value was accepted after normalization changed it.
type Result struct {
	Valid     bool   `json:"valid"`
	Corrected string `json:"corrected,omitempty"`
	Error     string `json:"error,omitempty"`
}

// HasCorrection reports whether the value should be replaced by Corrected.
func (r Result) HasCorrection() bool { return r.Valid && r.Corrected != "" }

type rule func(string) Result

var rules = map[string]rule{
	ISO8601:       validateDate,
	ISO4217:       validateCurrency,
	ISO3166:       countryRule(2),
	ISO3166Alpha2: countryRule(2),
	ISO3166Alpha3: countryRule(3),
	ISO9362:       validateBIC,
	ISO13616:      validateIBAN,
	ISO11649:      validateCreditorRef,
	ISO17442:      validateLEI,
}

var (
	dateRe      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	dateTimeRe  = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})[T ]\S*$`)
	currencyRe  = regexp.MustCompile(`^[A-Z]{3}$`)
	bicRe       = regexp.MustCompile(`^[A-Z]{6}[A-Z0-9]{2}([A-Z0-9]{3})?$`)
	ibanRe      = regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[A-Z0-9]{11,30}$`)
	creditorRe  = regexp.MustCompile(`^RF[0-9]{2}[A-Z0-9]{1,21}$`)
	leiRe       = regexp.MustCompile(`^[A-Z0-9]{20}$`)
	whitespaces = regexp.MustCompile(`\s+`)
)

// Names lists the recognised format names, sorted.
func Names() []string {
	out := make([]string, 0, len(rules)+1)
	out = append(out, None)
	for name := range rules {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ValidateOne checks value against the named format. Empty values, the
// "Unknown" placeholder and unrecognised formats are always valid.
func ValidateOne(value any, format string) Result {
	r, ok := rules[strings.ToLower(strings.TrimSpace(format))]
	if !ok {
		return Result{Valid: true}
	}
	raw, ok := asString(value)
	if !ok {
		return Result{Valid: true}
	}
	res := r(strings.TrimSpace(raw))
	if res.Valid && res.Corrected == raw {
		res.Corrected = ""
	}
	return res
}

func asString(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		s := strings.TrimSpace(v)
		if s == "" || s == extraction.UnknownValue {
			return "", false
		}
		return v, true
	default:
		return fmt.Sprint(v), true
	}
}

func accept(normalized string) Result {
	return Result{Valid: true, Corrected: normalized}
}

func reject(format string, args ...any) Result {
	return Result{Valid: false, Error: fmt.Sprintf(format, args...)}
}

func validateDate(v string) Result {
	datePart := v
	if !dateRe.MatchString(v) {
		m := dateTimeRe.FindStringSubmatch(v)
		if m == nil {
			return reject("expected ISO 8601 date YYYY-MM-DD, got %q", v)
		}
		datePart = m[1]
	}
	if _, err := time.Parse("2006-01-02", datePart); err != nil {
		return reject("invalid date values")
	}
	return accept(datePart)
}

func validateCurrency(v string) Result {
	norm := strings.ToUpper(v)
	if !currencyRe.MatchString(norm) {
		return reject("expected 3-letter ISO 4217 currency code, got %q", v)
	}
	return accept(norm)
}

func countryRule(length int) rule {
	re := regexp.MustCompile(fmt.Sprintf(`^[A-Z]{%d}$`, length))
	return func(v string) Result {
		norm := strings.ToUpper(v)
		if !re.MatchString(norm) {
			return reject("expected %d-letter ISO 3166 country code, got %q", length, v)
		}
		return accept(norm)
	}
}

func validateBIC(v string) Result {
	norm := strings.ToUpper(whitespaces.ReplaceAllString(v, ""))
	if !bicRe.MatchString(norm) {
		return reject("expected ISO 9362 BIC of 8 or 11 characters (6 letters, 2 alphanumerics, optional 3-character branch), got %q", v)
	}
	return accept(norm)
}

func validateIBAN(v string) Result {
	norm := strings.ToUpper(whitespaces.ReplaceAllString(v, ""))
	if !ibanRe.MatchString(norm) {
		return reject("expected ISO 13616 IBAN (country code, 2 check digits, up to 30 alphanumerics), got %q", v)
	}
	if !mod97Valid(norm[4:] + norm[:4]) {
		return reject("IBAN checksum failed: mod-97 check digits do not match")
	}
	return accept(norm)
}

func validateCreditorRef(v string) Result {
	norm := strings.ToUpper(whitespaces.ReplaceAllString(v, ""))
	if !creditorRe.MatchString(norm) {
		return reject("expected ISO 11649 creditor reference starting with RF and 2 check digits, got %q", v)
	}
	if !mod97Valid(norm[4:] + norm[:4]) {
		return reject("creditor reference checksum failed: mod-97 check digits do not match")
	}
	return accept(norm)
}

func validateLEI(v string) Result {
	norm := strings.ToUpper(whitespaces.ReplaceAllString(v, ""))
	if !leiRe.MatchString(norm) {
		return reject("expected 20-character ISO 17442 LEI, got %q", v)
	}
	return accept(norm)
}

// mod97Valid applies the ISO 7064 MOD 97-10 check used by IBAN and RF
// references: letters expand to 10..35 and the number must equal 1 mod 97.
func mod97Valid(s string) bool {
	var digits strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			fmt.Fprintf(&digits, "%d", r-'A'+10)
		default:
			return false
		}
	}
	n, ok := new(big.Int).SetString(digits.String(), 10)
	if !ok {
		return false
	}
	return new(big.Int).Mod(n, big.NewInt(97)).Int64() == 1
}
