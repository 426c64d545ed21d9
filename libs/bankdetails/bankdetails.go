// Package bankdetails describes which bank identifiers each account currency
// uses. The field table drives labels, form rendering and validation, so the
// three cannot drift apart.
package bankdetails

import (
	"regexp"
	"strings"

	"github.com/faisalantu/tradebridge-systems/libs/apperr"
	"github.com/faisalantu/tradebridge-systems/libs/currency"
)

const (
	KeyAccountName         = "accountName"
	KeyAccountNumber       = "accountNumber"
	KeySortCode            = "sortCode"
	KeyBSB                 = "bsb"
	KeyInstitutionNumber   = "institutionNumber"
	KeyBranchTransitNumber = "branchTransitNumber"
	KeyBIC                 = "bic"
	KeyBankAddress         = "bankAddress"
	KeyRoutingNumber       = "routingNumber"
)

type Rule struct {
	Pattern *regexp.Regexp
	Hint    string
}

func (r *Rule) ok(value string) bool {
	return r == nil || r.Pattern.MatchString(value)
}

var (
	sortCodeRule    = &Rule{regexp.MustCompile(`^(\d{2}-\d{2}-\d{2}|\d{6})$`), "must be NN-NN-NN or 6 digits"}
	bsbRule         = &Rule{regexp.MustCompile(`^(\d{3}-\d{3}|\d{6})$`), "must be NNN-NNN or 6 digits"}
	institutionRule = &Rule{regexp.MustCompile(`^\d{3}$`), "must be 3 digits"}
	transitRule     = &Rule{regexp.MustCompile(`^\d{5}$`), "must be 5 digits"}
	routingRule     = &Rule{regexp.MustCompile(`^\d{9}$`), "must be 9 digits"}
	bicRule         = &Rule{regexp.MustCompile(`^[A-Za-z0-9]{8}([A-Za-z0-9]{3})?$`), "must be 8 or 11 letters or digits"}
	accountRule     = &Rule{regexp.MustCompile(`^[0-9A-Za-z -]{4,34}$`), "must be 4 to 34 letters or digits"}
)

type Field struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
	Rule     *Rule  `json:"-"`
}

var fields = map[currency.Currency][]Field{
	currency.GBP: {
		{Key: KeyAccountName, Label: "Account Name", Required: true},
		{Key: KeyAccountNumber, Label: "Account Number", Required: true, Rule: accountRule},
		{Key: KeySortCode, Label: "Sort Code", Rule: sortCodeRule},
	},
	currency.AUD: {
		{Key: KeyAccountName, Label: "Account Name", Required: true},
		{Key: KeyBSB, Label: "BSB", Rule: bsbRule},
		{Key: KeyAccountNumber, Label: "Account Number", Required: true, Rule: accountRule},
	},
	currency.CAD: {
		{Key: KeyAccountName, Label: "Account Name", Required: true},
		{Key: KeyInstitutionNumber, Label: "Institution Number", Rule: institutionRule},
		{Key: KeyBranchTransitNumber, Label: "Branch Transit Number", Rule: transitRule},
		{Key: KeyAccountNumber, Label: "Account Number", Required: true, Rule: accountRule},
		{Key: KeyBIC, Label: "BIC", Rule: bicRule},
	},
	currency.USD: {
		{Key: KeyAccountName, Label: "Account Name", Required: true},
		{Key: KeyBankAddress, Label: "Bank Address"},
		{Key: KeyAccountNumber, Label: "Account Number", Required: true, Rule: accountRule},
		{Key: KeyRoutingNumber, Label: "Routing Number", Rule: routingRule},
	},
}

// Fields returns the ordered field list for c, or nil for an unknown currency.
func Fields(c currency.Currency) []Field {
	src := fields[c]
	if src == nil {
		return nil
	}
	out := make([]Field, len(src))
	copy(out, src)
	return out
}

// Labels maps each field key used by c to its display label.
func Labels(c currency.Currency) map[string]string {
	src := fields[c]
	if src == nil {
		return nil
	}
	labels := make(map[string]string, len(src))
	for _, f := range src {
		labels[f.Key] = f.Label
	}
	return labels
}

// BankDetails is a bank account in one currency. Only the identifiers of
// that currency may be set.
type BankDetails struct {
	Currency            currency.Currency `json:"currency"`
	AccountName         string            `json:"accountName"`
	AccountNumber       string            `json:"accountNumber,omitempty"`
	SortCode            string            `json:"sortCode,omitempty"`
	BSB                 string            `json:"bsb,omitempty"`
	InstitutionNumber   string            `json:"institutionNumber,omitempty"`
	BranchTransitNumber string            `json:"branchTransitNumber,omitempty"`
	BIC                 string            `json:"bic,omitempty"`
	BankAddress         string            `json:"bankAddress,omitempty"`
	RoutingNumber       string            `json:"routingNumber,omitempty"`
	Reference           string            `json:"reference,omitempty"`
}

// Values returns every identifier keyed by field key, empty ones included.
func (b BankDetails) Values() map[string]string {
	return map[string]string{
		KeyAccountName:         b.AccountName,
		KeyAccountNumber:       b.AccountNumber,
		KeySortCode:            b.SortCode,
		KeyBSB:                 b.BSB,
		KeyInstitutionNumber:   b.InstitutionNumber,
		KeyBranchTransitNumber: b.BranchTransitNumber,
		KeyBIC:                 b.BIC,
		KeyBankAddress:         b.BankAddress,
		KeyRoutingNumber:       b.RoutingNumber,
	}
}

// Normalize trims whitespace and upper-cases the BIC.
func (b BankDetails) Normalize() BankDetails {
	b.AccountName = strings.TrimSpace(b.AccountName)
	b.AccountNumber = strings.TrimSpace(b.AccountNumber)
	b.SortCode = strings.TrimSpace(b.SortCode)
	b.BSB = strings.TrimSpace(b.BSB)
	b.InstitutionNumber = strings.TrimSpace(b.InstitutionNumber)
	b.BranchTransitNumber = strings.TrimSpace(b.BranchTransitNumber)
	b.BIC = strings.ToUpper(strings.TrimSpace(b.BIC))
	b.BankAddress = strings.TrimSpace(b.BankAddress)
	b.RoutingNumber = strings.TrimSpace(b.RoutingNumber)
	b.Reference = strings.TrimSpace(b.Reference)
	return b
}

// Validate rejects missing required fields, malformed identifiers and any
// identifier that belongs to a different currency.
func Validate(b BankDetails) error {
	var v apperr.Validator
	table, ok := fields[b.Currency]
	if !ok {
		v.Check(false, "currency", "unsupported currency")
		return v.Err()
	}

	allowed := make(map[string]bool, len(table))
	values := b.Values()
	for _, f := range table {
		allowed[f.Key] = true
		val := values[f.Key]
		if val == "" {
			v.Check(!f.Required, f.Key, "is required")
			continue
		}
		if f.Rule != nil {
			v.Check(f.Rule.ok(val), f.Key, f.Rule.Hint)
		}
	}
	for key, val := range values {
		if val != "" && !allowed[key] {
			v.Check(false, key, "not used for "+b.Currency.String()+" accounts")
		}
	}
	return v.Err()
}
