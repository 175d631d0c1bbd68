package settings

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
	"github.com/freelanceflow/freelanceflow/internal/types"
	"github.com/shopspring/decimal"
)

const (
	DefaultInvoicePrefix = "INV"
	DefaultDueDays       = 30
	MaxInvoicePrefixLen  = 10

	defaultPrefixSuffixLen = 5
)

// DefaultInvoicePrefixFor derives the freelancer's default prefix, such as INV-7K2QF, from
// base and the freelancer ID. Invoice numbers are unique across freelancers, so defaults must
// not be shared. A non-zero attempt salts the derivation after a collision.
func DefaultInvoicePrefixFor(base, freelancerID string, attempt int) string {
	if base == "" {
		base = DefaultInvoicePrefix
	}
	if maxBase := MaxInvoicePrefixLen - defaultPrefixSuffixLen - 1; len(base) > maxBase {
		base = base[:maxBase]
	}

	key := freelancerID
	if attempt > 0 {
		key = fmt.Sprintf("%s#%d", freelancerID, attempt)
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))

	space := uint64(1)
	for i := 0; i < defaultPrefixSuffixLen; i++ {
		space *= 36
	}
	suffix := strings.ToUpper(strconv.FormatUint(uint64(h.Sum32())%space, 36))
	suffix = strings.Repeat("0", defaultPrefixSuffixLen-len(suffix)) + suffix

	return base + "-" + suffix
}

// FreelancerSetting is the per-freelancer billing configuration and the sole owner
// of invoice numbering state.
type FreelancerSetting struct {
	ID                string          `db:"id" json:"id"`
	InvoicePrefix     string          `db:"invoice_prefix" json:"invoice_prefix"`
	NextInvoiceNumber int             `db:"next_invoice_number" json:"next_invoice_number"`
	InvoiceYear       int             `db:"invoice_year" json:"invoice_year"`
	InvoiceDueDays    int             `db:"invoice_due_days" json:"invoice_due_days"`
	BaseCurrency      string          `db:"base_currency" json:"base_currency"`
	DefaultTaxRate    decimal.Decimal `db:"default_tax_rate" json:"default_tax_rate"`
	types.BaseModel
}

// NewDefaultSetting builds the row created the first time a freelancer needs settings
func NewDefaultSetting(ctx context.Context, prefix, currency string, dueDays int, now time.Time) *FreelancerSetting {
	if prefix == "" {
		prefix = DefaultInvoicePrefix
	}
	if currency == "" {
		currency = types.DefaultCurrency
	}
	return &FreelancerSetting{
		ID:                types.GenerateUUIDWithPrefix(types.UUID_PREFIX_FREELANCER_SETTING),
		InvoicePrefix:     prefix,
		NextInvoiceNumber: 1,
		InvoiceYear:       now.Year(),
		InvoiceDueDays:    dueDays,
		BaseCurrency:      types.NormalizeCurrency(currency),
		DefaultTaxRate:    decimal.Zero,
		BaseModel:         types.GetDefaultBaseModel(ctx),
	}
}

// RollYear resets the counter when year differs from the stored invoice year.
// It reports whether a reset happened.
func (s *FreelancerSetting) RollYear(year int) bool {
	if s.InvoiceYear == year {
		return false
	}
	s.InvoiceYear = year
	s.NextInvoiceNumber = 1
	return true
}

// FormatInvoiceNumber renders the current counter as PREFIX-YYYY-NNN.
// Sequence values past 999 widen the number rather than wrapping.
func (s *FreelancerSetting) FormatInvoiceNumber() string {
	return fmt.Sprintf("%s-%d-%03d", s.InvoicePrefix, s.InvoiceYear, s.NextInvoiceNumber)
}

// Validate checks the user editable fields
func (s *FreelancerSetting) Validate() error {
	prefix := strings.TrimSpace(s.InvoicePrefix)
	if prefix == "" || len(prefix) > MaxInvoicePrefixLen {
		return ierr.NewError("invalid invoice prefix").
			WithHintf("Invoice prefix must be between 1 and %d characters", MaxInvoicePrefixLen).
			WithReportableDetails(map[string]any{
				"invoice_prefix": s.InvoicePrefix,
			}).
			Mark(ierr.ErrValidation)
	}

	if err := types.ValidateCurrencyCode(s.BaseCurrency); err != nil {
		return err
	}

	if s.DefaultTaxRate.IsNegative() || s.DefaultTaxRate.GreaterThan(decimal.NewFromInt(100)) {
		return ierr.NewError("invalid default tax rate").
			WithHint("Default tax rate must be between 0 and 100").
			WithReportableDetails(map[string]any{
				"default_tax_rate": s.DefaultTaxRate.String(),
			}).
			Mark(ierr.ErrValidation)
	}

	if err := types.ValidateScale("default_tax_rate", s.DefaultTaxRate, types.PercentPrecision); err != nil {
		return err
	}

	if s.InvoiceDueDays < 0 || s.InvoiceDueDays > 365 {
		return ierr.NewError("invalid invoice due days").
			WithHint("Invoice due days must be between 0 and 365").
			Mark(ierr.ErrValidation)
	}

	if s.NextInvoiceNumber < 1 {
		return ierr.NewError("invalid next invoice number").
			WithHint("Next invoice number must be at least 1").
			Mark(ierr.ErrValidation)
	}

	return nil
}
