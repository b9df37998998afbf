// Package transaction defines the canonical transaction record produced by
// statement extraction and the normalization rule that reconciles the
// heterogeneous raw amount fields returned by the extraction model into one
// signed amount string.
package transaction

import (
	"strings"

	"github.com/dvloznov/statement-extractor/internal/amount"
)

// InternalFields are schema fields consumed by amount resolution only. They
// may appear in extraction schemas but must never be projected into output.
var InternalFields = map[string]bool{
	"credit_amount":  true,
	"debit_amount":   true,
	"raw_amount":     true,
	"type_indicator": true,
}

// Transaction is one normalized statement row. All fields are free text as
// extracted; Amount is always sign-prefixed after construction ("+0.00" when
// the extraction carried no amount data at all). Instances are not mutated
// after New returns.
type Transaction struct {
	Date          string `json:"date"`
	Amount        string `json:"amount"`
	Balance       string `json:"balance"`
	Remarks       string `json:"remarks"`
	TransactionID string `json:"transactionId"`
}

// RawFields carries the verbatim extracted values for one transaction
// candidate before normalization. Statement layouts populate different
// subsets: separate credit/debit columns, a single amount column, or an
// amount column plus a Dr/Cr indicator column.
type RawFields struct {
	Date          string
	Amount        string
	CreditAmount  string
	DebitAmount   string
	RawAmount     string
	TypeIndicator string
	Balance       string
	Remarks       string
	TransactionID string
}

// New builds a Transaction from raw extracted fields, running amount
// resolution exactly once. This is the only constructor; both the validated
// and the dynamic extraction paths go through it so the sign rules cannot
// diverge.
func New(f RawFields) Transaction {
	return Transaction{
		Date:          f.Date,
		Amount:        ResolveAmount(f.Amount, f.CreditAmount, f.DebitAmount, f.RawAmount, f.TypeIndicator),
		Balance:       f.Balance,
		Remarks:       f.Remarks,
		TransactionID: f.TransactionID,
	}
}

// ResolveAmount reconciles up to four raw amount fields into one signed
// amount string of the form [+|-]digits[.digits].
//
// Precedence, first match wins:
//  1. A pre-populated amount (other than ""/"0"/"0.00") is authoritative:
//     its sign is re-detected and its value re-cleaned, so resolving an
//     already-resolved amount is a no-op.
//  2. A debit column value that cleans to non-zero: negative.
//  3. A credit column value that cleans to non-zero: positive.
//  4. A raw amount that cleans to anything, zero included. The sign comes
//     from a Dr/Cr type indicator when one is present, falling back to sign
//     detection on the raw value for unrecognized indicators.
//  5. Nothing matched: "+0.00".
//
// Zero handling is deliberately asymmetric: zero debit/credit cells are
// treated as absent so empty columns do not win over a populated raw amount,
// while a raw amount of "0.00" is accepted as final.
func ResolveAmount(amt, credit, debit, raw, indicator string) string {
	if amt != "" && amt != "0" && amt != "0.00" {
		cleaned := amount.Normalize(amt)
		if cleaned == "" {
			return amt
		}
		if amount.DetectNegative(amt) {
			return "-" + cleaned
		}
		return "+" + cleaned
	}

	finalAmount := ""
	sign := "+"

	if strings.TrimSpace(debit) != "" {
		cleaned := amount.Normalize(debit)
		if cleaned != "" && cleaned != "0" && cleaned != "0.00" {
			finalAmount = cleaned
			sign = "-"
		}
	}

	if finalAmount == "" && strings.TrimSpace(credit) != "" {
		cleaned := amount.Normalize(credit)
		if cleaned != "" && cleaned != "0" && cleaned != "0.00" {
			finalAmount = cleaned
			sign = "+"
		}
	}

	if finalAmount == "" && strings.TrimSpace(raw) != "" {
		cleaned := amount.Normalize(raw)
		if cleaned != "" {
			finalAmount = cleaned
			sign = resolveSign(raw, indicator)
		}
	}

	if finalAmount == "" {
		return "+0.00"
	}
	return sign + finalAmount
}

// resolveSign maps a Dr/Cr type indicator to a sign, falling back to sign
// detection on the raw amount when the indicator is absent or unrecognized.
func resolveSign(raw, indicator string) string {
	if indicator != "" {
		switch strings.ToLower(strings.TrimSpace(indicator)) {
		case "dr", "d", "debit", "withdrawal":
			return "-"
		case "cr", "c", "credit", "deposit":
			return "+"
		}
	}
	if amount.DetectNegative(raw) {
		return "-"
	}
	return "+"
}
