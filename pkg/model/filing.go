package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// CIK is the 10-digit zero padded Central Index Key issued by SEC
type CIK string

// NewCIK normalizes a numeric identifier into its zero padded form
func NewCIK(v string) (CIK, error) {
	v = strings.TrimSpace(strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(v)), "CIK"))
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return "", goerr.Wrap(err, "invalid CIK", goerr.V("cik", v))
	}
	if n > 9999999999 {
		return "", goerr.New("CIK out of range", goerr.V("cik", v))
	}
	return CIK(fmt.Sprintf("%010d", n)), nil
}

// Unpadded returns the CIK without leading zeros, as used in archive paths
func (c CIK) Unpadded() string {
	s := strings.TrimLeft(string(c), "0")
	if s == "" {
		return "0"
	}
	return s
}

type Company struct {
	CIK    CIK    `json:"cik" yaml:"cik"`
	Ticker string `json:"ticker" yaml:"ticker"`
	Name   string `json:"name" yaml:"name"`
}

const (
	FormAnnualReport    = "10-K"
	FormQuarterlyReport = "10-Q"
)

type Filing struct {
	CIK             CIK    `json:"cik" yaml:"cik"`
	FormType        string `json:"form_type" yaml:"form_type"`
	FilingDate      string `json:"filing_date" yaml:"filing_date"`
	Accession       string `json:"accession_number" yaml:"accession_number"`
	PrimaryDocument string `json:"primary_document" yaml:"primary_document"`
}

// DocumentPath is the archive path of the primary document relative to the
// EDGAR archive root.
func (f *Filing) DocumentPath() string {
	return fmt.Sprintf("%s/%s/%s",
		f.CIK.Unpadded(),
		strings.ReplaceAll(f.Accession, "-", ""),
		f.PrimaryDocument,
	)
}

// Excerpt is the bounded, keyword anchored text pulled from a filing
// document.
type Excerpt struct {
	Text     string `json:"text"`
	Sections int    `json:"sections"`
	// Fallback is set when no anchor keyword was found and the leading
	// lines of the document were used instead.
	Fallback bool `json:"fallback,omitempty"`
}

// Truncate returns at most n characters of the excerpt text. Content past
// the budget is dropped silently.
func (e *Excerpt) Truncate(n int) string {
	if e == nil {
		return ""
	}
	return TruncateRunes(e.Text, n)
}

// TruncateRunes cuts s to at most n characters
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
