package xbrl

import "strings"

const filingURLPrefix = "https://www.sec.gov/ix?doc=/Archives/edgar/data/"

// FilingURL builds the inline XBRL viewer link of a filing:
//
//	https://www.sec.gov/ix?doc=/Archives/edgar/data/{cik}/{accession without dashes}/{accession}.htm
//
// The CIK loses its leading zeros. An all-zero CIK becomes "0".
func FilingURL(cik, accession string) string {
	trimmed := strings.TrimLeft(strings.TrimSpace(cik), "0")
	if trimmed == "" {
		trimmed = "0"
	}
	return filingURLPrefix + trimmed + "/" + strings.ReplaceAll(accession, "-", "") + "/" + accession + ".htm"
}
