package utils

import (
	"strconv"
	"strings"
	"time"

	"propleads/store"
)

// LeadsCSVHeader is the fixed export header row.
const LeadsCSVHeader = "Name,Email,Phone,Property Type,BHK,Location,Min Budget,Max Budget,Status,Priority,Source,Notes,Created At"

// BuildLeadsCSV renders leads as CSV. Every field is double-quoted with
// internal quotes doubled, dates are ISO-8601; encoding/csv is not used
// because it only quotes fields that need it.
func BuildLeadsCSV(leads []store.LeadWithMeta) string {
	var b strings.Builder
	b.WriteString(LeadsCSVHeader)
	b.WriteString("\n")

	for i, lead := range leads {
		if i > 0 {
			b.WriteString("\n")
		}
		fields := []string{
			lead.Name,
			lead.Email,
			lead.Phone,
			string(lead.PropertyType),
			stringOrEmpty((*string)(lead.BHKType)),
			stringOrEmpty(lead.PreferredLocation),
			strconv.Itoa(lead.MinBudget),
			strconv.Itoa(lead.MaxBudget),
			string(lead.Status),
			string(lead.Priority),
			string(lead.Source),
			stringOrEmpty(lead.Notes),
			lead.CreatedAt.UTC().Format(time.RFC3339),
		}
		for j, field := range fields {
			if j > 0 {
				b.WriteString(",")
			}
			b.WriteString(quoteCSVField(field))
		}
	}

	return b.String()
}

func quoteCSVField(field string) string {
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
