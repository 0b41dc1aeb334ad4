package report

import (
	"fmt"
	"math"
)

// NoDataPlaceholder is shown wherever a rate has no audits behind it.
const NoDataPlaceholder = "No data"

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Rate is the compliant share of total as a percentage; 0 when total is 0.
func Rate(compliant, total int) float64 {
	if total <= 0 {
		return 0
	}
	return Round1(float64(compliant) / float64(total) * 100)
}

func FormatRate(v float64) string {
	return fmt.Sprintf("%.1f%%", Round1(v))
}

// Summarize computes the executive summary from the table rows alone.
func Summarize(rows []Row) Summary {
	var s Summary
	if len(rows) == 0 {
		return s
	}
	var rateSum float64
	for i, r := range rows {
		s.TotalAudits += r.Total
		s.Compliant += r.Compliant
		s.NonCompliant += r.NonCompliant
		s.Partial += r.Partial
		s.OpenIssues += r.OpenIssues
		rateSum += r.Rate
		if i == 0 || r.Rate > s.HighestRate {
			s.HighestRate, s.HighestLabel = r.Rate, rowName(r)
		}
		if i == 0 || r.Rate < s.LowestRate {
			s.LowestRate, s.LowestLabel = r.Rate, rowName(r)
		}
	}
	s.OverallRate = Rate(s.Compliant, s.TotalAudits)
	s.AverageRate = Round1(rateSum / float64(len(rows)))
	s.HighestRate = Round1(s.HighestRate)
	s.LowestRate = Round1(s.LowestRate)
	return s
}

func rowName(r Row) string {
	if r.State != "" {
		return r.Label + " (" + r.State + ")"
	}
	return r.Label
}

// DisplayRate formats a summary rate, substituting the placeholder when the
// summary covers no audits.
func (s Summary) DisplayRate(v float64) string {
	if s.TotalAudits == 0 {
		return "0 (" + NoDataPlaceholder + ")"
	}
	return FormatRate(v)
}

// Recommendation picks the closing advice from the overall compliance rate.
func Recommendation(rate float64) string {
	switch {
	case rate >= 90:
		return "Maintain current compliance practices and continue routine monitoring."
	case rate >= 70:
		return "Targeted improvement is recommended for the areas with the lowest compliance rates."
	default:
		return "Immediate corrective action is required to address widespread non-compliance."
	}
}

// Conclusion is the narrative closing section with the figures substituted.
func Conclusion(t Type, s Summary) string {
	if s.TotalAudits == 0 {
		return fmt.Sprintf("No audits were found for this %s report. Compliance rate: %s.",
			t.Title(), s.DisplayRate(0))
	}
	text := fmt.Sprintf(
		"Across %d audits, %d were compliant, %d non-compliant and %d partially compliant, "+
			"an overall compliance rate of %s (average %s per group).",
		s.TotalAudits, s.Compliant, s.NonCompliant, s.Partial,
		FormatRate(s.OverallRate), FormatRate(s.AverageRate))
	if s.HighestLabel != "" && s.HighestLabel != s.LowestLabel {
		text += fmt.Sprintf(" The highest rate was %s for %s and the lowest %s for %s.",
			FormatRate(s.HighestRate), s.HighestLabel, FormatRate(s.LowestRate), s.LowestLabel)
	}
	if s.OpenIssues > 0 {
		text += fmt.Sprintf(" %d issues remain open.", s.OpenIssues)
	}
	return text + " " + Recommendation(s.OverallRate)
}
