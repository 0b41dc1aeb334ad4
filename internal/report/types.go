// Package report aggregates audit outcomes into compliance reports and
// renders them as PDF documents.
package report

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Type selects one of the report templates.
type Type string

const (
	TypeOverallTrends       Type = "overall_trends"
	TypeManagerPerformance  Type = "manager_performance"
	TypeOutletNonCompliance Type = "outlet_non_compliance"
	TypeStandardAdherence   Type = "standard_adherence"
)

var (
	ErrUnknownType = errors.New("unknown report type")
	ErrNoData      = errors.New("no audits match the requested period")
)

// Types lists the templates in display order.
func Types() []Type {
	return []Type{TypeOverallTrends, TypeManagerPerformance, TypeOutletNonCompliance, TypeStandardAdherence}
}

func (t Type) Valid() bool {
	switch t {
	case TypeOverallTrends, TypeManagerPerformance, TypeOutletNonCompliance, TypeStandardAdherence:
		return true
	}
	return false
}

// Title is the human readable template name.
func (t Type) Title() string {
	switch t {
	case TypeOverallTrends:
		return "Overall Compliance Trends"
	case TypeManagerPerformance:
		return "Manager Performance"
	case TypeOutletNonCompliance:
		return "Outlet Non-Compliance"
	case TypeStandardAdherence:
		return "Standard Adherence"
	}
	return string(t)
}

// pascal is the file name prefix, e.g. OverallTrends.
func (t Type) pascal() string {
	switch t {
	case TypeOverallTrends:
		return "OverallTrends"
	case TypeManagerPerformance:
		return "ManagerPerformance"
	case TypeOutletNonCompliance:
		return "OutletNonCompliance"
	case TypeStandardAdherence:
		return "StandardAdherence"
	}
	return "Report"
}

// FileName follows the {ReportType}_{Month}_{Year}.pdf convention.
func FileName(t Type, at time.Time) string {
	return fmt.Sprintf("%s_%s_%d.pdf", t.pascal(), at.Month().String(), at.Year())
}

// Filter narrows the audits a report covers. Zero values mean no restriction.
type Filter struct {
	State     string `json:"state,omitempty"`
	OutletID  *uint  `json:"outlet_id,omitempty"`
	ManagerID *uint  `json:"manager_id,omitempty"`
	Category  string `json:"category,omitempty"`
}

// Request is what a caller asks the generator for.
type Request struct {
	Type   Type      `json:"report_type"`
	From   time.Time `json:"from"`
	To     time.Time `json:"to"`
	Filter Filter    `json:"filter"`
}

// AuditFact is the current version of one audit group, flattened with the
// dimensions reports group by.
type AuditFact struct {
	AuditID         uint
	OriginalAuditID uint
	OutletID        uint
	OutletName      string
	State           string
	ManagerID       *uint
	ManagerName     string
	Category        string
	StartDate       time.Time
	StatusID        uint
}

// IssueStat counts issues of one outlet by severity and openness.
type IssueStat struct {
	OutletID uint
	Severity string
	Open     bool
	Count    int
}

// Row is one line of the detail table. Which fields are shown depends on the
// report type.
type Row struct {
	Label          string  `json:"label"`
	State          string  `json:"state,omitempty"`
	Outlets        int     `json:"outlets,omitempty"`
	Total          int     `json:"total_audits"`
	Compliant      int     `json:"compliant"`
	NonCompliant   int     `json:"non_compliant"`
	Partial        int     `json:"partially_compliant"`
	Rate           float64 `json:"compliance_rate"`
	OpenIssues     int     `json:"open_issues"`
	CriticalIssues int     `json:"critical_issues"`
}

// TrendPoint is one bar of the chart.
type TrendPoint struct {
	Label string  `json:"label"`
	Rate  float64 `json:"rate"`
}

// Summary holds the executive summary figures.
type Summary struct {
	TotalAudits  int     `json:"total_audits"`
	Compliant    int     `json:"compliant"`
	NonCompliant int     `json:"non_compliant"`
	Partial      int     `json:"partially_compliant"`
	OverallRate  float64 `json:"overall_rate"`
	AverageRate  float64 `json:"average_rate"`
	HighestRate  float64 `json:"highest_rate"`
	HighestLabel string  `json:"highest_label,omitempty"`
	LowestRate   float64 `json:"lowest_rate"`
	LowestLabel  string  `json:"lowest_label,omitempty"`
	OpenIssues   int     `json:"open_issues"`
}

// Data is the aggregated dataset a document is rendered from.
type Data struct {
	Type        Type         `json:"report_type"`
	From        time.Time    `json:"from"`
	To          time.Time    `json:"to"`
	Filter      Filter       `json:"filter"`
	NoData      bool         `json:"noData"`
	TableRows   []Row        `json:"tableRows"`
	TrendData   []TrendPoint `json:"trendData"`
	Summary     Summary      `json:"summary"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// Column describes one column of a detail table.
type Column struct {
	Header string
	Width  float64
	Align  string
	Value  func(Row) string
}

func itoa(n int) string { return strconv.Itoa(n) }

// Columns returns the fixed table schema of a report type.
func Columns(t Type) []Column {
	label := func(h string, w float64) Column {
		return Column{Header: h, Width: w, Align: "L", Value: func(r Row) string { return r.Label }}
	}
	state := Column{Header: "State", Width: 24, Align: "L", Value: func(r Row) string { return r.State }}
	total := Column{Header: "Audits", Width: 18, Align: "R", Value: func(r Row) string { return itoa(r.Total) }}
	compliant := Column{Header: "Compliant", Width: 22, Align: "R", Value: func(r Row) string { return itoa(r.Compliant) }}
	nonCompliant := Column{Header: "Non-Compliant", Width: 26, Align: "R", Value: func(r Row) string { return itoa(r.NonCompliant) }}
	partial := Column{Header: "Partial", Width: 18, Align: "R", Value: func(r Row) string { return itoa(r.Partial) }}
	rate := Column{Header: "Rate", Width: 20, Align: "R", Value: func(r Row) string { return FormatRate(r.Rate) }}
	open := Column{Header: "Open Issues", Width: 22, Align: "R", Value: func(r Row) string { return itoa(r.OpenIssues) }}

	switch t {
	case TypeOverallTrends:
		return []Column{label("Period", 24), state, total, compliant, nonCompliant, partial, rate}
	case TypeManagerPerformance:
		outlets := Column{Header: "Outlets", Width: 16, Align: "R", Value: func(r Row) string { return itoa(r.Outlets) }}
		return []Column{label("Manager", 42), outlets, total, compliant, nonCompliant, rate, open}
	case TypeOutletNonCompliance:
		critical := Column{Header: "Critical", Width: 18, Align: "R", Value: func(r Row) string { return itoa(r.CriticalIssues) }}
		return []Column{label("Outlet", 44), state, total, nonCompliant, critical, open, rate}
	case TypeStandardAdherence:
		return []Column{label("Category", 56), total, compliant, nonCompliant, partial, rate}
	}
	return nil
}
