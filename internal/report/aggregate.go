package report

import (
	"sort"
	"time"

	"github.com/nexuscomply/backend/internal/models"
)

const (
	unassignedManager = "Unassigned"
	uncategorised     = "Uncategorised"
)

type bucket struct {
	row     Row
	outlets map[uint]struct{}
}

func (b *bucket) add(f AuditFact) {
	b.row.Total++
	switch f.StatusID {
	case models.StatusApproved:
		b.row.Compliant++
	case models.StatusRejected:
		b.row.NonCompliant++
	default:
		b.row.Partial++
	}
	b.outlets[f.OutletID] = struct{}{}
}

type issueTotals struct {
	open     int
	critical int
}

// Aggregate groups the facts into the rows, trend and summary of the
// requested report type. Every fact lands in exactly one of the compliant,
// non-compliant and partially compliant counts.
func Aggregate(req Request, facts []AuditFact, issues []IssueStat, now time.Time) *Data {
	data := &Data{
		Type:        req.Type,
		From:        req.From,
		To:          req.To,
		Filter:      req.Filter,
		TableRows:   []Row{},
		TrendData:   []TrendPoint{},
		GeneratedAt: now,
	}
	if len(facts) == 0 {
		data.NoData = true
		return data
	}

	perOutlet := map[uint]issueTotals{}
	for _, st := range issues {
		t := perOutlet[st.OutletID]
		if st.Open {
			t.open += st.Count
			if st.Severity == string(models.SeverityCritical) {
				t.critical += st.Count
			}
		}
		perOutlet[st.OutletID] = t
	}

	buckets := map[string]*bucket{}
	var order []string
	get := func(key string, init Row) *bucket {
		b, ok := buckets[key]
		if !ok {
			b = &bucket{row: init, outlets: map[uint]struct{}{}}
			buckets[key] = b
			order = append(order, key)
		}
		return b
	}

	for _, f := range facts {
		var b *bucket
		switch req.Type {
		case TypeOverallTrends:
			period := f.StartDate.Format("2006-01")
			b = get(period+"|"+f.State, Row{Label: period, State: f.State})
		case TypeManagerPerformance:
			name := f.ManagerName
			if f.ManagerID == nil || name == "" {
				name = unassignedManager
			}
			b = get(name, Row{Label: name})
		case TypeOutletNonCompliance:
			b = get(f.OutletName+"|"+f.State, Row{Label: f.OutletName, State: f.State})
		default:
			category := f.Category
			if category == "" {
				category = uncategorised
			}
			b = get(category, Row{Label: category})
		}
		b.add(f)
	}

	rows := make([]Row, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		b.row.Rate = Rate(b.row.Compliant, b.row.Total)
		b.row.Outlets = len(b.outlets)
		if req.Type != TypeOverallTrends {
			for id := range b.outlets {
				b.row.OpenIssues += perOutlet[id].open
				b.row.CriticalIssues += perOutlet[id].critical
			}
		}
		rows = append(rows, b.row)
	}
	sortRows(req.Type, rows)

	data.TableRows = rows
	data.TrendData = trend(req.Type, rows)
	data.Summary = Summarize(rows)
	return data
}

func sortRows(t Type, rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch t {
		case TypeManagerPerformance:
			if a.Rate != b.Rate {
				return a.Rate > b.Rate
			}
		case TypeOutletNonCompliance:
			if a.NonCompliant != b.NonCompliant {
				return a.NonCompliant > b.NonCompliant
			}
			if a.Rate != b.Rate {
				return a.Rate < b.Rate
			}
		}
		if a.Label != b.Label {
			return a.Label < b.Label
		}
		return a.State < b.State
	})
}

// trend collapses overall rows per period; other types chart one bar per row.
func trend(t Type, rows []Row) []TrendPoint {
	if t != TypeOverallTrends {
		points := make([]TrendPoint, 0, len(rows))
		for _, r := range rows {
			points = append(points, TrendPoint{Label: r.Label, Rate: r.Rate})
		}
		return points
	}
	type acc struct{ compliant, total int }
	var periods []string
	totals := map[string]*acc{}
	for _, r := range rows {
		a, ok := totals[r.Label]
		if !ok {
			a = &acc{}
			totals[r.Label] = a
			periods = append(periods, r.Label)
		}
		a.compliant += r.Compliant
		a.total += r.Total
	}
	sort.Strings(periods)
	points := make([]TrendPoint, 0, len(periods))
	for _, p := range periods {
		points = append(points, TrendPoint{Label: p, Rate: Rate(totals[p].compliant, totals[p].total)})
	}
	return points
}
