package services

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscomply/backend/internal/models"
	"github.com/nexuscomply/backend/internal/report"
)

func newReportService(t *testing.T, f *fixture) (*ReportService, string) {
	t.Helper()
	dir := t.TempDir()
	store := report.NewStore(dir, "test-secret", time.Hour)
	svc := NewReportService(f.db, report.NewGenerator(nil), store)
	svc.now = func() time.Time { return testNow }
	return svc, dir
}

func octoberRequest(typ report.Type) report.Request {
	return report.Request{
		Type: typ,
		From: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 10, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestReportService_BuildData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc, _ := newReportService(t, f)

	// one approved chain, one rejected-then-revised chain
	approved := f.submittedAudit(t)
	_, err := f.reviews.SetAuditStatus(ctx, f.adminActor(), approved.ID, StatusChangeRequest{StatusID: models.StatusApproved})
	require.NoError(t, err)
	rejected := f.submittedAudit(t)
	f.rejectOnce(t, rejected)
	_, err = f.audits.Revise(ctx, f.outletActor(), rejected.ID)
	require.NoError(t, err)

	data, err := svc.BuildData(ctx, f.adminActor(), octoberRequest(report.TypeOverallTrends))
	require.NoError(t, err)
	require.False(t, data.NoData)
	s := data.Summary
	assert.Equal(t, 2, s.TotalAudits, "only the current version of each chain counts")
	assert.Equal(t, 1, s.Compliant)
	assert.Equal(t, 0, s.NonCompliant)
	assert.Equal(t, 1, s.Partial, "the revising version is partially compliant")
	assert.Equal(t, s.TotalAudits, s.Compliant+s.NonCompliant+s.Partial)
	assert.Equal(t, 50.0, s.OverallRate)

	data, err = svc.BuildData(ctx, f.adminActor(), octoberRequest(report.TypeOutletNonCompliance))
	require.NoError(t, err)
	require.Len(t, data.TableRows, 1)
	assert.Equal(t, 2, data.TableRows[0].OpenIssues, "issues from earlier versions still count")

	data, err = svc.BuildData(ctx, Actor{UserID: f.otherManager.ID, Role: models.RoleManager}, octoberRequest(report.TypeOverallTrends))
	require.NoError(t, err)
	assert.True(t, data.NoData, "managers only see their outlets")

	req := octoberRequest(report.TypeStandardAdherence)
	req.Filter.Category = "Fire Safety"
	data, err = svc.BuildData(ctx, f.adminActor(), req)
	require.NoError(t, err)
	assert.True(t, data.NoData)
}

func TestReportService_EmptyRangeIsNoData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc, dir := newReportService(t, f)
	f.submittedAudit(t)

	req := report.Request{
		Type: report.TypeOverallTrends,
		From: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
	}
	data, err := svc.BuildData(ctx, f.adminActor(), req)
	require.NoError(t, err)
	assert.True(t, data.NoData)
	assert.Equal(t, 0, data.Summary.Compliant+data.Summary.NonCompliant+data.Summary.Partial)

	out, err := svc.Generate(ctx, f.adminActor(), req, true)
	assert.ErrorIs(t, err, report.ErrNoData)
	assert.Nil(t, out)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no document is stored")
}

func TestReportService_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc, _ := newReportService(t, f)

	_, err := svc.BuildData(ctx, f.outletActor(), octoberRequest(report.TypeOverallTrends))
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.BuildData(ctx, f.adminActor(), octoberRequest("weekly"))
	assert.ErrorIs(t, err, ErrUnknownReportType)

	req := octoberRequest(report.TypeOverallTrends)
	req.From, req.To = req.To, req.From
	_, err = svc.BuildData(ctx, f.adminActor(), req)
	assert.ErrorIs(t, err, ErrInvalidDateRange)
}

func TestReportService_GenerateAndStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc, _ := newReportService(t, f)
	f.submittedAudit(t)

	out, err := svc.Generate(ctx, f.managerActor(), octoberRequest(report.TypeManagerPerformance), false)
	require.NoError(t, err)
	assert.Equal(t, "ManagerPerformance_October_2026.pdf", out.Name)
	assert.True(t, bytes.HasPrefix(out.Content, []byte("%PDF-")))
	assert.Empty(t, out.Token)

	out, err = svc.Generate(ctx, f.adminActor(), octoberRequest(report.TypeOverallTrends), true)
	require.NoError(t, err)
	require.NotEmpty(t, out.Token)
	assert.Contains(t, out.Key, "reports/")

	path, name, err := svc.Resolve(out.Token)
	require.NoError(t, err)
	assert.Equal(t, "OverallTrends_October_2026.pdf", name)
	stored, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, out.Content, stored)
}

func TestReportService_GenerateCancelled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc, _ := newReportService(t, f)
	f.submittedAudit(t)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err := svc.Generate(cancelled, f.adminActor(), octoberRequest(report.TypeOverallTrends), false)
	assert.ErrorIs(t, err, context.Canceled)
}
