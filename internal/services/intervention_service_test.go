package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/riskgate/internal/anomaly"
	"github.com/BradenHooton/riskgate/internal/models"
	pkgauth "github.com/BradenHooton/riskgate/pkg/auth"
)

const adminID = "admin-1"

// escalate drives alice to the given score and returns her detection.
func escalate(t *testing.T, g *gate, score float64) (*models.Account, *Outcome) {
	t.Helper()
	acct := g.seedAccount(t, "alice")
	g.scorer.set(score)
	out, err := g.risk.EvaluateLogin(context.Background(), acct, g.loginContext())
	require.NoError(t, err)
	require.NotEmpty(t, out.DetectionID)
	return acct, out
}

func TestReviewDetection_Unblock(t *testing.T) {
	g := newGate(t)
	acct, out := escalate(t, g, criticalScore)
	ctx := context.Background()

	res, err := g.intervention.ReviewDetection(ctx, out.DetectionID, adminID, models.AdminUnblock, "false positive")
	require.NoError(t, err)
	assert.Equal(t, models.AdminUnblock, res.Decision.Action)

	stored := g.account(t, acct.ID)
	assert.Equal(t, models.AccountStatusActive, stored.Status)
	assert.Nil(t, stored.BlockedReason)
	assert.Nil(t, stored.BlockedBy)

	detection, err := g.store.Detections().GetByID(ctx, out.DetectionID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewReviewed, detection.ReviewStatus)

	events := g.events(t, acct.ID)
	require.NotEmpty(t, events)
	assert.Equal(t, models.EventUnblocked, events[0].Type)
	assert.Equal(t, models.ActorAdmin, events[0].Actor)
	require.NotNil(t, events[0].AdminID)
	assert.Equal(t, adminID, *events[0].AdminID)
}

func TestReviewDetection_SecondDecisionConflicts(t *testing.T) {
	g := newGate(t)
	_, out := escalate(t, g, criticalScore)
	ctx := context.Background()

	_, err := g.intervention.ReviewDetection(ctx, out.DetectionID, adminID, models.AdminUnblock, "")
	require.NoError(t, err)

	_, err = g.intervention.ReviewDetection(ctx, out.DetectionID, adminID, models.AdminPermanentBlock, "")
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestReviewDetection_InvalidStateRollsBack(t *testing.T) {
	g := newGate(t)
	acct, out := escalate(t, g, mediumScore)
	ctx := context.Background()

	_, err := g.intervention.ReviewDetection(ctx, out.DetectionID, adminID, models.AdminUnblock, "")
	assert.ErrorIs(t, err, models.ErrInvalidState)

	_, err = g.store.Decisions().GetByDetection(ctx, out.DetectionID)
	assert.ErrorIs(t, err, models.ErrNotFound, "rejected action records no decision")
	assert.Empty(t, g.events(t, acct.ID))
}

func TestReviewDetection_PermanentBlock(t *testing.T) {
	g := newGate(t)
	acct, out := escalate(t, g, highScore)
	ctx := context.Background()

	_, err := g.intervention.ReviewDetection(ctx, out.DetectionID, adminID, models.AdminPermanentBlock, "")
	require.NoError(t, err)

	stored := g.account(t, acct.ID)
	assert.True(t, stored.IsBlocked())
	assert.Equal(t, models.ActorAdmin, *stored.BlockedBy)

	_, err = g.store.Delays().FindWaiting(ctx, acct.ID)
	assert.ErrorIs(t, err, models.ErrNotFound, "block cancels the waiting delay")

	_, err = g.intervention.Unblock(ctx, acct.ID, adminID, false)
	require.NoError(t, err)
}

func TestReviewDetection_Dismiss(t *testing.T) {
	g := newGate(t)
	acct, out := escalate(t, g, highScore)
	ctx := context.Background()

	res, err := g.intervention.ReviewDetection(ctx, out.DetectionID, adminID, models.AdminDismiss, "travelling")
	require.NoError(t, err)
	assert.True(t, res.Changed)

	stored := g.account(t, acct.ID)
	assert.Equal(t, models.AccountStatusActive, stored.Status)
	assert.False(t, stored.Monitored)
	assert.NotNil(t, stored.MonitoringEnd)

	d, err := g.store.Delays().GetByID(ctx, out.Delay.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DelayCancelled, d.Status)

	assert.Equal(t, []models.SecurityEventType{models.EventMonitoringEnd, models.EventMonitoringStart},
		eventTypes(g.events(t, acct.ID)))
}

func TestReviewDetection_DismissNothingToClear(t *testing.T) {
	g := newGate(t)
	acct, out := escalate(t, g, mediumScore)
	ctx := context.Background()

	_, err := g.intervention.StopMonitoring(ctx, acct.ID, adminID)
	require.NoError(t, err)
	before := len(g.events(t, acct.ID))

	res, err := g.intervention.ReviewDetection(ctx, out.DetectionID, adminID, models.AdminDismiss, "")
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Len(t, g.events(t, acct.ID), before)
}

func TestReviewDetection_ResetPasswordUnblocks(t *testing.T) {
	g := newGate(t)
	acct, out := escalate(t, g, criticalScore)

	res, err := g.intervention.ReviewDetection(context.Background(), out.DetectionID, adminID, models.AdminResetPassword, "")
	require.NoError(t, err)
	require.NotEmpty(t, res.TemporaryPassword)

	stored := g.account(t, acct.ID)
	assert.Equal(t, models.AccountStatusActive, stored.Status)
	assert.NoError(t, pkgauth.ComparePassword(stored.PasswordHash, res.TemporaryPassword))
	assert.Error(t, pkgauth.ComparePassword(stored.PasswordHash, testPassword))
	assert.Equal(t, models.EventPasswordReset, g.events(t, acct.ID)[0].Type)
}

func TestReviewDetection_UnknownAction(t *testing.T) {
	g := newGate(t)
	_, out := escalate(t, g, criticalScore)

	_, err := g.intervention.ReviewDetection(context.Background(), out.DetectionID, adminID, "delete", "")
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestReviewDetection_NotFound(t *testing.T) {
	g := newGate(t)
	_, err := g.intervention.ReviewDetection(context.Background(), "missing", adminID, models.AdminDismiss, "")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestUnblock_ActiveAccountIsInvalidState(t *testing.T) {
	g := newGate(t)
	acct := g.seedAccount(t, "alice")

	_, err := g.intervention.Unblock(context.Background(), acct.ID, adminID, false)
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestUnblock_WithPasswordReset(t *testing.T) {
	g := newGate(t)
	acct, _ := escalate(t, g, criticalScore)

	res, err := g.intervention.Unblock(context.Background(), acct.ID, adminID, true)
	require.NoError(t, err)
	require.NotEmpty(t, res.TemporaryPassword)

	g.scorer.set(lowScore)
	login, err := g.login("alice", res.TemporaryPassword)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, login.Status)
}

func TestStopMonitoring(t *testing.T) {
	g := newGate(t)
	acct, _ := escalate(t, g, mediumScore)
	ctx := context.Background()

	monitored, err := g.intervention.ListMonitored(ctx, 0)
	require.NoError(t, err)
	require.Len(t, monitored, 1)

	g.clock.Advance(time.Hour)
	_, err = g.intervention.StopMonitoring(ctx, acct.ID, adminID)
	require.NoError(t, err)

	stored := g.account(t, acct.ID)
	assert.False(t, stored.Monitored)
	assert.Equal(t, g.clock.Now(), *stored.MonitoringEnd)

	_, err = g.intervention.StopMonitoring(ctx, acct.ID, adminID)
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestDashboard(t *testing.T) {
	g := newGate(t)
	escalate(t, g, criticalScore)
	g.seedAccount(t, "bob")

	d, err := g.intervention.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, d.Accounts.Total)
	assert.Equal(t, 1, d.Accounts.Blocked)
	assert.Equal(t, 1, d.UnreviewedDetections)
	assert.Equal(t, 1, d.DetectionsByTier[models.TierCritical])
}

func TestListDetections_RejectsUnknownStatus(t *testing.T) {
	g := newGate(t)
	_, err := g.intervention.ListDetections(context.Background(), "pending", 10)
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestListEvents_UnknownAccount(t *testing.T) {
	g := newGate(t)
	_, err := g.intervention.ListEvents(context.Background(), "missing", 10)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestModelInfo(t *testing.T) {
	g := newGate(t)
	assert.Equal(t, "unavailable", g.intervention.ModelInfo().Status)

	g.intervention.model = &MockModelInspector{
		InfoFunc: func() (*anomaly.Info, error) {
			return &anomaly.Info{Version: "v1", Trees: 100}, nil
		},
	}
	st := g.intervention.ModelInfo()
	assert.True(t, st.Available)
	assert.Equal(t, "v1", st.Info.Version)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, defaultListLimit, clampLimit(0))
	assert.Equal(t, 10, clampLimit(10))
	assert.Equal(t, maxListLimit, clampLimit(10000))
}
