package lib

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agistaffers/pushgate/lib/models"
	"github.com/agistaffers/pushgate/senders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchDeliversOnlyToOptedInSubscribers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.subscribeQuietly(t, "alice")
	h.setPreferences(t, "alice", models.PreferenceMap{"container_down": true})
	h.subscribeQuietly(t, "bob")
	h.setPreferences(t, "bob", models.PreferenceMap{"container_down": false})
	h.subscribeQuietly(t, "carol") // no preference record at all

	res, err := h.svc.Dispatch(ctx, Alert{
		Type:     AlertContainerDown,
		Severity: SeverityWarning,
		Message:  "Container web-1 is not running",
	})
	require.NoError(t, err)

	assert.Equal(t, DispatchResult{Sent: 1, Skipped: 2, Failed: 0}, res)
	assert.Equal(t, []string{"alice"}, h.gw.deliveredTo())
}

func TestBroadcastReachesEveryoneRegardlessOfPreferences(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.subscribeQuietly(t, "alice")
	h.setPreferences(t, "alice", models.PreferenceMap{"container_down": true})
	h.subscribeQuietly(t, "bob")
	h.setPreferences(t, "bob", models.PreferenceMap{"container_down": false})
	h.subscribeQuietly(t, "carol")

	res, err := h.svc.Broadcast(ctx, "Maintenance tonight", "Expect downtime at 02:00 UTC", "", "")
	require.NoError(t, err)

	assert.Equal(t, DispatchResult{Sent: 3, Skipped: 0, Failed: 0}, res)
	assert.ElementsMatch(t, []string{"alice", "bob", "carol"}, h.gw.deliveredTo())
}

func TestPartialFailureIsolation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.subscribeQuietly(t, "u1")
	h.subscribeQuietly(t, "u2")
	h.subscribeQuietly(t, "u3")
	h.gw.failFor["u2"] = &senders.DeliveryError{Cause: errors.New("connection reset")}

	res, err := h.svc.Broadcast(ctx, "Hello", "World", "", "")
	require.NoError(t, err)

	// u2's failure must not prevent the attempt to u3.
	assert.Equal(t, DispatchResult{Sent: 2, Skipped: 0, Failed: 1}, res)
	assert.ElementsMatch(t, []string{"u1", "u3"}, h.gw.deliveredTo())

	var rows []models.DeliveryLog
	require.NoError(t, h.db.Find(&rows).Error)
	require.Len(t, rows, 3)

	successes, failures := 0, 0
	for _, row := range rows {
		if row.Success {
			successes++
		} else {
			failures++
			assert.Equal(t, "u2", row.UserID)
			assert.Contains(t, row.Error, "connection reset")
		}
	}
	assert.Equal(t, 2, successes)
	assert.Equal(t, 1, failures)
}

func TestDispatchCooldownSuppressesRepeats(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.subscribeQuietly(t, "alice")
	h.setPreferences(t, "alice", models.PreferenceMap{"performance": true})

	base := time.Now()
	h.svc.dispatcher.now = func() time.Time { return base }

	alert := Alert{Type: AlertHighCPU, Severity: SeverityWarning, Message: "CPU usage at 93%", MetricKey: "cpu"}

	res, err := h.svc.Dispatch(ctx, alert)
	require.NoError(t, err)
	assert.Equal(t, DispatchResult{Sent: 1}, res)

	// Within the window the whole dispatch is a no-op.
	h.svc.dispatcher.now = func() time.Time { return base.Add(4 * time.Minute) }
	res, err = h.svc.Dispatch(ctx, alert)
	require.NoError(t, err)
	assert.Equal(t, DispatchResult{}, res)

	h.svc.dispatcher.now = func() time.Time { return base.Add(6 * time.Minute) }
	res, err = h.svc.Dispatch(ctx, alert)
	require.NoError(t, err)
	assert.Equal(t, DispatchResult{Sent: 1}, res)
}

func TestDispatchCooldownIsPerMetric(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.subscribeQuietly(t, "alice")
	h.setPreferences(t, "alice", models.PreferenceMap{"performance": true})

	res, err := h.svc.Dispatch(ctx, Alert{Type: AlertHighCPU, Severity: SeverityWarning, Message: "CPU usage at 93%", MetricKey: "cpu"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)

	res, err = h.svc.Dispatch(ctx, Alert{Type: AlertLowMemory, Severity: SeverityWarning, Message: "Memory available: 4%", MetricKey: "memory"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
}

func TestDispatchPrunesExpiredEndpoints(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.subscribeQuietly(t, "stale")
	h.gw.failFor["stale"] = &senders.DeliveryError{Cause: errors.New("410 Gone"), Expired: true}

	res, err := h.svc.Broadcast(ctx, "Hello", "World", "", "")
	require.NoError(t, err)
	assert.Equal(t, DispatchResult{Failed: 1}, res)

	_, err = h.svc.registry.GetSubscription(ctx, "stale")
	var nerr *NotFoundError
	assert.ErrorAs(t, err, &nerr)
}

func TestDispatchRejectsEmptyMessage(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Dispatch(context.Background(), Alert{Type: AlertSecurity, Severity: SeverityCritical})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestBroadcastValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var verr *ValidationError
	_, err := h.svc.Broadcast(ctx, "", "body", "", "")
	assert.ErrorAs(t, err, &verr)
	_, err = h.svc.Broadcast(ctx, "title", "", "", "")
	assert.ErrorAs(t, err, &verr)
}

func TestBroadcastTotalFailureStillReportsCounts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.subscribeQuietly(t, "u1")
	h.subscribeQuietly(t, "u2")
	h.gw.failFor["u1"] = &senders.DeliveryError{Cause: errors.New("timeout")}
	h.gw.failFor["u2"] = &senders.DeliveryError{Cause: errors.New("timeout")}

	res, err := h.svc.Broadcast(ctx, "Hello", "World", "", "")
	require.NoError(t, err)
	assert.Equal(t, DispatchResult{Sent: 0, Skipped: 0, Failed: 2}, res)
}
