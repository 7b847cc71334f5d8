package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rawblock/safe-monitor/internal/engine"
	"github.com/rawblock/safe-monitor/internal/notify"
	"github.com/rawblock/safe-monitor/internal/safeapi"
	"github.com/rawblock/safe-monitor/internal/store"
)

func boolPtr(b bool) *bool { return &b }

// alwaysFailNotifier fakes every channel send failing at transport
// level, to exercise sendNotifications' all-channels-failed path.
type alwaysFailNotifier struct{ calls int }

func (n *alwaysFailNotifier) Send(ctx context.Context, alert notify.Alert, channel notify.Channel) error {
	n.calls++
	return errors.New("simulated transport failure")
}

// partialFailNotifier fakes one channel succeeding and one failing.
type partialFailNotifier struct{}

func (partialFailNotifier) Send(ctx context.Context, alert notify.Alert, channel notify.Channel) error {
	if channel.ChatID == "fails" {
		return errors.New("simulated transport failure")
	}
	return nil
}

func channelSettings(t *testing.T, channels []notify.Channel) store.MonitorSettings {
	t.Helper()
	raw, err := json.Marshal(channels)
	if err != nil {
		t.Fatalf("marshal channels: %v", err)
	}
	return store.MonitorSettings{NotificationChannels: raw}
}

func TestSendNotificationsReturnsErrorWhenAllChannelsFail(t *testing.T) {
	fake := &alwaysFailNotifier{}
	m := New(nil, nil, fake, nil, nil, nil, 1, 0, nil)
	settings := channelSettings(t, []notify.Channel{
		{Kind: "webhook", URL: "https://example.invalid/a"},
		{Kind: "webhook", URL: "https://example.invalid/b"},
	})

	err := m.sendNotifications(context.Background(), notify.Alert{}, store.Monitor{ID: "mon-1"}, settings)
	if err == nil {
		t.Fatalf("expected an error when every notification channel fails, so the caller skips RecordNotification")
	}
	if fake.calls != 2 {
		t.Fatalf("expected both channels to be attempted, got %d calls", fake.calls)
	}
}

func TestSendNotificationsSucceedsWhenAtLeastOneChannelSucceeds(t *testing.T) {
	m := New(nil, nil, partialFailNotifier{}, nil, nil, nil, 1, 0, nil)
	settings := channelSettings(t, []notify.Channel{
		{Kind: "telegram", ChatID: "fails"},
		{Kind: "telegram", ChatID: "succeeds"},
	})

	if err := m.sendNotifications(context.Background(), notify.Alert{}, store.Monitor{ID: "mon-1"}, settings); err != nil {
		t.Fatalf("expected no error when at least one channel succeeds, got %v", err)
	}
}

func TestGroupMonitorsGroupsByLowercaseSafeAndNetwork(t *testing.T) {
	monitors := []store.Monitor{
		{ID: "1", SafeAddress: "0xAbC0000000000000000000000000000000000B", Network: "Ethereum"},
		{ID: "2", SafeAddress: "0xabc0000000000000000000000000000000000b", Network: "ethereum"},
		{ID: "3", SafeAddress: "0xDeF0000000000000000000000000000000000D", Network: "polygon"},
	}

	groups := groupMonitors(monitors)

	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if len(groups[0].monitors) != 1 && len(groups[1].monitors) != 1 {
		t.Fatalf("expected one group with 2 monitors and one with 1, got %v / %v",
			len(groups[0].monitors), len(groups[1].monitors))
	}

	var mergedGroup monitorGroup
	for _, g := range groups {
		if len(g.monitors) == 2 {
			mergedGroup = g
		}
	}
	if len(mergedGroup.monitors) != 2 {
		t.Fatalf("expected the two case-insensitively-equal monitors to share a group")
	}
}

func TestDetermineAlertTypeHighSeverityWinsOverManagementMethod(t *testing.T) {
	tx := safeapi.SafeTransaction{
		DataDecoded: &engine.DataDecodedContext{Method: "removeOwner"},
	}
	got := determineAlertType(string(engine.SeverityHigh), tx)
	if got != notify.AlertSuspicious {
		t.Fatalf("expected high severity to classify as suspicious regardless of method, got %s", got)
	}
}

func TestDetermineAlertTypeManagementMethod(t *testing.T) {
	tx := safeapi.SafeTransaction{
		DataDecoded: &engine.DataDecodedContext{Method: "changeThreshold"},
	}
	got := determineAlertType(string(engine.SeverityInfo), tx)
	if got != notify.AlertManagement {
		t.Fatalf("expected changeThreshold to classify as management, got %s", got)
	}
}

func TestDetermineAlertTypeNormal(t *testing.T) {
	tx := safeapi.SafeTransaction{
		DataDecoded: &engine.DataDecodedContext{Method: "transfer"},
	}
	got := determineAlertType(string(engine.SeverityInfo), tx)
	if got != notify.AlertNormal {
		t.Fatalf("expected transfer to classify as normal, got %s", got)
	}
}

func TestShouldNotifySuspiciousAlwaysFires(t *testing.T) {
	if !shouldNotify(notify.AlertSuspicious, store.MonitorSettings{}) {
		t.Fatalf("expected suspicious alerts to always notify")
	}
}

func TestShouldNotifyManagementDefaultsToTrue(t *testing.T) {
	if !shouldNotify(notify.AlertManagement, store.MonitorSettings{}) {
		t.Fatalf("expected management alerts to default to notify when unset")
	}
	if shouldNotify(notify.AlertManagement, store.MonitorSettings{NotifyManagement: boolPtr(false)}) {
		t.Fatalf("expected management alerts to respect an explicit opt-out")
	}
}

func TestShouldNotifyNormalDefaultsToFalse(t *testing.T) {
	if shouldNotify(notify.AlertNormal, store.MonitorSettings{}) {
		t.Fatalf("expected normal alerts to default to silent when unset")
	}
	if !shouldNotify(notify.AlertNormal, store.MonitorSettings{NotifyAll: boolPtr(true)}) {
		t.Fatalf("expected normal alerts to notify when notifyAll is opted in")
	}
}

func TestGenerateDescriptionDecodedMethod(t *testing.T) {
	tx := safeapi.SafeTransaction{
		To:          "0x1111111111111111111111111111111111111111",
		DataDecoded: &engine.DataDecodedContext{Method: "removeOwner"},
	}
	desc := generateDescription(tx, nil)
	if desc != "removeOwner - No warnings" {
		t.Fatalf("unexpected description: %q", desc)
	}
}

func TestGenerateDescriptionPlainTransfer(t *testing.T) {
	value := "1000000000000000000" // 1 ETH
	tx := safeapi.SafeTransaction{
		To:    "0x2222222222222222222222222222222222222222",
		Value: &value,
	}
	desc := generateDescription(tx, nil)
	want := "Transfer 1.0000 ETH to 0x2222222222222222222222222222222222222222"
	if desc != want {
		t.Fatalf("expected %q, got %q", want, desc)
	}
}

func TestWeiStringToEther(t *testing.T) {
	eth, ok := weiStringToEther("1500000000000000000")
	if !ok {
		t.Fatalf("expected a valid parse")
	}
	if eth != 1.5 {
		t.Fatalf("expected 1.5 ETH, got %v", eth)
	}

	if _, ok := weiStringToEther("not-a-number"); ok {
		t.Fatalf("expected an invalid wei string to fail to parse")
	}
}

func TestSummarizeMatchesCriticalIsSuspicious(t *testing.T) {
	matches := []engine.TemplateMatch{
		{Severity: engine.SeverityInfo},
		{Severity: engine.SeverityCritical},
	}
	riskLevel, isSuspicious := summarizeMatches(matches)
	if riskLevel != string(engine.SeverityCritical) || !isSuspicious {
		t.Fatalf("expected critical/suspicious, got %s/%v", riskLevel, isSuspicious)
	}
}

func TestSummarizeMatchesNoMatchesIsInfo(t *testing.T) {
	riskLevel, isSuspicious := summarizeMatches(nil)
	if riskLevel != string(engine.SeverityInfo) || isSuspicious {
		t.Fatalf("expected info/not-suspicious for no matches, got %s/%v", riskLevel, isSuspicious)
	}
}

func TestWarningMessagesOnlyIncludesWarningMatches(t *testing.T) {
	matches := []engine.TemplateMatch{
		{Warning: "", Message: "not a warning"},
		{Warning: "suspicious gas token", Message: "gas token refund risk"},
	}
	warnings := warningMessages(matches)
	if len(warnings) != 1 || warnings[0] != "gas token refund risk" {
		t.Fatalf("expected exactly one warning message, got %v", warnings)
	}
}
