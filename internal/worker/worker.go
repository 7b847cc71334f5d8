// Package worker runs the ticker-driven poll cycle that watches every
// active monitor's Safe address, evaluates observed transactions
// through the rule engine, and dispatches deduplicated alerts. The
// loop shape is the teacher's internal/mempool/poller.go Run method;
// the per-cycle pipeline is ported from original_source/backend/src/
// worker/monitor.rs's MonitorWorker.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rawblock/safe-monitor/internal/assessment"
	"github.com/rawblock/safe-monitor/internal/engine"
	"github.com/rawblock/safe-monitor/internal/heuristics"
	"github.com/rawblock/safe-monitor/internal/notify"
	"github.com/rawblock/safe-monitor/internal/registry"
	"github.com/rawblock/safe-monitor/internal/safeapi"
	"github.com/rawblock/safe-monitor/internal/store"
)

// managementMethods are the Safe method calls that change its own
// configuration rather than moving funds, ported verbatim from
// monitor.rs's determine_alert_type.
var managementMethods = map[string]bool{
	"addOwnerWithThreshold": true,
	"removeOwner":           true,
	"swapOwner":             true,
	"changeThreshold":       true,
	"enableModule":          true,
	"disableModule":         true,
	"setGuard":              true,
	"setFallbackHandler":    true,
	"changeMasterCopy":      true,
	"setup":                 true,
}

// Notifier is the notification dispatch contract the worker depends
// on — satisfied by *notify.Service in production and fakeable in
// tests to exercise the all-channels-failed path without real
// network sends.
type Notifier interface {
	Send(ctx context.Context, alert notify.Alert, channel notify.Channel) error
}

// Monitor runs the poll cycle against a Store, a SafeAPIClient
// collaborator, the rule engine, and the notification dispatcher.
type Monitor struct {
	Store        *store.Store
	SafeAPI      safeapi.SafeAPIClient
	Notifier     Notifier
	Engine       *engine.Engine
	Assessment   *assessment.Service
	Resolver     *registry.Resolver
	Concurrency  int
	PollInterval time.Duration

	log     *logrus.Entry
	running bool
}

// New builds a Monitor. concurrency bounds how many Safe-address
// groups are processed at once within a single poll cycle.
func New(st *store.Store, api safeapi.SafeAPIClient, notifier Notifier, eng *engine.Engine, assessmentSvc *assessment.Service, resolver *registry.Resolver, concurrency int, pollInterval time.Duration, log *logrus.Logger) *Monitor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if concurrency <= 0 {
		concurrency = 5
	}
	return &Monitor{
		Store:        st,
		SafeAPI:      api,
		Notifier:     notifier,
		Engine:       eng,
		Assessment:   assessmentSvc,
		Resolver:     resolver,
		Concurrency:  concurrency,
		PollInterval: pollInterval,
		log:          log.WithField("component", "worker"),
	}
}

// Run starts the ticker loop. It blocks until ctx is cancelled,
// exactly as the teacher's Poller.Run does with its own ticker/select
// shape. A poll cycle still running when the next tick fires is
// skipped rather than overlapped.
func (m *Monitor) Run(ctx context.Context) {
	m.log.Info("starting monitor worker")
	ticker := time.NewTicker(m.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("stopping monitor worker")
			return
		case <-ticker.C:
			if m.running {
				m.log.Warn("previous poll cycle still running, skipping this tick")
				continue
			}
			m.running = true
			if err := m.RunCheck(ctx); err != nil {
				m.log.WithError(err).Error("poll cycle failed")
			}
			m.running = false
		}
	}
}

type monitorGroup struct {
	safeAddress string
	network     string
	monitors    []store.Monitor
}

// RunCheck runs exactly one poll cycle: load active monitors, group
// by (safeAddress, network), and fan out across groups with bounded
// concurrency, ported from monitor.rs's run_check.
func (m *Monitor) RunCheck(ctx context.Context) error {
	m.log.Debug("starting monitor check cycle")

	monitors, err := m.Store.ActiveMonitors(ctx)
	if err != nil {
		return fmt.Errorf("worker: load active monitors: %w", err)
	}
	m.log.WithField("count", len(monitors)).Info("found active monitors")

	if len(monitors) == 0 {
		return nil
	}

	groups := groupMonitors(monitors)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.Concurrency)

	for _, group := range groups {
		group := group
		g.Go(func() error {
			if err := m.processSafe(gctx, group); err != nil {
				m.log.WithFields(logrus.Fields{
					"safeAddress": group.safeAddress,
					"network":     group.network,
				}).WithError(err).Error("error processing safe")
			}
			return nil
		})
	}

	_ = g.Wait()
	m.log.Debug("monitor check cycle completed")
	return nil
}

func groupMonitors(monitors []store.Monitor) []monitorGroup {
	index := make(map[string]int)
	var groups []monitorGroup

	for _, mon := range monitors {
		key := strings.ToLower(mon.SafeAddress) + "-" + strings.ToLower(mon.Network)
		if i, ok := index[key]; ok {
			groups[i].monitors = append(groups[i].monitors, mon)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, monitorGroup{
			safeAddress: mon.SafeAddress,
			network:     mon.Network,
			monitors:    []store.Monitor{mon},
		})
	}

	// Deterministic order makes the cycle's logs (and tests) reproducible.
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].safeAddress != groups[j].safeAddress {
			return groups[i].safeAddress < groups[j].safeAddress
		}
		return groups[i].network < groups[j].network
	})
	return groups
}

func (m *Monitor) processSafe(ctx context.Context, group monitorGroup) error {
	m.log.WithFields(logrus.Fields{"safeAddress": group.safeAddress, "network": group.network}).Info("processing safe")

	for _, mon := range group.monitors {
		if err := m.Store.UpsertLastCheck(ctx, mon.ID, group.safeAddress, group.network); err != nil {
			return err
		}
	}

	allTransactions, err := m.SafeAPI.FetchTransactions(ctx, group.safeAddress, group.network, 50)
	if err != nil {
		return fmt.Errorf("fetch transactions: %w", err)
	}
	m.log.WithField("count", len(allTransactions)).Info("found total transactions")

	safeInfo, err := m.SafeAPI.FetchSafeInfo(ctx, group.safeAddress, group.network)
	safeVersion := "1.3.0"
	if err == nil && safeInfo.Version != nil && *safeInfo.Version != "" {
		safeVersion = *safeInfo.Version
	}

	chainIDBig, err := m.SafeAPI.FetchChainID(ctx, group.network)
	var chainID uint64 = 1
	if err == nil && chainIDBig != nil {
		chainID = chainIDBig.Uint64()
	}

	if safeInfo.Address != "" {
		m.assessConfiguration(ctx, group, safeInfo)
	}

	for _, tx := range allTransactions {
		for _, mon := range group.monitors {
			record := toTransactionRecord(tx)
			if err := m.Store.StoreTransaction(ctx, record, mon.ID, group.network, group.safeAddress); err != nil {
				return fmt.Errorf("store transaction %s: %w", tx.SafeTxHash, err)
			}
		}

		preFilter := m.scoreSignals(tx, safeInfo)
		if preFilter.Severity != "info" {
			m.log.WithFields(logrus.Fields{
				"transactionHash": tx.SafeTxHash,
				"preFilterScore":  preFilter.RiskScore,
				"preFilterAction": preFilter.RecommendedAction,
			}).Debug("pre-filter flagged transaction ahead of rule evaluation")
		}

		matches := m.Engine.EvaluateTransaction(tx.ToContext(group.safeAddress, chainID, safeVersion))
		riskLevel, isSuspicious := summarizeMatches(matches)

		analysis := store.SecurityAnalysisRecord{
			TransactionHash: tx.SafeTxHash,
			IsSuspicious:    isSuspicious,
			RiskLevel:       riskLevel,
			Warnings:        warningMessages(matches),
		}
		userID := group.monitors[0].UserID
		if err := m.Store.StoreSecurityAnalysis(ctx, group.safeAddress, group.network, analysis, userID); err != nil {
			return fmt.Errorf("store security analysis %s: %w", tx.SafeTxHash, err)
		}
	}

	for _, tx := range allTransactions {
		if tx.IsExecuted != nil && *tx.IsExecuted {
			continue
		}

		notified, err := m.Store.WasNotified(ctx, tx.SafeTxHash, group.safeAddress, group.network)
		if err != nil {
			return fmt.Errorf("check notification status %s: %w", tx.SafeTxHash, err)
		}
		if notified {
			m.log.WithField("transactionHash", tx.SafeTxHash).Debug("transaction already notified, skipping")
			continue
		}

		matches := m.Engine.EvaluateTransaction(tx.ToContext(group.safeAddress, chainID, safeVersion))
		riskLevel, _ := summarizeMatches(matches)
		alertType := determineAlertType(riskLevel, tx)
		description := generateDescription(tx, matches)

		alert := notify.Alert{
			SafeAddress:     group.safeAddress,
			Network:         group.network,
			TransactionHash: tx.SafeTxHash,
			AlertType:       alertType,
			Description:     description,
			Nonce:           tx.Nonce,
			IsExecuted:      tx.IsExecuted != nil && *tx.IsExecuted,
		}

		for _, mon := range group.monitors {
			settings := decodeSettings(mon.Settings)
			if !shouldNotify(alertType, settings) {
				continue
			}
			if err := m.sendNotifications(ctx, alert, mon, settings); err != nil {
				m.log.WithField("monitorId", mon.ID).WithError(err).Error("failed to send notifications")
				continue
			}
			if err := m.Store.RecordNotification(ctx, tx.SafeTxHash, group.safeAddress, group.network, mon.ID, string(alertType)); err != nil {
				return fmt.Errorf("record notification %s: %w", tx.SafeTxHash, err)
			}
		}
	}

	return nil
}

// scoreSignals builds the cheap pre-filter assessment for tx, run
// ahead of the full rule engine on every poll cycle.
func (m *Monitor) scoreSignals(tx safeapi.SafeTransaction, safeInfo safeapi.SafeInfo) heuristics.ThreatAssessment {
	var operation uint8
	if tx.Operation != nil {
		operation = *tx.Operation
	}
	callType := engine.GetCallTypeInfo(m.Resolver, operation, tx.To)

	valueETH := 0.0
	if tx.Value != nil {
		if v, ok := weiStringToEther(*tx.Value); ok {
			valueETH = v
		}
	}

	hasGasToken := tx.GasToken != nil && *tx.GasToken != "" && *tx.GasToken != engine.ZeroAddress
	hasRefundReceiver := tx.RefundReceiver != nil && *tx.RefundReceiver != "" && *tx.RefundReceiver != engine.ZeroAddress

	isManagementMethod := tx.DataDecoded != nil && managementMethods[tx.DataDecoded.Method]

	signals := heuristics.TransactionSignals{
		SafeTxHash:          tx.SafeTxHash,
		ValueETH:            valueETH,
		IsDelegateCall:      callType.IsDelegateCall,
		IsUntrustedDelegate: callType.IsDelegateCall && !callType.IsTrustedDelegate,
		IsManagementMethod:  isManagementMethod,
		HasNonZeroGasToken:  hasGasToken,
		HasRefundReceiver:   hasRefundReceiver,
		IsSingleOwnerSafe:   len(safeInfo.Owners) == 1,
		OwnerCount:          len(safeInfo.Owners),
		Threshold:           safeInfo.Threshold,
	}
	return heuristics.ScoreTransaction(signals)
}

// assessConfiguration runs the Assessment Engine against the group's
// Safe once per poll cycle, persisting the result as a configuration-
// level security analysis and alerting every monitor in the group when
// the overall risk is high or critical. The synthetic transaction hash
// distinguishes these rows from per-transaction analyses sharing the
// same security_analyses table.
func (m *Monitor) assessConfiguration(ctx context.Context, group monitorGroup, safeInfo safeapi.SafeInfo) {
	if m.Assessment == nil {
		return
	}

	request := assessment.Request{
		SafeAddress: group.safeAddress,
		Network:     group.network,
		SafeInfo: assessment.SafeInfo{
			Address:         safeInfo.Address,
			Nonce:           safeInfo.Nonce,
			Threshold:       safeInfo.Threshold,
			Owners:          safeInfo.Owners,
			MasterCopy:      safeInfo.MasterCopy,
			Modules:         safeInfo.Modules,
			FallbackHandler: safeInfo.FallbackHandler,
			Guard:           safeInfo.Guard,
			Version:         safeInfo.Version,
		},
	}

	response := m.Assessment.AssessSafe(request, func() string {
		return time.Now().UTC().Format(time.RFC3339)
	})

	m.log.WithFields(logrus.Fields{
		"safeAddress":   group.safeAddress,
		"network":       group.network,
		"overallRisk":   response.OverallRisk,
		"securityScore": response.SecurityScore,
	}).Info("assessed safe configuration")

	details, err := json.Marshal(response.Details)
	if err != nil {
		m.log.WithError(err).Error("marshal assessment details")
		return
	}
	checks, err := json.Marshal(response.Checks)
	if err != nil {
		m.log.WithError(err).Error("marshal assessment checks")
		return
	}

	syntheticHash := fmt.Sprintf("config:%s:%s", group.network, group.safeAddress)
	isSuspicious := response.OverallRisk == "high" || response.OverallRisk == "critical"
	userID := group.monitors[0].UserID

	analysis := store.SecurityAnalysisRecord{
		TransactionHash: syntheticHash,
		IsSuspicious:    isSuspicious,
		RiskLevel:       response.OverallRisk,
		Warnings:        response.RiskFactors,
		Details:         details,
		CallType:        checks,
	}
	if err := m.Store.StoreSecurityAnalysis(ctx, group.safeAddress, group.network, analysis, userID); err != nil {
		m.log.WithError(err).Error("store configuration assessment")
	}

	if !isSuspicious {
		return
	}

	alert := notify.Alert{
		SafeAddress:     group.safeAddress,
		Network:         group.network,
		TransactionHash: syntheticHash,
		AlertType:       notify.AlertSuspicious,
		Description:     fmt.Sprintf("Safe configuration risk %s (score %d): %s", response.OverallRisk, response.SecurityScore, formatWarnings(response.RiskFactors)),
		Nonce:           safeInfo.Nonce,
		IsExecuted:      false,
	}

	notified, err := m.Store.WasNotified(ctx, syntheticHash, group.safeAddress, group.network)
	if err != nil {
		m.log.WithError(err).Error("check configuration notification status")
		return
	}
	if notified {
		return
	}

	for _, mon := range group.monitors {
		settings := decodeSettings(mon.Settings)
		if !shouldNotify(notify.AlertSuspicious, settings) {
			continue
		}
		if err := m.sendNotifications(ctx, alert, mon, settings); err != nil {
			m.log.WithField("monitorId", mon.ID).WithError(err).Error("failed to send configuration alert")
			continue
		}
		if err := m.Store.RecordNotification(ctx, syntheticHash, group.safeAddress, group.network, mon.ID, string(notify.AlertSuspicious)); err != nil {
			m.log.WithError(err).Error("record configuration notification")
		}
	}
}

func toTransactionRecord(tx safeapi.SafeTransaction) store.TransactionRecord {
	raw, _ := json.Marshal(tx)
	return store.TransactionRecord{
		SafeTxHash:     tx.SafeTxHash,
		ToAddress:      tx.To,
		Value:          tx.Value,
		Data:           tx.Data,
		Operation:      tx.Operation,
		Nonce:          tx.Nonce,
		IsExecuted:     tx.IsExecuted != nil && *tx.IsExecuted,
		SubmissionDate: tx.SubmissionDate,
		ExecutionDate:  tx.ExecutionDate,
		RawPayload:     raw,
	}
}

func summarizeMatches(matches []engine.TemplateMatch) (riskLevel string, isSuspicious bool) {
	severity := engine.SeverityInfo
	for _, match := range matches {
		severity = severity.Merge(match.Severity)
	}
	switch severity {
	case engine.SeverityCritical, engine.SeverityHigh:
		isSuspicious = true
	}
	return string(severity), isSuspicious
}

func warningMessages(matches []engine.TemplateMatch) []string {
	var warnings []string
	for _, match := range matches {
		if match.Warning != "" && match.Message != "" {
			warnings = append(warnings, match.Message)
		}
	}
	return warnings
}

// determineAlertType classifies an alert, ported from monitor.rs's
// determine_alert_type: high/critical severity always wins as
// suspicious before the management-method check is even considered.
func determineAlertType(riskLevel string, tx safeapi.SafeTransaction) notify.AlertType {
	if riskLevel == string(engine.SeverityCritical) || riskLevel == string(engine.SeverityHigh) {
		return notify.AlertSuspicious
	}
	if tx.DataDecoded != nil && managementMethods[tx.DataDecoded.Method] {
		return notify.AlertManagement
	}
	return notify.AlertNormal
}

func generateDescription(tx safeapi.SafeTransaction, matches []engine.TemplateMatch) string {
	if tx.DataDecoded != nil {
		return fmt.Sprintf("%s - %s", tx.DataDecoded.Method, formatWarnings(warningMessages(matches)))
	}
	if tx.Value != nil {
		if valueETH, ok := weiStringToEther(*tx.Value); ok && valueETH > 0 {
			return fmt.Sprintf("Transfer %.4f ETH to %s", valueETH, tx.To)
		}
	}
	return fmt.Sprintf("Transaction to %s", tx.To)
}

func formatWarnings(warnings []string) string {
	if len(warnings) == 0 {
		return "No warnings"
	}
	return strings.Join(warnings, ", ")
}

func weiStringToEther(value string) (float64, bool) {
	n, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return 0, false
	}
	f := new(big.Float).SetInt(n)
	f.Quo(f, big.NewFloat(1e18))
	out, _ := f.Float64()
	return out, true
}

// shouldNotify gates delivery by alert type and per-monitor opt-ins,
// ported from monitor.rs's should_notify.
func shouldNotify(alertType notify.AlertType, settings store.MonitorSettings) bool {
	switch alertType {
	case notify.AlertSuspicious:
		return true
	case notify.AlertManagement:
		if settings.NotifyManagement == nil {
			return true
		}
		return *settings.NotifyManagement
	default:
		if settings.NotifyAll == nil {
			return false
		}
		return *settings.NotifyAll
	}
}

func decodeSettings(raw json.RawMessage) store.MonitorSettings {
	var settings store.MonitorSettings
	_ = json.Unmarshal(raw, &settings)
	return settings
}

// sendNotifications fans out alert to every channel configured for
// mon, isolating each channel's failure from the others — ported from
// the teacher's AlertManager.EmitAlert per-webhook goroutine pattern
// and monitor.rs's join_all over notification futures.
// sendNotifications dispatches alert to every one of mon's configured
// channels concurrently. A channel failing to send doesn't fail the
// whole call — but if every channel fails, the caller must not record
// the transaction as notified, so at least one success is required.
func (m *Monitor) sendNotifications(ctx context.Context, alert notify.Alert, mon store.Monitor, settings store.MonitorSettings) error {
	if len(settings.NotificationChannels) == 0 {
		return fmt.Errorf("no notification channels configured")
	}
	var channels []notify.Channel
	if err := json.Unmarshal(settings.NotificationChannels, &channels); err != nil {
		return fmt.Errorf("parse notification channels: %w", err)
	}

	var succeeded atomic.Int32
	var g errgroup.Group
	for _, channel := range channels {
		channel := channel
		g.Go(func() error {
			if err := m.Notifier.Send(ctx, alert, channel); err != nil {
				m.log.WithFields(logrus.Fields{
					"monitorId":       mon.ID,
					"transactionHash": alert.TransactionHash,
				}).WithError(err).Error("failed to send notification")
				return nil
			}
			succeeded.Add(1)
			m.log.WithFields(logrus.Fields{
				"monitorId":       mon.ID,
				"transactionHash": alert.TransactionHash,
			}).Info("notification sent")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if succeeded.Load() == 0 {
		return fmt.Errorf("all %d notification channel(s) failed to send", len(channels))
	}
	return nil
}
