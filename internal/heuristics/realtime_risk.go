package heuristics

// Real-Time Risk Pre-Filter
//
// Originally composited every signal from a 28-step Bitcoin mempool
// pipeline into a single threat verdict for the SOC dashboard. The
// Monitor Worker repurposes this scoring ladder as a cheap pre-filter
// it runs on every observed Safe transaction before handing the
// transaction to the template-driven rule engine (internal/engine) —
// the engine remains authoritative for alert severity and matched
// templates and runs on every transaction whatever this score is; the
// pre-filter only gives the worker a fast signal to log, even when no
// template matches.
//
// Risk composition:
//   Base score starts at 0 (clean)
//   Each signal adds weighted risk points
//   Untrusted delegatecall = immediate escalation
//   Gas token + refund receiver pattern = automatic critical
//
// Severity levels:
//   info     (0-10):   Normal transaction, no action
//   low      (11-30):  Minor flags, log only
//   medium   (31-50):  Notable patterns, review recommended
//   high     (51-75):  Suspicious activity, alert team
//   critical (76-100): Immediate action required

// TransactionSignals are the cheap, locally-computable signals the
// pre-filter scores, gathered by the worker from the indexer row and
// the Safe's current configuration without any extra RPC round-trip.
type TransactionSignals struct {
	SafeTxHash          string
	ValueETH            float64
	IsDelegateCall      bool
	IsUntrustedDelegate bool // target is not in the trusted delegate-call allowlist
	IsManagementMethod  bool // decoded method touches owners/threshold/modules/guard
	HasNonZeroGasToken  bool
	HasRefundReceiver   bool
	IsSingleOwnerSafe   bool
	OwnerCount          int
	Threshold           uint32
}

// ThreatAssessment is the real-time risk verdict for a transaction.
type ThreatAssessment struct {
	SafeTxHash        string   `json:"safeTxHash"`
	RiskScore         int      `json:"riskScore"`         // 0-100
	Severity          string   `json:"severity"`          // info/low/medium/high/critical
	Signals           []string `json:"signals"`           // Contributing risk signals
	RecommendedAction string   `json:"recommendedAction"` // "none"/"log"/"review"/"alert"/"escalate"
	IsUntrustedDelegate bool   `json:"isUntrustedDelegate"`
	ValueETH          float64  `json:"valueEth"`
}

// ScoreTransaction produces a real-time threat pre-assessment from
// cheap transaction and Safe-configuration signals.
func ScoreTransaction(signals TransactionSignals) ThreatAssessment {
	assessment := ThreatAssessment{
		SafeTxHash: signals.SafeTxHash,
		ValueETH:   signals.ValueETH,
	}

	riskScore := 0
	var contributing []string

	// ─── Transaction value ────────────────────────────────────────────
	if signals.ValueETH > 1 {
		riskScore += 5
		contributing = append(contributing, "high_value_tx")
	}
	if signals.ValueETH > 100 {
		riskScore += 10
		contributing = append(contributing, "very_high_value_tx")
	}

	// ─── Delegate calls ───────────────────────────────────────────────
	if signals.IsDelegateCall {
		if signals.IsUntrustedDelegate {
			assessment.IsUntrustedDelegate = true
			riskScore += 55
			contributing = append(contributing, "untrusted_delegate_call")
		} else {
			riskScore += 5
			contributing = append(contributing, "trusted_delegate_call")
		}
	}

	// ─── Safe configuration changes ───────────────────────────────────
	if signals.IsManagementMethod {
		riskScore += 20
		contributing = append(contributing, "management_method")
	}

	// ─── Gas token attack pattern ─────────────────────────────────────
	// A non-zero gas token combined with a refund receiver lets the
	// transaction's executor siphon an ERC-20 refund to an address of
	// their choosing — a known Safe griefing/theft pattern.
	if signals.HasNonZeroGasToken && signals.HasRefundReceiver {
		riskScore += 80
		contributing = append(contributing, "gas_token_refund_pattern")
	}

	// ─── Weak ownership structure ─────────────────────────────────────
	if signals.IsSingleOwnerSafe {
		riskScore += 15
		contributing = append(contributing, "single_owner_safe")
	}
	if signals.OwnerCount > 0 && signals.Threshold == 1 && signals.OwnerCount > 1 {
		riskScore += 8
		contributing = append(contributing, "low_threshold_ratio")
	}

	// ─── Compound escalation: untrusted delegatecall + high value ────
	if assessment.IsUntrustedDelegate && signals.ValueETH > 10 {
		riskScore += 15
		contributing = append(contributing, "compound_escalation")
	}

	if riskScore > 100 {
		riskScore = 100
	}
	if riskScore < 0 {
		riskScore = 0
	}

	assessment.RiskScore = riskScore
	assessment.Signals = contributing
	assessment.Severity = classifySeverity(riskScore)
	assessment.RecommendedAction = recommendAction(riskScore)

	return assessment
}

// classifySeverity maps risk score to severity level.
func classifySeverity(score int) string {
	switch {
	case score <= 10:
		return "info"
	case score <= 30:
		return "low"
	case score <= 50:
		return "medium"
	case score <= 75:
		return "high"
	default:
		return "critical"
	}
}

// recommendAction maps risk score to recommended action.
func recommendAction(score int) string {
	switch {
	case score <= 10:
		return "none"
	case score <= 30:
		return "log"
	case score <= 50:
		return "review"
	case score <= 75:
		return "alert"
	default:
		return "escalate"
	}
}
