package engine

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rawblock/safe-monitor/internal/hashcheck"
)

var builtinLog = logrus.WithField("component", "engine.builtins")

// BuiltinContext is the input a builtin check receives. It carries the
// transaction's dynamic field tree plus the collaborator-sourced
// fields (chain id, Safe version) and every match emitted by earlier
// templates in the catalogue, since later builtins (notably
// calculate-security-score) aggregate over them.
type BuiltinContext struct {
	Transaction     map[string]any
	SafeAddress     string
	ChainID         *uint64
	SafeVersion     *string
	AnalysisDetails []AnalysisDetailInput
}

// AnalysisDetailInput is the minimal shape calculate-security-score
// needs from a prior match: its severity and optional priority.
type AnalysisDetailInput struct {
	Severity string
	Priority *string
}

// BuiltinOutput is the match payload a builtin produces, in the same
// shape a condition-backed template's output would take.
type BuiltinOutput struct {
	OutputType string
	Severity   string
	Warning    *string
	Message    string
	Priority   *string
	Extra      map[string]any
}

// BuiltinResult is the outcome of running one builtin check.
type BuiltinResult struct {
	Success bool
	Output  *BuiltinOutput
	Error   string
}

// BuiltinCheck is the contract every builtin implements. Unlike
// condition-backed templates, builtins may consult collaborators
// already resolved onto the context (chain id, Safe version) or, for
// the stubbed network-dependent checks, simply report that they have
// nothing to say without those collaborators wired in.
type BuiltinCheck interface {
	Name() Builtin
	Execute(ctx BuiltinContext) BuiltinResult
}

// BuiltinRegistry holds every registered builtin, keyed by name.
type BuiltinRegistry struct {
	checks map[Builtin]BuiltinCheck
}

// NewBuiltinRegistry registers the two network-free checks that the
// rule catalogue's builtin templates can reference, plus stub
// registrations for the remaining catalogue-complete builtins that
// have no concrete collaborator wired to them yet.
func NewBuiltinRegistry() *BuiltinRegistry {
	r := &BuiltinRegistry{checks: make(map[Builtin]BuiltinCheck)}
	r.register(hashVerificationBuiltin{})
	r.register(securityScoreBuiltin{})
	for _, b := range stubBuiltins() {
		r.register(b)
	}
	return r
}

func (r *BuiltinRegistry) register(b BuiltinCheck) {
	r.checks[b.Name()] = b
}

// Get returns the registered check for name, if any.
func (r *BuiltinRegistry) Get(name Builtin) (BuiltinCheck, bool) {
	b, ok := r.checks[name]
	return b, ok
}

// Execute runs the named builtin, returning nil if it is not registered.
func (r *BuiltinRegistry) Execute(name Builtin, ctx BuiltinContext) *BuiltinResult {
	b, ok := r.checks[name]
	if !ok {
		return nil
	}
	result := b.Execute(ctx)
	return &result
}

// AvailableBuiltins lists every registered builtin name.
func (r *BuiltinRegistry) AvailableBuiltins() []Builtin {
	names := make([]Builtin, 0, len(r.checks))
	for name := range r.checks {
		names = append(names, name)
	}
	return names
}

// hashVerificationBuiltin wraps internal/hashcheck for the rule
// catalogue. It silently skips (no output, no error) whenever any of
// chain id, Safe version, nonce, or the indexer-reported transaction
// hash are missing from the context — a transaction the worker hasn't
// fully resolved yet isn't a verification failure.
type hashVerificationBuiltin struct{}

func (hashVerificationBuiltin) Name() Builtin { return BuiltinVerifyTransactionHash }

func (hashVerificationBuiltin) Execute(ctx BuiltinContext) BuiltinResult {
	nonce, hasNonce := ctx.Transaction["nonce"].(float64)
	safeTxHash, hasHash := ctx.Transaction["safeTxHash"].(string)

	if ctx.ChainID == nil || ctx.SafeVersion == nil || !hasNonce || !hasHash || safeTxHash == "" {
		return BuiltinResult{Success: true}
	}

	to, _ := ctx.Transaction["to"].(string)
	value, _ := ctx.Transaction["value"].(string)
	data, _ := ctx.Transaction["data"].(string)
	operation, _ := ctx.Transaction["operation"].(float64)
	safeTxGas, _ := ctx.Transaction["safeTxGas"].(string)
	baseGas, _ := ctx.Transaction["baseGas"].(string)
	gasPrice, _ := ctx.Transaction["gasPrice"].(string)
	gasToken, _ := ctx.Transaction["gasToken"].(string)
	if gasToken == "" {
		gasToken = ZeroAddress
	}
	refundReceiver, _ := ctx.Transaction["refundReceiver"].(string)
	if refundReceiver == "" {
		refundReceiver = ZeroAddress
	}

	result := hashcheck.Verify(hashcheck.Request{
		To:             to,
		Value:          value,
		Data:           data,
		Operation:      uint8(operation),
		SafeTxGas:      safeTxGas,
		BaseGas:        baseGas,
		GasPrice:       gasPrice,
		GasToken:       gasToken,
		RefundReceiver: refundReceiver,
		Nonce:          uint64(nonce),
		APISafeTxHash:  safeTxHash,
		SafeAddress:    ctx.SafeAddress,
		ChainID:        *ctx.ChainID,
		SafeVersion:    *ctx.SafeVersion,
	})

	calculated := map[string]any{
		"domainHash":  result.Calculated.DomainHash,
		"messageHash": result.Calculated.MessageHash,
		"safeTxHash":  result.Calculated.SafeTxHash,
	}
	apiHashes := map[string]any{"safeTxHash": result.API.SafeTxHash}

	if !result.Verified {
		warning := "Hash Verification Failed"
		message := result.Error
		if message == "" {
			message = "Safe transaction hash does not match calculated hash"
		}
		priority := "P0"
		return BuiltinResult{
			Success: true,
			Output: &BuiltinOutput{
				OutputType: "hash_mismatch",
				Severity:   "critical",
				Warning:    &warning,
				Message:    message,
				Priority:   &priority,
				Extra: map[string]any{
					"verified":         false,
					"calculatedHashes": calculated,
					"apiHashes":        apiHashes,
				},
			},
		}
	}

	return BuiltinResult{
		Success: true,
		Output: &BuiltinOutput{
			OutputType: "hash_verified",
			Severity:   "low",
			Message:    "Safe transaction hash matches calculated hash",
			Extra: map[string]any{
				"verified":         true,
				"calculatedHashes": calculated,
				"apiHashes":        apiHashes,
			},
		},
	}
}

// securityScoreBuiltin aggregates the severities and priorities of
// every match produced earlier in the same evaluation pass into a
// single risk-level verdict.
type securityScoreBuiltin struct{}

func (securityScoreBuiltin) Name() Builtin { return BuiltinCalculateSecurityScore }

func (securityScoreBuiltin) Execute(ctx BuiltinContext) BuiltinResult {
	var critical, high, medium int
	hasP0 := false

	for _, d := range ctx.AnalysisDetails {
		switch d.Severity {
		case "critical":
			critical++
		case "high":
			high++
		case "medium":
			medium++
		}
		if d.Priority != nil && *d.Priority == "P0" {
			hasP0 = true
		}
	}

	var riskLevel string
	var isSuspicious bool
	var priority *string

	switch {
	case critical > 0 || hasP0:
		riskLevel, isSuspicious = "critical", true
		p := "P0"
		priority = &p
	case high > 0:
		riskLevel, isSuspicious = "high", true
	case medium > 1:
		riskLevel, isSuspicious = "medium", true
	case medium > 0:
		riskLevel, isSuspicious = "medium", false
	default:
		riskLevel, isSuspicious = "low", false
	}

	return BuiltinResult{
		Success: true,
		Output: &BuiltinOutput{
			OutputType: "security_score",
			Severity:   riskLevel,
			Message:    fmt.Sprintf("Risk level: %s, Suspicious: %t", riskLevel, isSuspicious),
			Priority:   priority,
			Extra: map[string]any{
				"riskLevel":    riskLevel,
				"isSuspicious": isSuspicious,
				"priority":     priority,
				"severityCounts": map[string]any{
					"critical": critical,
					"high":     high,
					"medium":   medium,
				},
			},
		},
	}
}

// stubBuiltin is a catalogue-complete, network-call-free placeholder
// for a Builtin enum value the reference implementation declares but
// never wires to a concrete data source (the Safe API / blockchain
// RPC / sanctions collaborators are out of scope here). It always
// reports success with an info-severity "not-implemented" output, so a
// template referencing it loads and surfaces as an informational match
// rather than a load error, until a concrete collaborator is attached
// to the registry.
type stubBuiltin struct {
	name Builtin
}

func (s stubBuiltin) Name() Builtin { return s.name }

func (s stubBuiltin) Execute(ctx BuiltinContext) BuiltinResult {
	builtinLog.WithFields(logrus.Fields{
		"builtin":     string(s.name),
		"safeAddress": ctx.SafeAddress,
	}).Debug("stub builtin has no collaborator wired in, reporting not-implemented")
	return BuiltinResult{
		Success: true,
		Output: &BuiltinOutput{
			OutputType: "not-implemented",
			Severity:   "info",
			Message:    fmt.Sprintf("builtin %q has no collaborator wired in", s.name),
		},
	}
}

func stubBuiltins() []BuiltinCheck {
	names := []Builtin{
		BuiltinSafeAPIInfo,
		BuiltinSafeAPICreation,
		BuiltinBlockchainInfoOwners,
		BuiltinBlockchainInfoModules,
		BuiltinBlockchainInfoGuard,
		BuiltinBlockchainInfoFallback,
		BuiltinBlockchainInfoThreshold,
		BuiltinSanctionsSafeAddress,
		BuiltinSanctionsOwners,
		BuiltinSanctionsFactory,
		BuiltinSanctionsMastercopy,
		BuiltinSanctionsModules,
	}
	checks := make([]BuiltinCheck, 0, len(names))
	for _, n := range names {
		checks = append(checks, stubBuiltin{name: n})
	}
	return checks
}
