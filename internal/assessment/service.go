package assessment

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/rawblock/safe-monitor/internal/registry"
)

var hexAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// severityScoreModifier maps a check's resolved severity to the score
// penalty it contributes. Pass/Info never detract; every other rung
// subtracts a fixed amount from the 70-point baseline, consistent with
// the original's per-check risk_factors/score_modifier accumulation
// but expressed as a flat table rather than catalogued per-template.
var severityScoreModifier = map[CheckSeverity]int{
	CheckPass:     0,
	CheckInfo:     0,
	CheckLow:      -5,
	CheckMedium:   -15,
	CheckHigh:     -30,
	CheckCritical: -70,
}

// Service evaluates SafeAssessmentRequests into full responses.
type Service struct {
	registry *registry.Resolver
	log      *logrus.Entry
}

// NewService builds a Service backed by resolver for canonical
// factory/mastercopy/fallback-handler/initializer lookups.
func NewService(resolver *registry.Resolver, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{registry: resolver, log: log.WithField("component", "assessment")}
}

// AssessSafe runs every named check against request and folds the
// results into a scored response.
func (s *Service) AssessSafe(request Request, now func() string) Response {
	results := []checkResult{
		s.validateAddress(request),
		s.validateFactory(request),
		s.validateMastercopy(request),
		s.validateCreationTransaction(request),
		s.validateSafeConfiguration(request),
		s.validateOwnership(request),
		s.validateModules(request),
		s.validateProxy(request),
		s.validateInitializer(request),
		s.validateFallbackHandler(request),
		s.validateSanctions(request),
		s.validateMultisigInfo(request),
	}

	s.log.WithField("checks_evaluated", len(results)).Debug("assessment checks evaluated")

	return s.buildResponse(request, results, now)
}

func (s *Service) buildResponse(request Request, results []checkResult, now func() string) Response {
	checks := Checks{}
	var riskFactors []string
	scoreModifier := 0

	apply := func(target *CheckResult, r checkResult) {
		target.Severity = target.Severity.Merge(r.severity)
		if r.canonicalName != nil {
			target.CanonicalName = r.canonicalName
		}
		target.Warnings = append(target.Warnings, r.warnings...)
	}

	for _, r := range results {
		switch r.checkName {
		case "address_validation":
			apply(&checks.AddressValidation, r)
		case "factory_validation":
			apply(&checks.FactoryValidation, r)
		case "mastercopy_validation":
			apply(&checks.MastercopyValidation, r)
		case "creation_transaction":
			apply(&checks.CreationTransaction, r)
		case "safe_configuration":
			apply(&checks.SafeConfiguration, r)
		case "ownership_validation":
			apply(&checks.OwnershipValidation, r)
		case "module_validation":
			apply(&checks.ModuleValidation, r)
		case "proxy_validation":
			apply(&checks.ProxyValidation, r)
		case "initializer_validation":
			apply(&checks.InitializerValidation, r)
		case "fallback_handler_validation":
			apply(&checks.FallbackHandlerValidation, r)
		case "sanctions_validation":
			apply(&checks.SanctionsValidation, r)
		case "multisig_info_validation":
			apply(&checks.MultisigInfoValidation, r)
		default:
			continue
		}
		riskFactors = append(riskFactors, r.riskFactors...)
		scoreModifier += r.scoreModifier
	}

	s.populateSanctionsCanonicalName(request, &checks)

	details := s.buildDetails(request)
	score, overallRisk := s.calculateSecurityScore(checks, scoreModifier)

	timestamp := ""
	if now != nil {
		timestamp = now()
	}

	return Response{
		SafeAddress:   request.SafeAddress,
		Network:       request.Network,
		Timestamp:     timestamp,
		OverallRisk:   overallRisk,
		RiskFactors:   riskFactors,
		SecurityScore: score,
		Checks:        checks,
		Details:       details,
	}
}

func (s *Service) populateSanctionsCanonicalName(request Request, checks *Checks) {
	if request.SanctionsResults == nil {
		checks.SanctionsValidation.Warnings = append(checks.SanctionsValidation.Warnings, "Sanctions check not performed")
		return
	}

	if request.SanctionsResults.OverallSanctioned || checks.SanctionsValidation.CanonicalName != nil {
		return
	}

	ownerCount := len(request.SafeInfo.Owners)
	hasCreator := request.CreationInfo != nil

	message := "All addresses clear from sanctions (Safe"
	if hasCreator {
		message += ", creator"
	}
	if ownerCount > 0 {
		suffix := ""
		if ownerCount > 1 {
			suffix = "s"
		}
		message += fmt.Sprintf(", %d owner%s", ownerCount, suffix)
	}
	message += ")"

	checks.SanctionsValidation.CanonicalName = &message
}

func (s *Service) buildDetails(request Request) Details {
	details := Details{
		Mastercopy: request.SafeInfo.MasterCopy,
		Version:    request.SafeInfo.Version,
		Owners:     request.SafeInfo.Owners,
		Modules:    request.SafeInfo.Modules,
	}
	threshold := request.SafeInfo.Threshold
	details.Threshold = &threshold
	nonce := request.SafeInfo.Nonce
	details.Nonce = &nonce
	details.FallbackHandler = request.SafeInfo.FallbackHandler
	details.Guard = request.SafeInfo.Guard
	details.MultisigInfoData = request.MultisigInfo

	if request.CreationInfo != nil {
		details.Creator = &request.CreationInfo.Creator
		details.CreationTx = &request.CreationInfo.TransactionHash
		details.Factory = request.CreationInfo.FactoryAddress
	}
	if request.MultisigInfo != nil {
		details.Initializer = request.MultisigInfo.Initializer
	}

	if request.SanctionsResults != nil {
		for _, addr := range request.SanctionsResults.SanctionedAddresses {
			if result, ok := request.SanctionsResults.Results[addr]; ok {
				details.SanctionsData = append(details.SanctionsData, result.Data...)
			}
		}
	}

	return details
}

func (s *Service) calculateSecurityScore(checks Checks, scoreModifier int) (int, string) {
	if checks.AddressValidation.Severity == CheckCritical {
		return 0, "critical"
	}
	if checks.SanctionsValidation.Severity == CheckCritical {
		return 0, "critical"
	}

	score := 70 + scoreModifier
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	var overallRisk string
	switch {
	case score >= 85:
		overallRisk = "low"
	case score >= 70:
		overallRisk = "medium"
	case score >= 50:
		overallRisk = "high"
	default:
		overallRisk = "critical"
	}

	return score, overallRisk
}

func (s *Service) validateAddress(request Request) checkResult {
	if !hexAddressPattern.MatchString(request.SafeInfo.Address) {
		return checkResult{
			checkName:     "address_validation",
			severity:      CheckCritical,
			warnings:      []string{"Safe address is not a well-formed EVM address"},
			riskFactors:   []string{"Malformed Safe address"},
			scoreModifier: severityScoreModifier[CheckCritical],
		}
	}
	return checkResult{checkName: "address_validation", severity: CheckPass}
}

func (s *Service) validateFactory(request Request) checkResult {
	if request.CreationInfo == nil || request.CreationInfo.FactoryAddress == nil {
		return checkResult{checkName: "factory_validation", severity: CheckPass}
	}
	if s.registry == nil {
		return checkResult{checkName: "factory_validation", severity: CheckPass}
	}
	label, ok := s.registry.Lookup(registry.CanonicalFactories, *request.CreationInfo.FactoryAddress)
	if !ok {
		return checkResult{
			checkName:     "factory_validation",
			severity:      CheckMedium,
			warnings:      []string{"Factory address is not on the canonical factory list"},
			riskFactors:   []string{"Non-canonical factory"},
			scoreModifier: severityScoreModifier[CheckMedium],
		}
	}
	return checkResult{checkName: "factory_validation", severity: CheckPass, canonicalName: &label}
}

func (s *Service) validateMastercopy(request Request) checkResult {
	if request.SafeInfo.MasterCopy == nil {
		return checkResult{
			checkName:     "mastercopy_validation",
			severity:      CheckHigh,
			warnings:      []string{"No mastercopy reported for this Safe"},
			riskFactors:   []string{"Missing mastercopy"},
			scoreModifier: severityScoreModifier[CheckHigh],
		}
	}
	if s.registry == nil {
		return checkResult{checkName: "mastercopy_validation", severity: CheckPass}
	}
	label, ok := s.registry.Lookup(registry.CanonicalMastercopies, *request.SafeInfo.MasterCopy)
	if !ok {
		return checkResult{
			checkName:     "mastercopy_validation",
			severity:      CheckHigh,
			warnings:      []string{"Mastercopy is not a canonical Safe implementation"},
			riskFactors:   []string{"Non-canonical mastercopy"},
			scoreModifier: severityScoreModifier[CheckHigh],
		}
	}
	return checkResult{checkName: "mastercopy_validation", severity: CheckPass, canonicalName: &label}
}

func (s *Service) validateCreationTransaction(request Request) checkResult {
	if request.CreationInfo == nil {
		return checkResult{
			checkName: "creation_transaction",
			severity:  CheckInfo,
			warnings:  []string{"Creation transaction not available"},
		}
	}
	return checkResult{checkName: "creation_transaction", severity: CheckPass}
}

func (s *Service) validateSafeConfiguration(request Request) checkResult {
	if request.SafeInfo.Version == nil {
		return checkResult{
			checkName: "safe_configuration",
			severity:  CheckInfo,
			warnings:  []string{"Safe version not reported"},
		}
	}
	return checkResult{checkName: "safe_configuration", severity: CheckPass}
}

func (s *Service) validateOwnership(request Request) checkResult {
	ownerCount := len(request.SafeInfo.Owners)
	threshold := request.SafeInfo.Threshold

	if threshold == 0 || int(threshold) > ownerCount {
		// Severity alone doesn't short-circuit calculateSecurityScore for
		// this check (only address/sanctions validation do) — the -70
		// modifier is what drives the score to 0 for an invalid threshold.
		return checkResult{
			checkName:     "ownership_validation",
			severity:      CheckCritical,
			warnings:      []string{"Invalid signing threshold for this owner set"},
			riskFactors:   []string{"Invalid threshold"},
			scoreModifier: severityScoreModifier[CheckCritical],
		}
	}

	if ownerCount == 1 && threshold == 1 {
		// Flagged at High severity for visibility, but left out of the
		// score modifier: a single legitimately-owned Safe isn't scored
		// as harshly as a structurally broken one.
		return checkResult{
			checkName:   "ownership_validation",
			severity:    CheckHigh,
			warnings:    []string{"Single owner with 1-of-1 threshold provides no multisig protection"},
			riskFactors: []string{"Single owner controls this Safe"},
		}
	}

	return checkResult{checkName: "ownership_validation", severity: CheckPass}
}

func (s *Service) validateModules(request Request) checkResult {
	if len(request.SafeInfo.Modules) == 0 {
		return checkResult{checkName: "module_validation", severity: CheckPass}
	}
	return checkResult{
		checkName: "module_validation",
		severity:  CheckInfo,
		warnings:  []string{fmt.Sprintf("%d module(s) enabled; modules can execute transactions without owner signatures", len(request.SafeInfo.Modules))},
	}
}

func (s *Service) validateProxy(request Request) checkResult {
	if request.MultisigInfo == nil || request.MultisigInfo.Proxy == nil {
		return checkResult{checkName: "proxy_validation", severity: CheckPass}
	}
	if !hexAddressPattern.MatchString(*request.MultisigInfo.Proxy) {
		return checkResult{
			checkName:     "proxy_validation",
			severity:      CheckMedium,
			warnings:      []string{"Proxy address is not a well-formed EVM address"},
			scoreModifier: severityScoreModifier[CheckMedium],
		}
	}
	return checkResult{checkName: "proxy_validation", severity: CheckPass}
}

func (s *Service) validateInitializer(request Request) checkResult {
	if request.MultisigInfo == nil || request.MultisigInfo.Initializer == nil {
		return checkResult{checkName: "initializer_validation", severity: CheckPass}
	}
	if s.registry == nil {
		return checkResult{checkName: "initializer_validation", severity: CheckPass}
	}
	label, ok := s.registry.Lookup(registry.CanonicalInitializers, *request.MultisigInfo.Initializer)
	if !ok {
		return checkResult{
			checkName:     "initializer_validation",
			severity:      CheckLow,
			warnings:      []string{"Initializer is not on the canonical initializer list"},
			scoreModifier: severityScoreModifier[CheckLow],
		}
	}
	return checkResult{checkName: "initializer_validation", severity: CheckPass, canonicalName: &label}
}

func (s *Service) validateFallbackHandler(request Request) checkResult {
	if request.SafeInfo.FallbackHandler == nil {
		return checkResult{checkName: "fallback_handler_validation", severity: CheckPass}
	}
	if s.registry == nil {
		return checkResult{checkName: "fallback_handler_validation", severity: CheckPass}
	}
	label, ok := s.registry.Lookup(registry.CanonicalFallbackHandlers, *request.SafeInfo.FallbackHandler)
	if !ok {
		return checkResult{
			checkName:     "fallback_handler_validation",
			severity:      CheckMedium,
			warnings:      []string{"Fallback handler is not a canonical Safe fallback handler"},
			riskFactors:   []string{"Non-canonical fallback handler"},
			scoreModifier: severityScoreModifier[CheckMedium],
		}
	}
	return checkResult{checkName: "fallback_handler_validation", severity: CheckPass, canonicalName: &label}
}

func (s *Service) validateSanctions(request Request) checkResult {
	if request.SanctionsResults == nil {
		return checkResult{checkName: "sanctions_validation", severity: CheckPass}
	}
	if request.SanctionsResults.OverallSanctioned {
		addrs := strings.Join(request.SanctionsResults.SanctionedAddresses, ", ")
		return checkResult{
			checkName:     "sanctions_validation",
			severity:      CheckCritical,
			warnings:      []string{fmt.Sprintf("Sanctioned address(es) detected: %s", addrs)},
			riskFactors:   []string{"Sanctioned address associated with this Safe"},
			scoreModifier: severityScoreModifier[CheckCritical],
		}
	}
	return checkResult{checkName: "sanctions_validation", severity: CheckPass}
}

// validateMultisigInfo cross-checks the indexer-reported multisig proxy
// metadata against the values the Safe itself and its creation
// transaction report. A mismatch means the proxy's deployment data has
// been tampered with or the indexer is feeding stale/wrong data — either
// way the Safe's reported configuration can no longer be trusted,
// mirroring assessment_engine.rs's CrossFieldComparison (mismatch ⇒
// critical, either side missing ⇒ skipped).
func (s *Service) validateMultisigInfo(request Request) checkResult {
	if request.MultisigInfo == nil {
		return checkResult{checkName: "multisig_info_validation", severity: CheckPass}
	}

	var warnings, riskFactors []string
	severity := CheckPass
	scoreModifier := 0

	if request.MultisigInfo.MasterCopy != nil && request.SafeInfo.MasterCopy != nil &&
		!strings.EqualFold(*request.MultisigInfo.MasterCopy, *request.SafeInfo.MasterCopy) {
		severity = severity.Merge(CheckCritical)
		scoreModifier += severityScoreModifier[CheckCritical]
		warnings = append(warnings, "Multisig info mastercopy does not match the Safe's reported mastercopy")
		riskFactors = append(riskFactors, "Mastercopy mismatch between multisig info and Safe info")
	}

	if request.MultisigInfo.Creator != nil && request.CreationInfo != nil &&
		!strings.EqualFold(*request.MultisigInfo.Creator, request.CreationInfo.Creator) {
		severity = severity.Merge(CheckCritical)
		scoreModifier += severityScoreModifier[CheckCritical]
		warnings = append(warnings, "Multisig info creator does not match the creation transaction's creator")
		riskFactors = append(riskFactors, "Creator mismatch between multisig info and creation transaction")
	}

	return checkResult{
		checkName:     "multisig_info_validation",
		severity:      severity,
		warnings:      warnings,
		riskFactors:   riskFactors,
		scoreModifier: scoreModifier,
	}
}
