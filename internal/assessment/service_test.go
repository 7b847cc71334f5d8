package assessment

import (
	"testing"

	"github.com/rawblock/safe-monitor/internal/registry"
)

func strPtr(s string) *string { return &s }

func testRequest() Request {
	masterCopy := "0xd9Db270c1B5E3Bd161E8c8503c55cEABeE709552"
	fallback := "0xf48f2B2d2a534e402487b3ee7C18c33Aec0Fe5e4"
	version := "1.3.0"
	factory := "0xa6B71E26C5e0845f74c812102Ca7114b6a896AB2"

	return Request{
		SafeAddress: "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0",
		Network:     "ethereum",
		SafeInfo: SafeInfo{
			Address:   "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0",
			Nonce:     5,
			Threshold: 2,
			Owners: []string{
				"0x1234567890123456789012345678901234567890",
				"0x0987654321098765432109876543210987654321",
			},
			MasterCopy:      &masterCopy,
			FallbackHandler: &fallback,
			Version:         &version,
		},
		CreationInfo: &CreationInfo{
			Creator:         "0xaaaa567890123456789012345678901234567890",
			TransactionHash: "0xbbbb567890123456789012345678901234567890123456789012345678901234",
			FactoryAddress:  &factory,
		},
	}
}

func newTestService() *Service {
	return NewService(registry.NewResolver(""), nil)
}

func fixedClock() string { return "2026-01-01T00:00:00Z" }

func TestAssessSafeBaseline(t *testing.T) {
	resp := newTestService().AssessSafe(testRequest(), fixedClock)

	if resp.Checks.AddressValidation.Severity != CheckPass {
		t.Fatalf("expected address_validation Pass, got %s", resp.Checks.AddressValidation.Severity)
	}
	if resp.Checks.OwnershipValidation.Severity != CheckPass {
		t.Fatalf("expected ownership_validation Pass, got %s", resp.Checks.OwnershipValidation.Severity)
	}
	if resp.SecurityScore <= 0 {
		t.Fatalf("expected a positive security score, got %d", resp.SecurityScore)
	}
}

func TestAssessSafeSingleOwnerWarning(t *testing.T) {
	req := testRequest()
	req.SafeInfo.Owners = []string{"0x1234567890123456789012345678901234567890"}
	req.SafeInfo.Threshold = 1

	resp := newTestService().AssessSafe(req, fixedClock)

	if resp.Checks.OwnershipValidation.Severity != CheckHigh {
		t.Fatalf("expected ownership_validation High, got %s", resp.Checks.OwnershipValidation.Severity)
	}
	found := false
	for _, rf := range resp.RiskFactors {
		if contains(rf, "Single owner") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a risk factor mentioning single owner, got %v", resp.RiskFactors)
	}
	if resp.OverallRisk != "medium" {
		t.Fatalf("expected overall risk medium, got %s", resp.OverallRisk)
	}
}

func TestAssessSafeInvalidThreshold(t *testing.T) {
	req := testRequest()
	req.SafeInfo.Threshold = 0

	resp := newTestService().AssessSafe(req, fixedClock)

	if resp.Checks.OwnershipValidation.Severity != CheckCritical {
		t.Fatalf("expected ownership_validation Critical, got %s", resp.Checks.OwnershipValidation.Severity)
	}
	if resp.OverallRisk != "critical" {
		t.Fatalf("expected overall risk critical, got %s", resp.OverallRisk)
	}
	if resp.SecurityScore != 0 {
		t.Fatalf("expected security score 0, got %d", resp.SecurityScore)
	}
}

func TestAssessSafeCanonicalMastercopy(t *testing.T) {
	resp := newTestService().AssessSafe(testRequest(), fixedClock)

	if resp.Checks.MastercopyValidation.Severity != CheckPass {
		t.Fatalf("expected mastercopy_validation Pass, got %s", resp.Checks.MastercopyValidation.Severity)
	}
	if resp.Checks.MastercopyValidation.CanonicalName == nil {
		t.Fatalf("expected a canonical name for the known mastercopy")
	}
}

func TestSanctionsCanonicalNameClearMessage(t *testing.T) {
	req := testRequest()
	req.SanctionsResults = &SanctionsResults{OverallSanctioned: false}

	resp := newTestService().AssessSafe(req, fixedClock)

	if resp.Checks.SanctionsValidation.CanonicalName == nil {
		t.Fatalf("expected a clear-sanctions canonical message")
	}
}

func TestSanctionsNotPerformedWarning(t *testing.T) {
	resp := newTestService().AssessSafe(testRequest(), fixedClock)

	found := false
	for _, w := range resp.Checks.SanctionsValidation.Warnings {
		if w == "Sanctions check not performed" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a sanctions-not-performed warning when no sanctions results are supplied")
	}
}

func TestAssessSafeMultisigInfoMastercopyMismatchIsCritical(t *testing.T) {
	req := testRequest()
	wrongMasterCopy := "0x1111111111111111111111111111111111111111"
	req.MultisigInfo = &MultisigInfo{
		MasterCopy: &wrongMasterCopy,
	}

	resp := newTestService().AssessSafe(req, fixedClock)

	if resp.Checks.MultisigInfoValidation.Severity != CheckCritical {
		t.Fatalf("expected multisig_info_validation Critical on mastercopy mismatch, got %s", resp.Checks.MultisigInfoValidation.Severity)
	}
	if resp.OverallRisk != "critical" {
		t.Fatalf("expected overall risk critical, got %s", resp.OverallRisk)
	}
}

func TestAssessSafeMultisigInfoCreatorMismatchIsCritical(t *testing.T) {
	req := testRequest()
	wrongCreator := "0x9999999999999999999999999999999999999999"
	req.MultisigInfo = &MultisigInfo{
		Creator: &wrongCreator,
	}

	resp := newTestService().AssessSafe(req, fixedClock)

	if resp.Checks.MultisigInfoValidation.Severity != CheckCritical {
		t.Fatalf("expected multisig_info_validation Critical on creator mismatch, got %s", resp.Checks.MultisigInfoValidation.Severity)
	}
}

func TestAssessSafeMultisigInfoMatchingFieldsPass(t *testing.T) {
	req := testRequest()
	masterCopy := *req.SafeInfo.MasterCopy
	creator := req.CreationInfo.Creator
	req.MultisigInfo = &MultisigInfo{
		MasterCopy: &masterCopy,
		Creator:    &creator,
	}

	resp := newTestService().AssessSafe(req, fixedClock)

	if resp.Checks.MultisigInfoValidation.Severity != CheckPass {
		t.Fatalf("expected multisig_info_validation Pass when fields agree, got %s", resp.Checks.MultisigInfoValidation.Severity)
	}
}

func TestAssessSafeMultisigInfoNilIsPass(t *testing.T) {
	resp := newTestService().AssessSafe(testRequest(), fixedClock)

	if resp.Checks.MultisigInfoValidation.Severity != CheckPass {
		t.Fatalf("expected multisig_info_validation Pass when no multisig info is supplied, got %s", resp.Checks.MultisigInfoValidation.Severity)
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (s == substr || (len(substr) > 0 && indexOf(s, substr) >= 0))
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
