package heuristics

import "testing"

func TestScoreTransactionCleanTransferIsInfo(t *testing.T) {
	assessment := ScoreTransaction(TransactionSignals{
		SafeTxHash: "0xclean",
		ValueETH:   0.1,
	})

	if assessment.Severity != "info" {
		t.Fatalf("expected a small plain transfer to score as info, got %s (score %d)", assessment.Severity, assessment.RiskScore)
	}
	if assessment.RecommendedAction != "none" {
		t.Fatalf("expected recommended action none, got %s", assessment.RecommendedAction)
	}
}

func TestScoreTransactionUntrustedDelegateCallEscalates(t *testing.T) {
	assessment := ScoreTransaction(TransactionSignals{
		SafeTxHash:          "0xdelegate",
		IsDelegateCall:      true,
		IsUntrustedDelegate: true,
	})

	if assessment.RiskScore < 50 {
		t.Fatalf("expected untrusted delegatecall to contribute at least 50 points, got %d", assessment.RiskScore)
	}
	if assessment.Severity != "high" && assessment.Severity != "critical" {
		t.Fatalf("expected untrusted delegatecall to classify as high or critical, got %s", assessment.Severity)
	}
}

func TestScoreTransactionGasTokenRefundPatternIsCritical(t *testing.T) {
	assessment := ScoreTransaction(TransactionSignals{
		SafeTxHash:         "0xgastoken",
		HasNonZeroGasToken: true,
		HasRefundReceiver:  true,
	})

	if assessment.Severity != "critical" {
		t.Fatalf("expected the gas-token-plus-refund-receiver pattern to be critical, got %s (score %d)",
			assessment.Severity, assessment.RiskScore)
	}
	if assessment.RecommendedAction != "escalate" {
		t.Fatalf("expected recommended action escalate, got %s", assessment.RecommendedAction)
	}
}

func TestScoreTransactionCompoundEscalation(t *testing.T) {
	withoutValue := ScoreTransaction(TransactionSignals{
		IsDelegateCall:      true,
		IsUntrustedDelegate: true,
		ValueETH:            1,
	})
	withValue := ScoreTransaction(TransactionSignals{
		IsDelegateCall:      true,
		IsUntrustedDelegate: true,
		ValueETH:            50,
	})

	if withValue.RiskScore <= withoutValue.RiskScore {
		t.Fatalf("expected a high-value untrusted delegatecall to score higher than a low-value one: %d vs %d",
			withValue.RiskScore, withoutValue.RiskScore)
	}
}

func TestScoreTransactionRiskScoreNeverExceeds100(t *testing.T) {
	assessment := ScoreTransaction(TransactionSignals{
		ValueETH:            1000,
		IsDelegateCall:      true,
		IsUntrustedDelegate: true,
		IsManagementMethod:  true,
		HasNonZeroGasToken:  true,
		HasRefundReceiver:   true,
		IsSingleOwnerSafe:   true,
		OwnerCount:          2,
		Threshold:           1,
	})

	if assessment.RiskScore > 100 {
		t.Fatalf("expected risk score to be clamped at 100, got %d", assessment.RiskScore)
	}
}
