package engine

import "testing"

func testContext() *TransactionContext {
	to := "0x1234567890123456789012345678901234567890"
	value := "0"
	operation := uint8(0)
	nonce := uint64(0)
	return &TransactionContext{
		To:        to,
		Value:     &value,
		Operation: &operation,
		Nonce:     &nonce,
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	templates, err := LoadEmbeddedTransactionTemplates()
	if err != nil {
		t.Fatalf("loading embedded templates: %v", err)
	}
	return New(templates, NewBuiltinRegistry())
}

func hasOutputType(matches []TemplateMatch, outputType string) bool {
	for _, m := range matches {
		if m.OutputType == outputType {
			return true
		}
	}
	return false
}

func TestGasTokenAttackDetection(t *testing.T) {
	e := newTestEngine(t)
	ctx := testContext()
	gasToken := "0x1111111111111111111111111111111111111111"
	refundReceiver := "0x2222222222222222222222222222222222222222"
	ctx.GasToken = &gasToken
	ctx.RefundReceiver = &refundReceiver

	matches := e.EvaluateTransaction(ctx)

	if !hasOutputType(matches, "gas_token_attack") {
		t.Fatalf("expected gas_token_attack match, got %+v", matches)
	}
}

func TestUntrustedDelegateCallDetection(t *testing.T) {
	e := newTestEngine(t)
	ctx := testContext()
	op := uint8(1)
	ctx.Operation = &op
	ctx.To = "0x9999999999999999999999999999999999999999"

	matches := e.EvaluateTransaction(ctx)

	if !hasOutputType(matches, "untrusted_delegate_call") {
		t.Fatalf("expected untrusted_delegate_call match, got %+v", matches)
	}
}

func TestTrustedDelegateCallDetection(t *testing.T) {
	e := newTestEngine(t)
	ctx := testContext()
	op := uint8(1)
	ctx.Operation = &op
	ctx.To = "0x40A2aCCbd92BCA938b02010E17A5b8929b49130D"

	matches := e.EvaluateTransaction(ctx)

	if !hasOutputType(matches, "trusted_delegate_call") {
		t.Fatalf("expected trusted_delegate_call match, got %+v", matches)
	}
	if hasOutputType(matches, "untrusted_delegate_call") {
		t.Fatalf("trusted delegate call must not also flag as untrusted: %+v", matches)
	}
}

func TestOwnerAddedDetection(t *testing.T) {
	e := newTestEngine(t)
	ctx := testContext()
	ctx.DataDecoded = &DataDecodedContext{
		Method: "addOwner",
		Parameters: []ParameterContext{
			{Name: "owner", ParamType: "address", Value: "0x3333333333333333333333333333333333333333"},
		},
	}

	matches := e.EvaluateTransaction(ctx)

	if !hasOutputType(matches, "owner_added") {
		t.Fatalf("expected owner_added match, got %+v", matches)
	}
}

func TestLargeValueTransferDetection(t *testing.T) {
	e := newTestEngine(t)
	ctx := testContext()
	value := "6000000000000000000000"
	ctx.Value = &value

	matches := e.EvaluateTransaction(ctx)

	if !hasOutputType(matches, "large_value_transfer") {
		t.Fatalf("expected large_value_transfer match, got %+v", matches)
	}
}

func TestCleanTransactionHasNoFalsePositives(t *testing.T) {
	e := newTestEngine(t)
	ctx := testContext()

	matches := e.EvaluateTransaction(ctx)

	for _, m := range matches {
		if m.Severity == SeverityCritical {
			t.Fatalf("clean transaction produced a critical match: %+v", m)
		}
	}
}

func TestSeverityMerge(t *testing.T) {
	if got := SeverityLow.Merge(SeverityCritical); got != SeverityCritical {
		t.Fatalf("expected merge to return the greater severity, got %s", got)
	}
	if got := SeverityHigh.Merge(SeverityMedium); got != SeverityHigh {
		t.Fatalf("expected merge to keep the greater severity, got %s", got)
	}
}

func TestGetFieldValueSnakeCaseFallback(t *testing.T) {
	value := map[string]any{"safe_tx_hash": "0xabc"}
	if got := getFieldValue(value, "safeTxHash"); got != "0xabc" {
		t.Fatalf("expected snake_case fallback to resolve safeTxHash, got %v", got)
	}
}

func TestGetFieldValueArrayIndex(t *testing.T) {
	value := map[string]any{
		"parameters": []any{
			map[string]any{"name": "owner"},
		},
	}
	if got := getFieldValue(value, "parameters.0.name"); got != "owner" {
		t.Fatalf("expected array-index traversal to resolve owner, got %v", got)
	}
}

func TestParseNumericUnits(t *testing.T) {
	n, ok := parseNumeric("6000000000000000000000", UnitEther)
	if !ok || n != 6000 {
		t.Fatalf("expected 6000 ether, got %v ok=%v", n, ok)
	}

	n, ok = parseNumeric("5000000000", UnitGwei)
	if !ok || n != 5 {
		t.Fatalf("expected 5 gwei, got %v ok=%v", n, ok)
	}
}

func TestInterpolateMessage(t *testing.T) {
	e := newTestEngine(t)
	value := map[string]any{"to": "0xabc", "value": "100"}
	msg := e.interpolateMessage("send to {{to}} for {{value}}", value)
	if msg != "send to 0xabc for 100" {
		t.Fatalf("unexpected interpolation result: %s", msg)
	}
}
