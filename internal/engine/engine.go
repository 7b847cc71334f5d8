package engine

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/rawblock/safe-monitor/internal/registry"
)

var interpolationPattern = regexp.MustCompile(`\{\{\s*(\w+(?:\.\w+)*)\s*\}\}`)

// Engine evaluates a transaction-template catalogue against
// TransactionContexts in catalogue order, builtins deferred to run last.
type Engine struct {
	templates []Template
	builtins  *BuiltinRegistry
}

// New builds an Engine from an already-loaded template catalogue.
// Catalogue ordering places builtin-backed templates after all
// condition-backed ones; the loaders themselves only sort by file name.
func New(templates []Template, builtins *BuiltinRegistry) *Engine {
	ordered := make([]Template, len(templates))
	copy(ordered, templates)
	stableSortBuiltinsLast(ordered)
	return &Engine{templates: ordered, builtins: builtins}
}

func stableSortBuiltinsLast(templates []Template) {
	// Stable partition: condition-backed templates first, in original
	// order, followed by builtin-backed templates, in original order.
	var plain, builtinBacked []Template
	for _, t := range templates {
		if hasBuiltin(t) {
			builtinBacked = append(builtinBacked, t)
		} else {
			plain = append(plain, t)
		}
	}
	copy(templates, append(plain, builtinBacked...))
}

func hasBuiltin(t Template) bool {
	return t.Builtin != nil
}

// TemplateCount reports the size of the loaded transaction catalogue.
func (e *Engine) TemplateCount() int {
	return len(e.templates)
}

// EvaluateTransaction walks the catalogue and returns every match.
func (e *Engine) EvaluateTransaction(ctx *TransactionContext) []TemplateMatch {
	var matches []TemplateMatch
	value := ctx.ToValue()

	for _, template := range e.templates {
		if template.Builtin != nil {
			if m, ok := e.runBuiltin(template, ctx, value, matches); ok {
				matches = append(matches, m)
			}
			continue
		}

		if len(template.ConditionGroups) > 0 {
			for _, group := range template.ConditionGroups {
				if e.evaluateConditionGroup(group, value) {
					extra := e.extractExtraFields(group.Output.ExtraFields, value)
					severity := template.Severity
					if group.Severity != nil {
						severity = *group.Severity
					}
					priority := template.Priority
					if group.Priority != nil {
						priority = group.Priority
					}
					matches = append(matches, TemplateMatch{
						TemplateID:   template.ID,
						TemplateName: template.Name,
						OutputType:   group.Output.OutputType,
						Severity:     severity,
						Priority:     priority,
						Warning:      group.Output.Warning,
						Message:      e.interpolateMessage(group.Output.Message, value),
						Extra:        extra,
					})
				}
			}
		}

		if len(template.Conditions) > 0 {
			allMatch := true
			for _, c := range template.Conditions {
				if !e.evaluateCondition(c, value) {
					allMatch = false
					break
				}
			}
			if allMatch {
				extra := e.extractExtraFields(template.Output.ExtraFields, value)
				matches = append(matches, TemplateMatch{
					TemplateID:   template.ID,
					TemplateName: template.Name,
					OutputType:   template.Output.OutputType,
					Severity:     template.Severity,
					Priority:     template.Priority,
					Warning:      template.Output.Warning,
					Message:      e.interpolateMessage(template.Output.Message, value),
					Extra:        extra,
				})
			}
		}
	}

	return matches
}

func (e *Engine) runBuiltin(template Template, ctx *TransactionContext, value map[string]any, priorMatches []TemplateMatch) (TemplateMatch, bool) {
	if e.builtins == nil {
		return TemplateMatch{}, false
	}

	safeAddress := ""
	if ctx.SafeAddress != nil {
		safeAddress = *ctx.SafeAddress
	}

	details := make([]AnalysisDetailInput, 0, len(priorMatches))
	for _, m := range priorMatches {
		details = append(details, AnalysisDetailInput{Severity: string(m.Severity), Priority: m.Priority})
	}

	bctx := BuiltinContext{
		Transaction:     value,
		SafeAddress:     safeAddress,
		ChainID:         ctx.ChainID,
		SafeVersion:     ctx.SafeVersion,
		AnalysisDetails: details,
	}

	result := e.builtins.Execute(*template.Builtin, bctx)
	if result == nil || result.Output == nil {
		return TemplateMatch{}, false
	}

	out := result.Output
	severity := SeverityLow
	switch out.Severity {
	case "critical":
		severity = SeverityCritical
	case "high":
		severity = SeverityHigh
	case "medium":
		severity = SeverityMedium
	case "info":
		severity = SeverityInfo
	}

	warning := ""
	if out.Warning != nil {
		warning = *out.Warning
	}

	extra, _ := json.Marshal(out.Extra)

	return TemplateMatch{
		TemplateID:   template.ID,
		TemplateName: template.Name,
		OutputType:   out.OutputType,
		Severity:     severity,
		Priority:     out.Priority,
		Warning:      warning,
		Message:      out.Message,
		Extra:        extra,
	}, true
}

func (e *Engine) evaluateConditionGroup(group ConditionGroup, value map[string]any) bool {
	switch group.Operator {
	case LogicalOr:
		for _, c := range group.Conditions {
			if e.evaluateCondition(c, value) {
				return true
			}
		}
		return false
	default:
		for _, c := range group.Conditions {
			if !e.evaluateCondition(c, value) {
				return false
			}
		}
		return true
	}
}

func (e *Engine) evaluateCondition(c Condition, value map[string]any) bool {
	switch c.Type {
	case CondFieldEquals:
		return e.valuesEqual(getFieldValue(value, c.Field), c.Value)
	case CondFieldNotEquals:
		return !e.valuesEqual(getFieldValue(value, c.Field), c.Value)
	case CondFieldExists:
		return getFieldValue(value, c.Field) != nil
	case CondFieldNotExists:
		return getFieldValue(value, c.Field) == nil
	case CondFieldIn:
		fv := getFieldValue(value, c.Field)
		for _, v := range c.Values {
			if e.valuesEqual(fv, v) {
				return true
			}
		}
		return false
	case CondFieldNotIn:
		fv := getFieldValue(value, c.Field)
		for _, v := range c.Values {
			if e.valuesEqual(fv, v) {
				return false
			}
		}
		return true
	case CondNumericGreaterThan:
		n, ok := parseNumeric(getFieldValue(value, c.Field), c.Unit)
		return ok && n > c.Threshold
	case CondNumericLessThan:
		n, ok := parseNumeric(getFieldValue(value, c.Field), c.Unit)
		return ok && n < c.Threshold
	case CondNumericEquals:
		n, ok := parseNumeric(getFieldValue(value, c.Field), c.Unit)
		target, targetOk := asFloat64(c.Value)
		return ok && targetOk && n == target
	case CondMethodMatch:
		s, ok := getFieldValue(value, c.Field).(string)
		if !ok {
			return false
		}
		for _, m := range c.Methods {
			if m == s {
				return true
			}
		}
		return false
	case CondWhitelistLookup:
		fv := getFieldValue(value, c.Field)
		s, ok := fv.(string)
		if !ok {
			return c.Expect == ExpectMissing
		}
		_, found := c.Whitelist[strings.ToLower(s)]
		if c.Expect == ExpectMissing {
			return !found
		}
		return found
	case CondStringContains:
		s, ok := getFieldValue(value, c.Field).(string)
		return ok && strings.Contains(s, c.Substring)
	case CondStringNotEmpty:
		s, ok := getFieldValue(value, c.Field).(string)
		return ok && s != "" && s != "0x"
	case CondArrayNotEmpty:
		arr, ok := getFieldValue(value, c.Field).([]any)
		return ok && len(arr) > 0
	case CondArrayEmpty:
		arr, ok := getFieldValue(value, c.Field).([]any)
		if !ok {
			return true
		}
		return len(arr) == 0
	case CondArrayLength:
		arr, ok := getFieldValue(value, c.Field).([]any)
		if !ok {
			return false
		}
		return compareValues(len(arr), c.Length, c.Operator)
	case CondBoolEquals:
		b, ok := getFieldValue(value, c.Field).(bool)
		return ok && b == toBool(c.Value)
	case CondAddressEquals:
		if s, ok := getFieldValue(value, c.Field).(string); ok {
			return strings.EqualFold(s, c.Address)
		}
		return strings.EqualFold(c.Address, ZeroAddress)
	case CondAddressNotEquals:
		if s, ok := getFieldValue(value, c.Field).(string); ok {
			return !strings.EqualFold(s, c.Address)
		}
		return !strings.EqualFold(c.Address, ZeroAddress)
	case CondAnd:
		for _, sub := range c.Conditions {
			if !e.evaluateCondition(sub, value) {
				return false
			}
		}
		return true
	case CondOr:
		for _, sub := range c.Conditions {
			if e.evaluateCondition(sub, value) {
				return true
			}
		}
		return false
	case CondNot:
		if c.Condition == nil {
			return false
		}
		return !e.evaluateCondition(*c.Condition, value)
	default:
		return false
	}
}

func toBool(v any) bool {
	b, _ := v.(bool)
	return b
}

// getFieldValue walks a dot-path over the dynamic field tree, falling
// back to a snake_case key when the literal (usually camelCase) path
// segment misses, and supporting numeric segments as array indices.
func getFieldValue(context map[string]any, field string) any {
	parts := strings.Split(field, ".")
	var current any = context

	for _, part := range parts {
		switch v := current.(type) {
		case map[string]any:
			if val, ok := v[part]; ok {
				current = val
				continue
			}
			if val, ok := v[toSnakeCase(part)]; ok {
				current = val
				continue
			}
			return nil
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil
			}
			current = v[idx]
		default:
			return nil
		}
	}

	return current
}

func toSnakeCase(s string) string {
	var b strings.Builder
	for i, c := range s {
		if c >= 'A' && c <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(c - 'A' + 'a')
		} else {
			b.WriteRune(c)
		}
	}
	return b.String()
}

// asFloat64 normalizes any of the numeric kinds a YAML/JSON decoder
// can hand back (float64, int, int64, uint64) to float64, since a
// bare integer literal like "value: 1" in a template decodes to a Go
// int rather than float64.
func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint32:
		return float64(n), true
	default:
		return 0, false
	}
}

func (e *Engine) valuesEqual(a, b any) bool {
	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)
	if aIsStr && bIsStr {
		if strings.HasPrefix(as, "0x") && strings.HasPrefix(bs, "0x") {
			return strings.EqualFold(as, bs)
		}
		return as == bs
	}

	an, aIsNum := asFloat64(a)
	bn, bIsNum := asFloat64(b)
	if aIsNum && bIsNum {
		return an == bn
	}
	if aIsNum && bIsStr {
		return numericStringEquals(bs, an)
	}
	if aIsStr && bIsNum {
		return numericStringEquals(as, bn)
	}

	ab, aIsBool := a.(bool)
	bb, bIsBool := b.(bool)
	if aIsBool && bIsBool {
		return ab == bb
	}

	if a == nil && b == nil {
		return true
	}

	return a == b
}

func numericStringEquals(s string, n float64) bool {
	parsed, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return false
	}
	return parsed == n
}

func parseNumeric(value any, unit NumericUnit) (float64, bool) {
	var raw float64
	if n, ok := asFloat64(value); ok {
		raw = n
	} else if v, ok := value.(string); ok {
		if v == "" || v == "0x" {
			raw = 0
		} else if strings.HasPrefix(v, "0x") {
			n, err := strconv.ParseUint(strings.TrimPrefix(v, "0x"), 16, 64)
			if err != nil {
				return 0, false
			}
			raw = float64(n)
		} else {
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return 0, false
			}
			raw = parsed
		}
	} else {
		return 0, false
	}

	switch unit {
	case UnitGwei:
		return raw / 1e9, true
	case UnitEther:
		return raw / 1e18, true
	default:
		return raw, true
	}
}

func compareValues(a, b int, op CompareOperator) bool {
	switch op {
	case OpEq:
		return a == b
	case OpNe:
		return a != b
	case OpGt:
		return a > b
	case OpLt:
		return a < b
	case OpGte:
		return a >= b
	case OpLte:
		return a <= b
	default:
		return false
	}
}

func (e *Engine) extractExtraFields(fields []string, value map[string]any) json.RawMessage {
	extra := make(map[string]any, len(fields))
	for _, field := range fields {
		v := getFieldValue(value, field)
		if v == nil {
			continue
		}
		segments := strings.Split(field, ".")
		key := segments[len(segments)-1]
		extra[key] = v
	}
	out, _ := json.Marshal(extra)
	return out
}

// GetCallTypeInfo classifies a call by its operation byte and, for
// delegate calls, whether the target is on the canonical delegate-call
// whitelist. This consults internal/registry rather than keeping its
// own copy of the trusted-address set, unlike the reference
// implementation, which duplicates the same address table here and in
// its registry module.
func GetCallTypeInfo(resolver *registry.Resolver, operation uint8, to string) CallTypeInfo {
	info := CallTypeInfo{
		IsCall:          operation == 0,
		IsDelegateCall:  operation == 1,
		ContractAddress: to,
	}
	if !info.IsDelegateCall || resolver == nil {
		return info
	}
	if label, ok := resolver.Lookup(registry.DelegateCallWhitelist, to); ok {
		info.IsTrustedDelegate = true
		info.ContractName = &label
	}
	return info
}

func (e *Engine) interpolateMessage(message string, value map[string]any) string {
	return interpolationPattern.ReplaceAllStringFunc(message, func(match string) string {
		sub := interpolationPattern.FindStringSubmatch(match)
		if len(sub) < 2 {
			return match
		}
		v := getFieldValue(value, sub[1])
		switch vv := v.(type) {
		case string:
			return vv
		case float64:
			return strconv.FormatFloat(vv, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(vv)
		case nil:
			return "null"
		default:
			b, _ := json.Marshal(vv)
			return string(b)
		}
	})
}
