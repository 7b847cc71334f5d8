// Package engine evaluates declarative rule templates against Safe
// transaction contexts. Templates are data, not code: a catalogue of
// YAML documents loaded at process start and walked in order for every
// transaction the worker observes.
package engine

import "encoding/json"

// TemplateType distinguishes the two catalogues a template can belong to.
type TemplateType string

const (
	TemplateTypeTransactionAnalysis TemplateType = "transaction-analysis"
	TemplateTypeSafeAssessment      TemplateType = "safe-assessment"
)

// Severity is the rule-engine's five-level scale. Unlike CheckSeverity
// (used by the assessment engine) it has no "pass" rung — a transaction
// template only exists to flag something.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Merge returns the greater of two severities.
func (s Severity) Merge(other Severity) Severity {
	if severityRank[other] > severityRank[s] {
		return other
	}
	return s
}

// Builtin names a network-free or collaborator-backed check that a
// template defers to instead of evaluating conditions directly.
type Builtin string

const (
	BuiltinVerifyTransactionHash   Builtin = "verify-transaction-hash"
	BuiltinCalculateSecurityScore  Builtin = "calculate-security-score"
	BuiltinSafeAPIInfo             Builtin = "safe-api-info"
	BuiltinSafeAPICreation         Builtin = "safe-api-creation"
	BuiltinBlockchainInfoOwners    Builtin = "blockchain-info-owners"
	BuiltinBlockchainInfoModules   Builtin = "blockchain-info-modules"
	BuiltinBlockchainInfoGuard     Builtin = "blockchain-info-guard"
	BuiltinBlockchainInfoFallback  Builtin = "blockchain-info-fallback-handler"
	BuiltinBlockchainInfoThreshold Builtin = "blockchain-info-threshold"
	BuiltinSanctionsSafeAddress    Builtin = "sanctions-safe-address"
	BuiltinSanctionsOwners         Builtin = "sanctions-owners"
	BuiltinSanctionsFactory        Builtin = "sanctions-factory"
	BuiltinSanctionsMastercopy     Builtin = "sanctions-mastercopy"
	BuiltinSanctionsModules        Builtin = "sanctions-modules"
)

// ConditionType discriminates the Condition tagged union.
type ConditionType string

const (
	CondFieldEquals         ConditionType = "field-equals"
	CondFieldNotEquals      ConditionType = "field-not-equals"
	CondFieldExists         ConditionType = "field-exists"
	CondFieldNotExists      ConditionType = "field-not-exists"
	CondFieldIn             ConditionType = "field-in"
	CondFieldNotIn          ConditionType = "field-not-in"
	CondNumericGreaterThan  ConditionType = "numeric-greater-than"
	CondNumericLessThan     ConditionType = "numeric-less-than"
	CondNumericEquals       ConditionType = "numeric-equals"
	CondMethodMatch         ConditionType = "method-match"
	CondWhitelistLookup     ConditionType = "whitelist-lookup"
	CondStringContains      ConditionType = "string-contains"
	CondStringNotEmpty      ConditionType = "string-not-empty"
	CondArrayNotEmpty       ConditionType = "array-not-empty"
	CondArrayEmpty          ConditionType = "array-empty"
	CondArrayLength         ConditionType = "array-length"
	CondBoolEquals          ConditionType = "bool-equals"
	CondAddressEquals       ConditionType = "address-equals"
	CondAddressNotEquals    ConditionType = "address-not-equals"
	CondAnd                 ConditionType = "and"
	CondOr                  ConditionType = "or"
	CondNot                 ConditionType = "not"
)

// NumericUnit scales a numeric field before comparison.
type NumericUnit string

const (
	UnitWei   NumericUnit = "wei"
	UnitGwei  NumericUnit = "gwei"
	UnitEther NumericUnit = "ether"
)

// RegistryExpectation is the desired outcome of a whitelist lookup.
type RegistryExpectation string

const (
	ExpectPresent RegistryExpectation = "present"
	ExpectMissing RegistryExpectation = "missing"
)

// CompareOperator is used by array-length comparisons.
type CompareOperator string

const (
	OpEq  CompareOperator = "eq"
	OpNe  CompareOperator = "ne"
	OpGt  CompareOperator = "gt"
	OpLt  CompareOperator = "lt"
	OpGte CompareOperator = "gte"
	OpLte CompareOperator = "lte"
)

// Condition is a flattened tagged union: Type selects which of the
// remaining fields are meaningful. This trades Rust's exhaustive enum
// matching for a single struct shape that goccy/go-yaml can decode
// directly — the idiomatic Go substitute for a closed sum type used
// throughout rule-engine-shaped Go services.
type Condition struct {
	Type ConditionType `yaml:"type" json:"type"`

	Field string `yaml:"field,omitempty" json:"field,omitempty"`
	Value any    `yaml:"value,omitempty" json:"value,omitempty"`
	Values []any `yaml:"values,omitempty" json:"values,omitempty"`

	Threshold float64     `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	Unit      NumericUnit `yaml:"unit,omitempty" json:"unit,omitempty"`

	Methods []string `yaml:"methods,omitempty" json:"methods,omitempty"`

	Whitelist map[string]string   `yaml:"whitelist,omitempty" json:"whitelist,omitempty"`
	Expect    RegistryExpectation `yaml:"expect,omitempty" json:"expect,omitempty"`

	Substring string `yaml:"substring,omitempty" json:"substring,omitempty"`

	Operator CompareOperator `yaml:"operator,omitempty" json:"operator,omitempty"`
	Length   int             `yaml:"length,omitempty" json:"length,omitempty"`

	Address string `yaml:"address,omitempty" json:"address,omitempty"`

	Conditions []Condition `yaml:"conditions,omitempty" json:"conditions,omitempty"`
	Condition  *Condition  `yaml:"condition,omitempty" json:"condition,omitempty"`
}

// TemplateOutput is the warning/message/type payload a matched
// condition (or condition group) produces.
type TemplateOutput struct {
	Warning     string   `yaml:"warning" json:"warning"`
	Message     string   `yaml:"message" json:"message"`
	OutputType  string   `yaml:"type" json:"type"`
	ExtraFields []string `yaml:"extra-fields,omitempty" json:"extraFields,omitempty"`
}

// LogicalOperator combines the conditions inside a ConditionGroup.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "and"
	LogicalOr  LogicalOperator = "or"
)

// ConditionGroup lets one template emit several distinct outputs
// depending on which group of conditions matched.
type ConditionGroup struct {
	ID         string          `yaml:"id" json:"id"`
	Operator   LogicalOperator `yaml:"operator" json:"operator"`
	Conditions []Condition     `yaml:"conditions" json:"conditions"`
	Output     TemplateOutput  `yaml:"output" json:"output"`
	Severity   *Severity       `yaml:"severity,omitempty" json:"severity,omitempty"`
	Priority   *string         `yaml:"priority,omitempty" json:"priority,omitempty"`
}

// Template is one entry in the transaction-analysis catalogue.
type Template struct {
	ID             string           `yaml:"id" json:"id"`
	Name           string           `yaml:"name" json:"name"`
	TemplateType   TemplateType     `yaml:"type" json:"type"`
	Severity       Severity         `yaml:"severity" json:"severity"`
	Priority       *string          `yaml:"priority,omitempty" json:"priority,omitempty"`
	Conditions     []Condition      `yaml:"conditions,omitempty" json:"conditions,omitempty"`
	ConditionGroups []ConditionGroup `yaml:"condition-groups,omitempty" json:"conditionGroups,omitempty"`
	Output         TemplateOutput   `yaml:"output" json:"output"`
	Builtin        *Builtin         `yaml:"builtin,omitempty" json:"builtin,omitempty"`
}

// TemplateMatch is the runtime result of one template firing.
type TemplateMatch struct {
	TemplateID   string          `json:"templateId"`
	TemplateName string          `json:"templateName"`
	OutputType   string          `json:"outputType"`
	Severity     Severity        `json:"severity"`
	Priority     *string         `json:"priority,omitempty"`
	Warning      string          `json:"warning"`
	Message      string          `json:"message"`
	Extra        json.RawMessage `json:"extra,omitempty"`
}

const ZeroAddress = "0x0000000000000000000000000000000000000000"
