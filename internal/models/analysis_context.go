// -----------------------------------------------------------------------
// Analysis Context - ordered stage-key -> value store persisted with a job
// -----------------------------------------------------------------------

package models

import (
	"encoding/json"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Well-known context keys
const (
	ContextKeyToday           = "today"
	ContextKeyCurrentClaim    = "_current_claim"
	ContextKeyCurrentClaimNo  = "_current_claim_no"
	ContextKeyPatentInfo      = "patent_info"
	ContextKeyClaims          = "claims"
	ContextKeyApplicants      = "applicants"
	ContextKeyClassifications = "classifications"
	ContextKeyCompanyProfile  = "company_profile"
	ContextKeyProductProfile  = "product_profile"
	ContextKeyProductFacts    = "product_facts"
	ContextKeyTargetProduct   = "target_product"
	ContextKeyClaimDecisions  = "claim_decisions"
	ContextKeyOpenItems       = "open_items"
)

// AnalysisContext is the ordered, heterogeneous bag of values a job accumulates.
// Insertion order is kept through JSON round trips so persisted contexts read
// in stage order. It is not safe for concurrent use; a job's context is owned
// by the single orchestrator run driving it.
type AnalysisContext struct {
	entries *orderedmap.OrderedMap[string, any]
}

// NewAnalysisContext returns an empty context
func NewAnalysisContext() *AnalysisContext {
	return &AnalysisContext{entries: orderedmap.New[string, any]()}
}

func (c *AnalysisContext) ensure() {
	if c.entries == nil {
		c.entries = orderedmap.New[string, any]()
	}
}

// Set stores a value. Re-setting an existing key keeps its original position.
func (c *AnalysisContext) Set(key string, value any) {
	c.ensure()
	c.entries.Set(key, value)
}

func (c *AnalysisContext) Get(key string) (any, bool) {
	if c == nil || c.entries == nil {
		return nil, false
	}
	return c.entries.Get(key)
}

func (c *AnalysisContext) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

func (c *AnalysisContext) Delete(key string) {
	if c == nil || c.entries == nil {
		return
	}
	c.entries.Delete(key)
}

func (c *AnalysisContext) Len() int {
	if c == nil || c.entries == nil {
		return 0
	}
	return c.entries.Len()
}

// Keys returns the keys in insertion order
func (c *AnalysisContext) Keys() []string {
	if c == nil || c.entries == nil {
		return nil
	}
	keys := make([]string, 0, c.entries.Len())
	for pair := c.entries.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Clone returns a shallow copy; values are shared
func (c *AnalysisContext) Clone() *AnalysisContext {
	clone := NewAnalysisContext()
	if c == nil || c.entries == nil {
		return clone
	}
	for pair := c.entries.Oldest(); pair != nil; pair = pair.Next() {
		clone.entries.Set(pair.Key, pair.Value)
	}
	return clone
}

// Merge copies every entry of other into c, in other's order
func (c *AnalysisContext) Merge(other *AnalysisContext) {
	if other == nil || other.entries == nil {
		return
	}
	c.ensure()
	for pair := other.entries.Oldest(); pair != nil; pair = pair.Next() {
		c.entries.Set(pair.Key, pair.Value)
	}
}

func (c *AnalysisContext) MarshalJSON() ([]byte, error) {
	if c == nil || c.entries == nil {
		return []byte("{}"), nil
	}
	return c.entries.MarshalJSON()
}

func (c *AnalysisContext) UnmarshalJSON(data []byte) error {
	c.entries = orderedmap.New[string, any]()
	if string(data) == "null" {
		return nil
	}
	return c.entries.UnmarshalJSON(data)
}

// ---- typed accessors ----

// Map returns the value at key as a JSON object, or an empty map
func (c *AnalysisContext) Map(key string) map[string]any {
	if v, ok := c.Get(key); ok {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return map[string]any{}
}

// List returns the value at key as a JSON array, or an empty list
func (c *AnalysisContext) List(key string) []any {
	if v, ok := c.Get(key); ok {
		if l := AsList(v); l != nil {
			return l
		}
	}
	return []any{}
}

// Value returns the raw value at key or fallback when absent
func (c *AnalysisContext) Value(key string, fallback any) any {
	if v, ok := c.Get(key); ok {
		return v
	}
	return fallback
}

// Claims decodes the seeded claims list
func (c *AnalysisContext) Claims() []Claim {
	v, ok := c.Get(ContextKeyClaims)
	if !ok {
		return nil
	}
	switch typed := v.(type) {
	case []Claim:
		return append([]Claim(nil), typed...)
	default:
		raw := AsList(v)
		claims := make([]Claim, 0, len(raw))
		for _, item := range raw {
			if claim, ok := ClaimFromValue(item); ok {
				claims = append(claims, claim)
			}
		}
		return claims
	}
}

// SetCurrentClaim points the per-claim fan-out at claim
func (c *AnalysisContext) SetCurrentClaim(claim Claim) {
	c.Set(ContextKeyCurrentClaim, claim.AsMap())
	c.Set(ContextKeyCurrentClaimNo, claim.ClaimNo)
}

// ClearCurrentClaim removes the fan-out pointer
func (c *AnalysisContext) ClearCurrentClaim() {
	c.Delete(ContextKeyCurrentClaim)
	c.Delete(ContextKeyCurrentClaimNo)
}

// CurrentClaim returns the claim selected by the fan-out pointer
func (c *AnalysisContext) CurrentClaim() (Claim, bool) {
	v, ok := c.Get(ContextKeyCurrentClaim)
	if !ok {
		return Claim{}, false
	}
	return ClaimFromValue(v)
}

// CurrentClaimNo returns the claim number of the fan-out pointer, or 0
func (c *AnalysisContext) CurrentClaimNo() int {
	if v, ok := c.Get(ContextKeyCurrentClaimNo); ok {
		if n, ok := AsInt(v); ok {
			return n
		}
	}
	if claim, ok := c.CurrentClaim(); ok {
		return claim.ClaimNo
	}
	return 0
}

// StageOutput returns the structured output stored under a qualified stage key
func (c *AnalysisContext) StageOutput(qualifiedKey string) map[string]any {
	return c.Map(qualifiedKey)
}

// PatentID returns patent_info.patent_id or ""
func (c *AnalysisContext) PatentID() string {
	return AsString(c.Map(ContextKeyPatentInfo)["patent_id"])
}

// ---- value helpers shared by the executor and orchestrator ----

// AsInt converts JSON-decoded numerics to int
func AsInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// AsString returns string values and "" for anything else
func AsString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// AsList normalizes list-shaped values to []any; nil when v is not a list
func AsList(v any) []any {
	switch l := v.(type) {
	case []any:
		return l
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out
	case []map[string]any:
		out := make([]any, len(l))
		for i, m := range l {
			out[i] = m
		}
		return out
	case []Claim:
		out := make([]any, len(l))
		for i, claim := range l {
			out[i] = claim.AsMap()
		}
		return out
	default:
		return nil
	}
}

// AsMap returns map values and nil for anything else
func AsMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return nil
}
