package model

// SourceTag identifies which wire format last populated the dashboard state.
// Higher-fidelity formats must never be visually downgraded by a low-fidelity
// heartbeat, so each tag carries a fixed priority.
type SourceTag string

const (
	SourceNone       SourceTag = ""
	SourceNestedJSON SourceTag = "stm32-json"
	SourceLegacyJSON SourceTag = "legacy-json"
	SourceSimpleJSON SourceTag = "simple-json"
	SourceSummary    SourceTag = "summary"
	SourceCompactKV  SourceTag = "compact-kv"
	SourceCoded      SourceTag = "coded"
	SourceShortcode  SourceTag = "shortcode"
	SourceStatus     SourceTag = "status"
	SourceTest       SourceTag = "test"
)

var sourcePriority = map[SourceTag]int{
	SourceNestedJSON: 9,
	SourceLegacyJSON: 8,
	SourceSimpleJSON: 7,
	SourceSummary:    6,
	SourceCompactKV:  5,
	SourceCoded:      4,
	SourceShortcode:  3,
	SourceStatus:     2,
	SourceTest:       1,
	SourceNone:       0,
}

// Priority returns the tag's rank; unknown tags rank below everything real.
func (t SourceTag) Priority() int { return sourcePriority[t] }
