package decoder

import (
	"strings"

	"github.com/AdakHaddad/capdash/internal/model"
)

// Kind discriminates the three decode outcomes.
type Kind int

const (
	KindDecoded Kind = iota
	KindIgnored
	KindUnrecognized
)

// Result is the outcome of classifying one raw payload. For KindDecoded the
// patch fields carry only what the matched format actually supplied; the
// reducer keeps previous values for everything else.
type Result struct {
	Kind   Kind
	Source model.SourceTag

	Sensors *model.ReadingPatch
	Pumps   *model.PumpPatch
	Valves  *model.ValvePatch
	Mode    *string
	Status  *string

	// Raw is the original payload, kept for Unrecognized logging.
	Raw string
}

func decoded(tag model.SourceTag) Result { return Result{Kind: KindDecoded, Source: tag} }
func ignored() Result                    { return Result{Kind: KindIgnored} }
func unrecognized(raw string) Result     { return Result{Kind: KindUnrecognized, Raw: raw} }

// Topics tells the decoder which inbound topics exist. The telemetry, data,
// status and legacy topics all run the full matcher chain; the test topic is
// special-cased; anything else is ignored outright.
type Topics struct {
	Telemetry string
	Data      string
	Status    string
	Test      string
	Legacy    string
}

// Decoder classifies raw payloads against the fixed ordered matcher set.
type Decoder struct {
	topics   Topics
	matchers []matcher
}

// matcher pairs a cheap shape predicate with an extraction step. A payload
// that matches but fails extraction is Unrecognized for good: corrupt data
// must not cascade into a different, also-plausible format.
type matcher struct {
	match   func(s string) bool
	extract func(s string) (Result, error)
}

func New(topics Topics) *Decoder {
	d := &Decoder{topics: topics}
	d.matchers = []matcher{
		{matchJSON, extractJSON},
		{matchCompactKV, extractCompactKV},
		{matchSummary, extractSummary},
		{matchCoded, extractCoded},
		{matchShortcode, extractShortcode},
		{matchStatusKV, extractStatusKV},
	}
	return d
}

// Decode classifies one payload. It never panics past this boundary and
// never returns a half-populated patch from a failed extraction.
func (d *Decoder) Decode(topic, raw string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = unrecognized(raw)
		}
	}()

	switch topic {
	case d.topics.Telemetry, d.topics.Data, d.topics.Status, d.topics.Legacy:
		// known inbound topics fall through to the matcher chain
	case d.topics.Test:
		// Connectivity pings carry no sensor data. The tag-only result is
		// priority-gated by the reducer, so it only ever shows up while no
		// real format has populated the dashboard yet.
		return decoded(model.SourceTest)
	default:
		return ignored()
	}

	s := strings.TrimSpace(raw)
	if s == "" {
		return unrecognized(raw)
	}
	for _, m := range d.matchers {
		if !m.match(s) {
			continue
		}
		out, err := m.extract(s)
		if err != nil {
			return unrecognized(raw)
		}
		return out
	}
	return unrecognized(raw)
}

// mean returns the arithmetic mean of vs, false when vs is empty.
func mean(vs []float64) (float64, bool) {
	if len(vs) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs)), true
}
