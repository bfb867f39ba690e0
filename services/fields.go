package services

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
	"gorm.io/datatypes"
)

// Upstream engines disagree on field names. Each table lists the candidate
// keys for one canonical field, most preferred first.
var (
	masterSlipKeyAliases   = []string{"id", "master_slip_id"}
	syncSlipIDAliases      = []string{"id", "slip_id"}
	slipIDAliases          = []string{"slip_id", "id"}
	estimatedReturnAliases = []string{"estimated_return", "estimated_payout", "possible_return"}
	riskCategoryAliases    = []string{"risk_category", "risk_level"}
	createdAtAliases       = []string{"created_at", "generated_at"}
	homeTeamAliases        = []string{"home_team", "homeTeam"}
	awayTeamAliases        = []string{"away_team", "awayTeam"}
	embeddedMatchIDAliases = []string{"match_id", "id"}
)

const isoLayout = "2006-01-02T15:04:05.000Z"

// firstPresent returns the first alias whose value is set and not null.
func firstPresent(doc map[string]any, aliases []string) (any, bool) {
	for _, k := range aliases {
		if v, ok := doc[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// firstText returns the first alias that renders as a non-empty string.
func firstText(doc map[string]any, aliases []string) string {
	for _, k := range aliases {
		if s := toString(doc[k]); s != "" {
			return s
		}
	}
	return ""
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		if f, err := t.Float64(); err == nil {
			return formatNumber(f)
		}
		return t.String()
	case float64:
		return formatNumber(t)
	case float32:
		return formatNumber(float64(t))
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return isoTime(t)
	default:
		return fmt.Sprint(t)
	}
}

// formatNumber drops the fraction of integral values so 7.0 keys the same document as 7.
func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// toFloatOK converts numeric values and numeric strings. Non-finite values
// (NaN, Inf) are rejected since they cannot be encoded as JSON.
func toFloatOK(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case int32:
		f = float64(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// toFloat is toFloatOK with 0 for anything absent or unparseable.
func toFloat(v any) float64 {
	f, ok := toFloatOK(v)
	if !ok {
		return 0
	}
	return f
}

// toInt truncates any numeric value to an integer.
func toInt(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int64:
		return t, true
	case int32:
		return int64(t), true
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, true
		}
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
			return i, true
		}
	}
	f, ok := toFloatOK(v)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

// toExactInt accepts only values that are whole numbers.
func toExactInt(v any) (int64, bool) {
	f, ok := toFloatOK(v)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return toInt(v)
}

func isoTime(t time.Time) string {
	return t.UTC().Format(isoLayout)
}

// timeText renders native timestamps as ISO-8601 and passes anything else
// through in its string form.
func timeText(v any) string {
	switch t := v.(type) {
	case time.Time:
		return isoTime(t)
	case *time.Time:
		if t == nil {
			return ""
		}
		return isoTime(*t)
	default:
		return toString(v)
	}
}

func lower(s string) string {
	return cases.Lower(language.Und).String(s)
}

// teamName normalises a team name to NFC so visually equal names compare equal.
func teamName(v any) string {
	return norm.NFC.String(toString(v))
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case datatypes.JSONMap:
		return map[string]any(t), true
	default:
		return nil, false
	}
}

func asSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

// without copies doc minus the given keys.
func without(doc map[string]any, keys ...string) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}
