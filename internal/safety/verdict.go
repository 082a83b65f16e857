package safety

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"shortly/internal/entities"
)

// BlockConfidence is the confidence above which a malicious verdict rejects
// creation for non-admin callers
const BlockConfidence = 0.7

// ErrMalformedResponse is returned when a classifier response cannot be read
var ErrMalformedResponse = errors.New("malformed classifier response")

// Classification is the content classifier's answer after defensive parsing
type Classification struct {
	IsSafe     bool
	Flagged    bool
	Reason     *string
	Category   entities.FlagCategory
	Confidence float64
}

// Verdict is the fused result of both classification stages
type Verdict struct {
	Flagged    bool
	Category   *entities.FlagCategory
	Reason     *string
	Threat     *entities.ThreatType
	Confidence float64
}

// ShouldBlock reports whether creation must be rejected outright
func (v *Verdict) ShouldBlock(isAdmin bool) bool {
	return !isAdmin &&
		v.Category != nil && *v.Category == entities.CategoryMalicious &&
		v.Confidence > BlockConfidence
}

// Moderation converts the verdict into the fields stored on a URL record
func (v *Verdict) Moderation() entities.Moderation {
	confidence := v.Confidence
	return entities.Moderation{
		Flagged:        v.Flagged || v.Threat != nil,
		Threat:         v.Threat,
		FlagCategory:   v.Category,
		FlagReason:     v.Reason,
		FlagConfidence: &confidence,
	}
}

// ParseClassification reads a classifier answer without trusting its shape.
// Confidence is clamped into [0,1], unknown categories become "unknown", and
// a missing flagged field is derived from isSafe.
func ParseClassification(raw []byte) (*Classification, error) {
	raw = stripCodeFence(raw)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	isSafe, hasSafe := readBool(fields["isSafe"])
	flagged, hasFlagged := readBool(fields["flagged"])
	if !hasSafe && !hasFlagged {
		return nil, fmt.Errorf("%w: neither isSafe nor flagged present", ErrMalformedResponse)
	}
	if !hasFlagged {
		flagged = !isSafe
	}
	if !hasSafe {
		isSafe = !flagged
	}

	c := &Classification{
		IsSafe:     isSafe,
		Flagged:    flagged,
		Category:   entities.CategoryUnknown,
		Confidence: clamp(readNumber(fields["confidence"])),
	}

	var category string
	if json.Unmarshal(fields["category"], &category) == nil {
		c.Category = entities.ParseFlagCategory(strings.ToLower(strings.TrimSpace(category)))
	}

	var reason string
	if json.Unmarshal(fields["reason"], &reason) == nil && strings.TrimSpace(reason) != "" {
		reason = strings.TrimSpace(reason)
		c.Reason = &reason
	}

	return c, nil
}

func readBool(raw json.RawMessage) (bool, bool) {
	if raw == nil {
		return false, false
	}
	var b bool
	if json.Unmarshal(raw, &b) == nil {
		return b, true
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return parsed, true
		}
	}
	return false, false
}

func readNumber(raw json.RawMessage) float64 {
	if raw == nil {
		return 0
	}
	var f float64
	if json.Unmarshal(raw, &f) == nil {
		return f
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return parsed
		}
	}
	return 0
}

func clamp(f float64) float64 {
	switch {
	case math.IsNaN(f), f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// stripCodeFence removes a surrounding ```json fence that chat models like to add
func stripCodeFence(raw []byte) []byte {
	raw = bytes.TrimSpace(raw)
	if !bytes.HasPrefix(raw, []byte("```")) {
		return raw
	}
	raw = bytes.TrimPrefix(raw, []byte("```"))
	if i := bytes.IndexByte(raw, '\n'); i >= 0 {
		raw = raw[i+1:]
	}
	raw = bytes.TrimSuffix(bytes.TrimSpace(raw), []byte("```"))
	return bytes.TrimSpace(raw)
}
