package services

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Synthetic document ids live in reserved bands above every real document id.
// A band holds one id per owner, so owner ids must stay below SyntheticBandWidth.
//
// Registered contexts take the first bands after SyntheticReservedBase. Every
// unregistered symbolic key gets its own band inside the generic region, picked
// by hashing the key into genericSlotBits bits.
const (
	SyntheticBandWidth    int64 = 100_000_000
	SyntheticReservedBase int64 = 9_000_000_000
	// MaxRealDocumentID is the largest id a real document may carry.
	MaxRealDocumentID = SyntheticReservedBase - 1

	maxRegisteredBands       = 1024
	GenericRegionBase  int64 = SyntheticReservedBase + maxRegisteredBands*SyntheticBandWidth
	genericSlotBits          = 36
)

// SyntheticContext names a document-like target that has no row of its own.
type SyntheticContext string

const (
	ContextGeneric                  SyntheticContext = "generic"
	ContextAccessRequestForm        SyntheticContext = "access_request_form"
	ContextICTPolicyAcknowledgement SyntheticContext = "ict_policy_acknowledgement"
	ContextUserProfile              SyntheticContext = "user_profile"
)

var syntheticBases = map[SyntheticContext]int64{
	ContextAccessRequestForm:        SyntheticReservedBase,
	ContextICTPolicyAcknowledgement: SyntheticReservedBase + 1*SyntheticBandWidth,
	ContextUserProfile:              SyntheticReservedBase + 2*SyntheticBandWidth,
}

var realIDPattern = regexp.MustCompile(`^[0-9]+$`)

// DocumentTarget is either Real(id) or Synthetic(context, owner). It becomes a
// flat integer only through ResolveID. Generic targets also carry their key.
type DocumentTarget struct {
	Kind    string           `json:"kind"`
	RealID  int64            `json:"real_id,omitempty"`
	Context SyntheticContext `json:"context,omitempty"`
	OwnerID int              `json:"owner_id,omitempty"`
	Key     string           `json:"key,omitempty"`
	Slot    int64            `json:"slot,omitempty"`
}

const (
	TargetReal      = "real"
	TargetSynthetic = "synthetic"
)

func RealTarget(id int64) DocumentTarget {
	return DocumentTarget{Kind: TargetReal, RealID: id}
}

func SyntheticTarget(ctx SyntheticContext, ownerID int) DocumentTarget {
	return DocumentTarget{Kind: TargetSynthetic, Context: ctx, OwnerID: ownerID}
}

// GenericTarget is an unregistered symbolic key owned by ownerID. Keys compare
// case-insensitively.
func GenericTarget(key string, ownerID int) DocumentTarget {
	key = strings.ToLower(strings.TrimSpace(key))
	return DocumentTarget{Kind: TargetSynthetic, Context: ContextGeneric, OwnerID: ownerID, Key: key, Slot: genericSlot(key)}
}

// ParseTarget reads a raw identifier: unsigned digits are a real document id,
// anything else is a symbolic key owned by actingUserID.
func ParseTarget(raw string, actingUserID int) (DocumentTarget, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return DocumentTarget{}, ValidationError("document_id is required")
	}
	if trimmed[0] == '+' || trimmed[0] == '-' {
		return DocumentTarget{}, ValidationError("document_id %q is not a valid identifier", trimmed)
	}
	if realIDPattern.MatchString(trimmed) {
		id, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return DocumentTarget{}, ValidationError("document_id %q is out of range", trimmed)
		}
		return RealTarget(id), nil
	}

	key := SyntheticContext(strings.ToLower(trimmed))
	if _, ok := syntheticBases[key]; ok {
		return SyntheticTarget(key, actingUserID), nil
	}
	return GenericTarget(trimmed, actingUserID), nil
}

// ResolveID maps the target to the integer stored in the ledger.
func (t DocumentTarget) ResolveID() (int64, error) {
	switch t.Kind {
	case TargetReal:
		if t.RealID <= 0 {
			return 0, ValidationError("document_id must be a positive integer")
		}
		if t.RealID > MaxRealDocumentID {
			return 0, ValidationError("document_id %d is inside the reserved range", t.RealID)
		}
		return t.RealID, nil
	case TargetSynthetic:
		if t.OwnerID <= 0 || int64(t.OwnerID) >= SyntheticBandWidth {
			return 0, ValidationError("user id %d cannot own a synthetic document", t.OwnerID)
		}
		if t.Context == ContextGeneric {
			if t.Key == "" {
				return 0, ValidationError("a generic document needs a key")
			}
			return GenericRegionBase + genericSlot(t.Key)*SyntheticBandWidth + int64(t.OwnerID), nil
		}
		base, ok := syntheticBases[t.Context]
		if !ok {
			return 0, ValidationError("unknown document context %q", t.Context)
		}
		return base + int64(t.OwnerID), nil
	}
	return 0, ValidationError("document target is empty")
}

// ResolveTargetID is ParseTarget followed by ResolveID.
func ResolveTargetID(raw string, actingUserID int) (int64, error) {
	target, err := ParseTarget(raw, actingUserID)
	if err != nil {
		return 0, err
	}
	return target.ResolveID()
}

// DescribeTarget is the inverse of ResolveID for ids produced by it. Generic
// targets come back with their slot; the key itself is not recoverable.
func DescribeTarget(id int64) DocumentTarget {
	if id <= MaxRealDocumentID {
		return RealTarget(id)
	}
	if id >= GenericRegionBase {
		offset := id - GenericRegionBase
		owner := offset % SyntheticBandWidth
		if owner == 0 {
			return DocumentTarget{Kind: TargetSynthetic, Context: "unknown"}
		}
		return DocumentTarget{
			Kind:    TargetSynthetic,
			Context: ContextGeneric,
			OwnerID: int(owner),
			Slot:    offset / SyntheticBandWidth,
		}
	}
	for ctx, base := range syntheticBases {
		if id > base && id < base+SyntheticBandWidth {
			return SyntheticTarget(ctx, int(id-base))
		}
	}
	return DocumentTarget{Kind: TargetSynthetic, Context: "unknown"}
}

func genericSlot(key string) int64 {
	return int64(xxhash.Sum64String(key) >> (64 - genericSlotBits))
}
