package domain

import "fmt"

// Severity splits flags into the two tiers the router understands. A
// Critical-Veto flag blocks finalization unconditionally, including manual
// approval. An Advisory flag blocks auto-acceptance only.
type Severity string

const (
	SeverityCriticalVeto Severity = "CRITICAL_VETO"
	SeverityAdvisory     Severity = "ADVISORY"
)

// FlagCode is the closed set of flag kinds. New kinds are added here, not
// invented ad hoc at call sites, so the review UI and audit trail can rely
// on the vocabulary.
type FlagCode string

const (
	FlagUnitConflict           FlagCode = "UNIT_CONFLICT"
	FlagSizeMismatch           FlagCode = "SIZE_MISMATCH"
	FlagAngleMismatch          FlagCode = "ANGLE_MISMATCH"
	FlagMaterialMismatch       FlagCode = "MATERIAL_MISMATCH"
	FlagClassificationMismatch FlagCode = "CLASSIFICATION_MISMATCH"
	FlagStalePrice             FlagCode = "STALE_PRICE"
	FlagCurrencyMismatch       FlagCode = "CURRENCY_MISMATCH"
	FlagVATMismatch            FlagCode = "VAT_MISMATCH"
	FlagLowConfidence          FlagCode = "LOW_CONFIDENCE"
	FlagTimeout                FlagCode = "TIMEOUT"
)

// Flag is one risk finding on an item/candidate pair. Message is the
// human-readable reason persisted to the audit trail.
type Flag struct {
	Code     FlagCode `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

func Critical(code FlagCode, format string, args ...any) Flag {
	return Flag{Code: code, Severity: SeverityCriticalVeto, Message: fmt.Sprintf(format, args...)}
}

func Advisory(code FlagCode, format string, args ...any) Flag {
	return Flag{Code: code, Severity: SeverityAdvisory, Message: fmt.Sprintf(format, args...)}
}

type Flags []Flag

func (f Flags) HasCriticalVeto() bool {
	for _, flag := range f {
		if flag.Severity == SeverityCriticalVeto {
			return true
		}
	}
	return false
}

func (f Flags) Codes() []string {
	if len(f) == 0 {
		return nil
	}
	codes := make([]string, 0, len(f))
	for _, flag := range f {
		codes = append(codes, string(flag.Code))
	}
	return codes
}
