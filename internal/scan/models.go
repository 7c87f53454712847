// Package scan produces advisory fraud and tamper signals for submitted
// documents. Results are informational only; the review decision never waits
// on or reads them.
package scan

import (
	"strings"
	"time"

	id "docverify/pkg/domain"
	dErrors "docverify/pkg/domain-errors"
)

type Mode string

const (
	ModeMock Mode = "mock"
	ModeLive Mode = "live"
)

// ParseMode defaults to mock when raw is empty.
func ParseMode(raw string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case "":
		return ModeMock, nil
	case ModeMock, ModeLive:
		return m, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "mode must be mock or live")
}

type Verdict string

const (
	VerdictValid   Verdict = "valid"
	VerdictInvalid Verdict = "invalid"
)

// Signals are forensic hints; a live scanner may leave them empty.
type Signals struct {
	ECMNoise      *float64 `json:"ecmNoise,omitempty"`
	FaceSwapScore *float64 `json:"faceSwapScore,omitempty"`
	ExifMissing   *bool    `json:"exifMissing,omitempty"`
}

type Result struct {
	RequestID  id.RequestID `json:"requestId"`
	Verdict    Verdict      `json:"verdict"`
	Confidence int          `json:"confidence"`
	Tampered   bool         `json:"isTampered"`
	Mode       Mode         `json:"mode"`
	Signals    Signals      `json:"signals"`
	ScannedAt  time.Time    `json:"scannedAt"`
}
