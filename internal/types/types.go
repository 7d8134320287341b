package types

import "time"

// Lang is a normalized language code ("ja", "en", "zh-CN", "ko").
// Arbitrary BCP 47 input is normalized by the font registry.
type Lang string

const (
	LangJapanese Lang = "ja"
	LangEnglish  Lang = "en"
	LangChinese  Lang = "zh-CN"
	LangKorean   Lang = "ko"
)

// PageState tracks a page through the pipeline state machine.
// Reconstructed and Skipped are terminal.
type PageState string

const (
	PageExtracted           PageState = "extracted"
	PageAwaitingTranslation PageState = "awaiting_translation"
	PageReconstructed       PageState = "reconstructed"
	PageSkipped             PageState = "skipped"
)

// PageWarning records a non-fatal fault attributed to a page
type PageWarning struct {
	Page    int       `json:"page"`
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// SkippedPage records a page left untranslated and why
type SkippedPage struct {
	Page   int    `json:"page"`
	Reason string `json:"reason"`
}

// DocumentResult is the user-visible outcome of a translation run
type DocumentResult struct {
	RunID               string        `json:"run_id"`
	InputPath           string        `json:"input_path"`
	OutputPath          string        `json:"output_path"`
	PageCount           int           `json:"page_count"`
	PagesReconstructed  int           `json:"pages_reconstructed"`
	PagesSkipped        []SkippedPage `json:"pages_skipped,omitempty"`
	UnitsTranslated     int           `json:"units_translated"`
	UnitsTruncated      int           `json:"units_truncated"`
	FormulasRestored    int           `json:"formulas_restored"`
	FormulasLeftInPlace int           `json:"formulas_left_in_place"`
	Warnings            []PageWarning `json:"warnings,omitempty"`
	StartedAt           time.Time     `json:"started_at"`
	FinishedAt          time.Time     `json:"finished_at"`
}

// AddWarning appends a page-level warning to the result
func (r *DocumentResult) AddWarning(page int, code ErrorCode, message string) {
	r.Warnings = append(r.Warnings, PageWarning{Page: page, Code: code, Message: message})
}
