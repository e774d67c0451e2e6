package domain

// ViewName identifies which view a turn rendered.
type ViewName string

const (
	ViewWelcome    ViewName = "welcome"
	ViewCandidates ViewName = "candidates"
	ViewRoute      ViewName = "route"
	ViewError      ViewName = "error"
)

// Supported languages. The first one is the default.
const (
	LanguageZhCN = "zh-CN"
	LanguageEn   = "en"
	LanguageJa   = "ja"
)

// Error codes placed in StateError.
const (
	ErrorCodeBackend     = "backend_error"
	ErrorCodeNoResults   = "no_results"
	ErrorCodeInvalidPick = "invalid_selection"
)
