package constants

// ConfidenceThreshold is the minimum consensus confidence for a passing verdict.
const ConfidenceThreshold = 0.7

// NeutralConfidence is reported when no judge could be reached.
const NeutralConfidence = 0.5

// UnknownLanguage is stored when language detection fails.
const UnknownLanguage = "Unknown"

// UnknownLocale is the BCP 47 tag for an undetermined language.
const UnknownLocale = "und"
