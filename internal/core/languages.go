package core

// DefaultLanguage is used when a request carries no language.
const DefaultLanguage = "en"

// Language is a supported UI/speech language.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Languages lists the supported languages in display order.
var Languages = []Language{
	{Code: "be", Name: "Belarusian"},
	{Code: "pl", Name: "Polish"},
	{Code: "lt", Name: "Lithuanian"},
	{Code: "lv", Name: "Latvian"},
	{Code: "et", Name: "Estonian"},
	{Code: "en", Name: "English"},
}

// LanguageNames returns a code → name map.
func LanguageNames() map[string]string {
	names := make(map[string]string, len(Languages))
	for _, lang := range Languages {
		names[lang.Code] = lang.Name
	}

	return names
}

// IsSupportedLanguage reports whether code is one of Languages.
func IsSupportedLanguage(code string) bool {
	for _, lang := range Languages {
		if lang.Code == code {
			return true
		}
	}

	return false
}

// NormalizeLanguage returns code when supported and DefaultLanguage otherwise.
func NormalizeLanguage(code string) string {
	if IsSupportedLanguage(code) {
		return code
	}

	return DefaultLanguage
}
