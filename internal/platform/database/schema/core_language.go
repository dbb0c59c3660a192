package schema

// CoreLanguageTable represents the 'core.language' table
type CoreLanguageTable struct {
	Table      string
	ID         string
	Code       string
	Name       string
	NativeName string
}

// CoreLanguage is the schema definition for core.language
var CoreLanguage = CoreLanguageTable{
	Table:      "core.language",
	ID:         "id",
	Code:       "code",
	Name:       "name",
	NativeName: "nativename",
}

func (t CoreLanguageTable) Columns() []string { return []string{t.ID, t.Code, t.Name, t.NativeName} }
