package schema

// CoreStoryTranslationTable represents the 'core.storytranslation' table.
// It is the only table the translation engine writes.
type CoreStoryTranslationTable struct {
	Table   string
	GroupID string
	StoryID string
}

// CoreStoryTranslation is the schema definition for core.storytranslation
var CoreStoryTranslation = CoreStoryTranslationTable{
	Table:   "core.storytranslation",
	GroupID: "groupid",
	StoryID: "storyid",
}

func (t CoreStoryTranslationTable) Columns() []string { return []string{t.GroupID, t.StoryID} }
