package schema

// CoreStoryChapterTable represents the 'core.storychapter' table
type CoreStoryChapterTable struct {
	Table     string
	ID        string
	StoryID   string
	Type      string
	Position  string
	Title     string
	Status    string
	SortOrder string
	CreatedAt string
	DeletedAt string
}

// CoreStoryChapter is the schema definition for core.storychapter
var CoreStoryChapter = CoreStoryChapterTable{
	Table:     "core.storychapter",
	ID:        "id",
	StoryID:   "storyid",
	Type:      "chaptertype",
	Position:  "position",
	Title:     "title",
	Status:    "status",
	SortOrder: "sortorder",
	CreatedAt: "createdat",
	DeletedAt: "deletedat",
}

func (t CoreStoryChapterTable) Columns() []string {
	return []string{t.ID, t.StoryID, t.Type, t.Position, t.Title, t.Status}
}
