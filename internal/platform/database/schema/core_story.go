package schema

// CoreStoryTable represents the 'core.story' table
type CoreStoryTable struct {
	Table         string
	ID            string
	AuthorID      string
	LanguageID    string
	Title         string
	Slug          string
	Status        string
	Category      string
	ContentRating string
	Completion    string
	Tags          string
	CreatedAt     string
	UpdatedAt     string
	DeletedAt     string
}

// CoreStory is the schema definition for core.story
var CoreStory = CoreStoryTable{
	Table:         "core.story",
	ID:            "id",
	AuthorID:      "authorid",
	LanguageID:    "languageid",
	Title:         "title",
	Slug:          "slug",
	Status:        "status",
	Category:      "category",
	ContentRating: "contentrating",
	Completion:    "completion",
	Tags:          "tags",
	CreatedAt:     "createdat",
	UpdatedAt:     "updatedat",
	DeletedAt:     "deletedat",
}

func (t CoreStoryTable) Columns() []string {
	return []string{
		t.ID, t.AuthorID, t.LanguageID, t.Title, t.Slug, t.Status,
		t.Category, t.ContentRating, t.Completion, t.Tags,
	}
}
