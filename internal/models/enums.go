package models

// PageType is the kind of a page. Wire values are stable integers.
type PageType int

const (
	PageTypeCustomHTML       PageType = 1
	PageTypeWebPage          PageType = 2
	PageTypeCode             PageType = 3
	PageTypeSpecialContent   PageType = 4
	PageTypeEmbeddedComments PageType = 5
	PageTypeBlog             PageType = 6
	PageTypeForum            PageType = 7
	PageTypeAbout            PageType = 9
	PageTypeQuestion         PageType = 10
	PageTypeDiscussion       PageType = 12
	PageTypeToDo             PageType = 13
	PageTypeProblem          PageType = 14
	PageTypeIdea             PageType = 15
	PageTypeForm             PageType = 20
	PageTypeUsabilityTesting PageType = 21
)

var pageTypeNames = map[PageType]string{
	PageTypeCustomHTML:       "CustomHtml",
	PageTypeWebPage:          "WebPage",
	PageTypeCode:             "Code",
	PageTypeSpecialContent:   "SpecialContent",
	PageTypeEmbeddedComments: "EmbeddedComments",
	PageTypeBlog:             "Blog",
	PageTypeForum:            "Forum",
	PageTypeAbout:            "About",
	PageTypeQuestion:         "Question",
	PageTypeDiscussion:       "Discussion",
	PageTypeToDo:             "ToDo",
	PageTypeProblem:          "Problem",
	PageTypeIdea:             "Idea",
	PageTypeForm:             "Form",
	PageTypeUsabilityTesting: "UsabilityTesting",
}

func (t PageType) Valid() bool {
	_, ok := pageTypeNames[t]
	return ok
}

func (t PageType) String() string {
	if name, ok := pageTypeNames[t]; ok {
		return name
	}
	return "Unknown"
}

// IsTopic reports whether pages of this type may be created through the
// upsert API and custom forms. Section pages (forum, blog, about) may not.
func (t PageType) IsTopic() bool {
	switch t {
	case PageTypeQuestion, PageTypeDiscussion, PageTypeToDo, PageTypeProblem,
		PageTypeIdea, PageTypeForm, PageTypeUsabilityTesting, PageTypeWebPage:
		return true
	}
	return false
}

// NotfLevel is how much a member wants to hear about a scope.
type NotfLevel int

const (
	NotfLevelMuted         NotfLevel = 1
	NotfLevelHushed        NotfLevel = 2
	NotfLevelNormal        NotfLevel = 4
	NotfLevelTracking      NotfLevel = 5
	NotfLevelNewTopics     NotfLevel = 6
	NotfLevelTopicSolved   NotfLevel = 7
	NotfLevelTopicProgress NotfLevel = 8
	NotfLevelEveryPost     NotfLevel = 9
)

func (l NotfLevel) Valid() bool {
	switch l {
	case NotfLevelMuted, NotfLevelHushed, NotfLevelNormal, NotfLevelTracking,
		NotfLevelNewTopics, NotfLevelTopicSolved, NotfLevelTopicProgress, NotfLevelEveryPost:
		return true
	}
	return false
}

// WantsNewTopics reports whether the level includes new-topic notifications.
func (l NotfLevel) WantsNewTopics() bool { return l >= NotfLevelNewTopics }
