package models

// View identifies one of the fixed set of app tabs.
type View string

const (
	ViewHome           View = "home"
	ViewHistory        View = "history"
	ViewData           View = "data"
	ViewSustainability View = "sustainability"
	ViewCarbon         View = "carbon"
	ViewUser           View = "user"
)

// ViewItem is the sidebar metadata for a view.
type ViewItem struct {
	ID       View   `json:"id"`
	Icon     string `json:"icon"`
	Title    string `json:"title"`
	Position string `json:"position"` // "top" or "bottom"
}

// SidebarItems lists every known view in display order.
var SidebarItems = []ViewItem{
	{ID: ViewHome, Icon: "🌍", Title: "홈", Position: "top"},
	{ID: ViewHistory, Icon: "📝", Title: "대화 기록", Position: "top"},
	{ID: ViewData, Icon: "📊", Title: "지구 환경 데이터", Position: "top"},
	{ID: ViewSustainability, Icon: "🌐", Title: "지속가능성", Position: "top"},
	{ID: ViewCarbon, Icon: "♻️", Title: "탄소중립", Position: "top"},
	{ID: ViewUser, Icon: "👤", Title: "사용자 설정", Position: "bottom"},
}

// KnownViews returns the set of valid view ids.
func KnownViews() []View {
	views := make([]View, 0, len(SidebarItems))
	for _, item := range SidebarItems {
		views = append(views, item.ID)
	}
	return views
}
