package bot

import (
	"fmt"

	"chatrelay.dev/context-bot/internal/store"
)

const (
	labelPrev   = "<"
	labelNext   = ">"
	labelCreate = "+"
)

// BuildSelector renders one page of the user's contexts, one per row,
// followed by a navigation row: "<" when a previous page exists, "+" to
// create a context, and ">" when more contexts follow.
func BuildSelector(subject int64, contexts []store.Context, page int, pageSize int) Keyboard {
	if page < 0 {
		page = 0
	}
	start := page * pageSize
	end := start + pageSize

	var keyboard Keyboard
	for i := start; i < end && i < len(contexts); i++ {
		keyboard = append(keyboard, []Button{{
			Label: fmt.Sprintf("%d. %s", i+1, contexts[i].Name),
			Data:  ChangeContextAction(subject, contexts[i].ID).Encode(),
		}})
	}

	var nav []Button
	if page > 0 {
		nav = append(nav, Button{Label: labelPrev, Data: PageAction(subject, page-1).Encode()})
	}
	nav = append(nav, Button{Label: labelCreate, Data: CreateContextAction(subject).Encode()})
	if end < len(contexts) {
		nav = append(nav, Button{Label: labelNext, Data: PageAction(subject, page+1).Encode()})
	}
	return append(keyboard, nav)
}
