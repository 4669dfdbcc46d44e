package bot

import (
	"fmt"
	"strconv"
	"strings"
)

type ActionKind int

const (
	ActionUnknown ActionKind = iota
	ActionPage
	ActionChangeContext
	ActionCreateContext
)

var actionNames = map[ActionKind]string{
	ActionPage:          "page",
	ActionChangeContext: "change_context",
	ActionCreateContext: "create_context",
}

// Action is a decoded callback token of the form subject.action.param.
// Subject is the user the selector was rendered for.
type Action struct {
	Kind      ActionKind
	Subject   int64
	Page      int
	ContextID int64
	Raw       string
}

func PageAction(subject int64, page int) Action {
	return Action{Kind: ActionPage, Subject: subject, Page: page}
}

func ChangeContextAction(subject int64, contextID int64) Action {
	return Action{Kind: ActionChangeContext, Subject: subject, ContextID: contextID}
}

func CreateContextAction(subject int64) Action {
	return Action{Kind: ActionCreateContext, Subject: subject}
}

// Encode renders the callback token. Unknown actions encode to their raw text.
func (a Action) Encode() string {
	switch a.Kind {
	case ActionPage:
		return fmt.Sprintf("%d.%s.%d", a.Subject, actionNames[a.Kind], a.Page)
	case ActionChangeContext:
		return fmt.Sprintf("%d.%s.%d", a.Subject, actionNames[a.Kind], a.ContextID)
	case ActionCreateContext:
		return fmt.Sprintf("%d.%s.", a.Subject, actionNames[a.Kind])
	default:
		return a.Raw
	}
}

// ParseAction decodes a callback token. Anything malformed comes back as
// ActionUnknown carrying the raw token.
func ParseAction(data string) Action {
	unknown := Action{Kind: ActionUnknown, Raw: data}

	parts := strings.SplitN(data, ".", 3)
	if len(parts) != 3 {
		return unknown
	}
	subject, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return unknown
	}

	switch parts[1] {
	case actionNames[ActionPage]:
		page, err := strconv.Atoi(parts[2])
		if err != nil || page < 0 {
			return unknown
		}
		return Action{Kind: ActionPage, Subject: subject, Page: page, Raw: data}
	case actionNames[ActionChangeContext]:
		id, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil || id <= 0 {
			return unknown
		}
		return Action{Kind: ActionChangeContext, Subject: subject, ContextID: id, Raw: data}
	case actionNames[ActionCreateContext]:
		return Action{Kind: ActionCreateContext, Subject: subject, Raw: data}
	default:
		return unknown
	}
}
