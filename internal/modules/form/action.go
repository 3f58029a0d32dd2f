package form

import (
	"strings"

	"github.com/forumhub/core/internal/pkg/apperr"
)

// Action is the value of a custom form's doWhat field.
type Action int

const (
	ActionCreateTopic Action = iota
	ActionSignUp
	ActionSignUpSubmitUtx
	ActionSubmitToThisPage
	numActions
)

var actionNames = [numActions]string{
	ActionCreateTopic:      "CreateTopic",
	ActionSignUp:           "SignUp",
	ActionSignUpSubmitUtx:  "SignUpSubmitUtx",
	ActionSubmitToThisPage: "SubmitToThisPage",
}

func (a Action) String() string {
	if a < 0 || a >= numActions {
		return "Unknown"
	}
	return actionNames[a]
}

// ParseAction maps a doWhat value to its Action. Values are case sensitive.
func ParseAction(doWhat string) (Action, error) {
	v := strings.TrimSpace(doWhat)
	for a := Action(0); a < numActions; a++ {
		if actionNames[a] == v {
			return a, nil
		}
	}
	return 0, apperr.Configuration("unknown input name=doWhat value: %q", doWhat)
}
