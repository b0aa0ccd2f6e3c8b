package model

// Actor is the already-authenticated caller of an operation.
type Actor struct {
	UserID     string `json:"user_id"`
	IsOperator bool   `json:"is_operator"`
}

func (a Actor) Authenticated() bool { return a.UserID != "" }
