package request

// SendInvitation mirrors the widget dashboard's invite form.
type SendInvitation struct {
	Email             string `json:"email" validate:"required"`
	Role              string `json:"role" validate:"required,invitable"`
	BusinessAccountID string `json:"businessAccountId" validate:"required"`
}

type AcceptInvitation struct {
	Token  string `json:"token" validate:"required"`
	UserID string `json:"userId" validate:"required"`
}
