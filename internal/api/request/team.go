package request

type ChangeMemberRole struct {
	Role string `json:"role" validate:"required,invitable"`
}

type UpdateAccount struct {
	Name string `json:"name" validate:"required"`
}
