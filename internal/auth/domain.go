package auth

// User is the account resolved from a credential by the CRM API.
type User struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// DisplayName is what the header greets the user with.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Email
}

type loginForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type signupForm struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
}

type forgotForm struct {
	Email string `json:"email" validate:"required,email"`
}

type resetForm struct {
	Password        string `json:"password" validate:"required,min=6"`
	PasswordConfirm string `json:"-" validate:"required,eqfield=Password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type messageResponse struct {
	Msg     string `json:"msg"`
	Message string `json:"message"`
}

func (m messageResponse) text() string {
	if m.Msg != "" {
		return m.Msg
	}
	return m.Message
}
