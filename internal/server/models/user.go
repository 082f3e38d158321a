package models

// User is the identity a token pair is issued for. It is built once at the
// user-store boundary and passed by value afterwards.
type User struct {
	ID    string
	Email string
	Roles []string
}

// Registration is the input for creating a user account.
type Registration struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}
