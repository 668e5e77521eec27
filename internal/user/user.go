package user

// User is the customer profile. Identity is owned by the external sign-in
// provider; ID is the user_id claim of its tokens.
type User struct {
	ID        int    `json:"userId"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	PostCode  string `json:"postcode"`
	PostPlace string `json:"postPlace"`

	// BackOfficeCustomerUID is the retail back-office customer created for
	// this profile on its first order. Empty until then.
	BackOfficeCustomerUID string `json:"backOfficeCustomerUid,omitempty"`

	CreatedAt string `json:"createAt,omitempty"`
	UpdatedAt string `json:"updateAt,omitempty"`
}
