package mongo

// Document field names, matching the bson tags on the domain types.
const (
	fieldID           = "_id"
	fieldEmail        = "email"
	fieldPassword     = "password"
	fieldToken        = "token"
	fieldUpdatedAt    = "updatedAt"
	fieldOTP          = "otp"
	fieldOTPCreatedAt = "createdAt"
)
