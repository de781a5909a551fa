package domain

import "time"

// OTP is the one live verification code for an email address.
// Key: email (lower-cased, trimmed).
type OTP struct {
	Email     string    `json:"email" dynamodbav:"email" bson:"email"`
	Code      int       `json:"otp" dynamodbav:"otp" bson:"otp"`
	CreatedAt time.Time `json:"createdAt" dynamodbav:"created_at" bson:"createdAt"`
}

// OTP codes are always six digits.
const (
	OTPMin = 100000
	OTPMax = 999999
)
