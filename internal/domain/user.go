package domain

import "time"

// User is a registered account. PasswordHash and SecurityAnswer never leave
// the service in JSON.
type User struct {
	UserID           string    `json:"_id" dynamodbav:"user_id" bson:"_id"`
	Email            string    `json:"email" dynamodbav:"email" bson:"email"`
	PasswordHash     string    `json:"-" dynamodbav:"password_hash" bson:"password"`
	SecurityQuestion string    `json:"securityQuestion" dynamodbav:"security_question" bson:"securityQuestion"`
	SecurityAnswer   string    `json:"-" dynamodbav:"security_answer" bson:"securityQuestionAnswer"`
	Token            string    `json:"token,omitempty" dynamodbav:"token,omitempty" bson:"token,omitempty"`
	CreatedAt        time.Time `json:"createdAt" dynamodbav:"created_at" bson:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt" dynamodbav:"updated_at" bson:"updatedAt"`
}

type RegisterRequest struct {
	Email            string `json:"email" validate:"required"`
	Password         string `json:"password" validate:"required"`
	SecurityQuestion string `json:"securityQuestion" validate:"required"`
	SecurityAnswer   string `json:"securityQuestionAnswer" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ChangePasswordRequest resets a password by answering the security question.
type ChangePasswordRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	SecurityQuestion string `json:"securityQuestion"`
	SecurityAnswer   string `json:"securityQuestionAnswer"`
}
