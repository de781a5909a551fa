package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-otp-auth/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// OTPRepo stores the current verification code per email.
type OTPRepo struct {
	coll *mongo.Collection
}

func NewOTPRepo(coll *mongo.Collection) *OTPRepo {
	return &OTPRepo{coll: coll}
}

// Upsert replaces the code and issue time for o.Email, inserting if absent.
func (r *OTPRepo) Upsert(ctx context.Context, o *domain.OTP) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{fieldEmail: o.Email},
		bson.M{"$set": bson.M{fieldOTP: o.Code, fieldOTPCreatedAt: o.CreatedAt}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert otp: %w", err)
	}
	return nil
}

func (r *OTPRepo) Get(ctx context.Context, email string) (*domain.OTP, error) {
	var o domain.OTP
	if err := r.coll.FindOne(ctx, bson.M{fieldEmail: email}).Decode(&o); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("otp not found: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("find otp: %w", err)
	}
	return &o, nil
}

func (r *OTPRepo) Delete(ctx context.Context, email string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{fieldEmail: email}); err != nil {
		return fmt.Errorf("delete otp: %w", err)
	}
	return nil
}
