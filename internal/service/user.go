package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"stripe-integration-demo/internal/client"
	"stripe-integration-demo/internal/dto"
	"stripe-integration-demo/internal/model"
	"stripe-integration-demo/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserService interface {
	Register(ctx context.Context, email string) (*dto.UserResponse, error)
	GetProfile(ctx context.Context, userID string) (*dto.ProfileResponse, error)

	// DeleteAccount cancels any live subscription and releases the Stripe
	// customer before removing the local user row. Ledger rows stay: the
	// payment history is append-only.
	DeleteAccount(ctx context.Context, userID string) error
}

type userServiceImpl struct {
	stripeClient client.StripeClient
	userRepo     repository.UserRepository
	paymentRepo  repository.PaymentRepository
	orderRepo    repository.OrderRepository
}

func NewUserService(
	stripeClient client.StripeClient,
	userRepo repository.UserRepository,
	paymentRepo repository.PaymentRepository,
	orderRepo repository.OrderRepository,
) UserService {
	return &userServiceImpl{
		stripeClient: stripeClient,
		userRepo:     userRepo,
		paymentRepo:  paymentRepo,
		orderRepo:    orderRepo,
	}
}

func (s *userServiceImpl) Register(ctx context.Context, email string) (*dto.UserResponse, error) {
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}

	user := &model.User{
		ID:    uuid.NewString(),
		Email: email,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	customerID, err := s.stripeClient.CreateCustomer(ctx, email, user.ID)
	if err != nil {
		// The local record works without a customer id; resolution falls back
		// to metadata until one is attached.
		log.Printf("create stripe customer for user %s: %v", user.ID, err)
	} else {
		if err := s.userRepo.SetStripeCustomerID(ctx, user.ID, customerID); err != nil {
			return nil, fmt.Errorf("save stripe customer id: %w", err)
		}
		user.StripeCustomerID = customerID
	}

	return &dto.UserResponse{
		ID:               user.ID,
		Email:            user.Email,
		StripeCustomerID: user.StripeCustomerID,
	}, nil
}

func (s *userServiceImpl) GetProfile(ctx context.Context, userID string) (*dto.ProfileResponse, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	payments, err := s.paymentRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	orders, err := s.orderRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	return dto.NewProfileResponse(user, payments, orders), nil
}

func (s *userServiceImpl) DeleteAccount(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if user.SubscriptionID != "" && user.SubscriptionStatus != model.SubscriptionStatusCanceled {
		if err := s.stripeClient.CancelSubscriptionNow(ctx, user.SubscriptionID); err != nil {
			return fmt.Errorf("cancel subscription: %w", err)
		}
	}

	if user.StripeCustomerID != "" {
		if err := s.stripeClient.DeleteCustomer(ctx, user.StripeCustomerID); err != nil {
			return fmt.Errorf("delete stripe customer: %w", err)
		}
	}

	return s.userRepo.Delete(ctx, userID)
}
