package session

import (
	"context"

	"github.com/octabyte/sitemon/enums"
	"github.com/octabyte/sitemon/models"
	ctxutil "github.com/octabyte/sitemon/utils/context"
)

// RequestPasswordReset asks the backend to mail a reset link. The backend
// answers the same way for unknown addresses.
func (s *Store) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	var resp models.MessageResponse
	err := s.client.Post(ctxutil.WithSkipRefresh(ctx), enums.PathPasswordResetRequest, models.PasswordResetRequest{Email: email}, &resp)
	return resp.Message, err
}

// ResetPassword sets a new password with the token from the reset mail.
func (s *Store) ResetPassword(ctx context.Context, token, newPassword string) (string, error) {
	var resp models.MessageResponse
	err := s.client.Post(ctxutil.WithSkipRefresh(ctx), enums.PathPasswordReset, models.PasswordReset{Token: token, NewPassword: newPassword}, &resp)
	return resp.Message, err
}

func (s *Store) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	return s.client.Put(ctx, enums.PathMePassword, models.ChangePasswordRequest{
		CurrentPassword: currentPassword,
		NewPassword:     newPassword,
	}, nil)
}

// CompleteOnboarding marks the onboarding as done and reloads the user so
// HasCompletedOnboarding reflects it.
func (s *Store) CompleteOnboarding(ctx context.Context) error {
	if err := s.client.Post(ctx, enums.PathMeOnboarding, nil, nil); err != nil {
		return err
	}
	return s.FetchUser(ctx)
}
