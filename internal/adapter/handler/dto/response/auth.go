package response

import (
	"time"

	"github.com/imagevault/imagevault/internal/domain/entity"
	"github.com/imagevault/imagevault/internal/usecase/auth"
)

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type Login struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        User      `json:"user"`
}

func UserToResponse(u *entity.User) User {
	return User{
		ID:        u.ID.String(),
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

func LoginToResponse(token *auth.Token, u *entity.User) Login {
	return Login{
		AccessToken: token.AccessToken,
		ExpiresAt:   token.ExpiresAt,
		User:        UserToResponse(u),
	}
}
