package account

import "context"

// Repository defines the operations for persisting and retrieving Account entities.
type Repository interface {
	Create(ctx context.Context, acct *Account) error
	GetByID(ctx context.Context, id int64) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByVerificationToken(ctx context.Context, token string) (*Account, error)
	Update(ctx context.Context, acct *Account) error
}
