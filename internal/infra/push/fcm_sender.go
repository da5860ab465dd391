package push

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"community_activity_backend/internal/domain/channel"
)

// FCMSender delivers push notifications through Firebase Cloud Messaging.
// It implements channel.PushSender.
type FCMSender struct {
	client *messaging.Client
}

func NewFCMSender(ctx context.Context, credentialsFile string) (*FCMSender, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize FCM client: %w", err)
	}
	return &FCMSender{client: client}, nil
}

func (s *FCMSender) Send(ctx context.Context, token string, note channel.PushNotification) error {
	if token == "" {
		return fmt.Errorf("push token is empty")
	}
	_, err := s.client.Send(ctx, &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: note.Title,
			Body:  note.Body,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send push notification: %w", err)
	}
	return nil
}

// Disabled is a PushSender used when no FCM credentials are configured.
// Every send fails with a stable error the callers log and move past.
type Disabled struct{}

func (Disabled) Send(context.Context, string, channel.PushNotification) error {
	return fmt.Errorf("push delivery is not configured")
}
