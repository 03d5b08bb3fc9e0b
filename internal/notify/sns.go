package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

type SNSAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, opts ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSender publishes the letter to a topic whose email subscribers
// receive it.
type SNSSender struct {
	api      SNSAPI
	topicARN string
}

func NewSNSSender(api SNSAPI, topicARN string) *SNSSender {
	return &SNSSender{api: api, topicARN: topicARN}
}

func (s *SNSSender) Send(ctx context.Context, m Message) error {
	_, err := s.api.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Subject:  aws.String(m.Subject),
		Message:  aws.String(m.Body),
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}

func (s *SNSSender) Close() error { return nil }
