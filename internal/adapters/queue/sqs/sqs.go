// Package sqs implements adapters.Queue on AWS SQS, mapping logical queue
// names to SQS queue URLs resolved on first use and then cached.
package sqs

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/madara-alliance/orchestrator-go/internal/adapters"
	"github.com/madara-alliance/orchestrator-go/internal/orcherrors"
)

// Queue is an adapters.Queue backed by AWS SQS.
type Queue struct {
	client *sqs.Client
	prefix string
	urls   map[string]string
}

// New loads the default AWS credential chain for region and returns a Queue
// whose logical queue names are resolved to "<prefix>_<name>" SQS queues.
func New(ctx context.Context, region, prefix string) (*Queue, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, orcherrors.QueueError(fmt.Errorf("load aws config: %w", err))
	}
	return &Queue{client: sqs.NewFromConfig(cfg), prefix: prefix, urls: make(map[string]string)}, nil
}

func (q *Queue) resolveURL(ctx context.Context, queueName string) (string, error) {
	sqsName := q.prefix + "_" + queueName
	if url, ok := q.urls[sqsName]; ok {
		return url, nil
	}
	out, err := q.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(sqsName)})
	if err != nil {
		return "", orcherrors.QueueError(fmt.Errorf("resolve queue url for %s: %w", sqsName, err))
	}
	q.urls[sqsName] = *out.QueueUrl
	return *out.QueueUrl, nil
}

func (q *Queue) Send(ctx context.Context, queueName, body string) error {
	url, err := q.resolveURL(ctx, queueName)
	if err != nil {
		return err
	}
	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{QueueUrl: aws.String(url), MessageBody: aws.String(body)})
	if err != nil {
		return orcherrors.QueueError(fmt.Errorf("send message: %w", err))
	}
	return nil
}

func (q *Queue) SendDelayed(ctx context.Context, queueName, body string, delay time.Duration) error {
	url, err := q.resolveURL(ctx, queueName)
	if err != nil {
		return err
	}
	seconds := int32(delay.Seconds())
	if seconds > 900 {
		seconds = 900 // SQS hard cap
	}
	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:     aws.String(url),
		MessageBody:  aws.String(body),
		DelaySeconds: seconds,
	})
	if err != nil {
		return orcherrors.QueueError(fmt.Errorf("send delayed message: %w", err))
	}
	return nil
}

func (q *Queue) Receive(ctx context.Context, queueName string, waitTime time.Duration) ([]adapters.QueueMessage, error) {
	url, err := q.resolveURL(ctx, queueName)
	if err != nil {
		return nil, err
	}
	waitSeconds := int32(waitTime.Seconds())
	if waitSeconds > 20 {
		waitSeconds = 20 // SQS long-poll cap
	}
	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(url),
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     waitSeconds,
	})
	if err != nil {
		return nil, orcherrors.QueueError(fmt.Errorf("receive message: %w", err))
	}

	msgs := make([]adapters.QueueMessage, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, adapters.QueueMessage{Body: aws.ToString(m.Body), ReceiptHandle: aws.ToString(m.ReceiptHandle)})
	}
	return msgs, nil
}

func (q *Queue) Ack(ctx context.Context, queueName string, msg adapters.QueueMessage) error {
	url, err := q.resolveURL(ctx, queueName)
	if err != nil {
		return err
	}
	_, err = q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{QueueUrl: aws.String(url), ReceiptHandle: aws.String(msg.ReceiptHandle)})
	if err != nil {
		return orcherrors.QueueError(fmt.Errorf("delete message: %w", err))
	}
	return nil
}

// Nack makes the message visible again immediately by setting its
// visibility timeout to zero, rather than deleting it.
func (q *Queue) Nack(ctx context.Context, queueName string, msg adapters.QueueMessage) error {
	url, err := q.resolveURL(ctx, queueName)
	if err != nil {
		return err
	}
	_, err = q.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(url),
		ReceiptHandle:     aws.String(msg.ReceiptHandle),
		VisibilityTimeout: 0,
	})
	if err != nil {
		return orcherrors.QueueError(fmt.Errorf("reset visibility: %w", err))
	}
	return nil
}
