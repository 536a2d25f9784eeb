package secretstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/cenkalti/backoff/v4"
	cache "github.com/patrickmn/go-cache"
)

const (
	awsCacheKey        = "operator"
	awsRetryInitial    = 200 * time.Millisecond
	awsRetryMaxElapsed = 5 * time.Second
)

// SecretsClient is the subset of the Secrets Manager API the store needs.
type SecretsClient interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWS fetches the credential from AWS Secrets Manager and caches it for a TTL.
type AWS struct {
	client   SecretsClient
	secretID string
	field    string
	cache    *cache.Cache
}

// NewAWS loads the default AWS credential chain for region.
func NewAWS(ctx context.Context, region, secretID, field string, ttl time.Duration) (*AWS, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewAWSWithClient(secretsmanager.NewFromConfig(awsCfg), secretID, field, ttl), nil
}

// NewAWSWithClient builds the store around an existing client.
func NewAWSWithClient(client SecretsClient, secretID, field string, ttl time.Duration) *AWS {
	if field == "" {
		field = "api_key"
	}
	return &AWS{
		client:   client,
		secretID: secretID,
		field:    field,
		cache:    cache.New(ttl, 2*ttl),
	}
}

func (a *AWS) OperatorCredential(ctx context.Context) (string, error) {
	if v, ok := a.cache.Get(awsCacheKey); ok {
		return v.(string), nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = awsRetryInitial
	expo.MaxElapsedTime = awsRetryMaxElapsed

	var value string
	op := func() error {
		out, err := a.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: aws.String(a.secretID),
		})
		if err != nil {
			var notFound *types.ResourceNotFoundException
			if errors.As(err, &notFound) {
				return backoff.Permanent(fmt.Errorf("%w: %s", ErrSecretNotFound, a.secretID))
			}
			return err
		}
		if out.SecretString == nil {
			return backoff.Permanent(fmt.Errorf("%w: %s has no secret string", ErrSecretNotFound, a.secretID))
		}
		v, err := parseSecret(*out.SecretString, a.field)
		if err != nil {
			return backoff.Permanent(err)
		}
		value = v
		return nil
	}

	notify := func(err error, wait time.Duration) {
		slog.Warn("operator secret fetch failed, retrying", "secret_id", a.secretID, "wait", wait, "error", err)
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(expo, ctx), notify); err != nil {
		return "", fmt.Errorf("fetch operator secret: %w", err)
	}

	a.cache.Set(awsCacheKey, value, cache.DefaultExpiration)
	return value, nil
}

// Invalidate drops the cached value so the next call refetches it.
func (a *AWS) Invalidate() {
	a.cache.Delete(awsCacheKey)
}
