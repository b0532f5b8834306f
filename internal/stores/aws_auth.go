package stores

import (
	"context"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// STSAPI is the subset of the STS client used for the identity check.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// AWSAuthenticator verifies the default credential chain by asking STS who
// the caller is. The answer is cached for the process lifetime.
type AWSAuthenticator struct {
	client STSAPI
	region string

	once   sync.Once
	result bool
}

// NewAWSAuthenticator creates the authenticator. client may be nil, in
// which case the real STS client is built from the default chain on first
// use.
func NewAWSAuthenticator(region string, client STSAPI) *AWSAuthenticator {
	return &AWSAuthenticator{client: client, region: region}
}

func (a *AWSAuthenticator) IsAuthenticated(ctx context.Context) (bool, error) {
	a.once.Do(func() {
		if a.client == nil {
			cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(a.region))
			if err != nil {
				a.result = false
				return
			}
			a.client = sts.NewFromConfig(cfg)
		}
		_, err := a.client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
		a.result = err == nil
	})
	return a.result, nil
}
