package assertion

import (
	"context"
	"crypto/sha256"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/golang-jwt/jwt/v4"
)

// KMSClient defines the AWS API surface required for KMS signing.
type KMSClient interface {
	Sign(ctx context.Context, in *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
}

// KMSSigner signs with an asymmetric RSA key held in AWS KMS. The private
// key never leaves KMS.
type KMSSigner struct {
	client KMSClient
	arn    string
}

// NewKMSSigner creates a signer for the KMS key with the given ARN.
func NewKMSSigner(client KMSClient, arn string) *KMSSigner {
	return &KMSSigner{
		client: client,
		arn:    arn,
	}
}

// Sign implements Signer. KMS is given the SHA-256 digest rather than the
// message, so the signing input size is not limited by the KMS message size.
func (s *KMSSigner) Sign(ctx context.Context, signingInput string) (string, error) {
	hash := sha256.Sum256([]byte(signingInput))
	out, err := s.client.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(s.arn),
		Message:          hash[:],
		MessageType:      types.MessageTypeDigest,
		SigningAlgorithm: types.SigningAlgorithmSpecRsassaPkcs1V15Sha256,
	})
	if err != nil {
		return "", CryptoError{Op: "kms sign", Err: err}
	}

	return jwt.EncodeSegment(out.Signature), nil
}
