// Package ops holds the one-shot operator procedures: IAM role creation,
// function deployment, schedule setup and configuration seeding. Each is
// create-or-update and treats "already exists" as a normal re-run.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
)

const (
	RoleName       = "lambda-data-pipeline-role"
	rolePolicyName = "lambda-data-pipeline-policy"

	basicExecutionPolicyARN = "arn:aws:iam::aws:policy/service-role/AWSLambdaBasicExecutionRole"
)

// IAM is eventually consistent; a freshly created role is not always
// assumable right away.
var rolePropagationWait = 10 * time.Second

type IAMAPI interface {
	CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
	AttachRolePolicy(ctx context.Context, params *iam.AttachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error)
	PutRolePolicy(ctx context.Context, params *iam.PutRolePolicyInput, optFns ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error)
}

type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Effect    string            `json:"Effect"`
	Principal map[string]string `json:"Principal,omitempty"`
	Action    []string          `json:"Action"`
	Resource  []string          `json:"Resource,omitempty"`
}

// EnsureRole creates the Lambda execution role (or reuses an existing
// one), attaches the basic execution policy and the inline policy scoped
// to the bucket and the configuration secret. Returns the role ARN.
func EnsureRole(ctx context.Context, client IAMAPI, bucketName string) (string, error) {
	trust, _ := json.Marshal(policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect:    "Allow",
			Principal: map[string]string{"Service": "lambda.amazonaws.com"},
			Action:    []string{"sts:AssumeRole"},
		}},
	})

	var roleARN string
	out, err := client.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(RoleName),
		AssumeRolePolicyDocument: aws.String(string(trust)),
		Description:              aws.String("IAM role for data pipeline Lambda function"),
		Tags: []iamtypes.Tag{
			{Key: aws.String("Project"), Value: aws.String("DataPipeline")},
			{Key: aws.String("ManagedBy"), Value: aws.String("ops")},
		},
	})
	if err != nil {
		var exists *iamtypes.EntityAlreadyExistsException
		if !errors.As(err, &exists) {
			return "", fmt.Errorf("create role %s: %w", RoleName, err)
		}
		log.Printf("role %s already exists, reusing", RoleName)
		got, gerr := client.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(RoleName)})
		if gerr != nil {
			return "", fmt.Errorf("get role %s: %w", RoleName, gerr)
		}
		roleARN = aws.ToString(got.Role.Arn)
	} else {
		roleARN = aws.ToString(out.Role.Arn)
		log.Printf("role created: %s", roleARN)
	}

	_, err = client.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
		RoleName:  aws.String(RoleName),
		PolicyArn: aws.String(basicExecutionPolicyARN),
	})
	if err != nil {
		return "", fmt.Errorf("attach basic execution policy: %w", err)
	}

	policy, _ := json.Marshal(policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{
			{
				Effect: "Allow",
				Action: []string{"s3:GetObject", "s3:PutObject", "s3:DeleteObject", "s3:ListBucket"},
				Resource: []string{
					fmt.Sprintf("arn:aws:s3:::%s", bucketName),
					fmt.Sprintf("arn:aws:s3:::%s/*", bucketName),
				},
			},
			{
				Effect:   "Allow",
				Action:   []string{"secretsmanager:GetSecretValue", "secretsmanager:DescribeSecret"},
				Resource: []string{fmt.Sprintf("arn:aws:secretsmanager:*:*:secret:%s-*", SecretName)},
			},
			{
				Effect:   "Allow",
				Action:   []string{"logs:CreateLogGroup", "logs:CreateLogStream", "logs:PutLogEvents"},
				Resource: []string{"arn:aws:logs:*:*:*"},
			},
		},
	})

	_, err = client.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
		RoleName:       aws.String(RoleName),
		PolicyName:     aws.String(rolePolicyName),
		PolicyDocument: aws.String(string(policy)),
	})
	if err != nil {
		return "", fmt.Errorf("put role policy %s: %w", rolePolicyName, err)
	}

	log.Printf("waiting for role to propagate")
	time.Sleep(rolePropagationWait)

	return roleARN, nil
}
