package ops

import (
	"context"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
)

type fakeIAM struct {
	roleExists   bool
	attached     []string
	inlinePolicy string
}

func (f *fakeIAM) CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error) {
	if f.roleExists {
		return nil, &iamtypes.EntityAlreadyExistsException{Message: aws.String("already exists")}
	}
	return &iam.CreateRoleOutput{Role: &iamtypes.Role{
		Arn: aws.String("arn:aws:iam::123456789012:role/" + aws.ToString(params.RoleName)),
	}}, nil
}

func (f *fakeIAM) GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	return &iam.GetRoleOutput{Role: &iamtypes.Role{
		Arn: aws.String("arn:aws:iam::123456789012:role/" + aws.ToString(params.RoleName)),
	}}, nil
}

func (f *fakeIAM) AttachRolePolicy(ctx context.Context, params *iam.AttachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error) {
	f.attached = append(f.attached, aws.ToString(params.PolicyArn))
	return &iam.AttachRolePolicyOutput{}, nil
}

func (f *fakeIAM) PutRolePolicy(ctx context.Context, params *iam.PutRolePolicyInput, optFns ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error) {
	f.inlinePolicy = aws.ToString(params.PolicyDocument)
	return &iam.PutRolePolicyOutput{}, nil
}

func TestEnsureRoleCreates(t *testing.T) {
	rolePropagationWait = 0
	fake := &fakeIAM{}

	arn, err := EnsureRole(context.Background(), fake, "my-bucket")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(arn, "role/"+RoleName) {
		t.Errorf("unexpected role arn %q", arn)
	}
	if len(fake.attached) != 1 || !strings.Contains(fake.attached[0], "AWSLambdaBasicExecutionRole") {
		t.Errorf("basic execution policy not attached: %v", fake.attached)
	}
	if !strings.Contains(fake.inlinePolicy, "arn:aws:s3:::my-bucket/*") {
		t.Errorf("inline policy not scoped to bucket: %s", fake.inlinePolicy)
	}
	if !strings.Contains(fake.inlinePolicy, "secret:data-pipeline-config-") {
		t.Errorf("inline policy not scoped to config secret: %s", fake.inlinePolicy)
	}
}

func TestEnsureRoleReusesExisting(t *testing.T) {
	rolePropagationWait = 0
	fake := &fakeIAM{roleExists: true}

	arn, err := EnsureRole(context.Background(), fake, "my-bucket")
	if err != nil {
		t.Fatalf("re-run should not fail: %v", err)
	}
	if !strings.HasSuffix(arn, "role/"+RoleName) {
		t.Errorf("unexpected role arn %q", arn)
	}
	if fake.inlinePolicy == "" {
		t.Error("inline policy should still be refreshed on re-run")
	}
}
