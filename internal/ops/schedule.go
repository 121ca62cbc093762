package ops

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

const (
	RuleName = "data-pipeline-daily-trigger"

	// Daily at 2 AM UTC.
	scheduleExpression = "cron(0 2 * * ? *)"
)

type EventBridgeAPI interface {
	PutRule(ctx context.Context, params *eventbridge.PutRuleInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutRuleOutput, error)
	PutTargets(ctx context.Context, params *eventbridge.PutTargetsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutTargetsOutput, error)
}

type LambdaPermissionAPI interface {
	AddPermission(ctx context.Context, params *awslambda.AddPermissionInput, optFns ...func(*awslambda.Options)) (*awslambda.AddPermissionOutput, error)
}

type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// EnsureSchedule creates or updates the daily EventBridge rule, grants it
// permission to invoke the ETL function and registers the function as the
// rule target.
func EnsureSchedule(ctx context.Context, events EventBridgeAPI, lambdaClient LambdaPermissionAPI, stsClient STSAPI, region string) error {
	ruleOut, err := events.PutRule(ctx, &eventbridge.PutRuleInput{
		Name:               aws.String(RuleName),
		ScheduleExpression: aws.String(scheduleExpression),
		State:              ebtypes.RuleStateEnabled,
		Description:        aws.String("Trigger data pipeline ETL daily at 2 AM UTC"),
	})
	if err != nil {
		return fmt.Errorf("put rule %s: %w", RuleName, err)
	}
	ruleARN := aws.ToString(ruleOut.RuleArn)
	log.Printf("rule ready: %s", ruleARN)

	_, err = lambdaClient.AddPermission(ctx, &awslambda.AddPermissionInput{
		FunctionName: aws.String(FunctionName),
		StatementId:  aws.String(RuleName + "-permission"),
		Action:       aws.String("lambda:InvokeFunction"),
		Principal:    aws.String("events.amazonaws.com"),
		SourceArn:    aws.String(ruleARN),
	})
	if err != nil {
		var conflict *lambdatypes.ResourceConflictException
		if !errors.As(err, &conflict) {
			return fmt.Errorf("add invoke permission: %w", err)
		}
		log.Printf("invoke permission already present")
	} else {
		log.Printf("invoke permission added")
	}

	ident, err := stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return fmt.Errorf("get caller identity: %w", err)
	}
	functionARN := fmt.Sprintf("arn:aws:lambda:%s:%s:function:%s",
		region, aws.ToString(ident.Account), FunctionName)

	targetsOut, err := events.PutTargets(ctx, &eventbridge.PutTargetsInput{
		Rule: aws.String(RuleName),
		Targets: []ebtypes.Target{
			{Id: aws.String("1"), Arn: aws.String(functionARN)},
		},
	})
	if err != nil {
		return fmt.Errorf("put targets: %w", err)
	}
	if targetsOut.FailedEntryCount > 0 {
		return fmt.Errorf("put targets: %d entries failed", targetsOut.FailedEntryCount)
	}

	log.Printf("target added: %s", functionARN)
	return nil
}
