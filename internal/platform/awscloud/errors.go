package awscloud

import (
	"errors"

	"github.com/aws/smithy-go"
)

// AWS error codes we branch on. These come back as smithy API error codes
// rather than typed errors for most EC2 operations.
const (
	codeVPCNotFound         = "InvalidVpcID.NotFound"
	codeSubnetNotFound      = "InvalidSubnetID.NotFound"
	codeGatewayNotFound     = "InvalidInternetGatewayID.NotFound"
	codeNatNotFound         = "NatGatewayNotFound"
	codeRouteTableNotFound  = "InvalidRouteTableID.NotFound"
	codeGroupNotFound       = "InvalidGroup.NotFound"
	codePeeringNotFound     = "InvalidVpcPeeringConnectionID.NotFound"
	codeAllocationNotFound  = "InvalidAllocationID.NotFound"
	codeRouteAlreadyExists  = "RouteAlreadyExists"
	codePermissionDuplicate = "InvalidPermission.Duplicate"
	codeDependencyViolation = "DependencyViolation"
	codeResourceInUse       = "ResourceInUseException"
	codeThrottling          = "Throttling"
	codeRequestLimit        = "RequestLimitExceeded"
)

// isAPIErrorCode checks if the error is an AWS API error with one of the
// given codes.
func isAPIErrorCode(err error, codes ...string) bool {
	if err == nil {
		return false
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		for _, code := range codes {
			if apiErr.ErrorCode() == code {
				return true
			}
		}
	}
	return false
}

// IsNotFound checks if an error indicates a resource was not found.
func IsNotFound(err error) bool {
	return isAPIErrorCode(err,
		codeVPCNotFound,
		codeSubnetNotFound,
		codeGatewayNotFound,
		codeNatNotFound,
		codeRouteTableNotFound,
		codeGroupNotFound,
		codePeeringNotFound,
		codeAllocationNotFound,
		"NotFoundException",        // EKS
		"ResourceNotFoundException", // ECS, CloudWatch Logs
		"ClusterNotFoundException",  // ECS
		"NoSuchEntity",              // IAM
		"LoadBalancerNotFound",      // ELBv2
	)
}

// IsAlreadyExists checks if an error indicates the resource or rule already
// exists. These are expected during idempotent re-apply and are treated as
// success.
func IsAlreadyExists(err error) bool {
	return isAPIErrorCode(err,
		codeRouteAlreadyExists,
		codePermissionDuplicate,
		"ResourceAlreadyExistsException",
		"ResourceInUseException", // EKS CreateCluster on an existing name
		"EntityAlreadyExists",    // IAM
	)
}

// IsDependencyViolation checks if a delete failed because dependent resources
// still exist. Retryable while teardown drains.
func IsDependencyViolation(err error) bool {
	return isAPIErrorCode(err,
		codeDependencyViolation,
		codeResourceInUse,
		"ClusterContainsServicesException",
		"ClusterContainsTasksException",
		"DeleteConflict", // IAM role still has attachments
	)
}

// IsThrottled checks if an error indicates API rate limiting.
func IsThrottled(err error) bool {
	return isAPIErrorCode(err, codeThrottling, codeRequestLimit, "ThrottlingException", "TooManyRequestsException")
}
